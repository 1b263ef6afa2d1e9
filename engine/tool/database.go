package tool

import (
	"context"
	"encoding/json"

	"github.com/appforge/appforge/engine/core"
	"github.com/appforge/appforge/engine/dbadmin"
)

// DatabaseService is the slice of the database admin service the tool
// handlers consume. RecordLog doubles as the dispatcher's activity sink.
type DatabaseService interface {
	RunMigration(ctx context.Context, input *dbadmin.MigrationInput) (*dbadmin.Migration, error)
	RunQuery(ctx context.Context, input *dbadmin.QueryInput) (*dbadmin.QueryResult, error)
	SchemaDump(ctx context.Context) (dbadmin.Schema, error)
	RecordLog(ctx context.Context, projectID core.ID, level, message string, metadata map[string]any) error
	ReadStoredLogs(ctx context.Context, projectID core.ID, level string, limit int) ([]*dbadmin.Log, error)
}

func (d *Dispatcher) registerDatabaseTools() error {
	tools := []struct {
		def     Definition
		handler Handler
	}{
		{
			def: Definition{
				Name:        "run_sql_query",
				Description: "Execute a SQL query against the project database. Use for data inspection or simple operations.",
				Parameters: objectSchema([]string{"query", "query_type"}, map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "SQL query to execute",
					},
					"query_type": map[string]any{
						"type":        "string",
						"enum":        []string{"select", "insert", "update", "delete"},
						"description": "Type of SQL operation",
					},
				}),
			},
			handler: d.runSQLQuery,
		},
		{
			def: Definition{
				Name:        "get_sql_schema",
				Description: "Get the current database schema for the project.",
				Parameters:  objectSchema(nil, map[string]any{}),
			},
			handler: d.sqlSchema,
		},
		{
			def: Definition{
				Name:        "run_migration",
				Description: "Run a database migration script to create or modify tables.",
				Parameters: objectSchema([]string{"migration_name", "sql"}, map[string]any{
					"migration_name": map[string]any{
						"type":        "string",
						"description": "Name of the migration",
					},
					"sql": map[string]any{
						"type":        "string",
						"description": "SQL migration script",
					},
				}),
			},
			handler: d.runMigration,
		},
		{
			def: Definition{
				Name:        "read_logs",
				Description: "Read application logs to debug issues or check execution status.",
				Parameters: objectSchema(nil, map[string]any{
					"level": map[string]any{
						"type":        "string",
						"enum":        []string{"DEBUG", "INFO", "WARNING", "ERROR", "CRITICAL"},
						"description": "Minimum log level to retrieve",
					},
					"limit": map[string]any{
						"type":        "integer",
						"description": "Maximum number of log entries to return",
					},
				}),
			},
			handler: d.readLogs,
		},
	}
	for _, t := range tools {
		if err := d.register(t.def, t.handler); err != nil {
			return err
		}
	}
	return nil
}

type runSQLQueryArgs struct {
	ProjectID core.ID `json:"project_id"`
	Query     string  `json:"query"`
	QueryType string  `json:"query_type"`
}

func (d *Dispatcher) runSQLQuery(ctx context.Context, args json.RawMessage) Result {
	req, err := decodeArgs[runSQLQueryArgs](args)
	if err != nil {
		return FailErr(err)
	}
	result, err := d.deps.Database.RunQuery(ctx, &dbadmin.QueryInput{
		ProjectID: req.ProjectID,
		Query:     req.Query,
	})
	if err != nil {
		return FailErr(err)
	}
	if result.Rows != nil {
		return Succeed(map[string]any{
			"rows":      result.Rows,
			"row_count": result.RowCount,
		})
	}
	return Succeed(map[string]any{
		"result":  result.Result,
		"message": "Query executed successfully",
	})
}

func (d *Dispatcher) sqlSchema(ctx context.Context, args json.RawMessage) Result {
	if _, err := decodeArgs[projectScopedArgs](args); err != nil {
		return FailErr(err)
	}
	schema, err := d.deps.Database.SchemaDump(ctx)
	if err != nil {
		return FailErr(err)
	}
	return Succeed(map[string]any{"schema": schema})
}

type runMigrationArgs struct {
	ProjectID core.ID `json:"project_id"`
	Name      string  `json:"migration_name"`
	SQL       string  `json:"sql"`
}

func (d *Dispatcher) runMigration(ctx context.Context, args json.RawMessage) Result {
	req, err := decodeArgs[runMigrationArgs](args)
	if err != nil {
		return FailErr(err)
	}
	migration, err := d.deps.Database.RunMigration(ctx, &dbadmin.MigrationInput{
		ProjectID: req.ProjectID,
		Name:      req.Name,
		SQL:       req.SQL,
	})
	if err != nil {
		return FailErr(err)
	}
	return Succeed(map[string]any{
		"message": "Migration '" + migration.Name + "' executed successfully",
		"data":    map[string]any{"migration_id": migration.ID.String()},
	})
}

type readLogsArgs struct {
	ProjectID core.ID `json:"project_id"`
	Level     string  `json:"level"`
	Limit     int     `json:"limit"`
}

func (d *Dispatcher) readLogs(ctx context.Context, args json.RawMessage) Result {
	req, err := decodeArgs[readLogsArgs](args)
	if err != nil {
		return FailErr(err)
	}
	logs, err := d.deps.Database.ReadStoredLogs(ctx, req.ProjectID, req.Level, req.Limit)
	if err != nil {
		return FailErr(err)
	}
	return Succeed(map[string]any{"logs": logs})
}

package cli

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gofrs/flock"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/appforge/appforge/engine/aicontext"
	"github.com/appforge/appforge/engine/backend"
	"github.com/appforge/appforge/engine/chat"
	"github.com/appforge/appforge/engine/core"
	"github.com/appforge/appforge/engine/dbadmin"
	"github.com/appforge/appforge/engine/errorlog"
	"github.com/appforge/appforge/engine/genfile"
	"github.com/appforge/appforge/engine/infra/postgres"
	"github.com/appforge/appforge/engine/infra/server"
	"github.com/appforge/appforge/engine/llm"
	"github.com/appforge/appforge/engine/orchestrator"
	"github.com/appforge/appforge/engine/pkgmanager"
	"github.com/appforge/appforge/engine/preview"
	"github.com/appforge/appforge/engine/project"
	"github.com/appforge/appforge/engine/task"
	"github.com/appforge/appforge/engine/tool"
	"github.com/appforge/appforge/engine/workspace"
	"github.com/appforge/appforge/pkg/cmdexec"
	"github.com/appforge/appforge/pkg/config"
	"github.com/appforge/appforge/pkg/logger"
)

// workspaceLockFile guards the workspace directory across processes. Project
// writes assume a single owning server; a second instance must not share the
// tree.
const workspaceLockFile = "appforge.lock"

// NewServeCommand creates the serve command running the HTTP server.
func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "serve",
		Aliases: []string{"server", "start"},
		Short:   "Start the AppForge server",
		Long:    "Start the HTTP server, applying pending database migrations first when auto-migration is enabled.",
		RunE:    runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, cfg, err := setupContext(cmd)
	if err != nil {
		return err
	}
	log := logger.FromContext(ctx)
	if !portAvailable(cfg.Server.Host, cfg.Server.Port) {
		return fmt.Errorf("port %d is not available on host %s", cfg.Server.Port, cfg.Server.Host)
	}
	unlock, err := lockWorkspace(ctx, cfg.Workspace.BaseDir)
	if err != nil {
		return err
	}
	defer unlock()
	if cfg.Database.AutoMigrate {
		log.Info("Applying database migrations")
		if err := postgres.ApplyMigrationsWithLock(ctx, cfg.Database.ConnString); err != nil {
			return fmt.Errorf("failed to apply migrations: %w", err)
		}
	}
	state, cleanup, err := buildState(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()
	srv, err := server.NewServer(ctx, state)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	return srv.Run()
}

// lockWorkspace takes the cross-process workspace lock so two server
// instances never generate into the same project tree.
func lockWorkspace(ctx context.Context, baseDir string) (func(), error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create workspace directory %s: %w", baseDir, err)
	}
	lock := flock.New(filepath.Join(baseDir, workspaceLockFile))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire workspace lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("workspace %s is locked by another running instance", baseDir)
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			logger.FromContext(ctx).Warn("Failed to release workspace lock", "error", err)
		}
	}, nil
}

func portAvailable(host string, port int) bool {
	listener, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return false
	}
	_ = listener.Close()
	return true
}

// buildState assembles every service the server runs on. The returned
// cleanup closes the model client and the database pool.
func buildState(ctx context.Context, cfg *config.Config) (*server.State, func(), error) {
	store, err := postgres.NewStore(ctx, &postgres.Config{ConnString: cfg.Database.ConnString})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	client, err := llm.NewDefaultFactory().CreateClient(ctx, &core.ProviderConfig{
		Provider: core.ProviderName(cfg.LLM.Provider),
		Model:    cfg.LLM.Model,
		APIKey:   cfg.LLM.APIKey.Value(),
		APIURL:   cfg.LLM.BaseURL,
	})
	if err != nil {
		_ = store.Close(ctx)
		return nil, nil, fmt.Errorf("failed to create llm client: %w", err)
	}
	cleanup := func() {
		log := logger.FromContext(ctx)
		if err := client.Close(); err != nil {
			log.Warn("Failed to close llm client", "error", err)
		}
		if err := store.Close(context.WithoutCancel(ctx)); err != nil {
			log.Warn("Failed to close database pool", "error", err)
		}
	}

	pool := store.Pool()
	fs := afero.NewOsFs()
	runner := cmdexec.NewRunner()

	ws := workspace.NewManager(fs, runner, &cfg.Workspace)
	packages := workspace.NewPackageService(ws,
		pkgmanager.NewInstaller(fs, runner, cfg.Workspace.UvBin),
		postgres.NewPackageRepo(pool))

	fileRepo := postgres.NewFileRepo(pool)
	errorRepo := postgres.NewErrorRepo(pool)
	errors := errorlog.NewService(errorRepo, fs)
	files := genfile.NewService(fileRepo, nil, packages, ws)
	files.SetFixer(orchestrator.NewHealer(client))

	projectRepo := postgres.NewProjectRepo(pool)
	projects := project.NewService(
		projectRepo,
		postgres.NewIntegrationRepo(pool),
		postgres.NewVisualizationRepo(pool),
		postgres.NewDataRequestRepo(pool),
		ws,
	)
	taskRepo := postgres.NewTaskRepo(pool)
	tasks := task.NewService(taskRepo)
	chatRepo := postgres.NewChatRepo(pool)
	chats := chat.NewService(chatRepo)
	contexts := aicontext.NewLoader(projectRepo, taskRepo, fileRepo, errorRepo, chatRepo,
		postgres.NewContextRepo(pool))
	database := dbadmin.NewService(
		postgres.NewMigrationRepo(pool),
		postgres.NewLogRepo(pool),
		postgres.NewExecutor(pool),
	)

	builder, err := preview.NewBuilder(fileRepo, errors, ws, fs, runner, &cfg.Preview)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to create preview builder: %w", err)
	}
	backends := backend.NewManager(ws, backend.NewSpawner(), fs, &cfg.Backends)

	dispatcher, err := tool.NewDispatcher(tool.Deps{
		Tasks:     tasks,
		Files:     files,
		Projects:  projects,
		Database:  database,
		Errors:    errors,
		Backends:  backends,
		Builder:   builder,
		Installer: packages,
		Paths:     ws,
		Runner:    runner,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to create tool dispatcher: %w", err)
	}

	state := &server.State{
		Projects:  projects,
		Files:     files,
		Tasks:     tasks,
		Chats:     chats,
		Errors:    errors,
		Contexts:  contexts,
		Database:  database,
		Builder:   builder,
		Backends:  backends,
		Packages:  packages,
		Workspace: ws,
		Tools:     dispatcher,
		LLM:       client,
		Store:     store,
		Sessions: server.NewSessions(server.SessionDeps{
			LLM:      client,
			Tools:    dispatcher,
			Contexts: contexts,
			Errors:   errors,
		}),
	}
	return state, cleanup, nil
}

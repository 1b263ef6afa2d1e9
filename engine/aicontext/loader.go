package aicontext

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/appforge/appforge/engine/chat"
	"github.com/appforge/appforge/engine/core"
	"github.com/appforge/appforge/engine/errorlog"
	"github.com/appforge/appforge/engine/genfile"
	"github.com/appforge/appforge/engine/project"
	"github.com/appforge/appforge/engine/task"
	"github.com/appforge/appforge/pkg/logger"
)

const (
	// DefaultMaxSize is roughly 6k tokens worth of characters.
	DefaultMaxSize  = 25000
	DefaultMaxFiles = 15
	DefaultMaxChat  = 10

	trimmedChatLen = 3
	maxStackInSnap = 500
)

type ProjectStore interface {
	Get(ctx context.Context, id core.ID) (*project.Project, error)
}

type TaskStore interface {
	ListByProject(ctx context.Context, projectID core.ID) ([]*task.Task, error)
}

type FileStore interface {
	ListActive(ctx context.Context, projectID core.ID) ([]*genfile.File, error)
}

type ErrorStore interface {
	ListByProject(ctx context.Context, projectID core.ID, status errorlog.Status) ([]*errorlog.Record, error)
}

type ChatStore interface {
	History(ctx context.Context, projectID core.ID, limit int) ([]*chat.Message, error)
}

// LoadOptions bounds what a snapshot pulls in.
type LoadOptions struct {
	IncludeFiles  bool
	IncludeTasks  bool
	IncludeErrors bool
	IncludeChat   bool
	MaxFiles      int
	MaxChat       int
	MaxSize       int
}

func DefaultLoadOptions() LoadOptions {
	return LoadOptions{
		IncludeFiles:  true,
		IncludeTasks:  true,
		IncludeErrors: true,
		IncludeChat:   true,
		MaxFiles:      DefaultMaxFiles,
		MaxChat:       DefaultMaxChat,
		MaxSize:       DefaultMaxSize,
	}
}

// Snapshot is one bounded view of a project's state, sized to fit inside a
// model system prompt.
type Snapshot struct {
	ProjectInfo   *ProjectInfo  `json:"project_info,omitempty"`
	Tasks         *TaskSection  `json:"tasks,omitempty"`
	Errors        []ErrorInfo   `json:"errors,omitempty"`
	Files         []FileInfo    `json:"files,omitempty"`
	StoredContext *Data         `json:"stored_context,omitempty"`
	ChatHistory   []MessageInfo `json:"chat_history,omitempty"`
}

type ProjectInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type TaskSection struct {
	Active            []TaskInfo `json:"active,omitempty"`
	RecentlyCompleted []TaskInfo `json:"recently_completed,omitempty"`
}

type TaskInfo struct {
	Title       string `json:"title"`
	Status      string `json:"status"`
	Priority    string `json:"priority"`
	Description string `json:"description,omitempty"`
}

type ErrorInfo struct {
	Kind    string `json:"type"`
	Message string `json:"message"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
	Stack   string `json:"stack,omitempty"`
}

type FileInfo struct {
	Path    string `json:"filepath"`
	Content string `json:"content,omitempty"`
}

type MessageInfo struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Loader assembles project snapshots and maintains the persisted agent
// memory behind them.
type Loader struct {
	projects ProjectStore
	tasks    TaskStore
	files    FileStore
	errors   ErrorStore
	chats    ChatStore
	contexts Repository
}

func NewLoader(
	projects ProjectStore,
	tasks TaskStore,
	files FileStore,
	errors ErrorStore,
	chats ChatStore,
	contexts Repository,
) *Loader {
	return &Loader{
		projects: projects,
		tasks:    tasks,
		files:    files,
		errors:   errors,
		chats:    chats,
		contexts: contexts,
	}
}

// Load assembles the project snapshot honouring opts. Snapshots over the
// size bound are shrunk in place: file contents go first, then chat
// history, then completed tasks.
func (l *Loader) Load(ctx context.Context, projectID core.ID, opts LoadOptions) (*Snapshot, error) {
	proj, err := l.projects.Get(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load project for context: %w", err)
	}
	snap := &Snapshot{
		ProjectInfo: &ProjectInfo{Name: proj.Title, Description: proj.Description},
	}
	if opts.IncludeTasks {
		if snap.Tasks, err = l.loadTasks(ctx, projectID); err != nil {
			return nil, err
		}
	}
	if opts.IncludeErrors {
		if snap.Errors, err = l.loadErrors(ctx, projectID); err != nil {
			return nil, err
		}
	}
	if opts.IncludeFiles {
		if snap.Files, err = l.loadFiles(ctx, projectID, opts.MaxFiles); err != nil {
			return nil, err
		}
	}
	if opts.IncludeChat {
		if snap.ChatHistory, err = l.loadChat(ctx, projectID, opts.MaxChat); err != nil {
			return nil, err
		}
	}
	stored, err := l.contexts.Get(ctx, projectID)
	switch {
	case err == nil:
		data := stored.Data
		snap.StoredContext = &data
	case !core.IsNotFound(err):
		return nil, fmt.Errorf("failed to load stored context: %w", err)
	}
	if size := snap.estimateSize(); opts.MaxSize > 0 && size > opts.MaxSize {
		snap.shrink(opts.MaxSize)
		logger.FromContext(ctx).Debug("context snapshot trimmed",
			"project_id", projectID, "from", size, "to", snap.estimateSize())
	}
	return snap, nil
}

func (l *Loader) loadTasks(ctx context.Context, projectID core.ID) (*TaskSection, error) {
	tasks, err := l.tasks.ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tasks for context: %w", err)
	}
	section := &TaskSection{}
	for _, t := range tasks {
		info := TaskInfo{
			Title:       t.Title,
			Status:      string(t.Status),
			Priority:    string(t.Priority),
			Description: t.Description,
		}
		if t.Status == task.StatusDone {
			section.RecentlyCompleted = append(section.RecentlyCompleted, info)
		} else {
			section.Active = append(section.Active, info)
		}
	}
	return section, nil
}

func (l *Loader) loadErrors(ctx context.Context, projectID core.ID) ([]ErrorInfo, error) {
	records, err := l.errors.ListByProject(ctx, projectID, errorlog.StatusOpen)
	if err != nil {
		return nil, fmt.Errorf("failed to load errors for context: %w", err)
	}
	infos := make([]ErrorInfo, 0, len(records))
	for _, r := range records {
		infos = append(infos, ErrorInfo{
			Kind:    string(r.Kind),
			Message: r.Message,
			File:    r.FilePath,
			Line:    r.LineNumber,
			Stack:   truncate(r.StackTrace, maxStackInSnap, ""),
		})
	}
	return infos, nil
}

func (l *Loader) loadFiles(ctx context.Context, projectID core.ID, maxFiles int) ([]FileInfo, error) {
	files, err := l.files.ListActive(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load files for context: %w", err)
	}
	sort.SliceStable(files, func(i, j int) bool {
		return files[i].UpdatedAt.After(files[j].UpdatedAt)
	})
	if maxFiles > 0 && len(files) > maxFiles {
		files = files[:maxFiles]
	}
	infos := make([]FileInfo, 0, len(files))
	for _, f := range files {
		infos = append(infos, FileInfo{Path: f.Path, Content: f.Content})
	}
	return infos, nil
}

func (l *Loader) loadChat(ctx context.Context, projectID core.ID, maxChat int) ([]MessageInfo, error) {
	if maxChat <= 0 {
		maxChat = DefaultMaxChat
	}
	messages, err := l.chats.History(ctx, projectID, maxChat)
	if err != nil {
		return nil, fmt.Errorf("failed to load chat history for context: %w", err)
	}
	infos := make([]MessageInfo, 0, len(messages))
	for _, m := range messages {
		infos = append(infos, MessageInfo{Role: string(m.Role), Content: m.Content})
	}
	return infos, nil
}

// estimateSize measures the snapshot as serialized characters, the same
// currency MaxSize is expressed in.
func (s *Snapshot) estimateSize() int {
	raw, err := json.Marshal(s)
	if err != nil {
		return 0
	}
	return len(raw)
}

// shrink drops detail until the snapshot fits: file contents first so paths
// survive, then all but the last few chat messages, then completed tasks.
func (s *Snapshot) shrink(maxSize int) {
	for i := range s.Files {
		s.Files[i].Content = ""
	}
	if s.estimateSize() <= maxSize {
		return
	}
	if len(s.ChatHistory) > trimmedChatLen {
		s.ChatHistory = s.ChatHistory[len(s.ChatHistory)-trimmedChatLen:]
	}
	if s.estimateSize() <= maxSize {
		return
	}
	if s.Tasks != nil {
		s.Tasks.RecentlyCompleted = nil
	}
}

// Stored returns the persisted agent context, or a fresh empty record when
// the project has none yet.
func (l *Loader) Stored(ctx context.Context, projectID core.ID) (*AgentContext, error) {
	record, err := l.contexts.Get(ctx, projectID)
	if core.IsNotFound(err) {
		now := time.Now().UTC()
		return &AgentContext{ProjectID: projectID, CreatedAt: now, UpdatedAt: now}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load stored context: %w", err)
	}
	return record, nil
}

// UpdateInput carries one memory update.
type UpdateInput struct {
	ProjectID core.ID `json:"project_id" validate:"required"`
	SessionID string  `json:"session_id,omitempty"`
	Data      Data    `json:"context_data"`
	// Merge folds Data into the stored bag; false replaces it wholesale.
	Merge bool `json:"merge"`
}

// UpdateMemory applies input to the project's persisted context and returns
// the stored result.
func (l *Loader) UpdateMemory(ctx context.Context, input *UpdateInput) (*AgentContext, error) {
	now := time.Now().UTC()
	record, err := l.contexts.Get(ctx, input.ProjectID)
	if core.IsNotFound(err) {
		record = &AgentContext{ProjectID: input.ProjectID, CreatedAt: now}
	} else if err != nil {
		return nil, fmt.Errorf("failed to load stored context: %w", err)
	}
	if input.Merge {
		if err := record.Data.Merge(input.Data); err != nil {
			return nil, err
		}
	} else {
		record.Data = input.Data
	}
	if input.SessionID != "" {
		record.SessionID = input.SessionID
	}
	record.UpdatedAt = now
	if err := l.contexts.Upsert(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to persist context: %w", err)
	}
	logger.FromContext(ctx).Debug("agent context updated",
		"project_id", input.ProjectID, "merge", input.Merge)
	return record, nil
}

// Reset clears the stored memory for a project. Resetting a project without
// stored context is a no-op.
func (l *Loader) Reset(ctx context.Context, projectID core.ID) error {
	if err := l.contexts.Delete(ctx, projectID); err != nil && !core.IsNotFound(err) {
		return fmt.Errorf("failed to reset context: %w", err)
	}
	return nil
}

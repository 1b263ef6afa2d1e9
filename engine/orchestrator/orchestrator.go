package orchestrator

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/appforge/appforge/engine/aicontext"
	"github.com/appforge/appforge/engine/core"
	"github.com/appforge/appforge/engine/llm"
	"github.com/appforge/appforge/engine/tool"
	"github.com/appforge/appforge/pkg/logger"
)

const (
	// maxToolIterations bounds one tool loop; the model gets this many
	// rounds of tool calls before the loop is cut off.
	maxToolIterations = 5
	// maxHealAttempts bounds the build-check-fix cycle after generation.
	maxHealAttempts = 3
	// maxFixesPerAttempt caps how many diagnostics one heal pass touches.
	maxFixesPerAttempt = 3
	// maxRecoveryAttempts bounds RecoverFromError's debugging retries.
	maxRecoveryAttempts = 3

	streamBuffer = 64

	defaultBuildSettle     = 2 * time.Second
	defaultRecoveryBackoff = 500 * time.Millisecond
)

// Intent is the routing label assigned to an incoming user message.
type Intent string

const (
	IntentFeatureRequest Intent = "feature_request"
	IntentDebug          Intent = "debug"
	IntentQuestion       Intent = "question"
	IntentChat           Intent = "chat"
)

// ToolRunner executes registered tools on behalf of the model.
// *tool.Dispatcher satisfies it.
type ToolRunner interface {
	Dispatch(ctx context.Context, projectID core.ID, name string, args json.RawMessage) tool.Result
	LLMTools() []llm.ToolDefinition
}

// ContextLoader reads and writes the project's agent memory.
// *aicontext.Loader satisfies it.
type ContextLoader interface {
	Load(ctx context.Context, projectID core.ID, opts aicontext.LoadOptions) (*aicontext.Snapshot, error)
	UpdateMemory(ctx context.Context, input *aicontext.UpdateInput) (*aicontext.AgentContext, error)
}

// ErrorMarker bumps the heal counter on a diagnostic each time the healer
// writes a fix for it. *errorlog.Service satisfies it.
type ErrorMarker interface {
	IncrementHealAttempts(ctx context.Context, id core.ID) error
}

// Deps wires one orchestrator to its project.
type Deps struct {
	ProjectID core.ID
	SessionID string
	LLM       llm.Client
	Tools     ToolRunner
	Contexts  ContextLoader
	Errors    ErrorMarker
	// BuildSettle is the pause between triggering a build and reading its
	// diagnostics, letting runtime errors surface. Zero selects 2s.
	BuildSettle time.Duration
	// RecoveryBackoff seeds the backoff between recovery retries.
	// Zero selects 500ms.
	RecoveryBackoff time.Duration
}

// Orchestrator drives one conversation for one project: it classifies each
// message, plans and generates code for feature requests, and runs the tool
// loop for everything else. Not safe for concurrent use; the server keeps
// one per active session.
type Orchestrator struct {
	projectID core.ID
	sessionID string
	llm       llm.Client
	tools     ToolRunner
	contexts  ContextLoader
	errors    ErrorMarker
	settle    time.Duration
	backoff   time.Duration

	dialog   []llm.Message
	snapshot *aicontext.Snapshot
	loaded   bool
}

func New(deps Deps) (*Orchestrator, error) {
	if deps.ProjectID == "" {
		return nil, core.NewError(nil, "INVALID_INPUT", map[string]any{"reason": "project id is required"})
	}
	if deps.LLM == nil {
		return nil, core.NewError(nil, "INVALID_INPUT", map[string]any{"reason": "llm client is required"})
	}
	if deps.Tools == nil {
		return nil, core.NewError(nil, "INVALID_INPUT", map[string]any{"reason": "tool runner is required"})
	}
	if deps.Contexts == nil {
		return nil, core.NewError(nil, "INVALID_INPUT", map[string]any{"reason": "context loader is required"})
	}
	if deps.Errors == nil {
		return nil, core.NewError(nil, "INVALID_INPUT", map[string]any{"reason": "error marker is required"})
	}
	if deps.BuildSettle <= 0 {
		deps.BuildSettle = defaultBuildSettle
	}
	if deps.RecoveryBackoff <= 0 {
		deps.RecoveryBackoff = defaultRecoveryBackoff
	}
	return &Orchestrator{
		projectID: deps.ProjectID,
		sessionID: deps.SessionID,
		llm:       deps.LLM,
		tools:     deps.Tools,
		contexts:  deps.Contexts,
		errors:    deps.Errors,
		settle:    deps.BuildSettle,
		backoff:   deps.RecoveryBackoff,
	}, nil
}

// ClearHistory drops the accumulated conversation.
func (o *Orchestrator) ClearHistory() {
	o.dialog = nil
}

// AnalyzeIntent classifies one user message. Unrecognised replies fall back
// to chat rather than failing the turn.
func (o *Orchestrator) AnalyzeIntent(ctx context.Context, message string) (Intent, error) {
	resp, err := o.llm.GenerateContent(ctx, &llm.Request{
		SystemPrompt: intentPrompt,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: message},
		},
		Options: llm.CallOptions{Temperature: llm.Temp(0)},
	})
	if err != nil {
		return "", core.NewError(err, "INTENT_FAILED", nil)
	}
	label := Intent(strings.ToLower(strings.TrimSpace(resp.Content)))
	switch label {
	case IntentFeatureRequest, IntentDebug, IntentQuestion, IntentChat:
		return label, nil
	}
	logger.FromContext(ctx).Debug("unrecognised intent label, defaulting to chat",
		"label", string(label))
	return IntentChat, nil
}

// CreateProjectPlan asks the model for a full implementation plan.
func (o *Orchestrator) CreateProjectPlan(ctx context.Context, message string) (*Plan, error) {
	resp, err := o.llm.GenerateContent(ctx, &llm.Request{
		SystemPrompt: planningPrompt,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: message + "\n\nPlease respond with a valid JSON object."},
		},
		Options: llm.CallOptions{
			Temperature: llm.Temp(0.7),
			UseJSONMode: true,
		},
	})
	if err != nil {
		return nil, core.NewError(err, "PLANNING_FAILED", nil)
	}
	return ParsePlan(ctx, resp.Content)
}

// GenerateWithPlanning handles one user message end to end and streams
// progress chunks. The channel is closed when the turn completes, fails, or
// ctx is cancelled; it must be drained by a single consumer.
func (o *Orchestrator) GenerateWithPlanning(ctx context.Context, userMessage string) (<-chan string, error) {
	if strings.TrimSpace(userMessage) == "" {
		return nil, core.NewError(nil, "INVALID_INPUT", map[string]any{"reason": "message is empty"})
	}
	ch := make(chan string, streamBuffer)
	go func() {
		defer close(ch)
		emit := func(chunk string) bool {
			select {
			case ch <- chunk:
				return true
			case <-ctx.Done():
				return false
			}
		}
		if err := o.run(ctx, userMessage, emit); err != nil {
			logger.FromContext(ctx).Error("generation turn failed",
				"project_id", o.projectID, "error", err)
			emit("\n❌ Error: " + err.Error() + "\n")
		}
	}()
	return ch, nil
}

func (o *Orchestrator) run(ctx context.Context, userMessage string, emit emitFunc) error {
	log := logger.FromContext(ctx)
	if !o.loaded {
		snap, err := o.contexts.Load(ctx, o.projectID, aicontext.DefaultLoadOptions())
		if err != nil {
			log.Warn("context loading failed", "project_id", o.projectID, "error", err)
			if !emit("[Warning: Context loading failed]\n") {
				return nil
			}
		} else {
			o.snapshot = snap
			if !emit("[Loading project context...]\n") {
				return nil
			}
		}
		o.loaded = true
	}

	intent, err := o.AnalyzeIntent(ctx, userMessage)
	if err != nil {
		return err
	}
	if !emit("[Intent: " + string(intent) + "]") {
		return nil
	}
	log.Info("message classified", "project_id", o.projectID, "intent", string(intent))

	switch intent {
	case IntentFeatureRequest:
		return o.runFeatureRequest(ctx, userMessage, emit)
	case IntentDebug:
		return o.streamWithTools(ctx, userMessage, debuggingPrompt, emit)
	default:
		return o.streamWithTools(ctx, userMessage, systemPrompt, emit)
	}
}

// emitFunc pushes one chunk to the consumer; false means the consumer is
// gone and the producer should stop.
type emitFunc func(chunk string) bool

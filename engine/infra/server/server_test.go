package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/appforge/appforge/engine/aicontext"
	"github.com/appforge/appforge/engine/chat"
	"github.com/appforge/appforge/engine/core"
	"github.com/appforge/appforge/engine/errorlog"
	"github.com/appforge/appforge/engine/genfile"
	"github.com/appforge/appforge/engine/llm"
	"github.com/appforge/appforge/engine/project"
	"github.com/appforge/appforge/engine/task"
	"github.com/appforge/appforge/engine/tool"
)

// scriptedLLM replays canned responses in call order and repeats the last
// one once the script runs out.
type scriptedLLM struct {
	mu        sync.Mutex
	responses []*llm.Response
	calls     int
}

func (s *scriptedLLM) GenerateContent(_ context.Context, _ *llm.Request) (*llm.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.calls
	s.calls++
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	return s.responses[idx], nil
}

func (s *scriptedLLM) Close() error { return nil }

type stubToolRunner struct{}

func (stubToolRunner) Dispatch(context.Context, core.ID, string, json.RawMessage) tool.Result {
	return tool.Result{Success: true}
}

func (stubToolRunner) LLMTools() []llm.ToolDefinition { return nil }

type stubContextLoader struct{}

func (stubContextLoader) Load(context.Context, core.ID, aicontext.LoadOptions) (*aicontext.Snapshot, error) {
	return &aicontext.Snapshot{ProjectInfo: &aicontext.ProjectInfo{Name: "Test Project"}}, nil
}

func (stubContextLoader) UpdateMemory(context.Context, *aicontext.UpdateInput) (*aicontext.AgentContext, error) {
	return nil, nil
}

type stubErrorMarker struct{}

func (stubErrorMarker) IncrementHealAttempts(context.Context, core.ID) error { return nil }

type stubHealth struct{ err error }

func (s stubHealth) HealthCheck(context.Context) error { return s.err }

type memChatRepo struct {
	mu       sync.Mutex
	messages []*chat.Message
}

func (r *memChatRepo) Append(_ context.Context, message *chat.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
	return nil
}

func (r *memChatRepo) History(_ context.Context, projectID core.ID, limit int) ([]*chat.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*chat.Message
	for _, m := range r.messages {
		if m.ProjectID == projectID {
			out = append(out, m)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (r *memChatRepo) CountByProject(_ context.Context, projectID core.ID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, m := range r.messages {
		if m.ProjectID == projectID {
			count++
		}
	}
	return count, nil
}

func (r *memChatRepo) byRole(projectID core.ID, role chat.Role) []*chat.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*chat.Message
	for _, m := range r.messages {
		if m.ProjectID == projectID && m.Role == role {
			out = append(out, m)
		}
	}
	return out
}

type memErrorRepo struct {
	mu      sync.Mutex
	records map[core.ID]*errorlog.Record
	order   []core.ID
}

func newMemErrorRepo() *memErrorRepo {
	return &memErrorRepo{records: make(map[core.ID]*errorlog.Record)}
}

func (r *memErrorRepo) Insert(_ context.Context, record *errorlog.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[record.ID] = record
	r.order = append(r.order, record.ID)
	return nil
}

func (r *memErrorRepo) Get(_ context.Context, id core.ID) (*errorlog.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return record, nil
}

func (r *memErrorRepo) ListByProject(_ context.Context, projectID core.ID, status errorlog.Status) ([]*errorlog.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*errorlog.Record
	for i := len(r.order) - 1; i >= 0; i-- {
		record := r.records[r.order[i]]
		if record == nil || record.ProjectID != projectID {
			continue
		}
		if status != "" && record.Status != status {
			continue
		}
		out = append(out, record)
	}
	return out, nil
}

func (r *memErrorRepo) Resolve(_ context.Context, id core.ID, notes string) (*errorlog.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	now := time.Now().UTC()
	record.Status = errorlog.StatusResolved
	record.ResolvedAt = &now
	if notes != "" {
		if record.Context == nil {
			record.Context = make(map[string]any)
		}
		record.Context["resolution_notes"] = notes
	}
	return record, nil
}

func (r *memErrorRepo) IncrementHealAttempts(_ context.Context, id core.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[id]
	if !ok {
		return core.ErrNotFound
	}
	record.HealAttempts++
	return nil
}

func (r *memErrorRepo) Delete(_ context.Context, id core.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[id]; !ok {
		return core.ErrNotFound
	}
	delete(r.records, id)
	return nil
}

// testEnv is a State wired with in-memory repositories for the surfaces the
// handler tests exercise. The remaining services are present but inert.
type testEnv struct {
	state     *State
	chatRepo  *memChatRepo
	errorRepo *memErrorRepo
}

func newTestEnv(client llm.Client) *testEnv {
	if client == nil {
		client = &scriptedLLM{responses: []*llm.Response{{Content: "chat"}, {Content: "Done."}}}
	}
	chatRepo := &memChatRepo{}
	errorRepo := newMemErrorRepo()
	state := &State{
		Projects: project.NewService(nil, nil, nil, nil, nil),
		Files:    genfile.NewService(nil, nil, nil, nil),
		Tasks:    task.NewService(nil),
		Chats:    chat.NewService(chatRepo),
		Errors:   errorlog.NewService(errorRepo, afero.NewMemMapFs()),
		Contexts: aicontext.NewLoader(nil, nil, nil, nil, nil, nil),
		Store:    stubHealth{},
		Sessions: NewSessions(SessionDeps{
			LLM:      client,
			Tools:    stubToolRunner{},
			Contexts: stubContextLoader{},
			Errors:   stubErrorMarker{},
		}),
	}
	return &testEnv{state: state, chatRepo: chatRepo, errorRepo: errorRepo}
}

func newTestRouter(t *testing.T, state *State) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	require.NoError(t, RegisterRoutes(engine, state))
	return engine
}

func doRequest(t *testing.T, engine *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	request := httptest.NewRequest(method, path, reader)
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	recorder := httptest.NewRecorder()
	engine.ServeHTTP(recorder, request)
	return recorder
}

func decodeData(t *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var envelope struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope))
	return envelope.Data
}

package server

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/appforge/appforge/engine/core"
	"github.com/appforge/appforge/engine/llm"
	"github.com/appforge/appforge/engine/orchestrator"
)

// DefaultSessionID names the conversation used when a request carries no
// session of its own.
const DefaultSessionID = "default"

// SessionDeps is the template every per-session orchestrator is built from.
type SessionDeps struct {
	LLM             llm.Client
	Tools           orchestrator.ToolRunner
	Contexts        orchestrator.ContextLoader
	Errors          orchestrator.ErrorMarker
	BuildSettle     time.Duration
	RecoveryBackoff time.Duration
}

type session struct {
	mu   sync.Mutex
	orch *orchestrator.Orchestrator
}

// Sessions keeps one orchestrator per project conversation. Orchestrators
// are not safe for concurrent use, so every session carries its own lock
// and concurrent requests against the same session serialize on it.
type Sessions struct {
	mu      sync.Mutex
	deps    SessionDeps
	entries map[string]*session
}

func NewSessions(deps SessionDeps) *Sessions {
	return &Sessions{
		deps:    deps,
		entries: make(map[string]*session),
	}
}

func sessionKey(projectID core.ID, sessionID string) string {
	return string(projectID) + "/" + sessionID
}

func (s *Sessions) acquire(projectID core.ID, sessionID string) (*session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := sessionKey(projectID, sessionID)
	if entry, ok := s.entries[key]; ok {
		return entry, nil
	}
	orch, err := orchestrator.New(orchestrator.Deps{
		ProjectID:       projectID,
		SessionID:       sessionID,
		LLM:             s.deps.LLM,
		Tools:           s.deps.Tools,
		Contexts:        s.deps.Contexts,
		Errors:          s.deps.Errors,
		BuildSettle:     s.deps.BuildSettle,
		RecoveryBackoff: s.deps.RecoveryBackoff,
	})
	if err != nil {
		return nil, err
	}
	entry := &session{orch: orch}
	s.entries[key] = entry
	return entry, nil
}

// Do runs fn against the session's orchestrator while holding the session
// lock. The session is created on first use. fn may block for the length of
// a full generation stream; concurrent calls for the same session wait.
func (s *Sessions) Do(
	ctx context.Context,
	projectID core.ID,
	sessionID string,
	fn func(ctx context.Context, o *orchestrator.Orchestrator) error,
) error {
	if strings.TrimSpace(sessionID) == "" {
		sessionID = DefaultSessionID
	}
	entry, err := s.acquire(projectID, sessionID)
	if err != nil {
		return err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return fn(ctx, entry.orch)
}

// Reset drops every session belonging to the project. In-flight calls keep
// their orchestrator; the next request builds a fresh one.
func (s *Sessions) Reset(projectID core.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix := string(projectID) + "/"
	for key := range s.entries {
		if strings.HasPrefix(key, prefix) {
			delete(s.entries, key)
		}
	}
}

// Len reports the number of live sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

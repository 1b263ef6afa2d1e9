package server

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appforge/appforge/engine/chat"
	"github.com/appforge/appforge/engine/core"
	"github.com/appforge/appforge/engine/infra/server/routes"
	"github.com/appforge/appforge/engine/llm"
)

func TestChatStreamHandler(t *testing.T) {
	projectID := core.MustNewID()

	t.Run("Should stream the turn and record both sides", func(t *testing.T) {
		client := &scriptedLLM{responses: []*llm.Response{
			{Content: "chat"},
			{Content: "Hello! How can I help?"},
		}}
		env := newTestEnv(client)
		engine := newTestRouter(t, env.state)

		recorder := doRequest(t, engine, http.MethodPost, routes.AI()+"/chat/stream", map[string]any{
			"project_id": projectID,
			"content":    "hi",
		})
		require.Equal(t, http.StatusOK, recorder.Code)
		assert.Equal(t, "text/plain; charset=utf-8", recorder.Header().Get("Content-Type"))

		body := recorder.Body.String()
		assert.Contains(t, body, "[Loading project context...]")
		assert.Contains(t, body, "[Intent: chat]")
		assert.Contains(t, body, "Hello! How can I help?")

		users := env.chatRepo.byRole(projectID, chat.RoleUser)
		require.Len(t, users, 1)
		assert.Equal(t, "hi", users[0].Content)

		assistants := env.chatRepo.byRole(projectID, chat.RoleAssistant)
		require.Len(t, assistants, 1)
		assert.Equal(t, body, assistants[0].Content)
	})

	t.Run("Should reject an empty message", func(t *testing.T) {
		env := newTestEnv(nil)
		engine := newTestRouter(t, env.state)

		recorder := doRequest(t, engine, http.MethodPost, routes.AI()+"/chat/stream", map[string]any{
			"project_id": projectID,
			"content":    "   ",
		})
		require.Equal(t, http.StatusBadRequest, recorder.Code)
		assert.Empty(t, env.chatRepo.byRole(projectID, chat.RoleUser))
	})

	t.Run("Should reject a missing project id", func(t *testing.T) {
		env := newTestEnv(nil)
		engine := newTestRouter(t, env.state)

		recorder := doRequest(t, engine, http.MethodPost, routes.AI()+"/chat/stream", map[string]any{
			"content": "hi",
		})
		require.Equal(t, http.StatusBadRequest, recorder.Code)
	})

	t.Run("Should keep the dialog across turns in one session", func(t *testing.T) {
		client := &scriptedLLM{responses: []*llm.Response{
			{Content: "chat"},
			{Content: "First reply."},
			{Content: "chat"},
			{Content: "Second reply."},
		}}
		env := newTestEnv(client)
		engine := newTestRouter(t, env.state)

		first := doRequest(t, engine, http.MethodPost, routes.AI()+"/chat/stream", map[string]any{
			"project_id": projectID,
			"content":    "build a todo list",
		})
		require.Equal(t, http.StatusOK, first.Code)

		second := doRequest(t, engine, http.MethodPost, routes.AI()+"/chat/stream", map[string]any{
			"project_id": projectID,
			"content":    "now add due dates",
		})
		require.Equal(t, http.StatusOK, second.Code)
		assert.Contains(t, second.Body.String(), "Second reply.")
		assert.Len(t, env.chatRepo.byRole(projectID, chat.RoleAssistant), 2)
	})
}

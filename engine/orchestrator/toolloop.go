package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/appforge/appforge/engine/aicontext"
	"github.com/appforge/appforge/engine/core"
	"github.com/appforge/appforge/engine/llm"
	"github.com/appforge/appforge/pkg/logger"
)

// streamWithTools runs the conversational tool loop: the model replies, its
// tool calls are executed and fed back, and the exchange repeats until the
// model stops calling tools or the iteration budget runs out. The dialog
// accumulates across calls so follow-up turns keep their history.
func (o *Orchestrator) streamWithTools(ctx context.Context, message, system string, emit emitFunc) error {
	if o.snapshot != nil {
		system = aicontext.FormatPrompt(o.snapshot) + "\n\n---\n\n" + system
	}
	o.dialog = append(o.dialog, llm.Message{Role: llm.RoleUser, Content: message})
	tools := o.tools.LLMTools()

	type executedTool struct {
		name string
		args json.RawMessage
	}
	var executed []executedTool
	exhausted := true

	for iteration := 0; iteration < maxToolIterations; iteration++ {
		resp, err := o.llm.GenerateContent(ctx, &llm.Request{
			SystemPrompt: system,
			Messages:     o.dialog,
			Tools:        tools,
			Options:      llm.CallOptions{ToolChoice: "auto"},
		})
		if err != nil {
			return core.NewError(err, "LLM_FAILED", nil)
		}
		if resp.Content != "" {
			if !emit(resp.Content) {
				return nil
			}
		}
		if len(resp.ToolCalls) == 0 {
			o.dialog = append(o.dialog, llm.Message{Role: llm.RoleAssistant, Content: resp.Content})
			exhausted = false
			break
		}

		if !emit("\n\n🔧 **Executing Tools:**\n") {
			return nil
		}
		o.dialog = append(o.dialog, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		results := make([]llm.ToolResult, 0, len(resp.ToolCalls))
		for _, call := range resp.ToolCalls {
			if !emit(fmt.Sprintf("- `%s`: ", call.Name)) {
				return nil
			}
			result := o.tools.Dispatch(ctx, o.projectID, call.Name, call.Arguments)
			if result.Success {
				executed = append(executed, executedTool{name: call.Name, args: call.Arguments})
				if !emit("✅\n") {
					return nil
				}
			} else if !emit(fmt.Sprintf("⚠️ %s\n", resultError(result))) {
				return nil
			}
			results = append(results, llm.ToolResult{
				ID:          call.ID,
				Name:        call.Name,
				JSONContent: result.JSON(),
			})
		}
		o.dialog = append(o.dialog, llm.Message{Role: llm.RoleTool, ToolResults: results})
		if !emit("\n") {
			return nil
		}
	}

	if exhausted {
		emit("\n⚠️ Maximum tool execution iterations reached. Stopping to prevent infinite loops.\n")
	}

	if len(executed) > 0 {
		files := make([]string, 0)
		names := make([]string, 0, len(executed))
		for _, t := range executed {
			names = append(names, t.name)
			if t.name != "create_file" {
				continue
			}
			var payload struct {
				FilePath string `json:"file_path"`
			}
			if err := json.Unmarshal(t.args, &payload); err == nil && payload.FilePath != "" {
				files = append(files, payload.FilePath)
			}
		}
		update := &aicontext.UpdateInput{
			ProjectID: o.projectID,
			SessionID: o.sessionID,
			Data: aicontext.Data{
				FilesGenerated: files,
				AIMemory: map[string]any{
					"last_action": "tool_execution",
					"tools_used":  names,
					"timestamp":   time.Now().UTC().Format(time.RFC3339),
				},
			},
			Merge: true,
		}
		if _, err := o.contexts.UpdateMemory(ctx, update); err != nil {
			logger.FromContext(ctx).Warn("memory update failed",
				"project_id", o.projectID, "error", err)
		}
	}
	return nil
}

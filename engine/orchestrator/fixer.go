package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/appforge/appforge/engine/core"
	"github.com/appforge/appforge/engine/llm"
	"github.com/appforge/appforge/engine/validate"
)

// Healer is the model-backed syntax fixer the file service calls when a
// generated file fails validation. It satisfies genfile.CodeFixer.
type Healer struct {
	llm llm.Client
}

func NewHealer(client llm.Client) *Healer {
	return &Healer{llm: client}
}

const healerMaxTokens = 2000

// FixCode asks the model for a whole-file replacement that fixes exactly the
// reported issues.
func (h *Healer) FixCode(ctx context.Context, language validate.Language, content string, issues []validate.Issue) (string, error) {
	details := make([]string, 0, len(issues))
	for _, issue := range issues {
		line := fmt.Sprintf("- Line %d: %s", issue.Line, issue.Message)
		if issue.Suggestion != "" {
			line += fmt.Sprintf(" (Suggestion: %s)", issue.Suggestion)
		}
		details = append(details, line)
	}
	resp, err := h.llm.GenerateContent(ctx, &llm.Request{
		SystemPrompt: syntaxFixSystem,
		Messages: []llm.Message{
			{
				Role:    llm.RoleUser,
				Content: syntaxFixPrompt(string(language), strings.Join(details, "\n"), content),
			},
		},
		Options: llm.CallOptions{
			Temperature: llm.Temp(0.1),
			MaxTokens:   healerMaxTokens,
		},
	})
	if err != nil {
		return "", core.NewError(err, "HEAL_FAILED", nil)
	}
	return stripWrappingFence(resp.Content), nil
}

// stripWrappingFence drops a markdown fence the model wrapped the whole file
// in despite instructions not to.
func stripWrappingFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	lines := strings.Split(trimmed, "\n")
	if len(lines) <= 2 {
		return trimmed
	}
	lines = lines[1:]
	if strings.HasPrefix(strings.TrimSpace(lines[len(lines)-1]), "```") {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

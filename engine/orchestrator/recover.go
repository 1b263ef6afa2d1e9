package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/sethvargo/go-retry"

	"github.com/appforge/appforge/engine/core"
	"github.com/appforge/appforge/pkg/logger"
)

// RecoveryInput describes a failure reported from outside the conversation,
// typically a runtime error captured by the preview or backend monitor.
type RecoveryInput struct {
	Message    string         `json:"message"`
	StackTrace string         `json:"stack_trace,omitempty"`
	Context    map[string]any `json:"context,omitempty"`
}

// RecoverFromError drives the debugging tool loop against a reported error,
// retrying with backoff when an attempt fails outright. Each retry carries
// the previous failure so the model tries a different approach. The returned
// channel follows the same contract as GenerateWithPlanning.
func (o *Orchestrator) RecoverFromError(ctx context.Context, input *RecoveryInput) (<-chan string, error) {
	if input == nil || strings.TrimSpace(input.Message) == "" {
		return nil, core.NewError(nil, "INVALID_INPUT", map[string]any{"reason": "error message is required"})
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
		o.recover(ctx, input, emit)
	}()
	return ch, nil
}

func (o *Orchestrator) recover(ctx context.Context, input *RecoveryInput, emit emitFunc) {
	log := logger.FromContext(ctx)
	emit("\n🔍 **Error Recovery Mode Activated**\n\n")
	emit(fmt.Sprintf("Error: `%s`\n\n", input.Message))

	errorContext := recoveryContext(input.Message, input.StackTrace, input.Context)
	attempt := 0
	recovered := false

	backoff := retry.WithMaxRetries(maxRecoveryAttempts-1, retry.NewFibonacci(o.backoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			emit(fmt.Sprintf("\n🔄 **Retry Attempt %d/%d**\n\n", attempt, maxRecoveryAttempts))
		}
		if err := o.streamWithTools(ctx, errorContext, debuggingPrompt, emit); err != nil {
			emit(fmt.Sprintf("\n❌ Fix attempt %d failed: %v\n", attempt, err))
			errorContext = fmt.Sprintf(
				"Previous fix failed with: %v\n\nPlease try a different approach.\n\n%s",
				err, errorContext)
			return retry.RetryableError(err)
		}
		emit("\n✅ Fix attempt completed\n")
		recovered = true
		return nil
	})

	if recovered {
		emit("\n🎉 **Error successfully recovered!**\n")
		return
	}
	log.Error("error recovery exhausted", "project_id", o.projectID,
		"attempts", attempt, "error", err)
	emit(fmt.Sprintf("\n⚠️ **Could not auto-fix after %d attempts.**\n", attempt))
	emit("Manual intervention may be required.\n")
}

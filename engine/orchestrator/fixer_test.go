package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appforge/appforge/engine/genfile"
	"github.com/appforge/appforge/engine/llm"
	"github.com/appforge/appforge/engine/validate"
)

var _ genfile.CodeFixer = (*Healer)(nil)

func TestHealerFixCode(t *testing.T) {
	t.Run("Should send the issues and return the fixed code", func(t *testing.T) {
		scripted := &scriptedLLM{reply: func(*llm.Request) (*llm.Response, error) {
			return &llm.Response{Content: "def f():\n    pass"}, nil
		}}
		healer := NewHealer(scripted)
		fixed, err := healer.FixCode(context.Background(), validate.LanguagePython, "def f(\n    pass", []validate.Issue{
			{Type: "SyntaxError", Message: "invalid syntax", Line: 1, Suggestion: "close the parenthesis"},
			{Type: "SyntaxError", Message: "unexpected indent", Line: 2},
		})
		require.NoError(t, err)
		assert.Equal(t, "def f():\n    pass", fixed)

		require.Len(t, scripted.requests, 1)
		req := scripted.requests[0]
		assert.Equal(t, syntaxFixSystem, req.SystemPrompt)
		require.NotNil(t, req.Options.Temperature)
		assert.InDelta(t, 0.1, *req.Options.Temperature, 1e-9)
		assert.Equal(t, int32(healerMaxTokens), req.Options.MaxTokens)

		prompt := req.Messages[0].Content
		assert.Contains(t, prompt, "Fix the syntax errors in this python code.")
		assert.Contains(t, prompt, "- Line 1: invalid syntax (Suggestion: close the parenthesis)")
		assert.Contains(t, prompt, "- Line 2: unexpected indent")
		assert.NotContains(t, prompt, "Line 2: unexpected indent (Suggestion:")
		assert.Contains(t, prompt, "```python\ndef f(\n    pass\n```")
	})

	t.Run("Should strip a wrapping fence from the reply", func(t *testing.T) {
		scripted := &scriptedLLM{reply: func(*llm.Request) (*llm.Response, error) {
			return &llm.Response{Content: "```python\nx = 1\ny = 2\n```"}, nil
		}}
		healer := NewHealer(scripted)
		fixed, err := healer.FixCode(context.Background(), validate.LanguagePython, "x =", nil)
		require.NoError(t, err)
		assert.Equal(t, "x = 1\ny = 2", fixed)
	})

	t.Run("Should keep unfenced replies as they are", func(t *testing.T) {
		scripted := &scriptedLLM{reply: func(*llm.Request) (*llm.Response, error) {
			return &llm.Response{Content: "  const x = 1\n"}, nil
		}}
		healer := NewHealer(scripted)
		fixed, err := healer.FixCode(context.Background(), validate.LanguageTypeScript, "const x =", nil)
		require.NoError(t, err)
		assert.Equal(t, "const x = 1", fixed)
	})

	t.Run("Should surface provider failures", func(t *testing.T) {
		scripted := &scriptedLLM{reply: func(*llm.Request) (*llm.Response, error) {
			return nil, errors.New("model offline")
		}}
		healer := NewHealer(scripted)
		_, err := healer.FixCode(context.Background(), validate.LanguagePython, "x", nil)
		assertErrorCode(t, err, "HEAL_FAILED")
	})
}

func TestStripWrappingFence(t *testing.T) {
	t.Run("Should handle fences without a trailing marker", func(t *testing.T) {
		assert.Equal(t, "x = 1\ny = 2", stripWrappingFence("```python\nx = 1\ny = 2"))
	})

	t.Run("Should keep tiny fenced content intact", func(t *testing.T) {
		assert.Equal(t, "```python\n```", stripWrappingFence("```python\n```"))
	})
}

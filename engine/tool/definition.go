package tool

import (
	"context"
	"encoding/json"

	"github.com/appforge/appforge/engine/llm"
	"github.com/appforge/appforge/engine/schema"
)

// Definition declares one tool the model may call: its name, what it does,
// and the JSON Schema its arguments must satisfy.
type Definition struct {
	Name        string
	Description string
	Parameters  schema.Schema
}

// Handler executes one tool call. Arguments arrive as the validated JSON
// object with project_id already injected; handlers never return an error,
// they encode failures into the Result.
type Handler func(ctx context.Context, args json.RawMessage) Result

// LLMDefinition converts the declaration into the model-facing form.
func (d Definition) LLMDefinition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        d.Name,
		Description: d.Description,
		Parameters:  d.Parameters,
	}
}

func objectSchema(required []string, properties map[string]any) schema.Schema {
	s := schema.Schema{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// decodeArgs unmarshals the argument payload into a typed request struct.
func decodeArgs[T any](args json.RawMessage) (T, error) {
	var decoded T
	if len(args) == 0 {
		return decoded, nil
	}
	if err := json.Unmarshal(args, &decoded); err != nil {
		return decoded, err
	}
	return decoded, nil
}

// Package agent implements the conversational engine: an OpenAI-compatible
// chat-completions client with a bounded tool-calling loop.
package agent

import (
	"context"
	"encoding/json"
)

// Tool is a callable capability exposed to the model via function calling.
type Tool interface {
	// Name is the function name the model invokes.
	Name() string

	// Description tells the model when to use the tool.
	Description() string

	// Parameters is the JSON schema of the tool's arguments.
	Parameters() map[string]any

	// Call executes the tool with the model-provided arguments and returns
	// a textual result to feed back into the conversation.
	Call(ctx context.Context, args json.RawMessage) (string, error)
}

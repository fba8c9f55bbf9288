package agent_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parley-ai/parley/internal/agent"
	"github.com/parley-ai/parley/internal/config"
	"github.com/parley-ai/parley/internal/domain"
)

// echoTool records its invocations and returns a fixed result.
type echoTool struct {
	calls []string
	fail  bool
}

func (t *echoTool) Name() string        { return "echo" }
func (t *echoTool) Description() string { return "Echoes its input." }
func (t *echoTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"text": map[string]any{"type": "string"},
		},
		"required": []string{"text"},
	}
}

func (t *echoTool) Call(_ context.Context, args json.RawMessage) (string, error) {
	t.calls = append(t.calls, string(args))
	if t.fail {
		return "", fmt.Errorf("echo broke")
	}
	return "echoed", nil
}

func newClient(t *testing.T, baseURL string, maxIterations int, tools []agent.Tool) *agent.Client {
	t.Helper()
	c, err := agent.New(
		config.OpenAIConfig{APIKey: "sk-test", BaseURL: baseURL, Model: "gpt-4o-mini"},
		config.AgentConfig{MaxIterations: maxIterations},
		tools,
	)
	require.NoError(t, err)
	return c
}

// completionServer replies with the scripted responses in order, capturing
// each request body.
func completionServer(t *testing.T, responses []string) (*httptest.Server, *[][]byte) {
	t.Helper()

	var bodies [][]byte
	call := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		bodies = append(bodies, mustRead(t, r))

		require.Less(t, call, len(responses), "more completion calls than scripted responses")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, responses[call])
		call++
	}))
	t.Cleanup(srv.Close)
	return srv, &bodies
}

func mustRead(t *testing.T, r *http.Request) []byte {
	t.Helper()
	var raw json.RawMessage
	require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
	return raw
}

func TestNew_RequiresAPIKey(t *testing.T) {
	t.Parallel()

	_, err := agent.New(config.OpenAIConfig{}, config.AgentConfig{MaxIterations: 5}, nil)
	assert.Error(t, err)
}

func TestComplete_PlainReply(t *testing.T) {
	t.Parallel()

	srv, bodies := completionServer(t, []string{
		`{"choices":[{"message":{"role":"assistant","content":"hello there"}}]}`,
	})
	client := newClient(t, srv.URL, 5, nil)

	reply, err := client.Complete(t.Context(), "hi", []domain.Turn{
		{Role: domain.RoleUser, Content: "earlier"},
		{Role: domain.RoleAssistant, Content: "earlier reply"},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello there", reply)

	// The request carries system prompt, prior history and the new input.
	var req struct {
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	require.Len(t, *bodies, 1)
	require.NoError(t, json.Unmarshal((*bodies)[0], &req))
	require.Len(t, req.Messages, 4)
	assert.Equal(t, "system", req.Messages[0].Role)
	assert.Equal(t, "earlier", req.Messages[1].Content)
	assert.Equal(t, "hi", req.Messages[3].Content)
}

func TestComplete_ToolRoundTrip(t *testing.T) {
	t.Parallel()

	srv, bodies := completionServer(t, []string{
		`{"choices":[{"message":{"role":"assistant","content":"","tool_calls":[{"id":"call_1","type":"function","function":{"name":"echo","arguments":"{\"text\":\"ping\"}"}}]}}]}`,
		`{"choices":[{"message":{"role":"assistant","content":"done"}}]}`,
	})

	tool := &echoTool{}
	client := newClient(t, srv.URL, 5, []agent.Tool{tool})

	reply, err := client.Complete(t.Context(), "use the tool", nil)
	require.NoError(t, err)
	assert.Equal(t, "done", reply)
	require.Len(t, tool.calls, 1)
	assert.JSONEq(t, `{"text":"ping"}`, tool.calls[0])

	// The second round sends the tool result back under the call ID.
	var req struct {
		Messages []struct {
			Role       string `json:"role"`
			Content    string `json:"content"`
			ToolCallID string `json:"tool_call_id"`
		} `json:"messages"`
	}
	require.Len(t, *bodies, 2)
	require.NoError(t, json.Unmarshal((*bodies)[1], &req))
	last := req.Messages[len(req.Messages)-1]
	assert.Equal(t, "tool", last.Role)
	assert.Equal(t, "call_1", last.ToolCallID)
	assert.Equal(t, "echoed", last.Content)
}

func TestComplete_ToolFailureFedBack(t *testing.T) {
	t.Parallel()

	srv, bodies := completionServer(t, []string{
		`{"choices":[{"message":{"role":"assistant","content":"","tool_calls":[{"id":"call_1","type":"function","function":{"name":"echo","arguments":"{}"}}]}}]}`,
		`{"choices":[{"message":{"role":"assistant","content":"recovered"}}]}`,
	})

	tool := &echoTool{fail: true}
	client := newClient(t, srv.URL, 5, []agent.Tool{tool})

	reply, err := client.Complete(t.Context(), "use the tool", nil)
	require.NoError(t, err)
	assert.Equal(t, "recovered", reply)

	var req struct {
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	require.Len(t, *bodies, 2)
	require.NoError(t, json.Unmarshal((*bodies)[1], &req))
	last := req.Messages[len(req.Messages)-1]
	assert.Contains(t, last.Content, "echo failed")
}

func TestComplete_UnknownTool(t *testing.T) {
	t.Parallel()

	srv, bodies := completionServer(t, []string{
		`{"choices":[{"message":{"role":"assistant","content":"","tool_calls":[{"id":"call_1","type":"function","function":{"name":"nope","arguments":"{}"}}]}}]}`,
		`{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`,
	})
	client := newClient(t, srv.URL, 5, []agent.Tool{&echoTool{}})

	reply, err := client.Complete(t.Context(), "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", reply)

	var req struct {
		Messages []struct {
			Content string `json:"content"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal((*bodies)[1], &req))
	last := req.Messages[len(req.Messages)-1]
	assert.Contains(t, last.Content, "unknown tool nope")
}

func TestComplete_IterationLimit(t *testing.T) {
	t.Parallel()

	loop := `{"choices":[{"message":{"role":"assistant","content":"","tool_calls":[{"id":"call_1","type":"function","function":{"name":"echo","arguments":"{}"}}]}}]}`
	srv, bodies := completionServer(t, []string{loop, loop})
	client := newClient(t, srv.URL, 2, []agent.Tool{&echoTool{}})

	_, err := client.Complete(t.Context(), "loop forever", nil)
	assert.ErrorContains(t, err, "iteration limit")

	// A limit of 2 means exactly 2 completion rounds, not 3.
	assert.Len(t, *bodies, 2)
}

func TestComplete_APIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"Incorrect API key provided"}}`)
	}))
	t.Cleanup(srv.Close)

	client := newClient(t, srv.URL, 5, nil)
	_, err := client.Complete(t.Context(), "hi", nil)
	assert.ErrorContains(t, err, "Incorrect API key")
}

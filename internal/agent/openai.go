package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/parley-ai/parley/internal/config"
	"github.com/parley-ai/parley/internal/domain"
)

// Client talks to an OpenAI-compatible chat-completions endpoint and runs
// the tool loop. It holds no conversation state; history arrives with each
// Complete call.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	apiKey        string
	model         string
	temperature   float64
	maxTokens     int
	maxIterations int
	tools         []Tool
	specs         []toolSpec
}

// New constructs a Client. It fails when no API key is configured — no
// conversation can function without the hosted model.
func New(cfg config.OpenAIConfig, agentCfg config.AgentConfig, tools []Tool) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("agent.New: OpenAI API key is not configured")
	}

	specs := make([]toolSpec, 0, len(tools))
	for _, t := range tools {
		specs = append(specs, toolSpec{
			Type: "function",
			Function: toolFunction{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}

	return &Client{
		httpClient:    &http.Client{},
		baseURL:       cfg.BaseURL,
		apiKey:        cfg.APIKey,
		model:         cfg.Model,
		temperature:   cfg.Temperature,
		maxTokens:     cfg.MaxTokens,
		maxIterations: agentCfg.MaxIterations,
		tools:         tools,
		specs:         specs,
	}, nil
}

// Complete runs one exchange: the prior history plus the new input, with
// up to maxIterations rounds of tool calls before the final answer.
func (c *Client) Complete(ctx context.Context, input string, history []domain.Turn) (string, error) {
	messages := make([]chatMessage, 0, len(history)+2)
	messages = append(messages, chatMessage{Role: "system", Content: systemPrompt(time.Now())})
	for _, turn := range history {
		messages = append(messages, chatMessage{Role: string(turn.Role), Content: turn.Content})
	}
	messages = append(messages, chatMessage{Role: "user", Content: input})

	for round := 0; round < c.maxIterations; round++ {
		msg, err := c.createCompletion(ctx, messages)
		if err != nil {
			return "", err
		}

		if len(msg.ToolCalls) == 0 {
			return msg.Content, nil
		}

		messages = append(messages, *msg)
		for _, call := range msg.ToolCalls {
			result := c.runTool(ctx, call)
			messages = append(messages, chatMessage{
				Role:       "tool",
				ToolCallID: call.ID,
				Content:    result,
			})
		}
	}

	return "", fmt.Errorf("agent.Complete: tool iteration limit (%d) reached", c.maxIterations)
}

// runTool executes one tool call. Tool failures are fed back to the model
// as text rather than aborting the exchange, so it can recover or answer
// without the tool.
func (c *Client) runTool(ctx context.Context, call toolCall) string {
	for _, t := range c.tools {
		if t.Name() != call.Function.Name {
			continue
		}
		result, err := t.Call(ctx, json.RawMessage(call.Function.Arguments))
		if err != nil {
			log.Warn().Err(err).Str("tool", call.Function.Name).Msg("tool call failed")
			return fmt.Sprintf("tool %s failed: %v", call.Function.Name, err)
		}
		log.Debug().Str("tool", call.Function.Name).Msg("tool call completed")
		return result
	}

	log.Warn().Str("tool", call.Function.Name).Msg("model requested unknown tool")
	return fmt.Sprintf("unknown tool %s", call.Function.Name)
}

func (c *Client) createCompletion(ctx context.Context, messages []chatMessage) (*chatMessage, error) {
	payload, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		Tools:       c.specs,
	})
	if err != nil {
		return nil, fmt.Errorf("agent: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("agent: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("agent: completion request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("agent: read response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("agent: decode response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		if parsed.Error != nil {
			return nil, fmt.Errorf("agent: completion failed: %s", parsed.Error.Message)
		}
		return nil, fmt.Errorf("agent: completion failed with status %d", resp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return nil, errors.New("agent: completion returned no choices")
	}

	return &parsed.Choices[0].Message, nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Tools       []toolSpec    `json:"tools,omitempty"`
}

type chatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []toolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

type toolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type toolSpec struct {
	Type     string       `json:"type"`
	Function toolFunction `json:"function"`
}

type toolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

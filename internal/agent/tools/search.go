// Package tools provides the callable capabilities exposed to the model:
// web search, Steam review retrieval and slide deck generation.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/parley-ai/parley/internal/config"
)

// Search queries the configured web search engine. The engine is picked at
// construction time (tavily > serpapi > duckduckgo for "auto"), matching
// which API keys are available.
type Search struct {
	httpClient *http.Client
	engine     string
	apiKey     string
	maxResults int

	// Endpoint overrides for tests.
	tavilyURL string
	serpURL   string
	ddgURL    string
}

// NewSearch builds the search tool from config.
func NewSearch(cfg config.SearchConfig) *Search {
	engine := cfg.ResolveEngine()

	var apiKey string
	switch engine {
	case "tavily":
		apiKey = cfg.TavilyAPIKey
	case "serpapi":
		apiKey = cfg.SerpAPIKey
	}
	if apiKey == "" && engine != "duckduckgo" {
		log.Warn().Str("engine", engine).Msg("search engine selected without API key, falling back to duckduckgo")
		engine = "duckduckgo"
	}

	log.Info().Str("engine", engine).Msg("web search tool enabled")

	return &Search{
		httpClient: &http.Client{},
		engine:     engine,
		apiKey:     apiKey,
		maxResults: cfg.MaxResults,
		tavilyURL:  "https://api.tavily.com/search",
		serpURL:    "https://serpapi.com/search.json",
		ddgURL:     "https://api.duckduckgo.com/",
	}
}

func (s *Search) Name() string { return "web_search" }

func (s *Search) Description() string {
	return "Search the web for up-to-date information. Use for current events, " +
		"live data and news. The input is a search query string."
}

func (s *Search) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "Search query keywords",
			},
		},
		"required": []string{"query"},
	}
}

type searchArgs struct {
	Query string `json:"query"`
}

func (s *Search) Call(ctx context.Context, args json.RawMessage) (string, error) {
	var in searchArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return "", fmt.Errorf("tools.Search: bad arguments: %w", err)
	}
	if strings.TrimSpace(in.Query) == "" {
		return "", fmt.Errorf("tools.Search: empty query")
	}

	switch s.engine {
	case "tavily":
		return s.searchTavily(ctx, in.Query)
	case "serpapi":
		return s.searchSerpAPI(ctx, in.Query)
	default:
		return s.searchDuckDuckGo(ctx, in.Query)
	}
}

func (s *Search) searchTavily(ctx context.Context, query string) (string, error) {
	payload, err := json.Marshal(map[string]any{
		"api_key":     s.apiKey,
		"query":       query,
		"max_results": s.maxResults,
	})
	if err != nil {
		return "", fmt.Errorf("tools.Search: marshal: %w", err)
	}

	body, err := s.post(ctx, s.tavilyURL, payload)
	if err != nil {
		return "", err
	}

	var parsed struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("tools.Search: decode tavily response: %w", err)
	}
	if len(parsed.Results) == 0 {
		return "No results found.", nil
	}

	var b strings.Builder
	for i, r := range parsed.Results {
		if i >= s.maxResults {
			break
		}
		fmt.Fprintf(&b, "%d. %s\n%s\n%s\n\n", i+1, r.Title, r.Content, r.URL)
	}
	return strings.TrimSpace(b.String()), nil
}

func (s *Search) searchSerpAPI(ctx context.Context, query string) (string, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("api_key", s.apiKey)

	body, err := s.get(ctx, s.serpURL+"?"+q.Encode())
	if err != nil {
		return "", err
	}

	var parsed struct {
		OrganicResults []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"organic_results"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("tools.Search: decode serpapi response: %w", err)
	}
	if len(parsed.OrganicResults) == 0 {
		return "No results found.", nil
	}

	var b strings.Builder
	for i, r := range parsed.OrganicResults {
		if i >= s.maxResults {
			break
		}
		fmt.Fprintf(&b, "%d. %s\n%s\n%s\n\n", i+1, r.Title, r.Snippet, r.Link)
	}
	return strings.TrimSpace(b.String()), nil
}

func (s *Search) searchDuckDuckGo(ctx context.Context, query string) (string, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("no_html", "1")

	body, err := s.get(ctx, s.ddgURL+"?"+q.Encode())
	if err != nil {
		return "", err
	}

	var parsed struct {
		AbstractText  string `json:"AbstractText"`
		AbstractURL   string `json:"AbstractURL"`
		RelatedTopics []struct {
			Text     string `json:"Text"`
			FirstURL string `json:"FirstURL"`
		} `json:"RelatedTopics"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("tools.Search: decode duckduckgo response: %w", err)
	}

	var b strings.Builder
	if parsed.AbstractText != "" {
		fmt.Fprintf(&b, "%s\n%s\n\n", parsed.AbstractText, parsed.AbstractURL)
	}
	count := 0
	for _, t := range parsed.RelatedTopics {
		if t.Text == "" || count >= s.maxResults {
			continue
		}
		count++
		fmt.Fprintf(&b, "%d. %s\n%s\n\n", count, t.Text, t.FirstURL)
	}
	if b.Len() == 0 {
		return "No results found.", nil
	}
	return strings.TrimSpace(b.String()), nil
}

func (s *Search) post(ctx context.Context, endpoint string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("tools.Search: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return s.do(req)
}

func (s *Search) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("tools.Search: build request: %w", err)
	}
	return s.do(req)
}

func (s *Search) do(req *http.Request) ([]byte, error) {
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tools.Search: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tools.Search: %s returned status %d", s.engine, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("tools.Search: read response: %w", err)
	}
	return body, nil
}

package tools

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parley-ai/parley/internal/config"
)

func TestNewSearch_EngineSelection(t *testing.T) {
	t.Parallel()

	t.Run("auto with tavily key", func(t *testing.T) {
		t.Parallel()
		s := NewSearch(config.SearchConfig{Engine: "auto", TavilyAPIKey: "tv-key", MaxResults: 3})
		assert.Equal(t, "tavily", s.engine)
	})

	t.Run("keyless engine falls back to duckduckgo", func(t *testing.T) {
		t.Parallel()
		s := NewSearch(config.SearchConfig{Engine: "tavily", MaxResults: 3})
		assert.Equal(t, "duckduckgo", s.engine)
	})
}

func TestSearch_Tavily(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "tv-key", req["api_key"])
		assert.Equal(t, "go generics", req["query"])

		fmt.Fprint(w, `{"results":[
			{"title":"Go Blog","url":"https://go.dev/blog","content":"Generics landed in 1.18."},
			{"title":"Spec","url":"https://go.dev/ref/spec","content":"Type parameters."}
		]}`)
	}))
	t.Cleanup(srv.Close)

	s := NewSearch(config.SearchConfig{Engine: "tavily", TavilyAPIKey: "tv-key", MaxResults: 3})
	s.tavilyURL = srv.URL

	out, err := s.Call(t.Context(), json.RawMessage(`{"query":"go generics"}`))
	require.NoError(t, err)
	assert.Contains(t, out, "1. Go Blog")
	assert.Contains(t, out, "Generics landed in 1.18.")
	assert.Contains(t, out, "2. Spec")
}

func TestSearch_SerpAPI(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "sp-key", r.URL.Query().Get("api_key"))
		assert.Equal(t, "weather", r.URL.Query().Get("q"))

		fmt.Fprint(w, `{"organic_results":[{"title":"Forecast","link":"https://weather.example","snippet":"Sunny."}]}`)
	}))
	t.Cleanup(srv.Close)

	s := NewSearch(config.SearchConfig{Engine: "serpapi", SerpAPIKey: "sp-key", MaxResults: 3})
	s.serpURL = srv.URL

	out, err := s.Call(t.Context(), json.RawMessage(`{"query":"weather"}`))
	require.NoError(t, err)
	assert.Contains(t, out, "1. Forecast")
	assert.Contains(t, out, "Sunny.")
}

func TestSearch_DuckDuckGo(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "json", r.URL.Query().Get("format"))

		fmt.Fprint(w, `{"AbstractText":"Go is a programming language.","AbstractURL":"https://go.dev",
			"RelatedTopics":[{"Text":"Gopher","FirstURL":"https://go.dev/gopher"},{"Text":"","FirstURL":"x"}]}`)
	}))
	t.Cleanup(srv.Close)

	s := NewSearch(config.SearchConfig{Engine: "duckduckgo", MaxResults: 3})
	s.ddgURL = srv.URL

	out, err := s.Call(t.Context(), json.RawMessage(`{"query":"golang"}`))
	require.NoError(t, err)
	assert.Contains(t, out, "Go is a programming language.")
	assert.Contains(t, out, "1. Gopher")
}

func TestSearch_NoResults(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"results":[]}`)
	}))
	t.Cleanup(srv.Close)

	s := NewSearch(config.SearchConfig{Engine: "tavily", TavilyAPIKey: "tv-key", MaxResults: 3})
	s.tavilyURL = srv.URL

	out, err := s.Call(t.Context(), json.RawMessage(`{"query":"nothing"}`))
	require.NoError(t, err)
	assert.Equal(t, "No results found.", out)
}

func TestSearch_BadArguments(t *testing.T) {
	t.Parallel()

	s := NewSearch(config.SearchConfig{Engine: "duckduckgo", MaxResults: 3})

	_, err := s.Call(t.Context(), json.RawMessage(`{"query":"  "}`))
	assert.Error(t, err)

	_, err = s.Call(t.Context(), json.RawMessage(`not json`))
	assert.Error(t, err)
}

func TestSearch_UpstreamError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	s := NewSearch(config.SearchConfig{Engine: "duckduckgo", MaxResults: 3})
	s.ddgURL = srv.URL

	_, err := s.Call(t.Context(), json.RawMessage(`{"query":"q"}`))
	assert.ErrorContains(t, err, "status 502")
}

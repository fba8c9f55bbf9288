package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"

	"github.com/parley-ai/parley/internal/config"
)

// reviewsPerPage is Steam's hard page size for the appreviews endpoint.
const reviewsPerPage = 20

// SteamReviews looks up a game on the Steam store and fetches its recent
// user reviews. Page fetches are paced with a token bucket so bulk requests
// do not trip Steam's rate limiting.
type SteamReviews struct {
	httpClient *http.Client
	language   string
	filter     string
	numDefault int
	maxReviews int
	pacer      *rate.Limiter

	// Endpoint overrides for tests.
	storeURL   string
	reviewsURL string
}

// NewSteamReviews builds the Steam tool from config.
func NewSteamReviews(cfg config.SteamConfig) *SteamReviews {
	interval := rate.Every(cfg.RequestDelay)
	if cfg.RequestDelay <= 0 {
		interval = rate.Inf
	}

	return &SteamReviews{
		httpClient: &http.Client{},
		language:   cfg.Language,
		filter:     cfg.Filter,
		numDefault: cfg.NumReviews,
		maxReviews: cfg.MaxReviews,
		pacer:      rate.NewLimiter(interval, 1),
		storeURL:   "https://store.steampowered.com/api/storesearch/",
		reviewsURL: "https://store.steampowered.com/appreviews/",
	}
}

func (s *SteamReviews) Name() string { return "steam_reviews" }

func (s *SteamReviews) Description() string {
	return fmt.Sprintf("Fetch Steam user reviews and overall rating for a game. "+
		"Use when the user asks about game reception, Steam ratings or player "+
		"feedback. Returns up to %d reviews (default %d), newest first.",
		s.maxReviews, s.numDefault)
}

func (s *SteamReviews) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"game_name": map[string]any{
				"type":        "string",
				"description": "Game name, e.g. 'CS2', 'Dota 2', 'Cyberpunk 2077'",
			},
			"num_reviews": map[string]any{
				"type":        "integer",
				"description": fmt.Sprintf("Number of reviews to fetch (default %d, max %d)", s.numDefault, s.maxReviews),
			},
		},
		"required": []string{"game_name"},
	}
}

type steamArgs struct {
	GameName   string `json:"game_name"`
	NumReviews int    `json:"num_reviews"`
}

func (s *SteamReviews) Call(ctx context.Context, args json.RawMessage) (string, error) {
	var in steamArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return "", fmt.Errorf("tools.SteamReviews: bad arguments: %w", err)
	}
	if strings.TrimSpace(in.GameName) == "" {
		return "", fmt.Errorf("tools.SteamReviews: empty game name")
	}

	num := in.NumReviews
	if num <= 0 {
		num = s.numDefault
	}
	if num > s.maxReviews {
		num = s.maxReviews
	}

	appID, name, err := s.searchGame(ctx, in.GameName)
	if err != nil {
		return "", err
	}
	if appID == 0 {
		return fmt.Sprintf("No Steam game found matching %q.", in.GameName), nil
	}

	return s.fetchReviews(ctx, appID, name, num)
}

// searchGame resolves a game name to its AppID via the store search API.
// Returns appID 0 when nothing matches.
func (s *SteamReviews) searchGame(ctx context.Context, gameName string) (int, string, error) {
	q := url.Values{}
	q.Set("term", gameName)
	q.Set("cc", "us")
	q.Set("l", "en")

	body, err := s.get(ctx, s.storeURL+"?"+q.Encode())
	if err != nil {
		return 0, "", err
	}

	var parsed struct {
		Total int `json:"total"`
		Items []struct {
			ID   int    `json:"id"`
			Name string `json:"name"`
		} `json:"items"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return 0, "", fmt.Errorf("tools.SteamReviews: decode store search: %w", err)
	}
	if parsed.Total == 0 || len(parsed.Items) == 0 {
		return 0, "", nil
	}

	return parsed.Items[0].ID, parsed.Items[0].Name, nil
}

type steamReview struct {
	Review  string `json:"review"`
	VotedUp bool   `json:"voted_up"`
	Author  struct {
		PlaytimeForever int `json:"playtime_forever"`
	} `json:"author"`
}

// fetchReviews pages through the appreviews endpoint until num reviews are
// collected or the cursor runs dry, pacing each page fetch.
func (s *SteamReviews) fetchReviews(ctx context.Context, appID int, name string, num int) (string, error) {
	var (
		reviews []steamReview
		summary struct {
			ReviewScoreDesc string `json:"review_score_desc"`
			TotalPositive   int    `json:"total_positive"`
			TotalNegative   int    `json:"total_negative"`
		}
		cursor = "*"
	)

	for len(reviews) < num {
		if err := s.pacer.Wait(ctx); err != nil {
			return "", fmt.Errorf("tools.SteamReviews: %w", err)
		}

		q := url.Values{}
		q.Set("json", "1")
		q.Set("language", s.language)
		q.Set("num_per_page", fmt.Sprint(reviewsPerPage))
		q.Set("cursor", cursor)
		q.Set("purchase_type", "all")
		q.Set("filter", s.filter)

		body, err := s.get(ctx, fmt.Sprintf("%s%d?%s", s.reviewsURL, appID, q.Encode()))
		if err != nil {
			return "", err
		}

		var page struct {
			Success      int           `json:"success"`
			Cursor       string        `json:"cursor"`
			Reviews      []steamReview `json:"reviews"`
			QuerySummary struct {
				ReviewScoreDesc string `json:"review_score_desc"`
				TotalPositive   int    `json:"total_positive"`
				TotalNegative   int    `json:"total_negative"`
			} `json:"query_summary"`
		}
		if err := json.Unmarshal(body, &page); err != nil {
			return "", fmt.Errorf("tools.SteamReviews: decode reviews: %w", err)
		}
		if page.Success != 1 || len(page.Reviews) == 0 {
			break
		}

		if summary.ReviewScoreDesc == "" {
			summary.ReviewScoreDesc = page.QuerySummary.ReviewScoreDesc
			summary.TotalPositive = page.QuerySummary.TotalPositive
			summary.TotalNegative = page.QuerySummary.TotalNegative
		}
		reviews = append(reviews, page.Reviews...)

		if page.Cursor == "" || page.Cursor == cursor {
			break
		}
		cursor = page.Cursor
	}

	if len(reviews) > num {
		reviews = reviews[:num]
	}
	if len(reviews) == 0 {
		return fmt.Sprintf("No reviews found for %s.", name), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Steam reviews for %s\n", name)
	if summary.ReviewScoreDesc != "" {
		fmt.Fprintf(&b, "Overall: %s (%d positive / %d negative)\n",
			summary.ReviewScoreDesc, summary.TotalPositive, summary.TotalNegative)
	}
	b.WriteString("\n")
	for i, r := range reviews {
		verdict := "negative"
		if r.VotedUp {
			verdict = "positive"
		}
		text := strings.TrimSpace(r.Review)
		if runes := []rune(text); len(runes) > 300 {
			text = string(runes[:300]) + "..."
		}
		fmt.Fprintf(&b, "%d. [%s, %dh played] %s\n", i+1, verdict, r.Author.PlaytimeForever/60, text)
	}

	return strings.TrimSpace(b.String()), nil
}

func (s *SteamReviews) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("tools.SteamReviews: build request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tools.SteamReviews: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tools.SteamReviews: steam returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("tools.SteamReviews: read response: %w", err)
	}
	return body, nil
}

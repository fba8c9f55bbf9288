package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/parley-ai/parley/internal/config"
)

// Slides renders a structured outline into a Markdown slide deck on disk.
// The model does the outline planning itself through the tool's argument
// schema; this tool only validates and writes the deck.
type Slides struct {
	outputDir     string
	defaultSlides int
	now           func() time.Time
}

// NewSlides builds the slide generation tool from config.
func NewSlides(cfg config.SlidesConfig) *Slides {
	return &Slides{
		outputDir:     cfg.OutputDir,
		defaultSlides: cfg.DefaultSlides,
		now:           time.Now,
	}
}

func (s *Slides) Name() string { return "generate_slides" }

func (s *Slides) Description() string {
	return fmt.Sprintf("Generate a slide deck file from a structured outline. "+
		"Use when the user asks for a presentation or slides. Plan roughly %d "+
		"slides unless the user asks otherwise, 2-5 bullet points each. An "+
		"optional image URL may be attached to a slide.", s.defaultSlides)
}

func (s *Slides) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title": map[string]any{
				"type":        "string",
				"description": "Deck title",
			},
			"slides": map[string]any{
				"type":        "array",
				"description": "Ordered slides",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"title": map[string]any{
							"type":        "string",
							"description": "Slide title",
						},
						"bullets": map[string]any{
							"type":        "array",
							"description": "Bullet points, 2-5 per slide",
							"items":       map[string]any{"type": "string"},
						},
						"image": map[string]any{
							"type":        "string",
							"description": "Optional image URL to reference on the slide",
						},
					},
					"required": []string{"title"},
				},
			},
			"output_name": map[string]any{
				"type":        "string",
				"description": "Optional output file name without extension",
			},
		},
		"required": []string{"title", "slides"},
	}
}

type slideArgs struct {
	Title      string  `json:"title"`
	Slides     []slide `json:"slides"`
	OutputName string  `json:"output_name"`
}

type slide struct {
	Title   string   `json:"title"`
	Bullets []string `json:"bullets"`
	Image   string   `json:"image"`
}

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

func (s *Slides) Call(_ context.Context, args json.RawMessage) (string, error) {
	var in slideArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return "", fmt.Errorf("tools.Slides: bad arguments: %w", err)
	}
	if strings.TrimSpace(in.Title) == "" || len(in.Slides) == 0 {
		return "", fmt.Errorf("tools.Slides: title and at least one slide are required")
	}

	if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("tools.Slides: %w", err)
	}

	name := in.OutputName
	if name == "" {
		name = in.Title
	}
	name = unsafeNameChars.ReplaceAllString(name, "_")
	name = fmt.Sprintf("%s_%s.md", name, s.now().Format("20060102_150405"))
	path := filepath.Join(s.outputDir, name)

	if err := os.WriteFile(path, []byte(renderDeck(&in)), 0o644); err != nil {
		return "", fmt.Errorf("tools.Slides: write deck: %w", err)
	}

	log.Info().Str("path", path).Int("slides", len(in.Slides)).Msg("slide deck generated")

	return fmt.Sprintf("Slide deck with %d slides saved to %s.", len(in.Slides), path), nil
}

// renderDeck produces a Marp-style Markdown deck, one slide per section.
func renderDeck(in *slideArgs) string {
	var b strings.Builder
	b.WriteString("---\nmarp: true\n---\n\n")
	fmt.Fprintf(&b, "# %s\n", in.Title)

	for _, sl := range in.Slides {
		b.WriteString("\n---\n\n")
		fmt.Fprintf(&b, "## %s\n\n", sl.Title)
		for _, bullet := range sl.Bullets {
			fmt.Fprintf(&b, "- %s\n", bullet)
		}
		if sl.Image != "" {
			fmt.Fprintf(&b, "\n![](%s)\n", sl.Image)
		}
	}

	return b.String()
}

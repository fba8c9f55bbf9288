package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server    ServerConfig
	OpenAI    OpenAIConfig
	Agent     AgentConfig
	Search    SearchConfig
	Steam     SteamConfig
	Slides    SlidesConfig
	Session   SessionConfig
	RateLimit RateLimitConfig
	Redis     RedisConfig
	Database  DatabaseConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CORSOrigins  []string
}

// OpenAIConfig holds settings for the hosted LLM endpoint. BaseURL accepts
// any OpenAI-compatible chat-completions server.
type OpenAIConfig struct {
	APIKey      string //nolint:gosec // G117: API credential config
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
}

// AgentConfig bounds the tool-calling loop around the LLM.
type AgentConfig struct {
	MaxIterations int
	Timeout       time.Duration
}

// SearchConfig selects and configures the web search engine.
type SearchConfig struct {
	Engine       string // "auto", "tavily", "serpapi" or "duckduckgo"
	TavilyAPIKey string //nolint:gosec // G117: API credential config
	SerpAPIKey   string //nolint:gosec // G117: API credential config
	MaxResults   int
}

// ResolveEngine returns the effective search engine. "auto" picks the best
// engine a key is configured for, falling back to the free one.
func (c *SearchConfig) ResolveEngine() string {
	if c.Engine != "auto" {
		return c.Engine
	}
	switch {
	case c.TavilyAPIKey != "":
		return "tavily"
	case c.SerpAPIKey != "":
		return "serpapi"
	default:
		return "duckduckgo"
	}
}

// SteamConfig holds Steam review retrieval settings.
type SteamConfig struct {
	NumReviews   int // default count when the user does not specify one
	MaxReviews   int // hard cap per request
	Language     string
	Filter       string
	RequestDelay time.Duration // pause between review pages
}

// SlidesConfig holds slide deck generation settings.
type SlidesConfig struct {
	OutputDir     string
	DefaultSlides int
}

// SessionConfig holds conversation persistence settings.
type SessionConfig struct {
	Driver  string // "file", "redis" or "postgres"
	Dir     string // file driver only
	Timeout time.Duration
}

// RateLimitConfig holds inbound request throttling settings.
type RateLimitConfig struct {
	Enabled bool
	RPM     int
	Window  time.Duration
}

// RedisConfig holds Redis connection settings (session driver "redis").
type RedisConfig struct {
	Addr     string
	Password string //nolint:gosec // G117: Redis connection config
	DB       int
}

// DatabaseConfig holds PostgreSQL connection settings (session driver
// "postgres").
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string //nolint:gosec // G117: DB connection config
	DBName   string
	SSLMode  string
	MaxConns int
}

// Load reads configuration from environment variables. Defaults are safe
// for local development; the OpenAI API key has no default and sessions
// cannot function without it.
func Load() (*Config, error) {
	readTimeout, err := getEnvDuration("PARLEY_SERVER_READ_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	writeTimeout, err := getEnvDuration("PARLEY_SERVER_WRITE_TIMEOUT", 2*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	temperature, err := getEnvFloat("PARLEY_OPENAI_TEMPERATURE", 0.7)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	maxTokens, err := getEnvInt("PARLEY_OPENAI_MAX_TOKENS", 2000)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	maxIterations, err := getEnvInt("PARLEY_AGENT_MAX_ITERATIONS", 5)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	agentTimeout, err := getEnvDuration("PARLEY_AGENT_TIMEOUT", 90*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	maxResults, err := getEnvInt("PARLEY_SEARCH_MAX_RESULTS", 3)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	numReviews, err := getEnvInt("PARLEY_STEAM_NUM_REVIEWS", 10)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	maxReviews, err := getEnvInt("PARLEY_STEAM_MAX_REVIEWS", 100)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	requestDelay, err := getEnvDuration("PARLEY_STEAM_REQUEST_DELAY", time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	defaultSlides, err := getEnvInt("PARLEY_SLIDES_DEFAULT_COUNT", 5)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	sessionTimeout, err := getEnvDuration("PARLEY_SESSION_TIMEOUT", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	rateLimitEnabled, err := getEnvBool("PARLEY_RATE_LIMIT_ENABLED", true)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	rateLimitRPM, err := getEnvInt("PARLEY_RATE_LIMIT_RPM", 30)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	rateLimitWindow, err := getEnvDuration("PARLEY_RATE_LIMIT_WINDOW", time.Minute)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	redisDB, err := getEnvInt("PARLEY_REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	dbPort, err := getEnvInt("PARLEY_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	dbMaxConns, err := getEnvInt("PARLEY_DB_MAX_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	corsOrigins := getEnvList("PARLEY_CORS_ORIGINS", []string{"*"})

	cfg := &Config{
		Server: ServerConfig{
			Addr:         getEnv("PARLEY_SERVER_ADDR", ":8080"),
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			CORSOrigins:  corsOrigins,
		},
		OpenAI: OpenAIConfig{
			APIKey:      getEnv("PARLEY_OPENAI_API_KEY", os.Getenv("OPENAI_API_KEY")),
			BaseURL:     getEnv("PARLEY_OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Model:       getEnv("PARLEY_OPENAI_MODEL", "gpt-4o-mini"),
			Temperature: temperature,
			MaxTokens:   maxTokens,
		},
		Agent: AgentConfig{
			MaxIterations: maxIterations,
			Timeout:       agentTimeout,
		},
		Search: SearchConfig{
			Engine:       getEnv("PARLEY_SEARCH_ENGINE", "auto"),
			TavilyAPIKey: getEnv("PARLEY_TAVILY_API_KEY", ""),
			SerpAPIKey:   getEnv("PARLEY_SERPAPI_KEY", ""),
			MaxResults:   maxResults,
		},
		Steam: SteamConfig{
			NumReviews:   numReviews,
			MaxReviews:   maxReviews,
			Language:     getEnv("PARLEY_STEAM_LANGUAGE", "english"),
			Filter:       getEnv("PARLEY_STEAM_FILTER", "recent"),
			RequestDelay: requestDelay,
		},
		Slides: SlidesConfig{
			OutputDir:     getEnv("PARLEY_SLIDES_OUTPUT_DIR", "./output"),
			DefaultSlides: defaultSlides,
		},
		Session: SessionConfig{
			Driver:  getEnv("PARLEY_SESSION_DRIVER", "file"),
			Dir:     getEnv("PARLEY_SESSION_DIR", "./sessions"),
			Timeout: sessionTimeout,
		},
		RateLimit: RateLimitConfig{
			Enabled: rateLimitEnabled,
			RPM:     rateLimitRPM,
			Window:  rateLimitWindow,
		},
		Redis: RedisConfig{
			Addr:     getEnv("PARLEY_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("PARLEY_REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Database: DatabaseConfig{
			Host:     getEnv("PARLEY_DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("PARLEY_DB_USER", "parley"),
			Password: getEnv("PARLEY_DB_PASSWORD", ""),
			DBName:   getEnv("PARLEY_DB_NAME", "parley_dev"),
			SSLMode:  getEnv("PARLEY_DB_SSLMODE", "disable"),
			MaxConns: dbMaxConns,
		},
	}

	err = cfg.validate()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	return cfg, nil
}

// validate checks value bounds and cross-field consistency.
func (c *Config) validate() error {
	if c.OpenAI.APIKey == "" {
		log.Warn().Msg("no OpenAI API key configured; conversations will fail to initialize")
	}

	switch c.Session.Driver {
	case "file", "redis", "postgres":
	default:
		return fmt.Errorf("PARLEY_SESSION_DRIVER must be file, redis or postgres, got %q", c.Session.Driver)
	}

	switch c.Search.Engine {
	case "auto", "tavily", "serpapi", "duckduckgo":
	default:
		return fmt.Errorf("PARLEY_SEARCH_ENGINE must be auto, tavily, serpapi or duckduckgo, got %q", c.Search.Engine)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("PARLEY_SERVER_READ_TIMEOUT must be positive, got %s", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("PARLEY_SERVER_WRITE_TIMEOUT must be positive, got %s", c.Server.WriteTimeout)
	}
	if c.OpenAI.Temperature < 0 || c.OpenAI.Temperature > 2 {
		return fmt.Errorf("PARLEY_OPENAI_TEMPERATURE must be 0-2, got %g", c.OpenAI.Temperature)
	}
	if c.Agent.MaxIterations < 1 {
		return fmt.Errorf("PARLEY_AGENT_MAX_ITERATIONS must be >= 1, got %d", c.Agent.MaxIterations)
	}
	if c.Agent.Timeout <= 0 {
		return fmt.Errorf("PARLEY_AGENT_TIMEOUT must be positive, got %s", c.Agent.Timeout)
	}
	if c.Steam.MaxReviews < 1 {
		return fmt.Errorf("PARLEY_STEAM_MAX_REVIEWS must be >= 1, got %d", c.Steam.MaxReviews)
	}
	if c.Steam.NumReviews < 1 || c.Steam.NumReviews > c.Steam.MaxReviews {
		return fmt.Errorf("PARLEY_STEAM_NUM_REVIEWS must be 1-%d, got %d", c.Steam.MaxReviews, c.Steam.NumReviews)
	}
	if c.Session.Timeout <= 0 {
		return fmt.Errorf("PARLEY_SESSION_TIMEOUT must be positive, got %s", c.Session.Timeout)
	}
	if c.RateLimit.RPM < 1 {
		return fmt.Errorf("PARLEY_RATE_LIMIT_RPM must be >= 1, got %d", c.RateLimit.RPM)
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("PARLEY_RATE_LIMIT_WINDOW must be positive, got %s", c.RateLimit.Window)
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("PARLEY_DB_PORT must be 1-65535, got %d", c.Database.Port)
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("PARLEY_DB_MAX_CONNS must be >= 1, got %d", c.Database.MaxConns)
	}

	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as int: %w", key, v, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as float: %w", key, v, err)
	}
	return f, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parsing %s=%q as bool: %w", key, v, err)
	}
	return b, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as duration: %w", key, v, err)
	}
	return d, nil
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

package main

import (
	"context"
	"fmt"
	"io/fs"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/parley-ai/parley/internal/agent"
	"github.com/parley-ai/parley/internal/agent/tools"
	"github.com/parley-ai/parley/internal/cli"
	"github.com/parley-ai/parley/internal/config"
	"github.com/parley-ai/parley/internal/domain"
	"github.com/parley-ai/parley/internal/ratelimit"
	"github.com/parley-ai/parley/internal/server"
	"github.com/parley-ai/parley/internal/session"
	filestore "github.com/parley-ai/parley/internal/store/file"
	"github.com/parley-ai/parley/internal/store/postgres"
	redisstore "github.com/parley-ai/parley/internal/store/redis"
	"github.com/parley-ai/parley/web"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "parley",
		Short:         "Conversational assistant with web search, Steam reviews and slide generation",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			initLogging()
		},
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newChatCmd())

	return root
}

// initLogging configures structured logging from environment.
func initLogging() {
	// Local overrides from .env, if present.
	_ = godotenv.Load()

	level, parseErr := zerolog.ParseLevel(os.Getenv("PARLEY_LOG_LEVEL"))
	if parseErr != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if os.Getenv("PARLEY_LOG_FORMAT") == "text" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and chat page",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Chat with the assistant in the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	factory := agentFactory(cfg)
	mgr := session.NewManager(store, factory, cfg.Session.Timeout, cfg.Agent.Timeout)

	// Graceful shutdown on SIGINT / SIGTERM.
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.New(cfg.RateLimit.RPM, cfg.RateLimit.Window)
		limiter.StartSweeper(ctx, 5*time.Minute)
	}

	// Prepare embedded chat page assets (strip "static/" prefix from fs paths).
	webAssets, err := fs.Sub(web.Assets, "static")
	if err != nil {
		return fmt.Errorf("web assets: %w", err)
	}

	srv := server.New(cfg, mgr, limiter, webAssets)

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("starting server")
		if startErr := srv.Start(ctx); startErr != nil {
			log.Error().Err(startErr).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		return shutdownErr
	}

	log.Info().Msg("stopped")
	return nil
}

func runChat(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	agentImpl, err := agentFactory(cfg)()
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrAgentInit, err)
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	assistant := session.NewAssistant(agentImpl, cfg.Agent.Timeout)
	return cli.Run(ctx, assistant, os.Stdin, os.Stdout)
}

// openStore builds the session store named by the configured driver.
func openStore(ctx context.Context, cfg *config.Config) (domain.SessionStore, func(), error) {
	switch cfg.Session.Driver {
	case "redis":
		store, err := redisstore.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil

	case "postgres":
		if cfg.Database.MaxConns < 0 || cfg.Database.MaxConns > math.MaxInt32 {
			return nil, nil, fmt.Errorf("database max_conns %d out of int32 range", cfg.Database.MaxConns)
		}
		store, err := postgres.New(ctx, cfg.Database.DSN(), int32(cfg.Database.MaxConns)) //nolint:gosec // bounds checked above
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil

	default: // "file", enforced by config validation
		store, err := filestore.New(cfg.Session.Dir)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	}
}

// agentFactory builds fresh agents for new sessions, each with its own tool
// set.
func agentFactory(cfg *config.Config) session.AgentFactory {
	return func() (session.Agent, error) {
		toolset := []agent.Tool{
			tools.NewSearch(cfg.Search),
			tools.NewSteamReviews(cfg.Steam),
			tools.NewSlides(cfg.Slides),
		}
		return agent.New(cfg.OpenAI, cfg.Agent, toolset)
	}
}

// Package main is the entry point for the Marbitz battle bot.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"

	"marbitz-battlebot/internal/bot"
	"marbitz-battlebot/internal/config"
	"marbitz-battlebot/internal/game/battle"
	"marbitz-battlebot/internal/health"
	"marbitz-battlebot/internal/pkg/db"
	"marbitz-battlebot/internal/repository"
	"marbitz-battlebot/internal/service"
	"marbitz-battlebot/internal/storage"
)

func main() {
	// Configure zerolog
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Warn().Str("level", cfg.Log.Level).Msg("Unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().Str("storage", cfg.Storage.Driver).Msg("Configuration loaded successfully")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gateway, ping, closeStorage := openStorage(ctx, cfg)
	defer closeStorage()

	resetDay, _ := cfg.ResetWeekday()
	loc, _ := cfg.Location()

	// Initialize store and services
	store := repository.NewChallengeStore(gateway)
	leaderboardService := service.NewLeaderboardService(gateway, resetDay, loc)
	resolver := battle.NewResolver()
	battleService := service.NewBattleService(store, leaderboardService, resolver, cfg.Challenge.MaxWager)

	log.Info().
		Int("scenarios", resolver.Scenarios().Count()).
		Int("active_challenges", store.Count()).
		Str("reset_day", resetDay.String()).
		Msg("Services initialized")

	// Sweeps once immediately, then every interval
	go battleService.RunSweeper(ctx, cfg.Challenge.SweepInterval, cfg.ChallengeExpiry())

	if cfg.Health.Addr != "" {
		go func() {
			if err := health.Serve(ctx, cfg.Health.Addr, health.NewRouter(battleService, ping)); err != nil {
				log.Error().Err(err).Msg("Health endpoint failed")
			}
		}()
	}

	// Initialize bot
	telegramBot, err := bot.New(&bot.Dependencies{
		Config:             cfg,
		BattleService:      battleService,
		LeaderboardService: leaderboardService,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create bot")
	}

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start bot in a goroutine
	go func() {
		log.Info().Msg("Bot is starting...")
		telegramBot.Start()
	}()

	// Wait for shutdown signal
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	// Graceful shutdown
	cancel()
	telegramBot.Stop()
	log.Info().Msg("Bot stopped gracefully")
}

// openStorage builds the configured gateway. For postgres it also returns a
// ping for the health endpoint and a close func for the pool.
func openStorage(ctx context.Context, cfg *config.Config) (storage.Gateway, func(context.Context) error, func()) {
	if cfg.Storage.Driver != config.DriverPostgres {
		log.Info().Str("dir", cfg.Storage.Dir).Msg("Using file storage")
		return storage.NewFileGateway(afero.NewOsFs(), cfg.Storage.Dir), nil, func() {}
	}

	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	gateway := storage.NewPostgresGateway(dbPool.Pool)
	if err := gateway.Migrate(ctx); err != nil {
		dbPool.Close()
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	return gateway, dbPool.HealthCheck, dbPool.Close
}

// Package main is the entry point for the pod tracker bot.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"pod-tracker-bot/internal/bot"
	"pod-tracker-bot/internal/config"
	"pod-tracker-bot/internal/game"
	"pod-tracker-bot/internal/model"
	"pod-tracker-bot/internal/pkg/db"
	"pod-tracker-bot/internal/pkg/refcode"
	"pod-tracker-bot/internal/repository"
	"pod-tracker-bot/internal/service"
	"pod-tracker-bot/internal/session"
)

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log.Info().Msg("Configuration loaded successfully")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	// Run database migrations
	if err := runMigrations(ctx, dbPool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// Deletion reference codec
	codec, err := refcode.New(cfg.Reference.Salt, cfg.Reference.MinLength)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create reference codec")
	}

	// Initialize repositories
	podRepo := repository.NewPodRepository(dbPool.Pool)
	playerRepo := repository.NewPlayerRepository(dbPool.Pool)
	gameRepo := repository.NewGameRepository(dbPool.Pool, codec)
	statsRepo := repository.NewStatsRepository(dbPool.Pool)

	// Initialize services
	gameService := service.NewGameService(gameRepo)
	statsService := service.NewStatsService(statsRepo)

	// Session manager drives the recording conversations and commits
	// finished drafts through the game service.
	sessions := session.NewManager(
		&podDirectory{pods: podRepo, players: playerRepo},
		gameService,
		session.Config{
			Standard:     policyFromConfig(cfg.Games.Standard),
			Custom:       policyFromConfig(cfg.Games.Custom),
			IdleTimeout:  cfg.Session.IdleTimeout,
			ReapInterval: cfg.Session.ReapInterval,
		},
	)
	sessions.StartReaper(ctx)

	// Create bot dependencies
	deps := &bot.Dependencies{
		Config:   cfg,
		Pods:     podRepo,
		Players:  playerRepo,
		Games:    gameService,
		Stats:    statsService,
		Sessions: sessions,
	}

	// Initialize bot
	telegramBot, err := bot.New(deps)
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
	telegramBot.Stop()
	log.Info().Msg("Bot stopped gracefully")
}

// policyFromConfig maps one mode's config block to a recording policy.
func policyFromConfig(mode config.GameModeConfig) game.Policy {
	return game.Policy{
		MinPlayers:             mode.MinPlayers,
		EnforceMinPlayers:      mode.EnforceMinPlayers,
		AllowSelfElimination:   mode.AllowSelfElimination,
		AllowWinnerElimination: mode.AllowWinnerElimination,
	}
}

// podDirectory adapts the pod repositories to the session manager's
// read-only directory interface.
type podDirectory struct {
	pods    *repository.PodRepository
	players *repository.PlayerRepository
}

func (d *podDirectory) GetPod(ctx context.Context, podID int64) (*model.Pod, error) {
	return d.pods.GetByID(ctx, podID)
}

func (d *podDirectory) ListMembers(ctx context.Context, podID int64) ([]model.PodPlayer, error) {
	return d.players.ListByPod(ctx, podID)
}

// runMigrations executes database migrations.
func runMigrations(ctx context.Context, pool *db.Pool) error {
	log.Info().Msg("Running database migrations...")

	// Migration 1: Create pods table
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS pods (
			pod_id BIGINT PRIMARY KEY,
			name VARCHAR(255) NOT NULL
		);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 1: pods table created")

	// Migration 2: Create pods_players table
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS pods_players (
			pods_player_id BIGSERIAL PRIMARY KEY,
			pod_id BIGINT NOT NULL REFERENCES pods(pod_id) ON DELETE CASCADE,
			telegram_id BIGINT NOT NULL,
			name VARCHAR(255) NOT NULL,
			avatar_url TEXT,
			UNIQUE (pod_id, telegram_id)
		);
		CREATE INDEX IF NOT EXISTS idx_pods_players_pod ON pods_players(pod_id);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 2: pods_players table created")

	// Migration 3: Create games table
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS games (
			game_id BIGSERIAL PRIMARY KEY,
			pod_id BIGINT NOT NULL REFERENCES pods(pod_id) ON DELETE CASCADE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			deletion_reference VARCHAR(64) UNIQUE
		);
		CREATE INDEX IF NOT EXISTS idx_games_pod_time ON games(pod_id, created_at DESC);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 3: games table created")

	// Migration 4: Create game_results table
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS game_results (
			game_id BIGINT NOT NULL REFERENCES games(game_id) ON DELETE CASCADE,
			player_id BIGINT NOT NULL REFERENCES pods_players(pods_player_id) ON DELETE CASCADE,
			outcome VARCHAR(10) NOT NULL,
			PRIMARY KEY (game_id, player_id)
		);
		CREATE INDEX IF NOT EXISTS idx_game_results_player ON game_results(player_id);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 4: game_results table created")

	// Migration 5: Create eliminations table
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS eliminations (
			elimination_id BIGSERIAL PRIMARY KEY,
			game_id BIGINT NOT NULL REFERENCES games(game_id) ON DELETE CASCADE,
			eliminator_id BIGINT NOT NULL REFERENCES pods_players(pods_player_id) ON DELETE CASCADE,
			eliminated_id BIGINT NOT NULL REFERENCES pods_players(pods_player_id) ON DELETE CASCADE
		);
		CREATE INDEX IF NOT EXISTS idx_eliminations_game ON eliminations(game_id);
		CREATE INDEX IF NOT EXISTS idx_eliminations_eliminator ON eliminations(eliminator_id);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 5: eliminations table created")

	// Migration 6: Create game_deletion_requests table
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS game_deletion_requests (
			request_id BIGSERIAL PRIMARY KEY,
			game_id BIGINT NOT NULL REFERENCES games(game_id) ON DELETE CASCADE,
			requester_id BIGINT NOT NULL REFERENCES pods_players(pods_player_id) ON DELETE CASCADE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (game_id, requester_id)
		);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 6: game_deletion_requests table created")

	log.Info().Msg("All migrations completed successfully")
	return nil
}

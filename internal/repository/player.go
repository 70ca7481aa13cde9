package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pod-tracker-bot/internal/model"
)

// PlayerRepository handles pod membership persistence. A player's identity
// is pod-scoped: the same Telegram user gets a distinct row per pod.
type PlayerRepository struct {
	pool *pgxpool.Pool
}

// NewPlayerRepository creates a new PlayerRepository instance.
func NewPlayerRepository(pool *pgxpool.Pool) *PlayerRepository {
	return &PlayerRepository{pool: pool}
}

// Upsert registers a Telegram user in a pod, or refreshes their profile
// snapshot if they already joined. Joining is idempotent.
func (r *PlayerRepository) Upsert(ctx context.Context, podID, telegramID int64, name string, avatarURL *string) (*model.PodPlayer, error) {
	const query = `
		INSERT INTO pods_players (pod_id, telegram_id, name, avatar_url)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (pod_id, telegram_id)
		DO UPDATE SET name = EXCLUDED.name, avatar_url = EXCLUDED.avatar_url
		RETURNING pods_player_id, pod_id, telegram_id, name, avatar_url
	`

	var p model.PodPlayer
	err := r.pool.QueryRow(ctx, query, podID, telegramID, name, avatarURL).Scan(
		&p.ID,
		&p.PodID,
		&p.TelegramID,
		&p.Name,
		&p.AvatarURL,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert player: %w", err)
	}

	return &p, nil
}

// GetByTelegramID retrieves a pod member by their Telegram id.
// Returns ErrPlayerNotFound if the user never joined the pod.
func (r *PlayerRepository) GetByTelegramID(ctx context.Context, podID, telegramID int64) (*model.PodPlayer, error) {
	const query = `
		SELECT pods_player_id, pod_id, telegram_id, name, avatar_url
		FROM pods_players
		WHERE pod_id = $1 AND telegram_id = $2
	`

	var p model.PodPlayer
	err := r.pool.QueryRow(ctx, query, podID, telegramID).Scan(
		&p.ID,
		&p.PodID,
		&p.TelegramID,
		&p.Name,
		&p.AvatarURL,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPlayerNotFound
		}
		return nil, fmt.Errorf("failed to get player: %w", err)
	}

	return &p, nil
}

// ListByPod retrieves all members of a pod ordered by join order.
func (r *PlayerRepository) ListByPod(ctx context.Context, podID int64) ([]model.PodPlayer, error) {
	const query = `
		SELECT pods_player_id, pod_id, telegram_id, name, avatar_url
		FROM pods_players
		WHERE pod_id = $1
		ORDER BY pods_player_id
	`

	rows, err := r.pool.Query(ctx, query, podID)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	defer rows.Close()

	var players []model.PodPlayer
	for rows.Next() {
		var p model.PodPlayer
		err := rows.Scan(
			&p.ID,
			&p.PodID,
			&p.TelegramID,
			&p.Name,
			&p.AvatarURL,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan player: %w", err)
		}
		players = append(players, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating players: %w", err)
	}

	return players, nil
}

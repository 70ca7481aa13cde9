package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pod-tracker-bot/internal/model"
)

// PlayerGameRecord is one game's outcome for a player, used to derive
// streaks and recent-form statistics.
type PlayerGameRecord struct {
	GameID       int64
	CreatedAt    time.Time
	Outcome      model.Outcome
	Eliminations int
}

// StatsRepository computes derived player statistics from committed game
// rows. Stats are never stored; deleting a game changes them implicitly.
type StatsRepository struct {
	pool *pgxpool.Pool
}

// NewStatsRepository creates a new StatsRepository instance.
func NewStatsRepository(pool *pgxpool.Pool) *StatsRepository {
	return &StatsRepository{pool: pool}
}

// playerStatsColumns counts one member's games, outcomes, and
// eliminations, restricted to games at or after the since bound. The
// zero time means all-time.
const playerStatsColumns = `
	pp.telegram_id,
	pp.name,
	(SELECT COUNT(*) FROM game_results gr
	 JOIN games g ON g.game_id = gr.game_id
	 WHERE gr.player_id = pp.pods_player_id AND g.created_at >= $2) AS games,
	(SELECT COUNT(*) FROM game_results gr
	 JOIN games g ON g.game_id = gr.game_id
	 WHERE gr.player_id = pp.pods_player_id AND g.created_at >= $2 AND gr.outcome = 'win') AS wins,
	(SELECT COUNT(*) FROM game_results gr
	 JOIN games g ON g.game_id = gr.game_id
	 WHERE gr.player_id = pp.pods_player_id AND g.created_at >= $2 AND gr.outcome = 'lose') AS losses,
	(SELECT COUNT(*) FROM game_results gr
	 JOIN games g ON g.game_id = gr.game_id
	 WHERE gr.player_id = pp.pods_player_id AND g.created_at >= $2 AND gr.outcome = 'draw') AS draws,
	(SELECT COUNT(*) FROM eliminations e
	 JOIN games g ON g.game_id = e.game_id
	 WHERE e.eliminator_id = pp.pods_player_id AND g.created_at >= $2) AS eliminations
`

// PodStats computes statistics for every member of a pod, including
// members who have not played a game yet. Pass the zero time for
// all-time stats, or a cutoff to only count games since then.
func (r *StatsRepository) PodStats(ctx context.Context, podID int64, since time.Time) ([]model.PlayerStats, error) {
	query := `
		SELECT ` + playerStatsColumns + `
		FROM pods_players pp
		WHERE pp.pod_id = $1
		ORDER BY pp.pods_player_id
	`

	rows, err := r.pool.Query(ctx, query, podID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query pod stats: %w", err)
	}
	defer rows.Close()

	var stats []model.PlayerStats
	for rows.Next() {
		var s model.PlayerStats
		err := rows.Scan(
			&s.TelegramID,
			&s.Name,
			&s.GamesPlayed,
			&s.Wins,
			&s.Losses,
			&s.Draws,
			&s.Eliminations,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pod stats: %w", err)
		}
		stats = append(stats, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pod stats: %w", err)
	}

	return stats, nil
}

// PlayerStats computes one pod member's statistics.
// Returns ErrPlayerNotFound if the user never joined the pod.
func (r *StatsRepository) PlayerStats(ctx context.Context, podID, telegramID int64, since time.Time) (*model.PlayerStats, error) {
	query := `
		SELECT ` + playerStatsColumns + `
		FROM pods_players pp
		WHERE pp.pod_id = $1 AND pp.telegram_id = $3
	`

	var s model.PlayerStats
	err := r.pool.QueryRow(ctx, query, podID, since, telegramID).Scan(
		&s.TelegramID,
		&s.Name,
		&s.GamesPlayed,
		&s.Wins,
		&s.Losses,
		&s.Draws,
		&s.Eliminations,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPlayerNotFound
		}
		return nil, fmt.Errorf("failed to query player stats: %w", err)
	}

	return &s, nil
}

// PlayerStatsAllPods aggregates a user's statistics across every pod
// they are a member of. Returns ErrPlayerNotFound if the user joined
// no pod at all.
func (r *StatsRepository) PlayerStatsAllPods(ctx context.Context, telegramID int64) (*model.PlayerStats, error) {
	const query = `
		SELECT
			COALESCE(MAX(pp.name), '') AS name,
			COUNT(DISTINCT pp.pods_player_id) AS memberships,
			COUNT(gr.outcome) AS games,
			COUNT(gr.outcome) FILTER (WHERE gr.outcome = 'win') AS wins,
			COUNT(gr.outcome) FILTER (WHERE gr.outcome = 'lose') AS losses,
			COUNT(gr.outcome) FILTER (WHERE gr.outcome = 'draw') AS draws,
			(SELECT COUNT(*) FROM eliminations e
			 JOIN pods_players ep ON ep.pods_player_id = e.eliminator_id
			 WHERE ep.telegram_id = $1) AS eliminations
		FROM pods_players pp
		LEFT JOIN game_results gr ON gr.player_id = pp.pods_player_id
		WHERE pp.telegram_id = $1
	`

	var (
		s           model.PlayerStats
		memberships int
	)
	err := r.pool.QueryRow(ctx, query, telegramID).Scan(
		&s.Name,
		&memberships,
		&s.GamesPlayed,
		&s.Wins,
		&s.Losses,
		&s.Draws,
		&s.Eliminations,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query aggregate stats: %w", err)
	}
	if memberships == 0 {
		return nil, ErrPlayerNotFound
	}
	s.TelegramID = telegramID

	return &s, nil
}

// PlayerTimeline returns a player's games in chronological order, each
// with the player's outcome and elimination count in that game.
func (r *StatsRepository) PlayerTimeline(ctx context.Context, podID, telegramID int64) ([]PlayerGameRecord, error) {
	const query = `
		SELECT g.game_id, g.created_at, gr.outcome,
		       (SELECT COUNT(*) FROM eliminations e
		        WHERE e.game_id = g.game_id AND e.eliminator_id = pp.pods_player_id)
		FROM games g
		JOIN game_results gr ON gr.game_id = g.game_id
		JOIN pods_players pp ON pp.pods_player_id = gr.player_id
		WHERE g.pod_id = $1 AND pp.telegram_id = $2
		ORDER BY g.created_at ASC, g.game_id ASC
	`

	rows, err := r.pool.Query(ctx, query, podID, telegramID)
	if err != nil {
		return nil, fmt.Errorf("failed to query player timeline: %w", err)
	}
	defer rows.Close()

	var records []PlayerGameRecord
	for rows.Next() {
		var rec PlayerGameRecord
		var outcome string
		if err := rows.Scan(&rec.GameID, &rec.CreatedAt, &outcome, &rec.Eliminations); err != nil {
			return nil, fmt.Errorf("failed to scan timeline row: %w", err)
		}
		rec.Outcome = model.Outcome(outcome)
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating player timeline: %w", err)
	}

	return records, nil
}

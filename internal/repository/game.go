package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pod-tracker-bot/internal/game"
	"pod-tracker-bot/internal/model"
	"pod-tracker-bot/internal/pkg/refcode"
)

// deletionQuorum is the number of distinct participants that must request
// deletion before a game is removed.
const deletionQuorum = 2

// Errors for the deletion protocol.
var (
	ErrRequesterNotInGame       = errors.New("requester did not play in this game")
	ErrDeletionAlreadyRequested = errors.New("deletion already requested by this player")
)

// UnknownPlayerError is returned when a draft participant has no
// membership row in the pod at commit time. The draft's roster snapshot
// can drift from the directory between session start and commit.
type UnknownPlayerError struct {
	TelegramID int64
	Name       string
}

func (e *UnknownPlayerError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("player %d is not a member of this pod", e.TelegramID)
	}
	return fmt.Sprintf("player %s (%d) is not a member of this pod", e.Name, e.TelegramID)
}

// GameRepository handles committed game persistence: the atomic commit
// protocol, game lookup, history, and the two-step deletion protocol.
type GameRepository struct {
	pool  *pgxpool.Pool
	codec *refcode.Codec
}

// NewGameRepository creates a new GameRepository instance.
func NewGameRepository(pool *pgxpool.Pool, codec *refcode.Codec) *GameRepository {
	return &GameRepository{pool: pool, codec: codec}
}

// Commit persists a finalized draft in a single transaction: the game
// row, one result row per participant, and the elimination links. Every
// participant is re-resolved against the pod membership inside the
// transaction; if any identity no longer resolves, nothing is written
// and an UnknownPlayerError is returned.
func (r *GameRepository) Commit(ctx context.Context, draft *game.Draft) (*model.CommittedGame, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to begin commit transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	participants := draft.Participants()
	playerIDs := make(map[int64]int64, len(participants)) // telegram id -> pods_player_id
	for _, p := range participants {
		const query = `
			SELECT pods_player_id FROM pods_players
			WHERE pod_id = $1 AND telegram_id = $2
		`
		var id int64
		err := tx.QueryRow(ctx, query, draft.PodID(), p.TelegramID).Scan(&id)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, &UnknownPlayerError{TelegramID: p.TelegramID, Name: p.Name}
			}
			return nil, fmt.Errorf("failed to resolve player %d: %w", p.TelegramID, err)
		}
		playerIDs[p.TelegramID] = id
	}

	const insertGame = `
		INSERT INTO games (pod_id, created_at)
		VALUES ($1, $2)
		RETURNING game_id, created_at
	`
	g := model.Game{PodID: draft.PodID()}
	err = tx.QueryRow(ctx, insertGame, draft.PodID(), draft.CreatedAt()).Scan(&g.GameID, &g.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert game: %w", err)
	}

	// The reference encodes the generated id, so it is assigned in a
	// second statement within the same transaction.
	ref, err := r.codec.Encode(g.GameID)
	if err != nil {
		return nil, fmt.Errorf("failed to encode deletion reference: %w", err)
	}
	const setReference = `UPDATE games SET deletion_reference = $2 WHERE game_id = $1`
	if _, err := tx.Exec(ctx, setReference, g.GameID, ref); err != nil {
		return nil, fmt.Errorf("failed to set deletion reference: %w", err)
	}
	g.DeletionReference = ref

	const insertResult = `
		INSERT INTO game_results (game_id, player_id, outcome)
		VALUES ($1, $2, $3)
	`
	outcomes := draft.Outcomes()
	for _, p := range participants {
		if _, err := tx.Exec(ctx, insertResult, g.GameID, playerIDs[p.TelegramID], string(outcomes[p.TelegramID])); err != nil {
			return nil, fmt.Errorf("failed to insert result for player %d: %w", p.TelegramID, err)
		}
	}

	const insertElimination = `
		INSERT INTO eliminations (game_id, eliminator_id, eliminated_id)
		VALUES ($1, $2, $3)
	`
	eliminations := draft.Eliminations()
	if err := verifyEliminationMembership(eliminations, playerIDs); err != nil {
		return nil, err
	}
	for eliminated, eliminator := range eliminations {
		if _, err := tx.Exec(ctx, insertElimination, g.GameID, playerIDs[eliminator], playerIDs[eliminated]); err != nil {
			return nil, fmt.Errorf("failed to insert elimination: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit game: %w", err)
	}

	committed := &model.CommittedGame{
		Game:         g,
		Players:      make(map[int64]string, len(participants)),
		Outcomes:     make(map[int64]model.Outcome, len(participants)),
		Eliminations: draft.Eliminations(),
	}
	for _, p := range participants {
		committed.Players[p.TelegramID] = p.Name
		committed.Outcomes[p.TelegramID] = outcomes[p.TelegramID]
	}
	return committed, nil
}

// verifyEliminationMembership checks that both sides of every elimination
// link resolved to a membership row before anything is inserted. The draft
// already guarantees this for its own participants; the check guards the
// storage layer against callers that bypass it.
func verifyEliminationMembership(eliminations, playerIDs map[int64]int64) error {
	for eliminated, eliminator := range eliminations {
		if _, ok := playerIDs[eliminated]; !ok {
			return &UnknownPlayerError{TelegramID: eliminated}
		}
		if _, ok := playerIDs[eliminator]; !ok {
			return &UnknownPlayerError{TelegramID: eliminator}
		}
	}
	return nil
}

// GetByID retrieves a committed game with its full participant data.
// Returns ErrGameNotFound if the game does not exist.
func (r *GameRepository) GetByID(ctx context.Context, gameID int64) (*model.CommittedGame, error) {
	games, err := r.loadGames(ctx, `
		SELECT g.game_id, g.pod_id, g.created_at, g.deletion_reference,
		       pp.telegram_id, pp.name, gr.outcome
		FROM games g
		JOIN game_results gr ON gr.game_id = g.game_id
		JOIN pods_players pp ON pp.pods_player_id = gr.player_id
		WHERE g.game_id = $1
	`, gameID)
	if err != nil {
		return nil, err
	}
	if len(games) == 0 {
		return nil, ErrGameNotFound
	}
	return games[0], nil
}

// GetByReference retrieves a committed game by its deletion reference.
// Returns ErrGameNotFound for malformed references and unknown games
// alike; a caller cannot distinguish a deleted game from a fabricated
// reference.
func (r *GameRepository) GetByReference(ctx context.Context, ref string) (*model.CommittedGame, error) {
	gameID, err := r.codec.Decode(ref)
	if err != nil {
		return nil, ErrGameNotFound
	}
	return r.GetByID(ctx, gameID)
}

// ListByPod retrieves a pod's most recent games, newest first.
func (r *GameRepository) ListByPod(ctx context.Context, podID int64, limit int) ([]*model.CommittedGame, error) {
	return r.loadGames(ctx, `
		WITH recent AS (
			SELECT game_id, pod_id, created_at, deletion_reference
			FROM games
			WHERE pod_id = $1
			ORDER BY created_at DESC, game_id DESC
			LIMIT $2
		)
		SELECT g.game_id, g.pod_id, g.created_at, g.deletion_reference,
		       pp.telegram_id, pp.name, gr.outcome
		FROM recent g
		JOIN game_results gr ON gr.game_id = g.game_id
		JOIN pods_players pp ON pp.pods_player_id = gr.player_id
	`, podID, limit)
}

// ListByPlayer retrieves the most recent games a player participated in
// within a pod, newest first.
func (r *GameRepository) ListByPlayer(ctx context.Context, podID, telegramID int64, limit int) ([]*model.CommittedGame, error) {
	return r.loadGames(ctx, `
		WITH recent AS (
			SELECT g.game_id, g.pod_id, g.created_at, g.deletion_reference
			FROM games g
			JOIN game_results gr ON gr.game_id = g.game_id
			JOIN pods_players pp ON pp.pods_player_id = gr.player_id
			WHERE g.pod_id = $1 AND pp.telegram_id = $2
			ORDER BY g.created_at DESC, g.game_id DESC
			LIMIT $3
		)
		SELECT g.game_id, g.pod_id, g.created_at, g.deletion_reference,
		       pp.telegram_id, pp.name, gr.outcome
		FROM recent g
		JOIN game_results gr ON gr.game_id = g.game_id
		JOIN pods_players pp ON pp.pods_player_id = gr.player_id
	`, podID, telegramID, limit)
}

// RequestDeletion records one participant's request to delete a game.
// When deletionQuorum distinct participants have requested, the game and
// all its dependent rows are removed. Returns whether the game was
// deleted by this request.
//
// The game row is locked for the duration, so two concurrent requests
// serialize and exactly one of them observes the quorum.
func (r *GameRepository) RequestDeletion(ctx context.Context, ref string, requesterTelegramID int64) (bool, error) {
	gameID, err := r.codec.Decode(ref)
	if err != nil {
		return false, ErrGameNotFound
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, fmt.Errorf("failed to begin deletion transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	const lockGame = `SELECT pod_id FROM games WHERE game_id = $1 FOR UPDATE`
	var podID int64
	if err := tx.QueryRow(ctx, lockGame, gameID).Scan(&podID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ErrGameNotFound
		}
		return false, fmt.Errorf("failed to lock game: %w", err)
	}

	// Only participants of the game may request its deletion.
	const findParticipant = `
		SELECT gr.player_id
		FROM game_results gr
		JOIN pods_players pp ON pp.pods_player_id = gr.player_id
		WHERE gr.game_id = $1 AND pp.telegram_id = $2
	`
	var requesterID int64
	if err := tx.QueryRow(ctx, findParticipant, gameID, requesterTelegramID).Scan(&requesterID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ErrRequesterNotInGame
		}
		return false, fmt.Errorf("failed to resolve requester: %w", err)
	}

	const insertRequest = `
		INSERT INTO game_deletion_requests (game_id, requester_id)
		VALUES ($1, $2)
		ON CONFLICT (game_id, requester_id) DO NOTHING
	`
	res, err := tx.Exec(ctx, insertRequest, gameID, requesterID)
	if err != nil {
		return false, fmt.Errorf("failed to record deletion request: %w", err)
	}
	if res.RowsAffected() == 0 {
		return false, ErrDeletionAlreadyRequested
	}

	const countRequests = `
		SELECT COUNT(DISTINCT requester_id)
		FROM game_deletion_requests
		WHERE game_id = $1
	`
	var requests int
	if err := tx.QueryRow(ctx, countRequests, gameID).Scan(&requests); err != nil {
		return false, fmt.Errorf("failed to count deletion requests: %w", err)
	}

	deleted := requests >= deletionQuorum
	if deleted {
		// Results, eliminations, and requests cascade from the game row.
		if _, err := tx.Exec(ctx, `DELETE FROM games WHERE game_id = $1`, gameID); err != nil {
			return false, fmt.Errorf("failed to delete game: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit deletion request: %w", err)
	}
	return deleted, nil
}

// loadGames runs a query yielding one row per (game, participant) and
// assembles full CommittedGame values, newest first. Elimination links
// are fetched in a second query.
func (r *GameRepository) loadGames(ctx context.Context, query string, args ...any) ([]*model.CommittedGame, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query games: %w", err)
	}
	defer rows.Close()

	byID := make(map[int64]*model.CommittedGame)
	for rows.Next() {
		var (
			g          model.Game
			telegramID int64
			name       string
			outcome    string
		)
		if err := rows.Scan(&g.GameID, &g.PodID, &g.CreatedAt, &g.DeletionReference, &telegramID, &name, &outcome); err != nil {
			return nil, fmt.Errorf("failed to scan game row: %w", err)
		}
		cg, ok := byID[g.GameID]
		if !ok {
			cg = &model.CommittedGame{
				Game:         g,
				Players:      make(map[int64]string),
				Outcomes:     make(map[int64]model.Outcome),
				Eliminations: make(map[int64]int64),
			}
			byID[g.GameID] = cg
		}
		cg.Players[telegramID] = name
		cg.Outcomes[telegramID] = model.Outcome(outcome)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating games: %w", err)
	}
	if len(byID) == 0 {
		return nil, nil
	}

	gameIDs := make([]int64, 0, len(byID))
	for id := range byID {
		gameIDs = append(gameIDs, id)
	}

	const elimQuery = `
		SELECT e.game_id, eliminated.telegram_id, eliminator.telegram_id
		FROM eliminations e
		JOIN pods_players eliminated ON eliminated.pods_player_id = e.eliminated_id
		JOIN pods_players eliminator ON eliminator.pods_player_id = e.eliminator_id
		WHERE e.game_id = ANY($1)
	`
	elimRows, err := r.pool.Query(ctx, elimQuery, gameIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query eliminations: %w", err)
	}
	defer elimRows.Close()

	for elimRows.Next() {
		var gameID, eliminated, eliminator int64
		if err := elimRows.Scan(&gameID, &eliminated, &eliminator); err != nil {
			return nil, fmt.Errorf("failed to scan elimination row: %w", err)
		}
		byID[gameID].Eliminations[eliminated] = eliminator
	}
	if err := elimRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating eliminations: %w", err)
	}

	games := make([]*model.CommittedGame, 0, len(byID))
	for _, g := range byID {
		games = append(games, g)
	}
	sort.Slice(games, func(i, j int) bool {
		if !games[i].CreatedAt.Equal(games[j].CreatedAt) {
			return games[i].CreatedAt.After(games[j].CreatedAt)
		}
		return games[i].GameID > games[j].GameID
	})
	return games, nil
}

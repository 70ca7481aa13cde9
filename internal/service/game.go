// Package service provides business logic implementations.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"pod-tracker-bot/internal/game"
	"pod-tracker-bot/internal/model"
	"pod-tracker-bot/internal/repository"
)

// ErrNotCommittable is returned when a draft is missing outcomes or
// players and cannot be persisted.
var ErrNotCommittable = errors.New("draft is not ready to commit")

// DeletionStatus is the outcome of one deletion request.
type DeletionStatus int

const (
	// DeletionNotFound: the reference does not name a stored game.
	DeletionNotFound DeletionStatus = iota
	// DeletionNotInGame: the requester did not play in the game.
	DeletionNotInGame
	// DeletionAlreadyRequested: the requester already has an open request.
	DeletionAlreadyRequested
	// DeletionPending: the request was recorded, more requests needed.
	DeletionPending
	// DeletionDeleted: the request completed the quorum, game removed.
	DeletionDeleted
)

// GameService coordinates the commit and deletion protocols.
type GameService struct {
	games *repository.GameRepository
}

// NewGameService creates a new GameService instance.
func NewGameService(games *repository.GameRepository) *GameService {
	return &GameService{games: games}
}

// Commit validates and persists a finalized draft.
func (s *GameService) Commit(ctx context.Context, draft *game.Draft) (*model.CommittedGame, error) {
	if !draft.IsCommittable() {
		return nil, ErrNotCommittable
	}

	committed, err := s.games.Commit(ctx, draft)
	if err != nil {
		return nil, fmt.Errorf("commit game for pod %d: %w", draft.PodID(), err)
	}

	log.Info().
		Int64("game_id", committed.GameID).
		Int64("pod_id", committed.PodID).
		Str("reference", committed.DeletionReference).
		Int("players", len(committed.Players)).
		Msg("Game committed")
	return committed, nil
}

// RequestDeletion records one participant's deletion request and maps the
// result to a user-facing status. Unexpected failures surface as an error
// alongside DeletionNotFound.
func (s *GameService) RequestDeletion(ctx context.Context, ref string, requesterTelegramID int64) (DeletionStatus, error) {
	deleted, err := s.games.RequestDeletion(ctx, ref, requesterTelegramID)
	switch {
	case errors.Is(err, repository.ErrGameNotFound):
		return DeletionNotFound, nil
	case errors.Is(err, repository.ErrRequesterNotInGame):
		return DeletionNotInGame, nil
	case errors.Is(err, repository.ErrDeletionAlreadyRequested):
		return DeletionAlreadyRequested, nil
	case err != nil:
		return DeletionNotFound, fmt.Errorf("request deletion of %q: %w", ref, err)
	}

	if deleted {
		log.Info().
			Str("reference", ref).
			Int64("requester", requesterTelegramID).
			Msg("Game deleted by player quorum")
		return DeletionDeleted, nil
	}
	log.Debug().
		Str("reference", ref).
		Int64("requester", requesterTelegramID).
		Msg("Deletion request recorded")
	return DeletionPending, nil
}

// GetByReference loads a committed game by its deletion reference.
func (s *GameService) GetByReference(ctx context.Context, ref string) (*model.CommittedGame, error) {
	return s.games.GetByReference(ctx, ref)
}

// PodHistory returns a pod's most recent games, newest first.
func (s *GameService) PodHistory(ctx context.Context, podID int64, limit int) ([]*model.CommittedGame, error) {
	return s.games.ListByPod(ctx, podID, limit)
}

// PlayerHistory returns the most recent games a player participated in.
func (s *GameService) PlayerHistory(ctx context.Context, podID, telegramID int64, limit int) ([]*model.CommittedGame, error) {
	return s.games.ListByPlayer(ctx, podID, telegramID, limit)
}

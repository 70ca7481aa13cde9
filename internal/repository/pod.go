// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pod-tracker-bot/internal/model"
)

// Common errors for repository operations.
var (
	ErrPodNotFound    = errors.New("pod not found")
	ErrPlayerNotFound = errors.New("player not found")
	ErrGameNotFound   = errors.New("game not found")
)

// PodRepository handles pod persistence. A pod's id is the Telegram chat
// id of the group it was created in.
type PodRepository struct {
	pool *pgxpool.Pool
}

// NewPodRepository creates a new PodRepository instance.
func NewPodRepository(pool *pgxpool.Pool) *PodRepository {
	return &PodRepository{pool: pool}
}

// Create creates a pod for a chat. Creating a pod that already exists is
// a no-op; the existing pod is returned with created=false.
func (r *PodRepository) Create(ctx context.Context, podID int64, name string) (*model.Pod, bool, error) {
	const query = `
		INSERT INTO pods (pod_id, name)
		VALUES ($1, $2)
		ON CONFLICT (pod_id) DO NOTHING
		RETURNING pod_id, name
	`

	var pod model.Pod
	err := r.pool.QueryRow(ctx, query, podID, name).Scan(&pod.PodID, &pod.Name)
	if err == nil {
		return &pod, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to create pod: %w", err)
	}

	existing, err := r.GetByID(ctx, podID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// GetByID retrieves a pod by its chat id.
// Returns ErrPodNotFound if no pod was created for the chat.
func (r *PodRepository) GetByID(ctx context.Context, podID int64) (*model.Pod, error) {
	const query = `SELECT pod_id, name FROM pods WHERE pod_id = $1`

	var pod model.Pod
	err := r.pool.QueryRow(ctx, query, podID).Scan(&pod.PodID, &pod.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPodNotFound
		}
		return nil, fmt.Errorf("failed to get pod: %w", err)
	}

	return &pod, nil
}

// Exists checks if a pod exists for the given chat id.
func (r *PodRepository) Exists(ctx context.Context, podID int64) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM pods WHERE pod_id = $1)`

	var exists bool
	err := r.pool.QueryRow(ctx, query, podID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check pod existence: %w", err)
	}

	return exists, nil
}

// Package model defines the data models for the pod tracker bot.
package model

import "time"

// Outcome is a player's result in a single game.
type Outcome string

// Valid game outcomes.
const (
	OutcomeWin  Outcome = "win"
	OutcomeLose Outcome = "lose"
	OutcomeDraw Outcome = "draw"
)

// Valid reports whether o is one of the known outcomes.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeWin, OutcomeLose, OutcomeDraw:
		return true
	}
	return false
}

// Pod represents a playgroup. The pod id is the Telegram chat id of the
// group the pod was created in; pods are never renamed.
type Pod struct {
	PodID int64  `db:"pod_id"`
	Name  string `db:"name"`
}

// PodPlayer is a player's identity within one pod. The same Telegram user
// has a distinct row (and row id) per pod they have joined.
type PodPlayer struct {
	ID         int64   `db:"pods_player_id"`
	PodID      int64   `db:"pod_id"`
	TelegramID int64   `db:"telegram_id"`
	Name       string  `db:"name"`
	AvatarURL  *string `db:"avatar_url"`
}

// Game is a committed game row. DeletionReference is the short salted
// encoding of GameID handed to players for the /delete flow.
type Game struct {
	GameID            int64     `db:"game_id"`
	PodID             int64     `db:"pod_id"`
	CreatedAt         time.Time `db:"created_at"`
	DeletionReference string    `db:"deletion_reference"`
}

// GameResult is one participant's outcome in a committed game.
type GameResult struct {
	GameID   int64   `db:"game_id"`
	PlayerID int64   `db:"player_id"`
	Outcome  Outcome `db:"outcome"`
}

// Elimination records that one participant knocked another out of a game.
type Elimination struct {
	EliminationID int64 `db:"elimination_id"`
	GameID        int64 `db:"game_id"`
	EliminatorID  int64 `db:"eliminator_id"`
	EliminatedID  int64 `db:"eliminated_id"`
}

// DeletionRequest is one participant's open request to delete a game.
type DeletionRequest struct {
	RequestID   int64     `db:"request_id"`
	GameID      int64     `db:"game_id"`
	RequesterID int64     `db:"requester_id"`
	CreatedAt   time.Time `db:"created_at"`
}

// CommittedGame is a fully loaded game: the immutable row plus its
// participants keyed by Telegram id, their outcomes, and eliminations
// (eliminated telegram id -> eliminator telegram id). It is what the commit
// protocol returns and what history/broadcast code consumes.
type CommittedGame struct {
	Game
	Players      map[int64]string
	Outcomes     map[int64]Outcome
	Eliminations map[int64]int64
}

// EliminationsBy counts eliminations attributed to the given participant.
func (g *CommittedGame) EliminationsBy(telegramID int64) int {
	n := 0
	for _, eliminator := range g.Eliminations {
		if eliminator == telegramID {
			n++
		}
	}
	return n
}

// PlayerStats holds a player's derived statistics. It is computed by
// scanning committed game rows, never stored.
type PlayerStats struct {
	TelegramID   int64
	Name         string
	Wins         int
	Losses       int
	Draws        int
	Eliminations int
	GamesPlayed  int
}

// WinRate returns the player's win rate in [0, 1], 0 when no games played.
func (s *PlayerStats) WinRate() float64 {
	if s.GamesPlayed == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.GamesPlayed)
}

// EliminationsPerGame returns the player's average eliminations per
// game, 0 when no games played.
func (s *PlayerStats) EliminationsPerGame() float64 {
	if s.GamesPlayed == 0 {
		return 0
	}
	return float64(s.Eliminations) / float64(s.GamesPlayed)
}

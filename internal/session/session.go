// Package session implements the game-recording state machine. Each
// recording conversation is a session keyed by (user, chat); inbound
// events mutate the session's draft and yield the next prompt, until the
// draft is committed or discarded.
package session

import (
	"fmt"
	"time"

	"pod-tracker-bot/internal/game"
	"pod-tracker-bot/internal/model"
)

// Key identifies one recording session: one user recording one game in
// one chat. The chat id doubles as the pod id.
type Key struct {
	UserID int64
	ChatID int64
}

// String returns the key in "user:chat" form, used for per-session locks.
func (k Key) String() string {
	return fmt.Sprintf("%d:%d", k.UserID, k.ChatID)
}

// Mode selects the recording flow.
type Mode int

const (
	// ModeStandard collects an outcome per player, then eliminations.
	ModeStandard Mode = iota
	// ModeCustom is the winner-first flow: pick the winner, everyone
	// else loses, then collect eliminations starting with the winner.
	ModeCustom
)

// State is the session's position in the recording flow.
type State int

const (
	// StateCollectingPlayers shows the player picker.
	StateCollectingPlayers State = iota
	// StateSelectingWinner waits for the winner pick (custom mode).
	StateSelectingWinner
	// StateCollectingOutcomes loops one participant at a time
	// (standard mode).
	StateCollectingOutcomes
	// StateCollectingEliminations loops one eliminator at a time.
	StateCollectingEliminations
	// StateAwaitingConfirmation waits for "confirm" or "cancel".
	StateAwaitingConfirmation
)

// Session is the working state of one recording conversation. It is owned
// by the manager and only ever mutated while the session's key lock is
// held.
type Session struct {
	Key   Key
	Mode  Mode
	State State
	Draft *game.Draft

	policy  game.Policy
	members []model.PodPlayer // pod roster snapshot for pickers

	elimOrder []int64 // eliminator iteration order
	current   int     // index into draft order (outcomes) or elimOrder
	winner    int64   // custom mode's declared winner

	lastActivity time.Time
}

// member returns the roster entry for a telegram id.
func (s *Session) member(telegramID int64) (model.PodPlayer, bool) {
	for _, m := range s.members {
		if m.TelegramID == telegramID {
			return m, true
		}
	}
	return model.PodPlayer{}, false
}

// currentOutcomePlayer returns the participant whose outcome is being
// collected.
func (s *Session) currentOutcomePlayer() game.Participant {
	return s.Draft.Participants()[s.current]
}

// currentEliminator returns the participant whose eliminations are being
// collected.
func (s *Session) currentEliminator() game.Participant {
	id := s.elimOrder[s.current]
	name, _ := s.Draft.PlayerName(id)
	return game.Participant{TelegramID: id, Name: name}
}

// allAccountedFor reports whether every participant is either eliminated
// or a declared winner. Custom mode uses this to finish the elimination
// loop early.
func (s *Session) allAccountedFor() bool {
	for _, p := range s.Draft.Participants() {
		if s.Draft.IsEliminated(p.TelegramID) {
			continue
		}
		if o, ok := s.Draft.Outcome(p.TelegramID); ok && o == model.OutcomeWin {
			continue
		}
		return false
	}
	return true
}

// Package game implements the in-memory draft game aggregate: the
// participants, outcomes, and elimination links collected during a
// recording session before the game is committed to storage.
package game

import (
	"errors"
	"fmt"
	"time"

	"pod-tracker-bot/internal/model"
)

// Errors for draft mutations.
var (
	// ErrDraftCommitted is returned when mutating a draft that has
	// already been committed.
	ErrDraftCommitted = errors.New("draft has already been committed")
)

// UnknownParticipantError is returned when an outcome or elimination
// references an identity that was never added to the draft.
type UnknownParticipantError struct {
	TelegramID int64
}

func (e *UnknownParticipantError) Error() string {
	return fmt.Sprintf("player %d is not in this game", e.TelegramID)
}

// Participant is one player in a draft: their pod-scoped Telegram identity
// and the display name snapshot taken when they were added.
type Participant struct {
	TelegramID int64
	Name       string
}

// Draft is a mutable, not-yet-persisted game. It is owned exclusively by
// one recording session and must never be shared across sessions.
type Draft struct {
	podID      int64
	createdAt  time.Time
	minPlayers int

	order        []int64
	players      map[int64]string
	outcomes     map[int64]model.Outcome
	eliminations map[int64]int64 // eliminated -> eliminator
	committed    bool
}

// NewDraft creates an empty draft for a pod. minPlayers is the commit-time
// participant minimum; pass 0 to disable the check.
func NewDraft(podID int64, minPlayers int, createdAt time.Time) *Draft {
	return &Draft{
		podID:        podID,
		createdAt:    createdAt,
		minPlayers:   minPlayers,
		players:      make(map[int64]string),
		outcomes:     make(map[int64]model.Outcome),
		eliminations: make(map[int64]int64),
	}
}

// PodID returns the pod this draft belongs to.
func (d *Draft) PodID() int64 { return d.podID }

// CreatedAt returns the draft creation time.
func (d *Draft) CreatedAt() time.Time { return d.createdAt }

// MinPlayers returns the commit-time participant minimum (0 = disabled).
func (d *Draft) MinPlayers() int { return d.minPlayers }

// AddPlayer adds a participant, or refreshes the name snapshot if the
// identity is already present.
func (d *Draft) AddPlayer(telegramID int64, name string) error {
	if d.committed {
		return ErrDraftCommitted
	}
	if _, ok := d.players[telegramID]; !ok {
		d.order = append(d.order, telegramID)
	}
	d.players[telegramID] = name
	return nil
}

// HasPlayer reports whether the identity is a current participant.
func (d *Draft) HasPlayer(telegramID int64) bool {
	_, ok := d.players[telegramID]
	return ok
}

// PlayerName returns the name snapshot for a participant.
func (d *Draft) PlayerName(telegramID int64) (string, bool) {
	name, ok := d.players[telegramID]
	return name, ok
}

// Participants returns all participants in the order they were added.
func (d *Draft) Participants() []Participant {
	out := make([]Participant, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, Participant{TelegramID: id, Name: d.players[id]})
	}
	return out
}

// PlayerCount returns the number of participants.
func (d *Draft) PlayerCount() int { return len(d.order) }

// RecordOutcome records (or overwrites) a participant's outcome.
func (d *Draft) RecordOutcome(telegramID int64, outcome model.Outcome) error {
	if d.committed {
		return ErrDraftCommitted
	}
	if !outcome.Valid() {
		return fmt.Errorf("invalid outcome %q", outcome)
	}
	if !d.HasPlayer(telegramID) {
		return &UnknownParticipantError{TelegramID: telegramID}
	}
	d.outcomes[telegramID] = outcome
	return nil
}

// Outcome returns the recorded outcome for a participant, if any.
func (d *Draft) Outcome(telegramID int64) (model.Outcome, bool) {
	o, ok := d.outcomes[telegramID]
	return o, ok
}

// Outcomes returns a copy of the outcome map.
func (d *Draft) Outcomes() map[int64]model.Outcome {
	out := make(map[int64]model.Outcome, len(d.outcomes))
	for id, o := range d.outcomes {
		out[id] = o
	}
	return out
}

// Winners returns the participants with a recorded win, in added order.
func (d *Draft) Winners() []int64 {
	var out []int64
	for _, id := range d.order {
		if d.outcomes[id] == model.OutcomeWin {
			out = append(out, id)
		}
	}
	return out
}

// RecordElimination records that eliminator knocked out eliminated. A
// player has at most one eliminator; recording again overwrites.
func (d *Draft) RecordElimination(eliminated, eliminator int64) error {
	if d.committed {
		return ErrDraftCommitted
	}
	if !d.HasPlayer(eliminated) {
		return &UnknownParticipantError{TelegramID: eliminated}
	}
	if !d.HasPlayer(eliminator) {
		return &UnknownParticipantError{TelegramID: eliminator}
	}
	d.eliminations[eliminated] = eliminator
	return nil
}

// RemoveEliminationsBy clears every elimination attributed to eliminator,
// leaving eliminations by other players untouched.
func (d *Draft) RemoveEliminationsBy(eliminator int64) {
	for eliminated, by := range d.eliminations {
		if by == eliminator {
			delete(d.eliminations, eliminated)
		}
	}
}

// Eliminations returns a copy of the eliminated -> eliminator map.
func (d *Draft) Eliminations() map[int64]int64 {
	out := make(map[int64]int64, len(d.eliminations))
	for eliminated, eliminator := range d.eliminations {
		out[eliminated] = eliminator
	}
	return out
}

// EliminatedBy returns the participants eliminated by the given player,
// in added order.
func (d *Draft) EliminatedBy(eliminator int64) []int64 {
	var out []int64
	for _, id := range d.order {
		if by, ok := d.eliminations[id]; ok && by == eliminator {
			out = append(out, id)
		}
	}
	return out
}

// IsEliminated reports whether the participant has an eliminator recorded.
func (d *Draft) IsEliminated(telegramID int64) bool {
	_, ok := d.eliminations[telegramID]
	return ok
}

// EliminationCount returns how many players the participant eliminated.
func (d *Draft) EliminationCount(telegramID int64) int {
	n := 0
	for _, eliminator := range d.eliminations {
		if eliminator == telegramID {
			n++
		}
	}
	return n
}

// IsCommittable reports whether the draft can be committed: every
// participant has an outcome and the participant count meets the minimum.
func (d *Draft) IsCommittable() bool {
	if len(d.order) < d.minPlayers {
		return false
	}
	if len(d.order) == 0 {
		return false
	}
	for _, id := range d.order {
		if _, ok := d.outcomes[id]; !ok {
			return false
		}
	}
	return true
}

// MissingOutcomes returns participants without a recorded outcome.
func (d *Draft) MissingOutcomes() []int64 {
	var out []int64
	for _, id := range d.order {
		if _, ok := d.outcomes[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

// Committed reports whether the draft has been committed.
func (d *Draft) Committed() bool { return d.committed }

// MarkCommitted freezes the draft after a successful commit. Further
// mutations fail with ErrDraftCommitted.
func (d *Draft) MarkCommitted() { d.committed = true }

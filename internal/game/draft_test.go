package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"pod-tracker-bot/internal/model"
)

func newTestDraft(t *testing.T, minPlayers int) *Draft {
	t.Helper()
	return NewDraft(100, minPlayers, time.Date(2025, 3, 1, 18, 30, 0, 0, time.UTC))
}

func TestAddPlayer(t *testing.T) {
	d := newTestDraft(t, 2)

	require.NoError(t, d.AddPlayer(1, "Alice"))
	require.NoError(t, d.AddPlayer(2, "Bob"))
	assert.Equal(t, 2, d.PlayerCount())

	// Re-adding refreshes the name snapshot without duplicating.
	require.NoError(t, d.AddPlayer(1, "Alice2"))
	assert.Equal(t, 2, d.PlayerCount())
	name, ok := d.PlayerName(1)
	require.True(t, ok)
	assert.Equal(t, "Alice2", name)

	parts := d.Participants()
	require.Len(t, parts, 2)
	assert.Equal(t, int64(1), parts[0].TelegramID)
	assert.Equal(t, int64(2), parts[1].TelegramID)
}

func TestAddPlayerAfterCommitFails(t *testing.T) {
	d := newTestDraft(t, 2)
	require.NoError(t, d.AddPlayer(1, "Alice"))
	d.MarkCommitted()

	err := d.AddPlayer(2, "Bob")
	assert.ErrorIs(t, err, ErrDraftCommitted)
	assert.Equal(t, 1, d.PlayerCount())
}

func TestRecordOutcomeUnknownParticipant(t *testing.T) {
	d := newTestDraft(t, 2)
	require.NoError(t, d.AddPlayer(1, "Alice"))

	err := d.RecordOutcome(99, model.OutcomeWin)
	var unknown *UnknownParticipantError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, int64(99), unknown.TelegramID)

	// Draft is unchanged after the failed call.
	assert.Empty(t, d.Outcomes())
}

func TestRecordOutcomeOverwrites(t *testing.T) {
	d := newTestDraft(t, 2)
	require.NoError(t, d.AddPlayer(1, "Alice"))

	require.NoError(t, d.RecordOutcome(1, model.OutcomeLose))
	require.NoError(t, d.RecordOutcome(1, model.OutcomeWin))

	o, ok := d.Outcome(1)
	require.True(t, ok)
	assert.Equal(t, model.OutcomeWin, o)
	assert.Len(t, d.Outcomes(), 1)
}

func TestRecordOutcomeRejectsInvalid(t *testing.T) {
	d := newTestDraft(t, 2)
	require.NoError(t, d.AddPlayer(1, "Alice"))
	assert.Error(t, d.RecordOutcome(1, model.Outcome("explosion")))
}

func TestRecordElimination(t *testing.T) {
	d := newTestDraft(t, 2)
	require.NoError(t, d.AddPlayer(1, "Alice"))
	require.NoError(t, d.AddPlayer(2, "Bob"))

	require.NoError(t, d.RecordElimination(2, 1))
	assert.True(t, d.IsEliminated(2))
	assert.Equal(t, 1, d.EliminationCount(1))

	// Both sides must be participants.
	err := d.RecordElimination(3, 1)
	var unknown *UnknownParticipantError
	require.ErrorAs(t, err, &unknown)
	err = d.RecordElimination(2, 3)
	require.ErrorAs(t, err, &unknown)

	// Last write wins on the eliminator.
	require.NoError(t, d.AddPlayer(3, "Cara"))
	require.NoError(t, d.RecordElimination(2, 3))
	assert.Equal(t, map[int64]int64{2: 3}, d.Eliminations())
	assert.Equal(t, 0, d.EliminationCount(1))
}

func TestRemoveEliminationsBy(t *testing.T) {
	d := newTestDraft(t, 2)
	for i, name := range []string{"Alice", "Bob", "Cara", "Dan"} {
		require.NoError(t, d.AddPlayer(int64(i+1), name))
	}
	require.NoError(t, d.RecordElimination(2, 1))
	require.NoError(t, d.RecordElimination(3, 1))
	require.NoError(t, d.RecordElimination(4, 2))

	d.RemoveEliminationsBy(1)

	assert.Equal(t, map[int64]int64{4: 2}, d.Eliminations())
}

func TestIsCommittable(t *testing.T) {
	d := newTestDraft(t, 2)
	assert.False(t, d.IsCommittable())

	require.NoError(t, d.AddPlayer(1, "Alice"))
	require.NoError(t, d.RecordOutcome(1, model.OutcomeWin))
	assert.False(t, d.IsCommittable(), "below minimum player count")

	require.NoError(t, d.AddPlayer(2, "Bob"))
	assert.False(t, d.IsCommittable(), "missing outcome for Bob")
	assert.Equal(t, []int64{2}, d.MissingOutcomes())

	require.NoError(t, d.RecordOutcome(2, model.OutcomeLose))
	assert.True(t, d.IsCommittable())
}

func TestIsCommittableNoMinimum(t *testing.T) {
	d := newTestDraft(t, 0)
	require.NoError(t, d.AddPlayer(1, "Alice"))
	require.NoError(t, d.RecordOutcome(1, model.OutcomeWin))
	assert.True(t, d.IsCommittable())
}

func TestSummaryIsPure(t *testing.T) {
	d := newTestDraft(t, 2)
	require.NoError(t, d.AddPlayer(1, "Alice"))
	require.NoError(t, d.AddPlayer(2, "Bob"))
	require.NoError(t, d.RecordOutcome(1, model.OutcomeWin))
	require.NoError(t, d.RecordOutcome(2, model.OutcomeLose))
	require.NoError(t, d.RecordElimination(2, 1))

	first := d.Summary()
	second := d.Summary()
	assert.Equal(t, first, second)

	assert.Contains(t, first, "Alice vs Bob")
	assert.Contains(t, first, "Bob was eliminated by Alice")
	// Winners come before losers.
	assert.Less(t, indexOf(first, "Alice — Win"), indexOf(first, "Bob — Lose"))

	assert.Equal(t, map[int64]int64{2: 1}, d.Eliminations())
	assert.Len(t, d.Outcomes(), 2)
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

// TestCommittableIffAllOutcomesProperty checks that for any valid sequence
// of add/record calls, IsCommittable is true exactly when every added
// participant has a recorded outcome (given the minimum is met).
func TestCommittableIffAllOutcomesProperty(t *testing.T) {
	outcomes := []model.Outcome{model.OutcomeWin, model.OutcomeLose, model.OutcomeDraw}

	rapid.Check(t, func(t *rapid.T) {
		numPlayers := rapid.IntRange(2, 10).Draw(t, "numPlayers")
		d := NewDraft(1, 2, time.Now())

		ids := make([]int64, numPlayers)
		for i := 0; i < numPlayers; i++ {
			ids[i] = int64(i + 1)
			if err := d.AddPlayer(ids[i], "p"); err != nil {
				t.Fatalf("AddPlayer: %v", err)
			}
		}

		withOutcome := make(map[int64]bool)
		numRecorded := rapid.IntRange(0, numPlayers).Draw(t, "numRecorded")
		for i := 0; i < numRecorded; i++ {
			id := ids[rapid.IntRange(0, numPlayers-1).Draw(t, "idx")]
			o := outcomes[rapid.IntRange(0, 2).Draw(t, "outcome")]
			if err := d.RecordOutcome(id, o); err != nil {
				t.Fatalf("RecordOutcome: %v", err)
			}
			withOutcome[id] = true
		}

		want := len(withOutcome) == numPlayers
		if got := d.IsCommittable(); got != want {
			t.Fatalf("IsCommittable = %v, want %v (%d/%d outcomes)",
				got, want, len(withOutcome), numPlayers)
		}
	})
}

// TestRemoveEliminationsByExactnessProperty checks that RemoveEliminationsBy
// removes exactly the entries attributed to the given eliminator.
func TestRemoveEliminationsByExactnessProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		numPlayers := rapid.IntRange(2, 12).Draw(t, "numPlayers")
		d := NewDraft(1, 2, time.Now())
		for i := 0; i < numPlayers; i++ {
			if err := d.AddPlayer(int64(i+1), "p"); err != nil {
				t.Fatalf("AddPlayer: %v", err)
			}
		}

		numElims := rapid.IntRange(0, numPlayers).Draw(t, "numElims")
		for i := 0; i < numElims; i++ {
			eliminated := int64(rapid.IntRange(1, numPlayers).Draw(t, "eliminated"))
			eliminator := int64(rapid.IntRange(1, numPlayers).Draw(t, "eliminator"))
			if err := d.RecordElimination(eliminated, eliminator); err != nil {
				t.Fatalf("RecordElimination: %v", err)
			}
		}

		target := int64(rapid.IntRange(1, numPlayers).Draw(t, "target"))
		before := d.Eliminations()
		d.RemoveEliminationsBy(target)
		after := d.Eliminations()

		for eliminated, eliminator := range before {
			_, kept := after[eliminated]
			if eliminator == target && kept {
				t.Fatalf("elimination of %d by target %d survived", eliminated, target)
			}
			if eliminator != target && (!kept || after[eliminated] != eliminator) {
				t.Fatalf("elimination of %d by %d was disturbed", eliminated, eliminator)
			}
		}
		for eliminated := range after {
			if _, existed := before[eliminated]; !existed {
				t.Fatalf("elimination of %d appeared from nowhere", eliminated)
			}
		}
	})
}

// TestFailedOutcomeLeavesDraftUnchangedProperty checks that recording an
// outcome for an unknown identity never mutates the outcome map.
func TestFailedOutcomeLeavesDraftUnchangedProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		numPlayers := rapid.IntRange(1, 8).Draw(t, "numPlayers")
		d := NewDraft(1, 2, time.Now())
		for i := 0; i < numPlayers; i++ {
			if err := d.AddPlayer(int64(i+1), "p"); err != nil {
				t.Fatalf("AddPlayer: %v", err)
			}
		}
		if err := d.RecordOutcome(1, model.OutcomeWin); err != nil {
			t.Fatalf("RecordOutcome: %v", err)
		}

		sizeBefore := len(d.Outcomes())
		strangerID := int64(rapid.IntRange(numPlayers+1, numPlayers+100).Draw(t, "stranger"))

		err := d.RecordOutcome(strangerID, model.OutcomeLose)
		var unknown *UnknownParticipantError
		if !assert.ErrorAs(t, err, &unknown) {
			t.Fatalf("expected UnknownParticipantError, got %v", err)
		}
		if len(d.Outcomes()) != sizeBefore {
			t.Fatalf("outcomes map size changed after failed call")
		}
	})
}

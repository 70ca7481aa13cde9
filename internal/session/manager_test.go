package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pod-tracker-bot/internal/game"
	"pod-tracker-bot/internal/model"
)

type fakeDirectory struct {
	pods    map[int64]*model.Pod
	members map[int64][]model.PodPlayer
	err     error
}

func (d *fakeDirectory) GetPod(_ context.Context, podID int64) (*model.Pod, error) {
	if d.err != nil {
		return nil, d.err
	}
	pod, ok := d.pods[podID]
	if !ok {
		return nil, errors.New("pod not found")
	}
	return pod, nil
}

func (d *fakeDirectory) ListMembers(_ context.Context, podID int64) ([]model.PodPlayer, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.members[podID], nil
}

type fakeCommitter struct {
	err       error
	committed []*game.Draft
}

func (c *fakeCommitter) Commit(_ context.Context, draft *game.Draft) (*model.CommittedGame, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.committed = append(c.committed, draft)
	cg := &model.CommittedGame{
		Game: model.Game{
			GameID:            int64(len(c.committed)),
			PodID:             100,
			DeletionReference: "abc123",
		},
		Players:      map[int64]string{},
		Outcomes:     map[int64]model.Outcome{},
		Eliminations: map[int64]int64{},
	}
	for _, p := range draft.Participants() {
		cg.Players[p.TelegramID] = p.Name
	}
	for id, o := range draft.Outcomes() {
		cg.Outcomes[id] = o
	}
	for eliminated, eliminator := range draft.Eliminations() {
		cg.Eliminations[eliminated] = eliminator
	}
	return cg, nil
}

func newTestManager(t *testing.T) (*Manager, *fakeDirectory, *fakeCommitter) {
	t.Helper()
	dir := &fakeDirectory{
		pods: map[int64]*model.Pod{100: {PodID: 100, Name: "Test Pod"}},
		members: map[int64][]model.PodPlayer{100: {
			{ID: 1, PodID: 100, TelegramID: 11, Name: "Alice"},
			{ID: 2, PodID: 100, TelegramID: 22, Name: "Bob"},
			{ID: 3, PodID: 100, TelegramID: 33, Name: "Cara"},
		}},
	}
	committer := &fakeCommitter{}
	m := NewManager(dir, committer, Config{
		Standard:    game.Policy{MinPlayers: 2, EnforceMinPlayers: true},
		Custom:      game.Policy{MinPlayers: 2, AllowSelfElimination: true, AllowWinnerElimination: true},
		IdleTimeout: 5 * time.Minute,
	})
	return m, dir, committer
}

func testKey() Key { return Key{UserID: 11, ChatID: 100} }

func mustHandle(t *testing.T, m *Manager, ev Event) *Result {
	t.Helper()
	res, err := m.HandleEvent(context.Background(), testKey(), ev)
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func TestBeginRequiresPodAndMembers(t *testing.T) {
	m, dir, _ := newTestManager(t)

	_, err := m.Begin(context.Background(), Key{UserID: 1, ChatID: 999}, ModeStandard)
	assert.Error(t, err)

	dir.members[100] = nil
	_, err = m.Begin(context.Background(), testKey(), ModeStandard)
	assert.ErrorIs(t, err, ErrNoPlayers)
}

func TestBeginDiscardsStaleSession(t *testing.T) {
	m, _, _ := newTestManager(t)

	_, err := m.Begin(context.Background(), testKey(), ModeStandard)
	require.NoError(t, err)
	require.Equal(t, 1, m.ActiveSessions())

	res, err := m.Begin(context.Background(), testKey(), ModeStandard)
	require.NoError(t, err)
	assert.Equal(t, 1, m.ActiveSessions())
	assert.Contains(t, res.Prompt.Warning, "discarded")
}

func TestEventWithoutSession(t *testing.T) {
	m, _, _ := newTestManager(t)
	_, err := m.HandleEvent(context.Background(), testKey(), Event{Action: ActionText, Text: "confirm"})
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestStandardFlowEndToEnd(t *testing.T) {
	m, _, committer := newTestManager(t)

	res, err := m.Begin(context.Background(), testKey(), ModeStandard)
	require.NoError(t, err)
	require.Equal(t, PromptPlayers, res.Prompt.Kind)
	assert.Len(t, res.Prompt.Candidates, 3)

	res = mustHandle(t, m, Event{Action: ActionSelectPlayer, PlayerID: 11})
	assert.Len(t, res.Prompt.Added, 1)
	assert.Len(t, res.Prompt.Candidates, 2, "picked players leave the candidate list")
	res = mustHandle(t, m, Event{Action: ActionSelectPlayer, PlayerID: 22})

	res = mustHandle(t, m, Event{Action: ActionDonePlayers})
	require.Equal(t, PromptOutcome, res.Prompt.Kind)
	assert.Equal(t, "Alice", res.Prompt.Current.Name)

	res = mustHandle(t, m, Event{Action: ActionSelectOutcome, Outcome: model.OutcomeWin})
	require.Equal(t, PromptOutcome, res.Prompt.Kind)
	assert.Equal(t, "Bob", res.Prompt.Current.Name)

	res = mustHandle(t, m, Event{Action: ActionSelectOutcome, Outcome: model.OutcomeLose})
	require.Equal(t, PromptEliminations, res.Prompt.Kind)
	assert.Equal(t, "Alice", res.Prompt.Current.Name)
	// Alice is the winner; with winner elimination off she is not a
	// candidate, Bob is.
	require.Len(t, res.Prompt.Candidates, 1)
	assert.Equal(t, "Bob", res.Prompt.Candidates[0].Name)

	res = mustHandle(t, m, Event{Action: ActionEliminate, PlayerID: 22})
	require.Equal(t, PromptEliminations, res.Prompt.Kind)
	assert.Len(t, res.Prompt.EliminatedByCurrent, 1)
	assert.Empty(t, res.Prompt.Candidates, "Bob is already out")

	res = mustHandle(t, m, Event{Action: ActionDoneEliminations})
	require.Equal(t, PromptEliminations, res.Prompt.Kind)
	assert.Equal(t, "Bob", res.Prompt.Current.Name)

	res = mustHandle(t, m, Event{Action: ActionDoneEliminations})
	require.Equal(t, PromptConfirm, res.Prompt.Kind)
	assert.Contains(t, res.Prompt.Summary, "Alice vs Bob")

	res = mustHandle(t, m, Event{Action: ActionText, Text: " Confirm "})
	require.NotNil(t, res.Committed)
	assert.Equal(t, model.OutcomeWin, res.Committed.Outcomes[11])
	assert.Equal(t, int64(11), res.Committed.Eliminations[22])
	assert.Equal(t, 0, m.ActiveSessions())
	assert.Len(t, committer.committed, 1)
}

func TestStandardFlowMinPlayersEnforced(t *testing.T) {
	m, _, _ := newTestManager(t)

	_, err := m.Begin(context.Background(), testKey(), ModeStandard)
	require.NoError(t, err)

	mustHandle(t, m, Event{Action: ActionSelectPlayer, PlayerID: 11})
	res := mustHandle(t, m, Event{Action: ActionDonePlayers})
	require.Equal(t, PromptPlayers, res.Prompt.Kind)
	assert.Contains(t, res.Prompt.Warning, "At least 2 players")
}

func TestResetPlayersStartsOver(t *testing.T) {
	m, _, _ := newTestManager(t)

	_, err := m.Begin(context.Background(), testKey(), ModeStandard)
	require.NoError(t, err)

	mustHandle(t, m, Event{Action: ActionSelectPlayer, PlayerID: 11})
	mustHandle(t, m, Event{Action: ActionSelectPlayer, PlayerID: 22})
	res := mustHandle(t, m, Event{Action: ActionResetPlayers})
	assert.Empty(t, res.Prompt.Added)
	assert.Len(t, res.Prompt.Candidates, 3)
}

func TestCustomFlowWinnerFirst(t *testing.T) {
	m, _, _ := newTestManager(t)

	_, err := m.Begin(context.Background(), testKey(), ModeCustom)
	require.NoError(t, err)

	mustHandle(t, m, Event{Action: ActionSelectPlayer, PlayerID: 11})
	mustHandle(t, m, Event{Action: ActionSelectPlayer, PlayerID: 22})
	mustHandle(t, m, Event{Action: ActionSelectPlayer, PlayerID: 33})

	res := mustHandle(t, m, Event{Action: ActionDonePlayers})
	require.Equal(t, PromptWinner, res.Prompt.Kind)
	assert.Len(t, res.Prompt.Candidates, 3)

	res = mustHandle(t, m, Event{Action: ActionSelectWinner, PlayerID: 22})
	require.Equal(t, PromptEliminations, res.Prompt.Kind)
	assert.Equal(t, "Bob", res.Prompt.Current.Name, "winner eliminates first")

	// Winner knocks out everyone else; the loop completes early without
	// visiting the other eliminators.
	mustHandle(t, m, Event{Action: ActionEliminate, PlayerID: 11})
	res = mustHandle(t, m, Event{Action: ActionEliminate, PlayerID: 33})
	require.Equal(t, PromptConfirm, res.Prompt.Kind)

	res = mustHandle(t, m, Event{Action: ActionText, Text: "confirm"})
	require.NotNil(t, res.Committed)
	assert.Equal(t, model.OutcomeWin, res.Committed.Outcomes[22])
	assert.Equal(t, model.OutcomeLose, res.Committed.Outcomes[11])
	assert.Equal(t, model.OutcomeLose, res.Committed.Outcomes[33])
}

func TestCustomFlowNoMinPlayersByDefault(t *testing.T) {
	m, _, _ := newTestManager(t)

	_, err := m.Begin(context.Background(), testKey(), ModeCustom)
	require.NoError(t, err)

	mustHandle(t, m, Event{Action: ActionSelectPlayer, PlayerID: 11})
	res := mustHandle(t, m, Event{Action: ActionDonePlayers})
	assert.Equal(t, PromptWinner, res.Prompt.Kind)
}

func TestResetEliminationsOnlyCurrentEliminator(t *testing.T) {
	m, _, _ := newTestManager(t)

	_, err := m.Begin(context.Background(), testKey(), ModeStandard)
	require.NoError(t, err)

	mustHandle(t, m, Event{Action: ActionSelectPlayer, PlayerID: 11})
	mustHandle(t, m, Event{Action: ActionSelectPlayer, PlayerID: 22})
	mustHandle(t, m, Event{Action: ActionSelectPlayer, PlayerID: 33})
	mustHandle(t, m, Event{Action: ActionDonePlayers})
	mustHandle(t, m, Event{Action: ActionSelectOutcome, Outcome: model.OutcomeWin})
	mustHandle(t, m, Event{Action: ActionSelectOutcome, Outcome: model.OutcomeLose})
	mustHandle(t, m, Event{Action: ActionSelectOutcome, Outcome: model.OutcomeLose})

	// Alice eliminates Bob, then moves on; Bob's turn eliminates Cara.
	mustHandle(t, m, Event{Action: ActionEliminate, PlayerID: 22})
	mustHandle(t, m, Event{Action: ActionDoneEliminations})
	mustHandle(t, m, Event{Action: ActionEliminate, PlayerID: 33})

	// Resetting during Bob's turn only clears Bob's entries.
	res := mustHandle(t, m, Event{Action: ActionResetEliminations})
	assert.Empty(t, res.Prompt.EliminatedByCurrent)

	mustHandle(t, m, Event{Action: ActionDoneEliminations})
	res = mustHandle(t, m, Event{Action: ActionDoneEliminations})
	require.Equal(t, PromptConfirm, res.Prompt.Kind)
	assert.Contains(t, res.Prompt.Summary, "Bob was eliminated by Alice")
	assert.NotContains(t, res.Prompt.Summary, "Cara was eliminated")
}

func TestCancelFromEveryState(t *testing.T) {
	m, _, _ := newTestManager(t)

	advance := map[string][]Event{
		"players": nil,
		"outcomes": {
			{Action: ActionSelectPlayer, PlayerID: 11},
			{Action: ActionSelectPlayer, PlayerID: 22},
			{Action: ActionDonePlayers},
		},
		"eliminations": {
			{Action: ActionSelectPlayer, PlayerID: 11},
			{Action: ActionSelectPlayer, PlayerID: 22},
			{Action: ActionDonePlayers},
			{Action: ActionSelectOutcome, Outcome: model.OutcomeWin},
			{Action: ActionSelectOutcome, Outcome: model.OutcomeLose},
		},
		"confirmation": {
			{Action: ActionSelectPlayer, PlayerID: 11},
			{Action: ActionSelectPlayer, PlayerID: 22},
			{Action: ActionDonePlayers},
			{Action: ActionSelectOutcome, Outcome: model.OutcomeWin},
			{Action: ActionSelectOutcome, Outcome: model.OutcomeLose},
			{Action: ActionDoneEliminations},
			{Action: ActionDoneEliminations},
		},
	}

	for name, events := range advance {
		t.Run(name, func(t *testing.T) {
			_, err := m.Begin(context.Background(), testKey(), ModeStandard)
			require.NoError(t, err)
			for _, ev := range events {
				mustHandle(t, m, ev)
			}
			res := mustHandle(t, m, Event{Action: ActionCancel})
			assert.True(t, res.Discarded)
			assert.Equal(t, 0, m.ActiveSessions())
		})
	}
}

func TestConfirmationCancelText(t *testing.T) {
	m, _, committer := newTestManager(t)

	_, err := m.Begin(context.Background(), testKey(), ModeStandard)
	require.NoError(t, err)
	mustHandle(t, m, Event{Action: ActionSelectPlayer, PlayerID: 11})
	mustHandle(t, m, Event{Action: ActionSelectPlayer, PlayerID: 22})
	mustHandle(t, m, Event{Action: ActionDonePlayers})
	mustHandle(t, m, Event{Action: ActionSelectOutcome, Outcome: model.OutcomeWin})
	mustHandle(t, m, Event{Action: ActionSelectOutcome, Outcome: model.OutcomeLose})
	mustHandle(t, m, Event{Action: ActionDoneEliminations})
	mustHandle(t, m, Event{Action: ActionDoneEliminations})

	// Unrecognized text re-shows the summary.
	res := mustHandle(t, m, Event{Action: ActionText, Text: "what?"})
	require.NotNil(t, res.Prompt)
	assert.Equal(t, PromptConfirm, res.Prompt.Kind)

	res = mustHandle(t, m, Event{Action: ActionText, Text: "CANCEL"})
	assert.True(t, res.Discarded)
	assert.Equal(t, 0, m.ActiveSessions())
	assert.Empty(t, committer.committed)
}

func TestCommitFailurePreservesSession(t *testing.T) {
	m, _, committer := newTestManager(t)

	_, err := m.Begin(context.Background(), testKey(), ModeStandard)
	require.NoError(t, err)
	mustHandle(t, m, Event{Action: ActionSelectPlayer, PlayerID: 11})
	mustHandle(t, m, Event{Action: ActionSelectPlayer, PlayerID: 22})
	mustHandle(t, m, Event{Action: ActionDonePlayers})
	mustHandle(t, m, Event{Action: ActionSelectOutcome, Outcome: model.OutcomeWin})
	mustHandle(t, m, Event{Action: ActionSelectOutcome, Outcome: model.OutcomeLose})
	mustHandle(t, m, Event{Action: ActionDoneEliminations})
	mustHandle(t, m, Event{Action: ActionDoneEliminations})

	committer.err = errors.New("database down")
	_, err = m.HandleEvent(context.Background(), testKey(), Event{Action: ActionText, Text: "confirm"})
	require.Error(t, err)
	assert.Equal(t, 1, m.ActiveSessions(), "session survives a failed commit")

	// Retrying after the failure clears succeeds.
	committer.err = nil
	res := mustHandle(t, m, Event{Action: ActionText, Text: "confirm"})
	require.NotNil(t, res.Committed)
	assert.Equal(t, 0, m.ActiveSessions())
}

func TestIdleSessionExpiresOnEvent(t *testing.T) {
	m, _, _ := newTestManager(t)

	base := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return base }

	_, err := m.Begin(context.Background(), testKey(), ModeStandard)
	require.NoError(t, err)

	m.now = func() time.Time { return base.Add(6 * time.Minute) }
	res := mustHandle(t, m, Event{Action: ActionSelectPlayer, PlayerID: 11})
	assert.True(t, res.Discarded)
	assert.Contains(t, res.Notice, "expired")
	assert.Equal(t, 0, m.ActiveSessions())
}

func TestReaperDropsIdleSessions(t *testing.T) {
	m, _, _ := newTestManager(t)

	base := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return base }

	_, err := m.Begin(context.Background(), testKey(), ModeStandard)
	require.NoError(t, err)
	_, err = m.Begin(context.Background(), Key{UserID: 22, ChatID: 100}, ModeStandard)
	require.NoError(t, err)

	m.now = func() time.Time { return base.Add(10 * time.Minute) }
	m.reapIdle()
	assert.Equal(t, 0, m.ActiveSessions())
}

func TestCancelWithoutSession(t *testing.T) {
	m, _, _ := newTestManager(t)
	assert.False(t, m.Cancel(testKey()))
}

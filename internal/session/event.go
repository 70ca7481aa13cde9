package session

import "pod-tracker-bot/internal/model"

// Action is the kind of inbound event.
type Action int

const (
	// ActionSelectPlayer adds a player in the picker.
	ActionSelectPlayer Action = iota
	// ActionResetPlayers clears the picker selection.
	ActionResetPlayers
	// ActionDonePlayers closes the picker.
	ActionDonePlayers
	// ActionSelectWinner declares the winner (custom mode).
	ActionSelectWinner
	// ActionSelectOutcome records the current player's outcome.
	ActionSelectOutcome
	// ActionEliminate attributes one elimination to the current
	// eliminator.
	ActionEliminate
	// ActionResetEliminations clears the current eliminator's entries.
	ActionResetEliminations
	// ActionDoneEliminations advances to the next eliminator.
	ActionDoneEliminations
	// ActionText is a free-text message (confirmation step).
	ActionText
	// ActionCancel aborts the session from any state.
	ActionCancel
)

// Event is one inbound user interaction, decoded by the transport layer.
type Event struct {
	Action   Action
	PlayerID int64
	Outcome  model.Outcome
	Text     string
}

// PromptKind tells the transport layer which interaction to render.
type PromptKind int

const (
	// PromptPlayers is the player picker.
	PromptPlayers PromptKind = iota
	// PromptWinner is the winner picker (custom mode).
	PromptWinner
	// PromptOutcome is the win/lose/draw picker for one player.
	PromptOutcome
	// PromptEliminations is the elimination picker for one eliminator.
	PromptEliminations
	// PromptConfirm shows the summary and awaits confirm/cancel text.
	PromptConfirm
)

// Candidate is one selectable player in a prompt.
type Candidate struct {
	TelegramID int64
	Name       string
}

// Prompt is the structured description of the next interaction. The
// state machine never renders text with markup or keyboards itself; the
// transport layer formats prompts however it likes.
type Prompt struct {
	Kind PromptKind

	// Warning carries a non-fatal notice to show above the prompt,
	// e.g. "at least 2 players required" or "previous draft discarded".
	Warning string

	// Added lists players already picked (player picker only).
	Added []Candidate

	// Candidates lists the selectable players for this prompt.
	Candidates []Candidate

	// Current is the player the prompt is about (outcome/eliminations).
	Current Candidate

	// EliminatedByCurrent lists players the current eliminator has
	// already knocked out.
	EliminatedByCurrent []Candidate

	// Summary is the draft summary text (confirmation prompt only).
	Summary string
}

// Result is the outcome of handling one event. Exactly one of Prompt,
// Committed, or Discarded is meaningful.
type Result struct {
	// Prompt is the next interaction, nil on terminal results.
	Prompt *Prompt

	// Committed is set when the terminal confirm step succeeded.
	Committed *model.CommittedGame

	// Discarded is true when the session ended without a commit.
	Discarded bool

	// Notice carries a user-facing message accompanying a terminal
	// result, e.g. "session expired".
	Notice string
}

package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"pod-tracker-bot/internal/model"
	"pod-tracker-bot/internal/repository"
	"pod-tracker-bot/internal/session"
)

// Callback uniques for the recording flow. Telebot prefixes callback
// data with "\f<unique>|<payload>".
const (
	cbAddPlayer     = "rec_add"
	cbResetPlayers  = "rec_reset"
	cbDonePlayers   = "rec_done"
	cbSelectWinner  = "rec_winner"
	cbSelectOutcome = "rec_outcome"
	cbEliminate     = "rec_elim"
	cbResetElims    = "rec_elim_reset"
	cbDoneElims     = "rec_elim_done"
	cbCancel        = "rec_cancel"
)

// RecordHandler drives the game-recording conversation: /game and
// /customgame start a session, callbacks and free text feed it events.
type RecordHandler struct {
	sessions *session.Manager
}

// NewRecordHandler creates a new RecordHandler.
func NewRecordHandler(sessions *session.Manager) *RecordHandler {
	return &RecordHandler{sessions: sessions}
}

// HandleGame handles the /game command: standard recording flow.
func (h *RecordHandler) HandleGame(c tele.Context) error {
	return h.begin(c, session.ModeStandard)
}

// HandleCustomGame handles the /customgame command: winner-first flow.
func (h *RecordHandler) HandleCustomGame(c tele.Context) error {
	return h.begin(c, session.ModeCustom)
}

func (h *RecordHandler) begin(c tele.Context, mode session.Mode) error {
	chat := c.Chat()
	sender := c.Sender()
	if chat == nil || sender == nil {
		return nil
	}
	if chat.Type == tele.ChatPrivate {
		return c.Reply("❌ Games are recorded in the pod's group chat.")
	}

	key := session.Key{UserID: sender.ID, ChatID: chat.ID}
	res, err := h.sessions.Begin(context.Background(), key, mode)
	if err != nil {
		if errors.Is(err, repository.ErrPodNotFound) {
			return c.Reply("❌ No pod in this chat yet. Send /pod to create one.")
		}
		if errors.Is(err, session.ErrNoPlayers) {
			return c.Reply("❌ The pod has no members yet. Everyone sends /pod first.")
		}
		log.Error().Err(err).Int64("chat_id", chat.ID).Int64("user_id", sender.ID).Msg("Begin recording failed")
		return c.Reply("❌ Could not start recording, please try again later.")
	}

	text, markup := h.render(res.Prompt)
	return c.Reply(text, markup)
}

// HandleCancel handles the /cancel command.
func (h *RecordHandler) HandleCancel(c tele.Context) error {
	chat := c.Chat()
	sender := c.Sender()
	if chat == nil || sender == nil {
		return nil
	}

	key := session.Key{UserID: sender.ID, ChatID: chat.ID}
	if !h.sessions.Cancel(key) {
		return c.Reply("You are not recording a game right now.")
	}
	return c.Reply("❌ Game has been discarded.")
}

// HandleCallback handles inline-keyboard presses of the recording flow.
// Only the user who started the session drives it; presses by others are
// answered with an alert and ignored.
func (h *RecordHandler) HandleCallback(c tele.Context) error {
	chat := c.Chat()
	sender := c.Sender()
	callback := c.Callback()
	if chat == nil || sender == nil || callback == nil {
		return nil
	}

	ev, ok := decodeCallback(callback.Data)
	if !ok {
		return c.Respond(&tele.CallbackResponse{Text: "❌ Invalid action"})
	}

	key := session.Key{UserID: sender.ID, ChatID: chat.ID}
	res, err := h.sessions.HandleEvent(context.Background(), key, ev)
	if err != nil {
		if errors.Is(err, session.ErrNoSession) {
			return c.Respond(&tele.CallbackResponse{
				Text:      "This is not your recording session.",
				ShowAlert: true,
			})
		}
		return h.replyEventError(c, err)
	}

	return h.applyResult(c, res)
}

// HandleText feeds free-text messages into the sender's session, if any.
// Registered on tele.OnText; messages outside a recording session are
// ignored so normal chat passes through.
func (h *RecordHandler) HandleText(c tele.Context) error {
	chat := c.Chat()
	sender := c.Sender()
	if chat == nil || sender == nil {
		return nil
	}

	key := session.Key{UserID: sender.ID, ChatID: chat.ID}
	res, err := h.sessions.HandleEvent(context.Background(), key, session.Event{
		Action: session.ActionText,
		Text:   c.Text(),
	})
	if err != nil {
		if errors.Is(err, session.ErrNoSession) {
			return nil
		}
		return h.replyEventError(c, err)
	}

	return h.applyResult(c, res)
}

// applyResult turns a state machine result into chat output.
func (h *RecordHandler) applyResult(c tele.Context, res *session.Result) error {
	switch {
	case res.Committed != nil:
		return h.announceCommit(c, res.Committed)

	case res.Discarded:
		if res.Notice != "" {
			return c.Send(res.Notice)
		}
		return nil

	default:
		text, markup := h.render(res.Prompt)
		// Callback events update the prompt message in place; text
		// events get a fresh message.
		if c.Callback() != nil {
			if err := c.Edit(text, markup); err != nil {
				return c.Send(text, markup)
			}
			return c.Respond(&tele.CallbackResponse{})
		}
		return c.Send(text, markup)
	}
}

// announceCommit posts the final summary to the group and notifies each
// participant in private, each message opening with that player's own
// result. Broadcast failures (players who never opened a private chat
// with the bot) are logged and do not fail the commit.
func (h *RecordHandler) announceCommit(c tele.Context, g *model.CommittedGame) error {
	detail := formatCommittedGame(g) +
		"\n\nAny participant can request deletion with /delete " + g.DeletionReference

	if c.Callback() != nil {
		_ = c.Respond(&tele.CallbackResponse{Text: "✅ Saved"})
	}
	if err := c.Send("✅ Game recorded!\n\n" + detail); err != nil {
		return err
	}

	for telegramID := range g.Players {
		personal := personalResultLine(g.Outcomes[telegramID]) + "\n\n" + detail
		_, err := c.Bot().Send(&tele.User{ID: telegramID}, personal)
		if err != nil {
			log.Debug().
				Err(err).
				Int64("user_id", telegramID).
				Int64("game_id", g.GameID).
				Msg("Could not deliver game summary in private")
		}
	}
	return nil
}

// replyEventError maps commit-time failures to user-facing messages. The
// session survives, so the user can fix the roster or retry.
func (h *RecordHandler) replyEventError(c tele.Context, err error) error {
	var unknown *repository.UnknownPlayerError
	if errors.As(err, &unknown) {
		return c.Send(fmt.Sprintf(
			"❌ %s is no longer a member of this pod, so the game cannot be saved. They can rejoin with /pod, then type confirm again.",
			unknown.Name,
		))
	}

	log.Error().Err(err).Msg("Recording event failed")
	return c.Send("❌ Could not save the game. Your draft is untouched, type confirm to retry.")
}

// decodeCallback maps telebot callback data to a state machine event.
func decodeCallback(data string) (session.Event, bool) {
	data = strings.TrimPrefix(data, "\f")
	unique, payload, _ := strings.Cut(data, "|")

	switch unique {
	case cbAddPlayer, cbSelectWinner, cbEliminate:
		id, err := strconv.ParseInt(payload, 10, 64)
		if err != nil {
			return session.Event{}, false
		}
		action := session.ActionSelectPlayer
		if unique == cbSelectWinner {
			action = session.ActionSelectWinner
		} else if unique == cbEliminate {
			action = session.ActionEliminate
		}
		return session.Event{Action: action, PlayerID: id}, true

	case cbSelectOutcome:
		outcome := model.Outcome(payload)
		if !outcome.Valid() {
			return session.Event{}, false
		}
		return session.Event{Action: session.ActionSelectOutcome, Outcome: outcome}, true

	case cbResetPlayers:
		return session.Event{Action: session.ActionResetPlayers}, true
	case cbDonePlayers:
		return session.Event{Action: session.ActionDonePlayers}, true
	case cbResetElims:
		return session.Event{Action: session.ActionResetEliminations}, true
	case cbDoneElims:
		return session.Event{Action: session.ActionDoneEliminations}, true
	case cbCancel:
		return session.Event{Action: session.ActionCancel}, true
	}
	return session.Event{}, false
}

// render builds the message text and inline keyboard for a prompt.
func (h *RecordHandler) render(p *session.Prompt) (string, *tele.ReplyMarkup) {
	markup := &tele.ReplyMarkup{}
	var b strings.Builder

	if p.Warning != "" {
		b.WriteString(p.Warning + "\n\n")
	}

	switch p.Kind {
	case session.PromptPlayers:
		b.WriteString("🎲 Who played?")
		if len(p.Added) > 0 {
			b.WriteString("\n\nIn this game:")
			for _, added := range p.Added {
				b.WriteString("\n  • " + added.Name)
			}
		}
		rows := candidateRows(markup, cbAddPlayer, p.Candidates)
		rows = append(rows, markup.Row(
			markup.Data("↩️ Reset", cbResetPlayers),
			markup.Data("✅ Done", cbDonePlayers),
		))
		rows = append(rows, cancelRow(markup))
		markup.Inline(rows...)

	case session.PromptWinner:
		b.WriteString("👑 Who won?")
		rows := candidateRows(markup, cbSelectWinner, p.Candidates)
		rows = append(rows, cancelRow(markup))
		markup.Inline(rows...)

	case session.PromptOutcome:
		fmt.Fprintf(&b, "How did %s do?", p.Current.Name)
		markup.Inline(
			markup.Row(
				markup.Data("🏆 Win", cbSelectOutcome, string(model.OutcomeWin)),
				markup.Data("💀 Lose", cbSelectOutcome, string(model.OutcomeLose)),
				markup.Data("🤝 Draw", cbSelectOutcome, string(model.OutcomeDraw)),
			),
			cancelRow(markup),
		)

	case session.PromptEliminations:
		fmt.Fprintf(&b, "⚔️ Who did %s eliminate?", p.Current.Name)
		if len(p.EliminatedByCurrent) > 0 {
			b.WriteString("\n\nEliminated so far:")
			for _, victim := range p.EliminatedByCurrent {
				b.WriteString("\n  ☠️ " + victim.Name)
			}
		}
		rows := candidateRows(markup, cbEliminate, p.Candidates)
		rows = append(rows, markup.Row(
			markup.Data("↩️ Reset", cbResetElims),
			markup.Data("✅ Done", cbDoneElims),
		))
		rows = append(rows, cancelRow(markup))
		markup.Inline(rows...)

	case session.PromptConfirm:
		b.WriteString(p.Summary)
		b.WriteString("\n\nType confirm to save the game, or cancel to discard it.")
	}

	return b.String(), markup
}

// candidateRows lays out one button per selectable player, two per row.
func candidateRows(markup *tele.ReplyMarkup, unique string, candidates []session.Candidate) []tele.Row {
	var rows []tele.Row
	var current []tele.Btn
	for _, cand := range candidates {
		current = append(current, markup.Data(cand.Name, unique, strconv.FormatInt(cand.TelegramID, 10)))
		if len(current) == 2 {
			rows = append(rows, markup.Row(current...))
			current = nil
		}
	}
	if len(current) > 0 {
		rows = append(rows, markup.Row(current...))
	}
	return rows
}

func cancelRow(markup *tele.ReplyMarkup) tele.Row {
	return markup.Row(markup.Data("❌ Cancel", cbCancel))
}

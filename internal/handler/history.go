package handler

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"pod-tracker-bot/internal/model"
	"pod-tracker-bot/internal/service"
)

// historyLimit caps how many games a history command displays.
const historyLimit = 10

// HistoryHandler handles game history commands.
type HistoryHandler struct {
	games *service.GameService
}

// NewHistoryHandler creates a new HistoryHandler.
func NewHistoryHandler(games *service.GameService) *HistoryHandler {
	return &HistoryHandler{games: games}
}

// HandleHistory handles the /history command: the sender's recent games
// in this pod.
func (h *HistoryHandler) HandleHistory(c tele.Context) error {
	ctx := context.Background()
	chat := c.Chat()
	sender := c.Sender()
	if chat == nil || sender == nil {
		return nil
	}

	games, err := h.games.PlayerHistory(ctx, chat.ID, sender.ID, historyLimit)
	if err != nil {
		log.Error().Err(err).Int64("chat_id", chat.ID).Int64("user_id", sender.ID).Msg("Player history failed")
		return c.Reply("❌ Could not load your history, please try again later.")
	}
	if len(games) == 0 {
		return c.Reply("You have no recorded games in this pod yet.")
	}

	return c.Reply(renderHistory("🗂 Your recent games:", games))
}

// HandlePodHistory handles the /podhistory command: the pod's recent
// games.
func (h *HistoryHandler) HandlePodHistory(c tele.Context) error {
	ctx := context.Background()
	chat := c.Chat()
	if chat == nil {
		return nil
	}

	games, err := h.games.PodHistory(ctx, chat.ID, historyLimit)
	if err != nil {
		log.Error().Err(err).Int64("chat_id", chat.ID).Msg("Pod history failed")
		return c.Reply("❌ Could not load the history, please try again later.")
	}
	if len(games) == 0 {
		return c.Reply("No recorded games in this pod yet. Start one with /game!")
	}

	return c.Reply(renderHistory("🗂 Recent pod games:", games))
}

func renderHistory(title string, games []*model.CommittedGame) string {
	var b strings.Builder
	b.WriteString(title + "\n")
	for _, g := range games {
		b.WriteString("\n" + formatCommittedGame(g) + "\n")
	}
	return b.String()
}

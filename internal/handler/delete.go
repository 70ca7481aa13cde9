package handler

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"pod-tracker-bot/internal/service"
)

// DeleteHandler handles the two-step game deletion protocol.
type DeleteHandler struct {
	games *service.GameService
}

// NewDeleteHandler creates a new DeleteHandler.
func NewDeleteHandler(games *service.GameService) *DeleteHandler {
	return &DeleteHandler{games: games}
}

// HandleDelete handles the /delete <reference> command. A game is only
// removed once two distinct participants have requested it.
func (h *DeleteHandler) HandleDelete(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	ref := strings.TrimSpace(strings.TrimPrefix(c.Message().Payload, "#"))
	if ref == "" {
		return c.Reply("Usage: /delete <reference>\nThe reference is shown in the game summary and in /history.")
	}

	status, err := h.games.RequestDeletion(ctx, ref, sender.ID)
	if err != nil {
		log.Error().Err(err).Str("reference", ref).Int64("user_id", sender.ID).Msg("Deletion request failed")
		return c.Reply("❌ Something went wrong, please try again later.")
	}

	switch status {
	case service.DeletionNotFound:
		return c.Reply("❌ No game found for that reference.")
	case service.DeletionNotInGame:
		return c.Reply("❌ Only players who took part in the game can request its deletion.")
	case service.DeletionAlreadyRequested:
		return c.Reply("⏳ You already requested deletion of this game. One more player has to confirm.")
	case service.DeletionPending:
		return c.Reply("🗳 Deletion request recorded. The game will be removed once another participant sends /delete " + ref + ".")
	case service.DeletionDeleted:
		return c.Reply("🗑 The game has been deleted. All stats have been updated.")
	default:
		return c.Reply("❌ Something went wrong, please try again later.")
	}
}

package handler

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"pod-tracker-bot/internal/repository"
)

// PodHandler handles pod lifecycle and membership commands.
type PodHandler struct {
	pods    *repository.PodRepository
	players *repository.PlayerRepository
}

// NewPodHandler creates a new PodHandler.
func NewPodHandler(pods *repository.PodRepository, players *repository.PlayerRepository) *PodHandler {
	return &PodHandler{pods: pods, players: players}
}

// HandlePod handles the /pod command: it creates the chat's pod on first
// use and registers the sender as a member. Both steps are idempotent, so
// every player in the group simply sends /pod once.
func (h *PodHandler) HandlePod(c tele.Context) error {
	ctx := context.Background()
	chat := c.Chat()
	sender := c.Sender()
	if chat == nil || sender == nil {
		return nil
	}
	if chat.Type == tele.ChatPrivate {
		return c.Reply("❌ Pods live in group chats. Add me to your group and send /pod there.")
	}

	podName := chat.Title
	if podName == "" {
		podName = fmt.Sprintf("pod-%d", chat.ID)
	}

	pod, created, err := h.pods.Create(ctx, chat.ID, podName)
	if err != nil {
		log.Error().Err(err).Int64("chat_id", chat.ID).Msg("Create pod failed")
		return c.Reply("❌ Could not create the pod, please try again later.")
	}

	player, err := h.players.Upsert(ctx, pod.PodID, sender.ID, displayName(sender), nil)
	if err != nil {
		log.Error().Err(err).Int64("chat_id", chat.ID).Int64("user_id", sender.ID).Msg("Join pod failed")
		return c.Reply("❌ Could not join the pod, please try again later.")
	}

	if created {
		return c.Reply(fmt.Sprintf(
			"🎉 Pod %q created!\n\n%s is in. Everyone else: send /pod to join.\nThen record games with /game.",
			pod.Name, player.Name,
		))
	}

	members, err := h.players.ListByPod(ctx, pod.PodID)
	if err != nil {
		log.Error().Err(err).Int64("chat_id", chat.ID).Msg("List members failed")
		return c.Reply(fmt.Sprintf("👋 %s is in the pod %q.", player.Name, pod.Name))
	}
	msg := fmt.Sprintf("👋 %s is in the pod %q.\n\n👥 %d member(s):\n", player.Name, pod.Name, len(members))
	for _, m := range members {
		msg += "  • " + m.Name + "\n"
	}
	return c.Reply(msg)
}

// HandleMembers handles the /members command: lists the pod roster.
func (h *PodHandler) HandleMembers(c tele.Context) error {
	ctx := context.Background()
	chat := c.Chat()
	if chat == nil {
		return nil
	}

	pod, err := h.pods.GetByID(ctx, chat.ID)
	if err != nil {
		if errors.Is(err, repository.ErrPodNotFound) {
			return c.Reply("❌ No pod in this chat yet. Send /pod to create one.")
		}
		log.Error().Err(err).Int64("chat_id", chat.ID).Msg("Get pod failed")
		return c.Reply("❌ Could not load the pod, please try again later.")
	}

	members, err := h.players.ListByPod(ctx, pod.PodID)
	if err != nil {
		log.Error().Err(err).Int64("chat_id", chat.ID).Msg("List members failed")
		return c.Reply("❌ Could not load the members, please try again later.")
	}
	if len(members) == 0 {
		return c.Reply(fmt.Sprintf("Pod %q has no members yet. Send /pod to join.", pod.Name))
	}

	msg := fmt.Sprintf("👥 %s — %d member(s):\n", pod.Name, len(members))
	for _, m := range members {
		msg += "  • " + m.Name + "\n"
	}
	return c.Reply(msg)
}

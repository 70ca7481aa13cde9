package handler

import (
	tele "gopkg.in/telebot.v3"
)

const helpText = `🃏 Pod tracker

Pods:
/pod — create this chat's pod, or join it
/members — list the pod's members

Recording:
/game — record a game (pick players, outcomes, eliminations)
/customgame — quick flow: pick the winner, everyone else loses
/cancel — discard the draft you are recording

Stats:
/profile — your stats, streaks, and recent form
/profile <name> — change your display name in this pod
/leaderboard [winrate|wins|eliminations|games] [week] — pod standings
/history — your recent games
/podhistory — the pod's recent games

Deleting:
/delete <reference> — request deletion of a game; it is removed
once a second participant sends the same command`

// HelpHandler handles /start and /help.
type HelpHandler struct{}

// NewHelpHandler creates a new HelpHandler.
func NewHelpHandler() *HelpHandler {
	return &HelpHandler{}
}

// HandleStart handles the /start command.
func (h *HelpHandler) HandleStart(c tele.Context) error {
	return c.Reply("👋 Hi! I track your playgroup's games.\n\nAdd me to your group chat, send /pod there, and record your first game with /game.\n\nSend /help for the full command list.")
}

// HandleHelp handles the /help command.
func (h *HelpHandler) HandleHelp(c tele.Context) error {
	return c.Reply(helpText)
}

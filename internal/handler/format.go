// Package handler provides Telegram bot command handlers.
package handler

import (
	"fmt"
	"sort"
	"strings"

	tele "gopkg.in/telebot.v3"

	"pod-tracker-bot/internal/model"
)

// displayName picks a human-readable name for a Telegram user.
func displayName(u *tele.User) string {
	if u == nil {
		return "unknown"
	}
	if u.Username != "" {
		return u.Username
	}
	name := u.FirstName
	if u.LastName != "" {
		name += " " + u.LastName
	}
	return name
}

func outcomeEmoji(o model.Outcome) string {
	switch o {
	case model.OutcomeWin:
		return "🏆"
	case model.OutcomeLose:
		return "💀"
	default:
		return "🤝"
	}
}

// personalResultLine opens a participant's private copy of the commit
// broadcast with their own result.
func personalResultLine(o model.Outcome) string {
	switch o {
	case model.OutcomeWin:
		return "🏆 You were victorious in a recent game!"
	case model.OutcomeLose:
		return "💀 You were defeated in a recent game."
	default:
		return "🤝 You fought a recent game to a draw."
	}
}

// formatCommittedGame renders a stored game for history output and the
// post-commit broadcast. Participants are grouped winners first; the
// deletion reference is always shown so any participant can start the
// /delete flow from history alone.
func formatCommittedGame(g *model.CommittedGame) string {
	ids := make([]int64, 0, len(g.Players))
	for id := range g.Players {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	names := make([]string, 0, len(ids))
	for _, id := range ids {
		names = append(names, g.Players[id])
	}

	var b strings.Builder
	fmt.Fprintf(&b, "💥 %s\n", strings.Join(names, " vs "))

	for _, want := range []model.Outcome{model.OutcomeWin, model.OutcomeLose, model.OutcomeDraw} {
		for _, id := range ids {
			if g.Outcomes[id] != want {
				continue
			}
			fmt.Fprintf(&b, "  %s %s | ⚔️ %d\n", outcomeEmoji(want), g.Players[id], g.EliminationsBy(id))
		}
	}

	for _, id := range ids {
		if eliminator, ok := g.Eliminations[id]; ok {
			fmt.Fprintf(&b, "  ☠️ %s was eliminated by %s\n", g.Players[id], g.Players[eliminator])
		}
	}

	fmt.Fprintf(&b, "📅 %s | 🔖 %s", g.CreatedAt.Format("2006-01-02 15:04"), g.DeletionReference)
	return b.String()
}

package game

import (
	"fmt"
	"strings"

	"pod-tracker-bot/internal/model"
)

// outcomeEmoji maps an outcome to its display emoji.
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

// capitalize upper-cases the first byte of an ASCII outcome word.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Summary renders a human-readable description of the draft. It is a pure
// function of the draft's state: participants grouped by outcome (winners
// first), elimination pairs, and the creation timestamp.
func (d *Draft) Summary() string {
	var b strings.Builder

	names := make([]string, 0, len(d.order))
	for _, id := range d.order {
		names = append(names, d.players[id])
	}
	b.WriteString("💥 " + strings.Join(names, " vs ") + "\n\n")

	for _, want := range []model.Outcome{model.OutcomeWin, model.OutcomeLose, model.OutcomeDraw} {
		for _, id := range d.order {
			outcome, ok := d.outcomes[id]
			if !ok || outcome != want {
				continue
			}
			fmt.Fprintf(&b, "  %s %s — %s | ⚔️ Eliminations: %d\n",
				outcomeEmoji(outcome), d.players[id], capitalize(string(outcome)), d.EliminationCount(id))
		}
	}

	if len(d.eliminations) > 0 {
		b.WriteString("\nEliminations:\n")
		for _, id := range d.order {
			eliminator, ok := d.eliminations[id]
			if !ok {
				continue
			}
			fmt.Fprintf(&b, "  ☠️ %s was eliminated by %s\n", d.players[id], d.players[eliminator])
		}
	}

	fmt.Fprintf(&b, "\nCreated at: %s", d.createdAt.Format("2006-01-02 15:04"))
	return b.String()
}

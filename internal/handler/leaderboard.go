package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"pod-tracker-bot/internal/repository"
	"pod-tracker-bot/internal/service"
)

// cbLeaderboard is the callback unique for the sort/window buttons under
// the leaderboard message. The payload carries "method|window".
const cbLeaderboard = "lb_view"

// LeaderboardHandler handles standings and profile commands.
type LeaderboardHandler struct {
	stats   *service.StatsService
	players *repository.PlayerRepository
}

// NewLeaderboardHandler creates a new LeaderboardHandler.
func NewLeaderboardHandler(stats *service.StatsService, players *repository.PlayerRepository) *LeaderboardHandler {
	return &LeaderboardHandler{stats: stats, players: players}
}

// HandleLeaderboard handles the /leaderboard command. The payload may
// name a sort method (winrate|wins|eliminations|games) and/or a window
// (week); the buttons under the message switch both in place.
func (h *LeaderboardHandler) HandleLeaderboard(c tele.Context) error {
	ctx := context.Background()
	chat := c.Chat()
	if chat == nil {
		return nil
	}

	method, window := service.ParseLeaderboardArgs(c.Message().Payload)
	text, markup, err := h.renderLeaderboard(ctx, chat.ID, method, window)
	if err != nil {
		log.Error().Err(err).Int64("chat_id", chat.ID).Msg("Leaderboard failed")
		return c.Reply("❌ Could not load the leaderboard, please try again later.")
	}
	return c.Reply(text, markup)
}

// HandleCallback re-renders the leaderboard message in place when a
// sort or window button is pressed.
func (h *LeaderboardHandler) HandleCallback(c tele.Context) error {
	ctx := context.Background()
	chat := c.Chat()
	callback := c.Callback()
	if chat == nil || callback == nil {
		return nil
	}

	parts := strings.Split(strings.TrimPrefix(callback.Data, "\f"), "|")
	if len(parts) != 3 || parts[0] != cbLeaderboard {
		return c.Respond(&tele.CallbackResponse{})
	}
	method, window := service.ParseLeaderboardArgs(parts[1] + " " + parts[2])

	text, markup, err := h.renderLeaderboard(ctx, chat.ID, method, window)
	if err != nil {
		log.Error().Err(err).Int64("chat_id", chat.ID).Msg("Leaderboard refresh failed")
		return c.Respond(&tele.CallbackResponse{Text: "Could not refresh, try again."})
	}
	if err := c.Edit(text, markup); err != nil {
		// Pressing the already-active button leaves the message
		// unchanged, which telebot reports as an error.
		log.Debug().Err(err).Msg("Leaderboard edit skipped")
	}
	return c.Respond(&tele.CallbackResponse{})
}

// renderLeaderboard builds the standings text and the sort/window
// keyboard for one pod.
func (h *LeaderboardHandler) renderLeaderboard(ctx context.Context, podID int64, method service.SortMethod, window service.Window) (string, *tele.ReplyMarkup, error) {
	lb, err := h.stats.Leaderboard(ctx, podID, method, window)
	if err != nil {
		return "", nil, err
	}

	var b strings.Builder
	if window == service.WindowWeek {
		fmt.Fprintf(&b, "🏅 Leaderboard — past week (by %s)\n\n", method)
	} else {
		fmt.Fprintf(&b, "🏅 Leaderboard (by %s)\n\n", method)
	}

	if len(lb.Ranked) == 0 {
		b.WriteString("No games recorded yet. Start one with /game!")
		return b.String(), leaderboardMarkup(method, window), nil
	}

	for i, s := range lb.Ranked {
		fmt.Fprintf(&b, "%s %s — %.0f%% | 🏆 %d | ⚔️ %d | 🎲 %d\n",
			rankBadge(i), s.Name, s.WinRate()*100, s.Wins, s.Eliminations, s.GamesPlayed)
	}

	if window == service.WindowAll {
		highlights, err := h.stats.Highlights(ctx, podID)
		if err == nil && len(highlights) > 0 {
			b.WriteString("\n")
			for _, hl := range highlights {
				fmt.Fprintf(&b, "%s: %s (%s)\n", hl.Title, hl.Player, hl.Detail)
			}
		}
	}

	if len(lb.Inactive) > 0 {
		names := make([]string, 0, len(lb.Inactive))
		for _, s := range lb.Inactive {
			names = append(names, s.Name)
		}
		fmt.Fprintf(&b, "\n💤 Yet to play: %s", strings.Join(names, ", "))
	}

	return b.String(), leaderboardMarkup(method, window), nil
}

// leaderboardMarkup builds the sort and window switcher rows. The
// active choice is marked so the keyboard doubles as a state display.
func leaderboardMarkup(method service.SortMethod, window service.Window) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}

	sortBtn := func(label string, m service.SortMethod) tele.Btn {
		if m == method {
			label = "• " + label
		}
		return markup.Data(label, cbLeaderboard, string(m), string(window))
	}
	windowBtn := func(label string, w service.Window) tele.Btn {
		if w == window {
			label = "• " + label
		}
		return markup.Data(label, cbLeaderboard, string(method), string(w))
	}

	markup.Inline(
		markup.Row(sortBtn("🎯 Win rate", service.SortByWinRate), sortBtn("🏆 Wins", service.SortByWins)),
		markup.Row(sortBtn("⚔️ Elims", service.SortByEliminations), sortBtn("🎲 Games", service.SortByGames)),
		markup.Row(windowBtn("All time", service.WindowAll), windowBtn("Past week", service.WindowWeek)),
	)
	return markup
}

// HandleProfile handles the /profile command. In a group it shows the
// sender's stats in that pod; with an argument it first sets their
// display name there. In a private chat it shows their combined stats
// across every pod.
func (h *LeaderboardHandler) HandleProfile(c tele.Context) error {
	ctx := context.Background()
	chat := c.Chat()
	sender := c.Sender()
	if chat == nil || sender == nil {
		return nil
	}

	if chat.Type == tele.ChatPrivate {
		return h.replyAggregateProfile(c, sender.ID)
	}

	var renamed string
	if name := strings.TrimSpace(c.Message().Payload); name != "" {
		if len(name) > 64 {
			return c.Reply("❌ That name is too long, 64 characters at most.")
		}
		player, err := h.players.Upsert(ctx, chat.ID, sender.ID, name, nil)
		if err != nil {
			log.Error().Err(err).Int64("chat_id", chat.ID).Int64("user_id", sender.ID).Msg("Rename failed")
			return c.Reply("❌ Could not update your name, please try again later.")
		}
		renamed = player.Name
	}

	profile, err := h.stats.Profile(ctx, chat.ID, sender.ID)
	if err != nil {
		if errors.Is(err, repository.ErrPlayerNotFound) {
			return c.Reply("❌ You are not in this pod yet. Send /pod to join.")
		}
		log.Error().Err(err).Int64("chat_id", chat.ID).Int64("user_id", sender.ID).Msg("Profile failed")
		return c.Reply("❌ Could not load your profile, please try again later.")
	}

	var b strings.Builder
	if renamed != "" {
		fmt.Fprintf(&b, "✅ You now go by %s here.\n\n", renamed)
	}

	s := profile.Stats
	fmt.Fprintf(&b, "📊 %s\n\n", s.Name)
	fmt.Fprintf(&b, "🎲 Games: %d\n", s.GamesPlayed)
	fmt.Fprintf(&b, "🏆 Wins: %d | 💀 Losses: %d | 🤝 Draws: %d\n", s.Wins, s.Losses, s.Draws)
	fmt.Fprintf(&b, "🎯 Win rate: %.0f%%\n", s.WinRate()*100)
	fmt.Fprintf(&b, "⚔️ Eliminations: %d\n", s.Eliminations)

	if s.GamesPlayed > 0 {
		b.WriteString("\n")
		switch {
		case profile.CurrentStreak > 1:
			fmt.Fprintf(&b, "🔥 On a %d-game win streak!\n", profile.CurrentStreak)
		case profile.CurrentStreak < -1:
			fmt.Fprintf(&b, "🥶 %d losses in a row.\n", -profile.CurrentStreak)
		}
		if profile.LongestWinStreak > 0 {
			fmt.Fprintf(&b, "📈 Longest win streak: %d\n", profile.LongestWinStreak)
		}
		if len(profile.RecentForm) > 0 {
			b.WriteString("🕹 Recent form: ")
			for _, o := range profile.RecentForm {
				b.WriteString(outcomeEmoji(o))
			}
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "🗓 This week: %d game(s), %d win(s)\n", profile.GamesThisWeek, profile.WinsThisWeek)
	}

	return c.Reply(b.String())
}

// replyAggregateProfile answers /profile in a private chat with the
// user's combined stats across all their pods.
func (h *LeaderboardHandler) replyAggregateProfile(c tele.Context, telegramID int64) error {
	ctx := context.Background()
	s, err := h.stats.AggregateStats(ctx, telegramID)
	if err != nil {
		if errors.Is(err, repository.ErrPlayerNotFound) {
			return c.Reply("❌ You are not in any pod yet. Send /pod in your group chat to join one.")
		}
		log.Error().Err(err).Int64("user_id", telegramID).Msg("Aggregate profile failed")
		return c.Reply("❌ Could not load your profile, please try again later.")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📊 %s — across all pods\n\n", s.Name)
	fmt.Fprintf(&b, "🎲 Games: %d\n", s.GamesPlayed)
	fmt.Fprintf(&b, "🏆 Wins: %d | 💀 Losses: %d | 🤝 Draws: %d\n", s.Wins, s.Losses, s.Draws)
	fmt.Fprintf(&b, "🎯 Win rate: %.0f%%\n", s.WinRate()*100)
	fmt.Fprintf(&b, "⚔️ Eliminations: %d\n", s.Eliminations)
	return c.Reply(b.String())
}

func rankBadge(i int) string {
	switch i {
	case 0:
		return "🥇"
	case 1:
		return "🥈"
	case 2:
		return "🥉"
	default:
		return fmt.Sprintf("%d.", i+1)
	}
}

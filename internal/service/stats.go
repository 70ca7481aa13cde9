package service

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"pod-tracker-bot/internal/model"
	"pod-tracker-bot/internal/repository"
)

// SortMethod selects the leaderboard ranking criterion.
type SortMethod string

// Supported leaderboard sort methods.
const (
	SortByWinRate      SortMethod = "winrate"
	SortByWins         SortMethod = "wins"
	SortByEliminations SortMethod = "eliminations"
	SortByGames        SortMethod = "games"
)

// Window restricts stats to a time range.
type Window string

// Supported stat windows.
const (
	WindowAll  Window = "all"
	WindowWeek Window = "week"
)

// ParseSortMethod maps a user-supplied argument to a sort method,
// defaulting to win rate for empty or unknown input.
func ParseSortMethod(arg string) SortMethod {
	switch SortMethod(strings.ToLower(strings.TrimSpace(arg))) {
	case SortByWins:
		return SortByWins
	case SortByEliminations:
		return SortByEliminations
	case SortByGames:
		return SortByGames
	default:
		return SortByWinRate
	}
}

// ParseWindow maps a user-supplied argument to a stats window,
// defaulting to all-time.
func ParseWindow(arg string) Window {
	if Window(strings.ToLower(strings.TrimSpace(arg))) == WindowWeek {
		return WindowWeek
	}
	return WindowAll
}

// ParseLeaderboardArgs reads a free-form command payload like
// "wins week" or "week" and extracts the sort method and window.
func ParseLeaderboardArgs(payload string) (SortMethod, Window) {
	method, window := SortByWinRate, WindowAll
	for _, field := range strings.Fields(strings.ToLower(payload)) {
		switch SortMethod(field) {
		case SortByWins, SortByEliminations, SortByGames, SortByWinRate:
			method = SortMethod(field)
		}
		if Window(field) == WindowWeek {
			window = WindowWeek
		}
	}
	return method, window
}

// Leaderboard is a pod's ranked standings. Members who have not played a
// game yet are listed separately instead of padding the bottom ranks.
type Leaderboard struct {
	Method   SortMethod
	Window   Window
	Ranked   []model.PlayerStats
	Inactive []model.PlayerStats
}

// Highlight is one notable pod-wide stat for the /leaderboard footer.
type Highlight struct {
	Title  string
	Player string
	Detail string
}

// PlayerProfile is one member's stats plus recent-form data derived from
// their game timeline.
type PlayerProfile struct {
	Stats            model.PlayerStats
	CurrentStreak    int // positive = consecutive wins, negative = consecutive losses
	LongestWinStreak int
	RecentForm       []model.Outcome // most recent game last
	GamesThisWeek    int
	WinsThisWeek     int
}

// StatsService derives leaderboards, highlights, and profiles from
// committed game data.
type StatsService struct {
	stats *repository.StatsRepository

	now func() time.Time
}

// NewStatsService creates a new StatsService instance.
func NewStatsService(stats *repository.StatsRepository) *StatsService {
	return &StatsService{stats: stats, now: time.Now}
}

// sinceFor translates a window into the stats cutoff. The zero time
// means all-time.
func (s *StatsService) sinceFor(window Window) time.Time {
	if window == WindowWeek {
		return s.now().AddDate(0, 0, -7)
	}
	return time.Time{}
}

// Leaderboard computes a pod's standings under the given sort method
// and time window.
func (s *StatsService) Leaderboard(ctx context.Context, podID int64, method SortMethod, window Window) (*Leaderboard, error) {
	stats, err := s.stats.PodStats(ctx, podID, s.sinceFor(window))
	if err != nil {
		return nil, fmt.Errorf("load stats for pod %d: %w", podID, err)
	}

	lb := &Leaderboard{Method: method, Window: window}
	for _, st := range stats {
		if st.GamesPlayed == 0 {
			lb.Inactive = append(lb.Inactive, st)
		} else {
			lb.Ranked = append(lb.Ranked, st)
		}
	}
	rankStats(lb.Ranked, method)
	return lb, nil
}

// Highlights computes notable pod-wide stats for the leaderboard
// footer: the win-rate and wins leaders always, plus two more picked at
// random so the footer varies between calls. Empty when no games were
// played.
func (s *StatsService) Highlights(ctx context.Context, podID int64) ([]Highlight, error) {
	stats, err := s.stats.PodStats(ctx, podID, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("load stats for pod %d: %w", podID, err)
	}

	var active []model.PlayerStats
	for _, st := range stats {
		if st.GamesPlayed > 0 {
			active = append(active, st)
		}
	}
	if len(active) == 0 {
		return nil, nil
	}

	pick := func(method SortMethod) model.PlayerStats {
		ranked := make([]model.PlayerStats, len(active))
		copy(ranked, active)
		rankStats(ranked, method)
		return ranked[0]
	}

	best := pick(SortByWinRate)
	wins := pick(SortByWins)
	highlights := []Highlight{
		{Title: "🎯 Best win rate", Player: best.Name, Detail: fmt.Sprintf("%.0f%%", best.WinRate()*100)},
		{Title: "🏆 Most wins", Player: wins.Name, Detail: fmt.Sprintf("%d", wins.Wins)},
	}

	elims := pick(SortByEliminations)
	games := pick(SortByGames)
	deadliest := deadliestPlayer(active)
	pool := []Highlight{
		{Title: "⚔️ Most eliminations", Player: elims.Name, Detail: fmt.Sprintf("%d", elims.Eliminations)},
		{Title: "🎲 Most games", Player: games.Name, Detail: fmt.Sprintf("%d", games.GamesPlayed)},
		{Title: "💥 Deadliest", Player: deadliest.Name, Detail: fmt.Sprintf("%.1f elims/game", deadliest.EliminationsPerGame())},
	}
	for _, i := range rand.Perm(len(pool))[:2] {
		highlights = append(highlights, pool[i])
	}

	return highlights, nil
}

// deadliestPlayer returns the active player with the highest
// eliminations-per-game average. Ties break toward more eliminations,
// then name.
func deadliestPlayer(active []model.PlayerStats) model.PlayerStats {
	best := active[0]
	for _, st := range active[1:] {
		a, b := st.EliminationsPerGame(), best.EliminationsPerGame()
		switch {
		case a > b:
			best = st
		case a == b && st.Eliminations > best.Eliminations:
			best = st
		case a == b && st.Eliminations == best.Eliminations && st.Name < best.Name:
			best = st
		}
	}
	return best
}

// Profile computes one member's profile. Returns
// repository.ErrPlayerNotFound if the user never joined the pod.
func (s *StatsService) Profile(ctx context.Context, podID, telegramID int64) (*PlayerProfile, error) {
	stats, err := s.stats.PlayerStats(ctx, podID, telegramID, time.Time{})
	if err != nil {
		return nil, err
	}
	timeline, err := s.stats.PlayerTimeline(ctx, podID, telegramID)
	if err != nil {
		return nil, fmt.Errorf("load timeline for player %d: %w", telegramID, err)
	}

	profile := &PlayerProfile{
		Stats:            *stats,
		CurrentStreak:    currentStreak(timeline),
		LongestWinStreak: longestWinStreak(timeline),
	}

	start := len(timeline) - 5
	if start < 0 {
		start = 0
	}
	for _, rec := range timeline[start:] {
		profile.RecentForm = append(profile.RecentForm, rec.Outcome)
	}

	weekAgo := s.now().AddDate(0, 0, -7)
	for _, rec := range timeline {
		if rec.CreatedAt.Before(weekAgo) {
			continue
		}
		profile.GamesThisWeek++
		if rec.Outcome == model.OutcomeWin {
			profile.WinsThisWeek++
		}
	}

	return profile, nil
}

// AggregateStats computes a user's combined stats across every pod they
// are in, for /profile in a private chat. Returns
// repository.ErrPlayerNotFound if they joined no pod.
func (s *StatsService) AggregateStats(ctx context.Context, telegramID int64) (*model.PlayerStats, error) {
	return s.stats.PlayerStatsAllPods(ctx, telegramID)
}

// rankStats sorts standings in place under the given method. Ties break
// toward more wins, then more games, then name for a stable display.
func rankStats(stats []model.PlayerStats, method SortMethod) {
	key := func(s *model.PlayerStats) float64 {
		switch method {
		case SortByWins:
			return float64(s.Wins)
		case SortByEliminations:
			return float64(s.Eliminations)
		case SortByGames:
			return float64(s.GamesPlayed)
		default:
			return s.WinRate()
		}
	}

	sort.SliceStable(stats, func(i, j int) bool {
		ki, kj := key(&stats[i]), key(&stats[j])
		if ki != kj {
			return ki > kj
		}
		if stats[i].Wins != stats[j].Wins {
			return stats[i].Wins > stats[j].Wins
		}
		if stats[i].GamesPlayed != stats[j].GamesPlayed {
			return stats[i].GamesPlayed > stats[j].GamesPlayed
		}
		return stats[i].Name < stats[j].Name
	})
}

// currentStreak returns the length of the streak the player is on: n
// consecutive wins counting back from the latest game, or -n consecutive
// losses. Draws end a streak.
func currentStreak(timeline []repository.PlayerGameRecord) int {
	if len(timeline) == 0 {
		return 0
	}
	last := timeline[len(timeline)-1].Outcome
	if last == model.OutcomeDraw {
		return 0
	}

	n := 0
	for i := len(timeline) - 1; i >= 0; i-- {
		if timeline[i].Outcome != last {
			break
		}
		n++
	}
	if last == model.OutcomeLose {
		return -n
	}
	return n
}

// longestWinStreak returns the longest run of consecutive wins.
func longestWinStreak(timeline []repository.PlayerGameRecord) int {
	best, run := 0, 0
	for _, rec := range timeline {
		if rec.Outcome == model.OutcomeWin {
			run++
			if run > best {
				best = run
			}
		} else {
			run = 0
		}
	}
	return best
}

package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"pod-tracker-bot/internal/model"
	"pod-tracker-bot/internal/repository"
)

func TestParseSortMethod(t *testing.T) {
	assert.Equal(t, SortByWins, ParseSortMethod("wins"))
	assert.Equal(t, SortByEliminations, ParseSortMethod(" Eliminations "))
	assert.Equal(t, SortByGames, ParseSortMethod("games"))
	assert.Equal(t, SortByWinRate, ParseSortMethod(""))
	assert.Equal(t, SortByWinRate, ParseSortMethod("nonsense"))
}

func TestParseLeaderboardArgs(t *testing.T) {
	method, window := ParseLeaderboardArgs("")
	assert.Equal(t, SortByWinRate, method)
	assert.Equal(t, WindowAll, window)

	method, window = ParseLeaderboardArgs("wins week")
	assert.Equal(t, SortByWins, method)
	assert.Equal(t, WindowWeek, window)

	method, window = ParseLeaderboardArgs("week")
	assert.Equal(t, SortByWinRate, method)
	assert.Equal(t, WindowWeek, window)

	method, window = ParseLeaderboardArgs("WEEK Eliminations")
	assert.Equal(t, SortByEliminations, method)
	assert.Equal(t, WindowWeek, window)
}

func TestDeadliestPlayer(t *testing.T) {
	stats := []model.PlayerStats{
		{Name: "Alice", Eliminations: 4, GamesPlayed: 4}, // 1.0 per game
		{Name: "Bob", Eliminations: 6, GamesPlayed: 4},   // 1.5 per game
		{Name: "Cara", Eliminations: 2, GamesPlayed: 1},  // 2.0 per game
	}
	assert.Equal(t, "Cara", deadliestPlayer(stats).Name)

	// Equal average: more total eliminations wins.
	tied := []model.PlayerStats{
		{Name: "Alice", Eliminations: 1, GamesPlayed: 1},
		{Name: "Bob", Eliminations: 3, GamesPlayed: 3},
	}
	assert.Equal(t, "Bob", deadliestPlayer(tied).Name)
}

func TestRankStatsByWinRate(t *testing.T) {
	stats := []model.PlayerStats{
		{Name: "Bob", Wins: 2, GamesPlayed: 4},
		{Name: "Alice", Wins: 3, GamesPlayed: 4},
		{Name: "Cara", Wins: 1, GamesPlayed: 1},
	}

	rankStats(stats, SortByWinRate)

	assert.Equal(t, "Cara", stats[0].Name)  // 100%
	assert.Equal(t, "Alice", stats[1].Name) // 75%
	assert.Equal(t, "Bob", stats[2].Name)   // 50%
}

func TestRankStatsTieBreaks(t *testing.T) {
	// Equal win rate: more wins ranks higher, then name decides.
	stats := []model.PlayerStats{
		{Name: "Zoe", Wins: 1, GamesPlayed: 2},
		{Name: "Amy", Wins: 1, GamesPlayed: 2},
		{Name: "Max", Wins: 2, GamesPlayed: 4},
	}

	rankStats(stats, SortByWinRate)

	assert.Equal(t, "Max", stats[0].Name)
	assert.Equal(t, "Amy", stats[1].Name)
	assert.Equal(t, "Zoe", stats[2].Name)
}

// TestRankStatsOrderingProperty checks that for any set of standings and
// any sort method, the ranking key never increases down the list.
func TestRankStatsOrderingProperty(t *testing.T) {
	methods := []SortMethod{SortByWinRate, SortByWins, SortByEliminations, SortByGames}

	rapid.Check(t, func(t *rapid.T) {
		numPlayers := rapid.IntRange(1, 30).Draw(t, "numPlayers")
		stats := make([]model.PlayerStats, numPlayers)
		for i := range stats {
			games := rapid.IntRange(1, 50).Draw(t, "games")
			wins := rapid.IntRange(0, games).Draw(t, "wins")
			stats[i] = model.PlayerStats{
				TelegramID:   int64(i + 1),
				Name:         rapid.StringMatching(`[a-z]{3,8}`).Draw(t, "name"),
				Wins:         wins,
				Losses:       games - wins,
				Eliminations: rapid.IntRange(0, 100).Draw(t, "elims"),
				GamesPlayed:  games,
			}
		}
		method := methods[rapid.IntRange(0, len(methods)-1).Draw(t, "method")]

		rankStats(stats, method)

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
		for i := 1; i < len(stats); i++ {
			if key(&stats[i-1]) < key(&stats[i]) {
				t.Fatalf("ranking key increases at position %d under %s", i, method)
			}
		}
	})
}

func timeline(outcomes ...model.Outcome) []repository.PlayerGameRecord {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	records := make([]repository.PlayerGameRecord, len(outcomes))
	for i, o := range outcomes {
		records[i] = repository.PlayerGameRecord{
			GameID:    int64(i + 1),
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
			Outcome:   o,
		}
	}
	return records
}

func TestCurrentStreak(t *testing.T) {
	assert.Equal(t, 0, currentStreak(nil))
	assert.Equal(t, 2, currentStreak(timeline(model.OutcomeLose, model.OutcomeWin, model.OutcomeWin)))
	assert.Equal(t, -3, currentStreak(timeline(model.OutcomeLose, model.OutcomeLose, model.OutcomeLose)))
	assert.Equal(t, 0, currentStreak(timeline(model.OutcomeWin, model.OutcomeDraw)))
	assert.Equal(t, 1, currentStreak(timeline(model.OutcomeDraw, model.OutcomeWin)))
}

func TestLongestWinStreak(t *testing.T) {
	assert.Equal(t, 0, longestWinStreak(nil))
	assert.Equal(t, 3, longestWinStreak(timeline(
		model.OutcomeWin, model.OutcomeWin, model.OutcomeWin,
		model.OutcomeLose,
		model.OutcomeWin, model.OutcomeWin,
	)))
	assert.Equal(t, 1, longestWinStreak(timeline(
		model.OutcomeWin, model.OutcomeDraw, model.OutcomeWin,
	)))
}

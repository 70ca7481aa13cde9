// Package bot provides the Telegram bot initialization and handler registration.
package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"pod-tracker-bot/internal/config"
	"pod-tracker-bot/internal/handler"
	"pod-tracker-bot/internal/repository"
	"pod-tracker-bot/internal/service"
	"pod-tracker-bot/internal/session"
)

// Bot wraps the telebot instance with application dependencies.
type Bot struct {
	bot *tele.Bot
	cfg *config.Config

	helpHandler        *handler.HelpHandler
	podHandler         *handler.PodHandler
	recordHandler      *handler.RecordHandler
	deleteHandler      *handler.DeleteHandler
	leaderboardHandler *handler.LeaderboardHandler
	historyHandler     *handler.HistoryHandler
}

// Dependencies holds everything the bot handlers need.
type Dependencies struct {
	Config   *config.Config
	Pods     *repository.PodRepository
	Players  *repository.PlayerRepository
	Games    *service.GameService
	Stats    *service.StatsService
	Sessions *session.Manager
}

// New creates a new Bot instance with the given dependencies.
func New(deps *Dependencies) (*Bot, error) {
	if deps.Config.Bot.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	pref := tele.Settings{
		Token:  deps.Config.Bot.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}

	teleBot, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b := &Bot{
		bot: teleBot,
		cfg: deps.Config,
	}

	b.helpHandler = handler.NewHelpHandler()
	b.podHandler = handler.NewPodHandler(deps.Pods, deps.Players)
	b.recordHandler = handler.NewRecordHandler(deps.Sessions)
	b.deleteHandler = handler.NewDeleteHandler(deps.Games)
	b.leaderboardHandler = handler.NewLeaderboardHandler(deps.Stats, deps.Players)
	b.historyHandler = handler.NewHistoryHandler(deps.Games)

	b.registerMiddleware()
	b.registerHandlers()

	return b, nil
}

// registerMiddleware registers all middleware.
func (b *Bot) registerMiddleware() {
	b.bot.Use(RecoveryMiddleware())
	b.bot.Use(LoggingMiddleware())
}

// registerHandlers registers all command and callback handlers.
func (b *Bot) registerHandlers() {
	b.bot.Handle("/start", b.helpHandler.HandleStart)
	b.bot.Handle("/help", b.helpHandler.HandleHelp)

	// Pod membership
	b.bot.Handle("/pod", b.podHandler.HandlePod)
	b.bot.Handle("/members", b.podHandler.HandleMembers)

	// Game recording
	b.bot.Handle("/game", b.recordHandler.HandleGame)
	b.bot.Handle("/customgame", b.recordHandler.HandleCustomGame)
	b.bot.Handle("/cancel", b.recordHandler.HandleCancel)

	// Deletion protocol
	b.bot.Handle("/delete", b.deleteHandler.HandleDelete)

	// Stats
	b.bot.Handle("/profile", b.leaderboardHandler.HandleProfile)
	b.bot.Handle("/leaderboard", b.leaderboardHandler.HandleLeaderboard)
	b.bot.Handle("/history", b.historyHandler.HandleHistory)
	b.bot.Handle("/podhistory", b.historyHandler.HandlePodHistory)

	// The recording flow consumes button presses and, in the
	// confirmation step, free text.
	b.bot.Handle(tele.OnCallback, b.handleCallback)
	b.bot.Handle(tele.OnText, b.recordHandler.HandleText)
}

// handleCallback routes callbacks to the owning handler by data prefix.
func (b *Bot) handleCallback(c tele.Context) error {
	callback := c.Callback()
	if callback == nil {
		return nil
	}

	data := strings.TrimPrefix(callback.Data, "\f")
	if strings.HasPrefix(data, "rec_") {
		return b.recordHandler.HandleCallback(c)
	}
	if strings.HasPrefix(data, "lb_") {
		return b.leaderboardHandler.HandleCallback(c)
	}

	log.Debug().Str("data", data).Msg("Ignoring unknown callback")
	return c.Respond(&tele.CallbackResponse{})
}

// Start starts the bot polling.
func (b *Bot) Start() {
	log.Info().Msg("Starting bot...")
	b.bot.Start()
}

// Stop stops the bot gracefully.
func (b *Bot) Stop() {
	log.Info().Msg("Stopping bot...")
	b.bot.Stop()
}

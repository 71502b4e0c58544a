// Package bot provides the Telegram bot initialization and handler registration.
package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"marbitz-battlebot/internal/config"
	"marbitz-battlebot/internal/handler"
	"marbitz-battlebot/internal/service"
)

// Bot wraps the telebot instance with application dependencies.
type Bot struct {
	bot *tele.Bot
	cfg *config.Config

	// Handlers
	helpHandler        *handler.HelpHandler
	challengeHandler   *handler.ChallengeHandler
	leaderboardHandler *handler.LeaderboardHandler
	adminHandler       *handler.AdminHandler
}

// Dependencies holds all the dependencies needed by the bot handlers.
type Dependencies struct {
	Config             *config.Config
	BattleService      *service.BattleService
	LeaderboardService *service.LeaderboardService
}

// New creates a new Bot instance with the given dependencies.
func New(deps *Dependencies) (*Bot, error) {
	if deps.Config.Bot.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	pref := tele.Settings{
		Token:  deps.Config.Bot.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c tele.Context) {
			log.Error().Err(err).Msg("Handler error")
		},
	}

	teleBot, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b := &Bot{
		bot: teleBot,
		cfg: deps.Config,
	}

	// Initialize handlers
	b.helpHandler = handler.NewHelpHandler(deps.LeaderboardService.ResetDay().String())
	b.challengeHandler = handler.NewChallengeHandler(deps.BattleService, handler.NewPacer(deps.Config.Battle))
	b.leaderboardHandler = handler.NewLeaderboardHandler(deps.LeaderboardService)
	b.adminHandler = handler.NewAdminHandler(deps.BattleService, deps.LeaderboardService, deps.Config.ChallengeExpiry())

	b.registerMiddleware()
	b.registerHandlers()

	return b, nil
}

// registerMiddleware registers all middleware.
func (b *Bot) registerMiddleware() {
	b.bot.Use(RecoveryMiddleware())
	b.bot.Use(WhitelistMiddleware(b.cfg))
	b.bot.Use(LoggingMiddleware())
}

// registerHandlers registers all command and callback handlers.
func (b *Bot) registerHandlers() {
	b.bot.Handle("/start", b.helpHandler.HandleStart)
	b.bot.Handle("/help", b.helpHandler.HandleHelp)

	// Challenge lifecycle
	b.bot.Handle("/challenge", b.challengeHandler.HandleChallenge)
	b.bot.Handle("/cancel_challenge", b.challengeHandler.HandleCancel)
	b.bot.Handle("/cancel", b.challengeHandler.HandleCancelPrompt)
	b.bot.Handle(tele.OnText, b.challengeHandler.HandleText)

	// Leaderboards
	b.bot.Handle("/leaderboard", b.leaderboardHandler.HandleLeaderboard)
	b.bot.Handle("/weekly", b.leaderboardHandler.HandleWeekly)
	b.bot.Handle("/stats", b.leaderboardHandler.HandleStats)
	b.bot.Handle("/my_stats", b.leaderboardHandler.HandleMyStats)

	// Admin handlers (with admin middleware)
	adminGroup := b.bot.Group()
	adminGroup.Use(AdminMiddleware(b.cfg))
	adminGroup.Handle("/admin_sweep", b.adminHandler.HandleSweep)
	adminGroup.Handle("/admin_reset_weekly", b.adminHandler.HandleResetWeekly)

	b.bot.Handle(tele.OnCallback, b.handleCallback)
}

// handleCallback routes callbacks to the handler owning their prefix.
func (b *Bot) handleCallback(c tele.Context) error {
	callback := c.Callback()
	if callback == nil {
		return nil
	}

	data := strings.TrimPrefix(callback.Data, "\f")
	log.Debug().Str("data", data).Msg("Callback received")

	if IsChallengeCallback(data) {
		return b.challengeHandler.HandleCallback(c)
	}
	return c.Respond(&tele.CallbackResponse{Text: "❌ Unknown action"})
}

// IsChallengeCallback reports whether callback data belongs to the challenge
// handler.
func IsChallengeCallback(data string) bool {
	action, _, _ := strings.Cut(strings.TrimPrefix(data, "\f"), "|")
	switch action {
	case handler.CallbackWagerYes, handler.CallbackWagerNo, handler.CallbackAccept, handler.CallbackDecline:
		return true
	}
	return false
}

// Start starts the bot polling. It blocks until Stop is called.
func (b *Bot) Start() {
	log.Info().Str("bot", b.bot.Me.Username).Msg("Starting bot...")
	b.bot.Start()
}

// Stop stops the bot gracefully.
func (b *Bot) Stop() {
	log.Info().Msg("Stopping bot...")
	b.bot.Stop()
}

// GetBot returns the underlying telebot instance.
func (b *Bot) GetBot() *tele.Bot {
	return b.bot
}

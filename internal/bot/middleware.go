package bot

import (
	"sync"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"marbitz-battlebot/internal/config"
)

// PrivateUsers remembers users seen in whitelisted groups so they may also
// talk to the bot privately.
type PrivateUsers struct {
	mu    sync.RWMutex
	users map[int64]bool
}

// NewPrivateUsers creates an empty PrivateUsers set.
func NewPrivateUsers() *PrivateUsers {
	return &PrivateUsers{users: make(map[int64]bool)}
}

// Allow marks a user as allowed to use private chat.
func (p *PrivateUsers) Allow(userID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.users[userID] = true
}

// Allowed checks if a user is allowed to use private chat.
func (p *PrivateUsers) Allowed(userID int64) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.users[userID]
}

// Admit decides whether an update from userID in chat passes the whitelist.
// An empty whitelist admits everything.
func (p *PrivateUsers) Admit(cfg *config.Config, chat *tele.Chat, userID int64) bool {
	if chat.Type == tele.ChatPrivate {
		return len(cfg.Whitelist.Chats) == 0 || p.Allowed(userID)
	}
	if !cfg.IsChatAllowed(chat.ID) {
		return false
	}
	p.Allow(userID)
	return true
}

// WhitelistMiddleware creates a middleware that drops updates from chats that
// are not whitelisted.
func WhitelistMiddleware(cfg *config.Config) tele.MiddlewareFunc {
	private := NewPrivateUsers()
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			chat := c.Chat()
			sender := c.Sender()

			if chat == nil || sender == nil {
				return nil
			}

			if !private.Admit(cfg, chat, sender.ID) {
				log.Debug().
					Int64("chat_id", chat.ID).
					Int64("user_id", sender.ID).
					Msg("Ignoring update from non-whitelisted chat")
				return nil
			}

			return next(c)
		}
	}
}

// AdminMiddleware creates a middleware that checks if the user is an admin.
func AdminMiddleware(cfg *config.Config) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			sender := c.Sender()
			if sender == nil {
				return nil
			}

			if !cfg.IsAdmin(sender.ID) {
				log.Warn().
					Int64("user_id", sender.ID).
					Str("command", c.Text()).
					Msg("Non-admin attempted admin command")
				return c.Reply("❌ This command is for bot admins only.")
			}

			return next(c)
		}
	}
}

// LoggingMiddleware creates a middleware that logs all incoming messages.
func LoggingMiddleware() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			sender := c.Sender()
			chat := c.Chat()

			logEvent := log.Debug()
			if sender != nil {
				logEvent = logEvent.
					Int64("user_id", sender.ID).
					Str("username", sender.Username)
			}
			if chat != nil {
				logEvent = logEvent.
					Int64("chat_id", chat.ID).
					Str("chat_type", string(chat.Type))
			}
			logEvent.
				Str("text", c.Text()).
				Msg("Received message")

			return next(c)
		}
	}
}

// RecoveryMiddleware creates a middleware that recovers from panics.
func RecoveryMiddleware() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			defer func() {
				if r := recover(); r != nil {
					log.Error().
						Interface("panic", r).
						Str("text", c.Text()).
						Msg("Recovered from panic in handler")
					_ = c.Send("❌ Something went wrong, please try again later.")
				}
			}()
			return next(c)
		}
	}
}

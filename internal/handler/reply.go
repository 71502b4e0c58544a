// Package handler provides Telegram bot command handlers.
package handler

import (
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"marbitz-battlebot/internal/model"
	"marbitz-battlebot/internal/service"
)

// Shared user-facing messages.
const (
	msgNoUsername  = "You need a Telegram username to participate in battles!"
	msgNotActive   = "This challenge is no longer active or has expired."
	msgBusy        = "⏳ This challenge is already being handled."
	msgSaveFailed  = "❌ Could not save that right now, please try again."
	msgUnexpected  = "❌ Something went wrong, please try again later."
	msgHasPending  = "You already have an active challenge! Use /cancel_challenge to cancel it first."
	msgSelfBattle  = "You can't challenge yourself! 😅"
	msgInvalidData = "❌ Invalid action"
)

// PlainText strips Markdown emphasis so a rejected message can be resent
// without a parse mode. Underscores are kept since they appear in usernames.
func PlainText(s string) string {
	return strings.NewReplacer("*", "", "`", "").Replace(s)
}

// replyMarkdown replies with Markdown and falls back to plain text when
// Telegram rejects the entities.
func replyMarkdown(c tele.Context, text string, opts ...interface{}) error {
	err := c.Reply(text, append([]interface{}{tele.ModeMarkdown}, opts...)...)
	if err == nil {
		return nil
	}
	log.Warn().Err(err).Msg("Markdown reply failed, resending as plain text")
	return c.Reply(PlainText(text), opts...)
}

// Sender is the part of *tele.Bot used to post messages outside a reply.
type Sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// sendMarkdown sends to a chat with Markdown and falls back to plain text.
func sendMarkdown(b Sender, to tele.Recipient, text string, opts *tele.SendOptions) (*tele.Message, error) {
	md := &tele.SendOptions{ParseMode: tele.ModeMarkdown}
	if opts != nil {
		cp := *opts
		cp.ParseMode = tele.ModeMarkdown
		md = &cp
	}
	msg, err := b.Send(to, text, md)
	if err == nil {
		return msg, nil
	}
	log.Warn().Err(err).Msg("Markdown send failed, resending as plain text")

	plain := &tele.SendOptions{}
	if opts != nil {
		cp := *opts
		cp.ParseMode = tele.ModeDefault
		plain = &cp
	}
	return b.Send(to, PlainText(text), plain)
}

// senderIdentity returns the sender's username, which is the identity used
// for battles.
func senderIdentity(c tele.Context) string {
	sender := c.Sender()
	if sender == nil {
		return ""
	}
	return model.NormalizeIdentity(sender.Username)
}

// displayName returns a name suitable for addressing the sender.
func displayName(u *tele.User) string {
	if u == nil {
		return "there"
	}
	if u.Username != "" {
		return "@" + u.Username
	}
	return u.FirstName
}

// errorMessage maps a service error to a user-facing reply.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, service.ErrBusy):
		return msgBusy
	case errors.Is(err, model.ErrNotFound):
		return msgNotActive
	case errors.Is(err, model.ErrConflict):
		return msgHasPending
	case errors.Is(err, model.ErrInvalidArgument):
		return "❌ " + strings.TrimPrefix(err.Error(), model.ErrInvalidArgument.Error()+": ")
	case errors.Is(err, model.ErrPersistence):
		return msgSaveFailed
	default:
		return msgUnexpected
	}
}

// parseCallback splits "unique|payload" callback data. Telebot prefixes
// data buttons with \f.
func parseCallback(data string) (action, payload string, ok bool) {
	data = strings.TrimPrefix(data, "\f")
	action, payload, ok = strings.Cut(data, "|")
	if !ok || action == "" || payload == "" {
		return "", "", false
	}
	return action, payload, true
}

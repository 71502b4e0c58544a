package handler

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"marbitz-battlebot/internal/model"
	"marbitz-battlebot/internal/service"
)

// Callback uniques carried by inline buttons. The payload is the challenge ID.
const (
	CallbackWagerYes = "wager_yes"
	CallbackWagerNo  = "wager_no"
	CallbackAccept   = "accept"
	CallbackDecline  = "decline"
)

// ChallengeHandler handles the challenge lifecycle commands and buttons.
type ChallengeHandler struct {
	battles *service.BattleService
	pacer   *Pacer
	prompts *wagerPrompts
}

// NewChallengeHandler creates a new ChallengeHandler.
func NewChallengeHandler(battles *service.BattleService, pacer *Pacer) *ChallengeHandler {
	return &ChallengeHandler{
		battles: battles,
		pacer:   pacer,
		prompts: newWagerPrompts(),
	}
}

// HandleChallenge handles /challenge @username [wager].
// Without a wager the challenger is asked whether to add one.
func (h *ChallengeHandler) HandleChallenge(c tele.Context) error {
	sender := c.Sender()
	chat := c.Chat()
	if sender == nil || chat == nil {
		return nil
	}

	challenger := senderIdentity(c)
	if challenger == "" {
		return c.Reply(msgNoUsername)
	}

	target, wager, hasWager, problem := parseChallengeArgs(c.Args(), h.battles.MaxWager())
	if problem != "" {
		return c.Reply(problem)
	}
	if model.SameIdentity(challenger, target) {
		return c.Reply(msgSelfBattle)
	}

	ch, err := h.battles.Challenge(challenger, target, wager)
	if err != nil {
		log.Warn().Err(err).Str("challenger", challenger).Str("challenged", target).Msg("Challenge rejected")
		return c.Reply(errorMessage(err))
	}

	if hasWager {
		return c.Reply(announceText(ch), announceMarkup(ch.ID))
	}

	markup := &tele.ReplyMarkup{}
	markup.Inline(
		markup.Row(markup.Data("Yes, let's wager! 💰", CallbackWagerYes, ch.ID)),
		markup.Row(markup.Data("No wager, just battle! ⚔️", CallbackWagerNo, ch.ID)),
	)
	return c.Reply(fmt.Sprintf(
		"⚔️ @%s wants to challenge @%s!\n\nDo you want to wager marbles on this battle?",
		ch.Challenger, ch.Challenged), markup)
}

// HandleCallback handles the wager and accept/decline buttons.
func (h *ChallengeHandler) HandleCallback(c tele.Context) error {
	cb := c.Callback()
	if cb == nil || c.Sender() == nil {
		return nil
	}

	action, id, ok := parseCallback(cb.Data)
	if !ok {
		return c.Respond(&tele.CallbackResponse{Text: msgInvalidData})
	}

	switch action {
	case CallbackWagerYes:
		return h.handleWagerYes(c, id)
	case CallbackWagerNo:
		return h.handleWagerNo(c, id)
	case CallbackAccept:
		return h.handleResponse(c, id, true)
	case CallbackDecline:
		return h.handleResponse(c, id, false)
	default:
		log.Debug().Str("action", action).Msg("Unknown callback action")
		return c.Respond(&tele.CallbackResponse{Text: msgInvalidData})
	}
}

func (h *ChallengeHandler) handleWagerYes(c tele.Context, id string) error {
	ch, err := h.challengerOnly(c, id)
	if err != nil || ch == nil {
		return err
	}

	h.prompts.Open(c.Sender().ID, c.Chat().ID, id)
	_ = c.Respond()
	return c.Edit(fmt.Sprintf(
		"💰 How many marbles do you want to wager? (1-%d)\nType a number or 'cancel' to cancel the challenge.",
		h.battles.MaxWager()))
}

func (h *ChallengeHandler) handleWagerNo(c tele.Context, id string) error {
	ch, err := h.challengerOnly(c, id)
	if err != nil || ch == nil {
		return err
	}

	h.prompts.Close(c.Sender().ID)
	_ = c.Respond()
	return c.Edit(announceText(ch), announceMarkup(ch.ID))
}

// challengerOnly loads a challenge and checks the button was pressed by its
// challenger. A nil challenge with nil error means a notice was already sent.
func (h *ChallengeHandler) challengerOnly(c tele.Context, id string) (*model.Challenge, error) {
	ch, err := h.battles.Get(id)
	if err != nil {
		_ = c.Respond()
		return nil, c.Edit(msgNotActive)
	}
	if !model.SameIdentity(senderIdentity(c), ch.Challenger) {
		return nil, c.Respond(&tele.CallbackResponse{
			Text:      fmt.Sprintf("Only @%s can set the wager for this battle.", ch.Challenger),
			ShowAlert: true,
		})
	}
	return ch, nil
}

// HandleText consumes typed wager amounts while a prompt is open. Other text
// is ignored.
func (h *ChallengeHandler) HandleText(c tele.Context) error {
	sender := c.Sender()
	chat := c.Chat()
	if sender == nil || chat == nil {
		return nil
	}

	prompt, ok := h.prompts.Get(sender.ID, chat.ID)
	if !ok {
		return nil
	}

	in, problem := parseWagerInput(c.Text(), h.battles.MaxWager())
	if problem != "" {
		return c.Reply(problem)
	}

	if in.Cancel {
		return h.cancelPrompt(c)
	}

	ch, err := h.battles.SetWager(prompt.ChallengeID, senderIdentity(c), in.Amount)
	if err != nil {
		if !errors.Is(err, model.ErrPersistence) {
			h.prompts.Close(sender.ID)
		}
		return c.Reply(errorMessage(err))
	}

	h.prompts.Close(sender.ID)
	return c.Reply(announceText(ch), announceMarkup(ch.ID))
}

// HandleCancelPrompt handles /cancel while a wager prompt is open. It drops
// the prompt and the challenge waiting on it. Without a prompt it does nothing.
func (h *ChallengeHandler) HandleCancelPrompt(c tele.Context) error {
	sender := c.Sender()
	chat := c.Chat()
	if sender == nil || chat == nil {
		return nil
	}
	if _, ok := h.prompts.Get(sender.ID, chat.ID); !ok {
		return nil
	}
	return h.cancelPrompt(c)
}

func (h *ChallengeHandler) cancelPrompt(c tele.Context) error {
	h.prompts.Close(c.Sender().ID)
	if _, err := h.battles.Cancel(senderIdentity(c)); err != nil && !errors.Is(err, model.ErrNotFound) {
		return c.Reply(errorMessage(err))
	}
	return c.Reply("Challenge cancelled! 😔")
}

// handleResponse runs accept or decline. Only the challenged user may answer.
// Playback happens after the challenge is gone and holds no lock.
func (h *ChallengeHandler) handleResponse(c tele.Context, id string, accept bool) error {
	out, err := h.battles.Respond(id, senderIdentity(c), accept)
	switch {
	case errors.Is(err, service.ErrNotChallenged):
		ch, getErr := h.battles.Get(id)
		if getErr != nil {
			return c.Respond(&tele.CallbackResponse{Text: msgNotActive})
		}
		_ = c.Respond()
		_, sendErr := c.Bot().Send(c.Chat(), fmt.Sprintf(
			"😕 Sorry %s, only @%s (the one who was challenged) can accept or decline this battle.",
			displayName(c.Sender()), ch.Challenged))
		return sendErr
	case errors.Is(err, service.ErrBusy):
		return c.Respond(&tele.CallbackResponse{Text: msgBusy})
	case out == nil && err != nil:
		_ = c.Respond()
		if errors.Is(err, model.ErrNotFound) {
			return c.Edit(msgNotActive)
		}
		return c.Reply(errorMessage(err))
	}

	h.prompts.CloseChallenge(id)
	_ = c.Respond()
	ch := out.Challenge

	if !out.Accepted {
		return c.Edit(fmt.Sprintf(
			"😔 @%s has declined the challenge from @%s.\nMaybe next time! 🏛️",
			ch.Challenged, ch.Challenger))
	}

	if err != nil {
		log.Error().Err(err).Str("challenge_id", id).Msg("Battle played without leaderboard update")
	}

	if editErr := c.Edit(out.Story.Setup); editErr != nil {
		log.Warn().Err(editErr).Str("challenge_id", id).Msg("Failed to show battle setup")
	}
	h.pacer.Play(c.Bot(), c.Chat(), c.Message(), out)
	return nil
}

// HandleCancel handles /cancel_challenge.
func (h *ChallengeHandler) HandleCancel(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	identity := senderIdentity(c)
	if identity == "" {
		return c.Reply(msgNoUsername)
	}

	ch, err := h.battles.Cancel(identity)
	if errors.Is(err, model.ErrNotFound) {
		return c.Reply("You don't have any active challenges to cancel.")
	}
	if err != nil {
		return c.Reply(errorMessage(err))
	}

	h.prompts.CloseChallenge(ch.ID)
	return c.Reply(fmt.Sprintf("❌ @%s has cancelled their challenge against @%s.", ch.Challenger, ch.Challenged))
}

// announceText is the open challenge message shown to the challenged user.
func announceText(ch *model.Challenge) string {
	stake := ""
	if ch.Wager > 0 {
		stake = fmt.Sprintf(" with %d marbles on the line", ch.Wager)
	}
	return fmt.Sprintf(
		"⚔️ @%s challenges @%s to a marble battle%s!\n\n@%s, do you accept this challenge?",
		ch.Challenger, ch.Challenged, stake, ch.Challenged)
}

func announceMarkup(id string) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	markup.Inline(
		markup.Row(markup.Data("Accept Battle! ⚔️", CallbackAccept, id)),
		markup.Row(markup.Data("Decline 😔", CallbackDecline, id)),
	)
	return markup
}

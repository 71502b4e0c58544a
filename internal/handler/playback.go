package handler

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"marbitz-battlebot/internal/config"
	"marbitz-battlebot/internal/service"
)

// Pacer spaces out battle messages.
type Pacer struct {
	phaseMin, phaseMax   time.Duration
	revealMin, revealMax time.Duration
	int64n               func(n int64) int64
	sleep                func(time.Duration)
}

// NewPacer creates a Pacer from the battle config.
func NewPacer(cfg config.BattleConfig) *Pacer {
	return &Pacer{
		phaseMin:  cfg.PhaseDelayMin,
		phaseMax:  cfg.PhaseDelayMax,
		revealMin: cfg.RevealDelayMin,
		revealMax: cfg.RevealDelayMax,
		int64n:    rand.Int64N,
		sleep:     time.Sleep,
	}
}

// PhaseDelay returns the pause before each phase.
func (p *Pacer) PhaseDelay() time.Duration {
	return p.between(p.phaseMin, p.phaseMax)
}

// RevealDelay returns the pause before the winner is announced.
func (p *Pacer) RevealDelay() time.Duration {
	return p.between(p.revealMin, p.revealMax)
}

func (p *Pacer) between(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return max(lo, 0)
	}
	return lo + time.Duration(p.int64n(int64(hi-lo)+1))
}

// Play posts the phases and the result of an accepted battle as replies to
// the challenge message.
func (p *Pacer) Play(b Sender, chat tele.Recipient, replyTo *tele.Message, out *service.Outcome) {
	opts := &tele.SendOptions{ReplyTo: replyTo}

	for _, phase := range out.Story.Phases {
		p.sleep(p.PhaseDelay())
		if _, err := b.Send(chat, phase, opts); err != nil {
			log.Error().Err(err).Str("challenge_id", out.Challenge.ID).Msg("Failed to send battle phase")
		}
	}

	p.sleep(p.RevealDelay())
	if _, err := sendMarkdown(b, chat, VictoryText(out), opts); err != nil {
		log.Error().Err(err).Str("challenge_id", out.Challenge.ID).Msg("Failed to send battle result")
	}
}

// VictoryText renders the result announcement.
func VictoryText(out *service.Outcome) string {
	text := fmt.Sprintf("🏆 *VICTORY!* @%s emerges triumphant!", out.Winner)
	if w := out.Challenge.Wager; w > 0 {
		text += fmt.Sprintf("\n💰 @%s wins %d marbles from @%s!", out.Winner, w, out.Loser)
	}
	return text
}

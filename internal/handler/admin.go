package handler

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"marbitz-battlebot/internal/service"
)

// AdminHandler handles admin maintenance commands.
type AdminHandler struct {
	battles     *service.BattleService
	leaderboard *service.LeaderboardService
	expiry      time.Duration
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(
	battles *service.BattleService,
	leaderboard *service.LeaderboardService,
	expiry time.Duration,
) *AdminHandler {
	return &AdminHandler{
		battles:     battles,
		leaderboard: leaderboard,
		expiry:      expiry,
	}
}

// HandleSweep handles /admin_sweep and removes expired challenges now.
func (h *AdminHandler) HandleSweep(c tele.Context) error {
	removed := h.battles.Sweep(h.expiry)

	log.Info().
		Int64("admin_id", c.Sender().ID).
		Int("removed", len(removed)).
		Str("operation", "admin_sweep").
		Msg("Admin operation executed")

	if len(removed) == 0 {
		return c.Reply(fmt.Sprintf("🧹 No expired challenges. %d still active.", h.battles.ActiveChallenges()))
	}
	return c.Reply(fmt.Sprintf("🧹 Removed %d expired challenge(s): %s\n%d still active.",
		len(removed), strings.Join(removed, ", "), h.battles.ActiveChallenges()))
}

// HandleResetWeekly handles /admin_reset_weekly and runs the weekly reset
// check now.
func (h *AdminHandler) HandleResetWeekly(c tele.Context) error {
	reset, err := h.leaderboard.ResetWeeklyIfDue()

	log.Info().
		Int64("admin_id", c.Sender().ID).
		Bool("reset", reset).
		Str("operation", "admin_reset_weekly").
		Msg("Admin operation executed")

	if err != nil {
		return c.Reply(errorMessage(err))
	}
	if reset {
		return c.Reply("📅 Weekly leaderboard has been reset.")
	}

	last := "never"
	if info := h.leaderboard.ResetInfo(); info.LastReset != nil {
		last = *info.LastReset
	}
	return c.Reply(fmt.Sprintf("📅 Weekly reset not due. Resets every %s, last reset: %s.",
		h.leaderboard.ResetDay(), last))
}

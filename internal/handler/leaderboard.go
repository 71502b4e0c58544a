package handler

import (
	tele "gopkg.in/telebot.v3"

	"marbitz-battlebot/internal/model"
	"marbitz-battlebot/internal/service"
)

// Leaderboard titles.
const (
	TitleOverall = "🏆 Overall Leaderboard"
	TitleWeekly  = "📅 Weekly Leaderboard"
)

// LeaderboardHandler handles ranking and stats commands.
type LeaderboardHandler struct {
	leaderboard *service.LeaderboardService
}

// NewLeaderboardHandler creates a new LeaderboardHandler.
func NewLeaderboardHandler(leaderboard *service.LeaderboardService) *LeaderboardHandler {
	return &LeaderboardHandler{
		leaderboard: leaderboard,
	}
}

// HandleLeaderboard handles /leaderboard.
func (h *LeaderboardHandler) HandleLeaderboard(c tele.Context) error {
	return replyMarkdown(c, h.leaderboard.Format(h.leaderboard.Overall(), TitleOverall))
}

// HandleWeekly handles /weekly.
func (h *LeaderboardHandler) HandleWeekly(c tele.Context) error {
	return replyMarkdown(c, h.leaderboard.Format(h.leaderboard.Weekly(), TitleWeekly))
}

// HandleStats handles /stats [@username]. Without an argument it shows the
// sender's own stats.
func (h *LeaderboardHandler) HandleStats(c tele.Context) error {
	target := senderIdentity(c)
	if args := c.Args(); len(args) > 0 {
		target = model.NormalizeIdentity(args[0])
	}
	if target == "" {
		return c.Reply("Please specify a username or make sure you have a username set!")
	}
	return replyMarkdown(c, h.leaderboard.FormatStats(target))
}

// HandleMyStats handles /my_stats.
func (h *LeaderboardHandler) HandleMyStats(c tele.Context) error {
	identity := senderIdentity(c)
	if identity == "" {
		return c.Reply("You need a username to view your stats!")
	}
	return replyMarkdown(c, h.leaderboard.FormatStats(identity))
}

package handler

import (
	"fmt"

	tele "gopkg.in/telebot.v3"
)

const commandList = "• `/challenge @username [wager]` - Challenge someone to battle\n" +
	"• `/leaderboard` - View overall rankings\n" +
	"• `/weekly` - View weekly rankings\n" +
	"• `/stats [@username]` - View your stats or someone else's\n" +
	"• `/my_stats` - View your personal stats\n" +
	"• `/cancel_challenge` - Cancel your active challenge\n"

// WelcomeText is the /start reply.
const WelcomeText = "🏛️ *Welcome to Marbitz Battlebot!* ⚔️\n\n" +
	"Ready to battle for marble supremacy? Here's how to play:\n\n" +
	"*Commands:*\n" +
	commandList +
	"\nMay the best marble warrior win! 🏆"

// HelpText is the /help reply. The reset weekday is filled in by the caller.
const HelpText = "🏛️ *Marbitz Battlebot Commands* ⚔️\n\n" +
	commandList +
	"• `/help` - Show this help message\n\n" +
	"*How to Battle:*\n" +
	"1. Challenge someone with `/challenge @username`\n" +
	"2. Choose whether to wager marbles\n" +
	"3. The challenged user must accept or decline\n" +
	"4. Watch the battle unfold!\n\n" +
	"*Leaderboards:*\n" +
	"- Overall leaderboard tracks all-time performance\n" +
	"- Weekly leaderboard resets every %s"

// HelpHandler handles /start and /help.
type HelpHandler struct {
	help string
}

// NewHelpHandler creates a new HelpHandler.
func NewHelpHandler(resetDay string) *HelpHandler {
	return &HelpHandler{help: fmt.Sprintf(HelpText, resetDay)}
}

// HandleStart handles /start.
func (h *HelpHandler) HandleStart(c tele.Context) error {
	return replyMarkdown(c, WelcomeText)
}

// HandleHelp handles /help.
func (h *HelpHandler) HandleHelp(c tele.Context) error {
	return replyMarkdown(c, h.help)
}

package bot

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
	tele "gopkg.in/telebot.v3"

	"marbitz-battlebot/internal/config"
)

// TestAdminPermissionCheckProperty checks that a user is an admin exactly when
// their ID is listed.
func TestAdminPermissionCheckProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		adminIDs := rapid.SliceOfN(rapid.Int64Range(1, 1000), 1, 10).Draw(t, "adminIDs")
		cfg := &config.Config{Admin: config.AdminConfig{IDs: adminIDs}}

		userID := rapid.Int64Range(1, 1000).Draw(t, "userID")
		if got, want := cfg.IsAdmin(userID), slices.Contains(adminIDs, userID); got != want {
			t.Fatalf("IsAdmin(%d) = %v with admins %v", userID, got, adminIDs)
		}
	})
}

// TestWhitelistAdmitGroupProperty checks that group updates pass exactly when
// the chat is whitelisted.
func TestWhitelistAdmitGroupProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		chats := rapid.SliceOfN(rapid.Int64Range(-1000, -1), 1, 10).Draw(t, "chats")
		cfg := &config.Config{Whitelist: config.WhitelistConfig{Chats: chats}}

		chatID := rapid.Int64Range(-1000, -1).Draw(t, "chatID")
		chat := &tele.Chat{ID: chatID, Type: tele.ChatGroup}

		got := NewPrivateUsers().Admit(cfg, chat, 42)
		if want := slices.Contains(chats, chatID); got != want {
			t.Fatalf("Admit(chat %d) = %v with whitelist %v", chatID, got, chats)
		}
	})
}

func TestWhitelistAdmitPrivate(t *testing.T) {
	cfg := &config.Config{Whitelist: config.WhitelistConfig{Chats: []int64{-100}}}
	private := NewPrivateUsers()
	dm := &tele.Chat{ID: 7, Type: tele.ChatPrivate}

	assert.False(t, private.Admit(cfg, dm, 7), "unknown user in private chat")

	assert.True(t, private.Admit(cfg, &tele.Chat{ID: -100, Type: tele.ChatSuperGroup}, 7))
	assert.True(t, private.Admit(cfg, dm, 7), "seen in a whitelisted group")

	assert.False(t, private.Admit(cfg, &tele.Chat{ID: -200, Type: tele.ChatGroup}, 8))
	assert.False(t, private.Allowed(8))
}

func TestWhitelistAdmitEmptyWhitelist(t *testing.T) {
	cfg := &config.Config{}
	private := NewPrivateUsers()

	assert.True(t, private.Admit(cfg, &tele.Chat{ID: 5, Type: tele.ChatPrivate}, 5))
	assert.True(t, private.Admit(cfg, &tele.Chat{ID: -5, Type: tele.ChatGroup}, 5))
}

func TestIsChallengeCallback(t *testing.T) {
	for _, data := range []string{"\faccept|challenge_1", "decline|challenge_1", "wager_yes|challenge_2", "\fwager_no|challenge_2"} {
		assert.True(t, IsChallengeCallback(data), data)
	}
	for _, data := range []string{"", "shop_buy|1", "accepted|challenge_1"} {
		assert.False(t, IsChallengeCallback(data), data)
	}
}

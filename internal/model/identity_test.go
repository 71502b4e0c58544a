package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestNormalizeIdentity(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"alice", "alice"},
		{"@Alice", "Alice"},
		{"  @bob ", "bob"},
		{"", ""},
		{"@", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeIdentity(tt.in))
		})
	}
}

func TestSameIdentity(t *testing.T) {
	assert.True(t, SameIdentity("Alice", "alice"))
	assert.True(t, SameIdentity("@alice", "ALICE"))
	assert.False(t, SameIdentity("alice", "bob"))
}

// TestSameIdentityIgnoresCaseAndPrefixProperty checks that casing and a leading
// "@" never change identity comparison.
func TestSameIdentityIgnoresCaseAndPrefixProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		name := rapid.StringMatching(`[a-zA-Z0-9_]{1,16}`).Draw(t, "name")
		prefixed := rapid.Bool().Draw(t, "prefixed")

		other := name
		if prefixed {
			other = "@" + other
		}
		if rapid.Bool().Draw(t, "upper") {
			other = strings.ToUpper(other)
		}

		if !SameIdentity(name, other) {
			t.Fatalf("expected %q and %q to be the same identity", name, other)
		}
	})
}

func TestChallengeStatus(t *testing.T) {
	assert.True(t, StatusPending.Valid())
	assert.False(t, StatusPending.Terminal())
	for _, s := range []ChallengeStatus{StatusAccepted, StatusDeclined, StatusExpired} {
		assert.True(t, s.Valid())
		assert.True(t, s.Terminal())
	}
	assert.False(t, ChallengeStatus("won").Valid())
	assert.False(t, ChallengeStatus("won").Terminal())
}

func TestLeaderboardEntryWinRate(t *testing.T) {
	assert.Equal(t, 0.0, LeaderboardEntry{}.WinRate())
	assert.Equal(t, 0.75, LeaderboardEntry{Wins: 3, Losses: 1}.WinRate())
	assert.Equal(t, 4, LeaderboardEntry{Wins: 3, Losses: 1}.Battles())
}

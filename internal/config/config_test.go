package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, DriverFile, cfg.Storage.Driver)
	assert.Equal(t, "data", cfg.Storage.Dir)
	assert.Equal(t, 24, cfg.Challenge.ExpiryHours)
	assert.Equal(t, time.Hour, cfg.Challenge.SweepInterval)
	assert.Equal(t, int64(1000), cfg.Challenge.MaxWager)
	assert.Equal(t, 2*time.Second, cfg.Battle.PhaseDelayMin)
	assert.Equal(t, 24*time.Hour, cfg.ChallengeExpiry())

	day, err := cfg.ResetWeekday()
	require.NoError(t, err)
	assert.Equal(t, time.Monday, day)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	content := `
storage:
  dir: /var/lib/battlebot
challenge:
  expiry_hours: 12
  max_wager: 50
leaderboard:
  reset_day: friday
  timezone: UTC
admin:
  ids: [42]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/battlebot", cfg.Storage.Dir)
	assert.Equal(t, 12, cfg.Challenge.ExpiryHours)
	assert.Equal(t, int64(50), cfg.Challenge.MaxWager)
	assert.True(t, cfg.IsAdmin(42))

	day, err := cfg.ResetWeekday()
	require.NoError(t, err)
	assert.Equal(t, time.Friday, day)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"weekday", "leaderboard:\n  reset_day: Someday\n"},
		{"driver", "storage:\n  driver: redis\n"},
		{"expiry", "challenge:\n  expiry_hours: 0\n"},
		{"timezone", "leaderboard:\n  timezone: Mars/Olympus\n"},
		{"sweep interval", "challenge:\n  sweep_interval: 0s\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(tt.content), 0o644))

			_, err := Load(dir)
			assert.Error(t, err)
		})
	}
}

func TestParseWeekday(t *testing.T) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		got, err := ParseWeekday(d.String())
		require.NoError(t, err)
		assert.Equal(t, d, got)
	}

	_, err := ParseWeekday("Mon")
	assert.Error(t, err)
}

func TestIsChatAllowed(t *testing.T) {
	open := &Config{}
	assert.True(t, open.IsChatAllowed(123))

	restricted := &Config{Whitelist: WhitelistConfig{Chats: []int64{1, 2}}}
	assert.True(t, restricted.IsChatAllowed(2))
	assert.False(t, restricted.IsChatAllowed(3))
}

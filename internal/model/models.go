// Package model defines the data models for the battle bot.
package model

import "time"

// ChallengeStatus is the lifecycle state of a challenge.
type ChallengeStatus string

// Challenge statuses. Anything other than pending is terminal.
const (
	StatusPending  ChallengeStatus = "pending"
	StatusAccepted ChallengeStatus = "accepted"
	StatusDeclined ChallengeStatus = "declined"
	StatusExpired  ChallengeStatus = "expired"
)

// Valid reports whether s is one of the known statuses.
func (s ChallengeStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusDeclined, StatusExpired:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are allowed out of s.
func (s ChallengeStatus) Terminal() bool {
	return s.Valid() && s != StatusPending
}

// Challenge is a proposed battle between two identities.
// Identities keep the casing the user typed; compare them with SameIdentity.
type Challenge struct {
	ID         string
	Challenger string
	Challenged string
	Wager      int64
	Status     ChallengeStatus
	// CreatedAt is zero when the persisted timestamp was missing or unparseable.
	CreatedAt time.Time
}

// LeaderboardEntry holds one identity's record in a leaderboard table.
type LeaderboardEntry struct {
	Wins    int   `json:"wins"`
	Losses  int   `json:"losses"`
	Marbles int64 `json:"marbles"`
}

// Battles returns the total number of recorded battles.
func (e LeaderboardEntry) Battles() int {
	return e.Wins + e.Losses
}

// WinRate returns wins / max(1, battles).
func (e LeaderboardEntry) WinRate() float64 {
	total := e.Battles()
	if total < 1 {
		total = 1
	}
	return float64(e.Wins) / float64(total)
}

// WeeklyReset drives when the weekly leaderboard is cleared.
type WeeklyReset struct {
	ResetDay  string  `json:"reset_day"`
	LastReset *string `json:"last_reset"`
}

// Persisted document names.
const (
	DocOverallLeaderboard = "overall_leaderboard"
	DocWeeklyLeaderboard  = "weekly_leaderboard"
	DocWeeklyReset        = "weekly_reset"
	DocChallenges         = "challenges"
)

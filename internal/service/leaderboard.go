// Package service provides business logic implementations.
package service

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"marbitz-battlebot/internal/model"
	"marbitz-battlebot/internal/repository"
	"marbitz-battlebot/internal/storage"
)

// LeaderboardLimit is the number of entries rendered by Format.
const LeaderboardLimit = 10

var medals = []string{"🥇", "🥈", "🥉"}

// LeaderboardService owns the overall and weekly score tables and the weekly
// reset record. Tables are re-read from the gateway on every call.
type LeaderboardService struct {
	gateway  storage.Gateway
	resetDay time.Weekday
	loc      *time.Location
	now      func() time.Time

	mu sync.Mutex
}

// LeaderboardOption configures a LeaderboardService.
type LeaderboardOption func(*LeaderboardService)

// WithLeaderboardClock replaces time.Now.
func WithLeaderboardClock(now func() time.Time) LeaderboardOption {
	return func(s *LeaderboardService) {
		s.now = now
	}
}

// NewLeaderboardService creates a new LeaderboardService. A nil location
// means time.Local.
func NewLeaderboardService(
	gateway storage.Gateway,
	resetDay time.Weekday,
	loc *time.Location,
	opts ...LeaderboardOption,
) *LeaderboardService {
	if loc == nil {
		loc = time.Local
	}
	s := &LeaderboardService{
		gateway:  gateway,
		resetDay: resetDay,
		loc:      loc,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ResetDay returns the configured reset weekday.
func (s *LeaderboardService) ResetDay() time.Weekday {
	return s.resetDay
}

// ShouldResetWeekly reports whether the weekly table is due for a reset.
func (s *LeaderboardService) ShouldResetWeekly() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shouldResetLocked(s.loadResetLocked())
}

func (s *LeaderboardService) shouldResetLocked(info model.WeeklyReset) bool {
	now := s.now().In(s.loc)
	isResetDay := now.Weekday() == s.resetDay

	if info.LastReset == nil {
		return isResetDay
	}

	last, err := repository.ParseTimestamp(*info.LastReset)
	if err != nil {
		log.Error().Err(err).Str("last_reset", *info.LastReset).Msg("Unparseable last reset, falling back to weekday check")
		return isResetDay
	}
	last = last.In(s.loc)

	days := int(now.Sub(last) / (24 * time.Hour))
	if isResetDay && !sameDate(now, last) && days >= 6 {
		return true
	}
	// Failsafe for a missed reset day.
	return days >= 7
}

// ResetWeeklyIfDue clears the weekly table and stamps the reset time when a
// reset is due. It reports whether a reset happened.
func (s *LeaderboardService) ResetWeeklyIfDue() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resetIfDueLocked()
}

func (s *LeaderboardService) resetIfDueLocked() (bool, error) {
	info := s.loadResetLocked()
	if !s.shouldResetLocked(info) {
		return false, nil
	}

	if err := s.saveTable(model.DocWeeklyLeaderboard, map[string]model.LeaderboardEntry{}); err != nil {
		return false, fmt.Errorf("clear weekly leaderboard: %w", err)
	}

	stamp := repository.FormatTimestamp(s.now().In(s.loc))
	info.ResetDay = s.resetDay.String()
	info.LastReset = &stamp

	doc, err := storage.Encode(info)
	if err != nil {
		return false, err
	}
	if err := s.gateway.Save(model.DocWeeklyReset, doc); err != nil {
		return false, fmt.Errorf("save weekly reset: %w", err)
	}

	log.Info().Str("last_reset", stamp).Msg("Weekly leaderboard has been reset")
	return true, nil
}

// loadResetLocked reads the reset record, defaulting reset_day to the
// configured weekday.
func (s *LeaderboardService) loadResetLocked() model.WeeklyReset {
	info := model.WeeklyReset{ResetDay: s.resetDay.String()}
	doc := s.gateway.Load(model.DocWeeklyReset)
	if len(doc) == 0 {
		return info
	}
	if err := storage.Decode(doc, &info); err != nil {
		log.Warn().Err(err).Msg("Malformed weekly reset record, treating as never reset")
		return model.WeeklyReset{ResetDay: s.resetDay.String()}
	}
	if info.LastReset != nil && *info.LastReset == "" {
		info.LastReset = nil
	}
	return info
}

// ResetInfo returns the persisted weekly reset record.
func (s *LeaderboardService) ResetInfo() model.WeeklyReset {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadResetLocked()
}

// Settle records a battle result in both tables. The weekly reset check runs
// first. Both tables are saved, overall first; a failed weekly save leaves the
// overall table updated.
func (s *LeaderboardService) Settle(winner, loser string, wager int64) error {
	winner = model.NormalizeIdentity(winner)
	loser = model.NormalizeIdentity(loser)
	if winner == "" || loser == "" {
		return fmt.Errorf("%w: winner and loser are required", model.ErrInvalidArgument)
	}
	if model.SameIdentity(winner, loser) {
		return fmt.Errorf("%w: winner and loser are the same identity", model.ErrInvalidArgument)
	}
	wager = max(wager, 0)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.resetIfDueLocked(); err != nil {
		log.Error().Err(err).Msg("Weekly reset failed, settling anyway")
	}

	for _, name := range []string{model.DocOverallLeaderboard, model.DocWeeklyLeaderboard} {
		table := s.loadTable(name)
		applyResult(table, winner, loser, wager)
		if err := s.saveTable(name, table); err != nil {
			return fmt.Errorf("save %s: %w", name, err)
		}
	}

	log.Info().
		Str("winner", winner).
		Str("loser", loser).
		Int64("wager", wager).
		Msg("Leaderboard settled")
	return nil
}

func applyResult(table map[string]model.LeaderboardEntry, winner, loser string, wager int64) {
	wk := entryKey(table, winner)
	lk := entryKey(table, loser)

	w := table[wk]
	w.Wins++
	w.Marbles += wager
	table[wk] = w

	l := table[lk]
	l.Losses++
	l.Marbles -= wager
	table[lk] = l
}

// entryKey returns the existing key matching identity case-insensitively, or
// identity itself for a new entry.
func entryKey(table map[string]model.LeaderboardEntry, identity string) string {
	if _, ok := table[identity]; ok {
		return identity
	}
	for _, key := range slices.Sorted(maps.Keys(table)) {
		if model.SameIdentity(key, identity) {
			return key
		}
	}
	return identity
}

func (s *LeaderboardService) loadTable(name string) map[string]model.LeaderboardEntry {
	return storage.LoadInto[model.LeaderboardEntry](s.gateway, name)
}

func (s *LeaderboardService) saveTable(name string, table map[string]model.LeaderboardEntry) error {
	return storage.SaveFrom(s.gateway, name, table)
}

// Overall returns the overall table.
func (s *LeaderboardService) Overall() map[string]model.LeaderboardEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadTable(model.DocOverallLeaderboard)
}

// Weekly returns the weekly table.
func (s *LeaderboardService) Weekly() map[string]model.LeaderboardEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadTable(model.DocWeeklyLeaderboard)
}

// StatsFor returns the overall and weekly entries for identity. Unknown
// identities get zero entries.
func (s *LeaderboardService) StatsFor(identity string) (overall, weekly model.LeaderboardEntry) {
	identity = model.NormalizeIdentity(identity)

	s.mu.Lock()
	defer s.mu.Unlock()

	o := s.loadTable(model.DocOverallLeaderboard)
	w := s.loadTable(model.DocWeeklyLeaderboard)
	return o[entryKey(o, identity)], w[entryKey(w, identity)]
}

// Format renders the top entries of a table.
func (s *LeaderboardService) Format(table map[string]model.LeaderboardEntry, title string) string {
	return FormatLeaderboard(table, title)
}

// FormatStats renders the stats card for identity.
func (s *LeaderboardService) FormatStats(identity string) string {
	overall, weekly := s.StatsFor(identity)
	return FormatStatsCard(model.NormalizeIdentity(identity), overall, weekly)
}

// RankedEntry is a table row with its identity.
type RankedEntry struct {
	Identity string
	model.LeaderboardEntry
}

// Rank orders a table by wins, win rate and marbles, all descending, with
// identity ascending as the final tie-break.
func Rank(table map[string]model.LeaderboardEntry) []RankedEntry {
	rows := make([]RankedEntry, 0, len(table))
	for id, e := range table {
		rows = append(rows, RankedEntry{Identity: id, LeaderboardEntry: e})
	}
	slices.SortFunc(rows, func(a, b RankedEntry) int {
		return cmp.Or(
			cmp.Compare(b.Wins, a.Wins),
			cmp.Compare(b.WinRate(), a.WinRate()),
			cmp.Compare(b.Marbles, a.Marbles),
			strings.Compare(a.Identity, b.Identity),
		)
	})
	return rows
}

// FormatLeaderboard renders the top LeaderboardLimit entries as Markdown.
func FormatLeaderboard(table map[string]model.LeaderboardEntry, title string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s*\n\n", title)

	if len(table) == 0 {
		b.WriteString("No battles yet! 🏆")
		return b.String()
	}

	rows := Rank(table)
	for i, row := range rows[:min(len(rows), LeaderboardLimit)] {
		rank := fmt.Sprintf("%d.", i+1)
		if i < len(medals) {
			rank = medals[i]
		}
		fmt.Fprintf(&b, "%s @%s: %dW-%dL (%.1f%%) | %+d marbles\n",
			rank, row.Identity, row.Wins, row.Losses, row.WinRate()*100, row.Marbles)
	}
	return b.String()
}

// FormatStatsCard renders one identity's overall and weekly record.
func FormatStatsCard(identity string, overall, weekly model.LeaderboardEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 *Stats for @%s*\n\n", identity)
	writeStatsBlock(&b, "Overall", overall)
	b.WriteString("\n")
	writeStatsBlock(&b, "This Week", weekly)
	return strings.TrimRight(b.String(), "\n")
}

func writeStatsBlock(b *strings.Builder, title string, e model.LeaderboardEntry) {
	fmt.Fprintf(b, "*%s:*\n", title)
	fmt.Fprintf(b, "• Battles: %d (%dW-%dL)\n", e.Battles(), e.Wins, e.Losses)
	fmt.Fprintf(b, "• Win Rate: %.1f%%\n", e.WinRate()*100)
	fmt.Fprintf(b, "• Marbles: %+d\n", e.Marbles)
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

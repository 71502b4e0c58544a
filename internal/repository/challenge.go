// Package repository provides the challenge table persisted through a
// storage gateway.
package repository

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"marbitz-battlebot/internal/model"
	"marbitz-battlebot/internal/storage"
)

const idPrefix = "challenge_"

// challengeRecord is the persisted shape of a challenge.
type challengeRecord struct {
	Challenger string `json:"challenger_user"`
	Challenged string `json:"challenged_user"`
	Wager      int64  `json:"wager_amount"`
	Timestamp  string `json:"timestamp"`
	Status     string `json:"status"`
}

// ChallengePatch lists the fields Update may change. Nil fields are left alone.
type ChallengePatch struct {
	Wager  *int64
	Status *model.ChallengeStatus
}

// ChallengeStore is the process-wide table of challenges. Every operation
// holds one mutex across load-modify-persist, so concurrent accept, decline,
// cancel and sweep calls are linearized. Construct one per process and share it.
type ChallengeStore struct {
	gateway storage.Gateway
	now     func() time.Time

	mu         sync.Mutex
	challenges map[string]*model.Challenge
	counter    int
}

// StoreOption configures a ChallengeStore.
type StoreOption func(*ChallengeStore)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) StoreOption {
	return func(s *ChallengeStore) {
		s.now = now
	}
}

// NewChallengeStore creates a store and loads the persisted challenges.
func NewChallengeStore(gateway storage.Gateway, opts ...StoreOption) *ChallengeStore {
	s := &ChallengeStore{
		gateway:    gateway,
		now:        time.Now,
		challenges: make(map[string]*model.Challenge),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.load()
	return s
}

// load reads the challenge document. Records that do not decode are kept with
// a zero timestamp so the next sweep purges them.
func (s *ChallengeStore) load() {
	doc := s.gateway.Load(model.DocChallenges)

	for id, raw := range doc {
		c := decodeChallenge(id, raw)
		s.challenges[id] = c
		if n, ok := idSuffix(id); ok && n > s.counter {
			s.counter = n
		}
	}

	log.Info().
		Int("challenges", len(s.challenges)).
		Int("counter", s.counter).
		Msg("Loaded active challenges")
}

func decodeChallenge(id string, raw json.RawMessage) *model.Challenge {
	var rec challengeRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		log.Warn().Err(err).Str("challenge_id", id).Msg("Malformed challenge record, will expire")
		return &model.Challenge{ID: id, Status: model.StatusPending}
	}

	c := &model.Challenge{
		ID:         id,
		Challenger: model.NormalizeIdentity(rec.Challenger),
		Challenged: model.NormalizeIdentity(rec.Challenged),
		Wager:      max(rec.Wager, 0),
		Status:     model.ChallengeStatus(rec.Status),
	}
	if !c.Status.Valid() {
		// Older documents carry no status; every stored challenge is pending.
		c.Status = model.StatusPending
	}

	if c.Challenger == "" || c.Challenged == "" || model.SameIdentity(c.Challenger, c.Challenged) {
		log.Warn().Str("challenge_id", id).Msg("Challenge record has invalid participants, will expire")
		return c
	}

	createdAt, err := ParseTimestamp(rec.Timestamp)
	if err != nil {
		log.Warn().Err(err).Str("challenge_id", id).Msg("Unparseable challenge timestamp, will expire")
	}
	c.CreatedAt = createdAt
	return c
}

func encodeChallenge(c *model.Challenge) challengeRecord {
	rec := challengeRecord{
		Challenger: c.Challenger,
		Challenged: c.Challenged,
		Wager:      c.Wager,
		Status:     string(c.Status),
	}
	if !c.CreatedAt.IsZero() {
		rec.Timestamp = FormatTimestamp(c.CreatedAt)
	}
	return rec
}

// persistLocked writes the whole table. Caller holds s.mu.
func (s *ChallengeStore) persistLocked() error {
	records := make(map[string]challengeRecord, len(s.challenges))
	for id, c := range s.challenges {
		records[id] = encodeChallenge(c)
	}
	if err := storage.SaveFrom(s.gateway, model.DocChallenges, records); err != nil {
		return err
	}
	log.Debug().Int("challenges", len(records)).Msg("Saved active challenges")
	return nil
}

// Create records a new pending challenge and returns its ID.
func (s *ChallengeStore) Create(challenger, challenged string, wager int64) (string, error) {
	challenger = model.NormalizeIdentity(challenger)
	challenged = model.NormalizeIdentity(challenged)

	if challenger == "" || challenged == "" {
		return "", fmt.Errorf("%w: challenger and challenged are required", model.ErrInvalidArgument)
	}
	if model.SameIdentity(challenger, challenged) {
		return "", fmt.Errorf("%w: cannot challenge yourself", model.ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.findLocked(challenger, true); ok {
		return "", fmt.Errorf("%w: %s already has pending challenge %s", model.ErrConflict, challenger, id)
	}

	s.counter++
	id := idPrefix + strconv.Itoa(s.counter)
	s.challenges[id] = &model.Challenge{
		ID:         id,
		Challenger: challenger,
		Challenged: challenged,
		Wager:      max(wager, 0),
		Status:     model.StatusPending,
		CreatedAt:  s.now(),
	}

	if err := s.persistLocked(); err != nil {
		delete(s.challenges, id)
		s.counter--
		return "", err
	}

	log.Info().
		Str("challenge_id", id).
		Str("challenger", challenger).
		Str("challenged", challenged).
		Int64("wager", max(wager, 0)).
		Msg("Challenge created")
	return id, nil
}

// Get returns a copy of a challenge.
func (s *ChallengeStore) Get(id string) (*model.Challenge, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.challenges[id]
	if !ok {
		return nil, false
	}
	cp := *c
	return &cp, true
}

// Update applies a patch. It returns false if the ID is unknown or the save
// failed, in which case the in-memory record is left unchanged.
// Negative wagers become 0. Unknown statuses, and any change out of a terminal
// status, are dropped.
func (s *ChallengeStore) Update(id string, patch ChallengePatch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.challenges[id]
	if !ok {
		log.Warn().Str("challenge_id", id).Msg("Attempted to update non-existent challenge")
		return false
	}
	prev := *c

	if patch.Wager != nil {
		c.Wager = max(*patch.Wager, 0)
	}
	if patch.Status != nil {
		next := *patch.Status
		switch {
		case !next.Valid():
			log.Warn().Str("challenge_id", id).Str("status", string(next)).Msg("Dropping unknown status")
		case c.Status.Terminal() && next != c.Status:
			log.Warn().
				Str("challenge_id", id).
				Str("from", string(c.Status)).
				Str("to", string(next)).
				Msg("Dropping transition out of terminal status")
		default:
			c.Status = next
		}
	}

	if err := s.persistLocked(); err != nil {
		*c = prev
		return false
	}

	log.Info().Str("challenge_id", id).Msg("Challenge updated")
	return true
}

// Remove deletes a challenge. It returns false if the ID is unknown or the
// save failed, in which case the challenge is kept.
func (s *ChallengeStore) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.challenges[id]
	if !ok {
		log.Warn().Str("challenge_id", id).Msg("Attempted to remove non-existent challenge")
		return false
	}

	delete(s.challenges, id)
	if err := s.persistLocked(); err != nil {
		s.challenges[id] = c
		return false
	}

	log.Info().Str("challenge_id", id).Msg("Challenge removed")
	return true
}

// FindByChallenger returns the challenge created by identity, preferring a
// pending one. Only the challenger field is matched.
func (s *ChallengeStore) FindByChallenger(identity string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.findLocked(identity, true); ok {
		return id, true
	}
	return s.findLocked(identity, false)
}

func (s *ChallengeStore) findLocked(identity string, pendingOnly bool) (string, bool) {
	key := model.IdentityKey(identity)
	if key == "" {
		return "", false
	}
	for _, id := range s.sortedIDsLocked() {
		c := s.challenges[id]
		if model.IdentityKey(c.Challenger) != key {
			continue
		}
		if pendingOnly && c.Status != model.StatusPending {
			continue
		}
		return id, true
	}
	return "", false
}

// SweepExpired removes every challenge older than maxAge, plus any whose
// timestamp was missing or unparseable, and saves once. If the save fails
// nothing is removed and an empty list is returned.
func (s *ChallengeStore) SweepExpired(maxAge time.Duration) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := make(map[string]*model.Challenge)
	for id, c := range s.challenges {
		if c.CreatedAt.IsZero() || now.Sub(c.CreatedAt) > maxAge {
			removed[id] = c
		}
	}
	if len(removed) == 0 {
		return []string{}
	}

	for id := range removed {
		delete(s.challenges, id)
	}
	if err := s.persistLocked(); err != nil {
		for id, c := range removed {
			s.challenges[id] = c
		}
		log.Error().Err(err).Int("expired", len(removed)).Msg("Sweep rolled back")
		return []string{}
	}

	ids := make([]string, 0, len(removed))
	for id := range removed {
		ids = append(ids, id)
	}
	sortIDs(ids)

	log.Info().Int("expired", len(ids)).Strs("challenge_ids", ids).Msg("Cleaned up expired challenges")
	return ids
}

// All returns a copy of every challenge keyed by ID.
func (s *ChallengeStore) All() map[string]model.Challenge {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]model.Challenge, len(s.challenges))
	for id, c := range s.challenges {
		out[id] = *c
	}
	return out
}

// Count returns the number of stored challenges.
func (s *ChallengeStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.challenges)
}

// Counter returns the last allocated ID suffix.
func (s *ChallengeStore) Counter() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counter
}

func (s *ChallengeStore) sortedIDsLocked() []string {
	ids := make([]string, 0, len(s.challenges))
	for id := range s.challenges {
		ids = append(ids, id)
	}
	sortIDs(ids)
	return ids
}

// sortIDs orders challenge IDs by numeric suffix, then lexically.
func sortIDs(ids []string) {
	slices.SortFunc(ids, func(a, b string) int {
		na, okA := idSuffix(a)
		nb, okB := idSuffix(b)
		if okA && okB && na != nb {
			return na - nb
		}
		return strings.Compare(a, b)
	})
}

// idSuffix extracts n from "challenge_<n>".
func idSuffix(id string) (int, bool) {
	rest, ok := strings.CutPrefix(id, idPrefix)
	if !ok || rest == "" {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

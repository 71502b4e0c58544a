package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"marbitz-battlebot/internal/game/battle"
	"marbitz-battlebot/internal/model"
	"marbitz-battlebot/internal/pkg/lock"
	"marbitz-battlebot/internal/repository"
)

// Battle-related errors.
var (
	ErrNotChallenged = fmt.Errorf("%w: only the challenged user can respond", model.ErrConflict)
	ErrNotChallenger = fmt.Errorf("%w: only the challenger can change the wager", model.ErrConflict)
	ErrBusy          = fmt.Errorf("%w: challenge is already being handled", model.ErrConflict)
)

// DefaultMaxWager is used when no positive limit is configured.
const DefaultMaxWager int64 = 1000

// Outcome is the result of responding to a challenge.
type Outcome struct {
	Challenge model.Challenge
	Accepted  bool
	// Set only when Accepted.
	Winner string
	Loser  string
	Story  battle.Story
}

// BattleService runs the challenge lifecycle on top of the challenge store,
// the leaderboard and the resolver.
type BattleService struct {
	store       *repository.ChallengeStore
	leaderboard *LeaderboardService
	resolver    *battle.Resolver
	maxWager    int64
	locks       *lock.KeyLock
}

// NewBattleService creates a new BattleService instance.
func NewBattleService(
	store *repository.ChallengeStore,
	leaderboard *LeaderboardService,
	resolver *battle.Resolver,
	maxWager int64,
) *BattleService {
	if maxWager <= 0 {
		maxWager = DefaultMaxWager
	}
	return &BattleService{
		store:       store,
		leaderboard: leaderboard,
		resolver:    resolver,
		maxWager:    maxWager,
		locks:       lock.NewKeyLock(),
	}
}

// MaxWager returns the largest accepted wager.
func (s *BattleService) MaxWager() int64 {
	return s.maxWager
}

// Challenge creates a pending challenge from challenger to challenged.
func (s *BattleService) Challenge(challenger, challenged string, wager int64) (*model.Challenge, error) {
	if err := s.validateWager(wager); err != nil {
		return nil, err
	}

	id, err := s.store.Create(challenger, challenged, wager)
	if err != nil {
		return nil, err
	}

	c, ok := s.store.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: challenge %s", model.ErrNotFound, id)
	}
	return c, nil
}

// Get returns a challenge by ID.
func (s *BattleService) Get(id string) (*model.Challenge, error) {
	c, ok := s.store.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: challenge %s", model.ErrNotFound, id)
	}
	return c, nil
}

// PendingFor returns the actor's pending challenge.
func (s *BattleService) PendingFor(actor string) (*model.Challenge, error) {
	id, ok := s.store.FindByChallenger(actor)
	if !ok {
		return nil, fmt.Errorf("%w: no challenge by %s", model.ErrNotFound, model.NormalizeIdentity(actor))
	}
	c, ok := s.store.Get(id)
	if !ok || c.Status != model.StatusPending {
		return nil, fmt.Errorf("%w: no pending challenge by %s", model.ErrNotFound, model.NormalizeIdentity(actor))
	}
	return c, nil
}

// SetWager changes the wager of a pending challenge. Only the challenger may
// do this, and amount must lie in [0, MaxWager].
func (s *BattleService) SetWager(id, actor string, amount int64) (*model.Challenge, error) {
	if err := s.validateWager(amount); err != nil {
		return nil, err
	}

	var updated *model.Challenge
	err := s.withChallenge(id, func(c *model.Challenge) error {
		if !model.SameIdentity(actor, c.Challenger) {
			return ErrNotChallenger
		}
		if !s.store.Update(id, repository.ChallengePatch{Wager: &amount}) {
			return fmt.Errorf("%w: update challenge %s", model.ErrPersistence, id)
		}
		c.Wager = amount
		updated = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("challenge_id", id).Int64("wager", amount).Msg("Wager set")
	return updated, nil
}

// Respond accepts or declines a challenge on behalf of actor, who must be the
// challenged identity. The record is removed before the battle is resolved.
// If settlement fails the Outcome is still returned along with the error.
func (s *BattleService) Respond(id, actor string, accept bool) (*Outcome, error) {
	var out *Outcome
	err := s.withChallenge(id, func(c *model.Challenge) error {
		if !model.SameIdentity(actor, c.Challenged) {
			return ErrNotChallenged
		}
		if err := s.remove(id); err != nil {
			return err
		}
		out = &Outcome{Challenge: *c, Accepted: accept}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c := out.Challenge
	if !accept {
		log.Info().
			Str("challenge_id", id).
			Str("challenger", c.Challenger).
			Str("challenged", c.Challenged).
			Msg("Challenge declined")
		return out, nil
	}

	out.Winner, out.Loser = s.resolver.Resolve(c.Challenger, c.Challenged)
	out.Story = s.resolver.Narrate(c.Challenger, c.Challenged)

	log.Info().
		Str("challenge_id", id).
		Str("scenario", out.Story.Scenario).
		Str("winner", out.Winner).
		Str("loser", out.Loser).
		Int64("wager", c.Wager).
		Msg("Battle finished")

	if err := s.leaderboard.Settle(out.Winner, out.Loser, c.Wager); err != nil {
		log.Error().Err(err).Str("challenge_id", id).Msg("Failed to settle battle")
		return out, fmt.Errorf("settle challenge %s: %w", id, err)
	}
	return out, nil
}

// Cancel removes the actor's pending challenge.
func (s *BattleService) Cancel(actor string) (*model.Challenge, error) {
	pending, err := s.PendingFor(actor)
	if err != nil {
		return nil, err
	}

	var cancelled *model.Challenge
	err = s.withChallenge(pending.ID, func(c *model.Challenge) error {
		if !model.SameIdentity(actor, c.Challenger) {
			return ErrNotChallenger
		}
		if err := s.remove(c.ID); err != nil {
			return err
		}
		cancelled = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("challenge_id", cancelled.ID).Str("challenger", cancelled.Challenger).Msg("Challenge cancelled")
	return cancelled, nil
}

// Sweep removes challenges older than maxAge.
func (s *BattleService) Sweep(maxAge time.Duration) []string {
	return s.store.SweepExpired(maxAge)
}

// ActiveChallenges returns the number of stored challenges.
func (s *BattleService) ActiveChallenges() int {
	return s.store.Count()
}

// RunSweeper sweeps expired challenges and checks the weekly reset once
// immediately and then every interval until ctx is done.
func (s *BattleService) RunSweeper(ctx context.Context, interval, maxAge time.Duration) {
	s.housekeep(maxAge)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Challenge sweeper stopped")
			return
		case <-ticker.C:
			s.housekeep(maxAge)
		}
	}
}

func (s *BattleService) housekeep(maxAge time.Duration) {
	if removed := s.Sweep(maxAge); len(removed) > 0 {
		log.Info().Int("count", len(removed)).Msg("Expired challenges removed")
	}
	if _, err := s.leaderboard.ResetWeeklyIfDue(); err != nil {
		log.Error().Err(err).Msg("Weekly reset check failed")
	}
}

// withChallenge runs fn on a fresh copy of a pending challenge while holding
// the challenge's key lock. A concurrent holder yields ErrBusy.
func (s *BattleService) withChallenge(id string, fn func(c *model.Challenge) error) error {
	err := s.locks.TryWithLock(func() error {
		c, ok := s.store.Get(id)
		if !ok || c.Status != model.StatusPending {
			return fmt.Errorf("%w: challenge %s", model.ErrNotFound, id)
		}
		return fn(c)
	}, id)
	if errors.Is(err, lock.ErrBusy) {
		return ErrBusy
	}
	return err
}

// remove deletes a challenge, telling a lost race apart from a failed save.
func (s *BattleService) remove(id string) error {
	if s.store.Remove(id) {
		return nil
	}
	if _, ok := s.store.Get(id); ok {
		return fmt.Errorf("%w: remove challenge %s", model.ErrPersistence, id)
	}
	return fmt.Errorf("%w: challenge %s", model.ErrNotFound, id)
}

func (s *BattleService) validateWager(amount int64) error {
	if amount < 0 || amount > s.maxWager {
		return fmt.Errorf("%w: wager must be between 0 and %d", model.ErrInvalidArgument, s.maxWager)
	}
	return nil
}

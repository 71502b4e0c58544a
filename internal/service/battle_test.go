package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"marbitz-battlebot/internal/game/battle"
	"marbitz-battlebot/internal/model"
	"marbitz-battlebot/internal/repository"
)

type battleFixture struct {
	svc         *BattleService
	store       *repository.ChallengeStore
	leaderboard *LeaderboardService
	gateway     *failingGateway
	clock       *testClock
}

func setupBattle(t *testing.T, pick int) *battleFixture {
	t.Helper()
	return newBattleFixture(pick)
}

// newBattleFixture wires a BattleService whose resolver always picks index pick.
func newBattleFixture(pick int) *battleFixture {
	gw := newTestGateway()
	clock := &testClock{now: monday.Add(24 * time.Hour)}
	store := repository.NewChallengeStore(gw, repository.WithClock(clock.Now))
	lb := NewLeaderboardService(gw, time.Monday, time.UTC, WithLeaderboardClock(clock.Now))
	resolver := battle.NewResolver(battle.WithIntn(func(n int) int { return pick % n }))
	return &battleFixture{
		svc:         NewBattleService(store, lb, resolver, 100),
		store:       store,
		leaderboard: lb,
		gateway:     gw,
		clock:       clock,
	}
}

func TestBattleService_Challenge(t *testing.T) {
	f := setupBattle(t, 0)

	c, err := f.svc.Challenge("@Alice", "bob", 10)
	require.NoError(t, err)
	assert.Equal(t, "Alice", c.Challenger)
	assert.Equal(t, int64(10), c.Wager)
	assert.Equal(t, model.StatusPending, c.Status)

	_, err = f.svc.Challenge("alice", "carol", 0)
	assert.ErrorIs(t, err, model.ErrConflict)

	_, err = f.svc.Challenge("dave", "DAVE", 0)
	assert.ErrorIs(t, err, model.ErrInvalidArgument)

	_, err = f.svc.Challenge("dave", "erin", 101)
	assert.ErrorIs(t, err, model.ErrInvalidArgument)

	assert.Equal(t, 1, f.svc.ActiveChallenges())
}

func TestBattleService_DefaultMaxWager(t *testing.T) {
	svc := NewBattleService(nil, nil, nil, 0)
	assert.Equal(t, DefaultMaxWager, svc.MaxWager())
}

func TestBattleService_SetWager(t *testing.T) {
	f := setupBattle(t, 0)

	c, err := f.svc.Challenge("alice", "bob", 0)
	require.NoError(t, err)

	updated, err := f.svc.SetWager(c.ID, "ALICE", 50)
	require.NoError(t, err)
	assert.Equal(t, int64(50), updated.Wager)

	stored, _ := f.store.Get(c.ID)
	assert.Equal(t, int64(50), stored.Wager)

	_, err = f.svc.SetWager(c.ID, "bob", 20)
	assert.ErrorIs(t, err, ErrNotChallenger)

	for _, amount := range []int64{-1, 101} {
		_, err = f.svc.SetWager(c.ID, "alice", amount)
		assert.ErrorIs(t, err, model.ErrInvalidArgument)
	}

	_, err = f.svc.SetWager("challenge_42", "alice", 10)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestBattleService_SetWagerSaveFailure(t *testing.T) {
	f := setupBattle(t, 0)

	c, err := f.svc.Challenge("alice", "bob", 5)
	require.NoError(t, err)

	f.gateway.FailOn(model.DocChallenges, true)
	_, err = f.svc.SetWager(c.ID, "alice", 50)
	assert.ErrorIs(t, err, model.ErrPersistence)

	stored, _ := f.store.Get(c.ID)
	assert.Equal(t, int64(5), stored.Wager)
}

func TestBattleService_RespondAccept(t *testing.T) {
	f := setupBattle(t, 0)

	c, err := f.svc.Challenge("alice", "bob", 30)
	require.NoError(t, err)

	out, err := f.svc.Respond(c.ID, "@Bob", true)
	require.NoError(t, err)
	assert.True(t, out.Accepted)
	assert.Equal(t, "alice", out.Winner)
	assert.Equal(t, "bob", out.Loser)
	assert.NotEmpty(t, out.Story.Setup)
	assert.NotEmpty(t, out.Story.Phases)

	_, ok := f.store.Get(c.ID)
	assert.False(t, ok, "challenge removed")

	overall, weekly := f.leaderboard.StatsFor("alice")
	assert.Equal(t, model.LeaderboardEntry{Wins: 1, Marbles: 30}, overall)
	assert.Equal(t, model.LeaderboardEntry{Wins: 1, Marbles: 30}, weekly)
	overall, _ = f.leaderboard.StatsFor("bob")
	assert.Equal(t, model.LeaderboardEntry{Losses: 1, Marbles: -30}, overall)

	_, err = f.svc.Respond(c.ID, "bob", true)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestBattleService_RespondDecline(t *testing.T) {
	f := setupBattle(t, 1)

	c, err := f.svc.Challenge("alice", "bob", 30)
	require.NoError(t, err)

	out, err := f.svc.Respond(c.ID, "bob", false)
	require.NoError(t, err)
	assert.False(t, out.Accepted)
	assert.Empty(t, out.Winner)

	_, ok := f.store.Get(c.ID)
	assert.False(t, ok)
	assert.Empty(t, f.leaderboard.Overall())
}

func TestBattleService_RespondOnlyChallenged(t *testing.T) {
	f := setupBattle(t, 0)

	c, err := f.svc.Challenge("alice", "bob", 0)
	require.NoError(t, err)

	for _, actor := range []string{"alice", "carol", ""} {
		_, err = f.svc.Respond(c.ID, actor, true)
		assert.ErrorIs(t, err, ErrNotChallenged, actor)
		assert.ErrorIs(t, err, model.ErrConflict, actor)
	}

	_, ok := f.store.Get(c.ID)
	assert.True(t, ok, "challenge untouched")
}

func TestBattleService_RespondRemoveFailure(t *testing.T) {
	f := setupBattle(t, 0)

	c, err := f.svc.Challenge("alice", "bob", 0)
	require.NoError(t, err)

	f.gateway.FailOn(model.DocChallenges, true)
	_, err = f.svc.Respond(c.ID, "bob", true)
	assert.ErrorIs(t, err, model.ErrPersistence)
	assert.Empty(t, f.leaderboard.Overall(), "nothing settled")
}

func TestBattleService_RespondSettleFailure(t *testing.T) {
	f := setupBattle(t, 1)

	c, err := f.svc.Challenge("alice", "bob", 5)
	require.NoError(t, err)

	f.gateway.FailOn(model.DocOverallLeaderboard, true)
	out, err := f.svc.Respond(c.ID, "bob", true)
	assert.ErrorIs(t, err, model.ErrPersistence)
	require.NotNil(t, out, "battle still happened")
	assert.Equal(t, "bob", out.Winner)
}

func TestBattleService_ConcurrentAcceptSettlesOnce(t *testing.T) {
	f := setupBattle(t, 0)

	c, err := f.svc.Challenge("alice", "bob", 10)
	require.NoError(t, err)

	var settled atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.Respond(c.ID, "bob", true); err == nil {
				settled.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), settled.Load())
	overall, _ := f.leaderboard.StatsFor("alice")
	assert.Equal(t, 1, overall.Wins)
}

func TestBattleService_Cancel(t *testing.T) {
	f := setupBattle(t, 0)

	_, err := f.svc.Cancel("alice")
	assert.ErrorIs(t, err, model.ErrNotFound)

	c, err := f.svc.Challenge("alice", "bob", 0)
	require.NoError(t, err)

	_, err = f.svc.Cancel("bob")
	assert.ErrorIs(t, err, model.ErrNotFound, "challenged side cannot cancel")

	cancelled, err := f.svc.Cancel("@ALICE")
	require.NoError(t, err)
	assert.Equal(t, c.ID, cancelled.ID)
	assert.Equal(t, 0, f.svc.ActiveChallenges())

	_, err = f.svc.Respond(c.ID, "bob", true)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestBattleService_Sweep(t *testing.T) {
	f := setupBattle(t, 0)

	old, err := f.svc.Challenge("alice", "bob", 0)
	require.NoError(t, err)
	f.clock.Set(f.clock.Now().Add(25 * time.Hour))
	fresh, err := f.svc.Challenge("carol", "dave", 0)
	require.NoError(t, err)

	assert.Equal(t, []string{old.ID}, f.svc.Sweep(24*time.Hour))
	_, err = f.svc.Get(fresh.ID)
	assert.NoError(t, err)

	_, err = f.svc.Respond(old.ID, "bob", true)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestBattleService_RunSweeperStopsOnCancel(t *testing.T) {
	f := setupBattle(t, 0)

	_, err := f.svc.Challenge("alice", "bob", 0)
	require.NoError(t, err)
	f.clock.Set(f.clock.Now().Add(48 * time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.svc.RunSweeper(ctx, time.Hour, 24*time.Hour)
		close(done)
	}()

	assert.Eventually(t, func() bool { return f.svc.ActiveChallenges() == 0 }, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

// TestOnlyChallengedCanRespondProperty checks that for any actor other than the
// challenged identity, Respond fails and the challenge survives.
func TestOnlyChallengedCanRespondProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		f := newBattleFixture(0)

		c, err := f.svc.Challenge("alice", "bob", 0)
		if err != nil {
			t.Fatalf("challenge: %v", err)
		}

		actor := rapid.StringMatching(`@?[a-zA-Z]{1,8}`).Draw(t, "actor")
		accept := rapid.Bool().Draw(t, "accept")

		_, err = f.svc.Respond(c.ID, actor, accept)
		if model.SameIdentity(actor, "bob") {
			if err != nil {
				t.Fatalf("challenged %q rejected: %v", actor, err)
			}
			return
		}
		if err == nil {
			t.Fatalf("actor %q was allowed to respond", actor)
		}
		if _, ok := f.store.Get(c.ID); !ok {
			t.Fatalf("challenge removed by %q", actor)
		}
	})
}

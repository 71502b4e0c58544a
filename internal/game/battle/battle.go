// Package battle narrates marble battles and picks their winners.
// Outcomes are a fair coin flip: no skill, history or wager weighting.
package battle

import (
	"math/rand/v2"

	"github.com/rs/zerolog/log"
)

// Story is the narrative for one battle.
type Story struct {
	Scenario string
	Setup    string
	Phases   []string
}

// Resolver narrates battles and picks winners. It holds no battle state.
type Resolver struct {
	registry *Registry
	intn     func(n int) int
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithIntn replaces the random source. intn must return a value in [0, n).
func WithIntn(intn func(n int) int) Option {
	return func(r *Resolver) {
		r.intn = intn
	}
}

// WithRegistry replaces the built-in scenarios.
func WithRegistry(reg *Registry) Option {
	return func(r *Resolver) {
		r.registry = reg
	}
}

// NewResolver creates a Resolver using the built-in scenarios.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		registry: DefaultRegistry(),
		intn:     rand.IntN,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Scenarios returns the registry narration draws from.
func (r *Resolver) Scenarios() *Registry {
	return r.registry
}

// Narrate picks a scenario uniformly at random and fills in both identities.
func (r *Resolver) Narrate(challenger, challenged string) Story {
	scenarios := r.registry.List()
	if len(scenarios) == 0 {
		return Story{Setup: "⚔️ @" + challenger + " and @" + challenged + " clash!"}
	}
	return scenarios[r.intn(len(scenarios))].Render(challenger, challenged)
}

// Resolve picks the winner uniformly between the two participants.
func (r *Resolver) Resolve(challenger, challenged string) (winner, loser string) {
	if r.intn(2) == 0 {
		winner, loser = challenger, challenged
	} else {
		winner, loser = challenged, challenger
	}

	log.Info().
		Str("winner", winner).
		Str("loser", loser).
		Msg("Battle resolved")
	return winner, loser
}

package battle

import (
	"fmt"
	"strings"
	"sync"
)

// Placeholders substituted into scenario templates.
const (
	ChallengerPlaceholder = "{challenger}"
	ChallengedPlaceholder = "{challenged}"
)

// Scenario is a themed battle template.
type Scenario struct {
	Name   string
	Setup  string
	Phases []string
}

// Render substitutes both identities into the template.
func (s Scenario) Render(challenger, challenged string) Story {
	r := strings.NewReplacer(
		ChallengerPlaceholder, "@"+challenger,
		ChallengedPlaceholder, "@"+challenged,
	)
	phases := make([]string, len(s.Phases))
	for i, p := range s.Phases {
		phases[i] = r.Replace(p)
	}
	return Story{Scenario: s.Name, Setup: r.Replace(s.Setup), Phases: phases}
}

// Registry holds the scenarios a battle may be narrated with.
// It is safe for concurrent use.
type Registry struct {
	scenarios []Scenario
	byName    map[string]int
	mu        sync.RWMutex
}

// NewRegistry creates an empty scenario registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]int)}
}

// DefaultRegistry returns a registry holding the built-in scenarios.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, s := range builtinScenarios {
		_ = r.Register(s)
	}
	return r
}

// Register adds a scenario. A scenario with the same name is replaced.
func (r *Registry) Register(s Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("scenario name cannot be empty")
	}
	if s.Setup == "" {
		return fmt.Errorf("scenario %q has no setup line", s.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s.Phases = append([]string(nil), s.Phases...)
	if i, ok := r.byName[s.Name]; ok {
		r.scenarios[i] = s
		return nil
	}
	r.byName[s.Name] = len(r.scenarios)
	r.scenarios = append(r.scenarios, s)
	return nil
}

// Get retrieves a scenario by name.
func (r *Registry) Get(name string) (Scenario, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.byName[name]
	if !ok {
		return Scenario{}, false
	}
	return r.scenarios[i], true
}

// List returns the scenarios in registration order.
func (r *Registry) List() []Scenario {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Scenario(nil), r.scenarios...)
}

// Count returns the number of registered scenarios.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.scenarios)
}

var builtinScenarios = []Scenario{
	{
		Name:  "arena",
		Setup: "🏛️ The arena falls silent as {challenger} and {challenged} face off...",
		Phases: []string{
			"⚔️ {challenger} charges forward with a fierce battle cry!",
			"🛡️ {challenged} deflects the attack and counters!",
			"💥 The clash echoes through the marble halls!",
		},
	},
	{
		Name:  "storm",
		Setup: "🌩️ Lightning crackles as {challenger} challenges {challenged} to combat!",
		Phases: []string{
			"🔥 {challenger} unleashes a flurry of marble strikes!",
			"❄️ {challenged} responds with an icy defensive maneuver!",
			"⚡ The elements collide in spectacular fashion!",
		},
	},
	{
		Name:  "pirates",
		Setup: "🏴‍☠️ The battleground is set as {challenger} draws their weapon against {challenged}!",
		Phases: []string{
			"🗡️ {challenger} spins with deadly precision!",
			"🛡️ {challenged} parries and launches a counterattack!",
			"💫 Sparks fly as marble meets marble!",
		},
	},
	{
		Name:  "volcano",
		Setup: "🌋 The volcanic arena rumbles as {challenger} and {challenged} take their positions!",
		Phases: []string{
			"🔥 {challenger} launches a blazing offensive maneuver!",
			"💨 {challenged} creates a whirlwind defense, scattering the attack!",
			"☄️ Molten marbles fly through the air as the battle intensifies!",
		},
	},
	{
		Name:  "coast",
		Setup: "🌊 Waves crash against the coastal arena as {challenger} challenges {challenged}!",
		Phases: []string{
			"🌪️ {challenger} summons a swirling vortex of marbles!",
			"🧊 {challenged} creates a frozen barrier, stopping the assault!",
			"💦 The tide of battle shifts back and forth between the combatants!",
		},
	},
}

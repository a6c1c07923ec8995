// Package strategy defines the Strategy interface for signal-generating
// trading strategies, a Registry of strategy constructors, and the
// single-instrument Simulator that replays bars through a strategy.
package strategy

import (
	"fmt"
	"sort"

	"tickerlab/internal/domain"
)

// Signal is a strategy's instruction for one bar.
type Signal int

const (
	Hold Signal = iota
	Enter
	Exit
)

func (s Signal) String() string {
	switch s {
	case Enter:
		return "enter"
	case Exit:
		return "exit"
	default:
		return "hold"
	}
}

// Strategy is the interface that all trading strategies must implement.
type Strategy interface {
	// Name returns the unique identifier for this strategy.
	Name() string

	// Params returns a canonical rendering of the strategy parameters, as
	// persisted with each run.
	Params() string

	// Signals returns exactly one signal per bar.
	Signals(bars []domain.Bar) []Signal
}

// Validator is implemented by strategies whose parameters can be invalid.
type Validator interface {
	Validate() error
}

// Warmer is implemented by strategies that need a minimum number of bars
// before they can emit anything but Hold.
type Warmer interface {
	Warmup() int
}

// Factory builds a strategy from named integer parameters.
type Factory func(params map[string]int) (Strategy, error)

// Registry holds a named collection of strategy factories for lookup and
// enumeration.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates an empty strategy Registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a factory under name, replacing any previous entry.
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// Get retrieves a factory by name. The second return value indicates whether
// the strategy was found.
func (r *Registry) Get(name string) (Factory, bool) {
	f, ok := r.factories[name]
	return f, ok
}

// New builds the named strategy. Unknown names are a validation error.
func (r *Registry) New(name string, params map[string]int) (Strategy, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, &domain.ValidationError{
			Field:  "strategy",
			Reason: fmt.Sprintf("unknown strategy %q (have %v)", name, r.List()),
		}
	}
	return f(params)
}

// List returns a sorted slice of all registered strategy names.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

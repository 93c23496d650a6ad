package scoring

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownStrategy = errors.New("unknown strategy")
	ErrInvalidWeight   = errors.New("strategy weight must be within [0, 1]")
	ErrNoStrategies    = errors.New("strategy book has no strategies")
)

// Strategy is a named weighting profile.
type Strategy struct {
	Name    string  `json:"name" yaml:"name" koanf:"name"`
	Weights Weights `json:"weights" yaml:"weights" koanf:"weights"`
}

// Book is the validated, read-only set of strategies and rating thresholds
// a pipeline run is evaluated against.
type Book struct {
	names      []string
	strategies map[string]Weights
	thresholds Thresholds
}

// NewBook validates and copies its inputs. Strategy names keep the order given.
func NewBook(thresholds Thresholds, strategies ...Strategy) (*Book, error) {
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}
	if len(strategies) == 0 {
		return nil, ErrNoStrategies
	}

	b := &Book{
		strategies: make(map[string]Weights, len(strategies)),
		thresholds: thresholds,
	}
	for _, s := range strategies {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			return nil, errors.New("strategy name is required")
		}
		if _, dup := b.strategies[name]; dup {
			return nil, fmt.Errorf("duplicate strategy %q", name)
		}
		for factor, w := range s.Weights {
			if !finite(w) || w < 0 || w > 1 {
				return nil, fmt.Errorf("%w: %s.%s=%v", ErrInvalidWeight, name, factor, w)
			}
		}
		b.names = append(b.names, name)
		b.strategies[name] = s.Weights.Clone()
	}
	return b, nil
}

func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: "Balanced", Weights: Weights{"value": 0.20, "quality": 0.20, "growth": 0.20, "momentum": 0.20, "risk": 0.20, "sentiment": 0.00}},
		{Name: "Growth", Weights: Weights{"value": 0.10, "quality": 0.20, "growth": 0.40, "momentum": 0.20, "risk": 0.10, "sentiment": 0.00}},
		{Name: "Value", Weights: Weights{"value": 0.40, "quality": 0.25, "growth": 0.10, "momentum": 0.10, "risk": 0.15, "sentiment": 0.00}},
	}
}

// DefaultBook returns the built-in Balanced, Growth and Value profiles.
func DefaultBook() *Book {
	b, err := NewBook(DefaultThresholds(), DefaultStrategies()...)
	if err != nil {
		panic(err)
	}
	return b
}

// Lookup resolves a strategy by name, ignoring case, and returns its
// canonical name with a copy of its weights.
func (b *Book) Lookup(name string) (string, Weights, error) {
	want := strings.TrimSpace(name)
	if w, ok := b.strategies[want]; ok {
		return want, w.Clone(), nil
	}
	for _, n := range b.names {
		if strings.EqualFold(n, want) {
			return n, b.strategies[n].Clone(), nil
		}
	}
	return "", nil, fmt.Errorf("%w %q (known: %s)", ErrUnknownStrategy, name, strings.Join(b.names, ", "))
}

func (b *Book) Names() []string {
	out := make([]string, len(b.names))
	copy(out, b.names)
	return out
}

func (b *Book) Thresholds() Thresholds {
	return b.thresholds
}

func (b *Book) Strategies() []Strategy {
	out := make([]Strategy, 0, len(b.names))
	for _, n := range b.names {
		out = append(out, Strategy{Name: n, Weights: b.strategies[n].Clone()})
	}
	return out
}

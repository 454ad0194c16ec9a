// Package fallback runs an ordered list of named strategies until one of
// them produces a value.
package fallback

import (
	"context"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// Strategy is one step of a fallback chain. Attempt returns None when the
// strategy has nothing to offer, so the next one should run.
type Strategy[T any] interface {
	Name() string
	Attempt(ctx context.Context) fn.Option[T]
}

// Func adapts a closure to Strategy.
type Func[T any] struct {
	Label string
	Fn    func(ctx context.Context) fn.Option[T]
}

func (f Func[T]) Name() string { return f.Label }

func (f Func[T]) Attempt(ctx context.Context) fn.Option[T] { return f.Fn(ctx) }

// Named is a convenience constructor for Func.
func Named[T any](label string, f func(ctx context.Context) fn.Option[T]) Strategy[T] {
	return Func[T]{Label: label, Fn: f}
}

// Chain tries strategies in order.
type Chain[T any] []Strategy[T]

// Run returns the first Some and the name of the strategy that produced it.
// When every strategy declines it returns None and an empty name. A
// cancelled context stops the chain between strategies.
func (c Chain[T]) Run(ctx context.Context) (fn.Option[T], string) {
	for _, s := range c {
		if ctx.Err() != nil {
			break
		}
		if out := s.Attempt(ctx); out.IsSome() {
			return out, s.Name()
		}
	}
	return fn.None[T](), ""
}

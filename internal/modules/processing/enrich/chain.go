package enrich

import (
	"context"

	"go.uber.org/zap"
)

// Provider is one step of a fallback chain.
type Provider[T any] struct {
	Name  string
	Fetch func(ctx context.Context, query string) (T, error)
}

// Chain tries its providers in order and settles on the first non-empty value. When every
// provider fails it returns the placeholder. There is no retry or backoff.
type Chain[T any] struct {
	providers   []Provider[T]
	empty       func(T) bool
	placeholder func(query string) T
	logger      *zap.Logger
}

// PlaceholderSource names the terminal step in Resolve's second return value.
const PlaceholderSource = "placeholder"

func NewChain[T any](empty func(T) bool, placeholder func(query string) T, logger *zap.Logger, providers ...Provider[T]) *Chain[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	kept := make([]Provider[T], 0, len(providers))
	for _, p := range providers {
		if p.Fetch != nil {
			kept = append(kept, p)
		}
	}
	return &Chain[T]{providers: kept, empty: empty, placeholder: placeholder, logger: logger}
}

// Len reports how many real providers the chain holds.
func (c *Chain[T]) Len() int { return len(c.providers) }

// Resolve returns the first usable value and the name of the provider that produced it.
func (c *Chain[T]) Resolve(ctx context.Context, query string) (T, string) {
	for _, p := range c.providers {
		if ctx.Err() != nil {
			break
		}
		v, err := p.Fetch(ctx, query)
		if err != nil {
			c.logger.Debug("enrichment provider failed", zap.String("provider", p.Name), zap.Error(err))
			continue
		}
		if c.empty != nil && c.empty(v) {
			continue
		}
		return v, p.Name
	}
	return c.placeholder(query), PlaceholderSource
}

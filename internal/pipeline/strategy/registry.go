package strategy

import (
	"fmt"

	"github.com/elskow/corona-deployments/internal/pipeline/types"
)

// Strategy is anything selected by a kind tag.
type Strategy[K ~string] interface {
	Kind() K
}

// Registry is an immutable, ordered set of strategies. It is read-only after
// construction and safe for concurrent use.
type Registry[K ~string, S Strategy[K]] struct {
	strategies []S
}

// NewRegistry rejects duplicate kinds.
func NewRegistry[K ~string, S Strategy[K]](strategies ...S) (*Registry[K, S], error) {
	seen := make(map[K]struct{}, len(strategies))
	for _, s := range strategies {
		k := s.Kind()
		if _, dup := seen[k]; dup {
			return nil, fmt.Errorf("duplicate strategy for kind %q", k)
		}
		seen[k] = struct{}{}
	}

	return &Registry[K, S]{
		strategies: append([]S(nil), strategies...),
	}, nil
}

// Resolve returns the first strategy registered for kind, or an
// *types.UnknownStrategyError.
func (r *Registry[K, S]) Resolve(kind K) (S, error) {
	for _, s := range r.strategies {
		if s.Kind() == kind {
			return s, nil
		}
	}
	var zero S
	return zero, &types.UnknownStrategyError{Kind: string(kind)}
}

func (r *Registry[K, S]) Kinds() []K {
	kinds := make([]K, 0, len(r.strategies))
	for _, s := range r.strategies {
		kinds = append(kinds, s.Kind())
	}
	return kinds
}

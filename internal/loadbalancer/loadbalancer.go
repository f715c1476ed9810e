package loadbalancer

import (
	"errors"
	"fmt"

	"github.com/angeloszaimis/tcp-load-balancer/internal/backend"
	"github.com/angeloszaimis/tcp-load-balancer/internal/strategy"
)

var ErrNoBackends = errors.New("no backends configured")

// LoadBalancer owns the backend list and the strategy that walks it.
// The list is fixed at construction.
type LoadBalancer struct {
	strategy strategy.Strategy
	backends []*backend.Backend
}

func NewLoadBalancer(strategy strategy.Strategy, backends []*backend.Backend) (*LoadBalancer, error) {
	if len(backends) == 0 {
		return nil, ErrNoBackends
	}

	owned := make([]*backend.Backend, len(backends))
	copy(owned, backends)

	return &LoadBalancer{
		strategy: strategy,
		backends: owned,
	}, nil
}

// Next selects the backend for the next admitted connection.
func (lb *LoadBalancer) Next() (*backend.Backend, error) {
	chosen := lb.strategy.SelectBackend(lb.backends)
	if chosen == nil {
		return nil, fmt.Errorf("strategy returned nil backend")
	}
	return chosen, nil
}

// Backends returns a copy of the configured backend list.
func (lb *LoadBalancer) Backends() []*backend.Backend {
	out := make([]*backend.Backend, len(lb.backends))
	copy(out, lb.backends)
	return out
}

func (lb *LoadBalancer) LoadBalancerStrategy() strategy.Strategy {
	return lb.strategy
}

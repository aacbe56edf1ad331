package ssostate

import (
	"sync"
	"time"

	"github.com/pkg/errors"
)

// stateTTL bounds how long an abandoned flow lingers.
const stateTTL = 10 * time.Minute

// InMemoryRepo is a thread-safe in-memory implementation of Repo. Flows are
// short-lived, so expired entries are swept lazily on access.
type InMemoryRepo struct {
	mu    sync.RWMutex
	flows map[string]*FlowState
}

func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{flows: make(map[string]*FlowState)}
}

func (r *InMemoryRepo) Upsert(state string, flow *FlowState) error {
	if state == "" {
		return errors.New("[InMemoryRepo.Upsert] state cannot be empty")
	}
	if flow == nil {
		return errors.New("[InMemoryRepo.Upsert] flow cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked()
	copied := *flow
	r.flows[state] = &copied
	return nil
}

func (r *InMemoryRepo) Get(state string) (*FlowState, error) {
	if state == "" {
		return nil, errors.New("[InMemoryRepo.Get] state cannot be empty")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	flow, exists := r.flows[state]
	if !exists || time.Since(flow.CreatedAt) > stateTTL {
		return nil, errors.New("[InMemoryRepo.Get] state not found")
	}
	copied := *flow
	return &copied, nil
}

func (r *InMemoryRepo) Delete(state string) error {
	if state == "" {
		return errors.New("[InMemoryRepo.Delete] state cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.flows, state)
	return nil
}

func (r *InMemoryRepo) sweepLocked() {
	for state, flow := range r.flows {
		if time.Since(flow.CreatedAt) > stateTTL {
			delete(r.flows, state)
		}
	}
}

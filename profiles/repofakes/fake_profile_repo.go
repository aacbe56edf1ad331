package repofakes

import (
	"context"
	"sync"

	"github.com/google/uuid"

	apperrors "github.com/fixdesk/fixdesk/internal/errors"
	"github.com/fixdesk/fixdesk/internal/utils"
	"github.com/fixdesk/fixdesk/profiles"
)

var _ profiles.Repo = (*FakeProfileRepo)(nil)

type FakeProfileRepo struct {
	lock     sync.RWMutex
	byUserID map[string]*profiles.Profile

	// GetErrs scripts failures: each GetByUserID consumes one error.
	GetErrs []error
	// GetCalls counts GetByUserID invocations, for overlap assertions.
	GetCalls int
	// Gate, when non-nil, blocks each GetByUserID until a value is sent,
	// letting tests hold a fetch in flight.
	Gate chan struct{}
	// InFlight counts concurrently executing GetByUserID calls.
	InFlight int
	// MaxInFlight records the highest concurrency observed.
	MaxInFlight int
}

func NewFakeProfileRepo() *FakeProfileRepo {
	return &FakeProfileRepo{byUserID: make(map[string]*profiles.Profile)}
}

// Add stores a profile, assigning an ID when missing.
func (r *FakeProfileRepo) Add(profile *profiles.Profile) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if profile.ID == "" {
		profile.ID = uuid.New().String()
	}
	r.byUserID[profile.UserID] = profile
}

func (r *FakeProfileRepo) GetByUserID(_ context.Context, _, userID string) (*profiles.Profile, error) {
	r.lock.Lock()
	r.GetCalls++
	r.InFlight++
	if r.InFlight > r.MaxInFlight {
		r.MaxInFlight = r.InFlight
	}
	var scripted error
	if len(r.GetErrs) > 0 {
		scripted = r.GetErrs[0]
		r.GetErrs = r.GetErrs[1:]
	}
	profile, ok := r.byUserID[userID]
	gate := r.Gate
	r.lock.Unlock()

	if gate != nil {
		<-gate
	}

	r.lock.Lock()
	r.InFlight--
	r.lock.Unlock()

	if scripted != nil {
		return nil, scripted
	}
	if !ok {
		return nil, apperrors.ErrProfileNotFound
	}
	return utils.Ptr(*profile), nil
}

// Stats returns the call count and the highest concurrency observed.
func (r *FakeProfileRepo) Stats() (calls, maxInFlight int) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.GetCalls, r.MaxInFlight
}

// CurrentInFlight returns the number of GetByUserID calls executing now.
func (r *FakeProfileRepo) CurrentInFlight() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.InFlight
}

func (r *FakeProfileRepo) Update(_ context.Context, _ string, profile *profiles.Profile) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if _, ok := r.byUserID[profile.UserID]; !ok {
		return apperrors.ErrProfileNotFound
	}
	copied := *profile
	r.byUserID[profile.UserID] = &copied
	return nil
}

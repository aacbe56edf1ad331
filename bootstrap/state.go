package bootstrap

import (
	"sync"

	"github.com/fixdesk/fixdesk/profiles"
	"github.com/fixdesk/fixdesk/sessions"
	"github.com/fixdesk/fixdesk/tenants"
)

// State is one atomic snapshot of the (Session, Profile, Tenant) triple.
// Version increases monotonically on every publish so consumers can detect
// freshness changes without comparing object identity.
type State struct {
	Session *sessions.Session
	Profile *profiles.Profile
	Tenant  *tenants.Tenant

	// Loading is true from construction until Initialize completes.
	Loading bool

	// Version is the monotonic publish counter.
	Version uint64
}

// Authenticated reports whether the snapshot carries a usable session and
// profile.
func (s State) Authenticated() bool {
	return s.Session != nil && s.Profile != nil
}

// store is the single-writer state container. Only the Controller writes;
// gates and views read snapshots or subscribe to change notifications.
type store struct {
	mu     sync.RWMutex
	state  State
	subs   map[int]chan State
	nextID int
}

func newStore() *store {
	return &store{
		state: State{Loading: true},
		subs:  make(map[int]chan State),
	}
}

// snapshot returns the current state as one consistent copy.
func (st *store) snapshot() State {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.state
}

// publish applies mutate under the write lock, bumps the version and
// notifies subscribers. Notification is latest-wins: a slow subscriber's
// stale pending snapshot is replaced, never queued behind.
func (st *store) publish(mutate func(*State)) State {
	state, _ := st.publishIf(nil, mutate)
	return state
}

// publishIf applies mutate only while cond holds, evaluated under the write
// lock so a concurrent generation bump cannot interleave with the write.
func (st *store) publishIf(cond func() bool, mutate func(*State)) (State, bool) {
	st.mu.Lock()
	if cond != nil && !cond() {
		state := st.state
		st.mu.Unlock()
		return state, false
	}
	mutate(&st.state)
	st.state.Version++
	published := st.state
	subs := make([]chan State, 0, len(st.subs))
	for _, ch := range st.subs {
		subs = append(subs, ch)
	}
	st.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- published:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- published:
			default:
			}
		}
	}
	return published, true
}

// subscribe registers a change listener. The returned channel holds at most
// the most recent snapshot.
func (st *store) subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)
	st.mu.Lock()
	id := st.nextID
	st.nextID++
	st.subs[id] = ch
	st.mu.Unlock()

	return ch, func() {
		st.mu.Lock()
		delete(st.subs, id)
		st.mu.Unlock()
	}
}

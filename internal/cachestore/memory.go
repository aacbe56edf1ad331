package cachestore

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	value     string
	expiresAt time.Time
}

// Memory is the in-process Store used when no Redis URL is configured.
type Memory struct {
	lock    sync.Mutex
	entries map[string]entry
	nowTime func() time.Time
}

var _ Store = (*Memory)(nil)

// MemoryOption modifies a Memory store at construction time.
type MemoryOption func(*Memory)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) MemoryOption {
	return func(m *Memory) { m.nowTime = nowFunc }
}

func NewMemory(options ...MemoryOption) *Memory {
	m := &Memory{
		entries: make(map[string]entry),
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return "", false, nil
	}
	if m.nowTime().After(e.expiresAt) {
		delete(m.entries, key)
		return "", false, nil
	}
	return e.value, true, nil
}

func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.entries[key] = entry{value: value, expiresAt: m.nowTime().Add(ttl)}
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	delete(m.entries, key)
	return nil
}

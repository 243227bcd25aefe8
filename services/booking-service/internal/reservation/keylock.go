package reservation

import (
	"context"
	"sync"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
)

// Locker provides mutual exclusion per key. Lock blocks until the key is held
// or ctx is done; the returned release func is safe to call more than once.
type Locker interface {
	Lock(ctx context.Context, key string) (release func(), err error)
}

// ScopeKey names the serialization scope of one staff day.
func ScopeKey(staffID string, date model.Date) string {
	return "reservation:" + staffID + ":" + date.String()
}

// KeyedMutex is an in-process Locker. Entries are reference counted and
// removed once no goroutine holds or waits for the key.
type KeyedMutex struct {
	mu      sync.Mutex
	entries map[string]*keyEntry
}

type keyEntry struct {
	sem  chan struct{}
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{entries: map[string]*keyEntry{}}
}

func (m *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	e := m.entries[key]
	if e == nil {
		e = &keyEntry{sem: make(chan struct{}, 1)}
		m.entries[key] = e
	}
	e.refs++
	m.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		m.unref(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			m.unref(key, e)
		})
	}, nil
}

func (m *KeyedMutex) unref(key string, e *keyEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(m.entries, key)
	}
}

// Len is the number of keys currently held or waited on.
func (m *KeyedMutex) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

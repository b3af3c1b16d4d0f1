package kvstore

import (
	"context"
	"path"
	"sort"
	"sync"
	"time"
)

type memEntry struct {
	val     []byte
	expires time.Time
}

// MemoryStore in-process бэкенд: без REDIS_ADDR и в тестах.
type MemoryStore struct {
	ns  string
	now func() time.Time

	mu   sync.Mutex
	data map[string]memEntry
	subs map[string]map[chan []byte]struct{}
}

func NewMemoryStore(ns string) *MemoryStore {
	return NewMemoryStoreWithClock(ns, time.Now)
}

func NewMemoryStoreWithClock(ns string, now func() time.Time) *MemoryStore {
	return &MemoryStore{
		ns:   ns,
		now:  now,
		data: make(map[string]memEntry),
		subs: make(map[string]map[chan []byte]struct{}),
	}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	k := prefixed(m.ns, key)
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.data[k]
	if !ok {
		return nil, ErrNotFound
	}
	if m.expired(e) {
		delete(m.data, k)
		return nil, ErrNotFound
	}
	out := make([]byte, len(e.val))
	copy(out, e.val)
	return out, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := memEntry{val: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.mu.Lock()
	m.data[prefixed(m.ns, key)] = e
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Del(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.data, prefixed(m.ns, key))
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) MGet(_ context.Context, pattern string) ([][]byte, error) {
	pat := prefixed(m.ns, pattern)
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0)
	for k, e := range m.data {
		if m.expired(e) {
			continue
		}
		if ok, _ := path.Match(pat, k); ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := make([][]byte, 0, len(keys))
	for _, k := range keys {
		out = append(out, append([]byte(nil), m.data[k].val...))
	}
	return out, nil
}

func (m *MemoryStore) Publish(_ context.Context, channel string, msg []byte) error {
	ch := prefixed(m.ns, channel)
	m.mu.Lock()
	defer m.mu.Unlock()
	for sub := range m.subs[ch] {
		select {
		case sub <- append([]byte(nil), msg...):
		default:
			// медленный подписчик теряет сообщение, как и в redis pub/sub
		}
	}
	return nil
}

func (m *MemoryStore) Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error) {
	ch := prefixed(m.ns, channel)
	sub := make(chan []byte, 16)

	m.mu.Lock()
	if m.subs[ch] == nil {
		m.subs[ch] = make(map[chan []byte]struct{})
	}
	m.subs[ch][sub] = struct{}{}
	m.mu.Unlock()

	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs[ch], sub)
			m.mu.Unlock()
			close(done)
			close(sub)
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()
	return sub, cancel, nil
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) expired(e memEntry) bool {
	return !e.expires.IsZero() && !m.now().Before(e.expires)
}

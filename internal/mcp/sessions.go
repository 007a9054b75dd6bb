package mcp

import (
	"container/list"
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-redis/redis/v8"
)

const (
	SessionBackendMemory = "memory"
	SessionBackendRedis  = "redis"

	sessionKeyPrefix = "mcp:session:"
)

// Session is the bookkeeping kept for an initialized client.
type Session struct {
	ID            string    `json:"id"`
	ClientName    string    `json:"client_name,omitempty"`
	ClientVersion string    `json:"client_version,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// SessionStore keeps MCP sessions. Sessions expire after the store's TTL.
type SessionStore interface {
	Create(ctx context.Context, s Session) error
	Exists(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
	Count(ctx context.Context) (int, error)
}

// MemorySessionStore keeps sessions in process. When full, the oldest
// session is evicted to make room.
type MemorySessionStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	max      int
	order    *list.List
	sessions map[string]*list.Element
	now      func() time.Time
}

func NewMemorySessionStore(ttl time.Duration, maxSessions int) *MemorySessionStore {
	return &MemorySessionStore{
		ttl:      ttl,
		max:      maxSessions,
		order:    list.New(),
		sessions: make(map[string]*list.Element),
		now:      time.Now,
	}
}

func (m *MemorySessionStore) Create(_ context.Context, s Session) error {
	if s.ID == "" {
		return errors.New("session id is empty")
	}
	// The store's own clock keeps the list ordered by creation time.
	s.CreatedAt = m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if el, ok := m.sessions[s.ID]; ok {
		m.order.Remove(el)
		delete(m.sessions, s.ID)
	}
	m.purgeExpired()
	for m.max > 0 && m.order.Len() >= m.max {
		m.removeElement(m.order.Front())
	}
	m.sessions[s.ID] = m.order.PushBack(s)
	return nil
}

func (m *MemorySessionStore) Exists(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.sessions[id]
	if !ok {
		return false, nil
	}
	if m.expired(el.Value.(Session)) {
		m.removeElement(el)
		return false, nil
	}
	return true, nil
}

func (m *MemorySessionStore) Delete(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.sessions[id]
	if !ok {
		return false, nil
	}
	expired := m.expired(el.Value.(Session))
	m.removeElement(el)
	return !expired, nil
}

func (m *MemorySessionStore) Count(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.purgeExpired()
	return m.order.Len(), nil
}

// purgeExpired relies on the list being ordered by creation time.
func (m *MemorySessionStore) purgeExpired() {
	for el := m.order.Front(); el != nil; el = m.order.Front() {
		if !m.expired(el.Value.(Session)) {
			return
		}
		m.removeElement(el)
	}
}

func (m *MemorySessionStore) expired(s Session) bool {
	return m.ttl > 0 && m.now().Sub(s.CreatedAt) >= m.ttl
}

func (m *MemorySessionStore) removeElement(el *list.Element) {
	s := m.order.Remove(el).(Session)
	delete(m.sessions, s.ID)
}

// RedisSessionStore keeps sessions as Redis keys that expire after the TTL.
type RedisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSessionStore(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{client: client, ttl: ttl}
}

func (r *RedisSessionStore) Create(ctx context.Context, s Session) error {
	if s.ID == "" {
		return errors.New("session id is empty")
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	data, err := json.Marshal(s)
	if err != nil {
		return errors.Wrap(err, "encode session")
	}
	return errors.Wrap(r.client.Set(ctx, sessionKeyPrefix+s.ID, data, r.ttl).Err(), "store session")
}

func (r *RedisSessionStore) Exists(ctx context.Context, id string) (bool, error) {
	n, err := r.client.Exists(ctx, sessionKeyPrefix+id).Result()
	if err != nil {
		return false, errors.Wrap(err, "check session")
	}
	return n > 0, nil
}

func (r *RedisSessionStore) Delete(ctx context.Context, id string) (bool, error) {
	n, err := r.client.Del(ctx, sessionKeyPrefix+id).Result()
	if err != nil {
		return false, errors.Wrap(err, "delete session")
	}
	return n > 0, nil
}

func (r *RedisSessionStore) Count(ctx context.Context) (int, error) {
	count := 0
	iter := r.client.Scan(ctx, 0, sessionKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return 0, errors.Wrap(err, "count sessions")
	}
	return count, nil
}

// NewSessionStore picks the backend named by backend. Redis is used only when
// a client is available.
func NewSessionStore(backend string, client *redis.Client, ttl time.Duration, maxSessions int) (SessionStore, error) {
	switch backend {
	case SessionBackendRedis:
		if client == nil {
			return nil, errors.New("redis session backend requires a redis connection")
		}
		return NewRedisSessionStore(client, ttl), nil
	case SessionBackendMemory, "":
		return NewMemorySessionStore(ttl, maxSessions), nil
	default:
		return nil, errors.Newf("unknown session backend %q", backend)
	}
}

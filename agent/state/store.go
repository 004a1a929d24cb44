package state

import (
	"context"
	"errors"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrNilSession      = errors.New("session is nil")
	ErrInvalidSession  = errors.New("session id is empty")
)

const (
	defaultSessionTTL      = 24 * time.Hour
	defaultCleanupInterval = time.Hour
)

// Store is the persistence contract the dialogue controller is written
// against. Implementations hand out independent copies: mutating a loaded
// session must not be observable until Save.
type Store interface {
	Load(ctx context.Context, sessionID string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, sessionID string) error
}

// MemoryOption customizes MemoryStore.
type MemoryOption func(*memoryConfig)

type memoryConfig struct {
	ttl     time.Duration
	cleanup time.Duration
}

func WithTTL(ttl time.Duration) MemoryOption {
	return func(c *memoryConfig) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func WithCleanupInterval(interval time.Duration) MemoryOption {
	return func(c *memoryConfig) {
		if interval > 0 {
			c.cleanup = interval
		}
	}
}

// MemoryStore keeps sessions in process memory with a sliding idle TTL.
type MemoryStore struct {
	cache *gocache.Cache
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	cfg := memoryConfig{
		ttl:     defaultSessionTTL,
		cleanup: defaultCleanupInterval,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &MemoryStore{
		cache: gocache.New(cfg.ttl, cfg.cleanup),
	}
}

func (m *MemoryStore) Load(ctx context.Context, sessionID string) (*Session, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrInvalidSession
	}
	v, ok := m.cache.Get(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	s, ok := v.(*Session)
	if !ok {
		return nil, ErrSessionNotFound
	}
	// Slide the idle TTL on access.
	m.cache.SetDefault(sessionID, s)
	return s.Clone(), nil
}

func (m *MemoryStore) Save(ctx context.Context, s *Session) error {
	if s == nil {
		return ErrNilSession
	}
	if strings.TrimSpace(s.ID) == "" {
		return ErrInvalidSession
	}
	if err := s.Validate(); err != nil {
		return err
	}
	m.cache.SetDefault(s.ID, s.Clone())
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return ErrInvalidSession
	}
	m.cache.Delete(sessionID)
	return nil
}

// Count returns the number of live sessions, for health reporting.
func (m *MemoryStore) Count() int {
	return m.cache.ItemCount()
}

package repository

import (
	"container/list"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/desk-bridge/internal/domain"
)

// ErrAssociationNotFound is returned when no ticket is recorded for a message key.
var ErrAssociationNotFound = errors.New("message association not found")

// AssociationRepository remembers which ticket a chat message created.
type AssociationRepository interface {
	Save(ctx context.Context, assoc domain.MessageTicket) error
	Get(ctx context.Context, messageKey string) (*domain.MessageTicket, error)
}

type memoryEntry struct {
	assoc     domain.MessageTicket
	expiresAt time.Time
}

type memoryAssociationRepository struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	order    *list.List
	entries  map[string]*list.Element
	now      func() time.Time
}

// NewMemoryAssociationRepository keeps at most capacity associations for ttl each.
// Expired entries are dropped lazily; the least recently saved entry is evicted when full.
func NewMemoryAssociationRepository(capacity int, ttl time.Duration) AssociationRepository {
	return newMemoryAssociationRepository(capacity, ttl, time.Now)
}

func newMemoryAssociationRepository(capacity int, ttl time.Duration, now func() time.Time) *memoryAssociationRepository {
	if capacity < 1 {
		capacity = 1
	}
	return &memoryAssociationRepository{
		capacity: capacity,
		ttl:      ttl,
		order:    list.New(),
		entries:  make(map[string]*list.Element),
		now:      now,
	}
}

func (r *memoryAssociationRepository) Save(_ context.Context, assoc domain.MessageTicket) error {
	if assoc.MessageKey == "" {
		return errors.New("message key is required")
	}
	if assoc.CreatedAt.IsZero() {
		assoc.CreatedAt = r.now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entry := &memoryEntry{assoc: assoc, expiresAt: r.now().Add(r.ttl)}
	if el, ok := r.entries[assoc.MessageKey]; ok {
		el.Value = entry
		r.order.MoveToFront(el)
		return nil
	}

	r.entries[assoc.MessageKey] = r.order.PushFront(entry)
	for r.order.Len() > r.capacity {
		r.removeElement(r.order.Back())
	}
	return nil
}

func (r *memoryAssociationRepository) Get(_ context.Context, messageKey string) (*domain.MessageTicket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	el, ok := r.entries[messageKey]
	if !ok {
		return nil, ErrAssociationNotFound
	}
	entry := el.Value.(*memoryEntry)
	if !r.now().Before(entry.expiresAt) {
		r.removeElement(el)
		return nil, ErrAssociationNotFound
	}
	assoc := entry.assoc
	return &assoc, nil
}

func (r *memoryAssociationRepository) removeElement(el *list.Element) {
	entry := r.order.Remove(el).(*memoryEntry)
	delete(r.entries, entry.assoc.MessageKey)
}

type redisAssociationRepository struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisAssociationRepository stores associations as JSON values that expire after ttl.
func NewRedisAssociationRepository(client *redis.Client, prefix string, ttl time.Duration) AssociationRepository {
	return &redisAssociationRepository{client: client, prefix: prefix, ttl: ttl}
}

func (r *redisAssociationRepository) Save(ctx context.Context, assoc domain.MessageTicket) error {
	if assoc.MessageKey == "" {
		return errors.New("message key is required")
	}
	if assoc.CreatedAt.IsZero() {
		assoc.CreatedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(assoc)
	if err != nil {
		return fmt.Errorf("marshal association: %w", err)
	}
	return r.client.Set(ctx, r.prefix+assoc.MessageKey, payload, r.ttl).Err()
}

func (r *redisAssociationRepository) Get(ctx context.Context, messageKey string) (*domain.MessageTicket, error) {
	payload, err := r.client.Get(ctx, r.prefix+messageKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrAssociationNotFound
	}
	if err != nil {
		return nil, err
	}
	var assoc domain.MessageTicket
	if err := json.Unmarshal(payload, &assoc); err != nil {
		return nil, fmt.Errorf("decode association: %w", err)
	}
	return &assoc, nil
}

package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/foodstore/internal/domain"
)

type outboxEntry struct {
	msg       domain.OutboxMessage
	status    domain.OutboxStatus
	attempts  int
	createdAt time.Time
}

// OutboxRepository: in-memory outbox. Сообщения лежат в порядке постановки,
// поэтому «старые первыми» не требует сортировки.
type OutboxRepository struct {
	mu      sync.RWMutex
	entries []*outboxEntry
	byID    map[string]*outboxEntry
}

func NewOutboxRepository() *OutboxRepository {
	return &OutboxRepository{byID: make(map[string]*outboxEntry)}
}

// Enqueue сохраняет копию сообщения в статусе pending, генерируя ID при необходимости.
func (r *OutboxRepository) Enqueue(_ context.Context, msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	msg.Payload = slices.Clone(msg.Payload)

	r.mu.Lock()
	defer r.mu.Unlock()

	entry := &outboxEntry{msg: msg, status: domain.OutboxStatusPending, createdAt: time.Now().UTC()}
	r.entries = append(r.entries, entry)
	r.byID[msg.ID] = entry
	return msg, nil
}

func (r *OutboxRepository) PullPending(_ context.Context, limit int) ([]domain.OutboxMessage, error) {
	if limit <= 0 {
		limit = domain.DefaultOutboxBatch
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pendingLocked(limit), nil
}

func (r *OutboxRepository) Stats(_ context.Context) (domain.OutboxStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var stats domain.OutboxStats
	for _, e := range r.entries {
		if e.status != domain.OutboxStatusPending {
			continue
		}
		if stats.PendingCount == 0 {
			stats.OldestPendingAt = e.createdAt
		}
		stats.PendingCount++
	}
	return stats, nil
}

func (r *OutboxRepository) MarkSent(_ context.Context, id string) error {
	return r.setStatus(id, domain.OutboxStatusSent)
}

func (r *OutboxRepository) MarkFailed(_ context.Context, id string) error {
	return r.setStatus(id, domain.OutboxStatusFailed)
}

// AllPending возвращает все pending-сообщения без ограничения пачки.
func (r *OutboxRepository) AllPending() []domain.OutboxMessage {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pendingLocked(0)
}

// pendingLocked: limit<=0 без ограничения.
func (r *OutboxRepository) pendingLocked(limit int) []domain.OutboxMessage {
	var out []domain.OutboxMessage
	for _, e := range r.entries {
		if limit > 0 && len(out) == limit {
			break
		}
		if e.status == domain.OutboxStatusPending {
			out = append(out, e.msg)
		}
	}
	return out
}

func (r *OutboxRepository) setStatus(id string, status domain.OutboxStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byID[id]
	if !ok {
		return domain.ErrOutboxMessageNotFound
	}
	e.status = status
	e.attempts++
	return nil
}

var _ domain.OutboxRepository = (*OutboxRepository)(nil)

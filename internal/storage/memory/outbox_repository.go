package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/offers/internal/domain"
)

type outboxState string

const (
	outboxPending outboxState = "pending"
	outboxSent    outboxState = "sent"
	outboxFailed  outboxState = "failed"

	defaultOutboxBatch = 100
)

type outboxEntry struct {
	msg      domain.OutboxMessage
	state    outboxState
	attempts int
	seq      int64
}

// OutboxRepository держит события предложений в памяти процесса.
// В отличие от PostgreSQL-версии не резервирует выданные события:
// воркер в процессе один.
type OutboxRepository struct {
	mu      sync.RWMutex
	seq     int64
	entries map[string]*outboxEntry
	now     func() time.Time
}

func NewOutboxRepository() *OutboxRepository {
	return &OutboxRepository{
		entries: make(map[string]*outboxEntry),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (r *OutboxRepository) Enqueue(_ context.Context, msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	if strings.TrimSpace(msg.AggregateID) == "" {
		return domain.OutboxMessage{}, fmt.Errorf("enqueue offer event: %w", domain.ErrOfferIDRequired)
	}
	if strings.TrimSpace(msg.EventType) == "" {
		return domain.OutboxMessage{}, fmt.Errorf("%w: event type is required", domain.ErrOutboxPublish)
	}
	if msg.AggregateType == "" {
		msg.AggregateType = domain.AggregateTypeOffer
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = r.now()
	}
	msg.Payload = append([]byte(nil), msg.Payload...)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	r.entries[msg.ID] = &outboxEntry{msg: msg, state: outboxPending, seq: r.seq}
	return msg, nil
}

// PullPending отдаёт до limit событий в порядке постановки.
func (r *OutboxRepository) PullPending(_ context.Context, limit int) ([]domain.OutboxMessage, error) {
	if limit <= 0 {
		limit = defaultOutboxBatch
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	pending := r.pendingLocked()
	return pending[:min(limit, len(pending))], nil
}

func (r *OutboxRepository) Stats(_ context.Context) (domain.OutboxStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pending := r.pendingLocked()
	stats := domain.OutboxStats{PendingCount: len(pending)}
	if len(pending) > 0 {
		stats.OldestPendingAt = pending[0].CreatedAt
	}
	return stats, nil
}

func (r *OutboxRepository) MarkSent(_ context.Context, id string) error {
	return r.settle(id, outboxSent)
}

func (r *OutboxRepository) MarkFailed(_ context.Context, id string) error {
	return r.settle(id, outboxFailed)
}

// AllPending — снимок backlog для тестов.
func (r *OutboxRepository) AllPending() []domain.OutboxMessage {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pendingLocked()
}

// settle: повторная отметка тем же статусом не ошибка, смена финального статуса запрещена.
func (r *OutboxRepository) settle(id string, state outboxState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[id]
	if !ok || (entry.state != outboxPending && entry.state != state) {
		return fmt.Errorf("%w: offer event %s is not pending", domain.ErrOutboxPublish, id)
	}
	entry.state = state
	entry.attempts++
	return nil
}

func (r *OutboxRepository) pendingLocked() []domain.OutboxMessage {
	entries := make([]*outboxEntry, 0, len(r.entries))
	for _, entry := range r.entries {
		if entry.state == outboxPending {
			entries = append(entries, entry)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	out := make([]domain.OutboxMessage, len(entries))
	for i, entry := range entries {
		out[i] = entry.msg
	}
	return out
}

var _ domain.OutboxRepository = (*OutboxRepository)(nil)

package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/offers/internal/domain"
)

const (
	defaultOutboxBatch = 100

	// outboxClaimTTL — на это время выданное воркеру событие скрыто от других
	// экземпляров сервиса. Если воркер упал, событие снова станет доступно.
	outboxClaimTTL = 30 * time.Second
)

// OutboxRepository хранит события предложений в outbox_messages.
// Enqueue выполняется в транзакции перехода, если она открыта в ctx.
type OutboxRepository struct {
	store    *Store
	claimTTL time.Duration
	now      func() time.Time
}

// NewOutboxRepository создаёт PostgreSQL-реализацию OutboxRepository.
func NewOutboxRepository(store *Store) *OutboxRepository {
	return &OutboxRepository{
		store:    store,
		claimTTL: outboxClaimTTL,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (r *OutboxRepository) Enqueue(ctx context.Context, msg domain.OutboxMessage) (domain.OutboxMessage, error) {
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
	now := r.now()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}

	ctx, cancel := opContext(ctx)
	defer cancel()

	if _, err := r.store.q(ctx).ExecContext(ctx, `
		INSERT INTO outbox_messages (
			id, aggregate_type, aggregate_id, event_type, payload,
			status, attempt_count, available_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, 'pending', 0, $6, $6, $7)`,
		msg.ID, msg.AggregateType, msg.AggregateID, msg.EventType, msg.Payload, msg.CreatedAt, now,
	); err != nil {
		return domain.OutboxMessage{}, fmt.Errorf("enqueue offer event %s: %w", msg.EventType, err)
	}
	return msg, nil
}

// PullPending забирает до limit доступных событий и резервирует их на claimTTL.
// Строки, занятые параллельной выборкой, пропускаются.
func (r *OutboxRepository) PullPending(ctx context.Context, limit int) ([]domain.OutboxMessage, error) {
	if limit <= 0 {
		limit = defaultOutboxBatch
	}
	now := r.now()

	ctx, cancel := opContext(ctx)
	defer cancel()

	rows, err := r.store.q(ctx).QueryContext(ctx, `
		WITH claimed AS (
			SELECT id
			FROM outbox_messages
			WHERE status = 'pending' AND available_at <= $1
			ORDER BY created_at, id
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		UPDATE outbox_messages AS m
		SET available_at = $3
		FROM claimed
		WHERE m.id = claimed.id
		RETURNING m.id, m.aggregate_type, m.aggregate_id, m.event_type, m.payload, m.created_at`,
		now, limit, now.Add(r.claimTTL),
	)
	if err != nil {
		return nil, fmt.Errorf("claim pending offer events: %w", err)
	}
	defer rows.Close()

	batch := make([]domain.OutboxMessage, 0, limit)
	for rows.Next() {
		var msg domain.OutboxMessage
		if err := rows.Scan(&msg.ID, &msg.AggregateType, &msg.AggregateID, &msg.EventType, &msg.Payload, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan offer event: %w", err)
		}
		msg.CreatedAt = msg.CreatedAt.UTC()
		batch = append(batch, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate offer events: %w", err)
	}

	// RETURNING не сохраняет порядок подзапроса.
	sortByCreation(batch)
	return batch, nil
}

// Stats учитывает и зарезервированные события: они ещё не отправлены.
func (r *OutboxRepository) Stats(ctx context.Context) (domain.OutboxStats, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	var (
		stats  domain.OutboxStats
		oldest sql.NullTime
	)
	if err := r.store.q(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*), MIN(created_at) FROM outbox_messages WHERE status = 'pending'`,
	).Scan(&stats.PendingCount, &oldest); err != nil {
		return domain.OutboxStats{}, fmt.Errorf("outbox backlog stats: %w", err)
	}
	if oldest.Valid {
		stats.OldestPendingAt = oldest.Time.UTC()
	}
	return stats, nil
}

func (r *OutboxRepository) MarkSent(ctx context.Context, id string) error {
	return r.settle(ctx, id, "sent")
}

func (r *OutboxRepository) MarkFailed(ctx context.Context, id string) error {
	return r.settle(ctx, id, "failed")
}

// settle переводит событие в финальный статус; повторная отметка тем же статусом не ошибка.
func (r *OutboxRepository) settle(ctx context.Context, id, status string) error {
	ctx, cancel := opContext(ctx)
	defer cancel()

	res, err := r.store.q(ctx).ExecContext(ctx, `
		UPDATE outbox_messages
		SET status = $2, attempt_count = attempt_count + 1, updated_at = $3
		WHERE id = $1 AND status IN ('pending', $2)`,
		id, status, r.now(),
	)
	if err != nil {
		return fmt.Errorf("mark offer event %s as %s: %w", id, status, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark offer event %s as %s: %w", id, status, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: offer event %s is not pending", domain.ErrOutboxPublish, id)
	}
	return nil
}

func sortByCreation(batch []domain.OutboxMessage) {
	sort.SliceStable(batch, func(i, j int) bool {
		if !batch[i].CreatedAt.Equal(batch[j].CreatedAt) {
			return batch[i].CreatedAt.Before(batch[j].CreatedAt)
		}
		return batch[i].ID < batch[j].ID
	})
}

var _ domain.OutboxRepository = (*OutboxRepository)(nil)

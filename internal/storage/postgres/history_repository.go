package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/offers/internal/domain"
)

type historyRepository struct {
	store *Store
}

// NewHistoryRepository создаёт PostgreSQL-реализацию HistoryRepository.
func NewHistoryRepository(store *Store) domain.HistoryRepository {
	return &historyRepository{store: store}
}

func (r *historyRepository) Append(ctx context.Context, entry domain.StatusHistoryEntry) error {
	ctx, cancel := opContext(ctx)
	defer cancel()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	metadata := []byte(`{}`)
	if len(entry.Metadata) > 0 {
		raw, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("encode history metadata: %w", err)
		}
		metadata = raw
	}

	if _, err := r.store.q(ctx).ExecContext(ctx, `
		INSERT INTO offer_status_history (
			id, offer_id, from_status, to_status, event, description, actor,
			metadata, notification_sent, notification_method, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`,
		entry.ID, entry.OfferID, string(entry.FromStatus), string(entry.ToStatus), string(entry.Event),
		entry.Description, entry.Actor, metadata, entry.NotificationSent, entry.NotificationMethod, entry.CreatedAt,
	); err != nil {
		return fmt.Errorf("append history entry: %w", err)
	}
	return nil
}

func (r *historyRepository) ListFor(ctx context.Context, offerID string) ([]domain.StatusHistoryEntry, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	rows, err := r.store.q(ctx).QueryContext(ctx, `
		SELECT id, offer_id, from_status, to_status, event, description, actor,
		       metadata, notification_sent, notification_method, created_at
		FROM offer_status_history
		WHERE offer_id = $1
		ORDER BY created_at ASC, seq ASC
	`, offerID)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.StatusHistoryEntry, 0)
	for rows.Next() {
		var (
			entry         domain.StatusHistoryEntry
			from, to, evt string
			metadata      []byte
		)
		if err := rows.Scan(
			&entry.ID, &entry.OfferID, &from, &to, &evt, &entry.Description, &entry.Actor,
			&metadata, &entry.NotificationSent, &entry.NotificationMethod, &entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		entry.FromStatus = domain.OfferStatus(from)
		entry.ToStatus = domain.OfferStatus(to)
		entry.Event = domain.OfferEvent(evt)
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &entry.Metadata); err != nil {
				return nil, fmt.Errorf("decode history metadata: %w", err)
			}
			if len(entry.Metadata) == 0 {
				entry.Metadata = nil
			}
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return entries, nil
}

var _ domain.HistoryRepository = (*historyRepository)(nil)

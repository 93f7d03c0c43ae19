package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/offers/internal/domain"
)

const offerColumns = `
	id, number, status, currency, subtotal_minor, tax_minor, total_minor,
	customer_name, customer_email, customer_phone, customer_address,
	notes, notification_overrides, pdf_url, reservation_expires_at, version,
	created_at, updated_at, accepted_at, completed_at, cancelled_at, deleted_at`

type offerRepository struct {
	store *Store
}

// NewOfferRepository создаёт PostgreSQL-реализацию OfferRepository.
func NewOfferRepository(store *Store) domain.OfferRepository {
	return &offerRepository{store: store}
}

func (r *offerRepository) NextNumber(ctx context.Context) (int64, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	var seq int64
	if err := r.store.q(ctx).QueryRowContext(ctx, `SELECT nextval('offer_number_seq')`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("next offer number: %w", err)
	}
	return seq, nil
}

func (r *offerRepository) Create(ctx context.Context, offer domain.Offer) error {
	ctx, cancel := opContext(ctx)
	defer cancel()

	overrides, err := marshalOverrides(offer.NotificationOverrides)
	if err != nil {
		return err
	}

	return r.store.inTx(ctx, func(ctx context.Context, q querier) error {
		_, err := q.ExecContext(ctx, `
			INSERT INTO offers (
				id, number, status, currency, subtotal_minor, tax_minor, total_minor,
				customer_name, customer_email, customer_phone, customer_address,
				notes, notification_overrides, pdf_url, reservation_expires_at, version,
				created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
		`,
			offer.ID, offer.Number, string(offer.Status), offer.Currency,
			offer.SubtotalMinor, offer.TaxMinor, offer.TotalMinor,
			offer.Customer.Name, offer.Customer.Email, offer.Customer.Phone, offer.Customer.Address,
			offer.Notes, overrides, offer.PDFURL, offer.ReservationExpiresAt, offer.Version,
			offer.CreatedAt, offer.UpdatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return domain.ErrConcurrentModification
			}
			return fmt.Errorf("insert offer: %w", err)
		}
		return insertItems(ctx, q, offer.ID, offer.Items)
	})
}

func (r *offerRepository) Get(ctx context.Context, id string) (domain.Offer, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	q := r.store.q(ctx)
	offer, err := scanOffer(q.QueryRowContext(ctx,
		`SELECT `+offerColumns+` FROM offers WHERE id = $1 AND deleted_at IS NULL`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Offer{}, domain.ErrOfferNotFound
		}
		return domain.Offer{}, fmt.Errorf("select offer: %w", err)
	}

	if offer.Items, err = loadItems(ctx, q, offer.ID); err != nil {
		return domain.Offer{}, err
	}
	return offer, nil
}

func (r *offerRepository) List(ctx context.Context, filter domain.OfferFilter) ([]domain.Offer, int, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	filter = filter.Normalize()
	q := r.store.q(ctx)

	var total int
	if err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM offers
		WHERE deleted_at IS NULL AND ($1 = '' OR status = $1)
	`, string(filter.Status)).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count offers: %w", err)
	}

	rows, err := q.QueryContext(ctx, `
		SELECT `+offerColumns+`
		FROM offers
		WHERE deleted_at IS NULL AND ($1 = '' OR status = $1)
		ORDER BY created_at DESC, number DESC
		LIMIT $2 OFFSET $3
	`, string(filter.Status), filter.Limit, filter.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list offers: %w", err)
	}

	offers := make([]domain.Offer, 0, filter.Limit)
	for rows.Next() {
		offer, err := scanOffer(rows)
		if err != nil {
			_ = rows.Close()
			return nil, 0, fmt.Errorf("scan offer row: %w", err)
		}
		offers = append(offers, offer)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, 0, fmt.Errorf("iterate offer rows: %w", err)
	}
	_ = rows.Close()

	// Позиции читаем после закрытия курсора: в транзакции второй запрос
	// по тому же соединению при открытом курсоре невозможен.
	for idx := range offers {
		if offers[idx].Items, err = loadItems(ctx, q, offers[idx].ID); err != nil {
			return nil, 0, err
		}
	}
	return offers, total, nil
}

func (r *offerRepository) Update(ctx context.Context, offer domain.Offer) (domain.Offer, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	overrides, err := marshalOverrides(offer.NotificationOverrides)
	if err != nil {
		return domain.Offer{}, err
	}

	var updated domain.Offer
	err = r.store.inTx(ctx, func(ctx context.Context, q querier) error {
		res, err := q.ExecContext(ctx, `
			UPDATE offers
			SET notes = $1,
			    customer_name = $2,
			    customer_email = $3,
			    customer_phone = $4,
			    customer_address = $5,
			    notification_overrides = $6,
			    subtotal_minor = $7,
			    tax_minor = $8,
			    total_minor = $9,
			    updated_at = $10,
			    version = version + 1
			WHERE id = $11 AND version = $12 AND deleted_at IS NULL
		`,
			offer.Notes, offer.Customer.Name, offer.Customer.Email, offer.Customer.Phone, offer.Customer.Address,
			overrides, offer.SubtotalMinor, offer.TaxMinor, offer.TotalMinor, offer.UpdatedAt,
			offer.ID, offer.Version,
		)
		if err != nil {
			return fmt.Errorf("update offer: %w", err)
		}
		if err := r.checkAffected(ctx, q, res, offer.ID); err != nil {
			return err
		}

		if _, err := q.ExecContext(ctx, `DELETE FROM offer_items WHERE offer_id = $1`, offer.ID); err != nil {
			return fmt.Errorf("replace offer items: %w", err)
		}
		if err := insertItems(ctx, q, offer.ID, offer.Items); err != nil {
			return err
		}

		updated, err = r.Get(ctx, offer.ID)
		return err
	})
	if err != nil {
		return domain.Offer{}, err
	}
	return updated, nil
}

// UpdateStatus — compare-and-set по статусу; метки переходов ставятся один раз.
func (r *offerRepository) UpdateStatus(ctx context.Context, id string, from, to domain.OfferStatus, at time.Time) (domain.Offer, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	var updated domain.Offer
	err := r.store.inTx(ctx, func(ctx context.Context, q querier) error {
		res, err := q.ExecContext(ctx, `
			UPDATE offers
			SET status = $1,
			    updated_at = $2,
			    accepted_at = CASE WHEN $1 = 'accepted' THEN COALESCE(accepted_at, $2) ELSE accepted_at END,
			    completed_at = CASE WHEN $1 = 'completed' THEN COALESCE(completed_at, $2) ELSE completed_at END,
			    cancelled_at = CASE WHEN $1 = 'cancelled' THEN COALESCE(cancelled_at, $2) ELSE cancelled_at END,
			    version = version + 1
			WHERE id = $3 AND status = $4 AND deleted_at IS NULL
		`, string(to), at, id, string(from))
		if err != nil {
			return fmt.Errorf("update offer status: %w", err)
		}
		if err := r.checkAffected(ctx, q, res, id); err != nil {
			return err
		}
		updated, err = r.Get(ctx, id)
		return err
	})
	if err != nil {
		return domain.Offer{}, err
	}
	return updated, nil
}

func (r *offerRepository) SetReservations(ctx context.Context, offerID string, reservations map[string]string, expiresAt *time.Time) error {
	ctx, cancel := opContext(ctx)
	defer cancel()

	return r.store.inTx(ctx, func(ctx context.Context, q querier) error {
		for itemID, reservationID := range reservations {
			if _, err := q.ExecContext(ctx, `
				UPDATE offer_items SET reservation_id = $1 WHERE id = $2 AND offer_id = $3
			`, reservationID, itemID, offerID); err != nil {
				return fmt.Errorf("set item reservation: %w", err)
			}
		}

		res, err := q.ExecContext(ctx, `
			UPDATE offers
			SET reservation_expires_at = CASE
			        WHEN EXISTS (SELECT 1 FROM offer_items WHERE offer_id = $1 AND reservation_id <> '')
			        THEN COALESCE($2, reservation_expires_at)
			        ELSE NULL
			    END,
			    version = version + 1
			WHERE id = $1 AND deleted_at IS NULL
		`, offerID, expiresAt)
		if err != nil {
			return fmt.Errorf("set reservation expiry: %w", err)
		}
		return r.checkAffected(ctx, q, res, offerID)
	})
}

func (r *offerRepository) SetPDFURL(ctx context.Context, id, url string) error {
	ctx, cancel := opContext(ctx)
	defer cancel()

	res, err := r.store.q(ctx).ExecContext(ctx, `
		UPDATE offers SET pdf_url = $1 WHERE id = $2 AND deleted_at IS NULL
	`, url, id)
	if err != nil {
		return fmt.Errorf("set pdf url: %w", err)
	}
	return notFoundIfNone(res)
}

func (r *offerRepository) SoftDelete(ctx context.Context, id string, at time.Time) error {
	ctx, cancel := opContext(ctx)
	defer cancel()

	res, err := r.store.q(ctx).ExecContext(ctx, `
		UPDATE offers SET deleted_at = $1, updated_at = $1 WHERE id = $2 AND deleted_at IS NULL
	`, at, id)
	if err != nil {
		return fmt.Errorf("soft delete offer: %w", err)
	}
	return notFoundIfNone(res)
}

// checkAffected различает отсутствие предложения и проигранную гонку.
func (r *offerRepository) checkAffected(ctx context.Context, q querier, res sql.Result, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var exists bool
	if err := q.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM offers WHERE id = $1 AND deleted_at IS NULL)
	`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check offer exists: %w", err)
	}
	if !exists {
		return domain.ErrOfferNotFound
	}
	return domain.ErrConcurrentModification
}

func notFoundIfNone(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrOfferNotFound
	}
	return nil
}

func insertItems(ctx context.Context, q querier, offerID string, items []domain.OfferItem) error {
	for _, item := range items {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO offer_items (
				id, offer_id, item_type, product_id, variant_id, name, quantity,
				unit_price_minor, discount_minor, total_price_minor, tax_rate, tax_minor,
				sort_order, reservation_id, created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		`,
			item.ID, offerID, string(item.ItemType), item.ProductID, item.VariantID, item.Name, item.Quantity,
			item.UnitPriceMinor, item.DiscountMinor, item.TotalPriceMinor, item.TaxRate, item.TaxMinor,
			item.SortOrder, item.ReservationID, item.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert offer item: %w", err)
		}
	}
	return nil
}

func loadItems(ctx context.Context, q querier, offerID string) ([]domain.OfferItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, offer_id, item_type, product_id, variant_id, name, quantity,
		       unit_price_minor, discount_minor, total_price_minor, tax_rate, tax_minor,
		       sort_order, reservation_id, created_at
		FROM offer_items
		WHERE offer_id = $1
		ORDER BY sort_order ASC, created_at ASC, id ASC
	`, offerID)
	if err != nil {
		return nil, fmt.Errorf("load offer items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.OfferItem, 0)
	for rows.Next() {
		var (
			item     domain.OfferItem
			itemType string
		)
		if err := rows.Scan(
			&item.ID, &item.OfferID, &itemType, &item.ProductID, &item.VariantID, &item.Name, &item.Quantity,
			&item.UnitPriceMinor, &item.DiscountMinor, &item.TotalPriceMinor, &item.TaxRate, &item.TaxMinor,
			&item.SortOrder, &item.ReservationID, &item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan offer item: %w", err)
		}
		item.ItemType = domain.ItemType(itemType)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate offer items: %w", err)
	}
	return items, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOffer(row rowScanner) (domain.Offer, error) {
	var (
		offer     domain.Offer
		status    string
		overrides []byte
		expiresAt sql.NullTime
		accepted  sql.NullTime
		completed sql.NullTime
		cancelled sql.NullTime
		deleted   sql.NullTime
	)
	if err := row.Scan(
		&offer.ID, &offer.Number, &status, &offer.Currency,
		&offer.SubtotalMinor, &offer.TaxMinor, &offer.TotalMinor,
		&offer.Customer.Name, &offer.Customer.Email, &offer.Customer.Phone, &offer.Customer.Address,
		&offer.Notes, &overrides, &offer.PDFURL, &expiresAt, &offer.Version,
		&offer.CreatedAt, &offer.UpdatedAt, &accepted, &completed, &cancelled, &deleted,
	); err != nil {
		return domain.Offer{}, err
	}

	offer.Status = domain.OfferStatus(status)
	if len(overrides) > 0 {
		if err := json.Unmarshal(overrides, &offer.NotificationOverrides); err != nil {
			return domain.Offer{}, fmt.Errorf("decode notification overrides: %w", err)
		}
		if len(offer.NotificationOverrides) == 0 {
			offer.NotificationOverrides = nil
		}
	}
	offer.ReservationExpiresAt = nullTime(expiresAt)
	offer.AcceptedAt = nullTime(accepted)
	offer.CompletedAt = nullTime(completed)
	offer.CancelledAt = nullTime(cancelled)
	offer.DeletedAt = nullTime(deleted)
	return offer, nil
}

func marshalOverrides(overrides map[domain.OfferEvent]bool) ([]byte, error) {
	if overrides == nil {
		return []byte(`{}`), nil
	}
	raw, err := json.Marshal(overrides)
	if err != nil {
		return nil, fmt.Errorf("encode notification overrides: %w", err)
	}
	return raw, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

var _ domain.OfferRepository = (*offerRepository)(nil)

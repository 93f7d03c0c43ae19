package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/offers/internal/domain"
)

// CreateInput — данные для создания черновика.
type CreateInput struct {
	Currency              string
	Customer              domain.CustomerSnapshot
	Notes                 string
	Items                 []domain.OfferItem
	NotificationOverrides map[domain.OfferEvent]bool
	Actor                 string
}

// DetailsInput — изменение полей, не влияющих на суммы.
type DetailsInput struct {
	domain.OfferDetails
	// ExpectedVersion включает проверку версии, если больше нуля.
	ExpectedVersion int64
}

// ItemAvailability — результат проверки остатков по позиции.
type ItemAvailability struct {
	ItemID    string
	VariantID string
	Requested int64
	// Available равен -1, если склад не ограничивает остаток.
	Available  int64
	Reserved   bool
	Sufficient bool
}

// Create сохраняет новое предложение в статусе draft.
func (m *Machine) Create(ctx context.Context, in CreateInput) (domain.Offer, error) {
	now := m.now().UTC()

	offer := domain.Offer{
		ID:                    m.newID(),
		Status:                domain.OfferStatusDraft,
		Currency:              strings.ToUpper(strings.TrimSpace(in.Currency)),
		Customer:              in.Customer,
		Notes:                 in.Notes,
		NotificationOverrides: in.NotificationOverrides,
		Version:               1,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	for idx, item := range in.Items {
		offer.Items = append(offer.Items, m.prepareItem(offer.ID, item, idx+1, now))
	}
	offer.RecalculateTotals()

	errs := offer.ValidateInvariants()
	for event := range in.NotificationOverrides {
		if !event.Valid() {
			errs = append(errs, fmt.Errorf("%w: %q", domain.ErrNotificationEventInvalid, event))
		}
	}
	if err := domain.NewValidationError(errs); err != nil {
		return domain.Offer{}, err
	}

	event := domain.EventCreated

	err := m.tx.WithinTx(ctx, func(ctx context.Context) error {
		seq, err := m.offers.NextNumber(ctx)
		if err != nil {
			return fmt.Errorf("next offer number: %w", err)
		}
		offer.Number = domain.FormatOfferNumber(m.prefix, seq)

		if err := m.offers.Create(ctx, offer); err != nil {
			return err
		}

		entry := domain.StatusHistoryEntry{
			ID:          m.newID(),
			OfferID:     offer.ID,
			ToStatus:    domain.OfferStatusDraft,
			Event:       event,
			Description: "offer created",
			Actor:       in.Actor,
			CreatedAt:   now,
		}
		if m.requestNotification(ctx, offer, event) {
			entry.NotificationSent = true
			entry.NotificationMethod = domain.NotificationMethodEmail
		}
		if err := m.history.Append(ctx, entry); err != nil {
			return fmt.Errorf("append history: %w", err)
		}
		return m.enqueueStatusChanged(ctx, offer, "", event, in.Actor, now)
	})
	if err != nil {
		return domain.Offer{}, err
	}

	m.metrics.RecordHistoryEntry(string(event))
	m.logger.WithFields(log.Fields{
		"offer_id": offer.ID,
		"number":   offer.Number,
		"items":    len(offer.Items),
	}).Info("offer created")

	m.afterCommit(ctx, offer)
	return offer, nil
}

func (m *Machine) prepareItem(offerID string, item domain.OfferItem, sortOrder int, now time.Time) domain.OfferItem {
	item.ID = m.newID()
	item.OfferID = offerID
	item.ReservationID = ""
	item.CreatedAt = now
	if item.Name == "" {
		item.Name = item.ProductID
	}
	if item.SortOrder == 0 {
		item.SortOrder = sortOrder
	}
	item.ComputeTotals()
	return item
}

// Get возвращает предложение по идентификатору.
func (m *Machine) Get(ctx context.Context, offerID string) (domain.Offer, error) {
	if offerID == "" {
		return domain.Offer{}, domain.NewValidationError([]error{domain.ErrOfferIDRequired})
	}
	return m.offers.Get(ctx, offerID)
}

// List возвращает страницу предложений и общее количество.
func (m *Machine) List(ctx context.Context, filter domain.OfferFilter) ([]domain.Offer, int, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, domain.NewValidationError([]error{domain.ErrStatusInvalid})
	}
	return m.offers.List(ctx, filter.Normalize())
}

// History возвращает записи истории в хронологическом порядке.
func (m *Machine) History(ctx context.Context, offerID string) ([]domain.StatusHistoryEntry, error) {
	if _, err := m.Get(ctx, offerID); err != nil {
		return nil, err
	}
	return m.history.ListFor(ctx, offerID)
}

// UpdateDetails меняет заметки, снимок клиента и настройки уведомлений.
// Статус и позиции здесь не трогаются.
func (m *Machine) UpdateDetails(ctx context.Context, offerID string, in DetailsInput) (domain.Offer, error) {
	offer, err := m.Get(ctx, offerID)
	if err != nil {
		return domain.Offer{}, err
	}
	if in.ExpectedVersion > 0 && in.ExpectedVersion != offer.Version {
		return domain.Offer{}, domain.ErrConcurrentModification
	}

	var errs []error
	if in.Notes != nil {
		offer.Notes = *in.Notes
	}
	if in.Customer != nil {
		errs = append(errs, in.Customer.Validate()...)
		offer.Customer = *in.Customer
	}
	if in.NotificationOverrides != nil {
		for event := range in.NotificationOverrides {
			if !event.Valid() {
				errs = append(errs, fmt.Errorf("%w: %q", domain.ErrNotificationEventInvalid, event))
			}
		}
		offer.NotificationOverrides = in.NotificationOverrides
	}
	if err := domain.NewValidationError(errs); err != nil {
		return domain.Offer{}, err
	}

	offer.UpdatedAt = m.now().UTC()
	updated, err := m.offers.Update(ctx, offer)
	if err != nil {
		return domain.Offer{}, err
	}
	m.invalidate(ctx, updated.ID)
	return updated, nil
}

// AddItem добавляет позицию в черновик и пересчитывает итоги.
func (m *Machine) AddItem(ctx context.Context, offerID string, item domain.OfferItem) (domain.Offer, error) {
	var updated domain.Offer
	err := m.reservations.WithLock(ctx, offerID, func(ctx context.Context) error {
		offer, err := m.editableDraft(ctx, offerID)
		if err != nil {
			return err
		}

		next := 1
		for _, existing := range offer.Items {
			if existing.SortOrder >= next {
				next = existing.SortOrder + 1
			}
		}
		now := m.now().UTC()
		prepared := m.prepareItem(offer.ID, item, next, now)
		if err := domain.NewValidationError(prepared.Validate()); err != nil {
			return err
		}

		offer.Items = append(offer.Items, prepared)
		offer.RecalculateTotals()
		offer.UpdatedAt = now
		updated, err = m.offers.Update(ctx, offer)
		return err
	})
	if err != nil {
		return domain.Offer{}, err
	}
	m.invalidate(ctx, offerID)
	return updated, nil
}

// RemoveItem удаляет позицию из черновика. Резерв позиции, если он есть, снимается.
func (m *Machine) RemoveItem(ctx context.Context, offerID, itemID string) (domain.Offer, error) {
	var updated domain.Offer
	err := m.reservations.WithLock(ctx, offerID, func(ctx context.Context) error {
		offer, err := m.editableDraft(ctx, offerID)
		if err != nil {
			return err
		}
		item, ok := offer.ItemByID(itemID)
		if !ok {
			return domain.ErrItemNotFound
		}
		if item.Reserved() && m.inventory != nil {
			if err := m.inventory.Release(context.WithoutCancel(ctx), item.ReservationID); err != nil {
				return fmt.Errorf("release item reservation: %w", err)
			}
		}

		kept := make([]domain.OfferItem, 0, len(offer.Items)-1)
		for _, existing := range offer.Items {
			if existing.ID != itemID {
				kept = append(kept, existing)
			}
		}
		offer.Items = kept
		offer.RecalculateTotals()
		offer.UpdatedAt = m.now().UTC()
		updated, err = m.offers.Update(ctx, offer)
		return err
	})
	if err != nil {
		return domain.Offer{}, err
	}
	m.invalidate(ctx, offerID)
	return updated, nil
}

func (m *Machine) editableDraft(ctx context.Context, offerID string) (domain.Offer, error) {
	offer, err := m.Get(ctx, offerID)
	if err != nil {
		return domain.Offer{}, err
	}
	if offer.Status != domain.OfferStatusDraft {
		return domain.Offer{}, fmt.Errorf("%w: status %s", domain.ErrOfferNotEditable, offer.Status)
	}
	return offer, nil
}

// Delete мягко удаляет предложение. Держимые резервы снимаются по возможности.
func (m *Machine) Delete(ctx context.Context, offerID string) error {
	return m.reservations.WithLock(ctx, offerID, func(ctx context.Context) error {
		offer, err := m.Get(ctx, offerID)
		if err != nil {
			return err
		}
		if offer.HasReservations() {
			report, err := m.reservations.ReleaseAll(ctx, offerID)
			if err != nil {
				m.logger.WithError(err).WithField("offer_id", offerID).Error("release reservations before delete")
			} else if len(report.Failed) > 0 {
				m.logger.WithFields(log.Fields{
					"offer_id": offerID,
					"items":    report.Failed,
				}).Warn("some reservations stay held after delete")
			}
		}
		if err := m.offers.SoftDelete(ctx, offerID, m.now().UTC()); err != nil {
			return err
		}
		m.invalidate(ctx, offerID)
		m.logger.WithField("offer_id", offerID).Info("offer deleted")
		return nil
	})
}

// CheckAvailability сверяет количество позиций со свободным остатком склада.
// Позиции с уже взятым резервом считаются обеспеченными.
func (m *Machine) CheckAvailability(ctx context.Context, offerID string) ([]ItemAvailability, error) {
	offer, err := m.Get(ctx, offerID)
	if err != nil {
		return nil, err
	}

	var result []ItemAvailability
	for _, item := range offer.ItemsInDisplayOrder() {
		if !item.Reservable() {
			continue
		}
		entry := ItemAvailability{
			ItemID:    item.ID,
			VariantID: item.InventoryVariant(),
			Requested: item.Quantity,
			Reserved:  item.Reserved(),
		}
		if entry.Reserved {
			entry.Available = item.Quantity
			entry.Sufficient = true
			result = append(result, entry)
			continue
		}

		available, err := m.inventory.Available(ctx, entry.VariantID, m.location)
		m.metrics.RecordInventoryCall("available", err)
		if err != nil {
			return nil, fmt.Errorf("check availability for item %s: %w", item.ID, err)
		}
		entry.Available = available
		entry.Sufficient = available < 0 || available >= item.Quantity
		result = append(result, entry)
	}
	return result, nil
}

func (m *Machine) invalidate(ctx context.Context, offerID string) {
	if m.documents == nil {
		return
	}
	if err := m.documents.Invalidate(context.WithoutCancel(ctx), offerID); err != nil {
		m.logger.WithError(err).WithField("offer_id", offerID).Warn("pdf invalidation failed")
	}
}

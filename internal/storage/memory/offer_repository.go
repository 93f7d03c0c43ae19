package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/offers/internal/domain"
)

// offerRepositoryInMemory — in-memory реализация OfferRepository.
// Удалённые предложения остаются в карте, но не видны методам чтения.
type offerRepositoryInMemory struct {
	mu    sync.RWMutex
	seq   int64
	items map[string]domain.Offer
}

// NewOfferRepository возвращает in-memory репозиторий для локальной разработки и тестов.
func NewOfferRepository() domain.OfferRepository {
	return &offerRepositoryInMemory{
		items: make(map[string]domain.Offer),
	}
}

// NextNumber выдаёт следующее значение последовательности; значения не переиспользуются.
func (r *offerRepositoryInMemory) NextNumber(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	return r.seq, nil
}

// Create сохраняет новое предложение, если ID ещё не занят.
func (r *offerRepositoryInMemory) Create(_ context.Context, offer domain.Offer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[offer.ID]; exists {
		return domain.ErrConcurrentModification
	}
	for idx := range offer.Items {
		offer.Items[idx].OfferID = offer.ID
	}
	// Сохраняем копию, чтобы избежать непредсказуемых мутаций извне.
	r.items[offer.ID] = offer.Clone()
	return nil
}

// Get возвращает предложение или ErrOfferNotFound.
func (r *offerRepositoryInMemory) Get(_ context.Context, id string) (domain.Offer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	offer, ok := r.visible(id)
	if !ok {
		return domain.Offer{}, domain.ErrOfferNotFound
	}
	return offer.Clone(), nil
}

// List возвращает страницу предложений от новых к старым.
func (r *offerRepositoryInMemory) List(_ context.Context, filter domain.OfferFilter) ([]domain.Offer, int, error) {
	filter = filter.Normalize()

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Offer, 0, len(r.items))
	for _, offer := range r.items {
		if offer.DeletedAt != nil {
			continue
		}
		if filter.Status != "" && offer.Status != filter.Status {
			continue
		}
		result = append(result, offer)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].Number > result[j].Number
	})

	total := len(result)
	if filter.Offset >= total {
		return []domain.Offer{}, total, nil
	}
	end := filter.Offset + filter.Limit
	if end > total {
		end = total
	}

	page := make([]domain.Offer, 0, end-filter.Offset)
	for _, offer := range result[filter.Offset:end] {
		page = append(page, offer.Clone())
	}
	return page, total, nil
}

// Update перезаписывает изменяемые поля, проверяя версию (optimistic locking).
func (r *offerRepositoryInMemory) Update(_ context.Context, offer domain.Offer) (domain.Offer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.visible(offer.ID)
	if !ok {
		return domain.Offer{}, domain.ErrOfferNotFound
	}
	if current.Version != offer.Version {
		return domain.Offer{}, domain.ErrConcurrentModification
	}

	updated := current.Clone()
	updated.Notes = offer.Notes
	updated.Customer = offer.Customer
	updated.NotificationOverrides = offer.Clone().NotificationOverrides
	updated.Items = offer.Clone().Items
	for idx := range updated.Items {
		updated.Items[idx].OfferID = updated.ID
	}
	updated.SubtotalMinor = offer.SubtotalMinor
	updated.TaxMinor = offer.TaxMinor
	updated.TotalMinor = offer.TotalMinor
	updated.UpdatedAt = offer.UpdatedAt
	updated.Version++

	r.items[updated.ID] = updated
	return updated.Clone(), nil
}

// UpdateStatus меняет статус только если текущий статус равен from.
func (r *offerRepositoryInMemory) UpdateStatus(_ context.Context, id string, from, to domain.OfferStatus, at time.Time) (domain.Offer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.visible(id)
	if !ok {
		return domain.Offer{}, domain.ErrOfferNotFound
	}
	if current.Status != from {
		return domain.Offer{}, domain.ErrConcurrentModification
	}

	updated := current.Clone()
	updated.ApplyStatus(to, at)
	updated.Version++
	r.items[id] = updated
	return updated.Clone(), nil
}

// SetReservations обновляет reservation_id позиций.
func (r *offerRepositoryInMemory) SetReservations(_ context.Context, offerID string, reservations map[string]string, expiresAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.visible(offerID)
	if !ok {
		return domain.ErrOfferNotFound
	}

	updated := current.Clone()
	for idx := range updated.Items {
		if reservationID, found := reservations[updated.Items[idx].ID]; found {
			updated.Items[idx].ReservationID = reservationID
		}
	}
	if updated.HasReservations() {
		if expiresAt != nil {
			stamp := *expiresAt
			updated.ReservationExpiresAt = &stamp
		}
	} else {
		updated.ReservationExpiresAt = nil
	}
	updated.Version++
	r.items[offerID] = updated
	return nil
}

// SetPDFURL сохраняет ссылку на документ; версия не меняется.
func (r *offerRepositoryInMemory) SetPDFURL(_ context.Context, id, url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.visible(id)
	if !ok {
		return domain.ErrOfferNotFound
	}
	current.PDFURL = url
	r.items[id] = current
	return nil
}

// SoftDelete помечает предложение удалённым.
func (r *offerRepositoryInMemory) SoftDelete(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.visible(id)
	if !ok {
		return domain.ErrOfferNotFound
	}
	stamp := at
	current.DeletedAt = &stamp
	current.Version++
	r.items[id] = current
	return nil
}

// visible вызывается под мьютексом.
func (r *offerRepositoryInMemory) visible(id string) (domain.Offer, bool) {
	offer, ok := r.items[id]
	if !ok || offer.DeletedAt != nil {
		return domain.Offer{}, false
	}
	return offer, true
}

var _ domain.OfferRepository = (*offerRepositoryInMemory)(nil)

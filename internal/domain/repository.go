package domain

import (
	"context"
	"time"
)

// OfferRepository описывает требования к хранилищу предложений.
// Удалённые (soft delete) предложения не видны ни одному методу чтения.
type OfferRepository interface {
	// NextNumber выдаёт следующее значение монотонной последовательности номеров.
	NextNumber(ctx context.Context) (int64, error)
	// Create сохраняет новое предложение вместе с позициями.
	Create(ctx context.Context, offer Offer) error
	// Get возвращает предложение или ErrOfferNotFound.
	Get(ctx context.Context, id string) (Offer, error)
	// List возвращает страницу предложений и общее количество по фильтру.
	List(ctx context.Context, filter OfferFilter) ([]Offer, int, error)
	// Update сохраняет изменяемые поля и позиции с учётом optimistic locking по Version.
	// Статус, номер и метки переходов не меняются.
	Update(ctx context.Context, offer Offer) (Offer, error)
	// UpdateStatus меняет статус, если сохранённый статус равен from; иначе ErrConcurrentModification.
	UpdateStatus(ctx context.Context, id string, from, to OfferStatus, at time.Time) (Offer, error)
	// SetReservations записывает id резервов позиций (пустая строка очищает).
	SetReservations(ctx context.Context, offerID string, reservations map[string]string, expiresAt *time.Time) error
	// SetPDFURL сохраняет ссылку на закэшированный документ.
	SetPDFURL(ctx context.Context, id, url string) error
	// SoftDelete помечает предложение удалённым; повторное удаление вернёт ErrOfferNotFound.
	SoftDelete(ctx context.Context, id string, at time.Time) error
}

// HistoryRepository — журнал смены статусов только на добавление.
type HistoryRepository interface {
	Append(ctx context.Context, entry StatusHistoryEntry) error
	// ListFor возвращает записи по возрастанию времени.
	ListFor(ctx context.Context, offerID string) ([]StatusHistoryEntry, error)
}

// DocumentStore хранит отрендеренные PDF.
type DocumentStore interface {
	Get(ctx context.Context, offerID string) (Document, error)
	Put(ctx context.Context, doc Document) error
	Delete(ctx context.Context, offerID string) error
}

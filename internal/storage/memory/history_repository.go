package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/offers/internal/domain"
)

// historyRepositoryInMemory хранит журнал статусов в памяти (для разработки/тестов).
type historyRepositoryInMemory struct {
	mu      sync.RWMutex
	entries map[string][]domain.StatusHistoryEntry
}

// NewHistoryRepository создаёт in-memory реализацию HistoryRepository.
func NewHistoryRepository() domain.HistoryRepository {
	return &historyRepositoryInMemory{entries: make(map[string][]domain.StatusHistoryEntry)}
}

// Append добавляет запись; обновление записей не предусмотрено.
func (r *historyRepositoryInMemory) Append(_ context.Context, entry domain.StatusHistoryEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.Metadata = cloneMetadata(entry.Metadata)

	r.mu.Lock()
	defer r.mu.Unlock()

	list := append(r.entries[entry.OfferID], entry)
	// Stable сохраняет порядок коммитов при одинаковых метках.
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	r.entries[entry.OfferID] = list
	return nil
}

// ListFor возвращает записи предложения в хронологическом порядке.
func (r *historyRepositoryInMemory) ListFor(_ context.Context, offerID string) ([]domain.StatusHistoryEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := r.entries[offerID]
	result := make([]domain.StatusHistoryEntry, len(entries))
	for idx, entry := range entries {
		entry.Metadata = cloneMetadata(entry.Metadata)
		result[idx] = entry
	}
	return result, nil
}

func cloneMetadata(src map[string]string) map[string]string {
	if src == nil {
		return nil
	}
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

var _ domain.HistoryRepository = (*historyRepositoryInMemory)(nil)

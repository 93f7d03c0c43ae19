package inventory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/offers/internal/domain"
)

type stockKey struct {
	variant  string
	location string
}

type reservation struct {
	key stockKey
	qty int64
}

// Stock — in-memory склад для локального запуска и тестов.
// Ошибки можно внедрять по варианту (резерв) и по id резерва (снятие).
type Stock struct {
	mu           sync.Mutex
	available    map[stockKey]int64
	reservations map[string]reservation
	unlimited    bool

	// ReserveErrors задаёт ошибку резервирования для варианта.
	ReserveErrors map[string]error
	// ReleaseErrors задаёт ошибку снятия для резерва.
	ReleaseErrors map[string]error
	// AvailableErr возвращается из Available, если задана.
	AvailableErr error

	ReserveCalls int
	ReleaseCalls int
}

// NewStock создаёт склад без остатков: резерв неизвестного варианта вернёт ErrInventoryUnavailable.
func NewStock() *Stock {
	return &Stock{
		available:     make(map[stockKey]int64),
		reservations:  make(map[string]reservation),
		ReserveErrors: make(map[string]error),
		ReleaseErrors: make(map[string]error),
	}
}

// NewUnlimitedStock создаёт склад, который резервирует любой вариант.
func NewUnlimitedStock() *Stock {
	s := NewStock()
	s.unlimited = true
	return s
}

// SetAvailable задаёт свободный остаток.
func (s *Stock) SetAvailable(variantID, locationID string, qty int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.available[stockKey{variant: variantID, location: locationID}] = qty
}

// Reserve списывает qty из свободного остатка.
func (s *Stock) Reserve(ctx context.Context, variantID, locationID string, qty int64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ReserveCalls++

	if err := s.ReserveErrors[variantID]; err != nil {
		return "", err
	}
	if qty <= 0 {
		return "", fmt.Errorf("reserve %s: %w", variantID, domain.ErrItemQtyInvalid)
	}

	key := stockKey{variant: variantID, location: locationID}
	if !s.unlimited {
		free := s.available[key]
		if free < qty {
			return "", fmt.Errorf("variant %s at %s: requested %d, available %d: %w",
				variantID, locationID, qty, free, domain.ErrInventoryUnavailable)
		}
		s.available[key] = free - qty
	}

	id := uuid.NewString()
	s.reservations[id] = reservation{key: key, qty: qty}
	return id, nil
}

// Release возвращает остаток; снятие неизвестного резерва не ошибка.
func (s *Stock) Release(ctx context.Context, reservationID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ReleaseCalls++

	if err := s.ReleaseErrors[reservationID]; err != nil {
		return err
	}
	res, ok := s.reservations[reservationID]
	if !ok {
		return nil
	}
	delete(s.reservations, reservationID)
	if !s.unlimited {
		s.available[res.key] += res.qty
	}
	return nil
}

// Available возвращает свободный остаток.
func (s *Stock) Available(ctx context.Context, variantID, locationID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.AvailableErr != nil {
		return 0, s.AvailableErr
	}
	if s.unlimited {
		return -1, nil
	}
	return s.available[stockKey{variant: variantID, location: locationID}], nil
}

// ActiveReservations возвращает число неснятых резервов (используется в тестах).
func (s *Stock) ActiveReservations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reservations)
}

// Calls возвращает счётчики вызовов под мьютексом.
func (s *Stock) Calls() (reserve, release int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ReserveCalls, s.ReleaseCalls
}

var _ domain.InventoryClient = (*Stock)(nil)

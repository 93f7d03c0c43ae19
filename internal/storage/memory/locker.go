package memory

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/offers/internal/domain"
)

// OfferLocker — внутрипроцессная блокировка по id предложения.
type OfferLocker struct {
	mu    sync.Mutex
	locks map[string]*offerLock
}

type offerLock struct {
	ch   chan struct{}
	refs int
}

// NewOfferLocker создаёт блокировку для однопроцессного развёртывания.
func NewOfferLocker() *OfferLocker {
	return &OfferLocker{locks: make(map[string]*offerLock)}
}

// Lock ждёт освобождения предложения или отмены ctx.
func (l *OfferLocker) Lock(ctx context.Context, offerID string) (context.Context, func(), error) {
	l.mu.Lock()
	lock, ok := l.locks[offerID]
	if !ok {
		lock = &offerLock{ch: make(chan struct{}, 1)}
		l.locks[offerID] = lock
	}
	lock.refs++
	l.mu.Unlock()

	select {
	case lock.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(offerID, lock, false)
		return nil, nil, ctx.Err()
	}

	var once sync.Once
	return ctx, func() {
		once.Do(func() { l.release(offerID, lock, true) })
	}, nil
}

func (l *OfferLocker) release(offerID string, lock *offerLock, held bool) {
	if held {
		<-lock.ch
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	lock.refs--
	if lock.refs == 0 {
		delete(l.locks, offerID)
	}
}

// TxManager для in-memory хранилища: каждый репозиторий атомарен сам по себе.
type TxManager struct{}

// NewTxManager создаёт no-op менеджер транзакций.
func NewTxManager() TxManager {
	return TxManager{}
}

// WithinTx просто вызывает fn.
func (TxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

var (
	_ domain.OfferLocker = (*OfferLocker)(nil)
	_ domain.TxManager   = TxManager{}
)

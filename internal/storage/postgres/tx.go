package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/offers/internal/domain"
)

// TxManager открывает транзакцию и передаёт её репозиториям через ctx.
type TxManager struct {
	store *Store
}

// NewTxManager создаёт менеджер транзакций.
func NewTxManager(store *Store) *TxManager {
	return &TxManager{store: store}
}

// WithinTx выполняет fn в одной транзакции; вложенный вызов переиспользует внешнюю.
func (m *TxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.store.inTx(ctx, func(ctx context.Context, _ querier) error {
		return fn(ctx)
	})
}

// offerLockNamespace — первый ключ pg_advisory_lock(int, int) для предложений.
// У миграций своё пространство migrationLockNamespace.
const offerLockNamespace = int32(0x0FFE5)

// AdvisoryLocker сериализует пакеты резервирования одного предложения
// между экземплярами сервиса через session-level advisory lock.
type AdvisoryLocker struct {
	store *Store
	// retry ограничивает паузу между попытками занять занятую блокировку.
	minRetry, maxRetry time.Duration
}

// NewAdvisoryLocker создаёт блокировку на advisory locks.
func NewAdvisoryLocker(store *Store) *AdvisoryLocker {
	return &AdvisoryLocker{store: store, minRetry: 10 * time.Millisecond, maxRetry: 250 * time.Millisecond}
}

// Lock занимает блокировку через pg_try_advisory_lock. Ожидающий вызов между
// попытками возвращает соединение в пул, держатель блокировки держит одно соединение.
// Запросы репозиториев с возвращённым ctx идут через это соединение.
func (l *AdvisoryLocker) Lock(ctx context.Context, offerID string) (context.Context, func(), error) {
	key := offerLockKey(offerID)
	delay := l.minRetry
	for {
		conn, acquired, err := l.tryLock(ctx, key)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			return nil, nil, err
		}
		if acquired {
			var once sync.Once
			return context.WithValue(ctx, connKey{}, conn), func() {
				once.Do(func() { l.unlock(conn, offerID, key) })
			}, nil
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, nil, ctx.Err()
		case <-timer.C:
		}
		delay = min(delay*2, l.maxRetry)
	}
}

func (l *AdvisoryLocker) tryLock(ctx context.Context, key int32) (*sql.Conn, bool, error) {
	conn, err := l.store.db.Conn(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1, $2)`, offerLockNamespace, key).Scan(&acquired); err != nil {
		discardConn(conn)
		return nil, false, fmt.Errorf("acquire offer lock: %w", err)
	}
	if !acquired {
		_ = conn.Close()
		return nil, false, nil
	}
	return conn, true, nil
}

func (l *AdvisoryLocker) unlock(conn *sql.Conn, offerID string, key int32) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var released bool
	err := conn.QueryRowContext(ctx, `SELECT pg_advisory_unlock($1, $2)`, offerLockNamespace, key).Scan(&released)
	if err != nil || !released {
		// Соединение с неснятой блокировкой не должно вернуться в пул.
		log.WithError(err).WithField("offer_id", offerID).Warn("offer advisory unlock failed, dropping connection")
		discardConn(conn)
		return
	}
	_ = conn.Close()
}

// discardConn закрывает физическое соединение вместо возврата в пул.
func discardConn(conn *sql.Conn) {
	_ = conn.Raw(func(any) error { return driver.ErrBadConn })
	_ = conn.Close()
}

func offerLockKey(offerID string) int32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(offerID))
	return int32(h.Sum32())
}

var (
	_ domain.TxManager   = (*TxManager)(nil)
	_ domain.OfferLocker = (*AdvisoryLocker)(nil)
)

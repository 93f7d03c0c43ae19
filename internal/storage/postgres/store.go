// Package postgres хранит предложения, историю, outbox, ключи идемпотентности
// и документы в PostgreSQL через pgx.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/vladislavdragonenkov/offers/internal/version"
)

const (
	connectTimeout = 5 * time.Second
	opTimeout      = 5 * time.Second

	codeUniqueViolation = "23505"
)

var errStoreNotInitialized = errors.New("postgres store is not initialized")

// Pool — параметры пула database/sql.
type Pool struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultPool подходит для одного экземпляра сервиса с умеренной нагрузкой.
func DefaultPool() Pool {
	return Pool{
		MaxOpenConns:    25,
		MaxIdleConns:    10,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
	}
}

// Store — подключение к базе предложений.
type Store struct {
	db *sql.DB
}

// Open разбирает dsn, открывает пул через pgx и проверяет доступность базы.
// Без явного pool используется DefaultPool.
func Open(ctx context.Context, dsn string, pool ...Pool) (*Store, error) {
	connCfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if _, ok := connCfg.RuntimeParams["application_name"]; !ok {
		connCfg.RuntimeParams["application_name"] = version.UserAgent("")
	}

	p := DefaultPool()
	if len(pool) > 0 {
		p = pool[0]
	}

	db := stdlib.OpenDB(*connCfg)
	db.SetMaxOpenConns(p.MaxOpenConns)
	db.SetMaxIdleConns(p.MaxIdleConns)
	db.SetConnMaxLifetime(p.ConnMaxLifetime)
	db.SetConnMaxIdleTime(p.ConnMaxIdleTime)

	store := &Store{db: db}
	if err := store.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return store, nil
}

// DB отдаёт пул для миграций и тестов.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errStoreNotInitialized
	}
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	return s.db.PingContext(ctx)
}

// EnsureSchema доводит схему до последней встроенной миграции.
func (s *Store) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, migrationTimeout)
	defer cancel()
	return s.MigrateUp(ctx, 0)
}

// Close безопасно вызывать на nil.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// querier — общее подмножество *sql.DB и *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type (
	txKey   struct{}
	connKey struct{}
)

// q возвращает транзакцию из ctx, затем соединение, удерживающее advisory lock, иначе пул.
func (s *Store) q(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	if conn, ok := ctx.Value(connKey{}).(*sql.Conn); ok {
		return conn
	}
	return s.db
}

// beginTx открывает транзакцию на соединении блокировки, если оно есть в ctx.
func (s *Store) beginTx(ctx context.Context) (*sql.Tx, error) {
	if conn, ok := ctx.Value(connKey{}).(*sql.Conn); ok {
		return conn.BeginTx(ctx, nil)
	}
	return s.db.BeginTx(ctx, nil)
}

// inTx выполняет fn в транзакции из ctx или в новой.
func (s *Store) inTx(ctx context.Context, fn func(ctx context.Context, q querier) error) (err error) {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return fn(ctx, tx)
	}

	tx, err := s.beginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, tx), tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// opContext ограничивает операцию по времени, если вызывающий не задал дедлайн.
func opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, opTimeout)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}

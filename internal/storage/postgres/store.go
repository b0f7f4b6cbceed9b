package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const (
	pingTimeout = 5 * time.Second

	// opTimeout ограничивает одну операцию репозитория поверх контекста запроса.
	opTimeout = 5 * time.Second

	DefaultMaxConns = 25
)

// Коды ошибок PostgreSQL, которые репозитории переводят в доменные ошибки.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

type poolSettings struct {
	maxOpen     int
	maxIdle     int
	maxLifetime time.Duration
	maxIdleTime time.Duration
}

// Option настраивает пул соединений Store.
type Option func(*poolSettings)

// WithMaxConns ограничивает число открытых соединений; простаивающих не больше того же числа.
func WithMaxConns(n int) Option {
	return func(p *poolSettings) {
		if n > 0 {
			p.maxOpen = n
			p.maxIdle = min(p.maxIdle, n)
		}
	}
}

func WithMaxIdleConns(n int) Option {
	return func(p *poolSettings) {
		if n > 0 {
			p.maxIdle = n
		}
	}
}

func WithConnMaxLifetime(d time.Duration) Option {
	return func(p *poolSettings) {
		if d > 0 {
			p.maxLifetime = d
		}
	}
}

// Store владеет пулом *sql.DB поверх драйвера pgx.
type Store struct {
	db *sql.DB
}

// Open подключается к PostgreSQL по dsn и проверяет соединение ping-ом.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	pool := poolSettings{
		maxOpen:     DefaultMaxConns,
		maxIdle:     DefaultMaxConns,
		maxLifetime: 30 * time.Minute,
		maxIdleTime: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(&pool)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}
	db.SetMaxOpenConns(pool.maxOpen)
	db.SetMaxIdleConns(pool.maxIdle)
	db.SetConnMaxLifetime(pool.maxLifetime)
	db.SetConnMaxIdleTime(pool.maxIdleTime)

	store := &Store{db: db}
	if err := store.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return store, nil
}

func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping используется health-чекером readiness.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errStoreNotInitialized
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return s.db.PingContext(ctx)
}

// EnsureSchema применяет все ещё не применённые up-миграции.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.MigrateUp(ctx, 0)
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func hasPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

// isUniqueViolation: повтор имени категории или ID записи.
func isUniqueViolation(err error) bool {
	return hasPgCode(err, pgUniqueViolation)
}

// isForeignKeyViolation: блюдо ссылается на несуществующую категорию.
func isForeignKeyViolation(err error) bool {
	return hasPgCode(err, pgForeignKeyViolation)
}

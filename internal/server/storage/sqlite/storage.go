package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/iudanet/opsync/internal/server/storage"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Storage журнал операций сервера в SQLite.
// Одно соединение: батч push выполняется в транзакции, и две параллельные
// отправки одной операции не могут вставить её дважды.
type Storage struct {
	db *sql.DB
}

var (
	_ storage.OperationStorage = (*Storage)(nil)
	_ storage.ArchiveStorage   = (*Storage)(nil)
)

var pragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA foreign_keys = ON",
	"PRAGMA busy_timeout = 5000",
}

// New открывает базу и накатывает миграции.
// ":memory:" создает базу в памяти для тестов.
func New(ctx context.Context, dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Storage{db: db}
	if err := s.init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Storage) init(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	for _, pragma := range pragmas {
		if _, err := s.db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to set %q: %w", pragma, err)
		}
	}

	if err := s.migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (s *Storage) migrate(ctx context.Context) error {
	migrations, err := fs.Sub(embedMigrations, "migrations")
	if err != nil {
		return err
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, s.db, migrations)
	if err != nil {
		return fmt.Errorf("goose provider: %w", err)
	}

	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

// PingContext проверяет соединение, используется health check
func (s *Storage) PingContext(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close закрывает соединение с базой
func (s *Storage) Close() error {
	return s.db.Close()
}

// DB отдает соединение тестам
func (s *Storage) DB() *sql.DB {
	return s.db
}

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/ruslano69/tdtp-export/pkg/adapters"
	"github.com/ruslano69/tdtp-export/pkg/adapters/base"
	_ "modernc.org/sqlite"
)

const driverSqlite = "sqlite"

// Compile-time check: Adapter должен реализовывать интерфейс adapters.Adapter
var _ adapters.Adapter = (*Adapter)(nil)

// Регистрация адаптера в глобальной фабрике
func init() {
	adapters.Register("sqlite", func() adapters.Adapter {
		return &Adapter{}
	})
}

// Adapter представляет адаптер для работы с SQLite
type Adapter struct {
	db *sql.DB
}

// Connect устанавливает подключение к SQLite
func (a *Adapter) Connect(ctx context.Context, cfg adapters.Config) error {
	db, err := sql.Open(driverSqlite, cfg.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// Каждое подключение к :memory: - отдельная база, держим одно
	if strings.Contains(cfg.DSN, ":memory:") || strings.Contains(cfg.DSN, "mode=memory") {
		db.SetMaxOpenConns(1)
	} else if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}

	if err := base.PingWithTimeout(ctx, cfg.Timeout, db.PingContext); err != nil {
		db.Close()
		return err
	}

	a.db = db

	if err := a.applyPragmas(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to apply PRAGMA settings: %w", err)
	}

	return nil
}

// applyPragmas настраивает SQLite для массовой вставки
func (a *Adapter) applyPragmas(ctx context.Context) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := a.db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// Close закрывает соединение с БД
func (a *Adapter) Close(ctx context.Context) error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// Ping проверяет доступность БД
func (a *Adapter) Ping(ctx context.Context) error {
	if a.db == nil {
		return fmt.Errorf("adapter not connected")
	}
	return a.db.PingContext(ctx)
}

// GetDatabaseType возвращает тип СУБД
func (a *Adapter) GetDatabaseType() string {
	return "sqlite"
}

// BeginInsert начинает транзакцию с подготовленным INSERT
func (a *Adapter) BeginInsert(ctx context.Context, table string, columns []string) (adapters.InsertTx, error) {
	return base.BeginSQLInsert(ctx, a.db, adapters.DialectSQLite, table, columns, IsSchemaError)
}

// DB возвращает *sql.DB для прямого доступа
func (a *Adapter) DB() *sql.DB {
	return a.db
}

// IsSchemaError узнает сообщения SQLite об отсутствующей таблице или колонке.
// Код у них общий (SQLITE_ERROR), различаются только тексты.
func IsSchemaError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "no such table") ||
		strings.Contains(msg, "no such column") ||
		strings.Contains(msg, "has no column named")
}

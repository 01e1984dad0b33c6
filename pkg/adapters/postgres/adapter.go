package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/zeebo/xxh3"

	"github.com/ruslano69/tdtp-export/pkg/adapters"
	"github.com/ruslano69/tdtp-export/pkg/adapters/base"
)

// Compile-time check: Adapter должен реализовывать интерфейс adapters.Adapter
var _ adapters.Adapter = (*Adapter)(nil)

// Регистрация адаптера в глобальной фабрике
func init() {
	adapters.Register("postgres", func() adapters.Adapter {
		return &Adapter{}
	})
}

// Adapter представляет адаптер для работы с PostgreSQL через pgx
type Adapter struct {
	pool   *pgxpool.Pool
	schema string
}

// Connect устанавливает подключение к PostgreSQL
func (a *Adapter) Connect(ctx context.Context, cfg adapters.Config) error {
	config, err := PoolConfig(cfg)
	if err != nil {
		return err
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := base.PingWithTimeout(ctx, cfg.Timeout, pool.Ping); err != nil {
		pool.Close()
		return err
	}

	a.pool = pool
	a.schema = cfg.Schema
	if a.schema == "" {
		a.schema = "public"
	}
	return nil
}

// PoolConfig разбирает DSN и настраивает размер пула
func PoolConfig(cfg adapters.Config) (*pgxpool.Config, error) {
	config, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	if cfg.MaxConns > 0 {
		config.MaxConns = int32(cfg.MaxConns)
	} else {
		config.MaxConns = 10
	}

	if cfg.MinConns > 0 {
		config.MinConns = int32(cfg.MinConns)
	} else {
		config.MinConns = 1
	}

	if cfg.Timeout > 0 {
		config.ConnConfig.ConnectTimeout = cfg.Timeout
	}

	return config, nil
}

// Close закрывает connection pool
func (a *Adapter) Close(ctx context.Context) error {
	if a.pool != nil {
		a.pool.Close()
	}
	return nil
}

// Ping проверяет доступность БД
func (a *Adapter) Ping(ctx context.Context) error {
	if a.pool == nil {
		return fmt.Errorf("adapter not connected")
	}
	return a.pool.Ping(ctx)
}

// GetDatabaseType возвращает тип СУБД
func (a *Adapter) GetDatabaseType() string {
	return "postgres"
}

// BeginInsert начинает транзакцию и подготавливает INSERT на ее соединении
func (a *Adapter) BeginInsert(ctx context.Context, table string, columns []string) (adapters.InsertTx, error) {
	if a.pool == nil {
		return nil, fmt.Errorf("adapter not connected")
	}

	query, err := base.BuildInsert(adapters.DialectPostgres, base.QualifyTable(a.schema, table), columns)
	if err != nil {
		return nil, err
	}

	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	name := StatementName(query)
	if _, err := tx.Prepare(ctx, name, query); err != nil {
		tx.Rollback(ctx)
		return nil, fmt.Errorf("failed to prepare statement: %w", adapters.MarkSchemaError(err, IsSchemaError))
	}

	return &insertTx{tx: tx, name: name, columns: len(columns)}, nil
}

// StatementName - имя подготовленного statement по тексту запроса.
// Одинаковый запрос на одном соединении переиспользует statement.
func StatementName(query string) string {
	return fmt.Sprintf("tdtp_insert_%016x", xxh3.HashString(query))
}

// insertTx - InsertTx поверх pgx.Tx
type insertTx struct {
	tx      pgx.Tx
	name    string
	columns int
}

func (t *insertTx) NewStatement() *adapters.ParamStatement {
	return adapters.NewParamStatement(adapters.DialectPostgres, t.columns)
}

func (t *insertTx) Exec(ctx context.Context, stmt *adapters.ParamStatement) error {
	args, err := stmt.Args()
	if err != nil {
		return err
	}
	if _, err := t.tx.Exec(ctx, t.name, args...); err != nil {
		return fmt.Errorf("failed to execute insert: %w", adapters.MarkSchemaError(err, IsSchemaError))
	}
	return nil
}

func (t *insertTx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (t *insertTx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && err != pgx.ErrTxClosed {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	return nil
}

// IsSchemaError: SQLSTATE undefined_table (42P01) и undefined_column (42703)
func IsSchemaError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "42P01" || pgErr.Code == "42703"
}

package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/ruslano69/tdtp-export/pkg/adapters"
	"github.com/ruslano69/tdtp-export/pkg/adapters/base"
)

var _ adapters.Adapter = (*Adapter)(nil)

func init() {
	adapters.Register("mysql", func() adapters.Adapter {
		return &Adapter{}
	})
}

// Adapter представляет адаптер для работы с MySQL
type Adapter struct {
	db     *sql.DB
	config *mysql.Config
}

// Connect устанавливает подключение к MySQL
func (a *Adapter) Connect(ctx context.Context, cfg adapters.Config) error {
	mc, err := ParseConfig(cfg)
	if err != nil {
		return err
	}

	connector, err := mysql.NewConnector(mc)
	if err != nil {
		return fmt.Errorf("failed to create connector: %w", err)
	}

	db := sql.OpenDB(connector)
	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		db.SetMaxIdleConns(cfg.MinConns)
	}

	if err := base.PingWithTimeout(ctx, cfg.Timeout, db.PingContext); err != nil {
		db.Close()
		return err
	}

	a.db = db
	a.config = mc
	return nil
}

// ParseConfig разбирает DSN и применяет настройки экспортера
func ParseConfig(cfg adapters.Config) (*mysql.Config, error) {
	mc, err := mysql.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse MySQL DSN: %w", err)
	}
	if cfg.Timeout > 0 && mc.Timeout == 0 {
		mc.Timeout = cfg.Timeout
	}
	return mc, nil
}

func (a *Adapter) Close(ctx context.Context) error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

func (a *Adapter) Ping(ctx context.Context) error {
	if a.db == nil {
		return fmt.Errorf("adapter not connected")
	}
	return a.db.PingContext(ctx)
}

func (a *Adapter) GetDatabaseType() string {
	return "mysql"
}

// BeginInsert начинает транзакцию с подготовленным INSERT
func (a *Adapter) BeginInsert(ctx context.Context, table string, columns []string) (adapters.InsertTx, error) {
	tx, err := base.BeginSQLInsert(ctx, a.db, adapters.DialectMySQL, table, columns, IsSchemaError)
	if err != nil {
		return nil, describeError(err)
	}
	return tx, nil
}

// describeError дополняет ошибку кодом MySQL, если он есть
func describeError(err error) error {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return fmt.Errorf("mysql error %d: %w", mysqlErr.Number, err)
	}
	return err
}

// IsSchemaError: ER_NO_SUCH_TABLE (1146) и ER_BAD_FIELD_ERROR (1054)
func IsSchemaError(err error) bool {
	var mysqlErr *mysql.MySQLError
	if !errors.As(err, &mysqlErr) {
		return false
	}
	return mysqlErr.Number == 1146 || mysqlErr.Number == 1054
}

package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	mssqldb "github.com/denisenkom/go-mssqldb"

	"github.com/ruslano69/tdtp-export/pkg/adapters"
	"github.com/ruslano69/tdtp-export/pkg/adapters/base"
)

// AdapterType - имя адаптера в фабрике
const AdapterType = "mssql"

var _ adapters.Adapter = (*Adapter)(nil)

func init() {
	adapters.Register(AdapterType, func() adapters.Adapter {
		return &Adapter{}
	})
}

// Adapter представляет адаптер для работы с MS SQL Server.
// Параметры передаются как @p1..@pN.
type Adapter struct {
	db     *sql.DB
	schema string
}

// Connect устанавливает подключение к MS SQL Server
func (a *Adapter) Connect(ctx context.Context, cfg adapters.Config) error {
	connector, err := mssqldb.NewConnector(cfg.DSN)
	if err != nil {
		return fmt.Errorf("failed to parse MS SQL connection string: %w", err)
	}

	db := sql.OpenDB(connector)
	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}

	if err := base.PingWithTimeout(ctx, cfg.Timeout, db.PingContext); err != nil {
		db.Close()
		return err
	}

	a.db = db
	a.schema = cfg.Schema
	if a.schema == "" {
		a.schema = "dbo"
	}
	return nil
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
	return AdapterType
}

// BeginInsert начинает транзакцию с подготовленным INSERT в [schema].[table]
func (a *Adapter) BeginInsert(ctx context.Context, table string, columns []string) (adapters.InsertTx, error) {
	return base.BeginSQLInsert(ctx, a.db, adapters.DialectMSSQL, base.QualifyTable(a.schema, table), columns, IsSchemaError)
}

// IsSchemaError: Invalid object name (208) и Invalid column name (207)
func IsSchemaError(err error) bool {
	var sqlErr mssqldb.Error
	if !errors.As(err, &sqlErr) {
		return false
	}
	return sqlErr.Number == 208 || sqlErr.Number == 207
}

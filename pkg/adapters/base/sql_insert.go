package base

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ruslano69/tdtp-export/pkg/adapters"
)

var _ adapters.InsertTx = (*SQLInsertTx)(nil)

// SQLInsertTx - InsertTx поверх database/sql (SQLite, MySQL, MS SQL)
type SQLInsertTx struct {
	dialect  adapters.Dialect
	columns  int
	tx       *sql.Tx
	stmt     *sql.Stmt
	isSchema adapters.SchemaClassifier
}

// BeginSQLInsert начинает транзакцию и подготавливает INSERT.
// Ошибки, которые узнает isSchema, помечаются adapters.ErrSchemaMismatch:
// драйвер может сообщить об отсутствующей таблице при подготовке или только при первом Exec.
func BeginSQLInsert(ctx context.Context, db *sql.DB, dialect adapters.Dialect, table string, columns []string, isSchema adapters.SchemaClassifier) (*SQLInsertTx, error) {
	if db == nil {
		return nil, fmt.Errorf("adapter not connected")
	}

	query, err := BuildInsert(dialect, table, columns)
	if err != nil {
		return nil, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to prepare statement: %w", adapters.MarkSchemaError(err, isSchema))
	}

	return &SQLInsertTx{
		dialect:  dialect,
		columns:  len(columns),
		tx:       tx,
		stmt:     stmt,
		isSchema: isSchema,
	}, nil
}

func (t *SQLInsertTx) NewStatement() *adapters.ParamStatement {
	return adapters.NewParamStatement(t.dialect, t.columns)
}

func (t *SQLInsertTx) Exec(ctx context.Context, stmt *adapters.ParamStatement) error {
	args, err := stmt.Args()
	if err != nil {
		return err
	}
	if _, err := t.stmt.ExecContext(ctx, args...); err != nil {
		return fmt.Errorf("failed to execute insert: %w", adapters.MarkSchemaError(err, t.isSchema))
	}
	return nil
}

func (t *SQLInsertTx) Commit(ctx context.Context) error {
	t.stmt.Close()
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (t *SQLInsertTx) Rollback(ctx context.Context) error {
	t.stmt.Close()
	if err := t.tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	return nil
}

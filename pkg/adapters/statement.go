package adapters

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/ruslano69/tdtp-export/pkg/core/schema"
)

// Dialect определяет, как значения параметров передаются драйверу
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
	DialectMSSQL    Dialect = "mssql"
)

// ErrUnboundParameter - позиция INSERT осталась без значения
var ErrUnboundParameter = errors.New("unbound parameter")

// ParamStatement собирает позиционные параметры одной строки
// и отдает их драйверу как срез аргументов.
type ParamStatement struct {
	dialect Dialect
	args    []any
	bound   []bool
}

// NewParamStatement создает набор из n параметров для диалекта
func NewParamStatement(dialect Dialect, n int) *ParamStatement {
	return &ParamStatement{
		dialect: dialect,
		args:    make([]any, n),
		bound:   make([]bool, n),
	}
}

// Dialect возвращает диалект statement
func (s *ParamStatement) Dialect() Dialect {
	return s.dialect
}

// Len возвращает количество позиций
func (s *ParamStatement) Len() int {
	return len(s.args)
}

func (s *ParamStatement) set(pos int, v any) error {
	if pos < 1 || pos > len(s.args) {
		return fmt.Errorf("parameter position %d out of range [1, %d]", pos, len(s.args))
	}
	s.args[pos-1] = v
	s.bound[pos-1] = true
	return nil
}

func (s *ParamStatement) SetString(pos int, v string) error {
	return s.set(pos, v)
}

func (s *ParamStatement) SetFloat64(pos int, v float64) error {
	return s.set(pos, v)
}

// SetBool передает boolean. SQLite хранит boolean как 1/0.
func (s *ParamStatement) SetBool(pos int, v bool) error {
	if s.dialect == DialectSQLite {
		if v {
			return s.set(pos, int64(1))
		}
		return s.set(pos, int64(0))
	}
	return s.set(pos, v)
}

func (s *ParamStatement) SetInt32(pos int, v int32) error {
	return s.set(pos, v)
}

func (s *ParamStatement) SetInt64(pos int, v int64) error {
	return s.set(pos, v)
}

// SetNull передает типизированный NULL: pgtype для PostgreSQL, sql.Null* для остальных
func (s *ParamStatement) SetNull(pos int, t schema.SQLType) error {
	if s.dialect == DialectPostgres {
		return s.set(pos, pgNull(t))
	}
	return s.set(pos, sqlNull(t))
}

// Args возвращает аргументы для Exec. Ошибка, если какая-то позиция не установлена.
func (s *ParamStatement) Args() ([]any, error) {
	for i, ok := range s.bound {
		if !ok {
			return nil, fmt.Errorf("%w at position %d", ErrUnboundParameter, i+1)
		}
	}
	out := make([]any, len(s.args))
	copy(out, s.args)
	return out, nil
}

// Reset очищает параметры для повторного использования
func (s *ParamStatement) Reset() {
	clear(s.args)
	clear(s.bound)
}

// sqlNull возвращает NULL значение database/sql для SQL типа
func sqlNull(t schema.SQLType) any {
	switch t {
	case schema.SQLDouble:
		return sql.NullFloat64{}
	case schema.SQLBoolean:
		return sql.NullBool{}
	case schema.SQLInteger:
		return sql.NullInt32{}
	case schema.SQLBigint:
		return sql.NullInt64{}
	default:
		return sql.NullString{}
	}
}

// pgNull возвращает NULL значение pgtype, чтобы pgx отправил NULL с нужным OID
func pgNull(t schema.SQLType) any {
	switch t {
	case schema.SQLDouble:
		return pgtype.Float8{}
	case schema.SQLBoolean:
		return pgtype.Bool{}
	case schema.SQLInteger:
		return pgtype.Int4{}
	case schema.SQLBigint:
		return pgtype.Int8{}
	default:
		return pgtype.Text{}
	}
}

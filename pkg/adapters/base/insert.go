package base

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ruslano69/tdtp-export/pkg/adapters"
)

// QuoteIdentifier экранирует идентификатор по правилам диалекта
// PostgreSQL/SQLite: "name", MySQL: `name`, MS SQL: [name]
func QuoteIdentifier(dialect adapters.Dialect, name string) string {
	switch dialect {
	case adapters.DialectMySQL:
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	case adapters.DialectMSSQL:
		return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
	default:
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	}
}

// QuoteTable экранирует имя таблицы, допускается квалификация схемой: schema.table
func QuoteTable(dialect adapters.Dialect, table string) string {
	parts := strings.Split(table, ".")
	for i, p := range parts {
		parts[i] = QuoteIdentifier(dialect, p)
	}
	return strings.Join(parts, ".")
}

// QualifyTable добавляет схему к имени таблицы, если таблица еще не квалифицирована
func QualifyTable(schemaName, table string) string {
	if schemaName == "" || strings.Contains(table, ".") {
		return table
	}
	return schemaName + "." + table
}

// Placeholder возвращает плейсхолдер параметра с позицией pos (с 1)
// SQLite/MySQL: ?, PostgreSQL: $1, MS SQL: @p1
func Placeholder(dialect adapters.Dialect, pos int) string {
	switch dialect {
	case adapters.DialectPostgres:
		return fmt.Sprintf("$%d", pos)
	case adapters.DialectMSSQL:
		return fmt.Sprintf("@p%d", pos)
	default:
		return "?"
	}
}

// BuildInsert строит INSERT INTO table (cols) VALUES (...)
func BuildInsert(dialect adapters.Dialect, table string, columns []string) (string, error) {
	if table == "" {
		return "", fmt.Errorf("table name is required")
	}
	if len(columns) == 0 {
		return "", fmt.Errorf("at least one column is required")
	}

	quoted := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	for i, col := range columns {
		if col == "" {
			return "", fmt.Errorf("column %d has empty name", i)
		}
		quoted[i] = QuoteIdentifier(dialect, col)
		placeholders[i] = Placeholder(dialect, i+1)
	}

	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		QuoteTable(dialect, table),
		strings.Join(quoted, ", "),
		strings.Join(placeholders, ", ")), nil
}

// PingWithTimeout проверяет подключение с ограничением по времени (0 = без ограничения)
func PingWithTimeout(ctx context.Context, timeout time.Duration, ping func(context.Context) error) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

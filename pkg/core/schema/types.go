package schema

import (
	"fmt"
	"strings"
)

// Tag - канонический тип, по которому RowBinder выбирает конвертацию значения
type Tag string

// Канонические теги. Набор фиксирован, логические имена типов
// сопоставляются с ними через TypeMapping.
const (
	TagText      Tag = "text"
	TagFloating  Tag = "floating"
	TagBoolean   Tag = "boolean"
	TagInteger32 Tag = "integer32"
	TagInteger64 Tag = "integer64"
)

// Tags возвращает все канонические теги в порядке объявления
func Tags() []Tag {
	return []Tag{TagText, TagFloating, TagBoolean, TagInteger32, TagInteger64}
}

// ParseTag разбирает имя тега без учета регистра
func ParseTag(s string) (Tag, error) {
	t := Tag(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", fmt.Errorf("unknown canonical tag %q (expected one of %v)", s, Tags())
	}
	return t, nil
}

// IsValid проверяет что тег входит в канонический набор
func (t Tag) IsValid() bool {
	switch t {
	case TagText, TagFloating, TagBoolean, TagInteger32, TagInteger64:
		return true
	default:
		return false
	}
}

// NullType возвращает SQL тип, с которым биндится NULL для данного тега.
// Для неизвестного тега возвращается VARCHAR, как для текстового фолбэка.
func (t Tag) NullType() SQLType {
	switch t {
	case TagFloating:
		return SQLDouble
	case TagBoolean:
		return SQLBoolean
	case TagInteger32:
		return SQLInteger
	case TagInteger64:
		return SQLBigint
	default:
		return SQLVarchar
	}
}

// SQLType - код SQL типа для NULL параметров.
// Значения совпадают с нумерацией java.sql.Types, чтобы коды были стабильны
// между адаптерами и читались в логах одинаково.
type SQLType int

const (
	SQLVarchar SQLType = 12
	SQLDouble  SQLType = 8
	SQLBoolean SQLType = 16
	SQLInteger SQLType = 4
	SQLBigint  SQLType = -5
)

func (t SQLType) String() string {
	switch t {
	case SQLVarchar:
		return "VARCHAR"
	case SQLDouble:
		return "DOUBLE"
	case SQLBoolean:
		return "BOOLEAN"
	case SQLInteger:
		return "INTEGER"
	case SQLBigint:
		return "BIGINT"
	default:
		return fmt.Sprintf("SQLType(%d)", int(t))
	}
}

package binder

import (
	"strconv"

	"github.com/ruslano69/tdtp-export/pkg/core/schema"
)

// converter разбирает текстовое значение в Go значение для канонического тега
type converter func(raw string) (any, error)

// converters - таблица конвертации по каноническому тегу.
// Новый тег добавляется записью в таблицу, цикл биндинга не меняется.
var converters = map[schema.Tag]converter{
	schema.TagText: func(raw string) (any, error) {
		return raw, nil
	},
	schema.TagFloating: func(raw string) (any, error) {
		return strconv.ParseFloat(raw, 64)
	},
	schema.TagBoolean: func(raw string) (any, error) {
		return strconv.ParseBool(raw)
	},
	schema.TagInteger32: func(raw string) (any, error) {
		v, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			return nil, err
		}
		return int32(v), nil
	},
	schema.TagInteger64: func(raw string) (any, error) {
		return strconv.ParseInt(raw, 10, 64)
	},
}

// Package binder превращает текстовую строку с логическими типами колонок
// в типизированные позиционные параметры подготовленного INSERT.
//
// Для каждой колонки i логическое имя типа ищется в schema.TypeMapping:
//   - неизвестный тип биндится как текст, в Diagnostics уходит предупреждение;
//   - значение NullSentinel биндится как SQL NULL с типом канонического тега;
//   - остальные значения разбираются по тегу (text, floating, boolean, integer32, integer64).
//
// Строка биндится атомарно: все значения сначала конвертируются и только затем
// устанавливаются в statement. При ошибке конвертации statement не трогается.
package binder

import (
	"fmt"
	"strings"

	"github.com/ruslano69/tdtp-export/pkg/core/schema"
)

// NullSentinel - текстовое значение, означающее SQL NULL.
// Строковое значение "NULL" от NULL не отличается: так устроен формат строк стадии извлечения.
const NullSentinel = "NULL"

// RowBinder биндит строки в statement. Не хранит состояния между вызовами,
// один экземпляр можно использовать из любого количества горутин.
type RowBinder struct {
	mapping schema.TypeMapping
	diag    Diagnostics
}

// NewRowBinder создает RowBinder. diag == nil отключает предупреждения.
func NewRowBinder(mapping schema.TypeMapping, diag Diagnostics) *RowBinder {
	if diag == nil {
		diag = NopDiagnostics{}
	}
	return &RowBinder{
		mapping: mapping,
		diag:    diag,
	}
}

// Mapping возвращает сопоставление типов биндера
func (b *RowBinder) Mapping() schema.TypeMapping {
	return b.mapping
}

// Bind конвертирует row по types и устанавливает параметры в stmt (позиция = индекс + 1).
// Возвращает *BindError при несовпадении длин или ошибке конвертации;
// в этом случае ни один параметр не установлен.
func (b *RowBinder) Bind(row, types []string, stmt Statement) error {
	params, err := b.Params(row, types)
	if err != nil {
		return err
	}

	for _, p := range params {
		if err := p.Apply(stmt); err != nil {
			return fmt.Errorf("failed to set parameter %d: %w", p.Position, err)
		}
	}

	return nil
}

// Params конвертирует строку в список параметров, не трогая statement
func (b *RowBinder) Params(row, types []string) ([]Param, error) {
	if len(row) != len(types) {
		return nil, &BindError{
			Kind:   KindShapeMismatch,
			Column: -1,
			Values: len(row),
			Types:  len(types),
		}
	}

	params := make([]Param, len(row))
	for i, raw := range row {
		pos := i + 1

		tag, ok := b.mapping.Lookup(types[i])
		if !ok {
			name := strings.ToLower(types[i])
			b.diag.Warn(fmt.Sprintf("unknown column type %q at column %d, binding as text", name, i))
			if o, ok := b.diag.(TypeObserver); ok {
				o.UnknownType(name, i)
			}
			params[i] = Param{Position: pos, Tag: schema.TagText, Value: raw}
			continue
		}

		if raw == NullSentinel {
			params[i] = Param{Position: pos, Tag: tag, Null: true, NullType: tag.NullType()}
			continue
		}

		convert, ok := converters[tag]
		if !ok {
			// Тег прошел валидацию TypeMapping, но конвертера нет
			return nil, &BindError{Kind: KindValueConversion, Column: i, Value: raw, Target: tag,
				Err: fmt.Errorf("no converter for tag %s", tag)}
		}

		value, err := convert(raw)
		if err != nil {
			return nil, &BindError{
				Kind:   KindValueConversion,
				Column: i,
				Value:  raw,
				Target: tag,
				Err:    err,
			}
		}
		params[i] = Param{Position: pos, Tag: tag, Value: value}
	}

	return params, nil
}

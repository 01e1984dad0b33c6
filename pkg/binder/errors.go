package binder

import (
	"errors"
	"fmt"

	"github.com/ruslano69/tdtp-export/pkg/core/schema"
)

// Kind - категория ошибки биндинга
type Kind int

const (
	// KindValueConversion - текст не разбирается как целевой тип, строка отбрасывается
	KindValueConversion Kind = iota + 1
	// KindShapeMismatch - длина строки не совпадает с количеством типов (ошибка вызывающего)
	KindShapeMismatch
)

func (k Kind) String() string {
	switch k {
	case KindValueConversion:
		return "value_conversion"
	case KindShapeMismatch:
		return "shape_mismatch"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Сентинелы для errors.Is
var (
	ErrValueConversion = errors.New("value conversion failed")
	ErrShapeMismatch   = errors.New("row shape mismatch")
)

// BindError - ошибка биндинга строки. Ни один параметр statement при этом не установлен.
type BindError struct {
	Kind Kind

	// Column - индекс колонки (с 0) для KindValueConversion
	Column int
	// Value - исходное текстовое значение
	Value string
	// Target - канонический тег, в который не удалось сконвертировать
	Target schema.Tag

	// Values и Types - длины строки и дескриптора для KindShapeMismatch
	Values int
	Types  int

	// Err - исходная ошибка разбора
	Err error
}

func (e *BindError) Error() string {
	switch e.Kind {
	case KindShapeMismatch:
		return fmt.Sprintf("%s: %d values for %d column types", ErrShapeMismatch, e.Values, e.Types)
	default:
		msg := fmt.Sprintf("%s: column %d value %q is not a valid %s", ErrValueConversion, e.Column, e.Value, e.Target)
		if e.Err != nil {
			msg += ": " + e.Err.Error()
		}
		return msg
	}
}

// Unwrap позволяет проверять как сентинел категории, так и исходную ошибку strconv
func (e *BindError) Unwrap() []error {
	var sentinel error
	switch e.Kind {
	case KindShapeMismatch:
		sentinel = ErrShapeMismatch
	default:
		sentinel = ErrValueConversion
	}
	if e.Err == nil {
		return []error{sentinel}
	}
	return []error{sentinel, e.Err}
}

// AsBindError достает *BindError из цепочки ошибок
func AsBindError(err error) (*BindError, bool) {
	var be *BindError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

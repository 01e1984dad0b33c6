package binder

import (
	"fmt"
	"sort"

	"github.com/ruslano69/tdtp-export/pkg/core/schema"
)

// Statement - позиционные параметры подготовленного INSERT.
// Позиции нумеруются с 1, как в prepared statement.
type Statement interface {
	SetString(pos int, v string) error
	SetFloat64(pos int, v float64) error
	SetBool(pos int, v bool) error
	SetInt32(pos int, v int32) error
	SetInt64(pos int, v int64) error
	SetNull(pos int, t schema.SQLType) error
}

// Param - один подготовленный к установке параметр
type Param struct {
	Position int
	Tag      schema.Tag
	Null     bool
	NullType schema.SQLType

	// Value: string, float64, bool, int32 или int64 (nil для NULL)
	Value any
}

// Apply устанавливает параметр в statement
func (p Param) Apply(stmt Statement) error {
	if p.Null {
		return stmt.SetNull(p.Position, p.NullType)
	}

	switch v := p.Value.(type) {
	case string:
		return stmt.SetString(p.Position, v)
	case float64:
		return stmt.SetFloat64(p.Position, v)
	case bool:
		return stmt.SetBool(p.Position, v)
	case int32:
		return stmt.SetInt32(p.Position, v)
	case int64:
		return stmt.SetInt64(p.Position, v)
	default:
		return fmt.Errorf("unsupported parameter value %T at position %d", p.Value, p.Position)
	}
}

func (p Param) String() string {
	if p.Null {
		return fmt.Sprintf("$%d=NULL(%s)", p.Position, p.NullType)
	}
	return fmt.Sprintf("$%d=%v(%s)", p.Position, p.Value, p.Tag)
}

// Recorder - Statement в памяти, запоминает установленные параметры.
// Используется для dry-run и в тестах. Нулевое значение готово к работе.
type Recorder struct {
	params map[int]Param
}

// NewRecorder создает пустой Recorder
func NewRecorder() *Recorder {
	return &Recorder{params: make(map[int]Param)}
}

func (r *Recorder) set(p Param) error {
	if p.Position < 1 {
		return fmt.Errorf("invalid parameter position %d", p.Position)
	}
	if r.params == nil {
		r.params = make(map[int]Param)
	}
	r.params[p.Position] = p
	return nil
}

func (r *Recorder) SetString(pos int, v string) error {
	return r.set(Param{Position: pos, Tag: schema.TagText, Value: v})
}

func (r *Recorder) SetFloat64(pos int, v float64) error {
	return r.set(Param{Position: pos, Tag: schema.TagFloating, Value: v})
}

func (r *Recorder) SetBool(pos int, v bool) error {
	return r.set(Param{Position: pos, Tag: schema.TagBoolean, Value: v})
}

func (r *Recorder) SetInt32(pos int, v int32) error {
	return r.set(Param{Position: pos, Tag: schema.TagInteger32, Value: v})
}

func (r *Recorder) SetInt64(pos int, v int64) error {
	return r.set(Param{Position: pos, Tag: schema.TagInteger64, Value: v})
}

func (r *Recorder) SetNull(pos int, t schema.SQLType) error {
	return r.set(Param{Position: pos, Null: true, NullType: t})
}

// Len возвращает количество установленных параметров
func (r *Recorder) Len() int {
	return len(r.params)
}

// Params возвращает параметры в порядке позиций
func (r *Recorder) Params() []Param {
	out := make([]Param, 0, len(r.params))
	for _, p := range r.params {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

// Get возвращает параметр на позиции
func (r *Recorder) Get(pos int) (Param, bool) {
	p, ok := r.params[pos]
	return p, ok
}

// Reset очищает все параметры
func (r *Recorder) Reset() {
	clear(r.params)
}

package schema

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Встроенные логические имена типов, которые выдает стадия извлечения
const (
	LogicalString  = "string"
	LogicalDouble  = "double"
	LogicalBoolean = "boolean"
	LogicalInt     = "int"
	LogicalLong    = "long"
)

// TypeMapping сопоставляет логическое имя типа (в нижнем регистре) каноническому тегу.
// После создания не изменяется, поэтому безопасна для одновременного чтения
// из любого количества горутин.
type TypeMapping struct {
	tags map[string]Tag
}

// DefaultTypeMapping возвращает встроенное сопоставление
func DefaultTypeMapping() TypeMapping {
	return TypeMapping{tags: map[string]Tag{
		LogicalString:  TagText,
		LogicalDouble:  TagFloating,
		LogicalBoolean: TagBoolean,
		LogicalInt:     TagInteger32,
		LogicalLong:    TagInteger64,
	}}
}

// NewTypeMapping строит сопоставление из пар "логическое имя -> имя тега".
// Ключи приводятся к нижнему регистру, теги проверяются.
func NewTypeMapping(raw map[string]string) (TypeMapping, error) {
	tags := make(map[string]Tag, len(raw))
	for name, tagName := range raw {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			return TypeMapping{}, fmt.Errorf("type mapping: empty logical type name")
		}
		tag, err := ParseTag(tagName)
		if err != nil {
			return TypeMapping{}, fmt.Errorf("type mapping: %s: %w", name, err)
		}
		if prev, dup := tags[key]; dup && prev != tag {
			return TypeMapping{}, fmt.Errorf("type mapping: %q mapped to both %s and %s", key, prev, tag)
		}
		tags[key] = tag
	}
	return TypeMapping{tags: tags}, nil
}

// Lookup возвращает тег для логического имени (регистр не важен)
func (m TypeMapping) Lookup(name string) (Tag, bool) {
	tag, ok := m.tags[strings.ToLower(name)]
	return tag, ok
}

// With возвращает копию сопоставления с добавленным (или замененным) типом
func (m TypeMapping) With(name string, tag Tag) TypeMapping {
	tags := make(map[string]Tag, len(m.tags)+1)
	for k, v := range m.tags {
		tags[k] = v
	}
	tags[strings.ToLower(name)] = tag
	return TypeMapping{tags: tags}
}

// Merge возвращает копию, в которой записи other перекрывают записи m
func (m TypeMapping) Merge(other TypeMapping) TypeMapping {
	merged := m
	for _, name := range other.Names() {
		merged = merged.With(name, other.tags[name])
	}
	return merged
}

// Names возвращает отсортированный список логических имен
func (m TypeMapping) Names() []string {
	names := make([]string, 0, len(m.tags))
	for name := range m.tags {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len возвращает количество логических типов
func (m TypeMapping) Len() int {
	return len(m.tags)
}

// MappingFile - формат YAML файла с сопоставлением типов
//
//	replace_defaults: false
//	types:
//	  varchar: text
//	  bigint: integer64
type MappingFile struct {
	ReplaceDefaults bool              `yaml:"replace_defaults"`
	Types           map[string]string `yaml:"types"`
}

// LoadTypeMapping загружает сопоставление из YAML файла.
// Записи файла накладываются на встроенные, если не задан replace_defaults.
func LoadTypeMapping(path string) (TypeMapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return TypeMapping{}, fmt.Errorf("failed to read type mapping file: %w", err)
	}

	var file MappingFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return TypeMapping{}, fmt.Errorf("failed to parse type mapping YAML: %w", err)
	}

	return file.Build()
}

// Build строит TypeMapping из содержимого файла
func (f MappingFile) Build() (TypeMapping, error) {
	custom, err := NewTypeMapping(f.Types)
	if err != nil {
		return TypeMapping{}, err
	}
	if f.ReplaceDefaults {
		return custom, nil
	}
	return DefaultTypeMapping().Merge(custom), nil
}

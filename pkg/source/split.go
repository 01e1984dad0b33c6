package source

import "strings"

// SplitTDTP разбирает строку формата TDTP: значения разделены |,
// \| и \\ - экранированные символы. Строка обходится по байтам,
// байты вне UTF-8 попадают в значение без изменений.
func SplitTDTP(line string) []string {
	values := []string{}
	var current strings.Builder
	escaped := false

	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case escaped:
			// Предыдущий байт был backslash
			current.WriteByte(c)
			escaped = false
		case c == '\\':
			escaped = true
		case c == '|':
			values = append(values, current.String())
			current.Reset()
		default:
			current.WriteByte(c)
		}
	}

	// Одиночный backslash в конце строки сохраняется как есть
	if escaped {
		current.WriteByte('\\')
	}

	return append(values, current.String())
}

// JoinTDTP собирает строку TDTP из значений, экранируя | и \
func JoinTDTP(values []string) string {
	var b strings.Builder
	for i, v := range values {
		if i > 0 {
			b.WriteByte('|')
		}
		for j := 0; j < len(v); j++ {
			if v[j] == '|' || v[j] == '\\' {
				b.WriteByte('\\')
			}
			b.WriteByte(v[j])
		}
	}
	return b.String()
}

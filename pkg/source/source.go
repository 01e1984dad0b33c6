// Package source читает текстовые строки, подготовленные стадией извлечения.
//
// Источник - локальный файл или объект S3 (s3://bucket/key), опционально
// сжатый zstd. Каждая строка файла - одна запись, значения разделяются
// разделителем (format: delimited) или символом | с экранированием
// обратной косой чертой (format: tdtp).
package source

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// Форматы строк
const (
	FormatDelimited = "delimited"
	FormatTDTP      = "tdtp"
)

// Режимы сжатия
const (
	CompressionNone = "none"
	CompressionZstd = "zstd"
	CompressionAuto = "auto"
)

// maxLineSize - максимальная длина одной строки входного файла
const maxLineSize = 64 * 1024 * 1024

// Config - настройки источника строк
type Config struct {
	URI         string   `yaml:"uri"`         // путь к файлу или s3://bucket/key
	Format      string   `yaml:"format"`      // delimited, tdtp
	Delimiter   string   `yaml:"delimiter"`   // для delimited, по умолчанию \t
	Compression string   `yaml:"compression"` // none, zstd, auto
	SkipHeader  bool     `yaml:"skip_header"` // пропустить первую строку
	S3          S3Config `yaml:"s3"`
}

// SetDefaults устанавливает значения по умолчанию
func (c *Config) SetDefaults() {
	if c.Format == "" {
		c.Format = FormatDelimited
	}
	if c.Format == FormatDelimited && c.Delimiter == "" {
		c.Delimiter = "\t"
	}
	if c.Compression == "" {
		c.Compression = CompressionAuto
	}
}

// Validate проверяет конфигурацию
func (c *Config) Validate() error {
	if c.URI == "" {
		return fmt.Errorf("source.uri is required")
	}
	switch c.Format {
	case FormatDelimited, FormatTDTP:
	default:
		return fmt.Errorf("source.format must be %s or %s, got %q", FormatDelimited, FormatTDTP, c.Format)
	}
	switch c.Compression {
	case CompressionNone, CompressionZstd, CompressionAuto:
	default:
		return fmt.Errorf("source.compression must be none, zstd or auto, got %q", c.Compression)
	}
	return nil
}

// Reader возвращает строки источника по одной
type Reader struct {
	scanner *bufio.Scanner
	split   func(line string) []string
	closers []io.Closer
	line    int
}

// Open открывает источник по конфигурации
func Open(ctx context.Context, cfg Config) (*Reader, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var raw io.ReadCloser
	var err error
	if IsS3URI(cfg.URI) {
		raw, err = openS3(ctx, cfg.URI, cfg.S3)
	} else {
		raw, err = os.Open(cfg.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open source %s: %w", cfg.URI, err)
	}

	r, err := NewReader(raw, cfg)
	if err != nil {
		raw.Close()
		return nil, err
	}
	return r, nil
}

// NewReader оборачивает поток. Reader закрывает rc при Close.
func NewReader(rc io.ReadCloser, cfg Config) (*Reader, error) {
	cfg.SetDefaults()

	r := &Reader{closers: []io.Closer{rc}}
	var in io.Reader = rc

	if useZstd(cfg) {
		dec, err := zstd.NewReader(rc)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
		}
		r.closers = append([]io.Closer{zstdCloser{dec}}, r.closers...)
		in = dec
	}

	switch cfg.Format {
	case FormatTDTP:
		r.split = SplitTDTP
	default:
		delim := cfg.Delimiter
		r.split = func(line string) []string { return strings.Split(line, delim) }
	}

	r.scanner = bufio.NewScanner(in)
	r.scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	if cfg.SkipHeader {
		if _, err := r.Next(); err != nil && err != io.EOF {
			r.Close()
			return nil, err
		}
	}

	return r, nil
}

// Next возвращает значения следующей строки или io.EOF
func (r *Reader) Next() ([]string, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return nil, fmt.Errorf("line %d: %w", r.line+1, err)
		}
		return nil, io.EOF
	}
	r.line++
	return r.split(strings.TrimSuffix(r.scanner.Text(), "\r")), nil
}

// Line возвращает номер последней прочитанной строки (с 1)
func (r *Reader) Line() int {
	return r.line
}

// Close закрывает декодер и исходный поток
func (r *Reader) Close() error {
	var first error
	for _, c := range r.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	r.closers = nil
	return first
}

func useZstd(cfg Config) bool {
	switch cfg.Compression {
	case CompressionZstd:
		return true
	case CompressionAuto:
		return strings.HasSuffix(cfg.URI, ".zst") || strings.HasSuffix(cfg.URI, ".zstd")
	default:
		return false
	}
}

// zstdCloser приводит zstd.Decoder.Close() к io.Closer
type zstdCloser struct{ dec *zstd.Decoder }

func (z zstdCloser) Close() error {
	z.dec.Close()
	return nil
}

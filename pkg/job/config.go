// Package job описывает задание экспорта в YAML.
package job

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ruslano69/tdtp-export/pkg/adapters"
	"github.com/ruslano69/tdtp-export/pkg/core/schema"
	"github.com/ruslano69/tdtp-export/pkg/export"
	"github.com/ruslano69/tdtp-export/pkg/logging"
	"github.com/ruslano69/tdtp-export/pkg/resilience"
	"github.com/ruslano69/tdtp-export/pkg/resultlog"
	"github.com/ruslano69/tdtp-export/pkg/retry"
	"github.com/ruslano69/tdtp-export/pkg/source"
)

// JobConfig - конфигурация задания экспорта
type JobConfig struct {
	Name string `yaml:"name"`

	Source source.Config   `yaml:"source"`
	Target adapters.Config `yaml:"target"`

	// Columns - колонки таблицы в порядке значений строки
	Columns []ColumnConfig `yaml:"columns"`

	// Types - дополнительные логические типы (имя -> канонический тег)
	Types map[string]string `yaml:"types"`
	// TypesFile - YAML с сопоставлением типов (см. schema.MappingFile)
	TypesFile string `yaml:"types_file"`

	Export    export.Options    `yaml:"export"`
	Retry     retry.Config      `yaml:"retry"`
	Breaker   resilience.Config `yaml:"circuit_breaker"`
	Rejects   RejectsConfig     `yaml:"rejects"`
	ResultLog resultlog.Config  `yaml:"result_log"`
	Logging   logging.Config    `yaml:"logging"`
	Metrics   MetricsConfig     `yaml:"metrics"`
}

// ColumnConfig - колонка таблицы и ее логический тип
type ColumnConfig struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// RejectsConfig - журнал отклоненных строк
type RejectsConfig struct {
	Path string `yaml:"path"` // пустое = только подсчет
}

// MetricsConfig - HTTP endpoint для Prometheus
type MetricsConfig struct {
	Addr string `yaml:"addr"` // например ":9102", пустое = отключено
}

// Override изменяет конфигурацию после разбора, до значений по умолчанию и проверки
// (флаги командной строки).
type Override func(*JobConfig)

// LoadConfig загружает конфигурацию из YAML файла.
// Ссылки ${VAR} раскрываются из окружения до разбора.
func LoadConfig(path string, overrides ...Override) (*JobConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseConfig(data, overrides...)
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv подставляет только ${VAR}. Одиночный $ (пароли, разделители) остается как есть.
func expandEnv(data []byte) []byte {
	return envRef.ReplaceAllFunc(data, func(ref []byte) []byte {
		return []byte(os.Getenv(string(ref[2 : len(ref)-1])))
	})
}

// ParseConfig разбирает YAML, устанавливает значения по умолчанию и проверяет результат
func ParseConfig(data []byte, overrides ...Override) (*JobConfig, error) {
	var config JobConfig
	if err := yaml.Unmarshal(expandEnv(data), &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	for _, o := range overrides {
		o(&config)
	}

	config.SetDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// SetDefaults устанавливает значения по умолчанию для необязательных полей
func (c *JobConfig) SetDefaults() {
	c.Source.SetDefaults()
	c.Export.SetDefaults()
	c.Export.Columns = c.ColumnNames()
	c.Export.Types = c.ColumnTypes()
	c.Retry.SetDefaults()
	c.Breaker.SetDefaults()
	c.ResultLog.SetDefaults(c.Name)
	c.Logging.SetDefaults()
	if c.Export.Table == "" && len(c.Columns) > 0 {
		c.Export.Table = c.Name
	}
}

// Validate проверяет корректность конфигурации
func (c *JobConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("job name is required")
	}

	if err := c.Source.Validate(); err != nil {
		return fmt.Errorf("source: %w", err)
	}

	if !c.Export.DryRun {
		if c.Target.Type == "" {
			return fmt.Errorf("target.type is required")
		}
		if !adapters.IsRegistered(c.Target.Type) {
			return fmt.Errorf("target: unsupported database type '%s', must be one of: %s",
				c.Target.Type, strings.Join(adapters.RegisteredTypes(), ", "))
		}
		if c.Target.DSN == "" {
			return fmt.Errorf("target.dsn is required")
		}
	}

	if len(c.Columns) == 0 {
		return fmt.Errorf("at least one column is required")
	}
	seen := make(map[string]bool, len(c.Columns))
	for i, col := range c.Columns {
		if col.Name == "" {
			return fmt.Errorf("columns[%d]: name is required", i)
		}
		if col.Type == "" {
			return fmt.Errorf("columns[%d] (%s): type is required", i, col.Name)
		}
		key := strings.ToLower(col.Name)
		if seen[key] {
			return fmt.Errorf("columns[%d]: duplicate column '%s'", i, col.Name)
		}
		seen[key] = true
	}

	if _, err := schema.NewTypeMapping(c.Types); err != nil {
		return fmt.Errorf("types: %w", err)
	}

	if err := c.Export.Validate(); err != nil {
		return fmt.Errorf("export: %w", err)
	}

	if err := c.Retry.Validate(); err != nil {
		return fmt.Errorf("retry: %w", err)
	}

	if err := c.Breaker.Validate(); err != nil {
		return fmt.Errorf("circuit_breaker: %w", err)
	}

	if err := c.ResultLog.Validate(); err != nil {
		return fmt.Errorf("result_log: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}

	return nil
}

// TypeMapping собирает сопоставление: встроенные типы, затем types_file, затем types
func (c *JobConfig) TypeMapping() (schema.TypeMapping, error) {
	mapping := schema.DefaultTypeMapping()

	if c.TypesFile != "" {
		fromFile, err := schema.LoadTypeMapping(c.TypesFile)
		if err != nil {
			return schema.TypeMapping{}, err
		}
		mapping = fromFile
	}

	if len(c.Types) > 0 {
		extra, err := schema.NewTypeMapping(c.Types)
		if err != nil {
			return schema.TypeMapping{}, fmt.Errorf("types: %w", err)
		}
		mapping = mapping.Merge(extra)
	}

	return mapping, nil
}

// ColumnNames возвращает имена колонок по порядку
func (c *JobConfig) ColumnNames() []string {
	names := make([]string, len(c.Columns))
	for i, col := range c.Columns {
		names[i] = col.Name
	}
	return names
}

// ColumnTypes возвращает логические типы колонок по порядку
func (c *JobConfig) ColumnTypes() []string {
	types := make([]string, len(c.Columns))
	for i, col := range c.Columns {
		types[i] = col.Type
	}
	return types
}

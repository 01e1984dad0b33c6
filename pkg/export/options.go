package export

import "fmt"

// Политика обработки строк, которые не удалось связать
const (
	OnBindErrorSkip = "skip"
	OnBindErrorFail = "fail"
)

// DefaultBatchSize - размер пакета по умолчанию
const DefaultBatchSize = 1000

// Options - параметры экспорта в одну таблицу
type Options struct {
	Table   string   `yaml:"table"`
	Columns []string `yaml:"-"`
	Types   []string `yaml:"-"` // логические имена типов, по одному на колонку

	BatchSize   int    `yaml:"batch_size"`
	Workers     int    `yaml:"workers"`
	OnBindError string `yaml:"on_bind_error"` // skip, fail
	DryRun      bool   `yaml:"dry_run"`
}

// SetDefaults устанавливает значения по умолчанию
func (o *Options) SetDefaults() {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.OnBindError == "" {
		o.OnBindError = OnBindErrorSkip
	}
}

// Validate проверяет параметры
func (o *Options) Validate() error {
	if o.Table == "" && !o.DryRun {
		return fmt.Errorf("table is required")
	}
	if len(o.Columns) == 0 {
		return fmt.Errorf("at least one column is required")
	}
	if len(o.Columns) != len(o.Types) {
		return fmt.Errorf("%d columns but %d column types", len(o.Columns), len(o.Types))
	}
	switch o.OnBindError {
	case OnBindErrorSkip, OnBindErrorFail:
	default:
		return fmt.Errorf("on_bind_error must be %s or %s, got %q", OnBindErrorSkip, OnBindErrorFail, o.OnBindError)
	}
	return nil
}

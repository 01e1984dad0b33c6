package job

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/ruslano69/tdtp-export/pkg/adapters/sqlite"
	"github.com/ruslano69/tdtp-export/pkg/core/schema"
	"github.com/ruslano69/tdtp-export/pkg/export"
	"github.com/ruslano69/tdtp-export/pkg/retry"
	"github.com/ruslano69/tdtp-export/pkg/source"
)

const sampleConfig = `
name: orders
source:
  uri: /data/orders.tsv.zst
target:
  type: sqlite
  dsn: ${TDTP_TEST_DSN}
columns:
  - {name: id, type: long}
  - {name: customer, type: string}
  - {name: amount, type: double}
  - {name: paid, type: boolean}
  - {name: ref, type: uuid}
types:
  uuid: text
export:
  table: orders_copy
  batch_size: 500
  workers: 4
retry:
  enabled: true
  max_attempts: 5
  initial_delay: 200ms
circuit_breaker:
  enabled: true
  max_failures: 3
rejects:
  path: /var/log/tdtp/orders.rejects.jsonl
result_log:
  type: redis
  address: 127.0.0.1:6379
logging:
  level: debug
  format: json
metrics:
  addr: ":9102"
`

func TestParseConfig(t *testing.T) {
	t.Setenv("TDTP_TEST_DSN", "file:orders.db")

	cfg, err := ParseConfig([]byte(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "orders", cfg.Name)
	assert.Equal(t, "file:orders.db", cfg.Target.DSN)
	assert.Equal(t, source.FormatDelimited, cfg.Source.Format)
	assert.Equal(t, source.CompressionAuto, cfg.Source.Compression)

	assert.Equal(t, "orders_copy", cfg.Export.Table)
	assert.Equal(t, 500, cfg.Export.BatchSize)
	assert.Equal(t, 4, cfg.Export.Workers)
	assert.Equal(t, export.OnBindErrorSkip, cfg.Export.OnBindError)
	assert.Equal(t, []string{"id", "customer", "amount", "paid", "ref"}, cfg.Export.Columns)
	assert.Equal(t, []string{"long", "string", "double", "boolean", "uuid"}, cfg.Export.Types)

	assert.True(t, cfg.Retry.Enabled)
	assert.Equal(t, 200*time.Millisecond, cfg.Retry.InitialDelay)
	assert.Equal(t, retry.BackoffExponential, cfg.Retry.BackoffStrategy)

	assert.True(t, cfg.Breaker.Enabled)
	assert.Equal(t, uint32(3), cfg.Breaker.MaxFailures)
	assert.Equal(t, 30*time.Second, cfg.Breaker.Timeout)

	assert.Equal(t, "orders", cfg.ResultLog.Name)
	assert.Equal(t, 3600, cfg.ResultLog.TTL)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, ":9102", cfg.Metrics.Addr)

	mapping, err := cfg.TypeMapping()
	require.NoError(t, err)
	tag, ok := mapping.Lookup("UUID")
	require.True(t, ok)
	assert.Equal(t, schema.TagText, tag)
	assert.Equal(t, 6, mapping.Len())
}

func TestParseConfig_OnlyBracedEnvIsExpanded(t *testing.T) {
	t.Setenv("TDTP_TEST_USER", "exporter")
	t.Setenv("word", "SHOULD-NOT-APPEAR")

	cfg, err := ParseConfig([]byte(`
name: secrets
source: {uri: rows.txt, delimiter: "$"}
target: {type: sqlite, dsn: "file:${TDTP_TEST_USER}.db?_pw=pa$word"}
columns: [{name: id, type: int}]
`))
	require.NoError(t, err)
	assert.Equal(t, "file:exporter.db?_pw=pa$word", cfg.Target.DSN)
	assert.Equal(t, "$", cfg.Source.Delimiter)
}

func TestParseConfig_Defaults(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
name: events
source: {uri: events.tsv}
target: {type: sqlite, dsn: ":memory:"}
columns: [{name: id, type: int}]
`))
	require.NoError(t, err)

	assert.Equal(t, "events", cfg.Export.Table)
	assert.Equal(t, export.DefaultBatchSize, cfg.Export.BatchSize)
	assert.Equal(t, 1, cfg.Export.Workers)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.False(t, cfg.Retry.Enabled)
	assert.False(t, cfg.ResultLog.Enabled())
}

func TestParseConfig_DryRunWithoutTarget(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
name: preview
source: {uri: rows.tdtp, format: tdtp}
columns: [{name: id, type: int}]
export: {dry_run: true}
`))
	require.NoError(t, err)
	assert.True(t, cfg.Export.DryRun)
}

func TestParseConfig_Override(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
name: preview
source: {uri: rows.tsv}
columns: [{name: id, type: int}]
`), func(c *JobConfig) { c.Export.DryRun = true })
	require.NoError(t, err)
	assert.True(t, cfg.Export.DryRun)
}

func TestValidate_Errors(t *testing.T) {
	base := `
source: {uri: rows.tsv}
target: {type: sqlite, dsn: ":memory:"}
columns: [{name: id, type: int}]
`
	tests := []struct {
		name    string
		yaml    string
		message string
	}{
		{"no name", base, "job name is required"},
		{"unknown target", "name: x\nsource: {uri: a}\ntarget: {type: oracle, dsn: x}\ncolumns: [{name: id, type: int}]", "unsupported database type"},
		{"no dsn", "name: x\nsource: {uri: a}\ntarget: {type: sqlite}\ncolumns: [{name: id, type: int}]", "target.dsn is required"},
		{"no columns", "name: x\nsource: {uri: a}\ntarget: {type: sqlite, dsn: x}", "at least one column"},
		{"duplicate column", "name: x\nsource: {uri: a}\ntarget: {type: sqlite, dsn: x}\ncolumns: [{name: id, type: int}, {name: ID, type: int}]", "duplicate column"},
		{"column without type", "name: x\nsource: {uri: a}\ntarget: {type: sqlite, dsn: x}\ncolumns: [{name: id}]", "type is required"},
		{"bad tag", "name: x\nsource: {uri: a}\ntarget: {type: sqlite, dsn: x}\ncolumns: [{name: id, type: int}]\ntypes: {money: decimal}", "types:"},
		{"bad policy", "name: x\nsource: {uri: a}\ntarget: {type: sqlite, dsn: x}\ncolumns: [{name: id, type: int}]\nexport: {on_bind_error: ignore}", "on_bind_error"},
		{"bad source", "name: x\nsource: {uri: a, format: csv}\ntarget: {type: sqlite, dsn: x}\ncolumns: [{name: id, type: int}]", "source:"},
		{"bad logging", "name: x\nsource: {uri: a}\ntarget: {type: sqlite, dsn: x}\ncolumns: [{name: id, type: int}]\nlogging: {format: xml}", "logging:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestLoadConfig_TypesFile(t *testing.T) {
	dir := t.TempDir()
	typesPath := filepath.Join(dir, "types.yaml")
	require.NoError(t, os.WriteFile(typesPath, []byte("replace_defaults: true\ntypes:\n  varchar: text\n  number: floating\n"), 0o644))

	jobPath := filepath.Join(dir, "job.yaml")
	job := strings.Join([]string{
		"name: legacy",
		"source: {uri: legacy.tsv}",
		"target: {type: sqlite, dsn: ':memory:'}",
		"columns: [{name: a, type: varchar}, {name: b, type: number}]",
		"types_file: " + typesPath,
		"types: {flag: boolean}",
	}, "\n")
	require.NoError(t, os.WriteFile(jobPath, []byte(job), 0o644))

	cfg, err := LoadConfig(jobPath)
	require.NoError(t, err)

	mapping, err := cfg.TypeMapping()
	require.NoError(t, err)
	assert.Equal(t, []string{"flag", "number", "varchar"}, mapping.Names())

	_, ok := mapping.Lookup("int")
	assert.False(t, ok)
}

func TestLoadConfig_Missing(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")
}

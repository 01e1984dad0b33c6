package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruslano69/tdtp-export/pkg/adapters"
	"github.com/ruslano69/tdtp-export/pkg/adapters/sqlite"
	"github.com/ruslano69/tdtp-export/pkg/core/schema"
	"github.com/ruslano69/tdtp-export/pkg/export"
	"github.com/ruslano69/tdtp-export/pkg/job"
	"github.com/ruslano69/tdtp-export/pkg/retry"
)

func TestVersionCmd(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Equal(t, "tdtpexport dev\n", out.String())
}

func TestRunCmd_RequiresConfig(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"run"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config")
}

func TestMappingTable(t *testing.T) {
	data := mappingTable(schema.DefaultTypeMapping())
	require.Len(t, data, 6)
	assert.Equal(t, []string{"Logical type", "Tag", "NULL type"}, data[0])
	assert.Equal(t, []string{"boolean", "boolean", "BOOLEAN"}, data[1])
	assert.Equal(t, []string{"long", "integer64", "BIGINT"}, data[4])
}

func TestColumnsTable(t *testing.T) {
	data := columnsTable(schema.DefaultTypeMapping(), []job.ColumnConfig{
		{Name: "id", Type: "INT"},
		{Name: "geo", Type: "geometry"},
	})
	require.Len(t, data, 3)
	assert.Equal(t, []string{"1", "id", "INT", "integer32"}, data[1])
	assert.Equal(t, "text (unknown type)", data[2][3])
}

func TestStatsTable(t *testing.T) {
	data := statsTable(export.Stats{RowsRead: 3, RowsWritten: 2, RowsRejected: 1, DryRun: true, Duration: 1234567 * time.Microsecond}, 1)
	assert.Equal(t, []string{"Mode", "dry-run"}, data[1])
	assert.Equal(t, []string{"Rows written", "2"}, data[3])
	assert.Equal(t, []string{"Duration", "1.235s"}, data[len(data)-1])
}

func TestRunExport_SQLite(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "out.db")
	rowsPath := filepath.Join(dir, "rows.tsv")
	rejectsPath := filepath.Join(dir, "rejects.jsonl")

	require.NoError(t, os.WriteFile(rowsPath, []byte("1\talice\t2.5\n2\tNULL\tNULL\n3\tbob\tnope\n"), 0o644))

	ctx := context.Background()
	setup := `CREATE TABLE people (id INTEGER, name TEXT, score REAL)`
	require.NoError(t, execSQLite(ctx, dbPath, setup))

	cfgPath := filepath.Join(dir, "job.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
name: people
source: {uri: `+rowsPath+`}
target: {type: sqlite, dsn: "file:`+dbPath+`"}
columns:
  - {name: id, type: int}
  - {name: name, type: string}
  - {name: score, type: double}
rejects: {path: `+rejectsPath+`}
logging: {level: error}
`), 0o644))

	require.NoError(t, runExport(ctx, &runFlags{config: cfgPath}))

	count, err := countSQLite(ctx, dbPath, `SELECT COUNT(*) FROM people`)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	rejects, err := retry.ReadRejects(rejectsPath)
	require.NoError(t, err)
	require.Len(t, rejects, 1)
	assert.Equal(t, 3, rejects[0].Line)
}

func openSQLite(ctx context.Context, path string) (*sqlite.Adapter, error) {
	a, err := adapters.New(ctx, adapters.Config{Type: "sqlite", DSN: "file:" + path})
	if err != nil {
		return nil, err
	}
	return a.(*sqlite.Adapter), nil
}

func execSQLite(ctx context.Context, path, query string) error {
	a, err := openSQLite(ctx, path)
	if err != nil {
		return err
	}
	defer a.Close(ctx)
	_, err = a.DB().ExecContext(ctx, query)
	return err
}

func countSQLite(ctx context.Context, path, query string) (int, error) {
	a, err := openSQLite(ctx, path)
	if err != nil {
		return 0, err
	}
	defer a.Close(ctx)
	var n int
	err = a.DB().QueryRowContext(ctx, query).Scan(&n)
	return n, err
}

package base

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruslano69/tdtp-export/pkg/adapters"
)

func TestBuildInsert(t *testing.T) {
	tests := []struct {
		dialect adapters.Dialect
		table   string
		want    string
	}{
		{adapters.DialectSQLite, "users", `INSERT INTO "users" ("id", "name") VALUES (?, ?)`},
		{adapters.DialectPostgres, "public.users", `INSERT INTO "public"."users" ("id", "name") VALUES ($1, $2)`},
		{adapters.DialectMySQL, "users", "INSERT INTO `users` (`id`, `name`) VALUES (?, ?)"},
		{adapters.DialectMSSQL, "dbo.users", `INSERT INTO [dbo].[users] ([id], [name]) VALUES (@p1, @p2)`},
	}

	for _, tt := range tests {
		t.Run(string(tt.dialect), func(t *testing.T) {
			got, err := BuildInsert(tt.dialect, tt.table, []string{"id", "name"})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildInsert_Errors(t *testing.T) {
	_, err := BuildInsert(adapters.DialectSQLite, "", []string{"a"})
	assert.Error(t, err)

	_, err = BuildInsert(adapters.DialectSQLite, "t", nil)
	assert.Error(t, err)

	_, err = BuildInsert(adapters.DialectSQLite, "t", []string{"a", ""})
	assert.Error(t, err)
}

func TestQuoteIdentifier_Escapes(t *testing.T) {
	assert.Equal(t, `"a""b"`, QuoteIdentifier(adapters.DialectPostgres, `a"b`))
	assert.Equal(t, "`a``b`", QuoteIdentifier(adapters.DialectMySQL, "a`b"))
	assert.Equal(t, "[a]]b]", QuoteIdentifier(adapters.DialectMSSQL, "a]b"))
}

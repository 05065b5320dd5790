package migration

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/smallbiznis/vetsub/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(embeddedMigrations, migrationsDir)
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, entry := range entries {
		name := entry.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Fatalf("unexpected file %s", name)
		}
	}
	assert.Equal(t, ups, downs)
}

func TestInitialMigrationCreatesLifecycleTables(t *testing.T) {
	body, err := fs.ReadFile(embeddedMigrations, migrationsDir+"/000001_init.up.sql")
	require.NoError(t, err)

	sql := string(body)
	for _, table := range []string{"subscription_plans", "payment_methods", "clinics", "subscription_records", "staff_accounts", "audit_logs"} {
		assert.Contains(t, sql, "CREATE TABLE IF NOT EXISTS "+table)
	}
	assert.Contains(t, sql, "WHERE status = 'ACTIVE'")
}

func TestApplyRejectsNonPostgres(t *testing.T) {
	err := Apply(nil, config.Config{DBType: "sqlite"})
	assert.ErrorIs(t, err, ErrUnsupportedDialect)
}

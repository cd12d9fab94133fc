package migration

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateMigration(t *testing.T) {
	dir := t.TempDir()

	mf, err := CreateMigration(dir, "Add Outbox Tables", "outbox, integration outbox and inbox")
	require.NoError(t, err)

	assert.Contains(t, mf.UpPath, "add_outbox_tables.up.sql")
	assert.Contains(t, mf.DownPath, "add_outbox_tables.down.sql")

	up, err := os.ReadFile(mf.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(up), "Add Outbox Tables")
	assert.Contains(t, string(up), "outbox, integration outbox and inbox")

	down, err := os.ReadFile(mf.DownPath)
	require.NoError(t, err)
	assert.Contains(t, string(down), "(rollback)")
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "add_users_table", sanitizeName("Add Users Table"))
	assert.Equal(t, "fix_inbox_index", sanitizeName("fix--inbox  index!"))
	assert.Equal(t, "v2", sanitizeName("V2___"))
}

func TestListMigrations(t *testing.T) {
	dir := t.TempDir()

	_, err := CreateMigration(dir, "first", "")
	require.NoError(t, err)

	migrations, err := ListMigrations(dir)
	require.NoError(t, err)
	require.Len(t, migrations, 1)
	assert.True(t, strings.HasSuffix(migrations[0], "_first"))
}

func TestListMigrations_MissingDirIsEmpty(t *testing.T) {
	migrations, err := ListMigrations("/nonexistent/path")
	require.NoError(t, err)
	assert.Empty(t, migrations)
}

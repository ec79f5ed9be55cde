package db

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMigrations_SortsByVersion(t *testing.T) {
	files := fstest.MapFS{
		"010_later.sql":  {Data: []byte("SELECT 10;")},
		"002_second.sql": {Data: []byte("SELECT 2;")},
		"001_first.sql":  {Data: []byte("SELECT 1;")},
		"README.md":      {Data: []byte("not sql")},
		"draft.sql":      {Data: []byte("no version prefix")},
		"abc_bad.sql":    {Data: []byte("non numeric prefix")},
	}

	migrations, err := NewMigrator(nil, files).LoadMigrations()
	require.NoError(t, err)
	require.Len(t, migrations, 3)

	assert.Equal(t, 1, migrations[0].Version)
	assert.Equal(t, "001_first.sql", migrations[0].Name)
	assert.Equal(t, "SELECT 1;", migrations[0].SQL)
	assert.Equal(t, 2, migrations[1].Version)
	assert.Equal(t, 10, migrations[2].Version)
}

func TestLoadMigrations_DuplicateVersion(t *testing.T) {
	files := fstest.MapFS{
		"001_a.sql": {Data: []byte("SELECT 1;")},
		"001_b.sql": {Data: []byte("SELECT 1;")},
	}

	_, err := NewMigrator(nil, files).LoadMigrations()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "share version 1")
}

func TestLoadMigrations_Bundled(t *testing.T) {
	migrations, err := NewMigrator(nil, nil).LoadMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)

	assert.Equal(t, 1, migrations[0].Version)
	for _, table := range []string{"appointments", "slot_limits", "blocked_dates", "blocked_time_slots", "shift_capacity", "event_logs"} {
		assert.Contains(t, migrations[0].SQL, "CREATE TABLE IF NOT EXISTS "+table+" ")
	}
}

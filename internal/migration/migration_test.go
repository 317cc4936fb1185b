package migration

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunIsIdempotent(t *testing.T) {
	db, err := sqlx.Connect("sqlite3", ":memory:")
	require.NoError(t, err)
	defer db.Close()
	db.SetMaxOpenConns(1)

	var m Migrator = NewRunner()
	assert.Equal(t, "1.0.0", m.Version())

	ctx := context.Background()
	require.NoError(t, m.Run(ctx, db))
	require.NoError(t, m.Run(ctx, db), "a second run must not fail on existing tables")

	var tables []string
	require.NoError(t, db.Select(&tables,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name LIKE 'dataset_%' ORDER BY name`))
	assert.Equal(t, []string{"dataset_profiles", "dataset_versions"}, tables)
}

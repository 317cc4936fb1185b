package container

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"goinsight/adapters/store"
	"goinsight/internal/config"
	"goinsight/internal/errors"
)

func TestNewRequiresConfig(t *testing.T) {
	_, err := New(context.Background(), nil)
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
}

func TestMemoryContainer(t *testing.T) {
	ctx := context.Background()
	c, err := NewWithLogger(ctx, config.Default(), zap.NewNop())
	require.NoError(t, err)
	defer c.Shutdown(ctx)

	_, ok := c.Store.(*store.MemoryStore)
	assert.True(t, ok)
	assert.NotNil(t, c.APIHandler())
}

func TestSQLiteContainerServesQuestions(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Store.Driver = config.StoreSQLite
	cfg.Store.DSN = filepath.Join(dir, "goinsight.db")
	cfg.Parser.Delimiter = ";"

	c, err := NewWithLogger(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	defer c.Shutdown(ctx)

	_, ok := c.Store.(*store.SQLStore)
	require.True(t, ok)

	path := filepath.Join(dir, "sales.csv")
	require.NoError(t, os.WriteFile(path, []byte("region;revenue\nNorth;10\nSouth;15\n"), 0o644))

	version, profile, err := c.Analytics.RegisterDataset(ctx, "sales.csv", path)
	require.NoError(t, err)
	assert.Equal(t, 2, profile.ColumnCount, "configured delimiter is applied")

	resp, err := c.Analytics.Ask(ctx, version.ID, "total revenue")
	require.NoError(t, err)
	require.NotNil(t, resp.Result)
}

func TestUnknownDriver(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Driver = "mongo"
	_, err := NewWithLogger(context.Background(), cfg, nil)
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
}

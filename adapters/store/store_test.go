package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"goinsight/domain/core"
	"goinsight/domain/dataset"
	"goinsight/internal/errors"
	"goinsight/ports"
)

func repositories(t *testing.T) map[string]ports.DatasetRepository {
	t.Helper()
	sqlStore, err := OpenSQL(context.Background(), DriverSQLite, ":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { sqlStore.Close() })

	return map[string]ports.DatasetRepository{
		"memory": NewMemoryStore(),
		"sqlite": sqlStore,
	}
}

func version(id string, created time.Time) *dataset.Version {
	return &dataset.Version{
		ID:        core.DatasetVersionID(id),
		FileName:  id + ".csv",
		FilePath:  "/data/" + id + ".csv",
		Status:    dataset.StatusProcessing,
		CreatedAt: created,
	}
}

func TestVersionLifecycle(t *testing.T) {
	ctx := context.Background()
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, repo.Create(ctx, version("v1", created)))

			got, err := repo.GetByID(ctx, "v1")
			require.NoError(t, err)
			assert.Equal(t, "v1.csv", got.FileName)
			assert.Equal(t, dataset.StatusProcessing, got.Status)
			assert.True(t, created.Equal(got.CreatedAt))

			require.NoError(t, repo.UpdateStatus(ctx, "v1", dataset.StatusFailed, "bad header"))
			got, err = repo.GetByID(ctx, "v1")
			require.NoError(t, err)
			assert.Equal(t, dataset.StatusFailed, got.Status)
			assert.Equal(t, "bad header", got.ErrorMessage)

			require.NoError(t, repo.Delete(ctx, "v1"))
			_, err = repo.GetByID(ctx, "v1")
			assert.True(t, errors.Is(err, errors.CodeNotFound))
		})
	}
}

func TestMissingVersions(t *testing.T) {
	ctx := context.Background()
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			_, err := repo.GetByID(ctx, "nope")
			assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))
			assert.Equal(t, errors.CodeNotFound, errors.GetCode(repo.UpdateStatus(ctx, "nope", dataset.StatusReady, "")))
			assert.Equal(t, errors.CodeNotFound, errors.GetCode(repo.Delete(ctx, "nope")))
			_, err = repo.GetProfile(ctx, "nope")
			assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))
		})
	}
}

func TestListNewestFirstWithPaging(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			for i := 0; i < 5; i++ {
				require.NoError(t, repo.Create(ctx, version(fmt.Sprintf("v%d", i), base.Add(time.Duration(i)*time.Hour))))
			}

			page, err := repo.List(ctx, 2, 0)
			require.NoError(t, err)
			require.Len(t, page, 2)
			assert.Equal(t, core.DatasetVersionID("v4"), page[0].ID)
			assert.Equal(t, core.DatasetVersionID("v3"), page[1].ID)

			page, err = repo.List(ctx, 2, 4)
			require.NoError(t, err)
			require.Len(t, page, 1)
			assert.Equal(t, core.DatasetVersionID("v0"), page[0].ID)

			page, err = repo.List(ctx, 2, 10)
			require.NoError(t, err)
			assert.Empty(t, page)
		})
	}
}

func TestProfileCache(t *testing.T) {
	ctx := context.Background()
	mean := 12.5
	profile := &dataset.DatasetProfile{
		DatasetVersionID: "v1",
		RowCount:         3,
		ColumnCount:      1,
		Columns: []dataset.ColumnProfile{{
			Name:          "amount",
			Type:          dataset.TypeNumber,
			Semantic:      dataset.SemanticNumeric,
			DistinctCount: 3,
			Mean:          &mean,
		}},
	}

	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, repo.Create(ctx, version("v1", time.Now().UTC())))
			require.NoError(t, repo.SaveProfile(ctx, profile))

			got, err := repo.GetProfile(ctx, "v1")
			require.NoError(t, err)
			assert.Equal(t, profile, got)

			updated := *profile
			updated.RowCount = 4
			require.NoError(t, repo.SaveProfile(ctx, &updated))
			got, err = repo.GetProfile(ctx, "v1")
			require.NoError(t, err)
			assert.Equal(t, 4, got.RowCount)

			require.NoError(t, repo.Delete(ctx, "v1"))
			_, err = repo.GetProfile(ctx, "v1")
			assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))

			assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(repo.SaveProfile(ctx, nil)))
		})
	}
}

func TestMemoryStoreConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := core.DatasetVersionID(fmt.Sprintf("v%d", i))
			assert.NoError(t, s.Create(ctx, version(string(id), time.Now())))
			assert.NoError(t, s.SaveProfile(ctx, &dataset.DatasetProfile{DatasetVersionID: id}))
			_, err := s.List(ctx, 5, 0)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	all, err := s.List(ctx, 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 20)
}

package shuttle

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/poiesic/shuttle/core"
	"github.com/poiesic/shuttle/migrate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, s *Store, name string, n int) []*core.Record {
	t.Helper()
	c, err := s.Collection(name)
	require.NoError(t, err)

	records := make([]*core.Record, n)
	for i := range records {
		records[i] = &core.Record{
			ID:         uuid.Must(uuid.NewV7()),
			Properties: map[string]any{"title": fmt.Sprintf("article %d", i)},
			Vector:     []float32{float32(i), 1, 2},
		}
	}
	_, err = c.InsertBatch(context.Background(), core.Batch{Index: 1, Records: records})
	require.NoError(t, err)
	return records
}

func TestOpen(t *testing.T) {
	t.Run("create new store", func(t *testing.T) {
		s, err := Open(filepath.Join(t.TempDir(), "test_db"))
		require.NoError(t, err)
		require.NotNil(t, s)
		assert.NoError(t, s.Close())
	})

	t.Run("error with invalid path", func(t *testing.T) {
		// Try to create a store at a file path instead of directory
		tmpFile := filepath.Join(t.TempDir(), "not_a_dir")
		require.NoError(t, os.WriteFile(tmpFile, []byte("test"), 0644))

		s, err := Open(tmpFile)
		assert.Error(t, err)
		assert.Nil(t, s)
	})
}

func TestConfig_Validate(t *testing.T) {
	config := DefaultConfig()
	assert.ErrorIs(t, config.Validate(), core.ErrInvalidConfig)

	config.SourceCollection = "Wiki"
	assert.ErrorIs(t, config.Validate(), core.ErrInvalidConfig)

	config.DestinationCollection = "Wiki"
	assert.ErrorIs(t, config.Validate(), core.ErrInvalidConfig, "source and destination must differ")

	config.DestinationCollection = "WikiCopy"
	assert.NoError(t, config.Validate())

	config.BatchSize = 0
	assert.ErrorIs(t, config.Validate(), core.ErrInvalidConfig)
}

func TestStore_RunMigration(t *testing.T) {
	s, err := Open("", WithInMemory())
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	records := seed(t, s, "Wiki", 120)

	config := DefaultConfig()
	config.SourceCollection = "Wiki"
	config.DestinationCollection = "WikiCopy"
	config.BatchSize = 50
	config.ConcurrencyLimit = 2

	summary, err := s.RunMigration(ctx, config)
	require.NoError(t, err)
	assert.Equal(t, core.RunStateCompleted, summary.State)
	assert.Equal(t, 120, summary.TotalSucceeded)
	assert.Equal(t, 3, summary.Batches)

	names, err := s.Collections()
	require.NoError(t, err)
	assert.Equal(t, []string{"Wiki", "WikiCopy"}, names)

	report, err := s.Verify(ctx, "Wiki", "WikiCopy")
	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Equal(t, len(records), report.Matched)
}

func TestStore_RunMigrationResetDestination(t *testing.T) {
	s, err := Open("", WithInMemory())
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	seed(t, s, "Wiki", 10)
	seed(t, s, "WikiCopy", 7)

	config := DefaultConfig()
	config.SourceCollection = "Wiki"
	config.DestinationCollection = "WikiCopy"
	config.ResetDestination = true

	_, err = s.RunMigration(ctx, config)
	require.NoError(t, err)

	dest, err := s.Collection("WikiCopy")
	require.NoError(t, err)
	count, err := dest.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, count, "stale destination records are dropped")
}

func TestStore_RunMigrationInvalidConfigTouchesNothing(t *testing.T) {
	s, err := Open("", WithInMemory())
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	seed(t, s, "WikiCopy", 5)

	config := DefaultConfig()
	config.SourceCollection = "Wiki"
	config.DestinationCollection = "WikiCopy"
	config.ResetDestination = true
	config.ConcurrencyLimit = 0

	summary, err := s.RunMigration(ctx, config)
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
	assert.Nil(t, summary)

	dest, err := s.Collection("WikiCopy")
	require.NoError(t, err)
	count, err := dest.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	_, err = s.RunMigration(ctx, nil)
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}

func TestStore_VectorDimension(t *testing.T) {
	s, err := Open("", WithInMemory(), WithVectorDimension(2))
	require.NoError(t, err)
	defer s.Close()

	c, err := s.Collection("Wiki")
	require.NoError(t, err)

	result, err := c.InsertBatch(context.Background(), core.Batch{Index: 1, Records: []*core.Record{
		{ID: uuid.New(), Vector: []float32{1, 2}},
		{ID: uuid.New(), Vector: []float32{1, 2, 3}},
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
}

func TestStore_RunMigrationWithoutVectors(t *testing.T) {
	s, err := Open("", WithInMemory())
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	records := seed(t, s, "Wiki", 3)

	config := DefaultConfig()
	config.SourceCollection = "Wiki"
	config.DestinationCollection = "Plain"
	config.IncludeVectors = false
	config.MaxItems = migrate.Unlimited

	_, err = s.RunMigration(ctx, config)
	require.NoError(t, err)

	dest, err := s.Collection("Plain")
	require.NoError(t, err)
	copied, err := dest.GetRecord(ctx, records[0].ID)
	require.NoError(t, err)
	assert.Nil(t, copied.Vector)
}

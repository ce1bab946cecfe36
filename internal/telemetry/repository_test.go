package telemetry_test

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/winchlab/servoctl/internal/errors"
	"github.com/winchlab/servoctl/internal/telemetry"
)

func countSamples(t *testing.T, dbPath string) int {
	t.Helper()

	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM cycle_samples").Scan(&count))

	return count
}

func TestRepositoryBatchesAndFlushes(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "telemetry.db")
	repo, err := telemetry.NewRepository(telemetry.Config{DBPath: dbPath, BatchSize: 4})
	require.NoError(t, err)

	for i := 0; i < 6; i++ {
		require.NoError(t, repo.Record(&telemetry.Sample{
			Timestamp:  int64(i),
			Cycle:      uint64(i),
			DriveState: "OPERATION_ENABLED",
		}))
	}

	// Close flushes the partial batch.
	require.NoError(t, repo.Close())
	assert.Equal(t, 6, countSamples(t, dbPath))
}

func TestRepositoryRejectsEmptyPath(t *testing.T) {
	_, err := telemetry.NewRepository(telemetry.Config{})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrInvalidDBPath))
}

func TestServiceDrainsWithoutBlockingProducer(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "telemetry.db")
	col, err := telemetry.NewService(telemetry.Config{DBPath: dbPath, BatchSize: 8, QueueDepth: 2})
	require.NoError(t, err)

	// Offer must return immediately regardless of backend speed; a
	// saturated queue drops instead of stalling.
	accepted := 0
	for i := 0; i < 100; i++ {
		if col.Offer(telemetry.Sample{Cycle: uint64(i), DriveState: "OPERATION_ENABLED"}) {
			accepted++
		}
	}
	require.NoError(t, col.Close())

	assert.Greater(t, accepted, 0)
	assert.Equal(t, accepted, countSamples(t, dbPath), "every accepted sample is persisted on close")
}

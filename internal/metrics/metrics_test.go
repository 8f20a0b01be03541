package metrics_test

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/motortwin/internal/connection"
	"codeberg.org/mutker/motortwin/internal/errors"
	"codeberg.org/mutker/motortwin/internal/logger"
	"codeberg.org/mutker/motortwin/internal/metrics"
	"codeberg.org/mutker/motortwin/internal/pipeline"
	"codeberg.org/mutker/motortwin/internal/stats"
	"codeberg.org/mutker/motortwin/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) metrics.Config {
	t.Helper()

	dir := t.TempDir()
	cfg := metrics.DefaultConfig()
	cfg.Enabled = true
	cfg.DBPath = filepath.Join(dir, "ticks.db")
	cfg.BackupDir = filepath.Join(dir, "backups")
	cfg.BatchSize = 10
	cfg.BatchTimeout = 0
	return cfg
}

func count(t *testing.T, path, table string) int {
	t.Helper()

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func tick(at time.Time) pipeline.Tick {
	return pipeline.Tick{
		At:     at,
		Latest: telemetry.Frame{Timestamp: at, Status: telemetry.Normal, Speed: 1500, Temperature: 40},
		Window: stats.Window{
			Length:  6,
			Voltage: stats.Phases{U: 10, V: 10, W: 10},
			Current: stats.Phases{U: 1, V: 2, W: 3},
		},
		Status:     telemetry.Normal,
		Connection: connection.Streaming,
		Statistic:  pipeline.Statistic{NetworkLatency: 100 * time.Millisecond},
	}
}

func TestDisabledIsNoop(t *testing.T) {
	rec, err := metrics.NewService(metrics.DefaultConfig())
	require.NoError(t, err)

	require.NoError(t, rec.Record(context.Background(), &metrics.TickRecord{}))
	require.NoError(t, rec.Close())
}

func TestValidate(t *testing.T) {
	cfg := metrics.DefaultConfig()
	cfg.Enabled = true
	cfg.DBPath = ""
	assert.True(t, errors.HasCode(cfg.Validate(), metrics.ErrInvalidDBPath))

	cfg.DBPath = "x.db"
	cfg.BatchSize = 0
	assert.True(t, errors.HasCode(cfg.Validate(), metrics.ErrInvalidConfig))

	_, err := metrics.NewService(cfg)
	assert.True(t, errors.HasCode(err, metrics.ErrInvalidConfig))
}

func TestRecordBatchesAndFlushesOnClose(t *testing.T) {
	cfg := testConfig(t)
	rec, err := metrics.NewService(cfg)
	require.NoError(t, err)

	pub := metrics.NewPublisher(rec)
	ctx := context.Background()
	base := time.Date(2024, time.May, 1, 10, 0, 0, 0, time.UTC)

	for i := range 15 {
		require.NoError(t, pub.PublishTick(ctx, tick(base.Add(time.Duration(i)*200*time.Millisecond))))
	}
	require.NoError(t, pub.PublishConnection(ctx, connection.Listening, connection.Streaming))

	assert.Equal(t, 10, count(t, cfg.DBPath, "ticks"))
	assert.Equal(t, 1, count(t, cfg.DBPath, "connection_events"))

	require.NoError(t, rec.Close())
	assert.Equal(t, 15, count(t, cfg.DBPath, "ticks"))
	require.NoError(t, rec.Close())
}

func TestFailedBatchIsDropped(t *testing.T) {
	cfg := testConfig(t)
	repo, err := metrics.NewRepository(cfg, logger.Default())
	require.NoError(t, err)
	defer repo.Close()

	db, err := sql.Open("sqlite3", cfg.DBPath)
	require.NoError(t, err)
	defer db.Close()

	base := time.Date(2024, time.May, 1, 10, 0, 0, 0, time.UTC)
	record := func(from, n int) error {
		var last error
		for i := from; i < from+n; i++ {
			last = repo.Record(metrics.NewTickRecord(tick(base.Add(time.Duration(i) * time.Second))))
		}
		return last
	}

	_, err = db.Exec("ALTER TABLE ticks RENAME TO ticks_hidden")
	require.NoError(t, err)
	err = record(0, cfg.BatchSize)
	assert.True(t, errors.HasCode(err, metrics.ErrTransactionFailed))

	_, err = db.Exec("ALTER TABLE ticks_hidden RENAME TO ticks")
	require.NoError(t, err)
	require.NoError(t, record(cfg.BatchSize, cfg.BatchSize))

	assert.Equal(t, cfg.BatchSize, count(t, cfg.DBPath, "ticks"))
}

func TestRecordRejectsNil(t *testing.T) {
	rec, err := metrics.NewService(testConfig(t))
	require.NoError(t, err)
	defer rec.Close()

	assert.True(t, errors.HasCode(rec.Record(context.Background(), nil), metrics.ErrInvalidTick))
}

func TestNewTickRecord(t *testing.T) {
	at := time.Date(2024, time.May, 1, 10, 0, 0, 0, time.UTC)
	r := metrics.NewTickRecord(tick(at))

	assert.Equal(t, at, r.Timestamp)
	assert.Equal(t, "streaming", r.Connection)
	assert.Equal(t, "NORMAL", r.Status)
	assert.Equal(t, 6, r.WindowLength)
	assert.InDelta(t, 10, r.RMSVoltage, 1e-9)
	assert.InDelta(t, 2, r.RMSCurrent, 1e-9)
	assert.Equal(t, "#000000", r.FrameColor)
}

func TestSchemaMismatchBacksUp(t *testing.T) {
	cfg := testConfig(t)

	rec, err := metrics.NewService(cfg)
	require.NoError(t, err)
	require.NoError(t, rec.Close())

	db, err := sql.Open("sqlite3", cfg.DBPath)
	require.NoError(t, err)
	_, err = db.Exec("UPDATE schema_versions SET version = 99")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	repo, err := metrics.NewRepository(cfg, logger.Default())
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	entries, err := os.ReadDir(cfg.BackupDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

package telemetry

import (
	"database/sql"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/winchlab/servoctl/internal/errors"
	"github.com/winchlab/servoctl/internal/logger"
)

const (
	defaultDirPerm   = 0o755
	defaultBatchSize = 64

	createTablesSQL = `
    CREATE TABLE IF NOT EXISTS cycle_samples (
        timestamp    INTEGER NOT NULL,
        cycle        INTEGER NOT NULL,
        jitter_ns    INTEGER NOT NULL,
        position     INTEGER NOT NULL,
        drive_state  TEXT    NOT NULL,
        actual_pos   INTEGER NOT NULL,
        actual_vel   INTEGER NOT NULL,
        actual_torq  INTEGER NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_cycle_samples_ts ON cycle_samples (timestamp);`

	insertSampleSQL = `
    INSERT INTO cycle_samples (
        timestamp, cycle, jitter_ns, position,
        drive_state, actual_pos, actual_vel, actual_torq
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
)

type repository struct {
	db     *sql.DB
	cfg    Config
	mu     sync.Mutex
	buffer []*Sample
}

// NewRepository opens the sqlite-backed sample store, creating the
// schema when needed. Inserts are batched; a batch is flushed inside one
// transaction.
func NewRepository(cfg Config) (Repository, error) {
	errFactory := errors.New()

	if cfg.DBPath == "" {
		return nil, errFactory.New(errors.ErrInvalidDBPath)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), defaultDirPerm); err != nil {
		return nil, errFactory.Wrap(errors.ErrStorageInit, err)
	}

	dsn := cfg.DBPath + "?_journal=WAL&_auto_vacuum=2"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrStorageInit, err)
	}

	if _, err := db.Exec(createTablesSQL); err != nil {
		db.Close()
		return nil, errFactory.Wrap(errors.ErrStorageInit, err)
	}

	logger.Info().
		Str("path", cfg.DBPath).
		Int("batch_size", cfg.BatchSize).
		Msg("Telemetry repository initialized")

	return &repository{
		db:     db,
		cfg:    cfg,
		buffer: make([]*Sample, 0, cfg.BatchSize),
	}, nil
}

func (r *repository) Record(s *Sample) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buffer = append(r.buffer, s)
	if len(r.buffer) < r.cfg.BatchSize {
		return nil
	}

	return r.flushLocked()
}

func (r *repository) flushLocked() error {
	errFactory := errors.New()

	if len(r.buffer) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return errFactory.Wrap(errors.ErrRecordTelemetry, err)
	}

	stmt, err := tx.Prepare(insertSampleSQL)
	if err != nil {
		tx.Rollback()
		return errFactory.Wrap(errors.ErrRecordTelemetry, err)
	}
	defer stmt.Close()

	for _, s := range r.buffer {
		if _, err := stmt.Exec(
			s.Timestamp, int64(s.Cycle), s.JitterNs, int64(s.Position),
			s.DriveState, s.ActualPos, s.ActualVel, s.ActualTorq,
		); err != nil {
			tx.Rollback()
			return errFactory.Wrap(errors.ErrRecordTelemetry, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(errors.ErrRecordTelemetry, err)
	}

	r.buffer = r.buffer[:0]

	return nil
}

func (r *repository) Close() error {
	errFactory := errors.New()

	r.mu.Lock()
	flushErr := r.flushLocked()
	r.mu.Unlock()

	if err := r.db.Close(); err != nil {
		return errFactory.Wrap(errors.ErrCloseTelemetry, err)
	}

	return flushErr
}

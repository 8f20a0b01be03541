package metrics

import (
	"database/sql"

	"codeberg.org/mutker/motortwin/internal/errors"
	"codeberg.org/mutker/motortwin/internal/logger"
)

const (
	SchemaVersion = 1

	createTablesSQL = `
	   CREATE TABLE IF NOT EXISTS schema_versions (
	       version     INTEGER PRIMARY KEY,
	       applied_at  TEXT NOT NULL
	   );
	   CREATE TABLE IF NOT EXISTS ticks (
	       id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	       timestamp_ms       INTEGER NOT NULL,
	       connection         TEXT NOT NULL,
	       status             TEXT NOT NULL,
	       speed              REAL NOT NULL,
	       temperature        REAL NOT NULL,
	       window_length      INTEGER NOT NULL CHECK (window_length >= 0),
	       rms_voltage        REAL NOT NULL,
	       rms_current        REAL NOT NULL,
	       frame_color        TEXT NOT NULL,
	       wire_color         TEXT NOT NULL,
	       particle_amplitude REAL NOT NULL,
	       network_latency_ms REAL NOT NULL,
	       render_latency_ms  REAL NOT NULL,
	       sensor_interval_ms REAL NOT NULL
	   );
	   CREATE INDEX IF NOT EXISTS ticks_timestamp ON ticks (timestamp_ms);
	   CREATE TABLE IF NOT EXISTS connection_events (
	       id           INTEGER PRIMARY KEY AUTOINCREMENT,
	       timestamp_ms INTEGER NOT NULL,
	       from_state   TEXT NOT NULL,
	       to_state     TEXT NOT NULL
	   );`

	insertTickSQL = `
    INSERT INTO ticks (
        timestamp_ms, connection, status,
        speed, temperature,
        window_length, rms_voltage, rms_current,
        frame_color, wire_color, particle_amplitude,
        network_latency_ms, render_latency_ms, sensor_interval_ms
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	insertTransitionSQL = `
    INSERT INTO connection_events (timestamp_ms, from_state, to_state)
    VALUES (?, ?, ?)`
)

var tables = []string{"ticks", "connection_events", "schema_versions"}

// InitSchema creates a new database schema with the current version
func InitSchema(db *sql.DB, log logger.Logger) error {
	errFactory := errors.New()

	tx, err := db.Begin()
	if err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}

	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
				log.Debug().Err(err).Msg("Failed to rollback transaction")
			}
		}
	}()

	if _, err := tx.Exec(createTablesSQL); err != nil {
		return errFactory.WithData(ErrSchemaInitFailed, struct {
			Phase string
			Error string
		}{
			Phase: "create_tables",
			Error: err.Error(),
		})
	}

	if _, err := tx.Exec(`
        INSERT INTO schema_versions (version, applied_at)
        VALUES (?, datetime('now'))
    `, SchemaVersion); err != nil {
		return errFactory.WithData(ErrSchemaInitFailed, struct {
			Phase string
			Error string
		}{
			Phase: "record_version",
			Error: err.Error(),
		})
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}
	committed = true

	log.Info().Int("version", SchemaVersion).Msg("Schema initialized")

	return nil
}

// GetSchemaVersion returns the current schema version, 0 for an empty
// database.
func GetSchemaVersion(db *sql.DB) (int, error) {
	errFactory := errors.New()

	exists, err := TableExists(db, "schema_versions")
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, nil
	}

	var version int
	err = db.QueryRow(`
        SELECT version
        FROM schema_versions
        ORDER BY version DESC
        LIMIT 1
    `).Scan(&version)

	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, errFactory.Wrap(ErrSchemaValidationFailed, err)
	}

	return version, nil
}

func TableExists(db *sql.DB, tableName string) (bool, error) {
	var exists bool
	err := db.QueryRow(`
        SELECT EXISTS (
            SELECT 1 FROM sqlite_master
            WHERE type='table' AND name=?
        )
    `, tableName).Scan(&exists)
	if err != nil {
		return false, errors.New().WithData(ErrSchemaValidationFailed, struct {
			Phase string
			Table string
			Error string
		}{
			Phase: "check_table_exists",
			Table: tableName,
			Error: err.Error(),
		})
	}
	return exists, nil
}

package state

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/teamcutter/patchr/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS transfers (
    batch_id     TEXT NOT NULL,
    remote_key   TEXT NOT NULL,
    local_path   TEXT NOT NULL,
    bytes        INTEGER NOT NULL DEFAULT 0,
    etag         TEXT NOT NULL DEFAULT '',
    status       TEXT NOT NULL DEFAULT 'pending',
    error        TEXT NOT NULL DEFAULT '',
    started_at   TEXT NOT NULL,
    finished_at  TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (batch_id, remote_key)
);
`

// Journal is the transfer history. It is advisory: the manifest stays the
// source of truth for what is installed.
type Journal struct {
	mu     sync.Mutex
	db     *sql.DB
	logger zerolog.Logger
}

func NewJournal(dbPath string, logger zerolog.Logger) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	j := &Journal{db: db, logger: logger}
	if err := j.recover(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to recover: %w", err)
	}
	return j, nil
}

// recover marks transfers left pending by a killed process as interrupted.
func (j *Journal) recover() error {
	res, err := j.db.Exec(
		"UPDATE transfers SET status = ?, finished_at = ? WHERE status = ?",
		domain.StatusInterrupted, time.Now().UTC().Format(time.RFC3339), domain.StatusPending)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		j.logger.Warn().Int64("transfers", n).Msg("recovered interrupted transfers")
	}
	return nil
}

func (j *Journal) Begin(batchID string, t domain.Transfer) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.Exec(`
		INSERT OR REPLACE INTO transfers (batch_id, remote_key, local_path, status, started_at)
		VALUES (?, ?, ?, ?, ?)`,
		batchID, t.RemoteKey, t.LocalPath, domain.StatusPending, time.Now().UTC().Format(time.RFC3339))
	return err
}

func (j *Journal) Finish(rec domain.TransferRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	finished := rec.FinishedAt
	if finished.IsZero() {
		finished = time.Now().UTC()
	}

	_, err := j.db.Exec(`
		INSERT INTO transfers (batch_id, remote_key, local_path, bytes, etag, status, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (batch_id, remote_key) DO UPDATE SET
		    bytes = excluded.bytes,
		    etag = excluded.etag,
		    status = excluded.status,
		    error = excluded.error,
		    finished_at = excluded.finished_at`,
		rec.BatchID, rec.RemoteKey, rec.LocalPath, rec.Bytes, rec.ETag, rec.Status, rec.Error,
		finished.Format(time.RFC3339), finished.Format(time.RFC3339))
	return err
}

// History returns the newest transfers first.
func (j *Journal) History(limit int) ([]domain.TransferRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if limit <= 0 {
		limit = -1
	}

	rows, err := j.db.Query(`
		SELECT batch_id, remote_key, local_path, bytes, etag, status, error, finished_at
		FROM transfers ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.TransferRecord
	for rows.Next() {
		var rec domain.TransferRecord
		var finished string
		if err := rows.Scan(&rec.BatchID, &rec.RemoteKey, &rec.LocalPath, &rec.Bytes,
			&rec.ETag, &rec.Status, &rec.Error, &finished); err != nil {
			return nil, err
		}
		rec.FinishedAt, _ = time.Parse(time.RFC3339, finished)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (j *Journal) Close() error {
	return j.db.Close()
}

// Package audit records every fingerprint operation, including cancelled
// ones, in a local SQLite database.
package audit

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/ilexum-group/janus/pkg/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS audit_log (
	id             TEXT PRIMARY KEY,
	timestamp      TEXT NOT NULL,
	operation_type TEXT NOT NULL,
	target         TEXT NOT NULL,
	parameters     TEXT,
	result         TEXT NOT NULL,
	error_kind     TEXT,
	risk_level     TEXT NOT NULL,
	stages_reached TEXT,
	backup_id      TEXT,
	user           TEXT NOT NULL,
	duration_ms    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_log (timestamp);
`

// Store is an append-only audit trail. Records are never updated or deleted
// by the application.
type Store struct {
	db *sql.DB
}

// NewStore opens (and if needed creates) the audit database at path.
func NewStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create audit directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize audit schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Log appends one record. A missing ID or timestamp is filled in so callers
// can build records without bookkeeping.
func (s *Store) Log(record models.AuditRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}

	parameters, err := marshalOrNull(record.Parameters)
	if err != nil {
		return fmt.Errorf("encode audit parameters: %w", err)
	}
	stages, err := marshalOrNull(record.StagesReached)
	if err != nil {
		return fmt.Errorf("encode audit stages: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO audit_log
		 (id, timestamp, operation_type, target, parameters, result, error_kind, risk_level, stages_reached, backup_id, user, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.Timestamp.UTC().Format(time.RFC3339Nano),
		string(record.OperationType),
		record.Target,
		parameters,
		record.Result,
		record.ErrorKind,
		string(record.RiskLevel),
		stages,
		record.BackupID,
		record.User,
		record.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("write audit record: %w", err)
	}
	return nil
}

// Recent returns the newest records, most recent first. limit <= 0 returns
// everything.
func (s *Store) Recent(limit int) ([]models.AuditRecord, error) {
	query := `SELECT id, timestamp, operation_type, target, parameters, result, error_kind, risk_level, stages_reached, backup_id, user, duration_ms
	          FROM audit_log ORDER BY timestamp DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer rows.Close()

	var records []models.AuditRecord
	for rows.Next() {
		var (
			record     models.AuditRecord
			timestamp  string
			opType     string
			risk       string
			parameters sql.NullString
			stages     sql.NullString
			errorKind  sql.NullString
			backupID   sql.NullString
			durationMS int64
		)
		if err := rows.Scan(&record.ID, &timestamp, &opType, &record.Target, &parameters,
			&record.Result, &errorKind, &risk, &stages, &backupID, &record.User, &durationMS); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}

		if t, err := time.Parse(time.RFC3339Nano, timestamp); err == nil {
			record.Timestamp = t
		}
		record.OperationType = models.OperationType(opType)
		record.RiskLevel = models.RiskLevel(risk)
		record.ErrorKind = errorKind.String
		record.BackupID = backupID.String
		record.Duration = time.Duration(durationMS) * time.Millisecond

		if parameters.Valid && parameters.String != "" {
			_ = json.Unmarshal([]byte(parameters.String), &record.Parameters)
		}
		if stages.Valid && stages.String != "" {
			_ = json.Unmarshal([]byte(stages.String), &record.StagesReached)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}
	return records, nil
}

// marshalOrNull encodes v as JSON, mapping empty values to SQL NULL.
func marshalOrNull(v any) (sql.NullString, error) {
	switch t := v.(type) {
	case map[string]string:
		if len(t) == 0 {
			return sql.NullString{}, nil
		}
	case []string:
		if len(t) == 0 {
			return sql.NullString{}, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

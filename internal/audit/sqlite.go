package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/Shivendra2129/-PharmaGuard/internal/domain"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS assessments (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	patient_id TEXT NOT NULL,
	request_id TEXT NOT NULL,
	gene       TEXT NOT NULL,
	drug       TEXT NOT NULL,
	risk_label TEXT NOT NULL,
	result     TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_assessments_patient ON assessments(patient_id);
CREATE INDEX IF NOT EXISTS idx_assessments_created ON assessments(created_at);
`

// SQLiteStore persists assessments to an embedded SQLite database. The full
// result is stored as JSON alongside a few indexed columns.
type SQLiteStore struct {
	db  *sql.DB
	log *logrus.Logger
}

// NewSQLiteStore opens (creating if needed) the database file and ensures
// the schema exists.
func NewSQLiteStore(path string, logger *logrus.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	// Single writer; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("configuring sqlite database: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating audit schema: %w", err)
	}

	logger.WithField("path", path).Info("SQLite audit store ready")
	return &SQLiteStore{db: db, log: logger}, nil
}

// Save appends one completed assessment.
func (s *SQLiteStore) Save(ctx context.Context, record *domain.AssessmentRecord) error {
	payload, err := json.Marshal(record.Result)
	if err != nil {
		return fmt.Errorf("marshaling assessment result: %w", err)
	}

	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO assessments (patient_id, request_id, gene, drug, risk_label, result, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.PatientID, record.RequestID,
		record.Result.Gene, record.Result.Drug, string(record.Result.RiskLabel),
		string(payload), createdAt,
	)
	if err != nil {
		return fmt.Errorf("inserting assessment record: %w", err)
	}
	return nil
}

// Recent returns the most recent records, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]domain.AssessmentRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, patient_id, request_id, result, created_at
		 FROM assessments ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent assessments: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// ByPatient returns all records for one patient, newest first.
func (s *SQLiteStore) ByPatient(ctx context.Context, patientID string) ([]domain.AssessmentRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, patient_id, request_id, result, created_at
		 FROM assessments WHERE patient_id = ? ORDER BY created_at DESC, id DESC`, patientID)
	if err != nil {
		return nil, fmt.Errorf("querying patient assessments: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanRecords(rows *sql.Rows) ([]domain.AssessmentRecord, error) {
	var records []domain.AssessmentRecord
	for rows.Next() {
		var rec domain.AssessmentRecord
		var payload string
		if err := rows.Scan(&rec.ID, &rec.PatientID, &rec.RequestID, &payload, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning assessment record: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &rec.Result); err != nil {
			return nil, fmt.Errorf("unmarshaling assessment result: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating assessment records: %w", err)
	}
	return records, nil
}

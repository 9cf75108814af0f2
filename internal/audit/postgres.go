package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/Shivendra2129/-PharmaGuard/internal/domain"
)

// PostgresStore persists assessments to PostgreSQL. Schema management is
// handled by the database package's migration runner at startup.
type PostgresStore struct {
	db  *sql.DB
	log *logrus.Logger
}

// NewPostgresStore wraps an already-connected database handle.
func NewPostgresStore(db *sql.DB, logger *logrus.Logger) *PostgresStore {
	return &PostgresStore{db: db, log: logger}
}

// Save appends one completed assessment.
func (s *PostgresStore) Save(ctx context.Context, record *domain.AssessmentRecord) error {
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
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		record.PatientID, record.RequestID,
		record.Result.Gene, record.Result.Drug, string(record.Result.RiskLabel),
		payload, createdAt,
	)
	if err != nil {
		return fmt.Errorf("inserting assessment record: %w", err)
	}
	return nil
}

// Recent returns the most recent records, newest first.
func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]domain.AssessmentRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, patient_id, request_id, result, created_at
		 FROM assessments ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent assessments: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// ByPatient returns all records for one patient, newest first.
func (s *PostgresStore) ByPatient(ctx context.Context, patientID string) ([]domain.AssessmentRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, patient_id, request_id, result, created_at
		 FROM assessments WHERE patient_id = $1 ORDER BY created_at DESC, id DESC`, patientID)
	if err != nil {
		return nil, fmt.Errorf("querying patient assessments: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// Close releases the database handle.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Package audit persists completed risk assessments for traceability.
// Persistence is write-behind: a store failure is logged and never surfaces
// into the assessment response.
package audit

import (
	"context"

	"github.com/Shivendra2129/-PharmaGuard/internal/domain"
)

// Store persists assessment records.
type Store interface {
	// Save appends one completed assessment.
	Save(ctx context.Context, record *domain.AssessmentRecord) error
	// Recent returns the most recent records, newest first.
	Recent(ctx context.Context, limit int) ([]domain.AssessmentRecord, error)
	// ByPatient returns all records for one patient, newest first.
	ByPatient(ctx context.Context, patientID string) ([]domain.AssessmentRecord, error)
	// Close releases the underlying connection.
	Close() error
}

// NopStore discards all records. Used when auditing is disabled.
type NopStore struct{}

func (NopStore) Save(context.Context, *domain.AssessmentRecord) error { return nil }

func (NopStore) Recent(context.Context, int) ([]domain.AssessmentRecord, error) {
	return nil, nil
}

func (NopStore) ByPatient(context.Context, string) ([]domain.AssessmentRecord, error) {
	return nil, nil
}

func (NopStore) Close() error { return nil }

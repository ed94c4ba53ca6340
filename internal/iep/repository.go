package iep

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrAssignmentNotFound = errors.New("therapy assignment not found")

	// ErrStaleAssignment means another writer updated the assignment between
	// this caller's read and write. The caller should re-read and retry.
	ErrStaleAssignment = errors.New("therapy assignment was modified concurrently")
)

// Repository contains all DB interactions needed by the ledger service.
type Repository interface {
	InsertAssignment(ctx context.Context, a *TherapyAssignment) (*TherapyAssignment, error)
	GetAssignmentByID(ctx context.Context, id uuid.UUID) (*TherapyAssignment, error)
	ListByChild(ctx context.Context, childID uuid.UUID) ([]TherapyAssignment, error)

	// UpdateAssignment persists a, but only if the stored row's updated_at
	// still equals expectedUpdatedAt. ErrStaleAssignment on a lost race.
	UpdateAssignment(ctx context.Context, a *TherapyAssignment, expectedUpdatedAt time.Time) (*TherapyAssignment, error)

	DeleteAssignment(ctx context.Context, id uuid.UUID) error
}

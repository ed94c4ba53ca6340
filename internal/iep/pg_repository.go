package iep

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool the repository uses.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PgRepository stores assignments with monthly_goals as a JSONB document, the
// same record shape the snapshots carry in memory.
type PgRepository struct {
	db DB
}

func NewPgRepository(db DB) *PgRepository {
	return &PgRepository{db: db}
}

const assignmentColumns = `id, child_id, doctor_id, therapy, therapist_name, feedback, starting_month, starting_year, monthly_goals, created_at, updated_at`

func scanAssignment(row pgx.Row) (*TherapyAssignment, error) {
	var a TherapyAssignment
	var goalsRaw []byte

	err := row.Scan(
		&a.ID,
		&a.ChildID,
		&a.DoctorID,
		&a.Therapy,
		&a.TherapistName,
		&a.Feedback,
		&a.StartingMonth,
		&a.StartingYear,
		&goalsRaw,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAssignmentNotFound
		}
		return nil, err
	}

	if err := json.Unmarshal(goalsRaw, &a.MonthlyGoals); err != nil {
		return nil, fmt.Errorf("decode monthly goals: %w", err)
	}

	return &a, nil
}

func (r *PgRepository) InsertAssignment(ctx context.Context, a *TherapyAssignment) (*TherapyAssignment, error) {
	goalsRaw, err := json.Marshal(a.MonthlyGoals)
	if err != nil {
		return nil, fmt.Errorf("encode monthly goals: %w", err)
	}

	id := uuid.New()

	row := r.db.QueryRow(ctx, `
		INSERT INTO therapy_assignments
			(id, child_id, doctor_id, therapy, therapist_name, feedback, starting_month, starting_year, monthly_goals, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
		RETURNING `+assignmentColumns+`
	`, id, a.ChildID, a.DoctorID, a.Therapy, a.TherapistName, a.Feedback, a.StartingMonth, a.StartingYear, goalsRaw)

	return scanAssignment(row)
}

func (r *PgRepository) GetAssignmentByID(ctx context.Context, id uuid.UUID) (*TherapyAssignment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+assignmentColumns+`
		FROM therapy_assignments
		WHERE id = $1
	`, id)
	return scanAssignment(row)
}

func (r *PgRepository) ListByChild(ctx context.Context, childID uuid.UUID) ([]TherapyAssignment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+assignmentColumns+`
		FROM therapy_assignments
		WHERE child_id = $1
		ORDER BY created_at DESC
	`, childID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []TherapyAssignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// UpdateAssignment writes the full document conditionally on the optimistic
// token, so a push-then-replace amendment lands whole or not at all.
func (r *PgRepository) UpdateAssignment(ctx context.Context, a *TherapyAssignment, expectedUpdatedAt time.Time) (*TherapyAssignment, error) {
	goalsRaw, err := json.Marshal(a.MonthlyGoals)
	if err != nil {
		return nil, fmt.Errorf("encode monthly goals: %w", err)
	}

	row := r.db.QueryRow(ctx, `
		UPDATE therapy_assignments
		SET therapy = $2,
		    therapist_name = $3,
		    feedback = $4,
		    monthly_goals = $5,
		    updated_at = now()
		WHERE id = $1
		  AND updated_at = $6
		RETURNING `+assignmentColumns+`
	`, a.ID, a.Therapy, a.TherapistName, a.Feedback, goalsRaw, expectedUpdatedAt)

	updated, err := scanAssignment(row)
	if err != nil {
		if errors.Is(err, ErrAssignmentNotFound) {
			// The row exists but the token moved, or the row is gone. Tell
			// them apart so the caller gets the right error kind.
			if _, getErr := r.GetAssignmentByID(ctx, a.ID); getErr == nil {
				return nil, ErrStaleAssignment
			}
			return nil, ErrAssignmentNotFound
		}
		return nil, err
	}
	return updated, nil
}

func (r *PgRepository) DeleteAssignment(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM therapy_assignments
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAssignmentNotFound
	}
	return nil
}

package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/totalsolutions/clinic-ops/internal/slot"
)

var (
	ErrChildNotFound       = errors.New("child not found")
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrCentreNotFound      = errors.New("centre not found")
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrSlotUnavailable is returned when the requested doctor/date/slot triple
	// is already held by a pending or approved appointment. The caller should
	// re-fetch availability and retry.
	ErrSlotUnavailable = errors.New("slot unavailable for this doctor and date")
)

// Repository contains all DB interactions needed by the scheduler.
type Repository interface {
	GetChildByID(ctx context.Context, id uuid.UUID) (*Child, error)
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetCentreByID(ctx context.Context, id uuid.UUID) (*Centre, error)

	// FindActiveByDoctorAndDate returns the doctor's pending and approved
	// appointments on the given day. Rejected rows are excluded so their
	// slots read as free.
	FindActiveByDoctorAndDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Appointment, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListByCentre(ctx context.Context, centreID uuid.UUID) ([]Appointment, error)

	// Insert persists a new appointment. It returns ErrSlotUnavailable when the
	// unique occupancy constraint rejects the row.
	Insert(ctx context.Context, a *Appointment) (*Appointment, error)

	// UpdateSchedule moves an appointment to a new date and slot, leaving every
	// other field untouched. Returns ErrSlotUnavailable on an occupancy conflict.
	UpdateSchedule(ctx context.Context, id uuid.UUID, date time.Time, s slot.TimeSlot) (*Appointment, error)

	// UpdateStatus transitions status conditionally: the row is updated only if
	// its current status equals from. ErrAppointmentNotFound when no row matches.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)

	AttachPrescription(ctx context.Context, id uuid.UUID, ref string) (*Appointment, error)
}

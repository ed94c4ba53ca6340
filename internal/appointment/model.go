package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/totalsolutions/clinic-ops/internal/slot"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Occupies reports whether an appointment in this status holds its slot.
// Rejected appointments free their slot immediately.
func (s Status) Occupies() bool {
	return s == StatusPending || s == StatusApproved
}

type ConsultationType string

const (
	ConsultationNew          ConsultationType = "New Consultation"
	ConsultationAssessmentIQ ConsultationType = "Assessment(IQ)"
)

type Child struct {
	ID        uuid.UUID
	Name      string
	DOB       *time.Time
	ParentID  *uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Doctor struct {
	ID        uuid.UUID
	Name      string
	Specialty *string
	CentreID  uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Centre struct {
	ID        uuid.UUID
	Name      string
	Address   *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Appointment books one child with one doctor for one catalog slot on one day.
// Date carries day precision only; the time of day lives in Slot.
type Appointment struct {
	ID               uuid.UUID
	ChildID          uuid.UUID
	DoctorID         uuid.UUID
	CentreID         uuid.UUID
	Date             time.Time
	Slot             slot.TimeSlot
	ConsultationType ConsultationType
	Status           Status
	Prescription     *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	redisclient "github.com/totalsolutions/clinic-ops/internal/redis"
	"github.com/totalsolutions/clinic-ops/internal/slot"
)

var (
	ErrDateInPast              = errors.New("appointment date is in the past")
	ErrUnknownSlot             = errors.New("slot is not in the clinic catalog")
	ErrInvalidStatusTransition = errors.New("invalid status transition")

	// ErrScheduleBusy means another request holds the doctor's schedule lock
	// for that date. The caller should retry with fresh availability.
	ErrScheduleBusy = errors.New("schedule is being modified, please retry")
)

type Service struct {
	repo   Repository
	locker redisclient.Locker
	now    func() time.Time
}

func NewService(repo Repository, locker redisclient.Locker) *Service {
	return &Service{
		repo:   repo,
		locker: locker,
		now:    time.Now,
	}
}

// BookingRequest carries every identifier explicitly; the service holds no
// session state.
type BookingRequest struct {
	ChildID          uuid.UUID
	DoctorID         uuid.UUID
	CentreID         uuid.UUID
	Date             time.Time
	Slot             slot.TimeSlot
	ConsultationType ConsultationType
}

// AvailableSlots returns the catalog minus the slots of the doctor's pending
// and approved appointments on date, in catalog order.
func (s *Service) AvailableSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]slot.TimeSlot, error) {
	if _, err := s.repo.GetDoctorByID(ctx, doctorID); err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	taken, err := s.occupiedSlots(ctx, doctorID, dateOnly(date), uuid.Nil)
	if err != nil {
		return nil, err
	}

	return slot.Remaining(taken), nil
}

// Book reserves a slot for a child. The availability re-check and the insert
// run inside a per doctor/date lock, and the appointments table carries a
// unique occupancy constraint, so two racing requests for the same slot cannot
// both succeed.
func (s *Service) Book(ctx context.Context, req BookingRequest) (*Appointment, error) {
	if !slot.Valid(req.Slot) {
		return nil, ErrUnknownSlot
	}

	date := dateOnly(req.Date)
	if date.Before(dateOnly(s.now())) {
		return nil, ErrDateInPast
	}

	if _, err := s.repo.GetChildByID(ctx, req.ChildID); err != nil {
		if errors.Is(err, ErrChildNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load child: %w", err)
	}
	if _, err := s.repo.GetDoctorByID(ctx, req.DoctorID); err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	var created *Appointment

	err := s.locker.WithScheduleLock(ctx, req.DoctorID, date, func(lockCtx context.Context) error {
		free, err := s.slotFree(lockCtx, req.DoctorID, date, req.Slot, uuid.Nil)
		if err != nil {
			return err
		}
		if !free {
			return ErrSlotUnavailable
		}

		appt, err := s.repo.Insert(lockCtx, &Appointment{
			ChildID:          req.ChildID,
			DoctorID:         req.DoctorID,
			CentreID:         req.CentreID,
			Date:             date,
			Slot:             req.Slot,
			ConsultationType: req.ConsultationType,
			Status:           StatusPending,
		})
		if err != nil {
			return fmt.Errorf("insert appointment: %w", err)
		}

		created = appt
		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrScheduleBusy
		}
		return nil, err
	}

	return created, nil
}

// Reschedule moves an existing appointment to a new date and slot. Only the
// target date/slot is validated; the appointment's prior occupancy is excluded
// from the check so moving onto its own current slot succeeds. Status and all
// other fields are preserved.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, date time.Time, target slot.TimeSlot) (*Appointment, error) {
	if !slot.Valid(target) {
		return nil, ErrUnknownSlot
	}

	day := dateOnly(date)
	if day.Before(dateOnly(s.now())) {
		return nil, ErrDateInPast
	}

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	var updated *Appointment

	err = s.locker.WithScheduleLock(ctx, appt.DoctorID, day, func(lockCtx context.Context) error {
		free, err := s.slotFree(lockCtx, appt.DoctorID, day, target, appt.ID)
		if err != nil {
			return err
		}
		if !free {
			return ErrSlotUnavailable
		}

		moved, err := s.repo.UpdateSchedule(lockCtx, appt.ID, day, target)
		if err != nil {
			return fmt.Errorf("update schedule: %w", err)
		}

		updated = moved
		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrScheduleBusy
		}
		return nil, err
	}

	return updated, nil
}

// Approve moves a pending appointment to approved.
func (s *Service) Approve(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusApproved)
}

// Reject moves a pending appointment to rejected, freeing its slot.
func (s *Service) Reject(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusRejected)
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, to Status) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if appt.Status != StatusPending {
		return nil, ErrInvalidStatusTransition
	}

	updated, err := s.repo.UpdateStatus(ctx, appt.ID, StatusPending, to)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// Lost a race with another transition.
			return nil, ErrInvalidStatusTransition
		}
		return nil, fmt.Errorf("update status: %w", err)
	}

	return updated, nil
}

// AttachPrescription records a prescription reference on an appointment.
func (s *Service) AttachPrescription(ctx context.Context, id uuid.UUID, ref string) (*Appointment, error) {
	updated, err := s.repo.AttachPrescription(ctx, id, ref)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("attach prescription: %w", err)
	}
	return updated, nil
}

// GetByID retrieves an appointment.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return appt, nil
}

// Detail bundles an appointment with the display names reports need.
type Detail struct {
	Appointment
	ChildName  string
	DoctorName string
	CentreName string
}

// GetDetail retrieves an appointment hydrated with child, doctor and centre names.
func (s *Service) GetDetail(ctx context.Context, id uuid.UUID) (*Detail, error) {
	appt, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	child, err := s.repo.GetChildByID(ctx, appt.ChildID)
	if err != nil {
		return nil, fmt.Errorf("load child: %w", err)
	}
	doctor, err := s.repo.GetDoctorByID(ctx, appt.DoctorID)
	if err != nil {
		return nil, fmt.Errorf("load doctor: %w", err)
	}
	centre, err := s.repo.GetCentreByID(ctx, appt.CentreID)
	if err != nil {
		return nil, fmt.Errorf("load centre: %w", err)
	}

	return &Detail{
		Appointment: *appt,
		ChildName:   child.Name,
		DoctorName:  doctor.Name,
		CentreName:  centre.Name,
	}, nil
}

// GetChild resolves a child record.
func (s *Service) GetChild(ctx context.Context, id uuid.UUID) (*Child, error) {
	child, err := s.repo.GetChildByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrChildNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load child: %w", err)
	}
	return child, nil
}

// ListByCentre retrieves all appointments booked at a centre.
func (s *Service) ListByCentre(ctx context.Context, centreID uuid.UUID) ([]Appointment, error) {
	appts, err := s.repo.ListByCentre(ctx, centreID)
	if err != nil {
		return nil, fmt.Errorf("list appointments by centre: %w", err)
	}
	return appts, nil
}

func (s *Service) occupiedSlots(ctx context.Context, doctorID uuid.UUID, date time.Time, exclude uuid.UUID) ([]slot.TimeSlot, error) {
	active, err := s.repo.FindActiveByDoctorAndDate(ctx, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("find active appointments: %w", err)
	}

	taken := make([]slot.TimeSlot, 0, len(active))
	for _, a := range active {
		if exclude != uuid.Nil && a.ID == exclude {
			continue
		}
		taken = append(taken, a.Slot)
	}
	return taken, nil
}

func (s *Service) slotFree(ctx context.Context, doctorID uuid.UUID, date time.Time, target slot.TimeSlot, exclude uuid.UUID) (bool, error) {
	taken, err := s.occupiedSlots(ctx, doctorID, date, exclude)
	if err != nil {
		return false, err
	}
	for _, t := range taken {
		if t == target {
			return false, nil
		}
	}
	return true, nil
}

// dateOnly truncates to the UTC calendar day. Request dates parse as UTC, so
// the clock is normalized here too; otherwise the past-date check shifts by a
// day around local midnight.
func dateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/totalsolutions/clinic-ops/internal/appointment"
	"github.com/totalsolutions/clinic-ops/internal/iep"
	"github.com/totalsolutions/clinic-ops/internal/slot"
)

const dateLayout = "2006-01-02"

type BookAppointmentRequest struct {
	ChildID          string `json:"child_id"`
	DoctorID         string `json:"doctor_id"`
	CentreID         string `json:"centre_id"`
	Date             string `json:"date"`
	Slot             string `json:"slot"`
	ConsultationType string `json:"consultation_type"`
}

type RescheduleRequest struct {
	Date string `json:"date"`
	Slot string `json:"slot"`
}

type PrescriptionRequest struct {
	Prescription string `json:"prescription"`
}

type AppointmentResponse struct {
	ID               uuid.UUID `json:"id"`
	ChildID          uuid.UUID `json:"child_id"`
	DoctorID         uuid.UUID `json:"doctor_id"`
	CentreID         uuid.UUID `json:"centre_id"`
	Date             string    `json:"date"`
	Slot             string    `json:"slot"`
	ConsultationType string    `json:"consultation_type"`
	Status           string    `json:"status"`
	Prescription     *string   `json:"prescription,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:               a.ID,
		ChildID:          a.ChildID,
		DoctorID:         a.DoctorID,
		CentreID:         a.CentreID,
		Date:             a.Date.Format(dateLayout),
		Slot:             string(a.Slot),
		ConsultationType: string(a.ConsultationType),
		Status:           string(a.Status),
		Prescription:     a.Prescription,
		CreatedAt:        a.CreatedAt,
		UpdatedAt:        a.UpdatedAt,
	}
}

type AvailabilityResponse struct {
	DoctorID       uuid.UUID       `json:"doctor_id"`
	Date           string          `json:"date"`
	AvailableSlots []slot.TimeSlot `json:"available_slots"`
}

type GoalSeedRequest struct {
	Target string   `json:"target"`
	Goals  []string `json:"goals"`
}

type CreateAssignmentRequest struct {
	DoctorID      string            `json:"doctor_id"`
	Therapy       string            `json:"therapy"`
	TherapistName string            `json:"therapist_name"`
	Feedback      string            `json:"feedback"`
	StartingMonth int               `json:"starting_month"`
	StartingYear  int               `json:"starting_year"`
	MonthlyGoals  []GoalSeedRequest `json:"monthly_goals"`
}

type AmendGoalsRequest struct {
	Target string   `json:"target"`
	Goals  []string `json:"goals"`
}

type FeedbackRequest struct {
	DoctorFeedback string `json:"doctor_feedback"`
}

type ProgressRequest struct {
	Performance       []float64 `json:"performance"`
	TherapistFeedback string    `json:"therapist_feedback"`
	ChildVideo        string    `json:"child_video"`
}

type MonthlyGoalRecordResponse struct {
	Latest iep.GoalSnapshot `json:"latest"`
	// History is sorted by updatedAt descending for display.
	History []iep.GoalSnapshot `json:"history"`
}

type AssignmentResponse struct {
	ID            uuid.UUID                   `json:"id"`
	ChildID       uuid.UUID                   `json:"child_id"`
	DoctorID      uuid.UUID                   `json:"doctor_id"`
	Therapy       string                      `json:"therapy"`
	TherapistName string                      `json:"therapist_name"`
	Feedback      string                      `json:"feedback"`
	StartingMonth string                      `json:"starting_month"`
	StartingYear  int                         `json:"starting_year"`
	MonthlyGoals  []MonthlyGoalRecordResponse `json:"monthly_goals"`
	CreatedAt     time.Time                   `json:"created_at"`
	UpdatedAt     time.Time                   `json:"updated_at"`
}

func toAssignmentResponse(a *iep.TherapyAssignment) AssignmentResponse {
	records := make([]MonthlyGoalRecordResponse, len(a.MonthlyGoals))
	for i, rec := range a.MonthlyGoals {
		records[i] = MonthlyGoalRecordResponse{
			Latest:  iep.CurrentView(rec),
			History: iep.HistoryView(rec),
		}
	}
	return AssignmentResponse{
		ID:            a.ID,
		ChildID:       a.ChildID,
		DoctorID:      a.DoctorID,
		Therapy:       a.Therapy,
		TherapistName: a.TherapistName,
		Feedback:      a.Feedback,
		StartingMonth: a.StartingMonth,
		StartingYear:  a.StartingYear,
		MonthlyGoals:  records,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/totalsolutions/clinic-ops/internal/appointment"
	"github.com/totalsolutions/clinic-ops/internal/iep"
	"github.com/totalsolutions/clinic-ops/internal/report"
)

func createAssignmentHandler(svc *iep.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		childID, ok := parseUUIDParam(w, r, "childID", "invalid_child_id")
		if !ok {
			return
		}

		var req CreateAssignmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		doctorID, ok := parseUUIDField(w, req.DoctorID, "invalid_doctor_id", "doctor_id must be a valid UUID")
		if !ok {
			return
		}

		seeds := make([]iep.GoalSeed, len(req.MonthlyGoals))
		for i, g := range req.MonthlyGoals {
			seeds[i] = iep.GoalSeed{Target: g.Target, Goals: g.Goals}
		}

		created, err := svc.CreateAssignment(r.Context(), iep.CreateAssignmentParams{
			ChildID:       childID,
			DoctorID:      doctorID,
			Therapy:       req.Therapy,
			TherapistName: req.TherapistName,
			Feedback:      req.Feedback,
			StartingMonth: req.StartingMonth,
			StartingYear:  req.StartingYear,
			Seeds:         seeds,
		})
		if err != nil {
			handleIEPError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAssignmentResponse(created))
	}
}

func listChildAssignmentsHandler(svc *iep.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		childID, ok := parseUUIDParam(w, r, "childID", "invalid_child_id")
		if !ok {
			return
		}

		assignments, err := svc.ListByChild(r.Context(), childID)
		if err != nil {
			handleIEPError(w, err)
			return
		}

		out := make([]AssignmentResponse, len(assignments))
		for i := range assignments {
			out[i] = toAssignmentResponse(&assignments[i])
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func amendGoalsHandler(svc *iep.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUIDParam(w, r, "id", "invalid_assignment_id")
		if !ok {
			return
		}
		monthIndex, ok := parseMonthIndex(w, r)
		if !ok {
			return
		}

		var req AmendGoalsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		rec, err := svc.AmendGoals(r.Context(), id, monthIndex, req.Target, req.Goals)
		if err != nil {
			handleIEPError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, MonthlyGoalRecordResponse{
			Latest:  iep.CurrentView(*rec),
			History: iep.HistoryView(*rec),
		})
	}
}

func recordFeedbackHandler(svc *iep.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUIDParam(w, r, "id", "invalid_assignment_id")
		if !ok {
			return
		}
		monthIndex, ok := parseMonthIndex(w, r)
		if !ok {
			return
		}

		var req FeedbackRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		snap, err := svc.RecordDoctorFeedback(r.Context(), id, monthIndex, req.DoctorFeedback)
		if err != nil {
			handleIEPError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, snap)
	}
}

func recordProgressHandler(svc *iep.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUIDParam(w, r, "id", "invalid_assignment_id")
		if !ok {
			return
		}
		monthIndex, ok := parseMonthIndex(w, r)
		if !ok {
			return
		}

		var req ProgressRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		snap, err := svc.RecordProgress(r.Context(), id, monthIndex, req.Performance, req.TherapistFeedback, req.ChildVideo)
		if err != nil {
			handleIEPError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, snap)
	}
}

func deleteAssignmentHandler(svc *iep.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUIDParam(w, r, "id", "invalid_assignment_id")
		if !ok {
			return
		}

		if err := svc.DeleteAssignment(r.Context(), id); err != nil {
			handleIEPError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func iepPDFHandler(svc *iep.Service, apptSvc *appointment.Service, renderer *report.Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUIDParam(w, r, "id", "invalid_assignment_id")
		if !ok {
			return
		}

		assignment, err := svc.GetAssignment(r.Context(), id)
		if err != nil {
			handleIEPError(w, err)
			return
		}

		childName := "N/A"
		if child, err := apptSvc.GetChild(r.Context(), assignment.ChildID); err == nil {
			childName = child.Name
		}

		data, err := renderer.IEPReport(assignment, childName)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "pdf_render_failed", err.Error())
			return
		}

		writePDF(w, "iep-"+id.String()+".pdf", data)
	}
}

func parseMonthIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	idx, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || idx < 0 || idx >= iep.MonthsPerAssignment {
		writeError(w, http.StatusBadRequest, "invalid_month_index", "month index must be 0, 1 or 2")
		return 0, false
	}
	return idx, true
}

func parseUUIDField(w http.ResponseWriter, raw, code, details string) (uuid.UUID, bool) {
	parsed, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, code, details)
		return uuid.Nil, false
	}
	return parsed, true
}

func handleIEPError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, iep.ErrAssignmentNotFound):
		writeError(w, http.StatusNotFound, "assignment_not_found", err.Error())
	case errors.Is(err, iep.ErrStaleAssignment):
		writeError(w, http.StatusConflict, "assignment_modified", "assignment was modified concurrently, re-fetch and retry")
	case errors.Is(err, iep.ErrStartInPast),
		errors.Is(err, iep.ErrInvalidMonth),
		errors.Is(err, iep.ErrSeedCount),
		errors.Is(err, iep.ErrEmptyTarget),
		errors.Is(err, iep.ErrNoGoals),
		errors.Is(err, iep.ErrInvalidMonthIndex),
		errors.Is(err, iep.ErrInvalidPerformance):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/totalsolutions/clinic-ops/internal/appointment"
	"github.com/totalsolutions/clinic-ops/internal/iep"
	"github.com/totalsolutions/clinic-ops/internal/report"
)

type RouterConfig struct {
	Appointments *appointment.Service
	Ledger       *iep.Service
	Renderer     *report.Renderer
	Verifier     Verifier
	PgPool       *pgxpool.Pool
	Redis        *redis.Client
	Env          string
	Version      string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	// Health endpoints stay outside auth.
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Route("/api", func(r chi.Router) {
		r.Use(BearerAuth(cfg.Verifier))

		// Scheduling
		r.Get("/doctors/{doctorID}/slots", availableSlotsHandler(cfg.Appointments))
		r.Post("/appointments", bookAppointmentHandler(cfg.Appointments))
		r.Get("/appointments/{id}", getAppointmentHandler(cfg.Appointments))
		r.Put("/appointments/{id}/schedule", rescheduleAppointmentHandler(cfg.Appointments))
		r.Post("/appointments/{id}/approve", transitionHandler(cfg.Appointments, appointment.StatusApproved))
		r.Post("/appointments/{id}/reject", transitionHandler(cfg.Appointments, appointment.StatusRejected))
		r.Put("/appointments/{id}/prescription", prescriptionHandler(cfg.Appointments))
		r.Get("/appointments/{id}/pdf", appointmentPDFHandler(cfg.Appointments, cfg.Renderer))
		r.Get("/centres/{centreID}/appointments", listCentreAppointmentsHandler(cfg.Appointments))

		// IEP progress ledger
		r.Post("/children/{childID}/ieps", createAssignmentHandler(cfg.Ledger))
		r.Get("/children/{childID}/ieps", listChildAssignmentsHandler(cfg.Ledger))
		r.Put("/ieps/{id}/months/{index}/goals", amendGoalsHandler(cfg.Ledger))
		r.Put("/ieps/{id}/months/{index}/feedback", recordFeedbackHandler(cfg.Ledger))
		r.Put("/ieps/{id}/months/{index}/progress", recordProgressHandler(cfg.Ledger))
		r.Get("/ieps/{id}/pdf", iepPDFHandler(cfg.Ledger, cfg.Appointments, cfg.Renderer))
		r.Delete("/ieps/{id}", deleteAssignmentHandler(cfg.Ledger))
	})

	return r
}

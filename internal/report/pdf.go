package report

import (
	"fmt"
	"strings"

	"github.com/signintech/gopdf"

	"github.com/totalsolutions/clinic-ops/internal/appointment"
	"github.com/totalsolutions/clinic-ops/internal/iep"
)

// Renderer produces the printable sheets the clinic hands to parents: the
// appointment details page and the IEP progress table.
type Renderer struct {
	fontPaths []string
}

func NewRenderer() *Renderer {
	return &Renderer{
		// Common locations across the deployment images.
		fontPaths: []string{
			"/usr/share/fonts/ttf-dejavu/DejaVuSans.ttf",
			"/usr/share/fonts/dejavu/DejaVuSans.ttf",
			"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
		},
	}
}

// NewRendererWithFont uses an explicit TTF path.
func NewRendererWithFont(path string) *Renderer {
	return &Renderer{fontPaths: []string{path}}
}

func (r *Renderer) start() (*gopdf.GoPdf, error) {
	pdf := &gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.AddPage()

	var fontErr error
	for _, path := range r.fontPaths {
		if err := pdf.AddTTFFont("main", path); err == nil {
			fontErr = nil
			break
		} else {
			fontErr = err
		}
	}
	if fontErr != nil {
		return nil, fmt.Errorf("load pdf font: %w", fontErr)
	}

	return pdf, nil
}

func line(pdf *gopdf.GoPdf, size float64, text string) error {
	if err := pdf.SetFont("main", "", size); err != nil {
		return err
	}
	if err := pdf.Cell(nil, text); err != nil {
		return err
	}
	pdf.Br(size + 6)
	return nil
}

// AppointmentSheet renders the appointment details page.
func (r *Renderer) AppointmentSheet(a *appointment.Appointment, childName, doctorName, centreName string) ([]byte, error) {
	pdf, err := r.start()
	if err != nil {
		return nil, err
	}

	rows := []struct {
		label string
		value string
	}{
		{"Child", childName},
		{"Doctor", doctorName},
		{"Centre", centreName},
		{"Date", a.Date.Format("02 Jan 2006")},
		{"Time", string(a.Slot)},
		{"Consultation", string(a.ConsultationType)},
		{"Status", string(a.Status)},
	}

	if err := line(pdf, 18, "Appointment Details"); err != nil {
		return nil, err
	}
	pdf.Br(8)

	for _, row := range rows {
		if err := line(pdf, 12, fmt.Sprintf("%s: %s", row.label, row.value)); err != nil {
			return nil, err
		}
	}

	if a.Prescription != nil && *a.Prescription != "" {
		if err := line(pdf, 12, fmt.Sprintf("Prescription: %s", *a.Prescription)); err != nil {
			return nil, err
		}
	}

	return pdf.GetBytesPdf(), nil
}

// IEPReport renders the IEP table: one block per covered month with the
// current snapshot's target, numbered goals, performance and both feedbacks.
// History is deliberately excluded from the printout.
func (r *Renderer) IEPReport(a *iep.TherapyAssignment, childName string) ([]byte, error) {
	pdf, err := r.start()
	if err != nil {
		return nil, err
	}

	if err := line(pdf, 18, "Individualized Education Program (IEP)"); err != nil {
		return nil, err
	}
	pdf.Br(4)

	header := []string{
		fmt.Sprintf("Child: %s", childName),
		fmt.Sprintf("Therapy: %s", a.Therapy),
		fmt.Sprintf("Therapist: %s", a.TherapistName),
		fmt.Sprintf("Starting: %s %d", a.StartingMonth, a.StartingYear),
	}
	for _, h := range header {
		if err := line(pdf, 12, h); err != nil {
			return nil, err
		}
	}
	pdf.Br(8)

	for _, rec := range a.MonthlyGoals {
		snap := iep.CurrentView(rec)

		if err := line(pdf, 14, snap.Month); err != nil {
			return nil, err
		}
		if err := line(pdf, 11, fmt.Sprintf("Long-Term Goal: %s", snap.Target)); err != nil {
			return nil, err
		}
		for i, g := range snap.Goals {
			if err := line(pdf, 11, fmt.Sprintf("  %d) %s", i+1, g)); err != nil {
				return nil, err
			}
		}
		if err := line(pdf, 11, "Performance: "+formatPerformance(snap.Performance)); err != nil {
			return nil, err
		}
		if err := line(pdf, 11, "Therapist Feedback: "+orNA(snap.TherapistFeedback)); err != nil {
			return nil, err
		}
		if err := line(pdf, 11, "Doctor Feedback: "+orNA(snap.DoctorFeedback)); err != nil {
			return nil, err
		}
		pdf.Br(8)
	}

	return pdf.GetBytesPdf(), nil
}

func formatPerformance(scores []float64) string {
	if len(scores) == 0 {
		return "N/A"
	}
	parts := make([]string, len(scores))
	for i, p := range scores {
		parts[i] = fmt.Sprintf("%d) %.0f%%", i+1, p)
	}
	return strings.Join(parts, "  ")
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

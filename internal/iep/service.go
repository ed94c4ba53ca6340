package iep

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrStartInPast        = errors.New("starting month and year cannot be in the past")
	ErrInvalidMonth       = errors.New("starting month must be between 1 and 12")
	ErrSeedCount          = errors.New("exactly three monthly goal seeds are required")
	ErrEmptyTarget        = errors.New("long-term target must not be empty")
	ErrNoGoals            = errors.New("at least one short-term goal is required")
	ErrInvalidMonthIndex  = errors.New("month index must be 0, 1 or 2")
	ErrInvalidPerformance = errors.New("performance scores must align with goals and lie within 0-100")
)

// Service is the ledger service over therapy assignments. Goal amendments are
// versioned; feedback and progress writes are not.
type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
		now:  time.Now,
	}
}

// GoalSeed is the caller-supplied initial target and goals for one month.
type GoalSeed struct {
	Target string
	Goals  []string
}

type CreateAssignmentParams struct {
	ChildID       uuid.UUID
	DoctorID      uuid.UUID
	Therapy       string
	TherapistName string
	Feedback      string
	StartingMonth int // 1-12
	StartingYear  int
	Seeds         []GoalSeed
}

// assignmentMonths derives the three covered month labels. The arithmetic
// deliberately matches the original behaviour: December wraps to January and
// the displayed year is never incremented.
func assignmentMonths(startingMonth int) [MonthsPerAssignment]string {
	nums := [MonthsPerAssignment]int{
		startingMonth,
		(startingMonth % 12) + 1,
		((startingMonth + 1) % 12) + 1,
	}
	var names [MonthsPerAssignment]string
	for i, n := range nums {
		names[i] = time.Month(n).String()
	}
	return names
}

// CreateAssignment builds a three-month plan seeded from the caller's goals,
// each record starting with an empty history.
func (s *Service) CreateAssignment(ctx context.Context, p CreateAssignmentParams) (*TherapyAssignment, error) {
	if p.StartingMonth < 1 || p.StartingMonth > 12 {
		return nil, ErrInvalidMonth
	}

	now := s.now()
	if p.StartingYear < now.Year() ||
		(p.StartingYear == now.Year() && p.StartingMonth < int(now.Month())) {
		return nil, ErrStartInPast
	}

	if len(p.Seeds) != MonthsPerAssignment {
		return nil, ErrSeedCount
	}
	for _, seed := range p.Seeds {
		if strings.TrimSpace(seed.Target) == "" {
			return nil, ErrEmptyTarget
		}
		if len(seed.Goals) == 0 {
			return nil, ErrNoGoals
		}
		for _, g := range seed.Goals {
			if strings.TrimSpace(g) == "" {
				return nil, ErrNoGoals
			}
		}
	}

	months := assignmentMonths(p.StartingMonth)

	records := make([]MonthlyGoalRecord, MonthsPerAssignment)
	for i := range records {
		records[i] = MonthlyGoalRecord{
			Latest: GoalSnapshot{
				Month:       months[i],
				Target:      p.Seeds[i].Target,
				Goals:       append([]string(nil), p.Seeds[i].Goals...),
				Performance: []float64{},
				UpdatedAt:   now,
			},
			History: []GoalSnapshot{},
		}
	}

	created, err := s.repo.InsertAssignment(ctx, &TherapyAssignment{
		ChildID:       p.ChildID,
		DoctorID:      p.DoctorID,
		Therapy:       p.Therapy,
		TherapistName: p.TherapistName,
		Feedback:      p.Feedback,
		StartingMonth: months[0],
		StartingYear:  p.StartingYear,
		MonthlyGoals:  records,
	})
	if err != nil {
		return nil, fmt.Errorf("insert assignment: %w", err)
	}

	return created, nil
}

// AmendGoals supersedes a month's current snapshot: the old snapshot is
// deep-copied into history, then replaced by a fresh one built from the new
// target and goals with progress fields reset. The write is conditional on the
// assignment's optimistic token, so the push and the replace land together or
// not at all.
func (s *Service) AmendGoals(ctx context.Context, assignmentID uuid.UUID, monthIndex int, target string, goals []string) (*MonthlyGoalRecord, error) {
	if monthIndex < 0 || monthIndex >= MonthsPerAssignment {
		return nil, ErrInvalidMonthIndex
	}
	if strings.TrimSpace(target) == "" {
		return nil, ErrEmptyTarget
	}
	if len(goals) == 0 {
		return nil, ErrNoGoals
	}

	a, err := s.load(ctx, assignmentID)
	if err != nil {
		return nil, err
	}

	rec := &a.MonthlyGoals[monthIndex]

	ts := s.now()
	if ts.Before(rec.Latest.UpdatedAt) {
		// Keep UpdatedAt monotonically non-decreasing per record.
		ts = rec.Latest.UpdatedAt
	}

	rec.History = append(rec.History, rec.Latest.clone())
	rec.Latest = GoalSnapshot{
		Month:       rec.Latest.Month,
		Target:      target,
		Goals:       append([]string(nil), goals...),
		Performance: []float64{},
		UpdatedAt:   ts,
	}

	updated, err := s.save(ctx, a)
	if err != nil {
		return nil, err
	}

	out := updated.MonthlyGoals[monthIndex]
	return &out, nil
}

// RecordDoctorFeedback writes the doctor's feedback onto the month's current
// snapshot. Feedback is not a goal-content change: nothing is pushed to
// history and the snapshot timestamp is left alone.
func (s *Service) RecordDoctorFeedback(ctx context.Context, assignmentID uuid.UUID, monthIndex int, feedback string) (*GoalSnapshot, error) {
	if monthIndex < 0 || monthIndex >= MonthsPerAssignment {
		return nil, ErrInvalidMonthIndex
	}

	a, err := s.load(ctx, assignmentID)
	if err != nil {
		return nil, err
	}

	a.MonthlyGoals[monthIndex].Latest.DoctorFeedback = feedback

	updated, err := s.save(ctx, a)
	if err != nil {
		return nil, err
	}

	snap := updated.MonthlyGoals[monthIndex].Latest
	return &snap, nil
}

// RecordProgress writes the therapist's performance scores, feedback and video
// reference onto the month's current snapshot, unversioned like feedback.
// Performance stays index-aligned with goals and may be shorter (unscored
// goals trail at the end).
func (s *Service) RecordProgress(ctx context.Context, assignmentID uuid.UUID, monthIndex int, performance []float64, therapistFeedback, childVideo string) (*GoalSnapshot, error) {
	if monthIndex < 0 || monthIndex >= MonthsPerAssignment {
		return nil, ErrInvalidMonthIndex
	}

	a, err := s.load(ctx, assignmentID)
	if err != nil {
		return nil, err
	}

	rec := &a.MonthlyGoals[monthIndex]

	if len(performance) > len(rec.Latest.Goals) {
		return nil, ErrInvalidPerformance
	}
	for _, p := range performance {
		if p < 0 || p > 100 {
			return nil, ErrInvalidPerformance
		}
	}

	rec.Latest.Performance = append([]float64(nil), performance...)
	rec.Latest.TherapistFeedback = therapistFeedback
	if childVideo != "" {
		rec.Latest.ChildVideo = childVideo
	}

	updated, err := s.save(ctx, a)
	if err != nil {
		return nil, err
	}

	snap := updated.MonthlyGoals[monthIndex].Latest
	return &snap, nil
}

// GetAssignment retrieves one assignment.
func (s *Service) GetAssignment(ctx context.Context, id uuid.UUID) (*TherapyAssignment, error) {
	return s.load(ctx, id)
}

// ListByChild retrieves all assignments owned by a child.
func (s *Service) ListByChild(ctx context.Context, childID uuid.UUID) ([]TherapyAssignment, error) {
	out, err := s.repo.ListByChild(ctx, childID)
	if err != nil {
		return nil, fmt.Errorf("list assignments by child: %w", err)
	}
	return out, nil
}

// DeleteAssignment removes an assignment. Normal flow never calls this;
// deletion is an explicit administrative act.
func (s *Service) DeleteAssignment(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteAssignment(ctx, id); err != nil {
		if errors.Is(err, ErrAssignmentNotFound) {
			return err
		}
		return fmt.Errorf("delete assignment: %w", err)
	}
	return nil
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (*TherapyAssignment, error) {
	a, err := s.repo.GetAssignmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAssignmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load assignment: %w", err)
	}
	return a, nil
}

func (s *Service) save(ctx context.Context, a *TherapyAssignment) (*TherapyAssignment, error) {
	updated, err := s.repo.UpdateAssignment(ctx, a, a.UpdatedAt)
	if err != nil {
		if errors.Is(err, ErrStaleAssignment) || errors.Is(err, ErrAssignmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("save assignment: %w", err)
	}
	return updated, nil
}

package iep

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// GoalSnapshot is one versioned state of a month's goals. Once a snapshot is
// pushed into history it is never mutated again.
type GoalSnapshot struct {
	Month             string    `json:"month"`
	Target            string    `json:"target"`
	Goals             []string  `json:"goals"`
	Performance       []float64 `json:"performance"`
	TherapistFeedback string    `json:"therapistFeedback"`
	DoctorFeedback    string    `json:"doctorFeedback"`
	ChildVideo        string    `json:"childVideo"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// clone deep-copies the snapshot so history entries never alias the live one.
func (g GoalSnapshot) clone() GoalSnapshot {
	c := g
	c.Goals = append([]string(nil), g.Goals...)
	c.Performance = append([]float64(nil), g.Performance...)
	return c
}

// MonthlyGoalRecord holds the current snapshot for one covered month plus the
// append-only history of superseded snapshots. Stored history order is not
// guaranteed sorted; use HistoryView for display.
type MonthlyGoalRecord struct {
	Latest  GoalSnapshot   `json:"latest"`
	History []GoalSnapshot `json:"history"`
}

// MonthsPerAssignment is fixed at creation and never resized.
const MonthsPerAssignment = 3

// TherapyAssignment is a three-month plan of goals for one child/therapy
// pairing. UpdatedAt doubles as the optimistic concurrency token.
type TherapyAssignment struct {
	ID            uuid.UUID
	ChildID       uuid.UUID
	DoctorID      uuid.UUID
	Therapy       string
	TherapistName string
	Feedback      string
	StartingMonth string
	StartingYear  int
	MonthlyGoals  []MonthlyGoalRecord
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// CurrentView returns the record's live snapshot.
func CurrentView(rec MonthlyGoalRecord) GoalSnapshot {
	return rec.Latest
}

// HistoryView returns the superseded snapshots sorted by UpdatedAt descending.
// The stored order is never assumed pre-sorted.
func HistoryView(rec MonthlyGoalRecord) []GoalSnapshot {
	out := make([]GoalSnapshot, len(rec.History))
	for i, h := range rec.History {
		out[i] = h.clone()
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}

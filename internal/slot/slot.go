package slot

// TimeSlot is one bookable time-of-day unit from the clinic's fixed daily catalog.
type TimeSlot string

// The clinic offers the same eight slots every day. Order matters: availability
// responses list slots in catalog order, not insertion order.
var catalog = []TimeSlot{
	"10:30 AM",
	"11:30 AM",
	"12:30 PM",
	"2:00 PM",
	"3:00 PM",
	"3:30 PM",
	"4:30 PM",
	"5:30 PM",
}

// Catalog returns the full slot catalog in display order.
func Catalog() []TimeSlot {
	out := make([]TimeSlot, len(catalog))
	copy(out, catalog)
	return out
}

// Valid reports whether s is a member of the catalog.
func Valid(s TimeSlot) bool {
	for _, c := range catalog {
		if c == s {
			return true
		}
	}
	return false
}

// Remaining returns the catalog minus taken, preserving catalog order.
// Unknown entries in taken are ignored.
func Remaining(taken []TimeSlot) []TimeSlot {
	occupied := make(map[TimeSlot]struct{}, len(taken))
	for _, t := range taken {
		occupied[t] = struct{}{}
	}

	out := make([]TimeSlot, 0, len(catalog))
	for _, c := range catalog {
		if _, ok := occupied[c]; !ok {
			out = append(out, c)
		}
	}
	return out
}

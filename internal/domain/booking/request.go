package booking

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Request describes one booking run. It is built once from configuration
// and never mutated afterwards.
type Request struct {
	// PreferredCourts in priority order: earlier entries win.
	PreferredCourts []int
	// PreferredTime in 24h "HH:MM".
	PreferredTime string
	// DaysAhead is the offset from today to the booking date.
	DaysAhead       int
	DurationMinutes int
	// Players are the additional player names, in fill order (0-2 entries
	// are typical; the first goes into the "Player 2" field).
	Players []string
}

func (r Request) Validate() error {
	if len(r.PreferredCourts) == 0 {
		return fmt.Errorf("at least one preferred court is required")
	}
	for _, c := range r.PreferredCourts {
		if c <= 0 {
			return fmt.Errorf("court numbers must be positive, got %d", c)
		}
	}
	if _, err := parseHHMM(r.PreferredTime); err != nil {
		return fmt.Errorf("invalid preferred time %q: %w", r.PreferredTime, err)
	}
	if r.DaysAhead < 0 {
		return fmt.Errorf("days ahead must be non-negative, got %d", r.DaysAhead)
	}
	if r.DurationMinutes <= 0 {
		return fmt.Errorf("duration must be positive, got %d", r.DurationMinutes)
	}
	return nil
}

// TargetDate returns the booking date for the run.
func (r Request) TargetDate(now time.Time) time.Time {
	return now.AddDate(0, 0, r.DaysAhead)
}

// ParseCourts parses a comma-separated court list like "3,4,5,2",
// skipping blank or non-numeric entries.
func ParseCourts(s string) []int {
	var out []int
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil || n <= 0 {
			continue
		}
		out = append(out, n)
	}
	return out
}

func parseHHMM(s string) (time.Time, error) {
	return time.Parse("15:04", s)
}

package booking

import (
	"fmt"
	"strings"
	"time"
)

// TimeLabel converts a 24h "HH:MM" time to the display rendering used by
// the booking grid, e.g. "21:00" -> "9:00 pm".
func TimeLabel(hhmm string) (string, error) {
	t, err := parseHHMM(hhmm)
	if err != nil {
		return "", err
	}
	h, m := t.Hour(), t.Minute()
	ampm := "am"
	if h >= 12 {
		ampm = "pm"
	}
	h12 := h % 12
	if h12 == 0 {
		h12 = 12
	}
	return fmt.Sprintf("%d:%02d %s", h12, m, ampm), nil
}

// TimeVariants returns the textual renderings a site might display for a
// 24h time, canonical display label first. "21:00" yields
// ["9:00 pm", "9:00pm", "9 pm", "9pm", "21:00", "21"].
func TimeVariants(hhmm string) []string {
	label, err := TimeLabel(hhmm)
	if err != nil {
		return []string{hhmm}
	}
	t, _ := parseHHMM(hhmm)
	h, m := t.Hour(), t.Minute()
	ampm := "am"
	if h >= 12 {
		ampm = "pm"
	}
	h12 := h % 12
	if h12 == 0 {
		h12 = 12
	}
	raw := []string{
		label,
		fmt.Sprintf("%d:%02d%s", h12, m, ampm),
		fmt.Sprintf("%d %s", h12, ampm),
		fmt.Sprintf("%d%s", h12, ampm),
		hhmm,
		fmt.Sprintf("%d", h),
	}
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// DayTabLabel returns the day-tab label for the date daysAhead from now,
// e.g. "Wed 24th". The 11th-13th always take "th".
func DayTabLabel(now time.Time, daysAhead int) string {
	target := now.AddDate(0, 0, daysAhead)
	day := target.Day()
	suffix := "th"
	if day%100 < 11 || day%100 > 13 {
		switch day % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return fmt.Sprintf("%s %d%s", target.Format("Mon"), day, suffix)
}

// Candidate is one (court, time) pair under attempt. The label variants
// tolerate the differing time formats grids render.
type Candidate struct {
	Court    int
	Label    string
	Variants []string
}

func NewCandidate(court int, hhmm string) (Candidate, error) {
	label, err := TimeLabel(hhmm)
	if err != nil {
		return Candidate{}, fmt.Errorf("invalid time %q: %w", hhmm, err)
	}
	return Candidate{Court: court, Label: label, Variants: TimeVariants(hhmm)}, nil
}

// Matches reports whether txt contains any variant of the candidate's
// time, case-insensitively. Containment rather than equality: surrounding
// label text ("Book 9:00 pm") differs per strategy.
func (c Candidate) Matches(txt string) bool {
	low := strings.ToLower(txt)
	for _, v := range c.Variants {
		if strings.Contains(low, strings.ToLower(v)) {
			return true
		}
	}
	return false
}

package booking

// Outcome is the sticky terminal state of a booking run. Once set to
// Success or Alert it never changes and no further slot clicks happen.
type Outcome int

const (
	OutcomeUnset Outcome = iota
	// OutcomeSuccess means the site verifiably accepted the booking.
	OutcomeSuccess
	// OutcomeAlert means the site reported an explicit rejection message.
	OutcomeAlert
)

func (o Outcome) Terminal() bool { return o != OutcomeUnset }

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeAlert:
		return "alert"
	default:
		return "unset"
	}
}

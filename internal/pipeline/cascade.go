package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/example/court-booker/internal/domain/booking"
)

const maxBookingRounds = 3

// slotStrategy is one way of locating and clicking a bookable slot for a
// candidate. It returns true when a click landed and the booking dialog
// flow ran to a booked state. An error signals a browser-level failure.
type slotStrategy struct {
	name string
	fn   func(context.Context, booking.Candidate) (bool, error)
}

func (r *Run) strategies() []slotStrategy {
	return []slotStrategy{
		{"column time click", r.tryColumnTimeClick},
		{"book button label", r.tryBookButtonLabel},
		{"table grid", r.tryTableGrid},
		{"data attribute", r.tryDataAttr},
		{"ancestor heuristic", r.tryAncestorHeuristic},
		{"js scan", r.tryJSScan},
	}
}

// findAndBook walks preferred courts through every slot strategy, up to
// maxBookingRounds rounds. A terminal outcome short-circuits everything
// downstream; a session-fatal browser error triggers one full recovery
// and the cascade resumes from the current round.
func (r *Run) findAndBook(ctx context.Context) (bool, int) {
	timeLabel, err := booking.TimeLabel(r.cfg.Request.PreferredTime)
	if err != nil {
		r.logger.Error().Err(err).Str("time", r.cfg.Request.PreferredTime).Msg("bad preferred time")
		return false, 0
	}
	r.logger.Info().
		Ints("courts", r.cfg.Request.PreferredCourts).
		Str("time", timeLabel).
		Msg("searching for a bookable slot")

	for round := 1; round <= maxBookingRounds; round++ {
		r.bookingAttempts = round
		if round > 1 {
			r.logger.Info().Int("round", round).Msg("retrying slot search")
			time.Sleep(r.timings.roundBackoff)
			r.waitForGridRefresh(ctx)
		}
		r.prepareGrid(ctx)

		for _, court := range r.cfg.Request.PreferredCourts {
			if r.terminal() {
				return r.outcome == booking.OutcomeSuccess, court
			}
			cand, err := booking.NewCandidate(court, r.cfg.Request.PreferredTime)
			if err != nil {
				r.logger.Error().Err(err).Int("court", court).Msg("skipping court")
				continue
			}
			booked, fatal := r.tryCourtStrategies(ctx, cand)
			if r.terminal() {
				return r.outcome == booking.OutcomeSuccess, court
			}
			if booked {
				return true, court
			}
			if fatal {
				if !r.recoverSession(ctx) {
					r.logger.Error().Msg("session recovery failed, abandoning run")
					return false, 0
				}
				r.prepareGrid(ctx)
			}
		}
		r.saveDebug(ctx, fmt.Sprintf("no_slot_round_%d", round))
	}

	r.logger.Warn().Msg("no bookable slot found in any round")
	return false, 0
}

// tryCourtStrategies runs the full strategy cascade for one candidate.
// The terminal check runs between strategies so a booked or rejected slot
// stops the cascade immediately.
func (r *Run) tryCourtStrategies(ctx context.Context, cand booking.Candidate) (booked, fatal bool) {
	for _, s := range r.strategies() {
		if r.terminal() {
			return false, false
		}
		ok, err := s.fn(ctx, cand)
		if err != nil {
			if isSessionFatal(err) {
				r.logger.Error().Err(err).Str("strategy", s.name).Msg("browser session lost")
				return false, true
			}
			r.logger.Debug().Err(err).Str("strategy", s.name).Int("court", cand.Court).Msg("strategy errored")
			continue
		}
		if r.terminal() {
			return false, false
		}
		if ok {
			r.logger.Info().Str("strategy", s.name).Int("court", cand.Court).Msg("slot booked")
			return true, false
		}
		r.logger.Debug().Str("strategy", s.name).Int("court", cand.Court).Msg("no slot via strategy")
	}
	return false, false
}

// prepareGrid waits for the grid to settle and sweeps the viewport so
// lazily rendered columns exist in the DOM before probing starts.
func (r *Run) prepareGrid(ctx context.Context) {
	pollJS(ctx, r.driver, gridIndicatorJS, r.timings.gridReadyWait, r.timings.pollInterval)
	_ = r.driver.Eval(ctx, `(() => {
		window.scrollTo(0, 0);
		window.scrollTo(0, document.body.scrollHeight);
		window.scrollTo(0, 0);
	})()`, nil)
	time.Sleep(r.timings.settleWait)
}

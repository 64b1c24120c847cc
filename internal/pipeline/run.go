package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/court-booker/internal/artifacts"
	"github.com/example/court-booker/internal/domain/booking"
)

// Config is the pipeline's slice of the run configuration.
type Config struct {
	BaseURL  string
	Username string
	Password string
	Request  booking.Request
}

// timings collects every bounded wait the pipeline performs. Production
// uses defaults; tests shrink them.
type timings struct {
	pollInterval     time.Duration
	pageReadyWait    time.Duration
	loginWait        time.Duration
	dialogWait       time.Duration
	inputGrowWait    time.Duration
	indicatorWait    time.Duration
	confirmGrace     time.Duration
	roundBackoff     time.Duration
	settleWait       time.Duration
	gridReadyWait    time.Duration
	dashboardWait    time.Duration
	gridIndicateWait time.Duration
}

func defaultTimings() timings {
	return timings{
		pollInterval:     200 * time.Millisecond,
		pageReadyWait:    15 * time.Second,
		loginWait:        10 * time.Second,
		dialogWait:       10 * time.Second,
		inputGrowWait:    5 * time.Second,
		indicatorWait:    10 * time.Second,
		confirmGrace:     2 * time.Second,
		roundBackoff:     2 * time.Second,
		settleWait:       500 * time.Millisecond,
		gridReadyWait:    15 * time.Second,
		dashboardWait:    5 * time.Second,
		gridIndicateWait: 8 * time.Second,
	}
}

// Run holds the mutable state of one booking run: the browser session, the
// cached login flag, the sticky terminal outcome, and attempt counters.
// Everything stages need flows through it; there are no package globals.
type Run struct {
	driver Driver
	cfg    Config
	logger zerolog.Logger
	sink   *artifacts.Sink

	now     func() time.Time
	timings timings

	loggedIn   bool
	outcome    booking.Outcome
	outcomeMsg string
	// assumed marks an optimistic success the site never confirmed. It is
	// surfaced to operators instead of being collapsed into a verified one.
	assumed    bool
	assumedMsg string

	loginAttempts   int
	bookingAttempts int
}

// Result is what the CLI reports and notifies on.
type Result struct {
	Booked   bool
	Verified bool
	Court    int
	Message  string
}

func New(d Driver, cfg Config, logger zerolog.Logger, sink *artifacts.Sink) *Run {
	return &Run{
		driver:  d,
		cfg:     cfg,
		logger:  logger,
		sink:    sink,
		now:     time.Now,
		timings: defaultTimings(),
	}
}

// setOutcome records the terminal outcome. First write wins: once the run
// is terminal no later stage may overwrite or clear it.
func (r *Run) setOutcome(o booking.Outcome, msg string) {
	if r.outcome.Terminal() {
		return
	}
	r.outcome = o
	r.outcomeMsg = msg
}

func (r *Run) terminal() bool { return r.outcome.Terminal() }

// Execute runs the full pipeline: login, navigate, date selection, then
// the slot cascade. It never panics out; any uncaught condition becomes a
// failed Result.
func (r *Run) Execute(ctx context.Context) (res Result) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().Interface("panic", rec).Msg("booking run panicked")
			res = Result{Booked: false, Message: fmt.Sprintf("internal error: %v", rec)}
		}
	}()

	if !r.login(ctx) {
		return Result{Message: "login failed"}
	}
	if !r.navigateToGrid(ctx) {
		return Result{Message: "could not reach the booking grid"}
	}
	if !r.selectDate(ctx) {
		return Result{Message: "could not select the booking date"}
	}

	booked, court := r.findAndBook(ctx)
	return r.result(booked, court)
}

func (r *Run) result(booked bool, court int) Result {
	switch {
	case r.outcome == booking.OutcomeSuccess:
		return Result{Booked: true, Verified: true, Court: court, Message: r.outcomeMsg}
	case r.outcome == booking.OutcomeAlert:
		return Result{Booked: false, Court: court, Message: r.outcomeMsg}
	case booked && r.assumed:
		return Result{Booked: true, Verified: false, Court: court,
			Message: "booking assumed successful (could not verify): " + r.assumedMsg}
	case booked:
		return Result{Booked: true, Verified: false, Court: court, Message: "booking submitted"}
	default:
		return Result{Booked: false, Message: "no bookable slot found for any preferred court"}
	}
}

func (r *Run) saveDebug(ctx context.Context, prefix string) {
	if r.sink != nil {
		r.sink.Save(ctx, r.driver, prefix)
	}
}

// recoverSession is the only restart path in the system: relaunch the
// browser, then replay login, navigation and date selection.
func (r *Run) recoverSession(ctx context.Context) bool {
	r.logger.Warn().Msg("browser unreachable, reinitializing session")
	if err := r.driver.Reset(ctx); err != nil {
		r.logger.Error().Err(err).Msg("session reset failed")
		return false
	}
	r.loggedIn = false
	r.loginAttempts = 0
	return r.login(ctx) && r.navigateToGrid(ctx) && r.selectDate(ctx)
}

package pipeline

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/court-booker/internal/domain/booking"
)

// fakeDriver scripts Eval responses by matching substrings of the evaluated
// JS, so tests can steer individual page probes without a browser.
type fakeDriver struct {
	rules []evalRule

	evals  []string
	sent   []string
	navs   []string
	resets int

	pageSource string
}

type evalRule struct {
	match   func(js string) bool
	respond func(js string) any
}

func has(sub string) func(string) bool {
	return func(js string) bool { return strings.Contains(js, sub) }
}

func hasAll(subs ...string) func(string) bool {
	return func(js string) bool {
		for _, s := range subs {
			if !strings.Contains(js, s) {
				return false
			}
		}
		return true
	}
}

func respond(v any) func(string) any {
	return func(string) any { return v }
}

func (d *fakeDriver) rule(match func(string) bool, resp func(string) any) {
	d.rules = append(d.rules, evalRule{match: match, respond: resp})
}

func (d *fakeDriver) Eval(_ context.Context, js string, out any) error {
	d.evals = append(d.evals, js)
	var v any = false
	for _, r := range d.rules {
		if r.match(js) {
			v = r.respond(js)
			break
		}
	}
	if out == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

func (d *fakeDriver) Navigate(_ context.Context, url string) error {
	d.navs = append(d.navs, url)
	return nil
}

func (d *fakeDriver) WaitVisible(context.Context, string, time.Duration) error { return nil }

func (d *fakeDriver) SendKeys(_ context.Context, sel, keys string) error {
	d.sent = append(d.sent, sel+"="+keys)
	return nil
}

func (d *fakeDriver) CurrentURL(context.Context) (string, error) {
	return "https://club.example.com/app/bookings/grid", nil
}

func (d *fakeDriver) Title(context.Context) (string, error) { return "Club", nil }

func (d *fakeDriver) PageSource(context.Context) (string, error) { return d.pageSource, nil }

func (d *fakeDriver) Screenshot(context.Context) ([]byte, error) { return []byte{0x89}, nil }

func (d *fakeDriver) ClearCookies(context.Context) error { return nil }

func (d *fakeDriver) Reset(context.Context) error {
	d.resets++
	return nil
}

func (d *fakeDriver) countEvals(subs ...string) int {
	n := 0
	for _, js := range d.evals {
		ok := true
		for _, s := range subs {
			if !strings.Contains(js, s) {
				ok = false
				break
			}
		}
		if ok {
			n++
		}
	}
	return n
}

func testTimings() timings {
	return timings{
		pollInterval:     time.Millisecond,
		pageReadyWait:    5 * time.Millisecond,
		loginWait:        5 * time.Millisecond,
		dialogWait:       5 * time.Millisecond,
		inputGrowWait:    5 * time.Millisecond,
		indicatorWait:    5 * time.Millisecond,
		confirmGrace:     time.Millisecond,
		roundBackoff:     time.Millisecond,
		settleWait:       time.Millisecond,
		gridReadyWait:    5 * time.Millisecond,
		dashboardWait:    5 * time.Millisecond,
		gridIndicateWait: 5 * time.Millisecond,
	}
}

func newTestRun(d *fakeDriver, req booking.Request) *Run {
	r := New(d, Config{
		BaseURL:  "https://club.example.com",
		Username: "user@example.com",
		Password: "secret",
		Request:  req,
	}, zerolog.Nop(), nil)
	r.timings = testTimings()
	return r
}

// markers that identify individual page probes
const (
	gridMarker      = ".booking-grid, .court-grid"
	dayTabMarker    = ".day-tab"
	colMarker       = "MuiBox-root.css-0"
	dialogSelFrag   = `div[role='dialog']`
	confirmMarker   = "'confirm booking'"
	alertMarker     = ".MuiAlert-message"
	indicatorMarker = ".booking-success"
	readyMarker     = "document.readyState"
)

// wireHappyPath scripts the page far enough that login, navigation and
// date selection succeed.
func wireHappyPath(d *fakeDriver) {
	d.pageSource = `<html><a href="/logout">Logout</a></html>`
	d.rule(has(readyMarker), respond(true))
	d.rule(has(gridMarker), respond(true))
	d.rule(has(dayTabMarker), respond(true))
}

func confirmGoneCheck(js string) bool {
	return strings.Contains(js, "querySelector('[data-cb-confirm]')")
}

func dialogOpenCheck(js string) bool {
	return strings.Contains(js, dialogSelFrag) && strings.Contains(js, "if (visible(el)) return true;")
}

func TestExecuteBooksFirstCourtVerified(t *testing.T) {
	d := &fakeDriver{}
	wireHappyPath(d)
	d.rule(hasAll(colMarker, `"court 1"`), respond(true))
	d.rule(confirmGoneCheck, respond(true))
	d.rule(dialogOpenCheck, respond(true))
	d.rule(has(confirmMarker), respond(true))

	r := newTestRun(d, booking.Request{
		PreferredCourts: []int{1},
		PreferredTime:   "21:00",
		DaysAhead:       7,
		DurationMinutes: 120,
	})
	res := r.Execute(context.Background())

	if !res.Booked || !res.Verified {
		t.Fatalf("Execute() = %+v, want booked and verified", res)
	}
	if res.Court != 1 {
		t.Errorf("court = %d, want 1", res.Court)
	}
	if !strings.Contains(res.Message, "court 1") || !strings.Contains(res.Message, "9:00 pm") {
		t.Errorf("message = %q, want court and time label", res.Message)
	}
}

func TestCascadeTriesAllStrategiesPerCourtInOrder(t *testing.T) {
	d := &fakeDriver{}
	wireHappyPath(d)
	// Courts 3 and 4 never render a slot; court 5 books via the first
	// strategy.
	d.rule(hasAll(colMarker, `"court 5"`), respond(true))
	d.rule(confirmGoneCheck, respond(true))
	d.rule(dialogOpenCheck, respond(true))
	d.rule(has(confirmMarker), respond(true))

	r := newTestRun(d, booking.Request{
		PreferredCourts: []int{3, 4, 5},
		PreferredTime:   "18:00",
		DaysAhead:       7,
		DurationMinutes: 60,
	})
	r.loggedIn = true
	booked, court := r.findAndBook(context.Background())

	if !booked || court != 5 {
		t.Fatalf("findAndBook() = (%v, %d), want (true, 5)", booked, court)
	}
	strategyMarkers := []string{colMarker, "underCourt", "table tr", "data-court-id", "const clickable", "body *"}
	for _, c := range []string{`"court 3"`, `"court 4"`} {
		for _, m := range strategyMarkers {
			if got := d.countEvals(m, c); got != 1 {
				t.Errorf("strategy %q for %s evaluated %d times, want 1", m, c, got)
			}
		}
	}
	// Court 5 stopped at the first strategy.
	if got := d.countEvals("underCourt", `"court 5"`); got != 0 {
		t.Errorf("court 5 reached the second strategy %d times, want 0", got)
	}
	// Strategy order held for court 3.
	var order []int
	for _, js := range d.evals {
		if !strings.Contains(js, `"court 3"`) {
			continue
		}
		for mi, m := range strategyMarkers {
			if strings.Contains(js, m) {
				order = append(order, mi)
			}
		}
	}
	for i := 1; i < len(order); i++ {
		if order[i] < order[i-1] {
			t.Fatalf("strategy order for court 3 = %v, want non-decreasing", order)
		}
	}
}

func TestCascadeAlertIsTerminalAndStopsRetries(t *testing.T) {
	d := &fakeDriver{}
	wireHappyPath(d)
	const alertText = "No court available - please add your name to the waiting list"
	d.rule(hasAll(colMarker, `"court 1"`), respond(true))
	d.rule(confirmGoneCheck, respond(false))
	d.rule(dialogOpenCheck, respond(true))
	d.rule(has(confirmMarker), respond(true))
	d.rule(has(alertMarker), respond(alertText))

	r := newTestRun(d, booking.Request{
		PreferredCourts: []int{1, 2},
		PreferredTime:   "18:00",
		DaysAhead:       7,
		DurationMinutes: 60,
	})
	r.loggedIn = true
	booked, _ := r.findAndBook(context.Background())

	if booked {
		t.Fatal("findAndBook() booked despite a rejection alert")
	}
	if r.outcome != booking.OutcomeAlert || r.outcomeMsg != alertText {
		t.Fatalf("outcome = (%v, %q), want alert with site text", r.outcome, r.outcomeMsg)
	}
	if r.bookingAttempts != 1 {
		t.Errorf("bookingAttempts = %d, want 1 (no retry after terminal alert)", r.bookingAttempts)
	}
	if got := d.countEvals(colMarker, `"court 2"`); got != 0 {
		t.Errorf("court 2 probed %d times after terminal alert, want 0", got)
	}

	res := r.result(booked, 1)
	if res.Booked || !strings.Contains(res.Message, "waiting list") {
		t.Errorf("result = %+v, want failed with alert text", res)
	}
}

func TestCascadeRunsThreeRoundsOnFullMiss(t *testing.T) {
	d := &fakeDriver{}
	wireHappyPath(d)

	r := newTestRun(d, booking.Request{
		PreferredCourts: []int{2},
		PreferredTime:   "18:00",
		DaysAhead:       7,
		DurationMinutes: 60,
	})
	r.loggedIn = true
	booked, _ := r.findAndBook(context.Background())

	if booked {
		t.Fatal("findAndBook() = true on a grid with no slots")
	}
	if r.bookingAttempts != 3 {
		t.Errorf("bookingAttempts = %d, want 3", r.bookingAttempts)
	}
	if got := d.countEvals(colMarker, `"court 2"`); got != 3 {
		t.Errorf("first strategy probed %d times, want once per round (3)", got)
	}
}

func TestConfirmControlGoneWinsBeforeIndicatorPoll(t *testing.T) {
	d := &fakeDriver{}
	d.rule(has(confirmMarker), respond(true))
	d.rule(confirmGoneCheck, respond(true))
	// Indicators would also read true, but must never be consulted.
	d.rule(has(indicatorMarker), respond(true))

	r := newTestRun(d, booking.Request{
		PreferredCourts: []int{1}, PreferredTime: "21:00", DaysAhead: 7, DurationMinutes: 60,
	})
	cand, _ := booking.NewCandidate(1, "21:00")
	booked, err := r.confirmBooking(context.Background(), cand)

	if err != nil || !booked {
		t.Fatalf("confirmBooking() = (%v, %v), want (true, nil)", booked, err)
	}
	if r.outcome != booking.OutcomeSuccess {
		t.Errorf("outcome = %v, want success", r.outcome)
	}
	if got := d.countEvals(indicatorMarker); got != 0 {
		t.Errorf("indicator poll ran %d times, want 0 when the confirm control already vanished", got)
	}
}

func TestConfirmAssumesSuccessWhenNothingConfirms(t *testing.T) {
	d := &fakeDriver{}
	d.rule(has(confirmMarker), respond(true))
	d.rule(confirmGoneCheck, respond(false))
	d.rule(has(alertMarker), respond(""))

	r := newTestRun(d, booking.Request{
		PreferredCourts: []int{4}, PreferredTime: "19:30", DaysAhead: 7, DurationMinutes: 60,
	})
	cand, _ := booking.NewCandidate(4, "19:30")
	booked, err := r.confirmBooking(context.Background(), cand)

	if err != nil || !booked {
		t.Fatalf("confirmBooking() = (%v, %v), want (true, nil)", booked, err)
	}
	if r.outcome.Terminal() {
		t.Errorf("outcome = %v, want unset for an assumed booking", r.outcome)
	}
	if !r.assumed {
		t.Fatal("assumed flag not set")
	}
	res := r.result(booked, 4)
	if !res.Booked || res.Verified {
		t.Fatalf("result = %+v, want booked but unverified", res)
	}
	if !strings.Contains(res.Message, "assumed") || !strings.Contains(res.Message, "could not verify") {
		t.Errorf("message = %q, want the unverified caveat", res.Message)
	}
}

func TestLoginCachedFlagShortCircuits(t *testing.T) {
	d := &fakeDriver{}
	r := newTestRun(d, booking.Request{
		PreferredCourts: []int{1}, PreferredTime: "18:00", DaysAhead: 7, DurationMinutes: 60,
	})
	r.loggedIn = true

	if !r.login(context.Background()) {
		t.Fatal("login() = false with a cached session")
	}
	if len(d.navs) != 0 || len(d.evals) != 0 {
		t.Errorf("cached login still touched the browser: navs=%v evals=%d", d.navs, len(d.evals))
	}
}

func TestSetOutcomeFirstWriteWins(t *testing.T) {
	r := newTestRun(&fakeDriver{}, booking.Request{
		PreferredCourts: []int{1}, PreferredTime: "18:00", DaysAhead: 7, DurationMinutes: 60,
	})
	r.setOutcome(booking.OutcomeSuccess, "booked court 1")
	r.setOutcome(booking.OutcomeAlert, "late alert")

	if r.outcome != booking.OutcomeSuccess || r.outcomeMsg != "booked court 1" {
		t.Fatalf("outcome = (%v, %q), want the first terminal write to stick", r.outcome, r.outcomeMsg)
	}
}

func TestFillPlayersSequence(t *testing.T) {
	d := &fakeDriver{}
	inputs := 2
	d.rule(hasAll("data-cb-target", "placeholder"), respond(true)) // Player 2 probe
	d.rule(has("'add player'"), func(string) any {
		inputs++
		return true
	})
	d.rule(has("inputs.length - 1"), respond(true))                  // newest empty input
	d.rule(hasAll("input[type=\"text\"]", ".length;"), func(s string) any { // input count
		if strings.Contains(s, ") > ") {
			return true // growth check, count already bumped
		}
		return inputs
	})
	d.rule(has("MuiAutocomplete-option"), respond(true))

	r := newTestRun(d, booking.Request{
		PreferredCourts: []int{1},
		PreferredTime:   "18:00",
		DaysAhead:       7,
		DurationMinutes: 60,
		Players:         []string{"Alice Adams", "Bob Brown", "Carol Cruz"},
	})
	if err := r.fillPlayers(context.Background()); err != nil {
		t.Fatalf("fillPlayers() error: %v", err)
	}

	if got := d.countEvals("'add player'"); got != 2 {
		t.Errorf("add-player clicked %d times, want 2 for three players", got)
	}
	want := []string{
		"[data-cb-target='player']=Alice Adams",
		"[data-cb-target='player']=Bob Brown",
		"[data-cb-target='player']=Carol Cruz",
	}
	if len(d.sent) != len(want) {
		t.Fatalf("typed %v, want %v", d.sent, want)
	}
	for i := range want {
		if d.sent[i] != want[i] {
			t.Errorf("typed[%d] = %q, want %q", i, d.sent[i], want[i])
		}
	}
}

func TestSessionFatalTriggersRecovery(t *testing.T) {
	if !isSessionFatal(errLike("chrome not reachable")) {
		t.Error("chrome not reachable should be session fatal")
	}
	if !isSessionFatal(errLike("Target closed unexpectedly")) {
		t.Error("target closed should be session fatal")
	}
	if isSessionFatal(errLike("element not found")) {
		t.Error("element not found must not be session fatal")
	}
	if isSessionFatal(nil) {
		t.Error("nil error must not be session fatal")
	}
}

type errLike string

func (e errLike) Error() string { return string(e) }

func TestRecoverSessionReplaysPipeline(t *testing.T) {
	d := &fakeDriver{}
	wireHappyPath(d)

	r := newTestRun(d, booking.Request{
		PreferredCourts: []int{1}, PreferredTime: "18:00", DaysAhead: 7, DurationMinutes: 60,
	})
	r.loggedIn = true
	r.loginAttempts = 3

	if !r.recoverSession(context.Background()) {
		t.Fatal("recoverSession() = false, want replay to succeed")
	}
	if d.resets != 1 {
		t.Errorf("driver reset %d times, want 1", d.resets)
	}
	if !r.loggedIn {
		t.Error("login not re-established after recovery")
	}
}

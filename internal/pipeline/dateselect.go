package pipeline

import (
	"context"
	"fmt"

	"github.com/example/court-booker/internal/domain/booking"
)

// selectDate moves the grid to the target booking date. The day tab strip
// is tried first since that is what the site normally renders; the generic
// date-control strategies cover layout changes.
func (r *Run) selectDate(ctx context.Context) bool {
	target := r.cfg.Request.TargetDate(r.now())
	tab := booking.DayTabLabel(r.now(), r.cfg.Request.DaysAhead)
	iso := target.Format("2006-01-02")
	r.logger.Info().Str("date", iso).Str("tab", tab).Msg("selecting booking date")

	if r.clickDayTab(ctx, tab) {
		r.saveDebug(ctx, "date_selected")
		return true
	}

	type strategy struct {
		name string
		fn   func(context.Context, string) bool
	}
	for _, s := range []strategy{
		{"native date input", r.setNativeDateInput},
		{"text date input", r.setTextDateInput},
		{"date picker", r.pickFromCalendar},
		{"next-day stepping", r.stepNextDay},
	} {
		if s.fn(ctx, iso) {
			r.logger.Info().Str("strategy", s.name).Msg("date selected")
			r.saveDebug(ctx, "date_selected")
			return true
		}
		r.logger.Debug().Str("strategy", s.name).Msg("date strategy did not apply")
	}

	r.logger.Error().Str("date", iso).Msg("could not select the booking date")
	r.saveDebug(ctx, "date_not_selected")
	return false
}

// clickDayTab finds a visible tab or button whose text contains the day
// label, e.g. "Wed 24th", and clicks it.
func (r *Run) clickDayTab(ctx context.Context, label string) bool {
	js := `(() => {
		` + jsVisible + `
		const label = ` + jsStr(label) + `.toLowerCase();
		for (const el of document.querySelectorAll('button, a, [role="tab"], .day-tab, li')) {
			const t = (el.textContent || '').trim().toLowerCase();
			if (visible(el) && t.includes(label)) {
				el.scrollIntoView({block: 'center', inline: 'center'});
				el.click();
				return true;
			}
		}
		return false;
	})()`
	var clicked bool
	if err := r.driver.Eval(ctx, js, &clicked); err != nil || !clicked {
		return false
	}
	r.logger.Info().Str("tab", label).Msg("clicked day tab")
	r.waitForGridRefresh(ctx)
	return true
}

func (r *Run) setNativeDateInput(ctx context.Context, iso string) bool {
	js := `(() => {
		const el = document.querySelector("input[type='date']");
		if (!el) return false;
		el.value = ` + jsStr(iso) + `;
		el.dispatchEvent(new Event('input', {bubbles: true}));
		el.dispatchEvent(new Event('change', {bubbles: true}));
		return true;
	})()`
	var ok bool
	if err := r.driver.Eval(ctx, js, &ok); err != nil || !ok {
		return false
	}
	r.waitForGridRefresh(ctx)
	return true
}

func (r *Run) setTextDateInput(ctx context.Context, iso string) bool {
	const sel = `input[name*='date' i], input[id*='date' i], input[placeholder*='date' i]`
	js := `(() => {
		` + jsVisible + `
		for (const el of document.querySelectorAll(` + jsStr(sel) + `)) {
			if (el.type === 'date' || !visible(el)) continue;
			el.value = '';
			el.setAttribute('data-cb-target', 'date');
			return true;
		}
		return false;
	})()`
	var ok bool
	if err := r.driver.Eval(ctx, js, &ok); err != nil || !ok {
		return false
	}
	if err := r.driver.SendKeys(ctx, `input[data-cb-target='date']`, iso+"\r"); err != nil {
		return false
	}
	r.waitForGridRefresh(ctx)
	return true
}

// pickFromCalendar opens a calendar widget and clicks the cell for the
// target date, matching a data-date attribute first, then the bare day
// number.
func (r *Run) pickFromCalendar(ctx context.Context, iso string) bool {
	openJS := `(() => {
		` + jsVisible + `
		for (const el of document.querySelectorAll('.datepicker-toggle, .calendar-icon, [class*="datepicker"], [class*="calendar"] button')) {
			if (visible(el)) { el.click(); return true; }
		}
		return false;
	})()`
	var opened bool
	if err := r.driver.Eval(ctx, openJS, &opened); err != nil || !opened {
		return false
	}
	pollJS(ctx, r.driver, `!!document.querySelector('[data-date], .day, td[class*="day"]')`, r.timings.dialogWait, r.timings.pollInterval)

	day := fmt.Sprintf("%d", r.cfg.Request.TargetDate(r.now()).Day())
	pickJS := `(() => {
		` + jsVisible + `
		let cell = document.querySelector('[data-date=' + JSON.stringify(` + jsStr(iso) + `) + ']');
		if (!cell) {
			for (const el of document.querySelectorAll('.day, td[class*="day"], button[class*="day"]')) {
				if ((el.textContent || '').trim() === ` + jsStr(day) + ` && visible(el) &&
					!el.className.includes('disabled') && !el.className.includes('other')) {
					cell = el;
					break;
				}
			}
		}
		if (!cell) return false;
		cell.click();
		return true;
	})()`
	var picked bool
	if err := r.driver.Eval(ctx, pickJS, &picked); err != nil || !picked {
		return false
	}
	r.waitForGridRefresh(ctx)
	return true
}

// stepNextDay clicks a next-day arrow once per day ahead. Every click must
// land or the stepping is abandoned, since a partial advance would book the
// wrong date.
func (r *Run) stepNextDay(ctx context.Context, iso string) bool {
	clickJS := `(() => {
		` + jsVisible + `
		for (const el of document.querySelectorAll('.next-day, .next, [aria-label*="next" i], button[class*="next"]')) {
			if (visible(el) && !el.disabled) { el.click(); return true; }
		}
		return false;
	})()`
	for i := 0; i < r.cfg.Request.DaysAhead; i++ {
		var clicked bool
		if err := r.driver.Eval(ctx, clickJS, &clicked); err != nil || !clicked {
			return false
		}
		r.waitForGridRefresh(ctx)
	}
	return true
}

// waitForGridRefresh gives the grid a bounded chance to redraw after a date
// change, then nudges the viewport so lazily rendered rows materialize.
func (r *Run) waitForGridRefresh(ctx context.Context) {
	pollJS(ctx, r.driver, `document.readyState === 'complete'`, r.timings.gridReadyWait, r.timings.pollInterval)
	_ = r.driver.Eval(ctx, `window.scrollBy(0, 200); window.scrollBy(0, -200);`, nil)
}

package pipeline

import (
	"context"
	"strings"
)

// bookingPaths are tried in order against the site root until one lands on
// a page that looks like the booking grid.
var bookingPaths = []string{
	"/app/bookings/grid",
	"/court-booking",
	"/bookings",
	"/booking",
	"/book-online",
	"/reserve",
	"/courts",
}

// gridIndicatorJS reports whether the current page shows booking-grid UI.
const gridIndicatorJS = `(() => {
	const txt = (document.body && document.body.textContent || '').toLowerCase();
	if (document.querySelector('.booking-grid, .court-grid, [class*="booking"], [class*="court"]')) return true;
	return txt.includes('court') && (txt.includes('book') || txt.includes('reserve'));
})()`

// navigateToGrid brings the session to the court booking grid. It tries an
// in-page navigation link first, then falls back to probing known paths.
func (r *Run) navigateToGrid(ctx context.Context) bool {
	r.logger.Info().Msg("navigating to booking grid")

	if r.clickBookingLink(ctx) && r.onBookingGrid(ctx) {
		r.saveDebug(ctx, "booking_grid")
		return true
	}

	base := strings.TrimRight(r.cfg.BaseURL, "/")
	for _, path := range bookingPaths {
		url := base + path
		if err := r.driver.Navigate(ctx, url); err != nil {
			r.logger.Debug().Err(err).Str("url", url).Msg("navigation failed")
			if isSessionFatal(err) {
				return false
			}
			continue
		}
		pollJS(ctx, r.driver, `document.readyState === 'complete'`, r.timings.pageReadyWait, r.timings.pollInterval)
		if r.onBookingGrid(ctx) {
			r.logger.Info().Str("url", url).Msg("booking grid found")
			r.saveDebug(ctx, "booking_grid")
			return true
		}
	}

	r.logger.Error().Msg("could not reach the booking grid")
	r.saveDebug(ctx, "booking_grid_not_found")
	return false
}

// clickBookingLink looks for a dashboard link or button that leads to the
// booking area and clicks it.
func (r *Run) clickBookingLink(ctx context.Context) bool {
	js := `(() => {
		` + jsVisible + `
		const wanted = ['book a court', 'court booking', 'book court', 'bookings', 'book now', 'reserve'];
		for (const el of document.querySelectorAll('a, button')) {
			const t = (el.textContent || '').trim().toLowerCase();
			if (!visible(el)) continue;
			for (const w of wanted) {
				if (t === w || t.includes(w)) {
					el.scrollIntoView({block: 'center'});
					el.click();
					return true;
				}
			}
		}
		return false;
	})()`
	var clicked bool
	if err := r.driver.Eval(ctx, js, &clicked); err != nil || !clicked {
		return false
	}
	r.logger.Info().Msg("clicked booking navigation link")
	pollJS(ctx, r.driver, `document.readyState === 'complete'`, r.timings.dashboardWait, r.timings.pollInterval)
	return true
}

// onBookingGrid waits a bounded time for grid indicators to appear.
func (r *Run) onBookingGrid(ctx context.Context) bool {
	return pollJS(ctx, r.driver, gridIndicatorJS, r.timings.gridIndicateWait, r.timings.pollInterval)
}

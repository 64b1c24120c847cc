package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/example/court-booker/internal/domain/booking"
)

const dialogSel = `div[role='dialog'], .MuiDialog-root, .booking-dialog`

// handleDialog drives the booking dialog after a slot click: duration,
// players, then confirmation. The return value reports whether the booking
// went through; terminal state is recorded on the run directly.
func (r *Run) handleDialog(ctx context.Context, cand booking.Candidate) (bool, error) {
	if !pollJS(ctx, r.driver, `(() => {
		`+jsVisible+`
		for (const el of document.querySelectorAll(`+jsStr(dialogSel)+`)) {
			if (visible(el)) return true;
		}
		return false;
	})()`, r.timings.dialogWait, r.timings.pollInterval) {
		r.logger.Debug().Int("court", cand.Court).Msg("no booking dialog appeared")
		return false, nil
	}
	r.logger.Info().Int("court", cand.Court).Msg("booking dialog open")
	r.saveDebug(ctx, "booking_dialog")

	r.selectDuration(ctx)
	if err := r.fillPlayers(ctx); err != nil {
		if isSessionFatal(err) {
			return false, err
		}
		r.logger.Warn().Err(err).Msg("player fill incomplete, confirming anyway")
	}
	return r.confirmBooking(ctx, cand)
}

// durationLabels renders the textual forms a duration option might take,
// e.g. 120 minutes yields "2.0 hr", "2 hr", "2hr", "120 min".
func durationLabels(minutes int) []string {
	hours := float64(minutes) / 60
	labels := []string{fmt.Sprintf("%.1f hr", hours)}
	if minutes%60 == 0 {
		h := minutes / 60
		labels = append(labels, fmt.Sprintf("%d hr", h), fmt.Sprintf("%dhr", h))
	} else {
		labels = append(labels, fmt.Sprintf("%.1fhr", hours))
	}
	labels = append(labels, fmt.Sprintf("%d min", minutes))
	return labels
}

// selectDuration is best effort: a missing duration control means the site
// fixed the slot length and there is nothing to pick.
func (r *Run) selectDuration(ctx context.Context) {
	labels := durationLabels(r.cfg.Request.DurationMinutes)
	js := `(() => {
		` + jsVisible + `
		const labels = ` + jsStrList(labels) + `;
		const scope = document.querySelector(` + jsStr(dialogSel) + `) || document;
		for (const el of scope.querySelectorAll('button, label, [role="radio"], [role="option"], li')) {
			const t = (el.textContent || '').trim().toLowerCase();
			if (!visible(el)) continue;
			if (labels.some(l => t === l || t.includes(l))) {
				el.click();
				return true;
			}
		}
		for (const input of scope.querySelectorAll('input[type="radio"]')) {
			const v = (input.value || '').toLowerCase();
			if (labels.some(l => v.includes(l)) || v === ` + jsStr(fmt.Sprintf("%d", r.cfg.Request.DurationMinutes)) + `) {
				input.click();
				return true;
			}
		}
		return false;
	})()`
	var picked bool
	if err := r.driver.Eval(ctx, js, &picked); err != nil || !picked {
		r.logger.Debug().Int("minutes", r.cfg.Request.DurationMinutes).Msg("no duration control to set")
		return
	}
	r.logger.Info().Int("minutes", r.cfg.Request.DurationMinutes).Msg("duration selected")
}

// fillPlayers enters the configured players into the dialog. The first
// name goes in the existing "Player 2" field; each further name needs an
// Add Player click and a wait for the new input to materialize.
func (r *Run) fillPlayers(ctx context.Context) error {
	players := r.cfg.Request.Players
	if len(players) == 0 {
		return nil
	}
	for i, name := range players {
		if i == 0 {
			if err := r.fillPlayerField(ctx, name, fmt.Sprintf("Player %d", i+2)); err != nil {
				return fmt.Errorf("player %q: %w", name, err)
			}
			continue
		}
		if err := r.addPlayerField(ctx, name); err != nil {
			return fmt.Errorf("player %q: %w", name, err)
		}
	}
	r.saveDebug(ctx, "players_filled")
	return nil
}

// fillPlayerField types a name into the input labeled or placeholdered
// with the given field name and resolves the autocomplete.
func (r *Run) fillPlayerField(ctx context.Context, name, field string) error {
	markJS := `(() => {
		` + jsVisible + `
		const field = ` + jsStr(field) + `.toLowerCase();
		const scope = document.querySelector(` + jsStr(dialogSel) + `) || document;
		document.querySelectorAll('[data-cb-target="player"]').forEach(el => el.removeAttribute('data-cb-target'));
		for (const input of scope.querySelectorAll('input[type="text"], input:not([type])')) {
			if (!visible(input)) continue;
			const hint = ((input.placeholder || '') + ' ' + (input.getAttribute('aria-label') || '')).toLowerCase();
			const lab = input.labels && input.labels[0] ? (input.labels[0].textContent || '').toLowerCase() : '';
			if (hint.includes(field) || lab.includes(field)) {
				input.setAttribute('data-cb-target', 'player');
				return true;
			}
		}
		return false;
	})()`
	var marked bool
	if err := r.driver.Eval(ctx, markJS, &marked); err != nil {
		return err
	}
	if !marked {
		return fmt.Errorf("no %q input found", field)
	}
	return r.typePlayer(ctx, name)
}

// addPlayerField clicks the Add Player control, waits for the input count
// to grow, and fills the newest empty input.
func (r *Run) addPlayerField(ctx context.Context, name string) error {
	countJS := `(() => {
		const scope = document.querySelector(` + jsStr(dialogSel) + `) || document;
		return scope.querySelectorAll('input[type="text"], input:not([type])').length;
	})()`
	var before int
	if err := r.driver.Eval(ctx, countJS, &before); err != nil {
		return err
	}

	clickJS := `(() => {
		` + jsVisible + `
		const scope = document.querySelector(` + jsStr(dialogSel) + `) || document;
		for (const el of scope.querySelectorAll('button, a')) {
			const t = (el.textContent || '').trim().toLowerCase();
			if (visible(el) && (t.includes('add player') || t.includes('add guest') || t === 'add')) {
				el.click();
				return true;
			}
		}
		return false;
	})()`
	var clicked bool
	if err := r.driver.Eval(ctx, clickJS, &clicked); err != nil {
		return err
	}
	if !clicked {
		return fmt.Errorf("no add-player control found")
	}

	grownJS := fmt.Sprintf(`(%s) > %d`, countJS, before)
	if !pollJS(ctx, r.driver, grownJS, r.timings.inputGrowWait, r.timings.pollInterval) {
		return fmt.Errorf("player input did not appear after add click")
	}

	markJS := `(() => {
		` + jsVisible + `
		const scope = document.querySelector(` + jsStr(dialogSel) + `) || document;
		document.querySelectorAll('[data-cb-target="player"]').forEach(el => el.removeAttribute('data-cb-target'));
		const inputs = [...scope.querySelectorAll('input[type="text"], input:not([type])')];
		for (let i = inputs.length - 1; i >= 0; i--) {
			if (visible(inputs[i]) && !(inputs[i].value || '').trim()) {
				inputs[i].setAttribute('data-cb-target', 'player');
				return true;
			}
		}
		return false;
	})()`
	var marked bool
	if err := r.driver.Eval(ctx, markJS, &marked); err != nil {
		return err
	}
	if !marked {
		return fmt.Errorf("no empty player input after add click")
	}
	return r.typePlayer(ctx, name)
}

// typePlayer types into the marked input and resolves the autocomplete
// dropdown, falling back to Enter when no option renders.
func (r *Run) typePlayer(ctx context.Context, name string) error {
	const sel = `[data-cb-target='player']`
	_ = r.driver.Eval(ctx, `(() => {
		const el = document.querySelector(`+jsStr(sel)+`);
		if (el) { el.scrollIntoView({block: 'center'}); el.focus(); el.value = ''; }
	})()`, nil)
	if err := r.driver.SendKeys(ctx, sel, name); err != nil {
		return err
	}

	optionJS := `(() => {
		` + jsVisible + `
		const name = ` + jsStr(strings.ToLower(name)) + `;
		for (const el of document.querySelectorAll('.MuiAutocomplete-option, [role="option"], .autocomplete-item, ul[role="listbox"] li')) {
			if (visible(el) && (el.textContent || '').toLowerCase().includes(name)) {
				el.click();
				return true;
			}
		}
		return false;
	})()`
	if pollJS(ctx, r.driver, optionJS, r.timings.inputGrowWait, r.timings.pollInterval) {
		r.logger.Info().Str("player", name).Msg("player selected from autocomplete")
		return nil
	}
	// No suggestion rendered; commit the typed text.
	if err := r.driver.SendKeys(ctx, sel, "\r"); err != nil {
		return err
	}
	r.logger.Info().Str("player", name).Msg("player entered without autocomplete")
	return nil
}

// confirmBooking clicks the confirm control and resolves what actually
// happened, in strict order: dialog gone means verified success, a dialog
// alert is a terminal rejection, then success indicators are polled, and
// only after all of that is the booking assumed to have gone through.
func (r *Run) confirmBooking(ctx context.Context, cand booking.Candidate) (bool, error) {
	clickJS := `(() => {
		` + jsVisible + `
		const scope = document.querySelector(` + jsStr(dialogSel) + `) || document;
		const wanted = ['confirm booking', 'confirm', 'book now', 'book', 'reserve', 'submit'];
		for (const w of wanted) {
			for (const el of scope.querySelectorAll('button, input[type="submit"]')) {
				const t = ((el.textContent || '') + (el.value || '')).trim().toLowerCase();
				if (visible(el) && !el.disabled && (t === w || t.includes(w))) {
					el.setAttribute('data-cb-confirm', '1');
					el.scrollIntoView({block: 'center'});
					el.click();
					return true;
				}
			}
		}
		return false;
	})()`
	var clicked bool
	if err := r.driver.Eval(ctx, clickJS, &clicked); err != nil {
		return false, err
	}
	if !clicked {
		r.logger.Warn().Msg("no confirm control found in dialog")
		r.saveDebug(ctx, "confirm_not_found")
		return false, nil
	}
	r.logger.Info().Int("court", cand.Court).Msg("confirm clicked")
	time.Sleep(r.timings.confirmGrace)

	confirmGoneJS := `(() => {
		` + jsVisible + `
		const el = document.querySelector('[data-cb-confirm]');
		return !el || !visible(el) || el.disabled;
	})()`
	var gone bool
	if err := r.driver.Eval(ctx, confirmGoneJS, &gone); err != nil {
		return false, err
	}
	if gone {
		msg := fmt.Sprintf("booked court %d at %s", cand.Court, cand.Label)
		r.setOutcome(booking.OutcomeSuccess, msg)
		r.logger.Info().Msg("booking confirmed, confirm control gone")
		r.saveDebug(ctx, "booking_success")
		return true, nil
	}

	if alert := r.dialogAlertText(ctx); alert != "" {
		r.setOutcome(booking.OutcomeAlert, alert)
		r.logger.Warn().Str("alert", alert).Msg("site rejected the booking")
		r.saveDebug(ctx, "booking_alert")
		return false, nil
	}

	if r.pollSuccessIndicators(ctx) {
		msg := fmt.Sprintf("booked court %d at %s", cand.Court, cand.Label)
		r.setOutcome(booking.OutcomeSuccess, msg)
		r.saveDebug(ctx, "booking_success")
		return true, nil
	}

	r.assumed = true
	r.assumedMsg = fmt.Sprintf("court %d at %s, confirm clicked but no confirmation seen", cand.Court, cand.Label)
	r.logger.Warn().Str("detail", r.assumedMsg).Msg("assuming booking went through")
	r.saveDebug(ctx, "booking_assumed")
	return true, nil
}

// dialogAlertText returns the visible alert text inside the dialog, if any.
func (r *Run) dialogAlertText(ctx context.Context) string {
	js := `(() => {
		` + jsVisible + `
		for (const el of document.querySelectorAll('.MuiAlert-message, [role="alert"] .MuiAlert-message, [role="alert"]')) {
			const t = (el.textContent || '').trim();
			if (visible(el) && t) return t;
		}
		return '';
	})()`
	var txt string
	_ = r.driver.Eval(ctx, js, &txt)
	return txt
}

// pollSuccessIndicators watches for any page-level sign the booking landed.
func (r *Run) pollSuccessIndicators(ctx context.Context) bool {
	js := `(() => {
		` + jsVisible + `
		for (const el of document.querySelectorAll('.booking-success, .alert-success, .success-message, .confirmation-message')) {
			if (visible(el)) return true;
		}
		const txt = (document.body && document.body.textContent || '').toLowerCase();
		if (txt.includes('booking confirmed') || txt.includes('successfully booked') || txt.includes('reservation confirmed')) return true;
		return location.href.toLowerCase().includes('confirmation');
	})()`
	return pollJS(ctx, r.driver, js, r.timings.indicatorWait, r.timings.pollInterval)
}

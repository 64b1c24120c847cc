package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const maxLoginAttempts = 3

// loginFields reports which login form controls a page probe marked.
type loginFields struct {
	User   bool `json:"user"`
	Pass   bool `json:"pass"`
	Submit bool `json:"submit"`
}

const (
	userFieldSel   = `input[data-cb-login="user"]`
	passFieldSel   = `input[data-cb-login="pass"]`
	submitFieldSel = `[data-cb-login="submit"]`
)

// login signs in to the club site, retrying up to maxLoginAttempts times.
// The logged-in flag is cached: once set it is never re-derived, so a
// transient page state can't flip a good session back to logged-out.
func (r *Run) login(ctx context.Context) bool {
	if r.loggedIn {
		return true
	}
	loginURL := strings.TrimRight(r.cfg.BaseURL, "/") + "/login"

	for r.loginAttempts < maxLoginAttempts {
		r.loginAttempts++
		attempt := r.loginAttempts
		r.logger.Info().Int("attempt", attempt).Int("max", maxLoginAttempts).Msg("login attempt")

		if err := r.driver.Navigate(ctx, loginURL); err != nil {
			r.logger.Error().Err(err).Msg("could not open login page")
			if isSessionFatal(err) {
				return false
			}
			time.Sleep(r.timings.settleWait)
			continue
		}
		pollJS(ctx, r.driver, `document.readyState === 'complete'`, r.timings.pageReadyWait, r.timings.pollInterval)
		r.saveDebug(ctx, fmt.Sprintf("login_attempt_%d", attempt))

		if r.isLoggedIn(ctx) {
			r.logger.Info().Msg("already logged in")
			return true
		}

		fields := r.markLoginFields(ctx)
		if fields.User && fields.Pass {
			if r.submitCredentials(ctx, fields, attempt) {
				r.saveDebug(ctx, "login_success")
				return true
			}
		} else {
			r.logger.Error().Msg("could not find login form elements")
			r.saveDebug(ctx, "login_missing_elements")
			if r.clickLoginLink(ctx) {
				continue
			}
		}

		if attempt < maxLoginAttempts {
			if title, err := r.driver.Title(ctx); err == nil {
				r.logger.Info().Int("attempt", attempt).Str("title", title).Msg("login attempt failed, retrying clean")
			}
			// A half-set session cookie can wedge the form; start over.
			if err := r.driver.ClearCookies(ctx); err != nil {
				r.logger.Debug().Err(err).Msg("cookie clear failed")
			}
			_ = r.driver.Eval(ctx, `location.reload()`, nil)
			pollJS(ctx, r.driver, `document.readyState === 'complete'`, r.timings.pageReadyWait, r.timings.pollInterval)
		}
	}

	r.logger.Error().Msg("all login attempts failed")
	r.saveDebug(ctx, "login_failure")
	return false
}

// isLoggedIn applies the detection heuristics in order: cached flag, page
// text, authenticated-UI elements, then the URL. A positive result caches.
func (r *Run) isLoggedIn(ctx context.Context) bool {
	if r.loggedIn {
		return true
	}
	if src, err := r.driver.PageSource(ctx); err == nil {
		low := strings.ToLower(src)
		if strings.Contains(low, "logout") || strings.Contains(low, "sign out") {
			r.loggedIn = true
			return true
		}
	}
	var found bool
	js := `(() => {
		` + jsVisible + `
		const sels = ["[href*='logout']", "button.logout", "a.logout"];
		for (const s of sels) {
			for (const el of document.querySelectorAll(s)) {
				if (visible(el)) return true;
			}
		}
		for (const el of document.querySelectorAll('a')) {
			const t = (el.textContent || '').toLowerCase();
			if (!visible(el)) continue;
			if (t.includes('logout') || t.includes('sign out') ||
				t.includes('dashboard') || t.includes('my account') || t.includes('profile')) return true;
		}
		return false;
	})()`
	if err := r.driver.Eval(ctx, js, &found); err == nil && found {
		r.loggedIn = true
		return true
	}
	if url, err := r.driver.CurrentURL(ctx); err == nil {
		low := strings.ToLower(url)
		if !strings.Contains(low, "login") &&
			(strings.Contains(low, "/dashboard") || strings.Contains(low, "/account") || strings.Contains(low, "/app")) {
			r.loggedIn = true
			return true
		}
	}
	return false
}

// markLoginFields probes common username/password/submit selector variants
// and tags the first visible, enabled match of each kind for later typing.
func (r *Run) markLoginFields(ctx context.Context) loginFields {
	js := `(() => {
		` + jsVisible + `
		document.querySelectorAll('[data-cb-login]').forEach(el => el.removeAttribute('data-cb-login'));
		const mark = (kind, sels) => {
			for (const s of sels) {
				for (const el of document.querySelectorAll(s)) {
					if (visible(el) && !el.disabled) {
						el.setAttribute('data-cb-login', kind);
						return true;
					}
				}
			}
			return false;
		};
		const user = mark('user', [
			"input[name='username']", "input[name='email']", "#username", "#email",
			"input[type='email']", "input[autocomplete*='username']", "input[autocomplete*='email']",
			"input[placeholder*='email' i]", "input[placeholder*='username' i]",
		]);
		const pass = mark('pass', [
			"input[name='password']", "#password", "input[type='password']",
			"input[autocomplete*='current-password']", "input[placeholder*='password' i]",
		]);
		let submit = mark('submit', ["button[type='submit']", "input[type='submit']"]);
		if (!submit) {
			for (const el of document.querySelectorAll('button, input[type=button]')) {
				const t = ((el.textContent || '') + (el.value || '')).toLowerCase();
				if (visible(el) && (t.includes('login') || t.includes('log in') || t.includes('sign in'))) {
					el.setAttribute('data-cb-login', 'submit');
					submit = true;
					break;
				}
			}
		}
		return {user, pass, submit};
	})()`
	var fields loginFields
	if err := r.driver.Eval(ctx, js, &fields); err != nil {
		r.logger.Debug().Err(err).Msg("login field probe failed")
	}
	return fields
}

func (r *Run) submitCredentials(ctx context.Context, fields loginFields, attempt int) bool {
	clearJS := func(sel string) string {
		return `(() => {
			const el = document.querySelector(` + jsStr(sel) + `);
			if (!el) return false;
			el.scrollIntoView({block: 'center'});
			el.value = '';
			el.dispatchEvent(new Event('input', {bubbles: true}));
			return true;
		})()`
	}

	r.logger.Info().Msg("entering credentials")
	_ = r.driver.Eval(ctx, clearJS(userFieldSel), nil)
	if err := r.driver.SendKeys(ctx, userFieldSel, r.cfg.Username); err != nil {
		r.logger.Error().Err(err).Msg("could not type username")
		return false
	}
	_ = r.driver.Eval(ctx, clearJS(passFieldSel), nil)
	if err := r.driver.SendKeys(ctx, passFieldSel, r.cfg.Password); err != nil {
		r.logger.Error().Err(err).Msg("could not type password")
		return false
	}
	r.saveDebug(ctx, fmt.Sprintf("login_after_credentials_%d", attempt))

	if fields.Submit {
		_ = r.driver.Eval(ctx, `(() => {
			const el = document.querySelector(`+jsStr(submitFieldSel)+`);
			if (el) el.click();
		})()`, nil)
	} else {
		// No submit control found; Enter in the password field.
		_ = r.driver.SendKeys(ctx, passFieldSel, "\r")
	}

	loggedInJS := `(() => !location.href.toLowerCase().includes('login'))()`
	if !pollJS(ctx, r.driver, loggedInJS, r.timings.loginWait, r.timings.pollInterval) && !r.isLoggedIn(ctx) {
		r.logger.Warn().Msg("login may not have completed as expected")
	}
	r.saveDebug(ctx, fmt.Sprintf("login_after_submit_%d", attempt))

	if msg := r.visibleErrorText(ctx); msg != "" {
		r.logger.Warn().Str("message", msg).Msg("possible login error on page")
		r.saveDebug(ctx, fmt.Sprintf("login_error_message_%d", attempt))
	}

	if r.isLoggedIn(ctx) {
		r.logger.Info().Msg("login verified")
		return true
	}
	r.logger.Warn().Msg("login not verified")
	return false
}

// visibleErrorText returns the text of the first visible error-looking
// element, or "".
func (r *Run) visibleErrorText(ctx context.Context) string {
	js := `(() => {
		` + jsVisible + `
		for (const el of document.querySelectorAll('.alert, .error, .message, .alert-danger, .error-message')) {
			if (visible(el) && (el.textContent || '').trim()) return el.textContent.trim();
		}
		return '';
	})()`
	var msg string
	_ = r.driver.Eval(ctx, js, &msg)
	return msg
}

// clickLoginLink probes for anything that might lead to the login form.
func (r *Run) clickLoginLink(ctx context.Context) bool {
	js := `(() => {
		` + jsVisible + `
		for (const el of document.querySelectorAll('a, button')) {
			const t = (el.textContent || '').toLowerCase();
			if (visible(el) && (t.includes('login') || t.includes('log in') || t.includes('sign in'))) {
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
	r.logger.Info().Msg("clicked a login link, retrying form detection")
	pollJS(ctx, r.driver, `document.readyState === 'complete'`, r.timings.pageReadyWait, r.timings.pollInterval)
	return true
}

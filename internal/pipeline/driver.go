package pipeline

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

// Driver is the browser-session capability the pipeline consumes. The
// production implementation is browser.Session; tests substitute fakes.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	// Eval runs a JavaScript expression in the page, decoding the result
	// into out when out is non-nil.
	Eval(ctx context.Context, js string, out any) error
	WaitVisible(ctx context.Context, sel string, timeout time.Duration) error
	SendKeys(ctx context.Context, sel, keys string) error
	CurrentURL(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
	PageSource(ctx context.Context) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
	// ClearCookies drops all cookies, forcing the next login attempt to
	// start from a clean slate.
	ClearCookies(ctx context.Context) error
	// Reset tears down and relaunches the browser; the session-fatal
	// recovery path. Callers replay login and navigation afterwards.
	Reset(ctx context.Context) error
}

// sessionFatalMarkers identify errors that mean the browser itself is gone
// rather than a transient page problem.
var sessionFatalMarkers = []string{
	"chrome not reachable",
	"session deleted",
	"target closed",
	"browser process",
	"websocket url timeout",
	"chrome session not running",
}

func isSessionFatal(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, m := range sessionFatalMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// jsStr renders a Go string as a JS string literal.
func jsStr(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// jsStrList renders a Go string slice as a JS array literal, lowercased
// for case-insensitive matching on the page side.
func jsStrList(vals []string) string {
	low := make([]string, len(vals))
	for i, v := range vals {
		low[i] = strings.ToLower(v)
	}
	b, _ := json.Marshal(low)
	return string(b)
}

// pollJS evaluates a boolean JS expression every interval until it yields
// true or the timeout elapses. Evaluation errors count as "not yet".
func pollJS(ctx context.Context, d Driver, js string, timeout, interval time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		var ok bool
		if err := d.Eval(ctx, js, &ok); err == nil && ok {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(interval):
		}
	}
}

// jsVisible is the shared element-visibility predicate embedded in most
// page probes.
const jsVisible = `const visible = el => {
	if (!el) return false;
	const st = window.getComputedStyle(el);
	return el.offsetHeight !== 0 && st.display !== 'none' && st.visibility !== 'hidden' && st.opacity !== '0';
};`

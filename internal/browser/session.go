package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"
)

// Options configures the Chrome session for one booking run.
type Options struct {
	Headless bool
	Logger   zerolog.Logger
}

// Session owns a single Chrome instance and the tab it drives. All booking
// stages share it; there is never more than one per run.
type Session struct {
	logger zerolog.Logger
	opts   Options

	allocCtx    context.Context
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc
}

const initAttempts = 3

// New launches Chrome and verifies the session responds. Initialization is
// retried; the final attempt falls back to a minimal flag set.
func New(opts Options) (*Session, error) {
	s := &Session{logger: opts.Logger, opts: opts}
	var lastErr error
	for attempt := 1; attempt <= initAttempts; attempt++ {
		minimal := attempt == initAttempts
		if err := s.launch(minimal); err != nil {
			lastErr = err
			s.logger.Warn().Err(err).Int("attempt", attempt).Bool("minimal_flags", minimal).
				Msg("chrome initialization failed")
			s.teardown()
			time.Sleep(2 * time.Second)
			continue
		}
		return s, nil
	}
	return nil, fmt.Errorf("chrome initialization failed after %d attempts: %w", initAttempts, lastErr)
}

func (s *Session) launch(minimal bool) error {
	allocOpts := append([]chromedp.ExecAllocatorOption{},
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if !minimal {
		allocOpts = append(allocOpts, chromedp.DefaultExecAllocatorOptions[:]...)
		allocOpts = append(allocOpts,
			chromedp.NoSandbox,
			chromedp.Flag("disable-notifications", true),
			chromedp.Flag("disable-extensions", true),
			chromedp.Flag("disable-infobars", true),
			chromedp.Flag("disable-blink-features", "AutomationControlled"),
			chromedp.Flag("start-maximized", true),
		)
	}
	if s.opts.Headless {
		allocOpts = append(allocOpts,
			chromedp.Flag("headless", "new"),
			chromedp.WindowSize(1920, 1080),
		)
	} else {
		allocOpts = append(allocOpts, chromedp.Flag("headless", false))
	}

	s.allocCtx, s.allocCancel = chromedp.NewExecAllocator(context.Background(), allocOpts...)
	s.ctx, s.cancel = chromedp.NewContext(s.allocCtx)

	// Prove the browser is up before handing it to the stages.
	checkCtx, cancel := context.WithTimeout(s.ctx, 30*time.Second)
	defer cancel()
	if err := chromedp.Run(checkCtx, chromedp.Navigate("about:blank")); err != nil {
		return fmt.Errorf("chrome smoke check: %w", err)
	}
	s.logger.Info().Bool("headless", s.opts.Headless).Bool("minimal_flags", minimal).
		Msg("chrome session started")
	return nil
}

func (s *Session) teardown() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
	s.ctx, s.cancel = nil, nil
	s.allocCtx, s.allocCancel = nil, nil
}

// Reset tears the browser down and launches a fresh one. Used on the
// session-fatal recovery path; the caller replays login and navigation.
func (s *Session) Reset(ctx context.Context) error {
	s.logger.Warn().Msg("resetting chrome session")
	s.teardown()
	var lastErr error
	for attempt := 1; attempt <= initAttempts; attempt++ {
		if err := s.launch(attempt == initAttempts); err != nil {
			lastErr = err
			s.teardown()
			time.Sleep(2 * time.Second)
			continue
		}
		return nil
	}
	return fmt.Errorf("chrome reset failed: %w", lastErr)
}

func (s *Session) Close() {
	s.teardown()
}

// run executes chromedp actions on the session tab, honoring any deadline
// the caller attached to ctx.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	if s.ctx == nil {
		return fmt.Errorf("chrome session not running")
	}
	runCtx := s.ctx
	if deadline, ok := ctx.Deadline(); ok {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithDeadline(s.ctx, deadline)
		defer cancel()
	}
	return chromedp.Run(runCtx, actions...)
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := s.run(navCtx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// Eval runs a JavaScript expression in the page. out may be nil when the
// result is irrelevant.
func (s *Session) Eval(ctx context.Context, js string, out any) error {
	return s.run(ctx, chromedp.Evaluate(js, out))
}

// WaitVisible blocks until the selector matches a visible element or the
// timeout elapses.
func (s *Session) WaitVisible(ctx context.Context, sel string, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.run(waitCtx, chromedp.WaitVisible(sel, chromedp.ByQuery))
}

func (s *Session) SendKeys(ctx context.Context, sel, keys string) error {
	return s.run(ctx, chromedp.SendKeys(sel, keys, chromedp.ByQuery))
}

func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	var url string
	err := s.run(ctx, chromedp.Location(&url))
	return url, err
}

func (s *Session) Title(ctx context.Context) (string, error) {
	var title string
	err := s.run(ctx, chromedp.Title(&title))
	return title, err
}

func (s *Session) PageSource(ctx context.Context) (string, error) {
	var html string
	err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := s.run(ctx, chromedp.CaptureScreenshot(&buf))
	return buf, err
}

// ClearCookies drops every browser cookie, forcing a clean login.
func (s *Session) ClearCookies(ctx context.Context) error {
	return s.run(ctx, network.ClearBrowserCookies())
}

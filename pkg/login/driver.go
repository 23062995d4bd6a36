package login

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/entrhq/wisplogin/pkg/browser"
	"github.com/entrhq/wisplogin/pkg/config"
	"github.com/entrhq/wisplogin/pkg/logging"
	"github.com/entrhq/wisplogin/pkg/redact"
)

// Driver logs a single account into the console. One Driver is shared by
// every account of a batch; all per-account state lives in Login's frame.
type Driver struct {
	launcher browser.Launcher
	cfg      config.BrowserConfig
	matcher  *URLMatcher
	logger   *logging.Logger
	observer Observer

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the driver's logger.
func WithLogger(l *logging.Logger) Option {
	return func(d *Driver) {
		d.logger = l
	}
}

// WithObserver registers a state transition observer.
func WithObserver(o Observer) Option {
	return func(d *Driver) {
		d.observer = o
	}
}

// NewDriver creates a driver launching engines through launcher.
func NewDriver(launcher browser.Launcher, cfg config.BrowserConfig, opts ...Option) (*Driver, error) {
	matcher, err := NewURLMatcher(cfg.AuthenticatedPattern, cfg.LoginMarker)
	if err != nil {
		return nil, err
	}
	if len(cfg.UserAgents) == 0 {
		return nil, fmt.Errorf("at least one user agent is required")
	}
	if cfg.DiagnosticsDir == "" {
		cfg.DiagnosticsDir = os.TempDir()
	}

	d := &Driver{
		launcher: launcher,
		cfg:      cfg,
		matcher:  matcher,
		logger:   logging.Nop(),
		observer: nopObserver{},
		sleep:    sleepContext,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// run carries one account's progress through the state machine.
type run struct {
	account  string
	state    State
	log      *logging.Logger
	observer Observer
}

func (r *run) transition(to State) {
	from := r.state
	r.state = to
	r.log.Debugf("%s -> %s", from, to)
	r.observer.Transition(r.account, from, to)
}

// Login drives one account to CONFIRMED or FAILED. It never returns an
// error: every failure, including a panic below it, ends up in the
// Outcome. The engine and the current context are released exactly once
// on every path.
func (d *Driver) Login(ctx context.Context, acct Account) (outcome Outcome) {
	masked := redact.Identifier(acct.Identifier)
	r := &run{
		account:  masked,
		state:    StateInit,
		log:      d.logger.With("account", masked),
		observer: d.observer,
	}
	outcome = Outcome{Identifier: acct.Identifier}

	defer func() {
		if p := recover(); p != nil {
			r.log.Errorf("login aborted: %v", p)
			outcome.Success = false
			outcome.Err = fmt.Errorf("login aborted: %v", p)
			if !r.state.Terminal() {
				r.transition(StateFailed)
			}
		}
	}()

	eng, err := d.launcher.Launch(masked, browser.LaunchOptions{
		Headless: d.cfg.Headless,
		Args:     browser.StealthArgs,
	})
	if err != nil {
		r.log.Errorf("failed to launch browser: %v", err)
		outcome.Err = err
		r.transition(StateFailed)
		return outcome
	}
	defer release(r.log, "engine", eng)

	var page browser.Context
	defer func() {
		if page != nil {
			release(r.log, "context", page)
		}
	}()

	page, err = d.openContext(eng, 0)
	if err != nil {
		r.log.Errorf("failed to open browser context: %v", err)
		outcome.Err = err
		r.transition(StateFailed)
		return outcome
	}

	for attempt := 0; ; attempt++ {
		outcome.Attempts = attempt + 1
		res := d.attempt(ctx, r, page, acct, attempt)

		switch res.kind {
		case resultSuccess:
			outcome.Success = true
			outcome.Err = nil
			if res.session == sessionExisting {
				r.log.Infof("already logged in")
			} else {
				r.log.Infof("login succeeded")
			}
			r.transition(StateConfirmed)
			return outcome

		case resultTerminal:
			r.log.Errorf("attempt %d failed terminally: %v", attempt+1, res.reason)
			outcome.Err = res.reason
			d.fail(r, page)
			return outcome
		}

		r.log.Warnf("attempt %d failed: %v", attempt+1, res.reason)
		outcome.Err = res.reason

		if attempt >= d.cfg.MaxRetries {
			d.fail(r, page)
			return outcome
		}

		r.transition(StateRetry)
		release(r.log, "context", page)
		page = nil

		page, err = d.openContext(eng, attempt+1)
		if err != nil {
			r.log.Errorf("failed to open fresh browser context: %v", err)
			outcome.Err = err
			r.transition(StateFailed)
			return outcome
		}

		if err := d.sleep(ctx, d.cfg.RetryBackoff); err != nil {
			outcome.Err = err
			d.fail(r, page)
			return outcome
		}
	}
}

// openContext creates a navigation context. The user agent rotates with
// the attempt number so consecutive attempts do not share a fingerprint.
func (d *Driver) openContext(eng browser.Engine, attempt int) (browser.Context, error) {
	page, err := eng.NewContext(browser.ContextOptions{
		UserAgent: d.cfg.UserAgents[attempt%len(d.cfg.UserAgents)],
		Viewport: &browser.Viewport{
			Width:  d.cfg.ViewportWidth,
			Height: d.cfg.ViewportHeight,
		},
		Timeout: d.cfg.PageTimeout,
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

// fail enters FAILED and takes the diagnostic screenshot. The capture is
// deleted straight away; nothing is kept on disk.
func (d *Driver) fail(r *run, page browser.Context) {
	r.transition(StateFailed)
	if page == nil {
		return
	}

	name := fmt.Sprintf("error_%s_%d_%s.png",
		fileSafe.Replace(r.account),
		d.now().Unix(),
		uuid.NewString(),
	)
	path := filepath.Join(d.cfg.DiagnosticsDir, name)

	if err := page.Screenshot(path); err != nil {
		r.log.Warnf("diagnostic screenshot failed: %v", err)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		r.log.Warnf("failed to remove diagnostic screenshot: %v", err)
	}
}

// fileSafe keeps a masked identifier to a single path element.
var fileSafe = strings.NewReplacer("@", "_", "/", "_", `\`, "_")

type closer interface {
	Close() error
}

func release(log *logging.Logger, what string, c closer) {
	if err := c.Close(); err != nil {
		log.Warnf("failed to close %s: %v", what, err)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

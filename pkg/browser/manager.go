package browser

import (
	"fmt"
	"io"
	"sync"

	"github.com/playwright-community/playwright-go"
)

// Runtime owns the Playwright driver process and keeps track of every
// engine launched through it, so Shutdown can release anything a caller
// left behind.
type Runtime struct {
	mu          sync.Mutex
	playwright  *playwright.Playwright
	engines     map[*engine]string
	initialized bool
}

// NewRuntime creates an uninitialized runtime.
func NewRuntime() *Runtime {
	return &Runtime{
		engines: make(map[*engine]string),
	}
}

// Initialize starts the Playwright driver, installing Chromium first
// unless skipInstall is set. It must be called before Launch.
func (r *Runtime) Initialize(skipInstall bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialized {
		return nil
	}

	// Driver chatter would interleave with the report on stdout
	opts := &playwright.RunOptions{
		Browsers: []string{"chromium"},
		Verbose:  false,
		Stdout:   io.Discard,
		Stderr:   io.Discard,
	}

	if !skipInstall {
		if err := playwright.Install(opts); err != nil {
			return fmt.Errorf("failed to install playwright: %w", err)
		}
	}

	pw, err := playwright.Run(opts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	r.playwright = pw
	r.initialized = true
	return nil
}

// Launch starts a Chromium engine registered under name.
func (r *Runtime) Launch(name string, opts LaunchOptions) (Engine, error) {
	r.mu.Lock()
	if !r.initialized {
		r.mu.Unlock()
		return nil, fmt.Errorf("browser runtime not initialized")
	}
	pw := r.playwright
	r.mu.Unlock()

	headless := opts.Headless
	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: &headless,
		Args:     opts.Args,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	e := &engine{browser: browser, runtime: r}

	r.mu.Lock()
	r.engines[e] = name
	r.mu.Unlock()

	return e, nil
}

// Active returns the number of engines not yet closed.
func (r *Runtime) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.engines)
}

func (r *Runtime) release(e *engine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.engines, e)
}

// Shutdown closes any engine still open and stops the driver.
func (r *Runtime) Shutdown() error {
	r.mu.Lock()
	leftovers := make([]*engine, 0, len(r.engines))
	for e := range r.engines {
		leftovers = append(leftovers, e)
	}
	r.mu.Unlock()

	var errs []error
	for _, e := range leftovers {
		if err := e.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialized && r.playwright != nil {
		if err := r.playwright.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
		r.initialized = false
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}
	return nil
}

// engine wraps one playwright.Browser.
type engine struct {
	browser playwright.Browser
	runtime *Runtime

	closeOnce sync.Once
	closeErr  error
}

// NewContext creates a browser context with a single page.
func (e *engine) NewContext(opts ContextOptions) (Context, error) {
	contextOpts := playwright.BrowserNewContextOptions{}
	if opts.Viewport != nil {
		contextOpts.Viewport = &playwright.Size{
			Width:  opts.Viewport.Width,
			Height: opts.Viewport.Height,
		}
	}
	if opts.UserAgent != "" {
		contextOpts.UserAgent = playwright.String(opts.UserAgent)
	}

	bctx, err := e.browser.NewContext(contextOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	if opts.Timeout > 0 {
		page.SetDefaultTimeout(milliseconds(opts.Timeout))
	}

	return &Session{context: bctx, page: page}, nil
}

// Close closes the browser process. Only the first call does any work.
func (e *engine) Close() error {
	e.closeOnce.Do(func() {
		e.closeErr = e.browser.Close()
		if e.runtime != nil {
			e.runtime.release(e)
		}
	})
	return e.closeErr
}

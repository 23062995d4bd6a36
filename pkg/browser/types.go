package browser

import (
	"time"
)

// Launcher starts browser engines. Runtime is the Playwright-backed
// implementation; tests substitute fakes.
type Launcher interface {
	Launch(name string, opts LaunchOptions) (Engine, error)
}

// Engine is one launched browser process. Close must be safe to call more
// than once; only the first call releases the process.
type Engine interface {
	NewContext(opts ContextOptions) (Context, error)
	Close() error
}

// Context is an isolated navigation context with a single page. Close
// must be safe to call more than once.
type Context interface {
	Navigate(url string, opts NavigateOptions) error
	WaitForLoadState(state LoadState, timeout time.Duration) error
	URL() string
	Wait(opts WaitOptions) error
	Fill(opts FillOptions) error
	Click(opts ClickOptions) error
	WaitForURL(match func(string) bool, timeout time.Duration) error
	Screenshot(path string) error
	Close() error
}

// LaunchOptions configures a new engine.
type LaunchOptions struct {
	// Headless controls whether the browser runs without a visible window
	Headless bool

	// Args are passed to the browser binary
	Args []string
}

// ContextOptions configures a new navigation context.
type ContextOptions struct {
	// UserAgent overrides the browser's default user agent
	UserAgent string

	// Viewport sets the initial viewport size
	Viewport *Viewport

	// Timeout is the default timeout for page operations
	Timeout time.Duration
}

// Viewport represents the browser viewport dimensions.
type Viewport struct {
	Width  int
	Height int
}

// LoadState names a page lifecycle point.
type LoadState string

const (
	LoadStateLoad             LoadState = "load"
	LoadStateDOMContentLoaded LoadState = "domcontentloaded"
	LoadStateNetworkIdle      LoadState = "networkidle"
)

// NavigateOptions configures page navigation behavior.
type NavigateOptions struct {
	// WaitUntil specifies when to consider navigation successful
	WaitUntil LoadState

	// Timeout (0 means the context default)
	Timeout time.Duration
}

// ClickOptions configures element clicking behavior.
type ClickOptions struct {
	// Selector identifies the element to click
	Selector string

	// Timeout (0 means the context default)
	Timeout time.Duration
}

// FillOptions configures form input filling.
type FillOptions struct {
	// Selector identifies the input element
	Selector string

	// Value is the text to fill
	Value string

	// Timeout (0 means the context default)
	Timeout time.Duration
}

// WaitOptions configures waiting for an element.
type WaitOptions struct {
	// Selector to wait for
	Selector string

	// State to wait for: "attached", "detached", "visible", "hidden"
	State string

	// Timeout (0 means the context default)
	Timeout time.Duration
}

// StealthArgs reduce the automation fingerprint of a headless Chromium
// running in a container.
var StealthArgs = []string{
	"--no-sandbox",
	"--disable-setuid-sandbox",
	"--disable-dev-shm-usage",
	"--disable-gpu",
	"--disable-extensions",
	"--window-size=1920,1080",
	"--disable-blink-features=AutomationControlled",
}

// milliseconds converts a duration to the float Playwright expects.
func milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

package browser

import (
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

// Session is the Playwright implementation of Context: one browser
// context holding one page.
type Session struct {
	context playwright.BrowserContext
	page    playwright.Page

	closeOnce sync.Once
	closeErr  error
}

// Navigate navigates the session's page to the specified URL.
func (s *Session) Navigate(url string, opts NavigateOptions) error {
	playwrightOpts := playwright.PageGotoOptions{}

	if opts.WaitUntil != "" {
		waitUntil := playwright.WaitUntilState(opts.WaitUntil)
		playwrightOpts.WaitUntil = &waitUntil
	}

	if opts.Timeout > 0 {
		playwrightOpts.Timeout = playwright.Float(milliseconds(opts.Timeout))
	}

	if _, err := s.page.Goto(url, playwrightOpts); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

// WaitForLoadState blocks until the page reaches the given lifecycle state.
func (s *Session) WaitForLoadState(state LoadState, timeout time.Duration) error {
	loadState := playwright.LoadState(state)
	playwrightOpts := playwright.PageWaitForLoadStateOptions{
		State: &loadState,
	}
	if timeout > 0 {
		playwrightOpts.Timeout = playwright.Float(milliseconds(timeout))
	}

	if err := s.page.WaitForLoadState(playwrightOpts); err != nil {
		return fmt.Errorf("wait for %s failed: %w", state, err)
	}
	return nil
}

// URL returns the page's current URL.
func (s *Session) URL() string {
	return s.page.URL()
}

// Wait waits for an element matching the selector.
func (s *Session) Wait(opts WaitOptions) error {
	if opts.Selector == "" {
		return fmt.Errorf("selector is required for wait")
	}

	playwrightOpts := playwright.PageWaitForSelectorOptions{}

	if opts.State != "" {
		state := playwright.WaitForSelectorState(opts.State)
		playwrightOpts.State = &state
	}

	if opts.Timeout > 0 {
		playwrightOpts.Timeout = playwright.Float(milliseconds(opts.Timeout))
	}

	if _, err := s.page.WaitForSelector(opts.Selector, playwrightOpts); err != nil {
		return fmt.Errorf("wait failed: %w", err)
	}
	return nil
}

// Fill fills an input element with the specified value.
func (s *Session) Fill(opts FillOptions) error {
	playwrightOpts := playwright.PageFillOptions{}

	if opts.Timeout > 0 {
		playwrightOpts.Timeout = playwright.Float(milliseconds(opts.Timeout))
	}

	// The value is deliberately left out of the error.
	if err := s.page.Fill(opts.Selector, opts.Value, playwrightOpts); err != nil {
		return fmt.Errorf("fill %q failed: %w", opts.Selector, err)
	}
	return nil
}

// Click clicks an element matching the selector.
func (s *Session) Click(opts ClickOptions) error {
	playwrightOpts := playwright.PageClickOptions{}

	if opts.Timeout > 0 {
		playwrightOpts.Timeout = playwright.Float(milliseconds(opts.Timeout))
	}

	if err := s.page.Click(opts.Selector, playwrightOpts); err != nil {
		return fmt.Errorf("click failed: %w", err)
	}
	return nil
}

// WaitForURL blocks until the page URL satisfies match.
func (s *Session) WaitForURL(match func(string) bool, timeout time.Duration) error {
	playwrightOpts := playwright.PageWaitForURLOptions{}
	if timeout > 0 {
		playwrightOpts.Timeout = playwright.Float(milliseconds(timeout))
	}

	if err := s.page.WaitForURL(match, playwrightOpts); err != nil {
		return fmt.Errorf("wait for url failed: %w", err)
	}
	return nil
}

// Screenshot writes a full-page PNG to path.
func (s *Session) Screenshot(path string) error {
	_, err := s.page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("screenshot failed: %w", err)
	}
	return nil
}

// Close releases the page and its browser context. Only the first call
// does any work.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		_ = s.page.Close() // context close below covers it
		s.closeErr = s.context.Close()
	})
	return s.closeErr
}

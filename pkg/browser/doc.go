// Package browser provides headless browser automation through Playwright.
//
// The package separates three lifetimes so callers can hold each one for
// exactly as long as they need it:
//
//  1. Runtime: the Playwright driver process, started once per run
//  2. Engine: one launched Chromium process, owned by a single caller
//  3. Context: an isolated browser context with one page, cheap to recreate
//
// Engine and Context are interfaces. The login driver only depends on them,
// which keeps its state machine testable without a real browser.
//
// # Resource Release
//
// Engine.Close and Context.Close release their handle on the first call and
// are no-ops afterwards, so callers can both defer a release and close
// early on a retry path. Runtime.Shutdown closes any engine still registered
// before stopping the driver.
//
// # Example Usage
//
//	rt := browser.NewRuntime()
//	if err := rt.Initialize(false); err != nil {
//	    return err
//	}
//	defer rt.Shutdown()
//
//	eng, err := rt.Launch("abc****@example.com", browser.LaunchOptions{
//	    Headless: true,
//	    Args:     browser.StealthArgs,
//	})
//	if err != nil {
//	    return err
//	}
//	defer eng.Close()
//
//	page, err := eng.NewContext(browser.ContextOptions{
//	    Viewport: &browser.Viewport{Width: 1920, Height: 1080},
//	    Timeout:  90 * time.Second,
//	})
//	if err != nil {
//	    return err
//	}
//	defer page.Close()
//
//	err = page.Navigate("https://example.com", browser.NavigateOptions{
//	    WaitUntil: browser.LoadStateLoad,
//	})
package browser

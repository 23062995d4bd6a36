package login

import (
	"context"

	"github.com/entrhq/wisplogin/pkg/browser"
)

type resultKind int

const (
	resultSuccess resultKind = iota
	resultRetryable
	resultTerminal
)

type sessionKind int

const (
	// sessionExisting: the console was already authenticated on arrival
	sessionExisting sessionKind = iota
	// sessionCreated: credentials were submitted and accepted
	sessionCreated
)

// attemptResult is the tagged outcome of one pass through the form.
type attemptResult struct {
	kind    resultKind
	session sessionKind
	reason  error
}

func succeeded(s sessionKind) attemptResult {
	return attemptResult{kind: resultSuccess, session: s}
}

// failed classifies err: once ctx is done nothing is worth retrying.
func failed(ctx context.Context, err error) attemptResult {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return attemptResult{kind: resultTerminal, reason: ctxErr}
	}
	return attemptResult{kind: resultRetryable, reason: err}
}

// attempt runs NAVIGATING through SUBMITTING once on page.
func (d *Driver) attempt(ctx context.Context, r *run, page browser.Context, acct Account, n int) attemptResult {
	if err := ctx.Err(); err != nil {
		return attemptResult{kind: resultTerminal, reason: err}
	}

	r.transition(StateNavigating)
	r.log.Infof("attempt %d: opening login page", n+1)

	if err := page.Navigate(d.cfg.LoginURL, browser.NavigateOptions{
		WaitUntil: browser.LoadStateLoad,
		Timeout:   d.cfg.PageTimeout,
	}); err != nil {
		return failed(ctx, err)
	}
	if err := page.WaitForLoadState(browser.LoadStateDOMContentLoaded, d.cfg.StateTimeout); err != nil {
		return failed(ctx, err)
	}

	// client-side redirects settle after DOMContentLoaded
	if err := d.sleep(ctx, d.cfg.SettleDelay); err != nil {
		return failed(ctx, err)
	}

	r.transition(StateCheckSession)
	if d.matcher.IsAuthenticatedURL(page.URL()) {
		return succeeded(sessionExisting)
	}

	r.transition(StateFilling)
	sel := d.cfg.Selectors

	if err := page.Wait(browser.WaitOptions{
		Selector: sel.Identifier,
		Timeout:  d.cfg.ElementTimeout,
	}); err != nil {
		return failed(ctx, err)
	}
	if err := page.Fill(browser.FillOptions{Selector: sel.Identifier, Value: acct.Identifier}); err != nil {
		return failed(ctx, err)
	}
	if err := page.Fill(browser.FillOptions{Selector: sel.Secret, Value: acct.Secret}); err != nil {
		return failed(ctx, err)
	}

	if sel.Challenge != "" {
		r.transition(StateChallenge)
		if err := d.passChallenge(ctx, r, page); err != nil {
			return failed(ctx, err)
		}
	}

	r.transition(StateSubmitting)
	if err := page.Click(browser.ClickOptions{Selector: sel.Submit}); err != nil {
		return failed(ctx, err)
	}
	if err := page.WaitForURL(d.matcher.InArea, d.cfg.StateTimeout); err != nil {
		return failed(ctx, err)
	}

	return succeeded(sessionCreated)
}

// passChallenge clicks the human-verification control if it shows up.
// Its absence, or a failed click, does not fail the attempt; only a
// cancelled context does.
func (d *Driver) passChallenge(ctx context.Context, r *run, page browser.Context) error {
	sel := d.cfg.Selectors.Challenge

	if err := page.Wait(browser.WaitOptions{
		Selector: sel,
		Timeout:  d.cfg.ChallengeTimeout,
	}); err != nil {
		r.log.Debugf("no verification challenge: %v", err)
		return nil
	}

	if err := page.Click(browser.ClickOptions{
		Selector: sel,
		Timeout:  d.cfg.ChallengeTimeout,
	}); err != nil {
		r.log.Debugf("verification challenge click failed: %v", err)
		return nil
	}

	r.log.Infof("clicked verification challenge")
	return d.sleep(ctx, d.cfg.ChallengePause)
}

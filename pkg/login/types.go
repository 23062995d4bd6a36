package login

import (
	"github.com/entrhq/wisplogin/pkg/redact"
)

// Account is one identifier/secret pair from the account list.
type Account struct {
	Identifier string
	Secret     string
}

// String returns the masked identifier so an Account never prints its
// secret, even by accident.
func (a Account) String() string {
	return redact.Identifier(a.Identifier)
}

// GoString keeps %#v as safe as %v.
func (a Account) GoString() string {
	return "login.Account{" + a.String() + "}"
}

// Outcome is the terminal result of one account's login.
type Outcome struct {
	Identifier string
	Success    bool

	// Attempts is the number of attempts started
	Attempts int

	// Err is the last failure reason; nil on success
	Err error
}

// State is a step of the per-account login state machine.
type State int

const (
	StateInit State = iota
	StateNavigating
	StateCheckSession
	StateFilling
	StateChallenge
	StateSubmitting
	StateConfirmed
	StateRetry
	StateFailed
)

var stateNames = [...]string{
	StateInit:         "INIT",
	StateNavigating:   "NAVIGATING",
	StateCheckSession: "CHECK_SESSION",
	StateFilling:      "FILLING",
	StateChallenge:    "CHALLENGE",
	StateSubmitting:   "SUBMITTING",
	StateConfirmed:    "CONFIRMED",
	StateRetry:        "RETRY",
	StateFailed:       "FAILED",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "UNKNOWN"
	}
	return stateNames[s]
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateConfirmed || s == StateFailed
}

// Observer receives every state transition. account is the masked
// identifier. Implementations must be safe for concurrent use since
// accounts run in parallel.
type Observer interface {
	Transition(account string, from, to State)
}

type nopObserver struct{}

func (nopObserver) Transition(string, State, State) {}

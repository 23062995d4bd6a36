// Package batch runs a login for every configured account and reports the
// combined result.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/entrhq/wisplogin/pkg/config"
	"github.com/entrhq/wisplogin/pkg/logging"
	"github.com/entrhq/wisplogin/pkg/login"
	"github.com/entrhq/wisplogin/pkg/notify"
	"github.com/entrhq/wisplogin/pkg/redact"
	"github.com/entrhq/wisplogin/pkg/report"
)

// ErrNoAccounts is returned when the account list is missing or has no
// usable entry. The operator has already been notified when it is returned.
var ErrNoAccounts = errors.New("no accounts configured")

// Messages sent when the account list cannot be used.
const (
	MsgAccountsMissing   = "Failed: " + config.EnvAccounts + " is not configured"
	MsgAccountsMalformed = "Failed: " + config.EnvAccounts + " is malformed, expected email:password"
)

// LoginDriver logs one account in. Implementations never return an
// error; failures are carried in the Outcome.
type LoginDriver interface {
	Login(ctx context.Context, acct login.Account) login.Outcome
}

// Recorder receives batch statistics.
type Recorder interface {
	RecordBatch(outcomes []login.Outcome, start, end time.Time)
	WriteTextfile(path string) error
}

// Summary is the result of one run.
type Summary struct {
	Start    time.Time
	End      time.Time
	Outcomes []login.Outcome
	Report   string
}

// Succeeded returns the number of successful outcomes.
func (s *Summary) Succeeded() int {
	var n int
	for _, o := range s.Outcomes {
		if o.Success {
			n++
		}
	}
	return n
}

// Failed returns the number of failed outcomes.
func (s *Summary) Failed() int {
	return len(s.Outcomes) - s.Succeeded()
}

// Orchestrator fans logins out across accounts.
type Orchestrator struct {
	cfg      *config.Config
	driver   LoginDriver
	notifier notify.Notifier
	out      io.Writer
	logger   *logging.Logger
	recorder Recorder
	now      func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithOutput sets where the report is printed. Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(o *Orchestrator) { o.out = w }
}

// WithLogger sets the orchestrator logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithRecorder enables metrics recording.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an orchestrator.
func New(cfg *config.Config, driver LoginDriver, notifier notify.Notifier, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:      cfg,
		driver:   driver,
		notifier: notifier,
		out:      os.Stdout,
		logger:   logging.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run parses the account list, logs every account in concurrently, then
// prints and sends the report. It returns ErrNoAccounts when there is
// nothing to do; every other failure is per account and lives in the
// Summary.
func (o *Orchestrator) Run(ctx context.Context) (*Summary, error) {
	start := o.now()

	raw := strings.TrimSpace(o.cfg.Accounts)
	if raw == "" {
		o.logger.Errorf("%s is empty", config.EnvAccounts)
		o.notify(ctx, MsgAccountsMissing)
		return nil, ErrNoAccounts
	}

	accounts := ParseAccounts(raw)
	if len(accounts) == 0 {
		o.logger.Errorf("%s has no identifier:secret entry", config.EnvAccounts)
		o.notify(ctx, MsgAccountsMalformed)
		return nil, ErrNoAccounts
	}

	o.logger.Infof("dispatching %d accounts", len(accounts))
	outcomes := o.dispatch(ctx, accounts)
	end := o.now()

	summary := &Summary{
		Start:    start,
		End:      end,
		Outcomes: outcomes,
		Report:   report.Build(outcomes, start, end),
	}

	fmt.Fprintln(o.out, summary.Report)
	o.notify(ctx, summary.Report)
	o.record(summary)

	o.logger.Infof("batch finished: %d succeeded, %d failed", summary.Succeeded(), summary.Failed())
	return summary, nil
}

// dispatch runs one login per account. Each goroutine owns exactly one
// slot of the result slice, so no locking is needed.
func (o *Orchestrator) dispatch(ctx context.Context, accounts []login.Account) []login.Outcome {
	outcomes := make([]login.Outcome, len(accounts))

	// A plain group: one account failing must not cancel the others.
	var g errgroup.Group
	if o.cfg.Batch.MaxConcurrency > 0 {
		g.SetLimit(o.cfg.Batch.MaxConcurrency)
	}

	for i, acct := range accounts {
		i, acct := i, acct
		g.Go(func() error {
			outcomes[i] = o.loginOne(ctx, acct)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func (o *Orchestrator) loginOne(ctx context.Context, acct login.Account) (outcome login.Outcome) {
	defer func() {
		if p := recover(); p != nil {
			o.logger.Errorf("login for %s panicked: %v", redact.Identifier(acct.Identifier), p)
			outcome = login.Outcome{
				Identifier: acct.Identifier,
				Err:        fmt.Errorf("login panicked: %v", p),
			}
		}
	}()

	outcome = o.driver.Login(ctx, acct)
	// The report is keyed by identifier; keep it even if a driver forgot.
	outcome.Identifier = acct.Identifier
	return outcome
}

// notify sends message on its own goroutine and waits for it, so a slow
// or failing endpoint cannot corrupt the batch result. The wait outlives
// ctx cancellation so an interrupted run still reports.
func (o *Orchestrator) notify(ctx context.Context, message string) {
	if o.notifier == nil {
		return
	}
	<-notify.Go(context.WithoutCancel(ctx), o.notifier, message)
}

func (o *Orchestrator) record(s *Summary) {
	if o.recorder == nil {
		return
	}
	o.recorder.RecordBatch(s.Outcomes, s.Start, s.End)

	path := o.cfg.Metrics.TextfilePath
	if path == "" {
		return
	}
	if err := o.recorder.WriteTextfile(path); err != nil {
		o.logger.Warnf("%v", err)
		return
	}
	o.logger.Debugf("metrics written to %s", path)
}

// Package report renders the end-of-run summary sent to operators.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/entrhq/wisplogin/pkg/login"
	"github.com/entrhq/wisplogin/pkg/redact"
)

// Title heads every report.
const Title = "Wispbyte auto-login report"

// TimeLayout formats the run's start and end.
const TimeLayout = "2006-01-02 15:04:05"

// Build renders outcomes as a plain-text report. Successful and failed
// accounts keep their relative order; a section with no members is
// left out entirely. Identifiers are masked.
func Build(outcomes []login.Outcome, start, end time.Time) string {
	var succeeded, failed []login.Outcome
	for _, o := range outcomes {
		if o.Success {
			succeeded = append(succeeded, o)
		} else {
			failed = append(failed, o)
		}
	}

	var b strings.Builder
	b.WriteString(Title + "\n")
	b.WriteString(fmt.Sprintf("Time: %s → %s\n", start.Format(TimeLayout), end.Format(TimeLayout)))
	b.WriteString(fmt.Sprintf("Result: %d succeeded | %d failed\n", len(succeeded), len(failed)))

	if len(succeeded) > 0 {
		b.WriteString("\nSuccessful accounts:\n")
		writeAccounts(&b, succeeded)
	}

	if len(failed) > 0 {
		b.WriteString("\nFailed accounts:\n")
		writeAccounts(&b, failed)
	}

	return strings.TrimRight(b.String(), "\n")
}

func writeAccounts(b *strings.Builder, outcomes []login.Outcome) {
	for _, o := range outcomes {
		b.WriteString(" - " + redact.Identifier(o.Identifier) + "\n")
	}
}

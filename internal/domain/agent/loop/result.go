package loop

import (
	"fmt"

	"retouch/internal/domain/history"
)

// Outcome is how a session ended.
type Outcome string

const (
	OutcomeSatisfied      Outcome = "satisfied"
	OutcomeTooManyRetries Outcome = "too_many_retries"
	OutcomeAborted        Outcome = "aborted"
)

// Result summarises a finished session.
type Result struct {
	SessionID string
	Outcome   Outcome
	Attempts  int
	Calls     int
	Verdict   string
	Final     *history.Artifact
	Err       error
}

// EndLine is the terminal processing-log line. Each outcome has a distinct
// prefix after "SESSION END:".
func (r *Result) EndLine(ceiling int) string {
	switch r.Outcome {
	case OutcomeSatisfied:
		return "SESSION END: satisfied"
	case OutcomeTooManyRetries:
		return fmt.Sprintf("SESSION END: too many retries (%d)", ceiling)
	default:
		return fmt.Sprintf("SESSION END: aborted (%v)", r.Err)
	}
}

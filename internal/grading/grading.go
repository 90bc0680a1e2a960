// Package grading decides whether a submitted output solves a challenge.
package grading

import (
	"github.com/victornm/codequest/internal/domain"
)

// Evaluate grades a candidate output against the challenge's expected output.
// The comparison is byte-for-byte: no trimming, no case folding, no partial
// credit. This is a deliberate platform limitation, every challenge has
// exactly one correct output.
func Evaluate(ch domain.Challenge, submittedOutput string) domain.Verdict {
	if submittedOutput == ch.ExpectedOutput {
		return domain.VerdictAccepted
	}

	return domain.VerdictRejected
}

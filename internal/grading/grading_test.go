package grading_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/victornm/codequest/internal/domain"
	"github.com/victornm/codequest/internal/grading"
)

func TestEvaluate(t *testing.T) {
	t.Parallel()

	ch := domain.Challenge{
		ChallengeID:    1,
		Title:          "FizzBuzz",
		Points:         10,
		ExpectedOutput: "42",
	}

	tests := map[string]struct {
		submitted string
		want      domain.Verdict
	}{
		"exact match is accepted":            {submitted: "42", want: domain.VerdictAccepted},
		"different output is rejected":       {submitted: "43", want: domain.VerdictRejected},
		"trailing newline is rejected":       {submitted: "42\n", want: domain.VerdictRejected},
		"leading whitespace is rejected":     {submitted: " 42", want: domain.VerdictRejected},
		"empty output is rejected":           {submitted: "", want: domain.VerdictRejected},
		"output with extra text is rejected": {submitted: "the answer is 42", want: domain.VerdictRejected},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, grading.Evaluate(ch, tt.submitted))
		})
	}
}

func TestEvaluate_CaseSensitive(t *testing.T) {
	t.Parallel()

	ch := domain.Challenge{ExpectedOutput: "Hello, World!"}

	assert.Equal(t, domain.VerdictAccepted, grading.Evaluate(ch, "Hello, World!"))
	assert.Equal(t, domain.VerdictRejected, grading.Evaluate(ch, "hello, world!"))
}

func TestEvaluate_IsPure(t *testing.T) {
	t.Parallel()

	ch := domain.Challenge{ExpectedOutput: "out"}

	first := grading.Evaluate(ch, "out")
	second := grading.Evaluate(ch, "out")

	assert.Equal(t, first, second, "grading the same inputs twice should yield the same verdict")
}

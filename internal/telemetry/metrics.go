package telemetry

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/victornm/codequest/internal/domain"
	"github.com/victornm/codequest/internal/event"
)

var (
	submissionsGraded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codequest_submissions_graded_total",
		Help: "Submissions graded by the pipeline, partitioned by verdict.",
	}, []string{"verdict"})

	usersRegistered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "codequest_users_registered_total",
		Help: "Users registered through the conversation flow.",
	})
)

// ObserveBus wires the prometheus collectors to the domain events.
func ObserveBus(eb *event.Bus) {
	eb.Subscribe(domain.EventNameSubmissionGraded, func(ctx context.Context, e event.Event) error {
		sub := e.(domain.EventSubmissionGraded).Submission
		submissionsGraded.WithLabelValues(string(sub.Verdict)).Inc()
		return nil
	})

	eb.Subscribe(domain.EventNameUserRegistered, func(ctx context.Context, e event.Event) error {
		usersRegistered.Inc()
		return nil
	})
}

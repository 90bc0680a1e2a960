package domain

const (
	EventNameSubmissionGraded = "submission.graded"
	EventNameUserRegistered   = "user.registered"
)

type EventSubmissionGraded struct {
	Submission Submission
}

func (EventSubmissionGraded) Name() string { return EventNameSubmissionGraded }

type EventUserRegistered struct {
	UserID   int64
	Username string
}

func (EventUserRegistered) Name() string { return EventNameUserRegistered }

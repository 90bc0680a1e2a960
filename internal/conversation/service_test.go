package conversation_test

import (
	"context"
	stderrors "errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/victornm/codequest/internal/challenge"
	"github.com/victornm/codequest/internal/conversation"
	"github.com/victornm/codequest/internal/domain"
	"github.com/victornm/codequest/internal/errors"
	"github.com/victornm/codequest/internal/event"
	"github.com/victornm/codequest/internal/leaderboard"
	"github.com/victornm/codequest/internal/storage/memory"
	"github.com/victornm/codequest/internal/submission"
)

const userID = int64(12345)

func TestService_RegistrationFlowReplaysSubmission(t *testing.T) {
	t.Parallel()

	f := makeFixture(t)
	f.seedChallenge(t, 10, "42")

	// Unregistered user submits: the submission is parked and the dialogue
	// starts.
	replies := f.send(t, userID, "/submit 1 42")
	require.Equal(t, []string{"You are not registered! Please enter your email:"}, replies)

	replies = f.send(t, userID, "a@b.com")
	require.Equal(t, []string{"Enter your desired username:"}, replies)

	replies = f.send(t, userID, "alice")
	require.Equal(t, []string{"Enter your password:"}, replies)

	replies = f.send(t, userID, "secret")
	require.Equal(t, []string{
		"Registration successful! Verifying your account...",
		"You are now registered!",
		"Submitting your solution...",
		"Submission accepted! Your score for challenge 1 is now 10.",
	}, replies)

	// The account service saw the collected fields plus the platform id.
	require.Equal(t, registerCall{
		platformID: userID,
		username:   "alice",
		email:      "a@b.com",
		password:   "secret",
	}, f.accounts.lastRegister)

	// Exactly one ledger record: the replayed original submission.
	history, err := f.pipeline.History(context.Background(), submission.HistoryRequest{UserID: userID})
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, domain.VerdictAccepted, history[0].Verdict)
	require.Equal(t, "42", history[0].SubmittedOutput)

	// Back to idle: the next submission goes straight through.
	replies = f.send(t, userID, "/submit 1 wrong")
	require.Equal(t, []string{"Wrong answer! Try again."}, replies)
}

func TestService_RegisteredUserSubmitsDirectly(t *testing.T) {
	t.Parallel()

	f := makeFixture(t)
	f.seedChallenge(t, 10, "42")
	f.accounts.markRegistered(userID)

	replies := f.send(t, userID, "/submit 1 42")
	require.Equal(t, []string{"Submission accepted! Your score for challenge 1 is now 10."}, replies)

	replies = f.send(t, userID, "/submit 1 43")
	require.Equal(t, []string{"Wrong answer! Try again."}, replies)
}

func TestService_MalformedSubmitLeavesStateUnchanged(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"missing output":      "/submit 1",
		"missing both":        "/submit",
		"non-numeric id":      "/submit abc 42",
		"trailing space only": "/submit 1 ",
	}

	for name, text := range tests {
		text := text
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			f := makeFixture(t)
			f.seedChallenge(t, 10, "42")

			replies := f.send(t, userID, text)
			require.Equal(t, []string{"Invalid format! Use /submit <challenge_id> <output>."}, replies)

			// Still idle: free text gets the help text, not an email prompt.
			replies = f.send(t, userID, "hello")
			require.Contains(t, replies[0], "Available commands")
		})
	}
}

func TestService_QueriesDoNotDisturbTheDialogue(t *testing.T) {
	t.Parallel()

	f := makeFixture(t)
	f.seedChallenge(t, 10, "42")

	f.send(t, userID, "/submit 1 42")

	// A read-only query mid-dialogue answers without cancelling it.
	replies := f.send(t, userID, "/leaderboard 1")
	require.Contains(t, replies[0], "No accepted submissions for challenge 1 yet")

	replies = f.send(t, userID, "/challenges")
	require.Contains(t, replies[0], "Available challenges")

	// The dialogue resumes where it left off.
	replies = f.send(t, userID, "a@b.com")
	require.Equal(t, []string{"Enter your desired username:"}, replies)
}

func TestService_LeaderboardUsage(t *testing.T) {
	t.Parallel()

	f := makeFixture(t)

	for _, text := range []string{"/leaderboard", "/leaderboard abc"} {
		replies := f.send(t, userID, text)
		require.Equal(t, []string{"Use /leaderboard <challenge_id>"}, replies)
	}
}

func TestService_UnrelatedCommandCancelsTheDialogue(t *testing.T) {
	t.Parallel()

	f := makeFixture(t)
	f.seedChallenge(t, 10, "42")

	f.send(t, userID, "/submit 1 42")
	f.send(t, userID, "a@b.com")

	// AwaitingUsername; an unrelated command resets the session.
	replies := f.send(t, userID, "/start")
	require.Contains(t, replies[0], "Available commands")

	// A fresh submit starts a brand-new flow with no leftover pending
	// submission and no remembered email.
	replies = f.send(t, userID, "/submit 1 42")
	require.Equal(t, []string{"You are not registered! Please enter your email:"}, replies)
}

func TestService_RegistrationRejected(t *testing.T) {
	t.Parallel()

	f := makeFixture(t)
	f.seedChallenge(t, 10, "42")
	f.accounts.registerErr = errors.New(errors.CodeFailedPrecondition,
		errors.WithMessagef("registration rejected: username already taken"))

	f.send(t, userID, "/submit 1 42")
	f.send(t, userID, "a@b.com")
	f.send(t, userID, "alice")

	replies := f.send(t, userID, "secret")
	require.Len(t, replies, 1)
	require.Contains(t, replies[0], "Registration failed")
	require.Contains(t, replies[0], "username already taken")

	// Terminal for this attempt: back to idle, pending discarded, nothing
	// reached the ledger.
	history, err := f.pipeline.History(context.Background(), submission.HistoryRequest{UserID: userID})
	require.NoError(t, err)
	require.Empty(t, history)

	replies = f.send(t, userID, "hello")
	require.Contains(t, replies[0], "Available commands")
}

func TestService_ReprobeFailureDiscardsThePendingSubmission(t *testing.T) {
	t.Parallel()

	f := makeFixture(t)
	f.seedChallenge(t, 10, "42")
	f.accounts.verifyOnRegister = false // registration lands, login stays cold

	f.send(t, userID, "/submit 1 42")
	f.send(t, userID, "a@b.com")
	f.send(t, userID, "alice")

	replies := f.send(t, userID, "secret")
	require.Equal(t, []string{
		"Registration successful! Verifying your account...",
		"Registration went through, but your account is not verified yet. Please submit again in a moment.",
	}, replies)

	// The parked submission is gone, not silently retried.
	history, err := f.pipeline.History(context.Background(), submission.HistoryRequest{UserID: userID})
	require.NoError(t, err)
	require.Empty(t, history)

	// Once the account settles, a fresh submit goes straight through.
	f.accounts.markRegistered(userID)
	replies = f.send(t, userID, "/submit 1 42")
	require.Equal(t, []string{"Submission accepted! Your score for challenge 1 is now 10."}, replies)
}

func TestService_TransientProbeFailureDoesNotStartTheDialogue(t *testing.T) {
	t.Parallel()

	f := makeFixture(t)
	f.seedChallenge(t, 10, "42")
	f.accounts.loginErr = errors.Unavailable(stderrors.New("connection refused"))

	replies := f.send(t, userID, "/submit 1 42")
	require.Equal(t, []string{"The account service is unreachable right now. Please try again."}, replies)

	// Still idle, nothing parked.
	f.accounts.loginErr = nil
	replies = f.send(t, userID, "hello")
	require.Contains(t, replies[0], "Available commands")
}

func TestService_SubmitUnknownChallenge(t *testing.T) {
	t.Parallel()

	f := makeFixture(t)
	f.accounts.markRegistered(userID)

	replies := f.send(t, userID, "/submit 99 42")
	require.Equal(t, []string{"Challenge 99 was not found."}, replies)
}

func TestService_EvictIdleSessions(t *testing.T) {
	t.Parallel()

	f := makeFixture(t)
	f.seedChallenge(t, 10, "42")

	f.send(t, userID, "/submit 1 42")
	f.send(t, userID, "a@b.com")

	require.Equal(t, 1, f.svc.EvictIdleSessions(0))

	// The evicted dialogue is gone: free text is plain idle traffic again.
	replies := f.send(t, userID, "alice")
	require.Contains(t, replies[0], "Available commands")
}

func TestService_PublishesUserRegistered(t *testing.T) {
	t.Parallel()

	eb := event.NewBus()

	var (
		mu     sync.Mutex
		events []domain.EventUserRegistered
	)
	eb.Subscribe(domain.EventNameUserRegistered, func(ctx context.Context, e event.Event) error {
		mu.Lock()
		events = append(events, e.(domain.EventUserRegistered))
		mu.Unlock()
		return nil
	})

	f := makeFixture(t, withEventBus(eb))
	f.seedChallenge(t, 10, "42")

	f.send(t, userID, "/submit 1 42")
	f.send(t, userID, "a@b.com")
	f.send(t, userID, "alice")
	f.send(t, userID, "secret")

	eb.Stop()

	require.Len(t, events, 1)
	require.Equal(t, domain.EventUserRegistered{UserID: userID, Username: "alice"}, events[0])
}

// --- fixture ---

type fixture struct {
	svc      *conversation.Service
	accounts *stubAccounts
	store    *memory.Storage
	pipeline *submission.Service
}

type options func(c *conversation.Config)

func withEventBus(eb *event.Bus) options {
	return func(c *conversation.Config) {
		c.EventBus = eb
	}
}

func makeFixture(t *testing.T, opts ...options) *fixture {
	t.Helper()

	store := memory.NewStorage()

	challenges := challenge.NewService(challenge.Config{Store: store})
	pipeline := submission.NewService(submission.Config{
		Challenges: challenges,
		Store:      store,
		EventBus:   event.NewBus(),
	})
	board := leaderboard.NewService(leaderboard.Config{Store: store})

	accounts := &stubAccounts{
		registered:       make(map[int64]bool),
		verifyOnRegister: true,
	}

	c := conversation.Config{
		Accounts:          accounts,
		Pipeline:          pipeline,
		Leaderboard:       board,
		Challenges:        challenges,
		EventBus:          event.NewBus(),
		RegistrationGrace: time.Millisecond,
		WaitFunc:          func(ctx context.Context, d time.Duration) {},
	}

	for _, opt := range opts {
		opt(&c)
	}

	return &fixture{
		svc:      conversation.NewService(c),
		accounts: accounts,
		store:    store,
		pipeline: pipeline,
	}
}

func (f *fixture) send(t *testing.T, userID int64, text string) []string {
	t.Helper()

	resp, err := f.svc.HandleMessage(context.Background(), conversation.HandleMessageRequest{
		UserID: userID,
		Text:   text,
	})
	require.NoError(t, err)

	return resp.Replies
}

func (f *fixture) seedChallenge(t *testing.T, points int64, expected string) {
	t.Helper()

	ch := &domain.Challenge{Title: "challenge", Difficulty: "easy", Points: points, ExpectedOutput: expected}
	require.NoError(t, f.store.CreateChallenge(context.Background(), ch))
}

// --- stub account service ---

type registerCall struct {
	platformID int64
	username   string
	email      string
	password   string
}

type stubAccounts struct {
	mu sync.Mutex

	registered       map[int64]bool
	verifyOnRegister bool

	loginErr     error
	registerErr  error
	lastRegister registerCall
}

func (a *stubAccounts) markRegistered(userID int64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.registered[userID] = true
}

func (a *stubAccounts) Login(_ context.Context, username, _ string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.loginErr != nil {
		return a.loginErr
	}

	id, err := strconv.ParseInt(username, 10, 64)
	if err != nil || !a.registered[id] {
		return errors.New(errors.CodeUnauthenticated,
			errors.WithMessagef("login rejected for %q", username))
	}

	return nil
}

func (a *stubAccounts) Register(_ context.Context, platformID int64, username, email, password string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.registerErr != nil {
		return a.registerErr
	}

	a.lastRegister = registerCall{
		platformID: platformID,
		username:   username,
		email:      email,
		password:   password,
	}

	if a.verifyOnRegister {
		a.registered[platformID] = true
	}

	return nil
}

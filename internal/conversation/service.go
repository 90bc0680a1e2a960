// Package conversation drives the chat dialogue in front of the grading
// pipeline: registered users submit straight through, unregistered users are
// walked through registration while their submission is parked, then the
// parked submission is replayed as if freshly sent. Replies are plain
// strings, the package knows nothing about the transport.
package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/victornm/codequest/internal/domain"
	"github.com/victornm/codequest/internal/errors"
	"github.com/victornm/codequest/internal/event"
	"github.com/victornm/codequest/internal/leaderboard"
	"github.com/victornm/codequest/internal/submission"
)

const (
	defaultRegistrationGrace = 2 * time.Second

	// probePassword is the placeholder credential for the registration
	// probe. The probe only answers "does this platform identity have an
	// account"; the account service rejects the password either way.
	probePassword = "dummy"
)

type Accounts interface {
	Login(ctx context.Context, username, password string) error
	Register(ctx context.Context, platformID int64, username, email, password string) error
}

type Pipeline interface {
	Submit(ctx context.Context, req submission.SubmitRequest) (*submission.SubmitResponse, error)
}

type Leaderboard interface {
	Rank(ctx context.Context, req leaderboard.RankRequest) ([]domain.LeaderboardEntry, error)
}

type Challenges interface {
	ListChallenges(ctx context.Context) ([]domain.Challenge, error)
}

type Config struct {
	Accounts    Accounts
	Pipeline    Pipeline
	Leaderboard Leaderboard
	Challenges  Challenges
	EventBus    *event.Bus

	// RegistrationGrace is how long a conversation suspends after a
	// successful registration before probing login again; the account
	// service settles new accounts asynchronously.
	RegistrationGrace time.Duration

	// WaitFunc suspends the current conversation, tests override it. The
	// wait scopes to one user's message; other conversations keep running.
	WaitFunc func(ctx context.Context, d time.Duration)
}

type Service struct {
	accounts    Accounts
	pipeline    Pipeline
	leaderboard Leaderboard
	challenges  Challenges
	eb          *event.Bus

	grace time.Duration
	wait  func(ctx context.Context, d time.Duration)

	sessions *registry
}

func NewService(c Config) *Service {
	s := &Service{
		accounts:    c.Accounts,
		pipeline:    c.Pipeline,
		leaderboard: c.Leaderboard,
		challenges:  c.Challenges,
		eb:          c.EventBus,
		grace:       c.RegistrationGrace,
		wait:        c.WaitFunc,
		sessions:    newRegistry(),
	}

	if s.grace <= 0 {
		s.grace = defaultRegistrationGrace
	}

	if s.wait == nil {
		s.wait = waitCtx
	}

	return s
}

type HandleMessageRequest struct {
	UserID int64
	Text   string
}

type HandleMessageResponse struct {
	Replies []string
}

// HandleMessage processes one message for one user and returns the replies
// to send back. Messages for the same user are serialized in arrival order.
func (s *Service) HandleMessage(ctx context.Context, req HandleMessageRequest) (*HandleMessageResponse, error) {
	sess := s.sessions.acquire(req.UserID)
	defer s.sessions.release(sess)

	return &HandleMessageResponse{
		Replies: s.handle(ctx, sess, req.UserID, strings.TrimSpace(req.Text)),
	}, nil
}

// EvictIdleSessions drops conversations with no activity for maxIdle,
// returning how many were dropped.
func (s *Service) EvictIdleSessions(maxIdle time.Duration) int {
	return s.sessions.evictIdle(maxIdle)
}

// handle is the transition function. The session lock is held throughout.
func (s *Service) handle(ctx context.Context, sess *session, userID int64, text string) []string {
	// Read-only queries are answered in any state and never touch it.
	switch command(text) {
	case "/challenges":
		return s.listChallenges(ctx)
	case "/leaderboard":
		return s.showLeaderboard(ctx, text)
	}

	// Any other command while mid-registration is an explicit cancellation:
	// back to idle, parked submission discarded, then the command runs
	// against the fresh session.
	if sess.state != StateIdle && isCommand(text) {
		sess.reset()
	}

	switch sess.state {
	case StateIdle:
		return s.handleIdle(ctx, sess, userID, text)

	case StateAwaitingEmail:
		sess.email = text
		sess.state = StateAwaitingUsername
		return []string{"Enter your desired username:"}

	case StateAwaitingUsername:
		sess.username = text
		sess.state = StateAwaitingPassword
		return []string{"Enter your password:"}

	case StateAwaitingPassword:
		return s.completeRegistration(ctx, sess, userID, text)

	default:
		sess.reset()
		return []string{helpText}
	}
}

func (s *Service) handleIdle(ctx context.Context, sess *session, userID int64, text string) []string {
	switch command(text) {
	case "/start":
		return []string{helpText}
	case "/submit":
		return s.handleSubmit(ctx, sess, userID, text)
	case "":
		// Free text outside a dialogue; nudge towards the commands.
		return []string{helpText}
	default:
		return []string{fmt.Sprintf("Unknown command %s.", command(text)), helpText}
	}
}

func (s *Service) handleSubmit(ctx context.Context, sess *session, userID int64, text string) []string {
	challengeID, output, ok := parseSubmit(text)
	if !ok {
		return []string{"Invalid format! Use /submit <challenge_id> <output>."}
	}

	err := s.accounts.Login(ctx, platformUsername(userID), probePassword)
	switch {
	case err == nil:
		// Registered: straight through the pipeline.
		return s.runPipeline(ctx, userID, challengeID, output)

	case errors.CodeOf(err) == errors.CodeUnavailable:
		return []string{"The account service is unreachable right now. Please try again."}

	default:
		// Unregistered: park the submission and start the dialogue.
		sess.pending = &domain.PendingAction{
			ChallengeID:     challengeID,
			SubmittedOutput: output,
		}
		sess.state = StateAwaitingEmail
		return []string{"You are not registered! Please enter your email:"}
	}
}

// completeRegistration runs the tail of the dialogue: register, suspend for
// the grace interval, re-probe login and replay the parked submission. The
// session ends up idle on every path.
func (s *Service) completeRegistration(ctx context.Context, sess *session, userID int64, password string) []string {
	err := s.accounts.Register(ctx, userID, sess.username, sess.email, password)
	if err != nil {
		sess.reset()

		if errors.CodeOf(err) == errors.CodeUnavailable {
			return []string{"The account service is unreachable right now. Registration was not completed, please try again later."}
		}

		return []string{fmt.Sprintf("Registration failed: %s. Please try again.", errors.Convert(err).Message)}
	}

	username := sess.username
	replies := []string{"Registration successful! Verifying your account..."}

	s.wait(ctx, s.grace)

	if err := s.accounts.Login(ctx, platformUsername(userID), password); err != nil {
		// The parked submission is dropped here, the user has to resubmit.
		// No further probing; one grace interval is all the flow gives the
		// account service.
		sess.reset()
		return append(replies, "Registration went through, but your account is not verified yet. Please submit again in a moment.")
	}

	s.eb.Publish(ctx, domain.EventUserRegistered{
		UserID:   userID,
		Username: username,
	})

	replies = append(replies, "You are now registered!")

	pending := sess.pending
	sess.reset()

	if pending != nil {
		replies = append(replies, "Submitting your solution...")
		replies = append(replies, s.runPipeline(ctx, userID, pending.ChallengeID, pending.SubmittedOutput)...)
	}

	return replies
}

func (s *Service) runPipeline(ctx context.Context, userID, challengeID int64, output string) []string {
	resp, err := s.pipeline.Submit(ctx, submission.SubmitRequest{
		UserID:          userID,
		ChallengeID:     challengeID,
		SubmittedOutput: output,
		SubmitTime:      time.Now(),
	})
	if err != nil {
		switch errors.CodeOf(err) {
		case errors.CodeNotFound:
			return []string{fmt.Sprintf("Challenge %d was not found.", challengeID)}
		case errors.CodeUnavailable:
			return []string{"Submission failed, please try again."}
		default:
			slog.ErrorContext(ctx, "conversation: pipeline failed", "error", err)
			return []string{"Submission failed, please try again."}
		}
	}

	if resp.Submission.Verdict == domain.VerdictAccepted {
		if resp.Entry != nil {
			return []string{fmt.Sprintf("Submission accepted! Your score for challenge %d is now %d.", challengeID, resp.Entry.Score)}
		}
		return []string{"Submission accepted!"}
	}

	return []string{"Wrong answer! Try again."}
}

func (s *Service) listChallenges(ctx context.Context) []string {
	challenges, err := s.challenges.ListChallenges(ctx)
	if err != nil {
		return []string{"Failed to fetch challenges."}
	}

	if len(challenges) == 0 {
		return []string{"No challenges available yet."}
	}

	lines := make([]string, 0, len(challenges)+1)
	lines = append(lines, "Available challenges:")
	for _, ch := range challenges {
		lines = append(lines, fmt.Sprintf("%d: %s - %s", ch.ChallengeID, ch.Title, ch.Difficulty))
	}
	lines = append(lines, "Use /submit <challenge_id> <output> to submit.")

	return []string{strings.Join(lines, "\n")}
}

func (s *Service) showLeaderboard(ctx context.Context, text string) []string {
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return []string{"Use /leaderboard <challenge_id>"}
	}

	challengeID, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return []string{"Use /leaderboard <challenge_id>"}
	}

	entries, err := s.leaderboard.Rank(ctx, leaderboard.RankRequest{ChallengeID: challengeID})
	if err != nil {
		return []string{"Failed to fetch the leaderboard."}
	}

	if len(entries) == 0 {
		return []string{fmt.Sprintf("No accepted submissions for challenge %d yet.", challengeID)}
	}

	lines := make([]string, 0, len(entries)+1)
	lines = append(lines, fmt.Sprintf("Leaderboard for challenge %d:", challengeID))
	for i, e := range entries {
		lines = append(lines, fmt.Sprintf("%d. %s: %d pts", i+1, e.Username, e.Score))
	}

	return []string{strings.Join(lines, "\n")}
}

const helpText = `Welcome to the coding platform! Available commands:
/challenges - view available coding challenges
/submit <challenge_id> <output> - submit your solution
/leaderboard <challenge_id> - view the leaderboard for a challenge
You will be asked to register on your first submission.`

func parseSubmit(text string) (challengeID int64, output string, ok bool) {
	parts := strings.SplitN(text, " ", 3)
	if len(parts) != 3 || parts[2] == "" {
		return 0, "", false
	}

	challengeID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, "", false
	}

	return challengeID, parts[2], true
}

// platformUsername renders the platform identity the way the account service
// expects it as a login name.
func platformUsername(userID int64) string {
	return strconv.FormatInt(userID, 10)
}

func isCommand(text string) bool {
	return strings.HasPrefix(text, "/")
}

// command extracts the leading /command token, "" for free text.
func command(text string) string {
	if !isCommand(text) {
		return ""
	}

	cmd, _, _ := strings.Cut(text, " ")
	return cmd
}

func waitCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Package api exposes the platform over HTTP: a small REST surface mirroring
// the services, plus the chat entry point the conversational front-end posts
// messages to.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/victornm/codequest/internal/challenge"
	"github.com/victornm/codequest/internal/conversation"
	"github.com/victornm/codequest/internal/domain"
	"github.com/victornm/codequest/internal/errors"
	"github.com/victornm/codequest/internal/leaderboard"
	"github.com/victornm/codequest/internal/submission"
)

type Config struct {
	Router       gin.IRouter
	Challenge    *challenge.Service
	Submission   *submission.Service
	Leaderboard  *leaderboard.Service
	Conversation *conversation.Service
}

type API struct {
	cs  *challenge.Service
	ss  *submission.Service
	ls  *leaderboard.Service
	cvs *conversation.Service
}

func New(c Config) *API {
	a := &API{
		cs:  c.Challenge,
		ss:  c.Submission,
		ls:  c.Leaderboard,
		cvs: c.Conversation,
	}

	v1 := c.Router.Group("/v1")
	v1.POST("/challenges", a.CreateChallenge)
	v1.GET("/challenges", a.ListChallenges)
	v1.GET("/challenges/:challengeID", a.GetChallenge)
	v1.GET("/challenges/:challengeID/leaderboard", a.GetLeaderboard)
	v1.POST("/submissions", a.Submit)
	v1.GET("/users/:userID/submissions", a.History)
	v1.POST("/messages", a.HandleMessage)

	return a
}

type Challenge struct {
	ChallengeID    int64  `json:"challenge_id"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	Difficulty     string `json:"difficulty"`
	Points         int64  `json:"points"`
	ExpectedOutput string `json:"expected_output"`
}

type CreateChallengeRequest struct {
	Title          string `json:"title"`
	Description    string `json:"description"`
	Difficulty     string `json:"difficulty"`
	Points         int64  `json:"points"`
	ExpectedOutput string `json:"expected_output"`
}

func (a *API) CreateChallenge(c *gin.Context) {
	var req CreateChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
		return
	}

	ch, err := a.cs.CreateChallenge(c.Request.Context(), challenge.CreateChallengeRequest{
		Title:          req.Title,
		Description:    req.Description,
		Difficulty:     req.Difficulty,
		Points:         req.Points,
		ExpectedOutput: req.ExpectedOutput,
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusCreated, toChallenge(*ch))
}

func (a *API) ListChallenges(c *gin.Context) {
	challenges, err := a.cs.ListChallenges(c.Request.Context())
	if err != nil {
		abort(c, err)
		return
	}

	resp := make([]Challenge, 0, len(challenges))
	for _, ch := range challenges {
		resp = append(resp, toChallenge(ch))
	}

	c.JSON(http.StatusOK, resp)
}

func (a *API) GetChallenge(c *gin.Context) {
	challengeID, ok := pathID(c, "challengeID")
	if !ok {
		return
	}

	ch, err := a.cs.GetChallenge(c.Request.Context(), challengeID)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, toChallenge(ch))
}

type LeaderboardEntry struct {
	UserID             int64     `json:"user_id"`
	Username           string    `json:"username"`
	Score              int64     `json:"score"`
	LastSubmissionTime time.Time `json:"last_submission_time"`
}

func (a *API) GetLeaderboard(c *gin.Context) {
	challengeID, ok := pathID(c, "challengeID")
	if !ok {
		return
	}

	entries, err := a.ls.Rank(c.Request.Context(), leaderboard.RankRequest{ChallengeID: challengeID})
	if err != nil {
		abort(c, err)
		return
	}

	resp := make([]LeaderboardEntry, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, LeaderboardEntry{
			UserID:             e.UserID,
			Username:           e.Username,
			Score:              e.Score,
			LastSubmissionTime: e.LastSubmissionTime,
		})
	}

	c.JSON(http.StatusOK, resp)
}

type SubmitRequest struct {
	UserID          int64  `json:"user_id"`
	ChallengeID     int64  `json:"challenge_id"`
	SubmittedOutput string `json:"submitted_output"`
}

type SubmitResponse struct {
	Submission Submission        `json:"submission"`
	Entry      *LeaderboardEntry `json:"leaderboard_entry,omitempty"`
}

type Submission struct {
	SubmissionID    string    `json:"submission_id"`
	UserID          int64     `json:"user_id"`
	ChallengeID     int64     `json:"challenge_id"`
	SubmittedOutput string    `json:"submitted_output"`
	Verdict         string    `json:"verdict"`
	SubmitTime      time.Time `json:"submit_time"`
}

func (a *API) Submit(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
		return
	}

	resp, err := a.ss.Submit(c.Request.Context(), submission.SubmitRequest{
		UserID:          req.UserID,
		ChallengeID:     req.ChallengeID,
		SubmittedOutput: req.SubmittedOutput,
		SubmitTime:      time.Now(),
	})
	if err != nil {
		abort(c, err)
		return
	}

	out := SubmitResponse{Submission: toSubmission(resp.Submission)}
	if resp.Entry != nil {
		out.Entry = &LeaderboardEntry{
			UserID:             resp.Entry.UserID,
			Username:           resp.Entry.Username,
			Score:              resp.Entry.Score,
			LastSubmissionTime: resp.Entry.LastSubmissionTime,
		}
	}

	c.JSON(http.StatusOK, out)
}

func (a *API) History(c *gin.Context) {
	userID, ok := pathID(c, "userID")
	if !ok {
		return
	}

	history, err := a.ss.History(c.Request.Context(), submission.HistoryRequest{UserID: userID})
	if err != nil {
		abort(c, err)
		return
	}

	resp := make([]Submission, 0, len(history))
	for _, sub := range history {
		resp = append(resp, toSubmission(sub))
	}

	c.JSON(http.StatusOK, resp)
}

type HandleMessageRequest struct {
	UserID int64  `json:"user_id"`
	Text   string `json:"text"`
}

type HandleMessageResponse struct {
	Replies []string `json:"replies"`
}

// HandleMessage is the chat entry point: one inbound message, the replies to
// render back to the user.
func (a *API) HandleMessage(c *gin.Context) {
	var req HandleMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
		return
	}

	resp, err := a.cvs.HandleMessage(c.Request.Context(), conversation.HandleMessageRequest{
		UserID: req.UserID,
		Text:   req.Text,
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, HandleMessageResponse{Replies: resp.Replies})
}

func toChallenge(ch domain.Challenge) Challenge {
	return Challenge{
		ChallengeID:    ch.ChallengeID,
		Title:          ch.Title,
		Description:    ch.Description,
		Difficulty:     ch.Difficulty,
		Points:         ch.Points,
		ExpectedOutput: ch.ExpectedOutput,
	}
}

func toSubmission(sub domain.Submission) Submission {
	return Submission{
		SubmissionID:    sub.SubmissionID,
		UserID:          sub.UserID,
		ChallengeID:     sub.ChallengeID,
		SubmittedOutput: sub.SubmittedOutput,
		Verdict:         string(sub.Verdict),
		SubmitTime:      sub.SubmitTime,
	}
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		abort(c, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("invalid %s: %q", name, c.Param(name))))
		return 0, false
	}

	return id, true
}

func abort(c *gin.Context, err error) {
	e := errors.Convert(err)
	c.AbortWithStatusJSON(e.HTTPStatusCode(), e)
}

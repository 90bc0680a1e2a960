// Package accounts talks to the external account service. The service owns
// user credentials and verification; this client only performs the single
// login check and registration call the platform needs.
package accounts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/victornm/codequest/internal/errors"
)

const defaultTimeout = 10 * time.Second

type Config struct {
	BaseURL string

	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

type Client struct {
	base string
	hc   *http.Client
}

func NewClient(c Config) *Client {
	hc := c.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}

	return &Client{
		base: c.BaseURL,
		hc:   hc,
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login checks the credentials against the account service. A nil return
// means the user exists and the credentials are valid. Network failures and
// 5xx responses come back as unavailable, a definitive rejection as
// unauthenticated.
func (c *Client) Login(ctx context.Context, username, password string) error {
	status, _, err := c.post(ctx, "/auth/login/", loginRequest{
		Username: username,
		Password: password,
	})
	if err != nil {
		return errors.New(errors.CodeUnavailable,
			errors.WithMessagef("account service unreachable"),
			errors.WithCause(err))
	}

	switch {
	case status == http.StatusOK:
		return nil
	case status >= 500:
		return errors.New(errors.CodeUnavailable,
			errors.WithMessagef("account service: login returned %d", status))
	default:
		return errors.New(errors.CodeUnauthenticated,
			errors.WithMessagef("login rejected for %q", username))
	}
}

type registerRequest struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates an account bound to the platform identity. Definitive
// rejections (duplicate username, invalid email, ...) are returned as
// failed-precondition with the service's reason; outages as unavailable.
func (c *Client) Register(ctx context.Context, platformID int64, username, email, password string) error {
	status, body, err := c.post(ctx, "/auth/register/", registerRequest{
		UserID:   platformID,
		Username: username,
		Email:    email,
		Password: password,
	})
	if err != nil {
		return errors.New(errors.CodeUnavailable,
			errors.WithMessagef("account service unreachable"),
			errors.WithCause(err))
	}

	switch {
	case status == http.StatusCreated || status == http.StatusOK:
		return nil
	case status >= 500:
		return errors.New(errors.CodeUnavailable,
			errors.WithMessagef("account service: register returned %d", status))
	default:
		return errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("registration rejected: %s", rejectionReason(body)))
	}
}

func (c *Client) post(ctx context.Context, path string, payload any) (status int, body []byte, err error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(b))
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err = io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}

	return resp.StatusCode, body, nil
}

func rejectionReason(body []byte) string {
	var payload struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
	}

	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Detail != "" {
			return payload.Detail
		}
		if payload.Message != "" {
			return payload.Message
		}
	}

	return "rejected by the account service"
}

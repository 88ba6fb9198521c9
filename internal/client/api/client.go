// Package api is the typed REST client for the egg-tracking backend: one
// method per logical operation, bearer-token injection from the session
// store, and a uniform 401 policy that purges the session and surfaces
// session.ErrInvalidated to the composing layer.
package api

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/eggsregaco/regaco/internal/client/models"
	"github.com/eggsregaco/regaco/internal/client/session"
	"github.com/eggsregaco/regaco/internal/common"
	"github.com/eggsregaco/regaco/internal/logging"
)

// Client talks to one backend origin. It performs no retries; retry policy
// belongs to callers, and only for idempotent reads.
type Client struct {
	http    *resty.Client
	baseURL string
	session *session.Store
	log     logging.Logger
}

func New(baseURL string, timeout time.Duration, sess *session.Store, log logging.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		session: sess,
		log:     log,
	}

	r := resty.New().
		SetBaseURL(c.baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	r.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		if tok := sess.Token(req.Context()); tok != "" {
			req.SetAuthToken(tok)
		}
		return nil
	})

	// Any 401 tears the session down, no matter which call triggered it.
	r.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		if resp.StatusCode() == 401 {
			if err := sess.Clear(resp.Request.Context()); err != nil {
				log.Warn(resp.Request.Context(), "failed to clear session", "error", err)
			}
			return session.ErrInvalidated
		}
		return nil
	})

	c.http = r
	return c
}

// check folds resty's (response, error) pair into our error taxonomy.
func (c *Client) check(resp *resty.Response, err error) error {
	if err != nil {
		if errors.Is(err, session.ErrInvalidated) {
			return err
		}
		return fmt.Errorf("%w: %v", common.ErrUnavailable, err)
	}
	if resp.IsError() {
		return parseError(resp)
	}
	return nil
}

// absURL rewrites a root-relative image path to an absolute URL against the
// backend origin.
func (c *Client) absURL(u string) string {
	if strings.HasPrefix(u, "/") {
		return c.baseURL + u
	}
	return u
}

func (c *Client) rewriteState(s *models.EggState) {
	s.LastImageURL = c.absURL(s.LastImageURL)
	s.PreviousImageURL = c.absURL(s.PreviousImageURL)
}

func (c *Client) rewriteEvent(e *models.EggEvent) {
	e.BeforeImageURL = c.absURL(e.BeforeImageURL)
	e.AfterImageURL = c.absURL(e.AfterImageURL)
}

// Session exposes the session store the client was built with.
func (c *Client) Session() *session.Store {
	return c.session
}

// Ping probes backend reachability via the authenticated /auth/me endpoint.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.http.R().SetContext(ctx).Get("/auth/me")
	return c.check(resp, err)
}

// Package lifter is a client for the results store API: paged reads
// are anonymous, writes carry a bearer token obtained from a refresh
// token.
package lifter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"liftsync/internal/config"
	"liftsync/internal/metrics"
)

var (
	ErrNotAllowed   = errors.New("not allowed")
	ErrTokenInvalid = errors.New("refresh token is not valid")
	ErrNoToken      = errors.New("no refresh token configured")
)

const maxAttempts = 5

// APIError is a non-2xx answer from the store.
type APIError struct {
	Method string
	URL    string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("lifter api error: %s %s status=%d body=%s", e.Method, e.URL, e.Status, e.Body)
}

func (e *APIError) Unwrap() error {
	if e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden {
		return ErrNotAllowed
	}
	return nil
}

type Client struct {
	endpoint   string
	baseURL    string
	refresh    string
	tokenTTL   time.Duration
	httpClient *http.Client
	limiter    *RateLimiter
	tokens     oauth2.TokenSource
	metrics    *metrics.Manager
}

func NewClient(cfg config.Config, m *metrics.Manager) *Client {
	return &Client{
		endpoint:   cfg.APIEndpoint(),
		baseURL:    cfg.APIBaseURL,
		refresh:    strings.TrimSpace(cfg.APIRefreshToken),
		tokenTTL:   time.Duration(cfg.APITokenTTLSec) * time.Second,
		httpClient: &http.Client{Timeout: time.Duration(cfg.APITimeoutMs) * time.Millisecond},
		limiter:    NewRateLimiter(cfg.APIRateLimitRPS),
		metrics:    m,
	}
}

func (c *Client) tokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	if c.refresh == "" {
		return nil, ErrNoToken
	}
	if c.tokens == nil {
		c.tokens = newTokenSource(context.WithoutCancel(ctx), c.httpClient, c.baseURL, c.refresh, c.tokenTTL)
	}
	return c.tokens, nil
}

func (c *Client) ListAthletes(ctx context.Context) ([]Athlete, error) {
	return listAll[Athlete](ctx, c, "athletes", nil)
}

// SearchAthletes asks the store for athletes matching a name.
func (c *Client) SearchAthletes(ctx context.Context, query string) ([]Athlete, error) {
	return listAll[Athlete](ctx, c, "athletes", url.Values{"search": {query}})
}

func (c *Client) ListCompetitions(ctx context.Context) ([]Competition, error) {
	return listAll[Competition](ctx, c, "competitions", nil)
}

func (c *Client) ListLifts(ctx context.Context, competitionID string) ([]Lift, error) {
	return listAll[Lift](ctx, c, "competitions/"+url.PathEscape(competitionID)+"/lifts", nil)
}

func (c *Client) CreateAthlete(ctx context.Context, athlete Athlete) (Athlete, error) {
	var out Athlete
	err := c.send(ctx, http.MethodPost, "athletes", athlete, &out)
	return out, err
}

func (c *Client) CreateCompetition(ctx context.Context, competition Competition) (Competition, error) {
	var out Competition
	err := c.send(ctx, http.MethodPost, "competitions", competition, &out)
	return out, err
}

func (c *Client) CreateLift(ctx context.Context, competitionID string, lift Lift) (Lift, error) {
	lift.Competition = competitionID
	var out Lift
	err := c.send(ctx, http.MethodPost, "competitions/"+url.PathEscape(competitionID)+"/lifts", lift, &out)
	return out, err
}

func (c *Client) DeleteAthlete(ctx context.Context, id string) error {
	return c.send(ctx, http.MethodDelete, "athletes/"+url.PathEscape(id), nil, nil)
}

func (c *Client) DeleteCompetition(ctx context.Context, id string) error {
	return c.send(ctx, http.MethodDelete, "competitions/"+url.PathEscape(id), nil, nil)
}

// listAll follows next links until the last page. A repeated link ends
// the walk.
func listAll[T any](ctx context.Context, c *Client, path string, params url.Values) ([]T, error) {
	u, err := c.url(path)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			if strings.TrimSpace(v) != "" {
				q.Add(k, v)
			}
		}
	}
	q.Set("page", "1")
	u.RawQuery = q.Encode()

	all := make([]T, 0)
	seen := map[string]struct{}{}
	next := u.String()
	for next != "" {
		if _, ok := seen[next]; ok {
			break
		}
		seen[next] = struct{}{}

		body, err := c.fetchJSON(ctx, next)
		if err != nil {
			return nil, err
		}
		var page Page[T]
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("decode %s: %w", next, err)
		}
		all = append(all, page.Results...)

		next = ""
		if page.Next != nil && *page.Next != "" && len(page.Results) > 0 {
			ref, err := url.Parse(*page.Next)
			if err != nil {
				return nil, err
			}
			next = u.ResolveReference(ref).String()
		}
	}
	return all, nil
}

func (c *Client) url(path string) (*url.URL, error) {
	return url.Parse(strings.TrimRight(c.endpoint, "/") + "/" + strings.TrimLeft(path, "/"))
}

// fetchJSON performs an anonymous GET, retrying transport errors and
// retryable statuses with jittered backoff.
func (c *Client) fetchJSON(ctx context.Context, target string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.limiter.WaitTurn(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		c.metrics.RecordRemoteRequest(http.MethodGet, resp.StatusCode)
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			apiErr := &APIError{Method: http.MethodGet, URL: target, Status: resp.StatusCode, Body: string(body)}
			if isRetryableStatus(resp.StatusCode) && attempt < maxAttempts {
				lastErr = apiErr
				if err := sleepBackoff(ctx, attempt); err != nil {
					return nil, err
				}
				continue
			}
			return nil, apiErr
		}
		return body, nil
	}

	if lastErr == nil {
		lastErr = errors.New("lifter request failed")
	}
	return nil, lastErr
}

// send performs an authorized write. Writes are not retried.
func (c *Client) send(ctx context.Context, method, path string, in, out any) error {
	tokens, err := c.tokenSource(ctx)
	if err != nil {
		return err
	}
	token, err := tokens.Token()
	if err != nil {
		return fmt.Errorf("obtain access token: %w", err)
	}
	u, err := c.url(path)
	if err != nil {
		return err
	}

	var body io.Reader
	if in != nil {
		blob, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(blob)
	}
	if err := c.limiter.WaitTurn(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return err
	}
	token.SetAuthHeader(req)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	c.metrics.RecordRemoteRequest(method, resp.StatusCode)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Method: method, URL: u.String(), Status: resp.StatusCode, Body: string(respBody)}
	}
	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	return json.Unmarshal(respBody, out)
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func sleepBackoff(ctx context.Context, attempt int) error {
	backoff := time.Duration(250*(1<<(attempt-1))+rand.Intn(100)) * time.Millisecond
	timer := time.NewTimer(backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

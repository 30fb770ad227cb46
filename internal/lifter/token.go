package lifter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// Access tokens are short lived; refresh a little before the store's
// five minute default unless configured otherwise.
const defaultTokenTTL = 4 * time.Minute

// refreshTokenSource trades the long-lived refresh token for access
// tokens at {base}/api/token/refresh/.
type refreshTokenSource struct {
	ctx        context.Context
	httpClient *http.Client
	tokenURL   string
	refresh    string
	ttl        time.Duration
}

func newTokenSource(ctx context.Context, httpClient *http.Client, baseURL, refresh string, ttl time.Duration) oauth2.TokenSource {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	src := &refreshTokenSource{
		ctx:        ctx,
		httpClient: httpClient,
		tokenURL:   strings.TrimRight(baseURL, "/") + "/api/token/refresh/",
		refresh:    refresh,
		ttl:        ttl,
	}
	return oauth2.ReuseTokenSource(nil, src)
}

func (s *refreshTokenSource) Token() (*oauth2.Token, error) {
	form := url.Values{"refresh": {s.refresh}}
	req, err := http.NewRequestWithContext(s.ctx, http.MethodPost, s.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("%w: status %d", ErrTokenInvalid, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{Method: http.MethodPost, URL: s.tokenURL, Status: resp.StatusCode, Body: string(body)}
	}

	var payload struct {
		Access string `json:"access"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}
	if payload.Access == "" {
		return nil, fmt.Errorf("%w: empty access token", ErrTokenInvalid)
	}
	return &oauth2.Token{
		AccessToken: payload.Access,
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(s.ttl),
	}, nil
}

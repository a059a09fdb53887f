// Package client is a typed Go client for the GlicoFlow HTTP API.
//
// Every method takes a context and returns either a decoded value or an
// error. Error responses come back as *APIError, which matches the
// apperror sentinels with errors.Is, so callers can write
//
//	if errors.Is(err, apperror.ErrUnauthorized) { ... }
//
// the same way they would against the services directly.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sakif/glicoflow/internal/apperror"
	"github.com/sakif/glicoflow/internal/model"
	"github.com/sakif/glicoflow/internal/repository"
	"github.com/sakif/glicoflow/internal/service"
)

// DefaultBaseURL is where a locally started server listens.
const DefaultBaseURL = "http://localhost:8080"

// maxDiagnostic bounds how much of an unparseable body ends up in an error.
const maxDiagnostic = 200

var (
	// ErrMalformedResponse means the server answered with a body that is
	// not the JSON the API promises.
	ErrMalformedResponse = errors.New("client: malformed response")
	// ErrRateLimited matches an APIError with status 429.
	ErrRateLimited = errors.New("client: rate limited")
)

// APIError is a non-2xx response with the API's error body.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d %s)", e.Message, e.Status, e.Code)
}

var codeSentinels = map[string]error{
	"validation_error":    apperror.ErrValidation,
	"duplicate_username":  apperror.ErrDuplicateUsername,
	"user_not_found":      apperror.ErrUserNotFound,
	"invalid_credentials": apperror.ErrInvalidCredentials,
	"unauthorized":        apperror.ErrUnauthorized,
	"forbidden":           apperror.ErrForbidden,
	"not_found":           apperror.ErrNotFound,
	"storage_error":       apperror.ErrStorage,
	"rate_limited":        ErrRateLimited,
}

// Is lets errors.Is match an APIError against the apperror sentinels.
func (e *APIError) Is(target error) bool {
	s, ok := codeSentinels[e.Code]
	return ok && s == target
}

// Client talks to one server. It is safe for concurrent use once built;
// SetToken is not synchronised.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
	retries    int
	backoff    time.Duration
}

type Option func(*Client)

// WithHTTPClient replaces the default http.Client (10s timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithRetries sets how many extra attempts a GET gets after a transport
// error or a 502/503/504. POSTs are never retried: a create that timed out
// may still have been stored.
func WithRetries(n int, backoff time.Duration) Option {
	return func(c *Client) {
		c.retries = n
		c.backoff = backoff
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		retries:    2,
		backoff:    200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) SetToken(token string) { c.token = token }
func (c *Client) Token() string         { return c.token }

// AuthResult is the register/login response.
type AuthResult struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

// CheckUsername reports whether username is still free.
func (c *Client) CheckUsername(ctx context.Context, username string) (bool, error) {
	var res struct {
		Available bool `json:"available"`
	}
	err := c.do(ctx, http.MethodPost, "/api/auth/check-username", nil, map[string]string{"username": username}, &res)
	return res.Available, err
}

// Register creates an account. The returned token is also installed on c.
func (c *Client) Register(ctx context.Context, username, email, password string) (*AuthResult, error) {
	body := map[string]string{"username": username, "email": email, "password": password}
	var res AuthResult
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", nil, body, &res); err != nil {
		return nil, err
	}
	c.token = res.Token
	return &res, nil
}

// Login signs in. The returned token is also installed on c.
func (c *Client) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	body := map[string]string{"username": username, "password": password}
	var res AuthResult
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", nil, body, &res); err != nil {
		return nil, err
	}
	c.token = res.Token
	return &res, nil
}

// Me returns the signed-in user.
func (c *Client) Me(ctx context.Context) (*model.User, error) {
	var res struct {
		User *model.User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, nil, &res); err != nil {
		return nil, err
	}
	return res.User, nil
}

// Logout tells the server and forgets the token locally either way.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil, nil)
	c.token = ""
	return err
}

// CreateRecord stores one reading.
func (c *Client) CreateRecord(ctx context.Context, value int, date, clock string) (*model.GlucoseRecord, error) {
	body := map[string]any{"value": value, "date": date, "time": clock}
	var rec model.GlucoseRecord
	if err := c.do(ctx, http.MethodPost, "/api/records", nil, body, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListRecords returns the caller's records, newest first.
func (c *Client) ListRecords(ctx context.Context, f repository.RecordFilter) ([]model.GlucoseRecord, error) {
	var recs []model.GlucoseRecord
	if err := c.do(ctx, http.MethodGet, "/api/records", filterQuery(f), nil, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// Stats returns the dashboard numbers.
func (c *Client) Stats(ctx context.Context, f repository.RecordFilter) (*service.RecordStats, error) {
	var st service.RecordStats
	if err := c.do(ctx, http.MethodGet, "/api/records/stats", filterQuery(f), nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Report returns the printable HTML history.
func (c *Client) Report(ctx context.Context, f repository.RecordFilter) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.do(ctx, http.MethodGet, "/api/records/report", filterQuery(f), nil, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Health reports whether the server is up and its database answers.
func (c *Client) Health(ctx context.Context) (bool, error) {
	var res struct {
		Status   string `json:"status"`
		Database bool   `json:"database"`
	}
	if err := c.do(ctx, http.MethodGet, "/health", nil, nil, &res); err != nil {
		return false, err
	}
	return res.Status == "ok" && res.Database, nil
}

func filterQuery(f repository.RecordFilter) url.Values {
	q := url.Values{}
	if f.StartDate != "" {
		q.Set("startDate", f.StartDate)
	}
	if f.EndDate != "" {
		q.Set("endDate", f.EndDate)
	}
	return q
}

// do sends one request and decodes a 2xx body into out. out may be nil,
// or a *bytes.Buffer to receive the raw body.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return fmt.Errorf("client: encoding request: %w", err)
		}
	}

	attempts := 1
	if method == http.MethodGet {
		attempts += c.retries
	}

	var (
		status int
		body   []byte
		err    error
	)
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.backoff * time.Duration(i)):
			}
		}
		status, body, err = c.send(ctx, method, u, payload)
		if !retryable(status, err) || ctx.Err() != nil {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}

	if status < 200 || status > 299 {
		return decodeAPIError(status, body)
	}

	switch o := out.(type) {
	case nil:
		return nil
	case *bytes.Buffer:
		o.Write(body)
		return nil
	default:
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("%w: status %d: %s", ErrMalformedResponse, status, truncate(body))
		}
		return nil
	}
}

func (c *Client) send(ctx context.Context, method, u string, payload []byte) (int, []byte, error) {
	var rdr io.Reader
	if payload != nil {
		rdr = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return 0, nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("reading response: %w", err)
	}
	return res.StatusCode, body, nil
}

func retryable(status int, err error) bool {
	if err != nil {
		return true
	}
	switch status {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func decodeAPIError(status int, body []byte) error {
	var e struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &e); err != nil || e.Error == "" {
		return fmt.Errorf("%w: status %d: %s", ErrMalformedResponse, status, truncate(body))
	}
	return &APIError{Status: status, Code: e.Error, Message: e.Message}
}

func truncate(b []byte) string {
	if len(b) > maxDiagnostic {
		return string(b[:maxDiagnostic]) + "..."
	}
	return string(b)
}

// Package client is the typed HTTP wrapper around the remote
// account-management API. It translates method calls into authenticated
// requests against the fixed endpoint set and hands every response back as
// a Result; non-2xx statuses are data for the caller to assert on, never Go
// errors. A Go error means the call itself failed (network, context).
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"amtest/internal/config"
	"amtest/pkg/contracts/domain"
)

const userAgent = "amtest-harness/1.0"

// Assignment-status filter values for license listings.
const (
	AssignmentStatusAssigned  = "ASSIGNED"
	AssignmentStatusAvailable = "AVAILABLE"
)

// Client issues calls against one fixed API surface. It is safe for the
// single-threaded per-test use the harness is designed for; the one shared
// resource is the pooled transport, released by Close.
type Client struct {
	baseURL      string
	apiKey       string
	customerCode string
	httpc        *http.Client
	limiter      *rate.Limiter
	maxRetries   uint64
	logger       *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithAPIKey substitutes the credential, e.g. the team-scoped key for
// cross-team negative tests.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithLogger replaces the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger.With(slog.String("component", "client")) }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpc *http.Client) Option {
	return func(c *Client) { c.httpc = httpc }
}

// New builds a client from configuration, authenticated with the
// organization-scoped credential unless WithAPIKey overrides it.
func New(cfg *config.Config, opts ...Option) *Client {
	c := &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:       cfg.CustomerAPIKey,
		customerCode: cfg.CustomerCode,
		httpc:        &http.Client{Timeout: cfg.HTTP.Timeout},
		limiter:      rate.NewLimiter(rate.Limit(cfg.HTTP.RateLimitRPS), cfg.HTTP.RateBurst),
		maxRetries:   cfg.HTTP.MaxRetries,
		logger:       slog.Default().With(slog.String("component", "client")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close releases the pooled transport. Call it once at the end of a run.
func (c *Client) Close() {
	c.httpc.CloseIdleConnections()
}

// TokenInfo returns the scope and reach of the credential in use.
// GET /token.
func (c *Client) TokenInfo(ctx context.Context) (*Result, error) {
	return c.get(ctx, "/token", nil)
}

// RotateToken invalidates the current credential and returns a replacement.
// POST /token/rotate. The client keeps using its configured key; callers
// that want to continue after a rotate must build a new client with the
// returned token.
func (c *Client) RotateToken(ctx context.Context) (*Result, error) {
	return c.post(ctx, "/token/rotate", nil, nil)
}

// LicenseFilter narrows a license listing. Zero values mean "no filter".
type LicenseFilter struct {
	AssignmentStatus string
	TeamID           int
}

// Licenses lists the organization's licenses, optionally filtered.
// GET /customer/licenses.
func (c *Client) Licenses(ctx context.Context, filter LicenseFilter) (*Result, error) {
	query := url.Values{}
	if filter.AssignmentStatus != "" {
		query.Set("assignmentStatus", filter.AssignmentStatus)
	}
	if filter.TeamID != 0 {
		query.Set("teamId", strconv.Itoa(filter.TeamID))
	}
	return c.get(ctx, "/customer/licenses", query)
}

// License fetches a single license by ID. GET /customer/licenses/{id}.
func (c *Client) License(ctx context.Context, licenseID string) (*Result, error) {
	return c.get(ctx, "/customer/licenses/"+url.PathEscape(licenseID), nil)
}

// TeamLicenses lists the licenses owned by a team.
// GET /customer/teams/{id}/licenses.
func (c *Client) TeamLicenses(ctx context.Context, teamID int) (*Result, error) {
	return c.get(ctx, fmt.Sprintf("/customer/teams/%d/licenses", teamID), nil)
}

// AssignLicense assigns a license to the request's contact.
// POST /customer/licenses/assign.
func (c *Client) AssignLicense(ctx context.Context, req domain.AssignRequest) (*Result, error) {
	return c.post(ctx, "/customer/licenses/assign", nil, req)
}

// RevokeLicense revokes a license assignment.
// POST /customer/licenses/revoke?licenseId=.
func (c *Client) RevokeLicense(ctx context.Context, licenseID string) (*Result, error) {
	query := url.Values{}
	query.Set("licenseId", licenseID)
	return c.post(ctx, "/customer/licenses/revoke", query, nil)
}

// ChangeLicensesTeam moves licenses between teams.
// POST /customer/changeLicensesTeam.
func (c *Client) ChangeLicensesTeam(ctx context.Context, req domain.ChangeTeamRequest) (*Result, error) {
	if req.LicenseIDs == nil {
		req.LicenseIDs = []string{}
	}
	return c.post(ctx, "/customer/changeLicensesTeam", nil, req)
}

// RawOption overrides parts of a PostRaw request.
type RawOption func(*rawRequest)

type rawRequest struct {
	contentType  string
	apiKey       *string
	customerCode *string
}

// WithCredential substitutes the credential header; the empty string omits
// the header entirely to simulate an unauthenticated request.
func WithCredential(key string) RawOption {
	return func(r *rawRequest) { r.apiKey = &key }
}

// WithCustomerCode substitutes the organization-code header; the empty
// string omits it.
func WithCustomerCode(code string) RawOption {
	return func(r *rawRequest) { r.customerCode = &code }
}

// WithContentType overrides the Content-Type header.
func WithContentType(contentType string) RawOption {
	return func(r *rawRequest) { r.contentType = contentType }
}

// PostRaw sends an already-serialized payload, bypassing the typed request
// models so negative tests can send intentionally malformed or
// unauthenticated bodies.
func (c *Client) PostRaw(ctx context.Context, path, body string, opts ...RawOption) (*Result, error) {
	raw := rawRequest{contentType: "application/json"}
	for _, opt := range opts {
		opt(&raw)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", raw.contentType)
	req.Header.Set("User-Agent", userAgent)

	apiKey := c.apiKey
	if raw.apiKey != nil {
		apiKey = *raw.apiKey
	}
	if apiKey != "" {
		req.Header.Set(domain.HeaderAPIKey, apiKey)
	}

	customerCode := c.customerCode
	if raw.customerCode != nil {
		customerCode = *raw.customerCode
	}
	if customerCode != "" {
		req.Header.Set(domain.HeaderCustomerCode, customerCode)
	}

	return c.doOnce(ctx, req)
}

// get issues an idempotent GET, retrying transient transport failures.
func (c *Client) get(ctx context.Context, path string, query url.Values) (*Result, error) {
	operation := func() (*Result, error) {
		req, err := c.newRequest(ctx, http.MethodGet, path, query, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		return c.doOnce(ctx, req)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries), ctx)
	return backoff.RetryWithData(operation, policy)
}

// post issues a mutating POST exactly once. Assignment is not idempotent,
// so mutating calls are never retried.
func (c *Client) post(ctx context.Context, path string, query url.Values, body any) (*Result, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, http.MethodPost, path, query, reader)
	if err != nil {
		return nil, err
	}
	return c.doOnce(ctx, req)
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set(domain.HeaderAPIKey, c.apiKey)
	req.Header.Set(domain.HeaderCustomerCode, c.customerCode)
	return req, nil
}

func (c *Client) doOnce(ctx context.Context, req *http.Request) (*Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	start := time.Now()
	resp, err := c.httpc.Do(req)
	if err != nil {
		c.logger.ErrorContext(ctx, "request failed",
			slog.String("method", req.Method),
			slog.String("path", req.URL.Path),
			slog.String("error", err.Error()),
			slog.Duration("duration", time.Since(start)),
		)
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	c.logger.DebugContext(ctx, "api call",
		slog.String("method", req.Method),
		slog.String("path", req.URL.Path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	return &Result{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		RawBody:    string(body),
	}, nil
}

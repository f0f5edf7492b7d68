// Package servicenow is a small client for the ServiceNow Table API covering
// the CMDB, audit, and user tables the ownership scan reads, plus the single
// write used to reassign a CI.
package servicenow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/ownership-cli/internal/resilience"
)

// Record is a raw Table API row. With sysparm_display_value=all reference
// and choice fields arrive as {"value", "display_value"} objects.
type Record = map[string]any

// User is the subset of a sys_user row needed for assignment.
type User struct {
	SysID    string `json:"sys_id"`
	UserName string `json:"user_name"`
	Name     string `json:"name"`
}

// Client defines the ServiceNow operations used by the ownership service.
type Client interface {
	// Ping issues a one-row read against sys_user to verify credentials.
	Ping(ctx context.Context) error
	FetchCIs(ctx context.Context, limit int) ([]Record, error)
	FetchCIAudit(ctx context.Context, limit int) ([]Record, error)
	// FetchUserAudit returns sys_user audit rows for tracked profile fields
	// within the lookback window, each tagged with audit_type.
	FetchUserAudit(ctx context.Context, lookbackDays, limit int) ([]Record, error)
	FetchUsers(ctx context.Context, limit int) ([]Record, error)
	GetCI(ctx context.Context, ciID string) (Record, error)
	// FindUser looks a user up by user_name. It returns ErrUserNotFound when
	// no row matches.
	FindUser(ctx context.Context, username string) (*User, error)
	UpdateAssignedTo(ctx context.Context, ciID, userSysID string) error
	InstanceURL() string
}

// ErrUserNotFound is returned by FindUser when the username is unknown.
var ErrUserNotFound = eris.New("servicenow: user not found")

const (
	defaultPageSize = 1000
	defaultTimeout  = 30 * time.Second
	defaultRate     = 10
)

// Option configures the httpClient.
type Option func(*httpClient)

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithPageSize sets sysparm_limit for paginated reads.
func WithPageSize(n int) Option {
	return func(c *httpClient) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithRateLimit caps outgoing requests per second. Zero or negative disables
// pacing.
func WithRateLimit(perSec float64) Option {
	return func(c *httpClient) {
		if perSec <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSec), 1)
	}
}

// WithRetryPolicy overrides the retry policy for transient failures.
func WithRetryPolicy(p resilience.Policy) Option {
	return func(c *httpClient) {
		c.retry = p
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// httpClient implements Client using net/http with basic auth.
type httpClient struct {
	instance string
	username string
	password string
	pageSize int
	http     *http.Client
	limiter  *rate.Limiter
	retry    resilience.Policy
}

// NewClient creates a client for the instance at instanceURL.
func NewClient(instanceURL, username, password string, opts ...Option) Client {
	c := &httpClient{
		instance: strings.TrimRight(instanceURL, "/"),
		username: username,
		password: password,
		pageSize: defaultPageSize,
		http: &http.Client{
			Timeout: defaultTimeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(defaultRate), 1),
		retry:   resilience.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) InstanceURL() string {
	return c.instance
}

func (c *httpClient) Ping(ctx context.Context) error {
	q := url.Values{"sysparm_limit": {"1"}, "sysparm_fields": {"sys_id"}}
	var resp listResponse
	if err := c.do(ctx, http.MethodGet, tablePath(userTable, ""), q, nil, &resp); err != nil {
		return eris.Wrap(err, "servicenow: ping")
	}
	return nil
}

func (c *httpClient) GetCI(ctx context.Context, ciID string) (Record, error) {
	q := url.Values{
		"sysparm_fields":        {strings.Join(ciLookupFields, ",")},
		"sysparm_display_value": {"all"},
	}
	var resp recordResponse
	if err := c.do(ctx, http.MethodGet, tablePath(ciTable, ciID), q, nil, &resp); err != nil {
		return nil, eris.Wrapf(err, "servicenow: get ci %s", ciID)
	}
	return resp.Result, nil
}

func (c *httpClient) FindUser(ctx context.Context, username string) (*User, error) {
	q := url.Values{
		"sysparm_query":  {"user_name=" + username},
		"sysparm_fields": {"sys_id,user_name,name"},
		"sysparm_limit":  {"1"},
	}
	var resp struct {
		Result []User `json:"result"`
	}
	if err := c.do(ctx, http.MethodGet, tablePath(userTable, ""), q, nil, &resp); err != nil {
		return nil, eris.Wrapf(err, "servicenow: find user %s", username)
	}
	if len(resp.Result) == 0 {
		return nil, eris.Wrapf(ErrUserNotFound, "servicenow: find user %s", username)
	}
	u := resp.Result[0]
	if u.Name == "" {
		u.Name = username
	}
	return &u, nil
}

func (c *httpClient) UpdateAssignedTo(ctx context.Context, ciID, userSysID string) error {
	body := map[string]string{"assigned_to": userSysID}
	if err := c.do(ctx, http.MethodPatch, tablePath(ciTable, ciID), nil, body, nil); err != nil {
		return eris.Wrapf(err, "servicenow: update assigned_to on %s", ciID)
	}
	return nil
}

type listResponse struct {
	Result []Record `json:"result"`
}

type recordResponse struct {
	Result Record `json:"result"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
	} `json:"error"`
}

func tablePath(table, sysID string) string {
	p := "/api/now/table/" + table
	if sysID != "" {
		p += "/" + url.PathEscape(sysID)
	}
	return p
}

// do sends one request with pacing and retries and decodes a JSON result
// into out when out is non-nil.
func (c *httpClient) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return eris.Wrap(err, "marshal request")
		}
	}

	u := c.instance + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	op := fmt.Sprintf("servicenow: %s %s", strings.ToLower(method), path)

	p := c.retry
	if p.OnRetry == nil {
		p.OnRetry = resilience.LogRetries("servicenow", method+" "+path)
	}

	_, err := resilience.Do(ctx, p, func(ctx context.Context) (struct{}, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return struct{}{}, eris.Wrap(err, "rate limit wait")
		}
		var rdr io.Reader
		if payload != nil {
			rdr = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, rdr)
		if err != nil {
			return struct{}{}, eris.Wrap(err, "build request")
		}
		req.SetBasicAuth(c.username, c.password)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return struct{}{}, err
		}
		defer resp.Body.Close() //nolint:errcheck

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return struct{}{}, eris.Wrap(err, "read response")
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return struct{}{}, resilience.NewStatusError(op, resp, errorMessage(data))
		}
		if out == nil || len(data) == 0 {
			return struct{}{}, nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return struct{}{}, eris.Wrap(err, "decode response")
		}
		return struct{}{}, nil
	})
	return err
}

// errorMessage extracts the Table API error message, falling back to a
// truncated body.
func errorMessage(body []byte) string {
	var er errorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Error.Message != "" {
		if er.Error.Detail != "" {
			return er.Error.Message + ": " + er.Error.Detail
		}
		return er.Error.Message
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

func itoa(n int) string { return strconv.Itoa(n) }

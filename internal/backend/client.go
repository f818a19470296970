package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lifeline/lifeline/internal/ir"
)

// DefaultTimeout bounds a single request when no http.Client is supplied.
const DefaultTimeout = 10 * time.Second

// UserAgent identifies the client to the command center.
var UserAgent = "lifeline/" + ir.ClientVersion

// maxErrorBody caps how much of a failed response is kept in StatusError.
const maxErrorBody = 4 << 10

// StatusError is returned when the backend answers with a non-2xx status.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Code)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

// Client talks to the dispatch backend over HTTP.
//
// Thread-safety: Client is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.http = &http.Client{Timeout: d}
	}
}

// NewClient creates a client for the backend at baseURL
// (for example "http://localhost:8080").
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("parse endpoint: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse endpoint: missing host in %q", baseURL)
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the normalized endpoint.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Upload posts one report to /api/sos/report. Any 2xx answer is success;
// the response body is not required.
//
// Implements engine.Uploader.
func (c *Client) Upload(ctx context.Context, rep ir.Report) error {
	_, err := c.UploadReport(ctx, rep)
	return err
}

// UploadReport posts one report and decodes the acknowledgement when the
// server sends one. A 2xx answer without a JSON body yields a zero SOSAck.
func (c *Client) UploadReport(ctx context.Context, rep ir.Report) (SOSAck, error) {
	var ack SOSAck
	if err := c.do(ctx, http.MethodPost, "/api/sos/report", nil, rep, &ack, true); err != nil {
		return SOSAck{}, fmt.Errorf("upload %s: %w", rep.OfflineID, err)
	}
	return ack, nil
}

// GetHospital fetches one hospital by id.
func (c *Client) GetHospital(ctx context.Context, id int64) (Hospital, error) {
	var h Hospital
	path := "/api/hospitals/" + strconv.FormatInt(id, 10)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &h, false); err != nil {
		return Hospital{}, fmt.Errorf("get hospital %d: %w", id, err)
	}
	return h, nil
}

// ListHospitals fetches one page of hospitals sorted by name.
// page is zero-based; a non-positive size uses 20.
func (c *Client) ListHospitals(ctx context.Context, page, size int) (Page[Hospital], error) {
	if page < 0 {
		page = 0
	}
	if size <= 0 {
		size = 20
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))
	q.Set("sortBy", "name")
	q.Set("sortDir", "ASC")

	var p Page[Hospital]
	if err := c.do(ctx, http.MethodGet, "/api/hospitals", q, nil, &p, false); err != nil {
		return Page[Hospital]{}, fmt.Errorf("list hospitals: %w", err)
	}
	if p.Content == nil {
		p.Content = []Hospital{}
	}
	return p, nil
}

// FindNearestHospital asks the backend to match and reserve a bed.
func (c *Client) FindNearestHospital(ctx context.Context, req AmbulanceRequest) (HospitalMatch, error) {
	var m HospitalMatch
	if err := c.do(ctx, http.MethodPost, "/api/ambulance/find-nearest", nil, req, &m, false); err != nil {
		return HospitalMatch{}, fmt.Errorf("find nearest hospital: %w", err)
	}
	return m, nil
}

// do performs one JSON request. When out is non-nil the body is decoded
// into it; allowEmpty accepts a 2xx answer with no body.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any, allowEmpty bool) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", UserAgent)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{
			Method: method,
			Path:   path,
			Code:   resp.StatusCode,
			Body:   strings.TrimSpace(string(msg)),
		}
	}

	if out == nil {
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		if allowEmpty {
			return nil
		}
		return fmt.Errorf("decode response: empty body")
	}
	if err := json.Unmarshal(data, out); err != nil {
		if allowEmpty {
			// Success was already decided by the status code
			return nil
		}
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

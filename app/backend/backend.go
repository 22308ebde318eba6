// Package backend implements client for the external jobs REST service.
// The service owns job records, the client wraps list, create, update and delete calls
// against the /jobs resource.
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
	"strings"
	"time"

	log "github.com/go-pkgz/lgr"
)

// maxBodySize limits how much of a backend response is read
const maxBodySize = 1024 * 1024

// ErrNotFound returned when backend responds with 404 for the requested job
var ErrNotFound = errors.New("job not found")

// Job is a tracked job application record as stored by the backend
type Job struct {
	ID       string `json:"_id,omitempty"`
	Company  string `json:"company"`
	Position string `json:"position"`
	Salary   string `json:"salary"`
	Status   string `json:"status"`
	Note     string `json:"note"`
}

// HTTPError is returned for any non-2xx backend response
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: unexpected status %d, %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// Is makes 404 responses match ErrNotFound
func (e *HTTPError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Repeater repeats failed function, implemented by go-pkgz/repeater
type Repeater interface {
	Do(ctx context.Context, fun func() error, errors ...error) (err error)
}

// Params for the backend client
type Params struct {
	BaseURL    string        // service root, e.g. http://localhost:4000
	Timeout    time.Duration // per-request timeout, 0 means no timeout
	Repeater   Repeater      // optional, retries transport errors and 5xx responses
	HTTPClient *http.Client  // optional, http.DefaultClient if nil
}

// Client talks to the jobs REST service. Safe for concurrent use.
type Client struct {
	baseURL  string
	timeout  time.Duration
	repeater Repeater
	client   *http.Client
}

// New makes backend client
func New(p Params) *Client {
	res := &Client{
		baseURL:  strings.TrimSuffix(p.BaseURL, "/"),
		timeout:  p.Timeout,
		repeater: p.Repeater,
		client:   p.HTTPClient,
	}
	if res.client == nil {
		res.client = http.DefaultClient
	}
	return res
}

// List returns all jobs, GET /jobs
func (c *Client) List(ctx context.Context) ([]Job, error) {
	jobs := []Job{}
	if err := c.call(ctx, http.MethodGet, "/jobs", nil, &jobs); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}

// Create adds a new job, POST /jobs. Returns the job as created by the backend, with ID set.
func (c *Client) Create(ctx context.Context, job Job) (Job, error) {
	job.ID = ""
	var res Job
	if err := c.call(ctx, http.MethodPost, "/jobs", job, &res); err != nil {
		return Job{}, fmt.Errorf("failed to create job for %q: %w", job.Company, err)
	}
	if res == (Job{}) { // backend responded with empty body
		return job, nil
	}
	return res, nil
}

// Update replaces job fields, PUT /jobs/{id}
func (c *Client) Update(ctx context.Context, id string, job Job) (Job, error) {
	if id == "" {
		return Job{}, errors.New("failed to update job: empty id")
	}
	job.ID = id
	var res Job
	if err := c.call(ctx, http.MethodPut, "/jobs/"+url.PathEscape(id), job, &res); err != nil {
		return Job{}, fmt.Errorf("failed to update job %s: %w", id, err)
	}
	if res == (Job{}) {
		return job, nil
	}
	if res.ID == "" {
		res.ID = id
	}
	return res, nil
}

// Delete removes job, DELETE /jobs/{id}
func (c *Client) Delete(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("failed to delete job: empty id")
	}
	if err := c.call(ctx, http.MethodDelete, "/jobs/"+url.PathEscape(id), nil, nil); err != nil {
		return fmt.Errorf("failed to delete job %s: %w", id, err)
	}
	return nil
}

func (c *Client) String() string {
	return c.baseURL
}

// call makes request with optional retries. Only transport errors and 5xx responses are repeated,
// anything else stops the repeater right away.
func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = b
	}

	if c.repeater == nil {
		return c.send(ctx, method, path, body, out)
	}

	var permanent error
	err := c.repeater.Do(ctx, func() error {
		e := c.send(ctx, method, path, body, out)
		if e != nil && !retryable(e) {
			permanent = e
			return nil
		}
		if e != nil {
			log.Printf("[DEBUG] backend call %s %s failed, %v", method, path, e)
		}
		return e
	})
	if permanent != nil {
		return permanent
	}
	return err
}

func (c *Client) send(ctx context.Context, method, path string, body []byte, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var reqBody io.Reader = http.NoBody
	if body != nil {
		reqBody = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	st := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Printf("[WARN] failed to close response body: %v", closeErr)
		}
	}()
	log.Printf("[DEBUG] %s %s%s -> %d (%v)", method, c.baseURL, path, resp.StatusCode, time.Since(st).Truncate(time.Millisecond))

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPError{Method: method, URL: c.baseURL + path, StatusCode: resp.StatusCode,
			Body: strings.TrimSpace(string(respBody))}
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// retryable reports if the error worth another attempt
func retryable(err error) bool {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.StatusCode >= 500
	}
	var ue *url.Error // transport level failure from http.Client
	return errors.As(err, &ue) && !errors.Is(err, context.Canceled)
}

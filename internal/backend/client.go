package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"mailcheck/internal/model"
	"mailcheck/internal/version"
)

const (
	DefaultTimeout = 60 * time.Second

	// ResultFileName is the name the backend gives the downloadable artifact.
	ResultFileName = "validation_results.csv"
)

// Client talks to the email-validation backend.
type Client struct {
	baseURL string
	http    *resty.Client
}

type Option func(*Client)

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.http.SetTimeout(timeout)
		}
	}
}

// WithAuthToken sends a bearer token on every request. Empty tokens are ignored.
func WithAuthToken(token string) Option {
	return func(c *Client) {
		if strings.TrimSpace(token) != "" {
			c.http.SetAuthToken(strings.TrimSpace(token))
		}
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	client := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
	}

	// No retries: a failed call must surface as a failed task, not be replayed.
	client.http = resty.New().
		SetHeader("User-Agent", "mailcheck/"+version.Value).
		SetHeader("Accept", "application/json").
		SetTimeout(DefaultTimeout)

	for _, opt := range opts {
		opt(client)
	}
	return client
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// StatusResponse is the body of GET /status/{id}.
type StatusResponse struct {
	Status   string  `json:"status"`
	Progress float64 `json:"progress"`
	Error    string  `json:"error,omitempty"`
}

type uploadResponse struct {
	TaskID string `json:"task_id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Upload posts the file as multipart form data and returns the new task id.
func (c *Client) Upload(ctx context.Context, req model.UploadRequest) (string, error) {
	resp, err := c.request(ctx).
		SetFileReader("file", req.FileName(), bytes.NewReader(req.Content())).
		SetFormData(map[string]string{
			"email_column": req.Column().FormValue(),
			"has_headers":  req.HasHeadersValue(),
		}).
		Post(c.buildURL("upload"))
	if err != nil {
		return "", transportError("upload", err)
	}
	if !resp.IsSuccess() {
		return "", rejected("upload", resp)
	}

	var out uploadResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", malformed("upload", resp, err)
	}
	taskID := strings.TrimSpace(out.TaskID)
	if taskID == "" {
		return "", malformed("upload", resp, errors.New("response has no task_id"))
	}
	return taskID, nil
}

// Status reads the current state of a task.
func (c *Client) Status(ctx context.Context, taskID string) (StatusResponse, error) {
	resp, err := c.request(ctx).
		SetPathParam("taskID", taskID).
		Get(c.buildURL("status/{taskID}"))
	if err != nil {
		return StatusResponse{}, transportError("status", err)
	}
	if !resp.IsSuccess() {
		return StatusResponse{}, rejected("status", resp)
	}

	var out StatusResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return StatusResponse{}, malformed("status", resp, err)
	}
	if strings.TrimSpace(out.Status) == "" {
		return StatusResponse{}, malformed("status", resp, errors.New("response has no status"))
	}
	return out, nil
}

// Download fetches the result artifact of a completed task.
func (c *Client) Download(ctx context.Context, taskID string) ([]byte, error) {
	resp, err := c.request(ctx).
		SetHeader("Accept", "text/csv, */*").
		SetPathParam("taskID", taskID).
		Get(c.buildURL("download/{taskID}"))
	if err != nil {
		return nil, transportError("download", err)
	}
	if !resp.IsSuccess() {
		return nil, rejected("download", resp)
	}
	return resp.Body(), nil
}

// Ping checks that the backend answers HTTP at all; any status code counts.
func (c *Client) Ping(ctx context.Context) (int, error) {
	resp, err := c.request(ctx).Get(c.baseURL + "/")
	if err != nil {
		return 0, transportError("ping", err)
	}
	return resp.StatusCode(), nil
}

// DownloadPath is the relative reference the UI links to for a finished task.
func DownloadPath(taskID string) string {
	return "/download/" + taskID
}

func (c *Client) DownloadURL(taskID string) string {
	return c.baseURL + DownloadPath(taskID)
}

func (c *Client) request(ctx context.Context) *resty.Request {
	if ctx == nil {
		ctx = context.Background()
	}
	return c.http.R().
		SetContext(ctx).
		SetHeader("X-Request-ID", uuid.NewString())
}

func (c *Client) buildURL(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "/")
	return fmt.Sprintf("%s/%s", c.baseURL, endpoint)
}

func transportError(op string, err error) error {
	return model.NewError(model.ErrTransportFailure, err.Error(), fmt.Errorf("%s request: %w", op, err))
}

func rejected(op string, resp *resty.Response) error {
	var body errorResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return malformed(op, resp, err)
	}
	msg := strings.TrimSpace(body.Error)
	if msg == "" {
		msg = fmt.Sprintf("server returned %s", resp.Status())
	}
	return model.NewError(model.ErrBackendRejected, msg, fmt.Errorf("%s: HTTP %d", op, resp.StatusCode()))
}

func malformed(op string, resp *resty.Response, cause error) error {
	log.Printf("%s: malformed response (HTTP %d): %v: %q", op, resp.StatusCode(), cause, truncate(string(resp.Body()), 200))
	return model.NewError(model.ErrMalformedResponse, model.MessageMalformedResponse, fmt.Errorf("%s: %w", op, cause))
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}

package clickup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"ticketportal/internal/domain"
)

// PageSize is fixed by the remote API: a full page carries exactly this many
// tasks, so a short page signals end-of-list.
const PageSize = 100

// Config holds remote task API configuration.
type Config struct {
	BaseURL           string
	Token             string
	Timeout           time.Duration
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	DefaultRetryAfter time.Duration
}

// Client talks to the remote task API, one paginated list at a time.
type Client struct {
	httpClient      *http.Client
	baseURL         string
	token           string
	retry           retryPolicy
	fallbackBackoff time.Duration
	logger          *slog.Logger
}

// New creates a remote task API client.
func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialBackoff == 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.MaxBackoff == 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	if cfg.DefaultRetryAfter == 0 {
		cfg.DefaultRetryAfter = 5 * time.Second
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:         cfg.BaseURL,
		token:           cfg.Token,
		fallbackBackoff: cfg.DefaultRetryAfter,
		retry: retryPolicy{
			maxAttempts:    cfg.MaxAttempts,
			initialBackoff: cfg.InitialBackoff,
			maxBackoff:     cfg.MaxBackoff,
			retryable:      isTransient,
			waitHint:       retryAfterHint,
		},
		logger: logger.With("source", "clickup"),
	}
}

// apiError is a non-2xx response. 429 and 5xx are transient; everything else is
// terminal for the page that produced it.
type apiError struct {
	status     int
	retryAfter time.Duration
}

func (e *apiError) Error() string {
	return fmt.Sprintf("unexpected status: %d", e.status)
}

func (e *apiError) transient() bool {
	return e.status == http.StatusTooManyRequests || e.status >= 500
}

func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var ae *apiError
	if errors.As(err, &ae) {
		return ae.transient()
	}
	// Network errors and request timeouts.
	return true
}

func retryAfterHint(err error) (time.Duration, bool) {
	var ae *apiError
	if errors.As(err, &ae) && ae.status == http.StatusTooManyRequests && ae.retryAfter > 0 {
		return ae.retryAfter, true
	}
	return 0, false
}

// FetchPage fetches one page of one list and normalizes it. Transient failures
// are retried internally; once retries are exhausted the error surfaces so the
// caller can decide whether to abandon the list. A terminal rejection returns an
// empty page with HasMore false instead of an error, since a broken page must
// not abort the whole multi-list run.
func (c *Client) FetchPage(ctx context.Context, listID string, page int) (domain.TaskPage, error) {
	url := fmt.Sprintf("%s/list/%s/task?archived=false&page=%d&subtasks=false&include_closed=true",
		c.baseURL, listID, page)

	var resp tasksResponse
	err := c.retry.do(ctx, func() error {
		return c.getJSON(ctx, url, &resp)
	})
	if err != nil {
		var ae *apiError
		if errors.As(err, &ae) && !ae.transient() {
			c.logger.Warn("page request rejected",
				"list", listID,
				"page", page,
				"status", ae.status,
			)
			return domain.TaskPage{}, nil
		}
		return domain.TaskPage{}, fmt.Errorf("fetch page %d of list %s: %w", page, listID, err)
	}

	tickets := make([]domain.Ticket, 0, len(resp.Tasks))
	for i := range resp.Tasks {
		tickets = append(tickets, c.Normalize(&resp.Tasks[i]))
	}

	c.logger.Debug("fetched page",
		"list", listID,
		"page", page,
		"tasks", len(tickets),
	)

	return domain.TaskPage{
		Tickets: tickets,
		HasMore: len(resp.Tasks) >= PageSize,
	}, nil
}

// GetTask fetches a single task with its attachments.
func (c *Client) GetTask(ctx context.Context, taskID string) (*domain.TaskDetail, error) {
	var task RawTask
	err := c.retry.do(ctx, func() error {
		return c.getJSON(ctx, fmt.Sprintf("%s/task/%s", c.baseURL, taskID), &task)
	})
	if err != nil {
		var ae *apiError
		if errors.As(err, &ae) && ae.status == http.StatusNotFound {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("fetch task %s: %w", taskID, err)
	}

	return &domain.TaskDetail{
		Ticket:      c.Normalize(&task),
		Attachments: normalizeAttachments(task.ID, task.Attachments),
	}, nil
}

// ListComments fetches the comments on a task.
func (c *Client) ListComments(ctx context.Context, taskID string) ([]domain.Comment, error) {
	var resp commentsResponse
	err := c.retry.do(ctx, func() error {
		return c.getJSON(ctx, fmt.Sprintf("%s/task/%s/comment", c.baseURL, taskID), &resp)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch comments for task %s: %w", taskID, err)
	}

	comments := make([]domain.Comment, 0, len(resp.Comments))
	for _, rc := range resp.Comments {
		comments = append(comments, rc.toDomain())
	}
	return comments, nil
}

// CreateComment posts a comment to a task. Not retried: the operation is not
// idempotent.
func (c *Client) CreateComment(ctx context.Context, taskID, text string) (*domain.Comment, error) {
	payload, err := json.Marshal(map[string]any{
		"comment_text": text,
		"notify_all":   true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal comment: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/task/%s/comment", c.baseURL, taskID), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var created rawComment
	if err := c.doJSON(req, &created); err != nil {
		return nil, fmt.Errorf("post comment to task %s: %w", taskID, err)
	}
	if created.Text == "" {
		created.Text = text
	}

	comment := created.toDomain()
	return &comment, nil
}

// UploadAttachment uploads a file to a task via multipart form.
func (c *Client) UploadAttachment(ctx context.Context, taskID, filename string, r io.Reader) (*domain.Attachment, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("attachment", filename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("copy attachment body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/task/%s/attachment", c.baseURL, taskID), &body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var raw RawAttachment
	if err := c.doJSON(req, &raw); err != nil {
		return nil, fmt.Errorf("upload attachment to task %s: %w", taskID, err)
	}

	atts := normalizeAttachments(taskID, []RawAttachment{raw})
	return &atts[0], nil
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.doJSON(req, out)
}

func (c *Client) doJSON(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &apiError{
			status:     resp.StatusCode,
			retryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), c.fallbackBackoff),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// parseRetryAfter reads a Retry-After header in seconds, falling back to a
// fixed default when absent or malformed.
func parseRetryAfter(header string, fallback time.Duration) time.Duration {
	if header == "" {
		return fallback
	}
	secs, err := strconv.Atoi(header)
	if err != nil || secs <= 0 {
		return fallback
	}
	return time.Duration(secs) * time.Second
}

func (rc rawComment) toDomain() domain.Comment {
	comment := domain.Comment{
		ID:     rc.ID,
		Text:   rc.Text,
		Author: rc.User.Username,
		Email:  canonicalEmail(rc.User.Email),
	}
	if ms, err := rc.Date.Int64(); err == nil {
		comment.PostedAt = time.UnixMilli(ms).UTC()
	}
	return comment
}

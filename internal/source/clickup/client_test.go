package clickup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketportal/internal/domain"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return New(Config{
		BaseURL:           baseURL,
		Token:             "test-token",
		MaxAttempts:       3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		DefaultRetryAfter: time.Millisecond,
	}, logger)
}

func writeTasks(t *testing.T, w http.ResponseWriter, count int, prefix string) {
	t.Helper()
	tasks := make([]RawTask, count)
	for i := range tasks {
		tasks[i] = RawTask{
			ID:          fmt.Sprintf("%s-%d", prefix, i),
			Name:        "task",
			DateCreated: "1700000000000",
			DateUpdated: "1700000000000",
		}
	}
	require.NoError(t, json.NewEncoder(w).Encode(tasksResponse{Tasks: tasks}))
}

func TestFetchPage_PaginationTermination(t *testing.T) {
	var pages []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-token", r.Header.Get("Authorization"))
		page := r.URL.Query().Get("page")
		pages = append(pages, page)
		switch page {
		case "0", "1", "2", "3":
			writeTasks(t, w, PageSize, "p"+page)
		default:
			writeTasks(t, w, 37, "p"+page)
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	total := 0
	for page := 0; ; page++ {
		result, err := c.FetchPage(context.Background(), "list1", page)
		require.NoError(t, err)
		total += len(result.Tickets)
		if !result.HasMore {
			break
		}
	}

	assert.Equal(t, 437, total)
	assert.Equal(t, []string{"0", "1", "2", "3", "4"}, pages)
}

func TestFetchPage_ExactlyFullLastPageNeedsOneMoreRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "0" {
			writeTasks(t, w, PageSize, "p0")
			return
		}
		writeTasks(t, w, 0, "p1")
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	first, err := c.FetchPage(context.Background(), "list1", 0)
	require.NoError(t, err)
	assert.True(t, first.HasMore)
	assert.Len(t, first.Tickets, PageSize)

	second, err := c.FetchPage(context.Background(), "list1", 1)
	require.NoError(t, err)
	assert.False(t, second.HasMore)
	assert.Empty(t, second.Tickets)
}

func TestFetchPage_RetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		writeTasks(t, w, 5, "p0")
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	result, err := c.FetchPage(context.Background(), "list1", 0)
	require.NoError(t, err)
	assert.Len(t, result.Tickets, 5)
	assert.False(t, result.HasMore)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchPage_RetriesServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeTasks(t, w, 1, "p0")
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	result, err := c.FetchPage(context.Background(), "list1", 0)
	require.NoError(t, err)
	assert.Len(t, result.Tickets, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchPage_TransientExhaustedReturnsError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	_, err := c.FetchPage(context.Background(), "list1", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchPage_TerminalRejectionIsNotAnError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	result, err := c.FetchPage(context.Background(), "list1", 0)
	require.NoError(t, err)
	assert.Empty(t, result.Tickets)
	assert.False(t, result.HasMore)
	assert.Equal(t, int32(1), calls.Load(), "terminal statuses must not be retried")
}

func TestGetTask_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	_, err := c.GetTask(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetTask_WithAttachments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/task/t1", r.URL.Path)
		task := RawTask{
			ID:          "t1",
			Name:        "with files",
			DateCreated: "1700000000000",
			DateUpdated: "1700000000000",
			Attachments: []RawAttachment{
				{ID: "a1", Title: "log.txt", URL: "https://files/a1", DateAdded: "1700000000000"},
			},
		}
		require.NoError(t, json.NewEncoder(w).Encode(task))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	detail, err := c.GetTask(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "t1", detail.Ticket.ID)
	require.Len(t, detail.Attachments, 1)
	assert.Equal(t, "t1", detail.Attachments[0].TicketID)
}

func TestListComments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/task/t1/comment", r.URL.Path)
		resp := commentsResponse{Comments: []rawComment{
			{ID: "c1", Text: "looking into it", Date: "1700000000000", User: commentUser{Username: "alex", Email: "Alex@Example.com"}},
		}}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	comments, err := c.ListComments(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "looking into it", comments[0].Text)
	assert.Equal(t, "alex@example.com", comments[0].Email)
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), comments[0].PostedAt)
}

func TestCreateComment_NotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	_, err := c.CreateComment(context.Background(), "t1", "hello")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCreateComment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "on it", payload["comment_text"])
		assert.Equal(t, true, payload["notify_all"])
		require.NoError(t, json.NewEncoder(w).Encode(rawComment{ID: "c9", Date: "1700000000000"}))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	comment, err := c.CreateComment(context.Background(), "t1", "on it")
	require.NoError(t, err)
	assert.Equal(t, "c9", comment.ID)
	assert.Equal(t, "on it", comment.Text, "echoed back when the API omits the text")
}

func TestUploadAttachment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("attachment")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "report.txt", header.Filename)
		require.NoError(t, json.NewEncoder(w).Encode(RawAttachment{
			ID: "a1", Title: "report.txt", URL: "https://files/a1", DateAdded: "1700000000000",
		}))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	att, err := c.UploadAttachment(context.Background(), "t1", "report.txt", strings.NewReader("contents"))
	require.NoError(t, err)
	assert.Equal(t, "a1", att.ID)
	assert.Equal(t, "t1", att.TicketID)
}

func TestRetryPolicy_StopsOnNonRetryable(t *testing.T) {
	p := retryPolicy{
		maxAttempts:    5,
		initialBackoff: time.Millisecond,
		maxBackoff:     time.Millisecond,
		retryable:      func(error) bool { return false },
	}

	calls := 0
	sentinel := errors.New("terminal")
	err := p.do(context.Background(), func() error {
		calls++
		return sentinel
	})

	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, calls)
}

func TestRetryPolicy_Backoff(t *testing.T) {
	p := retryPolicy{initialBackoff: time.Second, maxBackoff: 5 * time.Second}

	assert.Equal(t, time.Second, p.backoff(1))
	assert.Equal(t, 2*time.Second, p.backoff(2))
	assert.Equal(t, 4*time.Second, p.backoff(3))
	assert.Equal(t, 5*time.Second, p.backoff(4))
}

func TestParseRetryAfter(t *testing.T) {
	fallback := 5 * time.Second

	assert.Equal(t, 7*time.Second, parseRetryAfter("7", fallback))
	assert.Equal(t, fallback, parseRetryAfter("", fallback))
	assert.Equal(t, fallback, parseRetryAfter("soon", fallback))
	assert.Equal(t, fallback, parseRetryAfter("-3", fallback))
}

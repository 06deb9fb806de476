package webhook

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/fileforge/fileforge/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifierDeliversPayload(t *testing.T) {
	var mu sync.Mutex
	var received []Payload

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p Payload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		mu.Lock()
		received = append(received, p)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier := NewNotifier(Config{Workers: 1, QueueSize: 8, Timeout: 5 * time.Second}, discardLogger())

	job := domain.NewConversionJob("job-1", "user-1", "html", "pdf", "in.html", server.URL)
	require.NoError(t, job.Begin())
	require.NoError(t, job.Fail("converter unavailable"))

	notifier.Notify(context.Background(), job)
	notifier.Close()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	assert.Equal(t, "job-1", received[0].JobID)
	assert.Equal(t, domain.JobStatusFailed, received[0].Status)
	assert.Equal(t, "converter unavailable", received[0].ErrorMessage)
	require.NotNil(t, received[0].CompletedAt)
}

func TestNotifierSkipsJobsWithoutURL(t *testing.T) {
	notifier := NewNotifier(Config{Workers: 1, QueueSize: 1}, discardLogger())

	job := domain.NewConversionJob("job-1", "user-1", "html", "pdf", "in.html", "")
	notifier.Notify(context.Background(), job)
	notifier.Close()
	// Nothing to assert beyond not blocking or panicking on an empty URL.
}

func TestNotifierSwallowsEndpointFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer server.Close()

	notifier := NewNotifier(Config{Workers: 1, QueueSize: 8}, discardLogger())

	job := domain.NewConversionJob("job-1", "user-1", "html", "pdf", "in.html", server.URL)
	require.NoError(t, job.Begin())
	require.NoError(t, job.Complete("out.pdf", []byte("pdf")))

	// Must not panic or surface the failure.
	notifier.Notify(context.Background(), job)
	notifier.Close()
}

func TestNotifierDropsAfterClose(t *testing.T) {
	notifier := NewNotifier(Config{Workers: 1, QueueSize: 1}, discardLogger())
	notifier.Close()

	job := domain.NewConversionJob("job-1", "user-1", "html", "pdf", "in.html", "http://localhost:1/hook")

	// Late notifications drop silently instead of sending on the closed
	// queue.
	notifier.Notify(context.Background(), job)
	notifier.Close()
}

func TestNotifierDropsWhenQueueFull(t *testing.T) {
	blocked := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-blocked
	}))
	defer server.Close()

	notifier := NewNotifier(Config{Workers: 1, QueueSize: 1, Timeout: time.Second}, discardLogger())

	job := domain.NewConversionJob("job-1", "user-1", "html", "pdf", "in.html", server.URL)

	// First fills the worker, second fills the queue, the rest drop without
	// blocking the caller.
	for i := 0; i < 5; i++ {
		notifier.Notify(context.Background(), job)
	}

	close(blocked)
	notifier.Close()
}

package conversion

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/fileforge/fileforge/internal/convert"
	"github.com/fileforge/fileforge/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeJobRepo records every persisted state so tests can assert on the
// sequence of transitions that hit storage.
type fakeJobRepo struct {
	jobs      map[string]*domain.ConversionJob
	statusLog []string
	createErr error
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{jobs: make(map[string]*domain.ConversionJob)}
}

func (r *fakeJobRepo) Create(_ context.Context, job *domain.ConversionJob) error {
	if r.createErr != nil {
		return r.createErr
	}
	copied := *job
	r.jobs[job.JobID] = &copied
	r.statusLog = append(r.statusLog, job.Status)
	return nil
}

func (r *fakeJobRepo) Update(_ context.Context, job *domain.ConversionJob) error {
	if _, ok := r.jobs[job.JobID]; !ok {
		return domain.ErrJobNotFound
	}
	copied := *job
	r.jobs[job.JobID] = &copied
	r.statusLog = append(r.statusLog, job.Status)
	return nil
}

func (r *fakeJobRepo) GetByID(_ context.Context, jobID string) (*domain.ConversionJob, error) {
	job, ok := r.jobs[jobID]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	copied := *job
	return &copied, nil
}

type fakeQuota struct {
	checkErr      error
	recordedBytes []int64
}

func (q *fakeQuota) Check(context.Context, string) error {
	return q.checkErr
}

func (q *fakeQuota) Record(_ context.Context, _ string, bytes int64) error {
	q.recordedBytes = append(q.recordedBytes, bytes)
	return nil
}

type fakeConverter struct {
	output []byte
	err    error
	calls  int
}

func (c *fakeConverter) Convert(_ context.Context, _ []byte, _ convert.Options) ([]byte, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.output, nil
}

type fakeStore struct {
	enabled     bool
	uploadErr   error
	uploads     map[string][]byte
	downloadErr error
}

func newFakeStore(enabled bool) *fakeStore {
	return &fakeStore{enabled: enabled, uploads: make(map[string][]byte)}
}

func (s *fakeStore) Enabled() bool { return s.enabled }

func (s *fakeStore) Upload(_ context.Context, data []byte, key, _ string) (string, error) {
	if s.uploadErr != nil {
		return "", s.uploadErr
	}
	s.uploads[key] = data
	return key, nil
}

func (s *fakeStore) Download(_ context.Context, key string) ([]byte, error) {
	if s.downloadErr != nil {
		return nil, s.downloadErr
	}
	data, ok := s.uploads[key]
	if !ok {
		return nil, fmt.Errorf("no object under key %s", key)
	}
	return data, nil
}

type fakeNotifier struct {
	notified []*domain.ConversionJob
}

func (n *fakeNotifier) Notify(_ context.Context, job *domain.ConversionJob) {
	copied := *job
	n.notified = append(n.notified, &copied)
}

type fakeEvents struct {
	finished []*domain.ConversionJob
}

func (e *fakeEvents) JobFinished(_ context.Context, job *domain.ConversionJob) {
	copied := *job
	e.finished = append(e.finished, &copied)
}

type serviceFixture struct {
	service   *Service
	jobs      *fakeJobRepo
	quota     *fakeQuota
	converter *fakeConverter
	store     *fakeStore
	notifier  *fakeNotifier
	events    *fakeEvents
}

func newServiceFixture(cloudEnabled bool) *serviceFixture {
	f := &serviceFixture{
		jobs:      newFakeJobRepo(),
		quota:     &fakeQuota{},
		converter: &fakeConverter{output: []byte("converted output")},
		store:     newFakeStore(cloudEnabled),
		notifier:  &fakeNotifier{},
		events:    &fakeEvents{},
	}

	registry := convert.NewRegistry()
	registry.Register("html", "pdf", f.converter)

	f.service = NewService(Dependencies{
		Jobs:     f.jobs,
		Quota:    f.quota,
		Registry: registry,
		Store:    f.store,
		Notifier: f.notifier,
		Events:   f.events,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	return f
}

func htmlRequest() Request {
	return Request{
		SourceFormat: "HTML",
		TargetFormat: "PDF",
		FileName:     "page.html",
		Content:      base64.StdEncoding.EncodeToString([]byte("<h1>hi</h1>")),
		WebhookURL:   "https://example.com/hook",
	}
}

func TestSubmitCompletesInline(t *testing.T) {
	f := newServiceFixture(false)

	job, err := f.service.Submit(context.Background(), "user-1", htmlRequest())
	require.NoError(t, err)

	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	assert.Equal(t, "html", job.SourceFormat)
	assert.Equal(t, "pdf", job.TargetFormat)
	assert.Equal(t, "page.pdf", job.OutputFileName)
	assert.Equal(t, []byte("converted output"), job.OutputData)
	assert.Empty(t, job.StorageKey)
	require.NotNil(t, job.CompletedAt)

	// Persisted transitions: PENDING, PROCESSING, COMPLETED.
	assert.Equal(t, []string{
		domain.JobStatusPending,
		domain.JobStatusProcessing,
		domain.JobStatusCompleted,
	}, f.jobs.statusLog)

	// Usage recorded once, sized by the output.
	require.Len(t, f.quota.recordedBytes, 1)
	assert.Equal(t, int64(len("converted output")), f.quota.recordedBytes[0])

	// Webhook and event fired with the terminal state.
	require.Len(t, f.notifier.notified, 1)
	assert.Equal(t, domain.JobStatusCompleted, f.notifier.notified[0].Status)
	require.Len(t, f.events.finished, 1)
}

func TestSubmitCompletesToCloudStorage(t *testing.T) {
	f := newServiceFixture(true)

	job, err := f.service.Submit(context.Background(), "user-1", htmlRequest())
	require.NoError(t, err)

	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	assert.Nil(t, job.OutputData)

	wantKey := "users/user-1/jobs/" + job.JobID + "/page.pdf"
	assert.Equal(t, wantKey, job.StorageKey)
	assert.Equal(t, []byte("converted output"), f.store.uploads[wantKey])
}

func TestSubmitRequiresUser(t *testing.T) {
	f := newServiceFixture(false)

	_, err := f.service.Submit(context.Background(), "", htmlRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Empty(t, f.jobs.jobs)
}

func TestSubmitUnsupportedFormatPair(t *testing.T) {
	f := newServiceFixture(false)

	req := htmlRequest()
	req.TargetFormat = "docx"

	_, err := f.service.Submit(context.Background(), "user-1", req)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnsupportedConversion)

	// Rejected before any job was created or quota consulted for recording.
	assert.Empty(t, f.jobs.jobs)
	assert.Empty(t, f.quota.recordedBytes)
}

func TestSubmitQuotaExceeded(t *testing.T) {
	f := newServiceFixture(false)
	f.quota.checkErr = domain.ErrQuotaExceeded

	_, err := f.service.Submit(context.Background(), "user-1", htmlRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrQuotaExceeded)
	assert.Empty(t, f.jobs.jobs)
	assert.Zero(t, f.converter.calls)
}

func TestSubmitMalformedBase64FailsJob(t *testing.T) {
	f := newServiceFixture(false)

	req := htmlRequest()
	req.Content = "%%% not base64 %%%"

	job, err := f.service.Submit(context.Background(), "user-1", req)
	require.NoError(t, err)

	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.Contains(t, job.ErrorMessage, "invalid base64 input")
	require.NotNil(t, job.CompletedAt)
	assert.Zero(t, f.converter.calls)

	// The failure is a job outcome with its webhook, not a thrown error.
	require.Len(t, f.notifier.notified, 1)
	assert.Equal(t, domain.JobStatusFailed, f.notifier.notified[0].Status)
	assert.Empty(t, f.quota.recordedBytes)
}

func TestSubmitConverterErrorFailsJob(t *testing.T) {
	f := newServiceFixture(false)
	f.converter.err = errors.New("engine crashed on page 3")

	job, err := f.service.Submit(context.Background(), "user-1", htmlRequest())
	require.NoError(t, err)

	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.Contains(t, job.ErrorMessage, "engine crashed on page 3")
	assert.Empty(t, f.quota.recordedBytes)

	persisted := f.jobs.jobs[job.JobID]
	assert.Equal(t, domain.JobStatusFailed, persisted.Status)
}

func TestSubmitUploadErrorFailsJob(t *testing.T) {
	f := newServiceFixture(true)
	f.store.uploadErr = errors.New("bucket unreachable")

	job, err := f.service.Submit(context.Background(), "user-1", htmlRequest())
	require.NoError(t, err)

	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.Contains(t, job.ErrorMessage, "bucket unreachable")
	assert.Nil(t, job.OutputData)
	assert.Empty(t, job.StorageKey)
	assert.Empty(t, f.quota.recordedBytes)
}

func TestSubmitCanceledContextFailsJob(t *testing.T) {
	f := newServiceFixture(false)

	ctx, cancel := context.WithCancel(context.Background())
	f.converter.err = context.Canceled
	cancel()

	job, err := f.service.Submit(ctx, "user-1", htmlRequest())
	require.NoError(t, err)

	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.Contains(t, job.ErrorMessage, "conversion canceled")
	require.NotNil(t, job.CompletedAt)
}

func TestGetScopedToOwner(t *testing.T) {
	f := newServiceFixture(false)

	job, err := f.service.Submit(context.Background(), "user-1", htmlRequest())
	require.NoError(t, err)

	got, err := f.service.Get(context.Background(), "user-1", job.JobID)
	require.NoError(t, err)
	assert.Equal(t, job.JobID, got.JobID)

	// Another user's lookup is a plain not-found.
	_, err = f.service.Get(context.Background(), "user-2", job.JobID)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrJobNotFound)

	_, err = f.service.Get(context.Background(), "user-1", "missing-id")
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}

func TestDownloadInline(t *testing.T) {
	f := newServiceFixture(false)

	job, err := f.service.Submit(context.Background(), "user-1", htmlRequest())
	require.NoError(t, err)

	data, name, err := f.service.Download(context.Background(), "user-1", job.JobID)
	require.NoError(t, err)
	assert.Equal(t, []byte("converted output"), data)
	assert.Equal(t, "page.pdf", name)
}

func TestDownloadFromCloudStorage(t *testing.T) {
	f := newServiceFixture(true)

	job, err := f.service.Submit(context.Background(), "user-1", htmlRequest())
	require.NoError(t, err)

	data, name, err := f.service.Download(context.Background(), "user-1", job.JobID)
	require.NoError(t, err)
	assert.Equal(t, []byte("converted output"), data)
	assert.Equal(t, "page.pdf", name)
}

func TestDownloadFailedJob(t *testing.T) {
	f := newServiceFixture(false)
	f.converter.err = errors.New("boom")

	job, err := f.service.Submit(context.Background(), "user-1", htmlRequest())
	require.NoError(t, err)
	require.Equal(t, domain.JobStatusFailed, job.Status)

	_, _, err = f.service.Download(context.Background(), "user-1", job.JobID)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}

func TestOutputFileName(t *testing.T) {
	tests := []struct {
		input  string
		target string
		want   string
	}{
		{"page.html", "pdf", "page.pdf"},
		{"archive.tar.gz", "pdf", "archive.tar.pdf"},
		{"noextension", "pdf", "noextension.pdf"},
		{"", "pdf", "output.pdf"},
		{".hidden", "pdf", ".hidden.pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, outputFileName(tt.input, tt.target))
		})
	}
}

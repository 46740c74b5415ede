package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"slr-manager/apperr"
	"slr-manager/correlation"
	"slr-manager/models"
)

type outboxFixture struct {
	*fixture
	requests *SearchRequestService
	worker   *SearchJobWorker
	now      time.Time
	protocol *models.Protocol
	source   *models.DataSource
}

func newOutboxFixture(t *testing.T, maxRetries int) *outboxFixture {
	t.Helper()
	f := newFixture(t)
	o := &outboxFixture{
		fixture:  f,
		requests: NewSearchRequestService(f.db, f.links, maxRetries, zap.NewNop()),
		worker:   NewSearchJobWorker(f.db, f.remote, 10, zap.NewNop()),
		now:      time.Now().Truncate(time.Second),
	}
	o.worker.Now = func() time.Time { return o.now }

	o.protocol = f.protocol(t, "Q1")
	var err error
	o.source, err = f.dataSources.Create(context.Background(), o.protocol.ID, CreateDataSourceInput{Name: "ACM", URL: "https://dl.acm.org"})
	require.NoError(t, err)
	return o
}

func (o *outboxFixture) enqueue(t *testing.T) *models.SearchJob {
	t.Helper()
	job, err := o.requests.Enqueue(context.Background(), o.protocol.ID, o.source.ID, "machine learning")
	require.NoError(t, err)
	return job
}

func (o *outboxFixture) reload(t *testing.T, id uint) *models.SearchJob {
	t.Helper()
	job, err := o.requests.Get(context.Background(), id)
	require.NoError(t, err)
	return job
}

func TestSearchRequestService_Enqueue(t *testing.T) {
	o := newOutboxFixture(t, 3)
	ctx := correlation.With(context.Background(), "corr-42")

	job, err := o.requests.Enqueue(ctx, o.protocol.ID, o.source.ID, "machine learning")
	require.NoError(t, err)
	assert.Equal(t, models.SearchJobPending, job.Status)
	assert.Equal(t, "corr-42", job.CorrelationID)
	assert.Equal(t, 3, job.MaxRetries)

	generated := o.enqueue(t)
	assert.NotEmpty(t, generated.CorrelationID)

	unlinked, err := o.dataSources.Create(ctx, o.protocol.ID, CreateDataSourceInput{Name: "IEEE", URL: "https://ieeexplore.ieee.org"})
	require.NoError(t, err)
	require.NoError(t, o.dataSources.Unlink(ctx, o.protocol.ID, unlinked.ID))
	_, err = o.requests.Enqueue(ctx, o.protocol.ID, unlinked.ID, "q")
	requireKind(t, err, apperr.KindInvalidInput)

	_, err = o.requests.Enqueue(ctx, 999, o.source.ID, "q")
	requireKind(t, err, apperr.KindNotFound)
	_, err = o.requests.Enqueue(ctx, o.protocol.ID, 999, "q")
	requireKind(t, err, apperr.KindNotFound)

	_, err = o.requests.Get(ctx, 999)
	requireKind(t, err, apperr.KindNotFound)
}

func TestSearchJobWorker_CompletesJob(t *testing.T) {
	o := newOutboxFixture(t, 3)
	job := o.enqueue(t)

	n, err := o.worker.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	done := o.reload(t, job.ID)
	assert.Equal(t, models.SearchJobCompleted, done.Status)
	require.NotNil(t, done.RemoteSearchID)
	assert.EqualValues(t, 1, *done.RemoteSearchID)
	assert.Nil(t, done.LastError)
	require.Len(t, o.remote.created, 1)
	assert.Equal(t, o.protocol.ID, o.remote.created[0].ProtocolID)
	assert.Equal(t, "machine learning", o.remote.created[0].Query)

	n, err = o.worker.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "completed jobs are not picked up again")
}

func TestSearchJobWorker_RetriesWithBackoff(t *testing.T) {
	o := newOutboxFixture(t, 5)
	job := o.enqueue(t)
	o.remote.createErr = apperr.RemoteUnavailable(nil, "search service down")
	ctx := context.Background()

	_, err := o.worker.ProcessBatch(ctx)
	require.NoError(t, err)
	first := o.reload(t, job.ID)
	assert.Equal(t, models.SearchJobPending, first.Status)
	assert.Equal(t, 1, first.RetryCount)
	require.NotNil(t, first.NextRetryAt)
	assert.True(t, first.NextRetryAt.Equal(o.now.Add(time.Minute)))
	require.NotNil(t, first.LastError)

	n, err := o.worker.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "job is not due yet")

	o.now = o.now.Add(2 * time.Minute)
	n, err = o.worker.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	second := o.reload(t, job.ID)
	assert.Equal(t, 2, second.RetryCount)
	assert.True(t, second.NextRetryAt.Equal(o.now.Add(2*time.Minute)))

	o.remote.createErr = nil
	o.now = o.now.Add(3 * time.Minute)
	_, err = o.worker.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.SearchJobCompleted, o.reload(t, job.ID).Status)
}

func TestSearchJobWorker_BackoffIsCapped(t *testing.T) {
	o := newOutboxFixture(t, 1000)
	job := o.enqueue(t)
	require.NoError(t, o.db.Model(&models.SearchJob{}).Where("id = ?", job.ID).
		Update("retry_count", 70).Error)
	o.remote.createErr = apperr.RemoteUnavailable(nil, "search service down")

	_, err := o.worker.ProcessBatch(context.Background())
	require.NoError(t, err)

	reloaded := o.reload(t, job.ID)
	assert.Equal(t, models.SearchJobPending, reloaded.Status)
	require.NotNil(t, reloaded.NextRetryAt)
	assert.True(t, reloaded.NextRetryAt.Equal(o.now.Add(o.worker.MaxDelay)), "next retry %s", reloaded.NextRetryAt)

	tests := []struct {
		retries int
		want    time.Duration
	}{
		{0, time.Minute},
		{3, 8 * time.Minute},
		{8, 256 * time.Minute},
		{9, 6 * time.Hour},
		{64, 6 * time.Hour},
		{1 << 20, 6 * time.Hour},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, o.worker.backoff(tt.retries), "retries=%d", tt.retries)
	}
}

func TestSearchJobWorker_RejectedRequestFailsImmediately(t *testing.T) {
	o := newOutboxFixture(t, 5)
	job := o.enqueue(t)
	o.remote.createErr = apperr.RemoteFailed(400, "create search")

	_, err := o.worker.ProcessBatch(context.Background())
	require.NoError(t, err)

	failed := o.reload(t, job.ID)
	assert.Equal(t, models.SearchJobFailed, failed.Status)
	assert.Equal(t, 1, failed.RetryCount)
	assert.Nil(t, failed.NextRetryAt)
	require.NotNil(t, failed.LastError)
	assert.Contains(t, *failed.LastError, "status 400")
}

func TestSearchJobWorker_GivesUpAfterMaxRetries(t *testing.T) {
	o := newOutboxFixture(t, 1)
	job := o.enqueue(t)
	o.remote.createErr = apperr.RemoteUnavailable(nil, "search service down")
	ctx := context.Background()

	_, err := o.worker.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.SearchJobPending, o.reload(t, job.ID).Status)

	o.now = o.now.Add(time.Hour)
	_, err = o.worker.ProcessBatch(ctx)
	require.NoError(t, err)
	failed := o.reload(t, job.ID)
	assert.Equal(t, models.SearchJobFailed, failed.Status)
	assert.Equal(t, 2, failed.RetryCount)
}

func TestSearchJobWorker_DeletedDataSourceDropsItsJobs(t *testing.T) {
	o := newOutboxFixture(t, 3)
	ctx := context.Background()
	o.enqueue(t)
	other, err := o.dataSources.Create(ctx, o.protocol.ID, CreateDataSourceInput{Name: "IEEE", URL: "https://ieeexplore.ieee.org"})
	require.NoError(t, err)
	kept, err := o.requests.Enqueue(ctx, o.protocol.ID, other.ID, "deep learning")
	require.NoError(t, err)

	require.NoError(t, o.dataSources.Delete(ctx, o.source.ID))

	assert.Zero(t, o.count(t, &models.SearchJob{}, "data_source_id = ?", o.source.ID))
	n, err := o.worker.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, o.remote.created, 1)
	assert.Equal(t, "deep learning", o.remote.created[0].Query)
	assert.Equal(t, models.SearchJobCompleted, o.reload(t, kept.ID).Status)
}

func TestSearchJobWorker_ResetsStuckJobs(t *testing.T) {
	o := newOutboxFixture(t, 3)
	job := o.enqueue(t)
	require.NoError(t, o.db.Model(&models.SearchJob{}).Where("id = ?", job.ID).
		UpdateColumns(map[string]any{
			"status":     models.SearchJobProcessing,
			"updated_at": o.now.Add(-time.Hour),
		}).Error)

	n, err := o.worker.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, models.SearchJobCompleted, o.reload(t, job.ID).Status)
}

func TestSearchJobWorker_RespectsBatchSize(t *testing.T) {
	o := newOutboxFixture(t, 3)
	for i := 0; i < 3; i++ {
		o.enqueue(t)
	}
	o.worker.BatchSize = 2

	n, err := o.worker.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.EqualValues(t, 1, o.count(t, &models.SearchJob{}, "status = ?", models.SearchJobPending))
}

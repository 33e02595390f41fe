package jobqueue

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/MemberGate/internal/pkg/cache"
	"github.com/ManuelReschke/MemberGate/internal/pkg/imageprocessor"
	"github.com/ManuelReschke/MemberGate/internal/pkg/objectstore"
)

var queueNow = time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	client := cache.NewTestClient(t, 14)
	cache.SetClient(client)
	t.Cleanup(func() { cache.SetClient(nil) })

	q := NewQueueWithClient(client, 1)
	q.now = func() time.Time { return queueNow }
	return q
}

func TestNewQueueWithClient_Workers(t *testing.T) {
	assert.Equal(t, 5, NewQueueWithClient(nil, 5).workers)
	assert.Equal(t, 3, NewQueueWithClient(nil, 0).workers)
	assert.Equal(t, 3, NewQueueWithClient(nil, -2).workers)
	assert.Equal(t, 2*time.Minute, NewQueueWithClient(nil, 1).retryDelay(2))
}

func TestQueue_MailJobIsDelivered(t *testing.T) {
	q := newTestQueue(t)
	sent := captureMail(t)
	ctx := context.Background()

	enqueued, err := q.EnqueueMail("team@example.com", "[Contact] Hello", "<p>hi</p>")
	require.NoError(t, err)

	health, err := q.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), health.Pending)

	job, err := q.claim(ctx)
	require.NoError(t, err)
	assert.Equal(t, enqueued.ID, job.ID)
	assert.Equal(t, JobTypeSendMail, job.Type)

	health, err = q.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, Health{Active: 1}, health)

	q.run(ctx, job)
	require.Len(t, *sent, 1)
	assert.Equal(t, sentMail{"team@example.com", "[Contact] Hello", "<p>hi</p>"}, (*sent)[0])

	health, err = q.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, Health{Completed: 1}, health)

	_, err = q.load(ctx, job.ID)
	assert.Error(t, err, "completed jobs are removed")
}

func TestQueue_ThumbnailJobIsDispatched(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	store, err := objectstore.NewLocalStore(t.TempDir(), "/uploads")
	require.NoError(t, err)
	_, err = store.Put(ctx, "listings/a.png", bytes.NewReader(pngBytes(t, 64, 64)), -1, "image/png")
	require.NoError(t, err)

	prevStore, prevSave := openStore, saveThumbnail
	openStore = func() objectstore.Store { return store }
	saved := map[uint]string{}
	saveThumbnail = func(imageID uint, url string) error {
		saved[imageID] = url
		return nil
	}
	t.Cleanup(func() { openStore, saveThumbnail = prevStore, prevSave })

	_, err = q.EnqueueListingThumbnail(42, 7, "listings/a.png")
	require.NoError(t, err)
	job, err := q.claim(ctx)
	require.NoError(t, err)

	payload, err := decodePayload[ListingThumbnailJobPayload](job.Payload)
	require.NoError(t, err)
	assert.Equal(t, ListingThumbnailJobPayload{ImageID: 42, ListingID: 7, ObjectKey: "listings/a.png"}, *payload)

	q.run(ctx, job)
	assert.True(t, strings.HasPrefix(saved[42], "/uploads/listings/a_thumb."), saved[42])
	assert.Equal(t, imageprocessor.STATUS_COMPLETED, imageprocessor.GetImageStatus(42))

	health, err := q.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, Health{Completed: 1}, health)
}

func TestQueue_FailedJobWaitsForRetry(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, JobType("unknown"), map[string]interface{}{})
	require.NoError(t, err)
	job, err := q.claim(ctx)
	require.NoError(t, err)
	q.run(ctx, job)

	stored, err := q.load(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusRetrying, stored.Status)
	assert.Equal(t, 1, stored.RetryCount)
	assert.Contains(t, stored.ErrorMsg, "unknown job type")

	health, err := q.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, Health{Delayed: 1}, health)

	// not due yet
	promoted, _, err := q.maintain(ctx, queueNow.Add(30*time.Second))
	require.NoError(t, err)
	assert.Zero(t, promoted)

	promoted, _, err = q.maintain(ctx, queueNow.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, promoted)
	health, err = q.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, Health{Pending: 1}, health)
}

func TestQueue_GivesUpAfterMaxRetries(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, JobType("unknown"), nil)
	require.NoError(t, err)
	for attempt := 1; attempt <= DefaultMaxRetries; attempt++ {
		job, err := q.claim(ctx)
		require.NoError(t, err, "attempt %d", attempt)
		q.run(ctx, job)
		_, _, err = q.maintain(ctx, queueNow.Add(time.Hour))
		require.NoError(t, err)
	}

	health, err := q.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, Health{Failed: 1}, health)
}

func TestQueue_RecoversStaleActiveJobs(t *testing.T) {
	q := newTestQueue(t)
	sent := captureMail(t)
	ctx := context.Background()

	_, err := q.EnqueueMail("team@example.com", "s", "b")
	require.NoError(t, err)
	job, err := q.claim(ctx)
	require.NoError(t, err)

	// the worker died after marking the job
	job.start(queueNow)
	q.save(ctx, job)

	_, recovered, err := q.maintain(ctx, queueNow.Add(time.Minute))
	require.NoError(t, err)
	assert.Zero(t, recovered)

	_, recovered, err = q.maintain(ctx, queueNow.Add(staleAfter+time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1, recovered)

	again, err := q.claim(ctx)
	require.NoError(t, err)
	assert.Equal(t, job.ID, again.ID)
	assert.Equal(t, JobStatusPending, again.Status)
	q.run(ctx, again)
	assert.Len(t, *sent, 1)
}

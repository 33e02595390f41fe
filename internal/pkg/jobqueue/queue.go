package jobqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/MemberGate/internal/pkg/cache"
)

// Redis layout. Workers claim from the right end of the pending list.
const (
	keyPrefix  = "jobs:"
	pendingKey = keyPrefix + "pending"
	activeKey  = keyPrefix + "active"
	delayedKey = keyPrefix + "delayed"
	countsKey  = keyPrefix + "counts"

	DefaultMaxRetries = 3
	JobTTL            = 24 * time.Hour

	claimTimeout  = time.Second
	staleAfter    = 10 * time.Minute
	maintainEvery = 30 * time.Second
)

func jobKey(id string) string {
	return keyPrefix + "data:" + id
}

// Health is a snapshot of the queue for the admin audit page.
type Health struct {
	Pending   int64
	Active    int64
	Delayed   int64
	Completed int64
	Failed    int64
}

// Queue runs mail and thumbnail jobs stored in Redis.
type Queue struct {
	client     *redis.Client
	workers    int
	retryDelay func(attempt int) time.Duration
	now        func() time.Time
	stopCh     chan struct{}
	wg         sync.WaitGroup
	mu         sync.Mutex
	running    bool
}

// NewQueue creates a queue on the shared cache connection.
func NewQueue(workers int) *Queue {
	return NewQueueWithClient(cache.GetClient(), workers)
}

func NewQueueWithClient(client *redis.Client, workers int) *Queue {
	if workers <= 0 {
		workers = 3
	}
	return &Queue{
		client:  client,
		workers: workers,
		retryDelay: func(attempt int) time.Duration {
			return time.Duration(attempt) * time.Minute
		},
		now:    time.Now,
		stopCh: make(chan struct{}),
	}
}

func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return
	}
	q.running = true
	q.stopCh = make(chan struct{})

	log.Infof("[JobQueue] Starting %d workers", q.workers)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(i, q.stopCh)
	}
	q.wg.Add(1)
	go q.maintainer(q.stopCh)
}

func (q *Queue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.running {
		return
	}
	close(q.stopCh)
	q.running = false
	q.wg.Wait()
	log.Info("[JobQueue] All workers stopped")
}

func (q *Queue) worker(n int, stop <-chan struct{}) {
	defer q.wg.Done()
	ctx := context.Background()
	for {
		select {
		case <-stop:
			return
		default:
		}

		job, err := q.claim(ctx)
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			log.Errorf("[JobQueue] Worker %d could not claim a job: %v", n, err)
			select {
			case <-stop:
				return
			case <-time.After(time.Second):
			}
			continue
		}
		q.run(ctx, job)
	}
}

func (q *Queue) maintainer(stop <-chan struct{}) {
	defer q.wg.Done()
	ticker := time.NewTicker(maintainEvery)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			promoted, recovered, err := q.maintain(context.Background(), now)
			if err != nil {
				log.Errorf("[JobQueue] Maintenance failed: %v", err)
				continue
			}
			if promoted+recovered > 0 {
				log.Infof("[JobQueue] Requeued %d retries and %d stale jobs", promoted, recovered)
			}
		}
	}
}

// Enqueue stores a job and makes it available to the workers.
func (q *Queue) Enqueue(ctx context.Context, jobType JobType, payload map[string]interface{}) (*Job, error) {
	now := q.now()
	job := &Job{
		ID:         uuid.NewString(),
		Type:       jobType,
		Status:     JobStatusPending,
		Payload:    payload,
		CreatedAt:  now,
		UpdatedAt:  now,
		MaxRetries: DefaultMaxRetries,
	}
	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("encode job: %w", err)
	}

	_, err = q.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, jobKey(job.ID), data, JobTTL)
		p.LPush(ctx, pendingKey, job.ID)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", jobType, err)
	}
	log.Debugf("[JobQueue] Enqueued %s job %s", job.Type, job.ID)
	return job, nil
}

// EnqueueMail queues an HTML mail for SMTP delivery.
func (q *Queue) EnqueueMail(to, subject, body string) (*Job, error) {
	return q.Enqueue(context.Background(), JobTypeSendMail, SendMailJobPayload{To: to, Subject: subject, Body: body}.ToMap())
}

// EnqueueListingThumbnail queues the preview of an uploaded listing image.
func (q *Queue) EnqueueListingThumbnail(imageID, listingID uint, objectKey string) (*Job, error) {
	return q.Enqueue(context.Background(), JobTypeListingThumbnail, ListingThumbnailJobPayload{
		ImageID:   imageID,
		ListingID: listingID,
		ObjectKey: objectKey,
	}.ToMap())
}

// claim moves the oldest pending id to the active list and loads its job.
// It returns redis.Nil when nothing arrived within claimTimeout.
func (q *Queue) claim(ctx context.Context) (*Job, error) {
	id, err := q.client.BLMove(ctx, pendingKey, activeKey, "RIGHT", "LEFT", claimTimeout).Result()
	if err != nil {
		return nil, err
	}
	job, err := q.load(ctx, id)
	if err != nil {
		q.client.LRem(ctx, activeKey, 1, id)
		return nil, fmt.Errorf("claim %s: %w", id, err)
	}
	return job, nil
}

func (q *Queue) load(ctx context.Context, id string) (*Job, error) {
	data, err := q.client.Get(ctx, jobKey(id)).Bytes()
	if err != nil {
		return nil, err
	}
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", id, err)
	}
	return &job, nil
}

func (q *Queue) save(ctx context.Context, job *Job) {
	data, err := json.Marshal(job)
	if err != nil {
		log.Errorf("[JobQueue] Could not encode job %s: %v", job.ID, err)
		return
	}
	if err := q.client.Set(ctx, jobKey(job.ID), data, JobTTL).Err(); err != nil {
		log.Errorf("[JobQueue] Could not store job %s: %v", job.ID, err)
	}
}

// run executes a claimed job. Failures are retried with a growing delay
// until MaxRetries is reached; finished jobs only survive as a count.
func (q *Queue) run(ctx context.Context, job *Job) {
	job.start(q.now())
	q.save(ctx, job)

	err := q.dispatch(ctx, job)
	switch {
	case err == nil:
		job.complete(q.now())
		q.client.Del(ctx, jobKey(job.ID))
		q.count(ctx, JobStatusCompleted)

	default:
		now := q.now()
		job.fail(now, err.Error())
		if job.IsRetryable() {
			job.retry(now)
			q.save(ctx, job)
			due := now.Add(q.retryDelay(job.RetryCount))
			if zerr := q.client.ZAdd(ctx, delayedKey, redis.Z{Score: float64(due.Unix()), Member: job.ID}).Err(); zerr != nil {
				log.Errorf("[JobQueue] Could not schedule retry of %s: %v", job.ID, zerr)
			}
			log.Warnf("[JobQueue] %s job %s failed (attempt %d/%d): %v", job.Type, job.ID, job.RetryCount, job.MaxRetries, err)
		} else {
			q.save(ctx, job)
			q.count(ctx, JobStatusFailed)
			log.Errorf("[JobQueue] %s job %s gave up after %d attempts: %v", job.Type, job.ID, job.RetryCount, err)
		}
	}

	if err := q.client.LRem(ctx, activeKey, 1, job.ID).Err(); err != nil {
		log.Errorf("[JobQueue] Could not release job %s: %v", job.ID, err)
	}
}

func (q *Queue) dispatch(ctx context.Context, job *Job) error {
	switch job.Type {
	case JobTypeSendMail:
		return q.processSendMailJob(job)
	case JobTypeListingThumbnail:
		return q.processListingThumbnailJob(ctx, job)
	}
	return fmt.Errorf("unknown job type: %s", job.Type)
}

func (q *Queue) count(ctx context.Context, status JobStatus) {
	if err := q.client.HIncrBy(ctx, countsKey, string(status), 1).Err(); err != nil {
		log.Errorf("[JobQueue] Could not count %s job: %v", status, err)
	}
}

// maintain requeues retries that are due and active jobs whose worker
// disappeared more than staleAfter ago.
func (q *Queue) maintain(ctx context.Context, now time.Time) (promoted, recovered int, err error) {
	due, err := q.client.ZRangeByScore(ctx, delayedKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.Unix(), 10),
	}).Result()
	if err != nil {
		return 0, 0, err
	}
	for _, id := range due {
		// only the caller that removes the entry requeues it
		if removed, _ := q.client.ZRem(ctx, delayedKey, id).Result(); removed == 1 {
			q.client.LPush(ctx, pendingKey, id)
			promoted++
		}
	}

	active, err := q.client.LRange(ctx, activeKey, 0, -1).Result()
	if err != nil {
		return promoted, 0, err
	}
	for _, id := range active {
		job, lerr := q.load(ctx, id)
		if lerr != nil {
			q.client.LRem(ctx, activeKey, 1, id)
			continue
		}
		if job.Status != JobStatusProcessing || job.ProcessedAt == nil || now.Sub(*job.ProcessedAt) < staleAfter {
			continue
		}
		job.Status = JobStatusPending
		job.ErrorMsg = "worker lost"
		job.UpdatedAt = now
		q.save(ctx, job)
		q.client.LRem(ctx, activeKey, 1, id)
		q.client.RPush(ctx, pendingKey, id)
		recovered++
	}
	return promoted, recovered, nil
}

// Health reads the queue lengths and the finished job counts.
func (q *Queue) Health(ctx context.Context) (Health, error) {
	pipe := q.client.Pipeline()
	pending := pipe.LLen(ctx, pendingKey)
	active := pipe.LLen(ctx, activeKey)
	delayed := pipe.ZCard(ctx, delayedKey)
	counts := pipe.HGetAll(ctx, countsKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return Health{}, err
	}

	h := Health{Pending: pending.Val(), Active: active.Val(), Delayed: delayed.Val()}
	h.Completed, _ = strconv.ParseInt(counts.Val()[string(JobStatusCompleted)], 10, 64)
	h.Failed, _ = strconv.ParseInt(counts.Val()[string(JobStatusFailed)], 10, 64)
	return h, nil
}

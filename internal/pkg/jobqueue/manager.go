package jobqueue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/MemberGate/internal/pkg/env"
	"github.com/ManuelReschke/MemberGate/internal/pkg/ledger"
	metrics "github.com/ManuelReschke/MemberGate/internal/pkg/metrics/counter"
)

const (
	LastAuditKey         = "ledger:audit:last"
	defaultAuditInterval = 15 * time.Minute
	counterFlushInterval = 5 * time.Second
)

// Auditor compares the referral counters with their member lists.
type Auditor interface {
	Audit(ctx context.Context) ([]ledger.Drift, error)
}

// AuditReport is the outcome of the last ledger audit.
type AuditReport struct {
	CheckedAt time.Time      `json:"checked_at"`
	Drifts    []ledger.Drift `json:"drifts"`
}

// Manager manages the global job queue and background tasks
type Manager struct {
	queue              *Queue
	auditor            Auditor
	auditInterval      time.Duration
	counterFlushTicker *time.Ticker
	auditTicker        *time.Ticker
	stopCh             chan struct{}
	wg                 sync.WaitGroup
	mu                 sync.Mutex
	running            bool
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// GetManager returns the global job queue manager (singleton)
func GetManager() *Manager {
	managerOnce.Do(func() {
		globalManager = &Manager{
			queue:         NewQueue(env.GetEnvInt("JOB_QUEUE_WORKERS", 3)),
			auditInterval: env.GetEnvDuration("LEDGER_AUDIT_INTERVAL", defaultAuditInterval),
			stopCh:        make(chan struct{}),
		}
	})
	return globalManager
}

// GetQueue returns the managed job queue
func (m *Manager) GetQueue() *Queue {
	return m.queue
}

// SetAuditor enables the periodic ledger audit. Must be called before Start.
func (m *Manager) SetAuditor(a Auditor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.auditor = a
}

// Start starts the job queue and background tasks
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel for each start cycle so manager can be restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[JobQueue Manager] Starting job queue and background tasks")

	m.queue.Start()

	m.counterFlushTicker = time.NewTicker(counterFlushInterval)
	m.wg.Add(1)
	go m.counterFlushWorker(m.stopCh)

	if m.auditor != nil && m.auditInterval > 0 {
		m.auditTicker = time.NewTicker(m.auditInterval)
		m.wg.Add(1)
		go m.auditWorker(m.stopCh)
	}

	log.Info("[JobQueue Manager] Started successfully")
}

// Stop stops the job queue and background tasks
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[JobQueue Manager] Stopping job queue and background tasks...")

	if m.counterFlushTicker != nil {
		m.counterFlushTicker.Stop()
	}
	if m.auditTicker != nil {
		m.auditTicker.Stop()
	}

	close(m.stopCh)
	m.running = false
	m.wg.Wait()

	m.queue.Stop()

	// Flush whatever the last ticks did not catch
	if err := metrics.FlushAll(); err != nil {
		log.Errorf("[JobQueue Manager] Final counter flush error: %v", err)
	}

	log.Info("[JobQueue Manager] Stopped successfully")
}

// counterFlushWorker periodically flushes view counters from Redis to DB
func (m *Manager) counterFlushWorker(stop <-chan struct{}) {
	defer m.wg.Done()
	for {
		select {
		case <-stop:
			log.Info("[JobQueue Manager] Counter flush worker stopping")
			return
		case <-m.counterFlushTicker.C:
			if err := metrics.FlushAll(); err != nil {
				log.Errorf("[JobQueue Manager] Counter flush error: %v", err)
			}
		}
	}
}

func (m *Manager) auditWorker(stop <-chan struct{}) {
	defer m.wg.Done()
	log.Infof("[JobQueue Manager] Started ledger audit worker (interval: %s)", m.auditInterval)
	for {
		select {
		case <-stop:
			log.Info("[JobQueue Manager] Ledger audit worker stopping")
			return
		case <-m.auditTicker.C:
			if _, err := m.RunAuditOnce(context.Background()); err != nil {
				log.Errorf("[JobQueue Manager] Ledger audit error: %v", err)
			}
		}
	}
}

// RunAuditOnce audits the ledger now and stores the report for the admin page.
func (m *Manager) RunAuditOnce(ctx context.Context) (*AuditReport, error) {
	m.mu.Lock()
	auditor := m.auditor
	m.mu.Unlock()
	if auditor == nil {
		return nil, errors.New("no ledger auditor configured")
	}

	drifts, err := auditor.Audit(ctx)
	if err != nil {
		return nil, err
	}
	report := &AuditReport{CheckedAt: time.Now().UTC(), Drifts: drifts}
	for _, d := range drifts {
		log.Errorf("[Ledger] %s: %s=%d but %s has %d entries", d.Code, d.List.Counter(), d.Counter, d.List, d.Members)
	}

	data, err := json.Marshal(report)
	if err != nil {
		return report, err
	}
	if err := m.queue.client.Set(ctx, LastAuditKey, data, 0).Err(); err != nil {
		log.Warnf("[JobQueue Manager] Could not store audit report: %v", err)
	}
	return report, nil
}

// LastAudit returns the stored report, or nil when no audit ran yet.
func (m *Manager) LastAudit(ctx context.Context) (*AuditReport, error) {
	data, err := m.queue.client.Get(ctx, LastAuditKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var report AuditReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// QueueHealth reports the job queue next to the ledger audit.
func (m *Manager) QueueHealth(ctx context.Context) (Health, error) {
	return m.queue.Health(ctx)
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// newManager builds an unmanaged instance on a given client, used by tests.
func newManager(client *redis.Client, auditor Auditor) *Manager {
	return &Manager{
		queue:         NewQueueWithClient(client, 1),
		auditor:       auditor,
		auditInterval: defaultAuditInterval,
		stopCh:        make(chan struct{}),
	}
}

package controllers

import (
	"context"
	"time"

	"github.com/ManuelReschke/MemberGate/app/repository"
	"github.com/ManuelReschke/MemberGate/internal/pkg/flow"
	"github.com/ManuelReschke/MemberGate/internal/pkg/funnel"
	"github.com/ManuelReschke/MemberGate/internal/pkg/hcaptcha"
	"github.com/ManuelReschke/MemberGate/internal/pkg/jobqueue"
	"github.com/ManuelReschke/MemberGate/internal/pkg/mux"
	"github.com/ManuelReschke/MemberGate/internal/pkg/objectstore"
	"github.com/ManuelReschke/MemberGate/internal/pkg/statistics"
)

// Jobs is the background work handed off by the page handlers.
type Jobs interface {
	EnqueueMail(to, subject, body string) (*jobqueue.Job, error)
	EnqueueListingThumbnail(imageID, listingID uint, objectKey string) (*jobqueue.Job, error)
}

// Auditor runs and reports the ledger reconciliation and the health of the
// background queue.
type Auditor interface {
	RunAuditOnce(ctx context.Context) (*jobqueue.AuditReport, error)
	LastAudit(ctx context.Context) (*jobqueue.AuditReport, error)
	QueueHealth(ctx context.Context) (jobqueue.Health, error)
}

// Services are the collaborators of the page handlers.
type Services struct {
	Funnel *funnel.Service
	Flow   *flow.Tracker
	Repos  *repository.Repositories
	// Writer is nil when the process has no write credentials.
	Writer  *repository.Repositories
	Jobs    Jobs
	Audits  Auditor
	Uploads objectstore.Store
	Videos  *mux.Signer
	Captcha *hcaptcha.Verifier
	Pages   funnel.Revalidator
	// NotifyEmail receives contact form notifications when set.
	NotifyEmail string
	Stats       func() (*statistics.FunnelStats, error)
	Now         func() time.Time
}

var services *Services

// Initialize sets the services used by every handler.
func Initialize(s *Services) {
	if s.Now == nil {
		s.Now = time.Now
	}
	if s.Stats == nil {
		s.Stats = statistics.Get
	}
	if s.Captcha == nil {
		s.Captcha = &hcaptcha.Verifier{}
	}
	services = s
	adminController = nil
}

func svc() *Services {
	if services == nil {
		panic("Controllers not initialized. Call Initialize first.")
	}
	return services
}

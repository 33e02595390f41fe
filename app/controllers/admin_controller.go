package controllers

import (
	"bytes"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/sujit-baniya/flash"
	"gorm.io/gorm"

	"github.com/ManuelReschke/MemberGate/app/models"
	"github.com/ManuelReschke/MemberGate/app/repository"
	"github.com/ManuelReschke/MemberGate/internal/pkg/funnel"
	"github.com/ManuelReschke/MemberGate/internal/pkg/jobqueue"
	"github.com/ManuelReschke/MemberGate/internal/pkg/ledger"
	"github.com/ManuelReschke/MemberGate/internal/pkg/statistics"
)

const (
	adminPath         = "/admin"
	adminReferrals    = "/admin/referrals"
	adminSettings     = "/admin/settings"
	adminComments     = "/admin/comments"
	adminAudit        = "/admin/audit"
	adminListLimit    = 50
	settingsTimeInput = "2006-01-02T15:04"
)

// AdminController handles the admin pages
type AdminController struct {
	s *Services
}

// NewAdminController creates a new admin controller
func NewAdminController(s *Services) *AdminController {
	return &AdminController{s: s}
}

// referralRow is a referral code with its ledger drift for the admin table.
type referralRow struct {
	models.ReferralCode
	Drifts []ledger.Drift
}

// HandleDashboard renders the funnel statistics and the last ledger audit
func (ac *AdminController) HandleDashboard(c *fiber.Ctx) error {
	stats, err := ac.s.Stats()
	if err != nil {
		log.Errorf("[Admin] Could not load statistics: %v", err)
		stats = &statistics.FunnelStats{}
	}
	recentUsers, err := ac.s.Repos.User.List(0, 5)
	if err != nil {
		return ac.handleError(c, "Failed to get recent users", err)
	}
	return render(c, "admin/dashboard", "Admin", fiber.Map{
		"Stats":       stats,
		"Conversion":  strconv.FormatFloat(stats.ConversionRate, 'f', 1, 64),
		"RecentUsers": recentUsers,
		"Audit":       ac.lastAudit(c),
	})
}

// HandleReferrals lists every referral code with its counters
func (ac *AdminController) HandleReferrals(c *fiber.Ctx) error {
	codes, err := ac.s.Repos.Referral.List()
	if err != nil {
		return ac.handleError(c, "Failed to get referral codes", err)
	}
	rows := make([]referralRow, 0, len(codes))
	for _, code := range codes {
		doc := code.Document()
		rows = append(rows, referralRow{ReferralCode: code, Drifts: doc.Drifts()})
	}
	return render(c, "admin/referrals", "Referral codes", fiber.Map{
		"Codes": rows,
	})
}

// HandleReferralCreate adds a new active referral code
func (ac *AdminController) HandleReferralCreate(c *fiber.Ctx) error {
	w := ac.writer(c)
	if w == nil {
		return nil
	}
	code := &models.ReferralCode{
		Code:        models.NormalizeCode(c.FormValue("code")),
		Description: strings.TrimSpace(c.FormValue("description")),
		IsActive:    true,
	}
	if code.Code == "" {
		return flashError(c, "Please enter a code", adminReferrals)
	}
	if err := w.Referral.Create(code); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return flashError(c, "The code "+code.Code+" already exists", adminReferrals)
		}
		return ac.handleError(c, "The code could not be created", err)
	}
	ac.revalidate(c, funnel.TagReferrals)
	statistics.Invalidate()
	return flashSuccess(c, "Referral code "+code.Code+" created", adminReferrals)
}

// HandleReferralToggle enables or disables a code
func (ac *AdminController) HandleReferralToggle(c *fiber.Ctx) error {
	w := ac.writer(c)
	if w == nil {
		return nil
	}
	code, err := w.Referral.GetByID(c.Params("id"))
	if err != nil {
		return ac.handleError(c, "Referral code not found", err)
	}
	if err := w.Referral.SetActive(code.ID, !code.IsActive); err != nil {
		return ac.handleError(c, "The code could not be updated", err)
	}
	ac.revalidate(c, funnel.TagReferrals)
	ac.revalidate(c, funnel.TagSignup)
	statistics.Invalidate()

	state := "enabled"
	if code.IsActive {
		state = "disabled"
	}
	return flashSuccess(c, "Referral code "+code.Code+" "+state, adminReferrals)
}

// HandleReferralExport downloads the members of a code as CSV
func (ac *AdminController) HandleReferralExport(c *fiber.Ctx) error {
	code, err := ac.s.Repos.Referral.GetByID(c.Params("id"))
	if err != nil {
		return ac.handleError(c, "Referral code not found", err)
	}

	var buf bytes.Buffer
	if err := ac.s.Funnel.ExportCSV(c.UserContext(), code.ID, &buf); err != nil {
		return ac.handleError(c, "The export failed", err)
	}
	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Attachment("referral-" + code.Code + ".csv")
	return c.Send(buf.Bytes())
}

// HandleAudit shows the last ledger audit
func (ac *AdminController) HandleAudit(c *fiber.Ctx) error {
	return render(c, "admin/audit", "Ledger audit", fiber.Map{
		"Audit": ac.lastAudit(c),
		"Queue": ac.queueHealth(c),
	})
}

// HandleAuditRun runs the ledger audit now
func (ac *AdminController) HandleAuditRun(c *fiber.Ctx) error {
	var drifts int
	if ac.s.Audits != nil {
		report, err := ac.s.Audits.RunAuditOnce(c.UserContext())
		if err != nil {
			return ac.handleError(c, "The audit failed", err)
		}
		drifts = len(report.Drifts)
	} else {
		found, err := ac.s.Funnel.Audit(c.UserContext())
		if err != nil {
			return ac.handleError(c, "The audit failed", err)
		}
		drifts = len(found)
	}
	if drifts > 0 {
		return flashError(c, strconv.Itoa(drifts)+" counters disagree with their lists", adminAudit)
	}
	return flashSuccess(c, "All referral counters match their lists", adminAudit)
}

func (ac *AdminController) lastAudit(c *fiber.Ctx) *jobqueue.AuditReport {
	if ac.s.Audits == nil {
		return nil
	}
	report, err := ac.s.Audits.LastAudit(c.UserContext())
	if err != nil {
		log.Warnf("[Admin] Could not read last audit: %v", err)
		return nil
	}
	return report
}

func (ac *AdminController) queueHealth(c *fiber.Ctx) *jobqueue.Health {
	if ac.s.Audits == nil {
		return nil
	}
	health, err := ac.s.Audits.QueueHealth(c.UserContext())
	if err != nil {
		log.Warnf("[Admin] Could not read job queue health: %v", err)
		return nil
	}
	return &health
}

// HandleSettings renders the settings form
func (ac *AdminController) HandleSettings(c *fiber.Ctx) error {
	settings := models.GetAppSettings()
	target := ""
	if t := settings.GetGlobalCountdownTarget(); !t.IsZero() {
		target = t.UTC().Format(settingsTimeInput)
	}
	return render(c, "admin/settings", "Settings", fiber.Map{
		"Settings":        settings,
		"CountdownTarget": target,
	})
}

// HandleSettingsUpdate saves the settings form
func (ac *AdminController) HandleSettingsUpdate(c *fiber.Ctx) error {
	w := ac.writer(c)
	if w == nil {
		return nil
	}

	countdownHours, _ := strconv.Atoi(c.FormValue("countdown_hours"))
	if countdownHours < 1 {
		countdownHours = models.DefaultCountdownHours
	} else if countdownHours > 2160 {
		countdownHours = 2160
	}

	var target time.Time
	if raw := strings.TrimSpace(c.FormValue("global_countdown_target")); raw != "" {
		t, err := time.ParseInLocation(settingsTimeInput, raw, time.UTC)
		if err != nil {
			return flashError(c, "Please enter the countdown target as date and time", adminSettings)
		}
		target = t
	}

	newSettings := &models.AppSettings{
		SiteTitle:             strings.TrimSpace(c.FormValue("site_title")),
		SiteDescription:       strings.TrimSpace(c.FormValue("site_description")),
		CountdownHours:        countdownHours,
		GlobalCountdownTarget: target,
		LockedVideoPlaybackID: strings.TrimSpace(c.FormValue("locked_video_playback_id")),
		RegistrationOpen:      c.FormValue("registration_open") == "on",
	}

	if err := w.Setting.Save(newSettings); err != nil {
		fm := fiber.Map{
			"type":    "error",
			"message": "Error saving settings: " + err.Error(),
		}
		return flash.WithError(c, fm).Redirect(adminSettings)
	}
	ac.revalidate(c, funnel.TagSignup)

	return flashSuccess(c, "Settings saved successfully", adminSettings)
}

// HandleComments lists the newest comments for moderation
func (ac *AdminController) HandleComments(c *fiber.Ctx) error {
	comments, err := ac.s.Repos.Comment.Recent(adminListLimit)
	if err != nil {
		return ac.handleError(c, "Failed to get comments", err)
	}
	return render(c, "admin/comments", "Comments", fiber.Map{
		"Comments": comments,
	})
}

// HandleCommentModerate approves, hides, pins or unpins a comment
func (ac *AdminController) HandleCommentModerate(c *fiber.Ctx) error {
	w := ac.writer(c)
	if w == nil {
		return nil
	}
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return flashError(c, "Comment not found", adminComments)
	}

	switch c.Params("action") {
	case "approve":
		err = w.Comment.SetApproved(uint(id), true)
	case "hide":
		err = w.Comment.SetApproved(uint(id), false)
	case "pin":
		err = w.Comment.SetPinned(uint(id), true)
	case "unpin":
		err = w.Comment.SetPinned(uint(id), false)
	default:
		return flashError(c, "Unknown action", adminComments)
	}
	if err != nil {
		return ac.handleError(c, "The comment could not be updated", err)
	}
	if lessonID, err := strconv.ParseUint(c.FormValue("lesson_id"), 10, 64); err == nil && lessonID > 0 {
		ac.revalidate(c, LessonTag(uint(lessonID)))
	}
	return flashSuccess(c, "Comment updated", adminComments)
}

// HandleContactMessages lists the contact form submissions
func (ac *AdminController) HandleContactMessages(c *fiber.Ctx) error {
	messages, err := ac.s.Repos.Contact.List(0, adminListLimit)
	if err != nil {
		return ac.handleError(c, "Failed to get messages", err)
	}
	return render(c, "admin/contact", "Messages", fiber.Map{
		"Messages": messages,
	})
}

// writer returns the write repositories or answers with a configuration
// error and returns nil.
func (ac *AdminController) writer(c *fiber.Ctx) *repository.Repositories {
	if ac.s.Writer == nil {
		log.Errorf("[Admin] Refused %s: no write credentials configured", c.Path())
		_ = flashError(c, funnel.MsgMissingWriteCreds, adminPath)
		return nil
	}
	return ac.s.Writer
}

func (ac *AdminController) revalidate(c *fiber.Ctx, tag string) {
	if ac.s.Pages == nil {
		return
	}
	if err := ac.s.Pages.Revalidate(c.UserContext(), tag); err != nil {
		log.Warnf("[Admin] Revalidating %s failed: %v", tag, err)
	}
}

// handleError handles errors consistently
func (ac *AdminController) handleError(c *fiber.Ctx, message string, err error) error {
	log.Errorf("[Admin] %s: %v", message, err)

	redirectPath := adminPath
	switch {
	case strings.HasPrefix(c.Path(), adminReferrals):
		redirectPath = adminReferrals
	case strings.HasPrefix(c.Path(), adminComments):
		redirectPath = adminComments
	case strings.HasPrefix(c.Path(), adminAudit):
		redirectPath = adminAudit
	}
	if c.Method() == fiber.MethodGet && c.Path() == redirectPath {
		return c.Status(fiber.StatusInternalServerError).SendString(message)
	}
	return flashError(c, message, redirectPath)
}

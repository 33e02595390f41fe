package viewmodel_test

import (
	"bytes"
	"html/template"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/template/html/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/MemberGate/app/models"
	"github.com/ManuelReschke/MemberGate/internal/pkg/flow"
	"github.com/ManuelReschke/MemberGate/internal/pkg/jobqueue"
	"github.com/ManuelReschke/MemberGate/internal/pkg/ledger"
	"github.com/ManuelReschke/MemberGate/internal/pkg/statistics"
	"github.com/ManuelReschke/MemberGate/internal/pkg/viewmodel"
)

func TestViewsRender(t *testing.T) {
	engine := html.New("../../../views", ".html")
	require.NoError(t, engine.Load())

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	lessonID := uint(3)
	layout := viewmodel.Layout{
		Page:          "Test",
		SiteTitle:     "MemberGate",
		FromProtected: true,
		IsAdmin:       true,
		Username:      "jane",
		CSRF:          "token-123",
		Msg:           fiber.Map{"type": "error", "message": "Something failed"},
		OGViewModel:   &viewmodel.OpenGraph{Title: "MemberGate", URL: "http://localhost/"},
	}
	category := &models.Category{ID: 1, Title: "Basics", Slug: "basics"}
	lesson := &models.Lesson{ID: lessonID, Title: "Welcome", Slug: "welcome", CategoryID: 1}
	comments := []models.Comment{{ID: 9, LessonID: &lessonID, AuthorName: "jane", Body: "Nice", Approved: true, CreatedAt: now}}

	tests := []struct {
		view string
		data fiber.Map
		want string
	}{
		{"home", fiber.Map{"Description": "Learn", "RegistrationOpen": true}, "/signup"},
		{"privatehome", fiber.Map{
			"Categories": []models.Category{*category},
			"Comments":   comments,
			"Package":    "premium",
			"Member":     &models.User{Name: "Jane"},
		}, "Welcome back, Jane"},
		{"contact", fiber.Map{"CaptchaEnabled": true, "HcaptchaSitekey": "site"}, `data-sitekey="site"`},
		{"auth/login", fiber.Map{"Google": true, "Discord": false}, "/auth/google"},
		{"funnel/signup", fiber.Map{"Open": true, "Code": "VIP10"}, `value="VIP10"`},
		{"funnel/questionnaire", fiber.Map{"Pages": []models.QuestionnairePage{
			{PageKey: "q_name", Kind: models.PAGE_KIND_NAME, Prompt: "Name?"},
			{PageKey: "q_goal", Kind: models.PAGE_KIND_QUESTION, Prompt: "Goal?"},
		}}, `name="q_goal"`},
		{"funnel/post_questionnaire", fiber.Map{
			"Countdown": flow.Countdown{Target: now.Add(time.Hour), Remaining: time.Hour},
			"Seconds":   int64(3600),
		}, `data-countdown="3600"`},
		{"funnel/post_questionnaire", fiber.Map{
			"Countdown": flow.Countdown{Target: now, Unlocked: true},
			"VideoURL":  "https://stream.example.com/abc.m3u8",
		}, "/register"},
		{"funnel/register", fiber.Map{"Name": "Jane", "Email": "jane@example.com"}, `value="jane@example.com"`},
		{"hub/index", fiber.Map{"Categories": []models.Category{*category}}, "/hub/basics"},
		{"hub/category", fiber.Map{"Category": category, "Lessons": []models.Lesson{*lesson}}, "/hub/basics/welcome"},
		{"hub/lesson", fiber.Map{
			"Category": "basics",
			"Lesson":   lesson,
			"Content":  template.HTML("<p>Hello</p>"),
			"Comments": comments,
		}, "<p>Hello</p>"},
		{"marketplace/index", fiber.Map{"Listings": []struct {
			models.Listing
			Price, PreviewURL, SellerName, SellerAvatar string
			Own                                         bool
		}{{Listing: models.Listing{ID: 4, Title: "Book"}, Price: "12.50", Own: true}}, "HasMore": false}, "/marketplace/4/sold"},
		{"marketplace/new", fiber.Map{"MaxImages": 3}, "up to 3"},
		{"admin/dashboard", fiber.Map{
			"Stats":      &statistics.FunnelStats{Codes: 2, ActiveCodes: 1, Paid: 3},
			"Conversion": "50.0",
			"Audit":      &jobqueue.AuditReport{CheckedAt: now},
		}, "50.0 %"},
		{"admin/referrals", fiber.Map{"Codes": []struct {
			models.ReferralCode
			Drifts []ledger.Drift
		}{{ReferralCode: models.ReferralCode{ID: "rc-1", Code: "VIP10", IsActive: true}, Drifts: []ledger.Drift{{List: ledger.PaidUsers, Counter: 2, Members: 1}}}}}, "/admin/referrals/rc-1/export"},
		{"admin/audit", fiber.Map{"Audit": &jobqueue.AuditReport{CheckedAt: now}}, "Counters match"},
		{"admin/audit", fiber.Map{"Queue": &jobqueue.Health{Pending: 4, Delayed: 2}}, "<th>Waiting for retry</th><td>2</td>"},
		{"admin/settings", fiber.Map{"Settings": models.DefaultAppSettings(), "CountdownTarget": ""}, `name="countdown_hours"`},
		{"admin/comments", fiber.Map{"Comments": comments}, `name="lesson_id" value="3"`},
		{"admin/contact", fiber.Map{"Messages": []models.ContactMessage{{Name: "Jane", Email: "jane@example.com", Subject: "Hi", CreatedAt: now}}}, "mailto:jane@example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.view, func(t *testing.T) {
			tt.data["Layout"] = layout
			tt.data["CSRF"] = layout.CSRF
			var buf bytes.Buffer
			require.NoError(t, engine.Render(&buf, tt.view, tt.data, "layouts/main"))
			out := buf.String()
			assert.Contains(t, out, tt.want)
			assert.Contains(t, out, "Test | MemberGate")
			assert.Contains(t, out, "Something failed")
		})
	}
}

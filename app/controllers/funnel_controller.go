package controllers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/MemberGate/app/models"
	"github.com/ManuelReschke/MemberGate/internal/pkg/flow"
	"github.com/ManuelReschke/MemberGate/internal/pkg/funnel"
	"github.com/ManuelReschke/MemberGate/internal/pkg/mail"
)

const msgRegistrationClosed = "Registration is currently closed."

// currentFlow returns the flow loaded by the state gate, loading it when the
// handler runs without one.
func currentFlow(c *fiber.Ctx) (*flow.Flow, error) {
	if f := flow.FromContext(c); f != nil {
		return f, nil
	}
	return svc().Flow.Load(c)
}

// HandleSignup renders the referral code form.
func HandleSignup(c *fiber.Ctx) error {
	return render(c, "funnel/signup", "Sign up", fiber.Map{
		"Open": models.GetAppSettings().IsRegistrationOpen(),
		"Code": c.Query("code"),
	})
}

// HandleSignupPost validates the referral code and opens the questionnaire.
func HandleSignupPost(c *fiber.Ctx) error {
	if !models.GetAppSettings().IsRegistrationOpen() {
		return flashError(c, msgRegistrationClosed, flow.SignupPage)
	}

	result := svc().Funnel.ValidateReferral(c.UserContext(), c.FormValue("referral_code"))
	if !result.Valid {
		return flashError(c, result.Message, flow.SignupPage)
	}

	f, err := currentFlow(c)
	if err != nil {
		log.Errorf("[Flow] Could not load funnel session: %v", err)
		return flashError(c, funnel.MsgLookupFailed, flow.SignupPage)
	}
	f.AcceptReferral(result.Code)
	if err := f.Save(); err != nil {
		log.Errorf("[Flow] Could not save funnel session: %v", err)
		return flashError(c, funnel.MsgLookupFailed, flow.SignupPage)
	}

	return flashSuccess(c, result.Message, flow.QuestionnairePage)
}

// HandleQuestionnaire renders the questionnaire pages in order.
func HandleQuestionnaire(c *fiber.Ctx) error {
	pages, err := svc().Repos.Questionnaire.Pages()
	if err != nil {
		log.Errorf("[Funnel] Could not load questionnaire: %v", err)
		return c.Status(fiber.StatusInternalServerError).SendString("questionnaire unavailable")
	}
	return render(c, "funnel/questionnaire", "Questionnaire", fiber.Map{
		"Pages": pages,
	})
}

// HandleQuestionnairePost stores the answers as a pending lead and starts the
// countdown.
func HandleQuestionnairePost(c *fiber.Ctx) error {
	s := svc()
	f, err := currentFlow(c)
	if err != nil {
		log.Errorf("[Flow] Could not load funnel session: %v", err)
		return flashError(c, funnel.MsgSaveFailed, flow.QuestionnairePage)
	}

	pages, err := s.Repos.Questionnaire.Pages()
	if err != nil {
		log.Errorf("[Funnel] Could not load questionnaire: %v", err)
		return flashError(c, funnel.MsgSaveFailed, flow.QuestionnairePage)
	}
	answers, missing := collectAnswers(c, pages)
	if missing != "" {
		return flashError(c, "Please answer: "+missing, flow.QuestionnairePage)
	}

	result := s.Funnel.MarkPending(c.UserContext(), f.ReferralCode, answers, "")
	if !result.Success {
		return flashError(c, result.Error, flow.QuestionnairePage)
	}

	settings := models.GetAppSettings()
	f.CompleteQuestionnaire(answers.Encode(), result.UserID, s.Now(), settings.CountdownWindow())
	if err := f.Save(); err != nil {
		log.Errorf("[Flow] Could not save funnel session: %v", err)
		return flashError(c, funnel.MsgSaveFailed, flow.QuestionnairePage)
	}
	return c.Redirect(flow.PostQuestionnairePage, fiber.StatusSeeOther)
}

// collectAnswers reads one form value per page, keyed by the page key. It
// reports the prompt of the first required page left empty.
func collectAnswers(c *fiber.Ctx, pages []models.QuestionnairePage) (funnel.Answers, string) {
	var answers funnel.Answers
	for _, page := range pages {
		value := strings.TrimSpace(c.FormValue(page.PageKey))
		if value == "" && page.RequiresAnswer() {
			return nil, page.Prompt
		}
		answers.Set(page.PageKey, value)
	}
	return answers, ""
}

// HandlePostQuestionnaire shows the countdown and, once it ran out, the
// unlocked video.
func HandlePostQuestionnaire(c *fiber.Ctx) error {
	s := svc()
	f, err := currentFlow(c)
	if err != nil {
		log.Errorf("[Flow] Could not load funnel session: %v", err)
		f = &flow.Flow{}
	}

	settings := models.GetAppSettings()
	countdown := flow.CountdownFor(f, settings.GetGlobalCountdownTarget(), s.Now())

	data := fiber.Map{
		"Countdown":  countdown,
		"Seconds":    countdown.Seconds(),
		"Registered": f.State >= flow.Registered,
	}
	if countdown.Unlocked {
		if id := settings.GetLockedVideoPlaybackID(); id != "" && s.Videos != nil {
			if url, err := s.Videos.PlaybackURL(id); err == nil {
				data["VideoURL"] = url
			} else {
				log.Warnf("[Mux] Could not sign playback %s: %v", id, err)
			}
		}
	}
	return render(c, "funnel/post_questionnaire", "Almost there", data)
}

// HandleRegister renders the account form prefilled with the lead data.
func HandleRegister(c *fiber.Ctx) error {
	s := svc()
	data := fiber.Map{}
	if f, err := currentFlow(c); err == nil && f.PendingUserID != "" {
		if lead, err := s.Repos.User.GetByID(f.PendingUserID); err == nil {
			data["Name"] = lead.Name
			data["Email"] = lead.Email
			data["Phone"] = lead.PhoneNumber
		}
	}
	return render(c, "funnel/register", "Create your account", data)
}

// HandleRegisterPost creates the account, converts the lead to paid and
// signs the new member in.
func HandleRegisterPost(c *fiber.Ctx) error {
	s := svc()
	f, err := currentFlow(c)
	if err != nil {
		log.Errorf("[Flow] Could not load funnel session: %v", err)
		return flashError(c, funnel.MsgRegisterFailed, flow.RegisterPage)
	}

	answers, err := funnel.ParseAnswers(f.Answers)
	if err != nil {
		log.Warnf("[Flow] Stored answers unreadable, registering without them: %v", err)
		answers = nil
	}

	result := s.Funnel.Enroll(c.UserContext(), funnel.EnrollRequest{
		Code:          f.ReferralCode,
		PendingUserID: f.PendingUserID,
		Phone:         strings.TrimSpace(c.FormValue("phone")),
		Registration: funnel.Registration{
			Name:     c.FormValue("name"),
			Username: c.FormValue("username"),
			Email:    c.FormValue("email"),
			Password: c.FormValue("password"),
			Answers:  answers,
		},
	})
	if !result.Success {
		return flashError(c, result.Error, flow.RegisterPage)
	}

	f.PendingUserID = result.UserID
	f.Register()
	if err := f.Save(); err != nil {
		log.Errorf("[Flow] Could not save funnel session: %v", err)
	}

	user, err := s.Repos.User.GetByID(result.UserID)
	if err != nil {
		log.Errorf("[Funnel] Registered user %s not readable: %v", result.UserID, err)
		return flashSuccess(c, "Your account is ready. Please log in.", "/login")
	}
	if err := startSession(c, user); err != nil {
		log.Errorf("[Auth] Could not start session for %s: %v", user.ID, err)
		return flashSuccess(c, "Your account is ready. Please log in.", "/login")
	}
	sendWelcome(user)

	return flashSuccess(c, "Welcome aboard, "+user.Name+"!", result.Redirect)
}

func sendWelcome(user *models.User) {
	jobs := svc().Jobs
	if jobs == nil || user.Email == "" {
		return
	}
	subject, body := mail.WelcomeMail(user.Name, models.GetAppSettings().GetSiteTitle())
	if _, err := jobs.EnqueueMail(user.Email, subject, body); err != nil {
		log.Warnf("[Mail] Could not queue welcome mail for %s: %v", user.ID, err)
	}
}

package flow

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/session"

	"github.com/ManuelReschke/MemberGate/internal/pkg/usercontext"
)

// Session keys.
const (
	KeyState           = "funnel_state"
	KeyReferralCode    = "referral_code"
	KeyAnswers         = "questionnaire_answers"
	KeyCountdownTarget = "countdown_target"
	KeyPendingUserID   = "pending_user_id"

	// written by older releases as "true"
	legacyReferralCleared        = "referral_cleared"
	legacyQuestionnaireCompleted = "questionnaire_completed"
)

const localsKey = "FUNNEL_FLOW"

var ErrNoStore = errors.New("flow: session store not initialized")

// Flow is the persisted funnel position of one browser.
type Flow struct {
	State           State
	ReferralCode    string
	Answers         string
	PendingUserID   string
	CountdownTarget time.Time

	sess *session.Session
}

// AcceptReferral records a validated code. It never moves a visitor back.
func (f *Flow) AcceptReferral(code string) {
	f.ReferralCode = code
	if f.State < ReferralAccepted {
		f.State = ReferralAccepted
	}
}

// CompleteQuestionnaire stores the submitted answers and starts the
// personal countdown.
func (f *Flow) CompleteQuestionnaire(answers, pendingUserID string, now time.Time, window time.Duration) {
	f.Answers = answers
	f.PendingUserID = pendingUserID
	if f.CountdownTarget.IsZero() {
		f.CountdownTarget = now.Add(window).UTC()
	}
	if f.State < QuestionnaireComplete {
		f.State = QuestionnaireComplete
	}
}

func (f *Flow) Register() {
	f.State = Registered
}

// Save writes the flow back to its session.
func (f *Flow) Save() error {
	if f.sess == nil {
		return ErrNoStore
	}
	f.sess.Set(KeyState, f.State.String())
	setOrDelete(f.sess, KeyReferralCode, f.ReferralCode)
	setOrDelete(f.sess, KeyAnswers, f.Answers)
	setOrDelete(f.sess, KeyPendingUserID, f.PendingUserID)
	if f.CountdownTarget.IsZero() {
		f.sess.Delete(KeyCountdownTarget)
	} else {
		f.sess.Set(KeyCountdownTarget, f.CountdownTarget.UTC().Format(time.RFC3339))
	}
	f.sess.Delete(legacyReferralCleared)
	f.sess.Delete(legacyQuestionnaireCompleted)
	return f.sess.Save()
}

// Reset forgets the funnel position.
func (f *Flow) Reset() error {
	if f.sess == nil {
		return ErrNoStore
	}
	return f.sess.Destroy()
}

func setOrDelete(sess *session.Session, key, value string) {
	if value == "" {
		sess.Delete(key)
		return
	}
	sess.Set(key, value)
}

// Tracker loads flows from a session store.
type Tracker struct {
	store *session.Store
}

func NewTracker(store *session.Store) *Tracker {
	return &Tracker{store: store}
}

// Load reads the flow of the requesting browser.
func (t *Tracker) Load(c *fiber.Ctx) (*Flow, error) {
	if t.store == nil {
		return nil, ErrNoStore
	}
	sess, err := t.store.Get(c)
	if err != nil {
		return nil, err
	}

	f := &Flow{
		sess:          sess,
		ReferralCode:  stringValue(sess, KeyReferralCode),
		Answers:       stringValue(sess, KeyAnswers),
		PendingUserID: stringValue(sess, KeyPendingUserID),
	}
	if raw := stringValue(sess, KeyCountdownTarget); raw != "" {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			f.CountdownTarget = ts
		}
	}

	if name := stringValue(sess, KeyState); name != "" {
		f.State = ParseState(name)
	} else {
		switch {
		case stringValue(sess, legacyQuestionnaireCompleted) == "true":
			f.State = QuestionnaireComplete
		case stringValue(sess, legacyReferralCleared) == "true":
			f.State = ReferralAccepted
		}
	}
	return f, nil
}

func stringValue(sess *session.Session, key string) string {
	if v, ok := sess.Get(key).(string); ok {
		return v
	}
	return ""
}

// RequireState lets the request through only when the visitor's state lies
// in [min, max]; otherwise it redirects to the page of the current state.
// Logged in members count as Registered.
func (t *Tracker) RequireState(min, max State) fiber.Handler {
	return func(c *fiber.Ctx) error {
		f, err := t.Load(c)
		if err != nil {
			log.Errorf("[Flow] Loading funnel state failed: %v", err)
			f = &Flow{}
		}

		state := f.State
		if usercontext.IsLoggedIn(c) && state < Registered {
			state = Registered
		}
		if state < min || state > max {
			return c.Redirect(state.Home(), fiber.StatusSeeOther)
		}

		c.Locals(localsKey, f)
		return c.Next()
	}
}

// FromContext returns the flow loaded by RequireState.
func FromContext(c *fiber.Ctx) *Flow {
	if f, ok := c.Locals(localsKey).(*Flow); ok {
		return f
	}
	return nil
}

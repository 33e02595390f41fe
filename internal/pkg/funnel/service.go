package funnel

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/MemberGate/app/models"
	"github.com/ManuelReschke/MemberGate/internal/pkg/ledger"
)

// User facing messages.
const (
	MsgEnterReferral     = "Please enter a referral code."
	MsgInvalidReferral   = "Invalid referral code."
	MsgLookupFailed      = "An error occurred. Please try again."
	MsgReferralAccepted  = "Referral code accepted!"
	MsgReferralRequired  = "Referral code is required"
	MsgUnknownReferral   = "Invalid referral code"
	MsgSaveFailed        = "Failed to save data. Please try again."
	MsgPaidFailed        = "Failed to register paid user"
	MsgMissingWriteCreds = "Server configuration error: missing write credentials"
	MsgRegisterRequired  = "Name, username, email and password are required."
	MsgInvalidEmail      = "Please enter a valid email address."
	MsgPasswordTooShort  = "Password must be at least 8 characters."
	MsgUsernameTaken     = "Username is already taken. Please choose another."
	MsgAlreadyRegistered = "This account is already registered. Please log in."
	MsgRegisterFailed    = "Registration failed. Please try again."
)

// Revalidation tags.
const (
	TagSignup    = "signup"
	TagReferrals = "referrals"
)

// MemberHome is where registered members land.
const MemberHome = "/privatehome"

const minPasswordLength = 8

var (
	ErrInvalidCredentials = errors.New("funnel: invalid username or password")
	emailPattern          = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// Revalidator drops cached pages that depend on a tag.
type Revalidator interface {
	Revalidate(ctx context.Context, tag string) error
}

// EmailVerifier checks deliverability; a rejection carries a user message.
type EmailVerifier interface {
	Verify(ctx context.Context, email string) (bool, string)
}

type ReferralResult struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type PendingResult struct {
	Success bool   `json:"success"`
	UserID  string `json:"userId,omitempty"`
	Error   string `json:"error,omitempty"`
}

type PaidResult struct {
	Success bool   `json:"success"`
	UserID  string `json:"userId,omitempty"`
	Error   string `json:"error,omitempty"`
}

type RegisterResult struct {
	Success  bool   `json:"success"`
	UserID   string `json:"userId,omitempty"`
	Redirect string `json:"redirect,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Identity is the contact data given at payment time.
type Identity struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber"`
}

// Registration is the account form.
type Registration struct {
	Name     string  `json:"name"`
	Username string  `json:"username"`
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Answers  Answers `json:"answers,omitempty"`
}

// EnrollRequest is the official registration: account plus paid conversion.
type EnrollRequest struct {
	Code          string
	PendingUserID string
	Phone         string
	Registration
}

type Option func(*Service)

// WithRevalidator sets the cache revalidation hook.
func WithRevalidator(r Revalidator) Option {
	return func(s *Service) { s.revalidator = r }
}

// WithEmailVerifier adds a deliverability check to registrations.
func WithEmailVerifier(v EmailVerifier) Option {
	return func(s *Service) { s.verifier = v }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithoutWriteAccess makes every mutation refuse with a configuration error.
func WithoutWriteAccess() Option {
	return func(s *Service) { s.writable = false }
}

// Service runs the enrollment funnel against a Store.
type Service struct {
	store       Store
	revalidator Revalidator
	verifier    EmailVerifier
	now         func() time.Time
	writable    bool
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:    store,
		now:      time.Now,
		writable: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Writable reports whether mutations are allowed.
func (s *Service) Writable() bool {
	return s.writable
}

// ValidateReferral checks a code against the active referral codes. Input
// case does not matter.
func (s *Service) ValidateReferral(ctx context.Context, code string) ReferralResult {
	code = strings.TrimSpace(code)
	if code == "" {
		return ReferralResult{Message: MsgEnterReferral}
	}
	code = models.NormalizeCode(code)

	doc, err := s.store.FindReferral(ctx, code)
	if err != nil {
		log.Errorf("[Funnel] Referral lookup for %s failed: %v", code, err)
		return ReferralResult{Message: MsgLookupFailed}
	}
	if doc == nil || !doc.Active {
		return ReferralResult{Message: MsgInvalidReferral}
	}

	s.revalidate(ctx, TagSignup)
	return ReferralResult{Valid: true, Message: MsgReferralAccepted, Code: doc.Code}
}

// MarkPending stores a questionnaire submission as a new lead and adds it to
// the pending list of the code. Each call creates a new lead.
func (s *Service) MarkPending(ctx context.Context, code string, answers Answers, explicitName string) PendingResult {
	if !s.writable {
		log.Errorf("[Funnel] MarkPending refused: no write credentials configured")
		return PendingResult{Error: MsgMissingWriteCreds}
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return PendingResult{Error: MsgReferralRequired}
	}

	doc, err := s.store.FindReferral(ctx, code)
	if err != nil {
		log.Errorf("[Funnel] MarkPending lookup for %s failed: %v", code, err)
		return PendingResult{Error: MsgSaveFailed}
	}
	if doc == nil {
		return PendingResult{Error: MsgUnknownReferral}
	}

	lead := DeriveLead(answers, s.roles(ctx), explicitName)
	now := s.now()
	user := &models.User{
		Name:                     lead.Name,
		Email:                    lead.Email,
		PhoneNumber:              lead.Phone,
		QuestionnaireAnswers:     answers.Encode(),
		QuestionnaireCompletedAt: &now,
		Package:                  models.PACKAGE_STANDARD,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		log.Errorf("[Funnel] MarkPending could not create lead for %s: %v", code, err)
		return PendingResult{Error: MsgSaveFailed}
	}

	patch := ledger.NewPatch(doc.ID).
		SetIfMissing(ledger.PendingUsers).
		Append(ledger.PendingUsers, user.ID).
		Inc(ledger.PendingCount, 1)
	if err := s.store.Commit(ctx, patch); err != nil {
		log.Errorf("[Funnel] MarkPending ledger commit for %s (user %s) failed: %v", code, user.ID, err)
		return PendingResult{Error: MsgSaveFailed}
	}

	log.Infof("[Funnel] Lead %s pending under %s", user.ID, doc.Code)
	s.revalidate(ctx, TagReferrals)
	return PendingResult{Success: true, UserID: user.ID}
}

// MarkPaid promotes a lead, or a new customer, to paid under code. A pending
// lead is moved from the pending to the paid list in one commit.
func (s *Service) MarkPaid(ctx context.Context, code string, id Identity, answers Answers, pendingUserID string) PaidResult {
	if !s.writable {
		log.Errorf("[Funnel] MarkPaid refused: no write credentials configured")
		return PaidResult{Error: MsgMissingWriteCreds}
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return PaidResult{Error: MsgReferralRequired}
	}

	doc, err := s.store.FindReferral(ctx, code)
	if err != nil {
		log.Errorf("[Funnel] MarkPaid lookup for %s failed: %v", code, err)
		return PaidResult{Error: MsgPaidFailed}
	}
	if doc == nil {
		return PaidResult{Error: MsgUnknownReferral}
	}

	user, err := s.promote(ctx, id, answers, pendingUserID)
	if err != nil {
		log.Errorf("[Funnel] MarkPaid could not store user for %s: %v", code, err)
		return PaidResult{Error: MsgPaidFailed}
	}

	if doc.Contains(ledger.PaidUsers, user.ID) {
		return PaidResult{Success: true, UserID: user.ID}
	}

	patch := ledger.NewPatch(doc.ID)
	if doc.Contains(ledger.PendingUsers, user.ID) {
		patch.Unset(ledger.PendingUsers, user.ID).Dec(ledger.PendingCount, 1)
	}
	patch.SetIfMissing(ledger.PaidUsers).
		Append(ledger.PaidUsers, user.ID).
		Inc(ledger.PaidCount, 1)

	if err := s.store.Commit(ctx, patch); err != nil {
		log.Errorf("[Funnel] MarkPaid ledger commit for %s (user %s) failed: %v", code, user.ID, err)
		return PaidResult{Error: MsgPaidFailed}
	}

	log.Infof("[Funnel] User %s paid under %s", user.ID, doc.Code)
	s.revalidate(ctx, TagReferrals)
	return PaidResult{Success: true, UserID: user.ID}
}

// promote resolves the user by pending id, then email, else creates one,
// and flags it premium.
func (s *Service) promote(ctx context.Context, id Identity, answers Answers, pendingUserID string) (*models.User, error) {
	var (
		user *models.User
		err  error
	)
	if pendingUserID != "" {
		if user, err = s.store.FindUserByID(ctx, pendingUserID); err != nil {
			return nil, err
		}
	}
	email := strings.TrimSpace(id.Email)
	if user == nil && email != "" {
		if user, err = s.store.FindUserByEmail(ctx, email); err != nil {
			return nil, err
		}
	}

	now := s.now()
	if user == nil {
		user = &models.User{
			Name:        firstNonEmpty(strings.TrimSpace(id.Name), DefaultLeadName),
			Email:       email,
			PhoneNumber: strings.TrimSpace(id.PhoneNumber),
		}
		if len(answers) > 0 {
			user.QuestionnaireAnswers = answers.Encode()
		}
		user.MarkPremium(now)
		return user, s.store.CreateUser(ctx, user)
	}

	mergeIdentity(user, id)
	if len(answers) > 0 {
		user.QuestionnaireAnswers = answers.Encode()
	}
	user.MarkPremium(now)
	return user, s.store.UpdateUser(ctx, user)
}

func mergeIdentity(user *models.User, id Identity) {
	if v := strings.TrimSpace(id.Name); v != "" {
		user.Name = v
	}
	if v := strings.TrimSpace(id.Email); v != "" {
		user.Email = v
	}
	if v := strings.TrimSpace(id.PhoneNumber); v != "" {
		user.PhoneNumber = v
	}
}

// RegisterUser creates a member account with credentials.
func (s *Service) RegisterUser(ctx context.Context, reg Registration) RegisterResult {
	if !s.writable {
		log.Errorf("[Funnel] RegisterUser refused: no write credentials configured")
		return RegisterResult{Error: MsgMissingWriteCreds}
	}
	reg = reg.trimmed()
	if msg := s.checkRegistration(ctx, reg, ""); msg != "" {
		return RegisterResult{Error: msg}
	}

	user := &models.User{Name: reg.Name, Email: reg.Email, Package: models.PACKAGE_STANDARD}
	if len(reg.Answers) > 0 {
		user.QuestionnaireAnswers = reg.Answers.Encode()
	}
	if msg := s.setCredentials(user, reg); msg != "" {
		return RegisterResult{Error: msg}
	}
	now := s.now()
	user.RegisteredAt = &now

	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return RegisterResult{Error: MsgUsernameTaken}
		}
		log.Errorf("[Funnel] RegisterUser failed for %s: %v", reg.Username, err)
		return RegisterResult{Error: MsgRegisterFailed}
	}

	log.Infof("[Funnel] Registered user %s (%s)", user.ID, reg.Username)
	return RegisterResult{Success: true, UserID: user.ID, Redirect: MemberHome}
}

// Enroll attaches credentials to the lead (or a new account) and converts it
// to paid under the referral code. An unknown code aborts before anything is
// written. A lead whose account was stored but whose conversion failed can
// resubmit the same credentials to finish the conversion.
func (s *Service) Enroll(ctx context.Context, req EnrollRequest) RegisterResult {
	if !s.writable {
		log.Errorf("[Funnel] Enroll refused: no write credentials configured")
		return RegisterResult{Error: MsgMissingWriteCreds}
	}
	reg := req.Registration.trimmed()

	var (
		user *models.User
		err  error
	)
	if req.PendingUserID != "" {
		if user, err = s.store.FindUserByID(ctx, req.PendingUserID); err != nil {
			log.Errorf("[Funnel] Enroll could not load lead %s: %v", req.PendingUserID, err)
			return RegisterResult{Error: MsgRegisterFailed}
		}
	}
	ownerID := ""
	if user != nil {
		ownerID = user.ID
	}
	if msg := s.checkRegistration(ctx, reg, ownerID); msg != "" {
		return RegisterResult{Error: msg}
	}
	code := strings.TrimSpace(req.Code)
	if code == "" {
		return RegisterResult{Error: MsgReferralRequired}
	}
	doc, err := s.store.FindReferral(ctx, code)
	if err != nil {
		log.Errorf("[Funnel] Enroll lookup for %s failed: %v", code, err)
		return RegisterResult{Error: MsgPaidFailed}
	}
	if doc == nil {
		return RegisterResult{Error: MsgUnknownReferral}
	}

	if user != nil && user.HasCredentials() {
		if doc.Contains(ledger.PaidUsers, user.ID) || !ownsCredentials(user, reg) {
			return RegisterResult{Error: MsgAlreadyRegistered}
		}
		log.Warnf("[Funnel] Resuming paid conversion of %s under %s", user.ID, doc.Code)
		return s.convert(ctx, doc.Code, user, reg, req.Phone)
	}

	creating := user == nil
	if creating {
		user = &models.User{Name: reg.Name, Email: reg.Email, Package: models.PACKAGE_STANDARD}
	} else {
		mergeIdentity(user, Identity{Name: reg.Name, Email: reg.Email})
	}
	if msg := s.setCredentials(user, reg); msg != "" {
		return RegisterResult{Error: msg}
	}

	if creating {
		err = s.store.CreateUser(ctx, user)
	} else {
		err = s.store.UpdateUser(ctx, user)
	}
	if err != nil {
		if errors.Is(err, ErrDuplicate) {
			return RegisterResult{Error: MsgUsernameTaken}
		}
		log.Errorf("[Funnel] Enroll could not store account %s: %v", reg.Username, err)
		return RegisterResult{Error: MsgRegisterFailed}
	}

	return s.convert(ctx, doc.Code, user, reg, req.Phone)
}

func (s *Service) convert(ctx context.Context, code string, user *models.User, reg Registration, phone string) RegisterResult {
	paid := s.MarkPaid(ctx, code, Identity{Name: reg.Name, Email: reg.Email, PhoneNumber: phone}, reg.Answers, user.ID)
	if !paid.Success {
		return RegisterResult{UserID: user.ID, Error: paid.Error}
	}
	return RegisterResult{Success: true, UserID: user.ID, Redirect: MemberHome}
}

func ownsCredentials(user *models.User, reg Registration) bool {
	return user.Username != nil && *user.Username == reg.Username && user.CheckPassword(reg.Password)
}

// Authenticate checks username and password.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	user, err := s.store.FindUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.CheckPassword(password) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (r Registration) trimmed() Registration {
	r.Name = strings.TrimSpace(r.Name)
	r.Username = strings.TrimSpace(r.Username)
	r.Email = strings.TrimSpace(r.Email)
	return r
}

// checkRegistration validates the form. A username already held by ownerID
// is not a conflict.
func (s *Service) checkRegistration(ctx context.Context, reg Registration, ownerID string) string {
	if reg.Name == "" || reg.Username == "" || reg.Email == "" || reg.Password == "" {
		return MsgRegisterRequired
	}
	if !ValidEmail(reg.Email) {
		return MsgInvalidEmail
	}
	if len(reg.Password) < minPasswordLength {
		return MsgPasswordTooShort
	}
	if s.verifier != nil {
		if ok, msg := s.verifier.Verify(ctx, reg.Email); !ok {
			return firstNonEmpty(msg, MsgInvalidEmail)
		}
	}
	existing, err := s.store.FindUserByUsername(ctx, reg.Username)
	if err != nil {
		log.Errorf("[Funnel] Username lookup for %s failed: %v", reg.Username, err)
		return MsgRegisterFailed
	}
	if existing != nil && (ownerID == "" || existing.ID != ownerID) {
		return MsgUsernameTaken
	}
	return ""
}

func (s *Service) setCredentials(user *models.User, reg Registration) string {
	user.SetUsername(reg.Username)
	if err := user.SetPassword(reg.Password); err != nil {
		log.Errorf("[Funnel] Password hashing failed: %v", err)
		return MsgRegisterFailed
	}
	if len(reg.Answers) > 0 {
		user.QuestionnaireAnswers = reg.Answers.Encode()
	}
	return ""
}

// ValidEmail applies the basic address shape check.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

func (s *Service) roles(ctx context.Context) map[string]Role {
	pages, err := s.store.Pages(ctx)
	if err != nil {
		log.Warnf("[Funnel] Questionnaire pages unavailable, deriving lead from answers only: %v", err)
		return nil
	}
	return RolesFromPages(pages)
}

func (s *Service) revalidate(ctx context.Context, tag string) {
	if s.revalidator == nil {
		return
	}
	if err := s.revalidator.Revalidate(ctx, tag); err != nil {
		log.Warnf("[Funnel] Revalidate %s failed: %v", tag, err)
	}
}

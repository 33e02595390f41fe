package funnel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/MemberGate/app/models"
	"github.com/ManuelReschke/MemberGate/internal/pkg/ledger"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, opts ...Option) (*Service, *memStore) {
	t.Helper()
	store := newMemStore()
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewService(store, opts...), store
}

func janeAnswers() Answers {
	return Answers{{Key: "q1", Value: "Jane Doe"}, {Key: "q2", Value: "555-123-4567"}}
}

func TestValidateReferral(t *testing.T) {
	rv := &recordingRevalidator{}
	svc, store := newTestService(t, WithRevalidator(rv))
	store.addCode("FRIEND25", true)
	store.addCode("OLD", false)

	tests := []struct {
		name    string
		input   string
		valid   bool
		message string
	}{
		{"empty", "", false, MsgEnterReferral},
		{"whitespace", "   ", false, MsgEnterReferral},
		{"unknown", "NOPE", false, MsgInvalidReferral},
		{"inactive", "old", false, MsgInvalidReferral},
		{"exact", "FRIEND25", true, MsgReferralAccepted},
		{"lower case", "friend25", true, MsgReferralAccepted},
		{"padded", "  Friend25 ", true, MsgReferralAccepted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := svc.ValidateReferral(context.Background(), tt.input)
			assert.Equal(t, tt.valid, res.Valid)
			assert.Equal(t, tt.message, res.Message)
			if tt.valid {
				assert.Equal(t, "FRIEND25", res.Code)
			}
		})
	}
	assert.Equal(t, []string{TagSignup, TagSignup, TagSignup}, rv.tags)
}

func TestValidateReferral_LookupError(t *testing.T) {
	svc, store := newTestService(t)
	store.lookupErr = errors.New("connection refused")

	res := svc.ValidateReferral(context.Background(), "FRIEND25")
	assert.False(t, res.Valid)
	assert.Equal(t, MsgLookupFailed, res.Message)
}

func TestMarkPending_FriendScenario(t *testing.T) {
	svc, store := newTestService(t)
	store.addCode("FRIEND25", true)

	res := svc.MarkPending(context.Background(), "FRIEND25", janeAnswers(), "")
	require.True(t, res.Success, res.Error)

	doc := store.doc("FRIEND25")
	assert.Equal(t, 1, doc.Count(ledger.PendingCount))
	require.Len(t, doc.Refs(ledger.PendingUsers), 1)
	assert.Equal(t, res.UserID, doc.Refs(ledger.PendingUsers)[0].Ref)
	assert.NotEmpty(t, doc.Refs(ledger.PendingUsers)[0].Key)
	assert.NoError(t, doc.Consistent())

	user := store.user(res.UserID)
	require.NotNil(t, user)
	assert.Equal(t, "Jane Doe", user.Name)
	assert.Equal(t, "555-123-4567", user.PhoneNumber)
	assert.False(t, user.IsPremium)
	assert.Equal(t, models.PACKAGE_STANDARD, user.Package)
	require.NotNil(t, user.QuestionnaireCompletedAt)
	assert.Equal(t, fixedNow, *user.QuestionnaireCompletedAt)

	// stored answers round trip exactly
	assert.Equal(t, `{"q1":"Jane Doe","q2":"555-123-4567"}`, user.QuestionnaireAnswers)
	parsed, err := ParseAnswers(user.QuestionnaireAnswers)
	require.NoError(t, err)
	assert.Equal(t, janeAnswers(), parsed)

	paid := svc.MarkPaid(context.Background(), "FRIEND25", Identity{}, nil, res.UserID)
	require.True(t, paid.Success, paid.Error)
	assert.Equal(t, res.UserID, paid.UserID)

	doc = store.doc("FRIEND25")
	assert.Equal(t, 0, doc.Count(ledger.PendingCount))
	assert.Equal(t, 1, doc.Count(ledger.PaidCount))
	assert.False(t, doc.Contains(ledger.PendingUsers, res.UserID))
	assert.True(t, doc.Contains(ledger.PaidUsers, res.UserID))
	assert.NoError(t, doc.Consistent())

	user = store.user(res.UserID)
	assert.True(t, user.IsPremium)
	assert.Equal(t, models.PACKAGE_PREMIUM, user.Package)
	require.NotNil(t, user.RegisteredAt)
}

func TestMarkPending_Errors(t *testing.T) {
	svc, store := newTestService(t)
	store.addCode("FRIEND25", true)

	assert.Equal(t, MsgReferralRequired, svc.MarkPending(context.Background(), " ", janeAnswers(), "").Error)
	assert.Equal(t, MsgUnknownReferral, svc.MarkPending(context.Background(), "NOPE", janeAnswers(), "").Error)
	// stored codes are matched as given
	assert.Equal(t, MsgUnknownReferral, svc.MarkPending(context.Background(), "friend25", janeAnswers(), "").Error)

	store.failNext = errors.New("network down")
	res := svc.MarkPending(context.Background(), "FRIEND25", janeAnswers(), "")
	assert.False(t, res.Success)
	assert.Equal(t, MsgSaveFailed, res.Error)
	assert.Zero(t, store.doc("FRIEND25").Count(ledger.PendingCount))
}

func TestMarkPending_DuplicateSubmissionCreatesTwoLeads(t *testing.T) {
	svc, store := newTestService(t)
	store.addCode("FRIEND25", true)

	first := svc.MarkPending(context.Background(), "FRIEND25", janeAnswers(), "")
	second := svc.MarkPending(context.Background(), "FRIEND25", janeAnswers(), "")
	require.True(t, first.Success)
	require.True(t, second.Success)

	assert.NotEqual(t, first.UserID, second.UserID)
	assert.Equal(t, 2, store.userCount())
	doc := store.doc("FRIEND25")
	assert.Equal(t, 2, doc.Count(ledger.PendingCount))
	assert.Len(t, doc.Refs(ledger.PendingUsers), 2)
}

func TestMarkPending_ExplicitNameAndRoles(t *testing.T) {
	svc, store := newTestService(t)
	store.addCode("FRIEND25", true)
	store.pages = []models.QuestionnairePage{{PageKey: "k9", Kind: models.PAGE_KIND_EMAIL}}

	answers := Answers{{Key: "q1", Value: "Jane Doe"}, {Key: "k9", Value: "jane@example.com"}}
	res := svc.MarkPending(context.Background(), "FRIEND25", answers, "Janet")
	require.True(t, res.Success)

	user := store.user(res.UserID)
	assert.Equal(t, "Janet", user.Name)
	assert.Equal(t, "jane@example.com", user.Email)
}

func TestMarkPending_ConcurrentSubmissions(t *testing.T) {
	svc, store := newTestService(t)
	store.addCode("FRIEND25", true)

	const n = 25
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.True(t, svc.MarkPending(context.Background(), "FRIEND25", janeAnswers(), "").Success)
		}()
	}
	wg.Wait()

	doc := store.doc("FRIEND25")
	assert.Equal(t, n, doc.Count(ledger.PendingCount))
	assert.NoError(t, doc.Consistent())
}

func TestMarkPaid_ConservesTotals(t *testing.T) {
	svc, store := newTestService(t)
	store.addCode("FRIEND25", true)
	ctx := context.Background()

	var pending []string
	for i := 0; i < 3; i++ {
		res := svc.MarkPending(ctx, "FRIEND25", janeAnswers(), "")
		require.True(t, res.Success)
		pending = append(pending, res.UserID)
	}
	before := store.doc("FRIEND25")
	total := before.Count(ledger.PendingCount) + before.Count(ledger.PaidCount)

	require.True(t, svc.MarkPaid(ctx, "FRIEND25", Identity{Name: "Jane Roe"}, nil, pending[1]).Success)

	after := store.doc("FRIEND25")
	assert.Equal(t, total, after.Count(ledger.PendingCount)+after.Count(ledger.PaidCount))
	assert.Equal(t, 2, after.Count(ledger.PendingCount))
	assert.Equal(t, 1, after.Count(ledger.PaidCount))
	assert.Equal(t, "Jane Roe", store.user(pending[1]).Name)

	// paid directly adds one without touching pending
	direct := svc.MarkPaid(ctx, "FRIEND25", Identity{Name: "Walk In", Email: "walk@example.com"}, nil, "")
	require.True(t, direct.Success)
	after = store.doc("FRIEND25")
	assert.Equal(t, total+1, after.Count(ledger.PendingCount)+after.Count(ledger.PaidCount))
	assert.NoError(t, after.Consistent())
}

func TestMarkPaid_ResolvesByEmailAndIsRepeatable(t *testing.T) {
	svc, store := newTestService(t)
	store.addCode("FRIEND25", true)
	ctx := context.Background()

	answers := Answers{{Key: "q1", Value: "Jane Doe"}, {Key: "q2", Value: "jane@example.com"}}
	pending := svc.MarkPending(ctx, "FRIEND25", answers, "")
	require.True(t, pending.Success)

	paid := svc.MarkPaid(ctx, "FRIEND25", Identity{Email: "JANE@example.com", PhoneNumber: "+1 555 0100"}, nil, "")
	require.True(t, paid.Success)
	assert.Equal(t, pending.UserID, paid.UserID)
	assert.Equal(t, "+1 555 0100", store.user(paid.UserID).PhoneNumber)
	commits := store.commits

	again := svc.MarkPaid(ctx, "FRIEND25", Identity{}, nil, paid.UserID)
	require.True(t, again.Success)
	assert.Equal(t, commits, store.commits)
	assert.Equal(t, 1, store.doc("FRIEND25").Count(ledger.PaidCount))
}

func TestMarkPaid_InvalidCodeFailsClosed(t *testing.T) {
	svc, store := newTestService(t)

	res := svc.MarkPaid(context.Background(), "NOPE", Identity{Name: "Jane", Email: "jane@example.com"}, nil, "")
	assert.False(t, res.Success)
	assert.Equal(t, MsgUnknownReferral, res.Error)
	assert.Zero(t, store.userCount())
}

func TestMarkPaid_CommitFailure(t *testing.T) {
	svc, store := newTestService(t)
	store.addCode("FRIEND25", true)
	store.failNext = errors.New("timeout")

	res := svc.MarkPaid(context.Background(), "FRIEND25", Identity{Name: "Jane"}, nil, "")
	assert.False(t, res.Success)
	assert.Equal(t, MsgPaidFailed, res.Error)
}

func TestMutationsWithoutWriteAccess(t *testing.T) {
	svc, store := newTestService(t, WithoutWriteAccess())
	store.addCode("FRIEND25", true)
	ctx := context.Background()

	assert.False(t, svc.Writable())
	assert.Equal(t, MsgMissingWriteCreds, svc.MarkPending(ctx, "FRIEND25", janeAnswers(), "").Error)
	assert.Equal(t, MsgMissingWriteCreds, svc.MarkPaid(ctx, "FRIEND25", Identity{}, nil, "").Error)
	assert.Equal(t, MsgMissingWriteCreds, svc.RegisterUser(ctx, Registration{}).Error)
	assert.Zero(t, store.userCount())

	// reads keep working
	assert.True(t, svc.ValidateReferral(ctx, "friend25").Valid)
}

func TestRegisterUser(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	valid := Registration{Name: "Jane", Username: "jane", Email: "jane@example.com", Password: "s3cret-pass"}

	res := svc.RegisterUser(ctx, valid)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, MemberHome, res.Redirect)

	assert.Equal(t, MsgUsernameTaken, svc.RegisterUser(ctx, valid).Error)
	assert.Equal(t, MsgRegisterRequired, svc.RegisterUser(ctx, Registration{Name: "Jane"}).Error)

	bad := valid
	bad.Username, bad.Email = "jane2", "not-an-email"
	assert.Equal(t, MsgInvalidEmail, svc.RegisterUser(ctx, bad).Error)

	short := valid
	short.Username, short.Password = "jane3", "abc"
	assert.Equal(t, MsgPasswordTooShort, svc.RegisterUser(ctx, short).Error)

	user, err := svc.Authenticate(ctx, "jane", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, res.UserID, user.ID)

	_, err = svc.Authenticate(ctx, "jane", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Authenticate(ctx, "nobody", "s3cret-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegisterUser_EmailVerifierRejects(t *testing.T) {
	svc, _ := newTestService(t, WithEmailVerifier(stubVerifier{ok: false, msg: "Email address is not deliverable."}))

	res := svc.RegisterUser(context.Background(), Registration{Name: "Jane", Username: "jane", Email: "jane@example.com", Password: "s3cret-pass"})
	assert.False(t, res.Success)
	assert.Equal(t, "Email address is not deliverable.", res.Error)
}

func TestEnroll_ConvertsPendingLead(t *testing.T) {
	svc, store := newTestService(t)
	store.addCode("FRIEND25", true)
	ctx := context.Background()

	pending := svc.MarkPending(ctx, "FRIEND25", janeAnswers(), "")
	require.True(t, pending.Success)

	res := svc.Enroll(ctx, EnrollRequest{
		Code:          "FRIEND25",
		PendingUserID: pending.UserID,
		Registration:  Registration{Name: "Jane Doe", Username: "jane", Email: "jane@example.com", Password: "s3cret-pass"},
	})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, pending.UserID, res.UserID)
	assert.Equal(t, MemberHome, res.Redirect)

	user := store.user(res.UserID)
	assert.True(t, user.HasCredentials())
	assert.True(t, user.IsPremium)
	assert.Equal(t, "jane@example.com", user.Email)

	doc := store.doc("FRIEND25")
	assert.Equal(t, 0, doc.Count(ledger.PendingCount))
	assert.Equal(t, 1, doc.Count(ledger.PaidCount))

	again := svc.Enroll(ctx, EnrollRequest{
		Code:          "FRIEND25",
		PendingUserID: pending.UserID,
		Registration:  Registration{Name: "Jane Doe", Username: "jane-two", Email: "jane@example.com", Password: "s3cret-pass"},
	})
	assert.Equal(t, MsgAlreadyRegistered, again.Error)
}

func TestEnroll_ResumesAfterFailedLedgerCommit(t *testing.T) {
	svc, store := newTestService(t)
	store.addCode("FRIEND25", true)
	ctx := context.Background()

	pending := svc.MarkPending(ctx, "FRIEND25", janeAnswers(), "")
	require.True(t, pending.Success)

	req := EnrollRequest{
		Code:          "FRIEND25",
		PendingUserID: pending.UserID,
		Registration:  Registration{Name: "Jane Doe", Username: "jane", Email: "jane@example.com", Password: "s3cret-pass"},
	}
	store.failNext = errors.New("timeout")
	first := svc.Enroll(ctx, req)
	assert.False(t, first.Success)
	assert.Equal(t, MsgPaidFailed, first.Error)
	assert.True(t, store.user(pending.UserID).HasCredentials())
	assert.Equal(t, 1, store.doc("FRIEND25").Count(ledger.PendingCount))

	// wrong password cannot take over the stored account
	wrong := req
	wrong.Password = "other-pass"
	assert.Equal(t, MsgAlreadyRegistered, svc.Enroll(ctx, wrong).Error)

	retry := svc.Enroll(ctx, req)
	require.True(t, retry.Success, retry.Error)
	assert.Equal(t, pending.UserID, retry.UserID)

	doc := store.doc("FRIEND25")
	assert.Equal(t, 0, doc.Count(ledger.PendingCount))
	assert.Equal(t, 1, doc.Count(ledger.PaidCount))
	assert.True(t, doc.Contains(ledger.PaidUsers, pending.UserID))
	assert.False(t, doc.Contains(ledger.PendingUsers, pending.UserID))

	assert.Equal(t, MsgAlreadyRegistered, svc.Enroll(ctx, req).Error)
}

func TestEnroll_UnknownCodeWritesNothing(t *testing.T) {
	svc, store := newTestService(t)

	res := svc.Enroll(context.Background(), EnrollRequest{
		Code:         "NOPE",
		Registration: Registration{Name: "Jane", Username: "jane", Email: "jane@example.com", Password: "s3cret-pass"},
	})
	assert.Equal(t, MsgUnknownReferral, res.Error)
	assert.Zero(t, store.userCount())
}

func TestExportCSVAndAudit(t *testing.T) {
	svc, store := newTestService(t)
	doc := store.addCode("FRIEND25", true)
	ctx := context.Background()

	a := svc.MarkPending(ctx, "FRIEND25", Answers{{Key: "q1", Value: "Ann Lee"}}, "")
	b := svc.MarkPending(ctx, "FRIEND25", Answers{{Key: "q1", Value: "Bob Ray"}, {Key: "q2", Value: "bob@example.com"}}, "")
	require.True(t, a.Success)
	require.True(t, b.Success)
	require.True(t, svc.MarkPaid(ctx, "FRIEND25", Identity{}, nil, b.UserID).Success)

	var buf bytes.Buffer
	require.NoError(t, svc.ExportCSV(ctx, doc.ID, &buf))
	assert.Equal(t, "name,email,phone,status\nAnn Lee,,,pending\nBob Ray,bob@example.com,,paid\n", buf.String())

	assert.ErrorIs(t, svc.ExportCSV(ctx, "missing", &buf), ErrReferralNotFound)

	drifts, err := svc.Audit(ctx)
	require.NoError(t, err)
	assert.Empty(t, drifts)

	// simulate a counter edited out of band
	store.mu.Lock()
	d := store.docs[doc.ID]
	d.Counters[ledger.PaidCount] = 5
	store.docs[doc.ID] = d
	store.mu.Unlock()

	drifts, err = svc.Audit(ctx)
	require.NoError(t, err)
	require.Len(t, drifts, 1)
	assert.Equal(t, ledger.PaidUsers, drifts[0].List)
	assert.Equal(t, 5, drifts[0].Counter)
	assert.Equal(t, 1, drifts[0].Members)
}

func TestResultJSONShape(t *testing.T) {
	b, err := json.Marshal(PendingResult{Success: true, UserID: "u1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"userId":"u1"}`, string(b))
}

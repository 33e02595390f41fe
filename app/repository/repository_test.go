package repository

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/MemberGate/app/models"
	"github.com/ManuelReschke/MemberGate/internal/pkg/database"
	"github.com/ManuelReschke/MemberGate/internal/pkg/ledger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.OpenSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func createLead(t *testing.T, repos *Repositories, name string) *models.User {
	t.Helper()
	u := &models.User{Name: name, Email: strings.ToLower(name) + "@example.com"}
	require.NoError(t, repos.User.Create(u))
	return u
}

func createCode(t *testing.T, repos *Repositories, code string) *models.ReferralCode {
	t.Helper()
	rc := &models.ReferralCode{Code: code, IsActive: true}
	require.NoError(t, repos.Referral.Create(rc))
	return rc
}

func pendingPatch(id, userID string) *ledger.Patch {
	return ledger.NewPatch(id).
		SetIfMissing(ledger.PendingUsers).
		Append(ledger.PendingUsers, userID).
		Inc(ledger.PendingCount, 1)
}

func paidPatch(id, userID string) *ledger.Patch {
	return ledger.NewPatch(id).
		Unset(ledger.PendingUsers, userID).
		Dec(ledger.PendingCount, 1).
		SetIfMissing(ledger.PaidUsers).
		Append(ledger.PaidUsers, userID).
		Inc(ledger.PaidCount, 1)
}

func TestReferralRepository_CreateUppercasesCode(t *testing.T) {
	repos := NewRepositories(newTestDB(t))
	createCode(t, repos, " friend25 ")

	rc, err := repos.Referral.GetByCode("FRIEND25")
	require.NoError(t, err)
	assert.Equal(t, "FRIEND25", rc.Code)
	assert.True(t, rc.IsActive)
	assert.Zero(t, rc.PendingCount)
}

func TestReferralRepository_CommitPendingThenPaid(t *testing.T) {
	repos := NewRepositories(newTestDB(t))
	rc := createCode(t, repos, "FRIEND25")
	lead := createLead(t, repos, "Alice")

	require.NoError(t, repos.Referral.CommitPatch(pendingPatch(rc.ID, lead.ID)))

	got, err := repos.Referral.GetByCode("FRIEND25")
	require.NoError(t, err)
	doc := got.Document()
	assert.Equal(t, 1, doc.Count(ledger.PendingCount))
	assert.True(t, doc.Contains(ledger.PendingUsers, lead.ID))
	assert.NoError(t, doc.Consistent())

	require.NoError(t, repos.Referral.CommitPatch(paidPatch(rc.ID, lead.ID)))

	got, err = repos.Referral.GetWithMembers(rc.ID)
	require.NoError(t, err)
	doc = got.Document()
	assert.Equal(t, 0, doc.Count(ledger.PendingCount))
	assert.Equal(t, 1, doc.Count(ledger.PaidCount))
	assert.False(t, doc.Contains(ledger.PendingUsers, lead.ID))
	assert.True(t, doc.Contains(ledger.PaidUsers, lead.ID))
	assert.NoError(t, doc.Consistent())

	paid := got.Members(ledger.PaidUsers)
	require.Len(t, paid, 1)
	require.NotNil(t, paid[0].User)
	assert.Equal(t, "Alice", paid[0].User.Name)
}

func TestReferralRepository_FailedPatchRollsBack(t *testing.T) {
	repos := NewRepositories(newTestDB(t))
	rc := createCode(t, repos, "FRIEND25")
	lead := createLead(t, repos, "Bob")

	// not pending yet, so the unset fails after nothing was written
	err := repos.Referral.CommitPatch(paidPatch(rc.ID, lead.ID))
	assert.ErrorIs(t, err, ledger.ErrMissingReference)

	require.NoError(t, repos.Referral.CommitPatch(pendingPatch(rc.ID, lead.ID)))

	// appending the same user again fails on the unique index; the
	// counter increment queued before it must not survive
	bad := ledger.NewPatch(rc.ID).
		Inc(ledger.PendingCount, 1).
		Append(ledger.PendingUsers, lead.ID)
	assert.Error(t, repos.Referral.CommitPatch(bad))

	got, err := repos.Referral.GetByCode("FRIEND25")
	require.NoError(t, err)
	assert.Equal(t, 1, got.PendingCount)
	assert.Len(t, got.Members(ledger.PendingUsers), 1)
	assert.NoError(t, got.Document().Consistent())
}

func TestReferralRepository_ConcurrentCommits(t *testing.T) {
	repos := NewRepositories(newTestDB(t))
	rc := createCode(t, repos, "FRIEND25")

	const n = 20
	leads := make([]*models.User, n)
	for i := range leads {
		leads[i] = createLead(t, repos, fmt.Sprintf("Lead%d", i))
	}

	start := make(chan struct{})
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i, lead := range leads {
		wg.Add(1)
		go func(i int, userID string) {
			defer wg.Done()
			<-start
			errs[i] = repos.Referral.CommitPatch(pendingPatch(rc.ID, userID))
		}(i, lead.ID)
	}
	close(start)
	wg.Wait()
	for _, err := range errs {
		assert.NoError(t, err)
	}

	got, err := repos.Referral.GetWithMembers(rc.ID)
	require.NoError(t, err)
	assert.Equal(t, n, got.PendingCount)
	assert.Len(t, got.Members(ledger.PendingUsers), n)
	assert.NoError(t, got.Document().Consistent())

	// the same lead converted twice at once moves exactly once
	target := leads[0].ID
	start = make(chan struct{})
	moves := make([]error, 2)
	for i := range moves {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			moves[i] = repos.Referral.CommitPatch(paidPatch(rc.ID, target))
		}(i)
	}
	close(start)
	wg.Wait()

	succeeded := 0
	for _, err := range moves {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ledger.ErrMissingReference)
	}
	assert.Equal(t, 1, succeeded)

	got, err = repos.Referral.GetWithMembers(rc.ID)
	require.NoError(t, err)
	assert.Equal(t, n-1, got.PendingCount)
	assert.Equal(t, 1, got.PaidCount)
	assert.Len(t, got.Members(ledger.PendingUsers), n-1)
	assert.Len(t, got.Members(ledger.PaidUsers), 1)
	assert.NoError(t, got.Document().Consistent())
}

func TestReferralRepository_DecNeverGoesNegative(t *testing.T) {
	repos := NewRepositories(newTestDB(t))
	rc := createCode(t, repos, "FRIEND25")

	err := repos.Referral.CommitPatch(ledger.NewPatch(rc.ID).Dec(ledger.PaidCount, 1))
	assert.ErrorIs(t, err, ledger.ErrNegativeCounter)

	err = repos.Referral.CommitPatch(ledger.NewPatch(rc.ID))
	assert.ErrorIs(t, err, ledger.ErrEmptyPatch)
}

func TestReferralRepository_TotalsAndActive(t *testing.T) {
	repos := NewRepositories(newTestDB(t))
	a := createCode(t, repos, "ALPHA")
	b := createCode(t, repos, "BETA")

	for _, name := range []string{"One", "Two"} {
		lead := createLead(t, repos, name)
		require.NoError(t, repos.Referral.CommitPatch(pendingPatch(a.ID, lead.ID)))
	}
	lead := createLead(t, repos, "Three")
	require.NoError(t, repos.Referral.CommitPatch(pendingPatch(b.ID, lead.ID)))
	require.NoError(t, repos.Referral.CommitPatch(paidPatch(b.ID, lead.ID)))

	require.NoError(t, repos.Referral.SetActive(b.ID, false))
	assert.ErrorIs(t, repos.Referral.SetActive("missing", true), gorm.ErrRecordNotFound)

	totals, err := repos.Referral.Totals()
	require.NoError(t, err)
	assert.Equal(t, int64(2), totals.Codes)
	assert.Equal(t, int64(1), totals.Active)
	assert.Equal(t, int64(2), totals.Pending)
	assert.Equal(t, int64(1), totals.Paid)

	codes, err := repos.Referral.List()
	require.NoError(t, err)
	require.Len(t, codes, 2)
	assert.Equal(t, "ALPHA", codes[0].Code)
}

func TestUserRepository_LookupAndProvider(t *testing.T) {
	repos := NewRepositories(newTestDB(t))
	u := createLead(t, repos, "Carol")
	u.SetUsername("carol")
	require.NoError(t, repos.User.Update(u))

	byMail, err := repos.User.GetByEmail("  CAROL@example.com ")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byMail.ID)

	byName, err := repos.User.GetByUsername("carol")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byName.ID)

	dup := &models.User{Name: "Other"}
	dup.SetUsername("carol")
	assert.ErrorIs(t, repos.User.Create(dup), gorm.ErrDuplicatedKey)

	require.NoError(t, repos.User.LinkProvider(&models.ProviderAccount{UserID: u.ID, Provider: "google", ProviderUserID: "g-1", AccessToken: "a"}))
	require.NoError(t, repos.User.LinkProvider(&models.ProviderAccount{UserID: u.ID, Provider: "google", ProviderUserID: "g-1", AccessToken: "b"}))
	linked, err := repos.User.GetByProvider("google", "g-1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, linked.ID)

	count, err := repos.User.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestEducationRepository_Lookups(t *testing.T) {
	repos := NewRepositories(newTestDB(t))
	basics := &models.Category{Title: "Basics", Slug: "basics", OrderRank: 2}
	advanced := &models.Category{Title: "Advanced", Slug: "advanced", OrderRank: 1}
	require.NoError(t, repos.Education.CreateCategory(basics))
	require.NoError(t, repos.Education.CreateCategory(advanced))
	require.NoError(t, repos.Education.CreateLesson(&models.Lesson{Title: "Intro", Slug: "intro", CategoryID: basics.ID}))
	require.NoError(t, repos.Education.CreateLesson(&models.Lesson{Title: "Intro", Slug: "intro", CategoryID: advanced.ID}))

	cats, err := repos.Education.Categories()
	require.NoError(t, err)
	require.Len(t, cats, 2)
	assert.Equal(t, "advanced", cats[0].Slug)

	lesson, err := repos.Education.LessonBySlug("basics", "intro")
	require.NoError(t, err)
	assert.Equal(t, basics.ID, lesson.CategoryID)
	require.NotNil(t, lesson.Category)
	assert.Equal(t, "Basics", lesson.Category.Title)

	_, err = repos.Education.LessonBySlug("basics", "missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	_, err = repos.Education.LessonsByCategory("nope")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestCommentRepository_ModerationAndOrder(t *testing.T) {
	repos := NewRepositories(newTestDB(t))
	cat := &models.Category{Title: "Basics", Slug: "basics"}
	require.NoError(t, repos.Education.CreateCategory(cat))
	lesson := &models.Lesson{Title: "Intro", Slug: "intro", CategoryID: cat.ID}
	require.NoError(t, repos.Education.CreateLesson(lesson))

	first := &models.Comment{LessonID: &lesson.ID, UserID: "u1", Body: "first"}
	second := &models.Comment{LessonID: &lesson.ID, UserID: "u2", Body: "second"}
	general := &models.Comment{UserID: "u1", Body: "hello"}
	for _, c := range []*models.Comment{first, second, general} {
		require.NoError(t, repos.Comment.Create(c))
	}

	visible, err := repos.Comment.ForLesson(lesson.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, visible)

	require.NoError(t, repos.Comment.SetApproved(first.ID, true))
	require.NoError(t, repos.Comment.SetApproved(second.ID, true))
	require.NoError(t, repos.Comment.SetApproved(general.ID, true))
	require.NoError(t, repos.Comment.SetPinned(first.ID, true))

	visible, err = repos.Comment.ForLesson(lesson.ID, 10)
	require.NoError(t, err)
	require.Len(t, visible, 2)
	assert.Equal(t, "first", visible[0].Body)

	gen, err := repos.Comment.General(10)
	require.NoError(t, err)
	require.Len(t, gen, 1)
	assert.Equal(t, "hello", gen[0].Body)

	assert.ErrorIs(t, repos.Comment.SetApproved(999, true), gorm.ErrRecordNotFound)
	assert.Error(t, repos.Comment.Create(&models.Comment{UserID: "u1"}))
}

func TestListingRepository_LifeCycle(t *testing.T) {
	repos := NewRepositories(newTestDB(t))
	seller := createLead(t, repos, "Dave")
	other := createLead(t, repos, "Eve")

	plain := &models.Listing{Title: "Desk", PriceCents: 5000, SellerID: seller.ID,
		Images: []models.ListingImage{{ObjectKey: "a.jpg", URL: "/uploads/a.jpg"}}}
	verified := &models.Listing{Title: "Chair", PriceCents: 2500, SellerID: other.ID, IsVerified: true}
	require.NoError(t, repos.Listing.Create(plain))
	require.NoError(t, repos.Listing.Create(verified))
	assert.Error(t, repos.Listing.Create(&models.Listing{Title: "Free", SellerID: seller.ID}))

	active, err := repos.Listing.Active(0, 10)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "Chair", active[0].Title)

	require.NoError(t, repos.Listing.SetImageThumbnail(plain.Images[0].ID, "/uploads/a_thumb.webp"))
	got, err := repos.Listing.GetByID(plain.ID)
	require.NoError(t, err)
	assert.Equal(t, "/uploads/a_thumb.webp", got.PreviewURL())
	assert.Equal(t, "Dave", got.Seller.Name)

	assert.ErrorIs(t, repos.Listing.MarkSold(plain.ID, other.ID), gorm.ErrRecordNotFound)
	require.NoError(t, repos.Listing.MarkSold(plain.ID, seller.ID))

	count, err := repos.Listing.CountActive()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	mine, err := repos.Listing.CountActiveBySeller(seller.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), mine)
	theirs, err := repos.Listing.CountActiveBySeller(other.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), theirs)
}

func TestContactRepository_CreateAndList(t *testing.T) {
	repos := NewRepositories(newTestDB(t))
	require.NoError(t, repos.Contact.Create(&models.ContactMessage{
		Name: "Frank", Email: "frank@example.com", Subject: "Hi", Message: "Question",
	}))
	assert.Error(t, repos.Contact.Create(&models.ContactMessage{Name: "NoMail"}))

	msgs, err := repos.Contact.List(0, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	count, err := repos.Contact.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestFactory_WriteRepositories(t *testing.T) {
	db := newTestDB(t)

	assert.Nil(t, NewFactory(db, nil).GetWriteRepositories())

	shared := NewFactory(db, db)
	assert.Same(t, shared.GetRepositories(), shared.GetWriteRepositories())
}

func TestReferralRepository_ActiveLookupAndMemberships(t *testing.T) {
	repos := NewRepositories(newTestDB(t))
	rc := createCode(t, repos, "GAMMA")
	lead := createLead(t, repos, "Grace")
	require.NoError(t, repos.Referral.CommitPatch(pendingPatch(rc.ID, lead.ID)))

	members, err := repos.Referral.Memberships(rc.ID, ledger.PendingUsers)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "Grace", members[0].User.Name)

	doc, err := repos.Referral.Document(rc.ID)
	require.NoError(t, err)
	assert.Equal(t, "GAMMA", doc.Code)
	assert.Empty(t, doc.Drifts())

	require.NoError(t, repos.Referral.SetActive(rc.ID, false))
	_, err = repos.Referral.GetActiveByCode("GAMMA")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

package repository

import (
	"gorm.io/gorm"

	"github.com/ManuelReschke/MemberGate/app/models"
	"github.com/ManuelReschke/MemberGate/internal/pkg/ledger"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id string) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByUsername(username string) (*models.User, error)
	GetByProvider(provider, providerUserID string) (*models.User, error)
	LinkProvider(account *models.ProviderAccount) error
	Update(user *models.User) error
	TouchLastLogin(id string) error
	List(offset, limit int) ([]models.User, error)
	Count() (int64, error)
	CountPremium() (int64, error)
}

// ReferralRepository defines the ledger operations on referral codes
type ReferralRepository interface {
	Create(code *models.ReferralCode) error
	GetByID(id string) (*models.ReferralCode, error)
	GetByCode(code string) (*models.ReferralCode, error)
	GetActiveByCode(code string) (*models.ReferralCode, error)
	Document(id string) (ledger.Document, error)
	Memberships(id string, list ledger.List) ([]models.ReferralMembership, error)
	GetWithMembers(id string) (*models.ReferralCode, error)
	List() ([]models.ReferralCode, error)
	SetActive(id string, active bool) error
	CommitPatch(patch *ledger.Patch) error
	Totals() (*ReferralTotals, error)
}

// QuestionnaireRepository defines access to the questionnaire pages
type QuestionnaireRepository interface {
	Pages() ([]models.QuestionnairePage, error)
	Create(page *models.QuestionnairePage) error
}

// EducationRepository defines read access to the education hub
type EducationRepository interface {
	Categories() ([]models.Category, error)
	CategoryBySlug(slug string) (*models.Category, error)
	LessonsByCategory(categorySlug string) ([]models.Lesson, error)
	LessonBySlug(categorySlug, lessonSlug string) (*models.Lesson, error)
	CreateCategory(category *models.Category) error
	CreateLesson(lesson *models.Lesson) error
}

// CommentRepository defines the interface for comment operations
type CommentRepository interface {
	Create(comment *models.Comment) error
	ForLesson(lessonID uint, limit int) ([]models.Comment, error)
	General(limit int) ([]models.Comment, error)
	Recent(limit int) ([]models.Comment, error)
	SetApproved(id uint, approved bool) error
	SetPinned(id uint, pinned bool) error
}

// ListingRepository defines the marketplace operations
type ListingRepository interface {
	Create(listing *models.Listing) error
	GetByID(id uint) (*models.Listing, error)
	Active(offset, limit int) ([]models.Listing, error)
	CountActive() (int64, error)
	CountActiveBySeller(sellerID string) (int64, error)
	MarkSold(id uint, sellerID string) error
	SetImageThumbnail(imageID uint, thumbnailURL string) error
}

// ContactRepository stores contact form submissions
type ContactRepository interface {
	Create(message *models.ContactMessage) error
	List(offset, limit int) ([]models.ContactMessage, error)
	Count() (int64, error)
}

// SettingRepository defines the interface for application settings
type SettingRepository interface {
	Get() (*models.AppSettings, error)
	Save(settings *models.AppSettings) error
	GetValue(key string) (string, error)
	SetValue(key, value string) error
}

// ReferralTotals sums the ledger counters over every referral code.
type ReferralTotals struct {
	Codes   int64
	Active  int64
	Pending int64
	Paid    int64
}

// Repositories struct holds all repository instances
type Repositories struct {
	User          UserRepository
	Referral      ReferralRepository
	Questionnaire QuestionnaireRepository
	Education     EducationRepository
	Comment       CommentRepository
	Listing       ListingRepository
	Contact       ContactRepository
	Setting       SettingRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:          NewUserRepository(db),
		Referral:      NewReferralRepository(db),
		Questionnaire: NewQuestionnaireRepository(db),
		Education:     NewEducationRepository(db),
		Comment:       NewCommentRepository(db),
		Listing:       NewListingRepository(db),
		Contact:       NewContactRepository(db),
		Setting:       NewSettingRepository(db),
	}
}

package repository

import (
	"sync"

	"gorm.io/gorm"
)

// Factory manages repository instances and ensures they are singletons
type Factory struct {
	db      *gorm.DB
	writeDB *gorm.DB
	repos   *Repositories
	writer  *Repositories
	once    sync.Once
}

// NewFactory creates a new repository factory. writeDB may be nil when the
// process has no write credentials.
func NewFactory(db, writeDB *gorm.DB) *Factory {
	return &Factory{
		db:      db,
		writeDB: writeDB,
	}
}

// GetRepositories returns a singleton instance of all repositories
func (f *Factory) GetRepositories() *Repositories {
	f.init()
	return f.repos
}

// GetWriteRepositories returns repositories bound to the write connection,
// or nil when writes are not configured.
func (f *Factory) GetWriteRepositories() *Repositories {
	f.init()
	return f.writer
}

func (f *Factory) init() {
	f.once.Do(func() {
		f.repos = NewRepositories(f.db)
		switch {
		case f.writeDB == nil:
			f.writer = nil
		case f.writeDB == f.db:
			f.writer = f.repos
		default:
			f.writer = NewRepositories(f.writeDB)
		}
	})
}

// GetUserRepository returns the user repository instance
func (f *Factory) GetUserRepository() UserRepository {
	return f.GetRepositories().User
}

// GetReferralRepository returns the referral repository instance
func (f *Factory) GetReferralRepository() ReferralRepository {
	return f.GetRepositories().Referral
}

// GetEducationRepository returns the education repository instance
func (f *Factory) GetEducationRepository() EducationRepository {
	return f.GetRepositories().Education
}

// GetCommentRepository returns the comment repository instance
func (f *Factory) GetCommentRepository() CommentRepository {
	return f.GetRepositories().Comment
}

// GetListingRepository returns the listing repository instance
func (f *Factory) GetListingRepository() ListingRepository {
	return f.GetRepositories().Listing
}

// GetSettingRepository returns the setting repository instance
func (f *Factory) GetSettingRepository() SettingRepository {
	return f.GetRepositories().Setting
}

// Global factory instance
var globalFactory *Factory
var factoryOnce sync.Once

// InitializeFactory initializes the global repository factory
func InitializeFactory(db, writeDB *gorm.DB) {
	factoryOnce.Do(func() {
		globalFactory = NewFactory(db, writeDB)
	})
}

// GetGlobalFactory returns the global repository factory instance
func GetGlobalFactory() *Factory {
	if globalFactory == nil {
		panic("Repository factory not initialized. Call InitializeFactory first.")
	}
	return globalFactory
}

// GetGlobalRepositories returns the global repositories instance
func GetGlobalRepositories() *Repositories {
	return GetGlobalFactory().GetRepositories()
}

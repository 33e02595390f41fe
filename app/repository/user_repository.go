package repository

import (
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/ManuelReschke/MemberGate/app/models"
)

// userRepository implements the UserRepository interface
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository instance
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// Create creates a new user in the database
func (r *userRepository) Create(user *models.User) error {
	return r.db.Create(user).Error
}

// GetByID retrieves a user by their ID
func (r *userRepository) GetByID(id string) (*models.User, error) {
	var user models.User
	err := r.db.Where("id = ?", id).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmail retrieves the most recent user with the given email address.
// Leads may share an address, so the newest record wins.
func (r *userRepository) GetByEmail(email string) (*models.User, error) {
	var user models.User
	err := r.db.Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).
		Order("created_at DESC").First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByUsername retrieves a user by their login name
func (r *userRepository) GetByUsername(username string) (*models.User, error) {
	var user models.User
	err := r.db.Where("username = ?", strings.TrimSpace(username)).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByProvider resolves a linked OAuth identity to its user
func (r *userRepository) GetByProvider(provider, providerUserID string) (*models.User, error) {
	var account models.ProviderAccount
	err := r.db.Where("provider = ? AND provider_user_id = ?", provider, providerUserID).First(&account).Error
	if err != nil {
		return nil, err
	}
	return r.GetByID(account.UserID)
}

// LinkProvider stores or refreshes an OAuth identity
func (r *userRepository) LinkProvider(account *models.ProviderAccount) error {
	var existing models.ProviderAccount
	err := r.db.Where("provider = ? AND provider_user_id = ?", account.Provider, account.ProviderUserID).First(&existing).Error
	if err == gorm.ErrRecordNotFound {
		return r.db.Create(account).Error
	}
	if err != nil {
		return err
	}
	existing.AccessToken = account.AccessToken
	existing.RefreshToken = account.RefreshToken
	existing.ExpiresAt = account.ExpiresAt
	return r.db.Save(&existing).Error
}

// Update updates an existing user in the database
func (r *userRepository) Update(user *models.User) error {
	return r.db.Save(user).Error
}

// TouchLastLogin stamps the login time without touching other columns
func (r *userRepository) TouchLastLogin(id string) error {
	return r.db.Model(&models.User{}).Where("id = ?", id).UpdateColumn("last_login_at", time.Now()).Error
}

// List retrieves users with pagination, newest first
func (r *userRepository) List(offset, limit int) ([]models.User, error) {
	var users []models.User
	err := r.db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&users).Error
	return users, err
}

// Count returns the total number of users
func (r *userRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.User{}).Count(&count).Error
	return count, err
}

// CountPremium returns the number of paid members
func (r *userRepository) CountPremium() (int64, error) {
	var count int64
	err := r.db.Model(&models.User{}).Where("is_premium = ?", true).Count(&count).Error
	return count, err
}

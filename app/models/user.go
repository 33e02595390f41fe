package models

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	ROLE_USER  = "user"
	ROLE_ADMIN = "admin"

	PACKAGE_STANDARD = "standard"
	PACKAGE_PREMIUM  = "premium"
)

// PasswordCost matches the cost used by existing member hashes.
const PasswordCost = 10

// User is a lead, a customer or both. Leads carry no username or password.
type User struct {
	ID                       string     `gorm:"primaryKey;type:char(36)" json:"id"`
	Name                     string     `gorm:"type:varchar(150)" json:"name" validate:"required,min=1,max=150"`
	Username                 *string    `gorm:"uniqueIndex;type:varchar(100)" json:"username,omitempty" validate:"omitempty,min=3,max=100"`
	Email                    string     `gorm:"index;type:varchar(200)" json:"email" validate:"omitempty,email,max=200"`
	PhoneNumber              string     `gorm:"type:varchar(32)" json:"phone_number"`
	PasswordHash             string     `gorm:"type:text" json:"-"`
	AuthProviderID           string     `gorm:"type:varchar(191)" json:"-"`
	Role                     string     `gorm:"type:varchar(50);default:'user'" json:"role" validate:"omitempty,oneof=user admin"`
	Package                  string     `gorm:"type:varchar(20);default:'standard'" json:"package" validate:"omitempty,oneof=standard premium"`
	IsPremium                bool       `gorm:"not null" json:"is_premium"`
	QuestionnaireAnswers     string     `gorm:"type:text" json:"questionnaire_answers,omitempty"`
	QuestionnaireCompletedAt *time.Time `json:"questionnaire_completed_at,omitempty"`
	RegisteredAt             *time.Time `json:"registered_at,omitempty"`
	LastLoginAt              *time.Time `json:"last_login_at,omitempty"`
	CreatedAt                time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt                time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Package == "" {
		u.Package = PACKAGE_STANDARD
	}
	if u.Role == "" {
		u.Role = ROLE_USER
	}
	return nil
}

func (u *User) Validate() error {
	v := validator.New()

	return v.Struct(u)
}

// UsernameValue returns the username or an empty string for leads.
func (u *User) UsernameValue() string {
	if u.Username == nil {
		return ""
	}
	return *u.Username
}

// SetUsername stores a trimmed username; empty clears it.
func (u *User) SetUsername(username string) {
	username = strings.TrimSpace(username)
	if username == "" {
		u.Username = nil
		return
	}
	u.Username = &username
}

func (u *User) IsAdmin() bool {
	return u.Role == ROLE_ADMIN
}

// HasCredentials reports whether the user can sign in with a password.
func (u *User) HasCredentials() bool {
	return u.Username != nil && u.PasswordHash != ""
}

// MarkPremium promotes the user to the paid package.
func (u *User) MarkPremium(now time.Time) {
	u.IsPremium = true
	u.Package = PACKAGE_PREMIUM
	u.RegisteredAt = &now
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)

	return string(bytes), err
}

// CheckPasswordHash compares the given password with the stored hash.
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))

	return err == nil
}

// CheckPassword verifies if the provided password matches the user's stored password
func (u *User) CheckPassword(password string) bool {
	if u.PasswordHash == "" {
		return false
	}
	return CheckPasswordHash(password, u.PasswordHash)
}

// SetPassword hashes and sets a new password for the user
func (u *User) SetPassword(password string) error {
	hashedPassword, err := HashPassword(password)
	if err != nil {
		return err
	}
	u.PasswordHash = hashedPassword
	return nil
}

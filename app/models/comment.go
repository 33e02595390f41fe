package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// Comment is a member comment, optionally attached to a lesson.
type Comment struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	LessonID   *uint          `gorm:"index" json:"lesson_id,omitempty"`
	Lesson     *Lesson        `gorm:"foreignKey:LessonID" json:"lesson,omitempty"`
	UserID     string         `gorm:"type:char(36);index" json:"user_id"`
	AuthorName string         `gorm:"type:varchar(150)" json:"author"`
	Body       string         `gorm:"type:text" json:"comment" validate:"required,min=1,max=5000"`
	Approved   bool           `gorm:"not null;index" json:"approved"`
	Pinned     bool           `gorm:"not null" json:"pinned"`
	Private    bool           `gorm:"not null" json:"private"`
	Keywords   string         `gorm:"type:varchar(255)" json:"keywords"`
	CreatedAt  time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}

func (c *Comment) Validate() error {
	return validator.New().Struct(c)
}

// VisibleTo reports whether a viewer may read the comment.
func (c *Comment) VisibleTo(userID string, isAdmin bool) bool {
	if !c.Approved {
		return isAdmin
	}
	if c.Private {
		return isAdmin || (userID != "" && c.UserID == userID)
	}
	return true
}

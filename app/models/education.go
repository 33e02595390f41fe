package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Category groups lessons in the education hub.
type Category struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"type:varchar(150);not null" json:"title" validate:"required,max=150"`
	Slug        string    `gorm:"uniqueIndex;type:varchar(150);not null" json:"slug" validate:"required,max=150"`
	Description string    `gorm:"type:text" json:"description"`
	OrderRank   int       `gorm:"not null;default:0" json:"order_rank" validate:"min=0"`
	Lessons     []Lesson  `gorm:"foreignKey:CategoryID" json:"lessons,omitempty"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Lesson is a video lesson with optional rich text below the player.
type Lesson struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Title         string    `gorm:"type:varchar(200);not null" json:"title" validate:"required,max=200"`
	Slug          string    `gorm:"type:varchar(200);not null;uniqueIndex:idx_lesson_category_slug" json:"slug" validate:"required,max=200"`
	CategoryID    uint      `gorm:"not null;uniqueIndex:idx_lesson_category_slug" json:"category_id"`
	Category      *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	MuxPlaybackID string    `gorm:"type:varchar(100)" json:"mux_playback_id"`
	Content       string    `gorm:"type:text" json:"content"`
	ViewCount     int64     `gorm:"not null;default:0" json:"view_count"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (c *Category) Validate() error {
	return validator.New().Struct(c)
}

func (l *Lesson) Validate() error {
	return validator.New().Struct(l)
}

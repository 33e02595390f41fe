package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

type ContactMessage struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(150);not null" json:"name" validate:"required,max=150"`
	Email     string    `gorm:"type:varchar(200);not null" json:"email" validate:"required,email,max=200"`
	Subject   string    `gorm:"type:varchar(200);not null" json:"subject" validate:"required,max=200"`
	Message   string    `gorm:"type:text;not null" json:"message" validate:"required,max=5000"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (m *ContactMessage) Validate() error {
	return validator.New().Struct(m)
}

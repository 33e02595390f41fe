package repository

import (
	"gorm.io/gorm"

	"github.com/ManuelReschke/MemberGate/app/models"
)

type contactRepository struct {
	db *gorm.DB
}

// NewContactRepository creates a new contact repository instance
func NewContactRepository(db *gorm.DB) ContactRepository {
	return &contactRepository{db: db}
}

func (r *contactRepository) Create(message *models.ContactMessage) error {
	if err := message.Validate(); err != nil {
		return err
	}
	return r.db.Create(message).Error
}

// List returns submissions newest first
func (r *contactRepository) List(offset, limit int) ([]models.ContactMessage, error) {
	var messages []models.ContactMessage
	err := r.db.Order("created_at DESC, id DESC").Offset(offset).Limit(limit).Find(&messages).Error
	return messages, err
}

func (r *contactRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.ContactMessage{}).Count(&count).Error
	return count, err
}

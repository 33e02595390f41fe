package repository

import (
	"gorm.io/gorm"

	"github.com/ManuelReschke/MemberGate/app/models"
)

type questionnaireRepository struct {
	db *gorm.DB
}

// NewQuestionnaireRepository creates a new questionnaire repository instance
func NewQuestionnaireRepository(db *gorm.DB) QuestionnaireRepository {
	return &questionnaireRepository{db: db}
}

// Pages returns the questionnaire in display order
func (r *questionnaireRepository) Pages() ([]models.QuestionnairePage, error) {
	var pages []models.QuestionnairePage
	err := r.db.Order("position ASC, id ASC").Find(&pages).Error
	return pages, err
}

func (r *questionnaireRepository) Create(page *models.QuestionnairePage) error {
	return r.db.Create(page).Error
}

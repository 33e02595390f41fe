package repository

import (
	"gorm.io/gorm"

	"github.com/ManuelReschke/MemberGate/app/models"
)

// educationRepository implements the EducationRepository interface
type educationRepository struct {
	db *gorm.DB
}

// NewEducationRepository creates a new education repository instance
func NewEducationRepository(db *gorm.DB) EducationRepository {
	return &educationRepository{db: db}
}

// Categories returns all categories ordered by their rank
func (r *educationRepository) Categories() ([]models.Category, error) {
	var categories []models.Category
	err := r.db.Order("order_rank ASC, title ASC").Find(&categories).Error
	return categories, err
}

// CategoryBySlug retrieves one category with its lessons
func (r *educationRepository) CategoryBySlug(slug string) (*models.Category, error) {
	var category models.Category
	err := r.db.Preload("Lessons", func(db *gorm.DB) *gorm.DB {
		return db.Order("title ASC")
	}).Where("slug = ?", slug).First(&category).Error
	if err != nil {
		return nil, err
	}
	return &category, nil
}

// LessonsByCategory lists the lessons of a category; an unknown category
// yields gorm.ErrRecordNotFound
func (r *educationRepository) LessonsByCategory(categorySlug string) ([]models.Lesson, error) {
	category, err := r.CategoryBySlug(categorySlug)
	if err != nil {
		return nil, err
	}
	return category.Lessons, nil
}

// LessonBySlug resolves a lesson within its category
func (r *educationRepository) LessonBySlug(categorySlug, lessonSlug string) (*models.Lesson, error) {
	var lesson models.Lesson
	err := r.db.Preload("Category").
		Joins("JOIN categories ON categories.id = lessons.category_id").
		Where("categories.slug = ? AND lessons.slug = ?", categorySlug, lessonSlug).
		First(&lesson).Error
	if err != nil {
		return nil, err
	}
	return &lesson, nil
}

func (r *educationRepository) CreateCategory(category *models.Category) error {
	if err := category.Validate(); err != nil {
		return err
	}
	return r.db.Create(category).Error
}

func (r *educationRepository) CreateLesson(lesson *models.Lesson) error {
	if err := lesson.Validate(); err != nil {
		return err
	}
	return r.db.Create(lesson).Error
}

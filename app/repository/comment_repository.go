package repository

import (
	"gorm.io/gorm"

	"github.com/ManuelReschke/MemberGate/app/models"
)

// commentRepository implements the CommentRepository interface
type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository creates a new comment repository instance
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

// Create stores a comment as given; callers decide on approval
func (r *commentRepository) Create(comment *models.Comment) error {
	if err := comment.Validate(); err != nil {
		return err
	}
	return r.db.Create(comment).Error
}

// ForLesson returns approved comments of a lesson, pinned first then newest
func (r *commentRepository) ForLesson(lessonID uint, limit int) ([]models.Comment, error) {
	var comments []models.Comment
	err := r.db.Where("lesson_id = ? AND approved = ?", lessonID, true).
		Order("pinned DESC, created_at DESC, id DESC").
		Limit(limit).
		Find(&comments).Error
	return comments, err
}

// General returns approved comments that are not attached to a lesson
func (r *commentRepository) General(limit int) ([]models.Comment, error) {
	var comments []models.Comment
	err := r.db.Where("lesson_id IS NULL AND approved = ?", true).
		Order("pinned DESC, created_at DESC, id DESC").
		Limit(limit).
		Find(&comments).Error
	return comments, err
}

// Recent returns the newest comments including unapproved ones, for moderation
func (r *commentRepository) Recent(limit int) ([]models.Comment, error) {
	var comments []models.Comment
	err := r.db.Preload("Lesson").
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&comments).Error
	return comments, err
}

func (r *commentRepository) SetApproved(id uint, approved bool) error {
	return r.setFlag(id, "approved", approved)
}

func (r *commentRepository) SetPinned(id uint, pinned bool) error {
	return r.setFlag(id, "pinned", pinned)
}

func (r *commentRepository) setFlag(id uint, column string, value bool) error {
	var comment models.Comment
	if err := r.db.Where("id = ?", id).First(&comment).Error; err != nil {
		return err
	}
	return r.db.Model(&comment).UpdateColumn(column, value).Error
}

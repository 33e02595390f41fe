package repository

import (
	"gorm.io/gorm"

	"github.com/ManuelReschke/MemberGate/app/models"
)

// listingRepository implements the ListingRepository interface
type listingRepository struct {
	db *gorm.DB
}

// NewListingRepository creates a new listing repository instance
func NewListingRepository(db *gorm.DB) ListingRepository {
	return &listingRepository{db: db}
}

// Create stores a listing together with its images
func (r *listingRepository) Create(listing *models.Listing) error {
	if listing.Status == "" {
		listing.Status = models.LISTING_STATUS_ACTIVE
	}
	if err := listing.Validate(); err != nil {
		return err
	}
	return r.db.Create(listing).Error
}

// GetByID retrieves a listing with seller and images
func (r *listingRepository) GetByID(id uint) (*models.Listing, error) {
	var listing models.Listing
	err := r.withRelations(r.db).Where("id = ?", id).First(&listing).Error
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

// Active returns listings for sale; verified sellers are shown first
func (r *listingRepository) Active(offset, limit int) ([]models.Listing, error) {
	var listings []models.Listing
	err := r.withRelations(r.db).
		Where("status = ?", models.LISTING_STATUS_ACTIVE).
		Order("is_verified DESC, created_at DESC, id DESC").
		Offset(offset).Limit(limit).
		Find(&listings).Error
	return listings, err
}

func (r *listingRepository) CountActive() (int64, error) {
	var count int64
	err := r.db.Model(&models.Listing{}).Where("status = ?", models.LISTING_STATUS_ACTIVE).Count(&count).Error
	return count, err
}

func (r *listingRepository) CountActiveBySeller(sellerID string) (int64, error) {
	var count int64
	err := r.db.Model(&models.Listing{}).
		Where("seller_id = ? AND status = ?", sellerID, models.LISTING_STATUS_ACTIVE).
		Count(&count).Error
	return count, err
}

// MarkSold closes a listing; only its seller may do this
func (r *listingRepository) MarkSold(id uint, sellerID string) error {
	res := r.db.Model(&models.Listing{}).
		Where("id = ? AND seller_id = ? AND status = ?", id, sellerID, models.LISTING_STATUS_ACTIVE).
		UpdateColumn("status", models.LISTING_STATUS_SOLD)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SetImageThumbnail records the generated thumbnail of a listing image
func (r *listingRepository) SetImageThumbnail(imageID uint, thumbnailURL string) error {
	res := r.db.Model(&models.ListingImage{}).Where("id = ?", imageID).UpdateColumn("thumbnail_url", thumbnailURL)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *listingRepository) withRelations(db *gorm.DB) *gorm.DB {
	return db.Preload("Seller").Preload("Images", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC, id ASC")
	})
}

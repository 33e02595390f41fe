package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	LISTING_STATUS_ACTIVE = "active"
	LISTING_STATUS_SOLD   = "sold"
)

// Listing is a peer marketplace item. Price is stored in cents.
type Listing struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Title       string         `gorm:"type:varchar(200);not null" json:"title" validate:"required,min=1,max=200"`
	Description string         `gorm:"type:text" json:"description" validate:"max=5000"`
	PriceCents  int64          `gorm:"not null" json:"price_cents" validate:"gt=0"`
	Status      string         `gorm:"type:varchar(20);not null;index" json:"status" validate:"oneof=active sold"`
	IsVerified  bool           `gorm:"not null" json:"is_verified"`
	SellerID    string         `gorm:"type:char(36);not null;index" json:"seller_id"`
	Seller      *User          `gorm:"foreignKey:SellerID" json:"seller,omitempty"`
	Images      []ListingImage `gorm:"foreignKey:ListingID" json:"images,omitempty"`
	CreatedAt   time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

// ListingImage points at a stored upload and its optional thumbnail.
type ListingImage struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	ListingID    uint      `gorm:"not null;index" json:"listing_id"`
	ObjectKey    string    `gorm:"type:varchar(255);not null" json:"object_key"`
	URL          string    `gorm:"type:varchar(500);not null" json:"url"`
	ThumbnailURL string    `gorm:"type:varchar(500)" json:"thumbnail_url"`
	ContentType  string    `gorm:"type:varchar(50)" json:"content_type"`
	Position     int       `gorm:"not null;default:0" json:"position"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (l *Listing) Validate() error {
	return validator.New().Struct(l)
}

// PreviewURL returns the first thumbnail, falling back to the original.
func (l *Listing) PreviewURL() string {
	if len(l.Images) == 0 {
		return ""
	}
	if l.Images[0].ThumbnailURL != "" {
		return l.Images[0].ThumbnailURL
	}
	return l.Images[0].URL
}

package imageprocessor

import (
	"fmt"
	"time"

	"github.com/ManuelReschke/MemberGate/internal/pkg/cache"
)

// Cache key format for thumbnail status
const ImageStatusKeyFormat = "listing_image:status:%d"

// Status constants for thumbnail generation
const (
	STATUS_PENDING    = "pending"
	STATUS_PROCESSING = "processing"
	STATUS_COMPLETED  = "completed"
	STATUS_FAILED     = "failed"
)

// SetImageStatus sets the thumbnail status of a listing image in the cache
func SetImageStatus(imageID uint, status string) error {
	return cache.Set(fmt.Sprintf(ImageStatusKeyFormat, imageID), status, 24*time.Hour)
}

// GetImageStatus returns the thumbnail status; unknown images report pending
func GetImageStatus(imageID uint) string {
	status, err := cache.Get(fmt.Sprintf(ImageStatusKeyFormat, imageID))
	if err != nil || status == "" {
		return STATUS_PENDING
	}
	return status
}

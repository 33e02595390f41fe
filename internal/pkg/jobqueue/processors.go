package jobqueue

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/MemberGate/app/repository"
	"github.com/ManuelReschke/MemberGate/internal/pkg/imageprocessor"
	"github.com/ManuelReschke/MemberGate/internal/pkg/mail"
	"github.com/ManuelReschke/MemberGate/internal/pkg/objectstore"
)

// Swapped in tests.
var (
	deliverMail   = mail.SendMail
	openStore     = objectstore.Default
	saveThumbnail = func(imageID uint, url string) error {
		repos := repository.GetGlobalFactory().GetWriteRepositories()
		if repos == nil {
			return errors.New("no write connection configured")
		}
		return repos.Listing.SetImageThumbnail(imageID, url)
	}
)

func (q *Queue) processSendMailJob(job *Job) error {
	payload, err := decodePayload[SendMailJobPayload](job.Payload)
	if err != nil {
		return fmt.Errorf("invalid send mail payload: %w", err)
	}
	if payload.To == "" {
		return errors.New("send mail job without recipient")
	}
	return deliverMail(payload.To, payload.Subject, payload.Body)
}

func (q *Queue) processListingThumbnailJob(ctx context.Context, job *Job) error {
	payload, err := decodePayload[ListingThumbnailJobPayload](job.Payload)
	if err != nil {
		return fmt.Errorf("invalid thumbnail payload: %w", err)
	}
	if payload.ImageID == 0 || payload.ObjectKey == "" {
		return errors.New("thumbnail job without image")
	}

	if err := imageprocessor.SetImageStatus(payload.ImageID, imageprocessor.STATUS_PROCESSING); err != nil {
		log.Warnf("[JobQueue] Could not set status for image %d: %v", payload.ImageID, err)
	}
	url, err := generateThumbnail(ctx, openStore(), payload)
	if err != nil {
		_ = imageprocessor.SetImageStatus(payload.ImageID, imageprocessor.STATUS_FAILED)
		return err
	}
	if err := saveThumbnail(payload.ImageID, url); err != nil {
		_ = imageprocessor.SetImageStatus(payload.ImageID, imageprocessor.STATUS_FAILED)
		return fmt.Errorf("failed to store thumbnail url: %w", err)
	}
	return imageprocessor.SetImageStatus(payload.ImageID, imageprocessor.STATUS_COMPLETED)
}

// generateThumbnail reads the original from the store and writes the thumbnail next to it.
func generateThumbnail(ctx context.Context, store objectstore.Store, payload *ListingThumbnailJobPayload) (string, error) {
	if store == nil {
		return "", errors.New("object store not available")
	}
	src, err := store.Open(ctx, payload.ObjectKey)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", payload.ObjectKey, err)
	}
	defer src.Close()

	thumb, err := imageprocessor.MakeThumbnail(src, payload.MaxWidth)
	if err != nil {
		return "", err
	}
	key := objectstore.ThumbnailKey(payload.ObjectKey, thumb.Ext)
	url, err := store.Put(ctx, key, bytes.NewReader(thumb.Data), int64(len(thumb.Data)), thumb.ContentType)
	if err != nil {
		return "", err
	}
	log.Infof("[JobQueue] Thumbnail %dx%d stored at %s", thumb.Width, thumb.Height, key)
	return url, nil
}

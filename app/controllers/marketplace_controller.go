package controllers

import (
	"errors"
	"fmt"
	"math"
	"mime/multipart"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/sujit-baniya/flash"
	"gorm.io/gorm"

	"github.com/ManuelReschke/MemberGate/app/models"
	"github.com/ManuelReschke/MemberGate/internal/pkg/entitlements"
	"github.com/ManuelReschke/MemberGate/internal/pkg/funnel"
	"github.com/ManuelReschke/MemberGate/internal/pkg/objectstore"
	"github.com/ManuelReschke/MemberGate/internal/pkg/statistics"
	"github.com/ManuelReschke/MemberGate/internal/pkg/upload"
	"github.com/ManuelReschke/MemberGate/internal/pkg/usercontext"
	"github.com/ManuelReschke/MemberGate/internal/pkg/utils"
)

const (
	marketplacePath     = "/marketplace"
	marketplaceNewPath  = "/marketplace/new"
	marketplacePageSize = 24
	listingKeyPrefix    = "listings"
)

var (
	errListingResponseHandled = errors.New("listing response already handled")
	errInvalidPrice           = errors.New("invalid price")
)

// listingView is a listing prepared for the marketplace templates.
type listingView struct {
	models.Listing
	Price        string
	PreviewURL   string
	SellerName   string
	SellerAvatar string
	Own          bool
}

// HandleMarketplace lists the active listings, verified sellers first
func HandleMarketplace(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	if page < 1 {
		page = 1
	}
	listings, err := svc().Repos.Listing.Active((page-1)*marketplacePageSize, marketplacePageSize)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("Failed to fetch listings")
	}

	uc := usercontext.GetUserContext(c)
	views := make([]listingView, 0, len(listings))
	for _, l := range listings {
		v := listingView{
			Listing:    l,
			Price:      formatPrice(l.PriceCents),
			PreviewURL: l.PreviewURL(),
			Own:        l.SellerID == uc.UserID,
		}
		if l.Seller != nil {
			v.SellerName = l.Seller.Name
			v.SellerAvatar = utils.GetGravatarURL(l.Seller.Email, 48)
		}
		views = append(views, v)
	}

	return render(c, "marketplace/index", "Marketplace", fiber.Map{
		"Listings": views,
		"Page":     page,
		"NextPage": page + 1,
		"HasMore":  len(listings) == marketplacePageSize,
	})
}

// HandleMarketplaceNew renders the listing form
func HandleMarketplaceNew(c *fiber.Ctx) error {
	plan := entitlements.Plan(usercontext.GetUserContext(c).Package)
	return render(c, "marketplace/new", "Sell an item", fiber.Map{
		"MaxImages": entitlements.MaxListingImages(plan),
	})
}

// HandleMarketplaceCreate stores a new listing with its images
func HandleMarketplaceCreate(c *fiber.Ctx) error {
	return newListingWorkflow(c).run()
}

// HandleMarketplaceSold lets the seller close a listing
func HandleMarketplaceSold(c *fiber.Ctx) error {
	s := svc()
	if s.Writer == nil {
		return flashError(c, funnel.MsgMissingWriteCreds, marketplacePath)
	}
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return flashError(c, "Listing not found", marketplacePath)
	}
	uc := usercontext.GetUserContext(c)
	if err := s.Writer.Listing.MarkSold(uint(id), uc.UserID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return flashError(c, "Listing not found", marketplacePath)
		}
		fiberlog.Errorf("[Marketplace] Marking listing %d sold failed: %v", id, err)
		return flashError(c, "The listing could not be updated", marketplacePath)
	}
	statistics.Invalidate()
	return flashSuccess(c, "Marked as sold", marketplacePath)
}

type listingWorkflow struct {
	c       *fiber.Ctx
	userCtx usercontext.UserContext
	store   objectstore.Store
	stored  []string
}

func newListingWorkflow(c *fiber.Ctx) *listingWorkflow {
	return &listingWorkflow{
		c:       c,
		userCtx: usercontext.GetUserContext(c),
		store:   svc().Uploads,
	}
}

func (w *listingWorkflow) run() error {
	if !w.userCtx.IsLoggedIn {
		return w.c.Status(fiber.StatusUnauthorized).SendString("Unauthorized")
	}
	writer := svc().Writer
	if writer == nil {
		fiberlog.Errorf("[Marketplace] Refused: no write credentials configured")
		return respondListingError(w.c, funnel.MsgMissingWriteCreds)
	}

	seller, err := writer.User.GetByID(w.userCtx.UserID)
	if err != nil {
		fiberlog.Errorf("[Marketplace] Seller %s not readable: %v", w.userCtx.UserID, err)
		return respondListingError(w.c, "Your account could not be loaded")
	}
	plan := entitlements.PlanFor(seller)

	listing, files, err := w.parseListingForm(plan)
	if err != nil {
		return handled(err)
	}
	if err := w.validateEntitlements(plan); err != nil {
		return handled(err)
	}

	listing.SellerID = seller.ID
	listing.IsVerified = entitlements.VerifiedSeller(seller)
	listing.Status = models.LISTING_STATUS_ACTIVE
	if err := w.storeImages(listing, files); err != nil {
		w.cleanup()
		return handled(err)
	}

	if err := writer.Listing.Create(listing); err != nil {
		fiberlog.Errorf("[Marketplace] Saving listing failed: %v", err)
		w.cleanup()
		return respondListingError(w.c, "The listing could not be saved")
	}

	w.afterPersist(listing)
	return flashSuccess(w.c, fmt.Sprintf("Your listing %q is live", listing.Title), marketplacePath)
}

func (w *listingWorkflow) parseListingForm(plan entitlements.Plan) (*models.Listing, []*multipart.FileHeader, error) {
	form, err := w.c.MultipartForm()
	if err != nil {
		fiberlog.Warnf("[Marketplace] Error parsing multipart form: %v", err)
		return nil, nil, markListingHandled(respondListingError(w.c, "Please fill in the listing form"))
	}

	title := strings.TrimSpace(firstValue(form.Value["title"]))
	if title == "" {
		return nil, nil, markListingHandled(respondListingError(w.c, "A title is required"))
	}
	price, err := parsePriceCents(firstValue(form.Value["price"]))
	if err != nil {
		return nil, nil, markListingHandled(respondListingError(w.c, "Please enter a price above zero"))
	}

	files := form.File["images"]
	if len(files) == 0 {
		return nil, nil, markListingHandled(respondListingError(w.c, "Please add at least one image"))
	}
	if limit := entitlements.MaxListingImages(plan); len(files) > limit {
		return nil, nil, markListingHandled(respondListingError(w.c, fmt.Sprintf("Your package allows %d images per listing", limit)))
	}

	return &models.Listing{
		Title:       title,
		Description: strings.TrimSpace(firstValue(form.Value["description"])),
		PriceCents:  price,
	}, files, nil
}

func (w *listingWorkflow) validateEntitlements(plan entitlements.Plan) error {
	active, err := svc().Repos.Listing.CountActiveBySeller(w.userCtx.UserID)
	if err != nil {
		fiberlog.Errorf("[Marketplace] Counting listings of %s failed: %v", w.userCtx.UserID, err)
		return markListingHandled(respondListingError(w.c, "The listing could not be saved"))
	}
	if limit := entitlements.ActiveListingLimit(plan); active >= int64(limit) {
		return markListingHandled(respondListingError(w.c, fmt.Sprintf("You already have %d active listings, the limit of your package", limit)))
	}
	return nil
}

func (w *listingWorkflow) storeImages(listing *models.Listing, files []*multipart.FileHeader) error {
	if w.store == nil {
		fiberlog.Errorf("[Marketplace] No object store configured")
		return markListingHandled(respondListingError(w.c, "Images cannot be stored right now"))
	}
	for i, file := range files {
		mime, err := upload.ValidateFileHeader(file)
		if err != nil {
			return markListingHandled(respondListingError(w.c, fmt.Sprintf("%s: %s", file.Filename, err)))
		}

		src, err := file.Open()
		if err != nil {
			fiberlog.Errorf("[Marketplace] Error opening upload %s: %v", file.Filename, err)
			return markListingHandled(respondListingError(w.c, "Error processing the file"))
		}
		key := objectstore.ObjectKey(listingKeyPrefix, filepath.Ext(file.Filename), svc().Now())
		url, err := w.store.Put(w.c.UserContext(), key, src, file.Size, mime)
		_ = src.Close()
		if err != nil {
			fiberlog.Errorf("[Marketplace] Storing %s failed: %v", key, err)
			return markListingHandled(respondListingError(w.c, "Error saving the file"))
		}
		w.stored = append(w.stored, key)

		listing.Images = append(listing.Images, models.ListingImage{
			ObjectKey:   key,
			URL:         url,
			ContentType: mime,
			Position:    i,
		})
	}
	return nil
}

func (w *listingWorkflow) cleanup() {
	for _, key := range w.stored {
		if err := w.store.Delete(w.c.UserContext(), key); err != nil {
			fiberlog.Warnf("[Marketplace] Failed to cleanup %s: %v", key, err)
		}
	}
	w.stored = nil
}

func (w *listingWorkflow) afterPersist(listing *models.Listing) {
	jobs := svc().Jobs
	if jobs != nil {
		for _, img := range listing.Images {
			if _, err := jobs.EnqueueListingThumbnail(img.ID, listing.ID, img.ObjectKey); err != nil {
				fiberlog.Errorf("[Marketplace] Error enqueueing thumbnail for image %d: %v", img.ID, err)
			}
		}
	}
	statistics.Invalidate()
}

func respondListingError(c *fiber.Ctx, message string) error {
	flash.WithError(c, fiber.Map{
		"type":    "error",
		"message": message,
	})
	return c.Redirect(marketplaceNewPath)
}

func markListingHandled(err error) error {
	if err != nil {
		return err
	}
	return errListingResponseHandled
}

// handled swallows the marker error once the response has been written.
func handled(err error) error {
	if errors.Is(err, errListingResponseHandled) {
		return nil
	}
	return err
}

func firstValue(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// parsePriceCents reads "12", "12.5" or "12,50" as cents.
func parsePriceCents(raw string) (int64, error) {
	raw = strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	if raw == "" {
		return 0, errInvalidPrice
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, errInvalidPrice
	}
	cents := int64(math.Round(value * 100))
	if cents <= 0 {
		return 0, errInvalidPrice
	}
	return cents, nil
}

func formatPrice(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}

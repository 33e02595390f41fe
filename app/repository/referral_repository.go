package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/ManuelReschke/MemberGate/app/models"
	"github.com/ManuelReschke/MemberGate/internal/pkg/ledger"
)

var counterColumns = map[ledger.Counter]string{
	ledger.PendingCount: "pending_count",
	ledger.PaidCount:    "paid_count",
}

// referralRepository implements the ReferralRepository interface
type referralRepository struct {
	db *gorm.DB
}

// NewReferralRepository creates a new referral repository instance
func NewReferralRepository(db *gorm.DB) ReferralRepository {
	return &referralRepository{db: db}
}

// Create validates and stores a new referral code in its normalized form
func (r *referralRepository) Create(code *models.ReferralCode) error {
	if err := code.Validate(); err != nil {
		return err
	}
	return r.db.Create(code).Error
}

// GetByID retrieves a referral code without its members
func (r *referralRepository) GetByID(id string) (*models.ReferralCode, error) {
	var code models.ReferralCode
	if err := r.db.Where("id = ?", id).First(&code).Error; err != nil {
		return nil, err
	}
	return &code, nil
}

// GetByCode matches the stored (uppercase) code exactly and loads the lists
func (r *referralRepository) GetByCode(code string) (*models.ReferralCode, error) {
	var rc models.ReferralCode
	err := r.db.Preload("Memberships", func(db *gorm.DB) *gorm.DB {
		return db.Order("id ASC")
	}).Where("code = ?", code).First(&rc).Error
	if err != nil {
		return nil, err
	}
	return &rc, nil
}

// GetActiveByCode is GetByCode restricted to active codes
func (r *referralRepository) GetActiveByCode(code string) (*models.ReferralCode, error) {
	rc, err := r.GetByCode(code)
	if err != nil {
		return nil, err
	}
	if !rc.IsActive {
		return nil, gorm.ErrRecordNotFound
	}
	return rc, nil
}

// Document returns the ledger view of a referral code
func (r *referralRepository) Document(id string) (ledger.Document, error) {
	var rc models.ReferralCode
	err := r.db.Preload("Memberships").Where("id = ?", id).First(&rc).Error
	if err != nil {
		return ledger.Document{}, err
	}
	return rc.Document(), nil
}

// Memberships returns one list of a code with users loaded, oldest first
func (r *referralRepository) Memberships(id string, list ledger.List) ([]models.ReferralMembership, error) {
	var members []models.ReferralMembership
	err := r.db.Preload("User").
		Where("referral_code_id = ? AND list_name = ?", id, string(list)).
		Order("id ASC").
		Find(&members).Error
	return members, err
}

// GetWithMembers loads the lists together with the referenced users
func (r *referralRepository) GetWithMembers(id string) (*models.ReferralCode, error) {
	var rc models.ReferralCode
	err := r.db.Preload("Memberships", func(db *gorm.DB) *gorm.DB {
		return db.Order("id ASC")
	}).Preload("Memberships.User").Where("id = ?", id).First(&rc).Error
	if err != nil {
		return nil, err
	}
	return &rc, nil
}

// List returns every referral code with its lists, ordered by code
func (r *referralRepository) List() ([]models.ReferralCode, error) {
	var codes []models.ReferralCode
	err := r.db.Preload("Memberships", func(db *gorm.DB) *gorm.DB {
		return db.Order("id ASC")
	}).Order("code ASC").Find(&codes).Error
	return codes, err
}

// SetActive soft-enables or disables a code
func (r *referralRepository) SetActive(id string, active bool) error {
	res := r.db.Model(&models.ReferralCode{}).Where("id = ?", id).UpdateColumn("is_active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := r.db.Model(&models.ReferralCode{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return gorm.ErrRecordNotFound
		}
	}
	return nil
}

// CommitPatch applies every operation of the patch inside one transaction.
// Counters move with relative updates, list entries are membership rows.
func (r *referralRepository) CommitPatch(patch *ledger.Patch) error {
	if err := patch.Err(); err != nil {
		return err
	}
	ops := patch.Ops()
	if len(ops) == 0 {
		return ledger.ErrEmptyPatch
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		for _, op := range ops {
			if err := applyOp(tx, patch.ID(), op); err != nil {
				return err
			}
		}
		return nil
	})
}

func applyOp(tx *gorm.DB, id string, op ledger.Op) error {
	switch op.Kind {
	case ledger.OpSetIfMissing:
		col, err := counterColumn(op.Counter)
		if err != nil {
			return err
		}
		return tx.Model(&models.ReferralCode{}).
			Where("id = ? AND "+col+" IS NULL", id).
			UpdateColumn(col, 0).Error

	case ledger.OpAppend:
		m := models.ReferralMembership{
			ItemKey:        op.Ref.Key,
			ReferralCodeID: id,
			UserID:         op.Ref.Ref,
			ListName:       string(op.List),
		}
		if err := tx.Create(&m).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ledger.ErrDuplicateReference
			}
			return fmt.Errorf("append %s to %s: %w", op.Ref.Ref, op.List, err)
		}
		return nil

	case ledger.OpUnset:
		res := tx.Where("referral_code_id = ? AND list_name = ? AND user_id = ?", id, string(op.List), op.Ref.Ref).
			Delete(&models.ReferralMembership{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ledger.ErrMissingReference
		}
		return nil

	case ledger.OpInc:
		col, err := counterColumn(op.Counter)
		if err != nil {
			return err
		}
		res := tx.Model(&models.ReferralCode{}).Where("id = ?", id).
			UpdateColumn(col, gorm.Expr(col+" + ?", op.N))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil

	case ledger.OpDec:
		col, err := counterColumn(op.Counter)
		if err != nil {
			return err
		}
		res := tx.Model(&models.ReferralCode{}).Where("id = ? AND "+col+" >= ?", id, op.N).
			UpdateColumn(col, gorm.Expr(col+" - ?", op.N))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ledger.ErrNegativeCounter
		}
		return nil
	}
	return fmt.Errorf("ledger: unknown operation %q", op.Kind)
}

func counterColumn(c ledger.Counter) (string, error) {
	col, ok := counterColumns[c]
	if !ok {
		return "", fmt.Errorf("ledger: unknown counter %q", c)
	}
	return col, nil
}

// Totals sums the counters across all codes
func (r *referralRepository) Totals() (*ReferralTotals, error) {
	var totals ReferralTotals
	err := r.db.Model(&models.ReferralCode{}).Select(
		"COUNT(*) AS codes, " +
			"COALESCE(SUM(CASE WHEN is_active THEN 1 ELSE 0 END), 0) AS active, " +
			"COALESCE(SUM(pending_count), 0) AS pending, " +
			"COALESCE(SUM(paid_count), 0) AS paid",
	).Scan(&totals).Error
	if err != nil {
		return nil, err
	}
	return &totals, nil
}

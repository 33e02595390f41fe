package models

import (
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ManuelReschke/MemberGate/internal/pkg/ledger"
)

// ReferralCode is the ledger record for one invite code.
type ReferralCode struct {
	ID           string               `gorm:"primaryKey;type:char(36)" json:"id"`
	Code         string               `gorm:"uniqueIndex;type:varchar(64);not null" json:"code" validate:"required,min=2,max=64"`
	Description  string               `gorm:"type:text" json:"description"`
	IsActive     bool                 `gorm:"not null" json:"is_active"`
	PendingCount int                  `gorm:"not null;default:0" json:"pending_count"`
	PaidCount    int                  `gorm:"not null;default:0" json:"paid_count"`
	Memberships  []ReferralMembership `gorm:"foreignKey:ReferralCodeID" json:"-"`
	CreatedAt    time.Time            `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time            `gorm:"autoUpdateTime" json:"updated_at"`
}

// ReferralMembership is one entry of a referral code's pending or paid list.
// The (referral_code_id, user_id) index keeps a user in at most one list.
type ReferralMembership struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ItemKey        string    `gorm:"column:item_key;uniqueIndex;type:varchar(16);not null" json:"_key"`
	ReferralCodeID string    `gorm:"type:char(36);not null;uniqueIndex:idx_membership_code_user" json:"referral_code_id"`
	UserID         string    `gorm:"type:char(36);not null;uniqueIndex:idx_membership_code_user" json:"_ref"`
	ListName       string    `gorm:"column:list_name;type:varchar(20);not null;index" json:"list"`
	User           *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// NormalizeCode trims and uppercases a referral code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (r *ReferralCode) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.Code = NormalizeCode(r.Code)
	return nil
}

// Validate normalizes the code first so the length rules see the stored value.
func (r *ReferralCode) Validate() error {
	r.Code = NormalizeCode(r.Code)
	v := validator.New()

	return v.Struct(r)
}

// Document converts the row and its loaded memberships into a ledger document.
func (r *ReferralCode) Document() ledger.Document {
	memberships := make([]ReferralMembership, len(r.Memberships))
	copy(memberships, r.Memberships)
	sort.Slice(memberships, func(i, j int) bool { return memberships[i].ID < memberships[j].ID })

	doc := ledger.Document{
		ID:          r.ID,
		Code:        r.Code,
		Description: r.Description,
		Active:      r.IsActive,
		Lists: map[ledger.List][]ledger.Reference{
			ledger.PendingUsers: {},
			ledger.PaidUsers:    {},
		},
		Counters: map[ledger.Counter]int{
			ledger.PendingCount: r.PendingCount,
			ledger.PaidCount:    r.PaidCount,
		},
	}
	for _, m := range memberships {
		list := ledger.List(m.ListName)
		doc.Lists[list] = append(doc.Lists[list], ledger.Reference{Key: m.ItemKey, Ref: m.UserID})
	}
	return doc
}

// Members returns the users referenced from list, in insertion order.
func (r *ReferralCode) Members(list ledger.List) []ReferralMembership {
	var out []ReferralMembership
	for _, m := range r.Memberships {
		if ledger.List(m.ListName) == list {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

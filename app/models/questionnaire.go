package models

import (
	"encoding/json"
	"time"
)

// Page kinds as authored in the questionnaire editor.
const (
	PAGE_KIND_QUESTION = "questionPage"
	PAGE_KIND_NAME     = "namePage"
	PAGE_KIND_NUMBER   = "numberPage"
	PAGE_KIND_EMAIL    = "emailPage"
)

// QuestionnairePage is one step of the lead questionnaire. Answers are keyed
// by PageKey, which is an opaque generated identifier.
type QuestionnairePage struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	PageKey     string    `gorm:"uniqueIndex;type:varchar(32);not null" json:"_key" validate:"required,max=32"`
	Kind        string    `gorm:"type:varchar(20);not null" json:"_type" validate:"required,oneof=questionPage namePage numberPage emailPage"`
	Prompt      string    `gorm:"type:varchar(255);not null" json:"prompt" validate:"required,max=255"`
	Description string    `gorm:"type:text" json:"description"`
	Options     string    `gorm:"type:text" json:"-"`
	Position    int       `gorm:"not null;default:0;index" json:"position"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// OptionList decodes the multiple choice options; free-text pages have none.
func (p *QuestionnairePage) OptionList() []string {
	if p.Options == "" {
		return nil
	}
	var opts []string
	if err := json.Unmarshal([]byte(p.Options), &opts); err != nil {
		return nil
	}
	return opts
}

// RequiresAnswer reports whether an empty answer blocks submission.
func (p *QuestionnairePage) RequiresAnswer() bool {
	return p.Kind == PAGE_KIND_NAME || p.Kind == PAGE_KIND_NUMBER || p.Kind == PAGE_KIND_EMAIL
}

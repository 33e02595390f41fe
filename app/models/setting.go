package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// Setting represents a system setting
type Setting struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"column:setting_key;size:255;not null;uniqueIndex" json:"key" validate:"required,min=1,max=255"`
	Value     string    `gorm:"type:text" json:"value"`
	Type      string    `gorm:"size:50;not null" json:"type" validate:"required"` // string, boolean, integer, time
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AppSettings holds the runtime-editable funnel settings.
type AppSettings struct {
	SiteTitle             string    `json:"site_title" validate:"required,min=1,max=255"`
	SiteDescription       string    `json:"site_description" validate:"max=500"`
	CountdownHours        int       `json:"countdown_hours" validate:"min=1,max=2160"`
	GlobalCountdownTarget time.Time `json:"global_countdown_target"`
	LockedVideoPlaybackID string    `json:"locked_video_playback_id" validate:"max=100"`
	RegistrationOpen      bool      `json:"registration_open"`
	mu                    sync.RWMutex
}

const DefaultCountdownHours = 72

// Global settings instance
var (
	appSettings *AppSettings
	settingsMu  sync.RWMutex
)

// DefaultAppSettings returns the values used before anything is stored.
func DefaultAppSettings() *AppSettings {
	return &AppSettings{
		SiteTitle:        "MemberGate",
		SiteDescription:  "Members only education and marketplace",
		CountdownHours:   DefaultCountdownHours,
		RegistrationOpen: true,
	}
}

// GetAppSettings returns the current application settings, never nil.
func GetAppSettings() *AppSettings {
	settingsMu.RLock()
	defer settingsMu.RUnlock()
	if appSettings == nil {
		return DefaultAppSettings()
	}
	return appSettings
}

// LoadSettings loads settings from database into memory
func LoadSettings(db *gorm.DB) error {
	settingsMu.Lock()
	defer settingsMu.Unlock()

	loaded := DefaultAppSettings()

	var settings []Setting
	if err := db.Find(&settings).Error; err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	for _, setting := range settings {
		switch setting.Key {
		case "site_title":
			loaded.SiteTitle = setting.Value
		case "site_description":
			loaded.SiteDescription = setting.Value
		case "countdown_hours":
			if v, err := strconv.Atoi(setting.Value); err == nil && v > 0 {
				loaded.CountdownHours = v
			}
		case "global_countdown_target":
			if t, err := time.Parse(time.RFC3339, strings.TrimSpace(setting.Value)); err == nil {
				loaded.GlobalCountdownTarget = t
			}
		case "locked_video_playback_id":
			loaded.LockedVideoPlaybackID = setting.Value
		case "registration_open":
			loaded.RegistrationOpen = setting.Value == "true"
		}
	}

	appSettings = loaded
	return nil
}

// SaveSettings saves current settings to database
func SaveSettings(db *gorm.DB, settings *AppSettings) error {
	settingsMu.Lock()
	defer settingsMu.Unlock()

	if err := settings.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	target := ""
	if !settings.GlobalCountdownTarget.IsZero() {
		target = settings.GlobalCountdownTarget.UTC().Format(time.RFC3339)
	}
	settingsMap := map[string]string{
		"site_title":               settings.SiteTitle,
		"site_description":         settings.SiteDescription,
		"countdown_hours":          strconv.Itoa(settings.CountdownHours),
		"global_countdown_target":  target,
		"locked_video_playback_id": settings.LockedVideoPlaybackID,
		"registration_open":        strconv.FormatBool(settings.RegistrationOpen),
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		for key, value := range settingsMap {
			var setting Setting
			result := tx.Where("setting_key = ?", key).First(&setting)
			if result.Error != nil {
				if result.Error != gorm.ErrRecordNotFound {
					return fmt.Errorf("failed to query setting %s: %w", key, result.Error)
				}
				setting = Setting{Key: key, Value: value, Type: getSettingType(key)}
				if err := tx.Create(&setting).Error; err != nil {
					return fmt.Errorf("failed to create setting %s: %w", key, err)
				}
				continue
			}
			setting.Value = value
			if err := tx.Save(&setting).Error; err != nil {
				return fmt.Errorf("failed to update setting %s: %w", key, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	appSettings = settings
	return nil
}

// getSettingType returns the type of a setting based on its key
func getSettingType(key string) string {
	switch key {
	case "registration_open":
		return "boolean"
	case "countdown_hours":
		return "integer"
	case "global_countdown_target":
		return "time"
	default:
		return "string"
	}
}

// Validate validates the settings
func (s *AppSettings) Validate() error {
	validate := validator.New()
	return validate.Struct(s)
}

// ToJSON converts settings to JSON
func (s *AppSettings) ToJSON() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return json.Marshal(s)
}

// CountdownWindow is the per-visitor delay before gated content unlocks.
func (s *AppSettings) CountdownWindow() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.CountdownHours <= 0 {
		return DefaultCountdownHours * time.Hour
	}
	return time.Duration(s.CountdownHours) * time.Hour
}

// GetGlobalCountdownTarget returns the site-wide unlock time (zero when unset).
func (s *AppSettings) GetGlobalCountdownTarget() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.GlobalCountdownTarget
}

// GetLockedVideoPlaybackID returns the video revealed once the countdown ends.
func (s *AppSettings) GetLockedVideoPlaybackID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.LockedVideoPlaybackID
}

// IsRegistrationOpen returns whether the funnel accepts new leads.
func (s *AppSettings) IsRegistrationOpen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.RegistrationOpen
}

// GetSiteTitle returns the site title
func (s *AppSettings) GetSiteTitle() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.SiteTitle
}

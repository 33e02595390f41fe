package statistics

import (
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/MemberGate/app/models"
	"github.com/ManuelReschke/MemberGate/app/repository"
	"github.com/ManuelReschke/MemberGate/internal/pkg/cache"
	"github.com/ManuelReschke/MemberGate/internal/pkg/database"
)

const (
	CacheKeyFunnel  = "statistics:funnel"
	CacheExpiration = 5 * time.Minute
	dailyWindow     = 7
)

// FunnelStats summarizes the referral funnel for the admin dashboard.
type FunnelStats struct {
	Codes           int64               `json:"codes"`
	ActiveCodes     int64               `json:"active_codes"`
	Pending         int64               `json:"pending"`
	Paid            int64               `json:"paid"`
	Users           int64               `json:"users"`
	Premium         int64               `json:"premium"`
	ActiveListings  int64               `json:"active_listings"`
	ContactMessages int64               `json:"contact_messages"`
	ConversionRate  float64             `json:"conversion_rate"`
	DailyPaid       []models.DailyStats `json:"daily_paid"`
	GeneratedAt     time.Time           `json:"generated_at"`
}

// Get returns the cached statistics, collecting them when the cache is cold.
func Get() (*FunnelStats, error) {
	return cache.Remember(CacheKeyFunnel, CacheExpiration, func() (*FunnelStats, error) {
		return Collect(database.GetDB(), time.Now())
	})
}

// Invalidate drops the cached statistics after a funnel write.
func Invalidate() {
	if err := cache.Delete(CacheKeyFunnel); err != nil {
		log.Warnf("[Statistics] Could not invalidate cache: %v", err)
	}
}

// Collect queries every figure directly from db.
func Collect(db *gorm.DB, now time.Time) (*FunnelStats, error) {
	repos := repository.NewRepositories(db)
	stats := &FunnelStats{GeneratedAt: now.UTC()}

	totals, err := repos.Referral.Totals()
	if err != nil {
		return nil, err
	}
	stats.Codes, stats.ActiveCodes = totals.Codes, totals.Active
	stats.Pending, stats.Paid = totals.Pending, totals.Paid

	if stats.Users, err = repos.User.Count(); err != nil {
		return nil, err
	}
	if stats.Premium, err = repos.User.CountPremium(); err != nil {
		return nil, err
	}
	if stats.ActiveListings, err = repos.Listing.CountActive(); err != nil {
		return nil, err
	}
	if stats.ContactMessages, err = repos.Contact.Count(); err != nil {
		return nil, err
	}
	if total := stats.Pending + stats.Paid; total > 0 {
		stats.ConversionRate = float64(stats.Paid) * 100 / float64(total)
	}

	if stats.DailyPaid, err = dailyPaid(db, now); err != nil {
		return nil, err
	}
	return stats, nil
}

// dailyPaid buckets premium registrations of the last days in Go so the
// query works the same on every driver.
func dailyPaid(db *gorm.DB, now time.Time) ([]models.DailyStats, error) {
	now = now.UTC()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -(dailyWindow - 1))

	var registered []time.Time
	if err := db.Model(&models.User{}).
		Where("is_premium = ? AND registered_at >= ?", true, start).
		Pluck("registered_at", &registered).Error; err != nil {
		return nil, err
	}

	counts := make(map[string]int, dailyWindow)
	for _, t := range registered {
		counts[t.UTC().Format("2006-01-02")]++
	}
	days := make([]models.DailyStats, 0, dailyWindow)
	for i := 0; i < dailyWindow; i++ {
		date := start.AddDate(0, 0, i).Format("2006-01-02")
		days = append(days, models.DailyStats{Date: date, Count: counts[date]})
	}
	return days, nil
}

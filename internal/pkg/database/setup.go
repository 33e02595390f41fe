package database

import (
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/ManuelReschke/MemberGate/app/models"
	"github.com/ManuelReschke/MemberGate/internal/pkg/env"
)

const maxRetries = 5
const retryDelay = 5 * time.Second

var (
	// DB is the shared connection used for reads and, unless a dedicated
	// write user is configured, for writes too.
	DB *gorm.DB
	// WriteDB is nil when the process has no write credentials.
	WriteDB *gorm.DB
)

// Config describes how to reach the database.
type Config struct {
	Driver        string
	Host          string
	Port          string
	Name          string
	User          string
	Password      string
	WriteUser     string
	WritePassword string
	ReadOnly      bool
}

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// LoadConfig reads the DB_* variables. For sqlite DB_NAME is the file path.
func LoadConfig() Config {
	driver := env.GetEnv("DB_DRIVER", DriverMySQL)
	defPort := "3306"
	if driver == DriverPostgres {
		defPort = "5432"
	}
	return Config{
		Driver:        driver,
		Host:          env.GetEnv("DB_HOST", "127.0.0.1"),
		Port:          env.GetEnv("DB_PORT", defPort),
		Name:          env.GetEnv("DB_NAME", ""),
		User:          env.GetEnv("DB_USER", ""),
		Password:      env.GetEnv("DB_PASSWORD", ""),
		WriteUser:     env.GetEnv("DB_WRITE_USER", ""),
		WritePassword: env.GetEnv("DB_WRITE_PASSWORD", ""),
		ReadOnly:      env.GetEnvBool("DB_READ_ONLY", false),
	}
}

// HasWriteCredentials reports whether funnel mutations may run.
func (c Config) HasWriteCredentials() bool {
	if c.ReadOnly {
		return false
	}
	if c.Driver == DriverSQLite {
		return true
	}
	return c.WriteUser != "" || c.User != ""
}

// DSN builds the driver specific connection string for user/password.
func (c Config) DSN(user, password string) string {
	switch c.Driver {
	case DriverSQLite:
		return c.Name
	case DriverPostgres:
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
			c.Host, user, password, c.Name, c.Port)
	}
	// "user:pass@tcp(127.0.0.1:3306)/dbname?charset=utf8mb4&parseTime=True&loc=Local"
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		user, password, c.Host, c.Port, c.Name)
}

func (c Config) dialector(user, password string) gorm.Dialector {
	switch c.Driver {
	case DriverSQLite:
		return sqlite.Open(c.DSN(user, password))
	case DriverPostgres:
		return postgres.Open(c.DSN(user, password))
	}
	return mysql.New(mysql.Config{
		DSN:                       c.DSN(user, password),
		DefaultStringSize:         256,
		DisableDatetimePrecision:  true,
		DontSupportRenameIndex:    true,
		DontSupportRenameColumn:   true,
		SkipInitializeWithVersion: false,
	})
}

// Models lists every table managed by AutoMigrate.
func Models() []interface{} {
	return []interface{}{
		&models.User{},
		&models.ReferralCode{},
		&models.ReferralMembership{},
		&models.QuestionnairePage{},
		&models.Category{},
		&models.Lesson{},
		&models.Comment{},
		&models.Listing{},
		&models.ListingImage{},
		&models.ContactMessage{},
		&models.Setting{},
		&models.ProviderAccount{},
	}
}

// GormConfig is shared by every connection so duplicate keys surface as
// gorm.ErrDuplicatedKey.
func GormConfig() *gorm.Config {
	return &gorm.Config{TranslateError: true}
}

func SetupDatabase() {
	cfg := LoadConfig()

	var err error
	for i := 0; i < maxRetries; i++ {
		DB, err = gorm.Open(cfg.dialector(cfg.User, cfg.Password), GormConfig())
		if err == nil {
			if env.GetEnvBool("DB_AUTO_MIGRATE", env.IsDev()) {
				if merr := DB.AutoMigrate(Models()...); merr != nil {
					log.Errorf("[Database] AutoMigrate failed: %v", merr)
				}
			}
			break
		}

		log.Warnf("[Database] Failed to connect (try %d/%d): %v", i+1, maxRetries, err)
		if i < maxRetries-1 {
			log.Infof("[Database] Retrying in %v...", retryDelay)
			time.Sleep(retryDelay)
		}
	}

	if err != nil {
		panic(err)
	}

	setupWriter(cfg)
	if err := models.LoadSettings(DB); err != nil {
		log.Warnf("[Database] Using default settings: %v", err)
	}
}

func setupWriter(cfg Config) {
	switch {
	case !cfg.HasWriteCredentials():
		WriteDB = nil
		log.Errorf("[Database] No write credentials configured (DB_WRITE_USER/DB_USER); funnel writes are disabled")
	case cfg.Driver == DriverSQLite || cfg.WriteUser == "" || cfg.WriteUser == cfg.User:
		WriteDB = DB
	default:
		w, err := gorm.Open(cfg.dialector(cfg.WriteUser, cfg.WritePassword), GormConfig())
		if err != nil {
			WriteDB = nil
			log.Errorf("[Database] Write connection failed, funnel writes are disabled: %v", err)
			return
		}
		WriteDB = w
	}
}

// GetDB returns the shared connection.
func GetDB() *gorm.DB {
	return DB
}

// GetWriteDB returns the write connection or nil without write credentials.
func GetWriteDB() *gorm.DB {
	return WriteDB
}

// OpenSQLite opens and migrates a sqlite database. A single connection is
// kept so ":memory:" databases survive between queries.
func OpenSQLite(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), GormConfig())
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(Models()...); err != nil {
		return nil, err
	}
	return db, nil
}

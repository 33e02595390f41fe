package main

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/ManuelReschke/MemberGate/internal/pkg/database"
	"github.com/ManuelReschke/MemberGate/internal/pkg/env"
)

func main() {
	// load variables from .env
	env.SetupEnvFile()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	cfg := database.LoadConfig()
	user, password := cfg.User, cfg.Password
	// schema changes need the write user when one is configured
	if cfg.WriteUser != "" {
		user, password = cfg.WriteUser, cfg.WritePassword
	}
	dbURL, err := migrationURL(cfg, user, password)
	if err != nil {
		log.Fatal(err)
	}

	log.Printf("Connecting to %s database: %s@%s:%s/%s", cfg.Driver, user, cfg.Host, cfg.Port, cfg.Name)

	m, err := migrate.New("file://migrations/"+cfg.Driver, dbURL)
	if err != nil {
		log.Fatalf("Could not initialize migrations: %v", err)
	}

	defer func() {
		if sourceErr, dbErr := m.Close(); sourceErr != nil || dbErr != nil {
			log.Printf("Could not close migration resources: %v, %v", sourceErr, dbErr)
		}
	}()

	switch command {
	case "up":
		// apply all pending migrations
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("Migration failed: %v", err)
		} else if errors.Is(err, migrate.ErrNoChange) {
			log.Println("No change: database is up to date")
		} else {
			log.Println("Migrations applied")
		}

	case "down":
		// roll back the last migration
		if err := m.Steps(-1); err != nil {
			log.Fatalf("Rollback failed: %v", err)
		}
		log.Println("Last migration rolled back")

	case "goto":
		if len(os.Args) < 3 {
			log.Fatalf("Please pass a version number")
		}
		version, err := strconv.ParseUint(os.Args[2], 10, 64)
		if err != nil {
			log.Fatalf("Invalid version number: %v", err)
		}

		if err := m.Migrate(uint(version)); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("Migration to version %d failed: %v", version, err)
		} else if errors.Is(err, migrate.ErrNoChange) {
			log.Printf("No change: database is already at version %d", version)
		} else {
			log.Printf("Migrated to version %d", version)
		}

	case "status":
		version, dirty, err := m.Version()
		if err != nil {
			if errors.Is(err, migrate.ErrNilVersion) {
				log.Println("No migrations applied yet")
			} else {
				log.Fatalf("Could not read migration version: %v", err)
			}
		} else {
			dirtyStatus := ""
			if dirty {
				dirtyStatus = " (dirty)"
			}
			log.Printf("Current migration version: %d%s", version, dirtyStatus)
		}

	default:
		printUsage()
		os.Exit(1)
	}
}

func migrationURL(cfg database.Config, user, password string) (string, error) {
	switch cfg.Driver {
	case database.DriverMySQL:
		return fmt.Sprintf("mysql://%s:%s@tcp(%s:%s)/%s?multiStatements=true",
			user, password, cfg.Host, cfg.Port, cfg.Name), nil
	case database.DriverPostgres:
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(user, password),
			Host:     cfg.Host + ":" + cfg.Port,
			Path:     "/" + cfg.Name,
			RawQuery: "sslmode=disable",
		}
		return u.String(), nil
	}
	return "", fmt.Errorf("migrations are not supported for DB_DRIVER=%s, sqlite uses AutoMigrate", cfg.Driver)
}

func printUsage() {
	fmt.Println("Usage: go run cmd/migrate/main.go [command]")
	fmt.Println("Commands:")
	fmt.Println("  up     - apply all pending migrations")
	fmt.Println("  down   - roll back the last migration")
	fmt.Println("  goto N - migrate to version N")
	fmt.Println("  status - show the current migration version")
}

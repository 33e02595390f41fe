package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	flog "github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/favicon"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/template/html/v2"

	"github.com/ManuelReschke/MemberGate/app/controllers"
	"github.com/ManuelReschke/MemberGate/app/repository"
	apiv1 "github.com/ManuelReschke/MemberGate/internal/api/v1"
	"github.com/ManuelReschke/MemberGate/internal/pkg/cache"
	"github.com/ManuelReschke/MemberGate/internal/pkg/database"
	"github.com/ManuelReschke/MemberGate/internal/pkg/emailcheck"
	"github.com/ManuelReschke/MemberGate/internal/pkg/env"
	"github.com/ManuelReschke/MemberGate/internal/pkg/flow"
	"github.com/ManuelReschke/MemberGate/internal/pkg/funnel"
	"github.com/ManuelReschke/MemberGate/internal/pkg/hcaptcha"
	"github.com/ManuelReschke/MemberGate/internal/pkg/jobqueue"
	"github.com/ManuelReschke/MemberGate/internal/pkg/mux"
	"github.com/ManuelReschke/MemberGate/internal/pkg/objectstore"
	"github.com/ManuelReschke/MemberGate/internal/pkg/router"
	"github.com/ManuelReschke/MemberGate/internal/pkg/session"
)

func main() {
	app := NewApplication()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		jobqueue.GetManager().Stop()
		_ = app.ShutdownWithTimeout(10 * time.Second)
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	// Define possible base paths
	basePaths := []string{
		"./",        // Current directory
		"../../",    // From cmd/membergate to project root
		"../../../", // Fallback
	}

	// Find the correct base path
	basePath := ""
	for _, path := range basePaths {
		if _, err := os.Stat(path + "views"); !os.IsNotExist(err) {
			basePath = path
			break
		}
	}

	if basePath == "" {
		panic("Could not find project root directory")
	}

	// init fiber app
	app := fiber.New(fiber.Config{
		Views:     html.New(basePath+"views", ".html"),
		BodyLimit: 32 << 20, // marketplace images
	})

	// ignore and cache favicon
	app.Use(favicon.New(favicon.Config{
		File:         basePath + "public/assets/icons/favicon.ico",
		URL:          "/favicon.ico",
		CacheControl: "public, max-age=604800",
	}))

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("METRICS_USER", "admin"): env.GetEnv("METRICS_PASSWORD", "change-me"),
		},
	}), monitor.New())

	// static files
	app.Static("/", basePath+"public/assets", fiber.Static{
		CacheDuration: 15 * time.Second,
		Compress:      true,
	})

	// SWAGGER / OPENAPI
	specPath := basePath + "public/docs/v1/openapi.yml"
	app.Use(swagger.New(swagger.Config{
		BasePath: "/docs/api/",
		FilePath: specPath,
		Path:     "v1",
		Title:    "MemberGate API",
	}))

	emails, err := emailcheck.FromEnv()
	if err != nil {
		flog.Errorf("[EmailCheck] Invalid configuration, only the format is checked: %v", err)
		emails = emailcheck.New(emailcheck.Config{})
	}
	funnelService := setupServices(basePath, emails)

	// ROUTER
	router.InstallRouter(app, router.Config{
		API:         apiv1.NewAPIServer(funnelService, emails),
		OpenAPISpec: specPath,
		WebhookKey:  env.GetEnv("PAYMENT_WEBHOOK_KEY", ""),
	})

	return app
}

// setupServices wires the page handlers and starts the background jobs.
func setupServices(basePath string, emails *emailcheck.Checker) *funnel.Service {
	repository.InitializeFactory(database.GetDB(), database.GetWriteDB())
	factory := repository.GetGlobalFactory()

	ctx := context.Background()
	if err := objectstore.Setup(ctx); err != nil {
		flog.Errorf("[ObjectStore] Setup failed, falling back to local uploads: %v", err)
		local, lerr := objectstore.NewLocalStore(basePath+"uploads", "/uploads")
		if lerr != nil {
			panic(lerr)
		}
		objectstore.SetDefault(local)
	}

	pages := cache.NewTagRevalidator()
	opts := []funnel.Option{funnel.WithRevalidator(pages), funnel.WithEmailVerifier(emails)}
	if database.GetWriteDB() == nil {
		opts = append(opts, funnel.WithoutWriteAccess())
	}
	store := funnel.NewRepositoryStore(factory.GetRepositories())
	if writer := factory.GetWriteRepositories(); writer != nil {
		store = funnel.NewRepositoryStore(writer)
	}
	funnelService := funnel.NewService(store, opts...)

	videos, err := mux.FromEnv()
	if err != nil {
		flog.Errorf("[Mux] Invalid signing configuration, playback URLs are unsigned: %v", err)
		videos, _ = mux.NewSigner(mux.Config{})
	}

	session.NewSessionStore()
	session.NewFlowStore()

	manager := jobqueue.GetManager()
	manager.SetAuditor(funnelService)
	manager.Start()

	controllers.Initialize(&controllers.Services{
		Funnel:      funnelService,
		Flow:        flow.NewTracker(session.GetFlowStore()),
		Repos:       factory.GetRepositories(),
		Writer:      factory.GetWriteRepositories(),
		Jobs:        manager.GetQueue(),
		Audits:      manager,
		Uploads:     objectstore.Default(),
		Videos:      videos,
		Captcha:     hcaptcha.NewVerifier(),
		Pages:       pages,
		NotifyEmail: env.GetEnv("CONTACT_NOTIFY_EMAIL", ""),
	})
	return funnelService
}

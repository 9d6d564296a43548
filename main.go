package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/parisxmas/intake/internal/config"
	"github.com/parisxmas/intake/internal/db"
	"github.com/parisxmas/intake/internal/gelf"
	"github.com/parisxmas/intake/internal/handler"
	"github.com/parisxmas/intake/internal/live"
	"github.com/parisxmas/intake/internal/questionnaire"
	"github.com/parisxmas/intake/internal/repository"
	"github.com/parisxmas/intake/internal/router"
	"github.com/parisxmas/intake/internal/seed"
	"github.com/parisxmas/intake/internal/service"
	"github.com/parisxmas/intake/internal/session"
	"github.com/parisxmas/intake/internal/views"
)

func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// GELF UDP logging
	if cfg.GELFAddr != "" {
		gelfWriter, err := gelf.New(cfg.GELFAddr, "intake")
		if err != nil {
			log.Printf("Warning: GELF init failed: %v", err)
		} else {
			defer gelfWriter.Close()
			log.SetOutput(io.MultiWriter(os.Stderr, gelfWriter))
			log.Printf("GELF logging: enabled (%s)", cfg.GELFAddr)
		}
	}

	database, err := db.Open(cfg.DBDriver, cfg.DBDSN, cfg.PoolSize)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()
	if err := database.Migrate(ctx); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	log.Printf("Connected to %s database (pool size: %d)", cfg.DBDriver, cfg.PoolSize)

	// Repositories
	userRepo := repository.NewUserRepo(database)
	fieldRepo := repository.NewFieldRepo(database)
	subRepo := repository.NewSubmissionRepo(database)
	docRepo := repository.NewDocumentRepo(database)

	// Services
	authSvc := service.NewAuthService(userRepo, cfg.JWTSecret, cfg.SessionTTL)
	fieldSvc := service.NewFieldService(fieldRepo)
	intakeSvc := service.NewIntakeService(database, userRepo, subRepo, fieldSvc, seed.Statics())
	docSvc := service.NewDocumentService(docRepo, cfg.JWTSecret, cfg.SignedURLTTL, cfg.UploadMaxBytes)
	searchSvc := service.NewSearchService(subRepo, userRepo, docRepo)
	dashSvc := service.NewDashboardService(userRepo, subRepo, docRepo, fieldRepo, cfg.FormID, cfg.QuestionnaireID)

	if err := seed.Run(ctx, fieldSvc, authSvc, seed.Options{
		FormID:     cfg.FormID,
		FormFile:   cfg.SeedFile,
		AdminEmail: cfg.AdminEmail,
		AdminPass:  cfg.AdminPass,
	}); err != nil {
		log.Printf("Warning: seeding failed: %v", err)
	}

	catalog, err := questionnaire.LoadCatalog()
	if err != nil {
		log.Fatalf("Failed to load questionnaire catalog: %v", err)
	}
	renderer, err := views.New()
	if err != nil {
		log.Fatalf("Failed to parse templates: %v", err)
	}

	store := session.NewMemoryStore(time.Minute)
	defer store.Close()
	sessions := session.NewManager(store, cfg.SessionTTL, session.WithSecureCookie(cfg.SecureCookies))
	ids := questionnaire.NewIDSource()
	binder := handler.NewBinder(intakeSvc, catalog, ids, cfg.FormID, cfg.QuestionnaireID)

	// Handlers
	r := router.New(cfg.JWTSecret, router.Handlers{
		Auth:          handler.NewAuthHandler(authSvc, sessions, renderer, cfg.SecureCookies),
		Intake:        handler.NewIntakeHandler(intakeSvc, docSvc, authSvc, sessions, binder, renderer, cfg.FormID, cfg.UploadMaxBytes, cfg.SecureCookies),
		Questionnaire: handler.NewQuestionnaireHandler(intakeSvc, catalog, ids, sessions, binder, renderer, cfg.QuestionnaireID, true),
		Live:          live.NewHandler(sessions, catalog, ids),
		Form:          handler.NewFormHandler(fieldSvc),
		Submission:    handler.NewSubmissionHandler(searchSvc),
		Document:      handler.NewDocumentHandler(docSvc, cfg.UploadMaxBytes),
		Search:        handler.NewSearchHandler(searchSvc),
		Dashboard:     handler.NewDashboardHandler(dashSvc),
		Admin:         handler.NewAdminHandler(authSvc),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		log.Printf("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Warning: shutdown: %v", err)
		}
	}()

	log.Printf("Intake server starting on %s", cfg.HTTPAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server failed: %v", err)
	}
}

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	httpadapter "github.com/tonglam/vehicle-track-sub000/internal/adapters/http"
	"github.com/tonglam/vehicle-track-sub000/internal/adapters/localfs"
	pg "github.com/tonglam/vehicle-track-sub000/internal/adapters/postgres"
	smtpadapter "github.com/tonglam/vehicle-track-sub000/internal/adapters/smtp"
	"github.com/tonglam/vehicle-track-sub000/internal/config"
	aggsvc "github.com/tonglam/vehicle-track-sub000/internal/services/agreements"
	docsvc "github.com/tonglam/vehicle-track-sub000/internal/services/documents"
	drvsvc "github.com/tonglam/vehicle-track-sub000/internal/services/drivers"
	signsvc "github.com/tonglam/vehicle-track-sub000/internal/services/signing"
	tplsvc "github.com/tonglam/vehicle-track-sub000/internal/services/templates"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Printf("warning: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required for Postgres adapters")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := pg.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect error: %v", err)
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		log.Fatalf("db migrate error: %v", err)
	}

	storage := localfs.New(cfg.StorageDir, cfg.StorageBaseURL)
	mailer := smtpadapter.New(cfg.SMTPAddr, cfg.SMTPFrom, cfg.SMTPUsername, cfg.SMTPPassword)

	tokenTTL := time.Duration(cfg.SigningTokenTTLDays) * 24 * time.Hour
	templates := tplsvc.New(db)
	agreements := aggsvc.New(db, db, db, db, db, storage, mailer, db, aggsvc.Options{
		OrgName:       cfg.OrgName,
		PortalBaseURL: cfg.PortalBaseURL,
		TokenTTL:      tokenTTL,
	})
	drivers := drvsvc.New(db)
	documents := docsvc.New(db, storage)
	signing := signsvc.New(db, agreements, db, db, cfg.OrgName, tokenTTL)

	srv := httpadapter.New(templates, agreements, drivers, documents, signing)
	r := chi.NewRouter()
	r.Mount("/", srv.Routes())
	// Serve stored objects straight from disk; an object store would hand out
	// its own URLs instead.
	r.Handle("/files/*", http.StripPrefix("/files/", http.FileServer(http.Dir(cfg.StorageDir))))

	errCh := make(chan error, 1)
	go func() { errCh <- http.ListenAndServe(cfg.ListenAddr, r) }()
	log.Printf("listening on %s", cfg.ListenAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Printf("shutting down on %s", sig)
		cancel()
		time.Sleep(300 * time.Millisecond)
	case err := <-errCh:
		log.Fatal(fmt.Errorf("server error: %w", err))
	}
}

package main

import (
	"context"
	"database/sql"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Blog struct {
	store         *Store
	auth          *AuthService
	posts         *PostController
	templates     map[string]*template.Template
	log           *slog.Logger
	secureCookies bool
	metrics       bool
}

func NewBlog(db *sql.DB, cfg Config, log *slog.Logger) *Blog {
	store := NewStore(db)
	return &Blog{
		store:         store,
		auth:          NewAuthService(store, store, log, cfg.BcryptCost),
		posts:         NewPostController(store, log),
		templates:     loadTemplates(),
		log:           log,
		secureCookies: cfg.SecureCookies,
		metrics:       cfg.MetricsEnabled,
	}
}

func (b *Blog) routes() http.Handler {
	mux := http.NewServeMux()

	// Public routes
	mux.HandleFunc("/", b.Home)
	mux.HandleFunc("GET /post/{id}", b.Detail)
	mux.HandleFunc("/register", b.Register)
	mux.HandleFunc("/login", b.Login)
	mux.HandleFunc("GET /logout", b.Logout)
	if b.metrics {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	// Admin routes
	mux.HandleFunc("GET /dashboard", b.requireAdmin(b.Dashboard))
	mux.HandleFunc("/create", b.requireAdmin(b.Create))
	mux.HandleFunc("/edit/{id}", b.requireAdmin(b.Edit))
	mux.HandleFunc("GET /delete/{id}", b.requireAdmin(b.Delete))
	mux.HandleFunc("/settings", b.requireAdmin(b.Settings))

	return b.loadSession(b.logRequests(mux))
}

func main() {
	cfg := loadConfig()
	log := newLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	db, err := openDB(cfg.DBPath)
	if err != nil {
		log.Error("opening database", slog.String("path", cfg.DBPath), slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer db.Close()

	if err = initDB(db); err != nil {
		log.Error("initializing database", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err = seedSettings(db); err != nil {
		log.Error("seeding settings", slog.String("error", err.Error()))
		os.Exit(1)
	}

	blog := NewBlog(db, cfg, log)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           blog.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		defer close(done)
		log.Info("server starting", slog.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	<-quit
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server shutdown", slog.String("error", err.Error()))
	}
	<-done
}

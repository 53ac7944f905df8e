// Сервис ретрансляции местоположений: эфемерные сессии, публичные ссылки
// просмотра, групповые шары с PIN.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/locshare/internal/auth"
	"github.com/locshare/internal/config"
	"github.com/locshare/internal/handler"
	"github.com/locshare/internal/logger"
	"github.com/locshare/internal/middleware"
	"github.com/locshare/internal/repository"
	"github.com/locshare/internal/service"
	"github.com/locshare/internal/startup"
	"github.com/locshare/internal/storage"
	"github.com/locshare/internal/storage/memory"
	"github.com/locshare/internal/ws"
)

func main() {
	logger.SetPrefix("api")
	dev := flag.Bool("dev", false, "use in-memory store and embedded PostgreSQL (no external services required)")
	flag.Parse()

	logger.Info("starting relay service")
	cfg := config.Load()

	var store storage.Store
	if *dev {
		logger.Info("api -dev: in-memory store, данные теряются при перезапуске")
		store = memory.New()
	} else {
		redisClient := startup.ConnectRedisWithRetry(cfg.Redis.URL, cfg.Redis.Prefix, 60*time.Second, "api: ")
		defer redisClient.Close()
		store = redisClient
	}

	sessionRepo := repository.NewSessionRepository(store)
	shareRepo := repository.NewShareRepository(store, cfg.LinkStyle)

	var authn auth.Authenticator
	switch cfg.Auth.Method {
	case config.AuthPassword:
		if cfg.Auth.PasswordHash == "" {
			logger.Info("auth: пароль не задан, инстанс открыт для всех")
		} else {
			authn = auth.NewPasswordAuthenticator(cfg.Auth.PasswordHash)
		}
	case config.AuthHtpasswd:
		authn = auth.NewHtpasswdAuthenticator(cfg.Auth.HtpasswdPath)
	case config.AuthDatabase:
		if *dev {
			embeddedDB, err := startEmbeddedPostgres(cfg)
			if err != nil {
				logger.Errorf("embedded postgres: %v", err)
				os.Exit(1)
			}
			defer func() {
				logger.Info("stopping embedded postgres...")
				if err := embeddedDB.Stop(); err != nil {
					logger.Errorf("embedded postgres stop: %v", err)
				}
			}()
		}
		poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL())
		if err != nil {
			logger.Errorf("parse db config: %v", err)
			os.Exit(1)
		}
		poolCfg.MaxConns = int32(cfg.DBMaxConnections())
		pool := startup.ConnectDBWithRetry(poolCfg, 60*time.Second, "api: ")
		defer pool.Close()
		migCtx, migCancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := startup.ApplyMigrations(migCtx, pool); err != nil {
			migCancel()
			logger.Errorf("apply migrations: %v", err)
			os.Exit(1)
		}
		migCancel()
		authn = auth.NewDatabaseAuthenticator(repository.NewUserRepository(pool))
	default:
		logger.Errorf("unknown auth method %q", cfg.Auth.Method)
		os.Exit(1)
	}

	hub := ws.NewHub(cfg.MaxWSConnections)
	hubCtx, hubCancel := context.WithCancel(context.Background())
	var hubWg sync.WaitGroup
	hubWg.Add(1)
	go func() {
		defer hubWg.Done()
		hub.Run(hubCtx)
	}()

	svc := service.NewRelayService(cfg, sessionRepo, shareRepo, hub)
	h := handler.New(cfg, svc, authn, hub)

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLog)
	r.Use(middleware.RecoverPlain)
	r.Use(middleware.Version)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{cfg.CORSAllowedOrigins},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimitAPI)
		r.Post("/api/create.php", h.Create)
		r.Post("/api/post.php", h.Post)
		r.Post("/api/stop.php", h.Stop)
		r.Get("/api/fetch.php", h.Fetch)
		r.Post("/api/adopt.php", h.Adopt)
		r.Post("/api/new-link.php", h.NewLink)
		r.Get("/api/live", h.Live)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	var srvWg sync.WaitGroup
	srvWg.Add(1)
	go func() {
		defer srvWg.Done()
		logger.Infof("api server listening on %s", cfg.ServerAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("api server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down api server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("api server shutdown: %v", err)
	}
	srvWg.Wait()
	hubCancel()
	hubWg.Wait()
	logger.Info("api server stopped")
}

// startEmbeddedPostgres поднимает встроенный PostgreSQL для -dev: метод
// аутентификации database работает без внешней БД. Данные живут в ./.pgdata
// и переживают перезапуск.
func startEmbeddedPostgres(cfg *config.Config) (*embeddedpostgres.EmbeddedPostgres, error) {
	const (
		port     = 5432
		user     = "locshare"
		password = "locshare_secret"
		database = "locshare"
	)

	dataDir := filepath.Join(".", ".pgdata")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create pgdata dir: %w", err)
	}

	db := embeddedpostgres.NewDatabase(
		embeddedpostgres.DefaultConfig().
			Port(port).
			Username(user).
			Password(password).
			Database(database).
			DataPath(dataDir).
			RuntimePath(filepath.Join(os.TempDir(), "embedded-pg-runtime")),
	)

	logger.Info("starting embedded PostgreSQL...")
	if err := db.Start(); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}

	cfg.Database.URL = fmt.Sprintf(
		"postgres://%s:%s@localhost:%d/%s?sslmode=disable",
		user, password, port, database,
	)
	logger.Infof("embedded PostgreSQL running on port %d", port)
	return db, nil
}

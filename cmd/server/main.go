package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/meilisearch/meilisearch-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"tutorme.app/marketplace/internal/bootstrap"
	"tutorme.app/marketplace/internal/config"
	"tutorme.app/marketplace/internal/gateway"
	"tutorme.app/marketplace/internal/gateway/firebasedb"
	"tutorme.app/marketplace/internal/gateway/identity"
	"tutorme.app/marketplace/internal/gateway/memdb"
	"tutorme.app/marketplace/internal/gateway/notifier"
	searchService "tutorme.app/marketplace/internal/modules/search/service"
	userRepo "tutorme.app/marketplace/internal/modules/user/repository"
	"tutorme.app/marketplace/internal/server"
	"tutorme.app/marketplace/pkg/database"
	"tutorme.app/marketplace/pkg/logger"
	"tutorme.app/marketplace/pkg/mailer"
	"tutorme.app/marketplace/pkg/metrics"
	"tutorme.app/marketplace/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zl := logger.New(cfg.AppEnv, cfg.LogLevel, "tutorme")
	defer zl.Sync()
	zap.ReplaceGlobals(zl)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			zl.Fatal("invalid REDIS_URL", zap.Error(err))
		}
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			zl.Fatal("failed to connect redis", zap.Error(err))
		}
		defer redisClient.Close()
	}

	var n notifier.Notifier = notifier.NewLocal()
	tokens := identity.NewMemoryTokenStore(nil)
	if redisClient != nil {
		n = notifier.NewRedis(redisClient, cfg.RedisPrefix, zl)
		tokens = identity.NewRedisTokenStore(redisClient)
	}

	accounts := identity.NewMemoryAccountRepository()
	if cfg.UseDatabase() {
		db, err := database.Connect(database.Config{
			URL:      cfg.DatabaseURL,
			Host:     cfg.DatabaseHost,
			User:     cfg.DatabaseUser,
			Password: cfg.DatabasePassword,
			Name:     cfg.DatabaseName,
			Port:     cfg.DatabasePort,
		}, zl)
		if err != nil {
			zl.Fatal("failed to connect database", zap.Error(err))
		}
		if err := bootstrap.Migrate(db); err != nil {
			zl.Fatal("migration failed", zap.Error(err))
		}
		accounts = identity.NewAccountRepository(db)
	} else {
		zl.Warn("DATABASE_URL not set, accounts are kept in memory")
	}

	var store gateway.Store
	if cfg.UseFirebase() {
		fb, err := firebasedb.New(ctx, firebasedb.Config{
			DatabaseURL:     cfg.FirebaseDatabaseURL,
			CredentialsPath: cfg.FirebaseCredentialsPath,
		}, n, zl)
		if err != nil {
			zl.Fatal("failed to initialize firebase", zap.Error(err))
		}
		defer fb.Close()
		store = fb
	} else {
		zl.Warn("FIREBASE_DATABASE_URL not set, using in-memory store")
		mem := memdb.New(zl)
		defer mem.Close()
		store = mem
	}

	auth := identity.NewService(accounts, tokens, n, mailer.New(mailer.Config{
		APIKey:    cfg.SendGridAPIKey,
		FromName:  cfg.MailFromName,
		FromEmail: cfg.MailFromEmail,
		AppName:   "TutorMe",
	}, zl), identity.Config{
		Secret:        cfg.JWTSecret,
		TokenTTL:      cfg.TokenTTL,
		ResetTTL:      cfg.ResetTTL,
		MaxAttempts:   cfg.MaxAttempts,
		AttemptWindow: cfg.AttemptWindow,
		ResetURL:      cfg.ResetURL,
	}, zl)
	if err := auth.Start(ctx); err != nil {
		zl.Fatal("failed to start auth gateway", zap.Error(err))
	}
	defer auth.Close()

	tutorSearch := searchService.NewNopTutorSearch()
	if cfg.MeiliSearchHost != "" {
		client := meilisearch.New(cfg.MeiliSearchHost, meilisearch.WithAPIKey(cfg.MeiliMasterKey))
		tutorSearch = searchService.NewMeiliTutorSearch(client, zl)
	}

	imageStorage, err := storage.NewCloudinaryStorage(storage.CloudinaryConfig{
		CloudName:    cfg.CloudinaryCloudName,
		APIKey:       cfg.CloudinaryAPIKey,
		APISecret:    cfg.CloudinaryAPISecret,
		UploadFolder: cfg.CloudinaryUploadFolder,
	})
	if err != nil {
		zl.Fatal("failed to initialize cloudinary storage", zap.Error(err))
	}

	if err := bootstrap.SeedCatalog(ctx, store, zl); err != nil {
		zl.Fatal("failed to seed catalog", zap.Error(err))
	}
	if cfg.SeedDemoData {
		if err := bootstrap.SeedDemoTutor(ctx, auth, userRepo.NewUserRepository(store, zl, nil), zl); err != nil {
			zl.Warn("failed to seed demo tutor", zap.Error(err))
		}
	}

	srv, err := server.NewServer(cfg, server.Deps{
		Store:        store,
		Auth:         auth,
		TutorSearch:  tutorSearch,
		ImageStorage: imageStorage,
		Metrics:      metrics.New("tutorme"),
		Log:          zl,
	})
	if err != nil {
		zl.Fatal("failed to build server", zap.Error(err))
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run(":" + cfg.Port)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			zl.Fatal("server exited with error", zap.Error(err))
		}
	case <-ctx.Done():
	}

	zl.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("graceful shutdown failed", zap.Error(err))
	}
}

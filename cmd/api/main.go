package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/BenSwartz123/partner-backend/internal/ai"
	"github.com/BenSwartz123/partner-backend/internal/analytics"
	"github.com/BenSwartz123/partner-backend/internal/app"
	"github.com/BenSwartz123/partner-backend/internal/config"
	"github.com/BenSwartz123/partner-backend/internal/email"
	"github.com/BenSwartz123/partner-backend/internal/notify"
	"github.com/BenSwartz123/partner-backend/internal/search"
	"github.com/BenSwartz123/partner-backend/internal/storage"
	"github.com/BenSwartz123/partner-backend/internal/store"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("config invalid", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		slog.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	dataStore := store.NewPostgresStore(db)
	opts := app.Options{}

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	opts.Search = search.NewService(meiliClient)

	var cache *analytics.Cache
	if strings.TrimSpace(cfg.RedisURL) != "" {
		cache, err = analytics.NewCache(cfg.RedisURL, cfg.AnalyticsCacheTTL)
		if err != nil {
			slog.Error("redis connection failed", "error", err)
			os.Exit(1)
		}
		defer cache.Close()
	}
	opts.Analytics = analytics.NewService(dataStore, cache)

	var emailSvc *email.Service
	if strings.TrimSpace(cfg.SMTPHost) != "" {
		emailSvc = email.NewService(email.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
		})
	}
	notifier := notify.New(emailSvc, cfg.AppURL)
	opts.Notifier = notifier

	if strings.TrimSpace(cfg.OllamaURL) != "" {
		client, err := ai.NewClient(ai.ClientConfig{
			BaseURL: cfg.OllamaURL,
			Timeout: cfg.OllamaTimeout,
		})
		if err != nil {
			slog.Error("ollama client setup failed", "error", err)
			os.Exit(1)
		}
		engine, err := ai.NewEngine(client, cfg.OllamaModel)
		if err != nil {
			slog.Error("analysis engine setup failed", "error", err)
			os.Exit(1)
		}
		opts.AI = engine
		slog.Info("submission analysis enabled", "model", cfg.OllamaModel)
	}

	if strings.TrimSpace(cfg.S3Endpoint) != "" {
		decks, err := storage.New(ctx, storage.Config{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			UseSSL:    cfg.S3UseSSL,
		})
		if err != nil {
			slog.Error("deck storage setup failed", "error", err)
			os.Exit(1)
		}
		opts.Decks = decks
	}

	service := app.New(cfg, dataStore, opts)

	if meiliClient != nil {
		go reindexSubmissions(ctx, dataStore, opts.Search)
	}

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("api listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	notifier.Wait()
}

// reindexSubmissions pushes the whole corpus into the search index on boot,
// so a fresh or recovered Meilisearch catches up without manual action.
func reindexSubmissions(ctx context.Context, dataStore *store.PostgresStore, searchSvc *search.Service) {
	items, err := dataStore.ListSubmissions(ctx, store.SubmissionFilter{})
	if err != nil {
		slog.Warn("search reindex skipped", "error", err)
		return
	}
	records := make([]search.Record, 0, len(items))
	for _, item := range items {
		records = append(records, search.Record{
			ID:          item.ID,
			CompanyName: item.CompanyName,
			OneLiner:    item.OneLiner,
			Description: item.Description,
			Industry:    item.Industry,
			Stage:       item.Stage,
			Status:      item.Status,
			FounderID:   item.FounderID,
		})
	}
	searchSvc.ReindexAll(records)
	slog.Info("search reindex complete", "count", len(records))
}

package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"chatpulse-insights/internal/graph"
	"chatpulse-insights/internal/handlers"
	"chatpulse-insights/internal/httpserver"
	"chatpulse-insights/internal/insights"
	"chatpulse-insights/internal/metrics"
	"chatpulse-insights/internal/pages"
	"chatpulse-insights/internal/sentiment"
	"chatpulse-insights/pkg/logging/logging"
)

type Config struct {
	Port          string
	GraphBaseURL  string
	InsightsTTL   time.Duration
	TokenBackend  string // "memory", "postgres" or "redis"
	PageTokens    string // "page:token" pairs for the memory backend
	PageAliases   string // "alias:canonical" pairs
	SentimentSeed string
	RedisAddr     string
	RedisPrefix   string
}

func LoadConfig() Config {
	ttl := insights.DefaultTTL
	if raw := os.Getenv("INSIGHTS_TTL"); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil && parsed > 0 {
			ttl = parsed
		}
	}

	return Config{
		Port:          getenv("PORT", "8080"),
		GraphBaseURL:  getenv("GRAPH_BASE_URL", "https://graph.facebook.com/v18.0"),
		InsightsTTL:   ttl,
		TokenBackend:  getenv("TOKEN_BACKEND", "memory"),
		PageTokens:    os.Getenv("PAGE_TOKENS"),
		PageAliases:   os.Getenv("PAGE_ALIASES"),
		SentimentSeed: os.Getenv("SENTIMENT_SEED"),
		RedisAddr:     getenv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPrefix:   getenv("REDIS_PREFIX", "chatpulse"),
	}
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("gateway exited with error: %v", err)
	}
}

func run() error {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system env")
	}

	// ----- Logger -----
	logger := logging.DefaultLogger()
	defer logger.Sync()

	// ----- Metrics -----
	metrics.Register()

	// ----- Config -----
	cfg := LoadConfig()

	logger.Info("loaded config",
		zap.String("port", cfg.Port),
		zap.String("graph_base_url", cfg.GraphBaseURL),
		zap.Duration("insights_ttl", cfg.InsightsTTL),
		zap.String("token_backend", cfg.TokenBackend),
	)

	// ----- Token backend clients (only if needed) -----
	var redisClient *redis.Client
	if cfg.TokenBackend == "redis" {
		redisClient = redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
		})

		// Fail fast if Redis is misconfigured
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Error("redis connection failed", zap.Error(err))
			return err
		}
		logger.Info("redis connection established",
			zap.String("addr", cfg.RedisAddr),
		)
	}

	var db *sql.DB
	if cfg.TokenBackend == "postgres" {
		var err error
		db, err = openPostgres()
		if err != nil {
			logger.Error("postgres connection failed", zap.Error(err))
			return err
		}
		defer db.Close()
		logger.Info("postgres connection established")
	}

	// ----- Page aliasing + token resolution -----
	aliases, err := pages.ParseAliases(cfg.PageAliases)
	if err != nil {
		return fmt.Errorf("PAGE_ALIASES: %w", err)
	}

	tokens, err := pages.NewTokenResolver(pages.Config{
		Backend: cfg.TokenBackend,
		Tokens:  parsePairs(cfg.PageTokens),
		DB:      db,
		Redis:   redisClient,
		Prefix:  cfg.RedisPrefix,
	})
	if err != nil {
		return err
	}

	// ----- Sentiment source -----
	seed, err := sentiment.ParseSeed(cfg.SentimentSeed)
	if err != nil {
		return fmt.Errorf("SENTIMENT_SEED: %w", err)
	}
	sentimentSource := sentiment.NewCachedSource(sentiment.NewStaticSource(seed), 15*time.Minute)

	// ----- Graph client -----
	graphClient, err := graph.NewClient(graph.Config{
		BaseURL: cfg.GraphBaseURL,
	}, logger)
	if err != nil {
		return err
	}
	defer graphClient.Close()

	// ----- Insights coordinator -----
	store := insights.NewStore(cfg.InsightsTTL, insights.SystemClock())
	service := insights.NewService(store, graphClient, tokens, sentimentSource, aliases, logger)

	// ----- Handlers -----
	insightsHandler := handlers.NewInsightsHandler(service)

	// ----- Router + middleware -----
	r := chi.NewRouter()
	httpserver.SetupRouter(r, logger, insightsHandler)

	// ----- HTTP server -----
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("starting gateway",
		zap.String("addr", srv.Addr),
		zap.String("token_backend", cfg.TokenBackend),
	)

	// Start server in background
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", zap.Error(err))
		}
	}()

	// ----- Graceful shutdown -----
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
		return err
	}

	logger.Info("server shutdown complete")
	return nil
}

// openPostgres connects to the pages database using PG_* environment
// variables.
func openPostgres() (*sql.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		getenv("PG_HOST", "127.0.0.1"),
		getenv("PG_PORT", "5432"),
		os.Getenv("PG_USER"),
		os.Getenv("PG_PASSWORD"),
		getenv("PG_DATABASE", "chatpulse"),
		getenv("PG_SSLMODE", "disable"),
	)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// parsePairs parses comma-separated "key:value" pairs. Malformed entries are
// skipped.
func parsePairs(raw string) map[string]string {
	pairs := make(map[string]string)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, found := strings.Cut(part, ":")
		if !found || key == "" || value == "" {
			continue
		}
		pairs[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return pairs
}

// getenv returns the value of the environment variable key or def if not set.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

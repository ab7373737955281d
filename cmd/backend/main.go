// Command backend runs the blog backend API server.
//
// Configuration comes from BLOG_* environment variables, optionally loaded
// from a .env file in the working directory. BLOG_AUTH_SECRET and
// BLOG_MONGO_URI are required; the media host (BLOG_S3_*) is optional and
// upload routes fail cleanly when it is absent.
package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/RidaaNasir/blog-backend/internal/server"
)

var version = "dev" // set via -ldflags at build time

func getenvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		server.Warn("invalid integer in environment, using default", map[string]any{"key": key, "value": v})
		return fallback
	}
	return n
}

func splitOrigins(raw string) []string {
	var out []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func main() {
	// Missing .env is fine in containerised deployments.
	if err := godotenv.Load(); err == nil {
		server.Info("loaded environment from .env", nil)
	}

	secret := os.Getenv("BLOG_AUTH_SECRET")
	if secret == "" {
		server.Error("BLOG_AUTH_SECRET is required", nil, nil)
		os.Exit(1)
	}

	mongoURI := getenvDefault("BLOG_MONGO_URI", "mongodb://localhost:27017")
	dbName := getenvDefault("BLOG_DB_NAME", "blog")
	store, err := server.OpenStore(mongoURI, dbName)
	if err != nil {
		server.Error("database connection failed", map[string]any{"uri": mongoURI}, err)
		os.Exit(1)
	}

	media, err := server.NewMediaStoreFromEnv()
	if err != nil {
		// Reads keep working without a media host; uploads will 500.
		server.Warn("media store unavailable, uploads disabled", map[string]any{"reason": err.Error()})
		media = nil
	}

	ttl := time.Duration(getenvInt("BLOG_TOKEN_TTL_HOURS", 12)) * time.Hour

	srv := server.New(server.Config{
		Addr:    getenvDefault("BLOG_ADDR", ":5003"),
		Version: version,
		Auth: server.AuthConfig{
			Secret:   secret,
			TokenTTL: ttl,
		},
		Store:          store,
		Media:          media,
		AllowedOrigins: splitOrigins(getenvDefault("BLOG_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")),
		UploadsDir:     getenvDefault("BLOG_UPLOADS_DIR", "uploads"),
		RateLimit:      getenvInt("BLOG_RATE_LIMIT", 300),
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			server.Error("server failed", nil, err)
			os.Exit(1)
		}
	case sig := <-stop:
		server.Info("signal received", map[string]any{"signal": sig.String()})
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			server.Error("shutdown error", nil, err)
			os.Exit(1)
		}
	}
}

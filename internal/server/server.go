// server.go - HTTP server wiring: configuration, routes and middleware.
package server

import (
	"context"
	"net/http"
	"time"
)

const defaultMaxBodyBytes = 50 << 20 // uploads are capped at 50MB

// Config carries everything the server needs; main fills it from the
// environment, tests construct it directly.
type Config struct {
	Addr           string
	Version        string
	Auth           AuthConfig
	Store          Store
	Media          MediaStore
	AllowedOrigins []string
	UploadsDir     string

	// MaxBodyBytes limits request bodies; zero means the default cap.
	MaxBodyBytes int64

	// RateLimit is requests per minute per IP; zero disables limiting.
	RateLimit int
}

// Server owns the HTTP listener and the handler dependencies.
type Server struct {
	httpServer *http.Server
	store      Store
	auth       AuthConfig
	media      MediaStore
	lockout    *accountLockout
	limiter    *rateLimiter
	cors       *corsPolicy
	uploadsDir string
	version    string
	maxBody    int64
}

// New builds a fully-routed server from the config.
func New(cfg Config) *Server {
	s := &Server{
		store:      cfg.Store,
		auth:       cfg.Auth,
		media:      cfg.Media,
		lockout:    newAccountLockout(5, 15*time.Minute, 15*time.Minute),
		cors:       newCORSPolicy(cfg.AllowedOrigins),
		uploadsDir: cfg.UploadsDir,
		version:    cfg.Version,
		maxBody:    cfg.MaxBodyBytes,
	}
	if s.maxBody <= 0 {
		s.maxBody = defaultMaxBodyBytes
	}
	if cfg.RateLimit > 0 {
		s.limiter = newRateLimiter(cfg.RateLimit, time.Minute)
	}
	if s.uploadsDir == "" {
		s.uploadsDir = "uploads"
	}

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       5 * time.Minute, // multipart uploads can be slow
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}
	return s
}

// routes builds the mux and wraps it in the middleware chain.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Liveness
	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("GET /api/test", s.testHandler)

	// Users: registration and login are public; listing and deletion are
	// admin-only; read and update allow self-service, checked in the handler.
	mux.HandleFunc("POST /api/users", s.registerHandler)
	mux.HandleFunc("POST /api/users/login", s.loginHandler)
	mux.Handle("GET /api/users", s.requireAdmin(http.HandlerFunc(s.listUsersHandler)))
	mux.Handle("GET /api/users/{id}", s.requireAuth(http.HandlerFunc(s.getUserHandler)))
	mux.Handle("PUT /api/users/{id}", s.requireAuth(http.HandlerFunc(s.updateUserHandler)))
	mux.Handle("DELETE /api/users/{id}", s.requireAdmin(http.HandlerFunc(s.deleteUserHandler)))

	// Blog posts: reads are public, writes need a login. The author or an
	// admin may modify a post, checked in the handler.
	mux.HandleFunc("GET /api/blogs", s.listBlogsHandler)
	mux.HandleFunc("GET /api/blogs/{id}", s.getBlogHandler)
	mux.Handle("POST /api/blogs", s.requireAuth(http.HandlerFunc(s.createBlogHandler)))
	mux.Handle("PUT /api/blogs/{id}", s.requireAuth(http.HandlerFunc(s.updateBlogHandler)))
	mux.Handle("DELETE /api/blogs/{id}", s.requireAuth(http.HandlerFunc(s.deleteBlogHandler)))

	// Landing page singleton: public read, admin writes.
	mux.HandleFunc("GET /api/landing-page", s.getLandingPageHandler)
	mux.Handle("PUT /api/landing-page", s.requireAdmin(http.HandlerFunc(s.updateLandingPageHandler)))
	mux.Handle("POST /api/landing-page/hero/upload", s.requireAdmin(http.HandlerFunc(s.uploadHeroMediaHandler)))
	mux.Handle("POST /api/landing-page/upload", s.requireAdmin(http.HandlerFunc(s.uploadMediaHandler)))
	mux.Handle("POST /api/landing-page/reels", s.requireAdmin(http.HandlerFunc(s.addReelHandler)))
	mux.Handle("PUT /api/landing-page/reels", s.requireAdmin(http.HandlerFunc(s.updateReelsHandler)))
	mux.Handle("DELETE /api/landing-page/reels/{reelId}", s.requireAdmin(http.HandlerFunc(s.deleteReelHandler)))

	// Site settings singleton.
	mux.HandleFunc("GET /api/site-settings", s.getSettingsHandler)
	mux.Handle("PUT /api/site-settings", s.requireAdmin(http.HandlerFunc(s.updateSettingsHandler)))

	// Legacy local files.
	mux.HandleFunc("GET /uploads/{path...}", s.uploadsHandler)

	var h http.Handler = mux
	h = s.bodyLimitMiddleware(h)
	if s.limiter != nil {
		h = s.limiter.middleware(h)
	}
	h = s.cors.middleware(h)
	h = securityHeadersMiddleware(h)
	h = recoveryMiddleware(h)
	h = loggingMiddleware(h)
	h = requestIDMiddleware(h)
	return h
}

// bodyLimitMiddleware caps request bodies so a runaway upload cannot
// exhaust memory. Multipart readers surface the cap as *http.MaxBytesError.
func (s *Server) bodyLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
		}
		next.ServeHTTP(w, r)
	})
}

// Handler exposes the routed handler for httptest servers.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start blocks serving requests until Shutdown or a listener error.
func (s *Server) Start() error {
	Info("server starting", map[string]any{"addr": s.httpServer.Addr, "version": s.version})
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and closes the store.
func (s *Server) Shutdown(ctx context.Context) error {
	Info("server shutting down", nil)
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	return s.store.Close(ctx)
}

package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/erazemk/omara/internal/auth"
	"github.com/erazemk/omara/internal/objstore"
	"github.com/erazemk/omara/internal/ratelimit"
	"github.com/erazemk/omara/internal/wardrobe"
)

// Config holds the collaborators the router dispatches to.
type Config struct {
	DB       *sql.DB
	Auth     *auth.Service
	Wardrobe *wardrobe.Service

	// Blob is set when objects live in the SQLite bucket; its download
	// routes are registered only then.
	Blob *objstore.BlobStorage

	// IPLimiter, when set, limits auth requests per client IP.
	IPLimiter *ratelimit.Limiter

	Logger *slog.Logger
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(cfg Config) http.Handler {
	mux := http.NewServeMux()
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	authHandler := &AuthHandler{Auth: cfg.Auth}
	clothesHandler := &ClothesHandler{Wardrobe: cfg.Wardrobe}

	authMW := AuthMiddleware(cfg.Auth)
	limit := func(h http.Handler) http.Handler { return h }
	if cfg.IPLimiter != nil {
		limit = RateLimitMiddleware(cfg.IPLimiter)
	}

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.DB.PingContext(r.Context()); err != nil {
			jsonError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Public: sign up and log in.
	mux.Handle("POST /api/auth/signup", limit(http.HandlerFunc(authHandler.SignUp)))
	mux.Handle("POST /api/auth/login", limit(http.HandlerFunc(authHandler.Login)))

	// Authenticated routes.
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))
	mux.Handle("GET /api/auth/session", authMW(http.HandlerFunc(authHandler.Session)))

	mux.Handle("POST /api/clothes/image", authMW(http.HandlerFunc(clothesHandler.UploadImage)))
	mux.Handle("POST /api/clothes", authMW(http.HandlerFunc(clothesHandler.Create)))
	mux.Handle("GET /api/clothes", authMW(http.HandlerFunc(clothesHandler.List)))
	mux.Handle("DELETE /api/clothes/{id}", authMW(http.HandlerFunc(clothesHandler.Delete)))

	// Object downloads authorize with the URL token, not a session.
	if cfg.Blob != nil {
		objectsHandler := &ObjectsHandler{Blob: cfg.Blob}
		mux.HandleFunc("GET /object/sign/{bucket}/{key...}", objectsHandler.Signed)
		mux.HandleFunc("GET /object/public/{bucket}/{key...}", objectsHandler.Public)
	}

	return LoggingMiddleware(logger)(mux)
}

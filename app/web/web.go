// Package web implements the JSON API server for the dispatch application
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/didip/tollbooth/v8"
	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/rest/logger"
	"github.com/go-pkgz/routegroup"

	"github.com/postbureau/dispatch/app/auth"
	"github.com/postbureau/dispatch/app/notify"
	"github.com/postbureau/dispatch/app/store"
	"github.com/postbureau/dispatch/app/store/enums"
)

// authCookie is the session cookie name
const authCookie = "dispatch-auth"

// Server represents the web server
type Server struct {
	store          *store.Store
	auth           *auth.Service
	notifier       *notify.Service
	version        string
	startTime      time.Time
	loginTTL       time.Duration
	csrfProtection *http.CrossOriginProtection
}

// Config holds server configuration
type Config struct {
	Store    *store.Store
	Auth     *auth.Service
	Notifier *notify.Service // optional, nil disables notifications
	Version  string
	LoginTTL time.Duration // session cookie lifetime, defaults to 24h
}

// New creates a new web server
func New(cfg Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("web server initialization failed: Store is required")
	}
	if cfg.Auth == nil {
		return nil, fmt.Errorf("web server initialization failed: Auth is required")
	}

	loginTTL := cfg.LoginTTL
	if loginTTL == 0 {
		loginTTL = 24 * time.Hour
	}

	return &Server{
		store:          cfg.Store,
		auth:           cfg.Auth,
		notifier:       cfg.Notifier,
		version:        cfg.Version,
		startTime:      time.Now(),
		loginTTL:       loginTTL,
		csrfProtection: http.NewCrossOriginProtection(),
	}, nil
}

// Run starts the web server, blocks until the context is canceled
func (s *Server) Run(ctx context.Context, address string) error {
	server := &http.Server{
		Addr:              address,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("[WARN] failed to shutdown server: %v", err)
		}
	}()

	log.Printf("[INFO] starting web server on %s", address)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("web server failed: %w", err)
	}
	return nil
}

// routes returns the http.Handler with all routes configured
func (s *Server) routes() http.Handler {
	router := routegroup.New(http.NewServeMux())

	// global middleware - applied to all routes
	router.Use(
		rest.RealIP,
		rest.Recoverer(log.Default()),
		rest.Throttle(1000),
		rest.AppInfo("dispatch", "postbureau", s.version),
		rest.Ping,
		rest.Trace,
		rest.SizeLimit(64*1024), // 64KB max request size
		logger.New(logger.Log(log.Default()), logger.Prefix("[DEBUG]")).Handler,
	)

	router.Mount("/api/v1").Route(func(api *routegroup.Bundle) {
		api.Use(rest.NoCache)
		api.Use(s.csrfProtection.Handler)

		// login is not behind the auth middleware and is rate limited
		loginLimiter := tollbooth.NewLimiter(5, nil)
		api.With(tollbooth.HTTPMiddleware(loginLimiter)).HandleFunc("POST /login", s.handleLogin)

		api.Group().Route(func(priv *routegroup.Bundle) {
			priv.Use(s.authMiddleware)

			priv.HandleFunc("POST /logout", s.handleLogout)
			priv.HandleFunc("GET /session", s.handleSession)
			priv.HandleFunc("GET /status", s.handleStatus)

			priv.HandleFunc("GET /jobs", s.handleListJobs)
			priv.HandleFunc("POST /jobs", s.handleAddJob)
			priv.HandleFunc("GET /jobs/{id}", s.handleGetJob)
			priv.With(s.requireRole(enums.RoleManager)).HandleFunc("PUT /jobs/{id}", s.handleUpdateJob)
			priv.With(s.requireRole(enums.RoleAdmin)).HandleFunc("DELETE /jobs/{id}", s.handleDeleteJob)
			priv.HandleFunc("POST /jobs/{id}/files", s.handleAddJobFile)

			priv.HandleFunc("GET /documents", s.handleListDocuments)
			priv.With(s.requireRole(enums.RoleManager)).HandleFunc("POST /documents", s.handleAddDocument)
			priv.With(s.requireRole(enums.RoleManager)).HandleFunc("PUT /documents/{id}", s.handleUpdateDocument)
			priv.With(s.requireRole(enums.RoleManager)).HandleFunc("DELETE /documents/{id}", s.handleDeleteDocument)

			priv.HandleFunc("GET /clients", s.handleListClients)
			priv.With(s.requireRole(enums.RoleManager)).HandleFunc("POST /clients", s.handleAddClient)
			priv.With(s.requireRole(enums.RoleManager)).HandleFunc("PUT /clients/{id}", s.handleUpdateClient)
			priv.With(s.requireRole(enums.RoleAdmin)).HandleFunc("DELETE /clients/{id}", s.handleDeleteClient)

			priv.With(s.requireRole(enums.RoleAdmin)).HandleFunc("GET /users", s.handleListUsers)
			priv.With(s.requireRole(enums.RoleAdmin)).HandleFunc("POST /users", s.handleAddUser)
			priv.With(s.requireRole(enums.RoleAdmin)).HandleFunc("PUT /users/{id}", s.handleUpdateUser)
			priv.With(s.requireRole(enums.RoleAdmin)).HandleFunc("DELETE /users/{id}", s.handleDeleteUser)

			priv.HandleFunc("GET /requests", s.handleListRequests)
			priv.HandleFunc("POST /requests", s.handleAddRequest)
			priv.With(s.requireRole(enums.RoleManager)).HandleFunc("PUT /requests/{id}/complete", s.handleCompleteRequest)

			priv.HandleFunc("GET /artwork", s.handleListArtwork)
			priv.HandleFunc("POST /artwork", s.handleAddArtwork)
			priv.With(s.requireRole(enums.RoleManager)).HandleFunc("PUT /artwork/{id}/review", s.handleReviewArtwork)
		})
	})

	return router
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[WARN] failed to encode JSON response: %v", err)
	}
}

// writeJSONError writes a JSON error response
func (s *Server) writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]string{"error": message}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("[WARN] failed to encode JSON error response: %v", err)
	}
}

// writeStoreError maps store errors to HTTP status codes
func (s *Server) writeStoreError(w http.ResponseWriter, err error, what string) {
	if errors.Is(err, store.ErrNotFound) {
		s.writeJSONError(w, http.StatusNotFound, what+" not found")
		return
	}
	log.Printf("[ERROR] %s operation failed: %v", what, err)
	s.writeJSONError(w, http.StatusInternalServerError, "failed to process "+what)
}

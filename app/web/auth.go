package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/go-pkgz/lgr"

	"github.com/postbureau/dispatch/app/auth"
	"github.com/postbureau/dispatch/app/store"
	"github.com/postbureau/dispatch/app/store/enums"
)

type ctxKey int

const sessionKey ctxKey = iota

// sessionFrom returns the authenticated session stored by authMiddleware
func sessionFrom(r *http.Request) auth.Session {
	sess, _ := r.Context().Value(sessionKey).(auth.Session)
	return sess
}

// loginRequest is the POST /login payload
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginResponse returns the session with resolved sub-client restrictions
type loginResponse struct {
	auth.Session
	AllowedSubClients []store.SubClientRef `json:"allowed_sub_clients,omitempty"`
}

// handleLogin authenticates a user and sets the session cookie
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "invalid login payload")
		return
	}
	if req.Email == "" || req.Password == "" {
		s.writeJSONError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	sess, err := s.auth.Login(req.Email, req.Password, r.RemoteAddr)
	switch {
	case errors.Is(err, auth.ErrSuspended):
		s.writeJSONError(w, http.StatusForbidden, "account suspended")
		return
	case errors.Is(err, auth.ErrInvalidCredentials):
		s.writeJSONError(w, http.StatusUnauthorized, "invalid credentials")
		return
	case err != nil:
		log.Printf("[ERROR] login failed for %s: %v", req.Email, err)
		s.writeJSONError(w, http.StatusInternalServerError, "login failed")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     authCookie,
		Value:    sess.Token,
		Path:     "/",
		MaxAge:   int(s.loginTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https",
	})

	log.Printf("[INFO] user %s logged in", sess.Email)
	s.writeJSON(w, http.StatusOK, s.sessionResponse(sess))
}

// handleLogout drops the session and clears the cookie
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(authCookie); err == nil {
		s.auth.Logout(cookie.Value)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     authCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1, // delete cookie
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https",
	})
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// handleSession returns the current session with fresh sub-client view
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.sessionResponse(sessionFrom(r)))
}

// sessionResponse resolves the denormalized sub-client view on read
func (s *Server) sessionResponse(sess auth.Session) loginResponse {
	resp := loginResponse{Session: sess}
	refs, err := s.auth.AllowedSubClients(sess)
	if err != nil {
		log.Printf("[WARN] failed to resolve sub-clients for %s: %v", sess.Email, err)
		return resp
	}
	resp.AllowedSubClients = refs
	return resp
}

// authMiddleware checks the session cookie or falls back to basic auth
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// check session cookie
		if cookie, err := r.Cookie(authCookie); err == nil {
			if sess, ok := s.auth.Session(cookie.Value); ok {
				next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey, sess)))
				return
			}
		}

		// fallback to basic auth for API clients
		if email, password, ok := r.BasicAuth(); ok {
			if sess, err := s.auth.Authenticate(email, password); err == nil {
				next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey, sess)))
				return
			}
		}

		w.Header().Set("WWW-Authenticate", `Basic realm="Dispatch API"`)
		s.writeJSONError(w, http.StatusUnauthorized, "authentication required")
	})
}

// requireRole gates a route by minimum role
func (s *Server) requireRole(required enums.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := sessionFrom(r)
			if !s.auth.HasPermission(sess, required) {
				s.writeJSONError(w, http.StatusForbidden, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

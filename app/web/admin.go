package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	log "github.com/go-pkgz/lgr"

	"github.com/postbureau/dispatch/app/store"
	"github.com/postbureau/dispatch/app/store/enums"
)

// handleListClients returns all clients with their sub-clients
func (s *Server) handleListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := s.store.ListClients()
	if err != nil {
		s.writeStoreError(w, err, "clients")
		return
	}
	s.writeJSON(w, http.StatusOK, clients)
}

// handleAddClient creates a client with its sub-clients
func (s *Server) handleAddClient(w http.ResponseWriter, r *http.Request) {
	var client store.Client
	if err := json.NewDecoder(r.Body).Decode(&client); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "invalid client payload")
		return
	}

	added, err := s.store.AddClient(client)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	log.Printf("[INFO] client %q added with %d sub-clients", added.Name, len(added.SubClients))
	s.writeJSON(w, http.StatusCreated, added)
}

// handleUpdateClient replaces the client name and sub-client list
func (s *Server) handleUpdateClient(w http.ResponseWriter, r *http.Request) {
	var client store.Client
	if err := json.NewDecoder(r.Body).Decode(&client); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "invalid client payload")
		return
	}
	client.ID = r.PathValue("id")

	if err := s.store.UpdateClient(client); err != nil {
		s.writeStoreError(w, err, "client")
		return
	}

	updated, err := s.store.GetClient(client.ID)
	if err != nil {
		s.writeStoreError(w, err, "client")
		return
	}
	s.writeJSON(w, http.StatusOK, updated)
}

// handleDeleteClient removes a client and its sub-clients, idempotent
func (s *Server) handleDeleteClient(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteClient(r.PathValue("id")); err != nil {
		s.writeStoreError(w, err, "client")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// userRequest is the create/update payload for accounts, password optional on update
type userRequest struct {
	store.User
	Password string `json:"password,omitempty"`
}

// handleListUsers returns all accounts, admin only
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.ListUsers()
	if err != nil {
		s.writeStoreError(w, err, "users")
		return
	}
	s.writeJSON(w, http.StatusOK, users)
}

// handleAddUser creates an account, admin only
func (s *Server) handleAddUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "invalid user payload")
		return
	}

	added, err := s.store.AddUser(req.User, req.Password)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	log.Printf("[INFO] user %s added with role %s by %s", added.Email, added.Role, sessionFrom(r).Email)
	s.writeJSON(w, http.StatusCreated, added)
}

// handleUpdateUser replaces account fields, keeps password unless one is given
func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "invalid user payload")
		return
	}
	req.User.ID = r.PathValue("id")

	if err := s.store.UpdateUser(req.User, req.Password); err != nil {
		s.writeStoreError(w, err, "user")
		return
	}

	updated, err := s.store.GetUser(req.User.ID)
	if err != nil {
		s.writeStoreError(w, err, "user")
		return
	}
	s.writeJSON(w, http.StatusOK, updated)
}

// handleDeleteUser removes an account, idempotent
func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteUser(r.PathValue("id")); err != nil {
		s.writeStoreError(w, err, "user")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleListRequests returns all identifier requests, newest first
func (s *Server) handleListRequests(w http.ResponseWriter, r *http.Request) {
	reqs, err := s.store.ListRequests()
	if err != nil {
		s.writeStoreError(w, err, "requests")
		return
	}
	s.writeJSON(w, http.StatusOK, reqs)
}

// handleAddRequest submits a UCID/SCID identifier request
func (s *Server) handleAddRequest(w http.ResponseWriter, r *http.Request) {
	var req store.UCIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if req.RequestorEmail == "" {
		req.RequestorEmail = sessionFrom(r).Email
	}

	added, err := s.store.AddRequest(req)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	log.Printf("[INFO] %s request submitted for %s by %s", added.Type, added.ClientName, added.RequestorEmail)

	s.notifyAsync(func(ctx context.Context) error { return s.notifier.OnRequestSubmitted(ctx, added) })
	s.writeJSON(w, http.StatusCreated, added)
}

// handleCompleteRequest marks a pending request completed by the caller
func (s *Server) handleCompleteRequest(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	completed, err := s.store.CompleteRequest(id, sessionFrom(r).Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeJSONError(w, http.StatusNotFound, "request not found")
			return
		}
		s.writeJSONError(w, http.StatusConflict, err.Error())
		return
	}
	log.Printf("[INFO] request %s completed by %s", id, completed.CompletedBy)

	s.notifyAsync(func(ctx context.Context) error { return s.notifier.OnRequestCompleted(ctx, completed) })
	s.writeJSON(w, http.StatusOK, completed)
}

// handleListArtwork returns all artwork submissions, newest first
func (s *Server) handleListArtwork(w http.ResponseWriter, r *http.Request) {
	subs, err := s.store.ListArtwork()
	if err != nil {
		s.writeStoreError(w, err, "artwork")
		return
	}
	s.writeJSON(w, http.StatusOK, subs)
}

// handleAddArtwork submits artwork for review
func (s *Server) handleAddArtwork(w http.ResponseWriter, r *http.Request) {
	var sub store.ArtworkSubmission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "invalid artwork payload")
		return
	}
	sub.SubmittedBy = sessionFrom(r).Email

	added, err := s.store.AddArtwork(sub)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, added)
}

// reviewRequest is the PUT /artwork/{id}/review payload
type reviewRequest struct {
	Status   enums.ArtworkStatus `json:"status"`
	Feedback string              `json:"feedback,omitempty"`
}

// handleReviewArtwork records an approve/reject decision
func (s *Server) handleReviewArtwork(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "invalid review payload")
		return
	}

	id := r.PathValue("id")
	reviewed, err := s.store.ReviewArtwork(id, req.Status, sessionFrom(r).Email, req.Feedback)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeJSONError(w, http.StatusNotFound, "artwork not found")
			return
		}
		s.writeJSONError(w, http.StatusConflict, err.Error())
		return
	}
	log.Printf("[INFO] artwork %q %s by %s", reviewed.Title, reviewed.Status, reviewed.ReviewedBy)

	s.notifyAsync(func(ctx context.Context) error { return s.notifier.OnArtworkReviewed(ctx, reviewed) })
	s.writeJSON(w, http.StatusOK, reviewed)
}

// notifyAsync fires a notification off the request path, errors logged only
func (s *Server) notifyAsync(fn func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := fn(ctx); err != nil {
			log.Printf("[WARN] notification failed: %v", err)
		}
	}()
}

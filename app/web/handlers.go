package web

import (
	"encoding/json"
	"net/http"

	log "github.com/go-pkgz/lgr"

	"github.com/postbureau/dispatch/app/store"
	"github.com/postbureau/dispatch/app/store/enums"
)

// handleListJobs returns jobs visible to the caller, optionally searched and
// sorted: ?q=term&sort=title|reference|client|collection_date|status|emanifest&dir=desc
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.store.ListJobs()
	if err != nil {
		s.writeStoreError(w, err, "jobs")
		return
	}

	sess := sessionFrom(r)
	if sess.Role == enums.RoleUser {
		allowed, err := s.auth.AllowedSubClientIDs(sess)
		if err != nil {
			log.Printf("[WARN] failed to load sub-client restrictions for %s: %v", sess.Email, err)
			s.writeJSONError(w, http.StatusInternalServerError, "failed to process jobs")
			return
		}
		jobs = store.FilterJobsBySubClients(jobs, allowed)
	}

	jobs = store.SearchJobs(jobs, r.URL.Query().Get("q"))
	if sortKey := r.URL.Query().Get("sort"); sortKey != "" {
		store.SortJobs(jobs, sortKey, r.URL.Query().Get("dir") == "desc")
	}

	s.writeJSON(w, http.StatusOK, jobs)
}

// handleGetJob returns a single job by id
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.store.GetJob(r.PathValue("id"))
	if err != nil {
		s.writeStoreError(w, err, "job")
		return
	}
	s.writeJSON(w, http.StatusOK, job)
}

// handleAddJob books a new job, creator taken from the session
func (s *Server) handleAddJob(w http.ResponseWriter, r *http.Request) {
	var job store.Job
	if err := json.NewDecoder(r.Body).Decode(&job); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "invalid job payload")
		return
	}
	job.CreatedBy = sessionFrom(r).Email

	added, err := s.store.AddJob(job)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	log.Printf("[INFO] job %s booked by %s", added.Reference, added.CreatedBy)
	s.writeJSON(w, http.StatusCreated, added)
}

// handleUpdateJob replaces the mutable fields of a job
func (s *Server) handleUpdateJob(w http.ResponseWriter, r *http.Request) {
	var job store.Job
	if err := json.NewDecoder(r.Body).Decode(&job); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "invalid job payload")
		return
	}
	job.ID = r.PathValue("id")

	if err := s.store.UpdateJob(job); err != nil {
		s.writeStoreError(w, err, "job")
		return
	}

	updated, err := s.store.GetJob(job.ID)
	if err != nil {
		s.writeStoreError(w, err, "job")
		return
	}
	s.writeJSON(w, http.StatusOK, updated)
}

// handleDeleteJob removes a job, idempotent
func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteJob(r.PathValue("id")); err != nil {
		s.writeStoreError(w, err, "job")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleAddJobFile attaches a file record to a job
func (s *Server) handleAddJobFile(w http.ResponseWriter, r *http.Request) {
	var file store.JobFile
	if err := json.NewDecoder(r.Body).Decode(&file); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "invalid file payload")
		return
	}
	file.UploadedBy = sessionFrom(r).Email

	added, err := s.store.AddJobFile(r.PathValue("id"), file)
	if err != nil {
		s.writeStoreError(w, err, "job")
		return
	}
	s.writeJSON(w, http.StatusCreated, added)
}

// handleListDocuments returns documents the caller's role may see
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.store.ListDocumentsForRole(sessionFrom(r).Role)
	if err != nil {
		s.writeStoreError(w, err, "documents")
		return
	}
	s.writeJSON(w, http.StatusOK, docs)
}

// handleAddDocument uploads a document record
func (s *Server) handleAddDocument(w http.ResponseWriter, r *http.Request) {
	var doc store.Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "invalid document payload")
		return
	}
	doc.UploadedBy = sessionFrom(r).Email

	added, err := s.store.AddDocument(doc)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, added)
}

// handleUpdateDocument replaces a document record
func (s *Server) handleUpdateDocument(w http.ResponseWriter, r *http.Request) {
	var doc store.Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "invalid document payload")
		return
	}
	doc.ID = r.PathValue("id")

	if err := s.store.UpdateDocument(doc); err != nil {
		s.writeStoreError(w, err, "document")
		return
	}

	updated, err := s.store.GetDocument(doc.ID)
	if err != nil {
		s.writeStoreError(w, err, "document")
		return
	}
	s.writeJSON(w, http.StatusOK, updated)
}

// handleDeleteDocument removes a document, idempotent
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteDocument(r.PathValue("id")); err != nil {
		s.writeStoreError(w, err, "document")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

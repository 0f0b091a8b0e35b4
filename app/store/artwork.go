package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/postbureau/dispatch/app/store/enums"
)

// ArtworkSubmission is a piece of artwork going through an approval workflow
type ArtworkSubmission struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	ImageURL    string              `json:"image_url,omitempty"`
	Comments    string              `json:"comments,omitempty"`
	Status      enums.ArtworkStatus `json:"status"`
	SubmittedBy string              `json:"submitted_by,omitempty"`
	SubmittedAt time.Time           `json:"submitted_at"`
	ReviewedBy  string              `json:"reviewed_by,omitempty"`
	ReviewedAt  time.Time           `json:"reviewed_at,omitzero"`
	Feedback    string              `json:"feedback,omitempty"`
}

type artworkRow struct {
	ID          string              `db:"id"`
	Title       string              `db:"title"`
	ImageURL    string              `db:"image_url"`
	Comments    string              `db:"comments"`
	Status      enums.ArtworkStatus `db:"status"`
	SubmittedBy string              `db:"submitted_by"`
	SubmittedAt int64               `db:"submitted_at"`
	ReviewedBy  string              `db:"reviewed_by"`
	ReviewedAt  int64               `db:"reviewed_at"`
	Feedback    string              `db:"feedback"`
}

func (r artworkRow) toArtwork() ArtworkSubmission {
	return ArtworkSubmission{
		ID:          r.ID,
		Title:       r.Title,
		ImageURL:    r.ImageURL,
		Comments:    r.Comments,
		Status:      r.Status,
		SubmittedBy: r.SubmittedBy,
		SubmittedAt: timeOrZero(r.SubmittedAt),
		ReviewedBy:  r.ReviewedBy,
		ReviewedAt:  timeOrZero(r.ReviewedAt),
		Feedback:    r.Feedback,
	}
}

const artworkColumns = "id, title, image_url, comments, status, submitted_by, submitted_at, reviewed_by, reviewed_at, feedback"

// ListArtwork returns all submissions, newest first
func (s *Store) ListArtwork() ([]ArtworkSubmission, error) {
	var rows []artworkRow
	err := s.db.Select(&rows, "SELECT "+artworkColumns+" FROM artwork ORDER BY submitted_at DESC, id")
	if err != nil {
		return nil, fmt.Errorf("failed to query artwork: %w", err)
	}
	subs := make([]ArtworkSubmission, 0, len(rows))
	for _, r := range rows {
		subs = append(subs, r.toArtwork())
	}
	return subs, nil
}

// GetArtwork returns a submission by id
func (s *Store) GetArtwork(id string) (ArtworkSubmission, error) {
	var row artworkRow
	err := s.db.Get(&row, "SELECT "+artworkColumns+" FROM artwork WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return ArtworkSubmission{}, ErrNotFound
	}
	if err != nil {
		return ArtworkSubmission{}, fmt.Errorf("failed to query artwork %s: %w", id, err)
	}
	return row.toArtwork(), nil
}

// AddArtwork creates a pending submission with assigned id and timestamp
func (s *Store) AddArtwork(sub ArtworkSubmission) (ArtworkSubmission, error) {
	if strings.TrimSpace(sub.Title) == "" {
		return ArtworkSubmission{}, fmt.Errorf("artwork title is required")
	}

	sub.ID = uuid.NewString()
	sub.Status = enums.ArtworkStatusPending
	sub.SubmittedAt = time.Now()
	sub.ReviewedBy = ""
	sub.ReviewedAt = time.Time{}
	sub.Feedback = ""

	_, err := s.db.Exec("INSERT INTO artwork ("+artworkColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		sub.ID, sub.Title, sub.ImageURL, sub.Comments, sub.Status, sub.SubmittedBy,
		sub.SubmittedAt.Unix(), sub.ReviewedBy, 0, sub.Feedback)
	if err != nil {
		return ArtworkSubmission{}, fmt.Errorf("failed to insert artwork: %w", err)
	}
	return sub, nil
}

// ReviewArtwork records an approve/reject decision on a pending submission.
// Returns ErrNotFound if the id does not exist, an error on re-review.
func (s *Store) ReviewArtwork(id string, status enums.ArtworkStatus, reviewedBy, feedback string) (ArtworkSubmission, error) {
	if status != enums.ArtworkStatusApproved && status != enums.ArtworkStatusRejected {
		return ArtworkSubmission{}, fmt.Errorf("review status must be approved or rejected, got %q", status)
	}

	res, err := s.db.Exec(`UPDATE artwork SET status = ?, reviewed_by = ?, reviewed_at = ?, feedback = ?
		WHERE id = ? AND status = ?`,
		status, reviewedBy, time.Now().Unix(), feedback, id, enums.ArtworkStatusPending)
	if err != nil {
		return ArtworkSubmission{}, fmt.Errorf("failed to review artwork %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return ArtworkSubmission{}, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		if _, getErr := s.GetArtwork(id); getErr != nil {
			return ArtworkSubmission{}, getErr
		}
		return ArtworkSubmission{}, fmt.Errorf("artwork %s is already reviewed", id)
	}
	return s.GetArtwork(id)
}

// DeleteArtwork removes a submission, no-op if absent
func (s *Store) DeleteArtwork(id string) error {
	if _, err := s.db.Exec("DELETE FROM artwork WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete artwork %s: %w", id, err)
	}
	return nil
}

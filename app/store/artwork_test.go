package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postbureau/dispatch/app/store/enums"
)

func TestStore_AddArtwork(t *testing.T) {
	s := newTestStore(t)

	sub, err := s.AddArtwork(ArtworkSubmission{
		Title:       "Summer Campaign Envelope",
		ImageURL:    "https://cdn.example.com/artwork/summer.png",
		Comments:    "second revision",
		SubmittedBy: "designer@example.com",
		// reviewer fields are ignored on submit
		ReviewedBy: "sneaky@example.com",
		Feedback:   "pre-approved",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, sub.ID)
	assert.Equal(t, enums.ArtworkStatusPending, sub.Status)
	assert.Empty(t, sub.ReviewedBy)
	assert.Empty(t, sub.Feedback)
	assert.False(t, sub.SubmittedAt.IsZero())

	_, err = s.AddArtwork(ArtworkSubmission{Title: " "})
	assert.Error(t, err, "blank title rejected")
}

func TestStore_ReviewArtwork(t *testing.T) {
	s := newTestStore(t)

	sub, err := s.AddArtwork(ArtworkSubmission{Title: "PCN Reminder Insert"})
	require.NoError(t, err)

	reviewed, err := s.ReviewArtwork(sub.ID, enums.ArtworkStatusRejected, "manager@example.com", "wrong bleed area")
	require.NoError(t, err)
	assert.Equal(t, enums.ArtworkStatusRejected, reviewed.Status)
	assert.Equal(t, "manager@example.com", reviewed.ReviewedBy)
	assert.Equal(t, "wrong bleed area", reviewed.Feedback)
	assert.False(t, reviewed.ReviewedAt.IsZero())

	// re-review fails but is not a not-found
	_, err = s.ReviewArtwork(sub.ID, enums.ArtworkStatusApproved, "manager@example.com", "")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestStore_ReviewArtwork_validation(t *testing.T) {
	s := newTestStore(t)

	sub, err := s.AddArtwork(ArtworkSubmission{Title: "x"})
	require.NoError(t, err)

	_, err = s.ReviewArtwork(sub.ID, enums.ArtworkStatusPending, "m@example.com", "")
	assert.Error(t, err, "cannot review back to pending")

	_, err = s.ReviewArtwork("no-such-id", enums.ArtworkStatusApproved, "m@example.com", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ListArtwork(t *testing.T) {
	s := newTestStore(t)

	for _, title := range []string{"one", "two", "three"} {
		_, err := s.AddArtwork(ArtworkSubmission{Title: title})
		require.NoError(t, err)
	}

	subs, err := s.ListArtwork()
	require.NoError(t, err)
	assert.Len(t, subs, 3)
}

func TestStore_DeleteArtwork(t *testing.T) {
	s := newTestStore(t)

	sub, err := s.AddArtwork(ArtworkSubmission{Title: "doomed"})
	require.NoError(t, err)

	require.NoError(t, s.DeleteArtwork(sub.ID))
	_, err = s.GetArtwork(sub.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, s.DeleteArtwork(sub.ID), "second delete is a no-op")
}

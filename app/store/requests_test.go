package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postbureau/dispatch/app/store/enums"
)

func TestStore_AddRequest_ucid(t *testing.T) {
	s := newTestStore(t)

	req, err := s.AddRequest(UCIDRequest{
		Type:            enums.RequestTypeUCID,
		ClientName:      "Northgate Council",
		RequestorEmail:  "user@example.com",
		CollectionPoint: "Depot 3",
		AgencyAccount:   true,
		// SCID fields must be dropped for a UCID request
		SupplyChainID:  "SC-1",
		MailOriginator: "someone",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, req.ID)
	assert.Equal(t, enums.RequestStatusPending, req.Status)
	assert.Equal(t, "Depot 3", req.CollectionPoint)
	assert.Empty(t, req.SupplyChainID, "foreign variant fields cleared")
	assert.Empty(t, req.MailOriginator)
}

func TestStore_AddRequest_scid(t *testing.T) {
	s := newTestStore(t)

	req, err := s.AddRequest(UCIDRequest{
		Type:            enums.RequestTypeSCID,
		ClientName:      "Harlow Mutual",
		RequestorEmail:  "user@example.com",
		SupplyChainName: "Statements Chain",
		SupplyChainType: "downstream",
		// UCID fields must be dropped for an SCID request
		CollectionPoint: "Depot 1",
		AgencyAccount:   true,
	})
	require.NoError(t, err)

	assert.Equal(t, "Statements Chain", req.SupplyChainName)
	assert.Empty(t, req.CollectionPoint, "foreign variant fields cleared")
	assert.False(t, req.AgencyAccount)
}

func TestStore_AddRequest_validation(t *testing.T) {
	s := newTestStore(t)

	tests := []struct {
		name string
		req  UCIDRequest
	}{
		{"bad type", UCIDRequest{Type: "other", ClientName: "c", RequestorEmail: "e"}},
		{"missing client", UCIDRequest{Type: enums.RequestTypeUCID, RequestorEmail: "e", CollectionPoint: "p"}},
		{"missing requestor", UCIDRequest{Type: enums.RequestTypeUCID, ClientName: "c", CollectionPoint: "p"}},
		{"ucid without collection point", UCIDRequest{Type: enums.RequestTypeUCID, ClientName: "c", RequestorEmail: "e"}},
		{"scid without supply chain name", UCIDRequest{Type: enums.RequestTypeSCID, ClientName: "c", RequestorEmail: "e"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.AddRequest(tt.req)
			assert.Error(t, err)
		})
	}
}

func TestStore_CompleteRequest(t *testing.T) {
	s := newTestStore(t)

	req, err := s.AddRequest(UCIDRequest{Type: enums.RequestTypeUCID, ClientName: "c",
		RequestorEmail: "e@example.com", CollectionPoint: "Depot 1"})
	require.NoError(t, err)

	completed, err := s.CompleteRequest(req.ID, "manager@example.com")
	require.NoError(t, err)
	assert.Equal(t, enums.RequestStatusCompleted, completed.Status)
	assert.Equal(t, "manager@example.com", completed.CompletedBy)
	assert.False(t, completed.CompletedAt.IsZero())

	// completing again fails but is not a not-found
	_, err = s.CompleteRequest(req.ID, "manager@example.com")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)

	_, err = s.CompleteRequest("no-such-id", "manager@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ListRequests(t *testing.T) {
	s := newTestStore(t)

	for _, client := range []string{"first", "second"} {
		_, err := s.AddRequest(UCIDRequest{Type: enums.RequestTypeUCID, ClientName: client,
			RequestorEmail: "e@example.com", CollectionPoint: "p"})
		require.NoError(t, err)
	}

	reqs, err := s.ListRequests()
	require.NoError(t, err)
	assert.Len(t, reqs, 2)
}

func TestStore_DeleteRequest(t *testing.T) {
	s := newTestStore(t)

	req, err := s.AddRequest(UCIDRequest{Type: enums.RequestTypeUCID, ClientName: "c",
		RequestorEmail: "e@example.com", CollectionPoint: "p"})
	require.NoError(t, err)

	require.NoError(t, s.DeleteRequest(req.ID))
	_, err = s.GetRequest(req.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, s.DeleteRequest(req.ID), "second delete is a no-op")
}

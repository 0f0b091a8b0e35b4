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

// UCIDRequest is an identifier-code request tracked through a review
// workflow. The variant fields depend on Type: UCID requests carry
// collection point and agency-account flag, SCID requests carry the
// supply-chain and mail-originator fields.
type UCIDRequest struct {
	ID             string              `json:"id"`
	Type           enums.RequestType   `json:"type"`
	ClientName     string              `json:"client_name"`
	RequestorEmail string              `json:"requestor_email"`
	Comments       string              `json:"comments,omitempty"`

	// UCID variant
	CollectionPoint string `json:"collection_point,omitempty"`
	AgencyAccount   bool   `json:"agency_account,omitempty"`

	// SCID variant
	SupplyChainID   string `json:"supply_chain_id,omitempty"`
	SupplyChainType string `json:"supply_chain_type,omitempty"`
	SupplyChainName string `json:"supply_chain_name,omitempty"`
	MailOriginator  string `json:"mail_originator,omitempty"`

	Status      enums.RequestStatus `json:"status"`
	CompletedBy string              `json:"completed_by,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	CompletedAt time.Time           `json:"completed_at,omitzero"`
}

type requestRow struct {
	ID              string              `db:"id"`
	Type            enums.RequestType   `db:"req_type"`
	ClientName      string              `db:"client_name"`
	RequestorEmail  string              `db:"requestor_email"`
	Comments        string              `db:"comments"`
	CollectionPoint string              `db:"collection_point"`
	AgencyAccount   bool                `db:"agency_account"`
	SupplyChainID   string              `db:"supply_chain_id"`
	SupplyChainType string              `db:"supply_chain_type"`
	SupplyChainName string              `db:"supply_chain_name"`
	MailOriginator  string              `db:"mail_originator"`
	Status          enums.RequestStatus `db:"status"`
	CompletedBy     string              `db:"completed_by"`
	CreatedAt       int64               `db:"created_at"`
	CompletedAt     int64               `db:"completed_at"`
}

func (r requestRow) toRequest() UCIDRequest {
	return UCIDRequest{
		ID:              r.ID,
		Type:            r.Type,
		ClientName:      r.ClientName,
		RequestorEmail:  r.RequestorEmail,
		Comments:        r.Comments,
		CollectionPoint: r.CollectionPoint,
		AgencyAccount:   r.AgencyAccount,
		SupplyChainID:   r.SupplyChainID,
		SupplyChainType: r.SupplyChainType,
		SupplyChainName: r.SupplyChainName,
		MailOriginator:  r.MailOriginator,
		Status:          r.Status,
		CompletedBy:     r.CompletedBy,
		CreatedAt:       timeOrZero(r.CreatedAt),
		CompletedAt:     timeOrZero(r.CompletedAt),
	}
}

const requestColumns = `id, req_type, client_name, requestor_email, comments, collection_point,
	agency_account, supply_chain_id, supply_chain_type, supply_chain_name, mail_originator,
	status, completed_by, created_at, completed_at`

// ListRequests returns all identifier requests, newest first
func (s *Store) ListRequests() ([]UCIDRequest, error) {
	var rows []requestRow
	err := s.db.Select(&rows, "SELECT "+requestColumns+" FROM ucid_requests ORDER BY created_at DESC, id")
	if err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}
	reqs := make([]UCIDRequest, 0, len(rows))
	for _, r := range rows {
		reqs = append(reqs, r.toRequest())
	}
	return reqs, nil
}

// GetRequest returns an identifier request by id
func (s *Store) GetRequest(id string) (UCIDRequest, error) {
	var row requestRow
	err := s.db.Get(&row, "SELECT "+requestColumns+" FROM ucid_requests WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return UCIDRequest{}, ErrNotFound
	}
	if err != nil {
		return UCIDRequest{}, fmt.Errorf("failed to query request %s: %w", id, err)
	}
	return row.toRequest(), nil
}

// AddRequest creates a pending identifier request. Variant fields not
// belonging to the request type are cleared so the wrong variant can never
// be read back.
func (s *Store) AddRequest(req UCIDRequest) (UCIDRequest, error) {
	if _, err := enums.ParseRequestType(req.Type.String()); err != nil {
		return UCIDRequest{}, err
	}
	if strings.TrimSpace(req.ClientName) == "" {
		return UCIDRequest{}, fmt.Errorf("request client name is required")
	}
	if strings.TrimSpace(req.RequestorEmail) == "" {
		return UCIDRequest{}, fmt.Errorf("requestor email is required")
	}

	switch req.Type {
	case enums.RequestTypeUCID:
		if strings.TrimSpace(req.CollectionPoint) == "" {
			return UCIDRequest{}, fmt.Errorf("collection point is required for ucid requests")
		}
		req.SupplyChainID, req.SupplyChainType, req.SupplyChainName, req.MailOriginator = "", "", "", ""
	case enums.RequestTypeSCID:
		if strings.TrimSpace(req.SupplyChainName) == "" {
			return UCIDRequest{}, fmt.Errorf("supply chain name is required for scid requests")
		}
		req.CollectionPoint, req.AgencyAccount = "", false
	}

	req.ID = uuid.NewString()
	req.Status = enums.RequestStatusPending
	req.CompletedBy = ""
	req.CreatedAt = time.Now()
	req.CompletedAt = time.Time{}

	_, err := s.db.Exec("INSERT INTO ucid_requests ("+requestColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		req.ID, req.Type, req.ClientName, req.RequestorEmail, req.Comments, req.CollectionPoint,
		req.AgencyAccount, req.SupplyChainID, req.SupplyChainType, req.SupplyChainName,
		req.MailOriginator, req.Status, req.CompletedBy, req.CreatedAt.Unix(), 0)
	if err != nil {
		return UCIDRequest{}, fmt.Errorf("failed to insert request: %w", err)
	}
	return req, nil
}

// CompleteRequest marks a pending request completed by the given reviewer.
// Returns ErrNotFound if the id does not exist, an error if already completed.
func (s *Store) CompleteRequest(id, completedBy string) (UCIDRequest, error) {
	res, err := s.db.Exec(`UPDATE ucid_requests SET status = ?, completed_by = ?, completed_at = ?
		WHERE id = ? AND status = ?`,
		enums.RequestStatusCompleted, completedBy, time.Now().Unix(), id, enums.RequestStatusPending)
	if err != nil {
		return UCIDRequest{}, fmt.Errorf("failed to complete request %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return UCIDRequest{}, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		// distinguish missing from already-completed
		if _, getErr := s.GetRequest(id); getErr != nil {
			return UCIDRequest{}, getErr
		}
		return UCIDRequest{}, fmt.Errorf("request %s is already completed", id)
	}
	return s.GetRequest(id)
}

// DeleteRequest removes an identifier request, no-op if absent
func (s *Store) DeleteRequest(id string) error {
	if _, err := s.db.Exec("DELETE FROM ucid_requests WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete request %s: %w", id, err)
	}
	return nil
}

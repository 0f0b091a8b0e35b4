package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Client is a billing entity owning an ordered list of sub-clients.
// Sub-client ids are globally unique UUIDs, not per-client small integers,
// so a sub-client reference is unambiguous without its parent.
type Client struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	SubClients []SubClient `json:"sub_clients,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}

// SubClient is a named cost-center under a parent client
type SubClient struct {
	ID       string `json:"id" db:"id"`
	ClientID string `json:"client_id" db:"client_id"`
	Name     string `json:"name" db:"name"`
}

// SubClientRef is the denormalized view of a sub-client used for display.
// It is computed on read, never cached in session state.
type SubClientRef struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ClientName string `json:"client_name"`
}

// ListClients returns all clients with their sub-clients in original order
func (s *Store) ListClients() ([]Client, error) {
	type clientRow struct {
		ID        string `db:"id"`
		Name      string `db:"name"`
		CreatedAt int64  `db:"created_at"`
	}
	var rows []clientRow
	if err := s.db.Select(&rows, "SELECT id, name, created_at FROM clients ORDER BY name"); err != nil {
		return nil, fmt.Errorf("failed to query clients: %w", err)
	}

	var subRows []SubClient
	err := s.db.Select(&subRows, `SELECT id, client_id, name FROM sub_clients ORDER BY sort_index, name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sub-clients: %w", err)
	}
	grouped := make(map[string][]SubClient)
	for _, sc := range subRows {
		grouped[sc.ClientID] = append(grouped[sc.ClientID], sc)
	}

	clients := make([]Client, 0, len(rows))
	for _, r := range rows {
		clients = append(clients, Client{
			ID:         r.ID,
			Name:       r.Name,
			SubClients: grouped[r.ID],
			CreatedAt:  timeOrZero(r.CreatedAt),
		})
	}
	return clients, nil
}

// GetClient returns a single client with sub-clients by id
func (s *Store) GetClient(id string) (Client, error) {
	var row struct {
		ID        string `db:"id"`
		Name      string `db:"name"`
		CreatedAt int64  `db:"created_at"`
	}
	err := s.db.Get(&row, "SELECT id, name, created_at FROM clients WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return Client{}, ErrNotFound
	}
	if err != nil {
		return Client{}, fmt.Errorf("failed to query client %s: %w", id, err)
	}

	var subs []SubClient
	err = s.db.Select(&subs, `SELECT id, client_id, name FROM sub_clients
		WHERE client_id = ? ORDER BY sort_index, name`, id)
	if err != nil {
		return Client{}, fmt.Errorf("failed to query sub-clients for %s: %w", id, err)
	}
	return Client{ID: row.ID, Name: row.Name, SubClients: subs, CreatedAt: timeOrZero(row.CreatedAt)}, nil
}

// AddClient creates a client and its sub-clients in one transaction
func (s *Store) AddClient(client Client) (Client, error) {
	if strings.TrimSpace(client.Name) == "" {
		return Client{}, fmt.Errorf("client name is required")
	}

	client.ID = uuid.NewString()
	client.CreatedAt = time.Now()

	tx, err := s.db.Beginx()
	if err != nil {
		return Client{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec("INSERT INTO clients (id, name, created_at) VALUES (?, ?, ?)",
		client.ID, client.Name, client.CreatedAt.Unix())
	if err != nil {
		return Client{}, fmt.Errorf("failed to insert client: %w", err)
	}

	for i := range client.SubClients {
		client.SubClients[i].ID = uuid.NewString()
		client.SubClients[i].ClientID = client.ID
		if err := insertSubClient(tx, client.SubClients[i], i); err != nil {
			return Client{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return Client{}, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return client, nil
}

// UpdateClient replaces the client name and the full sub-client list.
// Sub-clients carrying an id are kept under it, new ones get fresh ids.
// Returns ErrNotFound if the client id does not exist.
func (s *Store) UpdateClient(client Client) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec("UPDATE clients SET name = ? WHERE id = ?", client.Name, client.ID)
	if err != nil {
		return fmt.Errorf("failed to update client %s: %w", client.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	if _, err := tx.Exec("DELETE FROM sub_clients WHERE client_id = ?", client.ID); err != nil {
		return fmt.Errorf("failed to clear sub-clients for %s: %w", client.ID, err)
	}
	for i := range client.SubClients {
		if client.SubClients[i].ID == "" {
			client.SubClients[i].ID = uuid.NewString()
		}
		client.SubClients[i].ClientID = client.ID
		if err := insertSubClient(tx, client.SubClients[i], i); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// DeleteClient removes a client and its sub-clients, no-op if absent
func (s *Store) DeleteClient(id string) error {
	if _, err := s.db.Exec("DELETE FROM clients WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete client %s: %w", id, err)
	}
	return nil
}

// SubClientRefs resolves sub-client ids to denormalized display tuples.
// Unknown ids are skipped, the result follows the input order.
func (s *Store) SubClientRefs(ids []string) ([]SubClientRef, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`SELECT sc.id, sc.name, c.name AS client_name
		FROM sub_clients sc JOIN clients c ON c.id = sc.client_id WHERE sc.id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build sub-client query: %w", err)
	}

	var rows []struct {
		ID         string `db:"id"`
		Name       string `db:"name"`
		ClientName string `db:"client_name"`
	}
	if err := s.db.Select(&rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to resolve sub-clients: %w", err)
	}

	byID := make(map[string]SubClientRef, len(rows))
	for _, r := range rows {
		byID[r.ID] = SubClientRef{ID: r.ID, Name: r.Name, ClientName: r.ClientName}
	}

	refs := make([]SubClientRef, 0, len(ids))
	for _, id := range ids {
		if ref, ok := byID[id]; ok {
			refs = append(refs, ref)
		}
	}
	return refs, nil
}

func insertSubClient(tx *sqlx.Tx, sc SubClient, idx int) error {
	if strings.TrimSpace(sc.Name) == "" {
		return fmt.Errorf("sub-client name is required")
	}
	_, err := tx.Exec("INSERT INTO sub_clients (id, client_id, name, sort_index) VALUES (?, ?, ?, ?)",
		sc.ID, sc.ClientID, sc.Name, idx)
	if err != nil {
		return fmt.Errorf("failed to insert sub-client %q: %w", sc.Name, err)
	}
	return nil
}

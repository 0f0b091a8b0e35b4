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

// Document is a shared file with role-restricted visibility
type Document struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	URL         string    `json:"url,omitempty"`
	MimeType    string    `json:"mime_type,omitempty"`
	Description string    `json:"description,omitempty"`
	AccessRoles RoleList  `json:"access_roles"`
	UploadedBy  string    `json:"uploaded_by,omitempty"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

type documentRow struct {
	ID          string   `db:"id"`
	Name        string   `db:"name"`
	URL         string   `db:"url"`
	MimeType    string   `db:"mime_type"`
	Description string   `db:"description"`
	AccessRoles RoleList `db:"access_roles"`
	UploadedBy  string   `db:"uploaded_by"`
	UploadedAt  int64    `db:"uploaded_at"`
}

func (r documentRow) toDocument() Document {
	return Document{
		ID:          r.ID,
		Name:        r.Name,
		URL:         r.URL,
		MimeType:    r.MimeType,
		Description: r.Description,
		AccessRoles: r.AccessRoles,
		UploadedBy:  r.UploadedBy,
		UploadedAt:  timeOrZero(r.UploadedAt),
	}
}

// ListDocuments returns all documents in upload order
func (s *Store) ListDocuments() ([]Document, error) {
	var rows []documentRow
	err := s.db.Select(&rows, `SELECT id, name, url, mime_type, description, access_roles,
		uploaded_by, uploaded_at FROM documents ORDER BY uploaded_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}

	docs := make([]Document, 0, len(rows))
	for _, r := range rows {
		docs = append(docs, r.toDocument())
	}
	return docs, nil
}

// ListDocumentsForRole returns documents whose access list contains the viewer's role
func (s *Store) ListDocumentsForRole(role enums.Role) ([]Document, error) {
	docs, err := s.ListDocuments()
	if err != nil {
		return nil, err
	}

	visible := make([]Document, 0, len(docs))
	for _, doc := range docs {
		if doc.AccessRoles.Contains(role) {
			visible = append(visible, doc)
		}
	}
	return visible, nil
}

// GetDocument returns a single document by id
func (s *Store) GetDocument(id string) (Document, error) {
	var row documentRow
	err := s.db.Get(&row, `SELECT id, name, url, mime_type, description, access_roles,
		uploaded_by, uploaded_at FROM documents WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("failed to query document %s: %w", id, err)
	}
	return row.toDocument(), nil
}

// AddDocument creates a new document record with assigned id and timestamp
func (s *Store) AddDocument(doc Document) (Document, error) {
	if strings.TrimSpace(doc.Name) == "" {
		return Document{}, fmt.Errorf("document name is required")
	}
	for _, role := range doc.AccessRoles {
		if _, err := enums.ParseRole(role.String()); err != nil {
			return Document{}, err
		}
	}
	if len(doc.AccessRoles) == 0 {
		// default to admin-only rather than world-visible
		doc.AccessRoles = RoleList{enums.RoleAdmin}
	}

	doc.ID = uuid.NewString()
	doc.UploadedAt = time.Now()

	_, err := s.db.Exec(`INSERT INTO documents (id, name, url, mime_type, description, access_roles, uploaded_by, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Name, doc.URL, doc.MimeType, doc.Description, doc.AccessRoles, doc.UploadedBy, doc.UploadedAt.Unix())
	if err != nil {
		return Document{}, fmt.Errorf("failed to insert document: %w", err)
	}
	return doc, nil
}

// UpdateDocument replaces mutable fields of the document with matching id,
// returns ErrNotFound if the id does not exist
func (s *Store) UpdateDocument(doc Document) error {
	for _, role := range doc.AccessRoles {
		if _, err := enums.ParseRole(role.String()); err != nil {
			return err
		}
	}

	res, err := s.db.Exec(`UPDATE documents SET name = ?, url = ?, mime_type = ?, description = ?, access_roles = ?
		WHERE id = ?`, doc.Name, doc.URL, doc.MimeType, doc.Description, doc.AccessRoles, doc.ID)
	if err != nil {
		return fmt.Errorf("failed to update document %s: %w", doc.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteDocument removes a document by id, no-op if absent
func (s *Store) DeleteDocument(id string) error {
	if _, err := s.db.Exec("DELETE FROM documents WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete document %s: %w", id, err)
	}
	return nil
}

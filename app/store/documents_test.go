package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postbureau/dispatch/app/store/enums"
)

func TestStore_AddDocument(t *testing.T) {
	s := newTestStore(t)

	doc, err := s.AddDocument(Document{
		Name:        "machine-manual.pdf",
		MimeType:    "application/pdf",
		AccessRoles: RoleList{enums.RoleManager, enums.RoleAdmin},
		UploadedBy:  "admin@example.com",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, doc.ID)
	assert.False(t, doc.UploadedAt.IsZero())

	_, err = s.AddDocument(Document{Name: " "})
	assert.Error(t, err, "blank name rejected")

	_, err = s.AddDocument(Document{Name: "bad roles", AccessRoles: RoleList{"superuser"}})
	assert.Error(t, err, "unknown role rejected")
}

func TestStore_AddDocument_defaultAccess(t *testing.T) {
	s := newTestStore(t)

	doc, err := s.AddDocument(Document{Name: "unrestricted.pdf"})
	require.NoError(t, err)
	assert.Equal(t, RoleList{enums.RoleAdmin}, doc.AccessRoles, "empty access list defaults to admin-only")
}

func TestStore_ListDocumentsForRole(t *testing.T) {
	s := newTestStore(t)

	_, err := s.AddDocument(Document{Name: "everyone.pdf",
		AccessRoles: RoleList{enums.RoleUser, enums.RoleManager, enums.RoleAdmin}})
	require.NoError(t, err)
	_, err = s.AddDocument(Document{Name: "managers.pdf",
		AccessRoles: RoleList{enums.RoleManager, enums.RoleAdmin}})
	require.NoError(t, err)
	_, err = s.AddDocument(Document{Name: "admins.pdf", AccessRoles: RoleList{enums.RoleAdmin}})
	require.NoError(t, err)

	tests := []struct {
		role enums.Role
		want int
	}{
		{enums.RoleUser, 1},
		{enums.RoleManager, 2},
		{enums.RoleAdmin, 3},
	}
	for _, tt := range tests {
		t.Run(tt.role.String(), func(t *testing.T) {
			docs, err := s.ListDocumentsForRole(tt.role)
			require.NoError(t, err)
			assert.Len(t, docs, tt.want)
		})
	}
}

func TestStore_UpdateDocument(t *testing.T) {
	s := newTestStore(t)

	doc, err := s.AddDocument(Document{Name: "draft.pdf", AccessRoles: RoleList{enums.RoleAdmin}})
	require.NoError(t, err)

	doc.Name = "final.pdf"
	doc.AccessRoles = RoleList{enums.RoleUser, enums.RoleManager, enums.RoleAdmin}
	require.NoError(t, s.UpdateDocument(doc))

	got, err := s.GetDocument(doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "final.pdf", got.Name)
	assert.Len(t, got.AccessRoles, 3)

	err = s.UpdateDocument(Document{ID: "no-such-id", Name: "x"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_DeleteDocument(t *testing.T) {
	s := newTestStore(t)

	doc, err := s.AddDocument(Document{Name: "temp.pdf"})
	require.NoError(t, err)

	require.NoError(t, s.DeleteDocument(doc.ID))
	_, err = s.GetDocument(doc.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, s.DeleteDocument(doc.ID), "second delete is a no-op")
}

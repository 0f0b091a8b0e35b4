package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/postbureau/dispatch/app/store/enums"
)

func TestStore_AddUser(t *testing.T) {
	s := newTestStore(t)

	user, err := s.AddUser(User{Email: "ops@example.com", Name: "Ops", Role: enums.RoleManager}, "secret")
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, enums.UserStatusActive, user.Status, "status defaults to active")
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("secret")))

	tests := []struct {
		name     string
		user     User
		password string
	}{
		{"blank email", User{Email: " ", Role: enums.RoleUser}, "x"},
		{"empty password", User{Email: "a@example.com", Role: enums.RoleUser}, ""},
		{"bad role", User{Email: "b@example.com", Role: "owner"}, "x"},
		{"bad status", User{Email: "c@example.com", Role: enums.RoleUser, Status: "frozen"}, "x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.AddUser(tt.user, tt.password)
			assert.Error(t, err)
		})
	}
}

func TestStore_GetUserByEmail(t *testing.T) {
	s := newTestStore(t)

	_, err := s.AddUser(User{Email: "Mixed.Case@Example.com", Role: enums.RoleUser}, "secret")
	require.NoError(t, err)

	got, err := s.GetUserByEmail("mixed.case@example.com")
	require.NoError(t, err, "lookup is case-insensitive")
	assert.Equal(t, "Mixed.Case@Example.com", got.Email)

	_, err = s.GetUserByEmail("nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_UpdateUser(t *testing.T) {
	s := newTestStore(t)

	user, err := s.AddUser(User{Email: "u@example.com", Role: enums.RoleUser}, "oldpass")
	require.NoError(t, err)
	oldHash := user.PasswordHash

	t.Run("update without password keeps hash", func(t *testing.T) {
		user.Role = enums.RoleManager
		user.AllowedSubClients = StringList{"sc-1"}
		require.NoError(t, s.UpdateUser(user, ""))

		got, err := s.GetUser(user.ID)
		require.NoError(t, err)
		assert.Equal(t, enums.RoleManager, got.Role)
		assert.Equal(t, StringList{"sc-1"}, got.AllowedSubClients)
		assert.Equal(t, oldHash, got.PasswordHash)
	})

	t.Run("update with password rehashes", func(t *testing.T) {
		require.NoError(t, s.UpdateUser(user, "newpass"))
		got, err := s.GetUser(user.ID)
		require.NoError(t, err)
		assert.NotEqual(t, oldHash, got.PasswordHash)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(got.PasswordHash), []byte("newpass")))
	})

	t.Run("missing id", func(t *testing.T) {
		err := s.UpdateUser(User{ID: "no-such-id", Email: "x@example.com",
			Role: enums.RoleUser, Status: enums.UserStatusActive}, "")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStore_DeleteUser(t *testing.T) {
	s := newTestStore(t)

	user, err := s.AddUser(User{Email: "gone@example.com", Role: enums.RoleUser}, "secret")
	require.NoError(t, err)

	require.NoError(t, s.DeleteUser(user.ID))
	_, err = s.GetUser(user.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, s.DeleteUser(user.ID), "second delete is a no-op")
}

func TestStore_LoginHistory(t *testing.T) {
	s := newTestStore(t)

	user, err := s.AddUser(User{Email: "hist@example.com", Role: enums.RoleUser}, "secret")
	require.NoError(t, err)

	require.NoError(t, s.RecordLogin(user.ID, "10.0.0.1:1234"))
	require.NoError(t, s.RecordLogin(user.ID, "10.0.0.2:1234"))

	events, err := s.LoginHistory(user.ID, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "10.0.0.2:1234", events[0].RemoteAddr, "newest first")

	events, err = s.LoginHistory(user.ID, 1)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

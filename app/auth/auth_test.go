package auth

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postbureau/dispatch/app/store"
	"github.com/postbureau/dispatch/app/store/enums"
)

func newTestService(t *testing.T, ttl time.Duration) (*Service, *store.Store) {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	seed, err := store.DefaultSeed()
	require.NoError(t, err)
	applied, err := s.SeedIfEmpty(seed)
	require.NoError(t, err)
	require.True(t, applied)

	return NewService(s, ttl), s
}

func TestService_Login(t *testing.T) {
	svc, _ := newTestService(t, time.Hour)

	t.Run("valid credentials", func(t *testing.T) {
		sess, err := svc.Login("admin@example.com", "password", "10.0.0.1:1234")
		require.NoError(t, err)
		assert.NotEmpty(t, sess.Token)
		assert.Equal(t, "admin@example.com", sess.Email)
		assert.Equal(t, enums.RoleAdmin, sess.Role)
		assert.True(t, sess.ExpiresAt.After(sess.CreatedAt))
	})

	t.Run("email case-insensitive", func(t *testing.T) {
		sess, err := svc.Login("ADMIN@example.com", "password", "10.0.0.1:1234")
		require.NoError(t, err)
		assert.Equal(t, "admin@example.com", sess.Email)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Login("admin@example.com", "nope", "10.0.0.1:1234")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := svc.Login("nobody@example.com", "password", "10.0.0.1:1234")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("suspended account with correct password", func(t *testing.T) {
		_, err := svc.Login("suspended@example.com", "password", "10.0.0.1:1234")
		assert.ErrorIs(t, err, ErrSuspended)
	})
}

func TestService_Login_recordsHistory(t *testing.T) {
	svc, st := newTestService(t, time.Hour)

	sess, err := svc.Login("manager@example.com", "password", "192.168.1.5:4567")
	require.NoError(t, err)

	events, err := st.LoginHistory(sess.UserID, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "192.168.1.5:4567", events[0].RemoteAddr)
}

func TestService_Session(t *testing.T) {
	svc, _ := newTestService(t, time.Hour)

	sess, err := svc.Login("user@example.com", "password", "10.0.0.1:1234")
	require.NoError(t, err)

	got, ok := svc.Session(sess.Token)
	require.True(t, ok)
	assert.Equal(t, sess.UserID, got.UserID)

	_, ok = svc.Session("bogus-token")
	assert.False(t, ok)

	svc.Logout(sess.Token)
	_, ok = svc.Session(sess.Token)
	assert.False(t, ok, "logged-out session is gone")

	svc.Logout(sess.Token) // second logout is a no-op
}

func TestService_Session_expiry(t *testing.T) {
	svc, _ := newTestService(t, time.Millisecond)

	sess, err := svc.Login("user@example.com", "password", "10.0.0.1:1234")
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	_, ok := svc.Session(sess.Token)
	assert.False(t, ok, "expired session rejected")
	assert.Zero(t, svc.ActiveSessions())
}

func TestService_HasPermission(t *testing.T) {
	svc, _ := newTestService(t, time.Hour)

	manager, err := svc.Login("manager@example.com", "password", "10.0.0.1:1234")
	require.NoError(t, err)

	assert.True(t, svc.HasPermission(manager, enums.RoleUser))
	assert.True(t, svc.HasPermission(manager, enums.RoleManager))
	assert.False(t, svc.HasPermission(manager, enums.RoleAdmin))
	assert.False(t, svc.IsAdmin(manager))

	assert.False(t, svc.HasPermission(Session{}, enums.RoleUser), "empty session has no permissions")

	admin, err := svc.Login("admin@example.com", "password", "10.0.0.1:1234")
	require.NoError(t, err)
	assert.True(t, svc.IsAdmin(admin))
}

func TestService_AllowedSubClients(t *testing.T) {
	svc, st := newTestService(t, time.Hour)

	t.Run("unrestricted user", func(t *testing.T) {
		sess, err := svc.Login("manager@example.com", "password", "10.0.0.1:1234")
		require.NoError(t, err)

		refs, err := svc.AllowedSubClients(sess)
		require.NoError(t, err)
		assert.Empty(t, refs)

		ids, err := svc.AllowedSubClientIDs(sess)
		require.NoError(t, err)
		assert.Empty(t, ids)
	})

	t.Run("restricted user resolves current names", func(t *testing.T) {
		sess, err := svc.Login("user@example.com", "password", "10.0.0.1:1234")
		require.NoError(t, err)

		refs, err := svc.AllowedSubClients(sess)
		require.NoError(t, err)
		require.Len(t, refs, 1)
		assert.Equal(t, "Parking Services", refs[0].Name)
		assert.Equal(t, "Northgate Council", refs[0].ClientName)

		// rename the client, the view reflects it immediately
		clients, err := st.ListClients()
		require.NoError(t, err)
		for _, c := range clients {
			if c.Name == "Northgate Council" {
				c.Name = "Northgate City Council"
				require.NoError(t, st.UpdateClient(c))
			}
		}

		refs, err = svc.AllowedSubClients(sess)
		require.NoError(t, err)
		require.Len(t, refs, 1)
		assert.Equal(t, "Northgate City Council", refs[0].ClientName, "computed on read, not cached")
	})
}

func TestService_ActiveSessions(t *testing.T) {
	svc, _ := newTestService(t, time.Hour)
	assert.Zero(t, svc.ActiveSessions())

	sess1, err := svc.Login("admin@example.com", "password", "10.0.0.1:1234")
	require.NoError(t, err)
	_, err = svc.Login("manager@example.com", "password", "10.0.0.1:1234")
	require.NoError(t, err)
	assert.Equal(t, 2, svc.ActiveSessions())

	svc.Logout(sess1.Token)
	assert.Equal(t, 1, svc.ActiveSessions())
}

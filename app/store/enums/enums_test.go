package enums

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRole_Meets(t *testing.T) {
	tests := []struct {
		role     Role
		required Role
		want     bool
	}{
		{RoleUser, RoleUser, true},
		{RoleUser, RoleManager, false},
		{RoleUser, RoleAdmin, false},
		{RoleManager, RoleUser, true},
		{RoleManager, RoleManager, true},
		{RoleManager, RoleAdmin, false},
		{RoleAdmin, RoleUser, true},
		{RoleAdmin, RoleManager, true},
		{RoleAdmin, RoleAdmin, true},
		{Role("unknown"), RoleUser, false},
		{Role("unknown"), Role("unknown"), false},
		{RoleAdmin, Role("unknown"), false},
		{Role(""), RoleUser, false},
	}

	for _, tt := range tests {
		t.Run(tt.role.String()+" meets "+tt.required.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.role.Meets(tt.required))
		})
	}
}

func TestRole_Rank(t *testing.T) {
	assert.True(t, RoleUser.Rank() < RoleManager.Rank())
	assert.True(t, RoleManager.Rank() < RoleAdmin.Rank())
	assert.Zero(t, Role("owner").Rank())
}

func TestParseRole(t *testing.T) {
	for _, valid := range []string{"user", "manager", "admin"} {
		role, err := ParseRole(valid)
		require.NoError(t, err)
		assert.Equal(t, valid, role.String())
	}

	for _, invalid := range []string{"", "Admin", "root", "superuser"} {
		_, err := ParseRole(invalid)
		assert.Error(t, err, "role %q should be rejected", invalid)
	}
}

func TestParseJobStatus(t *testing.T) {
	for _, valid := range []string{"pending", "in_progress", "completed", "cancelled"} {
		status, err := ParseJobStatus(valid)
		require.NoError(t, err)
		assert.Equal(t, valid, status.String())
	}

	_, err := ParseJobStatus("done")
	assert.Error(t, err)
}

func TestParseRequestType(t *testing.T) {
	for _, valid := range []string{"ucid", "scid"} {
		typ, err := ParseRequestType(valid)
		require.NoError(t, err)
		assert.Equal(t, valid, typ.String())
	}

	_, err := ParseRequestType("UCID")
	assert.Error(t, err, "types are lower-case only")
}

func TestParseArtworkStatus(t *testing.T) {
	for _, valid := range []string{"pending", "approved", "rejected"} {
		status, err := ParseArtworkStatus(valid)
		require.NoError(t, err)
		assert.Equal(t, valid, status.String())
	}

	_, err := ParseArtworkStatus("declined")
	assert.Error(t, err)
}

func TestScanRoundtrip(t *testing.T) {
	var role Role
	require.NoError(t, role.Scan("manager"))
	assert.Equal(t, RoleManager, role)

	require.NoError(t, role.Scan([]byte("admin")))
	assert.Equal(t, RoleAdmin, role)

	require.NoError(t, role.Scan(nil))
	assert.Equal(t, Role(""), role)

	assert.Error(t, role.Scan(42))
}

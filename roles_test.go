package onboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidRole(t *testing.T) {
	assert.True(t, IsValidRole(RoleStudent))
	assert.True(t, IsValidRole(RoleInstructor))
	assert.True(t, IsValidRole(RoleAdmin))
	assert.False(t, IsValidRole("superuser"))
	assert.False(t, IsValidRole(""))
}

func TestDerivedRoleChecks(t *testing.T) {
	assert.True(t, IsAdmin(RoleAdmin))
	assert.False(t, IsAdmin(RoleInstructor))
	assert.False(t, IsAdmin(RoleStudent))

	assert.True(t, IsInstructor(RoleInstructor))
	assert.True(t, IsInstructor(RoleAdmin))
	assert.False(t, IsInstructor(RoleStudent))
}

func TestParseRole(t *testing.T) {
	role, ok := ParseRole("admin")
	assert.True(t, ok)
	assert.Equal(t, RoleAdmin, role)

	_, ok = ParseRole("root")
	assert.False(t, ok)
}

func TestGetAllRoles(t *testing.T) {
	assert.Equal(t, []UserRole{RoleStudent, RoleInstructor, RoleAdmin}, GetAllRoles())
}

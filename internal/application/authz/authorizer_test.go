package authz

import (
	"testing"

	"github.com/dept-site-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultHierarchy_Depths(t *testing.T) {
	assert.Equal(t, 1, Default.Depth(domain.RoleAdmin))
	assert.Equal(t, 2, Default.Depth(domain.RoleSuperAdmin))
	assert.Equal(t, 3, Default.Depth(domain.RoleAdministrator))
	assert.Equal(t, 0, Default.Depth(domain.RoleUser))
	assert.Equal(t, domain.RoleAdmin, Default.Base())
}

func TestCanModify(t *testing.T) {
	a := NewAuthorizer(Default)
	assert.True(t, a.CanModify(domain.RoleSuperAdmin, domain.RoleAdmin))
	assert.True(t, a.CanModify(domain.RoleAdministrator, domain.RoleSuperAdmin))
	assert.False(t, a.CanModify(domain.RoleAdmin, domain.RoleAdmin))
	assert.False(t, a.CanModify(domain.RoleAdmin, domain.RoleSuperAdmin))
}

func TestCanDelete_AllowsSameRank(t *testing.T) {
	a := NewAuthorizer(Default)
	assert.True(t, a.CanDelete(domain.RoleAdmin, domain.RoleAdmin))
	assert.True(t, a.CanDelete(domain.RoleAdministrator, domain.RoleAdmin))
	assert.False(t, a.CanDelete(domain.RoleAdmin, domain.RoleSuperAdmin))
}

func TestUnknownRoles_FailClosed(t *testing.T) {
	a := NewAuthorizer(Default)
	assert.False(t, a.CanModify(domain.RoleAdministrator, domain.RoleUser))
	assert.False(t, a.CanDelete(domain.RoleUser, domain.RoleUser))
	assert.False(t, a.CanDelete(domain.Role(""), domain.RoleAdmin))
	assert.Empty(t, a.CreatableRoles(domain.Role("ROOT")))
	assert.False(t, a.CanManageOwnedResource(domain.RoleUser, "u1", "u1"))
}

func TestCreatableRoles(t *testing.T) {
	a := NewAuthorizer(Default)
	assert.Equal(t, []domain.Role{domain.RoleAdmin, domain.RoleSuperAdmin}, a.CreatableRoles(domain.RoleAdministrator))
	assert.Equal(t, []domain.Role{domain.RoleAdmin}, a.CreatableRoles(domain.RoleSuperAdmin))
	assert.Empty(t, a.CreatableRoles(domain.RoleAdmin))
	assert.True(t, a.CanCreate(domain.RoleAdministrator, domain.RoleSuperAdmin))
	assert.False(t, a.CanCreate(domain.RoleSuperAdmin, domain.RoleSuperAdmin))
}

func TestCreatableRoles_DoesNotAliasHierarchy(t *testing.T) {
	a := NewAuthorizer(Default)
	roles := a.CreatableRoles(domain.RoleAdministrator)
	roles[0] = domain.RoleUser
	assert.Equal(t, domain.RoleAdmin, Default.Roles()[0])
}

func TestIsAuthorized(t *testing.T) {
	a := NewAuthorizer(Default)
	assert.True(t, a.IsAuthorized(NewRoleSet(), domain.RoleAdmin))
	assert.True(t, a.IsAuthorized(nil, domain.Role("")))
	assert.True(t, a.IsAuthorized(NewRoleSet(domain.RoleAdmin), domain.RoleAdmin))
	// membership is exact, not rank-implied
	assert.False(t, a.IsAuthorized(NewRoleSet(domain.RoleAdmin), domain.RoleSuperAdmin))
	assert.False(t, a.IsAuthorized(NewRoleSet(domain.RoleAdmin), domain.Role("")))
}

func TestCanManageOwnedResource(t *testing.T) {
	a := NewAuthorizer(Default)
	assert.True(t, a.CanManageOwnedResource(domain.RoleSuperAdmin, "a", "b"))
	assert.True(t, a.CanManageOwnedResource(domain.RoleAdministrator, "a", "b"))
	assert.True(t, a.CanManageOwnedResource(domain.RoleAdmin, "a", "a"))
	assert.False(t, a.CanManageOwnedResource(domain.RoleAdmin, "a", "b"))
	assert.False(t, a.CanManageOwnedResource(domain.RoleAdmin, "", ""))
}

func TestTwoLevelHierarchy(t *testing.T) {
	a := NewAuthorizer(TwoLevel)
	assert.True(t, a.CanModify(domain.RoleAdmin, domain.RoleUser))
	assert.False(t, a.CanModify(domain.RoleUser, domain.RoleUser))
	assert.True(t, a.CanManageOwnedResource(domain.RoleAdmin, "a", "b"))
	assert.False(t, a.CanManageOwnedResource(domain.RoleUser, "a", "b"))
	assert.Equal(t, []domain.Role{domain.RoleUser}, a.CreatableRoles(domain.RoleAdmin))
}

func TestNewHierarchy_RejectsDuplicates(t *testing.T) {
	_, err := NewHierarchy(domain.RoleAdmin, domain.RoleAdmin, domain.RoleAdmin)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestNewHierarchy_RejectsElevatedOutsideOrder(t *testing.T) {
	_, err := NewHierarchy(domain.RoleAdministrator, domain.RoleUser, domain.RoleAdmin)
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestParseHierarchy(t *testing.T) {
	h, err := ParseHierarchy([]string{"admin", "super_admin", "ADMINISTRATOR"}, "super_admin")
	require.NoError(t, err)
	assert.Equal(t, Default.Roles(), h.Roles())
	assert.Equal(t, domain.RoleSuperAdmin, h.Elevated())

	_, err = ParseHierarchy([]string{"ADMIN", "OWNER"}, "ADMIN")
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestAtLeast(t *testing.T) {
	assert.Equal(t, []domain.Role{domain.RoleSuperAdmin, domain.RoleAdministrator}, Default.AtLeast(domain.RoleSuperAdmin))
	assert.Nil(t, Default.AtLeast(domain.RoleUser))
}

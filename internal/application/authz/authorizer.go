package authz

import "github.com/dept-site-api/internal/domain"

// RoleSet is the set of roles an operation requires. An empty set leaves the
// operation unguarded.
type RoleSet map[domain.Role]struct{}

// NewRoleSet builds a RoleSet from roles.
func NewRoleSet(roles ...domain.Role) RoleSet {
	s := make(RoleSet, len(roles))
	for _, r := range roles {
		s[r] = struct{}{}
	}
	return s
}

// Has reports whether r is a member of s.
func (s RoleSet) Has(r domain.Role) bool {
	_, ok := s[r]
	return ok
}

// Authorizer decides permissions over a fixed Hierarchy. It never errors;
// callers turn a false result into an access-denied response before any
// side effect.
type Authorizer struct {
	h *Hierarchy
}

func NewAuthorizer(h *Hierarchy) *Authorizer {
	return &Authorizer{h: h}
}

// Hierarchy returns the role order the authorizer decides over.
func (a *Authorizer) Hierarchy() *Hierarchy { return a.h }

// IsAuthorized checks exact membership of actual in required. Membership is
// not rank-implied: SUPER_ADMIN does not satisfy {ADMIN}.
func (a *Authorizer) IsAuthorized(required RoleSet, actual domain.Role) bool {
	if len(required) == 0 {
		return true
	}
	return required.Has(actual)
}

// CanModify allows changes only to principals strictly below the actor.
func (a *Authorizer) CanModify(actor, target domain.Role) bool {
	ad, td := a.h.Depth(actor), a.h.Depth(target)
	if ad == 0 || td == 0 {
		return false
	}
	return ad > td
}

// CanDelete allows deletion of principals at or below the actor's rank.
func (a *Authorizer) CanDelete(actor, target domain.Role) bool {
	ad, td := a.h.Depth(actor), a.h.Depth(target)
	if ad == 0 || td == 0 {
		return false
	}
	return ad >= td
}

// CreatableRoles lists the roles strictly below actor, lowest first.
func (a *Authorizer) CreatableRoles(actor domain.Role) []domain.Role {
	d := a.h.Depth(actor)
	if d <= 1 {
		return []domain.Role{}
	}
	return a.h.Roles()[:d-1]
}

// CanCreate reports whether actor may create a principal with role target.
func (a *Authorizer) CanCreate(actor, target domain.Role) bool {
	for _, r := range a.CreatableRoles(actor) {
		if r == target {
			return true
		}
	}
	return false
}

// CanManageOwnedResource lets elevated roles manage anything and everyone
// else only what they own.
func (a *Authorizer) CanManageOwnedResource(actor domain.Role, actorID, ownerID string) bool {
	d := a.h.Depth(actor)
	if d == 0 {
		return false
	}
	if d >= a.h.Depth(a.h.elevated) {
		return true
	}
	return actorID != "" && actorID == ownerID
}

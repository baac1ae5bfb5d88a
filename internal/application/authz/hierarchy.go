package authz

import (
	"fmt"

	"github.com/dept-site-api/internal/domain"
)

// Hierarchy is a strict total order over roles, lowest first. Depth is the
// 1-based position in that order; a role outside the hierarchy has depth 0
// and is never granted anything.
type Hierarchy struct {
	order    []domain.Role
	depth    map[domain.Role]int
	elevated domain.Role
}

var (
	// Default is the three-level deployment.
	Default = MustHierarchy(domain.RoleSuperAdmin, domain.RoleAdmin, domain.RoleSuperAdmin, domain.RoleAdministrator)
	// TwoLevel is the simpler USER/ADMIN deployment.
	TwoLevel = MustHierarchy(domain.RoleAdmin, domain.RoleUser, domain.RoleAdmin)
)

// NewHierarchy builds a hierarchy from roles ordered lowest to highest.
// elevated is the lowest role allowed to manage resources it does not own.
func NewHierarchy(elevated domain.Role, roles ...domain.Role) (*Hierarchy, error) {
	if len(roles) == 0 {
		return nil, fmt.Errorf("empty role hierarchy: %w", domain.ErrBadRequest)
	}
	h := &Hierarchy{
		order:    make([]domain.Role, 0, len(roles)),
		depth:    make(map[domain.Role]int, len(roles)),
		elevated: elevated,
	}
	for _, r := range roles {
		if !r.Valid() {
			return nil, fmt.Errorf("unknown role %q: %w", r, domain.ErrBadRequest)
		}
		if _, dup := h.depth[r]; dup {
			return nil, fmt.Errorf("role %q listed twice: %w", r, domain.ErrBadRequest)
		}
		h.order = append(h.order, r)
		h.depth[r] = len(h.order)
	}
	if _, ok := h.depth[elevated]; !ok {
		return nil, fmt.Errorf("elevated role %q not in hierarchy: %w", elevated, domain.ErrBadRequest)
	}
	return h, nil
}

// MustHierarchy is NewHierarchy for package-level declarations.
func MustHierarchy(elevated domain.Role, roles ...domain.Role) *Hierarchy {
	h, err := NewHierarchy(elevated, roles...)
	if err != nil {
		panic(err)
	}
	return h
}

// ParseHierarchy builds a hierarchy from config values: role names ordered
// lowest to highest and the elevated role name.
func ParseHierarchy(names []string, elevated string) (*Hierarchy, error) {
	roles := make([]domain.Role, 0, len(names))
	for _, n := range names {
		r, err := domain.ParseRole(n)
		if err != nil {
			return nil, err
		}
		roles = append(roles, r)
	}
	e, err := domain.ParseRole(elevated)
	if err != nil {
		return nil, err
	}
	return NewHierarchy(e, roles...)
}

// Depth returns the rank of r, or 0 when r is not part of the hierarchy.
func (h *Hierarchy) Depth(r domain.Role) int { return h.depth[r] }

// Roles returns the hierarchy lowest first.
func (h *Hierarchy) Roles() []domain.Role {
	out := make([]domain.Role, len(h.order))
	copy(out, h.order)
	return out
}

// Base is the lowest role; self-registered accounts start here.
func (h *Hierarchy) Base() domain.Role { return h.order[0] }

// Elevated is the lowest role that may manage resources owned by others.
func (h *Hierarchy) Elevated() domain.Role { return h.elevated }

// AtLeast returns every role whose depth is >= depth(r), lowest first.
// It is the role set route guards use for "r or above".
func (h *Hierarchy) AtLeast(r domain.Role) []domain.Role {
	d := h.depth[r]
	if d == 0 {
		return nil
	}
	out := make([]domain.Role, len(h.order)-d+1)
	copy(out, h.order[d-1:])
	return out
}

package domain

import "strings"

// Role is a coarse-grained permission category assigned by the backend.
// The set is closed; the backend never emits anything outside of it.
type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleMinister Role = "MINISTER"
	RoleAttendee Role = "ATTENDEE"
	RoleGuest    Role = "GUEST"
)

// AllRoles lists every known role, most privileged first.
var AllRoles = []Role{RoleAdmin, RoleMinister, RoleAttendee, RoleGuest}

// ParseRole normalizes and validates a role string. Unknown values map to
// RoleGuest so a backend rollout adding a role cannot lock clients out of
// public areas.
func ParseRole(s string) Role {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range AllRoles {
		if r == known {
			return r
		}
	}
	return RoleGuest
}

// AnyRole reports whether have and want intersect. Empty want means no
// role requirement and always passes.
func AnyRole(have, want []Role) bool {
	if len(want) == 0 {
		return true
	}
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}

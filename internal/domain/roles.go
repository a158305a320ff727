package domain

import "strings"

// Role is the coarse privilege level attached to an identity.
type Role string

const (
	RoleUser      Role = "user"      // manages own contacts
	RoleModerator Role = "moderator" // may read other accounts
	RoleAdmin     Role = "admin"     // may change roles
)

var roleRanks = map[Role]int{
	RoleUser:      1,
	RoleModerator: 2,
	RoleAdmin:     3,
}

// ParseRole normalizes s and rejects anything outside the known set.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := roleRanks[r]; !ok {
		return "", ErrInvalidRole(s)
	}
	return r, nil
}

func IsValidRole(r string) bool {
	_, ok := roleRanks[Role(r)]
	return ok
}

// RoleRank is zero for unknown roles.
func RoleRank(r string) int {
	return roleRanks[Role(r)]
}

// AtLeast reports whether have meets want. Unknown roles on either side
// never satisfy.
func AtLeast(have string, want Role) bool {
	h, w := RoleRank(have), roleRanks[want]
	return h > 0 && w > 0 && h >= w
}

// Package authz implements role-based request authorization: a static
// role hierarchy, the authenticated principal, and composable HTTP
// guards enforced ahead of every protected handler.
package authz

// Role identifies a seniority grouping for a staff account.
type Role string

// Listed roles, least to most senior.
const (
	RoleUser          Role = "user"
	RoleIntern        Role = "intern"
	RoleScheduler     Role = "scheduler"
	RoleClinician     Role = "clinician"
	RolePracticeAdmin Role = "practice_admin"
	RoleAdmin         Role = "admin"
)

// roleLevels is the immutable hierarchy table, built once at process
// start. Higher level means more privileges.
var roleLevels = map[Role]int{
	RoleUser:          1,
	RoleIntern:        2,
	RoleScheduler:     3,
	RoleClinician:     4,
	RolePracticeAdmin: 5,
	RoleAdmin:         6,
}

// Level returns the hierarchy rank of a role and whether it is listed.
func Level(r Role) (int, bool) {
	level, ok := roleLevels[r]
	return level, ok
}

// HasMinimumRole reports whether candidate is at least as senior as
// required. Listed roles compare by hierarchy level. Unlisted role
// strings deliberately fall back to exact equality: two custom roles
// are sufficient for each other only when identical, and a custom role
// never satisfies a listed one (or vice versa). The two paths are
// distinct semantics and must stay separate.
func HasMinimumRole(candidate, required Role) bool {
	candidateLevel, candidateListed := roleLevels[candidate]
	requiredLevel, requiredListed := roleLevels[required]
	if candidateListed && requiredListed {
		return candidateLevel >= requiredLevel
	}
	return candidate == required
}

// Principal is the authenticated identity attached to a request. It is
// created once per request by the auth layer and discarded at response
// end; guards only read it.
type Principal struct {
	ID       int64
	Username string
	Role     Role
	Enabled  bool
}

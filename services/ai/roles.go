package ai

// Role is a logical selector that external configuration maps to a concrete
// provider+model pair.
type Role string

const (
	RoleMain     Role = "main"
	RoleResearch Role = "research"
	RoleFallback Role = "fallback"
)

// roleSequences declares, per starting role, the full order in which roles
// are attempted. Every sequence starts with its own role and contains each
// role exactly once.
var roleSequences = map[Role][]Role{
	RoleMain:     {RoleMain, RoleFallback, RoleResearch},
	RoleResearch: {RoleResearch, RoleFallback, RoleMain},
	RoleFallback: {RoleFallback, RoleMain, RoleResearch},
}

// IsValid reports whether the role is one of the known selectors
func (r Role) IsValid() bool {
	_, ok := roleSequences[r]
	return ok
}

// sequenceFor returns the attempt order for a starting role. An unrecognized
// role degrades to the main sequence; the caller is responsible for warning.
func sequenceFor(role Role) []Role {
	seq, ok := roleSequences[role]
	if !ok {
		seq = roleSequences[RoleMain]
	}
	out := make([]Role, len(seq))
	copy(out, seq)
	return out
}

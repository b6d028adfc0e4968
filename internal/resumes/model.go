package resumes

import "time"

// Resume is a stored resume whose text was extracted at upload time.
type Resume struct {
	ID        string
	OwnerID   string
	FileName  string
	MimeType  string
	Text      string
	CreatedAt time.Time
}

// Role is the requester's role as asserted by the identity layer.
type Role string

const (
	RoleUser          Role = "user"
	RoleAdministrator Role = "admin"
	RoleRecruiter     Role = "recruiter"
)

// Elevated reports whether the role may read resumes it does not own.
func (r Role) Elevated() bool {
	return r == RoleAdministrator || r == RoleRecruiter
}

// ParseRole maps a claim value onto a Role, defaulting to RoleUser.
func ParseRole(raw string) Role {
	switch Role(raw) {
	case RoleAdministrator, "administrator":
		return RoleAdministrator
	case RoleRecruiter:
		return RoleRecruiter
	default:
		return RoleUser
	}
}

// Requester identifies the caller of a bridge operation.
type Requester struct {
	ID   string
	Role Role
}

// Decision is the derived access outcome for a stored resume.
type Decision int

const (
	Denied Decision = iota
	Allowed
)

// Decide applies the ownership/role access rule.
func Decide(resume Resume, requester Requester) Decision {
	if requester.ID != "" && resume.OwnerID == requester.ID {
		return Allowed
	}
	if requester.Role.Elevated() {
		return Allowed
	}
	return Denied
}

// Package authz decides whether a caller may perform an operation on a
// project or one of its tasks. It is pure: callers pass a snapshot of the
// project's membership and act on the returned Decision.
package authz

// Operation names something a caller can attempt against a project.
type Operation string

const (
	ProjectRead        Operation = "project:read"
	ProjectWrite       Operation = "project:write"
	CollaboratorManage Operation = "collaborator:manage"
	CollaboratorSearch Operation = "collaborator:search"
	TaskRead           Operation = "task:read"
	TaskCreate         Operation = "task:create"
	TaskEdit           Operation = "task:edit"
	TaskDelete         Operation = "task:delete"
	TaskToggle         Operation = "task:toggle"
)

// Role is the caller's relationship to a project.
type Role int

const (
	RoleNone Role = iota
	RoleCollaborator
	RoleCreator
)

func (r Role) String() string {
	switch r {
	case RoleCreator:
		return "creator"
	case RoleCollaborator:
		return "collaborator"
	default:
		return "none"
	}
}

// DenyReason describes why a check was denied.
type DenyReason int

const (
	ReasonNone DenyReason = iota

	// ReasonNotMember means the caller is neither creator nor collaborator.
	ReasonNotMember

	// ReasonCreatorOnly means the caller is a collaborator but the
	// operation is reserved to the creator.
	ReasonCreatorOnly

	// ReasonUnknownOperation means the operation is not in the rule table.
	ReasonUnknownOperation
)

func (r DenyReason) String() string {
	switch r {
	case ReasonNone:
		return ""
	case ReasonNotMember:
		return "you are not a member of this project"
	case ReasonCreatorOnly:
		return "only the project creator can do this"
	case ReasonUnknownOperation:
		return "unknown operation"
	default:
		return "unknown"
	}
}

// Membership is a snapshot of who owns and who collaborates on a project.
type Membership struct {
	CreatorID     uint
	Collaborators []uint
}

// RoleOf returns the caller's role. The creator check wins, so a corrupt
// snapshot listing the creator as a collaborator still yields RoleCreator.
func (m Membership) RoleOf(caller uint) Role {
	if caller == 0 {
		return RoleNone
	}
	if caller == m.CreatorID {
		return RoleCreator
	}
	for _, id := range m.Collaborators {
		if id == caller {
			return RoleCollaborator
		}
	}
	return RoleNone
}

// IsCollaborator reports whether userID is in the collaborator set.
func (m Membership) IsCollaborator(userID uint) bool {
	return userID != m.CreatorID && m.RoleOf(userID) == RoleCollaborator
}

// Decision is the outcome of Check.
type Decision struct {
	Allowed bool
	Role    Role
	Reason  DenyReason
}

// Error returns the deny reason as text, or "" when allowed.
func (d Decision) Error() string {
	if d.Allowed {
		return ""
	}
	return d.Reason.String()
}

// minimum role required per operation
var rules = map[Operation]Role{
	ProjectRead:        RoleCollaborator,
	ProjectWrite:       RoleCreator,
	CollaboratorManage: RoleCreator,
	CollaboratorSearch: RoleCollaborator,
	TaskRead:           RoleCollaborator,
	TaskCreate:         RoleCreator,
	TaskEdit:           RoleCreator,
	TaskDelete:         RoleCreator,
	TaskToggle:         RoleCollaborator,
}

// Check evaluates op for caller against m. A caller with no role is
// denied every operation.
func Check(caller uint, op Operation, m Membership) Decision {
	role := m.RoleOf(caller)

	required, ok := rules[op]
	if !ok {
		return Decision{Role: role, Reason: ReasonUnknownOperation}
	}
	if role == RoleNone {
		return Decision{Role: role, Reason: ReasonNotMember}
	}
	if role < required {
		return Decision{Role: role, Reason: ReasonCreatorOnly}
	}
	return Decision{Allowed: true, Role: role}
}

// Allows is Check reduced to a bool.
func Allows(caller uint, op Operation, m Membership) bool {
	return Check(caller, op, m).Allowed
}

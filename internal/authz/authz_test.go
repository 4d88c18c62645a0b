package authz

import "testing"

const (
	creator      uint = 1
	collaborator uint = 2
	outsider     uint = 3
)

var membership = Membership{CreatorID: creator, Collaborators: []uint{collaborator, 9}}

func TestRoleOf(t *testing.T) {
	tests := []struct {
		caller uint
		want   Role
	}{
		{creator, RoleCreator},
		{collaborator, RoleCollaborator},
		{outsider, RoleNone},
		{0, RoleNone},
	}

	for _, tt := range tests {
		if got := membership.RoleOf(tt.caller); got != tt.want {
			t.Errorf("RoleOf(%d) = %v, expected %v", tt.caller, got, tt.want)
		}
	}
}

func TestCheck_RuleTable(t *testing.T) {
	tests := []struct {
		op                 Operation
		creator, collab bool
	}{
		{ProjectRead, true, true},
		{ProjectWrite, true, false},
		{CollaboratorManage, true, false},
		{CollaboratorSearch, true, true},
		{TaskRead, true, true},
		{TaskCreate, true, false},
		{TaskEdit, true, false},
		{TaskDelete, true, false},
		{TaskToggle, true, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.op), func(t *testing.T) {
			if got := Allows(creator, tt.op, membership); got != tt.creator {
				t.Errorf("creator: Allows = %v, expected %v", got, tt.creator)
			}
			if got := Allows(collaborator, tt.op, membership); got != tt.collab {
				t.Errorf("collaborator: Allows = %v, expected %v", got, tt.collab)
			}
			if Allows(outsider, tt.op, membership) {
				t.Error("outsider must never be allowed")
			}
		})
	}
}

func TestCheck_DenyReasons(t *testing.T) {
	d := Check(outsider, ProjectRead, membership)
	if d.Allowed || d.Reason != ReasonNotMember {
		t.Errorf("outsider decision = %+v, expected ReasonNotMember", d)
	}

	d = Check(collaborator, TaskDelete, membership)
	if d.Allowed || d.Reason != ReasonCreatorOnly {
		t.Errorf("collaborator delete decision = %+v, expected ReasonCreatorOnly", d)
	}
	if d.Role != RoleCollaborator {
		t.Errorf("Role = %v, expected collaborator", d.Role)
	}
	if d.Error() == "" {
		t.Error("denied decision should carry a message")
	}

	d = Check(creator, Operation("project:archive"), membership)
	if d.Allowed || d.Reason != ReasonUnknownOperation {
		t.Errorf("unknown op decision = %+v", d)
	}
}

func TestCheck_CreatorListedAsCollaborator(t *testing.T) {
	m := Membership{CreatorID: creator, Collaborators: []uint{creator}}

	if got := m.RoleOf(creator); got != RoleCreator {
		t.Errorf("RoleOf = %v, expected creator", got)
	}
	if m.IsCollaborator(creator) {
		t.Error("creator must never count as a collaborator")
	}
}

func TestCheck_EmptyMembership(t *testing.T) {
	var m Membership
	if Allows(0, ProjectRead, m) {
		t.Error("zero caller must be denied even on a zero membership")
	}
}

package models

// MemberRole is the permission level of a workspace member.
type MemberRole string

const (
	RoleOwner  MemberRole = "owner"
	RoleEditor MemberRole = "editor"
	RoleViewer MemberRole = "viewer"
)

// CanWrite reports whether the role may modify workspace content.
func (r MemberRole) CanWrite() bool { return r == RoleOwner || r == RoleEditor }

// Valid reports whether r is a known role.
func (r MemberRole) Valid() bool {
	switch r {
	case RoleOwner, RoleEditor, RoleViewer:
		return true
	}
	return false
}

// WorkspaceModel groups decisions shared between members.
type WorkspaceModel struct {
	Base
	Name        string                 `json:"name"        gorm:"type:varchar(191);not null"`
	Description string                 `json:"description" gorm:"type:text"`
	OwnerID     string                 `json:"owner_id"    gorm:"type:char(36);index;not null"`
	Members     []WorkspaceMemberModel `json:"members,omitempty" gorm:"foreignKey:WorkspaceID"`
}

func (WorkspaceModel) TableName() string { return "workspaces" }

// WorkspaceMemberModel links a user to a workspace.
type WorkspaceMemberModel struct {
	Base
	WorkspaceID string     `json:"workspace_id" gorm:"type:char(36);not null;uniqueIndex:idx_workspace_user"`
	UserID      string     `json:"user_id"      gorm:"type:char(36);not null;uniqueIndex:idx_workspace_user"`
	Role        MemberRole `json:"role"         gorm:"type:varchar(16);not null"`
}

func (WorkspaceMemberModel) TableName() string { return "workspace_members" }

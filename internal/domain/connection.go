package domain

import (
	"strings"
	"time"
)

// UserRole is the profile side of a connection: whether the user wants a role at all.
type UserRole string

const (
	UserRoleNoRole UserRole = "NO_ROLE"
	UserRoleRole   UserRole = "ROLE"
)

// OrgRole is the organization side of a connection: the role it offers.
type OrgRole string

const (
	OrgRoleNoRole   OrgRole = "NO_ROLE"
	OrgRoleMentor   OrgRole = "MENTOR_ROLE"
	OrgRoleOrgAdmin OrgRole = "ORG_ADMIN_ROLE"
)

// Role is the role a profile effectively holds for an organization.
type Role string

const (
	RoleNone     Role = "NO_ROLE"
	RoleMentor   Role = "MENTOR"
	RoleOrgAdmin Role = "ORG_ADMIN"
)

// Side identifies which party of a connection is acting.
type Side string

const (
	SideUser Side = "USER"
	SideOrg  Side = "ORG"
)

func ParseUserRole(s string) (UserRole, error) {
	switch r := UserRole(strings.ToUpper(strings.TrimSpace(s))); r {
	case UserRoleNoRole, UserRoleRole:
		return r, nil
	}
	return "", &ValidationError{Field: "user_role", Reason: "unknown user role " + s}
}

func ParseOrgRole(s string) (OrgRole, error) {
	switch r := OrgRole(strings.ToUpper(strings.TrimSpace(s))); r {
	case OrgRoleNoRole, OrgRoleMentor, OrgRoleOrgAdmin:
		return r, nil
	}
	return "", &ValidationError{Field: "org_role", Reason: "unknown organization role " + s}
}

func ParseSide(s string) (Side, error) {
	switch v := Side(strings.ToUpper(strings.TrimSpace(s))); v {
	case SideUser, SideOrg:
		return v, nil
	}
	return "", &ValidationError{Field: "side", Reason: "unknown side " + s}
}

func (r UserRole) VerboseName() string {
	if r == UserRoleRole {
		return "Role"
	}
	return "No Role"
}

func (r OrgRole) VerboseName() string {
	switch r {
	case OrgRoleMentor:
		return "Mentor"
	case OrgRoleOrgAdmin:
		return "Organization Administrator"
	}
	return "No Role"
}

// Role maps an offered organization role to the role it grants once accepted.
func (r OrgRole) Role() Role {
	switch r {
	case OrgRoleMentor:
		return RoleMentor
	case OrgRoleOrgAdmin:
		return RoleOrgAdmin
	}
	return RoleNone
}

func (r Role) VerboseName() string {
	switch r {
	case RoleMentor:
		return "Mentor"
	case RoleOrgAdmin:
		return "Org Admin"
	}
	return "No Role"
}

// Connection negotiates a role between one profile and one organization.
// ProfileID and OrganizationID never change after creation.
type Connection struct {
	ID             int32     `json:"id"`
	ProfileID      int32     `json:"profile_id"`
	OrganizationID int32     `json:"organization_id"`
	UserRole       UserRole  `json:"user_role"`
	OrgRole        OrgRole   `json:"org_role"`
	SeenByUser     bool      `json:"seen_by_user"`
	SeenByOrg      bool      `json:"seen_by_org"`
	CreatedOn      time.Time `json:"created_on"`
	LastModified   time.Time `json:"last_modified"`
}

func (c *Connection) UserRequestedRole() bool {
	return c.UserRole == UserRoleRole
}

func (c *Connection) OrgOfferedMentorRole() bool {
	return c.OrgRole == OrgRoleMentor
}

func (c *Connection) OrgOfferedOrgAdminRole() bool {
	return c.OrgRole == OrgRoleOrgAdmin
}

// AgreedRole reports the role both sides currently agree on, if any.
func (c *Connection) AgreedRole() (Role, bool) {
	if c.UserRole != UserRoleRole || c.OrgRole == OrgRoleNoRole {
		return RoleNone, false
	}
	return c.OrgRole.Role(), true
}

// MarkActedBy flags the connection as seen by the acting side and unseen by the other.
func (c *Connection) MarkActedBy(side Side) {
	switch side {
	case SideUser:
		c.SeenByUser = true
		c.SeenByOrg = false
	case SideOrg:
		c.SeenByOrg = true
		c.SeenByUser = false
	}
}

// ConnectionMessage is one immutable entry of a connection transcript.
// AuthorID is nil for messages generated by the system.
type ConnectionMessage struct {
	ID              int32     `json:"id"`
	ConnectionID    int32     `json:"connection_id"`
	AuthorID        *int32    `json:"author_id,omitempty"`
	Content         string    `json:"content"`
	IsPrivate       bool      `json:"is_private"`
	IsAutoGenerated bool      `json:"is_auto_generated"`
	CreatedOn       time.Time `json:"created_on"`
}

// AnonymousConnection is an emailed invitation for someone without a profile.
// It has no negotiation state and turns into a Connection when redeemed.
type AnonymousConnection struct {
	ID              int32      `json:"id"`
	OrganizationID  int32      `json:"organization_id"`
	OrgRole         OrgRole    `json:"org_role"`
	Token           string     `json:"token"`
	Email           string     `json:"email"`
	CreatedBy       int32      `json:"created_by"`
	ExpiresOn       time.Time  `json:"expires_on"`
	UsedOn          *time.Time `json:"used_on,omitempty"`
	UsedByProfileID *int32     `json:"used_by_profile_id,omitempty"`
	CreatedOn       time.Time  `json:"created_on"`
}

func (a *AnonymousConnection) IsExpired(now time.Time) bool {
	return !now.Before(a.ExpiresOn)
}

func (a *AnonymousConnection) IsUsed() bool {
	return a.UsedOn != nil
}

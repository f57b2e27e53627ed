package domain

import "slices"

type ProfileStatus string

const (
	ProfileStatusActive  ProfileStatus = "ACTIVE"
	ProfileStatusInvalid ProfileStatus = "INVALID"
)

// Profile is a program participant. MentorFor and AdminFor hold organization
// ids; an organization in AdminFor is always also in MentorFor.
type Profile struct {
	ID                      int32         `json:"id"`
	Name                    string        `json:"name"`
	Email                   string        `json:"email"`
	Status                  ProfileStatus `json:"status"`
	IsStudent               bool          `json:"is_student"`
	NotifyConnectionUpdates bool          `json:"notify_connection_updates"`
	MentorFor               []int32       `json:"mentor_for"`
	AdminFor                []int32       `json:"admin_for"`
}

func (p *Profile) IsActive() bool {
	return p.Status == ProfileStatusActive
}

func (p *Profile) IsMentor() bool {
	return len(p.MentorFor) > 0
}

func (p *Profile) IsOrgAdmin() bool {
	return len(p.AdminFor) > 0
}

func (p *Profile) IsMentorFor(orgID int32) bool {
	return slices.Contains(p.MentorFor, orgID)
}

func (p *Profile) IsAdminFor(orgID int32) bool {
	return slices.Contains(p.AdminFor, orgID)
}

// RoleFor returns the role the profile currently holds for the organization.
func (p *Profile) RoleFor(orgID int32) Role {
	switch {
	case p.IsAdminFor(orgID):
		return RoleOrgAdmin
	case p.IsMentorFor(orgID):
		return RoleMentor
	}
	return RoleNone
}

package domain

import (
	"fmt"
	"unicode/utf8"

	"melange-connection-backend/internal/utils"
)

// RoleSelectionRequest is the input of a role selection by either side.
type RoleSelectionRequest struct {
	Role    string `json:"role"`
	Message string `json:"message,omitempty"`
}

// UserSelection validates the request as a profile-side selection. The
// returned message is sanitized and empty when none was given.
func (r RoleSelectionRequest) UserSelection(maxLength int) (UserRole, string, error) {
	role, err := ParseUserRole(r.Role)
	if err != nil {
		return "", "", err
	}
	message, err := OptionalMessage("message", r.Message, maxLength)
	if err != nil {
		return "", "", err
	}
	return role, message, nil
}

// OrgSelection validates the request as an organization-side selection.
func (r RoleSelectionRequest) OrgSelection(maxLength int) (OrgRole, string, error) {
	role, err := ParseOrgRole(r.Role)
	if err != nil {
		return "", "", err
	}
	message, err := OptionalMessage("message", r.Message, maxLength)
	if err != nil {
		return "", "", err
	}
	return role, message, nil
}

// CleanMessage sanitizes user content. Content with no visible text or longer
// than maxLength runes is rejected; maxLength <= 0 disables the length check.
func CleanMessage(field, content string, maxLength int) (string, error) {
	clean := utils.SanitizeHTML(content)
	if utils.IsBlankHTML(clean) {
		return "", &ValidationError{Field: field, Reason: "message must not be empty"}
	}
	if maxLength > 0 && utf8.RuneCountInString(clean) > maxLength {
		return "", &ValidationError{Field: field, Reason: fmt.Sprintf("message is longer than %d characters", maxLength)}
	}
	return clean, nil
}

// OptionalMessage is CleanMessage for a note that may be left out: content
// with no visible text yields "".
func OptionalMessage(field, content string, maxLength int) (string, error) {
	if utils.IsBlankHTML(utils.SanitizeHTML(content)) {
		return "", nil
	}
	return CleanMessage(field, content, maxLength)
}

// CreateConnectionRequest starts a connection. The initiator's side gets the
// requested role and the other side starts at NO_ROLE.
type CreateConnectionRequest struct {
	ProfileID      int32    `json:"profile_id"`
	OrganizationID int32    `json:"organization_id"`
	InitiatorID    int32    `json:"initiator_id"`
	Initiator      Side     `json:"initiator"`
	UserRole       UserRole `json:"user_role"`
	OrgRole        OrgRole  `json:"org_role"`
	Message        string   `json:"message,omitempty"`
}

func (r CreateConnectionRequest) Validate() error {
	if r.ProfileID <= 0 {
		return &ValidationError{Field: "profile_id", Reason: "must be positive"}
	}
	if r.OrganizationID <= 0 {
		return &ValidationError{Field: "organization_id", Reason: "must be positive"}
	}
	if _, err := ParseUserRole(string(r.UserRole)); err != nil {
		return err
	}
	if _, err := ParseOrgRole(string(r.OrgRole)); err != nil {
		return err
	}
	switch r.Initiator {
	case SideUser:
		if r.OrgRole != OrgRoleNoRole {
			return &ValidationError{Field: "org_role", Reason: "a user cannot set the organization role"}
		}
		if r.InitiatorID != r.ProfileID {
			return &ValidationError{Field: "initiator_id", Reason: "a user may only connect their own profile"}
		}
	case SideOrg:
		if r.UserRole != UserRoleNoRole {
			return &ValidationError{Field: "user_role", Reason: "an organization cannot set the user role"}
		}
	default:
		return &ValidationError{Field: "initiator", Reason: "unknown side " + string(r.Initiator)}
	}
	return nil
}

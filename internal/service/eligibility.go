package service

import (
	"context"
	"fmt"

	"melange-connection-backend/internal/domain"
	"melange-connection-backend/internal/repository"
)

// Reasons reported by the program eligibility checker.
const (
	ReasonOnlyOrgAdmin         = "only_org_admin"
	ReasonStudent              = "student_cannot_hold_role"
	ReasonProfileInactive      = "profile_inactive"
	ReasonOrganizationInactive = "organization_not_accepted"
)

type programEligibilityChecker struct{}

// NewProgramEligibilityChecker returns the default program rules:
// students and inactive profiles cannot hold organization roles, roles are
// only granted by accepted organizations, and the last administrator of an
// organization cannot give up the role.
func NewProgramEligibilityChecker() EligibilityChecker {
	return programEligibilityChecker{}
}

func (programEligibilityChecker) IsEligibleForRole(ctx context.Context, repos *repository.Repositories, profile *domain.Profile, org *domain.Organization, role domain.Role) (domain.Eligibility, error) {
	if role != domain.RoleNone {
		switch {
		case !profile.IsActive():
			return domain.NotEligible(ReasonProfileInactive), nil
		case profile.IsStudent:
			return domain.NotEligible(ReasonStudent), nil
		case !org.IsAccepted():
			return domain.NotEligible(ReasonOrganizationInactive), nil
		}
	}

	if role != domain.RoleOrgAdmin && profile.IsAdminFor(org.ID) {
		return canResignAsOrgAdmin(ctx, repos, profile, org)
	}
	return domain.Eligible(), nil
}

func canResignAsOrgAdmin(ctx context.Context, repos *repository.Repositories, profile *domain.Profile, org *domain.Organization) (domain.Eligibility, error) {
	admins, err := repos.Profiles.ListOrgAdmins(ctx, org.ID)
	if err != nil {
		return domain.Eligibility{}, fmt.Errorf("failed to list admins of organization %d: %w", org.ID, err)
	}
	for _, admin := range admins {
		if admin.ID != profile.ID {
			return domain.Eligible(), nil
		}
	}
	return domain.NotEligible(ReasonOnlyOrgAdmin), nil
}

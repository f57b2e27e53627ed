package service

import (
	"context"
	"fmt"
	"slices"

	"melange-connection-backend/internal/domain"
	"melange-connection-backend/internal/logger"
	"melange-connection-backend/internal/repository"
	"melange-connection-backend/internal/telemetry"
)

// AssignRole grants role to the profile for orgID. A mentor assignment removes
// any admin role for the organization; an admin assignment also makes the
// profile a mentor. Calling it twice with the same arguments changes nothing
// the second time. The profile must already be locked by the caller's transaction.
func AssignRole(ctx context.Context, repos *repository.Repositories, profile *domain.Profile, orgID int32, role domain.Role) (bool, error) {
	mentorFor, adminFor := profile.MentorFor, profile.AdminFor

	switch role {
	case domain.RoleMentor:
		mentorFor = addID(mentorFor, orgID)
		adminFor = removeID(adminFor, orgID)
	case domain.RoleOrgAdmin:
		mentorFor = addID(mentorFor, orgID)
		adminFor = addID(adminFor, orgID)
	case domain.RoleNone:
		return ClearRole(ctx, repos, profile, orgID)
	default:
		return false, &domain.ValidationError{Field: "role", Reason: "unknown role " + string(role)}
	}

	return storeRoles(ctx, repos, profile, mentorFor, adminFor, role)
}

// ClearRole removes orgID from both membership sets of the profile.
func ClearRole(ctx context.Context, repos *repository.Repositories, profile *domain.Profile, orgID int32) (bool, error) {
	return storeRoles(ctx, repos, profile, removeID(profile.MentorFor, orgID), removeID(profile.AdminFor, orgID), domain.RoleNone)
}

func storeRoles(ctx context.Context, repos *repository.Repositories, profile *domain.Profile, mentorFor, adminFor []int32, role domain.Role) (bool, error) {
	if slices.Equal(mentorFor, profile.MentorFor) && slices.Equal(adminFor, profile.AdminFor) {
		return false, nil
	}

	updated := *profile
	updated.MentorFor = mentorFor
	updated.AdminFor = adminFor
	if err := repos.Profiles.UpdateRoles(ctx, &updated); err != nil {
		return false, fmt.Errorf("failed to update roles of profile %d: %w", profile.ID, err)
	}
	profile.MentorFor = mentorFor
	profile.AdminFor = adminFor

	telemetry.RoleAssignmentsTotal.WithLabelValues(string(role)).Inc()
	logger.Info("Profile roles updated", "profile_id", profile.ID, "role", role,
		"mentor_for", mentorFor, "admin_for", adminFor)
	return true, nil
}

// addID and removeID return new slices so the caller's profile is only
// modified once the update has been stored.
func addID(ids []int32, id int32) []int32 {
	if slices.Contains(ids, id) {
		return ids
	}
	out := make([]int32, 0, len(ids)+1)
	out = append(out, ids...)
	return append(out, id)
}

func removeID(ids []int32, id int32) []int32 {
	if !slices.Contains(ids, id) {
		return ids
	}
	out := make([]int32, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// AssignRoleByID locks the profile in the current transaction and assigns role.
func AssignRoleByID(ctx context.Context, repos *repository.Repositories, profileID, orgID int32, role domain.Role) (bool, error) {
	profile, err := repos.Profiles.GetForUpdate(ctx, profileID)
	if err != nil {
		return false, err
	}
	return AssignRole(ctx, repos, profile, orgID, role)
}

// ClearRoleByID locks the profile in the current transaction and clears its role for orgID.
func ClearRoleByID(ctx context.Context, repos *repository.Repositories, profileID, orgID int32) (bool, error) {
	profile, err := repos.Profiles.GetForUpdate(ctx, profileID)
	if err != nil {
		return false, err
	}
	return ClearRole(ctx, repos, profile, orgID)
}

package service

import (
	"context"

	"melange-connection-backend/internal/domain"
	"melange-connection-backend/internal/repository"
)

type accessService struct {
	profiles repository.ProfileRepository
}

func NewAccessService(profiles repository.ProfileRepository) AccessService {
	return &accessService{profiles: profiles}
}

func (s *accessService) AuthorizeUser(ctx context.Context, actorID int32, conn *domain.Connection) error {
	if actorID != conn.ProfileID {
		return ErrNotAuthorized
	}
	return nil
}

func (s *accessService) AuthorizeOrgAdmin(ctx context.Context, actorID, orgID int32) error {
	profile, err := s.profiles.GetByID(ctx, actorID)
	if err != nil {
		if domain.IsNotFound(err) {
			return ErrNotAuthorized
		}
		return err
	}
	if !profile.IsActive() || !profile.IsAdminFor(orgID) {
		return ErrNotAuthorized
	}
	return nil
}

// SideFor prefers the user side when the actor owns the connection, even if
// they also administer the organization.
func (s *accessService) SideFor(ctx context.Context, actorID int32, conn *domain.Connection) (domain.Side, error) {
	if actorID == conn.ProfileID {
		return domain.SideUser, nil
	}
	if err := s.AuthorizeOrgAdmin(ctx, actorID, conn.OrganizationID); err != nil {
		return "", err
	}
	return domain.SideOrg, nil
}

package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"melange-connection-backend/internal/domain"
	"melange-connection-backend/internal/logger"
	"melange-connection-backend/internal/repository"
	"melange-connection-backend/internal/telemetry"
	"melange-connection-backend/internal/utils"
)

const defaultAnonymousInviteTTL = 7 * 24 * time.Hour

type anonymousConnectionService struct {
	store    repository.Transactor
	repos    *repository.Repositories
	notifier Notifier
	ttl      time.Duration
	now      func() time.Time
}

func NewAnonymousConnectionService(store repository.Transactor, repos *repository.Repositories, notifier Notifier, ttl time.Duration) AnonymousConnectionService {
	if ttl <= 0 {
		ttl = defaultAnonymousInviteTTL
	}
	return &anonymousConnectionService{
		store:    store,
		repos:    repos,
		notifier: notifier,
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *anonymousConnectionService) Invite(ctx context.Context, orgID int32, email string, role domain.OrgRole, message string, actingAdminID int32) (*domain.AnonymousConnection, error) {
	logger.EnterMethod("anonymousConnectionService.Invite", "orgID", orgID, "role", role, "adminID", actingAdminID)

	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil {
		return nil, &domain.ValidationError{Field: "email", Reason: "not a valid email address"}
	}
	if role != domain.OrgRoleMentor && role != domain.OrgRoleOrgAdmin {
		return nil, &domain.ValidationError{Field: "org_role", Reason: "an invitation must offer a role"}
	}
	message = utils.SanitizeHTML(message)

	var invite *domain.AnonymousConnection
	err = s.store.WithinTx(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		org, err := repos.Organizations.GetByID(ctx, orgID)
		if err != nil {
			return err
		}
		if _, err := repos.Profiles.GetByEmail(ctx, addr.Address); err == nil {
			return &domain.ValidationError{Field: "email", Reason: "a profile with this email already exists; connect with it instead"}
		} else if !domain.IsNotFound(err) {
			return err
		}

		a := &domain.AnonymousConnection{
			OrganizationID: org.ID,
			OrgRole:        role,
			Token:          uuid.NewString(),
			Email:          strings.ToLower(addr.Address),
			CreatedBy:      actingAdminID,
			ExpiresOn:      s.now().UTC().Add(s.ttl),
		}
		if err := repos.AnonymousConnections.Create(ctx, a); err != nil {
			return fmt.Errorf("failed to create anonymous connection: %w", err)
		}
		if err := s.notifier.AnonymousInvitation(ctx, repos, a, org, message); err != nil {
			return err
		}
		invite = a
		return nil
	})
	if err != nil {
		logger.ExitMethodWithError("anonymousConnectionService.Invite", err, "orgID", orgID)
		return nil, err
	}

	logger.ExitMethod("anonymousConnectionService.Invite", "inviteID", invite.ID)
	return invite, nil
}

// Redeem turns an invitation into a connection for the profile registered
// under the invited address. The organization side carries the offered role
// and the user still has to accept it.
func (s *anonymousConnectionService) Redeem(ctx context.Context, token string, profileID int32) (*domain.Connection, error) {
	logger.EnterMethod("anonymousConnectionService.Redeem", "profileID", profileID)

	if _, err := uuid.Parse(token); err != nil {
		return nil, &domain.NotFoundError{Entity: "anonymous connection", ID: token}
	}

	var created *domain.Connection
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		invite, err := repos.AnonymousConnections.GetByTokenForUpdate(ctx, token)
		if err != nil {
			return err
		}
		if invite.IsUsed() {
			return &domain.ValidationError{Field: "token", Reason: "invitation has already been used"}
		}
		if invite.IsExpired(s.now()) {
			return &domain.ValidationError{Field: "token", Reason: "invitation has expired"}
		}

		profile, err := repos.Profiles.GetByID(ctx, profileID)
		if err != nil {
			return err
		}
		if !strings.EqualFold(profile.Email, invite.Email) {
			return ErrNotAuthorized
		}

		if err := repos.AnonymousConnections.MarkUsed(ctx, invite.ID, profile.ID); err != nil {
			return err
		}
		conn, err := createConnection(ctx, repos, s.notifier, domain.CreateConnectionRequest{
			ProfileID:      profile.ID,
			OrganizationID: invite.OrganizationID,
			InitiatorID:    invite.CreatedBy,
			Initiator:      domain.SideOrg,
			UserRole:       domain.UserRoleNoRole,
			OrgRole:        invite.OrgRole,
		}, "")
		if err != nil {
			return err
		}
		created = conn
		return nil
	})
	if err != nil {
		logger.ExitMethodWithError("anonymousConnectionService.Redeem", err, "profileID", profileID)
		return nil, err
	}

	telemetry.ConnectionsCreatedTotal.WithLabelValues(string(domain.SideOrg)).Inc()
	logger.ExitMethod("anonymousConnectionService.Redeem", "connectionID", created.ID)
	return created, nil
}

// PurgeExpired deletes invitations that expired without being redeemed.
func (s *anonymousConnectionService) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.repos.AnonymousConnections.DeleteExpired(ctx, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired invitations: %w", err)
	}
	if n > 0 {
		logger.Info("Purged expired anonymous connections", "count", n)
	}
	return n, nil
}

package service

import (
	"context"
	"errors"

	"melange-connection-backend/internal/domain"
	"melange-connection-backend/internal/repository"
)

var (
	ErrNotAuthorized = errors.New("not authorized to act on this connection")
)

// ConnectionService is the state machine negotiating roles between a profile
// and an organization. Every mutating call runs in one transaction.
type ConnectionService interface {
	CreateConnection(ctx context.Context, req domain.CreateConnectionRequest) (*domain.Connection, error)
	// ApplyUserRoleSelection and ApplyOrgRoleSelection store the optional message
	// in the same transaction as the selection.
	ApplyUserRoleSelection(ctx context.Context, connectionID int32, role domain.UserRole, message string) (*domain.Connection, error)
	ApplyOrgRoleSelection(ctx context.Context, connectionID int32, role domain.OrgRole, actingAdminID int32, message string) (*domain.Connection, error)
	// RevokeRole demotes the profile for the connection's organization regardless of
	// the regression policy and withdraws the organization's offer.
	RevokeRole(ctx context.Context, connectionID int32, actingAdminID int32) (*domain.Connection, error)
	PostMessage(ctx context.Context, connectionID, authorID int32, content string, isPrivate bool) (*domain.ConnectionMessage, error)
	MarkSeen(ctx context.Context, connectionID int32, side domain.Side) error

	GetConnection(ctx context.Context, profileID, orgID int32) (*domain.Connection, error)
	GetConnectionByID(ctx context.Context, connectionID int32) (*domain.Connection, error)
	ListForProfile(ctx context.Context, profileID int32) ([]domain.Connection, error)
	ListForOrganization(ctx context.Context, orgID int32) ([]domain.Connection, error)
	ListMessages(ctx context.Context, connectionID int32, includePrivate bool) *MessageSequence
	// CheckEligibility reports whether a selection by side would be accepted, without applying it.
	CheckEligibility(ctx context.Context, connectionID int32, side domain.Side, role string) (domain.Eligibility, error)
}

// AnonymousConnectionService manages emailed invitations for people without a profile.
type AnonymousConnectionService interface {
	Invite(ctx context.Context, orgID int32, email string, role domain.OrgRole, message string, actingAdminID int32) (*domain.AnonymousConnection, error)
	Redeem(ctx context.Context, token string, profileID int32) (*domain.Connection, error)
	PurgeExpired(ctx context.Context) (int64, error)
}

// AccessService answers which side of a connection a profile may act for.
type AccessService interface {
	AuthorizeUser(ctx context.Context, actorID int32, conn *domain.Connection) error
	AuthorizeOrgAdmin(ctx context.Context, actorID, orgID int32) error
	// SideFor returns the side actorID acts for on conn.
	SideFor(ctx context.Context, actorID int32, conn *domain.Connection) (domain.Side, error)
}

// EligibilityChecker decides whether a profile may end up holding role for an
// organization. It runs inside the transaction of the transition it guards.
type EligibilityChecker interface {
	IsEligibleForRole(ctx context.Context, repos *repository.Repositories, profile *domain.Profile, org *domain.Organization, role domain.Role) (domain.Eligibility, error)
}

// RegressionPolicy decides what happens to a granted role when either side
// of a connection goes back to no role.
type RegressionPolicy int

const (
	// RetainRolesOnRegression leaves profile membership untouched; demotion is explicit.
	RetainRolesOnRegression RegressionPolicy = iota
	// DemoteOnRegression clears the profile's role in the same transaction.
	DemoteOnRegression
)

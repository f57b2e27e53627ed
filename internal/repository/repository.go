package repository

import (
	"context"
	"time"

	"melange-connection-backend/internal/domain"
)

type ConnectionRepository interface {
	Create(ctx context.Context, conn *domain.Connection) error
	GetByID(ctx context.Context, id int32) (*domain.Connection, error)
	// GetForUpdate reads the connection and locks it until the transaction ends.
	GetForUpdate(ctx context.Context, id int32) (*domain.Connection, error)
	GetByProfileAndOrg(ctx context.Context, profileID, orgID int32) (*domain.Connection, error)
	ListByProfile(ctx context.Context, profileID int32) ([]domain.Connection, error)
	ListByOrg(ctx context.Context, orgID int32) ([]domain.Connection, error)
	// Update stores role and seen fields and bumps last_modified.
	Update(ctx context.Context, conn *domain.Connection) error
	// MarkSeen sets the seen flag of one side without touching last_modified.
	MarkSeen(ctx context.Context, id int32, side domain.Side) error
}

type ConnectionMessageRepository interface {
	Create(ctx context.Context, msg *domain.ConnectionMessage) error
	// ListByConnection returns messages oldest first, ties broken by insertion order.
	ListByConnection(ctx context.Context, connectionID int32, includePrivate bool, limit int32) ([]domain.ConnectionMessage, error)
}

type ProfileRepository interface {
	GetByID(ctx context.Context, id int32) (*domain.Profile, error)
	GetForUpdate(ctx context.Context, id int32) (*domain.Profile, error)
	GetByEmail(ctx context.Context, email string) (*domain.Profile, error)
	UpdateRoles(ctx context.Context, profile *domain.Profile) error
	// ListOrgAdmins returns active administrators of the organization.
	ListOrgAdmins(ctx context.Context, orgID int32) ([]domain.Profile, error)
}

type OrganizationRepository interface {
	GetByID(ctx context.Context, id int32) (*domain.Organization, error)
}

type NotificationRepository interface {
	Enqueue(ctx context.Context, n *domain.Notification) error
	// ClaimPending leases up to limit pending rows for the given duration.
	// Rows leased by another dispatcher are skipped until their lease runs out.
	ClaimPending(ctx context.Context, limit int32, lease time.Duration) ([]domain.Notification, error)
	MarkSent(ctx context.Context, id int32) error
	MarkFailed(ctx context.Context, id int32, lastErr string, maxAttempts int32) error
}

type AnonymousConnectionRepository interface {
	Create(ctx context.Context, ac *domain.AnonymousConnection) error
	GetByTokenForUpdate(ctx context.Context, token string) (*domain.AnonymousConnection, error)
	MarkUsed(ctx context.Context, id, profileID int32) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// Repositories groups repositories bound to one database handle or transaction.
type Repositories struct {
	Connections          ConnectionRepository
	Messages             ConnectionMessageRepository
	Profiles             ProfileRepository
	Organizations        OrganizationRepository
	Notifications        NotificationRepository
	AnonymousConnections AnonymousConnectionRepository
}

// Transactor runs a unit of work atomically. The function may be invoked more
// than once when the transaction has to be retried, so it must not have side
// effects outside the repositories it is given.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos *Repositories) error) error
}

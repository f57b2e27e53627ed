package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"melange-connection-backend/internal/domain"
	"melange-connection-backend/internal/logger"
	"melange-connection-backend/internal/repository"
	"melange-connection-backend/internal/telemetry"
)

const defaultMessageListLimit = 1000

type ConnectionServiceOptions struct {
	Policy           RegressionPolicy
	MessageMaxLength int
	MessageListLimit int32
}

type connectionService struct {
	store    repository.Transactor
	repos    *repository.Repositories
	checker  EligibilityChecker
	notifier Notifier
	opts     ConnectionServiceOptions
}

// NewConnectionService wires the state machine. repos is used for reads that
// need no transaction; every write goes through store.
func NewConnectionService(
	store repository.Transactor,
	repos *repository.Repositories,
	checker EligibilityChecker,
	notifier Notifier,
	opts ConnectionServiceOptions,
) ConnectionService {
	if opts.MessageListLimit <= 0 {
		opts.MessageListLimit = defaultMessageListLimit
	}
	return &connectionService{
		store:    store,
		repos:    repos,
		checker:  checker,
		notifier: notifier,
		opts:     opts,
	}
}

func (s *connectionService) CreateConnection(ctx context.Context, req domain.CreateConnectionRequest) (*domain.Connection, error) {
	logger.EnterMethod("connectionService.CreateConnection", "profileID", req.ProfileID, "orgID", req.OrganizationID, "initiator", req.Initiator)

	if err := req.Validate(); err != nil {
		logger.ExitMethodWithError("connectionService.CreateConnection", err)
		return nil, err
	}
	// The opening message is optional, so blank content is dropped rather than rejected.
	message, err := domain.OptionalMessage("message", req.Message, s.opts.MessageMaxLength)
	if err != nil {
		logger.ExitMethodWithError("connectionService.CreateConnection", err)
		return nil, err
	}

	var created *domain.Connection
	err = s.store.WithinTx(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		conn, err := createConnection(ctx, repos, s.notifier, req, message)
		if err != nil {
			return err
		}
		created = conn
		return nil
	})
	if err != nil {
		var conflict *domain.ConflictError
		if errors.As(err, &conflict) {
			telemetry.ConnectionConflictsTotal.Inc()
			if conflict.ExistingID == 0 {
				// Lost a creation race: the row exists now but was not visible to the pre-check.
				if existing, lookupErr := s.repos.Connections.GetByProfileAndOrg(ctx, req.ProfileID, req.OrganizationID); lookupErr == nil {
					conflict.ExistingID = existing.ID
				}
			}
		}
		logger.ExitMethodWithError("connectionService.CreateConnection", err, "profileID", req.ProfileID, "orgID", req.OrganizationID)
		return nil, err
	}

	telemetry.ConnectionsCreatedTotal.WithLabelValues(string(req.Initiator)).Inc()
	logger.ExitMethod("connectionService.CreateConnection", "connectionID", created.ID)
	return created, nil
}

// createConnection inserts a connection with its opening messages and
// notifies the side that did not start it. It runs inside the caller's transaction.
func createConnection(ctx context.Context, repos *repository.Repositories, notifier Notifier, req domain.CreateConnectionRequest, message string) (*domain.Connection, error) {
	profile, err := repos.Profiles.GetByID(ctx, req.ProfileID)
	if err != nil {
		return nil, err
	}
	org, err := repos.Organizations.GetByID(ctx, req.OrganizationID)
	if err != nil {
		return nil, err
	}

	existing, err := repos.Connections.GetByProfileAndOrg(ctx, req.ProfileID, req.OrganizationID)
	if err == nil {
		return nil, &domain.ConflictError{ProfileID: req.ProfileID, OrganizationID: req.OrganizationID, ExistingID: existing.ID}
	}
	if !domain.IsNotFound(err) {
		return nil, err
	}

	conn := &domain.Connection{
		ProfileID:      req.ProfileID,
		OrganizationID: req.OrganizationID,
		UserRole:       req.UserRole,
		OrgRole:        req.OrgRole,
	}
	conn.MarkActedBy(req.Initiator)
	if err := repos.Connections.Create(ctx, conn); err != nil {
		return nil, err
	}

	if _, err := appendMessage(ctx, repos, conn.ID, nil, startMessage(req.Initiator, conn, profile, org), false, true); err != nil {
		return nil, err
	}
	if message != "" {
		author := req.InitiatorID
		if _, err := appendMessage(ctx, repos, conn.ID, &author, message, false, false); err != nil {
			return nil, err
		}
	}

	ev := ConnectionEvent{Connection: conn, Profile: profile, Organization: org, Actor: req.Initiator}
	if err := notifier.ConnectionStarted(ctx, repos, ev, message); err != nil {
		return nil, err
	}
	return conn, nil
}

func (s *connectionService) ApplyUserRoleSelection(ctx context.Context, connectionID int32, role domain.UserRole, message string) (*domain.Connection, error) {
	role, err := domain.ParseUserRole(string(role))
	if err != nil {
		return nil, err
	}
	note, err := domain.OptionalMessage("message", message, s.opts.MessageMaxLength)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, "connectionService.ApplyUserRoleSelection", connectionID, domain.SideUser, 0, note, false,
		func(conn *domain.Connection) (string, string) {
			from := conn.UserRole
			conn.UserRole = role
			return from.VerboseName(), role.VerboseName()
		})
}

func (s *connectionService) ApplyOrgRoleSelection(ctx context.Context, connectionID int32, role domain.OrgRole, actingAdminID int32, message string) (*domain.Connection, error) {
	role, err := domain.ParseOrgRole(string(role))
	if err != nil {
		return nil, err
	}
	note, err := domain.OptionalMessage("message", message, s.opts.MessageMaxLength)
	if err != nil {
		return nil, err
	}
	logger.Debug("Organization role selection", "connectionID", connectionID, "adminID", actingAdminID, "role", role)
	return s.transition(ctx, "connectionService.ApplyOrgRoleSelection", connectionID, domain.SideOrg, actingAdminID, note, false,
		func(conn *domain.Connection) (string, string) {
			from := conn.OrgRole
			conn.OrgRole = role
			return from.VerboseName(), role.VerboseName()
		})
}

func (s *connectionService) RevokeRole(ctx context.Context, connectionID int32, actingAdminID int32) (*domain.Connection, error) {
	logger.Debug("Revoking role", "connectionID", connectionID, "adminID", actingAdminID)
	return s.transition(ctx, "connectionService.RevokeRole", connectionID, domain.SideOrg, actingAdminID, "", true,
		func(conn *domain.Connection) (string, string) {
			from := conn.OrgRole
			conn.OrgRole = domain.OrgRoleNoRole
			return from.VerboseName(), domain.OrgRoleNoRole.VerboseName()
		})
}

// transition applies one side's selection inside a transaction. mutate sets
// the new role on the locked connection and returns the verbose names of the
// previous and new selection. A non-empty note is stored as a message from
// the acting profile in the same transaction; actorID names that profile on
// the organization side. When revoke is set the profile loses its role for the
// organization whatever the regression policy says.
func (s *connectionService) transition(
	ctx context.Context,
	method string,
	connectionID int32,
	side domain.Side,
	actorID int32,
	note string,
	revoke bool,
	mutate func(conn *domain.Connection) (from, to string),
) (*domain.Connection, error) {
	logger.EnterMethod(method, "connectionID", connectionID, "side", side)

	var (
		result       *domain.Connection
		fromState    string
		toState      string
		stateChanged bool
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		// 1. Re-read and lock the connection
		conn, err := repos.Connections.GetForUpdate(ctx, connectionID)
		if err != nil {
			return err
		}
		before := *conn
		from, to := mutate(conn)
		if side == domain.SideUser {
			actorID = conn.ProfileID
		}
		connChanged := conn.UserRole != before.UserRole || conn.OrgRole != before.OrgRole
		if !connChanged && !revoke {
			result = conn
			return s.postNote(ctx, repos, conn, side, actorID, note)
		}

		// 2. Lock the profile and decide the role it ends up with
		profile, err := repos.Profiles.GetForUpdate(ctx, conn.ProfileID)
		if err != nil {
			return err
		}
		org, err := repos.Organizations.GetByID(ctx, conn.OrganizationID)
		if err != nil {
			return err
		}
		current := profile.RoleFor(org.ID)
		target := s.resultingRole(&before, conn, current, revoke)
		if !connChanged && target == current {
			result = conn
			return s.postNote(ctx, repos, conn, side, actorID, note)
		}

		// 3. Nothing is written unless the profile may end up with target
		if target != current {
			eligibility, err := s.checker.IsEligibleForRole(ctx, repos, profile, org, target)
			if err != nil {
				return fmt.Errorf("failed to check eligibility: %w", err)
			}
			if !eligibility.Allowed {
				return &domain.IneligibleError{
					ProfileID:      profile.ID,
					OrganizationID: org.ID,
					Role:           target,
					Eligibility:    eligibility,
				}
			}
		}

		// 4. Store the selection
		var audit []string
		if connChanged {
			conn.MarkActedBy(side)
			if err := repos.Connections.Update(ctx, conn); err != nil {
				return err
			}
			audit = append(audit, fmt.Sprintf("%s changed role from %s to %s.", sideLabel(side), from, to))
		}

		// 5. Apply the role to the profile
		wasMentor := profile.IsMentor()
		assigned := false
		if target != current {
			if target == domain.RoleNone {
				assigned, err = ClearRole(ctx, repos, profile, org.ID)
			} else {
				assigned, err = AssignRole(ctx, repos, profile, org.ID, target)
			}
			if err != nil {
				return err
			}
			if assigned {
				audit = append(audit, roleMessage(profile.Name, target))
			}
		}

		if _, err := appendMessage(ctx, repos, conn.ID, nil, strings.Join(audit, " "), false, true); err != nil {
			return err
		}
		if note != "" {
			if _, err := appendMessage(ctx, repos, conn.ID, &actorID, note, false, false); err != nil {
				return err
			}
			if !connChanged {
				conn.MarkActedBy(side)
				if err := repos.Connections.Update(ctx, conn); err != nil {
					return err
				}
			}
		}

		// 6. Notify
		ev := ConnectionEvent{Connection: conn, Profile: profile, Organization: org, Actor: side}
		if connChanged {
			if err := s.notifier.RoleChanged(ctx, repos, ev, from, to); err != nil {
				return err
			}
		}
		if assigned && target != domain.RoleNone && !wasMentor {
			if err := s.notifier.MentorWelcome(ctx, repos, ev); err != nil {
				return err
			}
		}

		result = conn
		stateChanged = connChanged
		fromState, toState = stateLabel(side, &before), stateLabel(side, conn)
		return nil
	})
	if err != nil {
		var ineligible *domain.IneligibleError
		if errors.As(err, &ineligible) {
			telemetry.ConnectionIneligibleTotal.WithLabelValues(ineligible.Eligibility.Reason).Inc()
		}
		logger.ExitMethodWithError(method, err, "connectionID", connectionID)
		return nil, err
	}

	if stateChanged {
		telemetry.ConnectionTransitionsTotal.WithLabelValues(string(side), fromState, toState).Inc()
	}
	logger.ExitMethod(method, "connectionID", connectionID, "userRole", result.UserRole, "orgRole", result.OrgRole)
	return result, nil
}

// resultingRole is the role the profile holds for the organization once
// after has been stored.
func (s *connectionService) resultingRole(before, after *domain.Connection, current domain.Role, revoke bool) domain.Role {
	if revoke {
		return domain.RoleNone
	}
	if role, ok := after.AgreedRole(); ok {
		return role
	}
	if _, wasAgreed := before.AgreedRole(); wasAgreed && s.opts.Policy == DemoteOnRegression {
		return domain.RoleNone
	}
	return current
}

func (s *connectionService) PostMessage(ctx context.Context, connectionID, authorID int32, content string, isPrivate bool) (*domain.ConnectionMessage, error) {
	logger.EnterMethod("connectionService.PostMessage", "connectionID", connectionID, "authorID", authorID, "private", isPrivate)

	clean, err := cleanMessage(content, s.opts.MessageMaxLength)
	if err != nil {
		logger.ExitMethodWithError("connectionService.PostMessage", err, "connectionID", connectionID)
		return nil, err
	}

	var posted *domain.ConnectionMessage
	err = s.store.WithinTx(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		conn, err := repos.Connections.GetForUpdate(ctx, connectionID)
		if err != nil {
			return err
		}
		side := domain.SideOrg
		if authorID == conn.ProfileID {
			side = domain.SideUser
		}
		if isPrivate && side == domain.SideUser {
			return &domain.ValidationError{Field: "is_private", Reason: "only the organization can post private messages"}
		}
		msg, err := s.post(ctx, repos, conn, side, authorID, clean, isPrivate)
		if err != nil {
			return err
		}
		posted = msg
		return nil
	})
	if err != nil {
		logger.ExitMethodWithError("connectionService.PostMessage", err, "connectionID", connectionID)
		return nil, err
	}

	logger.ExitMethod("connectionService.PostMessage", "messageID", posted.ID)
	return posted, nil
}

// post appends an authored message, marks the connection as acted on by side
// and notifies the other side unless the message is private.
func (s *connectionService) post(ctx context.Context, repos *repository.Repositories, conn *domain.Connection, side domain.Side, authorID int32, content string, isPrivate bool) (*domain.ConnectionMessage, error) {
	author := authorID
	msg, err := appendMessage(ctx, repos, conn.ID, &author, content, isPrivate, false)
	if err != nil {
		return nil, err
	}

	conn.MarkActedBy(side)
	if err := repos.Connections.Update(ctx, conn); err != nil {
		return nil, err
	}
	if isPrivate {
		return msg, nil
	}

	profile, err := repos.Profiles.GetByID(ctx, conn.ProfileID)
	if err != nil {
		return nil, err
	}
	org, err := repos.Organizations.GetByID(ctx, conn.OrganizationID)
	if err != nil {
		return nil, err
	}
	ev := ConnectionEvent{Connection: conn, Profile: profile, Organization: org, Actor: side}
	if err := s.notifier.MessagePosted(ctx, repos, ev, content); err != nil {
		return nil, err
	}
	return msg, nil
}

// postNote stores the note of a selection that left the connection unchanged.
func (s *connectionService) postNote(ctx context.Context, repos *repository.Repositories, conn *domain.Connection, side domain.Side, authorID int32, note string) error {
	if note == "" {
		return nil
	}
	_, err := s.post(ctx, repos, conn, side, authorID, note, false)
	return err
}

func (s *connectionService) MarkSeen(ctx context.Context, connectionID int32, side domain.Side) error {
	if _, err := domain.ParseSide(string(side)); err != nil {
		return err
	}
	return s.repos.Connections.MarkSeen(ctx, connectionID, side)
}

func (s *connectionService) GetConnection(ctx context.Context, profileID, orgID int32) (*domain.Connection, error) {
	return s.repos.Connections.GetByProfileAndOrg(ctx, profileID, orgID)
}

func (s *connectionService) GetConnectionByID(ctx context.Context, connectionID int32) (*domain.Connection, error) {
	return s.repos.Connections.GetByID(ctx, connectionID)
}

func (s *connectionService) ListForProfile(ctx context.Context, profileID int32) ([]domain.Connection, error) {
	return s.repos.Connections.ListByProfile(ctx, profileID)
}

func (s *connectionService) ListForOrganization(ctx context.Context, orgID int32) ([]domain.Connection, error) {
	return s.repos.Connections.ListByOrg(ctx, orgID)
}

func (s *connectionService) ListMessages(ctx context.Context, connectionID int32, includePrivate bool) *MessageSequence {
	return NewCappedMessageSequence(int(s.opts.MessageListLimit), func() ([]domain.ConnectionMessage, error) {
		return s.repos.Messages.ListByConnection(ctx, connectionID, includePrivate, s.opts.MessageListLimit+1)
	})
}

func (s *connectionService) CheckEligibility(ctx context.Context, connectionID int32, side domain.Side, role string) (domain.Eligibility, error) {
	conn, err := s.repos.Connections.GetByID(ctx, connectionID)
	if err != nil {
		return domain.Eligibility{}, err
	}
	after := *conn
	switch side {
	case domain.SideUser:
		userRole, err := domain.ParseUserRole(role)
		if err != nil {
			return domain.Eligibility{}, err
		}
		after.UserRole = userRole
	case domain.SideOrg:
		orgRole, err := domain.ParseOrgRole(role)
		if err != nil {
			return domain.Eligibility{}, err
		}
		after.OrgRole = orgRole
	default:
		return domain.Eligibility{}, &domain.ValidationError{Field: "side", Reason: "unknown side " + string(side)}
	}

	profile, err := s.repos.Profiles.GetByID(ctx, conn.ProfileID)
	if err != nil {
		return domain.Eligibility{}, err
	}
	org, err := s.repos.Organizations.GetByID(ctx, conn.OrganizationID)
	if err != nil {
		return domain.Eligibility{}, err
	}
	current := profile.RoleFor(org.ID)
	target := s.resultingRole(conn, &after, current, false)
	if target == current {
		return domain.Eligible(), nil
	}
	return s.checker.IsEligibleForRole(ctx, s.repos, profile, org, target)
}

func startMessage(initiator domain.Side, conn *domain.Connection, profile *domain.Profile, org *domain.Organization) string {
	switch {
	case initiator == domain.SideUser && conn.UserRequestedRole():
		return fmt.Sprintf("%s requested a role with %s.", profile.Name, org.Name)
	case initiator == domain.SideOrg && conn.OrgRole != domain.OrgRoleNoRole:
		return fmt.Sprintf("%s offered %s the %s role.", org.Name, profile.Name, conn.OrgRole.VerboseName())
	case initiator == domain.SideOrg:
		return fmt.Sprintf("%s started a connection with %s.", org.Name, profile.Name)
	}
	return fmt.Sprintf("%s started a connection with %s.", profile.Name, org.Name)
}

func roleMessage(name string, role domain.Role) string {
	switch role {
	case domain.RoleMentor:
		return fmt.Sprintf("%s promoted to Mentor.", name)
	case domain.RoleOrgAdmin:
		return fmt.Sprintf("%s promoted to Org Admin.", name)
	}
	return fmt.Sprintf("%s no longer has a role for this organization.", name)
}

func sideLabel(side domain.Side) string {
	if side == domain.SideUser {
		return "User"
	}
	return "Organization"
}

func stateLabel(side domain.Side, conn *domain.Connection) string {
	if side == domain.SideUser {
		return string(conn.UserRole)
	}
	return string(conn.OrgRole)
}

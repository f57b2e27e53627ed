package postgres

import (
	"context"
	"fmt"
	"time"

	"melange-connection-backend/internal/domain"
	"melange-connection-backend/internal/logger"
	"melange-connection-backend/internal/repository"
)

const connectionColumns = `id, profile_id, organization_id, user_role, org_role, seen_by_user, seen_by_org, created_on, last_modified`

type connectionRepository struct {
	db DBTX
}

func NewConnectionRepository(db DBTX) repository.ConnectionRepository {
	return &connectionRepository{db: db}
}

func (r *connectionRepository) Create(ctx context.Context, c *domain.Connection) error {
	query := `INSERT INTO connections (profile_id, organization_id, user_role, org_role, seen_by_user, seen_by_org, created_on, last_modified)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`
	logger.DatabaseCall("INSERT", "connections", "profileID", c.ProfileID, "orgID", c.OrganizationID)

	now := time.Now().UTC()
	c.CreatedOn = now
	c.LastModified = now
	err := r.db.QueryRowContext(ctx, query, c.ProfileID, c.OrganizationID, c.UserRole, c.OrgRole,
		c.SeenByUser, c.SeenByOrg, c.CreatedOn, c.LastModified).Scan(&c.ID)
	logger.DatabaseResult("INSERT", 1, err, "connectionID", c.ID)
	if isUniqueViolation(err, connectionUniqueConstraint) {
		return &domain.ConflictError{ProfileID: c.ProfileID, OrganizationID: c.OrganizationID}
	}
	return err
}

func (r *connectionRepository) GetByID(ctx context.Context, id int32) (*domain.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections WHERE id = $1`
	c, err := scanConnection(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "connection", id)
	}
	return c, nil
}

func (r *connectionRepository) GetForUpdate(ctx context.Context, id int32) (*domain.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections WHERE id = $1 FOR UPDATE`
	c, err := scanConnection(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "connection", id)
	}
	return c, nil
}

func (r *connectionRepository) GetByProfileAndOrg(ctx context.Context, profileID, orgID int32) (*domain.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections WHERE profile_id = $1 AND organization_id = $2`
	c, err := scanConnection(r.db.QueryRowContext(ctx, query, profileID, orgID))
	if err != nil {
		return nil, notFound(err, "connection", fmt.Sprintf("%d/%d", profileID, orgID))
	}
	return c, nil
}

func (r *connectionRepository) ListByProfile(ctx context.Context, profileID int32) ([]domain.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections WHERE profile_id = $1 ORDER BY last_modified DESC, id`
	return r.list(ctx, query, profileID)
}

func (r *connectionRepository) ListByOrg(ctx context.Context, orgID int32) ([]domain.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections WHERE organization_id = $1 ORDER BY last_modified DESC, id`
	return r.list(ctx, query, orgID)
}

func (r *connectionRepository) list(ctx context.Context, query string, arg int32) ([]domain.Connection, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conns []domain.Connection
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		conns = append(conns, *c)
	}
	return conns, rows.Err()
}

func (r *connectionRepository) Update(ctx context.Context, c *domain.Connection) error {
	query := `UPDATE connections SET user_role = $1, org_role = $2, seen_by_user = $3, seen_by_org = $4, last_modified = $5 WHERE id = $6`
	logger.DatabaseCall("UPDATE", "connections", "connectionID", c.ID)

	c.LastModified = time.Now().UTC()
	result, err := r.db.ExecContext(ctx, query, c.UserRole, c.OrgRole, c.SeenByUser, c.SeenByOrg, c.LastModified, c.ID)
	if err != nil {
		logger.DatabaseResult("UPDATE", 0, err, "connectionID", c.ID)
		return err
	}
	n, err := result.RowsAffected()
	logger.DatabaseResult("UPDATE", n, err, "connectionID", c.ID)
	if err != nil {
		return err
	}
	if n == 0 {
		return &domain.NotFoundError{Entity: "connection", ID: fmt.Sprint(c.ID)}
	}
	return nil
}

func (r *connectionRepository) MarkSeen(ctx context.Context, id int32, side domain.Side) error {
	column := "seen_by_user"
	if side == domain.SideOrg {
		column = "seen_by_org"
	}
	result, err := r.db.ExecContext(ctx, `UPDATE connections SET `+column+` = TRUE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &domain.NotFoundError{Entity: "connection", ID: fmt.Sprint(id)}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConnection(row rowScanner) (*domain.Connection, error) {
	c := &domain.Connection{}
	var userRole, orgRole string
	if err := row.Scan(&c.ID, &c.ProfileID, &c.OrganizationID, &userRole, &orgRole,
		&c.SeenByUser, &c.SeenByOrg, &c.CreatedOn, &c.LastModified); err != nil {
		return nil, err
	}
	c.UserRole = domain.UserRole(userRole)
	c.OrgRole = domain.OrgRole(orgRole)
	return c, nil
}

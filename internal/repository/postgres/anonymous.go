package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"melange-connection-backend/internal/domain"
	"melange-connection-backend/internal/logger"
	"melange-connection-backend/internal/repository"
)

type anonymousConnectionRepository struct {
	db DBTX
}

func NewAnonymousConnectionRepository(db DBTX) repository.AnonymousConnectionRepository {
	return &anonymousConnectionRepository{db: db}
}

func (r *anonymousConnectionRepository) Create(ctx context.Context, a *domain.AnonymousConnection) error {
	query := `INSERT INTO anonymous_connections (organization_id, org_role, token, email, created_by, expires_on, created_on)
	          VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	a.CreatedOn = time.Now().UTC()
	return r.db.QueryRowContext(ctx, query, a.OrganizationID, a.OrgRole, a.Token, a.Email,
		a.CreatedBy, a.ExpiresOn, a.CreatedOn).Scan(&a.ID)
}

func (r *anonymousConnectionRepository) GetByTokenForUpdate(ctx context.Context, token string) (*domain.AnonymousConnection, error) {
	a := &domain.AnonymousConnection{}
	var orgRole string
	var usedOn sql.NullTime
	var usedBy sql.NullInt32
	query := `SELECT id, organization_id, org_role, token, email, created_by, expires_on, used_on, used_by_profile_id, created_on
	          FROM anonymous_connections WHERE token = $1 FOR UPDATE`
	err := r.db.QueryRowContext(ctx, query, token).Scan(&a.ID, &a.OrganizationID, &orgRole, &a.Token, &a.Email,
		&a.CreatedBy, &a.ExpiresOn, &usedOn, &usedBy, &a.CreatedOn)
	if err != nil {
		return nil, notFound(err, "anonymous connection", token)
	}
	a.OrgRole = domain.OrgRole(orgRole)
	a.UsedOn = timePtr(usedOn)
	a.UsedByProfileID = int32Ptr(usedBy)
	return a, nil
}

func (r *anonymousConnectionRepository) MarkUsed(ctx context.Context, id, profileID int32) error {
	query := `UPDATE anonymous_connections SET used_on = $1, used_by_profile_id = $2 WHERE id = $3 AND used_on IS NULL`
	result, err := r.db.ExecContext(ctx, query, time.Now().UTC(), profileID, id)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &domain.NotFoundError{Entity: "unused anonymous connection", ID: fmt.Sprint(id)}
	}
	return nil
}

func (r *anonymousConnectionRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	query := `DELETE FROM anonymous_connections WHERE used_on IS NULL AND expires_on < $1`
	logger.DatabaseCall("DELETE", "anonymous_connections", "before", before)
	result, err := r.db.ExecContext(ctx, query, before)
	if err != nil {
		logger.DatabaseResult("DELETE", 0, err)
		return 0, err
	}
	n, err := result.RowsAffected()
	logger.DatabaseResult("DELETE", n, err)
	return n, err
}

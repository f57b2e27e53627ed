package postgres

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"melange-connection-backend/internal/domain"
	"melange-connection-backend/internal/logger"
	"melange-connection-backend/internal/repository"
)

const profileColumns = `id, name, email, status, is_student, notify_connection_updates, mentor_for, admin_for`

type profileRepository struct {
	db DBTX
}

func NewProfileRepository(db DBTX) repository.ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) GetByID(ctx context.Context, id int32) (*domain.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`
	p, err := scanProfile(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "profile", id)
	}
	return p, nil
}

func (r *profileRepository) GetForUpdate(ctx context.Context, id int32) (*domain.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1 FOR UPDATE`
	p, err := scanProfile(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "profile", id)
	}
	return p, nil
}

func (r *profileRepository) GetByEmail(ctx context.Context, email string) (*domain.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE LOWER(email) = LOWER($1)`
	p, err := scanProfile(r.db.QueryRowContext(ctx, query, email))
	if err != nil {
		return nil, notFound(err, "profile", email)
	}
	return p, nil
}

func (r *profileRepository) UpdateRoles(ctx context.Context, p *domain.Profile) error {
	query := `UPDATE profiles SET mentor_for = $1, admin_for = $2 WHERE id = $3`
	logger.DatabaseCall("UPDATE", "profiles", "profileID", p.ID, "mentorFor", p.MentorFor, "adminFor", p.AdminFor)

	result, err := r.db.ExecContext(ctx, query, pq.Array(nonNil(p.MentorFor)), pq.Array(nonNil(p.AdminFor)), p.ID)
	if err != nil {
		logger.DatabaseResult("UPDATE", 0, err, "profileID", p.ID)
		return err
	}
	n, err := result.RowsAffected()
	logger.DatabaseResult("UPDATE", n, err, "profileID", p.ID)
	if err != nil {
		return err
	}
	if n == 0 {
		return &domain.NotFoundError{Entity: "profile", ID: fmt.Sprint(p.ID)}
	}
	return nil
}

func (r *profileRepository) ListOrgAdmins(ctx context.Context, orgID int32) ([]domain.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE $1 = ANY(admin_for) AND status = 'ACTIVE' ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var admins []domain.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		admins = append(admins, *p)
	}
	return admins, rows.Err()
}

func scanProfile(row rowScanner) (*domain.Profile, error) {
	p := &domain.Profile{}
	var status string
	if err := row.Scan(&p.ID, &p.Name, &p.Email, &status, &p.IsStudent, &p.NotifyConnectionUpdates,
		pq.Array(&p.MentorFor), pq.Array(&p.AdminFor)); err != nil {
		return nil, err
	}
	p.Status = domain.ProfileStatus(status)
	return p, nil
}

// nonNil keeps empty membership sets as '{}' rather than NULL.
func nonNil(ids []int32) []int32 {
	if ids == nil {
		return []int32{}
	}
	return ids
}

package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/reservas-events/backend/internal/models"
	"github.com/reservas-events/backend/pkg/apperr"
	"github.com/reservas-events/backend/pkg/database"
)

const userColumns = `id, email, password_hash, full_name, COALESCE(phone,''), role, organization_id, created_at, updated_at`

// Repository handles user persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an auth repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.Password, &u.FullName, &u.Phone, &u.Role, &u.OrganizationID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, database.Translate(err, "user")
	}
	return &u, nil
}

// GetByID returns a user by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetByEmail returns a user by email (case-insensitive).
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
}

// List returns users ordered by name. A non-nil orgID restricts to that organization.
func (r *Repository) List(ctx context.Context, orgID *uuid.UUID) ([]models.UserPublic, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, email, full_name, COALESCE(phone,''), role, organization_id, created_at
		FROM users
		WHERE $1::uuid IS NULL OR organization_id = $1
		ORDER BY full_name, email`, orgID)
	if err != nil {
		return nil, database.Translate(err, "user")
	}
	defer rows.Close()
	list := []models.UserPublic{}
	for rows.Next() {
		var u models.UserPublic
		if err := rows.Scan(&u.ID, &u.Email, &u.FullName, &u.Phone, &u.Role, &u.OrganizationID, &u.CreatedAt); err != nil {
			return nil, database.Translate(err, "user")
		}
		list = append(list, u)
	}
	return list, database.Translate(rows.Err(), "user")
}

// Create inserts a new user and fills generated fields.
func (r *Repository) Create(ctx context.Context, u *models.User) error {
	const q = `INSERT INTO users (email, password_hash, full_name, phone, role, organization_id)
		VALUES ($1, $2, $3, NULLIF($4,''), $5, $6)
		RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, u.Email, u.Password, u.FullName, u.Phone, string(u.Role), u.OrganizationID).
		Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if database.IsUniqueViolation(err) {
		return apperr.Conflict("email already registered")
	}
	if database.IsForeignKeyViolation(err) {
		return apperr.Validation("organization not found")
	}
	return database.Translate(err, "user")
}

// UpdateProfile sets the non-nil profile fields. An empty phone clears it.
func (r *Repository) UpdateProfile(ctx context.Context, id uuid.UUID, fullName, phone *string) (*models.User, error) {
	const q = `UPDATE users SET
		full_name = COALESCE($2, full_name),
		phone = CASE WHEN $3::text IS NULL THEN phone ELSE NULLIF($3, '') END,
		updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns
	return scanUser(r.pool.QueryRow(ctx, q, id, fullName, phone))
}

// UpdateRole changes a user's role.
func (r *Repository) UpdateRole(ctx context.Context, id uuid.UUID, role models.Role) (*models.User, error) {
	const q = `UPDATE users SET role = $2, updated_at = NOW() WHERE id = $1 RETURNING ` + userColumns
	return scanUser(r.pool.QueryRow(ctx, q, id, string(role)))
}

// SetOrganization assigns a user to an organization.
func (r *Repository) SetOrganization(ctx context.Context, id, orgID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET organization_id = $2, updated_at = NOW() WHERE id = $1`, id, orgID)
	if err != nil {
		return database.Translate(err, "user")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("user not found")
	}
	return nil
}

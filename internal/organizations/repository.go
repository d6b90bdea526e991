package organizations

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/reservas-events/backend/internal/models"
	"github.com/reservas-events/backend/pkg/apperr"
	"github.com/reservas-events/backend/pkg/database"
)

const orgColumns = `id, name, slug, COALESCE(description,''), COALESCE(logo_url,''), COALESCE(cover_url,''),
	COALESCE(website,''), COALESCE(contact_email,''), COALESCE(contact_phone,''), created_at, updated_at`

// Repository handles organization persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an organizations repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanOrg(row pgx.Row) (*models.Organization, error) {
	var o models.Organization
	err := row.Scan(&o.ID, &o.Name, &o.Slug, &o.Description, &o.LogoURL, &o.CoverURL,
		&o.Website, &o.ContactEmail, &o.ContactPhone, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return &o, nil
}

func translate(err error) error {
	if database.IsUniqueViolation(err) {
		return apperr.Conflict("an organization with this slug already exists")
	}
	return database.Translate(err, "organization")
}

// Create inserts an organization and fills generated fields.
func (r *Repository) Create(ctx context.Context, o *models.Organization) error {
	const q = `INSERT INTO organizations (name, slug, description, logo_url, cover_url, website, contact_email, contact_phone)
		VALUES ($1, $2, NULLIF($3,''), NULLIF($4,''), NULLIF($5,''), NULLIF($6,''), NULLIF($7,''), NULLIF($8,''))
		RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, o.Name, o.Slug, o.Description, o.LogoURL, o.CoverURL,
		o.Website, o.ContactEmail, o.ContactPhone).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	return translate(err)
}

// GetByID returns an organization by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	return scanOrg(r.pool.QueryRow(ctx, `SELECT `+orgColumns+` FROM organizations WHERE id = $1`, id))
}

// GetBySlug returns an organization by slug.
func (r *Repository) GetBySlug(ctx context.Context, slug string) (*models.Organization, error) {
	return scanOrg(r.pool.QueryRow(ctx, `SELECT `+orgColumns+` FROM organizations WHERE slug = $1`, slug))
}

// List returns organizations ordered by name. A non-nil id restricts the result to that organization.
func (r *Repository) List(ctx context.Context, id *uuid.UUID) ([]models.Organization, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+orgColumns+` FROM organizations
		WHERE $1::uuid IS NULL OR id = $1
		ORDER BY name`, id)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()
	list := []models.Organization{}
	for rows.Next() {
		o, err := scanOrg(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *o)
	}
	return list, translate(rows.Err())
}

// Update writes all mutable columns of o.
func (r *Repository) Update(ctx context.Context, o *models.Organization) error {
	const q = `UPDATE organizations SET
		name = $2, slug = $3, description = NULLIF($4,''), logo_url = NULLIF($5,''), cover_url = NULLIF($6,''),
		website = NULLIF($7,''), contact_email = NULLIF($8,''), contact_phone = NULLIF($9,''), updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	err := r.pool.QueryRow(ctx, q, o.ID, o.Name, o.Slug, o.Description, o.LogoURL, o.CoverURL,
		o.Website, o.ContactEmail, o.ContactPhone).Scan(&o.UpdatedAt)
	return translate(err)
}

// Delete removes an organization. Users and events keep existing with a NULL organization.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM organizations WHERE id = $1`, id)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("organization not found")
	}
	return nil
}

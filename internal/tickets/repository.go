package tickets

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/reservas-events/backend/internal/models"
	"github.com/reservas-events/backend/pkg/apperr"
	"github.com/reservas-events/backend/pkg/database"
)

// TicketColumns is the select list matching ScanTicket.
const TicketColumns = `id, event_id, name, COALESCE(description,''), price_cents, currency, capacity_type,
	dedicated_capacity, shared_capacity_pool_id, sold_count, sale_start_date, sale_end_date, is_active,
	form_fields, created_at, updated_at`

// PoolColumns is the select list matching ScanPool.
const PoolColumns = `id, event_id, name, total_capacity, used_capacity, created_at, updated_at`

// Repository handles ticket and capacity pool persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a tickets repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ScanTicket scans a row selected with TicketColumns.
func ScanTicket(row pgx.Row) (*models.Ticket, error) {
	var t models.Ticket
	err := row.Scan(&t.ID, &t.EventID, &t.Name, &t.Description, &t.PriceCents, &t.Currency, &t.CapacityType,
		&t.DedicatedCapacity, &t.SharedCapacityPoolID, &t.SoldCount, &t.SaleStartDate, &t.SaleEndDate, &t.IsActive,
		&t.FormFields, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, database.Translate(err, "ticket")
	}
	return &t, nil
}

// ScanPool scans a row selected with PoolColumns.
func ScanPool(row pgx.Row) (*models.CapacityPool, error) {
	var p models.CapacityPool
	err := row.Scan(&p.ID, &p.EventID, &p.Name, &p.TotalCapacity, &p.UsedCapacity, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, database.Translate(err, "capacity pool")
	}
	return &p, nil
}

func formFieldsArg(t *models.Ticket) interface{} {
	if len(t.FormFields) == 0 {
		return nil
	}
	return string(t.FormFields)
}

// CreateTicket inserts a ticket. sold_count always starts at zero.
func (r *Repository) CreateTicket(ctx context.Context, t *models.Ticket) error {
	const q = `INSERT INTO tickets (event_id, name, description, price_cents, currency, capacity_type,
			dedicated_capacity, shared_capacity_pool_id, sale_start_date, sale_end_date, is_active, form_fields)
		VALUES ($1, $2, NULLIF($3,''), $4, $5, $6, $7, $8, $9, $10, $11, $12::jsonb)
		RETURNING id, sold_count, created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, t.EventID, t.Name, t.Description, t.PriceCents, t.Currency, string(t.CapacityType),
		t.DedicatedCapacity, t.SharedCapacityPoolID, t.SaleStartDate, t.SaleEndDate, t.IsActive, formFieldsArg(t)).
		Scan(&t.ID, &t.SoldCount, &t.CreatedAt, &t.UpdatedAt)
	return database.Translate(err, "ticket")
}

// GetTicket returns a ticket by ID.
func (r *Repository) GetTicket(ctx context.Context, id uuid.UUID) (*models.Ticket, error) {
	return ScanTicket(r.pool.QueryRow(ctx, `SELECT `+TicketColumns+` FROM tickets WHERE id = $1`, id))
}

// ListTickets returns an event's tickets, cheapest first.
func (r *Repository) ListTickets(ctx context.Context, eventID uuid.UUID) ([]models.Ticket, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+TicketColumns+` FROM tickets WHERE event_id = $1 ORDER BY price_cents, created_at`, eventID)
	if err != nil {
		return nil, database.Translate(err, "ticket")
	}
	defer rows.Close()
	list := []models.Ticket{}
	for rows.Next() {
		t, err := ScanTicket(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *t)
	}
	return list, database.Translate(rows.Err(), "ticket")
}

// UpdateTicket writes the configurable columns of t. sold_count is never written here;
// the table CHECK rejects a dedicated capacity below the current sold_count, and the
// capacity type and pool only change while the row has no sales.
func (r *Repository) UpdateTicket(ctx context.Context, t *models.Ticket) error {
	const q = `UPDATE tickets SET
			name = $2, description = NULLIF($3,''), price_cents = $4, currency = $5, capacity_type = $6,
			dedicated_capacity = $7, shared_capacity_pool_id = $8, sale_start_date = $9, sale_end_date = $10,
			is_active = $11, form_fields = $12::jsonb, updated_at = NOW()
		WHERE id = $1
			AND (sold_count = 0 OR (capacity_type = $6 AND shared_capacity_pool_id IS NOT DISTINCT FROM $8))
		RETURNING sold_count, updated_at`
	err := r.pool.QueryRow(ctx, q, t.ID, t.Name, t.Description, t.PriceCents, t.Currency, string(t.CapacityType),
		t.DedicatedCapacity, t.SharedCapacityPoolID, t.SaleStartDate, t.SaleEndDate, t.IsActive, formFieldsArg(t)).
		Scan(&t.SoldCount, &t.UpdatedAt)
	if database.IsCheckViolation(err) {
		return apperr.Conflict("dedicated capacity cannot be lower than tickets already sold")
	}
	if errors.Is(err, pgx.ErrNoRows) {
		if _, err := r.GetTicket(ctx, t.ID); err != nil {
			return err
		}
		return apperr.Conflict("cannot change capacity type or pool of a ticket that has sales")
	}
	return database.Translate(err, "ticket")
}

// DeleteTicket removes a ticket that has no sales.
func (r *Repository) DeleteTicket(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tickets WHERE id = $1 AND sold_count = 0`, id)
	if err != nil {
		return database.Translate(err, "ticket")
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetTicket(ctx, id); err != nil {
			return err
		}
		return apperr.Conflict("cannot delete a ticket that has sales")
	}
	return nil
}

// CreatePool inserts a capacity pool with zero used capacity.
func (r *Repository) CreatePool(ctx context.Context, p *models.CapacityPool) error {
	const q = `INSERT INTO capacity_pools (event_id, name, total_capacity)
		VALUES ($1, $2, $3)
		RETURNING id, used_capacity, created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, p.EventID, p.Name, p.TotalCapacity).
		Scan(&p.ID, &p.UsedCapacity, &p.CreatedAt, &p.UpdatedAt)
	return database.Translate(err, "capacity pool")
}

// GetPool returns a capacity pool by ID.
func (r *Repository) GetPool(ctx context.Context, id uuid.UUID) (*models.CapacityPool, error) {
	return ScanPool(r.pool.QueryRow(ctx, `SELECT `+PoolColumns+` FROM capacity_pools WHERE id = $1`, id))
}

// ListPools returns an event's capacity pools by name.
func (r *Repository) ListPools(ctx context.Context, eventID uuid.UUID) ([]models.CapacityPool, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+PoolColumns+` FROM capacity_pools WHERE event_id = $1 ORDER BY name`, eventID)
	if err != nil {
		return nil, database.Translate(err, "capacity pool")
	}
	defer rows.Close()
	list := []models.CapacityPool{}
	for rows.Next() {
		p, err := ScanPool(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *p)
	}
	return list, database.Translate(rows.Err(), "capacity pool")
}

// UpdatePool renames or resizes a pool. used_capacity is never written here.
func (r *Repository) UpdatePool(ctx context.Context, p *models.CapacityPool) error {
	const q = `UPDATE capacity_pools SET name = $2, total_capacity = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING used_capacity, updated_at`
	err := r.pool.QueryRow(ctx, q, p.ID, p.Name, p.TotalCapacity).Scan(&p.UsedCapacity, &p.UpdatedAt)
	if database.IsCheckViolation(err) {
		return apperr.Conflict("total capacity cannot be lower than used capacity")
	}
	return database.Translate(err, "capacity pool")
}

// DeletePool removes a pool no ticket references.
func (r *Repository) DeletePool(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM capacity_pools WHERE id = $1`, id)
	if database.IsForeignKeyViolation(err) {
		return apperr.Conflict("capacity pool is used by tickets")
	}
	if err != nil {
		return database.Translate(err, "capacity pool")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("capacity pool not found")
	}
	return nil
}

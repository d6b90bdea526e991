package purchases

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/reservas-events/backend/internal/models"
	"github.com/reservas-events/backend/internal/tickets"
	"github.com/reservas-events/backend/pkg/apperr"
	"github.com/reservas-events/backend/pkg/database"
)

const purchaseColumns = `id, event_id, ticket_id, user_id, ticket_name, quantity, unit_price_cents, total_amount_cents,
	currency, buyer_email, buyer_full_name, COALESCE(buyer_phone,''), payment_method, status,
	COALESCE(payment_intent_id,''), purchased_at, confirmed_at, created_at, updated_at`

func scanPurchase(row pgx.Row) (*models.Purchase, error) {
	var p models.Purchase
	err := row.Scan(&p.ID, &p.EventID, &p.TicketID, &p.UserID, &p.TicketName, &p.Quantity, &p.UnitPriceCents,
		&p.TotalAmountCents, &p.Currency, &p.BuyerEmail, &p.BuyerFullName, &p.BuyerPhone, &p.PaymentMethod,
		&p.Status, &p.PaymentIntentID, &p.PurchasedAt, &p.ConfirmedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, database.Translate(err, "purchase")
	}
	return &p, nil
}

// Repository is the Postgres Store. Capacity counters are only written inside InTx.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a purchases repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InTx runs fn in a read-committed transaction. Rows read through the Tx locking methods
// stay locked until fn returns, so concurrent purchases of the same ticket or pool serialize.
func (r *Repository) InTx(ctx context.Context, fn func(Tx) error) error {
	err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(&pgTx{tx: tx})
	})
	return database.Translate(err, "purchase")
}

// GetByID returns a purchase by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Purchase, error) {
	return scanPurchase(r.pool.QueryRow(ctx, `SELECT `+purchaseColumns+` FROM purchases WHERE id = $1`, id))
}

// List returns purchases matching every non-empty filter field, newest first.
func (r *Repository) List(ctx context.Context, f Filter) ([]models.Purchase, error) {
	q := `SELECT ` + purchaseColumns + ` FROM purchases
		WHERE ($1::uuid IS NULL OR event_id = $1)
		  AND ($2::uuid IS NULL OR user_id = $2)
		  AND ($3 = '' OR lower(buyer_email) = lower($3))
		ORDER BY purchased_at DESC`
	rows, err := r.pool.Query(ctx, q, f.EventID, f.UserID, f.BuyerEmail)
	if err != nil {
		return nil, database.Translate(err, "purchase")
	}
	defer rows.Close()
	list := []models.Purchase{}
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *p)
	}
	return list, database.Translate(rows.Err(), "purchase")
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) LockTicket(ctx context.Context, id uuid.UUID) (*models.Ticket, error) {
	return tickets.ScanTicket(t.tx.QueryRow(ctx, `SELECT `+tickets.TicketColumns+` FROM tickets WHERE id = $1 FOR UPDATE`, id))
}

func (t *pgTx) LockPool(ctx context.Context, id uuid.UUID) (*models.CapacityPool, error) {
	return tickets.ScanPool(t.tx.QueryRow(ctx, `SELECT `+tickets.PoolColumns+` FROM capacity_pools WHERE id = $1 FOR UPDATE`, id))
}

func (t *pgTx) LockPurchase(ctx context.Context, id uuid.UUID) (*models.Purchase, error) {
	return scanPurchase(t.tx.QueryRow(ctx, `SELECT `+purchaseColumns+` FROM purchases WHERE id = $1 FOR UPDATE`, id))
}

func (t *pgTx) InsertPurchase(ctx context.Context, p *models.Purchase) error {
	const q = `INSERT INTO purchases (event_id, ticket_id, user_id, ticket_name, quantity, unit_price_cents,
			total_amount_cents, currency, buyer_email, buyer_full_name, buyer_phone, payment_method, status,
			payment_intent_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11,''), $12, $13, NULLIF($14,''))
		RETURNING id, purchased_at, created_at, updated_at`
	err := t.tx.QueryRow(ctx, q, p.EventID, p.TicketID, p.UserID, p.TicketName, p.Quantity, p.UnitPriceCents,
		p.TotalAmountCents, p.Currency, p.BuyerEmail, p.BuyerFullName, p.BuyerPhone, string(p.PaymentMethod),
		string(p.Status), p.PaymentIntentID).Scan(&p.ID, &p.PurchasedAt, &p.CreatedAt, &p.UpdatedAt)
	return database.Translate(err, "purchase")
}

func (t *pgTx) IncrementSold(ctx context.Context, ticketID uuid.UUID, qty int) error {
	tag, err := t.tx.Exec(ctx, `UPDATE tickets SET sold_count = sold_count + $2, updated_at = NOW() WHERE id = $1`, ticketID, qty)
	if database.IsCheckViolation(err) {
		return apperr.CapacityExceeded("not enough tickets available")
	}
	if err != nil {
		return database.Translate(err, "ticket")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("ticket not found")
	}
	return nil
}

func (t *pgTx) IncrementPoolUsed(ctx context.Context, poolID uuid.UUID, qty int) error {
	tag, err := t.tx.Exec(ctx, `UPDATE capacity_pools SET used_capacity = used_capacity + $2, updated_at = NOW() WHERE id = $1`, poolID, qty)
	if database.IsCheckViolation(err) {
		return apperr.CapacityExceeded("not enough capacity available in pool")
	}
	if err != nil {
		return database.Translate(err, "capacity pool")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("capacity pool not found")
	}
	return nil
}

func (t *pgTx) UpdateStatus(ctx context.Context, p *models.Purchase) error {
	const q = `UPDATE purchases SET status = $2, payment_intent_id = NULLIF($3,''), confirmed_at = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	err := t.tx.QueryRow(ctx, q, p.ID, string(p.Status), p.PaymentIntentID, p.ConfirmedAt).Scan(&p.UpdatedAt)
	return database.Translate(err, "purchase")
}

package raffle

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/reservas-events/backend/internal/models"
	"github.com/reservas-events/backend/pkg/apperr"
	"github.com/reservas-events/backend/pkg/database"
)

const prizeColumns = `id, event_id, name, COALESCE(description,''), quantity, created_at`

const winnerColumns = `w.id, w.event_id, w.prize_id, w.attendee_id, w.won_at, p.name, a.full_name`

const winnerFrom = ` FROM raffle_winners w
	JOIN prizes p ON p.id = w.prize_id
	JOIN attendees a ON a.id = w.attendee_id`

func scanPrize(row pgx.Row) (*models.Prize, error) {
	var p models.Prize
	if err := row.Scan(&p.ID, &p.EventID, &p.Name, &p.Description, &p.Quantity, &p.CreatedAt); err != nil {
		return nil, database.Translate(err, "prize")
	}
	return &p, nil
}

func scanWinner(row pgx.Row) (*models.RaffleWinner, error) {
	var w models.RaffleWinner
	if err := row.Scan(&w.ID, &w.EventID, &w.PrizeID, &w.AttendeeID, &w.WonAt, &w.PrizeName, &w.AttendeeName); err != nil {
		return nil, database.Translate(err, "winner")
	}
	return &w, nil
}

// Repository is the Postgres Store for prizes and winners.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a raffle repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InTx runs fn in a read-committed transaction.
func (r *Repository) InTx(ctx context.Context, fn func(Tx) error) error {
	err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(&pgTx{tx: tx})
	})
	return database.Translate(err, "winner")
}

// CreatePrizes inserts prizes in one transaction, filling in their IDs.
func (r *Repository) CreatePrizes(ctx context.Context, prizes []models.Prize) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for i := range prizes {
			p := &prizes[i]
			batch.Queue(`INSERT INTO prizes (event_id, name, description, quantity)
				VALUES ($1, $2, NULLIF($3,''), $4) RETURNING id, created_at`,
				p.EventID, p.Name, p.Description, p.Quantity).QueryRow(func(row pgx.Row) error {
				return row.Scan(&p.ID, &p.CreatedAt)
			})
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return database.Translate(err, "prize")
		}
		return nil
	})
}

// GetPrize returns a prize by ID.
func (r *Repository) GetPrize(ctx context.Context, id uuid.UUID) (*models.Prize, error) {
	return scanPrize(r.pool.QueryRow(ctx, `SELECT `+prizeColumns+` FROM prizes WHERE id = $1`, id))
}

// ListPrizes returns an event's prizes in creation order.
func (r *Repository) ListPrizes(ctx context.Context, eventID uuid.UUID) ([]models.Prize, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+prizeColumns+` FROM prizes WHERE event_id = $1 ORDER BY created_at, id`, eventID)
	if err != nil {
		return nil, database.Translate(err, "prize")
	}
	defer rows.Close()
	list := []models.Prize{}
	for rows.Next() {
		p, err := scanPrize(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *p)
	}
	return list, database.Translate(rows.Err(), "prize")
}

// DeletePrize removes a prize and, by cascade, its winners.
func (r *Repository) DeletePrize(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM prizes WHERE id = $1`, id)
	if err != nil {
		return database.Translate(err, "prize")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("prize not found")
	}
	return nil
}

// GetWinner returns a winner by ID.
func (r *Repository) GetWinner(ctx context.Context, id uuid.UUID) (*models.RaffleWinner, error) {
	return scanWinner(r.pool.QueryRow(ctx, `SELECT `+winnerColumns+winnerFrom+` WHERE w.id = $1`, id))
}

// ListWinners returns an event's winners with prize and attendee names, most recent first.
func (r *Repository) ListWinners(ctx context.Context, eventID uuid.UUID) ([]models.RaffleWinner, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+winnerColumns+winnerFrom+` WHERE w.event_id = $1 ORDER BY w.won_at DESC, w.id`, eventID)
	if err != nil {
		return nil, database.Translate(err, "winner")
	}
	defer rows.Close()
	list := []models.RaffleWinner{}
	for rows.Next() {
		w, err := scanWinner(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *w)
	}
	return list, database.Translate(rows.Err(), "winner")
}

// DeleteWinner removes one winner.
func (r *Repository) DeleteWinner(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM raffle_winners WHERE id = $1`, id)
	if err != nil {
		return database.Translate(err, "winner")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("winner not found")
	}
	return nil
}

// DeleteAllWinners clears an event's winners and returns how many were removed.
func (r *Repository) DeleteAllWinners(ctx context.Context, eventID uuid.UUID) (int, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM raffle_winners WHERE event_id = $1`, eventID)
	if err != nil {
		return 0, database.Translate(err, "winner")
	}
	return int(tag.RowsAffected()), nil
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) LockPrize(ctx context.Context, id uuid.UUID) (*models.Prize, error) {
	return scanPrize(t.tx.QueryRow(ctx, `SELECT `+prizeColumns+` FROM prizes WHERE id = $1 FOR UPDATE`, id))
}

func (t *pgTx) GetAttendee(ctx context.Context, id uuid.UUID) (*models.Attendee, error) {
	var a models.Attendee
	err := t.tx.QueryRow(ctx, `SELECT id, event_id, full_name FROM attendees WHERE id = $1`, id).
		Scan(&a.ID, &a.EventID, &a.FullName)
	if err != nil {
		return nil, database.Translate(err, "attendee")
	}
	return &a, nil
}

func (t *pgTx) CountWinners(ctx context.Context, prizeID uuid.UUID) (int, error) {
	var n int
	err := t.tx.QueryRow(ctx, `SELECT COUNT(*) FROM raffle_winners WHERE prize_id = $1`, prizeID).Scan(&n)
	return n, database.Translate(err, "winner")
}

func (t *pgTx) HasWon(ctx context.Context, eventID, attendeeID uuid.UUID) (bool, error) {
	var won bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM raffle_winners WHERE event_id = $1 AND attendee_id = $2)`,
		eventID, attendeeID).Scan(&won)
	return won, database.Translate(err, "winner")
}

func (t *pgTx) InsertWinner(ctx context.Context, w *models.RaffleWinner) error {
	err := t.tx.QueryRow(ctx, `INSERT INTO raffle_winners (event_id, prize_id, attendee_id)
		VALUES ($1, $2, $3) RETURNING id, won_at`, w.EventID, w.PrizeID, w.AttendeeID).Scan(&w.ID, &w.WonAt)
	if database.IsUniqueViolation(err) {
		return apperr.Conflict("attendee already won a prize in this event")
	}
	return database.Translate(err, "winner")
}

package attendees

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/reservas-events/backend/internal/models"
	"github.com/reservas-events/backend/pkg/apperr"
	"github.com/reservas-events/backend/pkg/database"
)

const attendeeColumns = `id, event_id, full_name, email, COALESCE(phone,''), employee_number, ticket_code,
	checked_in, checked_in_at, created_at`

const insertAttendee = `INSERT INTO attendees (event_id, full_name, email, phone, employee_number, ticket_code)
	VALUES ($1, $2, $3, NULLIF($4,''), $5, $6)`

// Repository handles attendee persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an attendees repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanAttendee(row pgx.Row) (*models.Attendee, error) {
	var a models.Attendee
	err := row.Scan(&a.ID, &a.EventID, &a.FullName, &a.Email, &a.Phone, &a.EmployeeNumber, &a.TicketCode,
		&a.CheckedIn, &a.CheckedInAt, &a.CreatedAt)
	if err != nil {
		return nil, database.Translate(err, "attendee")
	}
	return &a, nil
}

func collect(rows pgx.Rows, err error) ([]models.Attendee, error) {
	if err != nil {
		return nil, database.Translate(err, "attendee")
	}
	defer rows.Close()
	list := []models.Attendee{}
	for rows.Next() {
		a, err := scanAttendee(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *a)
	}
	return list, database.Translate(rows.Err(), "attendee")
}

// Create inserts one attendee. A ticket code collision is a Conflict.
func (r *Repository) Create(ctx context.Context, a *models.Attendee) error {
	err := r.pool.QueryRow(ctx, insertAttendee+` RETURNING id, checked_in, created_at`,
		a.EventID, a.FullName, a.Email, a.Phone, a.EmployeeNumber, a.TicketCode).
		Scan(&a.ID, &a.CheckedIn, &a.CreatedAt)
	if database.IsUniqueViolation(err) {
		return apperr.Conflict("ticket code already exists")
	}
	return database.Translate(err, "attendee")
}

// BulkCreate inserts attendees in one batch, skipping ticket code collisions.
// It returns the number of rows actually inserted.
func (r *Repository) BulkCreate(ctx context.Context, list []models.Attendee) (int, error) {
	if len(list) == 0 {
		return 0, nil
	}
	batch := &pgx.Batch{}
	for _, a := range list {
		batch.Queue(insertAttendee+` ON CONFLICT (ticket_code) DO NOTHING`,
			a.EventID, a.FullName, a.Email, a.Phone, a.EmployeeNumber, a.TicketCode)
	}
	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()
	inserted := 0
	for range list {
		tag, err := br.Exec()
		if err != nil {
			return inserted, database.Translate(err, "attendee")
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

// GetByID returns an attendee by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Attendee, error) {
	return scanAttendee(r.pool.QueryRow(ctx, `SELECT `+attendeeColumns+` FROM attendees WHERE id = $1`, id))
}

// GetByTicketCode returns the attendee holding code.
func (r *Repository) GetByTicketCode(ctx context.Context, code string) (*models.Attendee, error) {
	return scanAttendee(r.pool.QueryRow(ctx, `SELECT `+attendeeColumns+` FROM attendees WHERE ticket_code = $1`, code))
}

// ListByEvent returns an event's attendees, newest first.
func (r *Repository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.Attendee, error) {
	return collect(r.pool.Query(ctx, `SELECT `+attendeeColumns+` FROM attendees WHERE event_id = $1
		ORDER BY created_at DESC, seq DESC`, eventID))
}

// ListByEventOldestFirst returns an event's attendees in creation order. Rows created in the
// same instant keep their insertion order.
func (r *Repository) ListByEventOldestFirst(ctx context.Context, eventID uuid.UUID) ([]models.Attendee, error) {
	return collect(r.pool.Query(ctx, `SELECT `+attendeeColumns+` FROM attendees WHERE event_id = $1
		ORDER BY created_at ASC, seq ASC`, eventID))
}

// DeleteByIDs removes the given attendees of an event and returns how many were deleted.
func (r *Repository) DeleteByIDs(ctx context.Context, eventID uuid.UUID, ids []uuid.UUID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM attendees WHERE event_id = $1 AND id = ANY($2)`, eventID, ids)
	if err != nil {
		return 0, database.Translate(err, "attendee")
	}
	return int(tag.RowsAffected()), nil
}

// CheckIn marks an attendee present. Checking in twice keeps the first timestamp.
func (r *Repository) CheckIn(ctx context.Context, id uuid.UUID, at time.Time) (*models.Attendee, error) {
	const q = `UPDATE attendees SET checked_in = TRUE, checked_in_at = COALESCE(checked_in_at, $2)
		WHERE id = $1
		RETURNING ` + attendeeColumns
	return scanAttendee(r.pool.QueryRow(ctx, q, id, at))
}

// ToggleCheckIn flips checked_in in one statement, setting or clearing checked_in_at with it.
func (r *Repository) ToggleCheckIn(ctx context.Context, id uuid.UUID, at time.Time) (*models.Attendee, error) {
	const q = `UPDATE attendees SET
			checked_in = NOT checked_in,
			checked_in_at = CASE WHEN checked_in THEN NULL ELSE $2::timestamptz END
		WHERE id = $1
		RETURNING ` + attendeeColumns
	return scanAttendee(r.pool.QueryRow(ctx, q, id, at))
}

// CheckInAll checks in every attendee of an event that is not yet checked in, all with the same timestamp.
func (r *Repository) CheckInAll(ctx context.Context, eventID uuid.UUID, at time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE attendees SET checked_in = TRUE, checked_in_at = $2
		WHERE event_id = $1 AND NOT checked_in`, eventID, at)
	if err != nil {
		return 0, database.Translate(err, "attendee")
	}
	return int(tag.RowsAffected()), nil
}

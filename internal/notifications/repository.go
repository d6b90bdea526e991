package notifications

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/reservas-events/backend/internal/models"
	"github.com/reservas-events/backend/pkg/database"
)

// Repository handles messages and email_logs persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a notifications repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateMessage stores a sent message.
func (r *Repository) CreateMessage(ctx context.Context, m *models.Message) error {
	const q = `INSERT INTO messages (event_id, subject, content, sent_by, recipient_count)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`
	err := r.pool.QueryRow(ctx, q, m.EventID, m.Subject, m.Content, m.SentBy, m.RecipientCount).Scan(&m.ID, &m.CreatedAt)
	return database.Translate(err, "message")
}

// ListMessages returns an event's messages, newest first.
func (r *Repository) ListMessages(ctx context.Context, eventID uuid.UUID) ([]models.Message, error) {
	const q = `SELECT id, event_id, subject, content, sent_by, recipient_count, created_at
		FROM messages
		WHERE event_id = $1
		ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, eventID)
	if err != nil {
		return nil, database.Translate(err, "message")
	}
	defer rows.Close()
	list := []models.Message{}
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.EventID, &m.Subject, &m.Content, &m.SentBy, &m.RecipientCount, &m.CreatedAt); err != nil {
			return nil, database.Translate(err, "message")
		}
		list = append(list, m)
	}
	return list, database.Translate(rows.Err(), "message")
}

// CreateEmailLog records a delivery outcome.
func (r *Repository) CreateEmailLog(ctx context.Context, l *models.EmailLog) error {
	const q = `INSERT INTO email_logs (event_id, attendee_id, purchase_id, email_type, recipient_email, subject,
			status, sent_at, error_message)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6,''), $7, $8, NULLIF($9,''))
		RETURNING id, created_at`
	err := r.pool.QueryRow(ctx, q, l.EventID, l.AttendeeID, l.PurchaseID, l.EmailType, l.RecipientEmail, l.Subject,
		l.Status, l.SentAt, l.ErrorMessage).Scan(&l.ID, &l.CreatedAt)
	return database.Translate(err, "email log")
}

// ListEmailLogs returns email logs for an event, newest first.
func (r *Repository) ListEmailLogs(ctx context.Context, eventID uuid.UUID) ([]models.EmailLog, error) {
	const q = `SELECT id, event_id, attendee_id, purchase_id, email_type, recipient_email, COALESCE(subject,''),
			status, sent_at, COALESCE(error_message,''), created_at
		FROM email_logs
		WHERE event_id = $1
		ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, eventID)
	if err != nil {
		return nil, database.Translate(err, "email log")
	}
	defer rows.Close()
	list := []models.EmailLog{}
	for rows.Next() {
		var l models.EmailLog
		if err := rows.Scan(&l.ID, &l.EventID, &l.AttendeeID, &l.PurchaseID, &l.EmailType, &l.RecipientEmail,
			&l.Subject, &l.Status, &l.SentAt, &l.ErrorMessage, &l.CreatedAt); err != nil {
			return nil, database.Translate(err, "email log")
		}
		list = append(list, l)
	}
	return list, database.Translate(rows.Err(), "email log")
}

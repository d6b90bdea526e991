package events

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/reservas-events/backend/internal/models"
	"github.com/reservas-events/backend/pkg/apperr"
	"github.com/reservas-events/backend/pkg/database"
)

const eventColumns = `e.id, e.name, COALESCE(e.description,''), e.date, e.time, e.venue_name, e.location,
	COALESCE(e.image_url,''), COALESCE(e.organizer_logo_url,''), COALESCE(e.venue_plan_url,''),
	COALESCE(e.employee_number_label,''), COALESCE(e.success_sound_id,''), COALESCE(e.error_sound_id,''),
	e.vibration_enabled, COALESCE(e.vibration_intensity,''),
	COALESCE(e.primary_color,''), COALESCE(e.secondary_color,''), COALESCE(e.accent_color,''),
	e.created_by, e.organization_id, e.created_at, e.updated_at`

// Repository handles event persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an event repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func eventDest(e *models.Event) []interface{} {
	return []interface{}{
		&e.ID, &e.Name, &e.Description, &e.Date, &e.Time, &e.VenueName, &e.Location,
		&e.ImageURL, &e.OrganizerLogoURL, &e.VenuePlanURL,
		&e.EmployeeNumberLabel, &e.SuccessSoundID, &e.ErrorSoundID,
		&e.VibrationEnabled, &e.VibrationIntensity,
		&e.PrimaryColor, &e.SecondaryColor, &e.AccentColor,
		&e.CreatedBy, &e.OrganizationID, &e.CreatedAt, &e.UpdatedAt,
	}
}

func eventArgs(e *models.Event) []interface{} {
	return []interface{}{
		e.Name, e.Description, e.Date, e.Time, e.VenueName, e.Location,
		e.ImageURL, e.OrganizerLogoURL, e.VenuePlanURL,
		e.EmployeeNumberLabel, e.SuccessSoundID, e.ErrorSoundID,
		e.VibrationEnabled, e.VibrationIntensity,
		e.PrimaryColor, e.SecondaryColor, e.AccentColor,
	}
}

// Create inserts a new event.
func (r *Repository) Create(ctx context.Context, e *models.Event) error {
	const q = `INSERT INTO events (name, description, date, time, venue_name, location,
			image_url, organizer_logo_url, venue_plan_url,
			employee_number_label, success_sound_id, error_sound_id,
			vibration_enabled, vibration_intensity,
			primary_color, secondary_color, accent_color,
			created_by, organization_id)
		VALUES ($1, NULLIF($2,''), $3, $4, $5, $6,
			NULLIF($7,''), NULLIF($8,''), NULLIF($9,''),
			NULLIF($10,''), NULLIF($11,''), NULLIF($12,''),
			$13, NULLIF($14,''),
			NULLIF($15,''), NULLIF($16,''), NULLIF($17,''),
			$18, $19)
		RETURNING id, created_at, updated_at`
	args := append(eventArgs(e), e.CreatedBy, e.OrganizationID)
	err := r.pool.QueryRow(ctx, q, args...).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if database.IsForeignKeyViolation(err) {
		return apperr.Validation("organization not found")
	}
	return database.Translate(err, "event")
}

// GetByID returns an event by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	var e models.Event
	err := r.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events e WHERE e.id = $1`, id).Scan(eventDest(&e)...)
	if err != nil {
		return nil, database.Translate(err, "event")
	}
	return &e, nil
}

// ListFilter selects the events visible to a caller.
type ListFilter struct {
	All            bool
	OrganizationID *uuid.UUID
	CreatedBy      uuid.UUID
}

// List returns events with attendee counts, soonest date first.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]models.EventSummary, error) {
	q := `SELECT ` + eventColumns + `,
			(SELECT COUNT(*) FROM attendees a WHERE a.event_id = e.id),
			(SELECT COUNT(*) FROM attendees a WHERE a.event_id = e.id AND a.checked_in)
		FROM events e
		WHERE $1 OR ($2::uuid IS NOT NULL AND e.organization_id = $2) OR e.created_by = $3
		ORDER BY e.date ASC, e.created_at ASC`
	rows, err := r.pool.Query(ctx, q, f.All, f.OrganizationID, f.CreatedBy)
	if err != nil {
		return nil, database.Translate(err, "event")
	}
	defer rows.Close()

	list := []models.EventSummary{}
	for rows.Next() {
		var s models.EventSummary
		dest := append(eventDest(&s.Event), &s.AttendeeCount, &s.CheckedInCount)
		if err := rows.Scan(dest...); err != nil {
			return nil, database.Translate(err, "event")
		}
		list = append(list, s)
	}
	return list, database.Translate(rows.Err(), "event")
}

// Update writes all mutable columns of e.
func (r *Repository) Update(ctx context.Context, e *models.Event) error {
	const q = `UPDATE events SET
			name = $1, description = NULLIF($2,''), date = $3, time = $4, venue_name = $5, location = $6,
			image_url = NULLIF($7,''), organizer_logo_url = NULLIF($8,''), venue_plan_url = NULLIF($9,''),
			employee_number_label = NULLIF($10,''), success_sound_id = NULLIF($11,''), error_sound_id = NULLIF($12,''),
			vibration_enabled = $13, vibration_intensity = NULLIF($14,''),
			primary_color = NULLIF($15,''), secondary_color = NULLIF($16,''), accent_color = NULLIF($17,''),
			updated_at = NOW()
		WHERE id = $18
		RETURNING updated_at`
	args := append(eventArgs(e), e.ID)
	return database.Translate(r.pool.QueryRow(ctx, q, args...).Scan(&e.UpdatedAt), "event")
}

// Delete removes an event. Attendees, tickets, pools, purchases, prizes, winners and messages cascade.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return database.Translate(err, "event")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("event not found")
	}
	return nil
}

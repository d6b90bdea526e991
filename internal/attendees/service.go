// Package attendees is the attendee registry: ticket codes, bulk import,
// deduplication and check-in state for an event.
package attendees

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/reservas-events/backend/internal/authz"
	"github.com/reservas-events/backend/internal/models"
	"github.com/reservas-events/backend/internal/realtime"
	"github.com/reservas-events/backend/pkg/apperr"
	"github.com/reservas-events/backend/pkg/storage"
	"github.com/reservas-events/backend/pkg/utils"
)

// MaxBulk is the largest accepted bulk import.
const MaxBulk = 5000

// QRSize is the edge length in pixels of ticket QR codes.
const QRSize = 256

// Store persists attendees.
type Store interface {
	Create(ctx context.Context, a *models.Attendee) error
	BulkCreate(ctx context.Context, list []models.Attendee) (int, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Attendee, error)
	GetByTicketCode(ctx context.Context, code string) (*models.Attendee, error)
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.Attendee, error)
	ListByEventOldestFirst(ctx context.Context, eventID uuid.UUID) ([]models.Attendee, error)
	DeleteByIDs(ctx context.Context, eventID uuid.UUID, ids []uuid.UUID) (int, error)
	CheckIn(ctx context.Context, id uuid.UUID, at time.Time) (*models.Attendee, error)
	ToggleCheckIn(ctx context.Context, id uuid.UUID, at time.Time) (*models.Attendee, error)
	CheckInAll(ctx context.Context, eventID uuid.UUID, at time.Time) (int, error)
}

// Notifier pushes live updates to an event's subscribers.
type Notifier interface {
	Publish(eventID uuid.UUID, event string, payload interface{})
}

// ExportStore receives CSV exports.
type ExportStore interface {
	Upload(ctx context.Context, bucket, key, contentType string, body io.Reader) (string, error)
	GeneratePresignedDownloadURL(ctx context.Context, bucket, key string, expires time.Duration) (string, error)
	ExportsBucket() string
	PresignExpire() time.Duration
}

// Service manages attendees.
type Service struct {
	store    Store
	events   authz.EventFinder
	gate     *authz.Gate
	notifier Notifier
	exports  ExportStore
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates an attendees service. notifier and exports may be nil.
func NewService(store Store, events authz.EventFinder, notifier Notifier, exports ExportStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:    store,
		events:   events,
		gate:     authz.NewGate(events),
		notifier: notifier,
		exports:  exports,
		logger:   logger,
		now:      time.Now,
	}
}

// Input describes one attendee to add.
type Input struct {
	FullName       string
	Email          string
	Phone          string
	EmployeeNumber string
}

func (in *Input) normalize() error {
	in.FullName = strings.TrimSpace(in.FullName)
	if in.FullName == "" {
		return errors.New("full name required")
	}
	in.Email = strings.TrimSpace(in.Email)
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return errors.New("invalid email")
	}
	in.Phone = strings.TrimSpace(in.Phone)
	in.EmployeeNumber = strings.TrimSpace(in.EmployeeNumber)
	return nil
}

// TicketCode returns a new admission code: {eventId}-{unixMillis}-{random}, uppercased.
func TicketCode(eventID uuid.UUID, at time.Time) (string, error) {
	suffix, err := utils.RandomBase36(9)
	if err != nil {
		return "", err
	}
	return strings.ToUpper(fmt.Sprintf("%s-%d-%s", eventID, at.UnixMilli(), suffix)), nil
}

// DedupKey is the identity used by RemoveDuplicates.
func DedupKey(a models.Attendee) string {
	return strings.ToLower(a.Email) + "-" + strings.ToLower(a.EmployeeNumber)
}

// DuplicateIDs returns the IDs to delete so that each DedupKey keeps only its first occurrence.
// list must be ordered oldest first.
func DuplicateIDs(list []models.Attendee) []uuid.UUID {
	seen := make(map[string]struct{}, len(list))
	var dups []uuid.UUID
	for _, a := range list {
		k := DedupKey(a)
		if _, ok := seen[k]; ok {
			dups = append(dups, a.ID)
			continue
		}
		seen[k] = struct{}{}
	}
	return dups
}

func (s *Service) build(eventID uuid.UUID, in Input) (models.Attendee, error) {
	code, err := TicketCode(eventID, s.now())
	if err != nil {
		return models.Attendee{}, apperr.Internal(err, "failed to generate ticket code")
	}
	return models.Attendee{
		EventID:        eventID,
		FullName:       in.FullName,
		Email:          in.Email,
		Phone:          in.Phone,
		EmployeeNumber: in.EmployeeNumber,
		TicketCode:     code,
	}, nil
}

// Add registers one attendee and issues their ticket code.
func (s *Service) Add(ctx context.Context, p authz.Principal, eventID uuid.UUID, in Input) (*models.Attendee, error) {
	if _, err := s.gate.Authorize(ctx, p, eventID, authz.ActionManageAttendees); err != nil {
		return nil, err
	}
	if err := in.normalize(); err != nil {
		return nil, apperr.Validation("%s", err)
	}
	a, err := s.build(eventID, in)
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// AddMany bulk-imports attendees. Ticket code collisions are skipped, so the
// returned count is the number actually inserted.
func (s *Service) AddMany(ctx context.Context, p authz.Principal, eventID uuid.UUID, inputs []Input) (int, error) {
	if _, err := s.gate.Authorize(ctx, p, eventID, authz.ActionManageAttendees); err != nil {
		return 0, err
	}
	if len(inputs) == 0 {
		return 0, apperr.Validation("attendees required")
	}
	if len(inputs) > MaxBulk {
		return 0, apperr.Validation("too many attendees, max %d", MaxBulk)
	}
	list := make([]models.Attendee, 0, len(inputs))
	for i := range inputs {
		if err := inputs[i].normalize(); err != nil {
			return 0, apperr.Validation("attendee %d: %v", i, err)
		}
		a, err := s.build(eventID, inputs[i])
		if err != nil {
			return 0, err
		}
		list = append(list, a)
	}
	n, err := s.store.BulkCreate(ctx, list)
	if err != nil {
		return 0, err
	}
	if n < len(list) {
		s.logger.Info("bulk import skipped colliding ticket codes",
			zap.String("event_id", eventID.String()), zap.Int("requested", len(list)), zap.Int("inserted", n))
	}
	return n, nil
}

// List returns an event's attendees, newest first.
func (s *Service) List(ctx context.Context, p authz.Principal, eventID uuid.UUID) ([]models.Attendee, error) {
	if _, err := s.gate.Authorize(ctx, p, eventID, authz.ActionView); err != nil {
		return nil, err
	}
	return s.store.ListByEvent(ctx, eventID)
}

// RemoveDuplicates deletes every attendee whose email and employee number (case-insensitive)
// match an earlier-created attendee of the same event. Returns the number removed.
func (s *Service) RemoveDuplicates(ctx context.Context, p authz.Principal, eventID uuid.UUID) (int, error) {
	if _, err := s.gate.Authorize(ctx, p, eventID, authz.ActionManageAttendees); err != nil {
		return 0, err
	}
	list, err := s.store.ListByEventOldestFirst(ctx, eventID)
	if err != nil {
		return 0, err
	}
	dups := DuplicateIDs(list)
	if len(dups) == 0 {
		return 0, nil
	}
	n, err := s.store.DeleteByIDs(ctx, eventID, dups)
	if err != nil {
		return 0, err
	}
	s.logger.Info("duplicate attendees removed", zap.String("event_id", eventID.String()), zap.Int("count", n))
	return n, nil
}

func (s *Service) authorizeAttendee(ctx context.Context, p authz.Principal, id uuid.UUID) (*models.Attendee, error) {
	a, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.gate.Authorize(ctx, p, a.EventID, authz.ActionCheckIn); err != nil {
		return nil, err
	}
	return a, nil
}

// CheckIn marks an attendee present. Repeated check-ins keep the original timestamp.
func (s *Service) CheckIn(ctx context.Context, p authz.Principal, id uuid.UUID) (*models.Attendee, error) {
	if _, err := s.authorizeAttendee(ctx, p, id); err != nil {
		return nil, err
	}
	a, err := s.store.CheckIn(ctx, id, s.now().UTC())
	if err != nil {
		return nil, err
	}
	s.publish(a.EventID, realtime.EventCheckIn, a)
	return a, nil
}

// ToggleCheckIn flips an attendee's check-in state.
func (s *Service) ToggleCheckIn(ctx context.Context, p authz.Principal, id uuid.UUID) (*models.Attendee, error) {
	if _, err := s.authorizeAttendee(ctx, p, id); err != nil {
		return nil, err
	}
	a, err := s.store.ToggleCheckIn(ctx, id, s.now().UTC())
	if err != nil {
		return nil, err
	}
	event := realtime.EventCheckOut
	if a.CheckedIn {
		event = realtime.EventCheckIn
	}
	s.publish(a.EventID, event, a)
	return a, nil
}

// CheckInAllResult reports a bulk check-in.
type CheckInAllResult struct {
	Count       int              `json:"count"`
	CheckedInAt models.Timestamp `json:"checked_in_at"`
}

// CheckInAll checks in every attendee of the event not yet checked in, with one shared timestamp.
func (s *Service) CheckInAll(ctx context.Context, p authz.Principal, eventID uuid.UUID) (*CheckInAllResult, error) {
	if _, err := s.gate.Authorize(ctx, p, eventID, authz.ActionCheckIn); err != nil {
		return nil, err
	}
	at := models.NewTimestamp(s.now())
	n, err := s.store.CheckInAll(ctx, eventID, at.Time)
	if err != nil {
		return nil, err
	}
	res := &CheckInAllResult{Count: n, CheckedInAt: at}
	if n > 0 {
		s.publish(eventID, realtime.EventCheckInAll, res)
	}
	return res, nil
}

// GetByTicketCode is the public lookup used by scanners and self-service ticket pages.
func (s *Service) GetByTicketCode(ctx context.Context, code string) (*models.AttendeeWithEvent, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, apperr.Validation("ticket code required")
	}
	a, err := s.store.GetByTicketCode(ctx, code)
	if err != nil {
		return nil, err
	}
	e, err := s.events.GetByID(ctx, a.EventID)
	if err != nil {
		return nil, err
	}
	return &models.AttendeeWithEvent{Attendee: *a, Event: *e}, nil
}

// TicketQR renders the QR code PNG for a known ticket code.
func (s *Service) TicketQR(ctx context.Context, code string) ([]byte, error) {
	a, err := s.store.GetByTicketCode(ctx, strings.TrimSpace(code))
	if err != nil {
		return nil, err
	}
	png, err := qrcode.Encode(a.TicketCode, qrcode.Medium, QRSize)
	if err != nil {
		return nil, apperr.Internal(err, "failed to render QR code")
	}
	return png, nil
}

// Export is a finished attendee export.
type Export struct {
	Key         string `json:"key"`
	DownloadURL string `json:"download_url"`
	Count       int    `json:"count"`
	ExpiresIn   int    `json:"expires_in"`
}

var exportHeader = []string{"ticket_code", "full_name", "email", "phone", "employee_number", "checked_in", "checked_in_at", "created_at"}

// WriteCSV writes attendees as CSV with a header row.
func WriteCSV(w io.Writer, list []models.Attendee) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for _, a := range list {
		checkedInAt := ""
		if a.CheckedInAt != nil {
			checkedInAt = a.CheckedInAt.String()
		}
		row := []string{a.TicketCode, a.FullName, a.Email, a.Phone, a.EmployeeNumber,
			strconv.FormatBool(a.CheckedIn), checkedInAt, a.CreatedAt.String()}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Export uploads the event's attendee list as CSV and returns a presigned download link.
func (s *Service) Export(ctx context.Context, p authz.Principal, eventID uuid.UUID) (*Export, error) {
	if _, err := s.gate.Authorize(ctx, p, eventID, authz.ActionViewReports); err != nil {
		return nil, err
	}
	if s.exports == nil {
		return nil, apperr.Internal(errors.New("object storage not configured"), "exports are unavailable")
	}
	list, err := s.store.ListByEventOldestFirst(ctx, eventID)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := WriteCSV(&buf, list); err != nil {
		return nil, apperr.Internal(err, "failed to build export")
	}
	bucket := s.exports.ExportsBucket()
	key := storage.ExportKey(eventID.String(), s.now())
	if _, err := s.exports.Upload(ctx, bucket, key, "text/csv", &buf); err != nil {
		return nil, apperr.Internal(err, "failed to upload export")
	}
	expires := s.exports.PresignExpire()
	url, err := s.exports.GeneratePresignedDownloadURL(ctx, bucket, key, expires)
	if err != nil {
		return nil, apperr.Internal(err, "failed to sign export link")
	}
	return &Export{Key: key, DownloadURL: url, Count: len(list), ExpiresIn: int(expires.Seconds())}, nil
}

func (s *Service) publish(eventID uuid.UUID, event string, payload interface{}) {
	if s.notifier == nil {
		return
	}
	s.notifier.Publish(eventID, event, payload)
}

// Package notifications sends organizer messages to attendees and delivers
// queued emails, recording every delivery outcome.
package notifications

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reservas-events/backend/internal/authz"
	"github.com/reservas-events/backend/internal/models"
	"github.com/reservas-events/backend/pkg/apperr"
	"github.com/reservas-events/backend/pkg/queue"
)

// MaxSubjectLength matches the messages.subject column.
const MaxSubjectLength = 255

// Store persists messages and delivery logs.
type Store interface {
	CreateMessage(ctx context.Context, m *models.Message) error
	ListMessages(ctx context.Context, eventID uuid.UUID) ([]models.Message, error)
	CreateEmailLog(ctx context.Context, l *models.EmailLog) error
	ListEmailLogs(ctx context.Context, eventID uuid.UUID) ([]models.EmailLog, error)
}

// AttendeeLister lists the recipients of an event message.
type AttendeeLister interface {
	ListByEventOldestFirst(ctx context.Context, eventID uuid.UUID) ([]models.Attendee, error)
}

// EmailEnqueuer queues email jobs in bulk.
type EmailEnqueuer interface {
	EnqueueEmails(ctx context.Context, payloads []queue.EmailPayload) error
}

// Service sends event messages.
type Service struct {
	store     Store
	gate      *authz.Gate
	attendees AttendeeLister
	emails    EmailEnqueuer
	logger    *zap.Logger
}

// NewService creates a notifications service.
func NewService(store Store, gate *authz.Gate, attendees AttendeeLister, emails EmailEnqueuer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, gate: gate, attendees: attendees, emails: emails, logger: logger}
}

// Send stores a message and queues one email per attendee of the event.
func (s *Service) Send(ctx context.Context, p authz.Principal, eventID uuid.UUID, subject, content string) (*models.Message, error) {
	if _, err := s.gate.Authorize(ctx, p, eventID, authz.ActionSendMessages); err != nil {
		return nil, err
	}
	subject = strings.TrimSpace(subject)
	if subject == "" || len(subject) > MaxSubjectLength {
		return nil, apperr.Validation("subject must be between 1 and %d characters", MaxSubjectLength)
	}
	content = Sanitize(content)
	if content == "" {
		return nil, apperr.Validation("content required")
	}

	recipients, err := s.attendees.ListByEventOldestFirst(ctx, eventID)
	if err != nil {
		return nil, err
	}
	sender := p.UserID
	m := &models.Message{EventID: eventID, Subject: subject, Content: content, SentBy: &sender, RecipientCount: len(recipients)}
	if err := s.store.CreateMessage(ctx, m); err != nil {
		return nil, err
	}

	payloads := make([]queue.EmailPayload, 0, len(recipients))
	for _, a := range recipients {
		attendeeID := a.ID
		payloads = append(payloads, queue.EmailPayload{
			EmailType:      queue.EmailTypeEventMessage,
			EventID:        eventID,
			AttendeeID:     &attendeeID,
			RecipientEmail: a.Email,
			Subject:        subject,
			BodyHTML:       content,
		})
	}
	if err := s.emails.EnqueueEmails(ctx, payloads); err != nil {
		return nil, apperr.Internal(err, "failed to queue message emails")
	}
	s.logger.Info("event message queued",
		zap.String("event_id", eventID.String()), zap.String("message_id", m.ID.String()), zap.Int("recipients", len(payloads)))
	return m, nil
}

// List returns an event's messages.
func (s *Service) List(ctx context.Context, p authz.Principal, eventID uuid.UUID) ([]models.Message, error) {
	if _, err := s.gate.Authorize(ctx, p, eventID, authz.ActionView); err != nil {
		return nil, err
	}
	return s.store.ListMessages(ctx, eventID)
}

// EmailLogs returns the delivery log of an event.
func (s *Service) EmailLogs(ctx context.Context, p authz.Principal, eventID uuid.UUID) ([]models.EmailLog, error) {
	if _, err := s.gate.Authorize(ctx, p, eventID, authz.ActionViewReports); err != nil {
		return nil, err
	}
	return s.store.ListEmailLogs(ctx, eventID)
}

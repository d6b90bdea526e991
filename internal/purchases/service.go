// Package purchases is the capacity accounting engine. A purchase is accepted only
// when its ticket (and the ticket's shared pool) can absorb the quantity, and the
// purchase row and counter increments commit together.
package purchases

import (
	"context"
	"fmt"
	"html"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reservas-events/backend/internal/authz"
	"github.com/reservas-events/backend/internal/models"
	"github.com/reservas-events/backend/pkg/apperr"
	"github.com/reservas-events/backend/pkg/broker"
	"github.com/reservas-events/backend/pkg/queue"
)

// Tx is the transactional view used by the engine. Lock* methods hold the row until commit.
type Tx interface {
	LockTicket(ctx context.Context, id uuid.UUID) (*models.Ticket, error)
	LockPool(ctx context.Context, id uuid.UUID) (*models.CapacityPool, error)
	LockPurchase(ctx context.Context, id uuid.UUID) (*models.Purchase, error)
	InsertPurchase(ctx context.Context, p *models.Purchase) error
	IncrementSold(ctx context.Context, ticketID uuid.UUID, qty int) error
	IncrementPoolUsed(ctx context.Context, poolID uuid.UUID, qty int) error
	UpdateStatus(ctx context.Context, p *models.Purchase) error
}

// Store persists purchases. InTx commits when fn returns nil and rolls back otherwise.
type Store interface {
	InTx(ctx context.Context, fn func(Tx) error) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Purchase, error)
	List(ctx context.Context, f Filter) ([]models.Purchase, error)
}

// Filter narrows List. Zero fields match everything.
type Filter struct {
	EventID    *uuid.UUID
	UserID     *uuid.UUID
	BuyerEmail string
}

// EmailEnqueuer queues transactional emails.
type EmailEnqueuer interface {
	EnqueueEmail(ctx context.Context, payload queue.EmailPayload) error
}

// Service is the capacity accounting engine.
type Service struct {
	store     Store
	gate      *authz.Gate
	publisher broker.Publisher
	emails    EmailEnqueuer
	logger    *zap.Logger
	now       func() time.Time
}

// NewService creates a purchases service. publisher and emails may be nil.
func NewService(store Store, gate *authz.Gate, publisher broker.Publisher, emails EmailEnqueuer, logger *zap.Logger) *Service {
	if publisher == nil {
		publisher = broker.Noop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, gate: gate, publisher: publisher, emails: emails, logger: logger, now: time.Now}
}

// CreateInput is a purchase request. Prices always come from the ticket.
type CreateInput struct {
	TicketID        uuid.UUID
	Quantity        int
	BuyerEmail      string
	BuyerFullName   string
	BuyerPhone      string
	PaymentMethod   models.PaymentMethod
	PaymentIntentID string
}

func (in *CreateInput) validate() error {
	if in.Quantity <= 0 {
		return apperr.Validation("quantity must be greater than zero")
	}
	in.BuyerEmail = strings.ToLower(strings.TrimSpace(in.BuyerEmail))
	if _, err := mail.ParseAddress(in.BuyerEmail); err != nil {
		return apperr.Validation("invalid buyer email")
	}
	in.BuyerFullName = strings.TrimSpace(in.BuyerFullName)
	if in.BuyerFullName == "" {
		return apperr.Validation("buyer full name required")
	}
	switch in.PaymentMethod {
	case models.PaymentMethodStripe, models.PaymentMethodTransfer:
	default:
		return apperr.Validation("payment_method must be stripe or transfer")
	}
	return nil
}

// InitialStatus is the status a new purchase starts in.
func InitialStatus(m models.PaymentMethod) models.PurchaseStatus {
	if m == models.PaymentMethodTransfer {
		return models.PurchaseStatusAwaitingTransferConfirmation
	}
	return models.PurchaseStatusPending
}

// CheckCapacity reports whether qty more units fit. pool must be the ticket's pool for shared tickets.
func CheckCapacity(t *models.Ticket, pool *models.CapacityPool, qty int) error {
	switch t.CapacityType {
	case models.CapacityUnlimited:
		return nil
	case models.CapacityDedicated:
		if t.DedicatedCapacity == nil || t.SoldCount+qty > *t.DedicatedCapacity {
			return apperr.CapacityExceeded("not enough tickets available")
		}
		return nil
	case models.CapacityShared:
		if pool == nil || pool.UsedCapacity+qty > pool.TotalCapacity {
			return apperr.CapacityExceeded("not enough capacity available in pool")
		}
		return nil
	}
	return apperr.Internal(fmt.Errorf("unknown capacity type %q", t.CapacityType), "invalid ticket configuration")
}

// Create records a purchase and reserves its capacity. Inventory is checked and incremented
// under row locks on the ticket and then its pool; any failure leaves the counters untouched.
func (s *Service) Create(ctx context.Context, p authz.Principal, in CreateInput) (*models.Purchase, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var out *models.Purchase
	err := s.store.InTx(ctx, func(tx Tx) error {
		t, err := tx.LockTicket(ctx, in.TicketID)
		if err != nil {
			return err
		}
		now := s.now()
		if !t.IsActive {
			return apperr.Validation("ticket is not on sale")
		}
		if now.Before(t.SaleStartDate.Time) || now.After(t.SaleEndDate.Time) {
			return apperr.Validation("ticket is outside its sale window")
		}
		var pool *models.CapacityPool
		if t.CapacityType == models.CapacityShared {
			if t.SharedCapacityPoolID == nil {
				return apperr.Internal(fmt.Errorf("shared ticket %s has no pool", t.ID), "invalid ticket configuration")
			}
			if pool, err = tx.LockPool(ctx, *t.SharedCapacityPoolID); err != nil {
				return err
			}
		}
		if err := CheckCapacity(t, pool, in.Quantity); err != nil {
			return err
		}

		purchase := &models.Purchase{
			EventID:          t.EventID,
			TicketID:         t.ID,
			TicketName:       t.Name,
			Quantity:         in.Quantity,
			UnitPriceCents:   t.PriceCents,
			TotalAmountCents: t.PriceCents * int64(in.Quantity),
			Currency:         t.Currency,
			BuyerEmail:       in.BuyerEmail,
			BuyerFullName:    in.BuyerFullName,
			BuyerPhone:       strings.TrimSpace(in.BuyerPhone),
			PaymentMethod:    in.PaymentMethod,
			Status:           InitialStatus(in.PaymentMethod),
			PaymentIntentID:  strings.TrimSpace(in.PaymentIntentID),
		}
		if p.UserID != uuid.Nil {
			uid := p.UserID
			purchase.UserID = &uid
		}
		if err := tx.InsertPurchase(ctx, purchase); err != nil {
			return err
		}
		if err := tx.IncrementSold(ctx, t.ID, in.Quantity); err != nil {
			return err
		}
		if pool != nil {
			if err := tx.IncrementPoolUsed(ctx, pool.ID, in.Quantity); err != nil {
				return err
			}
		}
		out = purchase
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("purchase created",
		zap.String("purchase_id", out.ID.String()),
		zap.String("ticket_id", out.TicketID.String()),
		zap.Int("quantity", out.Quantity),
		zap.String("status", string(out.Status)),
	)
	s.publish(ctx, broker.PurchaseCreated, out)
	s.enqueueConfirmation(ctx, out)
	return out, nil
}

var transitions = map[models.PurchaseStatus][]models.PurchaseStatus{
	models.PurchaseStatusPending:                      {models.PurchaseStatusCompleted, models.PurchaseStatusCancelled},
	models.PurchaseStatusAwaitingTransferConfirmation: {models.PurchaseStatusCompleted, models.PurchaseStatusCancelled},
	models.PurchaseStatusCompleted:                    {models.PurchaseStatusRefunded},
}

// CanTransition reports whether a purchase may move from one status to another.
func CanTransition(from, to models.PurchaseStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// UpdateStatus moves a purchase forward. Completing without a payment confirmation id
// stamps confirmed_at. Capacity is not re-checked or released.
func (s *Service) UpdateStatus(ctx context.Context, p authz.Principal, id uuid.UUID, status models.PurchaseStatus, paymentIntentID string) (*models.Purchase, error) {
	current, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.gate.Authorize(ctx, p, current.EventID, authz.ActionManageTickets); err != nil {
		return nil, err
	}
	var from models.PurchaseStatus
	var out *models.Purchase
	err = s.store.InTx(ctx, func(tx Tx) error {
		purchase, err := tx.LockPurchase(ctx, id)
		if err != nil {
			return err
		}
		from = purchase.Status
		if !CanTransition(from, status) {
			return apperr.InvalidStateTransition("cannot change purchase from %s to %s", from, status)
		}
		purchase.Status = status
		if status == models.PurchaseStatusCompleted {
			if intent := strings.TrimSpace(paymentIntentID); intent != "" {
				purchase.PaymentIntentID = intent
			} else {
				purchase.ConfirmedAt = models.NewTimestamp(s.now()).Ptr()
			}
		}
		if err := tx.UpdateStatus(ctx, purchase); err != nil {
			return err
		}
		out = purchase
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("purchase status changed",
		zap.String("purchase_id", id.String()),
		zap.String("from", string(from)),
		zap.String("to", string(status)),
		zap.String("by", p.UserID.String()),
	)
	s.publish(ctx, broker.PurchaseStatusChanged, StatusChange{Purchase: out, From: from})
	return out, nil
}

// StatusChange is the payload of purchase.status_changed.
type StatusChange struct {
	*models.Purchase
	From models.PurchaseStatus `json:"previous_status"`
}

// Get returns a purchase to its buyer or to anyone who can view its event.
func (s *Service) Get(ctx context.Context, p authz.Principal, id uuid.UUID) (*models.Purchase, error) {
	purchase, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if purchase.UserID != nil && *purchase.UserID == p.UserID {
		return purchase, nil
	}
	if _, err := s.gate.Authorize(ctx, p, purchase.EventID, authz.ActionView); err != nil {
		return nil, err
	}
	return purchase, nil
}

// List returns purchases. Event listings need view access; other users' purchases are super admin only;
// with no filter a caller sees their own purchases.
func (s *Service) List(ctx context.Context, p authz.Principal, f Filter) ([]models.Purchase, error) {
	if f.EventID != nil {
		if _, err := s.gate.Authorize(ctx, p, *f.EventID, authz.ActionView); err != nil {
			return nil, err
		}
	}
	if f.UserID != nil && *f.UserID != p.UserID && !p.IsSuperAdmin() {
		return nil, apperr.Forbidden("cannot list other users' purchases")
	}
	if f.EventID == nil && f.UserID == nil && !p.IsSuperAdmin() {
		uid := p.UserID
		f.UserID = &uid
	}
	f.BuyerEmail = strings.TrimSpace(f.BuyerEmail)
	return s.store.List(ctx, f)
}

func (s *Service) publish(ctx context.Context, routingKey string, data interface{}) {
	if err := s.publisher.Publish(ctx, routingKey, data); err != nil {
		s.logger.Warn("publish purchase event", zap.String("routing_key", routingKey), zap.Error(err))
	}
}

func (s *Service) enqueueConfirmation(ctx context.Context, p *models.Purchase) {
	if s.emails == nil {
		return
	}
	id := p.ID
	err := s.emails.EnqueueEmail(ctx, queue.EmailPayload{
		EmailType:      queue.EmailTypePurchaseConfirmation,
		EventID:        p.EventID,
		PurchaseID:     &id,
		RecipientEmail: p.BuyerEmail,
		Subject:        "Your purchase: " + p.TicketName,
		BodyHTML:       confirmationBody(p),
	})
	if err != nil {
		s.logger.Warn("enqueue purchase confirmation", zap.String("purchase_id", p.ID.String()), zap.Error(err))
	}
}

func confirmationBody(p *models.Purchase) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<p>Hi %s,</p>", html.EscapeString(p.BuyerFullName))
	fmt.Fprintf(&b, "<p>We received your order of %d × %s.</p>", p.Quantity, html.EscapeString(p.TicketName))
	fmt.Fprintf(&b, "<p>Total: %s %d.%02d</p>", p.Currency, p.TotalAmountCents/100, p.TotalAmountCents%100)
	if p.Status == models.PurchaseStatusAwaitingTransferConfirmation {
		b.WriteString("<p>Your tickets will be issued once the transfer is confirmed.</p>")
	}
	return b.String()
}

package tickets

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reservas-events/backend/internal/authz"
	"github.com/reservas-events/backend/internal/models"
	"github.com/reservas-events/backend/pkg/apperr"
)

// DefaultCurrency is used when a ticket is created without one.
const DefaultCurrency = "MXN"

var currencyRegex = regexp.MustCompile(`^[A-Z]{3}$`)

// Store is the ticket and pool persistence the service needs.
type Store interface {
	CreateTicket(ctx context.Context, t *models.Ticket) error
	GetTicket(ctx context.Context, id uuid.UUID) (*models.Ticket, error)
	ListTickets(ctx context.Context, eventID uuid.UUID) ([]models.Ticket, error)
	UpdateTicket(ctx context.Context, t *models.Ticket) error
	DeleteTicket(ctx context.Context, id uuid.UUID) error

	CreatePool(ctx context.Context, p *models.CapacityPool) error
	GetPool(ctx context.Context, id uuid.UUID) (*models.CapacityPool, error)
	ListPools(ctx context.Context, eventID uuid.UUID) ([]models.CapacityPool, error)
	UpdatePool(ctx context.Context, p *models.CapacityPool) error
	DeletePool(ctx context.Context, id uuid.UUID) error
}

// Service implements ticket and capacity pool configuration.
type Service struct {
	store  Store
	gate   *authz.Gate
	logger *zap.Logger
}

// NewService creates a tickets service.
func NewService(store Store, gate *authz.Gate, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, gate: gate, logger: logger}
}

// TicketInput holds ticket fields. Nil pointers are left unchanged on update.
type TicketInput struct {
	Name                 *string
	Description          *string
	PriceCents           *int64
	Currency             *string
	CapacityType         *models.CapacityType
	DedicatedCapacity    *int
	SharedCapacityPoolID *uuid.UUID
	SaleStartDate        *models.Timestamp
	SaleEndDate          *models.Timestamp
	IsActive             *bool
	FormFields           json.RawMessage
}

func (in TicketInput) apply(t *models.Ticket) error {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" || len(name) > 255 {
			return apperr.Validation("name must be 1–255 characters")
		}
		t.Name = name
	}
	if in.Description != nil {
		t.Description = strings.TrimSpace(*in.Description)
	}
	if in.PriceCents != nil {
		if *in.PriceCents < 0 {
			return apperr.Validation("price must not be negative")
		}
		t.PriceCents = *in.PriceCents
	}
	if in.Currency != nil {
		cur := strings.ToUpper(strings.TrimSpace(*in.Currency))
		if !currencyRegex.MatchString(cur) {
			return apperr.Validation("currency must be a 3-letter ISO code")
		}
		t.Currency = cur
	}
	if in.CapacityType != nil {
		if !in.CapacityType.Valid() {
			return apperr.Validation("capacity_type must be unlimited, dedicated or shared")
		}
		t.CapacityType = *in.CapacityType
	}
	if in.DedicatedCapacity != nil {
		v := *in.DedicatedCapacity
		t.DedicatedCapacity = &v
	}
	if in.SharedCapacityPoolID != nil {
		v := *in.SharedCapacityPoolID
		t.SharedCapacityPoolID = &v
	}
	if in.SaleStartDate != nil {
		t.SaleStartDate = *in.SaleStartDate
	}
	if in.SaleEndDate != nil {
		t.SaleEndDate = *in.SaleEndDate
	}
	if in.IsActive != nil {
		t.IsActive = *in.IsActive
	}
	if in.FormFields != nil {
		t.FormFields = in.FormFields
	}
	if t.SaleStartDate.IsZero() || t.SaleEndDate.IsZero() {
		return apperr.Validation("sale_start_date and sale_end_date required")
	}
	if !t.SaleEndDate.After(t.SaleStartDate.Time) {
		return apperr.Validation("sale_end_date must be after sale_start_date")
	}
	return nil
}

// normalizeCapacity enforces the per-type capacity fields and checks a shared pool belongs to the ticket's event.
func (s *Service) normalizeCapacity(ctx context.Context, t *models.Ticket) error {
	switch t.CapacityType {
	case models.CapacityUnlimited:
		t.DedicatedCapacity = nil
		t.SharedCapacityPoolID = nil
	case models.CapacityDedicated:
		if t.DedicatedCapacity == nil || *t.DedicatedCapacity < 0 {
			return apperr.Validation("dedicated tickets need dedicated_capacity >= 0")
		}
		t.SharedCapacityPoolID = nil
	case models.CapacityShared:
		if t.SharedCapacityPoolID == nil {
			return apperr.Validation("shared tickets need shared_capacity_pool_id")
		}
		pool, err := s.store.GetPool(ctx, *t.SharedCapacityPoolID)
		if err != nil {
			if apperr.Is(err, apperr.CodeNotFound) {
				return apperr.Validation("capacity pool not found for this event")
			}
			return err
		}
		if pool.EventID != t.EventID {
			return apperr.Validation("capacity pool not found for this event")
		}
		t.DedicatedCapacity = nil
	default:
		return apperr.Validation("capacity_type must be unlimited, dedicated or shared")
	}
	return nil
}

// CreateTicket adds a ticket to an event.
func (s *Service) CreateTicket(ctx context.Context, p authz.Principal, eventID uuid.UUID, in TicketInput) (*models.Ticket, error) {
	if _, err := s.gate.Authorize(ctx, p, eventID, authz.ActionManageTickets); err != nil {
		return nil, err
	}
	if in.Name == nil || in.CapacityType == nil {
		return nil, apperr.Validation("name and capacity_type required")
	}
	t := &models.Ticket{EventID: eventID, Currency: DefaultCurrency, IsActive: true}
	if err := in.apply(t); err != nil {
		return nil, err
	}
	if err := s.normalizeCapacity(ctx, t); err != nil {
		return nil, err
	}
	if err := s.store.CreateTicket(ctx, t); err != nil {
		return nil, err
	}
	s.logger.Info("ticket created",
		zap.String("ticket_id", t.ID.String()),
		zap.String("event_id", eventID.String()),
		zap.String("capacity_type", string(t.CapacityType)),
	)
	return t, nil
}

// ListTickets returns the tickets of an event visible to p.
func (s *Service) ListTickets(ctx context.Context, p authz.Principal, eventID uuid.UUID) ([]models.Ticket, error) {
	if _, err := s.gate.Authorize(ctx, p, eventID, authz.ActionView); err != nil {
		return nil, err
	}
	return s.store.ListTickets(ctx, eventID)
}

// GetTicket returns a ticket whose event is visible to p.
func (s *Service) GetTicket(ctx context.Context, p authz.Principal, id uuid.UUID) (*models.Ticket, error) {
	t, err := s.store.GetTicket(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.gate.Authorize(ctx, p, t.EventID, authz.ActionView); err != nil {
		return nil, err
	}
	return t, nil
}

// UpdateTicket reconfigures a ticket. Once a ticket has sales its capacity model is frozen
// and a dedicated capacity may not drop below the sold count.
func (s *Service) UpdateTicket(ctx context.Context, p authz.Principal, id uuid.UUID, in TicketInput) (*models.Ticket, error) {
	t, err := s.store.GetTicket(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.gate.Authorize(ctx, p, t.EventID, authz.ActionManageTickets); err != nil {
		return nil, err
	}
	before := *t
	if err := in.apply(t); err != nil {
		return nil, err
	}
	if err := s.normalizeCapacity(ctx, t); err != nil {
		return nil, err
	}
	if before.SoldCount > 0 && (t.CapacityType != before.CapacityType || !samePool(t.SharedCapacityPoolID, before.SharedCapacityPoolID)) {
		return nil, apperr.Conflict("cannot change capacity type or pool of a ticket that has sales")
	}
	if t.CapacityType == models.CapacityDedicated && *t.DedicatedCapacity < before.SoldCount {
		return nil, apperr.Conflict("dedicated capacity cannot be lower than tickets already sold")
	}
	if err := s.store.UpdateTicket(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func samePool(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// DeleteTicket removes a ticket without sales.
func (s *Service) DeleteTicket(ctx context.Context, p authz.Principal, id uuid.UUID) error {
	t, err := s.store.GetTicket(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.gate.Authorize(ctx, p, t.EventID, authz.ActionManageTickets); err != nil {
		return err
	}
	if t.SoldCount > 0 {
		return apperr.Conflict("cannot delete a ticket that has sales")
	}
	return s.store.DeleteTicket(ctx, id)
}

// PoolInput holds pool fields. Nil pointers are left unchanged on update.
type PoolInput struct {
	Name          *string
	TotalCapacity *int
}

func (in PoolInput) apply(pool *models.CapacityPool) error {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" || len(name) > 255 {
			return apperr.Validation("name must be 1–255 characters")
		}
		pool.Name = name
	}
	if in.TotalCapacity != nil {
		if *in.TotalCapacity < 0 {
			return apperr.Validation("total_capacity must not be negative")
		}
		pool.TotalCapacity = *in.TotalCapacity
	}
	return nil
}

// CreatePool adds a shared capacity pool to an event.
func (s *Service) CreatePool(ctx context.Context, p authz.Principal, eventID uuid.UUID, in PoolInput) (*models.CapacityPool, error) {
	if _, err := s.gate.Authorize(ctx, p, eventID, authz.ActionManageTickets); err != nil {
		return nil, err
	}
	if in.Name == nil || in.TotalCapacity == nil {
		return nil, apperr.Validation("name and total_capacity required")
	}
	pool := &models.CapacityPool{EventID: eventID}
	if err := in.apply(pool); err != nil {
		return nil, err
	}
	if err := s.store.CreatePool(ctx, pool); err != nil {
		return nil, err
	}
	return pool, nil
}

// ListPools returns an event's pools.
func (s *Service) ListPools(ctx context.Context, p authz.Principal, eventID uuid.UUID) ([]models.CapacityPool, error) {
	if _, err := s.gate.Authorize(ctx, p, eventID, authz.ActionView); err != nil {
		return nil, err
	}
	return s.store.ListPools(ctx, eventID)
}

// UpdatePool renames or resizes a pool. The total may not drop below the used capacity.
func (s *Service) UpdatePool(ctx context.Context, p authz.Principal, id uuid.UUID, in PoolInput) (*models.CapacityPool, error) {
	pool, err := s.store.GetPool(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.gate.Authorize(ctx, p, pool.EventID, authz.ActionManageTickets); err != nil {
		return nil, err
	}
	if err := in.apply(pool); err != nil {
		return nil, err
	}
	if pool.TotalCapacity < pool.UsedCapacity {
		return nil, apperr.Conflict("total capacity cannot be lower than used capacity")
	}
	if err := s.store.UpdatePool(ctx, pool); err != nil {
		return nil, err
	}
	return pool, nil
}

// DeletePool removes a pool that no ticket references.
func (s *Service) DeletePool(ctx context.Context, p authz.Principal, id uuid.UUID) error {
	pool, err := s.store.GetPool(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.gate.Authorize(ctx, p, pool.EventID, authz.ActionManageTickets); err != nil {
		return err
	}
	return s.store.DeletePool(ctx, id)
}

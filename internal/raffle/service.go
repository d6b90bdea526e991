// Package raffle records prizes and the attendees who win them.
package raffle

import (
	"bytes"
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reservas-events/backend/internal/authz"
	"github.com/reservas-events/backend/internal/models"
	"github.com/reservas-events/backend/pkg/apperr"
)

// MaxBatch bounds bulk prize and winner requests.
const MaxBatch = 500

// Tx is the transactional view used when awarding prizes.
type Tx interface {
	LockPrize(ctx context.Context, id uuid.UUID) (*models.Prize, error)
	GetAttendee(ctx context.Context, id uuid.UUID) (*models.Attendee, error)
	CountWinners(ctx context.Context, prizeID uuid.UUID) (int, error)
	HasWon(ctx context.Context, eventID, attendeeID uuid.UUID) (bool, error)
	InsertWinner(ctx context.Context, w *models.RaffleWinner) error
}

// Store persists prizes and winners.
type Store interface {
	InTx(ctx context.Context, fn func(Tx) error) error
	CreatePrizes(ctx context.Context, prizes []models.Prize) error
	GetPrize(ctx context.Context, id uuid.UUID) (*models.Prize, error)
	ListPrizes(ctx context.Context, eventID uuid.UUID) ([]models.Prize, error)
	DeletePrize(ctx context.Context, id uuid.UUID) error
	GetWinner(ctx context.Context, id uuid.UUID) (*models.RaffleWinner, error)
	ListWinners(ctx context.Context, eventID uuid.UUID) ([]models.RaffleWinner, error)
	DeleteWinner(ctx context.Context, id uuid.UUID) error
	DeleteAllWinners(ctx context.Context, eventID uuid.UUID) (int, error)
}

// Service manages prizes and winners.
type Service struct {
	store  Store
	gate   *authz.Gate
	logger *zap.Logger
}

// NewService creates a raffle service.
func NewService(store Store, gate *authz.Gate, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, gate: gate, logger: logger}
}

// PrizeInput describes a prize to add. Quantity defaults to 1.
type PrizeInput struct {
	Name        string
	Description string
	Quantity    int
}

// WinnerInput awards PrizeID to AttendeeID.
type WinnerInput struct {
	PrizeID    uuid.UUID
	AttendeeID uuid.UUID
}

func (in PrizeInput) build(eventID uuid.UUID) (models.Prize, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return models.Prize{}, apperr.Validation("prize name required")
	}
	qty := in.Quantity
	if qty == 0 {
		qty = 1
	}
	if qty < 1 {
		return models.Prize{}, apperr.Validation("prize quantity must be at least 1")
	}
	return models.Prize{EventID: eventID, Name: name, Description: strings.TrimSpace(in.Description), Quantity: qty}, nil
}

// ListPrizes returns an event's prizes.
func (s *Service) ListPrizes(ctx context.Context, p authz.Principal, eventID uuid.UUID) ([]models.Prize, error) {
	if _, err := s.gate.Authorize(ctx, p, eventID, authz.ActionView); err != nil {
		return nil, err
	}
	return s.store.ListPrizes(ctx, eventID)
}

// AddPrize adds one prize to an event.
func (s *Service) AddPrize(ctx context.Context, p authz.Principal, eventID uuid.UUID, in PrizeInput) (*models.Prize, error) {
	list, err := s.AddPrizes(ctx, p, eventID, []PrizeInput{in})
	if err != nil {
		return nil, err
	}
	return &list[0], nil
}

// AddPrizes adds several prizes to an event. Either all are created or none.
func (s *Service) AddPrizes(ctx context.Context, p authz.Principal, eventID uuid.UUID, inputs []PrizeInput) ([]models.Prize, error) {
	if _, err := s.gate.Authorize(ctx, p, eventID, authz.ActionManagePrizes); err != nil {
		return nil, err
	}
	if len(inputs) == 0 || len(inputs) > MaxBatch {
		return nil, apperr.Validation("between 1 and %d prizes required", MaxBatch)
	}
	prizes := make([]models.Prize, 0, len(inputs))
	for _, in := range inputs {
		prize, err := in.build(eventID)
		if err != nil {
			return nil, err
		}
		prizes = append(prizes, prize)
	}
	if err := s.store.CreatePrizes(ctx, prizes); err != nil {
		return nil, err
	}
	return prizes, nil
}

// DeletePrize removes a prize together with its winners.
func (s *Service) DeletePrize(ctx context.Context, p authz.Principal, id uuid.UUID) error {
	prize, err := s.store.GetPrize(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.gate.Authorize(ctx, p, prize.EventID, authz.ActionManagePrizes); err != nil {
		return err
	}
	return s.store.DeletePrize(ctx, id)
}

// ListWinners returns an event's winners with prize and attendee names.
func (s *Service) ListWinners(ctx context.Context, p authz.Principal, eventID uuid.UUID) ([]models.RaffleWinner, error) {
	if _, err := s.gate.Authorize(ctx, p, eventID, authz.ActionView); err != nil {
		return nil, err
	}
	return s.store.ListWinners(ctx, eventID)
}

// AddWinner awards one prize.
func (s *Service) AddWinner(ctx context.Context, p authz.Principal, eventID uuid.UUID, in WinnerInput) (*models.RaffleWinner, error) {
	list, err := s.AddWinners(ctx, p, eventID, []WinnerInput{in})
	if err != nil {
		return nil, err
	}
	return &list[0], nil
}

// AddWinners awards prizes in one transaction; any rejected award rolls back the whole batch.
// An attendee wins at most once per event and a prize is never awarded more than its quantity.
func (s *Service) AddWinners(ctx context.Context, p authz.Principal, eventID uuid.UUID, inputs []WinnerInput) ([]models.RaffleWinner, error) {
	if _, err := s.gate.Authorize(ctx, p, eventID, authz.ActionManageRaffle); err != nil {
		return nil, err
	}
	if len(inputs) == 0 || len(inputs) > MaxBatch {
		return nil, apperr.Validation("between 1 and %d winners required", MaxBatch)
	}
	var out []models.RaffleWinner
	err := s.store.InTx(ctx, func(tx Tx) error {
		out = out[:0]
		prizes, err := lockPrizes(ctx, tx, eventID, inputs)
		if err != nil {
			return err
		}
		for _, in := range inputs {
			prize := prizes[in.PrizeID]
			a, err := tx.GetAttendee(ctx, in.AttendeeID)
			if err != nil {
				return err
			}
			if a.EventID != eventID {
				return apperr.NotFound("attendee not found")
			}
			won, err := tx.HasWon(ctx, eventID, a.ID)
			if err != nil {
				return err
			}
			if won {
				return apperr.Conflict("%s already won a prize in this event", a.FullName)
			}
			n, err := tx.CountWinners(ctx, prize.ID)
			if err != nil {
				return err
			}
			if n >= prize.Quantity {
				return apperr.CapacityExceeded("prize %q has no units left", prize.Name)
			}
			w := models.RaffleWinner{EventID: eventID, PrizeID: prize.ID, AttendeeID: a.ID, PrizeName: prize.Name, AttendeeName: a.FullName}
			if err := tx.InsertWinner(ctx, &w); err != nil {
				return err
			}
			out = append(out, w)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("raffle winners recorded", zap.String("event_id", eventID.String()), zap.Int("count", len(out)))
	return out, nil
}

// lockPrizes locks every distinct prize of the batch in ID order so concurrent batches cannot deadlock.
func lockPrizes(ctx context.Context, tx Tx, eventID uuid.UUID, inputs []WinnerInput) (map[uuid.UUID]*models.Prize, error) {
	ids := make([]uuid.UUID, 0, len(inputs))
	seen := make(map[uuid.UUID]bool, len(inputs))
	for _, in := range inputs {
		if !seen[in.PrizeID] {
			seen[in.PrizeID] = true
			ids = append(ids, in.PrizeID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return bytes.Compare(ids[i][:], ids[j][:]) < 0 })

	prizes := make(map[uuid.UUID]*models.Prize, len(ids))
	for _, id := range ids {
		prize, err := tx.LockPrize(ctx, id)
		if err != nil {
			return nil, err
		}
		if prize.EventID != eventID {
			return nil, apperr.NotFound("prize not found")
		}
		prizes[id] = prize
	}
	return prizes, nil
}

// DeleteWinner removes one winner, freeing the prize unit.
func (s *Service) DeleteWinner(ctx context.Context, p authz.Principal, id uuid.UUID) error {
	w, err := s.store.GetWinner(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.gate.Authorize(ctx, p, w.EventID, authz.ActionManageRaffle); err != nil {
		return err
	}
	return s.store.DeleteWinner(ctx, id)
}

// DeleteAllWinners resets an event's raffle and returns how many winners were removed.
func (s *Service) DeleteAllWinners(ctx context.Context, p authz.Principal, eventID uuid.UUID) (int, error) {
	if _, err := s.gate.Authorize(ctx, p, eventID, authz.ActionManageRaffle); err != nil {
		return 0, err
	}
	return s.store.DeleteAllWinners(ctx, eventID)
}

package purchases

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/reservas-events/backend/internal/models"
	"github.com/reservas-events/backend/pkg/apperr"
)

// memStore serializes transactions with one mutex and rolls back by restoring a snapshot.
type memStore struct {
	mu        sync.Mutex
	tickets   map[uuid.UUID]models.Ticket
	pools     map[uuid.UUID]models.CapacityPool
	purchases map[uuid.UUID]models.Purchase

	failPoolIncrement bool
}

func newMemStore() *memStore {
	return &memStore{
		tickets:   map[uuid.UUID]models.Ticket{},
		pools:     map[uuid.UUID]models.CapacityPool{},
		purchases: map[uuid.UUID]models.Purchase{},
	}
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (m *memStore) InTx(_ context.Context, fn func(Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tickets, pools, purchases := copyMap(m.tickets), copyMap(m.pools), copyMap(m.purchases)
	if err := fn(&memTx{m: m}); err != nil {
		m.tickets, m.pools, m.purchases = tickets, pools, purchases
		return err
	}
	return nil
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (*models.Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.purchases[id]
	if !ok {
		return nil, apperr.NotFound("purchase not found")
	}
	return &p, nil
}

func (m *memStore) List(_ context.Context, f Filter) ([]models.Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Purchase
	for _, p := range m.purchases {
		if f.EventID != nil && p.EventID != *f.EventID {
			continue
		}
		if f.UserID != nil && (p.UserID == nil || *p.UserID != *f.UserID) {
			continue
		}
		if f.BuyerEmail != "" && !strings.EqualFold(p.BuyerEmail, f.BuyerEmail) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PurchasedAt.After(out[j].PurchasedAt.Time) })
	return out, nil
}

func (m *memStore) ticket(id uuid.UUID) models.Ticket {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tickets[id]
}

func (m *memStore) pool(id uuid.UUID) models.CapacityPool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pools[id]
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.purchases)
}

type memTx struct {
	m *memStore
}

func (t *memTx) LockTicket(_ context.Context, id uuid.UUID) (*models.Ticket, error) {
	tk, ok := t.m.tickets[id]
	if !ok {
		return nil, apperr.NotFound("ticket not found")
	}
	return &tk, nil
}

func (t *memTx) LockPool(_ context.Context, id uuid.UUID) (*models.CapacityPool, error) {
	p, ok := t.m.pools[id]
	if !ok {
		return nil, apperr.NotFound("capacity pool not found")
	}
	return &p, nil
}

func (t *memTx) LockPurchase(_ context.Context, id uuid.UUID) (*models.Purchase, error) {
	p, ok := t.m.purchases[id]
	if !ok {
		return nil, apperr.NotFound("purchase not found")
	}
	return &p, nil
}

func (t *memTx) InsertPurchase(_ context.Context, p *models.Purchase) error {
	p.ID = uuid.New()
	p.PurchasedAt = models.Now()
	p.CreatedAt = p.PurchasedAt
	t.m.purchases[p.ID] = *p
	return nil
}

func (t *memTx) IncrementSold(_ context.Context, ticketID uuid.UUID, qty int) error {
	tk := t.m.tickets[ticketID]
	tk.SoldCount += qty
	t.m.tickets[ticketID] = tk
	return nil
}

func (t *memTx) IncrementPoolUsed(_ context.Context, poolID uuid.UUID, qty int) error {
	if t.m.failPoolIncrement {
		return errors.New("connection reset")
	}
	p := t.m.pools[poolID]
	p.UsedCapacity += qty
	t.m.pools[poolID] = p
	return nil
}

func (t *memTx) UpdateStatus(_ context.Context, p *models.Purchase) error {
	t.m.purchases[p.ID] = *p
	return nil
}

package tickets

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/reservas-events/backend/internal/authz"
	"github.com/reservas-events/backend/internal/models"
	"github.com/reservas-events/backend/pkg/apperr"
)

type eventMap map[uuid.UUID]*models.Event

func (m eventMap) GetByID(_ context.Context, id uuid.UUID) (*models.Event, error) {
	e, ok := m[id]
	if !ok {
		return nil, apperr.NotFound("event not found")
	}
	return e, nil
}

type memStore struct {
	mu      sync.Mutex
	tickets map[uuid.UUID]models.Ticket
	pools   map[uuid.UUID]models.CapacityPool
}

func newMemStore() *memStore {
	return &memStore{tickets: map[uuid.UUID]models.Ticket{}, pools: map[uuid.UUID]models.CapacityPool{}}
}

func (m *memStore) CreateTicket(_ context.Context, t *models.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.ID = uuid.New()
	m.tickets[t.ID] = *t
	return nil
}

func (m *memStore) GetTicket(_ context.Context, id uuid.UUID) (*models.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[id]
	if !ok {
		return nil, apperr.NotFound("ticket not found")
	}
	return &t, nil
}

func (m *memStore) ListTickets(_ context.Context, eventID uuid.UUID) ([]models.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Ticket
	for _, t := range m.tickets {
		if t.EventID == eventID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memStore) UpdateTicket(_ context.Context, t *models.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.tickets[t.ID]
	if !ok {
		return apperr.NotFound("ticket not found")
	}
	if cur.SoldCount > 0 && (cur.CapacityType != t.CapacityType || !samePool(cur.SharedCapacityPoolID, t.SharedCapacityPoolID)) {
		return apperr.Conflict("cannot change capacity type or pool of a ticket that has sales")
	}
	if t.CapacityType == models.CapacityDedicated && t.DedicatedCapacity != nil && *t.DedicatedCapacity < cur.SoldCount {
		return apperr.Conflict("dedicated capacity cannot be lower than tickets already sold")
	}
	t.SoldCount = cur.SoldCount
	m.tickets[t.ID] = *t
	return nil
}

// racingStore hands out the ticket as it was before a sale that lands right after the read.
type racingStore struct {
	*memStore
	sold int
}

func (r *racingStore) GetTicket(ctx context.Context, id uuid.UUID) (*models.Ticket, error) {
	t, err := r.memStore.GetTicket(ctx, id)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	cur := r.tickets[id]
	cur.SoldCount += r.sold
	r.tickets[id] = cur
	r.mu.Unlock()
	return t, nil
}

func (m *memStore) DeleteTicket(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tickets, id)
	return nil
}

func (m *memStore) CreatePool(_ context.Context, p *models.CapacityPool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = uuid.New()
	m.pools[p.ID] = *p
	return nil
}

func (m *memStore) GetPool(_ context.Context, id uuid.UUID) (*models.CapacityPool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pools[id]
	if !ok {
		return nil, apperr.NotFound("capacity pool not found")
	}
	return &p, nil
}

func (m *memStore) ListPools(_ context.Context, eventID uuid.UUID) ([]models.CapacityPool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.CapacityPool
	for _, p := range m.pools {
		if p.EventID == eventID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) UpdatePool(_ context.Context, p *models.CapacityPool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pools[p.ID] = *p
	return nil
}

func (m *memStore) DeletePool(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tickets {
		if t.SharedCapacityPoolID != nil && *t.SharedCapacityPoolID == id {
			return apperr.Conflict("capacity pool is used by tickets")
		}
	}
	delete(m.pools, id)
	return nil
}

type fixture struct {
	svc    *Service
	store  *memStore
	event  *models.Event
	other  *models.Event
	seller authz.Principal
}

func newFixture() *fixture {
	org := uuid.New()
	seller := authz.Principal{UserID: uuid.New(), Role: models.RoleSellerAdmin, OrganizationID: &org}
	e := &models.Event{ID: uuid.New(), Name: "Expo", CreatedBy: seller.UserID, OrganizationID: &org}
	other := &models.Event{ID: uuid.New(), Name: "Other", CreatedBy: seller.UserID, OrganizationID: &org}
	store := newMemStore()
	gate := authz.NewGate(eventMap{e.ID: e, other.ID: other})
	return &fixture{svc: NewService(store, gate, nil), store: store, event: e, other: other, seller: seller}
}

func ptr[T any](v T) *T { return &v }

func saleWindow() (*models.Timestamp, *models.Timestamp) {
	start := models.NewTimestamp(time.Now().Add(-time.Hour))
	end := models.NewTimestamp(time.Now().Add(24 * time.Hour))
	return &start, &end
}

func (f *fixture) input(ct models.CapacityType) TicketInput {
	start, end := saleWindow()
	return TicketInput{Name: ptr("General"), PriceCents: ptr[int64](50000), CapacityType: &ct, SaleStartDate: start, SaleEndDate: end}
}

func TestCreateTicket_CapacityConfig(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	in := f.input(models.CapacityDedicated)
	if _, err := f.svc.CreateTicket(ctx, f.seller, f.event.ID, in); !apperr.Is(err, apperr.CodeValidation) {
		t.Errorf("dedicated without capacity: expected VALIDATION_ERROR, got %v", err)
	}
	in.DedicatedCapacity = ptr(100)
	tk, err := f.svc.CreateTicket(ctx, f.seller, f.event.ID, in)
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	if tk.Currency != DefaultCurrency || !tk.IsActive || tk.SoldCount != 0 {
		t.Errorf("unexpected defaults: %+v", tk)
	}

	foreign, _ := f.svc.CreatePool(ctx, f.seller, f.other.ID, PoolInput{Name: ptr("VIP"), TotalCapacity: ptr(10)})
	shared := f.input(models.CapacityShared)
	shared.SharedCapacityPoolID = &foreign.ID
	if _, err := f.svc.CreateTicket(ctx, f.seller, f.event.ID, shared); !apperr.Is(err, apperr.CodeValidation) {
		t.Errorf("pool of another event: expected VALIDATION_ERROR, got %v", err)
	}

	unlimited := f.input(models.CapacityUnlimited)
	unlimited.DedicatedCapacity = ptr(5)
	tk, err = f.svc.CreateTicket(ctx, f.seller, f.event.ID, unlimited)
	if err != nil {
		t.Fatalf("unlimited: %v", err)
	}
	if tk.DedicatedCapacity != nil || tk.SharedCapacityPoolID != nil {
		t.Errorf("unlimited ticket keeps capacity fields: %+v", tk)
	}

	bad := f.input(models.CapacityUnlimited)
	bad.SaleEndDate, bad.SaleStartDate = bad.SaleStartDate, bad.SaleEndDate
	if _, err := f.svc.CreateTicket(ctx, f.seller, f.event.ID, bad); !apperr.Is(err, apperr.CodeValidation) {
		t.Errorf("inverted sale window: expected VALIDATION_ERROR, got %v", err)
	}
}

func TestUpdateTicket_FrozenAfterSales(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	in := f.input(models.CapacityDedicated)
	in.DedicatedCapacity = ptr(10)
	tk, err := f.svc.CreateTicket(ctx, f.seller, f.event.ID, in)
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	sold := f.store.tickets[tk.ID]
	sold.SoldCount = 6
	f.store.tickets[tk.ID] = sold

	if _, err := f.svc.UpdateTicket(ctx, f.seller, tk.ID, TicketInput{DedicatedCapacity: ptr(5)}); !apperr.Is(err, apperr.CodeConflict) {
		t.Errorf("capacity below sold: expected CONFLICT, got %v", err)
	}
	unlimited := models.CapacityUnlimited
	if _, err := f.svc.UpdateTicket(ctx, f.seller, tk.ID, TicketInput{CapacityType: &unlimited}); !apperr.Is(err, apperr.CodeConflict) {
		t.Errorf("type change after sales: expected CONFLICT, got %v", err)
	}
	got, err := f.svc.UpdateTicket(ctx, f.seller, tk.ID, TicketInput{DedicatedCapacity: ptr(6), Name: ptr("Preventa")})
	if err != nil {
		t.Fatalf("UpdateTicket: %v", err)
	}
	if *got.DedicatedCapacity != 6 || got.Name != "Preventa" || got.SoldCount != 6 {
		t.Errorf("unexpected ticket: %+v", got)
	}
	if err := f.svc.DeleteTicket(ctx, f.seller, tk.ID); !apperr.Is(err, apperr.CodeConflict) {
		t.Errorf("delete sold ticket: expected CONFLICT, got %v", err)
	}
}

func TestUpdateTicket_SaleDuringUpdate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	in := f.input(models.CapacityDedicated)
	in.DedicatedCapacity = ptr(10)
	tk, err := f.svc.CreateTicket(ctx, f.seller, f.event.ID, in)
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}

	svc := NewService(&racingStore{memStore: f.store, sold: 3}, f.svc.gate, nil)
	unlimited := models.CapacityUnlimited
	if _, err := svc.UpdateTicket(ctx, f.seller, tk.ID, TicketInput{CapacityType: &unlimited}); !apperr.Is(err, apperr.CodeConflict) {
		t.Fatalf("type change racing a sale: expected CONFLICT, got %v", err)
	}
	got := f.store.tickets[tk.ID]
	if got.CapacityType != models.CapacityDedicated || got.SoldCount != 3 {
		t.Errorf("ticket changed under a sale: %+v", got)
	}

	renamed, err := svc.UpdateTicket(ctx, f.seller, tk.ID, TicketInput{Name: ptr("Preventa")})
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if renamed.SoldCount != 6 || renamed.Name != "Preventa" {
		t.Errorf("unexpected ticket: %+v", renamed)
	}
}

func TestPools(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	pool, err := f.svc.CreatePool(ctx, f.seller, f.event.ID, PoolInput{Name: ptr("Aforo"), TotalCapacity: ptr(100)})
	if err != nil {
		t.Fatalf("CreatePool: %v", err)
	}
	shared := f.input(models.CapacityShared)
	shared.SharedCapacityPoolID = &pool.ID
	if _, err := f.svc.CreateTicket(ctx, f.seller, f.event.ID, shared); err != nil {
		t.Fatalf("shared ticket: %v", err)
	}

	used := f.store.pools[pool.ID]
	used.UsedCapacity = 40
	f.store.pools[pool.ID] = used

	if _, err := f.svc.UpdatePool(ctx, f.seller, pool.ID, PoolInput{TotalCapacity: ptr(39)}); !apperr.Is(err, apperr.CodeConflict) {
		t.Errorf("total below used: expected CONFLICT, got %v", err)
	}
	got, err := f.svc.UpdatePool(ctx, f.seller, pool.ID, PoolInput{TotalCapacity: ptr(40)})
	if err != nil || got.TotalCapacity != 40 || got.UsedCapacity != 40 {
		t.Errorf("UpdatePool: %+v, %v", got, err)
	}
	if err := f.svc.DeletePool(ctx, f.seller, pool.ID); !apperr.Is(err, apperr.CodeConflict) {
		t.Errorf("referenced pool: expected CONFLICT, got %v", err)
	}
}

func TestTickets_Gate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	viewer := authz.Principal{UserID: uuid.New(), Role: models.RoleViewer, OrganizationID: f.event.OrganizationID}

	in := f.input(models.CapacityUnlimited)
	if _, err := f.svc.CreateTicket(ctx, viewer, f.event.ID, in); !apperr.Is(err, apperr.CodeForbidden) {
		t.Errorf("viewer create: expected FORBIDDEN, got %v", err)
	}
	if _, err := f.svc.ListTickets(ctx, viewer, f.event.ID); err != nil {
		t.Errorf("viewer list: %v", err)
	}
	if _, err := f.svc.CreateTicket(ctx, f.seller, uuid.New(), in); !apperr.Is(err, apperr.CodeNotFound) {
		t.Errorf("missing event: expected NOT_FOUND, got %v", err)
	}
}

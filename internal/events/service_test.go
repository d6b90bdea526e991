package events

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/reservas-events/backend/internal/authz"
	"github.com/reservas-events/backend/internal/models"
	"github.com/reservas-events/backend/pkg/apperr"
)

type memEvents struct {
	mu     sync.Mutex
	events map[uuid.UUID]models.Event
}

func newMemEvents() *memEvents {
	return &memEvents{events: make(map[uuid.UUID]models.Event)}
}

func (m *memEvents) Create(_ context.Context, e *models.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = uuid.New()
	e.CreatedAt = models.Now()
	m.events[e.ID] = *e
	return nil
}

func (m *memEvents) GetByID(_ context.Context, id uuid.UUID) (*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return nil, apperr.NotFound("event not found")
	}
	return &e, nil
}

func (m *memEvents) List(_ context.Context, f ListFilter) ([]models.EventSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.EventSummary
	for _, e := range m.events {
		orgMatch := f.OrganizationID != nil && e.OrganizationID != nil && *e.OrganizationID == *f.OrganizationID
		if f.All || orgMatch || e.CreatedBy == f.CreatedBy {
			out = append(out, models.EventSummary{Event: e})
		}
	}
	return out, nil
}

func (m *memEvents) Update(_ context.Context, e *models.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[e.ID] = *e
	return nil
}

func (m *memEvents) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.events, id)
	return nil
}

type fakeSigner struct{}

func (fakeSigner) GeneratePresignedUploadURL(_ context.Context, bucket, key, contentType string, _ time.Duration) (string, error) {
	return "https://" + bucket + ".s3.test/" + key + "?signed&ct=" + contentType, nil
}
func (fakeSigner) PublicObjectURL(bucket, key string) string {
	return "https://" + bucket + ".s3.test/" + key
}
func (fakeSigner) AssetsBucket() string         { return "assets" }
func (fakeSigner) PresignExpire() time.Duration { return 15 * time.Minute }

func strp(s string) *string { return &s }

type fixture struct {
	svc    *Service
	store  *memEvents
	org    uuid.UUID
	seller authz.Principal
	collab authz.Principal
	viewer authz.Principal
}

func newFixture() *fixture {
	org := uuid.New()
	store := newMemEvents()
	return &fixture{
		svc:    NewService(store, fakeSigner{}, nil),
		store:  store,
		org:    org,
		seller: authz.Principal{UserID: uuid.New(), Role: models.RoleSellerAdmin, OrganizationID: &org},
		collab: authz.Principal{UserID: uuid.New(), Role: models.RoleCollaborator, OrganizationID: &org},
		viewer: authz.Principal{UserID: uuid.New(), Role: models.RoleViewer, OrganizationID: &org},
	}
}

func (f *fixture) event(t *testing.T) *models.Event {
	t.Helper()
	date := models.NewTimestamp(time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC))
	e, err := f.svc.Create(context.Background(), f.seller, Input{Name: strp("Posada 2026"), Date: &date})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return e
}

func TestCreate(t *testing.T) {
	f := newFixture()
	e := f.event(t)
	if e.OrganizationID == nil || *e.OrganizationID != f.org {
		t.Errorf("organization should default to the creator's, got %v", e.OrganizationID)
	}
	if e.CreatedBy != f.seller.UserID || !e.VibrationEnabled {
		t.Errorf("unexpected defaults: %+v", e)
	}

	date := models.Now()
	ctx := context.Background()
	if _, err := f.svc.Create(ctx, f.collab, Input{Name: strp("X"), Date: &date}); !apperr.Is(err, apperr.CodeForbidden) {
		t.Errorf("collaborator create: expected FORBIDDEN, got %v", err)
	}
	other := uuid.New()
	if _, err := f.svc.Create(ctx, f.seller, Input{Name: strp("X"), Date: &date, OrganizationID: &other}); !apperr.Is(err, apperr.CodeForbidden) {
		t.Errorf("foreign org: expected FORBIDDEN, got %v", err)
	}
	if _, err := f.svc.Create(ctx, f.seller, Input{Name: strp("X")}); !apperr.Is(err, apperr.CodeValidation) {
		t.Errorf("missing date: expected VALIDATION_ERROR, got %v", err)
	}
	if _, err := f.svc.Create(ctx, f.seller, Input{Name: strp("X"), Date: &date, PrimaryColor: strp("red")}); !apperr.Is(err, apperr.CodeValidation) {
		t.Errorf("bad color: expected VALIDATION_ERROR, got %v", err)
	}
}

func TestUpdateDelete_Gate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	e := f.event(t)

	updated, err := f.svc.Update(ctx, f.collab, e.ID, Input{VenueName: strp("Salón Real"), PrimaryColor: strp("#112233")})
	if err != nil {
		t.Fatalf("collaborator update: %v", err)
	}
	if updated.VenueName != "Salón Real" || updated.Name != "Posada 2026" {
		t.Errorf("unexpected update: %+v", updated)
	}
	if _, err := f.svc.Update(ctx, f.viewer, e.ID, Input{Name: strp("X")}); !apperr.Is(err, apperr.CodeForbidden) {
		t.Errorf("viewer update: expected FORBIDDEN, got %v", err)
	}
	outsider := authz.Principal{UserID: uuid.New(), Role: models.RoleSellerAdmin}
	if _, err := f.svc.Get(ctx, outsider, e.ID); !apperr.Is(err, apperr.CodeForbidden) {
		t.Errorf("outsider get: expected FORBIDDEN, got %v", err)
	}
	if err := f.svc.Delete(ctx, f.collab, e.ID); !apperr.Is(err, apperr.CodeForbidden) {
		t.Errorf("collaborator delete: expected FORBIDDEN, got %v", err)
	}
	if err := f.svc.Delete(ctx, f.seller, uuid.New()); !apperr.Is(err, apperr.CodeNotFound) {
		t.Errorf("missing event: expected NOT_FOUND, got %v", err)
	}
	if err := f.svc.Delete(ctx, f.seller, e.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := f.svc.Get(ctx, f.seller, e.ID); !apperr.Is(err, apperr.CodeNotFound) {
		t.Errorf("after delete: expected NOT_FOUND, got %v", err)
	}
}

func TestList_Visibility(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.event(t)

	outsiderOrg := uuid.New()
	outsider := authz.Principal{UserID: uuid.New(), Role: models.RoleSellerAdmin, OrganizationID: &outsiderOrg}
	date := models.Now()
	if _, err := f.svc.Create(ctx, outsider, Input{Name: strp("Other"), Date: &date}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	mine, _ := f.svc.List(ctx, f.viewer)
	if len(mine) != 1 || mine[0].Name != "Posada 2026" {
		t.Errorf("org member sees %+v", mine)
	}
	all, _ := f.svc.List(ctx, authz.Principal{UserID: uuid.New(), Role: models.RoleSuperAdmin})
	if len(all) != 2 {
		t.Errorf("super admin sees %d events", len(all))
	}
}

func TestRequestAssetUpload(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	e := f.event(t)

	out, err := f.svc.RequestAssetUpload(ctx, f.collab, e.ID, "venue_plan", "Plano.PDF")
	if err != nil {
		t.Fatalf("RequestAssetUpload: %v", err)
	}
	prefix := "events/" + e.ID.String() + "/venue_plan/"
	if !strings.HasPrefix(out.Key, prefix) || !strings.HasSuffix(out.Key, ".pdf") {
		t.Errorf("key: got %q", out.Key)
	}
	if !strings.Contains(out.UploadURL, "ct=application/pdf") || out.ExpiresIn != 900 {
		t.Errorf("unexpected upload: %+v", out)
	}
	if _, err := f.svc.RequestAssetUpload(ctx, f.collab, e.ID, "banner", "a.png"); !apperr.Is(err, apperr.CodeValidation) {
		t.Errorf("bad kind: expected VALIDATION_ERROR, got %v", err)
	}
	if _, err := f.svc.RequestAssetUpload(ctx, f.collab, e.ID, "image", "a.exe"); !apperr.Is(err, apperr.CodeValidation) {
		t.Errorf("bad extension: expected VALIDATION_ERROR, got %v", err)
	}
	if _, err := f.svc.RequestAssetUpload(ctx, f.viewer, e.ID, "image", "a.png"); !apperr.Is(err, apperr.CodeForbidden) {
		t.Errorf("viewer: expected FORBIDDEN, got %v", err)
	}
}

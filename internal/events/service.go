package events

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reservas-events/backend/internal/authz"
	"github.com/reservas-events/backend/internal/models"
	"github.com/reservas-events/backend/pkg/apperr"
	"github.com/reservas-events/backend/pkg/storage"
)

var colorRegex = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

var errStorageDisabled = errors.New("asset storage is not configured")

// Store is the event persistence the service needs.
type Store interface {
	Create(ctx context.Context, e *models.Event) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
	List(ctx context.Context, f ListFilter) ([]models.EventSummary, error)
	Update(ctx context.Context, e *models.Event) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// AssetSigner issues direct-upload URLs for event assets.
type AssetSigner interface {
	GeneratePresignedUploadURL(ctx context.Context, bucket, key, contentType string, expires time.Duration) (string, error)
	PublicObjectURL(bucket, key string) string
	AssetsBucket() string
	PresignExpire() time.Duration
}

// Service implements event management.
type Service struct {
	store  Store
	gate   *authz.Gate
	assets AssetSigner
	logger *zap.Logger
}

// NewService creates an events service. assets may be nil when S3 is not configured.
func NewService(store Store, assets AssetSigner, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, gate: authz.NewGate(store), assets: assets, logger: logger}
}

// Gate returns the authorization gate backed by this service's store.
func (s *Service) Gate() *authz.Gate { return s.gate }

// Input holds event fields. Nil pointers are left unchanged on update.
type Input struct {
	Name                *string
	Description         *string
	Date                *models.Timestamp
	Time                *string
	VenueName           *string
	Location            *string
	ImageURL            *string
	OrganizerLogoURL    *string
	VenuePlanURL        *string
	EmployeeNumberLabel *string
	SuccessSoundID      *string
	ErrorSoundID        *string
	VibrationEnabled    *bool
	VibrationIntensity  *string
	PrimaryColor        *string
	SecondaryColor      *string
	AccentColor         *string
	OrganizationID      *uuid.UUID
}

func (in Input) apply(e *models.Event) error {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" || len(name) > 255 {
			return apperr.Validation("name must be 1–255 characters")
		}
		e.Name = name
	}
	if in.Date != nil {
		if in.Date.IsZero() {
			return apperr.Validation("date is required")
		}
		e.Date = *in.Date
	}
	for _, c := range []*string{in.PrimaryColor, in.SecondaryColor, in.AccentColor} {
		if c != nil && *c != "" && !colorRegex.MatchString(*c) {
			return apperr.Validation("colors must be hex values like #1A2B3C")
		}
	}
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&e.Description, in.Description)
	set(&e.Time, in.Time)
	set(&e.VenueName, in.VenueName)
	set(&e.Location, in.Location)
	set(&e.ImageURL, in.ImageURL)
	set(&e.OrganizerLogoURL, in.OrganizerLogoURL)
	set(&e.VenuePlanURL, in.VenuePlanURL)
	set(&e.EmployeeNumberLabel, in.EmployeeNumberLabel)
	set(&e.SuccessSoundID, in.SuccessSoundID)
	set(&e.ErrorSoundID, in.ErrorSoundID)
	set(&e.VibrationIntensity, in.VibrationIntensity)
	set(&e.PrimaryColor, in.PrimaryColor)
	set(&e.SecondaryColor, in.SecondaryColor)
	set(&e.AccentColor, in.AccentColor)
	if in.VibrationEnabled != nil {
		e.VibrationEnabled = *in.VibrationEnabled
	}
	return nil
}

// Create creates an event owned by p. The organization defaults to p's own.
func (s *Service) Create(ctx context.Context, p authz.Principal, in Input) (*models.Event, error) {
	if !authz.Has(p.Role, authz.CreateEvents) {
		return nil, apperr.Forbidden("insufficient permissions")
	}
	if in.Name == nil || in.Date == nil {
		return nil, apperr.Validation("name and date required")
	}
	orgID := p.OrganizationID
	if in.OrganizationID != nil {
		if !p.IsSuperAdmin() && !p.InOrganization(in.OrganizationID) {
			return nil, apperr.Forbidden("cannot create events for another organization")
		}
		orgID = in.OrganizationID
	}
	e := &models.Event{VibrationEnabled: true, CreatedBy: p.UserID, OrganizationID: orgID}
	if err := in.apply(e); err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, e); err != nil {
		return nil, err
	}
	s.logger.Info("event created", zap.String("event_id", e.ID.String()), zap.String("by", p.UserID.String()))
	return e, nil
}

// Get returns an event visible to p.
func (s *Service) Get(ctx context.Context, p authz.Principal, id uuid.UUID) (*models.Event, error) {
	return s.gate.Authorize(ctx, p, id, authz.ActionView)
}

// List returns every event for super admins, otherwise events of p's organization and events p created.
func (s *Service) List(ctx context.Context, p authz.Principal) ([]models.EventSummary, error) {
	return s.store.List(ctx, ListFilter{
		All:            p.IsSuperAdmin(),
		OrganizationID: p.OrganizationID,
		CreatedBy:      p.UserID,
	})
}

// Update changes an event. Ownership fields are not editable.
func (s *Service) Update(ctx context.Context, p authz.Principal, id uuid.UUID, in Input) (*models.Event, error) {
	e, err := s.gate.Authorize(ctx, p, id, authz.ActionEdit)
	if err != nil {
		return nil, err
	}
	in.OrganizationID = nil
	if err := in.apply(e); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// Delete removes an event and everything attached to it.
func (s *Service) Delete(ctx context.Context, p authz.Principal, id uuid.UUID) error {
	if _, err := s.gate.Authorize(ctx, p, id, authz.ActionDelete); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("event deleted", zap.String("event_id", id.String()), zap.String("by", p.UserID.String()))
	return nil
}

// AssetUpload is a presigned direct upload for an event asset.
type AssetUpload struct {
	UploadURL string `json:"upload_url"`
	Key       string `json:"key"`
	PublicURL string `json:"public_url"`
	ExpiresIn int    `json:"expires_in"`
}

// RequestAssetUpload returns a presigned PUT URL for an event image, organizer logo or venue plan.
// The client stores PublicURL on the event with Update once the upload succeeds.
func (s *Service) RequestAssetUpload(ctx context.Context, p authz.Principal, eventID uuid.UUID, kind, filename string) (*AssetUpload, error) {
	if _, err := s.gate.Authorize(ctx, p, eventID, authz.ActionEdit); err != nil {
		return nil, err
	}
	if !storage.ValidAssetKind(kind) {
		return nil, apperr.Validation("kind must be image, logo or venue_plan")
	}
	contentType := storage.ContentTypeForFilename(filename)
	if contentType == "" {
		return nil, apperr.Validation("file type not allowed")
	}
	if s.assets == nil {
		return nil, apperr.Internal(errStorageDisabled, "asset storage is not configured")
	}
	bucket := s.assets.AssetsBucket()
	key := storage.AssetKey(eventID.String(), kind, uuid.NewString(), filename)
	expires := s.assets.PresignExpire()
	url, err := s.assets.GeneratePresignedUploadURL(ctx, bucket, key, contentType, expires)
	if err != nil {
		return nil, apperr.Internal(err, "failed to generate upload url")
	}
	return &AssetUpload{
		UploadURL: url,
		Key:       key,
		PublicURL: s.assets.PublicObjectURL(bucket, key),
		ExpiresIn: int(expires.Seconds()),
	}, nil
}

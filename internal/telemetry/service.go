package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/plantcare/internal/config"
	"github.com/sells-group/plantcare/internal/model"
	"github.com/sells-group/plantcare/internal/resilience"
	"github.com/sells-group/plantcare/internal/store"
)

// Sentinel errors.
var (
	// ErrInvalidItem marks an item rejected by validation. The wrapped message
	// carries the reason.
	ErrInvalidItem = eris.New("telemetry: invalid item")
	// ErrInvalidBatch is returned for an empty or oversized batch.
	ErrInvalidBatch = eris.New("telemetry: invalid batch")
	// ErrBatchFailed is returned when every item of a batch failed.
	ErrBatchFailed = eris.New("telemetry: every batch item failed")
	// ErrDeferred is returned when the store rejected an item that was then
	// queued for retry.
	ErrDeferred = eris.New("telemetry: item deferred for retry")
	// ErrSyncNotFound is returned for an unknown sync status ID.
	ErrSyncNotFound = eris.New("telemetry: sync status not found")
	// ErrInvalidTransition is returned when a sync status cannot make the
	// requested move.
	ErrInvalidTransition = eris.New("telemetry: invalid sync transition")
)

// Store is the persistence the ingestion service needs. store.Store
// satisfies it.
type Store interface {
	GetPlant(ctx context.Context, plantID string) (*model.Plant, error)
	InsertLightReading(ctx context.Context, r *model.LightReading) error
	InsertGrowthPhoto(ctx context.Context, p *model.GrowthPhoto) error
	GetLightReadingByClientID(ctx context.Context, userID, clientID string) (*model.LightReading, error)
	GetGrowthPhotoByClientID(ctx context.Context, userID, clientID string) (*model.GrowthPhoto, error)
	UpdateLightReading(ctx context.Context, r *model.LightReading) error
	UpdateGrowthPhoto(ctx context.Context, p *model.GrowthPhoto) error
	SaveSyncStatus(ctx context.Context, s *model.TelemetrySyncStatus) error
	GetSyncStatus(ctx context.Context, id string) (*model.TelemetrySyncStatus, error)
	ListDueSyncStatuses(ctx context.Context, now time.Time, limit int) ([]model.TelemetrySyncStatus, error)
}

// Receipt reports what happened to one ingested item.
type Receipt struct {
	ID        string           `json:"id"`
	ItemType  string           `json:"item_type"`
	ClientID  string           `json:"client_id,omitempty"`
	Status    model.SyncStatus `json:"status"`
	SyncID    string           `json:"sync_id,omitempty"`
	Duplicate bool             `json:"duplicate,omitempty"`
}

// Service ingests telemetry and manages sync state.
type Service struct {
	store    Store
	cfg      config.TelemetryConfig
	schedule resilience.SyncSchedule
	nowFunc  func() time.Time
}

// NewService validates cfg and returns a Service.
func NewService(st Store, cfg config.TelemetryConfig) (*Service, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return &Service{
		store:    st,
		cfg:      cfg,
		schedule: resilience.FromTelemetryConfig(cfg),
		nowFunc:  func() time.Time { return time.Now().UTC() },
	}, nil
}

// IngestLightReading stores one light reading. A reading whose client ID was
// already stored with a different payload is recorded as a conflict.
func (s *Service) IngestLightReading(ctx context.Context, r *model.LightReading) (*Receipt, error) {
	if err := validateLightReading(r, s.nowFunc()); err != nil {
		return nil, err
	}
	return s.ingest(ctx, lightItem(r))
}

// IngestGrowthPhoto stores one growth photo reference.
func (s *Service) IngestGrowthPhoto(ctx context.Context, p *model.GrowthPhoto) (*Receipt, error) {
	if err := validateGrowthPhoto(p, s.nowFunc()); err != nil {
		return nil, err
	}
	return s.ingest(ctx, photoItem(p))
}

func (s *Service) ingest(ctx context.Context, it item) (*Receipt, error) {
	if err := s.checkPlant(ctx, it); err != nil {
		return nil, err
	}
	log := zap.L().With(zap.String("item_type", it.kind), zap.String("plant_id", it.plantID))

	if it.clientID == "" {
		id, err := it.insert(ctx, s.store)
		if err != nil {
			return nil, resilience.NewTransientError(eris.Wrapf(err, "telemetry: store %s", it.kind), 0)
		}
		return &Receipt{ID: id, ItemType: it.kind, Status: model.SyncSynced}, nil
	}

	if r, err := s.existing(ctx, it); err != nil || r != nil {
		return r, err
	}

	payload, err := json.Marshal(it.payload)
	if err != nil {
		return nil, eris.Wrapf(err, "telemetry: encode %s payload", it.kind)
	}
	now := s.nowFunc()
	st, err := model.NewSyncStatus(model.TelemetrySyncStatus{
		ItemType:   it.kind,
		ClientID:   it.clientID,
		UserID:     it.userID,
		MaxRetries: s.schedule.MaxRetries,
		Payload:    payload,
	}, now)
	if err != nil {
		return nil, eris.Wrap(err, "telemetry: new sync status")
	}
	if err := advance(st, model.SyncInProgress); err != nil {
		return nil, err
	}

	id, err := it.insert(ctx, s.store)
	switch {
	case errors.Is(err, store.ErrDuplicate):
		// Another request stored the same client item first.
		r, lerr := s.existing(ctx, it)
		if lerr != nil {
			return nil, lerr
		}
		if r != nil {
			return r, nil
		}
		return nil, s.deferItem(ctx, st, err)
	case err != nil:
		return nil, s.deferItem(ctx, st, err)
	}

	st.ItemID = id
	if err := advance(st, model.SyncSynced); err != nil {
		return nil, err
	}
	st.UpdatedAt = s.nowFunc()
	if err := s.store.SaveSyncStatus(ctx, st); err != nil {
		log.Warn("telemetry: save sync status", zap.String("client_id", it.clientID), zap.Error(err))
	}
	return &Receipt{ID: id, ItemType: it.kind, ClientID: it.clientID, Status: model.SyncSynced, SyncID: st.ID}, nil
}

// existing resolves an item whose client ID is already stored: an identical
// payload is an idempotent duplicate, a different one becomes a conflict.
// It returns nil when nothing is stored under the client ID.
func (s *Service) existing(ctx context.Context, it item) (*Receipt, error) {
	id, same, err := it.lookup(ctx, s.store)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "telemetry: look up %s %s", it.kind, it.clientID)
	}
	if same {
		return &Receipt{ID: id, ItemType: it.kind, ClientID: it.clientID, Status: model.SyncSynced, Duplicate: true}, nil
	}

	payload, err := json.Marshal(it.payload)
	if err != nil {
		return nil, eris.Wrapf(err, "telemetry: encode %s payload", it.kind)
	}
	st, err := model.NewSyncStatus(model.TelemetrySyncStatus{
		ItemType:   it.kind,
		ItemID:     id,
		ClientID:   it.clientID,
		UserID:     it.userID,
		Status:     model.SyncConflict,
		MaxRetries: s.schedule.MaxRetries,
		LastError:  "client payload differs from stored item",
		Payload:    payload,
	}, s.nowFunc())
	if err != nil {
		return nil, eris.Wrap(err, "telemetry: new sync status")
	}
	if err := s.store.SaveSyncStatus(ctx, st); err != nil {
		return nil, eris.Wrap(err, "telemetry: save conflict")
	}
	zap.L().Info("telemetry: sync conflict recorded",
		zap.String("item_type", it.kind), zap.String("client_id", it.clientID), zap.String("sync_id", st.ID))
	return &Receipt{ID: id, ItemType: it.kind, ClientID: it.clientID, Status: model.SyncConflict, SyncID: st.ID}, nil
}

// deferItem records a failed sync status with its next retry time and returns
// a transient ErrDeferred.
func (s *Service) deferItem(ctx context.Context, st *model.TelemetrySyncStatus, cause error) error {
	now := s.nowFunc()
	st.LastError = cause.Error()
	st.NextRetryAt = s.schedule.NextRetryAt(now, st.RetryCount)
	if err := advance(st, model.SyncFailed); err != nil {
		return err
	}
	st.UpdatedAt = now
	if err := s.store.SaveSyncStatus(ctx, st); err != nil {
		zap.L().Error("telemetry: save failed sync status",
			zap.String("client_id", st.ClientID), zap.NamedError("cause", cause), zap.Error(err))
	}
	return resilience.NewTransientError(
		eris.Wrapf(ErrDeferred, "%s %s (sync %s): %v", st.ItemType, st.ClientID, st.ID, cause), 0)
}

func (s *Service) checkPlant(ctx context.Context, it item) error {
	plant, err := s.store.GetPlant(ctx, it.plantID)
	if errors.Is(err, store.ErrNotFound) {
		return eris.Wrapf(ErrInvalidItem, "unknown plant %s", it.plantID)
	}
	if err != nil {
		return eris.Wrapf(err, "telemetry: load plant %s", it.plantID)
	}
	if plant.UserID != "" && plant.UserID != it.userID {
		return eris.Wrapf(ErrInvalidItem, "plant %s belongs to another user", it.plantID)
	}
	return nil
}

func advance(st *model.TelemetrySyncStatus, to model.SyncStatus) error {
	if !model.CanTransition(st.Status, to) {
		return eris.Wrapf(ErrInvalidTransition, "%s -> %s", st.Status, to)
	}
	st.Status = to
	return nil
}

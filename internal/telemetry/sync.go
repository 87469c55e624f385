package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/plantcare/internal/model"
	"github.com/sells-group/plantcare/internal/store"
)

// RetrySummary counts the outcomes of one retry pass.
type RetrySummary struct {
	Attempted int `json:"attempted"`
	Synced    int `json:"synced"`
	Conflicts int `json:"conflicts"`
	Failed    int `json:"failed"`
	Exhausted int `json:"exhausted"`
}

// RetryDue replays failed items whose next_retry_at has passed.
func (s *Service) RetryDue(ctx context.Context) (*RetrySummary, error) {
	now := s.nowFunc()
	due, err := s.store.ListDueSyncStatuses(ctx, now, s.cfg.RetryBatchSize)
	if err != nil {
		return nil, eris.Wrap(err, "telemetry: list due sync statuses")
	}

	var (
		mu  sync.Mutex
		sum = &RetrySummary{Attempted: len(due)}
	)
	var g errgroup.Group
	g.SetLimit(s.cfg.BatchConcurrency)
	for i := range due {
		g.Go(func() error {
			outcome := s.retry(ctx, &due[i])
			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case model.SyncSynced:
				sum.Synced++
			case model.SyncConflict:
				sum.Conflicts++
			default:
				sum.Failed++
				if !due[i].CanRetry() {
					sum.Exhausted++
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	if sum.Attempted > 0 {
		zap.L().Info("telemetry: retry pass",
			zap.Int("attempted", sum.Attempted),
			zap.Int("synced", sum.Synced),
			zap.Int("conflicts", sum.Conflicts),
			zap.Int("failed", sum.Failed),
			zap.Int("exhausted", sum.Exhausted),
		)
	}
	return sum, nil
}

// retry replays one failed item and returns its resulting status.
func (s *Service) retry(ctx context.Context, st *model.TelemetrySyncStatus) model.SyncStatus {
	log := zap.L().With(zap.String("sync_id", st.ID), zap.String("client_id", st.ClientID))

	if err := advance(st, model.SyncInProgress); err != nil {
		log.Warn("telemetry: skip retry", zap.Error(err))
		return st.Status
	}
	st.RetryCount++
	st.NextRetryAt = nil

	it, err := decodeItem(st.ItemType, st.Payload)
	if err == nil {
		var id string
		id, err = it.insert(ctx, s.store)
		if errors.Is(err, store.ErrDuplicate) {
			var same bool
			id, same, err = it.lookup(ctx, s.store)
			if err == nil && !same {
				st.ItemID = id
				st.Status = model.SyncConflict
				st.LastError = "client payload differs from stored item"
				s.saveRetried(ctx, st, log)
				return model.SyncConflict
			}
		}
		if err == nil {
			st.ItemID = id
			st.LastError = ""
			st.Status = model.SyncSynced
			s.saveRetried(ctx, st, log)
			return model.SyncSynced
		}
	}

	st.Status = model.SyncFailed
	st.LastError = err.Error()
	st.NextRetryAt = s.schedule.NextRetryAt(s.nowFunc(), st.RetryCount)
	if st.RetryCount >= st.MaxRetries {
		st.NextRetryAt = nil
	}
	log.Warn("telemetry: retry failed", zap.Int("retry_count", st.RetryCount), zap.Error(err))
	s.saveRetried(ctx, st, log)
	return model.SyncFailed
}

func (s *Service) saveRetried(ctx context.Context, st *model.TelemetrySyncStatus, log *zap.Logger) {
	st.UpdatedAt = s.nowFunc()
	if err := s.store.SaveSyncStatus(ctx, st); err != nil {
		log.Error("telemetry: save retried sync status", zap.Error(err))
	}
}

// GetSyncStatus returns one sync status.
func (s *Service) GetSyncStatus(ctx context.Context, id string) (*model.TelemetrySyncStatus, error) {
	st, err := s.store.GetSyncStatus(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, eris.Wrapf(ErrSyncNotFound, "sync %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "telemetry: get sync status %s", id)
	}
	return st, nil
}

// ResolveConflict applies the owner's decision to a conflicting item and
// marks it synced. keep_server leaves the stored item untouched, keep_client
// overwrites it with the client payload, merge combines the two.
func (s *Service) ResolveConflict(ctx context.Context, syncID, userID string, resolution model.ConflictResolution) (*model.TelemetrySyncStatus, error) {
	if !resolution.Valid() {
		return nil, eris.Wrapf(ErrInvalidItem, "unknown resolution %q", resolution)
	}
	st, err := s.GetSyncStatus(ctx, syncID)
	if err != nil {
		return nil, err
	}
	if st.UserID != userID {
		return nil, eris.Wrapf(ErrInvalidItem, "sync %s belongs to another user", syncID)
	}
	if st.Status != model.SyncConflict {
		return nil, eris.Wrapf(ErrInvalidTransition, "sync %s is %s, not conflict", syncID, st.Status)
	}

	if resolution != model.ResolveKeepServer {
		if err := s.applyClient(ctx, st, resolution == model.ResolveMerge); err != nil {
			return nil, err
		}
	}

	st.Status = model.SyncSynced
	st.Resolution = resolution
	st.LastError = ""
	st.NextRetryAt = nil
	st.UpdatedAt = s.nowFunc()
	if err := s.store.SaveSyncStatus(ctx, st); err != nil {
		return nil, eris.Wrapf(err, "telemetry: save resolved sync %s", syncID)
	}
	zap.L().Info("telemetry: conflict resolved", zap.String("sync_id", syncID), zap.String("resolution", string(resolution)))
	return st, nil
}

// applyClient writes the client payload, or its merge with the stored item,
// over the stored item.
func (s *Service) applyClient(ctx context.Context, st *model.TelemetrySyncStatus, merge bool) error {
	switch st.ItemType {
	case model.ItemLightReading:
		var client model.LightReading
		if err := json.Unmarshal(st.Payload, &client); err != nil {
			return eris.Wrap(err, "telemetry: decode conflict payload")
		}
		server, err := s.store.GetLightReadingByClientID(ctx, st.UserID, st.ClientID)
		if err != nil {
			return eris.Wrapf(err, "telemetry: load stored light reading %s", st.ClientID)
		}
		next := &client
		if merge {
			next = mergeLightReadings(server, &client)
		}
		next.ID = server.ID
		return eris.Wrap(s.store.UpdateLightReading(ctx, next), "telemetry: update light reading")
	case model.ItemGrowthPhoto:
		var client model.GrowthPhoto
		if err := json.Unmarshal(st.Payload, &client); err != nil {
			return eris.Wrap(err, "telemetry: decode conflict payload")
		}
		server, err := s.store.GetGrowthPhotoByClientID(ctx, st.UserID, st.ClientID)
		if err != nil {
			return eris.Wrapf(err, "telemetry: load stored growth photo %s", st.ClientID)
		}
		next := &client
		if merge {
			next = mergeGrowthPhotos(server, &client)
		}
		next.ID = server.ID
		return eris.Wrap(s.store.UpdateGrowthPhoto(ctx, next), "telemetry: update growth photo")
	}
	return eris.Wrapf(ErrInvalidItem, "unknown item type %q", st.ItemType)
}

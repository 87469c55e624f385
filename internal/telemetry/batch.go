package telemetry

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/plantcare/internal/model"
	"github.com/sells-group/plantcare/internal/tracing"
)

type batchOutcome struct {
	receipt *Receipt
	err     error
}

// IngestBatch processes a mixed batch item by item. One item's failure never
// affects its siblings. Items without a user ID take userID.
//
// When every item fails the itemised result is returned together with
// ErrBatchFailed.
func (s *Service) IngestBatch(ctx context.Context, userID string, items []model.BatchItem) (_ *model.BatchResult, err error) {
	if len(items) == 0 {
		return nil, eris.Wrap(ErrInvalidBatch, "batch is empty")
	}
	if len(items) > s.cfg.MaxBatchSize {
		return nil, eris.Wrapf(ErrInvalidBatch, "batch has %d items, limit %d", len(items), s.cfg.MaxBatchSize)
	}

	ctx, span := tracing.StartSpan(ctx, "telemetry.batch", attribute.Int("items", len(items)))
	defer func() { span.End(err) }()

	outcomes := make([]batchOutcome, len(items))
	var g errgroup.Group
	g.SetLimit(s.cfg.BatchConcurrency)
	for i := range items {
		g.Go(func() error {
			r, ierr := s.ingestBatchItem(ctx, userID, items[i])
			outcomes[i] = batchOutcome{receipt: r, err: ierr}
			return nil
		})
	}
	_ = g.Wait()

	result := &model.BatchResult{
		TotalItems: len(items),
		CreatedIDs: []string{},
		Errors:     []model.BatchItemError{},
	}
	for i, o := range outcomes {
		switch {
		case o.err != nil:
			result.Errors = append(result.Errors, model.BatchItemError{
				Index: i, ClientID: clientID(items[i]), Error: o.err.Error(),
			})
		case o.receipt.Status == model.SyncConflict:
			result.Errors = append(result.Errors, model.BatchItemError{
				Index: i, ClientID: o.receipt.ClientID,
				Error: fmt.Sprintf("conflicts with stored item %s; resolve sync %s", o.receipt.ID, o.receipt.SyncID),
			})
		default:
			result.CreatedIDs = append(result.CreatedIDs, o.receipt.ID)
		}
	}
	result.FailedItems = len(result.Errors)
	result.SuccessfulItems = len(result.CreatedIDs)
	if err := result.Validate(); err != nil {
		return nil, eris.Wrap(err, "telemetry: batch result")
	}

	span.SetAttributes(attribute.Int("failed", result.FailedItems))
	zap.L().Info("telemetry: batch processed",
		zap.String("user_id", userID),
		zap.Int("total", result.TotalItems),
		zap.Int("successful", result.SuccessfulItems),
		zap.Int("failed", result.FailedItems),
	)
	if result.SuccessfulItems == 0 {
		return result, eris.Wrapf(ErrBatchFailed, "%d items", result.TotalItems)
	}
	return result, nil
}

func (s *Service) ingestBatchItem(ctx context.Context, userID string, bi model.BatchItem) (*Receipt, error) {
	switch {
	case bi.Type == model.ItemLightReading && bi.LightReading != nil && bi.GrowthPhoto == nil:
		r := *bi.LightReading
		if err := claim(&r.UserID, userID); err != nil {
			return nil, err
		}
		return s.IngestLightReading(ctx, &r)
	case bi.Type == model.ItemGrowthPhoto && bi.GrowthPhoto != nil && bi.LightReading == nil:
		p := *bi.GrowthPhoto
		if err := claim(&p.UserID, userID); err != nil {
			return nil, err
		}
		return s.IngestGrowthPhoto(ctx, &p)
	}
	return nil, eris.Wrapf(ErrInvalidItem, "item type %q does not match its payload", bi.Type)
}

// claim sets an empty owner to userID and rejects a different one.
func claim(owner *string, userID string) error {
	if *owner == "" {
		*owner = userID
		return nil
	}
	if userID != "" && *owner != userID {
		return eris.Wrapf(ErrInvalidItem, "item belongs to user %s", *owner)
	}
	return nil
}

func clientID(bi model.BatchItem) string {
	switch {
	case bi.LightReading != nil:
		return bi.LightReading.ClientID
	case bi.GrowthPhoto != nil:
		return bi.GrowthPhoto.ClientID
	}
	return ""
}

package telemetry

import (
	"context"
	"encoding/json"
	"math"
	"net/url"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/plantcare/internal/model"
)

// Measurement bounds for client-captured items.
const (
	maxPPFD            = 3000.0
	maxLux             = 200000.0
	maxDurationMinutes = 24 * 60
	maxHeightCM        = 2000.0
	maxLeafCount       = 10000
	maxNotesLen        = 2000
	clockSkew          = 5 * time.Minute
)

// item adapts one telemetry payload to the generic ingest flow.
type item struct {
	kind     string
	clientID string
	userID   string
	plantID  string
	payload  any

	insert func(ctx context.Context, st Store) (string, error)
	// lookup returns the stored item with the same client ID and whether
	// its payload matches.
	lookup func(ctx context.Context, st Store) (id string, same bool, err error)
}

func lightItem(r *model.LightReading) item {
	return item{
		kind:     model.ItemLightReading,
		clientID: r.ClientID,
		userID:   r.UserID,
		plantID:  r.PlantID,
		payload:  r,
		insert: func(ctx context.Context, st Store) (string, error) {
			cp := *r
			cp.ID = ""
			if err := st.InsertLightReading(ctx, &cp); err != nil {
				return "", err
			}
			return cp.ID, nil
		},
		lookup: func(ctx context.Context, st Store) (string, bool, error) {
			got, err := st.GetLightReadingByClientID(ctx, r.UserID, r.ClientID)
			if err != nil {
				return "", false, err
			}
			return got.ID, sameLightReading(got, r), nil
		},
	}
}

func photoItem(p *model.GrowthPhoto) item {
	return item{
		kind:     model.ItemGrowthPhoto,
		clientID: p.ClientID,
		userID:   p.UserID,
		plantID:  p.PlantID,
		payload:  p,
		insert: func(ctx context.Context, st Store) (string, error) {
			cp := *p
			cp.ID = ""
			if err := st.InsertGrowthPhoto(ctx, &cp); err != nil {
				return "", err
			}
			return cp.ID, nil
		},
		lookup: func(ctx context.Context, st Store) (string, bool, error) {
			got, err := st.GetGrowthPhotoByClientID(ctx, p.UserID, p.ClientID)
			if err != nil {
				return "", false, err
			}
			return got.ID, sameGrowthPhoto(got, p), nil
		},
	}
}

// decodeItem rebuilds an item from a stored sync payload.
func decodeItem(itemType string, payload []byte) (item, error) {
	switch itemType {
	case model.ItemLightReading:
		var r model.LightReading
		if err := json.Unmarshal(payload, &r); err != nil {
			return item{}, eris.Wrap(err, "telemetry: decode light reading payload")
		}
		return lightItem(&r), nil
	case model.ItemGrowthPhoto:
		var p model.GrowthPhoto
		if err := json.Unmarshal(payload, &p); err != nil {
			return item{}, eris.Wrap(err, "telemetry: decode growth photo payload")
		}
		return photoItem(&p), nil
	}
	return item{}, eris.Wrapf(ErrInvalidItem, "unknown item type %q", itemType)
}

func validateLightReading(r *model.LightReading, now time.Time) error {
	if r == nil {
		return eris.Wrap(ErrInvalidItem, "light reading is empty")
	}
	if err := validateCommon(r.PlantID, r.UserID, r.RecordedAt, now); err != nil {
		return err
	}
	if math.IsNaN(r.PPFD) || r.PPFD < 0 || r.PPFD > maxPPFD {
		return eris.Wrapf(ErrInvalidItem, "ppfd %v outside [0,%v]", r.PPFD, maxPPFD)
	}
	if r.Lux != nil && (math.IsNaN(*r.Lux) || *r.Lux < 0 || *r.Lux > maxLux) {
		return eris.Wrapf(ErrInvalidItem, "lux %v outside [0,%v]", *r.Lux, maxLux)
	}
	if r.DurationMinutes < 0 || r.DurationMinutes > maxDurationMinutes {
		return eris.Wrapf(ErrInvalidItem, "duration_minutes %d outside [0,%d]", r.DurationMinutes, maxDurationMinutes)
	}
	return nil
}

func validateGrowthPhoto(p *model.GrowthPhoto, now time.Time) error {
	if p == nil {
		return eris.Wrap(ErrInvalidItem, "growth photo is empty")
	}
	if err := validateCommon(p.PlantID, p.UserID, p.RecordedAt, now); err != nil {
		return err
	}
	u, err := url.Parse(p.PhotoURL)
	if p.PhotoURL == "" || err != nil || u.Scheme == "" || u.Host == "" {
		return eris.Wrapf(ErrInvalidItem, "photo_url %q is not an absolute URL", p.PhotoURL)
	}
	if p.HeightCM != nil && (math.IsNaN(*p.HeightCM) || *p.HeightCM < 0 || *p.HeightCM > maxHeightCM) {
		return eris.Wrapf(ErrInvalidItem, "height_cm %v outside [0,%v]", *p.HeightCM, maxHeightCM)
	}
	if p.LeafCount != nil && (*p.LeafCount < 0 || *p.LeafCount > maxLeafCount) {
		return eris.Wrapf(ErrInvalidItem, "leaf_count %d outside [0,%d]", *p.LeafCount, maxLeafCount)
	}
	if len(p.Notes) > maxNotesLen {
		return eris.Wrapf(ErrInvalidItem, "notes longer than %d bytes", maxNotesLen)
	}
	return nil
}

func validateCommon(plantID, userID string, recordedAt, now time.Time) error {
	switch {
	case plantID == "":
		return eris.Wrap(ErrInvalidItem, "plant_id is required")
	case userID == "":
		return eris.Wrap(ErrInvalidItem, "user_id is required")
	case recordedAt.IsZero():
		return eris.Wrap(ErrInvalidItem, "recorded_at is required")
	case recordedAt.After(now.Add(clockSkew)):
		return eris.Wrapf(ErrInvalidItem, "recorded_at %s is in the future", recordedAt.Format(time.RFC3339))
	}
	return nil
}

func sameLightReading(a, b *model.LightReading) bool {
	return a.PlantID == b.PlantID &&
		a.PPFD == b.PPFD &&
		equalPtr(a.Lux, b.Lux) &&
		a.DurationMinutes == b.DurationMinutes &&
		a.RecordedAt.Equal(b.RecordedAt)
}

func sameGrowthPhoto(a, b *model.GrowthPhoto) bool {
	return a.PlantID == b.PlantID &&
		a.PhotoURL == b.PhotoURL &&
		equalPtr(a.HeightCM, b.HeightCM) &&
		equalPtr(a.LeafCount, b.LeafCount) &&
		a.Notes == b.Notes &&
		a.RecordedAt.Equal(b.RecordedAt)
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// mergeLightReadings averages the two PPFD values and keeps the server's
// optional fields, filling gaps from the client.
func mergeLightReadings(server, client *model.LightReading) *model.LightReading {
	out := *server
	out.PPFD = (server.PPFD + client.PPFD) / 2
	if out.Lux == nil {
		out.Lux = client.Lux
	}
	out.DurationMinutes = max(server.DurationMinutes, client.DurationMinutes)
	return &out
}

// mergeGrowthPhotos keeps the server's photo and fills missing measurements
// from the client. Differing notes are concatenated.
func mergeGrowthPhotos(server, client *model.GrowthPhoto) *model.GrowthPhoto {
	out := *server
	if out.HeightCM == nil {
		out.HeightCM = client.HeightCM
	}
	if out.LeafCount == nil {
		out.LeafCount = client.LeafCount
	}
	switch {
	case out.Notes == "":
		out.Notes = client.Notes
	case client.Notes != "" && client.Notes != out.Notes:
		out.Notes = out.Notes + "\n" + client.Notes
	}
	return &out
}

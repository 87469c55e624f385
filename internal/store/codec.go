package store

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"

	"github.com/sells-group/plantcare/internal/model"
)

// encodeLocation returns the WKB encoding of a plant location, or nil.
func encodeLocation(loc *model.Location) ([]byte, error) {
	if loc == nil || loc.Point == nil {
		return nil, nil
	}
	data, err := wkb.Marshal(loc.Point, wkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "store: encode location")
	}
	return data, nil
}

func decodeLocation(data []byte) (*model.Location, error) {
	if len(data) == 0 {
		return nil, nil
	}
	g, err := wkb.Unmarshal(data)
	if err != nil {
		return nil, eris.Wrap(err, "store: decode location")
	}
	pt, ok := g.(*geom.Point)
	if !ok {
		return nil, eris.Errorf("store: location is %T, want point", g)
	}
	return &model.Location{Point: pt}, nil
}

type planBlobs struct {
	plan      []byte
	rationale []byte
	sources   []byte
}

func encodePlan(p *model.CarePlan) (*planBlobs, error) {
	planJSON, err := json.Marshal(p.Plan)
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal plan content")
	}
	rationaleJSON, err := json.Marshal(p.Rationale)
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal rationale")
	}
	sources := p.DataSources
	if sources == nil {
		sources = []string{}
	}
	sourcesJSON, err := json.Marshal(sources)
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal data sources")
	}
	return &planBlobs{plan: planJSON, rationale: rationaleJSON, sources: sourcesJSON}, nil
}

func decodePlan(p *model.CarePlan, b planBlobs) error {
	if err := json.Unmarshal(b.plan, &p.Plan); err != nil {
		return eris.Wrap(err, "store: unmarshal plan content")
	}
	if len(b.rationale) > 0 {
		if err := json.Unmarshal(b.rationale, &p.Rationale); err != nil {
			return eris.Wrap(err, "store: unmarshal rationale")
		}
	}
	if len(b.sources) > 0 {
		if err := json.Unmarshal(b.sources, &p.DataSources); err != nil {
			return eris.Wrap(err, "store: unmarshal data sources")
		}
	}
	return nil
}

func encodeStrings(vals []string) ([]byte, error) {
	if vals == nil {
		vals = []string{}
	}
	data, err := json.Marshal(vals)
	return data, eris.Wrap(err, "store: marshal strings")
}

func decodeStrings(data []byte) ([]string, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var vals []string
	if err := json.Unmarshal(data, &vals); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal strings")
	}
	return vals, nil
}

// nullIfEmpty maps "" to SQL NULL so partial unique indexes ignore it.
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// scannable is satisfied by pgx.Row, pgx.Rows, *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

func scanPlan(row scannable) (*model.CarePlan, error) {
	var p model.CarePlan
	var status string
	var b planBlobs
	if err := row.Scan(
		&p.ID, &p.PlantID, &p.UserID, &p.Version, &status, &b.plan, &b.rationale, &p.ConfidenceScore,
		&p.ValidFrom, &p.ValidTo, &p.AcknowledgedAt, &p.GenerationTimeMS, &b.sources, &p.FallbackUsed, &p.CreatedAt,
	); err != nil {
		return nil, err
	}
	p.Status = model.PlanStatus(status)
	if err := decodePlan(&p, b); err != nil {
		return nil, err
	}
	return &p, nil
}

func scanGrowthPhoto(row scannable) (*model.GrowthPhoto, error) {
	var p model.GrowthPhoto
	var client *string
	if err := row.Scan(&p.ID, &client, &p.PlantID, &p.UserID, &p.PhotoURL, &p.HeightCM, &p.LeafCount,
		&p.Notes, &p.RecordedAt, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.ClientID = derefString(client)
	return &p, nil
}

func scanSyncStatus(row scannable) (*model.TelemetrySyncStatus, error) {
	var st model.TelemetrySyncStatus
	var status, resolution string
	var payload []byte
	if err := row.Scan(&st.ID, &st.ItemType, &st.ItemID, &st.ClientID, &st.UserID, &status, &st.RetryCount,
		&st.MaxRetries, &st.NextRetryAt, &st.LastError, &resolution, &payload, &st.CreatedAt, &st.UpdatedAt); err != nil {
		return nil, err
	}
	st.Status = model.SyncStatus(status)
	st.Resolution = model.ConflictResolution(resolution)
	if len(payload) > 0 {
		st.Payload = payload
	}
	return &st, nil
}

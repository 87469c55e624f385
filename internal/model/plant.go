package model

import (
	"encoding/json"
	"math"
	"time"

	"github.com/twpayne/go-geom"
)

// Plant is the subject of a care plan.
type Plant struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Species   string    `json:"species"`
	AgeDays   int       `json:"age_days"`
	PotSizeCM float64   `json:"pot_size_cm"`
	Indoor    bool      `json:"indoor"`
	Location  *Location `json:"location,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Location is the geographic position used for weather and daylight lookups.
type Location struct {
	Point *geom.Point `json:"-"`
}

// NewLocation builds a Location from latitude and longitude in degrees.
func NewLocation(lat, lon float64) *Location {
	return &Location{Point: geom.NewPointFlat(geom.XY, []float64{lon, lat})}
}

// Lat returns the latitude in degrees.
func (l *Location) Lat() float64 {
	if l == nil || l.Point == nil {
		return 0
	}
	return l.Point.Y()
}

// Lon returns the longitude in degrees.
func (l *Location) Lon() float64 {
	if l == nil || l.Point == nil {
		return 0
	}
	return l.Point.X()
}

// Valid reports whether the location holds finite, in-range coordinates.
func (l *Location) Valid() bool {
	if l == nil || l.Point == nil {
		return false
	}
	lat, lon := l.Lat(), l.Lon()
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// SouthernHemisphere reports whether the location lies south of the equator.
func (l *Location) SouthernHemisphere() bool {
	return l.Valid() && l.Lat() < 0
}

type locationJSON struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// MarshalJSON encodes the location as {"lat":..,"lon":..}.
func (l Location) MarshalJSON() ([]byte, error) {
	return json.Marshal(locationJSON{Lat: l.Lat(), Lon: l.Lon()})
}

// UnmarshalJSON decodes {"lat":..,"lon":..}.
func (l *Location) UnmarshalJSON(data []byte) error {
	var v locationJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*l = *NewLocation(v.Lat, v.Lon)
	return nil
}

package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/plantcare/internal/model"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Monstera Deliciosa", "monstera_deliciosa"},
		{"  Ficus-Lyrata!! ", "ficus_lyrata"},
		{"Café Plant", "cafe_plant"},
		{"SNAKE__plant", "snake_plant"},
		{"", ""},
		{"---", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), tt.in)
	}
}

func TestCatalog_Resolve(t *testing.T) {
	c, err := LoadCatalog("")
	require.NoError(t, err)

	tests := []struct {
		species     string
		wantProfile string
		wantMatch   model.ProfileMatch
	}{
		{"Monstera", "monstera", model.MatchExact},
		{"Swiss Cheese Plant", "monstera", model.MatchExact},
		{"ficus_lyrata", "ficus", model.MatchPartial},
		{"Variegated Monstera Deliciosa", "monstera", model.MatchPartial},
		{"basi", "basil", model.MatchPartial},
		{"plant", DefaultProfileName, model.MatchDefault},
		{"Triffid", DefaultProfileName, model.MatchDefault},
		{"", DefaultProfileName, model.MatchDefault},
	}
	for _, tt := range tests {
		t.Run(tt.species, func(t *testing.T) {
			p, match := c.Resolve(tt.species)
			assert.Equal(t, tt.wantProfile, p.Name)
			assert.Equal(t, tt.wantMatch, match)
		})
	}
}

func TestNewCatalog_Rejects(t *testing.T) {
	_, err := NewCatalog([]Profile{DefaultProfile()})
	assert.ErrorContains(t, err, "reserved")

	bad := DefaultProfile()
	bad.Name = "jade"
	bad.SoilMoistureTarget = 1.5
	_, err = NewCatalog([]Profile{bad})
	assert.ErrorContains(t, err, "soil_moisture_target")
}

func TestLoadCatalog_MergesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
profiles:
  - name: jade
    aliases: [crassula_ovata]
    watering_interval_days: 12
    water_amount_ml: 200
    fertilizer_interval_days: 60
    fertilizer_type: cactus_fertilizer
    light_ppfd_min: 200
    light_ppfd_max: 600
    soil_moisture_target: 0.2
    review_interval_days: 14
  - name: Monstera
    watering_interval_days: 9
    water_amount_ml: 450
    fertilizer_interval_days: 30
    fertilizer_type: balanced_liquid
    light_ppfd_min: 150
    light_ppfd_max: 400
    soil_moisture_target: 0.5
    review_interval_days: 7
`), 0o600))

	c, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.Equal(t, len(BuiltinProfiles())+1, c.Len())

	p, match := c.Resolve("Crassula ovata")
	assert.Equal(t, "jade", p.Name)
	assert.Equal(t, model.MatchExact, match)

	p, _ = c.Resolve("monstera")
	assert.Equal(t, 9.0, p.WateringIntervalDays)
}

func TestLoadCatalog_Errors(t *testing.T) {
	_, err := LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("profiles: [\n"), 0o600))
	_, err = LoadCatalog(path)
	assert.ErrorContains(t, err, "parse profiles")
}

func TestCatalog_ProfilesSorted(t *testing.T) {
	c, err := LoadCatalog("")
	require.NoError(t, err)
	ps := c.Profiles()
	require.NotEmpty(t, ps)
	for i := 1; i < len(ps); i++ {
		assert.Less(t, ps[i-1].Name, ps[i].Name)
	}
}

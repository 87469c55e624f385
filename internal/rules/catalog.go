package rules

import (
	"os"
	"sort"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/plantcare/internal/model"
)

// DefaultProfileName names the profile used when no species matches.
const DefaultProfileName = "default"

// minReverseMatch is the shortest species string allowed to match as a
// prefix of a longer catalog key.
const minReverseMatch = 4

// Profile is the species care profile the rule engine starts from.
type Profile struct {
	Name                   string   `yaml:"name" json:"name"`
	Aliases                []string `yaml:"aliases,omitempty" json:"aliases,omitempty"`
	WateringIntervalDays   float64  `yaml:"watering_interval_days" json:"watering_interval_days"`
	WaterAmountML          float64  `yaml:"water_amount_ml" json:"water_amount_ml"`
	FertilizerIntervalDays float64  `yaml:"fertilizer_interval_days" json:"fertilizer_interval_days"`
	FertilizerType         string   `yaml:"fertilizer_type" json:"fertilizer_type"`
	LightPPFDMin           float64  `yaml:"light_ppfd_min" json:"light_ppfd_min"`
	LightPPFDMax           float64  `yaml:"light_ppfd_max" json:"light_ppfd_max"`
	SoilMoistureTarget     float64  `yaml:"soil_moisture_target" json:"soil_moisture_target"`
	ReviewIntervalDays     float64  `yaml:"review_interval_days" json:"review_interval_days"`
	Notes                  string   `yaml:"notes,omitempty" json:"notes,omitempty"`
}

func (p Profile) validate() error {
	var errs []string
	if strings.TrimSpace(p.Name) == "" {
		errs = append(errs, "name is required")
	}
	if p.WateringIntervalDays <= 0 {
		errs = append(errs, "watering_interval_days must be > 0")
	}
	if p.WaterAmountML <= 0 {
		errs = append(errs, "water_amount_ml must be > 0")
	}
	if p.FertilizerIntervalDays <= 0 {
		errs = append(errs, "fertilizer_interval_days must be > 0")
	}
	if p.LightPPFDMin < 0 || p.LightPPFDMax < p.LightPPFDMin {
		errs = append(errs, "light_ppfd_min must be >= 0 and <= light_ppfd_max")
	}
	if p.SoilMoistureTarget <= 0 || p.SoilMoistureTarget >= 1 {
		errs = append(errs, "soil_moisture_target must be between 0 and 1")
	}
	if p.ReviewIntervalDays <= 0 {
		errs = append(errs, "review_interval_days must be > 0")
	}
	if len(errs) > 0 {
		return eris.Errorf("rules: profile %q: %s", p.Name, strings.Join(errs, "; "))
	}
	return nil
}

// Catalog resolves species names to care profiles. It is immutable once built.
type Catalog struct {
	profiles map[string]Profile // keyed by normalised profile name
	index    map[string]string  // normalised name or alias -> profile key
	keys     []string           // index keys, longest first then lexical
}

// NewCatalog builds a catalog from profiles. Later profiles replace earlier
// ones with the same normalised name.
func NewCatalog(profiles []Profile) (*Catalog, error) {
	c := &Catalog{profiles: map[string]Profile{}, index: map[string]string{}}
	for _, p := range profiles {
		if err := p.validate(); err != nil {
			return nil, err
		}
		key := Normalize(p.Name)
		if key == DefaultProfileName {
			return nil, eris.Errorf("rules: profile name %q is reserved", p.Name)
		}
		c.profiles[key] = p
	}
	for key, p := range c.profiles {
		c.index[key] = key
		for _, a := range p.Aliases {
			if ak := Normalize(a); ak != "" {
				if _, taken := c.profiles[ak]; !taken {
					c.index[ak] = key
				}
			}
		}
	}
	for k := range c.index {
		c.keys = append(c.keys, k)
	}
	sort.Slice(c.keys, func(i, j int) bool {
		if len(c.keys[i]) != len(c.keys[j]) {
			return len(c.keys[i]) > len(c.keys[j])
		}
		return c.keys[i] < c.keys[j]
	})
	return c, nil
}

// LoadCatalog returns the built-in catalog merged with the profiles in the
// YAML file at path. An empty path yields the built-ins only.
func LoadCatalog(path string) (*Catalog, error) {
	profiles := BuiltinProfiles()
	if path == "" {
		return NewCatalog(profiles)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "rules: read profiles %s", path)
	}
	var file struct {
		Profiles []Profile `yaml:"profiles"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, eris.Wrap(err, "rules: parse profiles")
	}
	return NewCatalog(append(profiles, file.Profiles...))
}

// Resolve finds the profile for species: exact normalised name or alias,
// then the longest catalog key contained in the species (or starting with
// it), then the default profile. It never fails.
func (c *Catalog) Resolve(species string) (Profile, model.ProfileMatch) {
	s := Normalize(species)
	if s == "" {
		return DefaultProfile(), model.MatchDefault
	}
	if key, ok := c.index[s]; ok {
		return c.profiles[key], model.MatchExact
	}
	for _, k := range c.keys {
		if strings.Contains(s, k) || (len(s) >= minReverseMatch && strings.HasPrefix(k, s)) {
			return c.profiles[c.index[k]], model.MatchPartial
		}
	}
	return DefaultProfile(), model.MatchDefault
}

// Profiles returns every profile sorted by name.
func (c *Catalog) Profiles() []Profile {
	out := make([]Profile, 0, len(c.profiles))
	for _, p := range c.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of profiles.
func (c *Catalog) Len() int {
	return len(c.profiles)
}

// Normalize folds a species name to its catalog key: accents stripped, case
// folded, and runs of non-alphanumerics collapsed to "_".
func Normalize(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	s, _, err := transform.String(t, name)
	if err != nil {
		s = name
	}
	s = cases.Fold().String(s)

	var b strings.Builder
	underscore := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			underscore = false
			continue
		}
		if !underscore && b.Len() > 0 {
			b.WriteByte('_')
			underscore = true
		}
	}
	return strings.TrimRight(b.String(), "_")
}

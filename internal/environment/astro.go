package environment

import (
	"math"
	"time"

	"github.com/sells-group/plantcare/internal/model"
)

// SeasonAt returns the meteorological season at t. Southern hemisphere
// seasons are shifted by six months.
func SeasonAt(t time.Time, southern bool) model.Season {
	m := int(t.Month())
	if southern {
		m = (m+5)%12 + 1
	}
	switch m {
	case 3, 4, 5:
		return model.SeasonSpring
	case 6, 7, 8:
		return model.SeasonSummer
	case 9, 10, 11:
		return model.SeasonAutumn
	default:
		return model.SeasonWinter
	}
}

// DaylightHours estimates day length at latitude lat on date t using the
// solar declination approximation. Polar day and night clamp to 24 and 0.
func DaylightHours(lat float64, t time.Time) float64 {
	doy := float64(t.YearDay())
	decl := 23.44 * math.Sin(2*math.Pi*(284+doy)/365) * math.Pi / 180
	phi := model.Clamp(lat, -90, 90) * math.Pi / 180

	cosOmega := -math.Tan(phi) * math.Tan(decl)
	switch {
	case cosOmega <= -1:
		return 24
	case cosOmega >= 1:
		return 0
	}
	omega := math.Acos(cosOmega) * 180 / math.Pi
	return 2 * omega / 15
}

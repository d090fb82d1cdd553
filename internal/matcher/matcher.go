// Package matcher scores how likely two restaurant records describe the
// same place. Scores are integers in [0,100]: the sum of a name, address,
// GPS proximity and phone component, each capped by its weight.
package matcher

import (
	"math"

	"restaurant_catalog/internal/domain"
)

const earthRadiusMeters = 6371000.0

// Config holds the component weights and the match threshold. The values are
// empirically chosen; DefaultConfig matches what the catalog was calibrated on.
type Config struct {
	NameWeight      int     `yaml:"name_weight"`
	AddressWeight   int     `yaml:"address_weight"`
	GPSWeight       int     `yaml:"gps_weight"`
	PhoneWeight     int     `yaml:"phone_weight"`
	GPSRadiusMeters float64 `yaml:"gps_radius_meters"`
	// Threshold is exclusive: a listing matches only when its score is above it.
	Threshold int `yaml:"threshold"`
}

func DefaultConfig() Config {
	return Config{
		NameWeight:      35,
		AddressWeight:   20,
		GPSWeight:       25,
		PhoneWeight:     20,
		GPSRadiusMeters: 200,
		Threshold:       50,
	}
}

// Fields is the subset of a record the matcher looks at.
type Fields struct {
	Name     string
	Address  string
	Phone    string
	Lat, Lon *float64
}

func FromListing(l domain.Listing) Fields {
	return Fields{Name: l.Name, Address: l.Address, Phone: l.Phone, Lat: l.Lat, Lon: l.Lon}
}

func FromRestaurant(r domain.Restaurant) Fields {
	return Fields{Name: r.Name, Address: r.Address, Phone: r.Phone, Lat: r.Lat, Lon: r.Lon}
}

// Breakdown keeps the per-component scores, mostly for logging.
type Breakdown struct {
	Name    int
	Address int
	GPS     int
	Phone   int
}

func (b Breakdown) Total() int {
	t := b.Name + b.Address + b.GPS + b.Phone
	if t < 0 {
		return 0
	}
	if t > 100 {
		return 100
	}
	return t
}

type Matcher struct{ cfg Config }

func New(cfg Config) *Matcher {
	if cfg.GPSRadiusMeters <= 0 {
		cfg.GPSRadiusMeters = DefaultConfig().GPSRadiusMeters
	}
	return &Matcher{cfg: cfg}
}

func (m *Matcher) Config() Config { return m.cfg }

// Score compares an incoming listing with a canonical candidate.
func (m *Matcher) Score(l domain.Listing, c domain.Restaurant) int {
	return m.Compare(FromListing(l), FromRestaurant(c)).Total()
}

// Compare computes the component scores of a against b.
func (m *Matcher) Compare(a, b Fields) Breakdown {
	var out Breakdown
	if a.Name != "" && b.Name != "" {
		out.Name = scaled(similarity(normalizeName(a.Name), normalizeName(b.Name)), m.cfg.NameWeight)
	}
	if a.Address != "" && b.Address != "" {
		out.Address = scaled(similarity(normalizeAddress(a.Address), normalizeAddress(b.Address)), m.cfg.AddressWeight)
	}
	if a.Lat != nil && a.Lon != nil && b.Lat != nil && b.Lon != nil {
		out.GPS = m.gpsScore(Haversine(*a.Lat, *a.Lon, *b.Lat, *b.Lon))
	}
	if pa, pb := normalizePhone(a.Phone), normalizePhone(b.Phone); pa != "" && pa == pb {
		out.Phone = m.cfg.PhoneWeight
	}
	return out
}

// BestMatch returns the highest scoring candidate when its score is strictly
// above the threshold. Ties keep the first candidate seen.
func (m *Matcher) BestMatch(l domain.Listing, candidates []domain.Restaurant) (domain.Restaurant, int, bool) {
	best, bestScore := -1, -1
	for i, c := range candidates {
		if s := m.Score(l, c); s > bestScore {
			best, bestScore = i, s
		}
	}
	if best < 0 || bestScore <= m.cfg.Threshold {
		return domain.Restaurant{}, bestScore, false
	}
	return candidates[best], bestScore, true
}

// IsMatch applies the exclusive threshold to a precomputed score.
func (m *Matcher) IsMatch(score int) bool { return score > m.cfg.Threshold }

func (m *Matcher) gpsScore(meters float64) int {
	if meters >= m.cfg.GPSRadiusMeters {
		return 0
	}
	return int(math.Round((1 - meters/m.cfg.GPSRadiusMeters) * float64(m.cfg.GPSWeight)))
}

// Haversine returns the great-circle distance in meters.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

func scaled(sim float64, weight int) int {
	return int(math.Round(sim * float64(weight)))
}

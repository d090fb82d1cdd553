package matcher_test

import (
	"math"
	"math/rand"
	"testing"

	"restaurant_catalog/internal/domain"
	"restaurant_catalog/internal/matcher"
)

func pfloat(f float64) *float64 { return &f }

// northOf returns a latitude d meters north of lat.
func northOf(lat, d float64) float64 { return lat + d/(6371000.0*math.Pi/180) }

func TestScore_IdenticalIs100(t *testing.T) {
	m := matcher.New(matcher.DefaultConfig())
	l := domain.Listing{Name: "Joe's Pizza", Address: "7 Carmine St", Lat: pfloat(40.7306), Lon: pfloat(-74.0021), Phone: "+1 (212) 366-1182"}
	c := domain.Restaurant{Name: "Joe's Pizza", Address: "7 Carmine St", Lat: pfloat(40.7306), Lon: pfloat(-74.0021), Phone: "+1 (212) 366-1182"}
	if got := m.Score(l, c); got != 100 {
		t.Fatalf("expected 100, got %d", got)
	}
}

func TestScore_NothingInCommonIs0(t *testing.T) {
	m := matcher.New(matcher.DefaultConfig())
	if got := m.Score(domain.Listing{}, domain.Restaurant{}); got != 0 {
		t.Fatalf("empty records: expected 0, got %d", got)
	}
	l := domain.Listing{Name: "aaaa", Address: "bbbb", Lat: pfloat(10), Lon: pfloat(10), Phone: "111"}
	c := domain.Restaurant{Name: "zzzz", Address: "yyyy", Lat: pfloat(20), Lon: pfloat(20), Phone: "222"}
	if got := m.Score(l, c); got != 0 {
		t.Fatalf("disjoint records: expected 0, got %d", got)
	}
}

func TestCompare_Normalization(t *testing.T) {
	m := matcher.New(matcher.DefaultConfig())
	cases := []struct {
		name string
		a, b matcher.Fields
		want matcher.Breakdown
	}{
		{"case and punctuation", matcher.Fields{Name: "JOE'S  PIZZA!"}, matcher.Fields{Name: "joes pizza"}, matcher.Breakdown{Name: 35}},
		{"diacritics fold", matcher.Fields{Name: "Café Rouge"}, matcher.Fields{Name: "Cafe Rouge"}, matcher.Breakdown{Name: 35}},
		{"street tokens", matcher.Fields{Address: "123 Main Street"}, matcher.Fields{Address: "123 main st."}, matcher.Breakdown{Address: 20}},
		{"street token inside word kept", matcher.Fields{Address: "1 Stanley"}, matcher.Fields{Address: "1 anley"}, matcher.Breakdown{Address: 16}},
		{"phone digits only", matcher.Fields{Phone: "(415) 555-0100"}, matcher.Fields{Phone: "415.555.0100"}, matcher.Breakdown{Phone: 20}},
		{"phone no partial credit", matcher.Fields{Phone: "4155550100"}, matcher.Fields{Phone: "4155550101"}, matcher.Breakdown{}},
		{"empty phones never match", matcher.Fields{Phone: "n/a"}, matcher.Fields{Phone: "-"}, matcher.Breakdown{}},
		{"missing name side", matcher.Fields{Name: "Nopa"}, matcher.Fields{}, matcher.Breakdown{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := m.Compare(tc.a, tc.b); got != tc.want {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestCompare_NameLCSRatio(t *testing.T) {
	m := matcher.New(matcher.DefaultConfig())
	// "nopa" vs "nopalito": LCS 4 over 8 -> 0.5 * 35 = 17.5 -> 18
	got := m.Compare(matcher.Fields{Name: "Nopa"}, matcher.Fields{Name: "Nopalito"})
	if got.Name != 18 {
		t.Fatalf("expected name score 18, got %d", got.Name)
	}
}

func TestGPS_ZeroBeyondRadiusAndDecreasing(t *testing.T) {
	m := matcher.New(matcher.DefaultConfig())
	lat, lon := 37.7749, -122.4194
	gps := func(d float64) int {
		return m.Compare(
			matcher.Fields{Lat: pfloat(lat), Lon: pfloat(lon)},
			matcher.Fields{Lat: pfloat(northOf(lat, d)), Lon: pfloat(lon)},
		).GPS
	}

	if got := gps(0); got != 25 {
		t.Fatalf("0m: expected 25, got %d", got)
	}
	for _, d := range []float64{200.5, 250, 1000} {
		if got := gps(d); got != 0 {
			t.Fatalf("%.1fm: expected 0, got %d", d, got)
		}
	}

	prev := gps(0)
	for _, d := range []float64{50, 100, 150} {
		cur := gps(d)
		if cur >= prev {
			t.Fatalf("expected strict decrease at %.0fm: prev=%d cur=%d", d, prev, cur)
		}
		prev = cur
	}

	prev = gps(0)
	for d := 1.0; d < 200; d++ {
		cur := gps(d)
		if cur > prev {
			t.Fatalf("score increased at %.0fm: prev=%d cur=%d", d, prev, cur)
		}
		prev = cur
	}
}

func TestGPS_MissingCoordinates(t *testing.T) {
	m := matcher.New(matcher.DefaultConfig())
	got := m.Compare(matcher.Fields{Lat: pfloat(1)}, matcher.Fields{Lat: pfloat(1), Lon: pfloat(1)})
	if got.GPS != 0 {
		t.Fatalf("expected 0 without both coordinates, got %d", got.GPS)
	}
}

func TestHaversine_KnownDistance(t *testing.T) {
	// one degree of latitude is about 111.19km on this sphere
	d := matcher.Haversine(0, 0, 1, 0)
	if math.Abs(d-111195) > 5 {
		t.Fatalf("unexpected distance %.1f", d)
	}
}

func TestBestMatch_ThresholdIsExclusive(t *testing.T) {
	m := matcher.New(matcher.DefaultConfig())
	// name 35 + address LCS 3/4 * 20 = 15 -> exactly 50
	l := domain.Listing{Name: "Tartine", Address: "1234"}
	c := domain.Restaurant{ID: 1, Name: "Tartine", Address: "1235"}
	if s := m.Score(l, c); s != 50 {
		t.Fatalf("fixture should score 50, got %d", s)
	}
	if _, _, ok := m.BestMatch(l, []domain.Restaurant{c}); ok {
		t.Fatalf("score of exactly 50 must not match")
	}

	c.Phone, l.Phone = "5550100", "555-0100"
	got, score, ok := m.BestMatch(l, []domain.Restaurant{c})
	if !ok || got.ID != 1 || score != 70 {
		t.Fatalf("expected match on id 1 with 70, got ok=%v id=%d score=%d", ok, got.ID, score)
	}
}

func TestBestMatch_TiesKeepFirst(t *testing.T) {
	m := matcher.New(matcher.DefaultConfig())
	l := domain.Listing{Name: "Zuni Cafe", Phone: "4155522522"}
	cands := []domain.Restaurant{
		{ID: 10, Name: "Other"},
		{ID: 11, Name: "Zuni Cafe", Phone: "4155522522"},
		{ID: 12, Name: "Zuni Cafe", Phone: "4155522522"},
	}
	got, _, ok := m.BestMatch(l, cands)
	if !ok || got.ID != 11 {
		t.Fatalf("expected first of tied candidates (11), got ok=%v id=%d", ok, got.ID)
	}
	if _, _, ok := m.BestMatch(l, nil); ok {
		t.Fatalf("no candidates must not match")
	}
}

func TestConfig_ThresholdIsTunable(t *testing.T) {
	cfg := matcher.DefaultConfig()
	cfg.Threshold = 40
	m := matcher.New(cfg)
	l := domain.Listing{Name: "Tartine", Address: "1234"}
	c := domain.Restaurant{Name: "Tartine", Address: "1235"}
	if _, _, ok := m.BestMatch(l, []domain.Restaurant{c}); !ok {
		t.Fatalf("expected match with threshold 40")
	}
}

func TestConfig_TotalClamped(t *testing.T) {
	m := matcher.New(matcher.Config{NameWeight: 90, AddressWeight: 90, GPSRadiusMeters: 200})
	f := matcher.Fields{Name: "x", Address: "y"}
	if got := m.Compare(f, f).Total(); got != 100 {
		t.Fatalf("expected clamp to 100, got %d", got)
	}
}

// Range and symmetry over random records. Symmetry is observed, not assumed:
// every component happens to be symmetric in its inputs.
func TestScore_RangeAndObservedSymmetry(t *testing.T) {
	m := matcher.New(matcher.DefaultConfig())
	names := []string{"", "Nopa", "Nopalito", "Zuni Café", "zuni cafe", "The Slanted Door", "Slanted Door"}
	addrs := []string{"", "560 Divisadero St", "306 Broderick Street", "1658 Market St", "1 Ferry Bldg"}
	phones := []string{"", "4158648643", "(415) 864-8643", "4155522522"}
	rng := rand.New(rand.NewSource(7))
	pick := func(xs []string) string { return xs[rng.Intn(len(xs))] }
	coord := func() (*float64, *float64) {
		if rng.Intn(4) == 0 {
			return nil, nil
		}
		return pfloat(37.77 + rng.Float64()*0.003), pfloat(-122.43 + rng.Float64()*0.003)
	}

	for i := 0; i < 500; i++ {
		alat, alon := coord()
		blat, blon := coord()
		a := matcher.Fields{Name: pick(names), Address: pick(addrs), Phone: pick(phones), Lat: alat, Lon: alon}
		b := matcher.Fields{Name: pick(names), Address: pick(addrs), Phone: pick(phones), Lat: blat, Lon: blon}
		ab, ba := m.Compare(a, b).Total(), m.Compare(b, a).Total()
		if ab < 0 || ab > 100 {
			t.Fatalf("score out of range: %d for %+v vs %+v", ab, a, b)
		}
		if ab != ba {
			t.Fatalf("asymmetric score %d vs %d for %+v / %+v", ab, ba, a, b)
		}
	}
}

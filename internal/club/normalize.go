package club

import "math"

const (
	DefaultRole     = "adhérent"
	DefaultBacName  = "Bac serre"
	DefaultFeedUnit = "kg"

	RoleAdmin  = "admin"
	RoleBureau = "membre_bureau"
)

// maxCount keeps population counts inside the exactly representable float
// range before conversion.
const maxCount = 1 << 53

// NormalizeMember fills the default role.
func NormalizeMember(m Member) Member {
	if m.Role == "" {
		m.Role = DefaultRole
	}
	return m
}

func NormalizePopulation(e PopulationEntry) PopulationEntry {
	if e.TotalCount < 0 {
		e.TotalCount = 0
	}
	return e
}

// NormalizeAnnonce guarantees a non-nil favorites list without duplicates.
func NormalizeAnnonce(a Annonce) Annonce {
	favs := make([]string, 0, len(a.FavoriPar))
	seen := make(map[string]bool, len(a.FavoriPar))
	for _, u := range a.FavoriPar {
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		favs = append(favs, u)
	}
	a.FavoriPar = favs
	return a
}

func NormalizeBac(b Bac) Bac {
	if b.Name == "" {
		b.Name = DefaultBacName
	}
	if b.LastWaterChange != nil && *b.LastWaterChange == "" {
		b.LastWaterChange = nil
	}
	if b.LastFilterClean != nil && *b.LastFilterClean == "" {
		b.LastFilterClean = nil
	}
	return b
}

func NormalizeFeedItem(it FeedItem) FeedItem {
	if it.Unit == "" {
		it.Unit = DefaultFeedUnit
	}
	it.Quantity = nonNegative(it.Quantity)
	return it
}

// NormalizeFeed repairs every part of the feed stock independently.
func NormalizeFeed(f Feed) Feed {
	items := make([]FeedItem, 0, len(f.Items))
	for _, it := range f.Items {
		items = append(items, NormalizeFeedItem(it))
	}
	f.Items = items
	f.MonthlyUseKg = finite(f.MonthlyUseKg)
	return f
}

// NormalizeSerre substitutes the default shape for every missing sub-part.
func NormalizeSerre(s Serre) Serre {
	bacs := make([]Bac, 0, len(s.Bacs))
	for _, b := range s.Bacs {
		bacs = append(bacs, NormalizeBac(b))
	}
	s.Bacs = bacs
	if s.Assignments == nil {
		s.Assignments = map[string]Assignment{}
	}
	s.Feed = NormalizeFeed(s.Feed)
	return s
}

// EmptySerre is the default aggregate.
func EmptySerre() Serre {
	return NormalizeSerre(Serre{})
}

func optionalText(t Text) *string {
	if t == "" {
		return nil
	}
	v := string(t)
	return &v
}

func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func nonNegative(f float64) float64 {
	f = finite(f)
	if f < 0 {
		return 0
	}
	return f
}

// CountOf truncates n to a whole count in [0, maxCount]. NaN and infinities
// count as zero.
func CountOf(n Number) int64 {
	f := finite(float64(n))
	if f <= 0 {
		return 0
	}
	if f > maxCount {
		f = maxCount
	}
	return int64(math.Trunc(f))
}

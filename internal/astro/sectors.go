package astro

import "strings"

// Sector carries the ruling bodies and favourable signs of a market sector
type Sector struct {
	Name           string
	Rulers         []string
	FavorableSigns []string
	Keywords       []string
}

// Sectors is the sector rulership table
var Sectors = []Sector{
	{"tech", []string{"Uranus", "Mercury"}, []string{"Aquarius", "Gemini", "Virgo"}, []string{"tech", "software", "innovation", "digital", "ai", "computer"}},
	{"athletics", []string{"Mars"}, []string{"Aries", "Scorpio"}, []string{"sport", "athletic", "nike", "fitness", "gym", "energy"}},
	{"finance", []string{"Jupiter", "Venus"}, []string{"Taurus", "Sagittarius", "Libra"}, []string{"bank", "financial", "wealth", "insurance", "capital"}},
	{"luxury", []string{"Venus"}, []string{"Taurus", "Libra"}, []string{"luxury", "beauty", "fashion", "jewelry", "cosmetic"}},
	{"healthcare", []string{"Neptune", "Pluto"}, []string{"Virgo", "Pisces", "Scorpio"}, []string{"health", "pharma", "medical", "hospital", "drug", "biotech"}},
	{"real_estate", []string{"Saturn"}, []string{"Capricorn", "Taurus"}, []string{"real estate", "construction", "property", "building", "home"}},
	{"communication", []string{"Mercury"}, []string{"Gemini", "Virgo"}, []string{"media", "communication", "telecom", "broadcast", "news"}},
	{"entertainment", []string{"Sun", "Venus"}, []string{"Leo", "Libra"}, []string{"entertainment", "movie", "gaming", "music", "streaming"}},
}

// categorySectors is the fallback sector per category
var categorySectors = map[string]string{
	"crypto":      "tech",
	"forex":       "finance",
	"rates-macro": "finance",
	"stress":      "finance",
	"commodities": "real_estate",
}

// IdentifySector matches keywords against the symbol, falling back to the category default.
// Returns nil when nothing matches.
func IdentifySector(symbol, category string) *Sector {
	lower := strings.ToLower(symbol)
	for i := range Sectors {
		for _, kw := range Sectors[i].Keywords {
			// Short keywords only match whole symbols so "ai" does not hit "AIG"
			if len(kw) <= 3 {
				if lower == kw {
					return &Sectors[i]
				}
				continue
			}
			if strings.Contains(lower, kw) {
				return &Sectors[i]
			}
		}
	}

	name, ok := categorySectors[category]
	if !ok {
		return nil
	}
	for i := range Sectors {
		if Sectors[i].Name == name {
			return &Sectors[i]
		}
	}
	return nil
}

// IsRuler reports whether body rules the sector
func (s *Sector) IsRuler(body string) bool {
	if s == nil {
		return false
	}
	for _, r := range s.Rulers {
		if r == body {
			return true
		}
	}
	return false
}

// Favors reports whether sign is favourable for the sector
func (s *Sector) Favors(sign string) bool {
	if s == nil {
		return false
	}
	for _, f := range s.FavorableSigns {
		if f == sign {
			return true
		}
	}
	return false
}

// IngressScore rates the active sign for a sector out of 30
func IngressScore(sign string, sector *Sector) float64 {
	if sector == nil {
		return 15
	}
	if sector.Favors(sign) {
		return 30
	}
	s, ok := SignByName(sign)
	if !ok {
		return 15
	}
	switch s.Element {
	case "fire":
		return 22
	case "earth":
		return 20
	case "air":
		return 18
	default:
		return 12
	}
}

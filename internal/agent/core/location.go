package core

import (
	"sort"
	"strings"
	"unicode/utf8"
)

const regionName = "hong kong"

// hkPlaces maps Traditional and Simplified Chinese Hong Kong place names to
// their canonical English form.
var hkPlaces = map[string]string{}

func init() {
	for _, p := range [][2]string{
		{"香港", "Hong Kong"},
		{"香港島", "Hong Kong Island, Hong Kong"},
		{"香港岛", "Hong Kong Island, Hong Kong"},
		{"九龍", "Kowloon, Hong Kong"},
		{"九龙", "Kowloon, Hong Kong"},
		{"九龍城", "Kowloon City, Hong Kong"},
		{"九龙城", "Kowloon City, Hong Kong"},
		{"新界", "New Territories, Hong Kong"},
		{"中環", "Central, Hong Kong"},
		{"中环", "Central, Hong Kong"},
		{"上環", "Sheung Wan, Hong Kong"},
		{"上环", "Sheung Wan, Hong Kong"},
		{"西環", "Sai Wan, Hong Kong"},
		{"西环", "Sai Wan, Hong Kong"},
		{"灣仔", "Wan Chai, Hong Kong"},
		{"湾仔", "Wan Chai, Hong Kong"},
		{"銅鑼灣", "Causeway Bay, Hong Kong"},
		{"铜锣湾", "Causeway Bay, Hong Kong"},
		{"北角", "North Point, Hong Kong"},
		{"赤柱", "Stanley, Hong Kong"},
		{"尖沙咀", "Tsim Sha Tsui, Hong Kong"},
		{"旺角", "Mong Kok, Hong Kong"},
		{"油麻地", "Yau Ma Tei, Hong Kong"},
		{"深水埗", "Sham Shui Po, Hong Kong"},
		{"黃大仙", "Wong Tai Sin, Hong Kong"},
		{"黄大仙", "Wong Tai Sin, Hong Kong"},
		{"觀塘", "Kwun Tong, Hong Kong"},
		{"观塘", "Kwun Tong, Hong Kong"},
		{"沙田", "Sha Tin, Hong Kong"},
		{"荃灣", "Tsuen Wan, Hong Kong"},
		{"荃湾", "Tsuen Wan, Hong Kong"},
		{"屯門", "Tuen Mun, Hong Kong"},
		{"屯门", "Tuen Mun, Hong Kong"},
		{"元朗", "Yuen Long, Hong Kong"},
		{"大埔", "Tai Po, Hong Kong"},
		{"將軍澳", "Tseung Kwan O, Hong Kong"},
		{"将军澳", "Tseung Kwan O, Hong Kong"},
		{"大嶼山", "Lantau Island, Hong Kong"},
		{"大屿山", "Lantau Island, Hong Kong"},
		{"東涌", "Tung Chung, Hong Kong"},
		{"东涌", "Tung Chung, Hong Kong"},
		{"西貢", "Sai Kung, Hong Kong"},
		{"西贡", "Sai Kung, Hong Kong"},
	} {
		hkPlaces[p[0]] = p[1]
	}
}

// LocationNormalizer rewrites local-script place names to canonical names
// and flags region queries. Keys are tried longest first, then in lexical
// order, so 九龍城 wins over 九龍.
type LocationNormalizer struct {
	places map[string]string
	keys   []string
}

func NewLocationNormalizer() *LocationNormalizer {
	return newLocationNormalizer(hkPlaces)
}

func newLocationNormalizer(places map[string]string) *LocationNormalizer {
	keys := make([]string, 0, len(places))
	for k := range places {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		li, lj := utf8.RuneCountInString(keys[i]), utf8.RuneCountInString(keys[j])
		if li != lj {
			return li > lj
		}
		return keys[i] < keys[j]
	})
	return &LocationNormalizer{places: places, keys: keys}
}

func (n *LocationNormalizer) match(s string) (string, bool) {
	for _, k := range n.keys {
		if strings.Contains(s, k) {
			return n.places[k], true
		}
	}
	return "", false
}

// Normalize rewrites a.Location when it contains a known place name.
func (n *LocationNormalizer) Normalize(a QueryAnalysis) QueryAnalysis {
	if canonical, ok := n.match(a.Location); ok {
		a.Location = canonical
		a.IsRegionQuery = true
		return a
	}
	if strings.Contains(strings.ToLower(a.Location), regionName) {
		a.IsRegionQuery = true
	}
	return a
}

// NormalizeQuery is Normalize plus a scan of the raw query when the
// analyzer found no location.
func (n *LocationNormalizer) NormalizeQuery(a QueryAnalysis, query string) QueryAnalysis {
	if a.Location == "" {
		if canonical, ok := n.match(query); ok {
			a.Location = canonical
			a.IsRegionQuery = true
			return a
		}
	}
	return n.Normalize(a)
}

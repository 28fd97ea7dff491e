// Package regions holds the macro-region alias table used for regional
// factor fallback. The table is configuration data: the built-in defaults
// cover all inhabited macro-regions and can be extended or overridden from
// a YAML file without code changes.
package regions

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// defaultAliases maps an uppercased ISO-like region code to the ordered
// list of macro-region codes searched during regional fallback.
var defaultAliases = map[string][]string{
	// Europe
	"EU": {"EUROPE", "EUR"},
	"AT": {"EUROPE", "EUR", "EU"},
	"BE": {"EUROPE", "EUR", "EU"},
	"CH": {"EUROPE", "EUR"},
	"CZ": {"EUROPE", "EUR", "EU"},
	"DE": {"EUROPE", "EUR", "EU"},
	"DK": {"EUROPE", "EUR", "EU"},
	"ES": {"EUROPE", "EUR", "EU"},
	"FI": {"EUROPE", "EUR", "EU"},
	"FR": {"EUROPE", "EUR", "EU"},
	"GB": {"EUROPE", "EUR"},
	"UK": {"EUROPE", "EUR"},
	"GR": {"EUROPE", "EUR", "EU"},
	"IE": {"EUROPE", "EUR", "EU"},
	"IT": {"EUROPE", "EUR", "EU"},
	"NL": {"EUROPE", "EUR", "EU"},
	"NO": {"EUROPE", "EUR"},
	"PL": {"EUROPE", "EUR", "EU"},
	"PT": {"EUROPE", "EUR", "EU"},
	"RO": {"EUROPE", "EUR", "EU"},
	"SE": {"EUROPE", "EUR", "EU"},

	// North America
	"US": {"NORTH_AMERICA", "NAFTA"},
	"CA": {"NORTH_AMERICA", "NAFTA"},
	"MX": {"NORTH_AMERICA", "NAFTA", "LATAM"},

	// Asia-Pacific
	"CN": {"ASIA", "APAC"},
	"HK": {"ASIA", "APAC"},
	"ID": {"ASIA", "APAC"},
	"IN": {"ASIA", "APAC"},
	"JP": {"ASIA", "APAC"},
	"KR": {"ASIA", "APAC"},
	"MY": {"ASIA", "APAC"},
	"PH": {"ASIA", "APAC"},
	"SG": {"ASIA", "APAC"},
	"TH": {"ASIA", "APAC"},
	"TW": {"ASIA", "APAC"},
	"VN": {"ASIA", "APAC"},

	// Oceania
	"AU": {"OCEANIA", "APAC"},
	"NZ": {"OCEANIA", "APAC"},

	// South America
	"AR": {"SOUTH_AMERICA", "LATAM"},
	"BR": {"SOUTH_AMERICA", "LATAM"},
	"CL": {"SOUTH_AMERICA", "LATAM"},
	"CO": {"SOUTH_AMERICA", "LATAM"},
	"PE": {"SOUTH_AMERICA", "LATAM"},

	// Africa
	"DZ": {"AFRICA"},
	"EG": {"AFRICA", "MIDDLE_EAST"},
	"KE": {"AFRICA"},
	"MA": {"AFRICA"},
	"NG": {"AFRICA"},
	"ZA": {"AFRICA"},

	// Middle East
	"AE": {"MIDDLE_EAST", "ASIA"},
	"IL": {"MIDDLE_EAST", "ASIA"},
	"QA": {"MIDDLE_EAST", "ASIA"},
	"SA": {"MIDDLE_EAST", "ASIA"},
	"TR": {"MIDDLE_EAST", "EUROPE"},
}

// Table resolves region codes to macro-region alias lists.
type Table struct {
	aliases map[string][]string
}

// NewTable returns a Table with the built-in default aliases.
func NewTable() *Table {
	return &Table{aliases: defaultAliases}
}

// LoadTable reads a YAML file of region → macro-region aliases and merges
// it over the defaults. File entries replace the default list for the same
// region code.
//
// File format:
//
//	DE: [EUROPE, EUR, EU]
//	BD: [ASIA, APAC]
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "regions: read alias file %s", path)
	}

	var overrides map[string][]string
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, eris.Wrapf(err, "regions: parse alias file %s", path)
	}

	merged := make(map[string][]string, len(defaultAliases)+len(overrides))
	for k, v := range defaultAliases {
		merged[k] = v
	}
	for k, v := range overrides {
		upper := make([]string, len(v))
		for i, a := range v {
			upper[i] = strings.ToUpper(strings.TrimSpace(a))
		}
		merged[strings.ToUpper(strings.TrimSpace(k))] = upper
	}

	return &Table{aliases: merged}, nil
}

// Aliases returns the ordered macro-region alias list for a region code,
// or nil when the region has no configured macro-region.
func (t *Table) Aliases(region string) []string {
	return t.aliases[strings.ToUpper(strings.TrimSpace(region))]
}

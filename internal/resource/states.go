package resource

import (
	"slices"
	"strings"

	"github.com/CThaw90/refocus-dataset/internal/geocode"
)

// stateNames maps postal abbreviations to the names stored in state columns.
var stateNames = map[string]string{
	"AL": "Alabama", "AK": "Alaska", "AZ": "Arizona", "AR": "Arkansas",
	"CA": "California", "CO": "Colorado", "CT": "Connecticut", "DE": "Delaware",
	"DC": "Washington, DC", "FL": "Florida", "GA": "Georgia", "HI": "Hawaii",
	"ID": "Idaho", "IL": "Illinois", "IN": "Indiana", "IA": "Iowa",
	"KS": "Kansas", "KY": "Kentucky", "LA": "Louisiana", "ME": "Maine",
	"MD": "Maryland", "MA": "Massachusetts", "MI": "Michigan", "MN": "Minnesota",
	"MS": "Mississippi", "MO": "Missouri", "MT": "Montana", "NE": "Nebraska",
	"NV": "Nevada", "NH": "New Hampshire", "NJ": "New Jersey", "NM": "New Mexico",
	"NY": "New York", "NC": "North Carolina", "ND": "North Dakota", "OH": "Ohio",
	"OK": "Oklahoma", "OR": "Oregon", "PA": "Pennsylvania", "RI": "Rhode Island",
	"SC": "South Carolina", "SD": "South Dakota", "TN": "Tennessee", "TX": "Texas",
	"UT": "Utah", "VT": "Vermont", "VA": "Virginia", "WA": "Washington",
	"WV": "West Virginia", "WI": "Wisconsin", "WY": "Wyoming",
	"PR": "Puerto Rico", "GU": "Guam", "VI": "Virgin Islands",
	"AS": "American Samoa", "MP": "Northern Mariana Islands",
}

var namesToState = func() map[string]string {
	m := make(map[string]string, len(stateNames)+1)
	for _, name := range stateNames {
		m[strings.ToLower(name)] = name
	}
	m["district of columbia"] = stateNames["DC"]
	return m
}()

// StateName resolves an abbreviation or a full name (any case) to the stored
// state name. Unknown values yield geocode.NotAvailable.
func StateName(s string) string {
	s = strings.TrimSpace(s)
	if name, ok := stateNames[strings.ToUpper(s)]; ok {
		return name
	}
	if name, ok := namesToState[strings.ToLower(s)]; ok {
		return name
	}
	return geocode.NotAvailable
}

// StateAbbreviations returns the 50 states and DC, sorted.
func StateAbbreviations() []string {
	var out []string
	for abbr := range stateNames {
		switch abbr {
		case "PR", "GU", "VI", "AS", "MP":
			continue
		}
		out = append(out, abbr)
	}
	slices.Sort(out)
	return out
}

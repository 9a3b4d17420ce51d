package metadata

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Worldwide is the display name for missing or unknown territory codes.
const Worldwide = "Worldwide"

var regionNamer = display.English.Regions()

// CountryName converts a catalog territory code ("GB", "US", "XW") to an
// English display name.
func CountryName(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return Worldwide
	}

	region, err := language.ParseRegion(code)
	if err != nil || !region.IsCountry() {
		return Worldwide
	}

	name := regionNamer.Name(region)
	if name == "" {
		return Worldwide
	}
	return name
}

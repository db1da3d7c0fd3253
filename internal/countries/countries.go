// Package countries resolves AIS flag and country codes to display names.
package countries

import (
	"strings"

	"github.com/biter777/countries"
)

// Name resolves an ISO alpha-2 code (as carried in AIS flag and
// next-port-country fields) to the country's English name. Codes the
// registry does not know come back unchanged so callers never lose a
// bucket key.
func Name(code string) string {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return code
	}
	c := countries.ByName(trimmed)
	if c == countries.Unknown {
		return code
	}
	return c.String()
}

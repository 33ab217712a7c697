package session

import (
	"fmt"
	"net/http"

	"github.com/arnforge/modkit/internal/platform/errs"
)

// DefaultGeoHeaderName is the trusted header GeoValidator reads from by
// default (§4.10, §6.2); configurable per deployment.
const DefaultGeoHeaderName = "X-Forwarded-Country"

// unknownCountrySentinels are treated as "unknown" and therefore always
// accepted, never compared (§4.10).
var unknownCountrySentinels = map[string]bool{
	"XX": true,
	"T1": true,
}

// GeoValidator extracts a trusted country code and decides whether a
// transition between two observed countries should be accepted (§4.10).
type GeoValidator struct {
	HeaderName string
}

// NewGeoValidator builds a GeoValidator reading headerName, or
// DefaultGeoHeaderName if empty.
func NewGeoValidator(headerName string) *GeoValidator {
	if headerName == "" {
		headerName = DefaultGeoHeaderName
	}

	return &GeoValidator{HeaderName: headerName}
}

// CountryFromRequest extracts the country code from the trusted header,
// returning "" (unknown) for the sentinel values XX and T1.
func (v *GeoValidator) CountryFromRequest(r *http.Request) string {
	return normalizeCountry(r.Header.Get(v.HeaderName))
}

func normalizeCountry(raw string) string {
	if unknownCountrySentinels[raw] {
		return ""
	}

	return raw
}

// ValidateTransition enforces §4.10: if both the stored and current country
// are known and differ, the transition is refused; an unknown value on
// either side is always accepted.
func (v *GeoValidator) ValidateTransition(stored, current string) error {
	stored = normalizeCountry(stored)
	current = normalizeCountry(current)

	if stored == "" || current == "" {
		return nil
	}

	if stored != current {
		return &errs.AuthenticationError{
			Reason:         fmt.Sprintf("country changed from %s to %s", stored, current),
			RequireRelogin: true,
		}
	}

	return nil
}

package session_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/arnforge/modkit/internal/platform/session"
)

func TestGeoValidatorCountryFromRequest(t *testing.T) {
	v := session.NewGeoValidator("")

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(session.DefaultGeoHeaderName, "US")
	assert.Equal(t, "US", v.CountryFromRequest(r))

	r.Header.Set(session.DefaultGeoHeaderName, "XX")
	assert.Equal(t, "", v.CountryFromRequest(r))

	r.Header.Set(session.DefaultGeoHeaderName, "T1")
	assert.Equal(t, "", v.CountryFromRequest(r))
}

func TestGeoValidatorValidateTransition(t *testing.T) {
	v := session.NewGeoValidator("")

	assert.NoError(t, v.ValidateTransition("US", "US"))
	assert.NoError(t, v.ValidateTransition("", "FR"))
	assert.NoError(t, v.ValidateTransition("US", ""))
	assert.Error(t, v.ValidateTransition("US", "FR"))
}

func TestGeoValidatorCustomHeaderName(t *testing.T) {
	v := session.NewGeoValidator("CF-IPCountry")

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("CF-IPCountry", "DE")
	assert.Equal(t, "DE", v.CountryFromRequest(r))
}

package main

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := parseConfig(nil)
	require.NoError(t, err)

	assert.Equal(t, "host", cfg.mode)
	assert.Equal(t, "development", cfg.env)
	assert.False(t, cfg.production())
	assert.Equal(t, ":8080", cfg.httpAddr)
	assert.Equal(t, 2, cfg.workerMin)
}

func TestParseConfigOverridesFromFlags(t *testing.T) {
	cfg, err := parseConfig([]string{"-mode=worker", "-env=production", "-addr=:9090", "-workers-min=4"})
	require.NoError(t, err)

	assert.Equal(t, "worker", cfg.mode)
	assert.True(t, cfg.production())
	assert.Equal(t, ":9090", cfg.httpAddr)
	assert.Equal(t, 4, cfg.workerMin)
}

func TestSigningKeyGeneratesRandomWhenUnset(t *testing.T) {
	cfg, err := parseConfig(nil)
	require.NoError(t, err)

	key1, err := cfg.signingKey()
	require.NoError(t, err)

	key2, err := cfg.signingKey()
	require.NoError(t, err)

	assert.NotEqual(t, key1, key2, "each call without -session-key should mint a fresh random key")
}

func TestSigningKeyDecodesConfiguredValue(t *testing.T) {
	var raw [32]byte
	for i := range raw {
		raw[i] = byte(i)
	}

	cfg, err := parseConfig([]string{"-session-key=" + base64.StdEncoding.EncodeToString(raw[:])})
	require.NoError(t, err)

	key, err := cfg.signingKey()
	require.NoError(t, err)
	assert.Equal(t, raw, [32]byte(key))
}

func TestSigningKeyRejectsWrongLength(t *testing.T) {
	cfg, err := parseConfig([]string{"-session-key=" + base64.StdEncoding.EncodeToString([]byte("too short"))})
	require.NoError(t, err)

	_, err = cfg.signingKey()
	assert.Error(t, err)
}

func TestSocketPathOrDefaultUsesExplicitOverride(t *testing.T) {
	cfg, err := parseConfig([]string{"-socket=/tmp/explicit.sock"})
	require.NoError(t, err)

	assert.Equal(t, "/tmp/explicit.sock", cfg.socketPathOrDefault())
}

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError_ErrorFormats(t *testing.T) {
	e := &ValidationError{Message: "oops", Locations: []Location{{Field: "transport.endpoint"}, {Field: "typing.shape"}}}
	s := e.Error()
	assert.Contains(t, s, "oops")
	assert.Contains(t, s, "--> transport.endpoint")
	assert.Contains(t, s, "--> typing.shape")
}

func TestValidate_Defaults(t *testing.T) {
	cfg := &RealtimeConfig{Transport: TransportConfig{Endpoint: "ws://localhost:5000"}}
	SetDefaults(cfg)
	assert.NoError(t, Validate(cfg))
	assert.Equal(t, DefaultReconnectAttempts, cfg.Transport.ReconnectAttempts)
	assert.Equal(t, []string{"websocket"}, cfg.Transport.Types)
}

func TestSetDefaults_ReconnectDisabledIsKept(t *testing.T) {
	cfg := &RealtimeConfig{Transport: TransportConfig{
		Endpoint:          "ws://localhost:5000",
		ReconnectAttempts: ReconnectDisabled,
	}}
	SetDefaults(cfg)
	assert.Equal(t, ReconnectDisabled, cfg.Transport.ReconnectAttempts)
	assert.NoError(t, Validate(cfg))
}

func TestValidate_Errors(t *testing.T) {
	cfg := &RealtimeConfig{
		Transport: TransportConfig{
			Types:             []string{"websocket", "carrier-pigeon", "redis", "redis"},
			Endpoint:          "ftp://nope",
			ReconnectAttempts: -2,
		},
		Typing: TypingConfig{Shape: "wave"},
	}

	err := Validate(cfg)
	if assert.Error(t, err) {
		msg := err.Error()
		assert.Contains(t, msg, `unsupported transport type "carrier-pigeon"`)
		assert.Contains(t, msg, `duplicate transport type "redis"`)
		assert.Contains(t, msg, "invalid websocket endpoint")
		assert.Contains(t, msg, "redis transport requires an address")
		assert.Contains(t, msg, "reconnect attempts must be positive or -1 to disable")
		assert.Contains(t, msg, `unknown typing shape "wave"`)
	}
}

func TestValidate_WebSocketRequiresEndpoint(t *testing.T) {
	cfg := &RealtimeConfig{}
	SetDefaults(cfg)
	err := Validate(cfg)
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "websocket transport requires an endpoint")
	}
}

func TestValidate_MemoryOnly(t *testing.T) {
	cfg := &RealtimeConfig{Transport: TransportConfig{Types: []string{"memory"}}}
	SetDefaults(cfg)
	assert.NoError(t, Validate(cfg))
}

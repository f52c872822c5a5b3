package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Location represents a configuration location
type Location struct {
	Field string
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Message   string
	Locations []Location
}

func (e *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Message)
	sb.WriteString("\n\n")
	for _, loc := range e.Locations {
		sb.WriteString("--> ")
		sb.WriteString(loc.Field)
		sb.WriteString("\n")
	}
	return sb.String()
}

// Validate checks a realtime configuration after defaults were applied
func Validate(cfg *RealtimeConfig) error {
	var errors []*ValidationError

	seen := make(map[string]bool)
	for i, typ := range cfg.Transport.Types {
		field := fmt.Sprintf("transport.types[%d]", i)
		switch typ {
		case "websocket", "redis", "memory":
		default:
			errors = append(errors, &ValidationError{
				Message:   fmt.Sprintf("unsupported transport type %q", typ),
				Locations: []Location{{Field: field}},
			})
		}
		if seen[typ] {
			errors = append(errors, &ValidationError{
				Message:   fmt.Sprintf("duplicate transport type %q", typ),
				Locations: []Location{{Field: field}},
			})
		}
		seen[typ] = true
	}

	if seen["websocket"] {
		if cfg.Transport.Endpoint == "" {
			errors = append(errors, &ValidationError{
				Message:   "websocket transport requires an endpoint",
				Locations: []Location{{Field: "transport.endpoint"}},
			})
		} else if u, err := url.Parse(cfg.Transport.Endpoint); err != nil || !isSocketScheme(u.Scheme) {
			errors = append(errors, &ValidationError{
				Message:   fmt.Sprintf("invalid websocket endpoint %q", cfg.Transport.Endpoint),
				Locations: []Location{{Field: "transport.endpoint"}},
			})
		}
	}

	if seen["redis"] && cfg.Transport.Redis.Addr == "" {
		errors = append(errors, &ValidationError{
			Message:   "redis transport requires an address",
			Locations: []Location{{Field: "transport.redis.addr"}},
		})
	}

	if cfg.Transport.ReconnectAttempts < ReconnectDisabled {
		errors = append(errors, &ValidationError{
			Message:   fmt.Sprintf("reconnect attempts must be positive or %d to disable", ReconnectDisabled),
			Locations: []Location{{Field: "transport.reconnect_attempts"}},
		})
	}

	switch cfg.Typing.Shape {
	case TypingShapeToggle, TypingShapeStartStop:
	default:
		errors = append(errors, &ValidationError{
			Message:   fmt.Sprintf("unknown typing shape %q", cfg.Typing.Shape),
			Locations: []Location{{Field: "typing.shape"}},
		})
	}

	if len(errors) > 0 {
		var sb strings.Builder
		for i, err := range errors {
			if i > 0 {
				sb.WriteString("\n\n")
			}
			sb.WriteString(err.Error())
		}
		return fmt.Errorf("%s", sb.String())
	}

	return nil
}

func isSocketScheme(scheme string) bool {
	switch scheme {
	case "ws", "wss", "http", "https":
		return true
	}
	return false
}

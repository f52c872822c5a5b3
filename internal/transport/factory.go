package transport

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/amoylab/hublink/internal/common/cnst"
	"github.com/amoylab/hublink/internal/common/config"
)

// Factory builds the binding a session manager owns.
type Factory func() (Binding, error)

// NewBinding walks cfg.Types in order and returns the first binding that
// can be built. When later types remain, the binding is wrapped in a
// FallbackBinding so they are tried if it never manages to connect.
func NewBinding(logger *zap.Logger, cfg config.TransportConfig) (Binding, error) {
	types := make([]cnst.TransportType, len(cfg.Types))
	for i, typ := range cfg.Types {
		types[i] = cnst.TransportType(typ)
	}

	var errs []error
	for i, typ := range types {
		logger.Info("Initializing transport binding", zap.Stringer("type", typ))
		b, err := newBinding(logger, typ, cfg)
		if err != nil {
			logger.Warn("transport unavailable, trying next",
				zap.Stringer("type", typ),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", typ, err))
			continue
		}
		if i == len(types)-1 {
			return b, nil
		}
		return newFallbackBinding(logger, cfg, types, b, typ, i+1), nil
	}
	if len(errs) == 0 {
		return nil, cnst.ErrNoTransport
	}
	return nil, fmt.Errorf("%w: %w", cnst.ErrNoTransport, errors.Join(errs...))
}

// NewFactory binds NewBinding to logger and cfg.
func NewFactory(logger *zap.Logger, cfg config.TransportConfig) Factory {
	return func() (Binding, error) {
		return NewBinding(logger, cfg)
	}
}

func newBinding(logger *zap.Logger, typ cnst.TransportType, cfg config.TransportConfig) (Binding, error) {
	switch typ {
	case cnst.TransportWebSocket:
		return NewWebSocketBinding(logger, cfg)
	case cnst.TransportRedis:
		return NewRedisBinding(logger, cfg)
	case cnst.TransportMemory:
		return NewMemoryBinding(logger, WithAutoAccept()), nil
	default:
		return nil, fmt.Errorf("%w: %s", cnst.ErrUnsupportedTransport, typ)
	}
}

package audioio

import (
	"fmt"
	"log/slog"
)

// NewSource creates an audio source for cfg.Backend.
func NewSource(cfg Config, logger *slog.Logger) (Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	backend := resolveBackend(cfg.Backend)
	logger.Info("creating audio source",
		"backend", backend,
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
	)

	switch backend {
	case BackendMock:
		return NewMockSource(cfg, logger), nil
	case BackendCommand:
		return NewCommandSource(cfg, logger), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedBackend, backend)
	}
}

// NewSink creates an audio sink for cfg.Backend.
func NewSink(cfg Config, logger *slog.Logger) (Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	backend := resolveBackend(cfg.Backend)
	logger.Info("creating audio sink",
		"backend", backend,
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
	)

	switch backend {
	case BackendMock:
		return NewMockSink(cfg, logger), nil
	case BackendCommand:
		return NewCommandSink(cfg, logger), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedBackend, backend)
	}
}

func resolveBackend(b Backend) Backend {
	if b != BackendAuto {
		return b
	}
	if CommandAvailable() {
		return BackendCommand
	}
	return BackendMock
}

// AvailableBackends returns the backends usable on this host.
func AvailableBackends() []Backend {
	backends := []Backend{BackendMock}
	if CommandAvailable() {
		backends = append(backends, BackendCommand)
	}
	return backends
}

package inference

import (
	"context"
	"log/slog"
	"strings"

	"github.com/teslashibe/voiceflow/pkg/media"
)

type named interface{ Name() string }

// tryInOrder calls each provider until one succeeds.
func tryInOrder[P named, T any](ctx context.Context, logger *slog.Logger, op string, providers []P, call func(P) (T, error)) (T, error) {
	var (
		zero T
		errs []error
	)

	for i, p := range providers {
		out, err := call(p)
		if err == nil {
			if i > 0 {
				logger.Info("fallback provider succeeded", "op", op, "provider", p.Name(), "provider_index", i)
			}
			return out, nil
		}

		errs = append(errs, err)
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		logger.Warn("provider failed, trying next", "op", op, "provider", p.Name(), "error", err)
	}

	if len(errs) == 0 {
		return zero, ErrProviderUnavailable
	}
	return zero, &ChainError{Errors: errs}
}

func chainName[P named](providers []P) string {
	names := make([]string, len(providers))
	for i, p := range providers {
		names[i] = p.Name()
	}
	return "chain(" + strings.Join(names, ",") + ")"
}

// TranscriberChain tries transcribers in order.
type TranscriberChain struct {
	providers []Transcriber
	logger    *slog.Logger
}

// NewTranscriberChain creates a chain. At least one provider is required.
func NewTranscriberChain(logger *slog.Logger, providers ...Transcriber) (*TranscriberChain, error) {
	if len(providers) == 0 {
		return nil, ErrProviderUnavailable
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TranscriberChain{providers: providers, logger: logger.With("component", "inference.chain")}, nil
}

// Transcribe implements Transcriber.
func (c *TranscriberChain) Transcribe(ctx context.Context, audio media.Audio) (string, error) {
	return tryInOrder(ctx, c.logger, "transcribe", c.providers, func(p Transcriber) (string, error) {
		return p.Transcribe(ctx, audio)
	})
}

// Name lists the chained providers.
func (c *TranscriberChain) Name() string { return chainName(c.providers) }

// ResponderChain tries responders in order.
type ResponderChain struct {
	providers []Responder
	logger    *slog.Logger
}

// NewResponderChain creates a chain. At least one provider is required.
func NewResponderChain(logger *slog.Logger, providers ...Responder) (*ResponderChain, error) {
	if len(providers) == 0 {
		return nil, ErrProviderUnavailable
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ResponderChain{providers: providers, logger: logger.With("component", "inference.chain")}, nil
}

// Respond implements Responder.
func (c *ResponderChain) Respond(ctx context.Context, req *RespondRequest) (string, error) {
	return tryInOrder(ctx, c.logger, "respond", c.providers, func(p Responder) (string, error) {
		return p.Respond(ctx, req)
	})
}

// Name lists the chained providers.
func (c *ResponderChain) Name() string { return chainName(c.providers) }

// SynthesizerChain tries synthesizers in order.
type SynthesizerChain struct {
	providers []Synthesizer
	logger    *slog.Logger
}

// NewSynthesizerChain creates a chain. At least one provider is required.
func NewSynthesizerChain(logger *slog.Logger, providers ...Synthesizer) (*SynthesizerChain, error) {
	if len(providers) == 0 {
		return nil, ErrProviderUnavailable
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SynthesizerChain{providers: providers, logger: logger.With("component", "inference.chain")}, nil
}

// Synthesize implements Synthesizer.
func (c *SynthesizerChain) Synthesize(ctx context.Context, text string) (media.Audio, error) {
	return tryInOrder(ctx, c.logger, "synthesize", c.providers, func(p Synthesizer) (media.Audio, error) {
		return p.Synthesize(ctx, text)
	})
}

// Name lists the chained providers.
func (c *SynthesizerChain) Name() string { return chainName(c.providers) }

package extractor

import (
	"context"
	"fmt"

	"supplier-pricing/adapters"
	"supplier-pricing/internal/types"
	"supplier-pricing/pricing"
)

// Runner executes one configuration on an open session
type Runner interface {
	Run(ctx context.Context, driver types.PageDriver, cfg types.ProductConfiguration) types.ExtractionResult
}

// RunnerFunc adapts a function to Runner
type RunnerFunc func(ctx context.Context, driver types.PageDriver, cfg types.ProductConfiguration) types.ExtractionResult

// Run calls f
func (f RunnerFunc) Run(ctx context.Context, driver types.PageDriver, cfg types.ProductConfiguration) types.ExtractionResult {
	return f(ctx, driver, cfg)
}

// Engine wires an adapter, retry controller and price extractor for each
// configuration and runs the state machine.
type Engine struct {
	config   *types.Config
	registry *adapters.Registry
	sink     types.ArtifactSink
	logger   types.Logger
}

// NewEngine creates an engine
func NewEngine(config *types.Config, registry *adapters.Registry, sink types.ArtifactSink, logger types.Logger) *Engine {
	return &Engine{
		config:   config,
		registry: registry,
		sink:     sink,
		logger:   logger,
	}
}

// Run binds a fresh adapter to driver and drives cfg to a terminal state
func (e *Engine) Run(ctx context.Context, driver types.PageDriver, cfg types.ProductConfiguration) types.ExtractionResult {
	settings, ok := e.config.Supplier(cfg.Supplier)
	if !ok {
		return types.FailedResult(cfg, types.StepAuthenticate, &types.ValidationRejectedError{
			Field:   "supplier",
			Message: fmt.Sprintf("unknown supplier %q", cfg.Supplier),
		})
	}

	adapter, err := e.registry.New(cfg.Supplier, e.config, settings, driver, e.logger)
	if err != nil {
		return types.FailedResult(cfg, types.StepAuthenticate, &types.ValidationRejectedError{Field: "supplier", Message: err.Error()})
	}

	prices, err := pricing.NewExtractor(pricing.ProfileFor(settings), e.config.BoundsFor(cfg.ProductType))
	if err != nil {
		return types.FailedResult(cfg, types.StepExtractPrice, &types.ValidationRejectedError{Field: "currency", Message: err.Error()})
	}

	timeout := settings.Timeout
	if timeout <= 0 {
		timeout = e.config.Timeout
	}
	retry := NewRetryController(
		settings.RetryPolicyOr(e.config.Retry),
		adapter,
		WithArtifactSink(e.sink),
		WithStepTimeout(timeout),
		WithRetryLogger(e.logger),
	)

	return NewMachine(adapter, retry, prices, settings.Credentials, e.logger).Run(ctx, cfg)
}

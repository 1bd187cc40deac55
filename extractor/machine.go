package extractor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"supplier-pricing/internal/types"
	"supplier-pricing/pricing"
)

// Run carries the per-configuration state shared by the machine and the
// retry controller. The trace only grows and is frozen once the run ends.
type Run struct {
	Config      types.ProductConfiguration
	Fingerprint types.Fingerprint
	Supplier    string
	Driver      types.PageDriver
	Artifacts   []string

	mu     sync.Mutex
	trace  []types.StepOutcome
	frozen bool
}

// NewRun starts a run for cfg on driver
func NewRun(cfg types.ProductConfiguration, driver types.PageDriver) *Run {
	return &Run{
		Config:      cfg,
		Fingerprint: cfg.Fingerprint(),
		Supplier:    cfg.Supplier,
		Driver:      driver,
	}
}

func (r *Run) record(out types.StepOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return
	}
	r.trace = append(r.trace, out)
}

// Trace returns a copy of the outcomes recorded so far
func (r *Run) Trace() []types.StepOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.StepOutcome{}, r.trace...)
}

func (r *Run) freeze() []types.StepOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
	return append([]types.StepOutcome{}, r.trace...)
}

// transition is one forward edge of the configuration flow
type transition struct {
	step types.Step
	to   types.State
	do   StepFunc
}

// Machine drives one adapter through the configuration flow:
// Idle → Authenticated → ConfiguratorOpened → DimensionsSet → MaterialSet →
// ColorSet → UpgradesSet → Submitted → Completed, or Failed from any state.
type Machine struct {
	adapter types.SupplierAdapter
	retry   *RetryController
	prices  *pricing.Extractor
	creds   types.Credentials
	logger  types.Logger
}

// NewMachine creates a state machine for one adapter
func NewMachine(adapter types.SupplierAdapter, retry *RetryController, prices *pricing.Extractor, creds types.Credentials, logger types.Logger) *Machine {
	return &Machine{
		adapter: adapter,
		retry:   retry,
		prices:  prices,
		creds:   creds,
		logger:  logger,
	}
}

func (m *Machine) transitions(cfg types.ProductConfiguration, price *types.Price) []transition {
	a := m.adapter
	return []transition{
		{types.StepAuthenticate, types.StateAuthenticated, func(ctx context.Context) (string, error) {
			return "", a.Authenticate(ctx, m.creds)
		}},
		{types.StepOpenConfigurator, types.StateConfiguratorOpened, func(ctx context.Context) (string, error) {
			return string(cfg.ProductType), a.OpenConfigurator(ctx, cfg.ProductType)
		}},
		{types.StepSetDimensions, types.StateDimensionsSet, func(ctx context.Context) (string, error) {
			return fmt.Sprintf("%gx%g", cfg.Width, cfg.Height), a.SetDimension(ctx, cfg.Width, cfg.Height)
		}},
		{types.StepSetMaterial, types.StateMaterialSet, func(ctx context.Context) (string, error) {
			return cfg.Material, a.SetMaterial(ctx, cfg.Material)
		}},
		{types.StepSetColor, types.StateColorSet, func(ctx context.Context) (string, error) {
			return cfg.Color, a.SetColor(ctx, cfg.Color)
		}},
		{types.StepSetUpgrades, types.StateUpgradesSet, func(ctx context.Context) (string, error) {
			upgrades := cfg.NormalizedUpgrades()
			return fmt.Sprint(upgrades), a.SetUpgrades(ctx, upgrades)
		}},
		{types.StepSubmit, types.StateSubmitted, func(ctx context.Context) (string, error) {
			return "", a.Submit(ctx)
		}},
		{types.StepExtractPrice, types.StateCompleted, func(ctx context.Context) (string, error) {
			raw, err := a.ReadRawPrice(ctx)
			if err != nil {
				return "", err
			}
			p, err := m.prices.Normalize(raw)
			if err != nil {
				return raw, err
			}
			*price = p
			return p.String(), nil
		}},
	}
}

// Run executes the flow for cfg and always returns a terminal result.
// Cancellation of ctx is observed between steps; a step already running
// is allowed to finish.
func (m *Machine) Run(ctx context.Context, cfg types.ProductConfiguration) types.ExtractionResult {
	run := NewRun(cfg, m.adapter.Driver())
	result := types.ExtractionResult{
		Fingerprint: run.Fingerprint,
		Config:      cfg,
		Supplier:    m.adapter.Supplier(),
		State:       types.StateIdle,
		StartedAt:   time.Now(),
	}

	var price types.Price
	state := types.StateIdle
	m.logger.Debugf("[%s] %s: starting %s", result.Supplier, run.Fingerprint.Short(), cfg)

	for _, t := range m.transitions(cfg, &price) {
		if err := ctx.Err(); err != nil {
			return m.finish(run, result, state, t.step, types.ErrorTypeCancelled, fmt.Sprintf("cancelled before %s: %v", t.step, err))
		}

		out := m.retry.Attempt(ctx, run, t.step, t.do)
		if out.Status != types.StatusSuccess {
			return m.finish(run, result, state, t.step, out.ErrorType, out.Reason)
		}
		m.logger.Debugf("[%s] %s: %s -> %s", result.Supplier, run.Fingerprint.Short(), state, t.to)
		state = t.to
	}

	result.Price = &price
	return m.finish(run, result, types.StateCompleted, "", "", "")
}

func (m *Machine) finish(run *Run, result types.ExtractionResult, last types.State, step types.Step, errType types.ErrorType, reason string) types.ExtractionResult {
	result.Trace = run.freeze()
	result.Artifacts = append([]string(nil), run.Artifacts...)
	result.FinishedAt = time.Now()

	if last == types.StateCompleted {
		result.State = types.StateCompleted
		result.LastState = types.StateSubmitted
		m.logger.Infof("[%s] %s: completed at %s", result.Supplier, run.Fingerprint.Short(), result.Price)
		return result
	}

	result.State = types.StateFailed
	result.LastState = last
	result.FailedStep = step
	result.ErrorType = errType
	result.FailureReason = reason
	m.logger.Warnf("[%s] %s: failed at %s (%s): %s", result.Supplier, run.Fingerprint.Short(), step, errType, reason)
	return result
}

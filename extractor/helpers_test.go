package extractor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"supplier-pricing/internal/fakepage"
	"supplier-pricing/internal/types"
	"supplier-pricing/pricing"
)

// stubAdapter returns scripted errors per step and counts every call
type stubAdapter struct {
	mu     sync.Mutex
	driver types.PageDriver
	errs   map[types.Step][]error
	calls  map[types.Step]int
	raw    string
	// before runs at the start of each step, after the call is counted
	before func(step types.Step)
}

func newStubAdapter(driver types.PageDriver) *stubAdapter {
	return &stubAdapter{
		driver: driver,
		errs:   make(map[types.Step][]error),
		calls:  make(map[types.Step]int),
		raw:    "$1,234.56",
	}
}

// fail makes the next calls of step return errs in order
func (s *stubAdapter) fail(step types.Step, errs ...error) *stubAdapter {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[step] = append(s.errs[step], errs...)
	return s
}

func (s *stubAdapter) count(step types.Step) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[step]
}

func (s *stubAdapter) step(step types.Step) error {
	s.mu.Lock()
	s.calls[step]++
	var err error
	if queue := s.errs[step]; len(queue) > 0 {
		err, s.errs[step] = queue[0], queue[1:]
	}
	before := s.before
	s.mu.Unlock()

	if before != nil {
		before(step)
	}
	return err
}

func (s *stubAdapter) Classify(err error) types.StepStatus { return types.Classify(err) }
func (s *stubAdapter) Supplier() string                    { return "stub" }
func (s *stubAdapter) Settings() types.SupplierSettings    { return types.SupplierSettings{Name: "stub"} }
func (s *stubAdapter) Driver() types.PageDriver            { return s.driver }

func (s *stubAdapter) Authenticate(ctx context.Context, creds types.Credentials) error {
	return s.step(types.StepAuthenticate)
}

func (s *stubAdapter) OpenConfigurator(ctx context.Context, productType types.ProductType) error {
	return s.step(types.StepOpenConfigurator)
}

func (s *stubAdapter) SetDimension(ctx context.Context, width, height float64) error {
	return s.step(types.StepSetDimensions)
}

func (s *stubAdapter) SetMaterial(ctx context.Context, material string) error {
	return s.step(types.StepSetMaterial)
}

func (s *stubAdapter) SetColor(ctx context.Context, color string) error {
	return s.step(types.StepSetColor)
}

func (s *stubAdapter) SetUpgrades(ctx context.Context, upgrades []string) error {
	return s.step(types.StepSetUpgrades)
}

func (s *stubAdapter) Submit(ctx context.Context) error {
	return s.step(types.StepSubmit)
}

func (s *stubAdapter) ReadRawPrice(ctx context.Context) (string, error) {
	if err := s.step(types.StepExtractPrice); err != nil {
		return "", err
	}
	return s.raw, nil
}

// recordingSink keeps every emitted artifact
type recordingSink struct {
	mu        sync.Mutex
	artifacts []types.Artifact
}

func (r *recordingSink) Emit(ctx context.Context, artifact types.Artifact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.artifacts = append(r.artifacts, artifact)
	return nil
}

func (r *recordingSink) all() []types.Artifact {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.Artifact(nil), r.artifacts...)
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	return logger
}

func testPolicy(maxAttempts int) types.RetryPolicy {
	return types.RetryPolicy{
		MaxAttempts: maxAttempts,
		BaseDelay:   10 * time.Millisecond,
		MaxDelay:    time.Second,
		Multiplier:  2,
	}
}

// newTestRetry returns a controller that records delays instead of sleeping
func newTestRetry(policy types.RetryPolicy, sink types.ArtifactSink, delays *[]time.Duration) *RetryController {
	rc := NewRetryController(policy, nil, WithArtifactSink(sink), WithRetryLogger(testLogger()))
	rc.rand = func() float64 { return 0.5 }
	rc.sleep = func(ctx context.Context, d time.Duration) error {
		if delays != nil {
			*delays = append(*delays, d)
		}
		return ctx.Err()
	}
	return rc
}

func newTestMachine(t *testing.T, adapter types.SupplierAdapter, rc *RetryController) *Machine {
	t.Helper()
	prices, err := pricing.NewExtractor(pricing.Profile("en-US"), types.Bounds{Min: 50, Max: 5000})
	require.NoError(t, err)
	return NewMachine(adapter, rc, prices, types.Credentials{Username: "buyer", Password: "secret"}, testLogger())
}

func testConfig(supplier string, width float64) types.ProductConfiguration {
	return types.ProductConfiguration{
		Supplier:    supplier,
		ProductType: types.ProductWindows,
		Width:       width,
		Height:      48,
		Material:    "vinyl",
		Color:       "white",
	}
}

func newErrorPage() *fakepage.Page {
	p := fakepage.New()
	p.SetTitle("Configurator")
	p.SetURL("https://stub.test/configurator")
	p.AddElement(".alert-danger", "Something went wrong")
	return p
}

func stepsOf(trace []types.StepOutcome, step types.Step) []types.StepOutcome {
	var out []types.StepOutcome
	for _, o := range trace {
		if o.Step == step {
			out = append(out, o)
		}
	}
	return out
}

package extractor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supplier-pricing/internal/types"
)

var errFlaky = errors.New("element is not clickable at point")

func TestMachine_HappyPath(t *testing.T) {
	adapter := newStubAdapter(newErrorPage())
	m := newTestMachine(t, adapter, newTestRetry(testPolicy(3), &recordingSink{}, nil))
	cfg := testConfig("stub", 36)

	result := m.Run(context.Background(), cfg)

	require.Equal(t, types.StateCompleted, result.State)
	assert.Equal(t, types.StateSubmitted, result.LastState)
	assert.Equal(t, cfg.Fingerprint(), result.Fingerprint)
	require.NotNil(t, result.Price)
	assert.Equal(t, "1234.56", result.Price.Amount.StringFixed(2))
	assert.Equal(t, "USD", result.Price.Currency.String())
	assert.Empty(t, result.ErrorType)
	assert.Empty(t, result.Artifacts)

	require.Len(t, result.Trace, 8)
	for _, out := range result.Trace {
		assert.Equal(t, types.StatusSuccess, out.Status, out.Step)
		assert.Equal(t, 1, out.Attempt)
	}
	assert.Equal(t, types.StepAuthenticate, result.Trace[0].Step)
	assert.Equal(t, types.StepExtractPrice, result.Trace[7].Step)
	assert.Equal(t, "USD 1234.56", result.Trace[7].Payload)
}

func TestMachine_TransientThenSuccess(t *testing.T) {
	adapter := newStubAdapter(newErrorPage()).fail(types.StepSetMaterial, errFlaky, errFlaky)
	sink := &recordingSink{}
	var delays []time.Duration
	m := newTestMachine(t, adapter, newTestRetry(testPolicy(3), sink, &delays))

	result := m.Run(context.Background(), testConfig("stub", 36))

	require.Equal(t, types.StateCompleted, result.State)
	material := stepsOf(result.Trace, types.StepSetMaterial)
	require.Len(t, material, 3)
	assert.Equal(t, types.StatusTransient, material[0].Status)
	assert.Equal(t, types.StatusTransient, material[1].Status)
	assert.Equal(t, types.StatusSuccess, material[2].Status)
	assert.Equal(t, []int{1, 2, 3}, []int{material[0].Attempt, material[1].Attempt, material[2].Attempt})
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, delays)
	assert.Empty(t, sink.all())
}

func TestMachine_TransientExhausted(t *testing.T) {
	adapter := newStubAdapter(newErrorPage()).fail(types.StepSetMaterial, errFlaky, errFlaky)
	sink := &recordingSink{}
	m := newTestMachine(t, adapter, newTestRetry(testPolicy(2), sink, nil))
	cfg := testConfig("stub", 36)

	result := m.Run(context.Background(), cfg)

	require.Equal(t, types.StateFailed, result.State)
	assert.Equal(t, types.StateDimensionsSet, result.LastState)
	assert.Equal(t, types.StepSetMaterial, result.FailedStep)
	assert.Equal(t, types.ErrorTypeTransientUI, result.ErrorType)
	assert.Contains(t, result.FailureReason, "exhausted after 2 attempts")
	assert.Equal(t, 2, adapter.count(types.StepSetMaterial))
	assert.Zero(t, adapter.count(types.StepSetColor))

	artifacts := sink.all()
	require.Len(t, artifacts, 1)
	key := ArtifactKey(cfg.Fingerprint(), types.StepSetMaterial, 2)
	assert.Equal(t, key, artifacts[0].Key)
	assert.NotEmpty(t, artifacts[0].Screenshot)
	assert.Contains(t, artifacts[0].DOM, "Something went wrong")
	assert.Equal(t, "Configurator", artifacts[0].Title)
	assert.Equal(t, []string{"Something went wrong"}, artifacts[0].Alerts)
	assert.Equal(t, "https://stub.test/configurator", artifacts[0].URL)
	assert.Equal(t, []string{key}, result.Artifacts)

	last := result.Trace[len(result.Trace)-1]
	assert.Equal(t, types.StatusFatal, last.Status)
	assert.Equal(t, key, last.ArtifactRef)
}

func TestMachine_AuthenticationFailureIsFatal(t *testing.T) {
	adapter := newStubAdapter(newErrorPage()).fail(types.StepAuthenticate,
		&types.AuthenticationError{Supplier: "stub", Reason: "Invalid username or password"})
	sink := &recordingSink{}
	m := newTestMachine(t, adapter, newTestRetry(testPolicy(3), sink, nil))

	result := m.Run(context.Background(), testConfig("stub", 36))

	require.Equal(t, types.StateFailed, result.State)
	assert.Equal(t, types.StateIdle, result.LastState)
	assert.Equal(t, types.StepAuthenticate, result.FailedStep)
	assert.Equal(t, types.ErrorTypeAuthentication, result.ErrorType)
	assert.Equal(t, 1, adapter.count(types.StepAuthenticate))
	assert.Zero(t, adapter.count(types.StepOpenConfigurator))
	assert.Len(t, result.Trace, 1)
	assert.Empty(t, sink.all())
}

func TestMachine_ValidationRejectedNotRetried(t *testing.T) {
	adapter := newStubAdapter(newErrorPage()).fail(types.StepSetColor,
		&types.ValidationRejectedError{Field: "color", Message: "color not available"})
	m := newTestMachine(t, adapter, newTestRetry(testPolicy(3), &recordingSink{}, nil))

	result := m.Run(context.Background(), testConfig("stub", 36))

	require.Equal(t, types.StateFailed, result.State)
	assert.Equal(t, types.StateMaterialSet, result.LastState)
	assert.Equal(t, types.ErrorTypeValidationRejected, result.ErrorType)
	assert.Equal(t, 1, adapter.count(types.StepSetColor))
}

func TestMachine_NotApplicableStepIsNoOp(t *testing.T) {
	adapter := newStubAdapter(newErrorPage()).fail(types.StepSetUpgrades, types.ErrNotApplicable)
	m := newTestMachine(t, adapter, newTestRetry(testPolicy(3), &recordingSink{}, nil))

	result := m.Run(context.Background(), testConfig("stub", 36))

	require.Equal(t, types.StateCompleted, result.State)
	upgrades := stepsOf(result.Trace, types.StepSetUpgrades)
	require.Len(t, upgrades, 1)
	assert.Equal(t, types.StatusSuccess, upgrades[0].Status)
	assert.Equal(t, "not-applicable", upgrades[0].Payload)
}

func TestMachine_PriceOutOfBounds(t *testing.T) {
	adapter := newStubAdapter(newErrorPage())
	adapter.raw = "$9,999,999.00"
	m := newTestMachine(t, adapter, newTestRetry(testPolicy(3), &recordingSink{}, nil))

	result := m.Run(context.Background(), testConfig("stub", 36))

	require.Equal(t, types.StateFailed, result.State)
	assert.Equal(t, types.StateSubmitted, result.LastState)
	assert.Equal(t, types.StepExtractPrice, result.FailedStep)
	assert.Equal(t, types.ErrorTypeExtraction, result.ErrorType)
	assert.Nil(t, result.Price)
	assert.Equal(t, 1, adapter.count(types.StepExtractPrice))
}

func TestMachine_CancelledBetweenSteps(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	adapter := newStubAdapter(newErrorPage())
	adapter.before = func(step types.Step) {
		if step == types.StepSetDimensions {
			cancel()
		}
	}
	m := newTestMachine(t, adapter, newTestRetry(testPolicy(3), &recordingSink{}, nil))

	result := m.Run(ctx, testConfig("stub", 36))

	require.Equal(t, types.StateFailed, result.State)
	assert.Equal(t, types.ErrorTypeCancelled, result.ErrorType)
	// the step in flight when cancellation arrived still completes
	assert.Equal(t, types.StateDimensionsSet, result.LastState)
	assert.Equal(t, types.StepSetMaterial, result.FailedStep)
	assert.Zero(t, adapter.count(types.StepSetMaterial))
	assert.Len(t, result.Trace, 3)
}

func TestMachine_AlwaysTerminates(t *testing.T) {
	adapter := newStubAdapter(newErrorPage())
	for _, step := range []types.Step{types.StepAuthenticate, types.StepOpenConfigurator} {
		adapter.fail(step, errFlaky, errFlaky, errFlaky, errFlaky, errFlaky)
	}
	policy := testPolicy(4)
	m := newTestMachine(t, adapter, newTestRetry(policy, &recordingSink{}, nil))

	result := m.Run(context.Background(), testConfig("stub", 36))

	assert.True(t, result.State.Terminal())
	assert.Equal(t, types.StateFailed, result.State)
	assert.Equal(t, policy.MaxAttempts, adapter.count(types.StepAuthenticate))
	assert.LessOrEqual(t, len(result.Trace), policy.MaxAttempts)
}

func TestRun_TraceFrozenAfterFinish(t *testing.T) {
	run := NewRun(testConfig("stub", 36), nil)
	run.record(types.StepOutcome{Step: types.StepAuthenticate, Status: types.StatusSuccess, Attempt: 1})

	frozen := run.freeze()
	run.record(types.StepOutcome{Step: types.StepOpenConfigurator, Status: types.StatusSuccess, Attempt: 1})

	assert.Len(t, frozen, 1)
	assert.Len(t, run.Trace(), 1)
}

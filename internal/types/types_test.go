package types

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/currency"
)

func TestFingerprint_UpgradeOrderInsensitive(t *testing.T) {
	a := ProductConfiguration{
		Supplier: "supplier2", ProductType: ProductWindows,
		Width: 36, Height: 48, Material: "Vinyl", Color: "white",
		Upgrades: []string{"low-e", "tempered"},
	}
	b := a
	b.Material = " vinyl "
	b.Upgrades = []string{"tempered", "low-e", "tempered"}

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.True(t, a.SameContent(b))
	assert.Len(t, string(a.Fingerprint()), 64)
}

func TestFingerprint_DistinguishesContent(t *testing.T) {
	a := ProductConfiguration{Supplier: "supplier1", ProductType: ProductDoors, Width: 36, Height: 80, Material: "steel", Color: "white"}
	b := a
	b.Width = 32

	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
	assert.False(t, a.SameContent(b))
}

func TestRetryPolicy_Backoff(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 4, BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2}

	assert.Equal(t, 100*time.Millisecond, p.Backoff(1, 0.5))
	assert.Equal(t, 200*time.Millisecond, p.Backoff(2, 0.5))
	assert.Equal(t, 400*time.Millisecond, p.Backoff(3, 0.5))
	assert.Equal(t, time.Second, p.Backoff(10, 0.5))

	p.Jitter = 0.5
	assert.Equal(t, 50*time.Millisecond, p.Backoff(1, 0))
	assert.InDelta(t, float64(150*time.Millisecond), float64(p.Backoff(1, 0.999999)), float64(time.Millisecond))
}

func TestRetryPolicy_AttemptsFloor(t *testing.T) {
	assert.Equal(t, 1, RetryPolicy{}.Attempts())
	assert.Equal(t, 5, RetryPolicy{MaxAttempts: 5}.Attempts())
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want StepStatus
	}{
		{"nil", nil, StatusSuccess},
		{"not applicable", ErrNotApplicable, StatusSuccess},
		{"element missing", fmt.Errorf("wait #width: %w", ErrElementNotFound), StatusTransient},
		{"navigation", ErrNavigationTimeout, StatusTransient},
		{"deadline", context.DeadlineExceeded, StatusTransient},
		{"unknown", errors.New("node detached"), StatusTransient},
		{"validation", &ValidationRejectedError{Field: "width", Message: "too wide"}, StatusFatal},
		{"auth", &AuthenticationError{Supplier: "supplier1", Reason: "bad password"}, StatusFatal},
		{"extraction", &ExtractionError{Kind: Unparseable, Raw: "call us"}, StatusFatal},
		{"cancelled", context.Canceled, StatusFatal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestTypeOf_Wrapped(t *testing.T) {
	err := fmt.Errorf("step failed: %w", &AuthenticationError{Supplier: "supplier2", Reason: "rejected"})
	assert.Equal(t, ErrorTypeAuthentication, TypeOf(err))

	exhausted := &TransientUIError{Step: StepSubmit, Attempts: 3, Err: ErrElementNotFound}
	assert.Equal(t, ErrorTypeTransientUI, TypeOf(exhausted))
	assert.Contains(t, exhausted.Error(), "exhausted after 3 attempts")
}

func TestPrice_JSON(t *testing.T) {
	p := Price{Amount: decimal.RequireFromString("1234.56"), Currency: currency.USD, Raw: "$1,234.56"}

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount":"1234.56","currency":"USD","raw":"$1,234.56"}`, string(data))

	var back Price
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, p.Amount.Equal(back.Amount))
	assert.Equal(t, currency.USD, back.Currency)
}

func TestBatchReport_Tally(t *testing.T) {
	report := &BatchReport{Results: []ExtractionResult{
		{State: StateCompleted},
		{State: StateFailed, FailedStep: StepAuthenticate, ErrorType: ErrorTypeAuthentication, FailureReason: "denied"},
		{State: StateCompleted},
	}}
	report.Tally()

	assert.Equal(t, 2, report.Completed)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, StepAuthenticate, report.Failures[0].Step)
}

func TestBounds_Contains(t *testing.T) {
	b := Bounds{Min: 50, Max: 5000}
	assert.True(t, b.Contains(50))
	assert.True(t, b.Contains(5000))
	assert.False(t, b.Contains(49.99))
	assert.False(t, b.Contains(5000.01))
	assert.True(t, Bounds{Min: 1}.Contains(1e9))
}

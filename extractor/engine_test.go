package extractor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supplier-pricing/adapters"
	"supplier-pricing/internal/fakepage"
	"supplier-pricing/internal/types"
)

func engineConfig() *types.Config {
	config := types.DefaultConfig()
	config.RequestDelay = 0
	config.Retry = types.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}
	settings := config.Suppliers["supplier1"]
	settings.RateLimit = 0
	settings.BaseURL = "https://supplier1.test"
	settings.Credentials = types.Credentials{Username: "buyer", Password: "secret"}
	config.Suppliers["supplier1"] = settings
	return config
}

// supplier1Page scripts the supplier1 login, catalog and windows configurator
func supplier1Page(price string) *fakepage.Page {
	p := fakepage.New()
	p.AddElement("#username", "").AddElement("#password", "").AddElement("form#login button[type=submit]", "Sign in")
	p.OnClick("form#login button[type=submit]", func(p *fakepage.Page) {
		if p.Value("#password") == "secret" {
			p.SetURL("https://supplier1.test/dashboard")
			return
		}
		p.SetText(".alert-danger", "Invalid username or password")
	})
	p.AddElement("a[data-section=windows]", "Windows")
	p.OnClick("a[data-section=windows]", func(p *fakepage.Page) {
		p.AddElement("#configurator", "")
		p.AddElement("#width", "").AddElement("#height", "")
		p.AddSelect("#material", "Vinyl", "Wood", "Aluminum")
		p.AddSelect("#color", "White", "Bronze")
		p.AddElement("#calculate-price", "Calculate")
	})
	p.OnClick("#calculate-price", func(p *fakepage.Page) {
		p.SetText(".price-display", price)
	})
	return p
}

func TestEngine_RunsSupplierFlow(t *testing.T) {
	sink := &recordingSink{}
	engine := NewEngine(engineConfig(), adapters.DefaultRegistry(), sink, testLogger())
	page := supplier1Page("$1,234.56")
	// the first click on calculate misses while the form re-renders
	page.FailNext("click", "#calculate-price", 1, types.ErrElementNotFound)

	result := engine.Run(context.Background(), page, testConfig("supplier1", 36))

	require.Equal(t, types.StateCompleted, result.State, result.FailureReason)
	assert.Equal(t, "USD 1234.56", result.Price.String())
	assert.Len(t, stepsOf(result.Trace, types.StepSubmit), 2)
	assert.Equal(t, "36", page.Value("#width"))
	assert.Equal(t, "Vinyl", page.Value("#material"))
	assert.Empty(t, sink.all())
}

func TestEngine_SlowLoginIsRetried(t *testing.T) {
	config := engineConfig()
	settings := config.Suppliers["supplier1"]
	settings.Timeout = 50 * time.Millisecond
	config.Suppliers["supplier1"] = settings
	engine := NewEngine(config, adapters.DefaultRegistry(), &recordingSink{}, testLogger())

	page := supplier1Page("$1,234.56")
	submits := 0
	// the dashboard only appears after the second submit
	page.OnClick("form#login button[type=submit]", func(p *fakepage.Page) {
		submits++
		if submits >= 2 {
			p.SetURL("https://supplier1.test/dashboard")
		}
	})

	result := engine.Run(context.Background(), page, testConfig("supplier1", 36))

	require.Equal(t, types.StateCompleted, result.State, result.FailureReason)
	auth := stepsOf(result.Trace, types.StepAuthenticate)
	require.Len(t, auth, 2)
	assert.Equal(t, types.StatusTransient, auth[0].Status)
	assert.Equal(t, types.StatusSuccess, auth[1].Status)
	assert.Equal(t, 2, submits)
}

func TestEngine_UnknownSupplier(t *testing.T) {
	engine := NewEngine(engineConfig(), adapters.DefaultRegistry(), nil, testLogger())
	page := fakepage.New()

	result := engine.Run(context.Background(), page, testConfig("nobody", 36))

	assert.Equal(t, types.StateFailed, result.State)
	assert.Equal(t, types.ErrorTypeValidationRejected, result.ErrorType)
	assert.Empty(t, page.Calls())
}

func TestEngine_RejectedLogin(t *testing.T) {
	config := engineConfig()
	settings := config.Suppliers["supplier1"]
	settings.Credentials.Password = "wrong"
	config.Suppliers["supplier1"] = settings
	engine := NewEngine(config, adapters.DefaultRegistry(), nil, testLogger())

	result := engine.Run(context.Background(), supplier1Page("$1,234.56"), testConfig("supplier1", 36))

	assert.Equal(t, types.StateFailed, result.State)
	assert.Equal(t, types.StateIdle, result.LastState)
	assert.Equal(t, types.ErrorTypeAuthentication, result.ErrorType)
	assert.Contains(t, result.FailureReason, "Invalid username or password")
}

func TestEngine_BatchThroughPool(t *testing.T) {
	config := engineConfig()
	engine := NewEngine(config, adapters.DefaultRegistry(), &recordingSink{}, testLogger())
	opener := OpenerFunc(func(ctx context.Context, supplier string) (types.PageDriver, error) {
		return supplier1Page("$899.00"), nil
	})
	pool := NewPool(2, opener, engine, testLogger())
	defer pool.Close()

	configs := []types.ProductConfiguration{
		testConfig("supplier1", 24),
		testConfig("supplier1", 30),
		testConfig("supplier1", 36),
	}
	configs[2].Material = "titanium"

	report, err := NewCollector(pool, testLogger()).Collect(context.Background(), configs)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Completed)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, types.StepSetMaterial, report.Failures[0].Step)
	assert.Equal(t, types.ErrorTypeValidationRejected, report.Failures[0].ErrorType)
	assert.LessOrEqual(t, pool.Peak(), 2)
}

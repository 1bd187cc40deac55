package extractor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supplier-pricing/adapters"
	"supplier-pricing/internal/types"
)

func TestService_Extract(t *testing.T) {
	config := engineConfig()
	config.MaxConcurrentSessions = 2
	opener := OpenerFunc(func(ctx context.Context, supplier string) (types.PageDriver, error) {
		return supplier1Page("$1,050.00"), nil
	})
	svc := NewService(config, adapters.DefaultRegistry(), opener, &recordingSink{}, testLogger())
	defer svc.Close()

	report, err := svc.Extract(context.Background(), []types.ProductConfiguration{
		testConfig("supplier1", 24),
		testConfig("supplier1", 30),
		testConfig("supplier1", 36),
		testConfig("supplier1", 42),
		testConfig("supplier1", 48),
	})
	require.NoError(t, err)

	assert.Equal(t, 5, report.Completed)
	for _, res := range report.Results {
		require.NotNil(t, res.Price)
		assert.Equal(t, "1050.00", res.Price.Amount.StringFixed(2))
		assert.NotEmpty(t, res.SessionID)
	}
	assert.LessOrEqual(t, svc.Pool().Peak(), 2)
}

func TestService_CloseIsIdempotent(t *testing.T) {
	svc := NewService(engineConfig(), adapters.DefaultRegistry(), &countingOpener{}, nil, testLogger())
	svc.Close()
	svc.Close()

	_, err := svc.Extract(context.Background(), []types.ProductConfiguration{testConfig("supplier1", 24)})
	assert.ErrorIs(t, err, ErrPoolClosed)
}

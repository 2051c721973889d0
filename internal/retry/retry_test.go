package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/CaixiangyangCD/ksx/internal/domain"
)

func fastPolicy(attempts int) Policy {
	return Policy{MaxAttempts: attempts, InitialBackoff: time.Millisecond, Step: time.Millisecond}
}

func TestRetryable(t *testing.T) {
	t.Parallel()

	require.True(t, Retryable(domain.ErrExtractionTimeout))
	require.False(t, Retryable(nil))
	require.False(t, Retryable(domain.ErrNoData))
	require.False(t, Retryable(domain.NewAutomationError(domain.KindLogin, "submit", nil)))
	require.False(t, Retryable(errors.New("some other failure")))
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	t.Parallel()

	calls := 0
	err := fastPolicy(5).Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return domain.ErrExtractionTimeout
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestDoStopsOnFatalError(t *testing.T) {
	t.Parallel()

	calls := 0
	err := fastPolicy(5).Do(context.Background(), func(ctx context.Context) error {
		calls++
		return domain.ErrNoData
	})
	require.ErrorIs(t, err, domain.ErrNoData)
	require.Equal(t, 1, calls)
}

func TestDoExhaustsAttempts(t *testing.T) {
	t.Parallel()

	calls := 0
	err := fastPolicy(3).Do(context.Background(), func(ctx context.Context) error {
		calls++
		return domain.ErrExtractionTimeout
	})
	require.ErrorIs(t, err, domain.ErrExtractionTimeout)
	require.Equal(t, 3, calls)
}

func TestDoHonorsContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Policy{MaxAttempts: 3, InitialBackoff: time.Minute}.Do(ctx, func(ctx context.Context) error {
		return domain.ErrExtractionTimeout
	})
	require.ErrorIs(t, err, context.Canceled)
}

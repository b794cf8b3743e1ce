package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIssueLimiter(t *testing.T) {
	t.Parallel()

	l := NewIssueLimiter(1, time.Hour, 2)

	// Burst is honored, then the key is throttled.
	require.True(t, l.Allow("a@x.com|LOGIN"))
	require.True(t, l.Allow("a@x.com|LOGIN"))
	require.False(t, l.Allow("a@x.com|LOGIN"))

	// Independent keys have independent budgets.
	require.True(t, l.Allow("b@x.com|LOGIN"))
	require.True(t, l.Allow("a@x.com|PASSWORD_RESET"))
}

package util

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	assert.Equal(t, "req-1", GetRequestID(ctx))

	generated := GetRequestID(WithRequestID(context.Background(), ""))
	_, err := uuid.Parse(generated)
	require.NoError(t, err)

	assert.Empty(t, GetRequestID(context.Background()))
}

func TestContextValues(t *testing.T) {
	ctx := WithClientIP(context.Background(), "10.0.0.1")
	ctx = WithSubscribedSymbol(ctx, "BTC/USDT")

	assert.Equal(t, "10.0.0.1", GetClientIP(ctx))
	assert.Equal(t, "BTC/USDT", GetSubscribedSymbol(ctx))
	assert.Empty(t, GetSubscribedSymbol(context.Background()))
}

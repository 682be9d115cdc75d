package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchRegistry_LastRequestWins(t *testing.T) {
	r := NewFetchRegistry()
	key := FetchKey{DatasourceID: "ds-1", WidgetID: "w-1", Field: "region"}

	ctx1, token1 := r.Begin(context.Background(), key)
	ctx2, token2 := r.Begin(context.Background(), key)

	// Beginning the second fetch cancels the first.
	assert.Error(t, ctx1.Err())
	require.NoError(t, ctx2.Err())

	// The superseded token is rejected even though its response "arrived".
	assert.False(t, r.Accept(key, token1))
	assert.True(t, r.Accept(key, token2))

	// A token can only be accepted once.
	assert.False(t, r.Accept(key, token2))
}

func TestFetchRegistry_DistinctKeysInterleave(t *testing.T) {
	r := NewFetchRegistry()
	a := FetchKey{DatasourceID: "ds-1", WidgetID: "w-1", Field: "region"}
	b := FetchKey{DatasourceID: "ds-1", WidgetID: "w-1", Field: "city"}

	ctxA, tokenA := r.Begin(context.Background(), a)
	_, tokenB := r.Begin(context.Background(), b)

	require.NoError(t, ctxA.Err())
	assert.True(t, r.Accept(a, tokenA))
	assert.True(t, r.Accept(b, tokenB))
}

func TestFetchRegistry_CancelAll(t *testing.T) {
	r := NewFetchRegistry()
	key := FetchKey{DatasourceID: "ds-1", WidgetID: "w-1", Field: "region"}

	ctx, token := r.Begin(context.Background(), key)
	r.CancelAll()

	assert.Error(t, ctx.Err())
	assert.False(t, r.Accept(key, token))
}

package middleware

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

func mockHandler(calls *int) grpc.UnaryHandler {
	return func(ctx context.Context, req interface{}) (interface{}, error) {
		*calls++
		return "response-" + req.(string), nil
	}
}

func always(string, interface{}) bool { return true }

func TestCachingInterceptor(t *testing.T) {
	cache, err := NewCache(2)
	require.NoError(t, err, "Failed to initialize cache")
	interceptor := cache.Interceptor(always)

	ctx := context.Background()
	info := &grpc.UnaryServerInfo{FullMethod: "/test.Service/Method"}
	calls := 0
	handler := mockHandler(&calls)

	resp, err := interceptor(ctx, "request1", info, handler)
	assert.NoError(t, err)
	assert.Equal(t, "response-request1", resp)

	respCached, err := interceptor(ctx, "request1", info, handler)
	assert.NoError(t, err)
	assert.Equal(t, resp, respCached)
	assert.Equal(t, 1, calls, "handler should not run on a cache hit")

	_, err = interceptor(ctx, "request2", info, handler)
	assert.NoError(t, err)
	_, err = interceptor(ctx, "request3", info, handler)
	assert.NoError(t, err)

	// The first request should have been evicted due to cache size.
	key, ok := generateCacheKey(info.FullMethod, "request1")
	require.True(t, ok)
	_, ok = cache.lru.Get(key)
	assert.False(t, ok, "Expected first request to be evicted from cache")

	cache.Purge()
	assert.Zero(t, cache.Len())
}

func TestCachingInterceptorSkipsUncacheable(t *testing.T) {
	cache, err := NewCache(4)
	require.NoError(t, err)
	interceptor := cache.Interceptor(func(string, interface{}) bool { return false })

	calls := 0
	info := &grpc.UnaryServerInfo{FullMethod: "/test.Service/Method"}
	for i := 0; i < 3; i++ {
		_, err := interceptor(context.Background(), "request", info, mockHandler(&calls))
		require.NoError(t, err)
	}
	assert.Equal(t, 3, calls)
	assert.Zero(t, cache.Len())
}

func TestCacheKeyIsDeterministicForStructs(t *testing.T) {
	fields := map[string]interface{}{"item": "Temp", "metric": "average", "selector": "between", "start": "a", "end": "b"}
	a, err := structpb.NewStruct(fields)
	require.NoError(t, err)
	b, err := structpb.NewStruct(fields)
	require.NoError(t, err)

	ka, ok := generateCacheKey("/m", a)
	require.True(t, ok)
	kb, ok := generateCacheKey("/m", b)
	require.True(t, ok)
	assert.Equal(t, ka, kb)
}

func TestNewCacheRejectsBadSize(t *testing.T) {
	_, err := NewCache(-1)
	assert.Error(t, err)
}

func TestCacheInvalidate(t *testing.T) {
	cache, err := NewCache(8)
	require.NoError(t, err)
	interceptor := cache.Interceptor(always)

	ctx := context.Background()
	info := &grpc.UnaryServerInfo{FullMethod: "/test.Service/Method"}
	calls := 0
	handler := mockHandler(&calls)
	for _, req := range []string{"kitchen", "garage", "kitchen-door"} {
		_, err := interceptor(ctx, req, info, handler)
		require.NoError(t, err)
	}
	require.Equal(t, 3, cache.Len())

	dropped := cache.Invalidate(func(req interface{}) bool { return req.(string) == "kitchen" })
	assert.Equal(t, 1, dropped)
	assert.Equal(t, 2, cache.Len())

	// dropped request runs the handler again, the others still hit
	_, err = interceptor(ctx, "kitchen", info, handler)
	require.NoError(t, err)
	_, err = interceptor(ctx, "garage", info, handler)
	require.NoError(t, err)
	assert.Equal(t, 4, calls)
}

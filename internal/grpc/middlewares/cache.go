package middleware

// Results of closed historical windows only change when states inside them
// are written or removed, so they are kept in an in-process LRU and dropped
// through Invalidate on such writes.

import (
	"context"
	"encoding/json"
	"fmt"

	lru "github.com/hashicorp/golang-lru"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
)

// Cacheable decides whether the response to req may be cached.
type Cacheable func(method string, req interface{}) bool

type Cache struct {
	lru *lru.Cache
}

// entry keeps the request next to its response for Invalidate.
type entry struct {
	req  interface{}
	resp interface{}
}

// NewCache sets up an in-memory LRU cache holding size responses.
func NewCache(size int) (*Cache, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &Cache{lru: c}, nil
}

// Purge drops every cached response.
func (c *Cache) Purge() {
	c.lru.Purge()
}

func (c *Cache) Len() int {
	return c.lru.Len()
}

// Invalidate drops the cached responses whose request matches and returns
// how many were dropped.
func (c *Cache) Invalidate(match func(req interface{}) bool) int {
	n := 0
	for _, key := range c.lru.Keys() {
		v, ok := c.lru.Peek(key)
		if !ok {
			continue
		}
		if match(v.(entry).req) {
			c.lru.Remove(key)
			n++
		}
	}
	return n
}

// Interceptor serves repeated cacheable requests from memory.
func (c *Cache) Interceptor(cacheable Cacheable) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		if !cacheable(info.FullMethod, req) {
			return handler(ctx, req)
		}

		key, ok := generateCacheKey(info.FullMethod, req)
		if !ok {
			return handler(ctx, req)
		}
		if cached, ok := c.lru.Get(key); ok {
			return cached.(entry).resp, nil
		}

		resp, err := handler(ctx, req)
		if err != nil {
			return nil, err
		}
		c.lru.Add(key, entry{req: req, resp: resp})
		return resp, nil
	}
}

// generateCacheKey serializes the request; proto messages use deterministic
// wire encoding so that equal maps produce equal keys.
func generateCacheKey(method string, req interface{}) (string, bool) {
	var (
		reqBytes []byte
		err      error
	)
	if m, ok := req.(proto.Message); ok {
		reqBytes, err = proto.MarshalOptions{Deterministic: true}.Marshal(m)
	} else {
		reqBytes, err = json.Marshal(req)
	}
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("%s:%s", method, string(reqBytes)), true
}

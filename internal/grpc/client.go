package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls a remote PersistenceQueryService.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Query sends p and returns the response fields.
func (c *Client) Query(ctx context.Context, p QueryParams, opts ...grpc.CallOption) (map[string]interface{}, error) {
	return c.invoke(ctx, QueryMethod, p, opts...)
}

func (c *Client) RemoveStates(ctx context.Context, p QueryParams, opts ...grpc.CallOption) (map[string]interface{}, error) {
	return c.invoke(ctx, RemoveStatesMethod, p, opts...)
}

func (c *Client) invoke(ctx context.Context, method string, p QueryParams, opts ...grpc.CallOption) (map[string]interface{}, error) {
	in, err := structpb.NewStruct(map[string]interface{}{
		"item":       p.Item,
		"metric":     p.Metric,
		"selector":   p.Selector,
		"start":      p.Start,
		"end":        p.End,
		"service":    p.Service,
		"riemann":    p.Riemann,
		"skip_equal": p.SkipEqual,
	})
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}

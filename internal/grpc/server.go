package server

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/tejusbharadwaj/itemhistory/internal/database"
	middleware "github.com/tejusbharadwaj/itemhistory/internal/grpc/middlewares"
	"github.com/tejusbharadwaj/itemhistory/internal/item"
	"github.com/tejusbharadwaj/itemhistory/internal/persistence"
	"github.com/tejusbharadwaj/itemhistory/internal/units"
)

const (
	ServiceName        = "itemhistory.v1.PersistenceQueryService"
	QueryMethod        = "/" + ServiceName + "/Query"
	RemoveStatesMethod = "/" + ServiceName + "/RemoveStates"
)

// ServerConfig holds configuration options for the gRPC server
type ServerConfig struct {
	CacheSize      int     // Size of the LRU cache
	RateLimit      float64 // Requests per second
	RateLimitBurst int     // Maximum burst size for rate limiting

	// Cache is shared with PurgeOnWrite; a cache of CacheSize is created
	// when nil.
	Cache *middleware.Cache
}

// DefaultServerConfig returns a ServerConfig with sensible defaults
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		CacheSize:      1000,
		RateLimit:      5.0, // 5 requests per second
		RateLimitBurst: 10,  // Burst of 10 requests
	}
}

// ItemLookup resolves items by name.
type ItemLookup interface {
	Get(name string) (item.Item, error)
}

// QueryEngine is the part of persistence.Extensions the service uses.
type QueryEngine interface {
	Execute(ctx context.Context, it item.Item, req persistence.Request) (persistence.Result, error)
	RemoveAllStates(ctx context.Context, it item.Item, sel persistence.Selector, serviceID string) error
}

// PersistenceQueryServer is implemented by the query service.
type PersistenceQueryServer interface {
	Query(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RemoveStates(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// PersistenceQueryService answers queries about item history
type PersistenceQueryService struct {
	items     ItemLookup
	engine    QueryEngine
	validator *RequestValidator
	logger    *logrus.Entry

	// onRemove runs after states were removed, e.g. to drop cached results.
	onRemove func()
}

// NewPersistenceQueryService creates a new service instance
func NewPersistenceQueryService(items ItemLookup, engine QueryEngine, logger *logrus.Logger) *PersistenceQueryService {
	return &PersistenceQueryService{
		items:     items,
		engine:    engine,
		validator: NewRequestValidator(),
		logger:    logger.WithField("component", "grpc"),
		onRemove:  func() {},
	}
}

// ParamsFromStruct reads the request fields of a Query or RemoveStates call.
func ParamsFromStruct(s *structpb.Struct) QueryParams {
	f := s.GetFields()
	return QueryParams{
		Item:      f["item"].GetStringValue(),
		Metric:    f["metric"].GetStringValue(),
		Selector:  f["selector"].GetStringValue(),
		Start:     f["start"].GetStringValue(),
		End:       f["end"].GetStringValue(),
		Service:   f["service"].GetStringValue(),
		Riemann:   f["riemann"].GetStringValue(),
		SkipEqual: f["skip_equal"].GetBoolValue(),
	}
}

// Query implements the gRPC service method
func (s *PersistenceQueryService) Query(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	params := ParamsFromStruct(in)
	req, err := s.validator.Validate(params)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	it, err := s.items.Get(params.Item)
	if err != nil {
		return nil, statusFromError(err)
	}

	res, err := s.engine.Execute(ctx, it, req)
	if err != nil {
		s.logger.WithFields(logrus.Fields{"item": params.Item, "metric": params.Metric}).WithError(err).Warn("query failed")
		return nil, statusFromError(err)
	}
	return structpb.NewStruct(ResultFields(res))
}

// RemoveStates deletes the persisted states selected by the request.
func (s *PersistenceQueryService) RemoveStates(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	params := ParamsFromStruct(in)
	if params.Item == "" {
		return nil, status.Error(codes.InvalidArgument, "missing item")
	}
	sel, err := s.validator.Selector(params)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	it, err := s.items.Get(params.Item)
	if err != nil {
		return nil, statusFromError(err)
	}
	if err := s.engine.RemoveAllStates(ctx, it, sel, params.Service); err != nil {
		return nil, statusFromError(err)
	}
	s.onRemove()
	return structpb.NewStruct(map[string]interface{}{"removed": true})
}

// statusFromError maps domain errors onto gRPC codes.
func statusFromError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, persistence.ErrUnknownMetric),
		errors.Is(err, persistence.ErrMissingSelector), errors.Is(err, persistence.ErrUnknownRiemannType):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, item.ErrNotFound), errors.Is(err, persistence.ErrNoService):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, units.ErrIncompatible), errors.Is(err, units.ErrUnknownUnit):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	return status.Errorf(codes.Internal, "query failed: %v", err)
}

// cacheableQuery admits Query calls over a between window that closed in
// the past. Their answer only changes when states are removed.
func cacheableQuery(now func() time.Time) middleware.Cacheable {
	v := NewRequestValidator()
	return func(method string, req interface{}) bool {
		in, ok := req.(*structpb.Struct)
		if method != QueryMethod || !ok {
			return false
		}
		params := ParamsFromStruct(in)
		if params.Selector != "between" || !persistence.NeedsSelector(params.Metric) {
			return false
		}
		sel, err := v.Selector(params)
		if err != nil {
			return false
		}
		return sel.Window(now()).End.Before(now())
	}
}

// PurgeOnWrite drops cached answers a write to item at or after earliest may
// have changed: cached windows of that item ending at or after earliest.
func PurgeOnWrite(cache *middleware.Cache) database.WriteHook {
	v := NewRequestValidator()
	return func(itemName string, earliest time.Time) {
		cache.Invalidate(func(req interface{}) bool {
			in, ok := req.(*structpb.Struct)
			if !ok {
				return true
			}
			params := ParamsFromStruct(in)
			if params.Item != itemName {
				return false
			}
			sel, err := v.Selector(params)
			if err != nil {
				return true
			}
			return !sel.Window(earliest).End.Before(earliest)
		})
	}
}

func queryHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PersistenceQueryServer).Query(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: QueryMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PersistenceQueryServer).Query(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func removeStatesHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PersistenceQueryServer).RemoveStates(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: RemoveStatesMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PersistenceQueryServer).RemoveStates(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// ServiceDesc describes PersistenceQueryService. Messages are
// google.protobuf.Struct, so no generated code is needed.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PersistenceQueryServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Query", Handler: queryHandler},
		{MethodName: "RemoveStates", Handler: removeStatesHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "itemhistory/v1/query.proto",
}

// gRPC Server Configuration without the middleware (for development and debug only)
func ConfigureGRPCServer(
	svc *PersistenceQueryService,
	opts ...grpc.ServerOption,
) *grpc.Server {
	srv := grpc.NewServer(opts...)
	srv.RegisterService(&ServiceDesc, svc)
	return srv
}

// SetupServer initializes and configures the gRPC server with all middleware
func SetupServer(svc *PersistenceQueryService, config ServerConfig, health *HealthChecker, logger *logrus.Logger) (*grpc.Server, error) {
	cache := config.Cache
	if cache == nil {
		var err error
		if cache, err = middleware.NewCache(config.CacheSize); err != nil {
			return nil, err
		}
	}
	svc.onRemove = cache.Purge

	if err := middleware.Register(prometheus.DefaultRegisterer, middleware.Requests, middleware.Latency); err != nil {
		return nil, err
	}

	server := grpc.NewServer(
		grpc.UnaryInterceptor(
			chainUnaryInterceptors(
				middleware.ContextMiddleware, // Add request ID first
				middleware.NewRateLimitingInterceptor(config.RateLimit, config.RateLimitBurst), // Rate limit early
				middleware.NewLoggingInterceptor(logger),                                       // Log all requests (with request ID)
				middleware.NewMetricsInterceptor(middleware.Requests, middleware.Latency),
				cache.Interceptor(cacheableQuery(time.Now)), // Cache last to avoid caching errors
			),
		),
	)

	server.RegisterService(&ServiceDesc, svc)
	if health != nil {
		grpc_health_v1.RegisterHealthServer(server, health)
	}

	return server, nil
}

// chainUnaryInterceptors creates a single interceptor from multiple interceptors
func chainUnaryInterceptors(interceptors ...grpc.UnaryServerInterceptor) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		chain := handler
		for i := len(interceptors) - 1; i >= 0; i-- {
			interceptor := interceptors[i]
			chainedInterceptor := chain
			chain = func(currentCtx context.Context, currentReq interface{}) (interface{}, error) {
				return interceptor(currentCtx, currentReq, info, chainedInterceptor)
			}
		}
		return chain(ctx, req)
	}
}

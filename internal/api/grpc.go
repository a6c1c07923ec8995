package api

import (
	"context"
	"encoding/json"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"tickerlab/internal/domain"
	"tickerlab/internal/engine"
	"tickerlab/pkg/tickerlab"
)

// MarketDataServiceName is the fully qualified gRPC service name.
const MarketDataServiceName = "tickerlab.v1.MarketData"

// Full method names.
const (
	FetchBarsMethod   = "/" + MarketDataServiceName + "/FetchBars"
	RunBacktestMethod = "/" + MarketDataServiceName + "/RunBacktest"
)

// MarketDataServer is the server API of tickerlab.v1.MarketData. Requests
// and responses are google.protobuf.Struct values carrying the same fields
// as the HTTP API's JSON bodies.
type MarketDataServer interface {
	FetchBars(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RunBacktest(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterMarketDataServer registers srv on s.
func RegisterMarketDataServer(s grpc.ServiceRegistrar, srv MarketDataServer) {
	s.RegisterService(&marketDataServiceDesc, srv)
}

var marketDataServiceDesc = grpc.ServiceDesc{
	ServiceName: MarketDataServiceName,
	HandlerType: (*MarketDataServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "FetchBars", Handler: fetchBarsHandler},
		{MethodName: "RunBacktest", Handler: runBacktestHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "tickerlab/v1/market_data.proto",
}

func fetchBarsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MarketDataServer).FetchBars(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FetchBarsMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(MarketDataServer).FetchBars(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func runBacktestHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MarketDataServer).RunBacktest(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: RunBacktestMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(MarketDataServer).RunBacktest(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// MarketDataClient is the client API of tickerlab.v1.MarketData.
type MarketDataClient struct {
	cc grpc.ClientConnInterface
}

// NewMarketDataClient creates a client over cc.
func NewMarketDataClient(cc grpc.ClientConnInterface) *MarketDataClient {
	return &MarketDataClient{cc: cc}
}

// FetchBars calls MarketData.FetchBars.
func (c *MarketDataClient) FetchBars(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FetchBarsMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// RunBacktest calls MarketData.RunBacktest.
func (c *MarketDataClient) RunBacktest(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, RunBacktestMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Service implementation
// ---------------------------------------------------------------------------

// MarketDataService implements MarketDataServer on top of the pipeline
// engine.
type MarketDataService struct {
	engine *engine.Engine
}

var _ MarketDataServer = (*MarketDataService)(nil)

// NewMarketDataService creates a MarketDataService.
func NewMarketDataService(e *engine.Engine) *MarketDataService {
	return &MarketDataService{engine: e}
}

// FetchBars expects ticker, start_date, end_date and an optional timeframe.
func (s *MarketDataService) FetchBars(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	f := in.GetFields()
	q, err := domain.NewQuery(
		f["ticker"].GetStringValue(),
		f["start_date"].GetStringValue(),
		f["end_date"].GetStringValue(),
		f["timeframe"].GetStringValue(),
	)
	if err != nil {
		return nil, grpcError(err)
	}

	out, err := s.engine.Run(ctx, engine.Request{Query: q})
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(tickerlab.BarsResponse{
		RequestID: out.RequestID,
		Ticker:    q.Ticker,
		Timeframe: string(q.Timeframe),
		StartDate: q.Start.Format(domain.DateLayout),
		EndDate:   q.End.Format(domain.DateLayout),
		Count:     len(out.Bars),
		Bars:      tickerlab.NewBars(out.Bars),
	})
}

// RunBacktest accepts the fields of a tickerlab.BacktestRequest.
func (s *MarketDataService) RunBacktest(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req tickerlab.BacktestRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	resp, err := runBacktest(ctx, s.engine, req)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(resp)
}

// toStruct converts v to a Struct through its JSON encoding.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	st, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return st, nil
}

// fromStruct decodes a Struct into v through JSON.
func fromStruct(in *structpb.Struct, v any) error {
	data, err := json.Marshal(in.AsMap())
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// grpcError maps the domain error taxonomy onto gRPC status codes.
func grpcError(err error) error {
	code := codes.Internal
	switch {
	case errors.Is(err, domain.ErrValidation):
		code = codes.InvalidArgument
	case errors.Is(err, domain.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, domain.ErrDataSource):
		code = codes.Unavailable
	}
	return status.Error(code, err.Error())
}

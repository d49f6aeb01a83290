package apiconnect

import (
	"context"
	"net/http"

	"connectrpc.com/connect"

	"github.com/mmynk/estatesale/pkg/api"
)

// LineServiceName is the fully-qualified name of the LineService.
const LineServiceName = "estatesale.v1.LineService"

// Procedure paths of the LineService.
const (
	LineServiceStartLineProcedure       = "/estatesale.v1.LineService/StartLine"
	LineServiceCallNextProcedure        = "/estatesale.v1.LineService/CallNext"
	LineServiceMarkServedProcedure      = "/estatesale.v1.LineService/MarkServed"
	LineServiceCancelLineEntryProcedure = "/estatesale.v1.LineService/CancelLineEntry"
	LineServiceGetLineStatusProcedure   = "/estatesale.v1.LineService/GetLineStatus"
)

// LineServiceHandler serves the entry line of a sale.
type LineServiceHandler interface {
	StartLine(context.Context, *connect.Request[api.StartLineRequest]) (*connect.Response[api.StartLineResponse], error)
	CallNext(context.Context, *connect.Request[api.CallNextRequest]) (*connect.Response[api.CallNextResponse], error)
	MarkServed(context.Context, *connect.Request[api.MarkServedRequest]) (*connect.Response[api.MarkServedResponse], error)
	CancelLineEntry(context.Context, *connect.Request[api.CancelLineEntryRequest]) (*connect.Response[api.CancelLineEntryResponse], error)
	GetLineStatus(context.Context, *connect.Request[api.GetLineStatusRequest]) (*connect.Response[api.GetLineStatusResponse], error)
}

// NewLineServiceHandler builds an HTTP handler from the service implementation.
// It returns the path on which to mount the handler and the handler itself.
func NewLineServiceHandler(svc LineServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	startLineHandler := connect.NewUnaryHandler(LineServiceStartLineProcedure, svc.StartLine, opts...)
	callNextHandler := connect.NewUnaryHandler(LineServiceCallNextProcedure, svc.CallNext, opts...)
	markServedHandler := connect.NewUnaryHandler(LineServiceMarkServedProcedure, svc.MarkServed, opts...)
	cancelLineEntryHandler := connect.NewUnaryHandler(LineServiceCancelLineEntryProcedure, svc.CancelLineEntry, opts...)
	getLineStatusHandler := connect.NewUnaryHandler(LineServiceGetLineStatusProcedure, svc.GetLineStatus, opts...)
	return "/" + LineServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case LineServiceStartLineProcedure:
			startLineHandler.ServeHTTP(w, r)
		case LineServiceCallNextProcedure:
			callNextHandler.ServeHTTP(w, r)
		case LineServiceMarkServedProcedure:
			markServedHandler.ServeHTTP(w, r)
		case LineServiceCancelLineEntryProcedure:
			cancelLineEntryHandler.ServeHTTP(w, r)
		case LineServiceGetLineStatusProcedure:
			getLineStatusHandler.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// LineServiceClient is a client for the LineService.
type LineServiceClient interface {
	StartLine(context.Context, *connect.Request[api.StartLineRequest]) (*connect.Response[api.StartLineResponse], error)
	CallNext(context.Context, *connect.Request[api.CallNextRequest]) (*connect.Response[api.CallNextResponse], error)
	MarkServed(context.Context, *connect.Request[api.MarkServedRequest]) (*connect.Response[api.MarkServedResponse], error)
	CancelLineEntry(context.Context, *connect.Request[api.CancelLineEntryRequest]) (*connect.Response[api.CancelLineEntryResponse], error)
	GetLineStatus(context.Context, *connect.Request[api.GetLineStatusRequest]) (*connect.Response[api.GetLineStatusResponse], error)
}

// NewLineServiceClient constructs a client for the LineService. baseURL is the
// server's scheme and host, e.g. http://localhost:8080.
func NewLineServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) LineServiceClient {
	opts = clientOptions(opts)
	return &lineServiceClient{
		startLine:       connect.NewClient[api.StartLineRequest, api.StartLineResponse](httpClient, baseURL+LineServiceStartLineProcedure, opts...),
		callNext:        connect.NewClient[api.CallNextRequest, api.CallNextResponse](httpClient, baseURL+LineServiceCallNextProcedure, opts...),
		markServed:      connect.NewClient[api.MarkServedRequest, api.MarkServedResponse](httpClient, baseURL+LineServiceMarkServedProcedure, opts...),
		cancelLineEntry: connect.NewClient[api.CancelLineEntryRequest, api.CancelLineEntryResponse](httpClient, baseURL+LineServiceCancelLineEntryProcedure, opts...),
		getLineStatus:   connect.NewClient[api.GetLineStatusRequest, api.GetLineStatusResponse](httpClient, baseURL+LineServiceGetLineStatusProcedure, opts...),
	}
}

type lineServiceClient struct {
	startLine       *connect.Client[api.StartLineRequest, api.StartLineResponse]
	callNext        *connect.Client[api.CallNextRequest, api.CallNextResponse]
	markServed      *connect.Client[api.MarkServedRequest, api.MarkServedResponse]
	cancelLineEntry *connect.Client[api.CancelLineEntryRequest, api.CancelLineEntryResponse]
	getLineStatus   *connect.Client[api.GetLineStatusRequest, api.GetLineStatusResponse]
}

func (c *lineServiceClient) StartLine(ctx context.Context, req *connect.Request[api.StartLineRequest]) (*connect.Response[api.StartLineResponse], error) {
	return c.startLine.CallUnary(ctx, req)
}

func (c *lineServiceClient) CallNext(ctx context.Context, req *connect.Request[api.CallNextRequest]) (*connect.Response[api.CallNextResponse], error) {
	return c.callNext.CallUnary(ctx, req)
}

func (c *lineServiceClient) MarkServed(ctx context.Context, req *connect.Request[api.MarkServedRequest]) (*connect.Response[api.MarkServedResponse], error) {
	return c.markServed.CallUnary(ctx, req)
}

func (c *lineServiceClient) CancelLineEntry(ctx context.Context, req *connect.Request[api.CancelLineEntryRequest]) (*connect.Response[api.CancelLineEntryResponse], error) {
	return c.cancelLineEntry.CallUnary(ctx, req)
}

func (c *lineServiceClient) GetLineStatus(ctx context.Context, req *connect.Request[api.GetLineStatusRequest]) (*connect.Response[api.GetLineStatusResponse], error) {
	return c.getLineStatus.CallUnary(ctx, req)
}

package apiconnect

import (
	"context"
	"net/http"

	"connectrpc.com/connect"

	"github.com/mmynk/estatesale/pkg/api"
)

// SaleServiceName is the fully-qualified name of the SaleService.
const SaleServiceName = "estatesale.v1.SaleService"

// Procedure paths of the SaleService.
const (
	SaleServiceCreateSaleProcedure = "/estatesale.v1.SaleService/CreateSale"
	SaleServiceCreateItemProcedure = "/estatesale.v1.SaleService/CreateItem"
	SaleServiceSubscribeProcedure  = "/estatesale.v1.SaleService/Subscribe"
)

// SaleServiceHandler serves sales, their items and subscribers.
type SaleServiceHandler interface {
	CreateSale(context.Context, *connect.Request[api.CreateSaleRequest]) (*connect.Response[api.CreateSaleResponse], error)
	CreateItem(context.Context, *connect.Request[api.CreateItemRequest]) (*connect.Response[api.CreateItemResponse], error)
	Subscribe(context.Context, *connect.Request[api.SubscribeRequest]) (*connect.Response[api.SubscribeResponse], error)
}

// NewSaleServiceHandler builds an HTTP handler from the service implementation.
// It returns the path on which to mount the handler and the handler itself.
func NewSaleServiceHandler(svc SaleServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	createSaleHandler := connect.NewUnaryHandler(SaleServiceCreateSaleProcedure, svc.CreateSale, opts...)
	createItemHandler := connect.NewUnaryHandler(SaleServiceCreateItemProcedure, svc.CreateItem, opts...)
	subscribeHandler := connect.NewUnaryHandler(SaleServiceSubscribeProcedure, svc.Subscribe, opts...)
	return "/" + SaleServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case SaleServiceCreateSaleProcedure:
			createSaleHandler.ServeHTTP(w, r)
		case SaleServiceCreateItemProcedure:
			createItemHandler.ServeHTTP(w, r)
		case SaleServiceSubscribeProcedure:
			subscribeHandler.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// SaleServiceClient is a client for the SaleService.
type SaleServiceClient interface {
	CreateSale(context.Context, *connect.Request[api.CreateSaleRequest]) (*connect.Response[api.CreateSaleResponse], error)
	CreateItem(context.Context, *connect.Request[api.CreateItemRequest]) (*connect.Response[api.CreateItemResponse], error)
	Subscribe(context.Context, *connect.Request[api.SubscribeRequest]) (*connect.Response[api.SubscribeResponse], error)
}

// NewSaleServiceClient constructs a client for the SaleService. baseURL is the
// server's scheme and host, e.g. http://localhost:8080.
func NewSaleServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) SaleServiceClient {
	opts = clientOptions(opts)
	return &saleServiceClient{
		createSale: connect.NewClient[api.CreateSaleRequest, api.CreateSaleResponse](httpClient, baseURL+SaleServiceCreateSaleProcedure, opts...),
		createItem: connect.NewClient[api.CreateItemRequest, api.CreateItemResponse](httpClient, baseURL+SaleServiceCreateItemProcedure, opts...),
		subscribe:  connect.NewClient[api.SubscribeRequest, api.SubscribeResponse](httpClient, baseURL+SaleServiceSubscribeProcedure, opts...),
	}
}

type saleServiceClient struct {
	createSale *connect.Client[api.CreateSaleRequest, api.CreateSaleResponse]
	createItem *connect.Client[api.CreateItemRequest, api.CreateItemResponse]
	subscribe  *connect.Client[api.SubscribeRequest, api.SubscribeResponse]
}

func (c *saleServiceClient) CreateSale(ctx context.Context, req *connect.Request[api.CreateSaleRequest]) (*connect.Response[api.CreateSaleResponse], error) {
	return c.createSale.CallUnary(ctx, req)
}

func (c *saleServiceClient) CreateItem(ctx context.Context, req *connect.Request[api.CreateItemRequest]) (*connect.Response[api.CreateItemResponse], error) {
	return c.createItem.CallUnary(ctx, req)
}

func (c *saleServiceClient) Subscribe(ctx context.Context, req *connect.Request[api.SubscribeRequest]) (*connect.Response[api.SubscribeResponse], error) {
	return c.subscribe.CallUnary(ctx, req)
}

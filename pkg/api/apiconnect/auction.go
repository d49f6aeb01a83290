package apiconnect

import (
	"context"
	"net/http"

	"connectrpc.com/connect"

	"github.com/mmynk/estatesale/pkg/api"
)

// AuctionServiceName is the fully-qualified name of the AuctionService.
const AuctionServiceName = "estatesale.v1.AuctionService"

// Procedure paths of the AuctionService.
const (
	AuctionServicePlaceBidProcedure           = "/estatesale.v1.AuctionService/PlaceBid"
	AuctionServiceGetBidQuoteProcedure        = "/estatesale.v1.AuctionService/GetBidQuote"
	AuctionServiceRunSettlementSweepProcedure = "/estatesale.v1.AuctionService/RunSettlementSweep"
)

// AuctionServiceHandler serves bidding and settlement.
type AuctionServiceHandler interface {
	PlaceBid(context.Context, *connect.Request[api.PlaceBidRequest]) (*connect.Response[api.PlaceBidResponse], error)
	GetBidQuote(context.Context, *connect.Request[api.GetBidQuoteRequest]) (*connect.Response[api.GetBidQuoteResponse], error)
	RunSettlementSweep(context.Context, *connect.Request[api.RunSettlementSweepRequest]) (*connect.Response[api.RunSettlementSweepResponse], error)
}

// NewAuctionServiceHandler builds an HTTP handler from the service implementation.
// It returns the path on which to mount the handler and the handler itself.
func NewAuctionServiceHandler(svc AuctionServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	placeBidHandler := connect.NewUnaryHandler(AuctionServicePlaceBidProcedure, svc.PlaceBid, opts...)
	getBidQuoteHandler := connect.NewUnaryHandler(AuctionServiceGetBidQuoteProcedure, svc.GetBidQuote, opts...)
	runSettlementSweepHandler := connect.NewUnaryHandler(AuctionServiceRunSettlementSweepProcedure, svc.RunSettlementSweep, opts...)
	return "/" + AuctionServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case AuctionServicePlaceBidProcedure:
			placeBidHandler.ServeHTTP(w, r)
		case AuctionServiceGetBidQuoteProcedure:
			getBidQuoteHandler.ServeHTTP(w, r)
		case AuctionServiceRunSettlementSweepProcedure:
			runSettlementSweepHandler.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// AuctionServiceClient is a client for the AuctionService.
type AuctionServiceClient interface {
	PlaceBid(context.Context, *connect.Request[api.PlaceBidRequest]) (*connect.Response[api.PlaceBidResponse], error)
	GetBidQuote(context.Context, *connect.Request[api.GetBidQuoteRequest]) (*connect.Response[api.GetBidQuoteResponse], error)
	RunSettlementSweep(context.Context, *connect.Request[api.RunSettlementSweepRequest]) (*connect.Response[api.RunSettlementSweepResponse], error)
}

// NewAuctionServiceClient constructs a client for the AuctionService. baseURL is the
// server's scheme and host, e.g. http://localhost:8080.
func NewAuctionServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) AuctionServiceClient {
	opts = clientOptions(opts)
	return &auctionServiceClient{
		placeBid:           connect.NewClient[api.PlaceBidRequest, api.PlaceBidResponse](httpClient, baseURL+AuctionServicePlaceBidProcedure, opts...),
		getBidQuote:        connect.NewClient[api.GetBidQuoteRequest, api.GetBidQuoteResponse](httpClient, baseURL+AuctionServiceGetBidQuoteProcedure, opts...),
		runSettlementSweep: connect.NewClient[api.RunSettlementSweepRequest, api.RunSettlementSweepResponse](httpClient, baseURL+AuctionServiceRunSettlementSweepProcedure, opts...),
	}
}

type auctionServiceClient struct {
	placeBid           *connect.Client[api.PlaceBidRequest, api.PlaceBidResponse]
	getBidQuote        *connect.Client[api.GetBidQuoteRequest, api.GetBidQuoteResponse]
	runSettlementSweep *connect.Client[api.RunSettlementSweepRequest, api.RunSettlementSweepResponse]
}

func (c *auctionServiceClient) PlaceBid(ctx context.Context, req *connect.Request[api.PlaceBidRequest]) (*connect.Response[api.PlaceBidResponse], error) {
	return c.placeBid.CallUnary(ctx, req)
}

func (c *auctionServiceClient) GetBidQuote(ctx context.Context, req *connect.Request[api.GetBidQuoteRequest]) (*connect.Response[api.GetBidQuoteResponse], error) {
	return c.getBidQuote.CallUnary(ctx, req)
}

func (c *auctionServiceClient) RunSettlementSweep(ctx context.Context, req *connect.Request[api.RunSettlementSweepRequest]) (*connect.Response[api.RunSettlementSweepResponse], error) {
	return c.runSettlementSweep.CallUnary(ctx, req)
}

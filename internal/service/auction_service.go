package service

import (
	"context"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/estatesale/internal/auction"
	"github.com/mmynk/estatesale/internal/auth"
	"github.com/mmynk/estatesale/pkg/api"
	"github.com/mmynk/estatesale/pkg/api/apiconnect"
)

// Ensure AuctionService implements the handler interface
var _ apiconnect.AuctionServiceHandler = (*AuctionService)(nil)

// AuctionService implements the Connect AuctionService.
type AuctionService struct {
	ledger  *auction.Ledger
	settler *auction.Settler
}

// NewAuctionService creates a new AuctionService.
func NewAuctionService(ledger *auction.Ledger, settler *auction.Settler) *AuctionService {
	return &AuctionService{ledger: ledger, settler: settler}
}

// PlaceBid places a bid on behalf of the caller.
func (s *AuctionService) PlaceBid(ctx context.Context, req *connect.Request[api.PlaceBidRequest]) (*connect.Response[api.PlaceBidResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}

	slog.Info("PlaceBid request received",
		"item_id", req.Msg.ItemID,
		"user_id", userID,
		"amount", req.Msg.Amount.String(),
	)

	placement, err := s.ledger.PlaceBid(ctx, req.Msg.ItemID, userID, req.Msg.Amount)
	if err != nil {
		slog.Warn("PlaceBid rejected", "item_id", req.Msg.ItemID, "user_id", userID, "error", err)
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&api.PlaceBidResponse{
		Bid:         toAPIBid(placement.Bid),
		NextMinimum: placement.NextMinimum,
	}), nil
}

// GetBidQuote returns the minimum acceptable bid of an item.
func (s *AuctionService) GetBidQuote(ctx context.Context, req *connect.Request[api.GetBidQuoteRequest]) (*connect.Response[api.GetBidQuoteResponse], error) {
	slog.Debug("GetBidQuote request received", "item_id", req.Msg.ItemID)

	quote, err := s.ledger.Quote(ctx, req.Msg.ItemID)
	if err != nil {
		slog.Error("GetBidQuote failed", "item_id", req.Msg.ItemID, "error", err)
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&api.GetBidQuoteResponse{
		ItemID:     quote.ItemID,
		Open:       quote.Open,
		CurrentBid: quote.CurrentBid,
		Minimum:    quote.Minimum,
		EndsAt:     quote.EndsAt,
	}), nil
}

// RunSettlementSweep runs a sweep on demand. Admin only.
func (s *AuctionService) RunSettlementSweep(ctx context.Context, req *connect.Request[api.RunSettlementSweepRequest]) (*connect.Response[api.RunSettlementSweepResponse], error) {
	slog.Info("RunSettlementSweep request received")

	if err := requireRole(ctx, auth.RoleAdmin); err != nil {
		return nil, toConnectError(err)
	}

	report, err := s.settler.Sweep(ctx)
	if err != nil {
		slog.Error("RunSettlementSweep failed", "error", err)
		return nil, toConnectError(err)
	}

	resp := &api.RunSettlementSweepResponse{
		Closed: report.Closed,
		Sold:   make([]api.SoldItem, len(report.Sold)),
		Failed: report.Failed,
	}
	for i, sold := range report.Sold {
		resp.Sold[i] = api.SoldItem{ItemID: sold.ItemID, UserID: sold.UserID, Amount: sold.Amount}
	}
	return connect.NewResponse(resp), nil
}

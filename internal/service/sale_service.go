package service

import (
	"context"
	"log/slog"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/estatesale/internal/apperr"
	"github.com/mmynk/estatesale/internal/auth"
	"github.com/mmynk/estatesale/internal/line"
	"github.com/mmynk/estatesale/internal/models"
	"github.com/mmynk/estatesale/internal/pricing"
	"github.com/mmynk/estatesale/internal/storage"
	"github.com/mmynk/estatesale/pkg/api"
	"github.com/mmynk/estatesale/pkg/api/apiconnect"
)

// Ensure SaleService implements the handler interface
var _ apiconnect.SaleServiceHandler = (*SaleService)(nil)

// SaleService implements the Connect SaleService.
type SaleService struct {
	store storage.Store
	queue *line.Queue
}

// NewSaleService creates a new SaleService.
func NewSaleService(store storage.Store, queue *line.Queue) *SaleService {
	return &SaleService{store: store, queue: queue}
}

// CreateSale creates a sale organized by the caller.
func (s *SaleService) CreateSale(ctx context.Context, req *connect.Request[api.CreateSaleRequest]) (*connect.Response[api.CreateSaleResponse], error) {
	slog.Info("CreateSale request received", "title", req.Msg.Title)

	if err := requireRole(ctx, auth.RoleOrganizer); err != nil {
		return nil, toConnectError(err)
	}
	if req.Msg.Title == "" {
		return nil, toConnectError(apperr.Validation("title is required"))
	}

	userID, _ := callerID(ctx)
	sale := &models.Sale{OrganizerID: userID, Title: req.Msg.Title}
	if err := s.store.CreateSale(ctx, sale); err != nil {
		slog.Error("CreateSale failed", "error", err)
		return nil, toConnectError(err)
	}

	slog.Info("Sale created", "sale_id", sale.ID, "organizer_id", userID)
	return connect.NewResponse(&api.CreateSaleResponse{Sale: toAPISale(sale)}), nil
}

// CreateItem adds an item to one of the caller's sales.
func (s *SaleService) CreateItem(ctx context.Context, req *connect.Request[api.CreateItemRequest]) (*connect.Response[api.CreateItemResponse], error) {
	slog.Info("CreateItem request received",
		"sale_id", req.Msg.SaleID,
		"title", req.Msg.Title,
		"auction", req.Msg.AuctionEndTime != nil,
	)

	if err := requireOrganizer(ctx, s.store, req.Msg.SaleID); err != nil {
		return nil, toConnectError(err)
	}
	if err := validateItem(req.Msg); err != nil {
		return nil, toConnectError(err)
	}

	item := &models.Item{
		SaleID:            req.Msg.SaleID,
		Title:             req.Msg.Title,
		AuctionStartPrice: req.Msg.StartPrice,
		BidIncrement:      req.Msg.BidIncrement,
		AuctionEndTime:    req.Msg.AuctionEndTime,
	}
	if err := s.store.CreateItem(ctx, item); err != nil {
		slog.Error("CreateItem failed", "sale_id", req.Msg.SaleID, "error", err)
		return nil, toConnectError(err)
	}

	slog.Info("Item created", "item_id", item.ID, "sale_id", item.SaleID)
	return connect.NewResponse(&api.CreateItemResponse{Item: toAPIItem(item)}), nil
}

func validateItem(req *api.CreateItemRequest) error {
	if req.Title == "" {
		return apperr.Validation("title is required")
	}
	if err := pricing.ValidateAmount(req.StartPrice); err != nil {
		return apperr.Validation("start_price: %v", err)
	}
	if err := pricing.ValidateIncrement(req.BidIncrement); err != nil {
		return apperr.Validation("bid_increment: %v", err)
	}
	return nil
}

// Subscribe registers the caller for a sale's line notifications.
func (s *SaleService) Subscribe(ctx context.Context, req *connect.Request[api.SubscribeRequest]) (*connect.Response[api.SubscribeResponse], error) {
	slog.Info("Subscribe request received", "sale_id", req.Msg.SaleID)

	userID, err := callerID(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}

	contact := models.Contact{UserID: userID, Phone: req.Msg.Phone, Email: req.Msg.Email}
	if err := s.queue.Subscribe(ctx, req.Msg.SaleID, contact, time.Now().UTC()); err != nil {
		slog.Error("Subscribe failed", "sale_id", req.Msg.SaleID, "user_id", userID, "error", err)
		return nil, toConnectError(err)
	}

	slog.Info("Subscribed", "sale_id", req.Msg.SaleID, "user_id", userID)
	return connect.NewResponse(&api.SubscribeResponse{}), nil
}

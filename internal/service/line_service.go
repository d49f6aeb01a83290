package service

import (
	"context"
	"log/slog"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/estatesale/internal/line"
	"github.com/mmynk/estatesale/internal/middleware"
	"github.com/mmynk/estatesale/internal/storage"
	"github.com/mmynk/estatesale/pkg/api"
	"github.com/mmynk/estatesale/pkg/api/apiconnect"
)

// Ensure LineService implements the handler interface
var _ apiconnect.LineServiceHandler = (*LineService)(nil)

// LineService implements the Connect LineService. Every mutation requires
// the caller to organize the sale, except that shoppers may cancel their
// own entry.
type LineService struct {
	store storage.Store
	queue *line.Queue
}

// NewLineService creates a new LineService.
func NewLineService(store storage.Store, queue *line.Queue) *LineService {
	return &LineService{store: store, queue: queue}
}

// StartLine snapshots the sale's subscribers into the line.
func (s *LineService) StartLine(ctx context.Context, req *connect.Request[api.StartLineRequest]) (*connect.Response[api.StartLineResponse], error) {
	slog.Info("StartLine request received", "sale_id", req.Msg.SaleID)

	if err := requireOrganizer(ctx, s.store, req.Msg.SaleID); err != nil {
		return nil, toConnectError(err)
	}

	entries, err := s.queue.StartLine(ctx, req.Msg.SaleID, time.Now().UTC())
	if err != nil {
		slog.Error("StartLine failed", "sale_id", req.Msg.SaleID, "error", err)
		return nil, toConnectError(err)
	}

	slog.Info("StartLine successful", "sale_id", req.Msg.SaleID, "entries", len(entries))
	return connect.NewResponse(&api.StartLineResponse{Entries: toAPILineEntries(entries)}), nil
}

// CallNext calls the next waiting shopper.
func (s *LineService) CallNext(ctx context.Context, req *connect.Request[api.CallNextRequest]) (*connect.Response[api.CallNextResponse], error) {
	slog.Info("CallNext request received", "sale_id", req.Msg.SaleID)

	if err := requireOrganizer(ctx, s.store, req.Msg.SaleID); err != nil {
		return nil, toConnectError(err)
	}

	entry, err := s.queue.CallNext(ctx, req.Msg.SaleID, time.Now().UTC())
	if err != nil {
		slog.Warn("CallNext failed", "sale_id", req.Msg.SaleID, "error", err)
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&api.CallNextResponse{Entry: toAPILineEntry(entry)}), nil
}

// MarkServed records that a called shopper entered.
func (s *LineService) MarkServed(ctx context.Context, req *connect.Request[api.MarkServedRequest]) (*connect.Response[api.MarkServedResponse], error) {
	slog.Info("MarkServed request received", "entry_id", req.Msg.EntryID)

	entry, err := s.queue.Entry(ctx, req.Msg.EntryID)
	if err != nil {
		return nil, toConnectError(err)
	}
	if err := requireOrganizer(ctx, s.store, entry.SaleID); err != nil {
		return nil, toConnectError(err)
	}

	served, err := s.queue.MarkServed(ctx, req.Msg.EntryID, time.Now().UTC())
	if err != nil {
		slog.Warn("MarkServed failed", "entry_id", req.Msg.EntryID, "error", err)
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&api.MarkServedResponse{Entry: toAPILineEntry(served)}), nil
}

// CancelLineEntry removes an entry from the line.
func (s *LineService) CancelLineEntry(ctx context.Context, req *connect.Request[api.CancelLineEntryRequest]) (*connect.Response[api.CancelLineEntryResponse], error) {
	slog.Info("CancelLineEntry request received", "entry_id", req.Msg.EntryID)

	entry, err := s.queue.Entry(ctx, req.Msg.EntryID)
	if err != nil {
		return nil, toConnectError(err)
	}
	if entry.UserID != middleware.GetUserID(ctx) {
		if err := requireOrganizer(ctx, s.store, entry.SaleID); err != nil {
			return nil, toConnectError(err)
		}
	}

	cancelled, err := s.queue.Cancel(ctx, req.Msg.EntryID)
	if err != nil {
		slog.Warn("CancelLineEntry failed", "entry_id", req.Msg.EntryID, "error", err)
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&api.CancelLineEntryResponse{Entry: toAPILineEntry(cancelled)}), nil
}

// GetLineStatus returns the whole line for display.
func (s *LineService) GetLineStatus(ctx context.Context, req *connect.Request[api.GetLineStatusRequest]) (*connect.Response[api.GetLineStatusResponse], error) {
	slog.Debug("GetLineStatus request received", "sale_id", req.Msg.SaleID)

	entries, err := s.queue.Status(ctx, req.Msg.SaleID)
	if err != nil {
		slog.Error("GetLineStatus failed", "sale_id", req.Msg.SaleID, "error", err)
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&api.GetLineStatusResponse{Entries: toAPILineEntries(entries)}), nil
}

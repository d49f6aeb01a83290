package service

import (
	"github.com/mmynk/estatesale/internal/models"
	"github.com/mmynk/estatesale/pkg/api"
)

func toAPISale(s *models.Sale) api.Sale {
	return api.Sale{
		ID:          s.ID,
		OrganizerID: s.OrganizerID,
		Title:       s.Title,
		CreatedAt:   s.CreatedAt,
	}
}

func toAPIItem(i *models.Item) api.Item {
	return api.Item{
		ID:             i.ID,
		SaleID:         i.SaleID,
		Title:          i.Title,
		Status:         string(i.Status),
		StartPrice:     i.AuctionStartPrice,
		CurrentBid:     i.CurrentBid,
		BidIncrement:   i.BidIncrement,
		AuctionEndTime: i.AuctionEndTime,
	}
}

func toAPIBid(b *models.Bid) api.Bid {
	return api.Bid{
		ID:        b.ID,
		ItemID:    b.ItemID,
		UserID:    b.UserID,
		Amount:    b.Amount,
		CreatedAt: b.CreatedAt,
	}
}

func toAPILineEntry(e *models.LineEntry) api.LineEntry {
	return api.LineEntry{
		ID:         e.ID,
		SaleID:     e.SaleID,
		UserID:     e.UserID,
		Position:   e.Position,
		Status:     string(e.Status),
		NotifiedAt: e.NotifiedAt,
		EnteredAt:  e.EnteredAt,
	}
}

func toAPILineEntries(entries []*models.LineEntry) []api.LineEntry {
	out := make([]api.LineEntry, len(entries))
	for i, e := range entries {
		out[i] = toAPILineEntry(e)
	}
	return out
}

package service

import (
	"context"
	"fmt"

	"github.com/mmynk/estatesale/internal/apperr"
	"github.com/mmynk/estatesale/internal/auth"
	"github.com/mmynk/estatesale/internal/middleware"
	"github.com/mmynk/estatesale/internal/storage"
)

// callerID returns the authenticated user or an authorization error.
func callerID(ctx context.Context) (string, error) {
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		return "", fmt.Errorf("%w: no authenticated user", apperr.ErrAuthorization)
	}
	return userID, nil
}

// requireRole checks that the caller has one of roles. Admins always pass.
func requireRole(ctx context.Context, roles ...auth.Role) error {
	if _, err := callerID(ctx); err != nil {
		return err
	}
	role := middleware.GetRole(ctx)
	if role == auth.RoleAdmin {
		return nil
	}
	for _, r := range roles {
		if role == r {
			return nil
		}
	}
	return fmt.Errorf("%w: role %s may not do this", apperr.ErrAuthorization, role)
}

// requireOrganizer checks that the caller runs the sale.
func requireOrganizer(ctx context.Context, store storage.Queries, saleID string) error {
	userID, err := callerID(ctx)
	if err != nil {
		return err
	}
	if saleID == "" {
		return apperr.Validation("sale_id is required")
	}
	sale, err := store.GetSale(ctx, saleID)
	if err != nil {
		return err
	}
	if middleware.GetRole(ctx) == auth.RoleAdmin || sale.OrganizerID == userID {
		return nil
	}
	return fmt.Errorf("%w: sale %s belongs to another organizer", apperr.ErrAuthorization, saleID)
}

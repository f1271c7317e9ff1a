package storage

import (
	"context"

	"github.com/iudanet/taskkeeper/internal/models"
)

// TokenStorage defines interface for refresh token persistence.
// Tokens are never deleted: revocation flips the revoked flag exactly once
// and the row stays behind for audit.
type TokenStorage interface {
	// SaveRefreshToken stores a new refresh token row
	SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error

	// GetRefreshToken retrieves refresh token by token value
	// Returns ErrTokenNotFound if token doesn't exist
	GetRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error)

	// RevokeRefreshToken marks the token row as revoked.
	// The update is conditional on the row not being revoked yet; the returned
	// bool reports whether this call actually performed the revocation. Under
	// two concurrent calls exactly one gets true.
	RevokeRefreshToken(ctx context.Context, tokenID string) (bool, error)
}

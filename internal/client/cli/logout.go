package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/iudanet/taskkeeper/internal/client/session"
)

// RunLogout отзывает refresh token на сервере и удаляет локальную сессию.
// Отзыв на сервере идемпотентен, поэтому повторный logout безопасен.
func (c *Cli) RunLogout(ctx context.Context) error {
	sess, err := c.sessions.Get(ctx)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			c.io.Println("Not logged in.")
			return nil
		}
		return fmt.Errorf("failed to load session: %w", err)
	}

	if err := c.apiClient.Logout(ctx, sess.RefreshToken); err != nil {
		// Локальную сессию чистим даже если сервер недоступен
		c.io.Printf("Warning: server logout failed: %v\n", err)
	}

	if err := c.sessions.Delete(ctx); err != nil && !errors.Is(err, session.ErrSessionNotFound) {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	c.io.Println("Logged out.")
	return nil
}

package cli

import (
	"context"
	"errors"

	"github.com/iudanet/taskkeeper/internal/client/session"
)

// RunStatus показывает состояние аутентификации и профиль с сервера
func (c *Cli) RunStatus(ctx context.Context) error {
	_, err := c.sessions.Get(ctx)
	if errors.Is(err, session.ErrSessionNotFound) {
		c.io.Println("Not logged in.")
		return nil
	}
	if err != nil {
		return err
	}

	sess, err := c.ensureAuth(ctx)
	if err != nil {
		return err
	}

	user, err := c.apiClient.Me(ctx)
	if err != nil {
		return err
	}

	c.io.Printf("Logged in as: %s\n", user.Email)
	c.io.Printf("User ID:      %s\n", user.ID)
	c.io.Printf("Registered:   %s\n", user.CreatedAt.Format("2006-01-02 15:04:05"))
	c.io.Printf("Token until:  %s\n", sess.ExpiresAt.Format("2006-01-02 15:04:05"))
	return nil
}

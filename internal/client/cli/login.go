package cli

import (
	"context"
	"fmt"
)

// RunLogin аутентифицирует пользователя и сохраняет сессию
func (c *Cli) RunLogin(ctx context.Context) error {
	c.io.Println("=== Login ===")
	c.io.Println("")

	email, err := c.io.ReadInput("Email: ")
	if err != nil {
		return fmt.Errorf("failed to read email: %w", err)
	}

	password, err := c.io.ReadPassword("Password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}

	pair, err := c.apiClient.Login(ctx, email, password)
	if err != nil {
		return err
	}

	if err := c.saveTokens(ctx, email, pair.AccessToken, pair.RefreshToken, pair.ExpiresIn); err != nil {
		return err
	}

	c.io.Println("")
	c.io.Printf("Logged in as %s\n", email)
	return nil
}

package cli

import (
	"context"
	"fmt"
)

// RunRegister регистрирует нового пользователя и сохраняет сессию
func (c *Cli) RunRegister(ctx context.Context) error {
	c.io.Println("=== Register ===")
	c.io.Println("")

	email, err := c.io.ReadInput("Email: ")
	if err != nil {
		return fmt.Errorf("failed to read email: %w", err)
	}

	password, err := c.io.ReadPassword("Password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}

	confirm, err := c.io.ReadPassword("Confirm password: ")
	if err != nil {
		return fmt.Errorf("failed to read password confirmation: %w", err)
	}
	if password != confirm {
		return fmt.Errorf("passwords do not match")
	}

	pair, err := c.apiClient.Register(ctx, email, password)
	if err != nil {
		return err
	}

	if err := c.saveTokens(ctx, email, pair.AccessToken, pair.RefreshToken, pair.ExpiresIn); err != nil {
		return err
	}

	c.io.Println("")
	c.io.Println("Registration successful, you are logged in.")
	return nil
}

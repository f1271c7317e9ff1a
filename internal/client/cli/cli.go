// Package cli реализует команды консольного клиента taskkeeper.
package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/taskkeeper/internal/client/api"
	"github.com/iudanet/taskkeeper/internal/client/iocli"
	"github.com/iudanet/taskkeeper/internal/client/session"
)

type Cli struct {
	apiClient *api.Client
	sessions  *session.Store
	io        iocli.IO
}

func New(apiClient *api.Client, sessions *session.Store, io iocli.IO) *Cli {
	return &Cli{
		apiClient: apiClient,
		sessions:  sessions,
		io:        io,
	}
}

// ensureAuth загружает сессию и при истекшем access token прозрачно
// обновляет пару через refresh. Обновленная сессия сохраняется локально.
func (c *Cli) ensureAuth(ctx context.Context) (*session.Session, error) {
	sess, err := c.sessions.Get(ctx)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return nil, fmt.Errorf("not authenticated, run 'taskkeeper login' first")
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	if sess.AccessExpired() {
		pair, err := c.apiClient.Refresh(ctx, sess.RefreshToken)
		if err != nil {
			if api.IsUnauthorized(err) {
				return nil, fmt.Errorf("session expired, run 'taskkeeper login' again")
			}
			return nil, fmt.Errorf("failed to refresh session: %w", err)
		}

		sess = &session.Session{
			Email:        sess.Email,
			AccessToken:  pair.AccessToken,
			RefreshToken: pair.RefreshToken,
			ExpiresAt:    time.Now().Add(time.Duration(pair.ExpiresIn) * time.Second),
		}
		if err := c.sessions.Save(ctx, sess); err != nil {
			return nil, fmt.Errorf("failed to save session: %w", err)
		}
	}

	c.apiClient.SetAccessToken(sess.AccessToken)
	return sess, nil
}

// saveTokens сохраняет пару токенов как текущую сессию
func (c *Cli) saveTokens(ctx context.Context, email, accessToken, refreshToken string, expiresIn int64) error {
	sess := &session.Session{
		Email:        email,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(expiresIn) * time.Second),
	}
	if err := c.sessions.Save(ctx, sess); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func PrintUsage(io iocli.IO) {
	io.Println("TaskKeeper Client")
	io.Println("")
	io.Println("Usage:")
	io.Println("  taskkeeper [OPTIONS] COMMAND")
	io.Println("")
	io.Println("Options:")
	io.Println("  --version            Show version information")
	io.Println("  --server URL         Server URL (default: http://localhost:8080)")
	io.Println("  --db PATH            Path to local session database (default: taskkeeper-client.db)")
	io.Println("")
	io.Println("Commands:")
	io.Println("  register             Register new user")
	io.Println("  login                Login to server")
	io.Println("  logout               Logout and revoke session")
	io.Println("  status               Show authentication status")
	io.Println("  add <title>          Add new task")
	io.Println("  list [status]        List tasks (new, in_progress, done)")
	io.Println("  done <id>            Mark task as done")
	io.Println("  rm <id>              Delete task")
	io.Println("")
	io.Println("Examples:")
	io.Println("  taskkeeper register")
	io.Println("  taskkeeper add 'write weekly report'")
	io.Println("  taskkeeper list in_progress")
	io.Println("  taskkeeper --server https://example.com login")
}

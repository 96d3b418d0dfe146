// Package cli команды клиента gophgate на cobra.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/iudanet/gophgate/internal/client/api"
	"github.com/iudanet/gophgate/internal/client/auth"
	"github.com/iudanet/gophgate/internal/client/iocli"
	"github.com/iudanet/gophgate/internal/client/storage/boltdb"
)

// PasswordEnv переменная окружения с паролем для неинтерактивного запуска
const PasswordEnv = "GOPHGATE_PASSWORD"

// Options глобальные флаги клиента
type Options struct {
	ServerURL    string
	DBPath       string
	PasswordFile string
}

// Cli состояние одного запуска клиента
type Cli struct {
	io     iocli.IO
	getenv func(string) string
	store  *boltdb.Storage
	auth   *auth.Service
	opts   Options
}

// New создает Cli. Хранилище и API клиент открываются в open перед командой.
func New(io iocli.IO) *Cli {
	return &Cli{
		io:     io,
		getenv: os.Getenv,
		opts: Options{
			ServerURL: "http://localhost:8080",
			DBPath:    "gophgate-client.db",
		},
	}
}

func (c *Cli) open(ctx context.Context) error {
	c.Close()
	store, err := boltdb.New(ctx, c.opts.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	c.store = store
	c.auth = auth.NewService(api.NewClient(c.opts.ServerURL), store)
	return nil
}

// Close закрывает локальную базу, если она была открыта
func (c *Cli) Close() {
	if c.store == nil {
		return
	}
	if err := c.store.Close(); err != nil {
		slog.Error("failed to close database", slog.Any("error", err))
	}
	c.store = nil
}

// readPassword получает пароль с приоритетом:
// 1. переменная окружения GOPHGATE_PASSWORD
// 2. файл из --password-file
// 3. интерактивный ввод
func (c *Cli) readPassword(prompt string) (string, error) {
	if envPassword := c.getenv(PasswordEnv); envPassword != "" {
		return envPassword, nil
	}

	if c.opts.PasswordFile != "" {
		content, err := os.ReadFile(c.opts.PasswordFile)
		if err != nil {
			return "", fmt.Errorf("failed to read password file: %w", err)
		}
		password := strings.TrimSpace(string(content))
		if password == "" {
			return "", errors.New("password file is empty")
		}
		return password, nil
	}

	password, err := c.io.ReadPassword(prompt)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return password, nil
}

// readUsername берет значение флага или спрашивает
func (c *Cli) readUsername(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	username, err := c.io.ReadInput("Username: ")
	if err != nil {
		return "", fmt.Errorf("failed to read username: %w", err)
	}
	return username, nil
}

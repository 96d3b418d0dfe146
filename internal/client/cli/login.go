package cli

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/iudanet/gophgate/internal/client/api"
)

func (c *Cli) newLoginCommand() *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session locally",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c.io.Println("=== Login ===")
			c.io.Println()

			name, err := c.readUsername(username)
			if err != nil {
				return err
			}
			password, err := c.readPassword("Password: ")
			if err != nil {
				return err
			}

			session, err := c.auth.Login(cmd.Context(), name, password)
			if api.IsStatus(err, http.StatusUnauthorized) {
				return fmt.Errorf("login rejected: %w", err)
			}
			if err != nil {
				return err
			}

			c.io.Println()
			c.io.Println("✓ Login successful!")
			c.io.Printf("Username: %s\n", session.Username)
			c.io.Printf("Access token expires: %s\n", time.Unix(session.ExpiresAt, 0).Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "username (prompted if empty)")
	return cmd
}

func (c *Cli) newRefreshCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Rotate the stored refresh token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := c.readPassword("Password: ")
			if err != nil {
				return err
			}

			session, err := c.auth.Refresh(cmd.Context(), password)
			if api.IsStatus(err, http.StatusUnauthorized) {
				return fmt.Errorf("refresh rejected, run 'gophgate login' again")
			}
			if err != nil {
				return err
			}

			c.io.Println("✓ Session refreshed")
			c.io.Printf("Access token expires: %s\n", time.Unix(session.ExpiresAt, 0).Format(time.RFC3339))
			return nil
		},
	}
}

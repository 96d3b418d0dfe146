package cli

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/iudanet/gophgate/internal/client/api"
)

func (c *Cli) newRegisterCommand() *cobra.Command {
	var gate, username string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account using a registration token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c.io.Println("=== Registration ===")
			c.io.Println()

			name, err := c.readUsername(username)
			if err != nil {
				return err
			}
			password, err := c.readPassword("Password: ")
			if err != nil {
				return err
			}

			session, err := c.auth.Register(cmd.Context(), name, password, gate)
			switch {
			case api.IsStatus(err, http.StatusConflict):
				return fmt.Errorf("username %q is already taken", name)
			case api.IsStatus(err, http.StatusBadRequest):
				return fmt.Errorf("registration rejected: %w", err)
			case err != nil:
				return err
			}

			c.io.Println()
			c.io.Println("✓ Registration successful!")
			c.io.Printf("Username: %s\n", session.Username)
			c.io.Printf("User ID: %s\n", session.UserID)
			c.io.Println("You are now logged in.")
			return nil
		},
	}

	cmd.Flags().StringVar(&gate, "gate", "", "registration token from 'gophgate gate'")
	cmd.Flags().StringVarP(&username, "username", "u", "", "username (prompted if empty)")
	_ = cmd.MarkFlagRequired("gate")

	return cmd
}

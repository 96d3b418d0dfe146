package cli

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/iudanet/gophgate/internal/client/api"
)

func (c *Cli) newGateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "gate",
		Short: "Obtain a one-time registration token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gate, err := c.auth.RequestGate(cmd.Context())
			if err != nil {
				return err
			}
			c.io.Printf("Registration token: %s\n", gate.Token)
			c.io.Printf("Expires in: %s\n", gate.ExpiresIn)
			c.io.Println()
			c.io.Printf("Run 'gophgate register --gate %s' to create an account.\n", gate.Token)
			return nil
		},
	}
}

func (c *Cli) newCheckGateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check-gate <token>",
		Short: "Check a registration token without using it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := c.auth.CheckGate(cmd.Context(), args[0])
			if api.IsStatus(err, http.StatusUnauthorized) {
				return fmt.Errorf("registration token is invalid or expired")
			}
			if err != nil {
				return err
			}
			c.io.Println("✓ Registration token is valid")
			return nil
		},
	}
}

package cli

import (
	"github.com/spf13/cobra"
)

func (c *Cli) newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [token]",
		Short: "Validate a token (stored access token by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var token string
			if len(args) == 1 {
				token = args[0]
			}

			resp, err := c.auth.Validate(cmd.Context(), token)
			if err != nil {
				return err
			}

			if !resp.IsValid {
				c.io.Println("✗ Token is not valid")
				return nil
			}
			c.io.Printf("✓ Token is valid (%s)\n", resp.Kind)
			if resp.User != nil {
				c.io.Printf("User: %s (%s)\n", resp.User.Username, resp.User.ID)
				c.io.Printf("IQ: %d  Level: %d  Balance: %.2f\n", resp.User.IQ, resp.User.Level, resp.User.Balance)
			}
			return nil
		},
	}
}

package cli

import (
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func (c *Cli) newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the local session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c.io.Println("=== Authentication Status ===")
			c.io.Println()

			st, err := c.auth.Status(cmd.Context())
			if err != nil {
				return err
			}

			if !st.Authenticated {
				c.io.Println("Status: Not authenticated")
				c.io.Println()
				c.io.Println("Run 'gophgate login' to authenticate.")
				return nil
			}

			expiresAt := time.Unix(st.Session.ExpiresAt, 0)
			c.io.Println("Status: Authenticated")
			c.io.Printf("Username: %s\n", st.Session.Username)
			c.io.Printf("User ID: %s\n", st.Session.UserID)
			c.io.Printf("Token expires: %s (%s)\n", expiresAt.Format(time.RFC3339), humanize.Time(expiresAt))

			if st.AccessExpired {
				c.io.Println("⚠️  Access token has expired. Run 'gophgate refresh'.")
			}
			return nil
		},
	}
}

package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCommand собирает дерево команд клиента.
// После Execute вызывающий закрывает хранилище через c.Close.
func NewRootCommand(c *Cli, version string) *cobra.Command {
	root := &cobra.Command{
		Use:           "gophgate",
		Short:         "gophgate session client",
		Long:          "Client for the gophgate session service: registration gates, login, token refresh and logout.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.open(cmd.Context())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.opts.ServerURL, "server", c.opts.ServerURL, "server URL")
	flags.StringVar(&c.opts.DBPath, "db", c.opts.DBPath, "path to local database")
	flags.StringVar(&c.opts.PasswordFile, "password-file", "", "read password from file instead of prompt")

	root.AddCommand(
		c.newGateCommand(),
		c.newCheckGateCommand(),
		c.newRegisterCommand(),
		c.newLoginCommand(),
		c.newRefreshCommand(),
		c.newValidateCommand(),
		c.newLogoutCommand(),
		c.newStatusCommand(),
	)

	return root
}

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the pepper auth service
var rootCmd = &cobra.Command{
	Use:   "pepper",
	Short: "OAuth 2.0 PKCE auth service for the pepper Outlook agent",
	Long: `pepper is the authentication core of the pepper Outlook agent.

It runs the OAuth 2.0 Authorization-Code-with-PKCE flow against the
Microsoft identity platform and keeps credential records encrypted in
memory. Collaborating services only ever receive a valid bearer credential
for a user; they never see how it was obtained or stored.`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "pepper version %s\n" .Version}}`)

	// Serving is the only job of this binary; default to it.
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Display version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "pepper version %s\n", version)
		},
	}
}

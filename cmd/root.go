// Package cmd provides the command-line interface for the transaction server.
package cmd

import (
	"fmt"

	"txserver/bootstrap"
	"txserver/config"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X txserver/cmd.Version=..."
var Version = "dev"

// CLI output formatters
var (
	errorColor  = color.New(color.FgRed, color.Bold)
	headerColor = color.New(color.FgBlue, color.Bold)
)

// rootOptions holds the flags shared by every command
type rootOptions struct {
	configFile string
	envFile    string
}

func (o *rootOptions) loadOptions() config.LoadOptions {
	return config.LoadOptions{ConfigFile: o.configFile, EnvFile: o.envFile}
}

// NewRootCmd creates the root command. Without a subcommand it runs the server.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "txserver",
		Short: "Transaction API server",
		Long: `Serves the transaction routes under /api/transactions.

Configuration is read from the .env file, an optional config.yaml and the
environment. MONGODB_URI and PORT are read without prefix; every other key
uses the TXSERVER_ prefix, e.g. TXSERVER_LOG_LEVEL=debug.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd, opts)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (default: config.yaml in . or ./config)")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newConfigCmd(opts))
	return cmd
}

// runServer starts the server and blocks until a shutdown signal
func runServer(cmd *cobra.Command, opts *rootOptions) error {
	app, err := bootstrap.NewApp(opts.loadOptions())
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	if err := app.Start(cmd.Context()); err != nil {
		app.Shutdown()
		return fmt.Errorf("failed to start application: %w", err)
	}

	app.WaitForShutdown()
	app.Shutdown()
	return nil
}

// PrintError writes a command error to the command's error stream
func PrintError(cmd *cobra.Command, err error) {
	errorColor.Fprint(cmd.ErrOrStderr(), "Error: ")
	fmt.Fprintln(cmd.ErrOrStderr(), err)
}

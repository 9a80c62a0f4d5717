package cmd

import (
	"fmt"

	"txserver/bootstrap"
	"txserver/config"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Loads configuration exactly as the server would and prints the result
as YAML. Credentials in the MongoDB URI are redacted. Exits non-zero when the
configuration does not validate.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(opts.loadOptions())
			if err != nil {
				return err
			}
			return printConfig(cmd, cfg)
		},
	}
}

func printConfig(cmd *cobra.Command, cfg *config.Config) error {
	redacted := *cfg
	redacted.MongoDB.URI = bootstrap.RedactURI(cfg.MongoDB.URI)

	out, err := yaml.Marshal(&redacted)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	w := cmd.OutOrStdout()
	headerColor.Fprintf(w, "# database: %s, listening on %s\n", cfg.DatabaseName(), cfg.ListenAddr())
	_, err = w.Write(out)
	return err
}

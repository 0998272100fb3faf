package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Load the configuration and report every problem",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("configuration invalid:\n%w", err)
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintln(out, "configuration ok")
			_, _ = fmt.Fprintf(out, "  issuer:      %s\n", cfg.JWT.Issuer)
			_, _ = fmt.Fprintf(out, "  audience:    %s\n", cfg.JWT.Audience)
			_, _ = fmt.Fprintf(out, "  access ttl:  %s\n", cfg.JWT.AccessTTL())
			_, _ = fmt.Fprintf(out, "  refresh ttl: %s\n", cfg.JWT.RefreshTTL())
			_, _ = fmt.Fprintf(out, "  outbound:    %d attempts within %s (%s backoff)\n",
				cfg.HTTP.RetryCount, cfg.HTTP.RetryTimeout, cfg.HTTP.Backoff)
			return nil
		},
	})

	return cmd
}

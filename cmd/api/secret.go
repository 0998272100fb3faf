package main

import (
	"fmt"

	"github.com/aussiebroadwan/gatekeep/pkg/cryptox"
	"github.com/spf13/cobra"
)

func newSecretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage signing secrets",
	}

	var size int
	generate := &cobra.Command{
		Use:   "generate",
		Short: "Print a random secret suitable for JWT_SECRET",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := cryptox.GenerateSecret(size)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), secret)
			return err
		},
	}
	generate.Flags().IntVar(&size, "bytes", cryptox.SecretSize, "number of random bytes before encoding")

	cmd.AddCommand(generate)
	return cmd
}

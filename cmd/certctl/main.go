// cmd/certctl/main.go
package main

import (
	"os"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath   string
	registryPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:               "certctl",
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
		Short:             "Operator tooling for the certificate workers",
		Long: `certctl applies database migrations, manages approver signing keys
and maintains the activity registry that drives job input validation.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to config file (defaults to configs/config.yaml lookup)")
	root.PersistentFlags().StringVar(&opts.registryPath, "registry", "configs/activity-registry.json", "Path to the activity registry")

	root.AddCommand(
		newMigrateCmd(opts),
		newKeygenCmd(),
		newSignCmd(),
		newRegistryCmd(opts),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

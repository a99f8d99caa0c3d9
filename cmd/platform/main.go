package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/natebag/Testsite-sub005/internal/interfaces/cli/migrate"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "platform",
		Short: "Gaming platform control plane",
		Long:  `Control-plane tooling for the gaming community platform: schema migrations, validation and status inspection.`,
	}

	rootCmd.AddCommand(
		migrate.NewCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

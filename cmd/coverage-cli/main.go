package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"reach-coverage/internal/logger"
)

var (
	catalogPath string
	jsonOut     bool
)

var rootCmd = &cobra.Command{
	Use:   "coverage-cli",
	Short: "Reachability population coverage tools",
	Long:  `Inspect the facility/scenario catalog, run coverage searches against OTP and reinfolib, or aggregate local GeoJSON files offline.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Setup()
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&catalogPath, "catalog", os.Getenv("CATALOG_PATH"), "Catalog YAML path (embedded catalog when empty)")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "JSON output")
	rootCmd.AddCommand(facilitiesCmd, scenariosCmd, resolveCmd, searchCmd, aggregateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

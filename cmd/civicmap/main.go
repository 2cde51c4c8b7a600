package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/kass/civicmap/pkg/config"
	"github.com/kass/civicmap/pkg/logging"
)

var (
	configFile string
	logLevel   string
	dataFile   string
)

var rootCmd = &cobra.Command{
	Use:   "civicmap",
	Short: "Civic issue map marker engine",
	Long: `Drives the clustered marker layers of the civic issue map against an in-memory
map surface: generate datasets, replay view interactions and inspect clusters.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML config file (defaults apply when empty)")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "", "Log level, overrides the config file")
	rootCmd.PersistentFlags().StringVarP(&dataFile, "data", "d", "data/city.geojson", "Dataset file path")

	rootCmd.AddCommand(generateCmd, simulateCmd, clustersCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads the config and builds the logger every command shares
func setup() (config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return cfg, zerolog.Nop(), err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	return cfg, logging.New(cfg.LogLevel, os.Stderr), nil
}

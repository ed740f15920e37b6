package main

import (
	"github.com/spf13/cobra"
)

var gatewayURL string

var rootCmd = &cobra.Command{
	Use:   "hookctl",
	Short: "Hookbridge gateway CLI",
	Long: `hookctl is the operator command-line interface for the hookbridge
webhook gateway.

Inspect dead letters, check gateway health, and drive replay decisions
from your terminal.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&gatewayURL, "gateway-url", "http://localhost:8090", "Gateway base URL")
	rootCmd.PersistentFlags().String("output", "json", "output format: json, yaml")
}

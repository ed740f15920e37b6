package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check gateway health",
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		client := newGatewayClient(gatewayURL)

		var status map[string]string
		if err := client.getJSON("/readyz", &status); err != nil {
			return fmt.Errorf("gateway not ready: %w", err)
		}

		return render(output, status)
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
	healthCmd.Flags().String("output", "json", "output format: json, yaml")
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hookbridge/hookbridge/internal/models"
)

var dlqCmd = &cobra.Command{
	Use:   "dlq",
	Short: "Dead letter queue commands",
	Long:  "Inspect dead letters recorded by the gateway",
}

var dlqListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent dead letters",
	Example: `  hookctl dlq list
  hookctl dlq list --limit 20 --output yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		output, _ := cmd.Flags().GetString("output")

		client := newGatewayClient(gatewayURL)

		var resp struct {
			Entries []models.DeadLetter `json:"entries"`
		}
		if err := client.getJSON(fmt.Sprintf("/admin/dlq?limit=%d", limit), &resp); err != nil {
			return fmt.Errorf("failed to list dead letters: %w", err)
		}

		return render(output, resp.Entries)
	},
}

var dlqStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show dead letter counts by reason",
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		client := newGatewayClient(gatewayURL)

		var stats models.DLQStats
		if err := client.getJSON("/admin/dlq/stats", &stats); err != nil {
			return fmt.Errorf("failed to fetch dead letter stats: %w", err)
		}

		return render(output, stats)
	},
}

func init() {
	rootCmd.AddCommand(dlqCmd)
	dlqCmd.AddCommand(dlqListCmd)
	dlqCmd.AddCommand(dlqStatsCmd)

	dlqListCmd.Flags().Int("limit", 100, "Maximum entries to return")
	dlqListCmd.Flags().String("output", "json", "output format: json, yaml")
	dlqStatsCmd.Flags().String("output", "json", "output format: json, yaml")
}

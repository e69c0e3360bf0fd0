package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print the statistics the webhook publishes under data.stats",
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, _ []string) error {
	client, err := newWebhookClient()
	if err != nil {
		return err
	}
	stats, err := client.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}
	out := cmd.OutOrStdout()
	if stats == nil {
		fmt.Fprintln(out, "The webhook publishes no statistics.")
		return nil
	}
	return printJSON(out, stats)
}

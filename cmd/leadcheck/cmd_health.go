package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var errUnhealthy = errors.New("webhook is unhealthy")

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "GET the webhook and report whether it answers {ok:true}",
	RunE:  runHealth,
}

func runHealth(cmd *cobra.Command, _ []string) error {
	client, err := newWebhookClient()
	if err != nil {
		return err
	}
	status, err := client.Health(cmd.Context())
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	if err := printJSON(cmd.OutOrStdout(), status); err != nil {
		return err
	}
	if !status.Healthy {
		return errUnhealthy
	}
	return nil
}

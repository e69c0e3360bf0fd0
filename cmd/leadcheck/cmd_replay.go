package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wolfman30/landing-leads/cmd/mainconfig"
	"github.com/wolfman30/landing-leads/internal/app/bootstrap"
	"github.com/wolfman30/landing-leads/internal/deadletter"
	"github.com/wolfman30/landing-leads/internal/submission"
)

var errNoQueue = errors.New("dead-letter queue URL is required (--queue-url or LEADS_DLQ_URL)")

const replayVisibilitySlack = 30 * time.Second

var replayFlags struct {
	queueURL string
	limit    int
}

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Re-deliver leads from the SQS dead-letter queue",
	RunE:  runReplay,
}

func init() {
	f := replayCmd.Flags()
	f.StringVar(&replayFlags.queueURL, "queue-url", "", "Dead-letter queue URL (default $LEADS_DLQ_URL)")
	f.IntVar(&replayFlags.limit, "limit", 0, "Stop after this many messages (0 = drain)")
}

func runReplay(cmd *cobra.Command, _ []string) error {
	cfg := *cli.cfg
	if replayFlags.queueURL != "" {
		cfg.LeadsDLQURL = replayFlags.queueURL
	}
	if cfg.WebhookURL == "" {
		return errNoURL
	}
	ctx := cmd.Context()
	queue, err := mainconfig.NewDeadLetterQueue(ctx, &cfg)
	if err != nil {
		return err
	}
	if queue == nil {
		return errNoQueue
	}
	svc, err := submission.NewService(bootstrap.SubmissionConfig(&cfg), submission.WithLogger(cli.logger))
	if err != nil {
		return err
	}
	stats, err := deadletter.Replay(ctx, queue, svc, deadletter.ReplayOptions{
		Limit:      replayFlags.limit,
		Visibility: svc.Policy().MaxDuration() + replayVisibilitySlack,
	}, cli.logger)
	if printErr := printJSON(cmd.OutOrStdout(), stats); printErr != nil && err == nil {
		err = printErr
	}
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}
	return nil
}

package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/wolfman30/landing-leads/internal/app/bootstrap"
	"github.com/wolfman30/landing-leads/internal/leads"
	"github.com/wolfman30/landing-leads/internal/submission"
)

var errSubmitFailed = errors.New("lead was not delivered")

var submitFlags struct {
	values      leads.FormValues
	pageURL     string
	ref         string
	maxRetries  int
	noFallback  bool
	checkHealth bool
}

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit one lead through validation, retries and fallback",
	RunE:  runSubmit,
}

func init() {
	f := submitCmd.Flags()
	f.StringVar(&submitFlags.values.Name, "name", "", "Visitor name")
	f.StringVar(&submitFlags.values.Email, "email", "", "Visitor email")
	f.StringVar(&submitFlags.values.Phone, "phone", "", "Visitor phone")
	f.StringVar(&submitFlags.values.Messenger, "messenger", "", "Preferred messenger")
	f.StringVar(&submitFlags.values.Goal, "goal", "", "Visitor goal")
	f.StringVar(&submitFlags.pageURL, "page-url", "", "Full URL of the landing page (path and utm_* are taken from it)")
	f.StringVar(&submitFlags.ref, "ref", "", "Referrer")
	f.IntVar(&submitFlags.maxRetries, "max-retries", -1, "Retries per mode (default $WEBHOOK_MAX_RETRIES)")
	f.BoolVar(&submitFlags.noFallback, "no-fallback", false, "Never switch to no-cors fallback mode")
	f.BoolVar(&submitFlags.checkHealth, "check-health", false, "Check webhook health before submitting")

	_ = submitCmd.MarkFlagRequired("name")
}

func runSubmit(cmd *cobra.Command, _ []string) error {
	if cli.cfg.WebhookURL == "" {
		return errNoURL
	}
	cfg := bootstrap.SubmissionConfig(cli.cfg)
	if submitFlags.maxRetries >= 0 {
		cfg.MaxRetries = submitFlags.maxRetries
	}
	if submitFlags.noFallback {
		cfg.FallbackEnabled = false
	}
	svc, err := submission.NewService(cfg, submission.WithLogger(cli.logger))
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if submitFlags.checkHealth {
		if report := svc.CheckHealth(ctx); report.Warning != "" {
			cli.logger.Warn("webhook health check", "warning", report.Warning)
		}
	}

	page := leads.PageContextFromURL(submitFlags.pageURL, submitFlags.ref)
	result := svc.SubmitLead(ctx, submitFlags.values, page)
	if err := printJSON(cmd.OutOrStdout(), struct {
		submission.Result
		Notification submission.Notification `json:"notification"`
	}{result, result.Notification()}); err != nil {
		return err
	}
	if !result.Success {
		return errSubmitFailed
	}
	return nil
}

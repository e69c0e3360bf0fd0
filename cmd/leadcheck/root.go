package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	appconfig "github.com/wolfman30/landing-leads/internal/config"
	"github.com/wolfman30/landing-leads/internal/webhook"
	"github.com/wolfman30/landing-leads/pkg/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

var errNoURL = errors.New("webhook URL is required (--url or WEBHOOK_URL)")

var rootFlags struct {
	url      string
	timeout  time.Duration
	logLevel string
}

// cli is the state shared by all subcommands after PersistentPreRunE.
var cli struct {
	cfg    *appconfig.Config
	logger *logging.Logger
}

var rootCmd = &cobra.Command{
	Use:   "leadcheck",
	Short: "Operate and verify the landing page lead webhook",
	Long:  "leadcheck talks to the lead webhook directly: health and stats checks,\nmanual and batch submissions through the full retry pipeline, the\ncontract suite and dead-letter replay.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&rootFlags.url, "url", "", "Webhook URL (default $WEBHOOK_URL)")
	f.DurationVar(&rootFlags.timeout, "timeout", 0, "Per-request timeout (default $WEBHOOK_TIMEOUT)")
	f.StringVar(&rootFlags.logLevel, "log-level", "", "Log level (default $LOG_LEVEL)")

	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command, _ []string) error {
	_ = godotenv.Load()
	cfg := appconfig.Load()
	if u := strings.TrimSpace(rootFlags.url); u != "" {
		cfg.WebhookURL = u
	}
	if rootFlags.timeout > 0 {
		cfg.WebhookTimeout = rootFlags.timeout
	}
	level := cfg.LogLevel
	if rootFlags.logLevel != "" {
		level = rootFlags.logLevel
	}
	cli.cfg = cfg
	cli.logger = logging.NewText(level, cmd.ErrOrStderr())
	return nil
}

func newWebhookClient() (*webhook.Client, error) {
	if cli.cfg.WebhookURL == "" {
		return nil, errNoURL
	}
	return webhook.New(webhook.Config{
		EndpointURL: cli.cfg.WebhookURL,
		Timeout:     cli.cfg.WebhookTimeout,
		UserAgent:   "leadcheck/" + version,
		Logger:      cli.logger,
	})
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

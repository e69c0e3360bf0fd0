package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wolfman30/landing-leads/internal/contract"
)

var verifyFlags struct {
	origin     string
	skipSubmit bool
	jsonOut    bool
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Run the webhook contract suite and print a pass/fail summary",
	Long: "verify checks the deployed webhook end to end: health check, a valid\n" +
		"test lead, an invalid lead and a honeypot lead (both must be refused),\n" +
		"and CORS preflight headers.",
	RunE: runVerify,
}

func init() {
	f := verifyCmd.Flags()
	f.StringVar(&verifyFlags.origin, "origin", "https://example.com", "Origin sent with the CORS preflight")
	f.BoolVar(&verifyFlags.skipSubmit, "skip-submit", false, "Do not store a test lead")
	f.BoolVar(&verifyFlags.jsonOut, "json", false, "Print the report as JSON")
}

func runVerify(cmd *cobra.Command, _ []string) error {
	client, err := newWebhookClient()
	if err != nil {
		return err
	}
	report := contract.Run(cmd.Context(), client, contract.Options{
		Origin:     verifyFlags.origin,
		SkipSubmit: verifyFlags.skipSubmit,
	})

	out := cmd.OutOrStdout()
	if verifyFlags.jsonOut {
		if err := printJSON(out, report); err != nil {
			return err
		}
	} else {
		for _, c := range report.Checks {
			status := "PASS"
			if !c.Passed {
				status = "FAIL"
			}
			fmt.Fprintf(out, "  %-20s %s  %s\n", c.Name, status, c.Detail)
		}
		fmt.Fprintf(out, "\n%d/%d checks passed\n", report.Passed(), len(report.Checks))
	}
	if !report.OK() {
		return fmt.Errorf("%d of %d checks failed", len(report.Checks)-report.Passed(), len(report.Checks))
	}
	return nil
}

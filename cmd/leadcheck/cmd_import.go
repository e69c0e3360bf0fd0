package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/wolfman30/landing-leads/internal/app/bootstrap"
	"github.com/wolfman30/landing-leads/internal/leads"
	"github.com/wolfman30/landing-leads/internal/submission"
)

// importFile is a batch of leads collected outside the landing page, e.g. at
// an event. Per-lead page_url and ref override the file-level ones.
type importFile struct {
	PageURL string       `yaml:"page_url"`
	Ref     string       `yaml:"ref"`
	Leads   []importLead `yaml:"leads"`
}

type importLead struct {
	Name      string `yaml:"name"`
	Email     string `yaml:"email"`
	Phone     string `yaml:"phone"`
	Messenger string `yaml:"messenger"`
	Goal      string `yaml:"goal"`
	PageURL   string `yaml:"page_url"`
	Ref       string `yaml:"ref"`
}

func (l importLead) values() leads.FormValues {
	return leads.FormValues{Name: l.Name, Email: l.Email, Phone: l.Phone, Messenger: l.Messenger, Goal: l.Goal}
}

var importFlags struct {
	file   string
	dryRun bool
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Submit every lead listed in a YAML file",
	RunE:  runImport,
}

func init() {
	f := importCmd.Flags()
	f.StringVarP(&importFlags.file, "file", "f", "", "YAML file with a leads list")
	f.BoolVar(&importFlags.dryRun, "dry-run", false, "Only validate; send nothing")
	_ = importCmd.MarkFlagRequired("file")
}

func loadImportFile(path string) (importFile, error) {
	var batch importFile
	raw, err := os.ReadFile(path)
	if err != nil {
		return batch, err
	}
	if err := yaml.Unmarshal(raw, &batch); err != nil {
		return batch, fmt.Errorf("parse %s: %w", path, err)
	}
	return batch, nil
}

func runImport(cmd *cobra.Command, _ []string) error {
	batch, err := loadImportFile(importFlags.file)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	var svc *submission.Service
	if !importFlags.dryRun {
		if cli.cfg.WebhookURL == "" {
			return errNoURL
		}
		if svc, err = submission.NewService(bootstrap.SubmissionConfig(cli.cfg), submission.WithLogger(cli.logger)); err != nil {
			return err
		}
	}

	delivered := 0
	for i, lead := range batch.Leads {
		pageURL, ref := batch.PageURL, batch.Ref
		if lead.PageURL != "" {
			pageURL = lead.PageURL
		}
		if lead.Ref != "" {
			ref = lead.Ref
		}

		if importFlags.dryRun {
			verdict := leads.ValidateForm(leads.TrimValues(lead.values()))
			if verdict.Valid {
				delivered++
				fmt.Fprintf(out, "VALID   #%d %s\n", i+1, lead.Name)
			} else {
				fmt.Fprintf(out, "INVALID #%d %s: %s\n", i+1, lead.Name, *verdict.FirstError)
			}
			continue
		}

		result := svc.SubmitLead(cmd.Context(), lead.values(), leads.PageContextFromURL(pageURL, ref))
		if result.Success {
			delivered++
			fmt.Fprintf(out, "OK   #%d %s %s\n", i+1, lead.Name, result.SubmissionID)
		} else {
			fmt.Fprintf(out, "FAIL #%d %s: %s\n", i+1, lead.Name, result.Kind)
		}
	}

	verb := "delivered"
	if importFlags.dryRun {
		verb = "valid"
	}
	fmt.Fprintf(out, "\n%d/%d leads %s\n", delivered, len(batch.Leads), verb)
	if delivered != len(batch.Leads) {
		return errSubmitFailed
	}
	return nil
}

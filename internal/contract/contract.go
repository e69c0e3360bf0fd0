// Package contract checks that a deployed webhook honours the lead contract:
// it answers health checks, stores valid leads and refuses invalid and
// honeypot ones, and sends CORS headers.
package contract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/wolfman30/landing-leads/internal/leads"
	"github.com/wolfman30/landing-leads/internal/webhook"
)

// Check names, in run order.
const (
	CheckHealth   = "health_check"
	CheckValid    = "lead_submission"
	CheckInvalid  = "invalid_data"
	CheckHoneypot = "honeypot_protection"
	CheckCORS     = "cors_headers"
)

// Client is the part of *webhook.Client the suite drives.
type Client interface {
	Health(ctx context.Context) (webhook.HealthStatus, error)
	Send(ctx context.Context, rec leads.Record, opts webhook.SendOptions) (*webhook.Response, error)
	Preflight(ctx context.Context, origin string) (webhook.PreflightResult, error)
}

var _ Client = (*webhook.Client)(nil)

// CheckResult is the outcome of one check.
type CheckResult struct {
	Name     string          `json:"name"`
	Passed   bool            `json:"passed"`
	Detail   string          `json:"detail,omitempty"`
	Response json.RawMessage `json:"response,omitempty"`
	Duration time.Duration   `json:"duration"`
}

// Report collects every check of one run.
type Report struct {
	Checks []CheckResult `json:"checks"`
}

// Passed counts passing checks.
func (r Report) Passed() int {
	n := 0
	for _, c := range r.Checks {
		if c.Passed {
			n++
		}
	}
	return n
}

// OK reports whether every check passed.
func (r Report) OK() bool {
	return len(r.Checks) > 0 && r.Passed() == len(r.Checks)
}

// Options tune a run.
type Options struct {
	// Origin is sent with the CORS preflight.
	Origin string
	// SkipSubmit leaves out the check that stores a real test lead.
	SkipSubmit bool
}

// SampleRecord is the well-formed test lead.
func SampleRecord() leads.Record {
	return leads.BuildPayload(leads.FormValues{
		Name:      "Тестовый Пользователь",
		Email:     "test@example.com",
		Phone:     "+7 (999) 123-45-67",
		Messenger: "Telegram",
		Goal:      "Изучение английского",
	}, leads.PageContext{
		Page:     "/test",
		Referrer: "https://google.com",
		Query: url.Values{
			leads.KeyUTMSource:   {"test"},
			leads.KeyUTMMedium:   {"manual"},
			leads.KeyUTMCampaign: {"integration_test"},
		},
	})
}

// Run executes the suite in order. It never stops early.
func Run(ctx context.Context, c Client, opts Options) Report {
	var report Report
	add := func(name string, fn func() CheckResult) {
		start := time.Now()
		res := fn()
		res.Name = name
		res.Duration = time.Since(start)
		report.Checks = append(report.Checks, res)
	}

	add(CheckHealth, func() CheckResult {
		status, err := c.Health(ctx)
		if err != nil {
			return CheckResult{Detail: err.Error()}
		}
		return CheckResult{
			Passed:   status.Healthy,
			Detail:   fmt.Sprintf("status %d: %s", status.StatusCode, status.Message),
			Response: status.Data,
		}
	})

	if !opts.SkipSubmit {
		add(CheckValid, func() CheckResult {
			resp, err := c.Send(ctx, SampleRecord(), webhook.SendOptions{Mode: webhook.ModePrimary})
			if err != nil {
				return CheckResult{Detail: err.Error()}
			}
			return CheckResult{Passed: resp.OK, Detail: resp.Message, Response: resp.Data}
		})
	}

	// A name-less lead must be refused.
	add(CheckInvalid, func() CheckResult {
		rec := leads.Record{
			leads.KeyEmail: "test@example.com",
			leads.KeyPhone: "+7 (999) 123-45-67",
		}
		return expectRejected(ctx, c, rec)
	})

	add(CheckHoneypot, func() CheckResult {
		rec := leads.Record{
			leads.KeyName:     "Тестовый Пользователь",
			leads.KeyEmail:    "test@example.com",
			leads.KeyPhone:    "+7 (999) 123-45-67",
			leads.KeyHoneypot: "spam-bot",
		}
		return expectRejected(ctx, c, rec)
	})

	add(CheckCORS, func() CheckResult {
		res, err := c.Preflight(ctx, opts.Origin)
		if err != nil {
			return CheckResult{Detail: err.Error()}
		}
		raw, _ := json.Marshal(res)
		if res.AllowOrigin == "" {
			return CheckResult{Detail: fmt.Sprintf("status %d without Access-Control-Allow-Origin", res.StatusCode), Response: raw}
		}
		return CheckResult{Passed: true, Detail: "allow origin " + res.AllowOrigin, Response: raw}
	})

	return report
}

func expectRejected(ctx context.Context, c Client, rec leads.Record) CheckResult {
	resp, err := c.Send(ctx, rec, webhook.SendOptions{Mode: webhook.ModePrimary})
	if err == nil {
		return CheckResult{Detail: "unexpected success: " + resp.Message, Response: resp.Data}
	}
	if webhook.KindOf(err) == webhook.KindRejected {
		var werr *webhook.Error
		detail := "rejected"
		if errors.As(err, &werr) && werr.Message != "" {
			detail = "rejected: " + werr.Message
		}
		return CheckResult{Passed: true, Detail: detail}
	}
	return CheckResult{Detail: err.Error()}
}

package submission

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/landing-leads/internal/leads"
	"github.com/wolfman30/landing-leads/internal/observability/metrics"
	"github.com/wolfman30/landing-leads/internal/webhook"
	"github.com/wolfman30/landing-leads/pkg/logging"
)

var submissionTracer = otel.Tracer("landing.internal.submission")

var errEmptyResponse = errors.New("submission: sender returned no response")

// Sender performs one transport attempt. *webhook.Client implements it.
// Implementations must return once ctx is done; a Send that ignores ctx
// leaks its goroutine after the attempt timeout.
type Sender interface {
	Send(ctx context.Context, rec leads.Record, opts webhook.SendOptions) (*webhook.Response, error)
}

var _ Sender = (*webhook.Client)(nil)

// Controller runs the bounded retry loop with the one-way primary to
// fallback switch.
type Controller struct {
	sender  Sender
	logger  *logging.Logger
	metrics *metrics.LeadMetrics
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewController wires a controller around sender. logger and m may be nil.
func NewController(sender Sender, logger *logging.Logger, m *metrics.LeadMetrics) *Controller {
	if sender == nil {
		panic("submission: sender required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Controller{
		sender:  sender,
		logger:  logger,
		metrics: m,
		sleep:   sleepContext,
	}
}

// SubmitWithPolicy delivers rec under policy and always returns a Result.
//
// The first attempt uses webhook.ModePrimary. A cross-origin failure switches
// every later attempt to webhook.ModeFallback and restarts the retry count;
// the controller never goes back to primary. Retryable failures are retried
// up to policy.MaxRetries times per mode, waiting RetryBackoff*n before the
// n-th retry.
func (c *Controller) SubmitWithPolicy(ctx context.Context, rec leads.Record, policy Policy) Result {
	policy = policy.withDefaults()
	result := Result{SubmissionID: uuid.NewString(), Mode: webhook.ModePrimary}

	ctx, span := submissionTracer.Start(ctx, "leads.submit")
	defer span.End()
	span.SetAttributes(
		attribute.String("leads.submission_id", result.SubmissionID),
		attribute.Int("leads.max_retries", policy.MaxRetries),
		attribute.Bool("leads.fallback_enabled", policy.FallbackEnabled),
	)
	logger := c.logger.With("submission_id", result.SubmissionID)

	mode := webhook.ModePrimary
	retries := 0
	unknownRetried := false
	for number := 1; ; number++ {
		att, resp, err := c.attempt(ctx, rec, mode, number, policy.Timeout)
		if err == nil {
			att.Outcome = OutcomeSuccess
			c.observeAttempt(&result, att)
			return c.succeed(span, logger, result, resp)
		}

		kind := webhook.KindOf(err)
		switch {
		case ctx.Err() != nil || kind == webhook.KindCanceled:
			att.Outcome = OutcomeFatal
			c.observeAttempt(&result, att)
			if kind != webhook.KindCanceled {
				err = &webhook.Error{Kind: webhook.KindCanceled, Mode: mode, Err: ctx.Err()}
			}
			return c.fail(span, logger, result, err)

		case kind == webhook.KindCrossOrigin && mode == webhook.ModePrimary && policy.FallbackEnabled:
			att.Outcome = OutcomeRetryable
			c.observeAttempt(&result, att)
			logger.Warn("lead response unreadable, switching to no-cors fallback",
				"attempt", number,
				"status", att.StatusCode,
				"error", err,
			)
			c.metrics.ObserveModeSwitch()
			span.AddEvent("leads.fallback_switch")
			mode = webhook.ModeFallback
			result.Mode = mode
			retries = 0
			unknownRetried = false
			continue

		case !policy.retryable(err, unknownRetried):
			att.Outcome = OutcomeFatal
			c.observeAttempt(&result, att)
			return c.fail(span, logger, result, err)

		case retries >= policy.MaxRetries:
			att.Outcome = OutcomeRetryable
			c.observeAttempt(&result, att)
			logger.Warn("lead retries exhausted", "attempt", number, "mode", mode, "kind", kind)
			return c.fail(span, logger, result, err)
		}

		att.Outcome = OutcomeRetryable
		c.observeAttempt(&result, att)
		if kind == webhook.KindUnknown {
			unknownRetried = true
		}
		retries++
		delay := policy.RetryBackoff * time.Duration(retries)
		logger.Warn("lead retry",
			"attempt", number,
			"retry", retries,
			"max_retries", policy.MaxRetries,
			"mode", mode,
			"kind", kind,
			"delay_ms", delay.Milliseconds(),
			"error", err,
		)
		if sleepErr := c.sleep(ctx, delay); sleepErr != nil {
			return c.fail(span, logger, result, &webhook.Error{Kind: webhook.KindCanceled, Mode: mode, Err: sleepErr})
		}
	}
}

// attempt runs one Send bounded by timeout. The bound is enforced here as
// well as in the transport so a sender that ignores its context still cannot
// stall the loop.
func (c *Controller) attempt(ctx context.Context, rec leads.Record, mode webhook.Mode, number int, timeout time.Duration) (Attempt, *webhook.Response, error) {
	ctx, span := submissionTracer.Start(ctx, "leads.attempt", trace.WithAttributes(
		attribute.Int("leads.attempt", number),
		attribute.String("leads.mode", string(mode)),
	))
	defer span.End()

	start := time.Now()
	resp, err := c.sendBounded(ctx, rec, mode, timeout)
	att := Attempt{
		Number:     number,
		Mode:       mode,
		Outcome:    OutcomePending,
		DurationMS: time.Since(start).Milliseconds(),
	}
	if err != nil {
		att.Kind = webhook.KindOf(err)
		att.StatusCode = webhook.StatusCodeOf(err)
		att.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, string(att.Kind))
	}
	return att, resp, err
}

func (c *Controller) sendBounded(ctx context.Context, rec leads.Record, mode webhook.Mode, timeout time.Duration) (*webhook.Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type sent struct {
		resp *webhook.Response
		err  error
	}
	done := make(chan sent, 1)
	go func() {
		resp, err := c.sender.Send(attemptCtx, rec, webhook.SendOptions{Mode: mode, Timeout: timeout})
		done <- sent{resp: resp, err: err}
	}()

	var out sent
	select {
	case out = <-done:
	case <-attemptCtx.Done():
		select {
		case out = <-done:
		default:
			if ctx.Err() != nil {
				return nil, &webhook.Error{Kind: webhook.KindCanceled, Mode: mode, Err: ctx.Err()}
			}
			return nil, &webhook.Error{Kind: webhook.KindTimeout, Mode: mode, Err: attemptCtx.Err()}
		}
	}
	if out.err != nil {
		return nil, out.err
	}
	if out.resp == nil {
		return nil, &webhook.Error{Kind: webhook.KindUnknown, Mode: mode, Err: errEmptyResponse}
	}
	if !out.resp.OK {
		return nil, &webhook.Error{Kind: webhook.KindRejected, Mode: mode, StatusCode: out.resp.StatusCode, Message: out.resp.Message}
	}
	return out.resp, nil
}

func (c *Controller) observeAttempt(result *Result, att Attempt) {
	result.Attempts = append(result.Attempts, att)
	c.metrics.ObserveAttempt(string(att.Mode), string(att.Outcome), float64(att.DurationMS)/1000)
}

func (c *Controller) succeed(span trace.Span, logger *logging.Logger, result Result, resp *webhook.Response) Result {
	result.Success = true
	result.Confirmed = !resp.Opaque
	result.Message = resp.Message
	result.Data = resp.Data
	span.SetAttributes(
		attribute.Bool("leads.success", true),
		attribute.Bool("leads.confirmed", result.Confirmed),
		attribute.Int("leads.attempts", len(result.Attempts)),
	)
	c.metrics.ObserveSubmission(result.outcomeLabel(), string(result.Mode))
	logger.Info("lead delivered",
		"mode", result.Mode,
		"confirmed", result.Confirmed,
		"attempts", len(result.Attempts),
	)
	return result
}

func (c *Controller) fail(span trace.Span, logger *logging.Logger, result Result, err error) Result {
	result.Success = false
	result.Kind = ErrorKind(webhook.KindOf(err))
	result.Error = failureMessage(err)
	result.Detail = err.Error()
	span.RecordError(err)
	span.SetStatus(codes.Error, string(result.Kind))
	span.SetAttributes(attribute.Int("leads.attempts", len(result.Attempts)))
	c.metrics.ObserveSubmission(result.outcomeLabel(), string(result.Mode))
	logger.Error("lead delivery failed",
		"mode", result.Mode,
		"kind", result.Kind,
		"attempts", len(result.Attempts),
		"error", err,
	)
	return result
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

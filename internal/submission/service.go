package submission

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/landing-leads/internal/leads"
	"github.com/wolfman30/landing-leads/internal/observability/metrics"
	"github.com/wolfman30/landing-leads/internal/webhook"
	"github.com/wolfman30/landing-leads/pkg/logging"
)

const deadLetterTimeout = 5 * time.Second

var errNoSender = errors.New("submission: endpoint URL or sender required")

// HealthChecker checks the webhook. *webhook.Client implements it.
type HealthChecker interface {
	Health(ctx context.Context) (webhook.HealthStatus, error)
}

var _ HealthChecker = (*webhook.Client)(nil)

// DeadLetterEntry is an undeliverable lead handed to a DeadLetter sink.
type DeadLetterEntry struct {
	SubmissionID string    `json:"submission_id"`
	FailedAt     time.Time `json:"failed_at"`
	Kind         ErrorKind `json:"kind"`
	Error        string    `json:"error"`
	// Body is the form-encoded record exactly as it was sent.
	Body     string    `json:"body"`
	Attempts []Attempt `json:"attempts"`
}

// DeadLetter keeps leads the webhook never accepted.
type DeadLetter interface {
	Publish(ctx context.Context, entry DeadLetterEntry) error
}

// HealthReport is the non-blocking pre-flight result.
type HealthReport struct {
	Checked bool                 `json:"checked"`
	Healthy bool                 `json:"healthy"`
	Warning string               `json:"warning,omitempty"`
	Status  *webhook.HealthStatus `json:"status,omitempty"`
}

// Service is the submission orchestrator: validate, build, deliver.
type Service struct {
	policy     Policy
	controller *Controller
	health     HealthChecker
	deadLetter DeadLetter
	logger     *logging.Logger
	metrics    *metrics.LeadMetrics
	now        func() time.Time
}

// Option customizes NewService.
type Option func(*serviceOptions)

type serviceOptions struct {
	sender     Sender
	health     HealthChecker
	deadLetter DeadLetter
	httpClient *http.Client
	logger     *logging.Logger
	metrics    *metrics.LeadMetrics
}

// WithSender replaces the webhook client, e.g. with a test double.
func WithSender(s Sender) Option {
	return func(o *serviceOptions) { o.sender = s }
}

// WithHealthChecker sets the pre-flight health check.
func WithHealthChecker(h HealthChecker) Option {
	return func(o *serviceOptions) { o.health = h }
}

// WithDeadLetter sets the sink for undeliverable leads.
func WithDeadLetter(d DeadLetter) Option {
	return func(o *serviceOptions) { o.deadLetter = d }
}

// WithHTTPClient sets the HTTP client of the built-in webhook client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *serviceOptions) { o.httpClient = c }
}

func WithLogger(l *logging.Logger) Option {
	return func(o *serviceOptions) { o.logger = l }
}

func WithMetrics(m *metrics.LeadMetrics) Option {
	return func(o *serviceOptions) { o.metrics = m }
}

// NewService builds the orchestrator. Without WithSender a webhook client for
// cfg.EndpointURL is created and also used as the health checker.
func NewService(cfg Config, opts ...Option) (*Service, error) {
	var o serviceOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.Default()
	}
	if o.sender == nil {
		if cfg.EndpointURL == "" {
			return nil, errNoSender
		}
		client, err := webhook.New(webhook.Config{
			EndpointURL: cfg.EndpointURL,
			Timeout:     cfg.Timeout,
			HTTPClient:  o.httpClient,
			Logger:      o.logger,
		})
		if err != nil {
			return nil, err
		}
		o.sender = client
		if o.health == nil {
			o.health = client
		}
	}
	return &Service{
		policy:     cfg.Policy(),
		controller: NewController(o.sender, o.logger, o.metrics),
		health:     o.health,
		deadLetter: o.deadLetter,
		logger:     o.logger,
		metrics:    o.metrics,
		now:        time.Now,
	}, nil
}

// Policy returns the effective retry policy.
func (s *Service) Policy() Policy {
	return s.policy
}

// SubmitLead validates raw, builds the record and delivers it. It always
// returns a Result; a validation failure makes no network call.
func (s *Service) SubmitLead(ctx context.Context, raw leads.FormValues, page leads.PageContext) Result {
	values := leads.TrimValues(raw)
	verdict := leads.ValidateForm(values)
	if !verdict.Valid {
		result := Result{
			SubmissionID: uuid.NewString(),
			Kind:         KindValidation,
			Error:        NotifyValidation.Message,
			Detail:       verdict.Err().Error(),
			Validation:   &verdict,
		}
		s.metrics.ObserveSubmission(result.outcomeLabel(), "")
		s.logger.Info("lead rejected by validation",
			"submission_id", result.SubmissionID,
			"field", *verdict.FirstError,
		)
		return result
	}

	rec := leads.BuildPayload(values, page)
	result := s.controller.SubmitWithPolicy(ctx, rec, s.policy)
	if !result.Success {
		s.publishDeadLetter(ctx, rec, result)
	}
	return result
}

// Resubmit re-delivers an already built record, e.g. one read back from the
// dead letter. It skips validation and never publishes to the dead letter.
func (s *Service) Resubmit(ctx context.Context, rec leads.Record) Result {
	return s.controller.SubmitWithPolicy(ctx, rec, s.policy)
}

// CheckHealth checks the webhook. A failing check only produces a warning;
// it never blocks SubmitLead.
func (s *Service) CheckHealth(ctx context.Context) HealthReport {
	if s.health == nil {
		return HealthReport{Healthy: true}
	}
	status, err := s.health.Health(ctx)
	if err != nil {
		s.logger.Warn("webhook health check failed", "error", err)
		return HealthReport{Checked: true, Warning: failureMessage(err)}
	}
	report := HealthReport{Checked: true, Healthy: status.Healthy, Status: &status}
	if !status.Healthy {
		report.Warning = NotifyConnection.Message
		s.logger.Warn("webhook unhealthy", "status", status.StatusCode, "message", status.Message)
	}
	return report
}

func (s *Service) publishDeadLetter(ctx context.Context, rec leads.Record, result Result) {
	if s.deadLetter == nil {
		return
	}
	// The caller may already be gone; the lead should still be kept.
	dlCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deadLetterTimeout)
	defer cancel()
	entry := DeadLetterEntry{
		SubmissionID: result.SubmissionID,
		FailedAt:     s.now().UTC(),
		Kind:         result.Kind,
		Error:        result.Detail,
		Body:         rec.Encode(),
		Attempts:     result.Attempts,
	}
	if err := s.deadLetter.Publish(dlCtx, entry); err != nil {
		s.metrics.ObserveDeadLetter(false)
		s.logger.Error("dead letter publish failed", "submission_id", result.SubmissionID, "error", err)
		return
	}
	s.metrics.ObserveDeadLetter(true)
	s.logger.Info("lead kept in dead letter", "submission_id", result.SubmissionID)
}

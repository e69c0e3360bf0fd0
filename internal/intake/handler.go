package intake

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/wolfman30/landing-leads/internal/leads"
	"github.com/wolfman30/landing-leads/internal/observability/metrics"
	"github.com/wolfman30/landing-leads/internal/submission"
	"github.com/wolfman30/landing-leads/pkg/logging"
)

const maxBodyBytes = 64 << 10

// Intake results, used as the metrics label.
const (
	resultAccepted   = "accepted"
	resultInvalid    = "invalid"
	resultFailed     = "failed"
	resultHoneypot   = "honeypot"
	resultDuplicate  = "duplicate"
	resultBadRequest = "bad_request"
)

const messageRunning = "Lead relay is running"

var errUnsupportedMedia = errors.New("intake: unsupported content type")

// Submitter is the orchestrator the handler delegates to.
// *submission.Service implements it.
type Submitter interface {
	SubmitLead(ctx context.Context, raw leads.FormValues, page leads.PageContext) submission.Result
	CheckHealth(ctx context.Context) submission.HealthReport
}

var _ Submitter = (*submission.Service)(nil)

// Handler serves the landing page's same-origin lead endpoint.
type Handler struct {
	submitter Submitter
	guard     DuplicateGuard
	logger    *logging.Logger
	metrics   *metrics.LeadMetrics
}

// NewHandler wires the intake handler. guard and m may be nil.
func NewHandler(s Submitter, guard DuplicateGuard, logger *logging.Logger, m *metrics.LeadMetrics) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	h := &Handler{submitter: s, logger: logger, metrics: m}
	// A typed nil *RedisGuard must not end up as a non-nil interface.
	if g, ok := guard.(*RedisGuard); !ok || g != nil {
		h.guard = guard
	}
	return h
}

// leadRequest is the body of POST /leads, form-encoded or JSON.
type leadRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Messenger   string `json:"messenger"`
	Goal        string `json:"goal"`
	Website     string `json:"website"`
	PageURL     string `json:"page_url"`
	Page        string `json:"page"`
	Ref         string `json:"ref"`
	UTMSource   string `json:"utm_source"`
	UTMMedium   string `json:"utm_medium"`
	UTMCampaign string `json:"utm_campaign"`
}

// LeadResponse is the JSON envelope returned by POST /leads. It follows the
// webhook's own {ok, message, data} shape.
type LeadResponse struct {
	OK           bool                       `json:"ok"`
	Message      string                     `json:"message,omitempty"`
	Data         json.RawMessage            `json:"data,omitempty"`
	Errors       map[leads.FieldKind]string `json:"errors,omitempty"`
	SubmissionID string                     `json:"submission_id,omitempty"`
	Confirmed    bool                       `json:"confirmed"`
	Notification *submission.Notification   `json:"notification,omitempty"`
}

// SubmitLead handles POST /leads.
func (h *Handler) SubmitLead(w http.ResponseWriter, r *http.Request) {
	req, err := decodeLeadRequest(w, r)
	if err != nil {
		h.metrics.ObserveIntake(resultBadRequest)
		h.logger.Warn("failed to decode lead request", "error", err)
		status := http.StatusBadRequest
		if errors.Is(err, errUnsupportedMedia) {
			status = http.StatusUnsupportedMediaType
		}
		writeJSON(w, status, LeadResponse{Message: "invalid request body"})
		return
	}

	if strings.TrimSpace(req.Website) != "" {
		// Bots get the same answer as people.
		h.metrics.ObserveIntake(resultHoneypot)
		h.logger.Warn("honeypot field filled, lead discarded", "remote_ip", r.RemoteAddr)
		writeSuccess(w, submission.Result{})
		return
	}

	values := leads.FormValues{
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		Messenger: req.Messenger,
		Goal:      req.Goal,
	}
	page := pageContext(req, r.Referer())
	ctx := r.Context()

	var guardKey string
	if h.guard != nil && leads.ValidateForm(leads.TrimValues(values)).Valid {
		key := Fingerprint(values)
		first, err := h.guard.Reserve(ctx, key)
		switch {
		case err != nil:
			h.logger.Warn("duplicate guard unavailable", "error", err)
		case !first:
			h.metrics.ObserveIntake(resultDuplicate)
			h.logger.Info("duplicate lead suppressed")
			writeSuccess(w, submission.Result{})
			return
		default:
			guardKey = key
		}
	}

	result := h.submitter.SubmitLead(ctx, values, page)
	switch {
	case result.Success:
		h.metrics.ObserveIntake(resultAccepted)
		writeSuccess(w, result)
	case result.Kind == submission.KindValidation:
		h.metrics.ObserveIntake(resultInvalid)
		note := result.Notification()
		resp := LeadResponse{
			Message:      result.Error,
			SubmissionID: result.SubmissionID,
			Notification: &note,
		}
		if result.Validation != nil {
			resp.Errors = result.Validation.Errors
		}
		writeJSON(w, http.StatusUnprocessableEntity, resp)
	default:
		h.metrics.ObserveIntake(resultFailed)
		if guardKey != "" {
			if err := h.guard.Release(context.WithoutCancel(ctx), guardKey); err != nil {
				h.logger.Warn("failed to release duplicate guard", "error", err)
			}
		}
		note := result.Notification()
		writeJSON(w, http.StatusBadGateway, LeadResponse{
			Message:      result.Error,
			SubmissionID: result.SubmissionID,
			Notification: &note,
		})
	}
}

// Health handles GET /health. A failing webhook is reported in the body but
// never turns the relay's own status into an error.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	report := h.submitter.CheckHealth(r.Context())
	data, _ := json.Marshal(map[string]any{"webhook": report})
	writeJSON(w, http.StatusOK, LeadResponse{OK: true, Message: messageRunning, Data: data, Confirmed: true})
}

func writeSuccess(w http.ResponseWriter, result submission.Result) {
	note := submission.NotifySuccess
	writeJSON(w, http.StatusOK, LeadResponse{
		OK:           true,
		Message:      note.Message,
		Data:         result.Data,
		SubmissionID: result.SubmissionID,
		Confirmed:    result.Confirmed,
		Notification: &note,
	})
}

func decodeLeadRequest(w http.ResponseWriter, r *http.Request) (leadRequest, error) {
	var req leadRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	mediaType := "application/x-www-form-urlencoded"
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil {
			return req, errUnsupportedMedia
		}
		mediaType = mt
	}

	switch mediaType {
	case "application/json":
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, err
		}
		return req, nil
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return req, err
		}
		form := r.PostForm
		req = leadRequest{
			Name:        form.Get("name"),
			Email:       form.Get("email"),
			Phone:       form.Get("phone"),
			Messenger:   form.Get("messenger"),
			Goal:        form.Get("goal"),
			Website:     form.Get(leads.KeyHoneypot),
			PageURL:     form.Get("page_url"),
			Page:        form.Get(leads.KeyPage),
			Ref:         form.Get(leads.KeyRef),
			UTMSource:   form.Get(leads.KeyUTMSource),
			UTMMedium:   form.Get(leads.KeyUTMMedium),
			UTMCampaign: form.Get(leads.KeyUTMCampaign),
		}
		return req, nil
	default:
		return req, errUnsupportedMedia
	}
}

// pageContext prefers the full page URL; explicit page/utm fields fill in
// what it does not carry. The Referer header is the last resort for ref.
func pageContext(req leadRequest, referer string) leads.PageContext {
	ref := strings.TrimSpace(req.Ref)
	if ref == "" {
		ref = referer
	}
	var pc leads.PageContext
	if strings.TrimSpace(req.PageURL) != "" {
		pc = leads.PageContextFromURL(req.PageURL, ref)
	} else {
		pc = leads.PageContext{Page: strings.TrimSpace(req.Page), Referrer: ref, Query: url.Values{}}
	}
	for key, value := range map[string]string{
		leads.KeyUTMSource:   req.UTMSource,
		leads.KeyUTMMedium:   req.UTMMedium,
		leads.KeyUTMCampaign: req.UTMCampaign,
	} {
		if value = strings.TrimSpace(value); value != "" && pc.Query.Get(key) == "" {
			pc.Query.Set(key, value)
		}
	}
	return pc
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

package contract

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/landing-leads/internal/leads"
	"github.com/wolfman30/landing-leads/internal/webhook"
	"github.com/wolfman30/landing-leads/pkg/logging"
)

// fakeWebhook behaves like a well-configured Apps Script endpoint.
func fakeWebhook(cors bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cors {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		switch r.Method {
		case http.MethodOptions:
			w.WriteHeader(http.StatusNoContent)
			return
		case http.MethodGet:
			_, _ = w.Write([]byte(`{"ok":true,"message":"up","data":{"stats":{"total":1}}}`))
			return
		}
		_ = r.ParseForm()
		resp := map[string]any{"ok": true, "message": "saved"}
		switch {
		case r.PostForm.Get(leads.KeyHoneypot) != "":
			resp = map[string]any{"ok": false, "message": "spam"}
		case r.PostForm.Get(leads.KeyName) == "":
			resp = map[string]any{"ok": false, "message": "name required"}
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func newClient(t *testing.T, srv *httptest.Server) *webhook.Client {
	t.Helper()
	c, err := webhook.New(webhook.Config{EndpointURL: srv.URL, HTTPClient: srv.Client(), Logger: logging.Discard()})
	require.NoError(t, err)
	return c
}

func TestRunAllPass(t *testing.T) {
	srv := httptest.NewServer(fakeWebhook(true))
	defer srv.Close()

	report := Run(context.Background(), newClient(t, srv), Options{Origin: "https://landing.example"})

	require.Len(t, report.Checks, 5)
	names := []string{CheckHealth, CheckValid, CheckInvalid, CheckHoneypot, CheckCORS}
	for i, c := range report.Checks {
		assert.Equal(t, names[i], c.Name)
		assert.True(t, c.Passed, "%s: %s", c.Name, c.Detail)
	}
	assert.True(t, report.OK())
	assert.Equal(t, "rejected: spam", report.Checks[3].Detail)
}

func TestRunReportsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	report := Run(context.Background(), newClient(t, srv), Options{SkipSubmit: true})

	require.Len(t, report.Checks, 4)
	assert.False(t, report.OK())
	assert.Equal(t, 1, report.Passed(), "only the health check passes")
	byName := map[string]CheckResult{}
	for _, c := range report.Checks {
		byName[c.Name] = c
	}
	assert.Contains(t, byName[CheckInvalid].Detail, "unexpected success")
	assert.Contains(t, byName[CheckHoneypot].Detail, "unexpected success")
	assert.False(t, byName[CheckCORS].Passed)
}

func TestSampleRecordIsValid(t *testing.T) {
	rec := SampleRecord()
	verdict := leads.ValidateForm(leads.FormValues{
		Name:  rec[leads.KeyName],
		Email: rec[leads.KeyEmail],
		Phone: rec[leads.KeyPhone],
	})
	assert.True(t, verdict.Valid)
	assert.Equal(t, "integration_test", rec[leads.KeyUTMCampaign])
	assert.Equal(t, "", rec[leads.KeyHoneypot])
}

func TestReportOKEmpty(t *testing.T) {
	assert.False(t, Report{}.OK())
}

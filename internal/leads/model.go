package leads

import (
	"net/url"
	"sort"
)

// Record keys sent to the webhook.
const (
	KeyName        = "name"
	KeyEmail       = "email"
	KeyPhone       = "phone"
	KeyMessenger   = "messenger"
	KeyGoal        = "goal"
	KeyPage        = "page"
	KeyRef         = "ref"
	KeyUTMSource   = "utm_source"
	KeyUTMMedium   = "utm_medium"
	KeyUTMCampaign = "utm_campaign"
	// KeyHoneypot is the anti-spam field. The pipeline always sends it empty;
	// the receiving side drops any lead where it is filled in.
	KeyHoneypot = "website"
)

// RecordKeys lists every key a built Record carries.
var RecordKeys = []string{
	KeyName, KeyEmail, KeyPhone, KeyMessenger, KeyGoal,
	KeyPage, KeyRef, KeyUTMSource, KeyUTMMedium, KeyUTMCampaign,
	KeyHoneypot,
}

// FieldKind names a validated form field.
type FieldKind string

const (
	FieldName  FieldKind = "name"
	FieldEmail FieldKind = "email"
	FieldPhone FieldKind = "phone"
	// FieldContact is the form-level "email or phone" rule.
	FieldContact FieldKind = "contact"
)

// FormValues are the raw values a visitor typed into the lead form.
type FormValues struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Messenger string `json:"messenger"`
	Goal      string `json:"goal"`
}

// PageContext is what the hosting page knows about the visit.
type PageContext struct {
	Page     string     `json:"page"`
	Referrer string     `json:"ref"`
	Query    url.Values `json:"query,omitempty"`
}

// Record is the outbound lead: field name to string value.
type Record map[string]string

// Values converts the record to url.Values, skipping nothing: every present
// key is sent, empty strings included.
func (r Record) Values() url.Values {
	values := make(url.Values, len(r))
	for k, v := range r {
		values.Set(k, v)
	}
	return values
}

// Encode returns the application/x-www-form-urlencoded body. Keys are sorted,
// so identical records always encode to identical bytes.
func (r Record) Encode() string {
	return r.Values().Encode()
}

// Keys returns the record keys in sorted order.
func (r Record) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns an independent copy.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// DecodeRecord parses a body produced by Record.Encode. Only the first value
// of a repeated key is kept.
func DecodeRecord(body string) (Record, error) {
	values, err := url.ParseQuery(body)
	if err != nil {
		return nil, err
	}
	rec := make(Record, len(values))
	for k := range values {
		rec[k] = values.Get(k)
	}
	return rec, nil
}

package leads

import (
	"net/url"
	"strings"
)

// BuildPayload assembles the outbound record from form values and page
// context. It does not validate; callers run ValidateForm first.
func BuildPayload(values FormValues, ctx PageContext) Record {
	page := ctx.Page
	if page == "" {
		page = "/"
	}
	return Record{
		KeyName:        values.Name,
		KeyEmail:       values.Email,
		KeyPhone:       values.Phone,
		KeyMessenger:   values.Messenger,
		KeyGoal:        values.Goal,
		KeyPage:        page,
		KeyRef:         ctx.Referrer,
		KeyUTMSource:   ctx.Query.Get(KeyUTMSource),
		KeyUTMMedium:   ctx.Query.Get(KeyUTMMedium),
		KeyUTMCampaign: ctx.Query.Get(KeyUTMCampaign),
		KeyHoneypot:    "",
	}
}

// TrimValues returns values with surrounding whitespace removed.
func TrimValues(values FormValues) FormValues {
	return FormValues{
		Name:      strings.TrimSpace(values.Name),
		Email:     strings.TrimSpace(values.Email),
		Phone:     strings.TrimSpace(values.Phone),
		Messenger: strings.TrimSpace(values.Messenger),
		Goal:      strings.TrimSpace(values.Goal),
	}
}

// PageContextFromURL splits a full page URL into path and query. A URL that
// fails to parse yields the root path with no query.
func PageContextFromURL(pageURL, referrer string) PageContext {
	pc := PageContext{Page: "/", Referrer: referrer, Query: url.Values{}}
	pageURL = strings.TrimSpace(pageURL)
	if pageURL == "" {
		return pc
	}
	u, err := url.Parse(pageURL)
	if err != nil {
		return pc
	}
	if u.Path != "" {
		pc.Page = u.Path
	}
	pc.Query = u.Query()
	return pc
}

package leads

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	minNameLength  = 2
	minPhoneDigits = 10
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Inline messages shown next to a failing field.
const (
	MessageInvalidName    = "Имя должно содержать минимум 2 символа"
	MessageInvalidEmail   = "Введите корректный email"
	MessageInvalidPhone   = "Введите корректный номер телефона"
	MessageMissingContact = "Укажите email или телефон"
)

// FieldResult is the verdict for a single field.
type FieldResult struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
}

// FormResult is the verdict for a whole form. Errors holds one message per
// failing field; FirstError is the field the UI should focus.
type FormResult struct {
	Valid      bool                 `json:"valid"`
	FirstError *FieldKind           `json:"first_error,omitempty"`
	Errors     map[FieldKind]string `json:"errors,omitempty"`
}

// Err returns the sentinel error for FirstError, or nil when valid.
func (r FormResult) Err() error {
	if r.Valid || r.FirstError == nil {
		return nil
	}
	return ErrorFor(*r.FirstError)
}

// ValidateField checks one raw value. Email and phone are only checked when
// non-empty; whether at least one of them is present is a form-level rule.
func ValidateField(kind FieldKind, raw string) FieldResult {
	value := strings.TrimSpace(raw)
	switch kind {
	case FieldName:
		if utf8.RuneCountInString(value) < minNameLength {
			return FieldResult{Message: MessageInvalidName}
		}
	case FieldEmail:
		if value != "" && !IsValidEmail(value) {
			return FieldResult{Message: MessageInvalidEmail}
		}
	case FieldPhone:
		if value != "" && !IsValidPhone(value) {
			return FieldResult{Message: MessageInvalidPhone}
		}
	}
	return FieldResult{Valid: true}
}

// ValidateForm applies the field rules plus the contact rule. Errors are
// reported in the order name, email, phone, contact.
func ValidateForm(values FormValues) FormResult {
	result := FormResult{Valid: true}
	fail := func(kind FieldKind, message string) {
		if result.Errors == nil {
			result.Errors = make(map[FieldKind]string)
		}
		result.Errors[kind] = message
		if result.FirstError == nil {
			k := kind
			result.FirstError = &k
		}
		result.Valid = false
	}

	if r := ValidateField(FieldName, values.Name); !r.Valid {
		fail(FieldName, r.Message)
	}

	email := strings.TrimSpace(values.Email)
	phone := strings.TrimSpace(values.Phone)
	emailOK := ValidateField(FieldEmail, email)
	phoneOK := ValidateField(FieldPhone, phone)
	if !emailOK.Valid {
		fail(FieldEmail, emailOK.Message)
	}
	if !phoneOK.Valid {
		fail(FieldPhone, phoneOK.Message)
	}
	hasEmail := email != "" && emailOK.Valid
	hasPhone := phone != "" && phoneOK.Valid
	if !hasEmail && !hasPhone {
		fail(FieldContact, MessageMissingContact)
	}

	return result
}

// IsValidEmail reports whether s looks like local@domain.tld.
func IsValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// IsValidPhone reports whether s carries at least ten digits.
func IsValidPhone(s string) bool {
	return len(PhoneDigits(s)) >= minPhoneDigits
}

// PhoneDigits strips everything but ASCII digits.
func PhoneDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < utf8.RuneSelf && unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

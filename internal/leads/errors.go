package leads

import "errors"

var (
	// ErrInvalidName is returned when the name is shorter than two characters
	ErrInvalidName = errors.New("name must be at least 2 characters")

	// ErrMissingContact is returned when neither a valid email nor a valid phone is given
	ErrMissingContact = errors.New("either email or phone is required")

	// ErrInvalidEmail is returned for a present but malformed email
	ErrInvalidEmail = errors.New("email is malformed")

	// ErrInvalidPhone is returned for a present phone with fewer than 10 digits
	ErrInvalidPhone = errors.New("phone must contain at least 10 digits")
)

// ErrorFor maps a failing field to its sentinel error.
func ErrorFor(kind FieldKind) error {
	switch kind {
	case FieldName:
		return ErrInvalidName
	case FieldEmail:
		return ErrInvalidEmail
	case FieldPhone:
		return ErrInvalidPhone
	case FieldContact:
		return ErrMissingContact
	default:
		return nil
	}
}

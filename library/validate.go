package library

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// validator collects field errors through a chainable API and reports them
// as a single VALIDATION error.
type validator struct {
	errs []FieldError
}

func (v *validator) required(field, value string) *validator {
	if strings.TrimSpace(value) == "" {
		v.add(field, field+" cannot be empty")
	}
	return v
}

// plain rejects characters the flat-file layout cannot represent.
func (v *validator) plain(field, value string) *validator {
	if strings.ContainsAny(value, ",\r\n") {
		v.add(field, field+" cannot contain commas or line breaks")
	}
	return v
}

func (v *validator) singleLine(field, value string) *validator {
	if strings.ContainsAny(value, "\r\n") {
		v.add(field, field+" cannot contain line breaks")
	}
	return v
}

func (v *validator) maxLen(field, value string, max int) *validator {
	if utf8.RuneCountInString(value) > max {
		v.add(field, fmt.Sprintf("%s is limited to %d characters", field, max))
	}
	return v
}

func (v *validator) between(field string, value, min, max int) *validator {
	if value < min || value > max {
		v.add(field, fmt.Sprintf("%s must be between %d and %d", field, min, max))
	}
	return v
}

func (v *validator) err() error {
	if len(v.errs) == 0 {
		return nil
	}
	msgs := make([]string, len(v.errs))
	for i, fe := range v.errs {
		msgs[i] = fe.Message
	}
	e := withMessage(ErrValidation, "%s", strings.Join(msgs, "; "))
	e.Fields = v.errs
	return e
}

func (v *validator) add(field, message string) {
	v.errs = append(v.errs, FieldError{Field: field, Message: message})
}

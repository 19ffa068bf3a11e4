package validator

import (
	"strings"
)

type ValidationErrors map[string]string

func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}

func (v ValidationErrors) Add(field, message string) {
	v[field] = message
}

// First returns one human-readable message, for surfaces with a single
// error slot.
func (v ValidationErrors) First() string {
	for _, msg := range v {
		return msg
	}
	return ""
}

func ValidateDisplayName(name string) ValidationErrors {
	errs := make(ValidationErrors)

	name = strings.TrimSpace(name)
	if name == "" {
		errs.Add("display_name", "Display name is required")
	} else if len(name) > 100 {
		errs.Add("display_name", "Display name is too long")
	}

	return errs
}

// ValidateDraft checks an outgoing message before any network effect.
func ValidateDraft(text string, hasAttachment bool) ValidationErrors {
	errs := make(ValidationErrors)

	if strings.TrimSpace(text) == "" && !hasAttachment {
		errs.Add("message", "Message needs text or an attachment")
	}

	return errs
}

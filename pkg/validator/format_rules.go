package validator

import (
	"net/mail"
	"strings"
)

// maxEmailLength is the RFC 5321 path limit.
const maxEmailLength = 254

// ValidEmail accepts a bare addr-spec whose domain has at least two labels.
func ValidEmail(field, value string) Rule {
	return Rule{
		Check: func() bool {
			if value == "" || len(value) > maxEmailLength {
				return false
			}
			addr, err := mail.ParseAddress(value)
			if err != nil || addr.Address != value || addr.Name != "" {
				return false
			}

			local, domain, ok := strings.Cut(value, "@")
			if !ok || local == "" {
				return false
			}
			if !strings.Contains(domain, ".") {
				return false
			}
			for part := range strings.SplitSeq(domain, ".") {
				if part == "" {
					return false
				}
			}
			return true
		},
		Error: ValidationError{
			Field:             field,
			Message:           "must be a valid email address",
			TranslationKey:    "validation.email",
			TranslationValues: map[string]any{"field": field},
		},
	}
}

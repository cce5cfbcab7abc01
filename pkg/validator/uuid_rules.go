package validator

import "github.com/google/uuid"

// ValidUUID fails unless value is a canonical hyphenated UUID.
func ValidUUID(field, value string) Rule {
	return Rule{
		Check: func() bool {
			if len(value) != 36 {
				return false
			}
			_, err := uuid.Parse(value)
			return err == nil
		},
		Error: ValidationError{
			Field:             field,
			Message:           "must be a valid UUID",
			TranslationKey:    "validation.uuid",
			TranslationValues: map[string]any{"field": field},
		},
	}
}

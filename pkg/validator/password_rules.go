package validator

import (
	"fmt"
	"unicode"
	"unicode/utf8"
)

// PasswordPolicy describes the accepted shape of a new password.
type PasswordPolicy struct {
	MinLength        int
	MaxLength        int
	RequireUppercase bool
	RequireLowercase bool
	RequireDigits    bool
}

// DefaultPasswordPolicy is 8-128 characters with upper case, lower case and
// a digit.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:        8,
		MaxLength:        128,
		RequireUppercase: true,
		RequireLowercase: true,
		RequireDigits:    true,
	}
}

// StrongPassword fails when value does not satisfy policy.
func StrongPassword(field, value string, policy PasswordPolicy) Rule {
	return Rule{
		Check: func() bool {
			n := utf8.RuneCountInString(value)
			if n < policy.MinLength || n > policy.MaxLength {
				return false
			}

			var upper, lower, digit bool
			for _, r := range value {
				switch {
				case unicode.IsUpper(r):
					upper = true
				case unicode.IsLower(r):
					lower = true
				case unicode.IsDigit(r):
					digit = true
				}
			}

			if policy.RequireUppercase && !upper {
				return false
			}
			if policy.RequireLowercase && !lower {
				return false
			}
			if policy.RequireDigits && !digit {
				return false
			}
			return true
		},
		Error: ValidationError{
			Field: field,
			Message: fmt.Sprintf("must be %d-%d characters and contain upper case, lower case and a digit",
				policy.MinLength, policy.MaxLength),
			TranslationKey: "validation.password_strength",
			TranslationValues: map[string]any{
				"field":             field,
				"min_length":        policy.MinLength,
				"max_length":        policy.MaxLength,
				"require_uppercase": policy.RequireUppercase,
				"require_lowercase": policy.RequireLowercase,
				"require_digits":    policy.RequireDigits,
			},
		},
	}
}

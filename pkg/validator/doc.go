// Package validator provides small declarative validation rules.
//
// Each exported helper returns a Rule: a Check function paired with a
// translation-friendly ValidationError. Apply runs a set of rules and
// aggregates the failures into ValidationErrors, which implements error.
//
//	err := validator.Apply(
//		validator.ValidEmail("email", in.Email),
//		validator.StrongPassword("password", in.Password, validator.DefaultPasswordPolicy()),
//		validator.InList("role", in.Role, allowedRoles),
//	)
//	if verrs := validator.ExtractValidationErrors(err); verrs != nil {
//		fields := verrs.Map()
//	}
//
// Rules hold no state and are safe for concurrent use. Messages never echo
// the validated value, so a rejected password is never reflected back.
package validator

package logger

import (
	"log/slog"
	"strings"
)

// RedactedValue replaces the value of sensitive attributes.
const RedactedValue = "[REDACTED]"

// DefaultSensitiveKeys are redacted by every logger built with New.
var DefaultSensitiveKeys = []string{
	"password",
	"new_password",
	"code",
	"otp",
	"secret",
	"totp_secret",
	"token",
	"access_token",
	"refresh_token",
	"authorization",
	"pepper",
	"key",
}

func redactor(keys []string, next func([]string, slog.Attr) slog.Attr) func([]string, slog.Attr) slog.Attr {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[strings.ToLower(k)] = struct{}{}
	}
	return func(groups []string, a slog.Attr) slog.Attr {
		if next != nil {
			a = next(groups, a)
		}
		if _, ok := set[strings.ToLower(a.Key)]; ok {
			return slog.String(a.Key, RedactedValue)
		}
		return a
	}
}

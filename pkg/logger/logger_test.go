package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/credkit/pkg/logger"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("json by default", func(t *testing.T) {
		t.Parallel()
		buf := &bytes.Buffer{}
		logger.New(logger.WithOutput(buf)).Info("hello")

		entry := decode(t, buf)
		assert.Equal(t, "INFO", entry["level"])
		assert.Equal(t, "hello", entry["msg"])
	})

	t.Run("text format", func(t *testing.T) {
		t.Parallel()
		buf := &bytes.Buffer{}
		logger.New(logger.WithOutput(buf), logger.WithFormat(logger.FormatText)).Info("hello")
		assert.Contains(t, buf.String(), "level=INFO")
	})

	t.Run("static attributes", func(t *testing.T) {
		t.Parallel()
		buf := &bytes.Buffer{}
		logger.New(logger.WithOutput(buf), logger.WithAttr(slog.String("svc", "test"))).Info("msg")
		assert.Equal(t, "test", decode(t, buf)["svc"])
	})

	t.Run("context extractor", func(t *testing.T) {
		t.Parallel()
		type key struct{}
		buf := &bytes.Buffer{}
		log := logger.New(logger.WithOutput(buf), logger.WithContextValue("request_id", key{}))

		log.InfoContext(context.WithValue(context.Background(), key{}, "req-42"), "msg")
		assert.Equal(t, "req-42", decode(t, buf)["request_id"])
	})

	t.Run("invalid format panics", func(t *testing.T) {
		t.Parallel()
		assert.Panics(t, func() { logger.New(logger.WithFormat("xml")) })
	})
}

func TestRedaction(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log := logger.New(logger.WithOutput(buf), logger.WithSensitiveKeys("ssn"))
	log.Info("login",
		slog.String("password", "hunter2"),
		slog.String("Code", "123456"),
		slog.String("ssn", "000-00-0000"),
		slog.String("email", "a@example.com"),
		logger.Group("totp", slog.String("secret", "JBSWY3DP")),
	)

	out := buf.String()
	for _, leaked := range []string{"hunter2", "123456", "000-00-0000", "JBSWY3DP"} {
		assert.NotContains(t, out, leaked)
	}
	assert.Contains(t, out, "a@example.com")
	assert.Contains(t, out, logger.RedactedValue)
}

func TestWithEnvironment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		env       string
		wantEnv   string
		wantDebug bool
	}{
		{"production", "production", false},
		{"prod", "production", false},
		{"staging", "staging", false},
		{"development", "development", true},
		{"", "development", true},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			t.Parallel()
			buf := &bytes.Buffer{}
			log := logger.New(logger.WithEnvironment(tt.env, "credkit"), logger.WithOutput(buf), logger.WithFormat(logger.FormatJSON))
			log.Debug("dbg")
			log.Info("info")

			assert.Equal(t, tt.wantDebug, bytes.Contains(buf.Bytes(), []byte(`"msg":"dbg"`)))
			lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
			var entry map[string]any
			require.NoError(t, json.Unmarshal(lines[len(lines)-1], &entry))
			assert.Equal(t, "credkit", entry["service"])
			assert.Equal(t, tt.wantEnv, entry["env"])
		})
	}
}

func TestFromConfig(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	opts := logger.FromConfig(logger.Config{Env: "production", Level: "warn"}, "credkit")
	log := logger.New(append(opts, logger.WithOutput(buf))...)
	log.Info("dropped")
	assert.Zero(t, buf.Len())
	log.Warn("kept")
	assert.Equal(t, "kept", decode(t, buf)["msg"])
}

func TestAttrs(t *testing.T) {
	t.Parallel()

	assert.Equal(t, slog.Attr{}, logger.Error(nil))
	assert.Equal(t, "error", logger.Error(errors.New("x")).Key)
	assert.Equal(t, slog.Attr{}, logger.Errors(nil, nil))
	assert.Equal(t, "errors", logger.Errors(nil, errors.New("x")).Key)
	assert.Equal(t, slog.Attr{}, logger.UserID(nil))
	assert.Equal(t, "user_id", logger.UserID("u1").Key)
	assert.Equal(t, slog.Attr{}, logger.Role(""))
	assert.Equal(t, "purpose", logger.Purpose("registration").Key)
	assert.Equal(t, "document_id", logger.DocumentID("d1").Key)
	assert.Equal(t, "component", logger.Component("otp").Key)
}

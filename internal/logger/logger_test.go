package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSanitizeKVs_RedactsSecrets(t *testing.T) {
	out := sanitizeKVs([]interface{}{"session_id", "abc", "api_key", "k-123", "Authorization", "Bearer x"})

	assert.Equal(t, []interface{}{"session_id", "abc", "api_key", "[REDACTED]", "Authorization", "[REDACTED]"}, out)
}

func TestSanitizeKVs_OddLength(t *testing.T) {
	out := sanitizeKVs([]interface{}{"a", 1, "dangling"})

	assert.Equal(t, []interface{}{"a", 1, "dangling"}, out)
}

func TestWith_CarriesFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := &Logger{SugaredLogger: zap.New(core).Sugar()}

	l.With("service", "generation").Warn("style degraded", "token", "t")

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		ctx := entries[0].ContextMap()
		assert.Equal(t, "generation", ctx["service"])
		assert.Equal(t, "[REDACTED]", ctx["token"])
	}
}

package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("info"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("verbose"))
}

func TestMapToZapFields(t *testing.T) {
	assert.Nil(t, mapToZapFields(nil))

	fields := mapToZapFields(map[string]interface{}{
		"certificateNo": "CERT20240101120000123456000001",
		"error":         errors.New("boom"),
	})
	assert.Len(t, fields, 2)

	for _, f := range fields {
		if f.Key == "error" {
			assert.Equal(t, zapcore.ErrorType, f.Type)
		}
	}
}

func TestStructuredLoggerChaining(t *testing.T) {
	log := NewStructured("debug", "json", "stderr")
	assert.NotNil(t, log)

	child := log.WithFields(map[string]interface{}{"component": "test"}).
		WithError(errors.New("x")).
		With(map[string]interface{}{"k": "v"})
	assert.NotNil(t, child)
	child.Debug("debug", nil)

	NewTestLogger(t).Info("visible in test output", map[string]interface{}{"ok": true})
	NewNoOpLogger().Error("discarded", nil)
}

package accounts

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefLoggerJoinsKeyValues(t *testing.T) {
	var buf bytes.Buffer
	logger := defLogger{out: &buf}

	logger.Error("profile create failed", "identity_id", "id-1", "error", assert.AnError)
	logger.Info("ready")
	logger.Warn("odd args", "orphan")

	out := buf.String()
	assert.NotContains(t, out, "%!")
	assert.Contains(t, out, "[ERR] ACCOUNTS profile create failed identity_id=id-1 error="+assert.AnError.Error()+"\n")
	assert.Contains(t, out, "[INF] ACCOUNTS ready\n")
	assert.Contains(t, out, "[WRN] ACCOUNTS odd args orphan\n")
}

func TestNormalizeLoggerDefaults(t *testing.T) {
	_, ok := normalizeLogger(nil).(defLogger)
	assert.True(t, ok)
}

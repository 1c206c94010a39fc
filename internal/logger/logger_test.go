package logger

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDebugSuppressedWhenNotVerbose(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)
	SetVerbose(false)

	Debug("hidden %d", 1)
	assert.Empty(t, buf.String())

	Info("shown %d", 2)
	assert.Contains(t, buf.String(), "[INFO] shown 2")
}

func TestDebugPrintedWhenVerbose(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)
	SetVerbose(true)
	defer SetVerbose(false)

	Debug("visible %s", "yes")
	assert.Contains(t, buf.String(), "[DEBUG] visible yes")
}

func TestWarnAndError(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	Warn("w")
	Error("e")
	out := buf.String()
	assert.Contains(t, out, "[WARN] w")
	assert.Contains(t, out, "[ERROR] e")
}

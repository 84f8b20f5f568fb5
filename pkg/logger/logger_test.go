package logger_test

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warestage/loadsheet-client/pkg/logger"
)

func TestNewWithWriter(t *testing.T) {
	var buf bytes.Buffer
	l := logger.NewWithWriter(&buf)
	l.Printf("drained %d items", 3)
	assert.Contains(t, buf.String(), "drained 3 items")
}

func TestNewLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.txt")
	l, err := logger.NewLogger(path)
	require.NoError(t, err)
	l.Printf("hello")
}

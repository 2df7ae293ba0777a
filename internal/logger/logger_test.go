package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Level = "loud"

	_, err := NewLogger(cfg)
	assert.Error(t, err)
}

func TestNewLoggerWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "workbench.log")
	cfg := DefaultConfig()
	cfg.FilePath = path
	cfg.Console = false

	log, err := NewLogger(cfg)
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())

	WithFileOperation(log, "photo.jpg", "compress").Info("done")

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &record))
	assert.Equal(t, "done", record["message"])
	assert.Equal(t, "photo.jpg", record["file"])
	assert.Equal(t, "compress", record["operation"])
	assert.Contains(t, record, "timestamp")
}

func TestWithSession(t *testing.T) {
	log := logrus.New()
	entry := WithSession(log, "abc")
	assert.Equal(t, "abc", entry.Data["session"])
}

package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	tmpDir := t.TempDir()

	logger, err := New(Config{Level: "debug", Dir: tmpDir, Filename: "test.log", Output: &bytes.Buffer{}})
	assert.NoError(t, err)
	assert.NotNil(t, logger)

	assert.NoError(t, logger.Close())
	assert.NoError(t, logger.Close())
}

func TestLogger_WritesFileAndConsole(t *testing.T) {
	tmpDir := t.TempDir()
	console := &bytes.Buffer{}

	logger, err := New(Config{Level: "info", Dir: tmpDir, Filename: "info.log", Output: console})
	require.NoError(t, err)
	defer logger.Close()

	logger.InfoTag("Pipeline", "run %s finished", "abc")

	content, err := os.ReadFile(filepath.Join(tmpDir, "info.log"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "[Pipeline] run abc finished")
	assert.Contains(t, console.String(), "[Pipeline] run abc finished")
}

func TestLogger_LevelFiltering(t *testing.T) {
	console := &bytes.Buffer{}
	logger, err := New(Config{Level: "warn", Output: console})
	require.NoError(t, err)
	defer logger.Close()

	logger.Info("hidden")
	logger.Debug("hidden too")
	logger.Warn("visible")

	assert.NotContains(t, console.String(), "hidden")
	assert.Contains(t, console.String(), "visible")
}

func TestLogger_StructuredFields(t *testing.T) {
	console := &bytes.Buffer{}
	logger, err := New(Config{Level: "debug", Output: console})
	require.NoError(t, err)
	defer logger.Close()

	logger.InfoFields("stage done", Fields{"stage": "publishing", "ms": 12})

	out := console.String()
	assert.Contains(t, out, "ms=12")
	assert.Contains(t, out, "stage=publishing")
	assert.Less(t, strings.Index(out, "ms=12"), strings.Index(out, "stage=publishing"))
}

func TestLogger_PercentWithoutArgsIsLiteral(t *testing.T) {
	console := &bytes.Buffer{}
	logger, err := New(Config{Level: "debug", Output: console})
	require.NoError(t, err)
	defer logger.Close()

	logger.InfoTag("Compress", "saved 100%")

	assert.Contains(t, console.String(), "[Compress] saved 100%")
	assert.NotContains(t, console.String(), "%!")
}

func TestFormatLog(t *testing.T) {
	assert.Equal(t, "[HTTP] started", FormatLog("HTTP", "started"))
	assert.Equal(t, "[Other] msg", FormatLog("HTTP", "[Other] msg"))
	assert.Equal(t, "plain", FormatLog("", "plain"))
}

func TestFormatTrace(t *testing.T) {
	assert.Equal(t, "[Pipeline] [t-1] stage failed", FormatTrace("Pipeline", "t-1", "stage failed"))
	assert.Equal(t, "[Pipeline] no trace", FormatTrace("Pipeline", "", "no trace"))
}

func TestLogger_Rotation(t *testing.T) {
	tmpDir := t.TempDir()
	logger, err := New(Config{Level: "info", Dir: tmpDir, Filename: "server.log", Output: &bytes.Buffer{}})
	require.NoError(t, err)
	defer logger.Close()

	stale := filepath.Join(tmpDir, "server-2000-01-01.log")
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))

	logger.Info("before rotation")
	logger.checkAndRotate(time.Now().AddDate(0, 0, 1))
	logger.Info("after rotation")

	archived := filepath.Join(tmpDir, "server-"+time.Now().Format("2006-01-02")+".log")
	content, err := os.ReadFile(archived)
	require.NoError(t, err)
	assert.Contains(t, string(content), "before rotation")

	current, err := os.ReadFile(filepath.Join(tmpDir, "server.log"))
	require.NoError(t, err)
	assert.Contains(t, string(current), "after rotation")

	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
}

func TestNilLoggerIsSafe(t *testing.T) {
	var logger *Logger
	logger.InfoTag("HTTP", "nothing happens")
	assert.NoError(t, logger.Close())
}

package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"peerreview/kgraph/internal/config"
)

// syncBuffer is a goroutine-safe WriteSyncer over a bytes.Buffer.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) Sync() error { return nil }

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func testLoggerConfig(format string) config.LoggerConfig {
	return config.LoggerConfig{
		Level:       "debug",
		Format:      format,
		ServiceName: "kgraph-test",
		Colors:      config.ColorConfig{Info: "green", Warn: "yellow"},
	}
}

func TestInitialize_JSON(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	out := &syncBuffer{}
	Initialize(testLoggerConfig("json"), out)

	GetLogger().Named("loader").Info("loaded graphs", zap.Int("count", 3))

	line := strings.TrimSpace(out.String())
	require.NotEmpty(t, line)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "kgraph-test.loader", entry["logger"])
	assert.Equal(t, "loaded graphs", entry["msg"])
	assert.EqualValues(t, 3, entry["count"])
}

func TestInitialize_ConsoleColors(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	out := &syncBuffer{}
	Initialize(testLoggerConfig("console"), out)

	GetLogger().Warn("missing source file")

	got := out.String()
	assert.Contains(t, got, colorYellow+"WARN"+colorReset)
	assert.Contains(t, got, "kgraph-test.")
	assert.Contains(t, got, "missing source file")
}

func TestInitialize_OnlyOnce(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	first := &syncBuffer{}
	second := &syncBuffer{}
	Initialize(testLoggerConfig("json"), first)
	Initialize(testLoggerConfig("json"), second)

	GetLogger().Info("hello")
	assert.Contains(t, first.String(), "hello")
	assert.Empty(t, second.String())
}

func TestInitialize_LevelFiltering(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	cfg := testLoggerConfig("json")
	cfg.Level = "warn"
	out := &syncBuffer{}
	Initialize(cfg, out)

	GetLogger().Info("dropped")
	GetLogger().Warn("kept")

	assert.NotContains(t, out.String(), "dropped")
	assert.Contains(t, out.String(), "kept")
}

func TestInitialize_FileOutput(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	logFile := filepath.Join(t.TempDir(), "kgraph.log")
	cfg := testLoggerConfig("console")
	cfg.LogFile = logFile
	cfg.MaxSize = 1

	Initialize(cfg, zapcore.AddSync(&bytes.Buffer{}))
	GetLogger().Info("to file", zap.String("source", "gpt"))
	Sync()

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"source":"gpt"`)
}

func TestGetLogger_Fallback(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	l := GetLogger()
	require.NotNil(t, l)
	assert.Nil(t, globalLogger.Load(), "fallback must not be stored globally")
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
	l := zap.NewExample()
	assert.Same(t, l, OrNop(l))
}

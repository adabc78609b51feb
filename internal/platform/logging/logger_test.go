package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readLog(t *testing.T, dir, file string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, file))
	require.NoError(t, err)
	return string(data)
}

func TestNew(t *testing.T) {
	tmpDir := t.TempDir()

	logger, err := New(Config{Level: "debug", Dir: tmpDir, Filename: "test.log"})
	require.NoError(t, err)
	assert.NotNil(t, logger.Slog())
	assert.NoError(t, logger.Close())
	assert.NoError(t, logger.Close(), "close must be idempotent")
}

func TestLogger_InfoTagFormatsMessage(t *testing.T) {
	tmpDir := t.TempDir()
	logger, err := New(Config{Level: "info", Dir: tmpDir, Filename: "tag.log"})
	require.NoError(t, err)

	logger.InfoTag(TagVoice, "阶段切换 %s -> %s", "idle", "listening")
	require.NoError(t, logger.Close())

	content := readLog(t, tmpDir, "tag.log")
	assert.Contains(t, content, "[语音] 阶段切换 idle -> listening")
}

func TestLogger_LevelFilter(t *testing.T) {
	tmpDir := t.TempDir()
	logger, err := New(Config{Level: "warn", Dir: tmpDir, Filename: "level.log"})
	require.NoError(t, err)

	logger.Info("hidden info")
	logger.Debug("hidden debug")
	logger.Warn("visible warn")
	logger.Error("visible error")
	require.NoError(t, logger.Close())

	content := readLog(t, tmpDir, "level.log")
	assert.NotContains(t, content, "hidden")
	assert.Contains(t, content, "visible warn")
	assert.Contains(t, content, "visible error")
}

func TestLogger_StructuredFields(t *testing.T) {
	tmpDir := t.TempDir()
	logger, err := New(Config{Level: "info", Dir: tmpDir, Filename: "fields.log"})
	require.NoError(t, err)

	logger.Info("voice command", map[string]interface{}{"source": "local", "confidence": 0.9})
	require.NoError(t, logger.Close())

	content := readLog(t, tmpDir, "fields.log")
	assert.Contains(t, content, `"source":"local"`)
	assert.Contains(t, content, `"confidence":0.9`)
}

func TestFormatLog(t *testing.T) {
	tests := []struct {
		tag, msg, want string
	}{
		{"引导", "服务已启动", "[引导] 服务已启动"},
		{"", "plain", "plain"},
		{"语音", "[已有] 标签", "[已有] 标签"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatLog(tt.tag, tt.msg))
	}
}

func TestLogger_RotateAndClean(t *testing.T) {
	tmpDir := t.TempDir()
	logger, err := New(Config{Level: "info", Dir: tmpDir, Filename: "server.log"})
	require.NoError(t, err)
	defer logger.Close()

	stale := time.Now().AddDate(0, 0, -(LogRetentionDays + 2)).Format("2006-01-02")
	stalePath := filepath.Join(tmpDir, "server-"+stale+".log")
	require.NoError(t, os.WriteFile(stalePath, []byte("old"), 0o644))

	yesterday := time.Now().AddDate(0, 0, -1).Format("2006-01-02")
	logger.mu.Lock()
	logger.currentDate = yesterday
	logger.mu.Unlock()

	logger.checkAndRotate()

	_, err = os.Stat(filepath.Join(tmpDir, "server-"+yesterday+".log"))
	assert.NoError(t, err, "current file should be archived under yesterday's date")
	_, err = os.Stat(stalePath)
	assert.True(t, os.IsNotExist(err), "files past retention should be removed")

	logger.Info("after rotation")
	assert.True(t, strings.Contains(readLog(t, tmpDir, "server.log"), "after rotation"))
}

func TestNewNopDiscards(t *testing.T) {
	logger := NewNop()
	logger.ErrorTag(TagVoice, "nothing %d", 1)
	assert.NoError(t, logger.Close())
}

func TestLogger_WithTag(t *testing.T) {
	tmpDir := t.TempDir()
	logger, err := New(Config{Level: "debug", Dir: tmpDir, Filename: "tagged.log"})
	require.NoError(t, err)

	tagged := logger.WithTag(TagClassifier)
	tagged.Warn("远程分类失败: %v", "timeout")
	tagged.Debug("请求 %d", 3)
	require.NoError(t, logger.Close())

	content := readLog(t, tmpDir, "tagged.log")
	assert.Contains(t, content, "[分类] 远程分类失败: timeout")
	assert.Contains(t, content, "[分类] 请求 3")
}

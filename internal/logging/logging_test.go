package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_WritesFile(t *testing.T) {
	dir := t.TempDir()
	logger, err := New(dir, "debug", "json")
	require.NoError(t, err)

	logger.Component("queue").WithField("queue", "sms_notifications").Info("published")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(filepath.Join(dir, "alert-router.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"queue"`)
	assert.Contains(t, string(data), `"msg":"published"`)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
}

func TestNew_RejectsBadSettings(t *testing.T) {
	_, err := New("", "loud", "text")
	assert.Error(t, err)

	_, err = New("", "info", "xml")
	assert.Error(t, err)
}

func TestNew_StdoutOnly(t *testing.T) {
	logger, err := New("", "info", "")
	require.NoError(t, err)
	assert.NoError(t, logger.Close())
}

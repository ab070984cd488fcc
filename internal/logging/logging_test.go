package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/dunamismax/iconforge/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesJSONWithComponent(t *testing.T) {
	var buf bytes.Buffer
	log := newWithOutput(config.LogConfig{Level: "debug", Format: "json"}, "api", &buf)

	log.WithField("token", "abc").Debug("staged upload")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "api", line["component"])
	assert.Equal(t, "abc", line["token"])
	assert.Equal(t, "staged upload", line["msg"])
}

func TestNewFallsBackToInfo(t *testing.T) {
	log := newWithOutput(config.LogConfig{Level: "loud"}, "worker", &bytes.Buffer{})
	assert.Equal(t, logrus.InfoLevel, log.Logger.GetLevel())
}

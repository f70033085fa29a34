package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeu5/royale-rl/config"
)

func TestLevelFallback(t *testing.T) {
	log := NewWithOutput(config.Logging{Level: "chatty"}, &bytes.Buffer{})
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())

	log = NewWithOutput(config.Logging{Level: "debug"}, &bytes.Buffer{})
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
}

func TestJSONFormatterCarriesComponent(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithOutput(config.Logging{Level: "info", Format: "json"}, buf)
	Component(log, "battle").Info("started")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "battle", line["component"])
	assert.Equal(t, "started", line["msg"])
}

package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitLoggerIsRepeatable(t *testing.T) {
	logger, level := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = logger
		zerolog.SetGlobalLevel(level)
	})

	var buf bytes.Buffer
	config := &logConfig{Level: "info", LogFormat: "json", WithCaller: true, Out: &buf}
	require.NoError(t, InitLogger(config))
	require.NoError(t, InitLogger(config))

	log.Info().Msg("hello")
	assert.Equal(t, 1, strings.Count(buf.String(), `"caller"`), buf.String())
	assert.Contains(t, buf.String(), `"message":"hello"`)

	buf.Reset()
	config.WithCaller = false
	require.NoError(t, InitLogger(config))
	log.Info().Msg("plain")
	assert.NotContains(t, buf.String(), `"caller"`)

	buf.Reset()
	config.Level = "warn"
	require.NoError(t, InitLogger(config))
	log.Info().Msg("dropped")
	assert.Empty(t, buf.String())
}

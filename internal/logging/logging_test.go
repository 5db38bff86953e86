package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, "info", "json")
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("Server ready", "url", "http://localhost:4000/graphql")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "Server ready", entry["msg"])
	assert.Equal(t, "http://localhost:4000/graphql", entry["url"])
	assert.Equal(t, "info", entry["level"])
}

func TestNew_Logfmt(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, "debug", "logfmt")
	require.NoError(t, err)

	logger.Debug("subscribed", "topic", "NEW_POST")
	assert.Contains(t, buf.String(), "topic=NEW_POST")
	assert.Contains(t, buf.String(), "level=debug")
}

func TestNew_Invalid(t *testing.T) {
	_, err := New(&bytes.Buffer{}, "loud", "text")
	assert.Error(t, err)

	_, err = New(&bytes.Buffer{}, "info", "xml")
	assert.ErrorContains(t, err, "xml")
}

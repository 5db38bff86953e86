package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSeed(t *testing.T) {
	now := time.Now()
	channels := DefaultSeed(now)

	require.Len(t, channels, 2)
	assert.Equal(t, "general", channels[0].Name)
	require.Len(t, channels[0].Posts, 1)
	assert.Equal(t, "hello world", channels[0].Posts[0].Message)

	assert.Equal(t, "cats", channels[1].Name)
	require.Len(t, channels[1].Posts, 2)
	assert.Equal(t, "meow world", channels[1].Posts[0].Message)
	assert.Equal(t, "hiss", channels[1].Posts[1].Message)
	assert.Equal(t, "cats", channels[1].Posts[1].Channel)
	assert.Equal(t, now, channels[1].Posts[1].Date)
}

func TestLoadSeed(t *testing.T) {
	now := time.Now()

	t.Run("Empty path uses default", func(t *testing.T) {
		channels, err := LoadSeed("", now)
		require.NoError(t, err)
		assert.Equal(t, DefaultSeed(now), channels)
	})

	t.Run("From file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "seed.yaml")
		data := "channels:\n  - name: dogs\n    posts: [woof]\n  - name: empty\n"
		require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

		channels, err := LoadSeed(path, now)
		require.NoError(t, err)
		require.Len(t, channels, 2)
		assert.Equal(t, "dogs", channels[0].Name)
		require.Len(t, channels[0].Posts, 1)
		assert.Equal(t, "woof", channels[0].Posts[0].Message)
		assert.NotNil(t, channels[1].Posts)
		assert.Empty(t, channels[1].Posts)
	})

	t.Run("Missing file", func(t *testing.T) {
		_, err := LoadSeed(filepath.Join(t.TempDir(), "nope.yaml"), now)
		assert.Error(t, err)
	})
}

func TestParseSeed_Invalid(t *testing.T) {
	_, err := ParseSeed([]byte("channels:\n  - posts: [x]\n"), time.Now())
	assert.ErrorContains(t, err, "without name")

	_, err = ParseSeed([]byte("channels:\n  - name: a\n  - name: a\n"), time.Now())
	assert.ErrorContains(t, err, "duplicated")

	_, err = ParseSeed([]byte("channels: {"), time.Now())
	assert.Error(t, err)
}

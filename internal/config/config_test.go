package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-talk/pkg/audioconv"
	"github.com/teslashibe/go-talk/pkg/playback"
	"github.com/teslashibe/go-talk/pkg/realtime"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, realtime.DefaultURL, cfg.OpenAI.URL)
	assert.Equal(t, 2*time.Second, cfg.OpenAI.ConvertTimeout)
	assert.Equal(t, 0, cfg.OpenAI.MaxQueueChunks)
	assert.Equal(t, ConverterLinear, cfg.Audio.Converter)
	assert.Equal(t, playback.BackendDiscord, cfg.Playback.Backend)
	assert.Equal(t, "8080", cfg.Web.Port)
}

func TestLoad_Environment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("DISCORD_BOT_TOKEN", "bot-env")
	t.Setenv("DISCORD_CLIENT_ID", "123")
	t.Setenv("OPENAI_CONVERT_TIMEOUT", "500ms")
	t.Setenv("PLAYBACK_BACKEND", "rtp")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "sk-env", cfg.OpenAI.APIKey)
	assert.Equal(t, "bot-env", cfg.Discord.BotToken)
	assert.Equal(t, "123", cfg.Discord.ClientID)
	assert.Equal(t, 500*time.Millisecond, cfg.OpenAI.ConvertTimeout)
	assert.Equal(t, playback.BackendRTP, cfg.Playback.Backend)
	assert.NoError(t, cfg.Require(KeyOpenAIAPIKey, KeyDiscordToken, KeyDiscordClientID))
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "talk.yaml")
	content := `
log_level: debug
openai:
  model: custom-model
  max_queue_chunks: 64
audio:
  converter: ffmpeg
playback:
  backend: exec
  command: ["cat"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "custom-model", cfg.OpenAI.Model)
	assert.Equal(t, 64, cfg.OpenAI.MaxQueueChunks)
	assert.Equal(t, []string{"cat"}, cfg.Playback.Command)

	_, isFFmpeg := cfg.Converter(nil).(*audioconv.FFmpeg)
	assert.True(t, isFFmpeg)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("AUDIO_CONVERTER", "sox")

	_, err := Load("")
	assert.ErrorContains(t, err, "sox")
}

func TestRequire(t *testing.T) {
	cfg := &Config{}
	cfg.OpenAI.APIKey = "k"

	err := cfg.Require(KeyOpenAIAPIKey, KeyDiscordToken, KeyDiscordClientID)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "DISCORD_BOT_TOKEN"))
	assert.True(t, strings.Contains(err.Error(), "DISCORD_CLIENT_ID"))
	assert.False(t, strings.Contains(err.Error(), "OPENAI_API_KEY"))
}

func TestRealtimeOptions(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("OPENAI_API_KEY", "sk")

	cfg, err := Load("")
	require.NoError(t, err)

	stream := playback.NewStream(playback.NewMockPlayer())
	s, err := realtime.NewSession(stream, cfg.RealtimeOptions(cfg.Converter(nil))...)
	require.NoError(t, err)
	assert.Equal(t, realtime.StateDisconnected, s.State())
}

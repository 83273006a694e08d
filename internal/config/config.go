// Package config loads go-talk process configuration from the environment
// and an optional config file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/teslashibe/go-talk/pkg/audioconv"
	"github.com/teslashibe/go-talk/pkg/playback"
	"github.com/teslashibe/go-talk/pkg/realtime"
)

// Keys whose presence can be required. Each maps to the upper-case
// environment variable with dots replaced by underscores.
const (
	KeyOpenAIAPIKey    = "openai.api_key"
	KeyDiscordToken    = "discord.bot_token"
	KeyDiscordClientID = "discord.client_id"
)

// Converter names.
const (
	ConverterLinear = "linear"
	ConverterFFmpeg = "ffmpeg"
)

// Config is the complete process configuration.
type Config struct {
	LogLevel string          `mapstructure:"log_level"`
	OpenAI   OpenAIConfig    `mapstructure:"openai"`
	Discord  DiscordConfig   `mapstructure:"discord"`
	Audio    AudioConfig     `mapstructure:"audio"`
	Playback playback.Config `mapstructure:"playback"`
	Web      WebConfig       `mapstructure:"web"`
}

// OpenAIConfig configures the realtime session.
type OpenAIConfig struct {
	APIKey         string        `mapstructure:"api_key"`
	URL            string        `mapstructure:"url"`
	Model          string        `mapstructure:"model"`
	ConvertTimeout time.Duration `mapstructure:"convert_timeout"`
	MaxQueueChunks int           `mapstructure:"max_queue_chunks"`
	PingPeriod     time.Duration `mapstructure:"ping_period"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
}

// DiscordConfig configures the bot.
type DiscordConfig struct {
	BotToken    string `mapstructure:"bot_token"`
	ClientID    string `mapstructure:"client_id"`
	GuildID     string `mapstructure:"guild_id"`
	SpeakerOnly bool   `mapstructure:"speaker_only"`
}

// AudioConfig selects the format converter.
type AudioConfig struct {
	Converter  string `mapstructure:"converter"`
	FFmpegPath string `mapstructure:"ffmpeg_path"`
}

// WebConfig configures the status server.
type WebConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    string `mapstructure:"port"`
}

func setDefaults(v *viper.Viper) {
	pb := playback.DefaultConfig()

	v.SetDefault("log_level", "info")
	v.SetDefault(KeyOpenAIAPIKey, "")
	v.SetDefault("openai.url", realtime.DefaultURL)
	v.SetDefault("openai.model", realtime.DefaultModel)
	v.SetDefault("openai.convert_timeout", realtime.DefaultConvertTimeout)
	v.SetDefault("openai.max_queue_chunks", 0)
	v.SetDefault("openai.ping_period", realtime.DefaultPingPeriod)
	v.SetDefault("openai.read_timeout", realtime.DefaultReadTimeout)
	v.SetDefault(KeyDiscordToken, "")
	v.SetDefault(KeyDiscordClientID, "")
	v.SetDefault("discord.guild_id", "")
	v.SetDefault("discord.speaker_only", false)
	v.SetDefault("audio.converter", ConverterLinear)
	v.SetDefault("audio.ffmpeg_path", audioconv.DefaultFFmpegPath)
	v.SetDefault("playback.backend", string(pb.Backend))
	v.SetDefault("playback.command", []string{})
	v.SetDefault("playback.rtp_addr", pb.RTPAddr)
	v.SetDefault("web.enabled", true)
	v.SetDefault("web.port", "8080")
}

// Load reads configuration. Values come from defaults, then the config
// file, then environment variables (OPENAI_API_KEY, DISCORD_BOT_TOKEN, ...).
// An empty path searches ./talk.* and $HOME/.config/talk/talk.*; a missing
// file is not an error unless path was given.
func Load(path string) (*Config, error) {
	return load(viper.New(), path)
}

func load(v *viper.Viper, path string) (*Config, error) {
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("talk")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/talk")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that are set.
func (c *Config) Validate() error {
	switch c.Audio.Converter {
	case ConverterLinear, ConverterFFmpeg:
	default:
		return fmt.Errorf("unsupported audio converter: %q", c.Audio.Converter)
	}
	if c.OpenAI.MaxQueueChunks < 0 {
		return fmt.Errorf("openai.max_queue_chunks must not be negative")
	}
	if c.OpenAI.ConvertTimeout <= 0 {
		return fmt.Errorf("openai.convert_timeout must be positive")
	}
	if err := c.Playback.Validate(); err != nil {
		return fmt.Errorf("playback: %w", err)
	}
	return nil
}

// Require returns an error naming every key that is empty.
func (c *Config) Require(keys ...string) error {
	var missing []string
	for _, key := range keys {
		if c.value(key) == "" {
			missing = append(missing, envName(key))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (c *Config) value(key string) string {
	switch key {
	case KeyOpenAIAPIKey:
		return c.OpenAI.APIKey
	case KeyDiscordToken:
		return c.Discord.BotToken
	case KeyDiscordClientID:
		return c.Discord.ClientID
	default:
		return ""
	}
}

func envName(key string) string {
	return strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// Converter builds the configured format converter.
func (c *Config) Converter(logger *slog.Logger) audioconv.Converter {
	if c.Audio.Converter == ConverterFFmpeg {
		return audioconv.NewFFmpeg(
			audioconv.WithFFmpegPath(c.Audio.FFmpegPath),
			audioconv.WithFFmpegLogger(logger),
		)
	}
	return audioconv.NewLinear()
}

// RealtimeOptions returns session options for the OpenAI settings.
func (c *Config) RealtimeOptions(conv audioconv.Converter) []realtime.Option {
	return []realtime.Option{
		realtime.WithAPIKey(c.OpenAI.APIKey),
		realtime.WithURL(c.OpenAI.URL),
		realtime.WithModel(c.OpenAI.Model),
		realtime.WithConvertTimeout(c.OpenAI.ConvertTimeout),
		realtime.WithMaxQueueChunks(c.OpenAI.MaxQueueChunks),
		realtime.WithPingPeriod(c.OpenAI.PingPeriod),
		realtime.WithReadTimeout(c.OpenAI.ReadTimeout),
		realtime.WithConverter(conv),
	}
}

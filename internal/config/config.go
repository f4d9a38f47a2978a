// Package config loads SmartLife configuration from ~/.smartlife/config.yaml,
// a local .env file and SMARTLIFE_* environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/rcliao/smartlife/internal/health"
)

// Config holds all application configuration. It is built once by the CLI
// and handed to each component constructor.
type Config struct {
	Data          DataConfig          `mapstructure:"data" yaml:"data"`
	Logging       LoggingConfig       `mapstructure:"logging" yaml:"logging"`
	Chat          ChatConfig          `mapstructure:"chat" yaml:"chat"`
	Speech        SpeechConfig        `mapstructure:"speech" yaml:"speech"`
	Transcription TranscriptionConfig `mapstructure:"transcription" yaml:"transcription"`
	Voice         VoiceConfig         `mapstructure:"voice" yaml:"voice"`
	Server        ServerConfig        `mapstructure:"server" yaml:"server"`
	Profile       ProfileConfig       `mapstructure:"profile" yaml:"profile"`

	path string
}

// DataConfig locates the local databases.
type DataConfig struct {
	TasksDB  string `mapstructure:"tasks_db" yaml:"tasks_db"`
	MoodsDB  string `mapstructure:"moods_db" yaml:"moods_db"`
	HealthDB string `mapstructure:"health_db" yaml:"health_db"`
	// Catalog overrides the built-in mood catalog when set.
	Catalog string `mapstructure:"catalog" yaml:"catalog"`
	// Recipes overrides the built-in recipe list when set.
	Recipes string `mapstructure:"recipes" yaml:"recipes"`
}

type LoggingConfig struct {
	Level   string `mapstructure:"level" yaml:"level"`
	Console bool   `mapstructure:"console" yaml:"console"`
	File    string `mapstructure:"file" yaml:"file"`
}

// ChatConfig configures the remote chat completion provider.
type ChatConfig struct {
	Provider     string        `mapstructure:"provider" yaml:"provider"` // openai or ollama
	Endpoint     string        `mapstructure:"endpoint" yaml:"endpoint"`
	Model        string        `mapstructure:"model" yaml:"model"`
	APIKey       string        `mapstructure:"api_key" yaml:"api_key"`
	SystemPrompt string        `mapstructure:"system_prompt" yaml:"system_prompt"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// SpeechConfig configures speech synthesis.
type SpeechConfig struct {
	Provider   string        `mapstructure:"provider" yaml:"provider"` // elevenlabs or openai
	Endpoint   string        `mapstructure:"endpoint" yaml:"endpoint"`
	Voice      string        `mapstructure:"voice" yaml:"voice"`
	Model      string        `mapstructure:"model" yaml:"model"`
	Stability  float64       `mapstructure:"stability" yaml:"stability"`
	Similarity float64       `mapstructure:"similarity" yaml:"similarity"`
	APIKey     string        `mapstructure:"api_key" yaml:"api_key"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// TranscriptionConfig configures the speech-to-text API.
type TranscriptionConfig struct {
	Endpoint string        `mapstructure:"endpoint" yaml:"endpoint"`
	Model    string        `mapstructure:"model" yaml:"model"`
	APIKey   string        `mapstructure:"api_key" yaml:"api_key"`
	Language string        `mapstructure:"language" yaml:"language"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// VoiceConfig configures the conversation loop and the local audio commands.
type VoiceConfig struct {
	Continuous         bool     `mapstructure:"continuous" yaml:"continuous"`
	TerminationPhrases []string `mapstructure:"termination_phrases" yaml:"termination_phrases"`
	Greeting           string   `mapstructure:"greeting" yaml:"greeting"`
	// Microphone is granted, denied or prompt.
	Microphone string `mapstructure:"microphone" yaml:"microphone"`
	// RecordCommand writes WAV to stdout. {seconds} is replaced with
	// CaptureSeconds.
	RecordCommand  []string `mapstructure:"record_command" yaml:"record_command"`
	PlayCommand    []string `mapstructure:"play_command" yaml:"play_command"`
	ProbeCommand   []string `mapstructure:"probe_command" yaml:"probe_command"`
	CaptureSeconds int      `mapstructure:"capture_seconds" yaml:"capture_seconds"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// ProfileConfig holds the user profile used by the health metrics.
type ProfileConfig struct {
	Name     string  `mapstructure:"name" yaml:"name"`
	Gender   string  `mapstructure:"gender" yaml:"gender"`
	HeightCm float64 `mapstructure:"height_cm" yaml:"height_cm"`
	WeightKg float64 `mapstructure:"weight_kg" yaml:"weight_kg"`
	Age      int     `mapstructure:"age" yaml:"age"`
}

// Default returns a Config with default values.
func Default() *Config {
	dir := DataDir()
	profile := health.DefaultProfile()
	return &Config{
		Data: DataConfig{
			TasksDB:  filepath.Join(dir, "tasks.db"),
			MoodsDB:  filepath.Join(dir, "moods.db"),
			HealthDB: filepath.Join(dir, "health.db"),
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
		},
		Chat: ChatConfig{
			Provider:     "openai",
			Endpoint:     "https://api.openai.com/v1",
			Model:        "gpt-4",
			SystemPrompt: "Respond in under 40 words.",
			Timeout:      30 * time.Second,
		},
		Speech: SpeechConfig{
			Provider:   "elevenlabs",
			Endpoint:   "https://api.elevenlabs.io",
			Voice:      "21m00Tcm4TlvDq8ikWAM",
			Model:      "eleven_monolingual_v1",
			Stability:  0.5,
			Similarity: 0.5,
			Timeout:    30 * time.Second,
		},
		Transcription: TranscriptionConfig{
			Endpoint: "https://api.openai.com/v1",
			Model:    "whisper-1",
			Language: "en",
			Timeout:  30 * time.Second,
		},
		Voice: VoiceConfig{
			Continuous:         true,
			TerminationPhrases: []string{"thank you", "goodbye"},
			Greeting:           "Hello! I'm your assistant. Tap the mic to start.",
			Microphone:         "prompt",
			RecordCommand:      []string{"rec", "-q", "-c", "1", "-r", "16000", "-b", "16", "-t", "wav", "-", "trim", "0", "{seconds}"},
			PlayCommand:        []string{"ffplay", "-nodisp", "-autoexit", "-loglevel", "quiet"},
			ProbeCommand:       []string{"ffprobe", "-v", "error", "-show_entries", "format=duration", "-of", "csv=p=0"},
			CaptureSeconds:     6,
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8080",
		},
		Profile: ProfileConfig{
			Name:     profile.Name,
			Gender:   string(profile.Gender),
			HeightCm: profile.HeightCm,
			WeightKg: profile.WeightKg,
			Age:      profile.Age,
		},
	}
}

// DataDir returns the SmartLife data directory (~/.smartlife).
func DataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".smartlife")
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(DataDir(), "config.yaml")
}

// LoadFromPath reads configuration from path, creating it with defaults if
// missing, then applies .env and SMARTLIFE_* environment overrides.
func LoadFromPath(path string) (*Config, error) {
	path = expandPath(path)

	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := Default().SaveToPath(path); err != nil {
			return nil, fmt.Errorf("write default config: %w", err)
		}
	}

	defaults, err := yaml.Marshal(Default())
	if err != nil {
		return nil, fmt.Errorf("marshal defaults: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return nil, fmt.Errorf("read defaults: %w", err)
	}

	// Example: SMARTLIFE_CHAT_API_KEY
	v.SetEnvPrefix("SMARTLIFE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Keys missing from the file keep their defaults; lists are replaced.
	v.SetConfigFile(path)
	if err := v.MergeInConfig(); err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.path = path

	cfg.Data.TasksDB = expandPath(cfg.Data.TasksDB)
	cfg.Data.MoodsDB = expandPath(cfg.Data.MoodsDB)
	cfg.Data.HealthDB = expandPath(cfg.Data.HealthDB)
	cfg.Data.Catalog = expandPath(cfg.Data.Catalog)
	cfg.Data.Recipes = expandPath(cfg.Data.Recipes)
	cfg.Logging.File = expandPath(cfg.Logging.File)
	cfg.applyKeyFallbacks()

	return &cfg, nil
}

// applyKeyFallbacks fills API keys from the provider's conventional
// environment variable when the config leaves them empty.
func (c *Config) applyKeyFallbacks() {
	openai := os.Getenv("OPENAI_API_KEY")
	if c.Chat.APIKey == "" && c.Chat.Provider == "openai" {
		c.Chat.APIKey = openai
	}
	if c.Transcription.APIKey == "" {
		c.Transcription.APIKey = openai
	}
	if c.Speech.APIKey == "" {
		switch c.Speech.Provider {
		case "elevenlabs":
			c.Speech.APIKey = os.Getenv("ELEVENLABS_API_KEY")
		case "openai":
			c.Speech.APIKey = openai
		}
	}
}

// Path returns the file the config was loaded from, if any.
func (c *Config) Path() string {
	return c.path
}

// SaveToPath writes the configuration to path.
func (c *Config) SaveToPath(path string) error {
	path = expandPath(path)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return writeConfigFile(path, c)
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Data.TasksDB == "" || c.Data.MoodsDB == "" || c.Data.HealthDB == "" {
		return fmt.Errorf("data.tasks_db, data.moods_db and data.health_db must be set")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level '%s', must be one of: debug, info, warn, error", c.Logging.Level)
	}

	switch c.Chat.Provider {
	case "openai", "ollama":
	default:
		return fmt.Errorf("invalid chat provider '%s', must be 'openai' or 'ollama'", c.Chat.Provider)
	}

	switch c.Speech.Provider {
	case "elevenlabs", "openai":
	default:
		return fmt.Errorf("invalid speech provider '%s', must be 'elevenlabs' or 'openai'", c.Speech.Provider)
	}

	switch c.Voice.Microphone {
	case "granted", "denied", "prompt":
	default:
		return fmt.Errorf("invalid voice.microphone '%s', must be one of: granted, denied, prompt", c.Voice.Microphone)
	}

	if c.Chat.Timeout < 0 || c.Speech.Timeout < 0 || c.Transcription.Timeout < 0 {
		return fmt.Errorf("timeouts cannot be negative")
	}
	if c.Voice.CaptureSeconds < 0 {
		return fmt.Errorf("voice.capture_seconds cannot be negative")
	}
	if c.Speech.Stability < 0 || c.Speech.Stability > 1 || c.Speech.Similarity < 0 || c.Speech.Similarity > 1 {
		return fmt.Errorf("speech.stability and speech.similarity must be between 0 and 1")
	}

	switch strings.ToUpper(c.Profile.Gender) {
	case "MALE", "FEMALE":
	default:
		return fmt.Errorf("invalid profile.gender '%s', must be MALE or FEMALE", c.Profile.Gender)
	}

	return nil
}

func writeConfigFile(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	AppName               = "grannypad"
	DefaultConfigFileName = "config.toml"
	DefaultLogName        = "grannypad.log"
	DefaultModel          = "gemini-2.5-flash"
	DefaultTimeoutSeconds = 30
	DefaultRemovalDelayMS = 500
)

// APIKeyEnvVars are checked in order for the model credential.
var APIKeyEnvVars = []string{"GEMINI_API_KEY", "API_KEY"}

var ErrMissingAPIKey = errors.New("API key not set: export GEMINI_API_KEY (or API_KEY)")

type Keymap struct {
	Quit     string `toml:"quit"`
	Compose  string `toml:"compose"`
	Voice    string `toml:"voice"`
	Upload   string `toml:"upload"`
	Submit   string `toml:"submit"`
	Up       string `toml:"up"`
	Down     string `toml:"down"`
	Toggle   string `toml:"toggle"`
	Delete   string `toml:"delete"`
	Move     string `toml:"move"`
	SortView string `toml:"sort_view"`
	Dismiss  string `toml:"dismiss"`
	Confirm  string `toml:"confirm"`
	Cancel   string `toml:"cancel"`
}

// Voice configures the dictation recorder. Command is run as-is and must
// print transcript text on stdout until interrupted.
type Voice struct {
	Command []string `toml:"command"`
}

// Speech configures read-aloud commentary.
type Speech struct {
	Enabled bool     `toml:"enabled"`
	Command string   `toml:"command"`
	Voices  []string `toml:"voices"`
	Rate    float64  `toml:"rate"`
	Pitch   float64  `toml:"pitch"`
}

type Config struct {
	DBPath         string `toml:"db_path"`
	Model          string `toml:"model"`
	Endpoint       string `toml:"endpoint"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	RemovalDelayMS int    `toml:"removal_delay_ms"`
	LogPath        string `toml:"log_path"`
	LogLevel       string `toml:"log_level"`
	Keys           Keymap `toml:"keys"`
	Voice          Voice  `toml:"voice"`
	Speech         Speech `toml:"speech"`

	APIKey string `toml:"-"`
}

func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c Config) RemovalDelay() time.Duration {
	return time.Duration(c.RemovalDelayMS) * time.Millisecond
}

// ResolveConfigPath returns $XDG_CONFIG_HOME/grannypad/config.toml, falling
// back to ~/.config.
func ResolveConfigPath() string {
	return filepath.Join(configDir(), DefaultConfigFileName)
}

func configDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return AppName
	}
	return filepath.Join(home, ".config", AppName)
}

func defaultLogPath() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName, DefaultLogName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultLogName
	}
	return filepath.Join(home, ".local", "state", AppName, DefaultLogName)
}

// LoadOrCreate reads the config at path, writing the defaults first when the
// file does not exist yet.
func LoadOrCreate(path string) (Config, error) {
	cfg := defaultConfig()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := write(path, cfg); err != nil {
			return cfg, err
		}
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.normalize()
	return cfg, nil
}

// LoadAPIKey fills APIKey from the environment.
func (c *Config) LoadAPIKey() error {
	for _, name := range APIKeyEnvVars {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			c.APIKey = v
			return nil
		}
	}
	return ErrMissingAPIKey
}

func (c *Config) normalize() {
	def := defaultConfig()
	c.Model = strings.TrimSpace(c.Model)
	if c.Model == "" {
		c.Model = def.Model
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = def.TimeoutSeconds
	}
	if c.RemovalDelayMS < 0 {
		c.RemovalDelayMS = def.RemovalDelayMS
	}
	if c.LogPath == "" {
		c.LogPath = def.LogPath
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.Speech.Command == "" {
		c.Speech.Command = def.Speech.Command
	}
	if c.Speech.Rate <= 0 {
		c.Speech.Rate = def.Speech.Rate
	}
	if c.Speech.Pitch <= 0 {
		c.Speech.Pitch = def.Speech.Pitch
	}
	c.DBPath = expandHome(c.DBPath)
	c.LogPath = expandHome(c.LogPath)
	c.Keys = c.Keys.withDefaults(def.Keys)
}

func (k Keymap) withDefaults(def Keymap) Keymap {
	pick := func(v, fallback string) string {
		if v == "" {
			return fallback
		}
		return v
	}
	return Keymap{
		Quit:     pick(k.Quit, def.Quit),
		Compose:  pick(k.Compose, def.Compose),
		Voice:    pick(k.Voice, def.Voice),
		Upload:   pick(k.Upload, def.Upload),
		Submit:   pick(k.Submit, def.Submit),
		Up:       pick(k.Up, def.Up),
		Down:     pick(k.Down, def.Down),
		Toggle:   pick(k.Toggle, def.Toggle),
		Delete:   pick(k.Delete, def.Delete),
		Move:     pick(k.Move, def.Move),
		SortView: pick(k.SortView, def.SortView),
		Dismiss:  pick(k.Dismiss, def.Dismiss),
		Confirm:  pick(k.Confirm, def.Confirm),
		Cancel:   pick(k.Cancel, def.Cancel),
	}
}

func expandHome(p string) string {
	if !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[2:])
}

func write(path string, cfg Config) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultConfig() Config {
	return Config{
		DBPath:         "",
		Model:          DefaultModel,
		TimeoutSeconds: DefaultTimeoutSeconds,
		RemovalDelayMS: DefaultRemovalDelayMS,
		LogPath:        defaultLogPath(),
		LogLevel:       "info",
		Keys: Keymap{
			Quit:     "q",
			Compose:  "a",
			Voice:    "v",
			Upload:   "u",
			Submit:   "ctrl+s",
			Up:       "k",
			Down:     "j",
			Toggle:   " ",
			Delete:   "d",
			Move:     "m",
			SortView: "s",
			Dismiss:  "x",
			Confirm:  "enter",
			Cancel:   "esc",
		},
		Speech: Speech{
			Enabled: false,
			Command: "espeak-ng",
			Voices: []string{
				"Google UK English Female",
				"Microsoft Zira",
				"Samantha",
				"Karen",
				"Moira",
				"Tessa",
				"female",
			},
			Rate:  0.9,
			Pitch: 0.8,
		},
	}
}

// Default returns the built-in configuration.
func Default() Config {
	return defaultConfig()
}

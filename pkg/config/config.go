package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	xdgAppName = "fieldtask"
	configFile = "config.yaml"
	envPrefix  = "FIELDTASK"
)

type Config struct {
	LogLevel    string            `mapstructure:"log_level" yaml:"log_level"`
	API         APIConfig         `mapstructure:"api" yaml:"api"`
	Store       StoreConfig       `mapstructure:"store" yaml:"store"`
	Sync        SyncConfig        `mapstructure:"sync" yaml:"sync"`
	Tracking    TrackingConfig    `mapstructure:"tracking" yaml:"tracking"`
	Device      DeviceConfig      `mapstructure:"device" yaml:"device"`
	Permissions PermissionsConfig `mapstructure:"permissions" yaml:"permissions"`
	Signature   SignatureConfig   `mapstructure:"signature" yaml:"signature"`
	Agenda      AgendaConfig      `mapstructure:"agenda" yaml:"agenda"`
}

type APIConfig struct {
	BaseURL string        `mapstructure:"base_url" yaml:"base_url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// StoreConfig selects the local cache backend: file, sqlite or redis.
type StoreConfig struct {
	Backend     string `mapstructure:"backend" yaml:"backend"`
	Path        string `mapstructure:"path" yaml:"path"`
	RedisAddr   string `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisPrefix string `mapstructure:"redis_prefix" yaml:"redis_prefix"`
}

type SyncConfig struct {
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency"`
}

type TrackingConfig struct {
	Interval          time.Duration `mapstructure:"interval" yaml:"interval"`
	MinDistanceMeters float64       `mapstructure:"min_distance_meters" yaml:"min_distance_meters"`
	Poll              time.Duration `mapstructure:"poll" yaml:"poll"`
}

// DeviceConfig is the fixed position reported by the static locator.
type DeviceConfig struct {
	Latitude  *float64 `mapstructure:"latitude" yaml:"latitude,omitempty"`
	Longitude *float64 `mapstructure:"longitude" yaml:"longitude,omitempty"`
	Speed     float64  `mapstructure:"speed" yaml:"speed"`
}

type PermissionsConfig struct {
	ForegroundLocation bool `mapstructure:"foreground_location" yaml:"foreground_location"`
	BackgroundLocation bool `mapstructure:"background_location" yaml:"background_location"`
	Camera             bool `mapstructure:"camera" yaml:"camera"`
}

// SignatureConfig.Format is raw-paths or rendered-image.
type SignatureConfig struct {
	Format string `mapstructure:"format" yaml:"format"`
}

type AgendaConfig struct {
	Calendar string `mapstructure:"calendar" yaml:"calendar"`
}

func Default() *Config {
	return &Config{
		LogLevel: "info",
		API: APIConfig{
			BaseURL: "http://localhost:5000/api",
			Timeout: 30 * time.Second,
		},
		Store: StoreConfig{
			Backend:     "file",
			RedisAddr:   "localhost:6379",
			RedisPrefix: "fieldtask:",
		},
		Sync: SyncConfig{Concurrency: 4},
		Tracking: TrackingConfig{
			Interval:          30 * time.Second,
			MinDistanceMeters: 20,
			Poll:              5 * time.Second,
		},
		Permissions: PermissionsConfig{
			ForegroundLocation: true,
			BackgroundLocation: true,
			Camera:             true,
		},
		Signature: SignatureConfig{Format: "raw-paths"},
		Agenda:    AgendaConfig{Calendar: "Tasks"},
	}
}

func GetConfigDir() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, xdgAppName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", xdgAppName), nil
}

func GetConfigPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFile), nil
}

// Load reads the config file at the default path.
func Load() (*Config, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile reads path over the defaults, then applies FIELDTASK_ environment
// overrides. A missing file is not an error. A .env file in the working
// directory is loaded first if present.
func LoadFile(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("api.base_url", d.API.BaseURL)
	v.SetDefault("api.timeout", d.API.Timeout)
	v.SetDefault("store.backend", d.Store.Backend)
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("store.redis_addr", d.Store.RedisAddr)
	v.SetDefault("store.redis_prefix", d.Store.RedisPrefix)
	v.SetDefault("sync.concurrency", d.Sync.Concurrency)
	v.SetDefault("tracking.interval", d.Tracking.Interval)
	v.SetDefault("tracking.min_distance_meters", d.Tracking.MinDistanceMeters)
	v.SetDefault("tracking.poll", d.Tracking.Poll)
	// Registered so AutomaticEnv picks them up; unset means no fix.
	v.SetDefault("device.latitude", nil)
	v.SetDefault("device.longitude", nil)
	v.SetDefault("device.speed", d.Device.Speed)
	v.SetDefault("permissions.foreground_location", d.Permissions.ForegroundLocation)
	v.SetDefault("permissions.background_location", d.Permissions.BackgroundLocation)
	v.SetDefault("permissions.camera", d.Permissions.Camera)
	v.SetDefault("signature.format", d.Signature.Format)
	v.SetDefault("agenda.calendar", d.Agenda.Calendar)
}

func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "file", "sqlite", "redis":
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	switch c.Signature.Format {
	case "raw-paths", "rendered-image":
	default:
		return fmt.Errorf("unknown signature format %q", c.Signature.Format)
	}
	if c.Sync.Concurrency < 1 {
		return fmt.Errorf("sync.concurrency must be at least 1")
	}
	return nil
}

// StorePath returns the configured store path, or the default location for
// the backend under the config directory.
func (c *Config) StorePath() (string, error) {
	if c.Store.Path != "" {
		return c.Store.Path, nil
	}
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	if c.Store.Backend == "sqlite" {
		return filepath.Join(dir, "cache.db"), nil
	}
	return filepath.Join(dir, "cache"), nil
}

// Save writes cfg to the default path.
func Save(cfg *Config) error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}
	return SaveFile(path, cfg)
}

func SaveFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to open config file for writing: %w", err)
	}
	defer f.Close()

	encoder := yaml.NewEncoder(f)
	encoder.SetIndent(2)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return encoder.Close()
}

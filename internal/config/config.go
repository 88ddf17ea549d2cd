package config

import (
	"errors"
	"fmt"
	"os"

	"frontdesk/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Logging    LoggingConfig    `yaml:"logging"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	API        APIConfig        `yaml:"api"`
	Engine     EngineConfig     `yaml:"engine"`
	Exports    ExportConfig     `yaml:"exports"`
	Rooms      []models.Room    `yaml:"rooms"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	Port      int                `yaml:"port"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// EngineConfig tunes the consistency engine.
type EngineConfig struct {
	DebounceMillis      int `yaml:"debounce_ms"`
	PollIntervalSeconds int `yaml:"poll_interval_sec"`
	RetryMaxAttempts    int `yaml:"retry_max_attempts"`
	RetryInitialDelayMS int `yaml:"retry_initial_delay_ms"`
	RetryMaxDelaySec    int `yaml:"retry_max_delay_sec"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

// Load reads the config file, expanding ${VARS} from the environment and an
// optional .env file first.
func Load(configPath string) (*Config, error) {
	// .env is optional; only a parse failure matters.
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expanded := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expanded, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	return ValidateRooms(c.Rooms)
}

// ValidateRooms rejects inventories with missing or duplicate room ids.
func ValidateRooms(rooms []models.Room) error {
	ids := make(map[int64]bool, len(rooms))
	numbers := make(map[string]bool, len(rooms))
	for _, room := range rooms {
		if room.ID == 0 {
			return fmt.Errorf("room %q has invalid ID 0", room.Number)
		}
		if ids[room.ID] {
			return fmt.Errorf("duplicate room ID found: %d", room.ID)
		}
		ids[room.ID] = true
		if room.Number == "" {
			return fmt.Errorf("room %d has no number", room.ID)
		}
		if numbers[room.Number] {
			return fmt.Errorf("duplicate room number found: %s", room.Number)
		}
		numbers[room.Number] = true
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "frontdesk"
	}
	if c.API.Enabled && c.API.Port == 0 {
		c.API.Port = 8080
	}
	if c.API.RateLimit.RPS == 0 {
		c.API.RateLimit.RPS = models.RateLimitRPS
	}
	if c.API.RateLimit.Burst == 0 {
		c.API.RateLimit.Burst = models.RateLimitBurst
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Engine.DebounceMillis == 0 {
		c.Engine.DebounceMillis = models.DefaultDebounceMillis
	}
	if c.Engine.PollIntervalSeconds == 0 {
		c.Engine.PollIntervalSeconds = models.DefaultPollIntervalSeconds
	}
	if c.Engine.RetryMaxAttempts == 0 {
		c.Engine.RetryMaxAttempts = 3
	}
	if c.Engine.RetryInitialDelayMS == 0 {
		c.Engine.RetryInitialDelayMS = 1000
	}
	if c.Engine.RetryMaxDelaySec == 0 {
		c.Engine.RetryMaxDelaySec = 30
	}
	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}
}

package utils

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"

	"github.com/benmeehan/iotctl/internal/constants"
	"github.com/benmeehan/iotctl/pkg/file"
)

const (
	appDirName     = "iotctl"
	configFileName = "config.yaml"
	envPrefix      = "IOTCTL"
)

// Config represents the structure of the configuration file.
type Config struct {
	Server string `yaml:"server"` // Default platform host, used by login when --server is absent

	HTTP struct {
		Timeout            time.Duration `yaml:"timeout"`              // Request timeout of the transport
		InsecureSkipVerify bool          `yaml:"insecure_skip_verify"` // Skip TLS verification, for test platforms only
	} `yaml:"http"`

	Session struct {
		File    string `yaml:"file"`     // Path to the encrypted session file
		KeyFile string `yaml:"key_file"` // Path to the session encryption key
	} `yaml:"session"`

	Console struct {
		GraceDelay time.Duration `yaml:"grace_delay"` // Delay before exit after the remote closed the console
	} `yaml:"console"`

	Tunnel struct {
		OpenBrowser bool `yaml:"open_browser"` // Open http tunnels in the local browser
	} `yaml:"tunnel"`

	Fleet struct {
		Workers int `yaml:"workers"` // Concurrent requests for product-wide queries
	} `yaml:"fleet"`

	Log struct {
		Level string `yaml:"level"` // zerolog level name
	} `yaml:"log"`
}

// envOverrides are the IOTCTL_* variables. Unset variables leave the field nil.
type envOverrides struct {
	Server      *string        `envconfig:"SERVER"`
	SessionFile *string        `envconfig:"SESSION_FILE"`
	KeyFile     *string        `envconfig:"KEY_FILE"`
	Insecure    *bool          `envconfig:"INSECURE"`
	LogLevel    *string        `envconfig:"LOG_LEVEL"`
	HTTPTimeout *time.Duration `envconfig:"HTTP_TIMEOUT"`
	Workers     *int           `envconfig:"FLEET_WORKERS"`
}

// DefaultConfigDir returns the per-user directory holding the CLI files.
func DefaultConfigDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".", "."+appDirName)
	}
	return filepath.Join(dir, appDirName)
}

// DefaultConfigPath returns the default location of the configuration file.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), configFileName)
}

// DefaultConfig returns the configuration used when no file or variable overrides it.
func DefaultConfig() *Config {
	var config Config
	config.HTTP.Timeout = constants.DefaultHTTPTimeout
	config.Session.File = filepath.Join(DefaultConfigDir(), "session")
	config.Session.KeyFile = filepath.Join(DefaultConfigDir(), "session.key")
	config.Console.GraceDelay = constants.DefaultGraceDelay
	config.Tunnel.OpenBrowser = true
	config.Fleet.Workers = constants.DefaultFleetWorkers
	config.Log.Level = zerolog.LevelWarnValue
	return &config
}

// LoadConfig builds the configuration from defaults, the YAML file at filename
// (skipped when missing), a .env file in the working directory and IOTCTL_*
// environment variables, in increasing order of precedence.
func LoadConfig(filename string, fileClient file.FileOperations) (*Config, error) {
	config := DefaultConfig()

	if filename == "" {
		filename = DefaultConfigPath()
	}

	exists, err := fileClient.IsFileExists(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if exists {
		if err := fileClient.ReadYamlFile(filename, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", filename, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	if err := applyEnv(config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func applyEnv(config *Config) error {
	var env envOverrides
	if err := envconfig.Process(envPrefix, &env); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}

	if env.Server != nil {
		config.Server = *env.Server
	}
	if env.SessionFile != nil {
		config.Session.File = *env.SessionFile
	}
	if env.KeyFile != nil {
		config.Session.KeyFile = *env.KeyFile
	}
	if env.Insecure != nil {
		config.HTTP.InsecureSkipVerify = *env.Insecure
	}
	if env.LogLevel != nil {
		config.Log.Level = *env.LogLevel
	}
	if env.HTTPTimeout != nil {
		config.HTTP.Timeout = *env.HTTPTimeout
	}
	if env.Workers != nil {
		config.Fleet.Workers = *env.Workers
	}
	return nil
}

// Validate rejects values the CLI cannot run with.
func (c *Config) Validate() error {
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("http.timeout must be positive, got %s", c.HTTP.Timeout)
	}
	if c.Console.GraceDelay < 0 {
		return fmt.Errorf("console.grace_delay must not be negative, got %s", c.Console.GraceDelay)
	}
	if c.Fleet.Workers < 1 {
		return fmt.Errorf("fleet.workers must be at least 1, got %d", c.Fleet.Workers)
	}
	if c.Session.File == "" || c.Session.KeyFile == "" {
		return errors.New("session.file and session.key_file must be set")
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log.level %q: %w", c.Log.Level, err)
	}
	return nil
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// Mode constants
	ModeStdio  = "stdio"
	ModeServer = "server"

	// Default values
	DefaultPort        = 8080
	DefaultHost        = "127.0.0.1"
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "console"
	DefaultOutputDir   = "invoices"
	DefaultMaxFileSize = 20 * 1024 * 1024 // 20MB
	DefaultMaxLogoSize = 5 * 1024 * 1024  // 5MB
	DefaultSessionTTL  = 2 * time.Hour

	// Directory permissions
	DefaultDirPerm = 0o750

	envPrefix = "INVOICEGEN"
)

// Config holds all configuration for the invoice generator
type Config struct {
	// Server configuration
	Mode string // "server" or "stdio"
	Host string
	Port int

	// OutputDirectory is where MCP-generated invoices are written
	OutputDirectory string
	// ConfigFile is an optional YAML/JSON/TOML file read before env and flags
	ConfigFile string

	// Application configuration
	Version     string
	ServerName  string
	LogLevel    string
	LogFormat   string
	MaxFileSize int64 // Maximum size of an inspected PDF in bytes
	MaxLogoSize int64 // Maximum size of an uploaded logo in bytes
	SessionTTL  time.Duration
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Mode:            ModeServer,
		Host:            DefaultHost,
		Port:            DefaultPort,
		OutputDirectory: DefaultOutputDir,
		Version:         "1.0.0",
		ServerName:      "invoicegen",
		LogLevel:        DefaultLogLevel,
		LogFormat:       DefaultLogFormat,
		MaxFileSize:     DefaultMaxFileSize,
		MaxLogoSize:     DefaultMaxLogoSize,
		SessionTTL:      DefaultSessionTTL,
	}
}

// LoadFromFlags parses command line flags and returns a configuration
func LoadFromFlags() (*Config, error) {
	return Load(pflag.CommandLine, viper.GetViper(), os.Args[1:])
}

// Load builds a configuration from args, environment variables and an
// optional config file, in increasing order of precedence: defaults, file,
// environment, flags.
func Load(fs *pflag.FlagSet, v *viper.Viper, args []string) (*Config, error) {
	cfg := DefaultConfig()

	setupViperEnvironment(v, cfg)
	defineCommandLineFlags(fs, cfg)
	bindFlagsToViper(fs, v)
	setupUsageMessage(fs)

	// Check for version flag before parsing
	if err := checkVersionFlag(args); err != nil {
		return nil, err
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("cannot read config file %s: %w", file, err)
		}
	}

	populateConfigFromViper(v, cfg)

	if cfg.OutputDirectory != "" {
		if expandedPath, err := filepath.Abs(cfg.OutputDirectory); err == nil {
			cfg.OutputDirectory = expandedPath
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// ErrVersionRequested is returned by Load when --version is among the args
var ErrVersionRequested = errors.New("version requested")

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(v *viper.Viper, cfg *Config) {
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	v.SetDefault("mode", cfg.Mode)
	v.SetDefault("host", cfg.Host)
	v.SetDefault("port", cfg.Port)
	v.SetDefault("dir", cfg.OutputDirectory)
	v.SetDefault("loglevel", cfg.LogLevel)
	v.SetDefault("logformat", cfg.LogFormat)
	v.SetDefault("maxfilesize", cfg.MaxFileSize)
	v.SetDefault("maxlogosize", cfg.MaxLogoSize)
	v.SetDefault("sessionttl", cfg.SessionTTL)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.String("mode", cfg.Mode, "Run mode: 'server' for the web form, 'stdio' for MCP standard I/O")
	fs.String("host", cfg.Host, "Web server host address (server mode only)")
	fs.Int("port", cfg.Port, "Web server port (server mode only)")
	fs.String("dir", cfg.OutputDirectory, "Directory generated invoices are written to")
	fs.String("config", "", "Optional configuration file")
	fs.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	fs.String("logformat", cfg.LogFormat, "Log format (console, json)")
	fs.Int64("maxfilesize", cfg.MaxFileSize, "Maximum inspected PDF size in bytes")
	fs.Int64("maxlogosize", cfg.MaxLogoSize, "Maximum uploaded logo size in bytes")
	fs.Duration("sessionttl", cfg.SessionTTL, "Idle time after which a form session is discarded")
}

// bindFlagsToViper binds command line flags to viper configuration
func bindFlagsToViper(fs *pflag.FlagSet, v *viper.Viper) {
	for _, name := range []string{
		"mode", "host", "port", "dir", "config", "loglevel",
		"logformat", "maxfilesize", "maxlogosize", "sessionttl",
	} {
		_ = v.BindPFlag(name, fs.Lookup(name))
	}
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage(fs *pflag.FlagSet) {
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\ninvoicegen - build styled PDF invoices from a web form or MCP tools\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                                   # web form on 127.0.0.1:8080 (default)\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --host=0.0.0.0 --port=8081         # web form on all interfaces\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=stdio --dir=/srv/invoices   # MCP tools over stdio\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  INVOICEGEN_MODE         Run mode\n")
		fmt.Fprintf(os.Stderr, "  INVOICEGEN_HOST         Web server host\n")
		fmt.Fprintf(os.Stderr, "  INVOICEGEN_PORT         Web server port\n")
		fmt.Fprintf(os.Stderr, "  INVOICEGEN_DIR          Output directory\n")
		fmt.Fprintf(os.Stderr, "  INVOICEGEN_LOGLEVEL     Log level\n")
		fmt.Fprintf(os.Stderr, "  INVOICEGEN_LOGFORMAT    Log format\n")
		fmt.Fprintf(os.Stderr, "  INVOICEGEN_MAXLOGOSIZE  Maximum logo size\n")
		fmt.Fprintf(os.Stderr, "  INVOICEGEN_SESSIONTTL   Session idle timeout\n")
	}
}

// checkVersionFlag checks if version flag was requested
func checkVersionFlag(args []string) error {
	for _, arg := range args {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return ErrVersionRequested
		}
	}
	return nil
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(v *viper.Viper, cfg *Config) {
	cfg.Mode = v.GetString("mode")
	cfg.Host = v.GetString("host")
	cfg.Port = v.GetInt("port")
	cfg.OutputDirectory = v.GetString("dir")
	cfg.ConfigFile = v.GetString("config")
	cfg.LogLevel = v.GetString("loglevel")
	cfg.LogFormat = v.GetString("logformat")
	cfg.MaxFileSize = v.GetInt64("maxfilesize")
	cfg.MaxLogoSize = v.GetInt64("maxlogosize")
	cfg.SessionTTL = v.GetDuration("sessionttl")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Mode != ModeStdio && c.Mode != ModeServer {
		return errors.New("mode must be either 'stdio' or 'server'")
	}

	if c.Mode == ModeServer && (c.Port < 1 || c.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}

	if c.OutputDirectory == "" {
		return errors.New("output directory cannot be empty")
	}

	// Create the output directory if it doesn't exist
	if _, err := os.Stat(c.OutputDirectory); os.IsNotExist(err) {
		if err := os.MkdirAll(c.OutputDirectory, DefaultDirPerm); err != nil {
			return fmt.Errorf("cannot create output directory %s: %w", c.OutputDirectory, err)
		}
	} else if err != nil {
		return fmt.Errorf("cannot access output directory %s: %w", c.OutputDirectory, err)
	}

	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}
	if c.MaxLogoSize <= 0 {
		return errors.New("maximum logo size must be positive")
	}
	if c.SessionTTL <= 0 {
		return errors.New("session ttl must be positive")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	if c.LogFormat != "console" && c.LogFormat != "json" {
		return fmt.Errorf("invalid log format: %s (must be console or json)", c.LogFormat)
	}

	return nil
}

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, Host: %s, Port: %d, OutputDirectory: %s, LogLevel: %s, "+
		"LogFormat: %s, MaxFileSize: %d, MaxLogoSize: %d, SessionTTL: %s}",
		c.Mode, c.Host, c.Port, c.OutputDirectory, c.LogLevel,
		c.LogFormat, c.MaxFileSize, c.MaxLogoSize, c.SessionTTL)
}

// IsServerMode returns true when the web form should be served
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode returns true when MCP tools are served over stdio
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}

// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"label-service/internal/model"
	"label-service/internal/niimbot"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Security  SecurityConfig  `mapstructure:"security"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Printing  PrintingConfig  `mapstructure:"printing"`
	Printers  []PrinterConfig `mapstructure:"printers"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
	App       AppConfig       `mapstructure:"app"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           string        `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
}

// DatabaseConfig represents database configuration. Job history is kept in
// memory when Enabled is false.
type DatabaseConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	User         string        `mapstructure:"user"`
	Password     string        `mapstructure:"password"`
	DBName       string        `mapstructure:"dbname"`
	SSLMode      string        `mapstructure:"sslmode"`
	MaxOpenConns int           `mapstructure:"max_open_conns"`
	MaxIdleConns int           `mapstructure:"max_idle_conns"`
	MaxLifetime  time.Duration `mapstructure:"max_lifetime"`
}

// SecurityConfig represents security configuration
type SecurityConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// PrintingConfig holds protocol timing shared by all printers
type PrintingConfig struct {
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	PollRounds       int           `mapstructure:"poll_rounds"`
	SettleDelay      time.Duration `mapstructure:"settle_delay"`
	EndPrintInterval time.Duration `mapstructure:"end_print_interval"`
	MaxEndPrintPolls int           `mapstructure:"max_end_print_polls"`
	ReadTimeout      time.Duration `mapstructure:"read_timeout"`
	BaudRate         int           `mapstructure:"baud_rate"`
	JobTimeout       time.Duration `mapstructure:"job_timeout"`
	// MaxImagePixels caps width*height of an uploaded image before it is decoded.
	MaxImagePixels int `mapstructure:"max_image_pixels"`
	// Debug logs every frame sent and received as hex.
	Debug bool `mapstructure:"debug"`
}

// PrinterConfig describes one configured printer
type PrinterConfig struct {
	Name       string `mapstructure:"name"`
	Model      string `mapstructure:"model"`
	Connection string `mapstructure:"connection"`
	// Address is a serial port (or "auto") or a Bluetooth MAC address.
	Address   string `mapstructure:"address"`
	Density   int    `mapstructure:"density"`
	LabelType int    `mapstructure:"label_type"`
	BaudRate  int    `mapstructure:"baud_rate"`
}

// ConnectionType returns the parsed connection type
func (p PrinterConfig) ConnectionType() model.ConnectionType {
	ct, _ := model.ParseConnectionType(p.Connection)
	return ct
}

// DiscoveryConfig represents device discovery configuration
type DiscoveryConfig struct {
	USBEnabled  bool              `mapstructure:"usb_enabled"`
	ScanTimeout time.Duration     `mapstructure:"scan_timeout"`
	USBDevices  []USBDeviceConfig `mapstructure:"usb_devices"`
}

// USBDeviceConfig maps a USB vendor/product pair to a printer model
type USBDeviceConfig struct {
	VendorID  string `mapstructure:"vendor_id"`
	ProductID string `mapstructure:"product_id"`
	Model     string `mapstructure:"model"`
}

// JobsConfig controls job history retention
type JobsConfig struct {
	Retention       time.Duration `mapstructure:"retention"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	MaxInMemory     int           `mapstructure:"max_in_memory"`
}

// AppConfig represents application metadata
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// Load reads configuration from path, or from config.yaml in the default search
// paths when path is empty, then applies LABEL_SERVICE_* environment variables.
// A missing config file is not an error; defaults apply.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/label-service")
	}

	// Environment variable support
	v.SetEnvPrefix("LABEL_SERVICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	applyPrinterDefaults(&config)

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8085")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.max_upload_bytes", 10<<20)

	// Database defaults
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "label_service")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.max_lifetime", "5m")

	// Security defaults
	v.SetDefault("security.allowed_origins", []string{"*"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", true)

	// Printing defaults
	v.SetDefault("printing.poll_interval", "100ms")
	v.SetDefault("printing.poll_rounds", 6)
	v.SetDefault("printing.settle_delay", "300ms")
	v.SetDefault("printing.end_print_interval", "100ms")
	v.SetDefault("printing.max_end_print_polls", 300)
	v.SetDefault("printing.read_timeout", "500ms")
	v.SetDefault("printing.baud_rate", 115200)
	v.SetDefault("printing.job_timeout", "90s")
	v.SetDefault("printing.max_image_pixels", 16777216)
	v.SetDefault("printing.debug", false)

	// Discovery defaults
	v.SetDefault("discovery.usb_enabled", false)
	v.SetDefault("discovery.scan_timeout", "10s")

	// Job history defaults
	v.SetDefault("jobs.retention", "168h")
	v.SetDefault("jobs.cleanup_interval", "1h")
	v.SetDefault("jobs.max_in_memory", 1000)

	// App defaults
	v.SetDefault("app.name", "label-service")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", false)
}

// applyPrinterDefaults fills per-printer fields left empty
func applyPrinterDefaults(config *Config) {
	for i := range config.Printers {
		p := &config.Printers[i]
		if p.Connection == "" {
			p.Connection = "usb"
		}
		if p.Address == "" && p.ConnectionType() != model.ConnectionTypeBluetooth {
			p.Address = "auto"
		}
		if p.Density == 0 {
			p.Density = 3
		}
		if p.LabelType == 0 {
			p.LabelType = 1
		}
		if p.BaudRate == 0 {
			p.BaudRate = config.Printing.BaudRate
		}
	}
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Server.Host == "" {
		return fmt.Errorf("server.host is required")
	}
	if config.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	if config.Database.Enabled && config.Database.Host == "" {
		return fmt.Errorf("database.host is required when the database is enabled")
	}

	// Validate environment
	validEnvs := []string{"development", "staging", "production", "test"}
	isValidEnv := false
	for _, env := range validEnvs {
		if config.App.Environment == env {
			isValidEnv = true
			break
		}
	}
	if !isValidEnv {
		return fmt.Errorf("app.environment must be one of: %v", validEnvs)
	}

	// Validate logging level
	validLevels := []string{"debug", "info", "warn", "error", "fatal"}
	isValidLevel := false
	for _, level := range validLevels {
		if config.Logging.Level == level {
			isValidLevel = true
			break
		}
	}
	if !isValidLevel {
		return fmt.Errorf("logging.level must be one of: %v", validLevels)
	}

	if config.Printing.PollRounds < 1 {
		return fmt.Errorf("printing.poll_rounds must be at least 1")
	}
	if config.Printing.MaxEndPrintPolls < 1 {
		return fmt.Errorf("printing.max_end_print_polls must be at least 1")
	}
	if config.Printing.MaxImagePixels < 1 {
		return fmt.Errorf("printing.max_image_pixels must be at least 1")
	}
	if config.Printing.PollInterval < 0 || config.Printing.SettleDelay < 0 || config.Printing.EndPrintInterval < 0 {
		return fmt.Errorf("printing intervals must not be negative")
	}

	seen := make(map[string]bool, len(config.Printers))
	for i, p := range config.Printers {
		if err := validatePrinter(p); err != nil {
			return fmt.Errorf("printers[%d]: %w", i, err)
		}
		if seen[p.Name] {
			return fmt.Errorf("printers[%d]: duplicate printer name %q", i, p.Name)
		}
		seen[p.Name] = true
	}

	return nil
}

func validatePrinter(p PrinterConfig) error {
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if _, err := niimbot.LookupModel(p.Model); err != nil {
		return err
	}
	ct, ok := model.ParseConnectionType(p.Connection)
	if !ok {
		return fmt.Errorf("connection must be usb, serial or bluetooth, got %q", p.Connection)
	}
	if ct == model.ConnectionTypeBluetooth && p.Address == "" {
		return fmt.Errorf("bluetooth printers need an address")
	}
	if p.Density < 1 || p.Density > 5 {
		return fmt.Errorf("density must be 1-5, got %d", p.Density)
	}
	if p.LabelType < 1 || p.LabelType > 3 {
		return fmt.Errorf("label_type must be 1-3, got %d", p.LabelType)
	}
	return nil
}

// GetDatabaseDSN returns the database connection string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host, c.Database.Port, c.Database.User,
		c.Database.Password, c.Database.DBName, c.Database.SSLMode)
}

// GetServerAddr returns the server address
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// FindPrinter returns the configured printer with the given name
func (c *Config) FindPrinter(name string) (PrinterConfig, bool) {
	for _, p := range c.Printers {
		if p.Name == name {
			return p, true
		}
	}
	return PrinterConfig{}, false
}

// IsProduction checks if the environment is production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment checks if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsDebugEnabled checks if debug mode is enabled
func (c *Config) IsDebugEnabled() bool {
	return c.App.Debug || c.IsDevelopment()
}

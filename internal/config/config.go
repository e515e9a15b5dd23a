package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Config represents the complete application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	RabbitMQ   RabbitMQConfig   `yaml:"rabbitmq"`
	Logging    LoggingConfig    `yaml:"logging"`
	App        AppConfig        `yaml:"app"`
	Queue      QueueConfig      `yaml:"queue"`
	Worker     WorkerConfig     `yaml:"worker"`
	Render     RenderConfig     `yaml:"render"`
	AssetStore AssetStoreConfig `yaml:"asset_store"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// RabbitMQConfig holds RabbitMQ connection and exchange configuration
type RabbitMQConfig struct {
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	User       string           `yaml:"user"`
	Password   string           `yaml:"password"`
	VHost      string           `yaml:"vhost"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Connection ConnectionConfig `yaml:"connection"`
	Publish    PublishConfig    `yaml:"publish"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
	Durable bool   `yaml:"durable"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	Heartbeat         time.Duration `yaml:"heartbeat"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// QueueConfig holds job queue policy
type QueueConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
}

// WorkerConfig holds worker service configuration
type WorkerConfig struct {
	APIBaseURL      string        `yaml:"api_base_url"`
	WorkerIDPrefix  string        `yaml:"worker_id_prefix"`
	Concurrency     int           `yaml:"concurrency"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	ErrorBackoff    time.Duration `yaml:"error_backoff"`
	HTTPTimeout     time.Duration `yaml:"http_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// RenderConfig holds the render pipeline parameters
type RenderConfig struct {
	Width             int           `yaml:"width"`
	Height            int           `yaml:"height"`
	FOVDegrees        float64       `yaml:"fov_degrees"`
	StartAngle        float64       `yaml:"start_angle"`
	EndAngle          float64       `yaml:"end_angle"`
	AngleStep         float64       `yaml:"angle_step"`
	CameraHeight      float64       `yaml:"camera_height"`
	BaseDistance      float64       `yaml:"base_distance"`
	WorkingResolution int           `yaml:"working_resolution"`
	FrameDelay        time.Duration `yaml:"frame_delay"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout"`
}

// AssetStoreConfig holds the artifact upload target
type AssetStoreConfig struct {
	BaseURL       string        `yaml:"base_url"`
	UploadTimeout time.Duration `yaml:"upload_timeout"`
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryInterval time.Duration `yaml:"retry_interval"`
}

// Load reads and parses the configuration file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// ValidateAPIConfig checks the fields the API service needs
func (c *Config) ValidateAPIConfig() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port < MinPort || c.Database.Port > MaxPort {
		return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if c.RabbitMQ.Host == "" {
		return fmt.Errorf("rabbitmq host is required")
	}

	if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
		return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
	}

	if c.RabbitMQ.Exchange.Name == "" {
		return fmt.Errorf("rabbitmq exchange name is required")
	}

	if c.Queue.MaxAttempts <= 0 {
		return fmt.Errorf("queue max_attempts must be greater than 0")
	}

	return nil
}

// ValidateWorkerConfig checks the fields the worker service needs
func (c *Config) ValidateWorkerConfig() error {
	if c.Worker.APIBaseURL == "" {
		return fmt.Errorf("worker api_base_url is required")
	}

	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker concurrency must be greater than 0")
	}

	if c.Worker.PollInterval <= 0 {
		return fmt.Errorf("worker poll_interval must be greater than 0")
	}

	if c.Worker.ErrorBackoff <= 0 {
		return fmt.Errorf("worker error_backoff must be greater than 0")
	}

	if c.Worker.ShutdownTimeout <= 0 {
		return fmt.Errorf("worker shutdown_timeout must be greater than 0")
	}

	if c.Render.Width <= 0 || c.Render.Height <= 0 {
		return fmt.Errorf("render output dimensions must be greater than 0")
	}

	if c.Render.FOVDegrees <= 0 || c.Render.FOVDegrees >= 180 {
		return fmt.Errorf("render fov_degrees must be in (0, 180)")
	}

	if c.Render.AngleStep <= 0 {
		return fmt.Errorf("render angle_step must be greater than 0")
	}

	if c.Render.EndAngle <= c.Render.StartAngle {
		return fmt.Errorf("render end_angle must be greater than start_angle")
	}

	if c.Render.BaseDistance <= 0 {
		return fmt.Errorf("render base_distance must be greater than 0")
	}

	if c.Render.WorkingResolution <= 0 {
		return fmt.Errorf("render working_resolution must be greater than 0")
	}

	if c.AssetStore.BaseURL == "" {
		return fmt.Errorf("asset_store base_url is required")
	}

	return nil
}

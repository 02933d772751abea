package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/managemate/mmrt/pkg/bus"
	"github.com/managemate/mmrt/pkg/conflict"
	"github.com/managemate/mmrt/pkg/digest"
	"github.com/managemate/mmrt/pkg/gateway"
	"github.com/managemate/mmrt/pkg/health"
	"github.com/managemate/mmrt/pkg/log"
	"github.com/managemate/mmrt/pkg/mailer"
	"gopkg.in/yaml.v3"
)

// Config is the full service configuration.
// Values are layered: defaults, then the YAML file, then environment
// variables. Command-line flags are applied last by the caller.
type Config struct {
	RedisURL string `yaml:"redisUrl" env:"REDIS_URL" validate:"required"`
	HTTPAddr string `yaml:"httpAddr" env:"MMRT_HTTP_ADDR" validate:"required"`
	GRPCAddr string `yaml:"grpcAddr" env:"MMRT_GRPC_ADDR"`
	DataDir  string `yaml:"dataDir" env:"MMRT_DATA_DIR" validate:"required"`

	Log     LogConfig         `yaml:"log" envPrefix:"MMRT_LOG_"`
	Gateway GatewayConfig     `yaml:"gateway" envPrefix:"MMRT_GATEWAY_"`
	Bus     BusConfig         `yaml:"bus" envPrefix:"MMRT_BUS_"`
	Jobs    JobsConfig        `yaml:"jobs" envPrefix:"MMRT_JOBS_"`
	Auth    AuthConfig        `yaml:"auth" envPrefix:"MMRT_AUTH_"`
	SMTP    mailer.SMTPConfig `yaml:"smtp" envPrefix:"MMRT_SMTP_"`
	Health  HealthConfig      `yaml:"health" envPrefix:"MMRT_HEALTH_"`
}

type LogConfig struct {
	Level string `yaml:"level" env:"LEVEL" validate:"oneof=debug info warn error"`
	JSON  bool   `yaml:"json" env:"JSON"`
}

type GatewayConfig struct {
	SendBuffer     int           `yaml:"sendBuffer" env:"SEND_BUFFER" validate:"gt=0"`
	WriteWait      time.Duration `yaml:"writeWait" env:"WRITE_WAIT" validate:"gt=0"`
	PongWait       time.Duration `yaml:"pongWait" env:"PONG_WAIT" validate:"gt=0"`
	PingPeriod     time.Duration `yaml:"pingPeriod" env:"PING_PERIOD" validate:"gt=0,ltfield=PongWait"`
	MaxMessageSize int64         `yaml:"maxMessageSize" env:"MAX_MESSAGE_SIZE" validate:"gt=0"`
}

type BusConfig struct {
	InitialBackoff       time.Duration `yaml:"initialBackoff" env:"INITIAL_BACKOFF" validate:"gt=0"`
	MaxBackoff           time.Duration `yaml:"maxBackoff" env:"MAX_BACKOFF" validate:"gtefield=InitialBackoff"`
	MaxReconnectAttempts int           `yaml:"maxReconnectAttempts" env:"MAX_RECONNECT_ATTEMPTS" validate:"gte=0"`
}

type JobsConfig struct {
	ConflictInterval time.Duration `yaml:"conflictInterval" env:"CONFLICT_INTERVAL" validate:"gt=0"`
	DigestInterval   time.Duration `yaml:"digestInterval" env:"DIGEST_INTERVAL" validate:"gt=0"`
	PageSize         int           `yaml:"pageSize" env:"PAGE_SIZE" validate:"gt=0"`
	DigestEnabled    bool          `yaml:"digestEnabled" env:"DIGEST_ENABLED"`
}

type HealthConfig struct {
	Interval time.Duration `yaml:"interval" env:"INTERVAL" validate:"gt=0"`
	Timeout  time.Duration `yaml:"timeout" env:"TIMEOUT" validate:"gt=0,ltefield=Interval"`
	Retries  int           `yaml:"retries" env:"RETRIES" validate:"gt=0"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwtSecret" env:"JWT_SECRET"`
	Required  bool   `yaml:"required" env:"REQUIRED"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Default returns the built-in configuration
func Default() *Config {
	srv := gateway.DefaultServerConfig()
	br := bus.DefaultBridgeConfig()
	probes := health.DefaultConfig()

	return &Config{
		RedisURL: bus.DefaultRedisURL,
		HTTPAddr: "0.0.0.0:8080",
		GRPCAddr: "0.0.0.0:9090",
		DataDir:  "./mmrt-data",
		Log: LogConfig{
			Level: string(log.InfoLevel),
		},
		Gateway: GatewayConfig{
			SendBuffer:     gateway.DefaultSendBuffer,
			WriteWait:      srv.WriteWait,
			PongWait:       srv.PongWait,
			PingPeriod:     srv.PingPeriod,
			MaxMessageSize: srv.MaxMessageSize,
		},
		Bus: BusConfig{
			InitialBackoff:       br.InitialBackoff,
			MaxBackoff:           br.MaxBackoff,
			MaxReconnectAttempts: br.MaxReconnectAttempts,
		},
		Jobs: JobsConfig{
			ConflictInterval: conflict.DefaultInterval,
			DigestInterval:   digest.DefaultInterval,
			PageSize:         conflict.DefaultPageSize,
			DigestEnabled:    true,
		},
		Health: HealthConfig{
			Interval: probes.Interval,
			Timeout:  probes.Timeout,
			Retries:  probes.Retries,
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file at
// path and the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration after all layers are applied
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid config: %s failed %q", verrs[0].Namespace(), verrs[0].Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// LogSettings returns the logger configuration
func (c *Config) LogSettings() log.Config {
	return log.Config{
		Level:      log.ParseLevel(c.Log.Level),
		JSONOutput: c.Log.JSON,
	}
}

// ServerConfig returns the websocket transport settings
func (c *Config) ServerConfig() gateway.ServerConfig {
	return gateway.ServerConfig{
		WriteWait:      c.Gateway.WriteWait,
		PongWait:       c.Gateway.PongWait,
		PingPeriod:     c.Gateway.PingPeriod,
		MaxMessageSize: c.Gateway.MaxMessageSize,
	}
}

// BridgeConfig returns the broker reconnect settings
func (c *Config) BridgeConfig() bus.BridgeConfig {
	cfg := bus.DefaultBridgeConfig()
	cfg.InitialBackoff = c.Bus.InitialBackoff
	cfg.MaxBackoff = c.Bus.MaxBackoff
	cfg.MaxReconnectAttempts = c.Bus.MaxReconnectAttempts
	return cfg
}

// HealthSettings returns the dependency probe settings
func (c *Config) HealthSettings() health.Config {
	return health.Config{
		Interval: c.Health.Interval,
		Timeout:  c.Health.Timeout,
		Retries:  c.Health.Retries,
	}
}

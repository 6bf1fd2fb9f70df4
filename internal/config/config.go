package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// ARCHITECTURAL DISCOVERY: Configuration layer serves as system-wide settings coordinator
// Clean separation between configuration management and business logic
type Config struct {
	HTTP      *HTTPConfig      `json:"http"`
	WebSocket *WebSocketConfig `json:"websocket"`
	Room      *RoomConfig      `json:"room"`
	Auth      *AuthConfig      `json:"auth"`
}

// FUNCTIONAL DISCOVERY: HTTP configuration balances performance and reliability
type HTTPConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

// FUNCTIONAL DISCOVERY: WebSocket configuration tuned for control-surface
// clients on venue networks
type WebSocketConfig struct {
	PingInterval time.Duration `json:"ping_interval"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	BufferSize   int           `json:"buffer_size"`
}

// RoomConfig bounds in-memory growth of the room store.
type RoomConfig struct {
	MaxUsers          int           `json:"max_users"`
	InactivityTimeout time.Duration `json:"inactivity_timeout"`
	SweepInterval     time.Duration `json:"sweep_interval"`
}

// AuthConfig controls one-time control-surface tokens.
type AuthConfig struct {
	TokenTTL time.Duration `json:"token_ttl"`
}

// FUNCTIONAL DISCOVERY: Production-ready defaults - hourly sweep keeps
// abandoned rooms from accumulating, 5-minute tokens match their single-use
// handshake purpose
func DefaultConfig() *Config {
	return &Config{
		HTTP: &HTTPConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		WebSocket: &WebSocketConfig{
			PingInterval: 30 * time.Second,
			ReadTimeout:  60 * time.Second,
			WriteTimeout: 10 * time.Second,
			BufferSize:   100,
		},
		Room: &RoomConfig{
			MaxUsers:          50,
			InactivityTimeout: time.Hour,
			SweepInterval:     time.Hour,
		},
		Auth: &AuthConfig{
			TokenTTL: 5 * time.Minute,
		},
	}
}

// FUNCTIONAL DISCOVERY: Comprehensive validation prevents invalid system configurations
// Critical for preventing runtime failures in production deployment
func (c *Config) Validate() error {
	if c.HTTP == nil {
		return fmt.Errorf("HTTP configuration is required")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP port must be between 1 and 65535")
	}
	if c.HTTP.Host == "" {
		return fmt.Errorf("HTTP host cannot be empty")
	}
	if c.HTTP.ReadTimeout <= 0 {
		return fmt.Errorf("HTTP read timeout must be positive")
	}
	if c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("HTTP write timeout must be positive")
	}

	if c.WebSocket == nil {
		return fmt.Errorf("WebSocket configuration is required")
	}
	if c.WebSocket.PingInterval <= 0 {
		return fmt.Errorf("WebSocket ping interval must be positive")
	}
	if c.WebSocket.ReadTimeout <= 0 {
		return fmt.Errorf("WebSocket read timeout must be positive")
	}
	if c.WebSocket.WriteTimeout <= 0 {
		return fmt.Errorf("WebSocket write timeout must be positive")
	}
	if c.WebSocket.BufferSize <= 0 {
		return fmt.Errorf("WebSocket buffer size must be positive")
	}

	if c.Room == nil {
		return fmt.Errorf("room configuration is required")
	}
	if c.Room.MaxUsers <= 0 {
		return fmt.Errorf("room max users must be positive")
	}
	if c.Room.InactivityTimeout <= 0 {
		return fmt.Errorf("room inactivity timeout must be positive")
	}
	if c.Room.SweepInterval <= 0 {
		return fmt.Errorf("room sweep interval must be positive")
	}

	if c.Auth == nil {
		return fmt.Errorf("auth configuration is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth token TTL must be positive")
	}

	return nil
}

// FUNCTIONAL DISCOVERY: Environment variable configuration enables deployment flexibility
// Supports containerized deployments and configuration management systems
func LoadFromEnv() *Config {
	config := DefaultConfig()

	if port := os.Getenv("STAGELINK_HTTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.HTTP.Port = p
		}
	}

	if host := os.Getenv("STAGELINK_HTTP_HOST"); host != "" {
		config.HTTP.Host = host
	}

	if readTimeout := os.Getenv("STAGELINK_HTTP_READ_TIMEOUT"); readTimeout != "" {
		if timeout, err := time.ParseDuration(readTimeout); err == nil {
			config.HTTP.ReadTimeout = timeout
		}
	}

	if writeTimeout := os.Getenv("STAGELINK_HTTP_WRITE_TIMEOUT"); writeTimeout != "" {
		if timeout, err := time.ParseDuration(writeTimeout); err == nil {
			config.HTTP.WriteTimeout = timeout
		}
	}

	if pingInterval := os.Getenv("STAGELINK_WEBSOCKET_PING_INTERVAL"); pingInterval != "" {
		if interval, err := time.ParseDuration(pingInterval); err == nil {
			config.WebSocket.PingInterval = interval
		}
	}

	if wsReadTimeout := os.Getenv("STAGELINK_WEBSOCKET_READ_TIMEOUT"); wsReadTimeout != "" {
		if timeout, err := time.ParseDuration(wsReadTimeout); err == nil {
			config.WebSocket.ReadTimeout = timeout
		}
	}

	if wsWriteTimeout := os.Getenv("STAGELINK_WEBSOCKET_WRITE_TIMEOUT"); wsWriteTimeout != "" {
		if timeout, err := time.ParseDuration(wsWriteTimeout); err == nil {
			config.WebSocket.WriteTimeout = timeout
		}
	}

	if bufferSize := os.Getenv("STAGELINK_WEBSOCKET_BUFFER_SIZE"); bufferSize != "" {
		if size, err := strconv.Atoi(bufferSize); err == nil {
			config.WebSocket.BufferSize = size
		}
	}

	if maxUsers := os.Getenv("STAGELINK_ROOM_MAX_USERS"); maxUsers != "" {
		if n, err := strconv.Atoi(maxUsers); err == nil {
			config.Room.MaxUsers = n
		}
	}

	if inactivity := os.Getenv("STAGELINK_ROOM_INACTIVITY_TIMEOUT"); inactivity != "" {
		if timeout, err := time.ParseDuration(inactivity); err == nil {
			config.Room.InactivityTimeout = timeout
		}
	}

	if sweep := os.Getenv("STAGELINK_ROOM_SWEEP_INTERVAL"); sweep != "" {
		if interval, err := time.ParseDuration(sweep); err == nil {
			config.Room.SweepInterval = interval
		}
	}

	if tokenTTL := os.Getenv("STAGELINK_AUTH_TOKEN_TTL"); tokenTTL != "" {
		if ttl, err := time.ParseDuration(tokenTTL); err == nil {
			config.Auth.TokenTTL = ttl
		}
	}

	return config
}

// ConfigFile represents the JSON structure for file-based configuration
// FUNCTIONAL DISCOVERY: Separate struct for JSON parsing to handle duration strings
type ConfigFile struct {
	HTTP      *HTTPConfigFile      `json:"http"`
	WebSocket *WebSocketConfigFile `json:"websocket"`
	Room      *RoomConfigFile      `json:"room"`
	Auth      *AuthConfigFile      `json:"auth"`
}

type HTTPConfigFile struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  string `json:"read_timeout"`
	WriteTimeout string `json:"write_timeout"`
}

type WebSocketConfigFile struct {
	PingInterval string `json:"ping_interval"`
	ReadTimeout  string `json:"read_timeout"`
	WriteTimeout string `json:"write_timeout"`
	BufferSize   int    `json:"buffer_size"`
}

type RoomConfigFile struct {
	MaxUsers          int    `json:"max_users"`
	InactivityTimeout string `json:"inactivity_timeout"`
	SweepInterval     string `json:"sweep_interval"`
}

type AuthConfigFile struct {
	TokenTTL string `json:"token_ttl"`
}

// FUNCTIONAL DISCOVERY: File-based configuration supports complex deployment scenarios
// JSON format chosen for readability and tooling support
func LoadFromFile(filepath string) (*Config, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filepath, err)
	}

	var configFile ConfigFile
	if err := json.Unmarshal(data, &configFile); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", filepath, err)
	}

	config := DefaultConfig()

	if configFile.HTTP != nil {
		if configFile.HTTP.Port > 0 {
			config.HTTP.Port = configFile.HTTP.Port
		}
		if configFile.HTTP.Host != "" {
			config.HTTP.Host = configFile.HTTP.Host
		}
		if configFile.HTTP.ReadTimeout != "" {
			if timeout, err := time.ParseDuration(configFile.HTTP.ReadTimeout); err == nil {
				config.HTTP.ReadTimeout = timeout
			}
		}
		if configFile.HTTP.WriteTimeout != "" {
			if timeout, err := time.ParseDuration(configFile.HTTP.WriteTimeout); err == nil {
				config.HTTP.WriteTimeout = timeout
			}
		}
	}

	if configFile.WebSocket != nil {
		if configFile.WebSocket.BufferSize > 0 {
			config.WebSocket.BufferSize = configFile.WebSocket.BufferSize
		}
		if configFile.WebSocket.PingInterval != "" {
			if interval, err := time.ParseDuration(configFile.WebSocket.PingInterval); err == nil {
				config.WebSocket.PingInterval = interval
			}
		}
		if configFile.WebSocket.ReadTimeout != "" {
			if timeout, err := time.ParseDuration(configFile.WebSocket.ReadTimeout); err == nil {
				config.WebSocket.ReadTimeout = timeout
			}
		}
		if configFile.WebSocket.WriteTimeout != "" {
			if timeout, err := time.ParseDuration(configFile.WebSocket.WriteTimeout); err == nil {
				config.WebSocket.WriteTimeout = timeout
			}
		}
	}

	if configFile.Room != nil {
		if configFile.Room.MaxUsers > 0 {
			config.Room.MaxUsers = configFile.Room.MaxUsers
		}
		if configFile.Room.InactivityTimeout != "" {
			if timeout, err := time.ParseDuration(configFile.Room.InactivityTimeout); err == nil {
				config.Room.InactivityTimeout = timeout
			}
		}
		if configFile.Room.SweepInterval != "" {
			if interval, err := time.ParseDuration(configFile.Room.SweepInterval); err == nil {
				config.Room.SweepInterval = interval
			}
		}
	}

	if configFile.Auth != nil && configFile.Auth.TokenTTL != "" {
		if ttl, err := time.ParseDuration(configFile.Auth.TokenTTL); err == nil {
			config.Auth.TokenTTL = ttl
		}
	}

	// ARCHITECTURAL DISCOVERY: Validate configuration after loading to catch errors early
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", filepath, err)
	}

	return config, nil
}

// FUNCTIONAL DISCOVERY: Configuration precedence: file > environment > defaults
// Enables flexible deployment patterns while maintaining sane defaults
func LoadConfigWithPrecedence(filepath string) *Config {
	config := LoadFromEnv()

	if filepath != "" {
		if fileConfig, err := LoadFromFile(filepath); err == nil {
			config = fileConfig
		}
		// Silently ignore file errors - environment/defaults still work
	}

	return config
}

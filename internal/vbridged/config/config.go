// Package config provides configuration management for the Voice Bridge server
package config

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"
)

// Config holds all configuration for the server
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	Spotify     SpotifyConfig     `yaml:"spotify"`
	Transcriber TranscriberConfig `yaml:"transcriber"`
	Vault       VaultConfig       `yaml:"vault"`
	Sessions    SessionConfig     `yaml:"sessions"`
	RateLimit   RateLimitConfig   `yaml:"rateLimit"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	BaseURL      string        `yaml:"baseURL"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
	TLSCert      string        `yaml:"tlsCert"`
	TLSKey       string        `yaml:"tlsKey"`
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Name            string        `yaml:"name"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// RedisConfig holds rate-limit store settings. Rate limiting is
// disabled when Addr is empty.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// SpotifyConfig holds provider OAuth settings
type SpotifyConfig struct {
	ClientID     string `yaml:"clientID"`
	ClientSecret string `yaml:"clientSecret"`
	RedirectURL  string `yaml:"redirectURL"`
	Scopes       string `yaml:"scopes"`
}

// TranscriberConfig holds transcription collaborator settings
type TranscriberConfig struct {
	APIKey  string        `yaml:"apiKey"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// VaultConfig holds credential vault settings. MasterKey is the
// 32-byte key the token cipher is derived from, carried as base64,
// hex, or raw bytes.
type VaultConfig struct {
	MasterKey     string        `yaml:"masterKey"`
	RefreshMargin time.Duration `yaml:"refreshMargin"`
}

// SessionConfig holds device auth session settings
type SessionConfig struct {
	TTL        time.Duration `yaml:"ttl"`
	GCInterval time.Duration `yaml:"gcInterval"`
}

// RateLimitConfig holds per-endpoint request limits
type RateLimitConfig struct {
	QRPerMinute      int `yaml:"qrPerMinute"`
	CommandPerMinute int `yaml:"commandPerMinute"`
}

// Load builds a Config from defaults overlaid with environment variables
func Load() (*Config, error) {
	cfg := defaultConfig()
	cfg.overlayEnv()
	return cfg, cfg.validate()
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8000,
			BaseURL:      "http://localhost:8000",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			Name:            "voicebridge",
			User:            "voicebridge",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Spotify: SpotifyConfig{
			Scopes: "user-read-playback-state user-modify-playback-state",
		},
		Transcriber: TranscriberConfig{
			Model:   "whisper-1",
			Timeout: 30 * time.Second,
		},
		Vault: VaultConfig{
			RefreshMargin: 60 * time.Second,
		},
		Sessions: SessionConfig{
			TTL:        5 * time.Minute,
			GCInterval: 5 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			QRPerMinute:      10,
			CommandPerMinute: 60,
		},
	}
}

// overlayEnv overlays environment variables on top of file-based config
func (c *Config) overlayEnv() {
	// Server config
	if host := getEnv("VBRIDGE_SERVER_HOST", ""); host != "" {
		c.Server.Host = host
	}
	if port := getEnvAsInt("VBRIDGE_SERVER_PORT", 0); port != 0 {
		c.Server.Port = port
	}
	if baseURL := getEnv("VBRIDGE_BASE_URL", ""); baseURL != "" {
		c.Server.BaseURL = baseURL
	}
	if readTimeout := getEnvAsDuration("VBRIDGE_SERVER_READ_TIMEOUT", 0); readTimeout != 0 {
		c.Server.ReadTimeout = readTimeout
	}
	if writeTimeout := getEnvAsDuration("VBRIDGE_SERVER_WRITE_TIMEOUT", 0); writeTimeout != 0 {
		c.Server.WriteTimeout = writeTimeout
	}
	if idleTimeout := getEnvAsDuration("VBRIDGE_SERVER_IDLE_TIMEOUT", 0); idleTimeout != 0 {
		c.Server.IdleTimeout = idleTimeout
	}
	if tlsCert := getEnv("VBRIDGE_TLS_CERT", ""); tlsCert != "" {
		c.Server.TLSCert = tlsCert
	}
	if tlsKey := getEnv("VBRIDGE_TLS_KEY", ""); tlsKey != "" {
		c.Server.TLSKey = tlsKey
	}

	// Database config - check multiple env var names
	if host := getEnvMulti([]string{"VBRIDGE_DB_HOST", "DB_HOST", "POSTGRES_HOST"}, ""); host != "" {
		c.Database.Host = host
	}
	if port := getEnvAsIntMulti([]string{"VBRIDGE_DB_PORT", "DB_PORT", "POSTGRES_PORT"}, 0); port != 0 {
		c.Database.Port = port
	}
	if name := getEnvMulti([]string{"VBRIDGE_DB_NAME", "DB_NAME", "POSTGRES_DB"}, ""); name != "" {
		c.Database.Name = name
	}
	if user := getEnvMulti([]string{"VBRIDGE_DB_USER", "DB_USER", "POSTGRES_USER"}, ""); user != "" {
		c.Database.User = user
	}
	if password := getEnvMulti([]string{"VBRIDGE_DB_PASSWORD", "DB_PASSWORD", "POSTGRES_PASSWORD"}, ""); password != "" {
		c.Database.Password = password
	}
	if sslmode := getEnv("VBRIDGE_DB_SSLMODE", ""); sslmode != "" {
		c.Database.SSLMode = sslmode
	}

	// Redis config
	if addr := getEnv("VBRIDGE_REDIS_ADDR", ""); addr != "" {
		c.Redis.Addr = addr
	}
	if password := getEnv("VBRIDGE_REDIS_PASSWORD", ""); password != "" {
		c.Redis.Password = password
	}
	if db := getEnvAsInt("VBRIDGE_REDIS_DB", -1); db >= 0 {
		c.Redis.DB = db
	}

	// Spotify config
	if id := getEnvMulti([]string{"VBRIDGE_SPOTIFY_CLIENT_ID", "SPOTIFY_CLIENT_ID"}, ""); id != "" {
		c.Spotify.ClientID = id
	}
	if secret := getEnvMulti([]string{"VBRIDGE_SPOTIFY_CLIENT_SECRET", "SPOTIFY_CLIENT_SECRET"}, ""); secret != "" {
		c.Spotify.ClientSecret = secret
	}
	if redirect := getEnvMulti([]string{"VBRIDGE_SPOTIFY_REDIRECT_URL", "SPOTIFY_REDIRECT_URI"}, ""); redirect != "" {
		c.Spotify.RedirectURL = redirect
	}
	if scopes := getEnvMulti([]string{"VBRIDGE_SPOTIFY_SCOPES", "SPOTIFY_SCOPE"}, ""); scopes != "" {
		c.Spotify.Scopes = scopes
	}

	// Transcriber config
	if key := getEnvMulti([]string{"VBRIDGE_TRANSCRIBER_API_KEY", "OPENAI_API_KEY"}, ""); key != "" {
		c.Transcriber.APIKey = key
	}
	if model := getEnv("VBRIDGE_TRANSCRIBER_MODEL", ""); model != "" {
		c.Transcriber.Model = model
	}
	if timeout := getEnvAsDuration("VBRIDGE_TRANSCRIBER_TIMEOUT", 0); timeout != 0 {
		c.Transcriber.Timeout = timeout
	}

	// Vault config
	if key := getEnvMulti([]string{"VBRIDGE_VAULT_MASTER_KEY", "FIELD_ENCRYPTION_KEY"}, ""); key != "" {
		c.Vault.MasterKey = key
	}
	if margin := getEnvAsDuration("VBRIDGE_VAULT_REFRESH_MARGIN", 0); margin != 0 {
		c.Vault.RefreshMargin = margin
	}

	// Session config
	if ttl := getEnvAsDuration("VBRIDGE_SESSION_TTL", 0); ttl != 0 {
		c.Sessions.TTL = ttl
	}
	if interval := getEnvAsDuration("VBRIDGE_SESSION_GC_INTERVAL", 0); interval != 0 {
		c.Sessions.GCInterval = interval
	}

	// Rate limit config
	if qr := getEnvAsInt("VBRIDGE_RATELIMIT_QR_PER_MINUTE", 0); qr != 0 {
		c.RateLimit.QRPerMinute = qr
	}
	if cmd := getEnvAsInt("VBRIDGE_RATELIMIT_COMMAND_PER_MINUTE", 0); cmd != 0 {
		c.RateLimit.CommandPerMinute = cmd
	}
}

// MasterKeyBytes decodes the configured vault master key. Standard
// and URL-safe base64, hex, and raw 32-byte keys are all accepted;
// prior deployments carried the key in each of these shapes.
func (c *Config) MasterKeyBytes() ([]byte, error) {
	key := c.Vault.MasterKey
	if decoded, err := base64.StdEncoding.DecodeString(key); err == nil && len(decoded) == 32 {
		return decoded, nil
	}
	if decoded, err := base64.URLEncoding.DecodeString(key); err == nil && len(decoded) == 32 {
		return decoded, nil
	}
	if decoded, err := hex.DecodeString(key); err == nil && len(decoded) == 32 {
		return decoded, nil
	}
	if len(key) == 32 {
		return []byte(key), nil
	}
	return nil, fmt.Errorf("vault master key must be 32 bytes, base64 or hex encoded")
}

package config

import (
	"fmt"
	"time"
)

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if (c.Server.TLSCert != "") != (c.Server.TLSKey != "") {
		return fmt.Errorf("both TLS cert and key must be provided")
	}
	if c.Server.BaseURL == "" {
		return fmt.Errorf("server base URL is required")
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Database.Port)
	}
	if c.Database.MaxOpenConns < 1 {
		return fmt.Errorf("invalid max open connections: %d", c.Database.MaxOpenConns)
	}
	if c.Database.MaxIdleConns < 1 {
		return fmt.Errorf("invalid max idle connections: %d", c.Database.MaxIdleConns)
	}
	if c.Spotify.ClientID == "" || c.Spotify.ClientSecret == "" {
		return fmt.Errorf("spotify client credentials are required")
	}
	if c.Spotify.RedirectURL == "" {
		c.Spotify.RedirectURL = c.Server.BaseURL + "/auth/callback"
	}
	if c.Transcriber.APIKey == "" {
		return fmt.Errorf("transcriber API key is required")
	}
	if _, err := c.MasterKeyBytes(); err != nil {
		return err
	}
	if c.Vault.RefreshMargin < 0 {
		return fmt.Errorf("vault refresh margin must not be negative")
	}
	if c.Sessions.TTL < time.Minute {
		return fmt.Errorf("session TTL must be at least 1 minute")
	}
	return nil
}

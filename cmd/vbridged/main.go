// The vbridged command implements the voice bridge server
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/voicebridge/voicebridge/internal/vbridged/config"
	"github.com/voicebridge/voicebridge/internal/vbridged/database"
	vbhttp "github.com/voicebridge/voicebridge/internal/vbridged/http"
	"github.com/voicebridge/voicebridge/internal/vbridged/migrations"
	"github.com/voicebridge/voicebridge/internal/vbridged/oauth"
	"github.com/voicebridge/voicebridge/internal/vbridged/pipeline"
	"github.com/voicebridge/voicebridge/internal/vbridged/playback"
	"github.com/voicebridge/voicebridge/internal/vbridged/ratelimit"
	rlredis "github.com/voicebridge/voicebridge/internal/vbridged/ratelimit/redis"
	"github.com/voicebridge/voicebridge/internal/vbridged/session"
	sessionpg "github.com/voicebridge/voicebridge/internal/vbridged/session/postgres"
	"github.com/voicebridge/voicebridge/internal/vbridged/shorturl"
	shorturlpg "github.com/voicebridge/voicebridge/internal/vbridged/shorturl/postgres"
	"github.com/voicebridge/voicebridge/internal/vbridged/spotify"
	"github.com/voicebridge/voicebridge/internal/vbridged/transcribe"
	"github.com/voicebridge/voicebridge/internal/vbridged/vault"
	vaultpg "github.com/voicebridge/voicebridge/internal/vbridged/vault/postgres"
)

// version is set at build time via -ldflags
var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	var cfg *config.Config
	var err error

	if *configPath != "" {
		cfg, err = config.LoadFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)

	db, err := database.SetupDatabase(connStr, 5, time.Second)
	if err != nil {
		logger.Error("failed to setup database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := migrations.Run(db); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	masterKey, err := cfg.MasterKeyBytes()
	if err != nil {
		logger.Error("failed to decode vault master key", "error", err)
		os.Exit(1)
	}
	cipher, err := vault.NewCipher(masterKey)
	if err != nil {
		logger.Error("failed to initialize token cipher", "error", err)
		os.Exit(1)
	}

	provider := spotify.NewClient(spotify.Config{
		ClientID:     cfg.Spotify.ClientID,
		ClientSecret: cfg.Spotify.ClientSecret,
		RedirectURL:  cfg.Spotify.RedirectURL,
		Scopes:       strings.Fields(cfg.Spotify.Scopes),
	}, logger)

	vaultSvc := vault.NewService(
		vaultpg.NewRepository(db, logger),
		cipher,
		&providerRefresher{provider},
		cfg.Vault.RefreshMargin,
		logger,
	)

	sessionSvc := session.NewService(sessionpg.NewRepository(db, logger), cfg.Sessions.TTL, logger)
	oauthCtrl := oauth.NewController(sessionSvc, &tokenStore{vaultSvc}, provider, logger)

	transcriber := transcribe.NewWhisperClient(cfg.Transcriber.APIKey, cfg.Transcriber.Model, cfg.Transcriber.Timeout, logger)
	dispatcher := playback.NewDispatcher(vaultSvc, provider, logger)
	pipe := pipeline.New(vaultSvc, transcriber, dispatcher, logger)

	shortener := shorturl.NewService(shorturlpg.NewRepository(db), logger)

	var limiters *ratelimit.EndpointLimiters
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		limitSvc := ratelimit.NewService(rlredis.NewStore(redisClient), logger)
		limitSvc.RegisterConfiguredLimits(cfg.RateLimit)
		limiters = ratelimit.NewEndpointLimiters(limitSvc, logger)
	} else {
		logger.Warn("no redis address configured, rate limiting disabled")
	}

	handler := vbhttp.NewHandler(oauthCtrl, pipe, vaultSvc, shortener, limiters, cfg.Server.BaseURL, version, logger)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	gcCtx, stopGC := context.WithCancel(context.Background())
	defer stopGC()
	go runSessionGC(gcCtx, sessionSvc, cfg.Sessions.GCInterval, logger)

	go func() {
		logger.Info("starting server",
			"host", cfg.Server.Host,
			"port", cfg.Server.Port,
			"version", version,
		)

		var err error
		if cfg.Server.TLSCert != "" && cfg.Server.TLSKey != "" {
			err = server.ListenAndServeTLS(cfg.Server.TLSCert, cfg.Server.TLSKey)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	<-shutdown
	logger.Info("shutting down server...")
	stopGC()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
}

// runSessionGC periodically purges expired link sessions
func runSessionGC(ctx context.Context, sessions *session.Service, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := sessions.PurgeExpired(ctx); err != nil {
				logger.Error("session purge failed", "error", err)
			}
		}
	}
}

// providerRefresher adapts the provider client to the vault's
// refresher contract
type providerRefresher struct {
	client *spotify.Client
}

func (r *providerRefresher) RefreshToken(ctx context.Context, refreshToken string) (*vault.ProviderToken, error) {
	tok, err := r.client.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	return &vault.ProviderToken{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Scopes:       tok.Scopes,
		ExpiresAt:    tok.ExpiresAt,
	}, nil
}

// tokenStore adapts the vault service to the linking flow's store
// contract
type tokenStore struct {
	vault *vault.Service
}

func (s *tokenStore) Store(ctx context.Context, deviceID string, tok *spotify.Token) error {
	return s.vault.Store(ctx, deviceID, tok.AccessToken, tok.RefreshToken, tok.ExpiresAt, tok.Scopes)
}

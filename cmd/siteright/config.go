package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Richiestixx/SiteRightApp/internal/viewstate"
	apiclient "github.com/Richiestixx/SiteRightApp/pkg/api/client"
	"github.com/Richiestixx/SiteRightApp/pkg/config"
)

type cliConfig struct {
	APIBaseURL  string `json:"api_base_url"`
	AccessToken string `json:"access_token"`
}

// fileTokens keeps the session token in the CLI config file.
type fileTokens struct {
	apiBase string
}

func (f fileTokens) LoadToken() (string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return "", err
	}
	return cfg.AccessToken, nil
}

func (f fileTokens) SaveToken(token string) error {
	cfg, _ := loadConfig()
	cfg.AccessToken = token
	if f.apiBase != "" {
		cfg.APIBaseURL = f.apiBase
	}
	return saveConfig(cfg)
}

// app is everything a command needs once the identity is known.
type app struct {
	env    config.ClientConfig
	log    *slog.Logger
	client *apiclient.Client
	store  apiclient.Bound
	id     viewstate.Identity
}

// connect loads configuration, bootstraps the session and binds the client
// to its token. apiOverride replaces the configured API base URL.
func connect(ctx context.Context, apiOverride string, verbose bool) (*app, error) {
	log := cliLogger(verbose)
	if err := config.LoadDotEnv(".env"); err != nil {
		log.Warn("failed to load .env", "error", err)
	}
	env := config.LoadClientConfig()

	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	base := strings.TrimSpace(apiOverride)
	if base == "" {
		base = cfg.APIBaseURL
	}
	if base == "" {
		base = env.APIBaseURL
	}

	client, err := apiclient.New(base, apiclient.WithTimeout(env.RequestTimeout))
	if err != nil {
		return nil, err
	}
	sess := viewstate.NewSession(client, fileTokens{apiBase: base}, env.SessionAttempts, env.SessionRetryDelay, log)
	id, err := sess.Bootstrap(ctx)
	if err != nil {
		return nil, err
	}
	return &app{env: env, log: log, client: client, store: client.Bind(id.Token), id: id}, nil
}

func loadConfig() (cliConfig, error) {
	path, err := configPath()
	if err != nil {
		return cliConfig{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cliConfig{}, nil
		}
		return cliConfig{}, err
	}
	var cfg cliConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cliConfig{}, err
	}
	return cfg, nil
}

func saveConfig(cfg cliConfig) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func configPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "siteright", "config.json"), nil
}

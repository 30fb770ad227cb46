package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix  = "LIFTSYNC_"
	configFile = "LIFTSYNC_CONFIG"
)

type Config struct {
	DBPath     string `koanf:"db_path"`
	InboxDir   string `koanf:"inbox_dir"`
	RawMailDir string `koanf:"raw_mail_dir"`
	OutputDir  string `koanf:"output_dir"`

	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`

	APIBaseURL      string `koanf:"api_base_url"`
	APIVersion      string `koanf:"api_version"`
	APIRefreshToken string `koanf:"api_refresh_token"`
	APITokenTTLSec  int    `koanf:"api_token_ttl_sec"`
	APIRateLimitRPS int    `koanf:"api_rate_limit_rps"`
	APITimeoutMs    int    `koanf:"api_timeout_ms"`

	MatchOKThreshold     float64 `koanf:"match_ok_threshold"`
	MatchReviewThreshold float64 `koanf:"match_review_threshold"`
	MatchGapThreshold    float64 `koanf:"match_gap_threshold"`

	GmailClientID     string `koanf:"gmail_client_id"`
	GmailClientSecret string `koanf:"gmail_client_secret"`
	GmailRedirectURI  string `koanf:"gmail_redirect_uri"`
	GmailRefreshToken string `koanf:"gmail_refresh_token"`

	IMAPHost     string `koanf:"imap_host"`
	IMAPPort     int    `koanf:"imap_port"`
	IMAPSecure   bool   `koanf:"imap_secure"`
	IMAPUser     string `koanf:"imap_user"`
	IMAPPassword string `koanf:"imap_password"`
	IMAPMarkSeen bool   `koanf:"imap_mark_seen"`

	ListenerProvider     string `koanf:"listener_provider"`
	ListenerLabel        string `koanf:"listener_label"`
	ListenerIntervalSec  int    `koanf:"listener_interval_sec"`
	ListenerFetchMax     int    `koanf:"listener_fetch_max"`
	ListenerProcessBatch int    `koanf:"listener_process_batch"`
	ListenerSync         bool   `koanf:"listener_sync"`
	StatusAddr           string `koanf:"status_addr"`

	ResultsPageURL string `koanf:"results_page_url"`
}

func defaults(cwd string) Config {
	return Config{
		DBPath:     filepath.Join(cwd, "data", "liftsync.db"),
		InboxDir:   filepath.Join(cwd, "data", "inbox"),
		RawMailDir: filepath.Join(cwd, "data", "raw"),
		OutputDir:  filepath.Join(cwd, "out"),

		LogLevel:  "info",
		LogFormat: "text",

		APIBaseURL:      "http://localhost:8000",
		APIVersion:      "v1",
		APITokenTTLSec:  240,
		APIRateLimitRPS: 5,
		APITimeoutMs:    30000,

		MatchOKThreshold:     0.90,
		MatchReviewThreshold: 0.72,
		MatchGapThreshold:    0.08,

		GmailRedirectURI: "https://developers.google.com/oauthplayground",

		IMAPPort:   993,
		IMAPSecure: true,

		ListenerProvider:     "imap",
		ListenerLabel:        "INBOX",
		ListenerIntervalSec:  60,
		ListenerFetchMax:     20,
		ListenerProcessBatch: 20,
		StatusAddr:           ":9090",
	}
}

// Load layers defaults, an optional YAML file named by LIFTSYNC_CONFIG
// and LIFTSYNC_* variables, lowest to highest. A .env file in the
// working directory is read into the environment first.
func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	k := koanf.New(".")
	if path := os.Getenv(configFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load %s: %w", path, err)
		}
	}
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return Config{}, err
	}

	cfg := defaults(cwd)
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Config{}, err
	}
	if cfg.MatchReviewThreshold > cfg.MatchOKThreshold {
		return Config{}, fmt.Errorf("match_review_threshold %.2f is above match_ok_threshold %.2f", cfg.MatchReviewThreshold, cfg.MatchOKThreshold)
	}
	return cfg, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required setting: %s", name)
	}
	return nil
}

// APIEndpoint is the versioned root of the results store API.
func (c Config) APIEndpoint() string {
	return strings.TrimRight(c.APIBaseURL, "/") + "/" + strings.Trim(c.APIVersion, "/")
}

// Package config loads and validates monitor configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // daily.timezone must resolve on hosts without zoneinfo

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/JakeFAU/gazette-watch/internal/gazette"
	"github.com/JakeFAU/gazette-watch/internal/history"
	"github.com/JakeFAU/gazette-watch/internal/history/postgres"
)

// DatePlaceholder must appear in daily.viewer_url.
const DatePlaceholder = "{date}"

// Archive providers.
const (
	ArchiveNone  = "none"
	ArchiveLocal = "local"
	ArchiveGCS   = "gcs"
)

// Config captures all monitor configuration knobs loaded via Viper.
type Config struct {
	Watchlist []gazette.WatchedPerson `mapstructure:"watchlist"`
	HTTP      HTTPConfig              `mapstructure:"http"`
	Extra     ExtraConfig             `mapstructure:"extra"`
	Daily     DailyConfig             `mapstructure:"daily"`
	History   HistoryConfig           `mapstructure:"history"`
	Archive   ArchiveConfig           `mapstructure:"archive"`
	Notify    NotifyConfig            `mapstructure:"notify"`
	Metrics   MetricsConfig           `mapstructure:"metrics"`
	Run       RunConfig               `mapstructure:"run"`
	Logging   LoggingConfig           `mapstructure:"logging"`
}

// HTTPConfig controls plain HTTP downloads.
type HTTPConfig struct {
	UserAgent       string        `mapstructure:"user_agent"`
	IndexTimeout    time.Duration `mapstructure:"index_timeout"`
	DocumentTimeout time.Duration `mapstructure:"document_timeout"`
	MaxBodyBytes    int           `mapstructure:"max_body_bytes"`

	// RequestsPerSecond caps downloads per host; 0 disables the limiter.
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// ExtraConfig configures the extra-edition index scrape.
type ExtraConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	IndexURL  string `mapstructure:"index_url"`
	Marker    string `mapstructure:"marker"`
	Extension string `mapstructure:"extension"`
}

// DailyConfig configures the daily-edition capture.
type DailyConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	ViewerURL         string        `mapstructure:"viewer_url"`
	DateLayout        string        `mapstructure:"date_layout"`
	Timezone          string        `mapstructure:"timezone"`
	StorageHost       string        `mapstructure:"storage_host"`
	Extension         string        `mapstructure:"extension"`
	TitlePrefix       string        `mapstructure:"title_prefix"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout"`
	CaptureWait       time.Duration `mapstructure:"capture_wait"`
	ChromePath        string        `mapstructure:"chrome_path"`
	NoSandbox         bool          `mapstructure:"no_sandbox"`
}

// HistoryConfig selects and configures the history backend.
type HistoryConfig struct {
	Provider     string                `mapstructure:"provider"`
	RecordPolicy gazette.RecordPolicy  `mapstructure:"record_policy"`
	File         HistoryFileConfig     `mapstructure:"file"`
	SQLite       HistorySQLiteConfig   `mapstructure:"sqlite"`
	Postgres     HistoryPostgresConfig `mapstructure:"postgres"`
	GCS          HistoryGCSConfig      `mapstructure:"gcs"`
}

// HistoryFileConfig locates the JSON history file.
type HistoryFileConfig struct {
	Path string `mapstructure:"path"`
}

// HistorySQLiteConfig locates the SQLite database.
type HistorySQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// HistoryPostgresConfig controls the Postgres connection.
type HistoryPostgresConfig struct {
	DSN             string        `mapstructure:"dsn"`
	Table           string        `mapstructure:"table"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// HistoryGCSConfig names the history object.
type HistoryGCSConfig struct {
	Bucket string `mapstructure:"bucket"`
	Object string `mapstructure:"object"`
}

// ArchiveConfig controls where downloaded documents are kept.
type ArchiveConfig struct {
	Provider string `mapstructure:"provider"`
	Prefix   string `mapstructure:"prefix"`
	BaseDir  string `mapstructure:"base_dir"`
	Bucket   string `mapstructure:"bucket"`
}

// NotifyConfig holds every notification channel.
type NotifyConfig struct {
	Email  EmailConfig  `mapstructure:"email"`
	PubSub PubSubConfig `mapstructure:"pubsub"`
}

// EmailConfig holds SMTP settings. Missing credentials disable email.
type EmailConfig struct {
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	From     string        `mapstructure:"from"`
	Password string        `mapstructure:"password"`
	To       string        `mapstructure:"to"`
	Subject  string        `mapstructure:"subject"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// PubSubConfig enables report fan-out when both fields are set.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// Enabled reports whether Pub/Sub publishing is configured.
func (p PubSubConfig) Enabled() bool {
	return p.ProjectID != "" && p.Topic != ""
}

// MetricsConfig controls the optional Pushgateway export.
type MetricsConfig struct {
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	Job            string `mapstructure:"job"`
}

// RunConfig tunes run-level behavior.
type RunConfig struct {
	FailOnDiscoveryOutage bool `mapstructure:"fail_on_discovery_outage"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// LoadDotEnv reads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is ignored.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("GAZETTE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindLegacyEnv(v); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.user_agent", "Mozilla/5.0 (compatible; gazette-watch/1.0)")
	v.SetDefault("http.index_timeout", 30*time.Second)
	v.SetDefault("http.document_timeout", 120*time.Second)
	v.SetDefault("http.max_body_bytes", 0)
	v.SetDefault("http.requests_per_second", 2.0)
	v.SetDefault("http.burst", 1)
	v.SetDefault("extra.enabled", true)
	v.SetDefault("extra.index_url", "https://www.diariooficial.rn.gov.br/dei/dorn3/")
	v.SetDefault("extra.marker", "Edição Extra")
	v.SetDefault("extra.extension", ".pdf")
	v.SetDefault("daily.enabled", true)
	v.SetDefault("daily.viewer_url", "https://deirn.sdoe.com.br/diariooficialweb/#/visualizar-jornal?dataPublicacao={date}&diario=MTIx&extra=false")
	v.SetDefault("daily.date_layout", "02-01-2006")
	v.SetDefault("daily.timezone", "America/Sao_Paulo")
	v.SetDefault("daily.storage_host", "cepebr-prod.s3.sa-east-1.amazonaws.com")
	v.SetDefault("daily.extension", ".pdf")
	v.SetDefault("daily.title_prefix", "Diário Oficial do Dia")
	v.SetDefault("daily.navigation_timeout", 90*time.Second)
	v.SetDefault("daily.capture_wait", 20*time.Second)
	v.SetDefault("daily.chrome_path", "")
	v.SetDefault("daily.no_sandbox", false)
	v.SetDefault("history.provider", history.ProviderFile)
	v.SetDefault("history.record_policy", string(gazette.RecordMatched))
	v.SetDefault("history.file.path", "historico_alertas.json")
	v.SetDefault("history.sqlite.path", "gazette-watch.db")
	v.SetDefault("history.postgres.dsn", "")
	v.SetDefault("history.postgres.table", "processed_documents")
	v.SetDefault("history.postgres.max_conns", 2)
	v.SetDefault("history.gcs.bucket", "")
	v.SetDefault("history.gcs.object", "historico_alertas.json")
	v.SetDefault("archive.provider", ArchiveNone)
	v.SetDefault("archive.prefix", "gazettes")
	v.SetDefault("archive.base_dir", "archive")
	v.SetDefault("archive.bucket", "")
	v.SetDefault("notify.email.host", "smtp.gmail.com")
	v.SetDefault("notify.email.port", 465)
	v.SetDefault("notify.email.subject", "Alerta de Monitoramento - Diário Oficial RN")
	v.SetDefault("notify.email.timeout", 30*time.Second)
	v.SetDefault("notify.pubsub.project_id", "")
	v.SetDefault("notify.pubsub.topic", "")
	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("metrics.job", "gazette_watch")
	v.SetDefault("run.fail_on_discovery_outage", false)
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "")
}

// bindLegacyEnv keeps the variable names used by earlier deployments working
// next to the prefixed ones. The prefixed name wins when both are set.
func bindLegacyEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"notify.email.from":     {"GAZETTE_NOTIFY_EMAIL_FROM", "EMAIL_REMETENTE"},
		"notify.email.password": {"GAZETTE_NOTIFY_EMAIL_PASSWORD", "EMAIL_SENHA"},
		"notify.email.to":       {"GAZETTE_NOTIFY_EMAIL_TO", "EMAIL_DESTINATARIO"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}
	return nil
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if err := c.validateWatchlist(); err != nil {
		return err
	}
	if !c.Extra.Enabled && !c.Daily.Enabled {
		return fmt.Errorf("at least one of extra.enabled or daily.enabled must be true")
	}
	if c.HTTP.IndexTimeout <= 0 || c.HTTP.DocumentTimeout <= 0 {
		return fmt.Errorf("http timeouts must be > 0")
	}
	if c.HTTP.MaxBodyBytes < 0 {
		return fmt.Errorf("http.max_body_bytes must be >= 0")
	}
	if c.HTTP.RequestsPerSecond < 0 || c.HTTP.Burst < 0 {
		return fmt.Errorf("http rate limit must be >= 0")
	}
	if c.Extra.Enabled && c.Extra.IndexURL == "" {
		return fmt.Errorf("extra.index_url is required when extra editions are enabled")
	}
	if c.Daily.Enabled {
		if err := c.validateDaily(); err != nil {
			return err
		}
	}
	if err := c.validateHistory(); err != nil {
		return err
	}
	if err := c.validateArchive(); err != nil {
		return err
	}
	if (c.Notify.PubSub.ProjectID == "") != (c.Notify.PubSub.Topic == "") {
		return fmt.Errorf("notify.pubsub.project_id and notify.pubsub.topic must be set together")
	}
	if c.Notify.Email.Port <= 0 || c.Notify.Email.Timeout <= 0 {
		return fmt.Errorf("notify.email.port and notify.email.timeout must be > 0")
	}
	return nil
}

func (c Config) validateWatchlist() error {
	if len(c.Watchlist) == 0 {
		return fmt.Errorf("watchlist must contain at least one person")
	}
	seen := make(map[string]struct{}, len(c.Watchlist))
	for i, p := range c.Watchlist {
		if !p.HasIdentifier() {
			return fmt.Errorf("watchlist[%d]: at least one of full_name, registration_number, tax_id is required", i)
		}
		name := strings.ToLower(strings.Join(strings.Fields(p.FullName), " "))
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("watchlist[%d]: duplicate full_name %q", i, p.FullName)
		}
		seen[name] = struct{}{}
	}
	return nil
}

func (c Config) validateDaily() error {
	if !strings.Contains(c.Daily.ViewerURL, DatePlaceholder) {
		return fmt.Errorf("daily.viewer_url must contain %s", DatePlaceholder)
	}
	if c.Daily.StorageHost == "" || c.Daily.Extension == "" {
		return fmt.Errorf("daily.storage_host and daily.extension are required")
	}
	if c.Daily.NavigationTimeout <= 0 || c.Daily.CaptureWait <= 0 {
		return fmt.Errorf("daily.navigation_timeout and daily.capture_wait must be > 0")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

func (c Config) validateHistory() error {
	if !c.History.RecordPolicy.Valid() {
		return fmt.Errorf("history.record_policy must be %q or %q, got %q",
			gazette.RecordMatched, gazette.RecordScanned, c.History.RecordPolicy)
	}
	switch c.History.Provider {
	case history.ProviderFile:
		if c.History.File.Path == "" {
			return fmt.Errorf("history.file.path is required")
		}
	case history.ProviderSQLite:
		if c.History.SQLite.Path == "" {
			return fmt.Errorf("history.sqlite.path is required")
		}
	case history.ProviderPostgres:
		if c.History.Postgres.DSN == "" {
			return fmt.Errorf("history.postgres.dsn is required")
		}
	case history.ProviderGCS:
		if c.History.GCS.Bucket == "" || c.History.GCS.Object == "" {
			return fmt.Errorf("history.gcs.bucket and history.gcs.object are required")
		}
	case history.ProviderMemory:
	default:
		return fmt.Errorf("%w: %q", history.ErrUnknownProvider, c.History.Provider)
	}
	return nil
}

func (c Config) validateArchive() error {
	switch c.Archive.Provider {
	case ArchiveNone:
	case ArchiveLocal:
		if c.Archive.BaseDir == "" {
			return fmt.Errorf("archive.base_dir is required for the local archive")
		}
	case ArchiveGCS:
		if c.Archive.Bucket == "" {
			return fmt.Errorf("archive.bucket is required for the gcs archive")
		}
	default:
		return fmt.Errorf("unknown archive.provider %q", c.Archive.Provider)
	}
	return nil
}

// Location resolves daily.timezone.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Daily.Timezone)
	if err != nil {
		return nil, fmt.Errorf("daily.timezone: %w", err)
	}
	return loc, nil
}

// HistoryOptions converts the history section for history.Open.
func (c Config) HistoryOptions() history.Options {
	return history.Options{
		Provider:   c.History.Provider,
		FilePath:   c.History.File.Path,
		SQLitePath: c.History.SQLite.Path,
		Postgres: postgres.Config{
			DSN:             c.History.Postgres.DSN,
			Table:           c.History.Postgres.Table,
			MaxConns:        c.History.Postgres.MaxConns,
			MaxConnLifetime: c.History.Postgres.MaxConnLifetime,
		},
		GCSBucket:  c.History.GCS.Bucket,
		GCSObject:  c.History.GCS.Object,
	}
}

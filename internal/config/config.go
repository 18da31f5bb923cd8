// Package config loads tillsync settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron/v3"
)

// EnvPrefix is the prefix of every tillsync environment variable.
const EnvPrefix = "TILLSYNC"

// Tie policies accepted by TILLSYNC_MERGE_TIE_POLICY.
const (
	TiePolicyKeepExisting   = "keep-existing"
	TiePolicyPreferIncoming = "prefer-incoming"
)

// Config is the complete runtime configuration.
type Config struct {
	Store        StoreConfig
	Log          LogConfig
	Remote       RemoteConfig
	Auth         AuthConfig
	Replication  ReplicationConfig
	Connectivity ConnectivityConfig
	Scheduler    SchedulerConfig
	Metrics      MetricsConfig
}

type StoreConfig struct {
	Path           string        `envconfig:"TILLSYNC_DB_PATH" default:"tillsync.db"`
	LockRetryDelay time.Duration `envconfig:"TILLSYNC_DB_LOCK_RETRY_DELAY" default:"250ms"`
	TiePolicy      string        `envconfig:"TILLSYNC_MERGE_TIE_POLICY" default:"keep-existing"`
}

type LogConfig struct {
	Level  string `envconfig:"TILLSYNC_LOG_LEVEL" default:"info"`
	Format string `envconfig:"TILLSYNC_LOG_FORMAT" default:"json"`
}

type RemoteConfig struct {
	BaseURL string        `envconfig:"TILLSYNC_REMOTE_URL"`
	Timeout time.Duration `envconfig:"TILLSYNC_REMOTE_TIMEOUT" default:"10s"`
	Token   string        `envconfig:"TILLSYNC_REMOTE_TOKEN"`
}

type AuthConfig struct {
	JWTSecret string `envconfig:"TILLSYNC_JWT_SECRET"`
	JWTIssuer string `envconfig:"TILLSYNC_JWT_ISSUER"`
}

type ReplicationConfig struct {
	GCPProject                string `envconfig:"TILLSYNC_GCP_PROJECT"`
	NotificationsSubscription string `envconfig:"TILLSYNC_NOTIFICATIONS_SUBSCRIPTION"`
}

// Enabled reports whether an inbound notification feed is configured.
func (r ReplicationConfig) Enabled() bool {
	return strings.TrimSpace(r.GCPProject) != "" && strings.TrimSpace(r.NotificationsSubscription) != ""
}

type ConnectivityConfig struct {
	ProbeInterval       time.Duration `envconfig:"TILLSYNC_PROBE_INTERVAL" default:"30s"`
	NetworkPollInterval time.Duration `envconfig:"TILLSYNC_NETWORK_POLL_INTERVAL" default:"5s"`
}

type SchedulerConfig struct {
	ReconcileSchedule string `envconfig:"TILLSYNC_RECONCILE_SCHEDULE" default:"@every 1m"`
	RefreshSchedule   string `envconfig:"TILLSYNC_REFRESH_SCHEDULE" default:"@every 15m"`
}

type MetricsConfig struct {
	Addr string `envconfig:"TILLSYNC_METRICS_ADDR"`
}

// Load reads optional dotenv files, then the environment. Missing dotenv
// files are ignored; variables already set in the environment win.
func Load(envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !isNotExist(err) {
			return nil, fmt.Errorf("loading %s: %w", f, err)
		}
	}
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints envconfig cannot express.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Store.Path) == "" {
		errs = append(errs, errors.New("TILLSYNC_DB_PATH must not be empty"))
	}
	switch c.Store.TiePolicy {
	case TiePolicyKeepExisting, TiePolicyPreferIncoming:
	default:
		errs = append(errs, fmt.Errorf("TILLSYNC_MERGE_TIE_POLICY %q: must be %q or %q",
			c.Store.TiePolicy, TiePolicyKeepExisting, TiePolicyPreferIncoming))
	}
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	for name, spec := range map[string]string{
		"TILLSYNC_RECONCILE_SCHEDULE": c.Scheduler.ReconcileSchedule,
		"TILLSYNC_REFRESH_SCHEDULE":   c.Scheduler.RefreshSchedule,
	} {
		if _, err := parser.Parse(spec); err != nil {
			errs = append(errs, fmt.Errorf("%s %q: %w", name, spec, err))
		}
	}
	if c.Connectivity.ProbeInterval <= 0 {
		errs = append(errs, errors.New("TILLSYNC_PROBE_INTERVAL must be positive"))
	}
	return errors.Join(errs...)
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

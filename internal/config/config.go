package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv = "KSX_CONFIG"
	portalURLEnv  = "KSX_PORTAL_URL"
	usernameEnv   = "KSX_USERNAME"
	passwordEnv   = "KSX_PASSWORD"
	dataDirEnv    = "KSX_DATA_DIR"
)

// Config holds high-level settings required across the application.
type Config struct {
	Portal    PortalConfig    `yaml:"portal"`
	Browser   BrowserConfig   `yaml:"browser"`
	Store     StoreConfig     `yaml:"store"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// PortalConfig describes the reporting portal and its credentials.
type PortalConfig struct {
	URL      string `yaml:"url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	// Endpoint is the URL fragment identifying reporting responses.
	Endpoint string `yaml:"endpoint"`
}

// BrowserConfig tunes the automated session.
type BrowserConfig struct {
	Headless         bool `yaml:"headless"`
	NavTimeoutMs     int  `yaml:"navTimeoutMs"`
	WaitTimeoutMs    int  `yaml:"waitTimeoutMs"`
	MaxPages         int  `yaml:"maxPages"`
	FetchAttempts    int  `yaml:"fetchAttempts"`
	InitialBackoffMs int  `yaml:"initialBackoffMs"`
}

// NavTimeout returns the page-navigation budget.
func (b BrowserConfig) NavTimeout() time.Duration {
	return time.Duration(b.NavTimeoutMs) * time.Millisecond
}

// WaitTimeout returns the per-wait budget for element and mailbox waits.
func (b BrowserConfig) WaitTimeout() time.Duration {
	return time.Duration(b.WaitTimeoutMs) * time.Millisecond
}

// InitialBackoff returns the first retry delay.
func (b BrowserConfig) InitialBackoff() time.Duration {
	return time.Duration(b.InitialBackoffMs) * time.Millisecond
}

// StoreConfig locates the sharded database and its retention window.
type StoreConfig struct {
	DataDir    string `yaml:"dataDir"`
	KeepMonths int    `yaml:"keepMonths"`
}

// Reading modes for reconciliation. Full compares every workbook day;
// incremental stops at each entity's ingested-through watermark.
const (
	ModeFull        = "full"
	ModeIncremental = "incremental"
)

// ReconcileConfig pins reconciliation behavior.
type ReconcileConfig struct {
	// DateOffsetDays is the fixed shift between spreadsheet dates and
	// stored dates: spreadsheet day D maps to stored day D-offset. Kept
	// configurable because the offset is observed, not contractual.
	DateOffsetDays int     `yaml:"dateOffsetDays"`
	Epsilon        float64 `yaml:"epsilon"`
	// Mode is the reading mode, ModeFull or ModeIncremental.
	Mode string `yaml:"mode"`
	// Fields restricts comparison to the named metric keys; empty means
	// every comparable metric.
	Fields    []string `yaml:"fields"`
	ExportDir string   `yaml:"exportDir"`
}

// LoggingConfig selects the console log level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(portalURLEnv); v != "" {
		c.Portal.URL = v
	}
	if v := os.Getenv(usernameEnv); v != "" {
		c.Portal.Username = v
	}
	if v := os.Getenv(passwordEnv); v != "" {
		c.Portal.Password = v
	}
	if v := os.Getenv(dataDirEnv); v != "" {
		c.Store.DataDir = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Portal.URL != "" {
		base.Portal.URL = override.Portal.URL
	}
	if override.Portal.Username != "" {
		base.Portal.Username = override.Portal.Username
	}
	if override.Portal.Password != "" {
		base.Portal.Password = override.Portal.Password
	}
	if override.Portal.Endpoint != "" {
		base.Portal.Endpoint = override.Portal.Endpoint
	}

	if override.Browser.NavTimeoutMs > 0 {
		base.Browser.NavTimeoutMs = override.Browser.NavTimeoutMs
	}
	if override.Browser.WaitTimeoutMs > 0 {
		base.Browser.WaitTimeoutMs = override.Browser.WaitTimeoutMs
	}
	if override.Browser.MaxPages > 0 {
		base.Browser.MaxPages = override.Browser.MaxPages
	}
	if override.Browser.FetchAttempts > 0 {
		base.Browser.FetchAttempts = override.Browser.FetchAttempts
	}
	if override.Browser.InitialBackoffMs > 0 {
		base.Browser.InitialBackoffMs = override.Browser.InitialBackoffMs
	}
	if override.Browser.Headless {
		base.Browser.Headless = true
	}

	if override.Store.DataDir != "" {
		base.Store.DataDir = override.Store.DataDir
	}
	if override.Store.KeepMonths > 0 {
		base.Store.KeepMonths = override.Store.KeepMonths
	}

	if override.Reconcile.DateOffsetDays != 0 {
		base.Reconcile.DateOffsetDays = override.Reconcile.DateOffsetDays
	}
	if override.Reconcile.Epsilon > 0 {
		base.Reconcile.Epsilon = override.Reconcile.Epsilon
	}
	if override.Reconcile.Mode != "" {
		base.Reconcile.Mode = override.Reconcile.Mode
	}
	if len(override.Reconcile.Fields) > 0 {
		base.Reconcile.Fields = override.Reconcile.Fields
	}
	if override.Reconcile.ExportDir != "" {
		base.Reconcile.ExportDir = override.Reconcile.ExportDir
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Portal: PortalConfig{
			URL:      "https://ksx.dahuafuli.com:8306/",
			Endpoint: "/UIProcessor",
		},
		Browser: BrowserConfig{
			Headless:         true,
			NavTimeoutMs:     30000,
			WaitTimeoutMs:    10000,
			MaxPages:         20,
			FetchAttempts:    5,
			InitialBackoffMs: 500,
		},
		Store: StoreConfig{
			DataDir:    "database",
			KeepMonths: 1,
		},
		Reconcile: ReconcileConfig{
			DateOffsetDays: 1,
			Epsilon:        0.0001,
			Mode:           ModeFull,
			ExportDir:      "exports",
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

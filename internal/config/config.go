package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	// DataDir is the base directory for the audit store, snapshots,
	// the ops journal and the monitor state file.
	DataDir string `json:"dataDir" yaml:"dataDir"`

	Store     StoreConfig     `json:"store" yaml:"store"`
	Retention RetentionConfig `json:"retention" yaml:"retention"`
	Monitor   MonitorConfig   `json:"monitor" yaml:"monitor"`
	Notify    NotifyConfig    `json:"notify" yaml:"notify"`
	Replica   ReplicaConfig   `json:"replica" yaml:"replica"`
	Server    ServerConfig    `json:"server" yaml:"server"`
	OpsLog    OpsLogConfig    `json:"opsLog" yaml:"opsLog"`
}

// StoreConfig locates the live audit store.
type StoreConfig struct {
	// Name is the store base name; encodings live at <dir>/<name>.jsonl
	// and <dir>/<name>.csv.
	Name string `json:"name" yaml:"name"`
	// Dir overrides the store directory. Empty means <dataDir>/audit_logs.
	Dir string `json:"dir" yaml:"dir"`
}

// RetentionConfig controls snapshot archiving of the audit store.
type RetentionConfig struct {
	// MaxAgeDays is the archive retention window. Archives older than this
	// are pruned; the live store is never touched.
	MaxAgeDays int `json:"maxAgeDays" yaml:"maxAgeDays"`
	// Dir overrides the archive directory. Empty means <dataDir>/archives.
	Dir string `json:"dir" yaml:"dir"`
}

// MonitorConfig controls the service health monitor.
type MonitorConfig struct {
	// Service is the supervised unit name, e.g. "trading-bot.service".
	Service string `json:"service" yaml:"service"`
	// IntervalSec is the sampling tick in seconds.
	IntervalSec int `json:"intervalSec" yaml:"intervalSec"`
	// StateFile overrides the persisted-state path. Empty means
	// <dataDir>/monitor_state.json.
	StateFile string `json:"stateFile" yaml:"stateFile"`
	// Host is the host label used in notifications. Empty means os.Hostname.
	Host string `json:"host" yaml:"host"`
}

// NotifyConfig selects notification sinks. Unset sinks are skipped.
type NotifyConfig struct {
	Telegram TelegramConfig `json:"telegram" yaml:"telegram"`
	NATS     NATSConfig     `json:"nats" yaml:"nats"`
}

// TelegramConfig configures the Telegram Bot API sink.
type TelegramConfig struct {
	Token  string `json:"token" yaml:"token"`
	ChatID string `json:"chatId" yaml:"chatId"`
	// APIBase overrides the Bot API endpoint. Empty means the public API.
	APIBase string `json:"apiBase" yaml:"apiBase"`
	// TimeoutSec bounds each sendMessage call. Zero means 15.
	TimeoutSec int `json:"timeoutSec" yaml:"timeoutSec"`
}

// NATSConfig configures the NATS publisher sink.
type NATSConfig struct {
	URL     string `json:"url" yaml:"url"`
	Subject string `json:"subject" yaml:"subject"`
}

// ReplicaConfig configures synchronization with the remote replica.
type ReplicaConfig struct {
	// PeerURL is the base URL of the peer's HTTP API.
	PeerURL string `json:"peerUrl" yaml:"peerUrl"`
	// TimeoutSec bounds every transport call. Zero means 15.
	TimeoutSec int `json:"timeoutSec" yaml:"timeoutSec"`
}

// ServerConfig holds listen addresses.
type ServerConfig struct {
	HTTPAddr string `json:"httpAddr" yaml:"httpAddr"`
	GRPCAddr string `json:"grpcAddr" yaml:"grpcAddr"`
}

// OpsLogConfig controls the pebble-backed operational journal.
type OpsLogConfig struct {
	// Dir overrides the journal directory. Empty means <dataDir>/opslog.
	Dir string `json:"dir" yaml:"dir"`
	// MaxAgeDays trims journal entries older than this. Zero disables trims.
	MaxAgeDays int `json:"maxAgeDays" yaml:"maxAgeDays"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		Store: StoreConfig{Name: "trades_audit"},
		Retention: RetentionConfig{
			MaxAgeDays: 30,
		},
		Monitor: MonitorConfig{
			Service:     "trading-bot.service",
			IntervalSec: 60,
		},
		Replica: ReplicaConfig{TimeoutSec: 15},
		Server: ServerConfig{
			HTTPAddr: ":8787",
			GRPCAddr: ":50052",
		},
		OpsLog: OpsLogConfig{MaxAgeDays: 90},
	}
}

// Load reads configuration from a JSON or YAML file (by extension). If path
// is empty, returns defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	return cfg, nil
}

// StoreDir resolves the live store directory.
func (c Config) StoreDir() string {
	if c.Store.Dir != "" {
		return c.Store.Dir
	}
	return filepath.Join(c.dataDir(), "audit_logs")
}

// ArchiveDir resolves the snapshot archive directory.
func (c Config) ArchiveDir() string {
	if c.Retention.Dir != "" {
		return c.Retention.Dir
	}
	return filepath.Join(c.dataDir(), "archives")
}

// StateFile resolves the monitor state file path.
func (c Config) StateFile() string {
	if c.Monitor.StateFile != "" {
		return c.Monitor.StateFile
	}
	return filepath.Join(c.dataDir(), "monitor_state.json")
}

// OpsLogDir resolves the ops journal directory.
func (c Config) OpsLogDir() string {
	if c.OpsLog.Dir != "" {
		return c.OpsLog.Dir
	}
	return filepath.Join(c.dataDir(), "opslog")
}

// MonitorInterval resolves the sampling tick.
func (c Config) MonitorInterval() time.Duration {
	if c.Monitor.IntervalSec <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.Monitor.IntervalSec) * time.Second
}

// ReplicaTimeout resolves the transport bound.
func (c Config) ReplicaTimeout() time.Duration {
	if c.Replica.TimeoutSec <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.Replica.TimeoutSec) * time.Second
}

func (c Config) dataDir() string {
	if c.DataDir != "" {
		return c.DataDir
	}
	return DefaultDataDir()
}

// DefaultDataDir picks a data location for hosts that do not configure one:
// $XDG_DATA_HOME/botops when set, /var/lib/botops where that tree exists,
// the macOS application-support directory, otherwise a dotdir under home.
// A process with no resolvable home gets a relative ./data.
func DefaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "botops")
	}
	if st, err := os.Stat("/var/lib"); err == nil && st.IsDir() {
		return "/var/lib/botops"
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "./data"
	}
	if st, err := os.Stat(filepath.Join(home, "Library")); err == nil && st.IsDir() {
		return filepath.Join(home, "Library", "Application Support", "Botops")
	}
	return filepath.Join(home, ".botops")
}

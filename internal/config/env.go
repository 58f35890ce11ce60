package config

import (
	"os"
	"strconv"
)

// FromEnv overlays BOTOPS_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	setStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	setStr("BOTOPS_DATA_DIR", &cfg.DataDir)
	setStr("BOTOPS_STORE_NAME", &cfg.Store.Name)
	setStr("BOTOPS_STORE_DIR", &cfg.Store.Dir)
	setInt("BOTOPS_RETENTION_MAX_AGE_DAYS", &cfg.Retention.MaxAgeDays)
	setStr("BOTOPS_RETENTION_DIR", &cfg.Retention.Dir)
	setStr("BOTOPS_MONITOR_SERVICE", &cfg.Monitor.Service)
	setInt("BOTOPS_MONITOR_INTERVAL_SEC", &cfg.Monitor.IntervalSec)
	setStr("BOTOPS_MONITOR_STATE_FILE", &cfg.Monitor.StateFile)
	setStr("BOTOPS_MONITOR_HOST", &cfg.Monitor.Host)
	setStr("TELEGRAM_BOT_TOKEN", &cfg.Notify.Telegram.Token)
	setStr("TELEGRAM_CHAT_ID", &cfg.Notify.Telegram.ChatID)
	setStr("BOTOPS_TELEGRAM_API_BASE", &cfg.Notify.Telegram.APIBase)
	setStr("BOTOPS_NATS_URL", &cfg.Notify.NATS.URL)
	setStr("BOTOPS_NATS_SUBJECT", &cfg.Notify.NATS.Subject)
	setStr("BOTOPS_REPLICA_PEER_URL", &cfg.Replica.PeerURL)
	setInt("BOTOPS_REPLICA_TIMEOUT_SEC", &cfg.Replica.TimeoutSec)
	setStr("BOTOPS_HTTP_ADDR", &cfg.Server.HTTPAddr)
	setStr("BOTOPS_GRPC_ADDR", &cfg.Server.GRPCAddr)
	setStr("BOTOPS_OPSLOG_DIR", &cfg.OpsLog.Dir)
	setInt("BOTOPS_OPSLOG_MAX_AGE_DAYS", &cfg.OpsLog.MaxAgeDays)
}

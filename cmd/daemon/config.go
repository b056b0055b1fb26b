package main

import (
	"os"
	"strconv"

	"github.com/dgnsrekt/tastygex/internal/config"
)

// configPath locates the shared YAML config.
func configPath() string {
	return getEnvOrDefault("DAEMON_CONFIG_PATH", "/app/configs/default.yaml")
}

// applyDaemonEnv lets container deployments override the daemon section
// without editing the YAML file.
func applyDaemonEnv(d *config.DaemonConfig) {
	d.IntervalMin = getEnvIntOrDefault("DAEMON_INTERVAL_MIN", d.IntervalMin)
	d.Timezone = getEnvOrDefault("DAEMON_TIMEZONE", d.Timezone)
	d.StateFile = getEnvOrDefault("DAEMON_STATE_FILE", d.StateFile)
	d.RunOnStartup = getEnvBoolOrDefault("DAEMON_RUN_ON_STARTUP", d.RunOnStartup)
	if d.IntervalMin < 1 {
		d.IntervalMin = 1
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds process-wide settings. Values come from a config file
// (migrationtool.yaml next to the binary or in the working directory) and
// MIGRATION_* environment variables, env taking precedence.
type Config struct {
	DatabaseURL    string
	Debug          bool
	DBMaxOpenConns int
	DBMaxIdleConns int

	// OwnOAuthClientID is the client id this tool deploys credentials with.
	// Sync flags mirrored credentials whose DeployedBy matches it, since their
	// secrets must be re-entered manually after migration.
	OwnOAuthClientID string

	// DeepPackageAnalysis enables download-and-inspect of custom packages
	// during sync (script env-var scan, client-certificate sender scan).
	DeepPackageAnalysis bool

	// DeleteTargetBeforeCopy removes an existing target package before a full
	// copy, working around partial overwrite support in the remote API.
	DeleteTargetBeforeCopy bool

	// Poll loop tuning. Interval applies to every poll-until-terminal loop;
	// the max waits are category specific.
	PollInterval           time.Duration
	FlowDeployMaxWait      time.Duration
	DataStoreMaxWait       time.Duration
	ServiceInstanceMaxWait time.Duration
}

// Load reads configuration with defaults matching production behavior.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("migrationtool")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.migrationtool")

	v.SetDefault("database_url", "sqlite://./migrationtool.db")
	v.SetDefault("debug", false)
	v.SetDefault("db_max_open_conns", 25)
	v.SetDefault("db_max_idle_conns", 5)
	v.SetDefault("own_oauth_client_id", "")
	v.SetDefault("deep_package_analysis", true)
	v.SetDefault("delete_target_before_copy", false)
	v.SetDefault("poll_interval", "5s")
	v.SetDefault("flow_deploy_max_wait", "3m")
	v.SetDefault("data_store_max_wait", "5m")
	v.SetDefault("service_instance_max_wait", "2m")

	v.SetEnvPrefix("MIGRATION")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, everything has a default.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	return &Config{
		DatabaseURL:            v.GetString("database_url"),
		Debug:                  v.GetBool("debug"),
		DBMaxOpenConns:         v.GetInt("db_max_open_conns"),
		DBMaxIdleConns:         v.GetInt("db_max_idle_conns"),
		OwnOAuthClientID:       v.GetString("own_oauth_client_id"),
		DeepPackageAnalysis:    v.GetBool("deep_package_analysis"),
		DeleteTargetBeforeCopy: v.GetBool("delete_target_before_copy"),
		PollInterval:           v.GetDuration("poll_interval"),
		FlowDeployMaxWait:      v.GetDuration("flow_deploy_max_wait"),
		DataStoreMaxWait:       v.GetDuration("data_store_max_wait"),
		ServiceInstanceMaxWait: v.GetDuration("service_instance_max_wait"),
	}, nil
}

// Default returns a Config with all defaults and no file/env lookup. Used by
// tests and as a fallback when no configuration is present.
func Default() *Config {
	return &Config{
		DatabaseURL:            "sqlite://./migrationtool.db",
		DBMaxOpenConns:         25,
		DBMaxIdleConns:         5,
		DeepPackageAnalysis:    true,
		PollInterval:           5 * time.Second,
		FlowDeployMaxWait:      3 * time.Minute,
		DataStoreMaxWait:       5 * time.Minute,
		ServiceInstanceMaxWait: 2 * time.Minute,
	}
}

// Package config loads the name server's runtime configuration from
// the environment, grounded on the viper setup in cs3org-reva's
// cmd/revad/config/config.go: an env-prefixed, automatic-env viper
// instance rather than a bespoke flag parser.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended (upper-cased, with "_" joining) to every
// recognized key when read from the environment, e.g.
// NAMESERVER_METADATA_HOST.
const EnvPrefix = "nameserver"

// Config holds every option the name server recognizes: the spec's
// core option set (METADATA_*, FTP_*, STORAGE_NODE_PORT, and the
// request timeout, read from REQUEST_TIMEOUT_SECONDS as a whole number
// of seconds) plus the ambient options any deployable HTTP service
// needs (listen address, log level) that the distilled spec left
// implicit.
type Config struct {
	MetadataHost     string `mapstructure:"metadata_host"`
	MetadataUser     string `mapstructure:"metadata_user"`
	MetadataPassword string `mapstructure:"metadata_password"`
	MetadataDatabase string `mapstructure:"metadata_database"`

	FTPUsername string `mapstructure:"ftp_username"`
	FTPPassword string `mapstructure:"ftp_password"`

	StorageNodePort int           `mapstructure:"storage_node_port"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`

	ListenAddr string `mapstructure:"listen_addr"`
	LogLevel   string `mapstructure:"log_level"`
}

func defaults() Config {
	return Config{
		MetadataHost:     "localhost:27017",
		MetadataDatabase: "storage",
		StorageNodePort:  21,
		RequestTimeout:   3 * time.Second,
		ListenAddr:       ":8000",
		LogLevel:         "info",
	}
}

// Load reads configuration from the environment (NAMESERVER_-prefixed
// variables), falling back to the defaults above for anything unset.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := defaults()
	for _, key := range []string{
		"metadata_host", "metadata_user", "metadata_password", "metadata_database",
		"ftp_username", "ftp_password",
		"storage_node_port", "request_timeout_seconds",
		"listen_addr", "log_level",
	} {
		v.BindEnv(key)
	}

	if s := v.GetString("metadata_host"); s != "" {
		cfg.MetadataHost = s
	}
	cfg.MetadataUser = v.GetString("metadata_user")
	cfg.MetadataPassword = v.GetString("metadata_password")
	if s := v.GetString("metadata_database"); s != "" {
		cfg.MetadataDatabase = s
	}
	cfg.FTPUsername = v.GetString("ftp_username")
	cfg.FTPPassword = v.GetString("ftp_password")
	if p := v.GetInt("storage_node_port"); p != 0 {
		cfg.StorageNodePort = p
	}
	if secs := v.GetInt("request_timeout_seconds"); secs != 0 {
		cfg.RequestTimeout = time.Duration(secs) * time.Second
	}
	if s := v.GetString("listen_addr"); s != "" {
		cfg.ListenAddr = s
	}
	if s := v.GetString("log_level"); s != "" {
		cfg.LogLevel = s
	}
	return &cfg, nil
}

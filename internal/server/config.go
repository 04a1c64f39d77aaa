package server

import "time"

const DefaultAddr = "0.0.0.0:7870"

type Config struct {
	HTTP           HTTPConfig    `mapstructure:"http"`
	ContentDir     string        `mapstructure:"content_dir"`
	DBPath         string        `mapstructure:"db_path"`
	RescanInterval time.Duration `mapstructure:"rescan_interval"`
	RateLimit      string        `mapstructure:"rate_limit"`
}

type HTTPConfig struct {
	Addr     string `mapstructure:"addr"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

// TLSEnabled reports whether the server will terminate TLS itself.
func (c HTTPConfig) TLSEnabled() bool {
	return c.CertFile != "" && c.KeyFile != ""
}

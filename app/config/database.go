package config

import (
	"github.com/go-ini/ini"
)

type DatabaseConfig struct {
	Connection  string `json:"connection"`
	Debug       bool   `json:"debug"`
	PoolSize    int    `json:"pool_size"`
	IdleTimeout int    `json:"idle_timeout"`
}

func NewDefaultDatabaseConfig(c *ini.Section) DatabaseConfig {
	return DatabaseConfig{
		Connection:  c.Key("connection").MustString("sqlite:///var/lib/autoflow/autoflow.db"),
		Debug:       c.Key("debug").MustBool(false),
		PoolSize:    c.Key("pool_size").MustInt(5),
		IdleTimeout: c.Key("idle_timeout").MustInt(3600),
	}
}

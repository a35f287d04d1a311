package config

import (
	"strings"
	"time"

	"github.com/go-ini/ini"
)

type EngineConfig struct {
	Workers       int    `json:"workers"`
	BatchSize     int    `json:"batch_size"`
	ClaimTTL      int    `json:"claim_ttl_seconds"`
	ActionTimeout int    `json:"action_timeout_seconds"`
	Timezone      string `json:"timezone"`
	// Plugins maps an action name to the address of the plugin serving it.
	Plugins map[string]string `json:"plugins"`
}

func NewDefaultEngineConfig(c *ini.Section) EngineConfig {
	return EngineConfig{
		Workers:       c.Key("workers").MustInt(4),
		BatchSize:     c.Key("batch_size").MustInt(100),
		ClaimTTL:      c.Key("claim_ttl_seconds").MustInt(600),
		ActionTimeout: c.Key("action_timeout_seconds").MustInt(30),
		Timezone:      c.Key("timezone").MustString("UTC"),
		Plugins:       parsePlugins(c.Key("plugins").Strings(",")),
	}
}

// parsePlugins reads entries of the form name=unix:///run/x.sock.
func parsePlugins(entries []string) map[string]string {
	plugins := map[string]string{}
	for _, entry := range entries {
		name, addr, ok := strings.Cut(entry, "=")
		name, addr = strings.TrimSpace(name), strings.TrimSpace(addr)
		if !ok || name == "" || addr == "" {
			continue
		}
		plugins[name] = addr
	}
	return plugins
}

func (c EngineConfig) ClaimTTLDuration() time.Duration {
	return time.Duration(c.ClaimTTL) * time.Second
}

func (c EngineConfig) ActionTimeoutDuration() time.Duration {
	return time.Duration(c.ActionTimeout) * time.Second
}

package config

import (
	"github.com/go-ini/ini"
	"golang.org/x/crypto/bcrypt"
)

type AuthConfig struct {
	TokenPrefix       string `json:"token_prefix"`
	BcryptCost        int    `json:"bcrypt_cost"`
	DefaultRateLimit  int    `json:"default_rate_limit"`
	RateWindowSeconds int    `json:"rate_window_seconds"`
}

func NewDefaultAuthConfig(c *ini.Section) AuthConfig {
	return AuthConfig{
		TokenPrefix:       c.Key("token_prefix").MustString("afk"),
		BcryptCost:        c.Key("bcrypt_cost").MustInt(bcrypt.DefaultCost),
		DefaultRateLimit:  c.Key("default_rate_limit").MustInt(600),
		RateWindowSeconds: c.Key("rate_window_seconds").MustInt(3600),
	}
}

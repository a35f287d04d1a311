package config

import "github.com/go-ini/ini"

type APIConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	AdminKey string `json:"admin_key"`
}

func NewDefaultAPIConfig(c *ini.Section) APIConfig {
	return APIConfig{
		Host:     c.Key("host").MustString("0.0.0.0"),
		Port:     c.Key("port").MustInt(8791),
		AdminKey: c.Key("admin_key").String(),
	}
}

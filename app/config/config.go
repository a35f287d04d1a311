package config

import (
	"os"

	"github.com/go-ini/ini"
)

const DefaultConfigFile = "/etc/autoflow/config.ini"

var Config = Default()

type Configuration struct {
	API       APIConfig       `json:"api"`
	Database  DatabaseConfig  `json:"database"`
	Engine    EngineConfig    `json:"engine"`
	Auth      AuthConfig      `json:"auth"`
	Messaging MessagingConfig `json:"messaging"`
	LOG       LogConfig       `json:"log"`
}

// Default returns the configuration used when no file is present.
func Default() Configuration {
	return fromFile(ini.Empty())
}

func fromFile(f *ini.File) Configuration {
	return Configuration{
		API:       NewDefaultAPIConfig(f.Section("api")),
		Database:  NewDefaultDatabaseConfig(f.Section("db")),
		Engine:    NewDefaultEngineConfig(f.Section("engine")),
		Auth:      NewDefaultAuthConfig(f.Section("auth")),
		Messaging: NewDefaultMessagingConfig(f.Section("messaging")),
		LOG:       NewDefaultLogConfig(f.Section("log")),
	}
}

// Load reads configFile. A missing file yields the defaults.
func Load(configFile string) (Configuration, error) {
	if configFile == "" {
		configFile = DefaultConfigFile
	}
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		return Default(), nil
	}
	f, err := ini.Load(configFile)
	if err != nil {
		return Configuration{}, err
	}
	return fromFile(f), nil
}

// Initialize loads configFile into the package level Config.
func Initialize(configFile string) error {
	cfg, err := Load(configFile)
	if err != nil {
		return err
	}
	Config = cfg
	return nil
}

package db

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	dbMu   sync.Mutex
	dbConn *gorm.DB
)

type Config struct {
	Connection  string
	Debug       bool
	PoolSize    int
	IdleTimeout int
}

func dialectorFor(connection string) (gorm.Dialector, bool, error) {
	uri, err := url.Parse(connection)
	if err != nil {
		return nil, false, err
	}

	switch uri.Scheme {
	case "sqlite":
		path := uri.Path
		if uri.Host != "" {
			path = uri.Host + path
		}
		dsn := path
		if !strings.Contains(dsn, "?") {
			dsn += "?_busy_timeout=5000&_journal_mode=WAL"
		}
		return sqlite.Open(dsn), true, nil
	case "mysql":
		query := uri.RawQuery
		if query == "" {
			query = "charset=utf8mb4&parseTime=True&loc=UTC"
		}
		connStr := fmt.Sprintf("%s@tcp(%s)%s?%s", uri.User.String(), uri.Host, uri.Path, query)
		return mysql.Open(connStr), false, nil
	case "postgres", "postgresql":
		return postgres.Open(connection), false, nil
	}
	return nil, false, fmt.Errorf("dialector '%s' is not supported", uri.Scheme)
}

// Open creates a new connection pool for cfg.
func Open(cfg *Config) (*gorm.DB, error) {
	if cfg.PoolSize == 0 {
		cfg.PoolSize = 5
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 3600
	}

	dialector, single, err := dialectorFor(cfg.Connection)
	if err != nil {
		return nil, err
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, err
	}
	if cfg.Debug {
		conn = conn.Debug()
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	if single {
		// sqlite allows a single writer
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.PoolSize)
	}
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.IdleTimeout) * time.Second)
	return conn, nil
}

// Init opens the process wide connection once.
func Init(cfg *Config) error {
	dbMu.Lock()
	defer dbMu.Unlock()

	if dbConn != nil {
		return nil
	}
	conn, err := Open(cfg)
	if err != nil {
		return err
	}
	dbConn = conn
	return nil
}

func GetDBConnection() *gorm.DB {
	return dbConn
}

func Close() error {
	dbMu.Lock()
	defer dbMu.Unlock()
	if dbConn == nil {
		return nil
	}
	sqlDB, err := dbConn.DB()
	if err != nil {
		return err
	}
	dbConn = nil
	return sqlDB.Close()
}

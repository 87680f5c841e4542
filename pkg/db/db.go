package db

import (
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/jmoiron/sqlx"
)

type Config struct {
	Username string
	Password string
	Host     string
	Port     int
	DBName   string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type DB struct {
	*sqlx.DB
}

func ConnectionString(dbConfig Config) string {
	// parseTime=true is required so DATETIME/TIMESTAMP scan into time.Time instead of []uint8.
	// loc=UTC keeps history timestamps comparable across hosts.
	// clientFoundRows=true makes UPDATE report matched rows, so a no-op update is not "not found".
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&loc=UTC&clientFoundRows=true&charset=utf8mb4&collation=utf8mb4_unicode_ci",
		dbConfig.Username,
		dbConfig.Password,
		dbConfig.Host,
		dbConfig.Port,
		dbConfig.DBName)
}

func ConnectDB(config Config) (*DB, error) {
	db, err := sqlx.Open("mysql", ConnectionString(config))
	if err != nil {
		return nil, err
	}

	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(config.ConnMaxLifetime)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &DB{db}, nil
}

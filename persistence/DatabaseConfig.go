package persistence

import (
	"database/sql"
	"errors"
	"os"
	"strings"

	"github.com/go-sql-driver/mysql"
)

const (
	DriverMysql  = "mysql"
	DriverSqlite = "sqlite3"
)

type DatabaseConfig struct {
	DriverType string
	DriverArgs string
}

// ParseDatabaseConfigFromEnv DB_DRIVER (mysql | sqlite3, default mysql), DB_URL
func ParseDatabaseConfigFromEnv() (*DatabaseConfig, error) {
	return ParseDatabaseConfig(os.Getenv("DB_DRIVER"), os.Getenv("DB_URL"))
}

func ParseDatabaseConfig(driver, url string) (*DatabaseConfig, error) {
	driver = strings.TrimSpace(driver)
	if driver == "" {
		driver = DriverMysql
	}
	if driver != DriverMysql && driver != DriverSqlite {
		return nil, errors.New("unsupported database driver '" + driver + "'")
	}
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("database url is required")
	}
	return &DatabaseConfig{DriverType: driver, DriverArgs: url}, nil
}

// PrepareMysqlDatabase create the database named in dsn if it does not exist
func PrepareMysqlDatabase(dsn string) error {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return err
	}
	databaseName := cfg.DBName
	if databaseName == "" {
		return errors.New("database name is missing in dsn")
	}
	cfg.DBName = ""

	db, err := sql.Open(DriverMysql, cfg.FormatDSN())
	if err != nil {
		return err
	}
	defer db.Close()

	_, err = db.Exec("CREATE DATABASE IF NOT EXISTS `" + databaseName + "` DEFAULT CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci")
	return err
}

package helper

import (
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

// DatabaseConfiguration holds the postgres connection settings for the
// optional entity vector index.
type DatabaseConfiguration struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

// NewDatabaseConfiguration reads the configuration from WORKSPACER_DB_*
// environment variables. A .env file is loaded first if present.
func NewDatabaseConfiguration() (*DatabaseConfiguration, error) {
	_ = godotenv.Load()

	config := &DatabaseConfiguration{
		Host:     os.Getenv("WORKSPACER_DB_HOST"),
		Port:     os.Getenv("WORKSPACER_DB_PORT"),
		User:     os.Getenv("WORKSPACER_DB_USER"),
		Password: os.Getenv("WORKSPACER_DB_PASSWORD"),
		Name:     os.Getenv("WORKSPACER_DB_NAME"),
	}
	if config.Host == "" || config.Port == "" || config.User == "" || config.Name == "" {
		return nil, NewError(
			"reading database configuration",
			fmt.Errorf("WORKSPACER_DB_HOST, WORKSPACER_DB_PORT, WORKSPACER_DB_USER and WORKSPACER_DB_NAME must be set"),
		)
	}

	return config, nil
}

// Database wraps an open sql.DB with its logger
type Database struct {
	Instance *sql.DB
	Logger   *slog.Logger
	name     string
}

// NewDatabase opens and pings a postgres connection. It panics on connection
// failure, matching the fail fast behaviour expected at startup.
func NewDatabase(name string, config *DatabaseConfiguration, logger *slog.Logger) *Database {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		config.Host, config.Port, config.User, config.Password, config.Name,
	)

	instance, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Panicf("error opening database: %v", err)
	}

	instance.SetMaxOpenConns(10)
	instance.SetMaxIdleConns(5)
	instance.SetConnMaxLifetime(time.Hour)

	if err := instance.Ping(); err != nil {
		log.Panicf("error connecting to database: %v", err)
	}

	logger.Info("Connected to database", slog.String("database", config.Name))

	return &Database{
		Instance: instance,
		Logger:   logger,
		name:     name,
	}
}

// Close closes the underlying connection pool
func (d *Database) Close() error {
	if d.Instance != nil {
		return d.Instance.Close()
	}
	return nil
}

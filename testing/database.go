// Package testing provides throwaway PostgreSQL databases and fixtures for repository integration tests
package testing

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/healthiphi/founder-pass/migrations"
	_ "github.com/lib/pq" // PostgreSQL driver for database/sql
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestDBConfig points at the PostgreSQL server that hosts the throwaway databases
type TestDBConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	SSLMode        string
	ConnectTimeout int // seconds
}

// GetTestDBConfig reads TEST_DB_* variables
func GetTestDBConfig() *TestDBConfig {
	return &TestDBConfig{
		Host:           getEnv("TEST_DB_HOST", "localhost"),
		Port:           getEnvAsInt("TEST_DB_PORT", 5432),
		User:           getEnv("TEST_DB_USER", "postgres"),
		Password:       getEnv("TEST_DB_PASSWORD", "postgres"),
		SSLMode:        getEnv("TEST_DB_SSL_MODE", "disable"),
		ConnectTimeout: getEnvAsInt("TEST_DB_CONNECT_TIMEOUT", 3),
	}
}

// dsn builds a libpq connection string, targeting the server default database when dbName is empty
func (c *TestDBConfig) dsn(dbName string) string {
	parts := []string{
		"host=" + c.Host,
		"port=" + strconv.Itoa(c.Port),
		"user=" + c.User,
		"password=" + c.Password,
		"sslmode=" + c.SSLMode,
		"connect_timeout=" + strconv.Itoa(c.ConnectTimeout),
	}
	if dbName != "" {
		parts = append(parts, "dbname="+dbName)
	}
	return strings.Join(parts, " ")
}

// TestDB is one migrated database owned by a single test
type TestDB struct {
	DB     *gorm.DB
	Name   string
	config *TestDBConfig
}

func openSilent(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
}

// withServer runs fn on a short-lived connection to the server default database
func (c *TestDBConfig) withServer(fn func(*gorm.DB) error) error {
	db, err := openSilent(c.dsn(""))
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	return fn(db)
}

// SetupTestDB creates a uniquely named database and applies the embedded migrations
func SetupTestDB() (*TestDB, error) {
	cfg := GetTestDBConfig()
	name := "founder_pass_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")

	err := cfg.withServer(func(db *gorm.DB) error {
		return db.Exec("CREATE DATABASE " + name).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create test database %s: %w", name, err)
	}

	tdb := &TestDB{Name: name, config: cfg}
	if err := applyMigrations(cfg.dsn(name)); err != nil {
		_ = tdb.TeardownTestDB()
		return nil, fmt.Errorf("failed to migrate test database %s: %w", name, err)
	}

	tdb.DB, err = openSilent(cfg.dsn(name))
	if err != nil {
		_ = tdb.TeardownTestDB()
		return nil, fmt.Errorf("failed to connect to test database %s: %w", name, err)
	}
	return tdb, nil
}

// TeardownTestDB closes the pool and drops the database, evicting stray sessions first
func (tdb *TestDB) TeardownTestDB() error {
	if tdb.DB != nil {
		if sqlDB, err := tdb.DB.DB(); err == nil {
			sqlDB.Close()
		}
	}

	return tdb.config.withServer(func(db *gorm.DB) error {
		if err := db.Exec("SELECT pg_terminate_backend(pid) FROM pg_stat_activity WHERE datname = ? AND pid <> pg_backend_pid()", tdb.Name).Error; err != nil {
			log.Printf("Warning: failed to terminate sessions on %s: %v", tdb.Name, err)
		}
		if err := db.Exec("DROP DATABASE IF EXISTS " + tdb.Name).Error; err != nil {
			return fmt.Errorf("failed to drop test database %s: %w", tdb.Name, err)
		}
		return nil
	})
}

// ClearAllTables removes all pledge data and resets the vault aggregate
func (tdb *TestDB) ClearAllTables() error {
	if err := tdb.DB.Exec("TRUNCATE TABLE audit_log, pledges RESTART IDENTITY CASCADE").Error; err != nil {
		return fmt.Errorf("failed to truncate pledge tables: %w", err)
	}
	if err := tdb.DB.Exec("UPDATE vault_status SET total_pledges = 0, total_seats = 0, pledge_reached_at = NULL WHERE id = 1").Error; err != nil {
		return fmt.Errorf("failed to reset vault_status: %w", err)
	}
	return nil
}

func applyMigrations(dsn string) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_, err = migrations.Apply(ctx, db)
	return err
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

// CreateTestContext returns the context repository tests run under
func CreateTestContext() context.Context {
	return context.Background()
}

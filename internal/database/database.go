package database

import (
	"errors"
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

var _ DB = (*Client)(nil) // Ensure Client implements DB

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Reserved identifiers. The "all" group is virtual and never persisted, it
// always means every device in the account. The "none" group is a sentinel
// that is silently skipped wherever it shows up in an assignment list.
const (
	GroupIDAll  = "all"
	GroupIDNone = "none"
	AdminUserID = "admin"
)

// Client wraps the gorm.DB instance.
type Client struct {
	db *gorm.DB
}

// New creates a new database connection and performs migrations.
func New(dbpath string) (*Client, error) {
	db, err := gorm.Open(sqlite.Open(dbpath), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	c := &Client{db: db}
	if err := c.Migrate(); err != nil {
		return nil, err
	}

	return c, nil
}

// Migrate runs the schema migrations.
func (c *Client) Migrate() error {
	if err := c.db.AutoMigrate(
		&Account{},
		&User{},
		&Device{},
		&DeviceGroup{},
		&DeviceGroupMember{},
		&GroupAssignment{},
		&Transport{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (c *Client) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// translateErr maps gorm sentinel errors to database package errors.
func translateErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

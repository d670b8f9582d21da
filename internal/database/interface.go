package database

import (
	"context"
	"time"
)

// DB defines the interface for database operations.
type DB interface {
	// Accounts
	GetAccount(ctx context.Context, accountID string) (*Account, error)
	CreateAccount(ctx context.Context, account *Account) error
	ListAccountIDs(ctx context.Context) ([]string, error)

	// Users
	GetUser(ctx context.Context, accountID, userID string) (*User, error)
	CreateUser(ctx context.Context, user *User) (*User, error)
	UpdateUser(ctx context.Context, user *User) error
	DeleteUser(ctx context.Context, accountID, userID string) error
	SetUserPassword(ctx context.Context, accountID, userID, password string) error
	CheckUserPassword(ctx context.Context, accountID, userID, password string) (bool, error)
	RecordFailedLogin(ctx context.Context, accountID, userID string, threshold int, suspend time.Duration) error
	ClearLoginFailures(ctx context.Context, accountID, userID string) error

	// Devices
	GetDevice(ctx context.Context, accountID, deviceID string) (*Device, error)
	DeviceExists(ctx context.Context, accountID, deviceID string) (bool, error)
	ListDeviceIDsForAccount(ctx context.Context, accountID string, includeInactive bool, limit int) ([]string, error)
	GetDeviceByUniqueID(ctx context.Context, uniqueID string) (*Device, error)

	// Device groups
	GetDeviceGroup(ctx context.Context, accountID, groupID string) (*DeviceGroup, error)
	ListGroupIDsForAccount(ctx context.Context, accountID string) ([]string, error)
	GroupExists(ctx context.Context, accountID, groupID string) (bool, error)
	GroupHasDevice(ctx context.Context, accountID, groupID, deviceID string) (bool, error)
	ListDeviceIDsForGroup(ctx context.Context, accountID, groupID string, includeInactive bool, limit int) ([]string, error)

	// Group assignments
	ListGroupAssignments(ctx context.Context, accountID, userID string, limit int) ([]GroupAssignment, error)
	ReplaceGroupAssignments(ctx context.Context, accountID, userID string, groupIDs []string) error
	DeleteGroupAssignments(ctx context.Context, accountID, userID string) error

	// Transports
	GetTransportByUniqueID(ctx context.Context, uniqueID string) (*Transport, error)

	// Utility
	Stats(ctx context.Context) (*Stats, error)
	Close() error
	Migrate() error
}

// Stats provides row counts for the db-stats command.
type Stats struct {
	Accounts         int64
	Users            int64
	Devices          int64
	DeviceGroups     int64
	GroupMembers     int64
	GroupAssignments int64
	Transports       int64
}

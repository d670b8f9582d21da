package database

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// User represents a user within an account.
// The user ID "admin" (case-insensitive) is the distinguished account
// administrator and bypasses all device group checks.
type User struct {
	AccountID         string `gorm:"primaryKey"`
	UserID            string `gorm:"primaryKey"`
	Description       string
	RoleID            string
	PreferredDeviceID string
	ContactEmail      string
	PasswordHash      string
	IsActive          bool `gorm:"default:true"`
	// SuspendUntil is the unix time until which the user is suspended.
	// 0 means not suspended.
	SuspendUntil     int64
	FailedLoginCount int
	LastLoginAt      int64
	CreatedAt        int64 `gorm:"autoCreateTime"`
	UpdatedAt        int64 `gorm:"autoUpdateTime"`
}

// IsSuspended reports whether the user is currently suspended.
func (u *User) IsSuspended() bool {
	return u.SuspendUntil > 0 && u.SuspendUntil >= time.Now().Unix()
}

// HasPreferredDeviceID reports whether the user has a preferred device set.
func (u *User) HasPreferredDeviceID() bool {
	return strings.TrimSpace(u.PreferredDeviceID) != ""
}

func (c *Client) GetUser(ctx context.Context, accountID, userID string) (*User, error) {
	var user User
	if err := c.db.WithContext(ctx).Where("account_id = ? AND user_id = ?", accountID, userID).First(&user).Error; err != nil {
		if err != gorm.ErrRecordNotFound {
			log.Error("failed to get user", "account", accountID, "user", userID, "error", err)
		}
		return nil, translateErr(err)
	}
	return &user, nil
}

func (c *Client) CreateUser(ctx context.Context, user *User) (*User, error) {
	if err := c.db.WithContext(ctx).Create(user).Error; err != nil {
		log.Error("failed to create user", "account", user.AccountID, "user", user.UserID, "error", err)
		return nil, err
	}
	return user, nil
}

func (c *Client) UpdateUser(ctx context.Context, user *User) error {
	if err := c.db.WithContext(ctx).Save(user).Error; err != nil {
		log.Error("failed to update user", "account", user.AccountID, "user", user.UserID, "error", err)
		return err
	}
	return nil
}

// DeleteUser removes a user and cascades the user's group assignments.
func (c *Client) DeleteUser(ctx context.Context, accountID, userID string) error {
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("account_id = ? AND user_id = ?", accountID, userID).Delete(&GroupAssignment{}).Error; err != nil {
			return err
		}
		return tx.Where("account_id = ? AND user_id = ?", accountID, userID).Delete(&User{}).Error
	})
	if err != nil {
		log.Error("failed to delete user", "account", accountID, "user", userID, "error", err)
		return err
	}
	return nil
}

func (c *Client) SetUserPassword(ctx context.Context, accountID, userID, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	result := c.db.WithContext(ctx).Model(&User{}).
		Where("account_id = ? AND user_id = ?", accountID, userID).
		Update("password_hash", string(hash))
	if result.Error != nil {
		log.Error("failed to set user password", "account", accountID, "user", userID, "error", result.Error)
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CheckUserPassword verifies the given password against the stored hash.
// A mismatch is not an error, it returns false.
func (c *Client) CheckUserPassword(ctx context.Context, accountID, userID, password string) (bool, error) {
	user, err := c.GetUser(ctx, accountID, userID)
	if err != nil {
		return false, err
	}
	if user.PasswordHash == "" {
		return false, nil
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return false, nil
	}
	return true, nil
}

// RecordFailedLogin increments the user's failed login counter and suspends
// the user once the threshold is reached. A threshold of 0 disables
// suspension but still counts attempts.
func (c *Client) RecordFailedLogin(ctx context.Context, accountID, userID string, threshold int, suspend time.Duration) error {
	user, err := c.GetUser(ctx, accountID, userID)
	if err != nil {
		return err
	}
	user.FailedLoginCount++
	if threshold > 0 && user.FailedLoginCount >= threshold {
		until := time.Now().Add(suspend).Unix()
		// never shorten an existing suspension
		if until > user.SuspendUntil {
			user.SuspendUntil = until
		}
		log.Warn("user suspended after failed login attempts",
			"account", accountID, "user", userID, "attempts", user.FailedLoginCount)
	}
	return c.UpdateUser(ctx, user)
}

// ClearLoginFailures resets the failed login counter and lifts the
// suspension after a successful login.
func (c *Client) ClearLoginFailures(ctx context.Context, accountID, userID string) error {
	result := c.db.WithContext(ctx).Model(&User{}).
		Where("account_id = ? AND user_id = ?", accountID, userID).
		Updates(map[string]any{
			"failed_login_count": 0,
			"suspend_until":      0,
			"last_login_at":      time.Now().Unix(),
		})
	if result.Error != nil {
		log.Error("failed to clear login failures", "account", accountID, "user", userID, "error", result.Error)
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

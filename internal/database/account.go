package database

import (
	"context"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"
)

// Account represents a top-level tenant owning users, devices and device groups.
type Account struct {
	AccountID   string `gorm:"primaryKey"`
	Description string
	IsActive    bool `gorm:"default:true"`
	// DefaultDeviceAuthorization overrides the configured default for this
	// account when set. When nil, the config-wide default applies.
	DefaultDeviceAuthorization *bool
	CreatedAt                  int64 `gorm:"autoCreateTime"`
	UpdatedAt                  int64 `gorm:"autoUpdateTime"`
}

func (c *Client) GetAccount(ctx context.Context, accountID string) (*Account, error) {
	var account Account
	if err := c.db.WithContext(ctx).Where("account_id = ?", accountID).First(&account).Error; err != nil {
		if err != gorm.ErrRecordNotFound {
			log.Error("failed to get account", "account", accountID, "error", err)
		}
		return nil, translateErr(err)
	}
	return &account, nil
}

func (c *Client) CreateAccount(ctx context.Context, account *Account) error {
	if err := c.db.WithContext(ctx).Create(account).Error; err != nil {
		log.Error("failed to create account", "account", account.AccountID, "error", err)
		return err
	}
	return nil
}

func (c *Client) ListAccountIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := c.db.WithContext(ctx).Model(&Account{}).Order("account_id").Pluck("account_id", &ids).Error; err != nil {
		log.Error("failed to list accounts", "error", err)
		return nil, err
	}
	return ids, nil
}

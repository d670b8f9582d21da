package database

import (
	"context"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"
)

// Device represents a tracked asset within an account.
type Device struct {
	AccountID string `gorm:"primaryKey"`
	DeviceID  string `gorm:"primaryKey"`
	// UniqueID is the hardware unique ID reported by the tracking device.
	UniqueID    string `gorm:"index"`
	Description string
	ShortName   string
	IsActive    bool `gorm:"default:true"`
	// LastGPSAt is the unix time of the last valid GPS fix. 0 means the
	// device has never reported a position.
	LastGPSAt int64
	CreatedAt int64 `gorm:"autoCreateTime"`
	UpdatedAt int64 `gorm:"autoUpdateTime"`
}

func (c *Client) GetDevice(ctx context.Context, accountID, deviceID string) (*Device, error) {
	var device Device
	if err := c.db.WithContext(ctx).Where("account_id = ? AND device_id = ?", accountID, deviceID).First(&device).Error; err != nil {
		if err != gorm.ErrRecordNotFound {
			log.Error("failed to get device", "account", accountID, "device", deviceID, "error", err)
		}
		return nil, translateErr(err)
	}
	return &device, nil
}

func (c *Client) DeviceExists(ctx context.Context, accountID, deviceID string) (bool, error) {
	var count int64
	if err := c.db.WithContext(ctx).Model(&Device{}).
		Where("account_id = ? AND device_id = ?", accountID, deviceID).
		Count(&count).Error; err != nil {
		log.Error("failed to check device existence", "account", accountID, "device", deviceID, "error", err)
		return false, err
	}
	return count > 0, nil
}

// ListDeviceIDsForAccount returns the device IDs of an account in lexical
// order. Inactive devices are skipped unless includeInactive is set.
// A limit <= 0 means no limit.
func (c *Client) ListDeviceIDsForAccount(ctx context.Context, accountID string, includeInactive bool, limit int) ([]string, error) {
	query := c.db.WithContext(ctx).Model(&Device{}).Where("account_id = ?", accountID)
	if !includeInactive {
		query = query.Where("is_active = ?", true)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	var ids []string
	if err := query.Order("device_id").Pluck("device_id", &ids).Error; err != nil {
		log.Error("failed to list devices for account", "account", accountID, "error", err)
		return nil, err
	}
	return ids, nil
}

func (c *Client) GetDeviceByUniqueID(ctx context.Context, uniqueID string) (*Device, error) {
	var device Device
	if err := c.db.WithContext(ctx).Where("unique_id = ?", uniqueID).First(&device).Error; err != nil {
		if err != gorm.ErrRecordNotFound {
			log.Error("failed to get device by unique ID", "uniqueID", uniqueID, "error", err)
		}
		return nil, translateErr(err)
	}
	return &device, nil
}

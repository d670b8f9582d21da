package database

import (
	"context"
	"strings"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"
)

// DeviceGroup is a named collection of devices within an account.
// The reserved group IDs "all" and "none" are never persisted.
type DeviceGroup struct {
	AccountID   string `gorm:"primaryKey"`
	GroupID     string `gorm:"primaryKey"`
	Description string
	IsActive    bool  `gorm:"default:true"`
	CreatedAt   int64 `gorm:"autoCreateTime"`
	UpdatedAt   int64 `gorm:"autoUpdateTime"`
}

// DeviceGroupMember links a device to a device group.
type DeviceGroupMember struct {
	AccountID string `gorm:"primaryKey"`
	GroupID   string `gorm:"primaryKey"`
	DeviceID  string `gorm:"primaryKey"`
	CreatedAt int64  `gorm:"autoCreateTime"`
}

func (c *Client) GetDeviceGroup(ctx context.Context, accountID, groupID string) (*DeviceGroup, error) {
	var group DeviceGroup
	if err := c.db.WithContext(ctx).Where("account_id = ? AND group_id = ?", accountID, groupID).First(&group).Error; err != nil {
		if err != gorm.ErrRecordNotFound {
			log.Error("failed to get device group", "account", accountID, "group", groupID, "error", err)
		}
		return nil, translateErr(err)
	}
	return &group, nil
}

// ListGroupIDsForAccount returns the group IDs of an account in lexical
// order. The virtual "all" group is not included.
func (c *Client) ListGroupIDsForAccount(ctx context.Context, accountID string) ([]string, error) {
	var ids []string
	if err := c.db.WithContext(ctx).Model(&DeviceGroup{}).
		Where("account_id = ?", accountID).
		Order("group_id").
		Pluck("group_id", &ids).Error; err != nil {
		log.Error("failed to list device groups for account", "account", accountID, "error", err)
		return nil, err
	}
	return ids, nil
}

func (c *Client) GroupExists(ctx context.Context, accountID, groupID string) (bool, error) {
	if strings.EqualFold(groupID, GroupIDAll) {
		// the virtual "all" group always exists
		return true, nil
	}
	var count int64
	if err := c.db.WithContext(ctx).Model(&DeviceGroup{}).
		Where("account_id = ? AND group_id = ?", accountID, groupID).
		Count(&count).Error; err != nil {
		log.Error("failed to check device group existence", "account", accountID, "group", groupID, "error", err)
		return false, err
	}
	return count > 0, nil
}

func (c *Client) GroupHasDevice(ctx context.Context, accountID, groupID, deviceID string) (bool, error) {
	var count int64
	if err := c.db.WithContext(ctx).Model(&DeviceGroupMember{}).
		Where("account_id = ? AND group_id = ? AND device_id = ?", accountID, groupID, deviceID).
		Count(&count).Error; err != nil {
		log.Error("failed to check device group membership", "account", accountID, "group", groupID, "device", deviceID, "error", err)
		return false, err
	}
	return count > 0, nil
}

// ListDeviceIDsForGroup returns the device IDs belonging to a group in
// lexical order. The virtual "all" group expands to every device of the
// account. Inactive devices are skipped unless includeInactive is set.
// A limit <= 0 means no limit.
func (c *Client) ListDeviceIDsForGroup(ctx context.Context, accountID, groupID string, includeInactive bool, limit int) ([]string, error) {
	if strings.EqualFold(groupID, GroupIDAll) {
		return c.ListDeviceIDsForAccount(ctx, accountID, includeInactive, limit)
	}
	query := c.db.WithContext(ctx).Model(&DeviceGroupMember{}).
		Joins("JOIN devices ON devices.account_id = device_group_members.account_id AND devices.device_id = device_group_members.device_id").
		Where("device_group_members.account_id = ? AND device_group_members.group_id = ?", accountID, groupID)
	if !includeInactive {
		query = query.Where("devices.is_active = ?", true)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	var ids []string
	if err := query.Order("device_group_members.device_id").Pluck("device_group_members.device_id", &ids).Error; err != nil {
		log.Error("failed to list devices for group", "account", accountID, "group", groupID, "error", err)
		return nil, err
	}
	return ids, nil
}

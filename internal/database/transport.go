package database

import (
	"context"
	"strings"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"
)

// Transport maps a hardware unique ID to a device. It allows a tracking
// modem to be reassigned to another device without reprovisioning the
// hardware. TargetDeviceID takes precedence over AssocDeviceID when set.
type Transport struct {
	AccountID      string `gorm:"primaryKey"`
	TransportID    string `gorm:"primaryKey"`
	UniqueID       string `gorm:"index"`
	AssocDeviceID  string
	TargetDeviceID string
	IsActive       bool  `gorm:"default:true"`
	CreatedAt      int64 `gorm:"autoCreateTime"`
	UpdatedAt      int64 `gorm:"autoUpdateTime"`
}

// DeviceID returns the device the transport points at.
func (t *Transport) DeviceID() string {
	if strings.TrimSpace(t.TargetDeviceID) != "" {
		return t.TargetDeviceID
	}
	return t.AssocDeviceID
}

func (c *Client) GetTransportByUniqueID(ctx context.Context, uniqueID string) (*Transport, error) {
	var transport Transport
	if err := c.db.WithContext(ctx).Where("unique_id = ?", uniqueID).First(&transport).Error; err != nil {
		if err != gorm.ErrRecordNotFound {
			log.Error("failed to get transport by unique ID", "uniqueID", uniqueID, "error", err)
		}
		return nil, translateErr(err)
	}
	return &transport, nil
}

package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/openfleet/fleettrack/internal/database"
)

// AllGroupName is the display name of the virtual "all" group.
const AllGroupName = "All Devices"

// GroupSummary is a device group reduced to what pickers need.
type GroupSummary struct {
	AccountID string `json:"-"`
	ID        string `json:"groupID"`
	Name      string `json:"groupName"`
}

// DeviceSummary is a device reduced to what pickers need.
type DeviceSummary struct {
	AccountID string `json:"-"`
	ID        string `json:"deviceID"`
	UniqueID  string `json:"uniqueID"`
	Name      string `json:"deviceName"`
	ShortName string `json:"shortName"`
}

// AllAuthorizedGroups returns the authorized groups of the user as
// summaries. The virtual "all" group renders with a fixed display name;
// groups that vanished between the ID lookup and the detail lookup are
// skipped.
func (r *Resolver) AllAuthorizedGroups(ctx context.Context, account *database.Account, user *database.User) ([]GroupSummary, error) {
	if account == nil {
		return nil, fmt.Errorf("account is required")
	}
	if user != nil && user.AccountID != account.AccountID {
		return nil, fmt.Errorf("user %q does not belong to account %q", user.UserID, account.AccountID)
	}

	groupIDs, err := r.AllAuthorizedGroupIDs(ctx, account.AccountID, user)
	if err != nil {
		return nil, err
	}

	groups := make([]GroupSummary, 0, len(groupIDs))
	for _, groupID := range groupIDs {
		if groupID == database.GroupIDAll {
			groups = append(groups, GroupSummary{
				AccountID: account.AccountID,
				ID:        database.GroupIDAll,
				Name:      AllGroupName,
			})
			continue
		}
		group, err := r.db.GetDeviceGroup(ctx, account.AccountID, groupID)
		if err != nil {
			if !errors.Is(err, database.ErrNotFound) {
				return nil, &StorageError{Op: "get device group", Err: err}
			}
			log.Warn("device group vanished, skipping", "account", account.AccountID, "group", groupID)
			continue
		}
		name := group.Description
		if name == "" {
			name = group.GroupID
		}
		groups = append(groups, GroupSummary{
			AccountID: group.AccountID,
			ID:        group.GroupID,
			Name:      name,
		})
	}
	return groups, nil
}

// AuthorizedDevices returns the authorized devices of the user as
// summaries. Unless includeInactive is set, devices that are inactive or
// have never reported a GPS fix are skipped.
func (r *Resolver) AuthorizedDevices(ctx context.Context, account *database.Account, user *database.User, includeInactive bool) ([]DeviceSummary, error) {
	if account == nil {
		return nil, fmt.Errorf("account is required")
	}
	if user != nil && user.AccountID != account.AccountID {
		return nil, fmt.Errorf("user %q does not belong to account %q", user.UserID, account.AccountID)
	}

	deviceIDs, err := r.AuthorizedDeviceIDs(ctx, account, user, includeInactive)
	if err != nil {
		return nil, err
	}

	devices := make([]DeviceSummary, 0, len(deviceIDs))
	for _, deviceID := range deviceIDs {
		device, err := r.db.GetDevice(ctx, account.AccountID, deviceID)
		if err != nil {
			if !errors.Is(err, database.ErrNotFound) {
				return nil, &StorageError{Op: "get device", Err: err}
			}
			log.Warn("device vanished, skipping", "account", account.AccountID, "device", deviceID)
			continue
		}
		if !includeInactive && !device.IsActive {
			log.Warn("device is not active, skipping", "account", account.AccountID, "device", deviceID)
			continue
		}
		if !includeInactive && device.LastGPSAt <= 0 {
			// never received a GPS event, also considered inactive
			log.Warn("device has not yet received a valid GPS event, skipping", "account", account.AccountID, "device", deviceID)
			continue
		}
		name := device.Description
		if name == "" {
			name = device.DeviceID
		}
		devices = append(devices, DeviceSummary{
			AccountID: device.AccountID,
			ID:        device.DeviceID,
			UniqueID:  device.UniqueID,
			Name:      name,
			ShortName: device.ShortName,
		})
	}
	return devices, nil
}

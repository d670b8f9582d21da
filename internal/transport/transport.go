// Package transport resolves incoming hardware unique IDs to devices for
// the device communication servers. When transport queries are enabled,
// the transport table is consulted first, so a tracking modem can point at
// a device other than the one it was provisioned with.
package transport

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/openfleet/fleettrack/internal/config"
	"github.com/openfleet/fleettrack/internal/database"
)

// ErrUnknownUniqueID is returned when no device could be resolved for a
// unique ID.
var ErrUnknownUniqueID = errors.New("unknown unique ID")

// Resolver maps hardware unique IDs to devices.
type Resolver struct {
	db           database.DB
	queryEnabled bool
}

// New creates a new transport resolver.
func New(db database.DB, cfg *config.TransportConfig) *Resolver {
	queryEnabled := false
	if cfg != nil {
		queryEnabled = cfg.QueryEnabled
	}
	return &Resolver{
		db:           db,
		queryEnabled: queryEnabled,
	}
}

// DeviceByUniqueID resolves a unique ID to its device. With transport
// queries enabled the transport table is consulted first; an inactive
// transport row masks the unique ID entirely. Otherwise, or when no
// transport row exists, the device table is queried directly.
func (r *Resolver) DeviceByUniqueID(ctx context.Context, uniqueID string) (*database.Device, error) {
	if uniqueID == "" {
		return nil, ErrUnknownUniqueID
	}

	if r.queryEnabled {
		transport, err := r.db.GetTransportByUniqueID(ctx, uniqueID)
		switch {
		case err == nil:
			if !transport.IsActive {
				log.Warn("transport is not active", "account", transport.AccountID, "transport", transport.TransportID, "uniqueID", uniqueID)
				return nil, ErrUnknownUniqueID
			}
			deviceID := transport.DeviceID()
			if deviceID == "" {
				log.Warn("transport has no target device", "account", transport.AccountID, "transport", transport.TransportID)
				return nil, ErrUnknownUniqueID
			}
			device, err := r.db.GetDevice(ctx, transport.AccountID, deviceID)
			if err != nil {
				if errors.Is(err, database.ErrNotFound) {
					log.Warn("transport target device does not exist", "account", transport.AccountID, "device", deviceID)
					return nil, ErrUnknownUniqueID
				}
				return nil, fmt.Errorf("failed to resolve transport target device: %w", err)
			}
			return device, nil
		case errors.Is(err, database.ErrNotFound):
			// no transport row, fall through to the device table
		default:
			return nil, fmt.Errorf("failed to query transport: %w", err)
		}
	}

	device, err := r.db.GetDeviceByUniqueID(ctx, uniqueID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrUnknownUniqueID
		}
		return nil, fmt.Errorf("failed to query device by unique ID: %w", err)
	}
	return device, nil
}

// DeviceByUniqueIDBytes resolves a binary unique ID: first as its printable
// string form, then as its hex encoding.
func (r *Resolver) DeviceByUniqueIDBytes(ctx context.Context, uniqueID []byte) (*database.Device, error) {
	if len(uniqueID) == 0 {
		return nil, ErrUnknownUniqueID
	}
	if printable(uniqueID) {
		device, err := r.DeviceByUniqueID(ctx, string(uniqueID))
		if err == nil {
			return device, nil
		}
		if !errors.Is(err, ErrUnknownUniqueID) {
			return nil, err
		}
	}
	return r.DeviceByUniqueID(ctx, hex.EncodeToString(uniqueID))
}

func printable(b []byte) bool {
	for _, c := range b {
		if c < 0x20 || c > 0x7e {
			return false
		}
	}
	return true
}

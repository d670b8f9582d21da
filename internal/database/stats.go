package database

import (
	"context"

	"github.com/charmbracelet/log"
)

// Stats returns row counts for the db-stats command.
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	var stats Stats
	counts := []struct {
		model any
		dst   *int64
	}{
		{&Account{}, &stats.Accounts},
		{&User{}, &stats.Users},
		{&Device{}, &stats.Devices},
		{&DeviceGroup{}, &stats.DeviceGroups},
		{&DeviceGroupMember{}, &stats.GroupMembers},
		{&GroupAssignment{}, &stats.GroupAssignments},
		{&Transport{}, &stats.Transports},
	}
	for _, count := range counts {
		if err := c.db.WithContext(ctx).Model(count.model).Count(count.dst).Error; err != nil {
			log.Error("failed to count records", "error", err)
			return nil, err
		}
	}
	return &stats, nil
}

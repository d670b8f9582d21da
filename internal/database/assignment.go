package database

import (
	"context"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"
)

// GroupAssignment is the persisted per-user explicit device group
// assignment, ordered by Sequence ascending.
type GroupAssignment struct {
	AccountID string `gorm:"primaryKey"`
	UserID    string `gorm:"primaryKey"`
	GroupID   string `gorm:"primaryKey"`
	Sequence  int
	CreatedAt int64 `gorm:"autoCreateTime"`
}

// ListGroupAssignments returns the explicit group assignments of a user
// ordered by sequence, falling back to group ID order for equal sequences.
// A limit <= 0 means no limit.
func (c *Client) ListGroupAssignments(ctx context.Context, accountID, userID string, limit int) ([]GroupAssignment, error) {
	query := c.db.WithContext(ctx).
		Where("account_id = ? AND user_id = ?", accountID, userID).
		Order("sequence, group_id")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var assignments []GroupAssignment
	if err := query.Find(&assignments).Error; err != nil {
		log.Error("failed to list group assignments", "account", accountID, "user", userID, "error", err)
		return nil, err
	}
	return assignments, nil
}

// ReplaceGroupAssignments replaces all group assignments of a user with the
// given group IDs, assigning ascending sequence numbers in input order.
// The delete and inserts run in a single transaction.
func (c *Client) ReplaceGroupAssignments(ctx context.Context, accountID, userID string, groupIDs []string) error {
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("account_id = ? AND user_id = ?", accountID, userID).Delete(&GroupAssignment{}).Error; err != nil {
			return err
		}
		for i, groupID := range groupIDs {
			assignment := GroupAssignment{
				AccountID: accountID,
				UserID:    userID,
				GroupID:   groupID,
				Sequence:  i,
			}
			if err := tx.Create(&assignment).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Error("failed to replace group assignments", "account", accountID, "user", userID, "error", err)
		return err
	}
	return nil
}

// DeleteGroupAssignments removes all group assignments of a user.
func (c *Client) DeleteGroupAssignments(ctx context.Context, accountID, userID string) error {
	if err := c.db.WithContext(ctx).Where("account_id = ? AND user_id = ?", accountID, userID).Delete(&GroupAssignment{}).Error; err != nil {
		log.Error("failed to delete group assignments", "account", accountID, "user", userID, "error", err)
		return err
	}
	return nil
}

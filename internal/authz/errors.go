package authz

import "fmt"

// StorageError indicates that a read or write against the backing store
// failed. Callers must treat it as "unknown due to error", never as a
// denied authorization.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NotFoundError indicates that a referenced record does not exist where the
// caller assumed existence.
type NotFoundError struct {
	Kind      string
	AccountID string
	ID        string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s/%s", e.Kind, e.AccountID, e.ID)
}

// ValidationError indicates that a group ID supplied to SetDeviceGroups
// does not exist for the account. It is recovered per entry (skip and log)
// and never aborts the whole call.
type ValidationError struct {
	AccountID string
	GroupID   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("device group does not exist: %s/%s", e.AccountID, e.GroupID)
}

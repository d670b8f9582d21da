package authz

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/openfleet/fleettrack/internal/database"
	"github.com/samber/lo"
)

// Resolver decides which devices and device groups a user may access.
// It is stateless; all collaborators are injected at construction and the
// policy is immutable afterwards. Use NewSession for request-scoped
// memoization of a user's explicit group list.
type Resolver struct {
	db     database.DB
	policy Policy
}

// New creates a new Resolver.
func New(db database.DB, policy Policy) *Resolver {
	return &Resolver{
		db:     db,
		policy: policy,
	}
}

// groupListFunc looks up the explicit group assignments of a user. The
// resolver's decision bodies take it as a parameter so a Session can
// substitute its memoized variant.
type groupListFunc func(context.Context, *database.User) ([]string, error)

// IsAdminUser reports whether the user is the account administrator.
// A nil user is the distinguished system context and is treated as admin;
// callers passing "no user" deliberately get full access.
func IsAdminUser(user *database.User) bool {
	if user == nil {
		return true
	}
	return strings.EqualFold(user.UserID, database.AdminUserID)
}

// defaultDeviceAuthorization resolves the effective default device
// authorization: the account override if set, otherwise the policy default.
func (r *Resolver) defaultDeviceAuthorization(account *database.Account) bool {
	if account != nil && account.DefaultDeviceAuthorization != nil {
		return *account.DefaultDeviceAuthorization
	}
	return r.policy.DefaultDeviceAuthorization
}

// ExplicitlyAuthorizedGroupIDs returns the raw group assignments of the
// user in sequence order, deduplicated, without virtual group expansion.
// The reserved "none" sentinel and blank entries are skipped. Empty if the
// user has no explicit assignments.
func (r *Resolver) ExplicitlyAuthorizedGroupIDs(ctx context.Context, user *database.User) ([]string, error) {
	if user == nil {
		return nil, nil
	}
	assignments, err := r.db.ListGroupAssignments(ctx, user.AccountID, user.UserID, -1)
	if err != nil {
		return nil, &StorageError{Op: "list group assignments", Err: err}
	}
	groupIDs := make([]string, 0, len(assignments))
	for _, assignment := range assignments {
		groupID := assignment.GroupID
		if strings.TrimSpace(groupID) == "" || strings.EqualFold(groupID, database.GroupIDNone) {
			continue
		}
		groupIDs = append(groupIDs, groupID)
	}
	return lo.Uniq(groupIDs), nil
}

// AllAuthorizedGroupIDs returns every device group ID the user may browse,
// with the virtual "all" group always at index 0. For admin users (or a nil
// user) and for users without explicit assignments this is every group of
// the account in lexical order; otherwise it is the explicit assignment
// list in sequence order.
//
// The prepended "all" entry is a picker convenience so clients can always
// offer an "all devices" choice. It is not an authorization grant:
// IsAuthorizedDevice never consults it.
func (r *Resolver) AllAuthorizedGroupIDs(ctx context.Context, accountID string, user *database.User) ([]string, error) {
	return r.allAuthorizedGroupIDs(ctx, accountID, user, r.ExplicitlyAuthorizedGroupIDs)
}

func (r *Resolver) allAuthorizedGroupIDs(ctx context.Context, accountID string, user *database.User,
	explicitGroups groupListFunc,
) ([]string, error) {
	if accountID == "" {
		if user == nil {
			return nil, fmt.Errorf("account ID is required")
		}
		accountID = user.AccountID
	} else if user != nil && user.AccountID != accountID {
		return nil, fmt.Errorf("user %q does not belong to account %q", user.UserID, accountID)
	}

	var groupIDs []string
	if !IsAdminUser(user) {
		explicit, err := explicitGroups(ctx, user)
		if err != nil {
			return nil, err
		}
		if len(explicit) > 0 {
			groupIDs = explicit
		} else {
			// no explicit groups assigned, fall back to every group
			groupIDs, err = r.listAccountGroupIDs(ctx, accountID)
			if err != nil {
				return nil, err
			}
		}
	} else {
		var err error
		groupIDs, err = r.listAccountGroupIDs(ctx, accountID)
		if err != nil {
			return nil, err
		}
	}

	return lo.Uniq(append([]string{database.GroupIDAll}, groupIDs...)), nil
}

func (r *Resolver) listAccountGroupIDs(ctx context.Context, accountID string) ([]string, error) {
	groupIDs, err := r.db.ListGroupIDsForAccount(ctx, accountID)
	if err != nil {
		return nil, &StorageError{Op: "list device groups", Err: err}
	}
	return groupIDs, nil
}

// IsAuthorizedDevice reports whether the user may access the device.
// Decision order: blank device IDs are never authorized, admin users
// always are, then the preferred device policy applies, then the explicit
// group assignments, falling back to the default device authorization when
// the user has no explicit groups.
func (r *Resolver) IsAuthorizedDevice(ctx context.Context, account *database.Account, user *database.User, deviceID string) (bool, error) {
	return r.isAuthorizedDevice(ctx, account, user, deviceID, r.ExplicitlyAuthorizedGroupIDs)
}

func (r *Resolver) isAuthorizedDevice(ctx context.Context, account *database.Account, user *database.User, deviceID string,
	explicitGroups groupListFunc,
) (bool, error) {
	if strings.TrimSpace(deviceID) == "" {
		return false, nil
	}
	if IsAdminUser(user) {
		return true, nil
	}

	if r.policy.PreferredDeviceAuth != PreferredDeviceAuthFalse {
		prefDevID := user.PreferredDeviceID
		if strings.TrimSpace(prefDevID) != "" && strings.EqualFold(deviceID, prefDevID) {
			return true, nil
		}
		if r.policy.PreferredDeviceAuth == PreferredDeviceAuthOnly {
			// only the preferred device can be authorized
			return false, nil
		}
	}

	groupIDs, err := explicitGroups(ctx, user)
	if err != nil {
		return false, err
	}
	if len(groupIDs) == 0 {
		return r.defaultDeviceAuthorization(account), nil
	}
	for _, groupID := range groupIDs {
		if strings.EqualFold(groupID, database.GroupIDAll) {
			return true, nil
		}
		member, err := r.db.GroupHasDevice(ctx, user.AccountID, groupID, deviceID)
		if err != nil {
			return false, &StorageError{Op: "check group membership", Err: err}
		}
		if member {
			return true, nil
		}
	}
	log.Info("user not authorized to device", "account", user.AccountID, "user", user.UserID, "device", deviceID)
	return false, nil
}

// DefaultDeviceID returns the device a client should select by default for
// the user: the preferred device if it exists and is authorized, otherwise
// the first device of the user's first explicit group, otherwise the first
// device of the account when the default device authorization applies.
// Returns an empty string when no device qualifies.
func (r *Resolver) DefaultDeviceID(ctx context.Context, account *database.Account, user *database.User, includeInactive bool) (string, error) {
	return r.defaultDeviceID(ctx, account, user, includeInactive, r.ExplicitlyAuthorizedGroupIDs)
}

func (r *Resolver) defaultDeviceID(ctx context.Context, account *database.Account, user *database.User, includeInactive bool,
	explicitGroups groupListFunc,
) (string, error) {
	if user == nil {
		return "", fmt.Errorf("user is required")
	}

	if user.HasPreferredDeviceID() {
		devID := user.PreferredDeviceID
		exists, err := r.db.DeviceExists(ctx, user.AccountID, devID)
		if err != nil {
			// ignore the lookup error and fall through to the group scan
			exists = false
		}
		if exists {
			authorized, err := r.isAuthorizedDevice(ctx, account, user, devID, explicitGroups)
			if err != nil {
				return "", err
			}
			if authorized {
				return devID, nil
			}
		}
	}

	groupIDs, err := explicitGroups(ctx, user)
	if err != nil {
		return "", err
	}
	if len(groupIDs) == 0 {
		if !r.defaultDeviceAuthorization(account) {
			return "", nil
		}
		deviceIDs, err := r.db.ListDeviceIDsForAccount(ctx, user.AccountID, includeInactive, 1)
		if err != nil {
			return "", &StorageError{Op: "list account devices", Err: err}
		}
		if len(deviceIDs) == 0 {
			return "", nil
		}
		return deviceIDs[0], nil
	}

	deviceIDs, err := r.db.ListDeviceIDsForGroup(ctx, user.AccountID, groupIDs[0], includeInactive, 1)
	if err != nil {
		return "", &StorageError{Op: "list group devices", Err: err}
	}
	if len(deviceIDs) == 0 {
		return "", nil
	}
	return deviceIDs[0], nil
}

// AuthorizedDeviceIDs returns every device ID the user may access: the
// union of the device memberships of the user's explicit groups (the
// virtual "all" group expands to every device of the account), or every
// device of the account when the user has no explicit groups and the
// default device authorization applies. A nil user resolves to every
// device of the account.
func (r *Resolver) AuthorizedDeviceIDs(ctx context.Context, account *database.Account, user *database.User, includeInactive bool) ([]string, error) {
	return r.authorizedDeviceIDs(ctx, account, user, includeInactive, r.ExplicitlyAuthorizedGroupIDs)
}

func (r *Resolver) authorizedDeviceIDs(ctx context.Context, account *database.Account, user *database.User, includeInactive bool,
	explicitGroups groupListFunc,
) ([]string, error) {
	if user == nil {
		if account == nil {
			return []string{}, nil
		}
		deviceIDs, err := r.db.ListDeviceIDsForAccount(ctx, account.AccountID, includeInactive, -1)
		if err != nil {
			return nil, &StorageError{Op: "list account devices", Err: err}
		}
		return deviceIDs, nil
	}

	groupIDs, err := explicitGroups(ctx, user)
	if err != nil {
		return nil, err
	}
	if len(groupIDs) == 0 {
		if !r.defaultDeviceAuthorization(account) {
			return []string{}, nil
		}
		deviceIDs, err := r.db.ListDeviceIDsForAccount(ctx, user.AccountID, includeInactive, -1)
		if err != nil {
			return nil, &StorageError{Op: "list account devices", Err: err}
		}
		return deviceIDs, nil
	}

	var deviceIDs []string
	for _, groupID := range groupIDs {
		ids, err := r.db.ListDeviceIDsForGroup(ctx, user.AccountID, groupID, includeInactive, -1)
		if err != nil {
			return nil, &StorageError{Op: "list group devices", Err: err}
		}
		deviceIDs = append(deviceIDs, ids...)
	}
	return lo.Uniq(deviceIDs), nil
}

// SetDeviceGroups replaces the explicit group assignments of the user with
// the given list, assigning ascending sequence numbers in input order.
// Blank entries and the reserved "none" sentinel are skipped. Group IDs
// that do not exist for the account are skipped and logged. If the list
// contains the "all" marker, all other entries are discarded: a single
// "all" row is written only when the effective default device authorization
// is false, so the user is still explicitly granted every device; otherwise
// no rows are written at all.
func (r *Resolver) SetDeviceGroups(ctx context.Context, account *database.Account, user *database.User, groupIDs []string) error {
	if user == nil {
		return fmt.Errorf("user is required")
	}

	all := false
	addGroups := make([]string, 0, len(groupIDs))
	for _, groupID := range groupIDs {
		switch {
		case strings.EqualFold(groupID, database.GroupIDAll):
			all = true
			addGroups = addGroups[:0]
		case strings.EqualFold(groupID, database.GroupIDNone):
			// reserved sentinel, skip
		case strings.TrimSpace(groupID) == "":
			// skip blank group ids
		default:
			exists, err := r.db.GroupExists(ctx, user.AccountID, groupID)
			if err != nil {
				return &StorageError{Op: "check device group existence", Err: err}
			}
			if !exists {
				verr := &ValidationError{AccountID: user.AccountID, GroupID: groupID}
				log.Error("skipping device group assignment", "error", verr)
				continue
			}
			addGroups = append(addGroups, groupID)
		}
		if all {
			break
		}
	}

	if all {
		if !r.defaultDeviceAuthorization(account) {
			addGroups = []string{database.GroupIDAll}
		} else {
			addGroups = nil
		}
	} else {
		addGroups = lo.Uniq(addGroups)
	}

	if err := r.db.ReplaceGroupAssignments(ctx, user.AccountID, user.UserID, addGroups); err != nil {
		return &StorageError{Op: "replace group assignments", Err: err}
	}
	return nil
}

// wrapLookupErr maps a store-level not-found error to the authz error
// taxonomy, wrapping everything else as a storage error.
func wrapLookupErr(op, kind, accountID, id string, err error) error {
	if errors.Is(err, database.ErrNotFound) {
		return &NotFoundError{Kind: kind, AccountID: accountID, ID: id}
	}
	return &StorageError{Op: op, Err: err}
}

// LookupAccount fetches an account, mapping store errors to the authz
// error taxonomy.
func (r *Resolver) LookupAccount(ctx context.Context, accountID string) (*database.Account, error) {
	account, err := r.db.GetAccount(ctx, accountID)
	if err != nil {
		return nil, wrapLookupErr("get account", "account", accountID, accountID, err)
	}
	return account, nil
}

// LookupUser fetches a user, mapping store errors to the authz error
// taxonomy.
func (r *Resolver) LookupUser(ctx context.Context, accountID, userID string) (*database.User, error) {
	user, err := r.db.GetUser(ctx, accountID, userID)
	if err != nil {
		return nil, wrapLookupErr("get user", "user", accountID, userID, err)
	}
	return user, nil
}

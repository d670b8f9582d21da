package authz

import (
	"context"

	"github.com/openfleet/fleettrack/internal/database"
)

// Session provides the resolver operations with request-scoped memoization
// of explicit group lists. A session is meant to live for one request and
// must not be shared across goroutines. SetDeviceGroups invalidates the
// memoized list of the affected user, so a stale list never outlives a
// mutating call.
type Session struct {
	r      *Resolver
	groups map[string][]string
}

// NewSession creates a request-scoped session on top of the resolver.
func (r *Resolver) NewSession() *Session {
	return &Session{
		r:      r,
		groups: make(map[string][]string),
	}
}

func userKey(user *database.User) string {
	return user.AccountID + "/" + user.UserID
}

// ExplicitlyAuthorizedGroupIDs is the memoizing variant of
// Resolver.ExplicitlyAuthorizedGroupIDs.
func (s *Session) ExplicitlyAuthorizedGroupIDs(ctx context.Context, user *database.User) ([]string, error) {
	if user == nil {
		return nil, nil
	}
	key := userKey(user)
	if groupIDs, ok := s.groups[key]; ok {
		return groupIDs, nil
	}
	groupIDs, err := s.r.ExplicitlyAuthorizedGroupIDs(ctx, user)
	if err != nil {
		return nil, err
	}
	s.groups[key] = groupIDs
	return groupIDs, nil
}

// AllAuthorizedGroupIDs is the memoizing variant of
// Resolver.AllAuthorizedGroupIDs.
func (s *Session) AllAuthorizedGroupIDs(ctx context.Context, accountID string, user *database.User) ([]string, error) {
	return s.r.allAuthorizedGroupIDs(ctx, accountID, user, s.ExplicitlyAuthorizedGroupIDs)
}

// IsAuthorizedDevice is the memoizing variant of
// Resolver.IsAuthorizedDevice.
func (s *Session) IsAuthorizedDevice(ctx context.Context, account *database.Account, user *database.User, deviceID string) (bool, error) {
	return s.r.isAuthorizedDevice(ctx, account, user, deviceID, s.ExplicitlyAuthorizedGroupIDs)
}

// DefaultDeviceID is the memoizing variant of Resolver.DefaultDeviceID.
func (s *Session) DefaultDeviceID(ctx context.Context, account *database.Account, user *database.User, includeInactive bool) (string, error) {
	return s.r.defaultDeviceID(ctx, account, user, includeInactive, s.ExplicitlyAuthorizedGroupIDs)
}

// AuthorizedDeviceIDs is the memoizing variant of
// Resolver.AuthorizedDeviceIDs.
func (s *Session) AuthorizedDeviceIDs(ctx context.Context, account *database.Account, user *database.User, includeInactive bool) ([]string, error) {
	return s.r.authorizedDeviceIDs(ctx, account, user, includeInactive, s.ExplicitlyAuthorizedGroupIDs)
}

// SetDeviceGroups replaces the user's group assignments and drops the
// memoized group list of that user.
func (s *Session) SetDeviceGroups(ctx context.Context, account *database.Account, user *database.User, groupIDs []string) error {
	if user != nil {
		delete(s.groups, userKey(user))
	}
	return s.r.SetDeviceGroups(ctx, account, user, groupIDs)
}

package authz

import (
	"context"
	"errors"
	"testing"

	"github.com/openfleet/fleettrack/internal/database"
	"github.com/openfleet/fleettrack/internal/database/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// ResolverTestSuite tests the device authorization resolver against the
// in-memory mock database.
type ResolverTestSuite struct {
	suite.Suite
	db *mock.MockDB
}

func TestResolverTestSuite(t *testing.T) {
	suite.Run(t, new(ResolverTestSuite))
}

// SetupTest seeds the common fixture: account "acme" with devices dev1-3
// and groups fleet1 (dev1, dev2) and fleet2 (dev3). User bob is assigned
// fleet1, user carol has no assignments.
func (s *ResolverTestSuite) SetupTest() {
	s.db = mock.NewMockDB()
	s.db.AddAccount(&database.Account{AccountID: "acme", IsActive: true})
	s.db.AddDevice(&database.Device{AccountID: "acme", DeviceID: "dev1", UniqueID: "imei-1", IsActive: true, LastGPSAt: 100})
	s.db.AddDevice(&database.Device{AccountID: "acme", DeviceID: "dev2", UniqueID: "imei-2", IsActive: true, LastGPSAt: 100})
	s.db.AddDevice(&database.Device{AccountID: "acme", DeviceID: "dev3", UniqueID: "imei-3", IsActive: true, LastGPSAt: 100})
	s.db.AddGroup(&database.DeviceGroup{AccountID: "acme", GroupID: "fleet1", Description: "Fleet One", IsActive: true}, "dev1", "dev2")
	s.db.AddGroup(&database.DeviceGroup{AccountID: "acme", GroupID: "fleet2", Description: "Fleet Two", IsActive: true}, "dev3")
	s.db.AddUser(&database.User{AccountID: "acme", UserID: "bob", IsActive: true})
	s.db.AddUser(&database.User{AccountID: "acme", UserID: "carol", IsActive: true})
	s.db.AddUser(&database.User{AccountID: "acme", UserID: "admin", IsActive: true})
	require.NoError(s.T(), s.db.ReplaceGroupAssignments(context.Background(), "acme", "bob", []string{"fleet1"}))
}

func (s *ResolverTestSuite) resolver(defaultAuth bool) *Resolver {
	return New(s.db, Policy{DefaultDeviceAuthorization: defaultAuth})
}

func (s *ResolverTestSuite) account() *database.Account {
	account, err := s.db.GetAccount(context.Background(), "acme")
	s.Require().NoError(err)
	return account
}

func (s *ResolverTestSuite) user(userID string) *database.User {
	user, err := s.db.GetUser(context.Background(), "acme", userID)
	s.Require().NoError(err)
	return user
}

func (s *ResolverTestSuite) TestAdminAuthorizedForEveryDevice() {
	r := s.resolver(false)
	ctx := context.Background()

	for _, deviceID := range []string{"dev1", "dev2", "dev3", "does-not-exist"} {
		ok, err := r.IsAuthorizedDevice(ctx, s.account(), s.user("admin"), deviceID)
		s.NoError(err)
		s.True(ok, "admin must be authorized for %s", deviceID)
	}

	// a nil user is the system context and is treated as admin
	ok, err := r.IsAuthorizedDevice(ctx, s.account(), nil, "dev1")
	s.NoError(err)
	s.True(ok)
}

func (s *ResolverTestSuite) TestAdminUserIDIsCaseInsensitive() {
	s.db.AddUser(&database.User{AccountID: "acme", UserID: "Admin", IsActive: true})
	s.True(IsAdminUser(&database.User{AccountID: "acme", UserID: "ADMIN"}))
	s.True(IsAdminUser(nil))
	s.False(IsAdminUser(&database.User{AccountID: "acme", UserID: "bob"}))
}

func (s *ResolverTestSuite) TestBlankDeviceIDNeverAuthorized() {
	r := s.resolver(true)
	ok, err := r.IsAuthorizedDevice(context.Background(), s.account(), s.user("bob"), "")
	s.NoError(err)
	s.False(ok)
}

func (s *ResolverTestSuite) TestExplicitGroupMembership() {
	r := s.resolver(false)
	ctx := context.Background()
	bob := s.user("bob")

	ok, err := r.IsAuthorizedDevice(ctx, s.account(), bob, "dev1")
	s.NoError(err)
	s.True(ok)

	ok, err = r.IsAuthorizedDevice(ctx, s.account(), bob, "dev3")
	s.NoError(err)
	s.False(ok)

	deviceIDs, err := r.AuthorizedDeviceIDs(ctx, s.account(), bob, false)
	s.NoError(err)
	s.Equal([]string{"dev1", "dev2"}, deviceIDs)
}

func (s *ResolverTestSuite) TestEmptyGroupListFallsBackToDefaultAuthorization() {
	ctx := context.Background()
	carol := s.user("carol")

	// default authorization false: no devices
	r := s.resolver(false)
	ok, err := r.IsAuthorizedDevice(ctx, s.account(), carol, "dev1")
	s.NoError(err)
	s.False(ok)
	deviceIDs, err := r.AuthorizedDeviceIDs(ctx, s.account(), carol, false)
	s.NoError(err)
	s.Empty(deviceIDs)

	// default authorization true: every device
	r = s.resolver(true)
	ok, err = r.IsAuthorizedDevice(ctx, s.account(), carol, "dev1")
	s.NoError(err)
	s.True(ok)
	deviceIDs, err = r.AuthorizedDeviceIDs(ctx, s.account(), carol, false)
	s.NoError(err)
	s.Equal([]string{"dev1", "dev2", "dev3"}, deviceIDs)
}

func (s *ResolverTestSuite) TestAccountOverridesDefaultAuthorization() {
	deny := false
	s.db.AddAccount(&database.Account{AccountID: "acme", IsActive: true, DefaultDeviceAuthorization: &deny})

	// policy default is true, but the account override denies
	r := s.resolver(true)
	ok, err := r.IsAuthorizedDevice(context.Background(), s.account(), s.user("carol"), "dev1")
	s.NoError(err)
	s.False(ok)
}

func (s *ResolverTestSuite) TestPreferredDevicePolicy() {
	ctx := context.Background()
	bob := s.user("bob")
	bob.PreferredDeviceID = "dev3"
	s.Require().NoError(s.db.UpdateUser(ctx, bob))
	bob = s.user("bob")

	// policy "true": preferred device is authorized in addition to groups
	r := New(s.db, Policy{PreferredDeviceAuth: PreferredDeviceAuthTrue})
	ok, err := r.IsAuthorizedDevice(ctx, s.account(), bob, "dev3")
	s.NoError(err)
	s.True(ok)
	ok, err = r.IsAuthorizedDevice(ctx, s.account(), bob, "dev1")
	s.NoError(err)
	s.True(ok, "group membership still applies under policy \"true\"")

	// preferred device match is case-insensitive
	ok, err = r.IsAuthorizedDevice(ctx, s.account(), bob, "DEV3")
	s.NoError(err)
	s.True(ok)

	// policy "only": nothing but the preferred device is authorized, even
	// devices reachable through explicitly assigned groups
	r = New(s.db, Policy{PreferredDeviceAuth: PreferredDeviceAuthOnly})
	ok, err = r.IsAuthorizedDevice(ctx, s.account(), bob, "dev3")
	s.NoError(err)
	s.True(ok)
	ok, err = r.IsAuthorizedDevice(ctx, s.account(), bob, "dev1")
	s.NoError(err)
	s.False(ok)
}

func (s *ResolverTestSuite) TestAllAuthorizedGroupIDsAlwaysStartsWithAll() {
	r := s.resolver(false)
	ctx := context.Background()

	// explicit assignment: sequence order after the "all" entry
	groupIDs, err := r.AllAuthorizedGroupIDs(ctx, "acme", s.user("bob"))
	s.NoError(err)
	s.Equal([]string{database.GroupIDAll, "fleet1"}, groupIDs)

	// no explicit assignment: every group of the account, lexical order
	groupIDs, err = r.AllAuthorizedGroupIDs(ctx, "acme", s.user("carol"))
	s.NoError(err)
	s.Equal([]string{database.GroupIDAll, "fleet1", "fleet2"}, groupIDs)

	// admin: every group of the account
	groupIDs, err = r.AllAuthorizedGroupIDs(ctx, "acme", s.user("admin"))
	s.NoError(err)
	s.Equal([]string{database.GroupIDAll, "fleet1", "fleet2"}, groupIDs)

	// nil user: same as admin
	groupIDs, err = r.AllAuthorizedGroupIDs(ctx, "acme", nil)
	s.NoError(err)
	s.Equal([]string{database.GroupIDAll, "fleet1", "fleet2"}, groupIDs)
}

func (s *ResolverTestSuite) TestAllPrependIsNotAGrant() {
	// carol has no explicit groups; AllAuthorizedGroupIDs lists "all" as a
	// picker convenience, but with default authorization false she still
	// has no device access.
	r := s.resolver(false)
	ctx := context.Background()
	carol := s.user("carol")

	groupIDs, err := r.AllAuthorizedGroupIDs(ctx, "acme", carol)
	s.NoError(err)
	s.Equal(database.GroupIDAll, groupIDs[0])

	ok, err := r.IsAuthorizedDevice(ctx, s.account(), carol, "dev1")
	s.NoError(err)
	s.False(ok)
}

func (s *ResolverTestSuite) TestSetDeviceGroupsRoundTrip() {
	r := s.resolver(false)
	ctx := context.Background()
	bob := s.user("bob")

	err := r.SetDeviceGroups(ctx, s.account(), bob, []string{"fleet1", "fleet2", "bogus", "none", ""})
	s.NoError(err)

	groupIDs, err := r.ExplicitlyAuthorizedGroupIDs(ctx, bob)
	s.NoError(err)
	s.Equal([]string{"fleet1", "fleet2"}, groupIDs)
}

func (s *ResolverTestSuite) TestSetDeviceGroupsAllMarker() {
	ctx := context.Background()
	bob := s.user("bob")

	// default authorization true: "all" writes no rows at all
	r := s.resolver(true)
	s.NoError(r.SetDeviceGroups(ctx, s.account(), bob, []string{"all"}))
	groupIDs, err := r.ExplicitlyAuthorizedGroupIDs(ctx, bob)
	s.NoError(err)
	s.Empty(groupIDs)

	// default authorization false: a single explicit "all" row is written,
	// otherwise the user would be authorized for nothing
	r = s.resolver(false)
	s.NoError(r.SetDeviceGroups(ctx, s.account(), bob, []string{"all"}))
	groupIDs, err = r.ExplicitlyAuthorizedGroupIDs(ctx, bob)
	s.NoError(err)
	s.Equal([]string{database.GroupIDAll}, groupIDs)

	// idempotence
	s.NoError(r.SetDeviceGroups(ctx, s.account(), bob, []string{"all"}))
	groupIDs, err = r.ExplicitlyAuthorizedGroupIDs(ctx, bob)
	s.NoError(err)
	s.Equal([]string{database.GroupIDAll}, groupIDs)

	// "all" discards any other listed groups
	s.NoError(r.SetDeviceGroups(ctx, s.account(), bob, []string{"fleet1", "all", "fleet2"}))
	groupIDs, err = r.ExplicitlyAuthorizedGroupIDs(ctx, bob)
	s.NoError(err)
	s.Equal([]string{database.GroupIDAll}, groupIDs)

	// the explicit "all" row authorizes every device
	ok, err := r.IsAuthorizedDevice(ctx, s.account(), s.user("bob"), "dev3")
	s.NoError(err)
	s.True(ok)
}

func (s *ResolverTestSuite) TestSetDeviceGroupsDeduplicates() {
	r := s.resolver(false)
	ctx := context.Background()
	bob := s.user("bob")

	s.NoError(r.SetDeviceGroups(ctx, s.account(), bob, []string{"fleet2", "fleet1", "fleet2"}))
	groupIDs, err := r.ExplicitlyAuthorizedGroupIDs(ctx, bob)
	s.NoError(err)
	s.Equal([]string{"fleet2", "fleet1"}, groupIDs)
}

func (s *ResolverTestSuite) TestDefaultDeviceID() {
	ctx := context.Background()
	r := s.resolver(false)

	// first device of the first explicit group
	deviceID, err := r.DefaultDeviceID(ctx, s.account(), s.user("bob"), false)
	s.NoError(err)
	s.Equal("dev1", deviceID)

	// preferred device wins when it exists and is authorized
	bob := s.user("bob")
	bob.PreferredDeviceID = "dev2"
	s.Require().NoError(s.db.UpdateUser(ctx, bob))
	deviceID, err = r.DefaultDeviceID(ctx, s.account(), s.user("bob"), false)
	s.NoError(err)
	s.Equal("dev2", deviceID)

	// an unauthorized preferred device falls back to the group scan
	bob = s.user("bob")
	bob.PreferredDeviceID = "dev3"
	s.Require().NoError(s.db.UpdateUser(ctx, bob))
	deviceID, err = r.DefaultDeviceID(ctx, s.account(), s.user("bob"), false)
	s.NoError(err)
	s.Equal("dev1", deviceID)

	// no explicit groups, default authorization false: no default device
	deviceID, err = r.DefaultDeviceID(ctx, s.account(), s.user("carol"), false)
	s.NoError(err)
	s.Empty(deviceID)

	// no explicit groups, default authorization true: first account device
	r = s.resolver(true)
	deviceID, err = r.DefaultDeviceID(ctx, s.account(), s.user("carol"), false)
	s.NoError(err)
	s.Equal("dev1", deviceID)
}

func (s *ResolverTestSuite) TestStorageErrorPropagates() {
	r := s.resolver(true)
	ctx := context.Background()
	injected := errors.New("connection lost")
	s.db.ListGroupAssignmentsError = injected

	// a read failure must never be coerced into "not authorized"
	_, err := r.IsAuthorizedDevice(ctx, s.account(), s.user("bob"), "dev1")
	s.Error(err)
	var storageErr *StorageError
	s.ErrorAs(err, &storageErr)
	s.ErrorIs(err, injected)

	_, err = r.ExplicitlyAuthorizedGroupIDs(ctx, s.user("bob"))
	s.ErrorAs(err, &storageErr)

	_, err = r.AllAuthorizedGroupIDs(ctx, "acme", s.user("bob"))
	s.ErrorAs(err, &storageErr)

	_, err = r.AuthorizedDeviceIDs(ctx, s.account(), s.user("bob"), false)
	s.ErrorAs(err, &storageErr)
}

func (s *ResolverTestSuite) TestSetDeviceGroupsAbortsOnStorageError() {
	r := s.resolver(false)
	ctx := context.Background()
	injected := errors.New("disk full")
	s.db.ReplaceGroupAssignmentsError = injected

	err := r.SetDeviceGroups(ctx, s.account(), s.user("bob"), []string{"fleet2"})
	var storageErr *StorageError
	s.ErrorAs(err, &storageErr)

	// the old assignment is still in place
	s.db.ReplaceGroupAssignmentsError = nil
	groupIDs, err := r.ExplicitlyAuthorizedGroupIDs(ctx, s.user("bob"))
	s.NoError(err)
	s.Equal([]string{"fleet1"}, groupIDs)
}

func (s *ResolverTestSuite) TestNoneSentinelSkippedOnRead() {
	// a "none" row should never exist, but if one does it must be skipped
	s.Require().NoError(s.db.ReplaceGroupAssignments(context.Background(), "acme", "bob", []string{"none", "fleet1"}))
	r := s.resolver(false)
	groupIDs, err := r.ExplicitlyAuthorizedGroupIDs(context.Background(), s.user("bob"))
	s.NoError(err)
	s.Equal([]string{"fleet1"}, groupIDs)
}

func (s *ResolverTestSuite) TestLookupNotFound() {
	r := s.resolver(false)
	ctx := context.Background()

	_, err := r.LookupAccount(ctx, "nope")
	var notFound *NotFoundError
	s.ErrorAs(err, &notFound)
	s.Equal("account", notFound.Kind)

	_, err = r.LookupUser(ctx, "acme", "nope")
	s.ErrorAs(err, &notFound)
	s.Equal("user", notFound.Kind)
}

func TestParsePreferredDeviceAuth(t *testing.T) {
	assert.Equal(t, PreferredDeviceAuthFalse, ParsePreferredDeviceAuth(""))
	assert.Equal(t, PreferredDeviceAuthFalse, ParsePreferredDeviceAuth("false"))
	assert.Equal(t, PreferredDeviceAuthFalse, ParsePreferredDeviceAuth("bogus"))
	assert.Equal(t, PreferredDeviceAuthTrue, ParsePreferredDeviceAuth("true"))
	assert.Equal(t, PreferredDeviceAuthTrue, ParsePreferredDeviceAuth(" TRUE "))
	assert.Equal(t, PreferredDeviceAuthOnly, ParsePreferredDeviceAuth("only"))
	assert.Equal(t, PreferredDeviceAuthOnly, ParsePreferredDeviceAuth("Only"))
}

// Package mock provides an in-memory implementation of database.DB for
// testing, with per-method error injection.
package mock

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/openfleet/fleettrack/internal/database"
	"golang.org/x/crypto/bcrypt"
)

var _ database.DB = (*MockDB)(nil)

// MockDB is a mock implementation of database.DB for testing.
type MockDB struct {
	mu sync.RWMutex

	accounts    map[string]*database.Account
	users       map[string]*database.User
	devices     map[string]*database.Device
	groups      map[string]*database.DeviceGroup
	members     map[string]map[string]struct{}
	assignments map[string][]database.GroupAssignment
	transports  map[string]*database.Transport

	// Error simulation
	GetAccountError              error
	CreateAccountError           error
	ListAccountIDsError          error
	GetUserError                 error
	CreateUserError              error
	UpdateUserError              error
	DeleteUserError              error
	SetUserPasswordError         error
	CheckUserPasswordError       error
	RecordFailedLoginError       error
	ClearLoginFailuresError      error
	GetDeviceError               error
	DeviceExistsError            error
	ListDeviceIDsForAccountError error
	GetDeviceByUniqueIDError     error
	GetDeviceGroupError          error
	ListGroupIDsForAccountError  error
	GroupExistsError             error
	GroupHasDeviceError          error
	ListDeviceIDsForGroupError   error
	ListGroupAssignmentsError    error
	ReplaceGroupAssignmentsError error
	DeleteGroupAssignmentsError  error
	GetTransportByUniqueIDError  error
	StatsError                   error
}

// NewMockDB creates a new MockDB instance.
func NewMockDB() *MockDB {
	m := &MockDB{}
	m.reset()
	return m
}

func (m *MockDB) reset() {
	m.accounts = make(map[string]*database.Account)
	m.users = make(map[string]*database.User)
	m.devices = make(map[string]*database.Device)
	m.groups = make(map[string]*database.DeviceGroup)
	m.members = make(map[string]map[string]struct{})
	m.assignments = make(map[string][]database.GroupAssignment)
	m.transports = make(map[string]*database.Transport)
}

// Reset clears all data and errors from the mock database.
func (m *MockDB) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset()

	m.GetAccountError = nil
	m.CreateAccountError = nil
	m.ListAccountIDsError = nil
	m.GetUserError = nil
	m.CreateUserError = nil
	m.UpdateUserError = nil
	m.DeleteUserError = nil
	m.SetUserPasswordError = nil
	m.CheckUserPasswordError = nil
	m.RecordFailedLoginError = nil
	m.ClearLoginFailuresError = nil
	m.GetDeviceError = nil
	m.DeviceExistsError = nil
	m.ListDeviceIDsForAccountError = nil
	m.GetDeviceByUniqueIDError = nil
	m.GetDeviceGroupError = nil
	m.ListGroupIDsForAccountError = nil
	m.GroupExistsError = nil
	m.GroupHasDeviceError = nil
	m.ListDeviceIDsForGroupError = nil
	m.ListGroupAssignmentsError = nil
	m.ReplaceGroupAssignmentsError = nil
	m.DeleteGroupAssignmentsError = nil
	m.GetTransportByUniqueIDError = nil
	m.StatsError = nil
}

func key(parts ...string) string {
	return strings.Join(parts, "/")
}

// AddAccount seeds an account.
func (m *MockDB) AddAccount(account *database.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[account.AccountID] = account
}

// AddUser seeds a user.
func (m *MockDB) AddUser(user *database.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[key(user.AccountID, user.UserID)] = user
}

// AddDevice seeds a device.
func (m *MockDB) AddDevice(device *database.Device) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.devices[key(device.AccountID, device.DeviceID)] = device
}

// AddGroup seeds a device group with its member device IDs.
func (m *MockDB) AddGroup(group *database.DeviceGroup, deviceIDs ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groups[key(group.AccountID, group.GroupID)] = group
	memberSet := make(map[string]struct{}, len(deviceIDs))
	for _, deviceID := range deviceIDs {
		memberSet[deviceID] = struct{}{}
	}
	m.members[key(group.AccountID, group.GroupID)] = memberSet
}

// AddTransport seeds a transport.
func (m *MockDB) AddTransport(transport *database.Transport) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transports[transport.UniqueID] = transport
}

func (m *MockDB) GetAccount(_ context.Context, accountID string) (*database.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.GetAccountError != nil {
		return nil, m.GetAccountError
	}
	account, ok := m.accounts[accountID]
	if !ok {
		return nil, database.ErrNotFound
	}
	copied := *account
	return &copied, nil
}

func (m *MockDB) CreateAccount(_ context.Context, account *database.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateAccountError != nil {
		return m.CreateAccountError
	}
	m.accounts[account.AccountID] = account
	return nil
}

func (m *MockDB) ListAccountIDs(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ListAccountIDsError != nil {
		return nil, m.ListAccountIDsError
	}
	ids := make([]string, 0, len(m.accounts))
	for id := range m.accounts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *MockDB) GetUser(_ context.Context, accountID, userID string) (*database.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.GetUserError != nil {
		return nil, m.GetUserError
	}
	user, ok := m.users[key(accountID, userID)]
	if !ok {
		return nil, database.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (m *MockDB) CreateUser(_ context.Context, user *database.User) (*database.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateUserError != nil {
		return nil, m.CreateUserError
	}
	m.users[key(user.AccountID, user.UserID)] = user
	return user, nil
}

func (m *MockDB) UpdateUser(_ context.Context, user *database.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateUserError != nil {
		return m.UpdateUserError
	}
	copied := *user
	m.users[key(user.AccountID, user.UserID)] = &copied
	return nil
}

func (m *MockDB) DeleteUser(_ context.Context, accountID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeleteUserError != nil {
		return m.DeleteUserError
	}
	delete(m.users, key(accountID, userID))
	delete(m.assignments, key(accountID, userID))
	return nil
}

func (m *MockDB) SetUserPassword(_ context.Context, accountID, userID, password string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetUserPasswordError != nil {
		return m.SetUserPasswordError
	}
	user, ok := m.users[key(accountID, userID)]
	if !ok {
		return database.ErrNotFound
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return err
	}
	user.PasswordHash = string(hash)
	return nil
}

func (m *MockDB) CheckUserPassword(_ context.Context, accountID, userID, password string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.CheckUserPasswordError != nil {
		return false, m.CheckUserPasswordError
	}
	user, ok := m.users[key(accountID, userID)]
	if !ok {
		return false, database.ErrNotFound
	}
	if user.PasswordHash == "" {
		return false, nil
	}
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil, nil
}

func (m *MockDB) RecordFailedLogin(_ context.Context, accountID, userID string, threshold int, suspend time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RecordFailedLoginError != nil {
		return m.RecordFailedLoginError
	}
	user, ok := m.users[key(accountID, userID)]
	if !ok {
		return database.ErrNotFound
	}
	user.FailedLoginCount++
	if threshold > 0 && user.FailedLoginCount >= threshold {
		until := time.Now().Add(suspend).Unix()
		if until > user.SuspendUntil {
			user.SuspendUntil = until
		}
	}
	return nil
}

func (m *MockDB) ClearLoginFailures(_ context.Context, accountID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ClearLoginFailuresError != nil {
		return m.ClearLoginFailuresError
	}
	user, ok := m.users[key(accountID, userID)]
	if !ok {
		return database.ErrNotFound
	}
	user.FailedLoginCount = 0
	user.SuspendUntil = 0
	user.LastLoginAt = time.Now().Unix()
	return nil
}

func (m *MockDB) GetDevice(_ context.Context, accountID, deviceID string) (*database.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.GetDeviceError != nil {
		return nil, m.GetDeviceError
	}
	device, ok := m.devices[key(accountID, deviceID)]
	if !ok {
		return nil, database.ErrNotFound
	}
	copied := *device
	return &copied, nil
}

func (m *MockDB) DeviceExists(_ context.Context, accountID, deviceID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.DeviceExistsError != nil {
		return false, m.DeviceExistsError
	}
	_, ok := m.devices[key(accountID, deviceID)]
	return ok, nil
}

func (m *MockDB) ListDeviceIDsForAccount(_ context.Context, accountID string, includeInactive bool, limit int) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ListDeviceIDsForAccountError != nil {
		return nil, m.ListDeviceIDsForAccountError
	}
	var ids []string
	for _, device := range m.devices {
		if device.AccountID != accountID {
			continue
		}
		if !includeInactive && !device.IsActive {
			continue
		}
		ids = append(ids, device.DeviceID)
	}
	sort.Strings(ids)
	return clip(ids, limit), nil
}

func (m *MockDB) GetDeviceByUniqueID(_ context.Context, uniqueID string) (*database.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.GetDeviceByUniqueIDError != nil {
		return nil, m.GetDeviceByUniqueIDError
	}
	for _, device := range m.devices {
		if device.UniqueID == uniqueID {
			copied := *device
			return &copied, nil
		}
	}
	return nil, database.ErrNotFound
}

func (m *MockDB) GetDeviceGroup(_ context.Context, accountID, groupID string) (*database.DeviceGroup, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.GetDeviceGroupError != nil {
		return nil, m.GetDeviceGroupError
	}
	group, ok := m.groups[key(accountID, groupID)]
	if !ok {
		return nil, database.ErrNotFound
	}
	copied := *group
	return &copied, nil
}

func (m *MockDB) ListGroupIDsForAccount(_ context.Context, accountID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ListGroupIDsForAccountError != nil {
		return nil, m.ListGroupIDsForAccountError
	}
	var ids []string
	for _, group := range m.groups {
		if group.AccountID == accountID {
			ids = append(ids, group.GroupID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *MockDB) GroupExists(_ context.Context, accountID, groupID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.GroupExistsError != nil {
		return false, m.GroupExistsError
	}
	if strings.EqualFold(groupID, database.GroupIDAll) {
		return true, nil
	}
	_, ok := m.groups[key(accountID, groupID)]
	return ok, nil
}

func (m *MockDB) GroupHasDevice(_ context.Context, accountID, groupID, deviceID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.GroupHasDeviceError != nil {
		return false, m.GroupHasDeviceError
	}
	memberSet, ok := m.members[key(accountID, groupID)]
	if !ok {
		return false, nil
	}
	_, ok = memberSet[deviceID]
	return ok, nil
}

func (m *MockDB) ListDeviceIDsForGroup(ctx context.Context, accountID, groupID string, includeInactive bool, limit int) ([]string, error) {
	if strings.EqualFold(groupID, database.GroupIDAll) {
		return m.ListDeviceIDsForAccount(ctx, accountID, includeInactive, limit)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ListDeviceIDsForGroupError != nil {
		return nil, m.ListDeviceIDsForGroupError
	}
	memberSet := m.members[key(accountID, groupID)]
	var ids []string
	for deviceID := range memberSet {
		device, ok := m.devices[key(accountID, deviceID)]
		if !ok {
			continue
		}
		if !includeInactive && !device.IsActive {
			continue
		}
		ids = append(ids, deviceID)
	}
	sort.Strings(ids)
	return clip(ids, limit), nil
}

func (m *MockDB) ListGroupAssignments(_ context.Context, accountID, userID string, limit int) ([]database.GroupAssignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ListGroupAssignmentsError != nil {
		return nil, m.ListGroupAssignmentsError
	}
	assignments := append([]database.GroupAssignment(nil), m.assignments[key(accountID, userID)]...)
	sort.SliceStable(assignments, func(i, j int) bool {
		if assignments[i].Sequence != assignments[j].Sequence {
			return assignments[i].Sequence < assignments[j].Sequence
		}
		return assignments[i].GroupID < assignments[j].GroupID
	})
	if limit > 0 && len(assignments) > limit {
		assignments = assignments[:limit]
	}
	return assignments, nil
}

func (m *MockDB) ReplaceGroupAssignments(_ context.Context, accountID, userID string, groupIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReplaceGroupAssignmentsError != nil {
		return m.ReplaceGroupAssignmentsError
	}
	assignments := make([]database.GroupAssignment, 0, len(groupIDs))
	for i, groupID := range groupIDs {
		assignments = append(assignments, database.GroupAssignment{
			AccountID: accountID,
			UserID:    userID,
			GroupID:   groupID,
			Sequence:  i,
		})
	}
	m.assignments[key(accountID, userID)] = assignments
	return nil
}

func (m *MockDB) DeleteGroupAssignments(_ context.Context, accountID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeleteGroupAssignmentsError != nil {
		return m.DeleteGroupAssignmentsError
	}
	delete(m.assignments, key(accountID, userID))
	return nil
}

func (m *MockDB) GetTransportByUniqueID(_ context.Context, uniqueID string) (*database.Transport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.GetTransportByUniqueIDError != nil {
		return nil, m.GetTransportByUniqueIDError
	}
	transport, ok := m.transports[uniqueID]
	if !ok {
		return nil, database.ErrNotFound
	}
	copied := *transport
	return &copied, nil
}

func (m *MockDB) Stats(_ context.Context) (*database.Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.StatsError != nil {
		return nil, m.StatsError
	}
	stats := &database.Stats{
		Accounts:     int64(len(m.accounts)),
		Users:        int64(len(m.users)),
		Devices:      int64(len(m.devices)),
		DeviceGroups: int64(len(m.groups)),
		Transports:   int64(len(m.transports)),
	}
	for _, memberSet := range m.members {
		stats.GroupMembers += int64(len(memberSet))
	}
	for _, assignments := range m.assignments {
		stats.GroupAssignments += int64(len(assignments))
	}
	return stats, nil
}

func (m *MockDB) Close() error   { return nil }
func (m *MockDB) Migrate() error { return nil }

func clip(ids []string, limit int) []string {
	if limit > 0 && len(ids) > limit {
		return ids[:limit]
	}
	return ids
}

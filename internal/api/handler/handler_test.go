package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/openfleet/fleettrack/internal/authz"
	"github.com/openfleet/fleettrack/internal/config"
	"github.com/openfleet/fleettrack/internal/database"
	"github.com/openfleet/fleettrack/internal/database/mock"
	"github.com/openfleet/fleettrack/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouter(t *testing.T, db *mock.MockDB) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	resolver := authz.New(db, authz.Policy{DefaultDeviceAuthorization: false})
	transportResolver := transport.New(db, &config.TransportConfig{QueryEnabled: true})
	h := New(db, resolver, transportResolver)

	router := gin.New()
	router.GET("/health", h.Health)
	router.GET("/api/v1/accounts/:account/users/:user/groups", h.GetUserGroups)
	router.GET("/api/v1/accounts/:account/users/:user/groups/explicit", h.GetExplicitUserGroups)
	router.PUT("/api/v1/accounts/:account/users/:user/groups", h.SetUserGroups)
	router.GET("/api/v1/accounts/:account/users/:user/devices", h.GetUserDevices)
	router.GET("/api/v1/accounts/:account/users/:user/devices/default", h.GetDefaultDevice)
	router.GET("/api/v1/accounts/:account/users/:user/devices/:device/authorized", h.GetDeviceAuthorized)
	router.GET("/api/v1/transports/:uniqueid/device", h.GetTransportDevice)
	return router
}

func seed(t *testing.T) *mock.MockDB {
	t.Helper()
	db := mock.NewMockDB()
	db.AddAccount(&database.Account{AccountID: "acme", IsActive: true})
	db.AddDevice(&database.Device{AccountID: "acme", DeviceID: "dev1", UniqueID: "imei-1", IsActive: true, LastGPSAt: 1})
	db.AddDevice(&database.Device{AccountID: "acme", DeviceID: "dev2", UniqueID: "imei-2", IsActive: true, LastGPSAt: 1})
	db.AddGroup(&database.DeviceGroup{AccountID: "acme", GroupID: "fleet1", Description: "Fleet One", IsActive: true}, "dev1")
	db.AddUser(&database.User{AccountID: "acme", UserID: "bob", IsActive: true})
	require.NoError(t, db.ReplaceGroupAssignments(context.Background(), "acme", "bob", []string{"fleet1"}))
	return db
}

func doRequest(router *gin.Engine, method, path string, body []byte) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	router := setupRouter(t, seed(t))
	w := doRequest(router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetUserGroups(t *testing.T) {
	router := setupRouter(t, seed(t))
	w := doRequest(router, http.MethodGet, "/api/v1/accounts/acme/users/bob/groups", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Groups []authz.GroupSummary `json:"groups"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Groups, 2)
	assert.Equal(t, database.GroupIDAll, resp.Groups[0].ID)
	assert.Equal(t, "fleet1", resp.Groups[1].ID)
}

func TestGetUserGroupsUnknownAccount(t *testing.T) {
	router := setupRouter(t, seed(t))
	w := doRequest(router, http.MethodGet, "/api/v1/accounts/nope/users/bob/groups", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminWithoutUserRowIsSystemContext(t *testing.T) {
	// no "admin" user row exists, the admin user ID still resolves and
	// gets every group of the account
	router := setupRouter(t, seed(t))
	w := doRequest(router, http.MethodGet, "/api/v1/accounts/acme/users/admin/groups", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Groups []authz.GroupSummary `json:"groups"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Groups, 2)
	assert.Equal(t, database.GroupIDAll, resp.Groups[0].ID)
}

func TestUnknownUserIsNotFound(t *testing.T) {
	router := setupRouter(t, seed(t))
	w := doRequest(router, http.MethodGet, "/api/v1/accounts/acme/users/nope/groups", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSetUserGroupsRoundTrip(t *testing.T) {
	router := setupRouter(t, seed(t))
	body, _ := json.Marshal(map[string]any{"groupIDs": []string{"fleet1", "bogus", "none", ""}})
	w := doRequest(router, http.MethodPut, "/api/v1/accounts/acme/users/bob/groups", body)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		GroupIDs []string `json:"groupIDs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"fleet1"}, resp.GroupIDs)
}

func TestSetUserGroupsRejectsAdmin(t *testing.T) {
	router := setupRouter(t, seed(t))
	body, _ := json.Marshal(map[string]any{"groupIDs": []string{"fleet1"}})
	w := doRequest(router, http.MethodPut, "/api/v1/accounts/acme/users/admin/groups", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetDeviceAuthorized(t *testing.T) {
	router := setupRouter(t, seed(t))

	w := doRequest(router, http.MethodGet, "/api/v1/accounts/acme/users/bob/devices/dev1/authorized", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Authorized bool `json:"authorized"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Authorized)

	w = doRequest(router, http.MethodGet, "/api/v1/accounts/acme/users/bob/devices/dev2/authorized", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Authorized)
}

func TestGetDefaultDevice(t *testing.T) {
	router := setupRouter(t, seed(t))
	w := doRequest(router, http.MethodGet, "/api/v1/accounts/acme/users/bob/devices/default", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		DeviceID string `json:"deviceID"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "dev1", resp.DeviceID)
}

func TestGetUserDevices(t *testing.T) {
	router := setupRouter(t, seed(t))
	w := doRequest(router, http.MethodGet, "/api/v1/accounts/acme/users/bob/devices", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Devices []authz.DeviceSummary `json:"devices"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Devices, 1)
	assert.Equal(t, "dev1", resp.Devices[0].ID)
}

func TestStorageErrorIsServerError(t *testing.T) {
	db := seed(t)
	router := setupRouter(t, db)
	db.ListGroupAssignmentsError = assert.AnError

	w := doRequest(router, http.MethodGet, "/api/v1/accounts/acme/users/bob/devices", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestGetTransportDevice(t *testing.T) {
	db := seed(t)
	db.AddTransport(&database.Transport{
		AccountID:      "acme",
		TransportID:    "modem1",
		UniqueID:       "imei-9",
		TargetDeviceID: "dev2",
		IsActive:       true,
	})
	router := setupRouter(t, db)

	w := doRequest(router, http.MethodGet, "/api/v1/transports/imei-9/device", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		DeviceID string `json:"deviceID"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "dev2", resp.DeviceID)

	w = doRequest(router, http.MethodGet, "/api/v1/transports/unknown/device", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

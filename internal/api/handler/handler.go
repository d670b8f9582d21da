package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/openfleet/fleettrack/internal/authz"
	"github.com/openfleet/fleettrack/internal/database"
	"github.com/openfleet/fleettrack/internal/transport"
)

// Handler handles the FleetTrack API endpoints.
type Handler struct {
	db        database.DB
	resolver  *authz.Resolver
	transport *transport.Resolver
}

// New creates a new handler.
func New(db database.DB, resolver *authz.Resolver, transportResolver *transport.Resolver) *Handler {
	return &Handler{
		db:        db,
		resolver:  resolver,
		transport: transportResolver,
	}
}

// Health is the health check endpoint.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// accountUser resolves the account and user path parameters. The admin user
// ID resolves to a nil user when no user row exists, the distinguished
// system context that bypasses all group checks.
func (h *Handler) accountUser(c *gin.Context) (*database.Account, *database.User, bool) {
	accountID := c.Param("account")
	userID := c.Param("user")

	account, err := h.resolver.LookupAccount(c.Request.Context(), accountID)
	if err != nil {
		abortWithAuthzError(c, err)
		return nil, nil, false
	}

	user, err := h.resolver.LookupUser(c.Request.Context(), accountID, userID)
	if err != nil {
		var notFound *authz.NotFoundError
		if errors.As(err, &notFound) && strings.EqualFold(userID, database.AdminUserID) {
			return account, nil, true
		}
		abortWithAuthzError(c, err)
		return nil, nil, false
	}
	return account, user, true
}

func abortWithAuthzError(c *gin.Context, err error) {
	var notFound *authz.NotFoundError
	if errors.As(err, &notFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": notFound.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}

func includeInactive(c *gin.Context) bool {
	v, err := strconv.ParseBool(c.DefaultQuery("include_inactive", "false"))
	return err == nil && v
}

// GetUserGroups returns every device group the user may browse, with the
// virtual "all" group first.
func (h *Handler) GetUserGroups(c *gin.Context) {
	account, user, ok := h.accountUser(c)
	if !ok {
		return
	}
	groups, err := h.resolver.AllAuthorizedGroups(c.Request.Context(), account, user)
	if err != nil {
		abortWithAuthzError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": groups})
}

// GetExplicitUserGroups returns the raw explicit group assignments of the
// user, without virtual group expansion.
func (h *Handler) GetExplicitUserGroups(c *gin.Context) {
	_, user, ok := h.accountUser(c)
	if !ok {
		return
	}
	session := h.resolver.NewSession()
	groupIDs, err := session.ExplicitlyAuthorizedGroupIDs(c.Request.Context(), user)
	if err != nil {
		abortWithAuthzError(c, err)
		return
	}
	if groupIDs == nil {
		groupIDs = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"groupIDs": groupIDs})
}

type setGroupsRequest struct {
	GroupIDs []string `json:"groupIDs" binding:"required"`
}

// SetUserGroups replaces the explicit group assignments of the user.
func (h *Handler) SetUserGroups(c *gin.Context) {
	account, user, ok := h.accountUser(c)
	if !ok {
		return
	}
	if user == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot assign device groups to the admin user"})
		return
	}
	var req setGroupsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	session := h.resolver.NewSession()
	if err := session.SetDeviceGroups(c.Request.Context(), account, user, req.GroupIDs); err != nil {
		abortWithAuthzError(c, err)
		return
	}
	groupIDs, err := session.ExplicitlyAuthorizedGroupIDs(c.Request.Context(), user)
	if err != nil {
		abortWithAuthzError(c, err)
		return
	}
	if groupIDs == nil {
		groupIDs = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"groupIDs": groupIDs})
}

// GetUserDevices returns every device the user may access.
func (h *Handler) GetUserDevices(c *gin.Context) {
	account, user, ok := h.accountUser(c)
	if !ok {
		return
	}
	devices, err := h.resolver.AuthorizedDevices(c.Request.Context(), account, user, includeInactive(c))
	if err != nil {
		abortWithAuthzError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"devices": devices})
}

// GetDefaultDevice returns the device a client should select by default.
func (h *Handler) GetDefaultDevice(c *gin.Context) {
	account, user, ok := h.accountUser(c)
	if !ok {
		return
	}
	if user == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A user is required"})
		return
	}
	deviceID, err := h.resolver.DefaultDeviceID(c.Request.Context(), account, user, includeInactive(c))
	if err != nil {
		abortWithAuthzError(c, err)
		return
	}
	if deviceID == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "No default device"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deviceID": deviceID})
}

// GetDeviceAuthorized reports whether the user may access the device.
func (h *Handler) GetDeviceAuthorized(c *gin.Context) {
	account, user, ok := h.accountUser(c)
	if !ok {
		return
	}
	authorized, err := h.resolver.IsAuthorizedDevice(c.Request.Context(), account, user, c.Param("device"))
	if err != nil {
		abortWithAuthzError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"authorized": authorized})
}

// GetTransportDevice resolves a hardware unique ID to its device.
func (h *Handler) GetTransportDevice(c *gin.Context) {
	device, err := h.transport.DeviceByUniqueID(c.Request.Context(), c.Param("uniqueid"))
	if err != nil {
		if errors.Is(err, transport.ErrUnknownUniqueID) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Unknown unique ID"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"accountID": device.AccountID,
		"deviceID":  device.DeviceID,
		"uniqueID":  device.UniqueID,
	})
}

package authz

import (
	"strings"

	"github.com/openfleet/fleettrack/internal/config"
)

// PreferredDeviceAuth controls how a user's preferred device takes part in
// authorization decisions.
type PreferredDeviceAuth int

const (
	// PreferredDeviceAuthFalse disables preferred device authorization.
	PreferredDeviceAuthFalse PreferredDeviceAuth = iota
	// PreferredDeviceAuthTrue authorizes the preferred device in addition
	// to the regular group checks.
	PreferredDeviceAuthTrue
	// PreferredDeviceAuthOnly authorizes the preferred device and nothing
	// else, short-circuiting all group checks.
	PreferredDeviceAuthOnly
)

// ParsePreferredDeviceAuth parses the configuration string for the
// preferred device policy. Unknown or blank values fall back to
// PreferredDeviceAuthFalse.
func ParsePreferredDeviceAuth(s string) PreferredDeviceAuth {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true":
		return PreferredDeviceAuthTrue
	case "only":
		return PreferredDeviceAuthOnly
	default:
		return PreferredDeviceAuthFalse
	}
}

// Policy is the immutable authorization policy the resolver is constructed
// with. It is loaded once at process start.
type Policy struct {
	// DefaultDeviceAuthorization applies to users without explicit group
	// assignments, unless their account overrides it.
	DefaultDeviceAuthorization bool
	// PreferredDeviceAuth is the preferred device policy.
	PreferredDeviceAuth PreferredDeviceAuth
}

// PolicyFromConfig builds a Policy from the auth configuration.
func PolicyFromConfig(cfg *config.AuthConfig) Policy {
	return Policy{
		DefaultDeviceAuthorization: cfg.DefaultDeviceAuthorization,
		PreferredDeviceAuth:        ParsePreferredDeviceAuth(cfg.PreferredDeviceAuth),
	}
}

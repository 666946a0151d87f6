package model

import "strings"

// Role classifies both infrastructure nodes and overlay blocks. A network
// has any number of sources and intermediates but exactly one sink.
type Role int

const (
	RoleUnknown Role = iota
	RoleSource
	RoleIntermediate
	RoleSink
)

func (r Role) String() string {
	switch r {
	case RoleSource:
		return "source"
	case RoleIntermediate:
		return "intermediate"
	case RoleSink:
		return "sink"
	default:
		return "unknown"
	}
}

// ParseRole maps a free-form role name to a Role. Unrecognised names map
// to RoleUnknown so callers can reject them with context.
func ParseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "source", "src":
		return RoleSource
	case "intermediate", "interm", "relay":
		return RoleIntermediate
	case "sink":
		return RoleSink
	default:
		return RoleUnknown
	}
}

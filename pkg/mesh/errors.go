package mesh

import "errors"

// ErrConfig, ErrPrimitive, and ErrSupervision are the three taxonomy errors.
// The specific sentinels below are independent values: they do not wrap a
// taxonomy error, so errors.Is(err, mesh.ErrConfig) holds only where
// ErrConfig itself was wrapped into err, not for an error built from
// ErrBadCIDR, ErrNoPath and the like. Transaction.Apply and Transaction.Revert
// wrap every primitive failure in ErrPrimitive; ErrSupervision is not wrapped
// into any error this package returns.
var (
	ErrConfig      = errors.New("mesh: configuration error")
	ErrPrimitive   = errors.New("mesh: primitive error")
	ErrSupervision = errors.New("mesh: supervision error")
)

// Declaration-time sentinels.
var (
	ErrBadCIDR          = errors.New("link cidr must be a /30 whose low-order octet is a multiple of 4")
	ErrUnknownHost      = errors.New("unknown host name")
	ErrDuplicateHost    = errors.New("host already declared")
	ErrNoWANAddress     = errors.New("gateway host has no wan address")
	ErrConflictingModes = errors.New("local_output and nat_gateway are mutually exclusive")
	ErrNoPath           = errors.New("no path from source to gateway")
	ErrSelfGateway      = errors.New("source and gateway must differ")
	ErrAlreadyCompiled  = errors.New("network already compiled")
)

// Runtime sentinels.
var (
	ErrNamespaceCreate = errors.New("failed to create namespace")
	ErrNamespaceDelete = errors.New("failed to delete namespace")
	ErrLinkCreate      = errors.New("failed to create link")
	ErrLinkConfigure   = errors.New("failed to configure link")
	ErrLinkDelete      = errors.New("failed to delete link")
	ErrTunnelConfigure = errors.New("failed to configure tunnel")
	ErrFilterRule      = errors.New("failed to apply filter rule")
	ErrRoute           = errors.New("failed to apply route")
	ErrRouteRule       = errors.New("failed to apply route rule")
	ErrAddressSet      = errors.New("failed to apply address set")
)

// Supervision sentinels.
var (
	ErrProcessStart = errors.New("failed to start supervised process")
	ErrProcessStop  = errors.New("failed to stop supervised process")
)

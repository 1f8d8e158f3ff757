package monitor

import "errors"

// ErrNoDefaultRoute is returned when the routing table has no IPv4 default.
var ErrNoDefaultRoute = errors.New("no default route found")

// ErrRoutesUnsupported is returned on platforms without netlink.
var ErrRoutesUnsupported = errors.New("route inspection not supported on this platform")

// Routes reads the host's current IPv4 default route. The service only
// reports it; switching gateways is left to the operator.
type Routes struct{}

// DefaultRoute returns the gateway address and outgoing interface name.
func (Routes) DefaultRoute() (gateway, iface string, err error) {
	return defaultRoute()
}

//go:build linux

package monitor

import (
	"github.com/vishvananda/netlink"
)

func defaultRoute() (string, string, error) {
	routes, err := netlink.RouteList(nil, netlink.FAMILY_V4)
	if err != nil {
		return "", "", err
	}

	for _, r := range routes {
		if r.Dst != nil { // 0.0.0.0/0 has a nil Dst
			continue
		}
		gw := ""
		if r.Gw != nil {
			gw = r.Gw.String()
		}
		iface := ""
		if link, err := netlink.LinkByIndex(r.LinkIndex); err == nil {
			iface = link.Attrs().Name
		}
		return gw, iface, nil
	}
	return "", "", ErrNoDefaultRoute
}

//go:build !linux

package monitor

func defaultRoute() (string, string, error) {
	return "", "", ErrRoutesUnsupported
}

package monitor

import (
	"bufio"
	"context"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// SignalReader reports Wi-Fi signal strength in percent, 0 when unknown.
type SignalReader interface {
	SignalStrength(ctx context.Context) float64
}

// OSSignal reads the signal from the platform's wireless tooling.
type OSSignal struct {
	Timeout      time.Duration
	WirelessPath string // linux only, defaults to /proc/net/wireless
}

func (s OSSignal) SignalStrength(ctx context.Context) float64 {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	switch runtime.GOOS {
	case "windows":
		out, err := exec.CommandContext(ctx, "netsh", "wlan", "show", "interfaces").Output()
		if err != nil {
			log.Debug().Err(err).Msg("netsh signal probe failed")
			return 0
		}
		if v, ok := parseNetshSignal(string(out)); ok {
			return v
		}
	case "linux":
		path := s.WirelessPath
		if path == "" {
			path = "/proc/net/wireless"
		}
		data, err := os.ReadFile(path)
		if err != nil {
			log.Debug().Err(err).Msg("wireless stats unavailable")
			return 0
		}
		if v, ok := parseProcWireless(string(data)); ok {
			return v
		}
	}
	return 0
}

// parseNetshSignal extracts "Signal : 87%" from netsh output.
func parseNetshSignal(out string) (float64, bool) {
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		line := sc.Text()
		if !strings.Contains(line, "Signal") {
			continue
		}
		idx := strings.LastIndex(line, ":")
		if idx < 0 {
			continue
		}
		raw := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(line[idx+1:]), "%"))
		v, err := strconv.Atoi(raw)
		if err != nil {
			return 0, false
		}
		return float64(v), true
	}
	return 0, false
}

// parseProcWireless reads the first interface's link quality from
// /proc/net/wireless and scales it to percent (quality is out of 70).
func parseProcWireless(content string) (float64, bool) {
	sc := bufio.NewScanner(strings.NewReader(content))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		name, rest, ok := strings.Cut(line, ":")
		if !ok || strings.Contains(name, "|") || strings.HasPrefix(name, "Inter") {
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) < 2 {
			continue
		}
		q, err := strconv.ParseFloat(strings.TrimSuffix(fields[1], "."), 64)
		if err != nil {
			continue
		}
		pct := q / 70.0 * 100.0
		if pct > 100 {
			pct = 100
		}
		if pct < 0 {
			pct = 0
		}
		return float64(int(pct + 0.5)), true
	}
	return 0, false
}

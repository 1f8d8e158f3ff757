package health

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

// Pinger is anything whose connectivity can be checked, e.g. the Redis cache.
type Pinger interface {
	Ping() error
}

// RouteReader reports the host's current default route.
type RouteReader interface {
	DefaultRoute() (gateway, iface string, err error)
}

// State tracks process liveness and the last live probe result.
type State struct {
	running    int32
	lastPingOk int32
	probed     int32
	started    time.Time

	mode   string
	redis  Pinger
	routes RouteReader
}

func New(mode string, redis Pinger) *State {
	return &State{mode: mode, redis: redis, started: time.Now()}
}

// WithRoutes adds the default route to the report.
func (s *State) WithRoutes(r RouteReader) *State {
	s.routes = r
	return s
}

func (s *State) SetRunning(ok bool) {
	if ok {
		atomic.StoreInt32(&s.running, 1)
	} else {
		atomic.StoreInt32(&s.running, 0)
	}
}

func (s *State) SetProbeHealthy(ok bool) {
	atomic.StoreInt32(&s.probed, 1)
	if ok {
		atomic.StoreInt32(&s.lastPingOk, 1)
	} else {
		atomic.StoreInt32(&s.lastPingOk, 0)
	}
}

func (s *State) Running() bool { return atomic.LoadInt32(&s.running) == 1 }

type Report struct {
	Status      string `json:"status"`
	Running     bool   `json:"running"`
	ProbeOK     *bool  `json:"probe_ok"` // null until the first live probe
	ModelLoaded bool   `json:"model_loaded"`
	Mode        string `json:"mode"`
	Redis       string `json:"redis"`
	Gateway     string `json:"gateway,omitempty"`
	Interface   string `json:"interface,omitempty"`
	Uptime      string `json:"uptime"`
}

func (s *State) Report() Report {
	r := Report{
		Status:      "healthy",
		Running:     s.Running(),
		ModelLoaded: s.mode == "model",
		Mode:        s.mode,
		Redis:       "disabled",
		Uptime:      time.Since(s.started).Round(time.Second).String(),
	}
	if !r.Running {
		r.Status = "stopping"
	}
	if atomic.LoadInt32(&s.probed) == 1 {
		ok := atomic.LoadInt32(&s.lastPingOk) == 1
		r.ProbeOK = &ok
	}
	if s.redis != nil {
		r.Redis = "connected"
		if err := s.redis.Ping(); err != nil {
			r.Redis = "disconnected"
		}
	}
	if s.routes != nil {
		if gw, iface, err := s.routes.DefaultRoute(); err == nil {
			r.Gateway, r.Interface = gw, iface
		}
	}
	return r
}

// ServeHTTP answers GET /health. 503 once shutdown has begun.
func (s *State) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rep := s.Report()
	w.Header().Set("Content-Type", "application/json")
	if !rep.Running {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(rep)
}

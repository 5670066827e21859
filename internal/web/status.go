package web

import (
	"sync/atomic"
	"time"

	"gnss-tracker/internal/task"
)

// Status holds process-level facts for the status API.
type Status struct {
	startUnixNano int64
	triggers      uint64
	interval      atomic.Value // string
}

func NewStatus() *Status {
	s := &Status{}
	atomic.StoreInt64(&s.startUnixNano, time.Now().UTC().UnixNano())
	s.interval.Store("")
	return s
}

func (s *Status) SetInterval(interval string) {
	s.interval.Store(interval)
}

// MarkTrigger counts an accepted trigger from any source.
func (s *Status) MarkTrigger() {
	atomic.AddUint64(&s.triggers, 1)
}

type FixSnapshot struct {
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	AltM       float64 `json:"alt_m"`
	AccuracyM  float64 `json:"accuracy_m"`
	Satellites int     `json:"satellites"`
	FixType    string  `json:"fix_type,omitempty"`
}

type StatusSnapshot struct {
	Service       string       `json:"service"`
	NowUTC        string       `json:"now_utc"`
	UptimeSec     int64        `json:"uptime_sec"`
	Interval      string       `json:"interval"`
	TriggersTotal uint64       `json:"triggers_total"`
	State         string       `json:"state"`
	Module        string       `json:"module"`
	Transport     string       `json:"transport,omitempty"`
	Cycles        int          `json:"cycles"`
	LastReadOK    bool         `json:"last_read_ok"`
	LastOutcome   string       `json:"last_outcome,omitempty"`
	LastUpdateUTC string       `json:"last_update_utc,omitempty"`
	Compact       string       `json:"compact"`
	Precise       string       `json:"precise"`
	Fix           *FixSnapshot `json:"fix,omitempty"`
}

// Snapshot combines process status with the task's acquisition context.
func (s *Status) Snapshot(nowUTC time.Time, state string, actx task.AcquisitionContext) StatusSnapshot {
	if nowUTC.IsZero() {
		nowUTC = time.Now().UTC()
	}
	start := time.Unix(0, atomic.LoadInt64(&s.startUnixNano)).UTC()

	snap := StatusSnapshot{
		Service:       "gnss-tracker",
		NowUTC:        nowUTC.UTC().Format(time.RFC3339Nano),
		UptimeSec:     int64(nowUTC.Sub(start).Seconds()),
		Interval:      s.interval.Load().(string),
		TriggersTotal: atomic.LoadUint64(&s.triggers),
		State:         state,
		Module:        actx.Identity.String(),
		Cycles:        actx.Cycles,
		LastReadOK:    actx.LastReadOK,
		Compact:       actx.Compact.Hex(),
		Precise:       actx.Precise.Hex(),
	}
	if actx.Identity != 0 {
		snap.Transport = actx.Binding.String()
	}
	if actx.Cycles > 0 {
		snap.LastOutcome = actx.Outcome.Status.String()
		snap.LastUpdateUTC = actx.Updated.UTC().Format(time.RFC3339Nano)
	}
	if actx.LastReadOK {
		f := actx.LastFix
		snap.Fix = &FixSnapshot{
			Lat:        float64(f.LatE7) / 1e7,
			Lon:        float64(f.LonE7) / 1e7,
			AltM:       float64(f.AltMM) / 1000,
			AccuracyM:  float64(f.HAccCM) / 100,
			Satellites: f.Satellites,
			FixType:    f.FixType,
		}
	}
	return snap
}

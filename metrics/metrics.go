package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/KanavDutta/tokenfence/pkg/tokenfence"
)

// Recorder aggregates finished interval windows per limiter.
// It implements tokenfence.Observer.
type Recorder struct {
	rollovers     atomic.Int64
	totalAccepted atomic.Int64
	totalIncoming atomic.Int64

	mu           sync.RWMutex
	limiterStats map[string]*LimiterStats
	startTime    time.Time
	now          func() time.Time
}

var _ tokenfence.Observer = (*Recorder)(nil)

// LimiterStats tracks the windows of a single named limiter
type LimiterStats struct {
	Name          string          `json:"name"`
	Rollovers     int64           `json:"rollovers"`
	TotalAccepted int64           `json:"total_accepted"`
	TotalIncoming int64           `json:"total_incoming"`
	Last          tokenfence.Stat `json:"last"`
	LastRollover  time.Time       `json:"last_rollover"`
}

// NewRecorder creates an empty recorder
func NewRecorder() *Recorder {
	return newRecorder(time.Now)
}

func newRecorder(now func() time.Time) *Recorder {
	return &Recorder{
		limiterStats: make(map[string]*LimiterStats),
		startTime:    now(),
		now:          now,
	}
}

// Observe records the Stat of a finished window
func (r *Recorder) Observe(name string, stat tokenfence.Stat) {
	r.rollovers.Add(1)
	r.totalAccepted.Add(stat.Accepted)
	r.totalIncoming.Add(stat.Incoming)

	r.mu.Lock()
	defer r.mu.Unlock()

	stats, exists := r.limiterStats[name]
	if !exists {
		stats = &LimiterStats{Name: name}
		r.limiterStats[name] = stats
	}

	stats.Rollovers++
	stats.TotalAccepted += stat.Accepted
	stats.TotalIncoming += stat.Incoming
	stats.Last = stat
	stats.LastRollover = r.now()
}

// Limiter returns a copy of the aggregates for one limiter
func (r *Recorder) Limiter(name string) (LimiterStats, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats, ok := r.limiterStats[name]
	if !ok {
		return LimiterStats{}, false
	}
	return *stats, true
}

// GetSnapshot returns a snapshot of current aggregates
func (r *Recorder) GetSnapshot() *Snapshot {
	r.mu.RLock()
	limiters := make([]LimiterStats, 0, len(r.limiterStats))
	for _, stats := range r.limiterStats {
		limiters = append(limiters, *stats)
	}
	r.mu.RUnlock()

	sort.Slice(limiters, func(i, j int) bool {
		return limiters[i].Name < limiters[j].Name
	})

	return &Snapshot{
		Rollovers:     r.rollovers.Load(),
		TotalAccepted: r.totalAccepted.Load(),
		TotalIncoming: r.totalIncoming.Load(),
		Limiters:      limiters,
		UptimeSeconds: int64(r.now().Sub(r.startTime).Seconds()),
		StartTime:     r.startTime,
	}
}

// Snapshot represents a point-in-time view of the recorder
type Snapshot struct {
	Rollovers     int64          `json:"rollovers"`
	TotalAccepted int64          `json:"total_accepted"`
	TotalIncoming int64          `json:"total_incoming"`
	Limiters      []LimiterStats `json:"limiters"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	StartTime     time.Time      `json:"start_time"`
}

package analytics

import (
	"fmt"
	"strings"
	"sync"

	"callpulse/internal/calls"
	"callpulse/internal/events"
)

// Snapshot is the rolling aggregate view. All counters are maintained
// incrementally, O(1) per event; nothing here rescans the call store.
type Snapshot struct {
	TotalCalls      int64 `json:"totalCalls"`
	SuccessfulCalls int64 `json:"successfulCalls"`
	FailedCalls     int64 `json:"failedCalls"`

	TotalDurationSeconds float64 `json:"totalDuration"`
	AverageCallDuration  float64 `json:"averageCallDuration"`

	CallsByPurpose map[string]int64 `json:"callsByPurpose"`
	CallsByStatus  map[string]int64 `json:"callsByStatus"`

	// HourlyStats is keyed by hour of day ("00".."23"), DailyStats by ISO
	// date; both count received events, not calls, at processing time.
	HourlyStats map[string]int64 `json:"hourlyStats"`
	DailyStats  map[string]int64 `json:"dailyStats"`
}

type Aggregator struct {
	mu   sync.Mutex
	snap Snapshot
}

func NewAggregator() *Aggregator {
	return &Aggregator{snap: Snapshot{
		CallsByPurpose: make(map[string]int64),
		CallsByStatus:  make(map[string]int64),
		HourlyStats:    make(map[string]int64),
		DailyStats:     make(map[string]int64),
	}}
}

// OnCallSeeded counts a call registered ahead of its first webhook event
// (outbound initiation). The later webhook events for the call arrive with
// Created=false, so without this hook seeded calls would terminate without
// ever entering totalCalls.
func (a *Aggregator) OnCallSeeded(rec calls.Record) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.snap.TotalCalls++
	a.snap.CallsByPurpose[rec.Purpose]++
}

// OnEvent folds one applied event into the counters. Terminal outcomes are
// counted only on the transition into the terminal status, so replaying a
// duplicate call-end cannot double-count durations or successes.
func (a *Aggregator) OnEvent(ev events.Event, res calls.ApplyResult) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if res.Created {
		a.snap.TotalCalls++
		a.snap.CallsByPurpose[res.After.Purpose]++
	}

	if res.Transitioned {
		switch res.After.Status {
		case calls.StatusEnded:
			if gracefulEnd(res.After.EndedReason) {
				a.snap.SuccessfulCalls++
			} else {
				a.snap.FailedCalls++
			}
			a.snap.TotalDurationSeconds += res.After.DurationSeconds
			if a.snap.TotalCalls > 0 {
				a.snap.AverageCallDuration = a.snap.TotalDurationSeconds / float64(a.snap.TotalCalls)
			}
		case calls.StatusError, calls.StatusFailed:
			a.snap.FailedCalls++
		}
	}

	a.snap.CallsByStatus[string(res.After.Status)]++
	ts := ev.Timestamp.UTC()
	a.snap.HourlyStats[fmt.Sprintf("%02d", ts.Hour())]++
	a.snap.DailyStats[ts.Format("2006-01-02")]++
}

// Snapshot returns a copy safe for serialization.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := a.snap
	out.CallsByPurpose = copyMap(a.snap.CallsByPurpose)
	out.CallsByStatus = copyMap(a.snap.CallsByStatus)
	out.HourlyStats = copyMap(a.snap.HourlyStats)
	out.DailyStats = copyMap(a.snap.DailyStats)
	return out
}

// gracefulEnd classifies ended-reasons reported by the platform. Caller- or
// assistant-terminated calls count as successful; everything else failed.
func gracefulEnd(reason string) bool {
	r := strings.ToLower(reason)
	return strings.HasPrefix(r, "customer-ended") ||
		strings.HasPrefix(r, "caller-ended") ||
		strings.HasPrefix(r, "assistant-ended")
}

func copyMap(in map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

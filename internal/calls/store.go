package calls

import (
	"sort"
	"sync"
	"time"

	"callpulse/internal/events"
)

// Store holds every call observed during the process lifetime. Records are
// never deleted; a restart loses all history by design.
//
// A single mutex serializes read-modify-write so that two events for the
// same call cannot lose updates; later-arriving events win for scalar
// fields, histories never lose entries.
type Store struct {
	mu    sync.RWMutex
	calls map[string]*Record
	clock func() time.Time
}

func NewStore() *Store {
	return &Store{calls: make(map[string]*Record), clock: time.Now}
}

// WithClock overrides the store clock. Test hook.
func (s *Store) WithClock(clock func() time.Time) *Store {
	s.clock = clock
	return s
}

// ApplyResult describes what a single event did to the store. Before and
// After are copies taken inside the critical section.
type ApplyResult struct {
	Before Record
	After  Record

	// Created is true when this event was the first ever for its call id.
	Created bool

	// Transitioned is true when Status changed.
	Transitioned bool

	// Skipped is true when the event was well-formed enough to log but
	// carried too little to update status. The raw event is still
	// appended to history; the caller surfaces a warning.
	Skipped    bool
	SkipReason string
}

// Apply appends the event to the call's history and runs the status
// transition table. Unseen call ids create a record first.
func (s *Store) Apply(ev events.Event) ApplyResult {
	now := s.clock().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.calls[ev.CallID]
	res := ApplyResult{Created: !ok}
	if !ok {
		rec = &Record{
			ID:        ev.CallID,
			Type:      TypeWebVoice,
			Status:    StatusUnknown,
			Purpose:   "unknown",
			CreatedAt: now,
		}
		s.calls[ev.CallID] = rec
	}
	res.Before = rec.clone()

	// Identity fields fill in lazily from whichever event first carries them.
	if ev.CallType != "" {
		rec.Type = CallType(ev.CallType)
	}
	if ev.Purpose != "" {
		rec.Purpose = ev.Purpose
	}
	if ev.CustomerNumber != "" {
		rec.CustomerNumber = ev.CustomerNumber
	}

	// History first: append-only regardless of what the transition does.
	rec.Events = append(rec.Events, ev.Entry())

	prev := rec.Status
	switch ev.Type {
	case events.TypeCallStart:
		if rec.Status.Terminal() {
			res.Skipped = true
			res.SkipReason = "call-start on terminal call"
			break
		}
		rec.Status = StatusStarted
		if rec.StartedAt == nil {
			t := ev.Timestamp
			rec.StartedAt = &t
		}

	case events.TypeStatusUpdate:
		if ev.Status == "" {
			res.Skipped = true
			res.SkipReason = "status-update without status"
			break
		}
		rec.Status = Status(ev.Status)

	case events.TypeCallEnd:
		if rec.Status == StatusEnded {
			// Replayed call-end: history already appended above, scalars
			// stay as first written so counters cannot double.
			break
		}
		if rec.Status.Terminal() {
			res.Skipped = true
			res.SkipReason = "call-end on terminal call"
			break
		}
		rec.Status = StatusEnded
		if rec.EndedAt == nil {
			t := ev.Timestamp
			rec.EndedAt = &t
		}
		rec.DurationSeconds = ev.DurationSeconds
		rec.Cost = ev.Cost
		rec.EndedReason = ev.EndedReason

	case events.TypeCallStartFailed:
		if rec.Status.Terminal() {
			res.Skipped = true
			res.SkipReason = "call-start-failed on terminal call"
			break
		}
		rec.Status = StatusFailed
		rec.Error = ev.ErrorMessage
		if rec.FailedAt == nil {
			t := ev.Timestamp
			rec.FailedAt = &t
		}

	case events.TypeError:
		if rec.Status.Terminal() {
			res.Skipped = true
			res.SkipReason = "error on terminal call"
			break
		}
		rec.Status = StatusError
		rec.Error = ev.ErrorMessage

	case events.TypeCallUpdate:
		// The one sanctioned way out of a terminal status: an update that
		// explicitly carries a new one.
		if ev.Status != "" {
			rec.Status = Status(ev.Status)
		}

	case events.TypeFunctionCall:
		// Logged only here. LastFunction/FunctionResult are written via
		// SetFunctionResult after dispatch succeeds, so a rejected name
		// never shows up on the record.

	case events.TypeSpeechStart:
		rec.IsSpeaking = true
	case events.TypeSpeechEnd:
		rec.IsSpeaking = false

	case events.TypeMessage:
		if ev.Message != nil {
			rec.Messages = append(rec.Messages, *ev.Message)
		}

	case events.TypeTranscript:
		// Logged only; not persisted as a structured field.

	default:
		res.Skipped = true
		res.SkipReason = "unknown event type"
	}

	rec.UpdatedAt = now
	res.Transitioned = rec.Status != prev
	res.After = rec.clone()
	return res
}

// Seed registers an outbound call the moment the platform accepts it, so
// webhook events land on a known record. The bool reports whether this was
// the first observation of the call id; the caller feeds first observations
// to the aggregator, exactly as Apply does through ApplyResult.Created.
func (s *Store) Seed(id, customerNumber, purpose string) (Record, bool) {
	now := s.clock().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.calls[id]; ok {
		return rec.clone(), false
	}
	if purpose == "" {
		purpose = "unknown"
	}
	rec := &Record{
		ID:             id,
		Type:           TypeOutboundPhone,
		Status:         StatusInitiated,
		Purpose:        purpose,
		CustomerNumber: customerNumber,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.calls[id] = rec
	return rec.clone(), true
}

// SetFunctionResult records the most recent successfully dispatched function
// call on the record. Rejected dispatches never reach here, so a bogus name
// leaves LastFunction untouched.
func (s *Store) SetFunctionResult(id, name string, result []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.calls[id]; ok {
		rec.LastFunction = name
		rec.FunctionResult = append([]byte(nil), result...)
		rec.UpdatedAt = s.clock().UTC()
	}
}

// Get returns a copy of the record, or false for unknown ids.
func (s *Store) Get(id string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.calls[id]
	if !ok {
		return Record{}, false
	}
	return rec.clone(), true
}

// Filter narrows List results. All set fields must match (conjunctive).
type Filter struct {
	Type    CallType
	Status  Status
	Purpose string
	Limit   int
	Offset  int
}

// List returns matching calls sorted by creation time descending, plus the
// total match count before limit/offset.
func (s *Store) List(f Filter) ([]Record, int) {
	s.mu.RLock()
	matched := make([]*Record, 0, len(s.calls))
	for _, rec := range s.calls {
		if f.Type != "" && rec.Type != f.Type {
			continue
		}
		if f.Status != "" && rec.Status != f.Status {
			continue
		}
		if f.Purpose != "" && rec.Purpose != f.Purpose {
			continue
		}
		matched = append(matched, rec)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	total := len(matched)
	start := f.Offset
	if start < 0 {
		start = 0
	}
	if start > total {
		start = total
	}
	end := total
	if f.Limit > 0 && start+f.Limit < end {
		end = start + f.Limit
	}

	out := make([]Record, 0, end-start)
	for _, rec := range matched[start:end] {
		out = append(out, rec.clone())
	}
	s.mu.RUnlock()
	return out, total
}

// ActiveCount is computed on demand, never cached: it is not monotonic and
// must reflect current truth at query time.
func (s *Store) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, rec := range s.calls {
		if rec.Status.Live() {
			n++
		}
	}
	return n
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.calls)
}

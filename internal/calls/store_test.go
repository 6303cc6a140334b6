package calls

import (
	"fmt"
	"testing"
	"time"

	"callpulse/internal/events"
)

var testNow = time.Unix(1700000000, 0).UTC()

func testStore() *Store {
	return NewStore().WithClock(func() time.Time { return testNow })
}

func ev(id string, typ events.Type) events.Event {
	return events.Event{ID: "e-" + id, Type: typ, CallID: id, Timestamp: testNow}
}

func TestApply_CreatesUnseenCall(t *testing.T) {
	s := testStore()
	res := s.Apply(ev("c1", events.TypeCallStart))
	if !res.Created {
		t.Fatalf("expected created")
	}
	if res.After.Status != StatusStarted {
		t.Fatalf("expected started, got %q", res.After.Status)
	}
	if res.After.StartedAt == nil {
		t.Fatalf("expected startedAt")
	}
	if res.After.Purpose != "unknown" {
		t.Fatalf("expected default purpose, got %q", res.After.Purpose)
	}
}

func TestApply_StartThenEnd(t *testing.T) {
	s := testStore()
	s.Apply(ev("c1", events.TypeCallStart))

	end := ev("c1", events.TypeCallEnd)
	end.DurationSeconds = 42
	end.Cost = 0.2
	end.EndedReason = "customer-ended-call"
	res := s.Apply(end)

	if !res.Transitioned || res.After.Status != StatusEnded {
		t.Fatalf("expected transition to ended, got %+v", res.After.Status)
	}
	rec, ok := s.Get("c1")
	if !ok {
		t.Fatalf("expected call")
	}
	if rec.DurationSeconds != 42 || rec.EndedReason != "customer-ended-call" {
		t.Fatalf("unexpected termination fields: %+v", rec)
	}
	if rec.EndedAt == nil {
		t.Fatalf("expected endedAt")
	}
}

func TestApply_ErrorEvent(t *testing.T) {
	s := testStore()
	e := ev("c2", events.TypeError)
	e.ErrorMessage = "timeout"
	res := s.Apply(e)
	if res.After.Status != StatusError || res.After.Error != "timeout" {
		t.Fatalf("unexpected record: %+v", res.After)
	}
}

func TestApply_TerminalStatusIsSticky(t *testing.T) {
	s := testStore()
	end := ev("c1", events.TypeCallEnd)
	end.DurationSeconds = 10
	s.Apply(end)

	res := s.Apply(ev("c1", events.TypeCallStart))
	if !res.Skipped {
		t.Fatalf("expected skip for call-start on terminal call")
	}
	if res.After.Status != StatusEnded {
		t.Fatalf("terminal status must not resurrect, got %q", res.After.Status)
	}

	// Histories keep growing even when the transition is refused.
	if len(res.After.Events) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(res.After.Events))
	}
}

func TestApply_CallUpdateCanResurrect(t *testing.T) {
	s := testStore()
	s.Apply(ev("c1", events.TypeCallEnd))

	upd := ev("c1", events.TypeCallUpdate)
	upd.Status = "active"
	res := s.Apply(upd)
	if res.After.Status != StatusActive {
		t.Fatalf("explicit call-update status must apply, got %q", res.After.Status)
	}
}

func TestApply_ReplayedCallEndKeepsFirstScalars(t *testing.T) {
	s := testStore()
	end := ev("c1", events.TypeCallEnd)
	end.DurationSeconds = 42
	s.Apply(end)

	replay := ev("c1", events.TypeCallEnd)
	replay.DurationSeconds = 99
	res := s.Apply(replay)

	if res.Transitioned {
		t.Fatalf("replay must not look like a transition")
	}
	rec, _ := s.Get("c1")
	if rec.DurationSeconds != 42 {
		t.Fatalf("replay must not rewrite duration, got %v", rec.DurationSeconds)
	}
	if len(rec.Events) != 2 {
		t.Fatalf("replay still appends history, got %d entries", len(rec.Events))
	}
}

func TestApply_StatusUpdateWithoutStatusIsSkipped(t *testing.T) {
	s := testStore()
	res := s.Apply(ev("c1", events.TypeStatusUpdate))
	if !res.Skipped {
		t.Fatalf("expected skip")
	}
	if res.After.Status != StatusUnknown {
		t.Fatalf("status must be unchanged, got %q", res.After.Status)
	}
	if len(res.After.Events) != 1 {
		t.Fatalf("raw event must still be logged")
	}
}

func TestApply_EventHistoryGrowsPerEvent(t *testing.T) {
	s := testStore()
	types := []events.Type{
		events.TypeCallStart, events.TypeSpeechStart, events.TypeMessage,
		events.TypeSpeechEnd, events.TypeTranscript, events.TypeCallEnd,
	}
	for i, typ := range types {
		e := ev("c1", typ)
		e.ID = fmt.Sprintf("e-%d", i)
		if typ == events.TypeMessage {
			e.Message = &events.Turn{Role: "user", Content: "hi", Timestamp: testNow}
		}
		s.Apply(e)
	}
	rec, _ := s.Get("c1")
	if len(rec.Events) != len(types) {
		t.Fatalf("expected %d events, got %d", len(types), len(rec.Events))
	}
	if len(rec.Messages) != 1 {
		t.Fatalf("expected 1 message turn, got %d", len(rec.Messages))
	}
}

func TestApply_SpeechFlag(t *testing.T) {
	s := testStore()
	s.Apply(ev("c1", events.TypeSpeechStart))
	rec, _ := s.Get("c1")
	if !rec.IsSpeaking {
		t.Fatalf("expected speaking")
	}
	s.Apply(ev("c1", events.TypeSpeechEnd))
	rec, _ = s.Get("c1")
	if rec.IsSpeaking {
		t.Fatalf("expected not speaking")
	}
}

func TestSeed_CreatesInitiatedOutbound(t *testing.T) {
	s := testStore()
	rec, created := s.Seed("c9", "+15550002222", "lead-followup")
	if !created || rec.Status != StatusInitiated || rec.Type != TypeOutboundPhone {
		t.Fatalf("unexpected seed record (created=%v): %+v", created, rec)
	}
	// Seeding twice keeps the existing record and reports no creation.
	again, created := s.Seed("c9", "other", "other")
	if created || again.CustomerNumber != "+15550002222" {
		t.Fatalf("seed must not overwrite (created=%v): %+v", created, again)
	}
}

func TestList_FiltersSortsAndPaginates(t *testing.T) {
	s := NewStore()
	base := testNow
	i := 0
	s.clock = func() time.Time {
		i++
		return base.Add(time.Duration(i) * time.Second)
	}

	for n := 0; n < 5; n++ {
		e := ev(fmt.Sprintf("c%d", n), events.TypeCallStart)
		e.CallType = "inbound-phone"
		if n%2 == 0 {
			e.Purpose = "support"
		}
		s.Apply(e)
	}
	s.Apply(ev("c0", events.TypeCallEnd))

	items, total := s.List(Filter{Purpose: "support"})
	if total != 3 {
		t.Fatalf("expected 3 support calls, got %d", total)
	}
	// Creation time descending.
	if items[0].ID != "c4" || items[2].ID != "c0" {
		t.Fatalf("unexpected order: %s .. %s", items[0].ID, items[2].ID)
	}

	items, total = s.List(Filter{Purpose: "support", Limit: 1, Offset: 1})
	if total != 3 || len(items) != 1 || items[0].ID != "c2" {
		t.Fatalf("unexpected page: total=%d items=%+v", total, items)
	}

	items, total = s.List(Filter{Status: StatusEnded})
	if total != 1 || items[0].ID != "c0" {
		t.Fatalf("unexpected status filter result: %d", total)
	}
}

func TestActiveCount_ReflectsCurrentTruth(t *testing.T) {
	s := testStore()
	s.Apply(ev("c1", events.TypeCallStart))
	s.Apply(ev("c2", events.TypeCallStart))
	ring := ev("c3", events.TypeStatusUpdate)
	ring.Status = "ringing"
	s.Apply(ring)

	if got := s.ActiveCount(); got != 3 {
		t.Fatalf("expected 3 active, got %d", got)
	}
	s.Apply(ev("c1", events.TypeCallEnd))
	if got := s.ActiveCount(); got != 2 {
		t.Fatalf("expected 2 active after end, got %d", got)
	}
}

func TestGet_UnknownID(t *testing.T) {
	s := testStore()
	if _, ok := s.Get("nope"); ok {
		t.Fatalf("expected not found")
	}
}

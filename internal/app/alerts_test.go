package app

import (
	"testing"

	"github.com/mediabatch/mediabatch-agent/internal/jobs"
)

func TestAlertQueue_DrainAndCap(t *testing.T) {
	bus := jobs.NewEventBus(10)
	q := NewAlertQueue(2, bus)

	q.Alert("one")
	q.Alert("two")
	q.Alert("three")

	got := q.Drain()
	if len(got) != 2 || got[0].Message != "two" || got[1].Message != "three" {
		t.Fatalf("Drain() = %+v", got)
	}
	if q.Len() != 0 {
		t.Fatalf("Len() after drain = %d", q.Len())
	}

	events := bus.Since(0)
	if len(events) != 3 || events[2].Type != jobs.EventTypeAlert || events[2].Message != "three" {
		t.Fatalf("events = %+v", events)
	}
}

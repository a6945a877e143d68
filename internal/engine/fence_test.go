package engine

import (
	"testing"
	"time"
)

func TestFence_RejectsEverythingBeforeReady(t *testing.T) {
	f := NewFence()
	if f.Ready() {
		t.Error("new fence should not be ready")
	}
	if f.Admits(time.Now()) {
		t.Error("unlatched fence admitted a message")
	}
}

func TestFence_AdmitsAfterLatch(t *testing.T) {
	f := NewFence()
	ready := time.Now()
	f.MarkReady(ready)

	if !f.Ready() {
		t.Error("fence should be ready after latch")
	}
	if f.Admits(ready.Add(-time.Second)) {
		t.Error("admitted a message from before readiness")
	}
	if !f.Admits(ready) {
		t.Error("rejected a message timestamped exactly at readiness")
	}
	if !f.Admits(ready.Add(time.Second)) {
		t.Error("rejected a message from after readiness")
	}
}

func TestFence_FirstLatchWins(t *testing.T) {
	f := NewFence()
	first := time.Now()
	f.MarkReady(first)
	f.MarkReady(first.Add(time.Hour))

	if !f.Admits(first.Add(time.Minute)) {
		t.Error("a reconnect moved the cutoff forward")
	}
}

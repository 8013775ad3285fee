package agentruntime

import (
	"log/slog"
	"sync"
	"testing"
	"time"

	"botfleet/internal/model"
)

func newTestEmitter() *Emitter {
	client := NewClient("http://127.0.0.1:0", 1, "test-token")
	logger := slog.New(slog.DiscardHandler)
	return NewEmitter(client, model.StatusDeploying, logger)
}

func TestEmitUpdatesStatusOnlyForStatusClassEvents(t *testing.T) {
	e := newTestEmitter()

	e.Emit(model.EventParticipantJoin, model.EventData{})
	if got := e.Status(); got != model.StatusDeploying {
		t.Fatalf("non status-class event changed status: got %v", got)
	}

	e.Emit(model.EventInCall, model.EventData{})
	if got := e.Status(); got != model.StatusInCall {
		t.Fatalf("status-class event did not update status: got %v", got)
	}
}

func TestEmitFatalSetsFatalFlag(t *testing.T) {
	e := newTestEmitter()
	if e.FatalEmitted() {
		t.Fatal("fatal flag set before any FATAL event")
	}
	e.Emit(model.EventFatal, model.EventData{SubCode: model.SubCodeDurationLimitExceeded})
	if !e.FatalEmitted() {
		t.Fatal("fatal flag not set after FATAL event")
	}
}

func TestEmitNotifiesSubscribersWithNextAndPrev(t *testing.T) {
	e := newTestEmitter()

	var mu sync.Mutex
	var gotNext, gotPrev model.BotStatus
	done := make(chan struct{}, 1)
	e.Subscribe(func(next, prev model.BotStatus) {
		mu.Lock()
		gotNext, gotPrev = next, prev
		mu.Unlock()
		done <- struct{}{}
	})

	e.Emit(model.EventInCall, model.EventData{})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("subscriber was not invoked")
	}

	mu.Lock()
	defer mu.Unlock()
	if gotNext != model.StatusInCall || gotPrev != model.StatusDeploying {
		t.Fatalf("unexpected transition: next=%v prev=%v", gotNext, gotPrev)
	}
}

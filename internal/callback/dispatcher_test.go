package callback

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"botfleet/internal/model"
)

func TestDispatchDeliversPayload(t *testing.T) {
	var got atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p Payload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		got.Store(p)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewDispatcher(slog.Default())
	d.Dispatch(42, srv.URL, model.StatusDone)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if v := got.Load(); v != nil {
			p := v.(Payload)
			if p.BotID != 42 || p.Status != model.StatusDone {
				t.Fatalf("got %+v, want {42 done}", p)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("callback was not delivered within timeout")
}

func TestDispatchSkipsEmptyURL(t *testing.T) {
	d := NewDispatcher(slog.Default())
	// Must not panic or attempt any network call.
	d.Dispatch(1, "", model.StatusDone)
}

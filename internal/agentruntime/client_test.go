package agentruntime

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"botfleet/internal/model"
	"botfleet/internal/rpc"
)

func TestClientHeartbeatRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("missing bearer token: got %q", got)
		}
		if r.URL.Path != "/v1/agent/bots/42/heartbeat" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		leave := true
		_ = json.NewEncoder(w).Encode(rpc.HeartbeatResponse{ShouldLeave: leave})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 42, "tok")
	resp, err := c.Heartbeat(t.Context())
	if err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	if !resp.ShouldLeave {
		t.Fatal("expected ShouldLeave=true")
	}
}

func TestClientDequeueMessageNoContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(rpc.DequeueMessageResponse{})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 1, "tok")
	msg, err := c.DequeueMessage(t.Context())
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if msg != nil {
		t.Fatalf("expected nil message, got %q", *msg)
	}
}

func TestClientReportEventErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 1, "bad-token")
	err := c.ReportEvent(t.Context(), model.EventInCall, model.EventData{})
	if err == nil {
		t.Fatal("expected error on 401 response")
	}
}

package rpc

import (
	"fmt"
	"net/http"
	"testing"

	"botfleet/internal/model"
)

func TestStatusForMapsSentinels(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{model.ErrBotNotFound, http.StatusNotFound},
		{fmt.Errorf("wrap: %w", model.ErrUnauthorized), http.StatusUnauthorized},
		{model.ErrQuotaExceeded, http.StatusTooManyRequests},
		{model.ErrTerminalStatus, http.StatusConflict},
		{model.ErrPlatformUnsupported, http.StatusBadRequest},
		{model.ErrOrchestrator, http.StatusBadGateway},
		{fmt.Errorf("unclassified"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestGenerateSystemTokenIsUniqueAndNonEmpty(t *testing.T) {
	a, err := generateSystemToken()
	if err != nil {
		t.Fatalf("generateSystemToken: %v", err)
	}
	b, err := generateSystemToken()
	if err != nil {
		t.Fatalf("generateSystemToken: %v", err)
	}
	if a == "" || b == "" {
		t.Fatal("expected non-empty tokens")
	}
	if a == b {
		t.Fatal("expected distinct tokens across calls")
	}
}

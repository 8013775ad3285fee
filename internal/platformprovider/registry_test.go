package platformprovider

import (
	"context"
	"testing"

	"botfleet/internal/model"
)

func TestRegistryResolvesAllThreePlatforms(t *testing.T) {
	r := NewRegistry()

	for _, platform := range []model.Platform{model.PlatformMeet, model.PlatformTeams, model.PlatformZoom} {
		if _, err := r.For(platform); err != nil {
			t.Errorf("For(%s): unexpected error %v", platform, err)
		}
	}
}

func TestRegistryUnknownPlatform(t *testing.T) {
	r := NewRegistry()

	if _, err := r.For(model.Platform("webex")); err == nil {
		t.Fatal("expected error for unsupported platform")
	}
}

func TestMeetProviderJoinRejectsEmptyURL(t *testing.T) {
	p := NewMeetProvider()
	if err := p.Join(context.Background(), model.MeetingInfo{}); err == nil {
		t.Fatal("expected error joining with empty meeting url")
	}
}

func TestMeetProviderRequestLeaveMarksRemoved(t *testing.T) {
	p := NewMeetProvider()

	removed, err := p.HasBeenRemovedFromCall(context.Background())
	if err != nil || removed {
		t.Fatalf("expected not-removed initially, got removed=%v err=%v", removed, err)
	}

	if err := p.RequestLeave(context.Background()); err != nil {
		t.Fatalf("RequestLeave: %v", err)
	}

	removed, err = p.HasBeenRemovedFromCall(context.Background())
	if err != nil || !removed {
		t.Fatalf("expected removed after RequestLeave, got removed=%v err=%v", removed, err)
	}
}

func TestMeetProviderRunReturnsOnContextCancel(t *testing.T) {
	p := NewMeetProvider()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := p.Run(ctx); err == nil {
		t.Fatal("expected Run to return ctx.Err() once cancelled")
	}
}

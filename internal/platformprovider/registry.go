// Package platformprovider implements the "dynamic platform module import"
// re-statement of §9: a registry of named capability-set variants, chosen
// at deploy time by platform identifier, running inside the Bot Agent
// Runtime. DOM automation itself is out of scope (§1 Non-goals); providers
// here are real selection/wiring over stub capability implementations.
package platformprovider

import (
	"context"
	"fmt"

	"botfleet/internal/model"
)

// Provider is the capability set a meeting platform variant must supply
// (§9).
type Provider interface {
	Join(ctx context.Context, meeting model.MeetingInfo) error
	Screenshot(ctx context.Context) ([]byte, error)
	Cleanup(ctx context.Context) error
	Run(ctx context.Context) error
	RecordingPath() string
	ContentType() string
	SpeakerTimeframes() ([]byte, error)
	HasBeenRemovedFromCall(ctx context.Context) (bool, error)
	SendChatMessage(ctx context.Context, message string) error
	RequestLeave(ctx context.Context) error
}

// Registry maps a platform identifier to its Provider, selected at deploy
// time (§9).
type Registry struct {
	providers map[model.Platform]Provider
}

func NewRegistry() *Registry {
	r := &Registry{providers: make(map[model.Platform]Provider)}
	r.Register(model.PlatformMeet, NewMeetProvider())
	r.Register(model.PlatformTeams, NewTeamsProvider())
	r.Register(model.PlatformZoom, NewZoomProvider())
	return r
}

func (r *Registry) Register(platform model.Platform, p Provider) {
	r.providers[platform] = p
}

func (r *Registry) For(platform model.Platform) (Provider, error) {
	p, ok := r.providers[platform]
	if !ok {
		return nil, fmt.Errorf("%w: %q", model.ErrPlatformUnsupported, platform)
	}
	return p, nil
}

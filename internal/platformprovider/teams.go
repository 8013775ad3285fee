package platformprovider

import (
	"context"
	"fmt"

	"botfleet/internal/model"
)

// TeamsProvider is the Microsoft Teams capability-set variant.
type TeamsProvider struct {
	recordingPath string
	removed       bool
}

func NewTeamsProvider() *TeamsProvider {
	return &TeamsProvider{}
}

func (p *TeamsProvider) Join(ctx context.Context, meeting model.MeetingInfo) error {
	if meeting.URL == "" {
		return fmt.Errorf("teams: empty meeting url")
	}
	return nil
}

func (p *TeamsProvider) Screenshot(ctx context.Context) ([]byte, error) {
	return nil, nil
}

func (p *TeamsProvider) Cleanup(ctx context.Context) error {
	return nil
}

func (p *TeamsProvider) Run(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (p *TeamsProvider) RecordingPath() string {
	return p.recordingPath
}

func (p *TeamsProvider) ContentType() string {
	return "video/mp4"
}

func (p *TeamsProvider) SpeakerTimeframes() ([]byte, error) {
	return []byte("[]"), nil
}

func (p *TeamsProvider) HasBeenRemovedFromCall(ctx context.Context) (bool, error) {
	return p.removed, nil
}

func (p *TeamsProvider) SendChatMessage(ctx context.Context, message string) error {
	return nil
}

func (p *TeamsProvider) RequestLeave(ctx context.Context) error {
	p.removed = true
	return nil
}

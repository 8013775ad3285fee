package platformprovider

import (
	"context"
	"fmt"

	"botfleet/internal/model"
)

// MeetProvider is the Google Meet capability-set variant. DOM automation
// is out of scope (§1 Non-goals); this stub implements the wiring contract
// a real provider would fill in.
type MeetProvider struct {
	recordingPath string
	removed       bool
}

func NewMeetProvider() *MeetProvider {
	return &MeetProvider{}
}

func (p *MeetProvider) Join(ctx context.Context, meeting model.MeetingInfo) error {
	if meeting.URL == "" {
		return fmt.Errorf("meet: empty meeting url")
	}
	return nil
}

func (p *MeetProvider) Screenshot(ctx context.Context) ([]byte, error) {
	return nil, nil
}

func (p *MeetProvider) Cleanup(ctx context.Context) error {
	return nil
}

func (p *MeetProvider) Run(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (p *MeetProvider) RecordingPath() string {
	return p.recordingPath
}

func (p *MeetProvider) ContentType() string {
	return "video/webm"
}

func (p *MeetProvider) SpeakerTimeframes() ([]byte, error) {
	return []byte("[]"), nil
}

func (p *MeetProvider) HasBeenRemovedFromCall(ctx context.Context) (bool, error) {
	return p.removed, nil
}

func (p *MeetProvider) SendChatMessage(ctx context.Context, message string) error {
	return nil
}

func (p *MeetProvider) RequestLeave(ctx context.Context) error {
	p.removed = true
	return nil
}

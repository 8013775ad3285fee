package platformprovider

import (
	"context"
	"fmt"

	"botfleet/internal/model"
)

// ZoomProvider is the Zoom capability-set variant.
type ZoomProvider struct {
	recordingPath string
	removed       bool
}

func NewZoomProvider() *ZoomProvider {
	return &ZoomProvider{}
}

func (p *ZoomProvider) Join(ctx context.Context, meeting model.MeetingInfo) error {
	if meeting.URL == "" {
		return fmt.Errorf("zoom: empty meeting url")
	}
	return nil
}

func (p *ZoomProvider) Screenshot(ctx context.Context) ([]byte, error) {
	return nil, nil
}

func (p *ZoomProvider) Cleanup(ctx context.Context) error {
	return nil
}

func (p *ZoomProvider) Run(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (p *ZoomProvider) RecordingPath() string {
	return p.recordingPath
}

func (p *ZoomProvider) ContentType() string {
	return "video/mp4"
}

func (p *ZoomProvider) SpeakerTimeframes() ([]byte, error) {
	return []byte("[]"), nil
}

func (p *ZoomProvider) HasBeenRemovedFromCall(ctx context.Context) (bool, error) {
	return p.removed, nil
}

func (p *ZoomProvider) SendChatMessage(ctx context.Context, message string) error {
	return nil
}

func (p *ZoomProvider) RequestLeave(ctx context.Context) error {
	p.removed = true
	return nil
}

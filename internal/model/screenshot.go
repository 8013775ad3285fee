package model

import "time"

// ScreenshotType is the diagnostic classification of a captured frame
// (§7 "Screenshots of fatal and error type are produced when possible").
type ScreenshotType string

const (
	ScreenshotFatal ScreenshotType = "fatal"
	ScreenshotError ScreenshotType = "error"
	ScreenshotDebug ScreenshotType = "debug"
)

// Screenshot is a stored diagnostic capture attached to a bot (§4.8
// uploadScreenshot/addScreenshot).
type Screenshot struct {
	Key        string         `json:"key"`
	BotID      int64          `json:"botId"`
	Type       ScreenshotType `json:"type"`
	State      string         `json:"state"`
	Trigger    string         `json:"trigger,omitempty"`
	CapturedAt time.Time      `json:"capturedAt"`
}

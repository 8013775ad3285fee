package model

import "time"

// EventType is the vocabulary of §6.3.
type EventType string

const (
	EventDeploying     EventType = "DEPLOYING"
	EventJoiningCall   EventType = "JOINING_CALL"
	EventInWaitingRoom EventType = "IN_WAITING_ROOM"
	EventInCall        EventType = "IN_CALL"
	EventCallEnded     EventType = "CALL_ENDED"
	EventDone          EventType = "DONE"
	EventFatal         EventType = "FATAL"

	EventParticipantJoin  EventType = "PARTICIPANT_JOIN"
	EventParticipantLeave EventType = "PARTICIPANT_LEAVE"
	EventLog              EventType = "LOG"
	EventSignInRequired    EventType = "SIGN_IN_REQUIRED"
	EventCaptchaDetected   EventType = "CAPTCHA_DETECTED"
	EventMeetingNotFound   EventType = "MEETING_NOT_FOUND"
	EventMeetingEnded      EventType = "MEETING_ENDED"
	EventPermissionDenied  EventType = "PERMISSION_DENIED"
	EventJoinBlocked       EventType = "JOIN_BLOCKED"
	EventRestarting        EventType = "RESTARTING"
)

// statusClassEvents are the events that also update the bot's status
// projection when emitted (§4.9, §6.3).
var statusClassEvents = map[EventType]BotStatus{
	EventDeploying:     StatusDeploying,
	EventJoiningCall:   StatusJoiningCall,
	EventInWaitingRoom: StatusInWaitingRoom,
	EventInCall:        StatusInCall,
	EventCallEnded:     StatusCallEnded,
	EventDone:          StatusDone,
	EventFatal:         StatusFatal,
}

// StatusFor returns the status this event type projects to, and whether it
// is a status-class event at all.
func StatusFor(t EventType) (BotStatus, bool) {
	s, ok := statusClassEvents[t]
	return s, ok
}

// EventData carries the free-form payload fields named in §3/§6.3.
type EventData struct {
	Description string `json:"description,omitempty"`
	SubCode     string `json:"sub_code,omitempty"`
}

// Sub-codes used across the error taxonomy (§7).
const (
	SubCodeQueueTimeout           = "QUEUE_TIMEOUT"
	SubCodeDurationLimitExceeded  = "DURATION_LIMIT_EXCEEDED"
)

// Event is an append-only record per bot (§3). Insert-only; no updates.
type Event struct {
	ID        string    `json:"id"`
	BotID     int64     `json:"botId"`
	Type      EventType `json:"eventType"`
	EventTime time.Time `json:"eventTime"`
	Data      EventData `json:"data,omitempty"`
}

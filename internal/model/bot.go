package model

import "time"

// Platform identifies the meeting provider a bot attends.
type Platform string

const (
	PlatformMeet  Platform = "meet"
	PlatformTeams Platform = "teams"
	PlatformZoom  Platform = "zoom"
)

func (p Platform) Valid() bool {
	switch p {
	case PlatformMeet, PlatformTeams, PlatformZoom:
		return true
	default:
		return false
	}
}

// BotStatus is the finite-state status projection of a bot's event log.
type BotStatus string

const (
	StatusCreated      BotStatus = "CREATED"
	StatusQueued       BotStatus = "QUEUED"
	StatusDeploying    BotStatus = "DEPLOYING"
	StatusJoiningCall  BotStatus = "JOINING_CALL"
	StatusInWaitingRoom BotStatus = "IN_WAITING_ROOM"
	StatusInCall       BotStatus = "IN_CALL"
	StatusCallEnded    BotStatus = "CALL_ENDED"
	StatusDone         BotStatus = "DONE"
	StatusFatal        BotStatus = "FATAL"
	StatusCancelled    BotStatus = "CANCELLED"
)

// Terminal reports whether status admits no further transitions (invariant
// in §3: status ∈ {DONE, FATAL} is terminal; CANCELLED is also terminal).
func (s BotStatus) Terminal() bool {
	switch s {
	case StatusDone, StatusFatal, StatusCancelled:
		return true
	default:
		return false
	}
}

// MeetingInfo describes the meeting a bot is scheduled to join.
type MeetingInfo struct {
	Platform    Platform `json:"platform"`
	URL         string   `json:"url"`
	Credentials *string  `json:"credentials,omitempty"`
}

// AutomaticLeave holds the bot's self-departure timeouts, each >= 60s.
type AutomaticLeave struct {
	WaitingRoomTimeoutMs   int64 `json:"waitingRoomTimeoutMs"`
	NoOneJoinedTimeoutMs   int64 `json:"noOneJoinedTimeoutMs"`
	EveryoneLeftTimeoutMs  int64 `json:"everyoneLeftTimeoutMs"`
	InactivityTimeoutMs    int64 `json:"inactivityTimeoutMs"`
}

// DefaultAutomaticLeave returns the default timeouts used when a bot is
// created without its own; each is above the 60s floor.
func DefaultAutomaticLeave() AutomaticLeave {
	return AutomaticLeave{
		WaitingRoomTimeoutMs:  5 * 60 * 1000,
		NoOneJoinedTimeoutMs:  5 * 60 * 1000,
		EveryoneLeftTimeoutMs: 2 * 60 * 1000,
		InactivityTimeoutMs:   10 * 60 * 1000,
	}
}

// Bot is one scheduled or running meeting attendance (§3).
type Bot struct {
	ID                int64          `json:"id"`
	TenantID          string         `json:"tenantId"`
	Meeting           MeetingInfo    `json:"meetingInfo"`
	MeetingTitle      string         `json:"meetingTitle"`
	DisplayName       string         `json:"displayName"`
	ScheduledStart    *time.Time     `json:"scheduledStart,omitempty"`
	ScheduledEnd      *time.Time     `json:"scheduledEnd,omitempty"`
	RecordingEnabled  bool           `json:"recordingEnabled"`
	ChatEnabled       bool           `json:"chatEnabled"`
	HeartbeatInterval time.Duration  `json:"heartbeatIntervalMs"`
	AutomaticLeave    AutomaticLeave `json:"automaticLeave"`
	CallbackURL       *string        `json:"callbackUrl,omitempty"`

	Status             BotStatus  `json:"status"`
	LastHeartbeat       *time.Time `json:"lastHeartbeat,omitempty"`
	DeploymentPlatform  *string    `json:"deploymentPlatform,omitempty"`
	PlatformIdentifier  *string    `json:"platformIdentifier,omitempty"`
	RecordingKey        *string    `json:"recordingKey,omitempty"`
	SpeakerTimeframes   []byte     `json:"speakerTimeframes,omitempty"`
	DeploymentError     *string    `json:"deploymentError,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// statusOrder is the forward-only ordering of the non-terminal main path
// (§4.9: "CREATED → QUEUED? → DEPLOYING → JOINING_CALL → IN_WAITING_ROOM?
// → IN_CALL → CALL_ENDED → DONE"). QUEUED and IN_WAITING_ROOM are
// optional, so reaching a later state directly from an earlier one (e.g.
// CREATED straight to DEPLOYING) is allowed; going backwards is not.
var statusOrder = map[BotStatus]int{
	StatusCreated:       0,
	StatusQueued:        1,
	StatusDeploying:     2,
	StatusJoiningCall:   3,
	StatusInWaitingRoom: 4,
	StatusInCall:        5,
	StatusCallEnded:     6,
	StatusDone:          7,
}

// cancellableFrom is the set of statuses CANCELLED may be reached from
// (§4.9: "Additional terminal CANCELLED reachable from CREATED | QUEUED |
// DEPLOYING").
var cancellableFrom = map[BotStatus]bool{
	StatusCreated:   true,
	StatusQueued:    true,
	StatusDeploying: true,
}

// ValidPredecessors returns every status next may be reached from,
// encoding §4.9's transition graph. The empty result for StatusCreated
// reflects that a bot is created directly into CREATED, never
// transitioned into it.
func ValidPredecessors(next BotStatus) []BotStatus {
	switch next {
	case StatusFatal:
		preds := make([]BotStatus, 0, len(statusOrder))
		for s := range statusOrder {
			if !s.Terminal() {
				preds = append(preds, s)
			}
		}
		return preds
	case StatusCancelled:
		preds := make([]BotStatus, 0, len(cancellableFrom))
		for s := range cancellableFrom {
			preds = append(preds, s)
		}
		return preds
	default:
		order, ok := statusOrder[next]
		if !ok {
			return nil
		}
		preds := make([]BotStatus, 0, order)
		for s, o := range statusOrder {
			if o < order {
				preds = append(preds, s)
			}
		}
		return preds
	}
}

// CanTransitionTo reports whether the bot's current status permits moving
// to next, per §4.9's transition graph: forward-only ordering along the
// main path, FATAL reachable from any non-terminal status, and CANCELLED
// reachable only from CREATED, QUEUED, or DEPLOYING.
func (b *Bot) CanTransitionTo(next BotStatus) bool {
	if b.Status.Terminal() {
		return false
	}
	for _, pred := range ValidPredecessors(next) {
		if pred == b.Status {
			return true
		}
	}
	return false
}

package eventbus

import (
	"strconv"
	"time"

	"botfleet/internal/model"
)

// Event is the fan-out envelope streamed to live subscribers (§4.7, §4.8
// streamBotEvents). It is published for the status transitions the control
// plane drives itself (deploy, queue drain, queue timeout); events an agent
// reports through reportEvent are appended to the Event Log but not
// published here. Payload holds event data (model.EventData), not the full
// model.Event, and is empty when the publisher does not set it.
type Event struct {
	Type      model.EventType `json:"type"`
	BotID     int64           `json:"bot_id"`
	Payload   model.EventData `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// BotChannelKey is the Redis pub/sub channel a given bot's events are
// published to and streamed from.
func BotChannelKey(botID int64) string {
	return "bot:" + strconv.FormatInt(botID, 10) + ":events"
}

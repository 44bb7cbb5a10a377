// ABOUTME: Lifecycle events published on a session's event stream
// ABOUTME: Events serialise with an "op" discriminator
package player

// Event ops
const (
	OpTrackStart     = "trackStart"
	OpTrackEnd       = "trackEnd"
	OpQueueUpdate    = "queueUpdate"
	OpLoopModeChange = "loopModeChange"
)

// End reasons carried by trackEnd
const (
	ReasonFinished = "finished"
	ReasonSkipped  = "skipped"
	ReasonStopped  = "stopped"
	ReasonFailed   = "failed"
)

// Event is one lifecycle notification. Fields not used by an op are omitted.
type Event struct {
	Op       string `json:"op"`
	PlayerID string `json:"playerId"`

	// trackStart, trackEnd
	TrackID string `json:"id,omitempty"`
	URI     string `json:"uri,omitempty"`
	Reason  string `json:"reason,omitempty"`

	// queueUpdate
	Queue []TrackItem `json:"queue,omitempty"`

	// loopModeChange
	Mode *LoopMode `json:"mode,omitempty"`
}

func trackStartEvent(playerID string, item TrackItem) Event {
	return Event{Op: OpTrackStart, PlayerID: playerID, TrackID: item.ID, URI: item.URI}
}

func trackEndEvent(playerID string, item TrackItem, reason string) Event {
	return Event{Op: OpTrackEnd, PlayerID: playerID, TrackID: item.ID, Reason: reason}
}

func queueUpdateEvent(playerID string, queue []TrackItem) Event {
	if queue == nil {
		queue = []TrackItem{}
	}
	return Event{Op: OpQueueUpdate, PlayerID: playerID, Queue: queue}
}

func loopModeEvent(playerID string, mode LoopMode) Event {
	return Event{Op: OpLoopModeChange, PlayerID: playerID, Mode: &mode}
}

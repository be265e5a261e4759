package findings

import (
	"encoding/json"
	"fmt"
)

// Invalidator is the piece of the aggregate store the event handler needs:
// flagging the snapshot stale after finding churn.
type Invalidator interface {
	MarkDirty()
}

// HandleFindingEvent decodes one Kafka message and flags the aggregate
// snapshot stale. The rebuild itself happens on the consumer's cadence, not
// per message, so scan bursts coalesce into one recompute.
func HandleFindingEvent(payload []byte, store Invalidator) error {
	var event FindingEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("decode finding event: %w", err)
	}

	switch event.EventType {
	case EventFindingRecorded, EventFindingResolved:
		store.MarkDirty()
		return nil
	default:
		// Unknown event types are skipped, not failed, so schema additions
		// do not wedge the consumer group.
		return nil
	}
}

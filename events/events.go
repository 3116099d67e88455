package events

import (
	"github.com/ethereum/go-ethereum/event"
	"github.com/rotblauer/catmode/calibration"
)

// ModelsAppliedFeed is emitted with a copy of the working models every time they are replaced,
// whether by a trainer's --apply, a snapshot load, a reset, or a clear.
// Send blocks until every subscriber has received; subscribers must keep reading.
var ModelsAppliedFeed = event.FeedOf[calibration.Models]{}

// SnapshotFeed is emitted after a snapshot is created or deleted.
var SnapshotFeed = event.FeedOf[SnapshotEvent]{}

type SnapshotEvent struct {
	Name    string `json:"name"`
	Deleted bool   `json:"deleted"`
}

package webd

import (
	"encoding/json"
	"time"

	"github.com/olahol/melody"
	"github.com/rotblauer/catmode/calibration"
	"github.com/rotblauer/catmode/events"
	"github.com/rotblauer/catmode/trainer"
)

type websocketAction string

const (
	websocketActionState    websocketAction = "state"
	websocketActionModels   websocketAction = "models"
	websocketActionSnapshot websocketAction = "snapshot"
)

type broadcast struct {
	Action   websocketAction       `json:"action"`
	State    *trainer.State        `json:"state,omitempty"`
	Models   calibration.Models    `json:"models,omitempty"`
	Snapshot *events.SnapshotEvent `json:"snapshot,omitempty"`
}

// initMelody sets up the websocket handler and the goroutines
// feeding trainer states and model events to connected clients.
func (s *WebDaemon) initMelody() {
	s.melodyInstance = melody.New()

	// New clients get the current training state.
	s.melodyInstance.HandleConnect(func(session *melody.Session) {
		s.logger.Debug("Websocket connected", "remote", session.Request.RemoteAddr)
		if s.trainer == nil {
			return
		}
		st := s.trainer.State()
		if b, err := json.Marshal(broadcast{Action: websocketActionState, State: &st}); err == nil {
			_ = session.Write(b)
		}
	})

	// Clients have nothing to say. Log and drop.
	s.melodyInstance.HandleMessage(func(session *melody.Session, msg []byte) {
		s.logger.Debug("Websocket message", "remote", session.Request.RemoteAddr, "msg", string(msg))
	})
	s.melodyInstance.HandleDisconnect(func(session *melody.Session) {
		s.logger.Debug("Websocket disconnected", "remote", session.Request.RemoteAddr)
	})
	s.melodyInstance.HandleError(func(session *melody.Session, e error) {
		s.logger.Debug("Websocket error", "remote", session.Request.RemoteAddr, "error", e)
	})

	if s.trainer != nil {
		go s.broadcastStates()
	}
	go s.broadcastModelEvents()
}

func (s *WebDaemon) broadcast(b broadcast) {
	if s.melodyInstance.IsClosed() || s.melodyInstance.Len() == 0 {
		return
	}
	data, err := json.Marshal(b)
	if err != nil {
		s.logger.Error("Failed to marshal broadcast", "action", b.Action, "error", err)
		return
	}
	if err := s.melodyInstance.Broadcast(data); err != nil {
		s.logger.Warn("Failed to broadcast", "action", b.Action, "error", err)
	}
}

// broadcastStates relays trainer states, at most one per SocketThrottle.
// Final states are always sent.
func (s *WebDaemon) broadcastStates() {
	states := make(chan trainer.State, 1)
	sub := s.trainer.Subscribe(states)
	defer sub.Unsubscribe()
	var last time.Time
	for {
		select {
		case st := <-states:
			if st.Running && time.Since(last) < s.Config.SocketThrottle {
				continue
			}
			last = time.Now()
			s.broadcast(broadcast{Action: websocketActionState, State: &st})
		case err := <-sub.Err():
			if err != nil {
				s.logger.Error("Trainer subscription failed", "error", err)
			}
			return
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *WebDaemon) broadcastModelEvents() {
	applied := make(chan calibration.Models, 1)
	appliedSub := events.ModelsAppliedFeed.Subscribe(applied)
	defer appliedSub.Unsubscribe()
	snaps := make(chan events.SnapshotEvent, 1)
	snapsSub := events.SnapshotFeed.Subscribe(snaps)
	defer snapsSub.Unsubscribe()
	for {
		select {
		case models := <-applied:
			s.broadcast(broadcast{Action: websocketActionModels, Models: models})
		case ev := <-snaps:
			s.broadcast(broadcast{Action: websocketActionSnapshot, Snapshot: &ev})
		case <-appliedSub.Err():
			return
		case <-snapsSub.Err():
			return
		case <-s.ctx.Done():
			return
		}
	}
}

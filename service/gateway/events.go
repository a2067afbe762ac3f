package gateway

import (
	"encoding/json"
	"time"

	"CollabProject/logger"
	"CollabProject/service/kafka"
	"CollabProject/tools/safe"
)

// Domain event types delivered to the external consumer.
const (
	EventClientConnected     = "ClientConnected"
	EventClientDisconnected  = "ClientDisconnected"
	EventUserMessageReceived = "UserMessageReceived"
	EventPlanApproved        = "PlanApproved"
	EventPlanFeedback        = "PlanFeedback"
	EventImageUploadReceived = "ImageUploadReceived"
)

// Event is one domain event. The gateway emits and forgets; nothing here
// waits on downstream processing.
type Event struct {
	Type         string         `json:"type"`
	UserID       string         `json:"userId"`
	RoomID       string         `json:"roomId,omitempty"`
	WorkspaceID  string         `json:"workspaceId,omitempty"`
	ConnectionID string         `json:"connectionId"`
	GatewayID    string         `json:"gatewayId"`
	At           int64          `json:"at"` // unix ms, server-assigned
	Payload      map[string]any `json:"payload,omitempty"`
}

// NewEvent stamps an event for the given connection.
func NewEvent(typ string, c *Conn, gatewayID string, payload map[string]any) Event {
	return Event{
		Type:         typ,
		UserID:       c.UserID,
		RoomID:       c.RoomID(),
		WorkspaceID:  c.WorkspaceID,
		ConnectionID: c.ID,
		GatewayID:    gatewayID,
		At:           time.Now().UnixMilli(),
		Payload:      payload,
	}
}

// KafkaEmitter publishes events keyed by room so consumers see one room's
// events in order. Emission happens off the frame path; failures are
// logged and the event is lost, never retried.
type KafkaEmitter struct{}

func NewKafkaEmitter() *KafkaEmitter { return &KafkaEmitter{} }

func (e *KafkaEmitter) Emit(ev Event) {
	safe.SafeGo(func() {
		data, err := json.Marshal(ev)
		if err != nil {
			logger.Errorf("marshal event type=%s: %v", ev.Type, err)
			return
		}
		key := ev.RoomID
		if key == "" {
			key = ev.UserID
		}
		if err := kafka.SendEvent(key, data); err != nil {
			logger.Warnf("emit event type=%s room=%s: %v", ev.Type, ev.RoomID, err)
		}
	})
}

// NopEmitter drops events; used when no broker is configured and in tests.
type NopEmitter struct{}

func (NopEmitter) Emit(Event) {}

// ChanEmitter collects events on a channel for tests.
type ChanEmitter struct {
	C chan Event
}

func NewChanEmitter(buf int) *ChanEmitter {
	return &ChanEmitter{C: make(chan Event, buf)}
}

func (e *ChanEmitter) Emit(ev Event) {
	select {
	case e.C <- ev:
	default:
	}
}

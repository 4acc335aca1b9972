package service

import "vidyavichar/internal/model"

// Broadcaster delivers an event to every subscriber of a room (avoids import cycle with ws)
type Broadcaster interface {
	Publish(room string, eventType model.EventType, payload interface{})
}

type noopBroadcaster struct{}

func (noopBroadcaster) Publish(string, model.EventType, interface{}) {}

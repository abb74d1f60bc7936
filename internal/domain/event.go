package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType classifies a binding against the previous ledger snapshot
type EventType string

const (
	EventNew       EventType = "new"
	EventUnchanged EventType = "unchanged"
	EventChanged   EventType = "changed" // possible spoofing
)

// ReconciliationEvent is emitted by the reconciler. Field names match the
// dashboard's /api/event contract.
type ReconciliationEvent struct {
	ID             string    `json:"id"`
	EventType      EventType `json:"eventType"`
	IP             string    `json:"ipAddress"`
	HWAddr         string    `json:"macAddress"`
	PreviousHWAddr string    `json:"previousMAC,omitempty"`
	ObserverID     string    `json:"recordedBy"`
	Interface      string    `json:"interface,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
	Message        string    `json:"message"`
}

// NewEvent builds an event for the current binding. previous is only
// kept for EventChanged.
func NewEvent(eventType EventType, current Binding, previous string, at time.Time) ReconciliationEvent {
	ev := ReconciliationEvent{
		ID:         uuid.NewString(),
		EventType:  eventType,
		IP:         current.IP,
		HWAddr:     current.HWAddr,
		ObserverID: current.ObserverID,
		Interface:  current.Interface,
		Timestamp:  at,
	}

	switch eventType {
	case EventNew:
		ev.Message = fmt.Sprintf("New device: %s -> %s", current.IP, current.HWAddr)
	case EventChanged:
		ev.PreviousHWAddr = previous
		ev.Message = fmt.Sprintf("MAC CHANGED! %s: %s -> %s", current.IP, previous, current.HWAddr)
	default:
		ev.Message = fmt.Sprintf("Valid update: %s -> %s", current.IP, current.HWAddr)
	}

	return ev
}

// IsSpoofingSignal reports whether the event indicates a hardware address change
func (e ReconciliationEvent) IsSpoofingSignal() bool {
	return e.EventType == EventChanged
}

package domain

import (
	"encoding/json"
	"fmt"
)

// Priority of the inbound notification as set by the homeserver.
type Priority string

const (
	PriorityLow  Priority = "low"
	PriorityHigh Priority = "high"
)

// Counts carries the per-user unread state.
type Counts struct {
	Unread      *int `json:"unread,omitempty"`
	MissedCalls *int `json:"missed_calls,omitempty"`
}

// NotificationType classifies a notification for the delivered counter.
type NotificationType string

const (
	// TypeClearing informs devices that there is nothing left to display.
	TypeClearing NotificationType = "clearing"
	// TypeData is rendered by the receiving app itself.
	TypeData NotificationType = "data"
	// TypeNotification carries gateway-provided visible content.
	TypeNotification NotificationType = "notification"
)

func (t NotificationType) String() string { return string(t) }

// Notification is one inbound push request, fanned out to all its devices.
// It is immutable for the lifetime of the dispatch operation.
type Notification struct {
	EventID           string          `json:"event_id,omitempty"`
	RoomID            string          `json:"room_id,omitempty"`
	Type              string          `json:"type,omitempty"`
	Sender            string          `json:"sender,omitempty"`
	SenderDisplayName string          `json:"sender_display_name,omitempty"`
	RoomName          string          `json:"room_name,omitempty"`
	RoomAlias         string          `json:"room_alias,omitempty"`
	Prio              Priority        `json:"prio,omitempty"`
	Counts            *Counts         `json:"counts,omitempty"`
	Content           json.RawMessage `json:"content,omitempty"`
	Devices           []Device        `json:"devices"`
	Ciphertext        string          `json:"ciphertext,omitempty"`
	Ephemeral         string          `json:"ephemeral,omitempty"`
	Mac               string          `json:"mac,omitempty"`
	CountsOnly        bool            `json:"counts_only,omitempty"`
	UserIsTarget      bool            `json:"user_is_target,omitempty"`
}

func (n *Notification) Validate() error {
	if len(n.Devices) == 0 {
		return fmt.Errorf("%w: notification carries no devices", ErrValidation)
	}
	for i := range n.Devices {
		if err := n.Devices[i].Validate(); err != nil {
			return fmt.Errorf("device %d: %w", i, err)
		}
	}
	if n.Prio != "" && n.Prio != PriorityLow && n.Prio != PriorityHigh {
		return fmt.Errorf("%w: invalid prio %q", ErrValidation, n.Prio)
	}
	return nil
}

// UnreadCount returns the unread counter with 0 as default.
func (n *Notification) UnreadCount() int {
	if n.Counts == nil || n.Counts.Unread == nil {
		return 0
	}
	return *n.Counts.Unread
}

// IsCountsOnly reports whether the notification carries no new displayable
// content and should be delivered as a silent badge update.
func (n *Notification) IsCountsOnly() bool {
	if n.CountsOnly {
		return true
	}
	if n.EventID == "" && n.Ciphertext == "" {
		return true
	}
	if n.Counts != nil && n.UnreadCount() == 0 {
		return true
	}
	if n.Counts != nil && n.Ciphertext != "" {
		return true
	}
	return false
}

// IsClearing reports whether the notification only tells the device that
// there are no more unread rooms. Data-message devices get to decide this
// themselves, so a zero unread count alone does not make their pushes
// clearing ones.
func (n *Notification) IsClearing(device *Device) bool {
	if n.EventID == "" {
		return true
	}
	return !device.Class().IsDataMessage() && n.UnreadCount() == 0
}

// DeriveType classifies the notification for the delivered counter, based on
// its first device.
func (n *Notification) DeriveType() NotificationType {
	if len(n.Devices) == 0 {
		return TypeClearing
	}
	first := &n.Devices[0]
	switch {
	case n.IsClearing(first):
		return TypeClearing
	case first.Class().IsDataMessage():
		return TypeData
	default:
		return TypeNotification
	}
}

// Stripped returns a copy of the notification scoped to a single device, used
// as the data block of data messages so the payload stays within provider
// size limits.
func (n *Notification) Stripped(device *Device) *Notification {
	stripped := *n
	stripped.Devices = []Device{*device}
	return &stripped
}

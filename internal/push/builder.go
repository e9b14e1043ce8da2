package push

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/corvid-im/pushgw/internal/config"
	"github.com/corvid-im/pushgw/internal/domain"
	"github.com/corvid-im/pushgw/internal/provider"
)

const fcmPriorityHigh = "high"

// Message is the closed union of the two provider payload variants. Exactly
// one side is set.
type Message struct {
	FCM  *provider.FCMMessage
	APNS *provider.APNSMessage
}

// Builder turns a notification/device pair into a provider payload.
// Deterministic: identical inputs produce identical messages.
type Builder struct {
	cfg *config.Config
}

func NewBuilder(cfg *config.Config) (*Builder, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	return &Builder{cfg: cfg}, nil
}

func (b *Builder) Build(n *domain.Notification, device *domain.Device, route Route) (*Message, error) {
	switch route.Shape {
	case ShapeAndroidData:
		return b.buildAndroidData(n, device)
	case ShapeGeneric:
		return b.buildGeneric(n, device)
	case ShapeIOSData:
		return b.buildIOSData(n, device), nil
	case ShapeAPNSAlert:
		return b.buildAPNSAlert(n, device), nil
	default:
		return nil, fmt.Errorf("unknown payload shape %q", route.Shape)
	}
}

// buildAndroidData emits only a data block; the app renders the notification
// itself, so no visible block is attached regardless of unread state.
func (b *Builder) buildAndroidData(n *domain.Notification, device *domain.Device) (*Message, error) {
	data, err := dataMap(n.Stripped(device))
	if err != nil {
		return nil, err
	}

	return &Message{FCM: &provider.FCMMessage{
		To:       device.Pushkey,
		Priority: fcmPriorityHigh,
		Data:     data,
	}}, nil
}

// buildGeneric emits the FCM default shape. The visible block is dropped for
// counts-only notifications, leaving a badge-only update.
func (b *Builder) buildGeneric(n *domain.Notification, device *domain.Device) (*Message, error) {
	unread := n.UnreadCount()
	badge := strconv.Itoa(unread)

	msg := &provider.FCMMessage{
		To:       device.Pushkey,
		Priority: fcmPriorityHigh,
	}

	if n.IsCountsOnly() {
		msg.Notification = &provider.FCMNotification{Badge: badge}
	} else {
		msg.Notification = &provider.FCMNotification{
			Title:            b.title(unread),
			Body:             b.cfg.Notification.Body,
			Badge:            badge,
			Sound:            b.cfg.Notification.Sound,
			Icon:             b.cfg.Notification.Icon,
			Tag:              b.cfg.Notification.Tag,
			ClickAction:      b.cfg.Notification.ClickAction,
			AndroidChannelID: b.cfg.Notification.AndroidChannelID,
		}
	}

	return &Message{FCM: msg}, nil
}

// buildIOSData emits a background APNs delivery carrying the stripped
// notification; the service extension on the device renders it.
func (b *Builder) buildIOSData(n *domain.Notification, device *domain.Device) *Message {
	badge := n.UnreadCount()

	return &Message{APNS: &provider.APNSMessage{
		DeviceToken: device.Pushkey,
		Priority:    provider.APNSPriorityBackground,
		PushType:    provider.APNSPushTypeBackground,
		Payload: provider.APNSPayload{
			APS: provider.APS{
				Badge:            &badge,
				Sound:            b.cfg.Notification.Sound,
				ContentAvailable: 1,
				MutableContent:   1,
			},
			Data: n.Stripped(device),
		},
	}}
}

// buildAPNSAlert emits a native Apple payload for devices that asked for
// direct APNs delivery of their generic notifications.
func (b *Builder) buildAPNSAlert(n *domain.Notification, device *domain.Device) *Message {
	badge := n.UnreadCount()

	msg := &provider.APNSMessage{
		DeviceToken: device.Pushkey,
		Payload: provider.APNSPayload{
			Data: n.Stripped(device),
		},
	}

	if n.IsCountsOnly() {
		msg.Priority = provider.APNSPriorityBackground
		if n.Counts != nil {
			msg.PushType = provider.APNSPushTypeAlert
			msg.Payload.APS = provider.APS{Badge: &badge}
		} else {
			msg.PushType = provider.APNSPushTypeBackground
			msg.Payload.APS = provider.APS{ContentAvailable: 1}
		}
		return &Message{APNS: msg}
	}

	msg.Priority = provider.APNSPriorityImmediate
	msg.PushType = provider.APNSPushTypeAlert
	msg.Payload.APS = provider.APS{
		Alert: &provider.APNSAlert{
			Title: b.title(badge),
			Body:  b.cfg.Notification.Body,
		},
		Badge:          &badge,
		Sound:          b.cfg.Notification.Sound,
		MutableContent: 1,
	}

	return &Message{APNS: msg}
}

func (b *Builder) title(unread int) string {
	return strings.ReplaceAll(b.cfg.Notification.Title, "<count>", strconv.Itoa(unread))
}

// dataMap flattens the stripped notification into the string-valued map the
// FCM data block requires. Scalar strings are carried as-is, everything else
// stays JSON-encoded.
func dataMap(n *domain.Notification) (map[string]string, error) {
	raw, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("failed to encode notification data: %w", err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("failed to flatten notification data: %w", err)
	}

	out := make(map[string]string, len(fields))
	for key, value := range fields {
		var scalar string
		if err := json.Unmarshal(value, &scalar); err == nil {
			out[key] = scalar
			continue
		}
		out[key] = string(value)
	}

	return out, nil
}

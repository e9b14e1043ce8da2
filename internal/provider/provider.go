// Package provider implements the two outbound send capabilities of the
// gateway. Senders never retry internally; retrying is the dispatch engine's
// job.
package provider

import (
	"context"

	"github.com/corvid-im/pushgw/internal/domain"
)

// FCMSender delivers one message to the Android-family push service.
type FCMSender interface {
	Send(ctx context.Context, msg *FCMMessage) error
}

// APNSSender delivers one message to the Apple-family push service.
type APNSSender interface {
	Send(ctx context.Context, msg *APNSMessage) error
}

// FCMNotification is the visible block of an FCM message. It is omitted for
// counts-only and data-message payloads.
type FCMNotification struct {
	Title            string `json:"title,omitempty"`
	Body             string `json:"body,omitempty"`
	Badge            string `json:"badge,omitempty"`
	Sound            string `json:"sound,omitempty"`
	Icon             string `json:"icon,omitempty"`
	Tag              string `json:"tag,omitempty"`
	ClickAction      string `json:"click_action,omitempty"`
	AndroidChannelID string `json:"android_channel_id,omitempty"`
}

// FCMMessage is the wire shape of one downstream FCM send. The notification
// and data blocks are independent layers.
type FCMMessage struct {
	To               string            `json:"to"`
	Priority         string            `json:"priority,omitempty"`
	ContentAvailable bool              `json:"content_available,omitempty"`
	Notification     *FCMNotification  `json:"notification,omitempty"`
	Data             map[string]string `json:"data,omitempty"`
}

// APNSAlert is the visible part of an APNs payload.
type APNSAlert struct {
	Title string `json:"title,omitempty"`
	Body  string `json:"body,omitempty"`
}

// APS is the reserved Apple dictionary of an APNs payload.
type APS struct {
	Alert            *APNSAlert `json:"alert,omitempty"`
	Badge            *int       `json:"badge,omitempty"`
	Sound            string     `json:"sound,omitempty"`
	ContentAvailable int        `json:"content-available,omitempty"`
	MutableContent   int        `json:"mutable-content,omitempty"`
}

// APNSPayload is the JSON body of one APNs request: the aps dictionary plus
// the single-device stripped notification under "data".
type APNSPayload struct {
	APS  APS                  `json:"aps"`
	Data *domain.Notification `json:"data,omitempty"`
}

// APNs priorities: 5 lets the device decide when to wake the app (required
// for background delivery), 10 delivers immediately for visible alerts.
const (
	APNSPriorityBackground = "5"
	APNSPriorityImmediate  = "10"
)

// APNs push types, mandatory on the HTTP/2 API.
const (
	APNSPushTypeAlert      = "alert"
	APNSPushTypeBackground = "background"
)

// APNSMessage is one downstream APNs send.
type APNSMessage struct {
	DeviceToken string
	Priority    string
	PushType    string
	Payload     APNSPayload
}

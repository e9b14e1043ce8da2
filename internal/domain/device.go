package domain

import (
	"fmt"
	"strings"
)

// DataMessageSuffix is the legacy app-id suffix used by older app builds to
// request data-only messages before the data_message_type field existed.
const DataMessageSuffix = ".data_message"

// dataMessageTypeKey is the well-known key inside Device.Data that declares
// how the device wants its payload shaped.
const dataMessageTypeKey = "data_message_type"

// NotifyViaAPNS routes a generic device straight to the Apple provider
// instead of relaying through FCM.
const NotifyViaAPNS = "apns"

// DeviceClass describes which payload shape and provider family a device gets.
type DeviceClass string

const (
	// DeviceClassAndroidLegacy covers app ids carrying the legacy
	// ".data_message" suffix.
	DeviceClassAndroidLegacy DeviceClass = "android_legacy"
	// DeviceClassAndroid covers devices declaring data_message_type "android".
	DeviceClassAndroid DeviceClass = "android"
	// DeviceClassIOS covers devices declaring data_message_type "ios".
	DeviceClassIOS DeviceClass = "ios"
	// DeviceClassGeneric covers everything else.
	DeviceClassGeneric DeviceClass = "generic"
)

func (c DeviceClass) String() string { return string(c) }

// IsDataMessage reports whether devices of this class render notifications
// themselves instead of displaying gateway-provided title and body.
func (c DeviceClass) IsDataMessage() bool {
	return c == DeviceClassAndroidLegacy || c == DeviceClassAndroid || c == DeviceClassIOS
}

// Tweaks are per-device display hints set by the homeserver push rules.
type Tweaks struct {
	Sound     string `json:"sound,omitempty"`
	Highlight *bool  `json:"highlight,omitempty"`
}

// Device is one push target inside a notification.
type Device struct {
	AppID     string         `json:"app_id"`
	Pushkey   string         `json:"pushkey"`
	PushkeyTS int64          `json:"pushkey_ts,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Tweaks    *Tweaks        `json:"tweaks,omitempty"`
	NotifyVia string         `json:"notify_via,omitempty"`
}

func (d *Device) Validate() error {
	if strings.TrimSpace(d.AppID) == "" {
		return fmt.Errorf("%w: device app_id is required", ErrValidation)
	}
	if strings.TrimSpace(d.Pushkey) == "" {
		return fmt.Errorf("%w: device pushkey is required", ErrValidation)
	}
	return nil
}

// MatchesAppID reports whether the device belongs to the gateway configured
// with the given app id. The legacy data-message suffix also matches.
func (d *Device) MatchesAppID(appID string) bool {
	return strings.HasPrefix(d.AppID, appID)
}

// DataMessageType returns the payload-shape declaration from the device data,
// or the empty string when the device did not declare one.
func (d *Device) DataMessageType() string {
	if d.Data == nil {
		return ""
	}
	value, _ := d.Data[dataMessageTypeKey].(string)
	return strings.ToLower(strings.TrimSpace(value))
}

// Class derives the device class used for routing and for metrics labels.
// It assumes the app id already matched; call MatchesAppID first.
func (d *Device) Class() DeviceClass {
	if strings.HasSuffix(d.AppID, DataMessageSuffix) {
		return DeviceClassAndroidLegacy
	}
	switch d.DataMessageType() {
	case "android":
		return DeviceClassAndroid
	case "ios":
		return DeviceClassIOS
	default:
		return DeviceClassGeneric
	}
}

// PrefersAPNS reports whether the device explicitly asked for direct Apple
// delivery of its generic notifications.
func (d *Device) PrefersAPNS() bool {
	return strings.EqualFold(strings.TrimSpace(d.NotifyVia), NotifyViaAPNS)
}

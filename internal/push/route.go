// Package push decides which provider family a device belongs to and builds
// the provider payload for it. Everything here is pure; no I/O happens until
// the dispatch engine hands the built message to a sender.
package push

import (
	"fmt"

	"github.com/corvid-im/pushgw/internal/domain"
)

// Family selects the downstream provider.
type Family string

const (
	FamilyFCM  Family = "fcm"
	FamilyAPNS Family = "apns"
)

// Shape selects how the payload is laid out for the target device.
type Shape string

const (
	// ShapeAndroidData carries only a data block the app renders itself.
	ShapeAndroidData Shape = "android_data"
	// ShapeIOSData is a background APNs delivery the app renders itself.
	ShapeIOSData Shape = "ios_data"
	// ShapeGeneric is the FCM default with an optional visible block; FCM
	// relays it to Apple devices on its own.
	ShapeGeneric Shape = "generic"
	// ShapeAPNSAlert is a native APNs payload for devices that explicitly
	// prefer direct Apple delivery.
	ShapeAPNSAlert Shape = "apns_alert"
)

// Route is the routing decision for one device.
type Route struct {
	Family Family
	Shape  Shape
}

// Resolve picks the provider family and payload shape for a device. Devices
// outside the configured app id are rejected before any routing happens.
func Resolve(device *domain.Device, appID string) (Route, error) {
	if !device.MatchesAppID(appID) {
		return Route{}, fmt.Errorf("%w: app id %q does not belong to this gateway", domain.ErrInvalidAppID, device.AppID)
	}

	switch device.Class() {
	case domain.DeviceClassAndroidLegacy, domain.DeviceClassAndroid:
		return Route{Family: FamilyFCM, Shape: ShapeAndroidData}, nil
	case domain.DeviceClassIOS:
		return Route{Family: FamilyAPNS, Shape: ShapeIOSData}, nil
	default:
		if device.PrefersAPNS() {
			return Route{Family: FamilyAPNS, Shape: ShapeAPNSAlert}, nil
		}
		return Route{Family: FamilyFCM, Shape: ShapeGeneric}, nil
	}
}

package push

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/corvid-im/pushgw/internal/config"
	"github.com/corvid-im/pushgw/internal/domain"
	"github.com/corvid-im/pushgw/internal/provider"
)

func testConfig() *config.Config {
	return &config.Config{
		AppID: testAppID,
		Notification: config.NotificationConfig{
			Title:            "<count> new messages",
			Body:             "Open the app to read them",
			Sound:            "default",
			Icon:             "notifications_icon",
			Tag:              "im.corvid.default_notification",
			AndroidChannelID: "im.corvid.app.message",
			ClickAction:      "FLUTTER_NOTIFICATION_CLICK",
		},
	}
}

func newTestBuilder(t *testing.T) *Builder {
	t.Helper()
	b, err := NewBuilder(testConfig())
	if err != nil {
		t.Fatalf("NewBuilder() error = %v", err)
	}
	return b
}

func intPtr(v int) *int { return &v }

func TestBuildGenericVisible(t *testing.T) {
	t.Parallel()

	b := newTestBuilder(t)
	n := domain.Notification{
		EventID:    "$ev",
		Ciphertext: "opaque",
		Counts:     &domain.Counts{Unread: intPtr(3)},
	}
	device := domain.Device{AppID: testAppID, Pushkey: "key-1"}
	n.Devices = []domain.Device{device}

	msg, err := b.Build(&n, &device, Route{Family: FamilyFCM, Shape: ShapeGeneric})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if msg.FCM == nil || msg.APNS != nil {
		t.Fatal("generic shape must produce exactly an FCM message")
	}

	fcm := msg.FCM
	if fcm.To != "key-1" {
		t.Fatalf("to = %q, want key-1", fcm.To)
	}
	if fcm.Notification == nil {
		t.Fatal("visible notification block expected")
	}
	if fcm.Notification.Title != "3 new messages" {
		t.Fatalf("title = %q, want count substituted", fcm.Notification.Title)
	}
	if fcm.Notification.Body != "Open the app to read them" {
		t.Fatalf("body = %q", fcm.Notification.Body)
	}
	if fcm.Notification.Badge != "3" {
		t.Fatalf("badge = %q, want 3", fcm.Notification.Badge)
	}
}

func TestBuildGenericCountsOnly(t *testing.T) {
	t.Parallel()

	b := newTestBuilder(t)
	// No event id, zero unread: a pure badge clearing update.
	n := domain.Notification{Counts: &domain.Counts{Unread: intPtr(0)}}
	device := domain.Device{AppID: testAppID, Pushkey: "key-1"}
	n.Devices = []domain.Device{device}

	msg, err := b.Build(&n, &device, Route{Family: FamilyFCM, Shape: ShapeGeneric})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	fcm := msg.FCM
	if fcm.Notification == nil {
		t.Fatal("badge-only block expected")
	}
	if fcm.Notification.Title != "" || fcm.Notification.Body != "" {
		t.Fatalf("counts-only payload must carry no visible title/body, got %+v", fcm.Notification)
	}
	if fcm.Notification.Badge != "0" {
		t.Fatalf("badge = %q, want 0", fcm.Notification.Badge)
	}
	if fcm.Data != nil {
		t.Fatal("generic shape must not carry a data block")
	}
}

func TestBuildAndroidDataMessage(t *testing.T) {
	t.Parallel()

	b := newTestBuilder(t)
	n := domain.Notification{
		EventID: "$ev",
		RoomID:  "!room",
		Counts:  &domain.Counts{Unread: intPtr(42)},
		Content: json.RawMessage(`{"msgtype":"m.text","body":"hi"}`),
	}
	device := domain.Device{
		AppID:   testAppID,
		Pushkey: "key-1",
		Data:    map[string]any{"data_message_type": "android"},
	}
	other := domain.Device{AppID: testAppID, Pushkey: "key-2"}
	n.Devices = []domain.Device{device, other}

	msg, err := b.Build(&n, &device, Route{Family: FamilyFCM, Shape: ShapeAndroidData})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	fcm := msg.FCM
	if fcm.Notification != nil {
		t.Fatal("data-message payload must not carry a visible block")
	}
	if fcm.Data == nil {
		t.Fatal("data block expected")
	}
	if fcm.Data["event_id"] != "$ev" {
		t.Fatalf("data.event_id = %q, want $ev", fcm.Data["event_id"])
	}
	if fcm.Data["room_id"] != "!room" {
		t.Fatalf("data.room_id = %q, want !room", fcm.Data["room_id"])
	}

	// The device list inside the data block is stripped to this one device.
	var devices []domain.Device
	if err := json.Unmarshal([]byte(fcm.Data["devices"]), &devices); err != nil {
		t.Fatalf("data.devices is not valid JSON: %v", err)
	}
	if len(devices) != 1 || devices[0].Pushkey != "key-1" {
		t.Fatalf("data.devices = %+v, want only key-1", devices)
	}
}

func TestBuildIOSDataMessage(t *testing.T) {
	t.Parallel()

	b := newTestBuilder(t)
	n := domain.Notification{
		EventID:    "$ev",
		Ciphertext: "opaque",
		Counts:     &domain.Counts{Unread: intPtr(2)},
	}
	device := domain.Device{
		AppID:   testAppID,
		Pushkey: "token-1",
		Data:    map[string]any{"data_message_type": "ios"},
	}
	n.Devices = []domain.Device{device}

	msg, err := b.Build(&n, &device, Route{Family: FamilyAPNS, Shape: ShapeIOSData})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if msg.APNS == nil || msg.FCM != nil {
		t.Fatal("ios data shape must produce exactly an APNs message")
	}

	apns := msg.APNS
	if apns.Priority != provider.APNSPriorityBackground {
		t.Fatalf("priority = %q, want 5 for background delivery", apns.Priority)
	}
	if apns.Payload.APS.Alert != nil {
		t.Fatal("background delivery must not carry an alert")
	}
	if apns.Payload.APS.ContentAvailable != 1 {
		t.Fatal("background delivery needs content-available")
	}
	if apns.Payload.Data == nil || len(apns.Payload.Data.Devices) != 1 {
		t.Fatal("payload must carry the stripped single-device notification")
	}
}

func TestBuildAPNSAlertPriorities(t *testing.T) {
	t.Parallel()

	b := newTestBuilder(t)
	device := domain.Device{AppID: testAppID, Pushkey: "token-1", NotifyVia: "apns"}

	visible := domain.Notification{
		EventID:    "$ev",
		Ciphertext: "opaque",
		Devices:    []domain.Device{device},
	}
	msg, err := b.Build(&visible, &device, Route{Family: FamilyAPNS, Shape: ShapeAPNSAlert})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if msg.APNS.Priority != provider.APNSPriorityImmediate {
		t.Fatalf("visible priority = %q, want 10", msg.APNS.Priority)
	}
	if msg.APNS.Payload.APS.Alert == nil {
		t.Fatal("visible delivery needs an alert block")
	}

	countsOnly := domain.Notification{
		Counts:  &domain.Counts{Unread: intPtr(0)},
		Devices: []domain.Device{device},
	}
	msg, err = b.Build(&countsOnly, &device, Route{Family: FamilyAPNS, Shape: ShapeAPNSAlert})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if msg.APNS.Priority != provider.APNSPriorityBackground {
		t.Fatalf("counts-only priority = %q, want 5", msg.APNS.Priority)
	}
	if msg.APNS.Payload.APS.Alert != nil {
		t.Fatal("counts-only delivery must not carry an alert")
	}
	if msg.APNS.Payload.APS.Badge == nil || *msg.APNS.Payload.APS.Badge != 0 {
		t.Fatal("counts-only delivery carries the badge")
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	t.Parallel()

	b := newTestBuilder(t)
	n := domain.Notification{
		EventID: "$ev",
		Counts:  &domain.Counts{Unread: intPtr(5)},
		Content: json.RawMessage(`{"body":"hi"}`),
	}
	device := domain.Device{
		AppID:   testAppID + ".data_message",
		Pushkey: "key-1",
		Data:    map[string]any{"custom": "value"},
	}
	n.Devices = []domain.Device{device}
	route := Route{Family: FamilyFCM, Shape: ShapeAndroidData}

	first, err := b.Build(&n, &device, route)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	second, err := b.Build(&n, &device, route)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Fatal("identical inputs must build identical messages")
	}

	firstJSON, err := json.Marshal(first.FCM)
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	secondJSON, err := json.Marshal(second.FCM)
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	if string(firstJSON) != string(secondJSON) {
		t.Fatal("identical inputs must encode to byte-identical payloads")
	}
}

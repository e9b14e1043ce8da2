package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFCMClientSendSuccess(t *testing.T) {
	t.Parallel()

	var gotBody FCMMessage
	var gotAuth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		gotAuth = r.Header.Get("Authorization")

		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("failed to decode request body: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":1,"failure":0,"results":[{"message_id":"m-1"}]}`))
	}))
	defer server.Close()

	client, err := NewFCMClient(server.URL, "admin-key")
	if err != nil {
		t.Fatalf("NewFCMClient() error = %v", err)
	}

	msg := &FCMMessage{
		To:       "token-1",
		Priority: "high",
		Notification: &FCMNotification{
			Title: "1 new message",
			Badge: "1",
		},
	}

	if err := client.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send() unexpected error: %v", err)
	}

	if gotAuth != "key=admin-key" {
		t.Fatalf("Authorization = %q, want %q", gotAuth, "key=admin-key")
	}
	if gotBody.To != "token-1" {
		t.Fatalf("request.to = %q, want token-1", gotBody.To)
	}
	if gotBody.Notification == nil || gotBody.Notification.Title != "1 new message" {
		t.Fatalf("request.notification = %+v, want title set", gotBody.Notification)
	}
}

func TestFCMClientSendUpstreamRejection(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":0,"failure":1,"results":[{"error":"NotRegistered"}]}`))
	}))
	defer server.Close()

	client, err := NewFCMClient(server.URL, "admin-key")
	if err != nil {
		t.Fatalf("NewFCMClient() error = %v", err)
	}

	err = client.Send(context.Background(), &FCMMessage{To: "token-1"})
	if err == nil {
		t.Fatal("expected error for rejected token")
	}

	var providerErr *ProviderError
	if !errors.As(err, &providerErr) {
		t.Fatalf("error = %T, want *ProviderError", err)
	}
}

func TestFCMClientSendHTTPError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client, err := NewFCMClient(server.URL, "admin-key")
	if err != nil {
		t.Fatalf("NewFCMClient() error = %v", err)
	}

	err = client.Send(context.Background(), &FCMMessage{To: "token-1"})

	var providerErr *ProviderError
	if !errors.As(err, &providerErr) {
		t.Fatalf("error = %T, want *ProviderError", err)
	}
	if providerErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("StatusCode = %d, want 401", providerErr.StatusCode)
	}
}

func TestNewFCMClientValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewFCMClient("", "key"); err == nil {
		t.Fatal("expected error for empty endpoint")
	}
	if _, err := NewFCMClient("not a url", "key"); err == nil {
		t.Fatal("expected error for invalid endpoint")
	}
	if _, err := NewFCMClient("https://fcm.googleapis.com/fcm/send", ""); err == nil {
		t.Fatal("expected error for missing admin key")
	}
}

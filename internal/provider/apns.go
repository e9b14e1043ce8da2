package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultAPNSTimeout = 10 * time.Second

type apnsErrorBody struct {
	Reason string `json:"reason"`
}

// APNSClient sends payloads to the APNs HTTP/2 API with token-based auth.
// Safe for concurrent use.
type APNSClient struct {
	client    *resty.Client
	endpoint  string
	authToken string
	topic     string
}

func NewAPNSClient(endpoint, authToken, topic string) (*APNSClient, error) {
	client := resty.New()
	client.SetTimeout(defaultAPNSTimeout)
	client.SetRetryCount(0)

	return NewAPNSClientWithClient(endpoint, authToken, topic, client)
}

func NewAPNSClientWithClient(endpoint, authToken, topic string, client *resty.Client) (*APNSClient, error) {
	trimmedEndpoint := strings.TrimSpace(endpoint)
	if trimmedEndpoint == "" {
		return nil, fmt.Errorf("apns endpoint is required")
	}
	if _, err := url.ParseRequestURI(trimmedEndpoint); err != nil {
		return nil, fmt.Errorf("invalid apns endpoint: %w", err)
	}
	if strings.TrimSpace(authToken) == "" {
		return nil, fmt.Errorf("apns auth token is required")
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultAPNSTimeout)
	}
	client.SetRetryCount(0)

	return &APNSClient{
		client:    client,
		endpoint:  strings.TrimRight(trimmedEndpoint, "/"),
		authToken: authToken,
		topic:     topic,
	}, nil
}

func (c *APNSClient) Send(ctx context.Context, msg *APNSMessage) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("apns client is not initialized")
	}
	if msg == nil || strings.TrimSpace(msg.DeviceToken) == "" {
		return fmt.Errorf("apns message needs a device token")
	}

	request := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Authorization", "bearer "+c.authToken).
		SetBody(msg.Payload)

	if c.topic != "" {
		request.SetHeader("apns-topic", c.topic)
	}
	if msg.Priority != "" {
		request.SetHeader("apns-priority", msg.Priority)
	}
	if msg.PushType != "" {
		request.SetHeader("apns-push-type", msg.PushType)
	}

	var apnsErr apnsErrorBody
	request.SetError(&apnsErr)

	response, err := request.Post(c.endpoint + "/3/device/" + url.PathEscape(msg.DeviceToken))
	if err != nil {
		return &ProviderError{
			Message: "apns request failed",
			Cause:   err,
		}
	}
	if response == nil {
		return &ProviderError{Message: "apns returned empty response"}
	}

	statusCode := response.StatusCode()
	if statusCode == http.StatusOK {
		return nil
	}

	message := fmt.Sprintf("apns returned status %d", statusCode)
	if reason := strings.TrimSpace(apnsErr.Reason); reason != "" {
		message = fmt.Sprintf("%s: %s", message, reason)
	}

	return &ProviderError{
		StatusCode: statusCode,
		Message:    message,
	}
}

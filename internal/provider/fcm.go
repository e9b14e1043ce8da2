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

const defaultFCMTimeout = 10 * time.Second

type fcmResult struct {
	MessageID string `json:"message_id"`
	Error     string `json:"error"`
}

type fcmResponse struct {
	Success int         `json:"success"`
	Failure int         `json:"failure"`
	Results []fcmResult `json:"results"`
}

// FCMClient sends messages to the FCM HTTP endpoint with server-key auth.
// Safe for concurrent use.
type FCMClient struct {
	client   *resty.Client
	endpoint string
	adminKey string
}

func NewFCMClient(endpoint, adminKey string) (*FCMClient, error) {
	client := resty.New()
	client.SetTimeout(defaultFCMTimeout)
	client.SetRetryCount(0)

	return NewFCMClientWithClient(endpoint, adminKey, client)
}

func NewFCMClientWithClient(endpoint, adminKey string, client *resty.Client) (*FCMClient, error) {
	trimmedEndpoint := strings.TrimSpace(endpoint)
	if trimmedEndpoint == "" {
		return nil, fmt.Errorf("fcm endpoint is required")
	}
	if _, err := url.ParseRequestURI(trimmedEndpoint); err != nil {
		return nil, fmt.Errorf("invalid fcm endpoint: %w", err)
	}
	if strings.TrimSpace(adminKey) == "" {
		return nil, fmt.Errorf("fcm admin key is required")
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultFCMTimeout)
	}
	client.SetRetryCount(0)

	return &FCMClient{
		client:   client,
		endpoint: trimmedEndpoint,
		adminKey: adminKey,
	}, nil
}

func (c *FCMClient) Send(ctx context.Context, msg *FCMMessage) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("fcm client is not initialized")
	}
	if msg == nil || strings.TrimSpace(msg.To) == "" {
		return fmt.Errorf("fcm message needs a registration token")
	}

	var parsed fcmResponse
	response, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Authorization", "key="+c.adminKey).
		SetBody(msg).
		SetResult(&parsed).
		Post(c.endpoint)
	if err != nil {
		return &ProviderError{
			Message: "fcm request failed",
			Cause:   err,
		}
	}
	if response == nil {
		return &ProviderError{Message: "fcm returned empty response"}
	}

	statusCode := response.StatusCode()
	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		return &ProviderError{
			StatusCode: statusCode,
			Message:    fmt.Sprintf("fcm returned status %d", statusCode),
		}
	}

	if len(parsed.Results) == 0 {
		return &ProviderError{
			StatusCode: statusCode,
			Message:    "fcm response carries no results",
		}
	}
	if upstreamErr := strings.TrimSpace(parsed.Results[0].Error); upstreamErr != "" {
		return &ProviderError{
			StatusCode: statusCode,
			Message:    fmt.Sprintf("fcm rejected the token: %s", upstreamErr),
		}
	}

	return nil
}

package handler

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/corvid-im/pushgw/internal/dispatch"
	"github.com/corvid-im/pushgw/internal/domain"
	"github.com/corvid-im/pushgw/internal/observability"
	"github.com/corvid-im/pushgw/internal/transport"
)

type Dispatcher interface {
	Dispatch(ctx context.Context, n *domain.Notification) (*dispatch.Response, error)
}

type NotifyHandler struct {
	dispatcher Dispatcher
}

func NewNotifyHandler(dispatcher Dispatcher) (*NotifyHandler, error) {
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	return &NotifyHandler{dispatcher: dispatcher}, nil
}

func RegisterNotifyRoutes(router fiber.Router, dispatcher Dispatcher) error {
	h, err := NewNotifyHandler(dispatcher)
	if err != nil {
		return err
	}

	router.Post("/_matrix/push/v1/notify", h.Notify)
	return nil
}

type notifyRequest struct {
	Notification *domain.Notification `json:"notification"`
}

type notifyResponse struct {
	Rejected []string `json:"rejected"`
}

func (h *NotifyHandler) Notify(c *fiber.Ctx) error {
	var req notifyRequest
	if err := c.BodyParser(&req); err != nil {
		return transport.BadJSON("request body is not valid JSON")
	}
	if req.Notification == nil {
		return transport.MissingParam("'notification' is required")
	}
	if err := req.Notification.Validate(); err != nil {
		return toHTTPError(err)
	}

	ctx := observability.WithCorrelationID(c.UserContext(), requestCorrelationID(c))

	result, err := h.dispatcher.Dispatch(ctx, req.Notification)
	if err != nil {
		return err
	}

	rejected := result.Rejected
	if rejected == nil {
		rejected = []string{}
	}
	return c.Status(fiber.StatusOK).JSON(notifyResponse{Rejected: rejected})
}

func requestCorrelationID(c *fiber.Ctx) string {
	if value := c.Get(fiber.HeaderXRequestID); value != "" {
		return value
	}
	return uuid.NewString()
}

func toHTTPError(err error) error {
	if errors.Is(err, domain.ErrValidation) {
		return transport.MissingParam(err.Error())
	}
	return err
}

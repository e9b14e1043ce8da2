package transport

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Matrix-style machine-readable error codes returned alongside the
// human-readable message.
const (
	ErrcodeBadJSON      = "BAD_JSON"
	ErrcodeMissingParam = "MISSING_PARAM"
	ErrcodeUnknown      = "UNKNOWN"
)

// GatewayError pairs an HTTP status with an errcode so handlers can
// signal exactly what the client got wrong.
type GatewayError struct {
	Status  int
	Errcode string
	Message string
}

func (e *GatewayError) Error() string {
	return e.Message
}

// BadJSON marks a request body that could not be parsed.
func BadJSON(message string) *GatewayError {
	return &GatewayError{Status: fiber.StatusBadRequest, Errcode: ErrcodeBadJSON, Message: message}
}

// MissingParam marks a parseable body missing a required field.
func MissingParam(message string) *GatewayError {
	return &GatewayError{Status: fiber.StatusBadRequest, Errcode: ErrcodeMissingParam, Message: message}
}

func ErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		errcode := ErrcodeUnknown

		var gwErr *GatewayError
		var fiberErr *fiber.Error
		switch {
		case errors.As(err, &gwErr):
			code = gwErr.Status
			errcode = gwErr.Errcode
		case errors.As(err, &fiberErr):
			code = fiberErr.Code
			// Oversized bodies are a client framing problem, reported the
			// same way as unparseable JSON.
			if fiberErr.Code == fiber.StatusRequestEntityTooLarge {
				code = fiber.StatusBadRequest
				errcode = ErrcodeBadJSON
			}
		}

		logger.Error("request error",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", code),
			zap.String("errcode", errcode),
			zap.Error(err),
		)

		return c.Status(code).JSON(fiber.Map{
			"error":   err.Error(),
			"errcode": errcode,
		})
	}
}

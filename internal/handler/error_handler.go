package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/sms-dispatch/internal/domain"
	"go.uber.org/zap"
)

// StatusOf maps an error returned by a route to its HTTP status.
func StatusOf(err error) int {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code
	}

	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrSendingDisabled):
		return fiber.StatusTooManyRequests
	case errors.Is(err, domain.ErrProviderFailure):
		return fiber.StatusBadGateway
	case errors.Is(err, domain.ErrTimeout):
		return fiber.StatusGatewayTimeout
	case errors.Is(err, domain.ErrNotConfigured),
		errors.Is(err, domain.ErrCanceled),
		errors.Is(err, domain.ErrUnavailable):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func ErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *fiber.Ctx, err error) error {
		code := StatusOf(err)

		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", code),
			zap.Error(err),
		}
		if code >= fiber.StatusInternalServerError {
			logger.Error("request error", fields...)
		} else {
			logger.Warn("request rejected", fields...)
		}

		body := fiber.Map{"error": err.Error()}
		if kind := domain.KindOf(err); kind != "" {
			body["kind"] = kind.String()
		}
		return c.Status(code).JSON(body)
	}
}

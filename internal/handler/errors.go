package handler

import (
	"context"
	"errors"
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/gunta/skypilot/internal/client"
	"github.com/gunta/skypilot/internal/service"
	"github.com/gunta/skypilot/pkg/response"
)

func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		errors := make(map[string]string)
		for _, e := range validationErrors {
			errors[e.Field()] = e.Tag()
		}
		return errors
	}
	return nil
}

// operationError maps orchestrator and upstream failures to responses
func operationError(c *fiber.Ctx, err error) error {
	var apiErr *client.APIError
	switch {
	case errors.Is(err, service.ErrBusy):
		return response.Busy(c, err.Error())
	case errors.Is(err, service.ErrClosed):
		return response.Error(c, fiber.StatusServiceUnavailable, response.CodeServiceError, "Service is shutting down", nil)
	case errors.Is(err, client.ErrMissingAPIKey):
		return response.ServiceError(c, err.Error())
	case client.IsNotFound(err):
		return response.NotFound(c, "Video not found")
	case errors.As(err, &apiErr):
		return response.UpstreamError(c, apiErr.StatusCode, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return response.Error(c, fiber.StatusGatewayTimeout, response.CodeServiceError, err.Error(), nil)
	default:
		log.Printf("[Handler] %s %s failed: %v", c.Method(), c.Path(), err)
		return response.ServiceError(c, err.Error())
	}
}

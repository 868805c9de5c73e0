package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/gunta/skypilot/internal/model"
	"github.com/gunta/skypilot/internal/pricing"
	"github.com/gunta/skypilot/internal/service"
	"github.com/gunta/skypilot/pkg/response"
)

type StateHandler struct {
	orchestrator *service.Orchestrator
	validator    *validator.Validate
}

func NewStateHandler(orch *service.Orchestrator, v *validator.Validate) *StateHandler {
	return &StateHandler{
		orchestrator: orch,
		validator:    v,
	}
}

// Get handles GET /api/state
func (h *StateHandler) Get(c *fiber.Ctx) error {
	return response.OK(c, h.orchestrator.Snapshot())
}

// Tracked handles GET /api/state/tracked
func (h *StateHandler) Tracked(c *fiber.Ctx) error {
	return response.OK(c, fiber.Map{"jobs": h.orchestrator.Snapshot().TrackedList()})
}

// ResetError handles POST /api/state/reset-error
func (h *StateHandler) ResetError(c *fiber.Ctx) error {
	if err := h.orchestrator.ResetError(c.Context()); err != nil {
		return operationError(c, err)
	}
	return response.NoContent(c)
}

// Defaults handles PATCH /api/defaults
func (h *StateHandler) Defaults(c *fiber.Ctx) error {
	var patch model.DefaultsPatch
	if err := c.BodyParser(&patch); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&patch); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	if err := h.orchestrator.SetDefaults(c.Context(), patch); err != nil {
		return operationError(c, err)
	}
	return response.OK(c, patch.Apply(h.orchestrator.Snapshot().Defaults))
}

// CapabilityResponse lists what each model accepts and costs
type CapabilityResponse struct {
	Model       string             `json:"model"`
	Resolutions []string           `json:"resolutions"`
	Seconds     []string           `json:"seconds"`
	PricePerSec map[string]float64 `json:"pricePerSecondUsd"`
}

// Capabilities handles GET /api/capabilities
func (h *StateHandler) Capabilities(c *fiber.Ctx) error {
	out := make([]CapabilityResponse, 0, len(model.ValidModels))
	for _, m := range model.ValidModels {
		resolutions := model.ModelResolutions[m]
		prices := make(map[string]float64, len(resolutions))
		for _, size := range resolutions {
			if price, ok := pricing.PricePerSecond(m, size); ok {
				prices[size] = price
			}
		}
		out = append(out, CapabilityResponse{
			Model:       m,
			Resolutions: resolutions,
			Seconds:     model.ValidSeconds,
			PricePerSec: prices,
		})
	}
	return response.OK(c, fiber.Map{"models": out})
}

package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/gunta/skypilot/internal/currency"
	"github.com/gunta/skypilot/internal/service"
	"github.com/gunta/skypilot/internal/store"
	"github.com/gunta/skypilot/pkg/response"
)

type SettingsHandler struct {
	settings     *store.Settings
	currency     *currency.Service
	orchestrator *service.Orchestrator
	validator    *validator.Validate
}

func NewSettingsHandler(settings *store.Settings, currencySvc *currency.Service, orch *service.Orchestrator, v *validator.Validate) *SettingsHandler {
	return &SettingsHandler{
		settings:     settings,
		currency:     currencySvc,
		orchestrator: orch,
		validator:    v,
	}
}

type SettingsResponse struct {
	Currency        string   `json:"currency"`
	DefaultCurrency string   `json:"defaultCurrency"`
	Language        string   `json:"language"`
	Languages       []string `json:"languages"`
	CurrencyWarning string   `json:"currencyWarning,omitempty"`
}

type CurrencyRequest struct {
	Currency string `json:"currency" validate:"required,len=3,alpha"`
}

type LanguageRequest struct {
	Language string `json:"language" validate:"required,min=2,max=16"`
}

// Get handles GET /api/settings
func (h *SettingsHandler) Get(c *fiber.Ctx) error {
	cur, err := h.settings.Currency(c.Context())
	if err != nil {
		return response.ServiceError(c, err.Error())
	}
	lang, err := h.settings.Language(c.Context())
	if err != nil {
		return response.ServiceError(c, err.Error())
	}
	return response.OK(c, SettingsResponse{
		Currency:        cur,
		DefaultCurrency: h.settings.DefaultCurrency(),
		Language:        lang,
		Languages:       store.SupportedLanguages,
	})
}

// SetCurrency handles PUT /api/settings/currency
func (h *SettingsHandler) SetCurrency(c *fiber.Ctx) error {
	var req CurrencyRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	code, err := h.settings.SetCurrency(c.Context(), req.Currency)
	if err != nil {
		return response.ValidationError(c, err.Error(), nil)
	}

	resp := SettingsResponse{
		Currency:        code,
		DefaultCurrency: h.settings.DefaultCurrency(),
		Languages:       store.SupportedLanguages,
	}
	resp.Language, _ = h.settings.Language(c.Context())

	// Apply the new formatter now unless another operation is running; the
	// next refresh picks it up either way.
	result, err := h.orchestrator.LoadCurrency(c.Context())
	switch {
	case err == nil:
		resp.CurrencyWarning = result.Warning
	case errors.Is(err, service.ErrBusy):
	default:
		return operationError(c, err)
	}
	return response.OK(c, resp)
}

// SetLanguage handles PUT /api/settings/language
func (h *SettingsHandler) SetLanguage(c *fiber.Ctx) error {
	var req LanguageRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	lang, err := h.settings.SetLanguage(c.Context(), req.Language)
	if err != nil {
		return response.ValidationError(c, err.Error(), nil)
	}
	return response.OK(c, fiber.Map{"language": lang})
}

// Rates handles GET /api/currency/rates
func (h *SettingsHandler) Rates(c *fiber.Ctx) error {
	rates, err := h.currency.Cache().Rates(c.Context(), h.currency.Base())
	if err != nil {
		return response.UpstreamError(c, fiber.StatusBadGateway, err.Error())
	}
	return response.OK(c, rates)
}

package handlers

import (
	"errors"
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/healthiphi/founder-pass/app/dto"
	businessflow "github.com/healthiphi/founder-pass/business_flow"
	"github.com/healthiphi/founder-pass/utils"
)

// PledgeHandlerInterface defines the contract for public pledge handlers
type PledgeHandlerInterface interface {
	CreatePledge(c fiber.Ctx) error
	CancelPledge(c fiber.Ctx) error
	AttachPaymentMethod(c fiber.Ctx) error
	Quote(c fiber.Ctx) error
}

// PledgeHandler handles the public Founder Pass endpoints
type PledgeHandler struct {
	flow      businessflow.PledgeFlow
	validator *validator.Validate
}

func NewPledgeHandler(flow businessflow.PledgeFlow) *PledgeHandler {
	return &PledgeHandler{
		flow:      flow,
		validator: validator.New(),
	}
}

func createPledgeError(c fiber.Ctx, statusCode int, message string, details any) error {
	return c.Status(statusCode).JSON(dto.CreatePledgeErrorResponse{
		Success: false,
		Error:   message,
		Details: details,
	})
}

func cancelPledgeError(c fiber.Ctx, statusCode int, message string, details any) error {
	return c.Status(statusCode).JSON(dto.CancelPledgeResponse{
		Success: false,
		Message: message,
		Details: details,
	})
}

// CreatePledge handles the pledge form submission
// @Summary Create pledge
// @Description Reserve Founder Pass seats. Creates an off-session card vault intent and returns its client secret for the payment form. The cancellation secret is sent by email only.
// @Tags Pledges
// @Accept json
// @Produce json
// @Param request body dto.CreatePledgeRequest true "Pledge details"
// @Success 200 {object} dto.CreatePledgeResponse "Pledge created"
// @Failure 400 {object} dto.CreatePledgeErrorResponse "Invalid data"
// @Failure 500 {object} dto.CreatePledgeErrorResponse "Failed to create pledge"
// @Router /api/v1/pledges [post]
func (h *PledgeHandler) CreatePledge(c fiber.Ctx) error {
	var req dto.CreatePledgeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return createPledgeError(c, fiber.StatusBadRequest, "Invalid data", []string{"Request body must be valid JSON"})
	}

	if err := h.validator.Struct(&req); err != nil {
		return createPledgeError(c, fiber.StatusBadRequest, "Invalid data", validationMessages(err))
	}

	ctx, cancel := createRequestContext(c)
	defer cancel()

	result, err := h.flow.CreatePledge(ctx, &req, clientMetadata(c))
	if err != nil {
		switch {
		case businessflow.IsValidationError(err):
			return createPledgeError(c, fiber.StatusBadRequest, "Invalid data", []string{validationCause(err)})
		case businessflow.IsVaultStatusUpdateFailed(err):
			return createPledgeError(c, fiber.StatusInternalServerError, "Failed to update vault status", nil)
		case businessflow.IsPledgeCreationFailed(err):
			return createPledgeError(c, fiber.StatusInternalServerError, "Failed to create pledge", nil)
		default:
			log.Printf("pledge: create failed for %s: %v", utils.MaskEmail(req.Email), err)
			return createPledgeError(c, fiber.StatusInternalServerError, "Internal server error", nil)
		}
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

// CancelPledge withdraws a pledge with the emailed secret
// @Summary Cancel pledge
// @Description Cancel an active pledge. A wrong email, a wrong secret and an already processed pledge all yield the same response.
// @Tags Pledges
// @Accept json
// @Produce json
// @Param request body dto.CancelPledgeRequest true "Email and cancellation secret"
// @Success 200 {object} dto.CancelPledgeResponse "Pledge cancelled successfully"
// @Failure 400 {object} dto.CancelPledgeResponse "Invalid email or secret, or pledge already processed"
// @Failure 500 {object} dto.CancelPledgeResponse "Failed to cancel pledge"
// @Router /api/v1/pledges/cancel [post]
func (h *PledgeHandler) CancelPledge(c fiber.Ctx) error {
	var req dto.CancelPledgeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return cancelPledgeError(c, fiber.StatusBadRequest, "Invalid data", []string{"Request body must be valid JSON"})
	}

	if err := h.validator.Struct(&req); err != nil {
		return cancelPledgeError(c, fiber.StatusBadRequest, "Invalid data", validationMessages(err))
	}

	ctx, cancel := createRequestContext(c)
	defer cancel()

	result, err := h.flow.CancelPledge(ctx, &req, clientMetadata(c))
	if err != nil {
		switch {
		case businessflow.IsPledgeNotFoundOrProcessed(err):
			return cancelPledgeError(c, fiber.StatusBadRequest, "Invalid email or secret, or pledge already processed", nil)
		case businessflow.IsValidationError(err):
			return cancelPledgeError(c, fiber.StatusBadRequest, "Invalid data", []string{validationCause(err)})
		case businessflow.IsPledgeCancellationFailed(err):
			return cancelPledgeError(c, fiber.StatusInternalServerError, "Failed to cancel pledge", nil)
		default:
			log.Printf("pledge: cancel failed: %v", err)
			return cancelPledgeError(c, fiber.StatusInternalServerError, "Internal server error", nil)
		}
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

// AttachPaymentMethod records the card confirmed on the client
// @Summary Attach payment method
// @Description After the payment form confirms the setup intent, store the vaulted payment method on the pledge. Re-posting the same intent is idempotent.
// @Tags Pledges
// @Accept json
// @Produce json
// @Param pledge_id path string true "Pledge ID (UUID)"
// @Param request body dto.AttachPaymentMethodRequest true "Confirmed setup intent"
// @Success 200 {object} dto.APIResponse{data=dto.AttachPaymentMethodResponse} "Payment method stored"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "Pledge not found"
// @Failure 409 {object} dto.APIResponse "Pledge not active or intent conflict"
// @Failure 502 {object} dto.APIResponse "Payment processor unavailable"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/pledges/{pledge_id}/payment-method [post]
func (h *PledgeHandler) AttachPaymentMethod(c fiber.Ctx) error {
	var req dto.AttachPaymentMethodRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", nil)
	}
	req.PledgeID = c.Params("pledge_id")

	if err := h.validator.Struct(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}

	ctx, cancel := createRequestContext(c)
	defer cancel()

	result, err := h.flow.AttachPaymentMethod(ctx, &req, clientMetadata(c))
	if err != nil {
		code := businessflow.BusinessErrorCode(err)
		switch {
		case businessflow.IsPledgeIDInvalid(err):
			return errorResponse(c, fiber.StatusBadRequest, "Invalid pledge id", code, nil)
		case businessflow.IsPledgeNotFound(err):
			return errorResponse(c, fiber.StatusNotFound, "Pledge not found", code, nil)
		case businessflow.IsPledgeNotActive(err):
			return errorResponse(c, fiber.StatusConflict, "Pledge is no longer active", code, nil)
		case businessflow.IsVaultIntentMismatch(err):
			return errorResponse(c, fiber.StatusBadRequest, "Setup intent does not belong to this pledge", code, nil)
		case businessflow.IsVaultIntentNotConfirmed(err):
			return errorResponse(c, fiber.StatusConflict, "Setup intent has not been confirmed", code, nil)
		case businessflow.IsPaymentMethodConflict(err):
			return errorResponse(c, fiber.StatusConflict, "Pledge already has a different payment method", code, nil)
		case businessflow.IsVaultLookupFailed(err):
			return errorResponse(c, fiber.StatusBadGateway, "Payment processor unavailable", code, nil)
		default:
			log.Printf("pledge: attach payment method failed: %v", err)
			return errorResponse(c, fiber.StatusInternalServerError, "Internal server error", "INTERNAL_ERROR", nil)
		}
	}

	message := "Payment method stored"
	if result.AlreadyAttached {
		message = "Payment method already stored"
	}
	return successResponse(c, fiber.StatusOK, message, result)
}

// Quote prices a seat count
// @Summary Pledge quote
// @Description Monthly price, plan and unlocked founder rewards for a seat count
// @Tags Pledges
// @Produce json
// @Param seats query int true "Seats (1-20)"
// @Success 200 {object} dto.APIResponse{data=dto.PledgeQuoteResponse} "Quote"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Router /api/v1/pledges/quote [get]
func (h *PledgeHandler) Quote(c fiber.Ctx) error {
	var req dto.PledgeQuoteRequest
	if err := c.Bind().Query(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", "INVALID_REQUEST", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}

	ctx, cancel := createRequestContext(c)
	defer cancel()

	quote, err := h.flow.QuotePledge(ctx, &req)
	if err != nil {
		if businessflow.IsInvalidSeats(err) {
			return errorResponse(c, fiber.StatusBadRequest, "Invalid seats", "INVALID_SEATS", nil)
		}
		return errorResponse(c, fiber.StatusInternalServerError, "Internal server error", "INTERNAL_ERROR", nil)
	}

	return successResponse(c, fiber.StatusOK, "Quote calculated", quote)
}

// validationCause returns the sentinel message behind a flow validation error
func validationCause(err error) string {
	for _, sentinel := range []error{
		businessflow.ErrInvalidSeats,
		businessflow.ErrFullNameEmpty,
		businessflow.ErrEmailInvalid,
		businessflow.ErrSecretRequired,
		businessflow.ErrPledgeIDInvalid,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}

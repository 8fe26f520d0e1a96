package handlers

import (
	"log"

	"github.com/gofiber/fiber/v3"
	businessflow "github.com/healthiphi/founder-pass/business_flow"
)

// VaultHandlerInterface defines the contract for the public vault endpoints
type VaultHandlerInterface interface {
	GetStatus(c fiber.Ctx) error
}

// VaultHandler serves campaign progress
type VaultHandler struct {
	flow businessflow.VaultFlow
}

func NewVaultHandler(flow businessflow.VaultFlow) *VaultHandler {
	return &VaultHandler{flow: flow}
}

// GetStatus returns the vault aggregate
// @Summary Vault status
// @Description Active pledges, reserved seats, progress towards the seat goal and the time the goal was reached
// @Tags Vault
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.VaultStatusResponse} "Vault status"
// @Failure 503 {object} dto.APIResponse "Vault status unavailable"
// @Router /api/v1/vault/status [get]
func (h *VaultHandler) GetStatus(c fiber.Ctx) error {
	ctx, cancel := createRequestContext(c)
	defer cancel()

	status, err := h.flow.GetVaultStatus(ctx)
	if err != nil {
		log.Printf("vault: status unavailable: %v", err)
		return errorResponse(c, fiber.StatusServiceUnavailable, "Vault status unavailable", "VAULT_STATUS_UNAVAILABLE", nil)
	}

	c.Set("Cache-Control", "public, max-age=5")
	return successResponse(c, fiber.StatusOK, "Vault status retrieved successfully", status)
}

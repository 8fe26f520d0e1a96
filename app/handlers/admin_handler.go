package handlers

import (
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/healthiphi/founder-pass/app/dto"
	"github.com/healthiphi/founder-pass/app/middleware"
	businessflow "github.com/healthiphi/founder-pass/business_flow"
)

// AdminHandlerInterface defines the contract for operator endpoints
type AdminHandlerInterface interface {
	ListPledges(c fiber.Ctx) error
	ExportPledges(c fiber.Ctx) error
	ReconcileVault(c fiber.Ctx) error
}

// AdminHandler handles operator requests. Routes are behind AdminAuthenticate.
type AdminHandler struct {
	flow      businessflow.AdminPledgeFlow
	validator *validator.Validate
}

func NewAdminHandler(flow businessflow.AdminPledgeFlow) *AdminHandler {
	return &AdminHandler{
		flow:      flow,
		validator: validator.New(),
	}
}

func (h *AdminHandler) bindListRequest(c fiber.Ctx) (*dto.AdminListPledgesRequest, error) {
	var req dto.AdminListPledgesRequest
	if err := c.Bind().Query(&req); err != nil {
		return nil, err
	}
	if err := h.validator.Struct(&req); err != nil {
		return nil, err
	}
	return &req, nil
}

func adminFilterError(c fiber.Ctx, err error) error {
	switch {
	case businessflow.IsInvalidPage(err), businessflow.IsInvalidPageSize(err), businessflow.IsInvalidState(err):
		return errorResponse(c, fiber.StatusBadRequest, "Invalid filter", "VALIDATION_ERROR", err.Error())
	default:
		log.Printf("admin: pledge query failed: %v", err)
		return errorResponse(c, fiber.StatusInternalServerError, "Internal server error", "INTERNAL_ERROR", nil)
	}
}

// ListPledges lists pledges for operators
// @Summary List pledges (admin)
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page (default 1)"
// @Param page_size query int false "Page size (default 20, max 100)"
// @Param state query string false "active, cancelled or charged"
// @Param email query string false "Pledger email"
// @Success 200 {object} dto.APIResponse{data=dto.AdminListPledgesResponse} "Pledges"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/admin/pledges [get]
func (h *AdminHandler) ListPledges(c fiber.Ctx) error {
	req, err := h.bindListRequest(c)
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}

	ctx, cancel := createRequestContext(c)
	defer cancel()

	result, err := h.flow.ListPledges(ctx, req)
	if err != nil {
		return adminFilterError(c, err)
	}
	return successResponse(c, fiber.StatusOK, "Pledges retrieved successfully", result)
}

// ExportPledges downloads pledges as a workbook
// @Summary Export pledges (admin)
// @Tags Admin
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param state query string false "active, cancelled or charged"
// @Param email query string false "Pledger email"
// @Success 200 {file} binary "XLSX workbook"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/admin/pledges/export [get]
func (h *AdminHandler) ExportPledges(c fiber.Ctx) error {
	req, err := h.bindListRequest(c)
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}

	ctx, cancel := createRequestContext(c)
	defer cancel()

	export, err := h.flow.ExportPledges(ctx, req)
	if err != nil {
		return adminFilterError(c, err)
	}

	if subject, ok := middleware.GetAdminSubjectFromContext(c); ok {
		log.Printf("admin: %s exported pledges", subject)
	}

	c.Set("Content-Type", export.ContentType)
	c.Set("Content-Disposition", "attachment; filename="+export.Filename)
	return c.Send(export.Content)
}

// ReconcileVault recomputes and repairs the vault aggregate
// @Summary Reconcile vault (admin)
// @Description Recompute the aggregate from active pledges under a row lock and rewrite it when it drifted
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.ReconcileVaultResponse} "Reconciliation result"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/admin/vault/reconcile [post]
func (h *AdminHandler) ReconcileVault(c fiber.Ctx) error {
	ctx, cancel := createRequestContext(c)
	defer cancel()

	metadata := clientMetadata(c)
	if subject, ok := middleware.GetAdminSubjectFromContext(c); ok {
		metadata.AddAdditional("admin_subject", subject)
	}

	result, err := h.flow.ReconcileVault(ctx, metadata)
	if err != nil {
		log.Printf("admin: vault reconcile failed: %v", err)
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to reconcile vault status", "VAULT_RECONCILE_FAILED", nil)
	}

	message := "Vault status is consistent"
	if result.Drift {
		message = "Vault status drift detected"
		if result.Repaired {
			message = "Vault status repaired"
		}
	}
	return successResponse(c, fiber.StatusOK, message, result)
}

package businessflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/healthiphi/founder-pass/app/dto"
	"github.com/healthiphi/founder-pass/models"
	"github.com/healthiphi/founder-pass/repository"
	"github.com/healthiphi/founder-pass/utils"
	"github.com/xuri/excelize/v2"
)

const (
	defaultAdminPageSize = 20
	maxAdminPageSize     = 100
	// exportBatchSize bounds one page read while building the workbook
	exportBatchSize = 500

	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// AdminPledgeFlow provides operator use cases over pledges
type AdminPledgeFlow interface {
	ListPledges(ctx context.Context, req *dto.AdminListPledgesRequest) (*dto.AdminListPledgesResponse, error)
	ExportPledges(ctx context.Context, req *dto.AdminListPledgesRequest) (*dto.AdminExportPledgesResponse, error)
	ReconcileVault(ctx context.Context, metadata *ClientMetadata) (*dto.ReconcileVaultResponse, error)
}

type AdminPledgeFlowImpl struct {
	pledgeRepo repository.PledgeRepository
	vaultFlow  VaultFlow
}

func NewAdminPledgeFlow(pledgeRepo repository.PledgeRepository, vaultFlow VaultFlow) AdminPledgeFlow {
	return &AdminPledgeFlowImpl{pledgeRepo: pledgeRepo, vaultFlow: vaultFlow}
}

func (f *AdminPledgeFlowImpl) ListPledges(ctx context.Context, req *dto.AdminListPledgesRequest) (*dto.AdminListPledgesResponse, error) {
	page, pageSize, err := normalizePagination(req)
	if err != nil {
		return nil, NewBusinessError("VALIDATION_ERROR", "Invalid pagination", err)
	}
	filter, err := buildPledgeFilter(req)
	if err != nil {
		return nil, NewBusinessError("VALIDATION_ERROR", "Invalid filter", err)
	}

	total, err := f.pledgeRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("LIST_PLEDGES_FAILED", "Failed to count pledges", err)
	}
	rows, err := f.pledgeRepo.ByFilter(ctx, filter, "created_at DESC, id DESC", pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("LIST_PLEDGES_FAILED", "Failed to list pledges", err)
	}

	items := make([]dto.AdminPledgeDTO, 0, len(rows))
	for _, p := range rows {
		items = append(items, toAdminPledgeDTO(p))
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return &dto.AdminListPledgesResponse{
		Items: items,
		Pagination: dto.PaginationInfo{
			Total:      total,
			Page:       page,
			Limit:      pageSize,
			TotalPages: totalPages,
		},
	}, nil
}

// ExportPledges writes every pledge matching the filter into an XLSX workbook
func (f *AdminPledgeFlowImpl) ExportPledges(ctx context.Context, req *dto.AdminListPledgesRequest) (*dto.AdminExportPledgesResponse, error) {
	filter, err := buildPledgeFilter(req)
	if err != nil {
		return nil, NewBusinessError("VALIDATION_ERROR", "Invalid filter", err)
	}

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	sheet := "pledges"
	xl.SetSheetName(xl.GetSheetName(0), sheet)

	header := []any{"UUID", "Full Name", "Email", "Seats", "Amount (EUR/month)", "Plan", "State", "Setup Intent", "Payment Method", "Created At", "Cancelled At"}
	if err := xl.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}

	row := 2
	for offset := 0; ; offset += exportBatchSize {
		batch, err := f.pledgeRepo.ByFilter(ctx, filter, "id ASC", exportBatchSize, offset)
		if err != nil {
			return nil, NewBusinessError("EXPORT_PLEDGES_FAILED", "Failed to load pledges", err)
		}
		for _, p := range batch {
			paymentMethod := ""
			if p.HasPaymentMethod() {
				paymentMethod = *p.PaymentMethodID
			}
			cancelledAt := ""
			if p.CancelledAt != nil {
				cancelledAt = p.CancelledAt.UTC().Format(time.RFC3339)
			}
			record := []any{
				p.UUID.String(),
				p.FullName,
				p.UserEmail,
				p.Seats,
				p.TotalAmount,
				PlanName(p.Seats),
				string(p.State()),
				p.VaultIntentID,
				paymentMethod,
				p.CreatedAt.UTC().Format(time.RFC3339),
				cancelledAt,
			}
			cellRef, _ := excelize.CoordinatesToCellName(1, row)
			if err := xl.SetSheetRow(sheet, cellRef, &record); err != nil {
				return nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
			}
			row++
		}
		if len(batch) < exportBatchSize {
			break
		}
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}

	return &dto.AdminExportPledgesResponse{
		Filename:    fmt.Sprintf("pledges_%s.xlsx", utils.UTCNow().Format("20060102_150405")),
		ContentType: xlsxContentType,
		Content:     buf.Bytes(),
	}, nil
}

func (f *AdminPledgeFlowImpl) ReconcileVault(ctx context.Context, metadata *ClientMetadata) (*dto.ReconcileVaultResponse, error) {
	return f.vaultFlow.Reconcile(ctx, true, metadata)
}

func normalizePagination(req *dto.AdminListPledgesRequest) (int, int, error) {
	page, pageSize := 1, defaultAdminPageSize
	if req == nil {
		return page, pageSize, nil
	}
	if req.Page < 0 {
		return 0, 0, ErrInvalidPage
	}
	if req.Page > 0 {
		page = req.Page
	}
	if req.PageSize < 0 || req.PageSize > maxAdminPageSize {
		return 0, 0, ErrInvalidPageSize
	}
	if req.PageSize > 0 {
		pageSize = req.PageSize
	}
	return page, pageSize, nil
}

func buildPledgeFilter(req *dto.AdminListPledgesRequest) (models.PledgeFilter, error) {
	var filter models.PledgeFilter
	if req == nil {
		return filter, nil
	}
	if s := strings.TrimSpace(req.State); s != "" {
		state := models.PledgeState(strings.ToLower(s))
		switch state {
		case models.PledgeStateActive, models.PledgeStateCancelled, models.PledgeStateCharged:
			filter.State = &state
		default:
			return filter, ErrInvalidState
		}
	}
	if e := strings.TrimSpace(req.Email); e != "" {
		email := utils.NormalizeEmail(e)
		filter.UserEmail = &email
	}
	return filter, nil
}

func toAdminPledgeDTO(p *models.Pledge) dto.AdminPledgeDTO {
	return dto.AdminPledgeDTO{
		UUID:             p.UUID.String(),
		FullName:         p.FullName,
		Email:            p.UserEmail,
		Seats:            p.Seats,
		TotalAmount:      p.TotalAmount,
		Currency:         p.Currency,
		Plan:             PlanName(p.Seats),
		State:            string(p.State()),
		VaultIntentID:    p.VaultIntentID,
		HasPaymentMethod: p.HasPaymentMethod(),
		CreatedAt:        p.CreatedAt.UTC().Format(time.RFC3339),
		CancelledAt:      utils.FormatTimePtr(p.CancelledAt),
	}
}

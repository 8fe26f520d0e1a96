package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/healthiphi/founder-pass/app/dto"
	businessflow "github.com/healthiphi/founder-pass/business_flow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPledgeFlow struct {
	mock.Mock
}

func (m *mockPledgeFlow) CreatePledge(ctx context.Context, req *dto.CreatePledgeRequest, metadata *businessflow.ClientMetadata) (*dto.CreatePledgeResponse, error) {
	args := m.Called(ctx, req, metadata)
	resp, _ := args.Get(0).(*dto.CreatePledgeResponse)
	return resp, args.Error(1)
}

func (m *mockPledgeFlow) AttachPaymentMethod(ctx context.Context, req *dto.AttachPaymentMethodRequest, metadata *businessflow.ClientMetadata) (*dto.AttachPaymentMethodResponse, error) {
	args := m.Called(ctx, req, metadata)
	resp, _ := args.Get(0).(*dto.AttachPaymentMethodResponse)
	return resp, args.Error(1)
}

func (m *mockPledgeFlow) CancelPledge(ctx context.Context, req *dto.CancelPledgeRequest, metadata *businessflow.ClientMetadata) (*dto.CancelPledgeResponse, error) {
	args := m.Called(ctx, req, metadata)
	resp, _ := args.Get(0).(*dto.CancelPledgeResponse)
	return resp, args.Error(1)
}

func (m *mockPledgeFlow) QuotePledge(ctx context.Context, req *dto.PledgeQuoteRequest) (*dto.PledgeQuoteResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*dto.PledgeQuoteResponse)
	return resp, args.Error(1)
}

type mockVaultFlow struct {
	mock.Mock
}

func (m *mockVaultFlow) GetVaultStatus(ctx context.Context) (*dto.VaultStatusResponse, error) {
	args := m.Called(ctx)
	resp, _ := args.Get(0).(*dto.VaultStatusResponse)
	return resp, args.Error(1)
}

func (m *mockVaultFlow) Reconcile(ctx context.Context, repair bool, metadata *businessflow.ClientMetadata) (*dto.ReconcileVaultResponse, error) {
	args := m.Called(ctx, repair, metadata)
	resp, _ := args.Get(0).(*dto.ReconcileVaultResponse)
	return resp, args.Error(1)
}

type mockAdminFlow struct {
	mock.Mock
}

func (m *mockAdminFlow) ListPledges(ctx context.Context, req *dto.AdminListPledgesRequest) (*dto.AdminListPledgesResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*dto.AdminListPledgesResponse)
	return resp, args.Error(1)
}

func (m *mockAdminFlow) ExportPledges(ctx context.Context, req *dto.AdminListPledgesRequest) (*dto.AdminExportPledgesResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*dto.AdminExportPledgesResponse)
	return resp, args.Error(1)
}

func (m *mockAdminFlow) ReconcileVault(ctx context.Context, metadata *businessflow.ClientMetadata) (*dto.ReconcileVaultResponse, error) {
	args := m.Called(ctx, metadata)
	resp, _ := args.Get(0).(*dto.ReconcileVaultResponse)
	return resp, args.Error(1)
}

func newPledgeApp(flow businessflow.PledgeFlow) *fiber.App {
	h := NewPledgeHandler(flow)
	app := fiber.New()
	app.Get("/api/v1/pledges/quote", h.Quote)
	app.Post("/api/v1/pledges", h.CreatePledge)
	app.Post("/api/v1/pledges/cancel", h.CancelPledge)
	app.Post("/api/v1/pledges/:pledge_id/payment-method", h.AttachPaymentMethod)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, target, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "handler-test")

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out map[string]any
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), "body: %s", raw)
	}
	return resp.StatusCode, out
}

func TestCreatePledgeHandler(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		flow := &mockPledgeFlow{}
		flow.On("CreatePledge", mock.Anything, mock.MatchedBy(func(req *dto.CreatePledgeRequest) bool {
			return req.Email == "ada@example.com" && req.Seats == 5
		}), mock.MatchedBy(func(md *businessflow.ClientMetadata) bool {
			return md.UserAgent == "handler-test"
		})).Return(&dto.CreatePledgeResponse{
			Success:      true,
			ClientSecret: "seti_1_secret_abc",
			PledgeID:     "6f1c1f0e-8d9b-4a57-9a55-0f1f2d3c4b5a",
		}, nil).Once()

		status, body := doJSON(t, newPledgeApp(flow), http.MethodPost, "/api/v1/pledges",
			`{"full_name":"Ada Founder","email":"ada@example.com","seats":5}`)

		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, "seti_1_secret_abc", body["client_secret"])
		assert.Equal(t, "6f1c1f0e-8d9b-4a57-9a55-0f1f2d3c4b5a", body["pledge_id"])
		flow.AssertExpectations(t)
	})

	t.Run("MalformedJSON", func(t *testing.T) {
		flow := &mockPledgeFlow{}
		status, body := doJSON(t, newPledgeApp(flow), http.MethodPost, "/api/v1/pledges", `{"full_name":`)

		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, false, body["success"])
		assert.Equal(t, "Invalid data", body["error"])
		flow.AssertNotCalled(t, "CreatePledge", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("ValidationFailure", func(t *testing.T) {
		flow := &mockPledgeFlow{}
		status, body := doJSON(t, newPledgeApp(flow), http.MethodPost, "/api/v1/pledges",
			`{"full_name":"Ada","email":"ada@example.com","seats":21}`)

		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "Invalid data", body["error"])
		details, ok := body["details"].([]any)
		require.True(t, ok)
		assert.Contains(t, details, "Seats must be at most 20")
		flow.AssertNotCalled(t, "CreatePledge", mock.Anything, mock.Anything, mock.Anything)
	})

	cases := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{
			name:    "VaultStatusUpdateFailed",
			err:     businessflow.NewBusinessError("VAULT_STATUS_UPDATE_FAILED", "Failed to update vault status", businessflow.ErrVaultStatusUpdateFailed),
			status:  http.StatusInternalServerError,
			message: "Failed to update vault status",
		},
		{
			name:    "PledgeCreationFailed",
			err:     businessflow.NewBusinessError("CREATE_PLEDGE_FAILED", "Failed to create pledge", businessflow.ErrPledgeCreationFailed),
			status:  http.StatusInternalServerError,
			message: "Failed to create pledge",
		},
		{
			name:    "VaultIntentCreationFailed",
			err:     businessflow.NewBusinessError("VAULT_INTENT_CREATION_FAILED", "Failed to create pledge", businessflow.ErrVaultIntentCreationFailed),
			status:  http.StatusInternalServerError,
			message: "Internal server error",
		},
		{
			name:    "FlowValidation",
			err:     businessflow.NewBusinessError("CREATE_PLEDGE_VALIDATION_FAILED", "Invalid pledge request", businessflow.ErrFullNameEmpty),
			status:  http.StatusBadRequest,
			message: "Invalid data",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			flow := &mockPledgeFlow{}
			flow.On("CreatePledge", mock.Anything, mock.Anything, mock.Anything).Return(nil, tc.err).Once()

			status, body := doJSON(t, newPledgeApp(flow), http.MethodPost, "/api/v1/pledges",
				`{"full_name":"Ada","email":"ada@example.com","seats":1}`)

			assert.Equal(t, tc.status, status)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tc.message, body["error"])
		})
	}
}

func TestCancelPledgeHandler(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		flow := &mockPledgeFlow{}
		flow.On("CancelPledge", mock.Anything, &dto.CancelPledgeRequest{Email: "ada@example.com", Secret: "s3cret"}, mock.Anything).
			Return(&dto.CancelPledgeResponse{Success: true, Message: "Pledge cancelled successfully"}, nil).Once()

		status, body := doJSON(t, newPledgeApp(flow), http.MethodPost, "/api/v1/pledges/cancel",
			`{"email":"ada@example.com","secret":"s3cret"}`)

		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, "Pledge cancelled successfully", body["message"])
	})

	t.Run("UniformRejection", func(t *testing.T) {
		flow := &mockPledgeFlow{}
		flow.On("CancelPledge", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, businessflow.NewBusinessError("PLEDGE_NOT_FOUND", "Invalid email or secret, or pledge already processed", businessflow.ErrPledgeNotFoundOrProcessed))

		status, body := doJSON(t, newPledgeApp(flow), http.MethodPost, "/api/v1/pledges/cancel",
			`{"email":"ada@example.com","secret":"wrong"}`)

		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, false, body["success"])
		assert.Equal(t, "Invalid email or secret, or pledge already processed", body["message"])
		assert.NotContains(t, body, "details")
	})

	t.Run("MissingSecret", func(t *testing.T) {
		flow := &mockPledgeFlow{}
		status, body := doJSON(t, newPledgeApp(flow), http.MethodPost, "/api/v1/pledges/cancel",
			`{"email":"ada@example.com"}`)

		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "Invalid data", body["message"])
		flow.AssertNotCalled(t, "CancelPledge", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("StoreFailure", func(t *testing.T) {
		flow := &mockPledgeFlow{}
		flow.On("CancelPledge", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, businessflow.NewBusinessError("CANCEL_PLEDGE_FAILED", "Failed to cancel pledge", businessflow.ErrPledgeCancellationFailed))

		status, body := doJSON(t, newPledgeApp(flow), http.MethodPost, "/api/v1/pledges/cancel",
			`{"email":"ada@example.com","secret":"s3cret"}`)

		assert.Equal(t, http.StatusInternalServerError, status)
		assert.Equal(t, "Failed to cancel pledge", body["message"])
	})
}

func TestAttachPaymentMethodHandler(t *testing.T) {
	const pledgeID = "6f1c1f0e-8d9b-4a57-9a55-0f1f2d3c4b5a"
	target := "/api/v1/pledges/" + pledgeID + "/payment-method"

	t.Run("Success", func(t *testing.T) {
		flow := &mockPledgeFlow{}
		flow.On("AttachPaymentMethod", mock.Anything, mock.MatchedBy(func(req *dto.AttachPaymentMethodRequest) bool {
			return req.PledgeID == pledgeID && req.SetupIntentID == "seti_1"
		}), mock.Anything).Return(&dto.AttachPaymentMethodResponse{
			PledgeID:        pledgeID,
			PaymentMethodID: "pm_1",
			AttachedAt:      "2026-03-01T12:00:00Z",
		}, nil).Once()

		status, body := doJSON(t, newPledgeApp(flow), http.MethodPost, target, `{"setup_intent_id":"seti_1"}`)

		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "Payment method stored", body["message"])
		data, ok := body["data"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "pm_1", data["payment_method_id"])
	})

	t.Run("InvalidPathID", func(t *testing.T) {
		flow := &mockPledgeFlow{}
		status, body := doJSON(t, newPledgeApp(flow), http.MethodPost, "/api/v1/pledges/nope/payment-method", `{"setup_intent_id":"seti_1"}`)

		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "Validation failed", body["message"])
	})

	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"NotFound", businessflow.NewBusinessError("PLEDGE_NOT_FOUND", "Pledge not found", businessflow.ErrPledgeNotFound), http.StatusNotFound},
		{"NotActive", businessflow.NewBusinessError("PLEDGE_NOT_ACTIVE", "Pledge is no longer active", businessflow.ErrPledgeNotActive), http.StatusConflict},
		{"Mismatch", businessflow.NewBusinessError("VAULT_INTENT_MISMATCH", "Setup intent does not belong to this pledge", businessflow.ErrVaultIntentMismatch), http.StatusBadRequest},
		{"NotConfirmed", businessflow.NewBusinessError("VAULT_INTENT_NOT_CONFIRMED", "Setup intent is processing", businessflow.ErrVaultIntentNotConfirmed), http.StatusConflict},
		{"Conflict", businessflow.NewBusinessError("PAYMENT_METHOD_CONFLICT", "Pledge already has a different payment method", businessflow.ErrPaymentMethodConflict), http.StatusConflict},
		{"ProcessorDown", businessflow.NewBusinessError("VAULT_LOOKUP_FAILED", "Failed to verify setup intent", businessflow.ErrVaultLookupFailed), http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			flow := &mockPledgeFlow{}
			flow.On("AttachPaymentMethod", mock.Anything, mock.Anything, mock.Anything).Return(nil, tc.err).Once()

			status, body := doJSON(t, newPledgeApp(flow), http.MethodPost, target, `{"setup_intent_id":"seti_1"}`)

			assert.Equal(t, tc.status, status)
			assert.Equal(t, false, body["success"])
			errObj, ok := body["error"].(map[string]any)
			require.True(t, ok)
			assert.Equal(t, businessflow.BusinessErrorCode(tc.err), errObj["code"])
		})
	}
}

func TestQuoteHandler(t *testing.T) {
	flow := &mockPledgeFlow{}
	flow.On("QuotePledge", mock.Anything, &dto.PledgeQuoteRequest{Seats: 5}).
		Return(&dto.PledgeQuoteResponse{Seats: 5, TotalAmount: 109, Currency: "EUR", Plan: "Small Team"}, nil).Once()
	app := newPledgeApp(flow)

	status, body := doJSON(t, app, http.MethodGet, "/api/v1/pledges/quote?seats=5", "")
	assert.Equal(t, http.StatusOK, status)
	data, ok := body["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(109), data["total_amount"])

	status, _ = doJSON(t, app, http.MethodGet, "/api/v1/pledges/quote?seats=0", "")
	assert.Equal(t, http.StatusBadRequest, status)
	flow.AssertExpectations(t)
}

func TestVaultStatusHandler(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		flow := &mockVaultFlow{}
		flow.On("GetVaultStatus", mock.Anything).Return(&dto.VaultStatusResponse{
			TotalPledges: 3, TotalSeats: 120, SeatGoal: 400, SeatsRemaining: 280,
			ProgressPercent: 30, Stage: "ignition",
		}, nil).Once()

		app := fiber.New()
		app.Get("/api/v1/vault/status", NewVaultHandler(flow).GetStatus)

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/vault/status", nil))
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "public, max-age=5", resp.Header.Get("Cache-Control"))

		var body struct {
			Success bool                    `json:"success"`
			Data    dto.VaultStatusResponse `json:"data"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.True(t, body.Success)
		assert.Equal(t, int64(120), body.Data.TotalSeats)
		assert.Equal(t, "ignition", body.Data.Stage)
	})

	t.Run("Unavailable", func(t *testing.T) {
		flow := &mockVaultFlow{}
		flow.On("GetVaultStatus", mock.Anything).
			Return(nil, businessflow.NewBusinessError("VAULT_STATUS_UNAVAILABLE", "Failed to load vault status", businessflow.ErrVaultStatusUnavailable))

		app := fiber.New()
		app.Get("/api/v1/vault/status", NewVaultHandler(flow).GetStatus)

		status, body := doJSON(t, app, http.MethodGet, "/api/v1/vault/status", "")
		assert.Equal(t, http.StatusServiceUnavailable, status)
		assert.Equal(t, false, body["success"])
	})
}

func TestAdminHandler(t *testing.T) {
	newApp := func(flow businessflow.AdminPledgeFlow) *fiber.App {
		h := NewAdminHandler(flow)
		app := fiber.New()
		app.Get("/api/v1/admin/pledges", h.ListPledges)
		app.Get("/api/v1/admin/pledges/export", h.ExportPledges)
		app.Post("/api/v1/admin/vault/reconcile", h.ReconcileVault)
		return app
	}

	t.Run("ListPledges", func(t *testing.T) {
		flow := &mockAdminFlow{}
		flow.On("ListPledges", mock.Anything, &dto.AdminListPledgesRequest{Page: 2, PageSize: 10, State: "active"}).
			Return(&dto.AdminListPledgesResponse{
				Items:      []dto.AdminPledgeDTO{{Email: "ada@example.com", State: "active"}},
				Pagination: dto.PaginationInfo{Total: 11, Page: 2, Limit: 10, TotalPages: 2},
			}, nil).Once()

		status, body := doJSON(t, newApp(flow), http.MethodGet, "/api/v1/admin/pledges?page=2&page_size=10&state=active", "")
		assert.Equal(t, http.StatusOK, status)
		data := body["data"].(map[string]any)
		assert.Len(t, data["items"], 1)
		flow.AssertExpectations(t)
	})

	t.Run("ListRejectsUnknownState", func(t *testing.T) {
		flow := &mockAdminFlow{}
		status, body := doJSON(t, newApp(flow), http.MethodGet, "/api/v1/admin/pledges?state=refunded", "")
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "Validation failed", body["message"])
		flow.AssertNotCalled(t, "ListPledges", mock.Anything, mock.Anything)
	})

	t.Run("ExportPledges", func(t *testing.T) {
		flow := &mockAdminFlow{}
		flow.On("ExportPledges", mock.Anything, mock.Anything).Return(&dto.AdminExportPledgesResponse{
			Filename:    "pledges_20260301_120000.xlsx",
			ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			Content:     []byte("PK-workbook"),
		}, nil).Once()

		resp, err := newApp(flow).Test(httptest.NewRequest(http.MethodGet, "/api/v1/admin/pledges/export", nil))
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", resp.Header.Get("Content-Type"))
		assert.Contains(t, resp.Header.Get("Content-Disposition"), "pledges_20260301_120000.xlsx")
		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, "PK-workbook", string(raw))
	})

	t.Run("ReconcileVault", func(t *testing.T) {
		flow := &mockAdminFlow{}
		flow.On("ReconcileVault", mock.Anything, mock.Anything).Return(&dto.ReconcileVaultResponse{
			StoredPledges: 3, StoredSeats: 10, ActualPledges: 2, ActualSeats: 5, Drift: true, Repaired: true,
		}, nil).Once()

		status, body := doJSON(t, newApp(flow), http.MethodPost, "/api/v1/admin/vault/reconcile", "")
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "Vault status repaired", body["message"])
	})
}

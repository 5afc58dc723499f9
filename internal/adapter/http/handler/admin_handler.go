package handler

import (
	"net/http"
	"strconv"
	"time"

	"wallet-ledger/internal/adapter/http/dto"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// maxTopUsers caps the ?n parameter of the top-users report.
const maxTopUsers = 100

// AdminHandler serves the reporting endpoints reserved to administrators.
type AdminHandler struct {
	reportingSvc ports.ReportingService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(reportingSvc ports.ReportingService) *AdminHandler {
	return &AdminHandler{reportingSvc: reportingSvc}
}

// ListFlagged handles GET /api/v1/admin/flagged.
func (h *AdminHandler) ListFlagged(c *gin.Context) {
	txns, err := h.reportingSvc.ListFlagged(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewTransactionList(txns))
}

// Summary handles GET /api/v1/admin/summary.
func (h *AdminHandler) Summary(c *gin.Context) {
	total, err := h.reportingSvc.TotalBalance(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.SummaryResponse{TotalBalance: total.StringFixed(domain.MoneyScale)})
}

// TopUsers handles GET /api/v1/admin/top-users?n=5.
func (h *AdminHandler) TopUsers(c *gin.Context) {
	n := 0
	if raw := c.Query("n"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > maxTopUsers {
			response.Error(c, apperror.Validation("n must be between 1 and 100"))
			return
		}
		n = v
	}

	entries, err := h.reportingSvc.TopBalances(c.Request.Context(), n)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewBalanceEntries(entries))
}

// FraudScan handles GET /api/v1/admin/fraud-scan?window=24h.
func (h *AdminHandler) FraudScan(c *gin.Context) {
	var window time.Duration
	if raw := c.Query("window"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			response.Error(c, apperror.Validation("window must be a positive duration such as 24h"))
			return
		}
		window = d
	}

	result, err := h.reportingSvc.FraudScan(c.Request.Context(), window)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewFraudScanResponse(result))
}

// DeleteTransaction handles DELETE /api/v1/admin/transactions/:id.
func (h *AdminHandler) DeleteTransaction(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid transaction id"))
		return
	}

	if err := h.reportingSvc.SoftDeleteTransaction(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

package handler

import (
	"strconv"
	"time"

	"custodial-deposit-ledger/internal/adapter/http/dto"
	"custodial-deposit-ledger/internal/adapter/http/middleware"
	"custodial-deposit-ledger/internal/core/domain"
	"custodial-deposit-ledger/internal/core/ports"
	"custodial-deposit-ledger/pkg/apperror"
	"custodial-deposit-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AdminHandler handles parameter governance and reporting endpoints. The
// admin check itself lives in the service layer, keyed on the caller's
// identity, so a non-admin caller reaches these routes and gets 403.
type AdminHandler struct {
	vaultSvc     ports.VaultService
	registry     ports.CertificateRegistry
	reportingSvc ports.ReportingService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(vaultSvc ports.VaultService, registry ports.CertificateRegistry, reportingSvc ports.ReportingService) *AdminHandler {
	return &AdminHandler{
		vaultSvc:     vaultSvc,
		registry:     registry,
		reportingSvc: reportingSvc,
	}
}

// GetRate handles GET /api/v1/rate. Public, no auth.
func (h *AdminHandler) GetRate(c *gin.Context) {
	rate, err := h.vaultSvc.CurrentRate(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.RateResponse{RateBps: rate})
}

// SetRate handles PUT /api/v1/admin/rate.
func (h *AdminHandler) SetRate(c *gin.Context) {
	participantID, ok := c.Get(middleware.CtxParticipantID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.SetRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	change, err := h.vaultSvc.SetRate(c.Request.Context(), participantID.(uuid.UUID), *req.RateBps)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.RateChangeResponse{
		OldRateBps: change.OldRateBps,
		NewRateBps: change.NewRateBps,
	})
}

// FundReserve handles POST /api/v1/admin/reserve/fund.
func (h *AdminHandler) FundReserve(c *gin.Context) {
	participantID, ok := c.Get(middleware.CtxParticipantID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.FundReserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	account, err := h.vaultSvc.FundReserve(c.Request.Context(), participantID.(uuid.UUID), req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.BalanceResponse{
		ParticipantID: account.ParticipantID.String(),
		Balance:       account.Balance,
	})
}

// BindIssuer handles PUT /api/v1/admin/issuer.
func (h *AdminHandler) BindIssuer(c *gin.Context) {
	participantID, ok := c.Get(middleware.CtxParticipantID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.BindIssuerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	if err := h.registry.BindIssuer(c.Request.Context(), participantID.(uuid.UUID), req.IssuerKey); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"issuer_key": req.IssuerKey})
}

// TransferAdmin handles POST /api/v1/admin/transfer.
func (h *AdminHandler) TransferAdmin(c *gin.Context) {
	participantID, ok := c.Get(middleware.CtxParticipantID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.TransferAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	newAdmin, err := uuid.Parse(req.NewAdmin)
	if err != nil {
		response.Error(c, apperror.Validation("invalid new_admin"))
		return
	}

	if err := h.vaultSvc.TransferAdmin(c.Request.Context(), participantID.(uuid.UUID), newAdmin); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"admin": newAdmin.String()})
}

// GetStats handles GET /api/v1/stats.
func (h *AdminHandler) GetStats(c *gin.Context) {
	stats, err := h.reportingSvc.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.StatsResponse{
		OpenPositions:   stats.OpenPositions,
		ClosedPositions: stats.ClosedPositions,
		PrincipalLocked: stats.PrincipalLocked,
		TotalPaidOut:    stats.TotalPaidOut,
	})
}

// ListEvents handles GET /api/v1/events.
func (h *AdminHandler) ListEvents(c *gin.Context) {
	page, pageSize := parsePagination(c)

	params := ports.EventListParams{
		Page:     page,
		PageSize: pageSize,
	}

	if k := c.Query("kind"); k != "" {
		kind := domain.EventKind(k)
		params.Kind = &kind
	}
	if p := c.Query("position_id"); p != "" {
		if v, err := strconv.ParseInt(p, 10, 64); err == nil {
			params.PositionID = &v
		}
	}
	if f := c.Query("from"); f != "" {
		if v, err := strconv.ParseInt(f, 10, 64); err == nil {
			params.From = &v
		}
	}
	if t := c.Query("to"); t != "" {
		if v, err := strconv.ParseInt(t, 10, 64); err == nil {
			params.To = &v
		}
	}

	events, total, err := h.reportingSvc.ListEvents(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.EventResponse, 0, len(events))
	for i := range events {
		items = append(items, toEventResponse(&events[i]))
	}

	response.OK(c, dto.EventListResponse{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages(total, pageSize),
	})
}

func toEventResponse(e *domain.LedgerEvent) dto.EventResponse {
	resp := dto.EventResponse{
		ID:         e.ID.String(),
		Kind:       string(e.Kind),
		PositionID: e.PositionID,
		Amount:     e.Amount,
		OldRateBps: e.OldRateBps,
		NewRateBps: e.NewRateBps,
		Details:    e.Details,
		CreatedAt:  e.CreatedAt.Format(time.RFC3339),
	}
	if e.Counterparty != nil {
		s := e.Counterparty.String()
		resp.Counterparty = &s
	}
	return resp
}

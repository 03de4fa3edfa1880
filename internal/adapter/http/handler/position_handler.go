package handler

import (
	"math"
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

// PositionHandler handles deposit position endpoints.
type PositionHandler struct {
	vaultSvc     ports.VaultService
	reportingSvc ports.ReportingService
}

// NewPositionHandler creates a new PositionHandler.
func NewPositionHandler(vaultSvc ports.VaultService, reportingSvc ports.ReportingService) *PositionHandler {
	return &PositionHandler{
		vaultSvc:     vaultSvc,
		reportingSvc: reportingSvc,
	}
}

// Deposit handles POST /api/v1/positions.
func (h *PositionHandler) Deposit(c *gin.Context) {
	participantID, ok := c.Get(middleware.CtxParticipantID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	result, err := h.vaultSvc.Deposit(c.Request.Context(), ports.DepositRequest{
		Depositor:   participantID.(uuid.UUID),
		ReferenceID: req.ReferenceID,
		Amount:      req.Amount,
		MetadataURI: req.MetadataURI,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.DepositResponse{
		Position:    toPositionResponse(&result.Position),
		Certificate: toCertificateResponse(&result.Certificate),
	})
}

// Withdraw handles POST /api/v1/positions/:id/withdraw.
func (h *PositionHandler) Withdraw(c *gin.Context) {
	participantID, ok := c.Get(middleware.CtxParticipantID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	positionID, err := parseID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.vaultSvc.Withdraw(c.Request.Context(), ports.WithdrawRequest{
		PositionID: positionID,
		Caller:     participantID.(uuid.UUID),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.WithdrawResponse{
		PositionID: result.PositionID,
		Principal:  result.Principal,
		Interest:   result.Interest,
		Payout:     result.Payout,
		ClosedAt:   result.ClosedAt.Format(time.RFC3339),
	})
}

// GetPosition handles GET /api/v1/positions/:id.
func (h *PositionHandler) GetPosition(c *gin.Context) {
	positionID, err := parseID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	detail, err := h.reportingSvc.GetPosition(c.Request.Context(), positionID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toPositionDetailResponse(detail))
}

// ListPositions handles GET /api/v1/positions.
func (h *PositionHandler) ListPositions(c *gin.Context) {
	page, pageSize := parsePagination(c)

	params := ports.PositionListParams{
		Page:     page,
		PageSize: pageSize,
	}

	if a := c.Query("active"); a != "" {
		if v, err := strconv.ParseBool(a); err == nil {
			params.Active = &v
		}
	}
	if holder := c.Query("holder"); holder != "" {
		if id, err := uuid.Parse(holder); err == nil {
			params.Holder = &id
		}
	}

	details, total, err := h.reportingSvc.ListPositions(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.PositionDetailResponse, 0, len(details))
	for i := range details {
		items = append(items, toPositionDetailResponse(&details[i]))
	}

	response.OK(c, dto.PositionListResponse{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages(total, pageSize),
	})
}

// GetAccrual handles GET /api/v1/positions/:id/accrual.
func (h *PositionHandler) GetAccrual(c *gin.Context) {
	positionID, err := parseID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	interest, err := h.vaultSvc.AccruedInterest(c.Request.Context(), positionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	payout, err := h.vaultSvc.PayoutOf(c.Request.Context(), positionID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.AccrualResponse{
		PositionID:      positionID,
		AccruedInterest: interest,
		Payout:          payout,
	})
}

// parseID parses the numeric :id path parameter.
func parseID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 0 {
		return 0, apperror.Validation("invalid id parameter")
	}
	return id, nil
}

// parsePagination reads page/page_size query parameters with bounds.
func parsePagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}

func totalPages(total int64, pageSize int) int {
	return int(math.Ceil(float64(total) / float64(pageSize)))
}

func toPositionResponse(p *domain.Position) dto.PositionResponse {
	resp := dto.PositionResponse{
		ID:        p.ID,
		Principal: p.Principal,
		StartTime: p.StartTime.Format(time.RFC3339),
		Active:    p.Active,
		CreatedAt: p.CreatedAt.Format(time.RFC3339),
	}
	if p.ClosedAt != nil {
		s := p.ClosedAt.Format(time.RFC3339)
		resp.ClosedAt = &s
	}
	return resp
}

func toPositionDetailResponse(d *ports.PositionDetail) dto.PositionDetailResponse {
	resp := dto.PositionDetailResponse{
		Position:        toPositionResponse(&d.Position),
		AccruedInterest: d.AccruedInterest,
		Payout:          d.Payout,
	}
	if d.Holder != nil {
		s := d.Holder.String()
		resp.Holder = &s
	}
	return resp
}
